package cmd

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"

	"github.com/maximbilan/chatr/internal/apiconfig"
	"github.com/maximbilan/chatr/internal/session"
	"github.com/spf13/cobra"
)

var chatCmd = &cobra.Command{
	Use:   "chat [character-id] [message]",
	Short: "Send one message to a character and stream the reply",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		out := cmd.OutOrStdout()
		p := &deltaPrinter{w: out}
		a.SetObserver(session.ObserverFunc(p.handle))
		defer a.SetObserver(nil)

		_, committed, err := a.Session.SendTurn(cmd.Context(), args[0], strings.Join(args[1:], " "))
		p.finish()
		if err != nil {
			return err
		}
		if !committed {
			fmt.Fprintln(out, "(empty reply)")
		}
		return nil
	},
}

var modelsRefresh bool

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "List the models available for the configured provider",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		settings, err := a.APIConfig.Load(cmd.Context())
		if err != nil {
			return err
		}
		byProvider, err := a.Models.ListAll(cmd.Context(), settings, modelsRefresh)
		if err != nil {
			return err
		}
		printModels(cmd.OutOrStdout(), byProvider, settings.ActiveProvider())
		return nil
	},
}

func init() {
	modelsCmd.Flags().BoolVar(&modelsRefresh, "refresh", false, "bypass the model cache")
	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(modelsCmd)
}

// deltaPrinter writes the unseen suffix of each accumulated reply.
type deltaPrinter struct {
	mu      sync.Mutex
	w       io.Writer
	printed int
}

func (p *deltaPrinter) handle(e session.Event) {
	if e.Kind != session.EventDelta {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(e.Text) > p.printed {
		io.WriteString(p.w, e.Text[p.printed:])
		p.printed = len(e.Text)
	}
}

func (p *deltaPrinter) finish() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.printed > 0 {
		io.WriteString(p.w, "\n")
	}
}

func printModels(w io.Writer, byProvider map[apiconfig.Provider][]string, active apiconfig.Provider) {
	if len(byProvider) == 0 {
		fmt.Fprintln(w, "No provider credentials configured. Set them with: chatr api set")
		return
	}
	providers := make([]apiconfig.Provider, 0, len(byProvider))
	for p := range byProvider {
		providers = append(providers, p)
	}
	sort.Slice(providers, func(i, j int) bool { return providers[i] < providers[j] })

	for _, p := range providers {
		marker := ""
		if p == active {
			marker = " (active)"
		}
		fmt.Fprintf(w, "%s%s:\n", p, marker)
		for _, id := range byProvider[p] {
			fmt.Fprintf(w, "  %s\n", id)
		}
	}
}
