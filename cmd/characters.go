package cmd

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/maximbilan/chatr/internal/avatar"
	"github.com/maximbilan/chatr/internal/character"
	"github.com/maximbilan/chatr/internal/validation"
	"github.com/spf13/cobra"
)

var charactersCmd = &cobra.Command{
	Use:     "characters",
	Aliases: []string{"chars"},
	Short:   "Manage characters",
}

var charactersListCmd = &cobra.Command{
	Use:   "list",
	Short: "List characters",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		listCharacters(cmd.OutOrStdout(), a.Characters.All())
		return nil
	},
}

var addFlags struct {
	subtitle string
	prompt   string
	avatar   string
}

var charactersAddCmd = &cobra.Command{
	Use:   "add [name]",
	Short: "Add a character",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := validation.ValidateName(args[0]); err != nil {
			return err
		}
		draft := character.Draft{
			Name:         args[0],
			Subtitle:     addFlags.subtitle,
			SystemPrompt: addFlags.prompt,
		}
		if addFlags.avatar != "" {
			encoded, err := avatar.Encode(addFlags.avatar)
			if err != nil {
				return err
			}
			draft.Avatar = encoded
		}

		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		c, err := a.Characters.Create(cmd.Context(), draft)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Added %s (%s)\n", c.Name, c.ID)
		return nil
	},
}

var charactersRmCmd = &cobra.Command{
	Use:   "rm [id...]",
	Short: "Delete characters and their histories",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		n, err := a.Characters.Delete(cmd.Context(), args...)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Deleted %d character(s)\n", n)
		return nil
	},
}

var charactersClearCmd = &cobra.Command{
	Use:   "clear [id]",
	Short: "Clear a character's conversation history",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.Session.ClearHistory(cmd.Context(), args[0]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Cleared history of %s\n", args[0])
		return nil
	},
}

var exportFormat string

var charactersExportCmd = &cobra.Command{
	Use:   "export [file]",
	Short: "Export all characters as JSON or YAML",
	Long:  `Export all characters. Without a file argument the document is written to stdout.`,
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		if len(args) == 0 {
			return a.Characters.Export(cmd.OutOrStdout(), formatFor("", exportFormat))
		}
		f, err := os.Create(args[0])
		if err != nil {
			return fmt.Errorf("failed to create export file: %w", err)
		}
		if err := a.Characters.Export(f, formatFor(args[0], exportFormat)); err != nil {
			f.Close()
			return err
		}
		return f.Close()
	},
}

var importFormat string

var charactersImportCmd = &cobra.Command{
	Use:   "import [file]",
	Short: "Import characters from a JSON or YAML export",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := os.Open(args[0])
		if err != nil {
			return fmt.Errorf("failed to open import file: %w", err)
		}
		defer f.Close()

		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		n, err := a.Characters.Import(cmd.Context(), f, formatFor(args[0], importFormat))
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Imported %d character(s)\n", n)
		return nil
	},
}

func init() {
	f := charactersAddCmd.Flags()
	f.StringVar(&addFlags.subtitle, "subtitle", "", "short description shown under the name")
	f.StringVar(&addFlags.prompt, "prompt", "", "persona system prompt")
	f.StringVar(&addFlags.avatar, "avatar", "", "path to an avatar image")

	charactersExportCmd.Flags().StringVar(&exportFormat, "format", "", "json or yaml (default from file extension, else json)")
	charactersImportCmd.Flags().StringVar(&importFormat, "format", "", "json or yaml (default from file extension, else json)")

	charactersCmd.AddCommand(charactersListCmd)
	charactersCmd.AddCommand(charactersAddCmd)
	charactersCmd.AddCommand(charactersRmCmd)
	charactersCmd.AddCommand(charactersClearCmd)
	charactersCmd.AddCommand(charactersExportCmd)
	charactersCmd.AddCommand(charactersImportCmd)
	rootCmd.AddCommand(charactersCmd)
}

// formatFor prefers an explicit format, then the file extension.
func formatFor(path, explicit string) string {
	if explicit != "" {
		return explicit
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return character.FormatYAML
	default:
		return character.FormatJSON
	}
}

func listCharacters(w io.Writer, chars []character.Character) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tSUBTITLE\tMESSAGES")
	for _, c := range chars {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\n", c.ID, c.Name, c.Subtitle, len(c.History))
	}
	tw.Flush()
}
