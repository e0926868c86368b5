package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/maximbilan/chatr/internal/app"
	"github.com/maximbilan/chatr/internal/config"
	"github.com/maximbilan/chatr/internal/logging"
	"github.com/maximbilan/chatr/internal/render"
	"github.com/maximbilan/chatr/internal/ui"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	cfg    *config.Config
	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "chatr",
	Short: "Chat with AI characters from your terminal",
	Long: `chatr keeps a list of AI characters, each with its own persona and
conversation history, and streams replies from OpenAI-compatible or Gemini
endpoints.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load()
		if err != nil {
			return err
		}
		logger, err = logging.New(cfg.LogLevel, cfg.LogFile)
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		r, err := render.New(80, "", cfg.RenderMarkdown)
		if err != nil {
			logger.Warn("markdown rendering disabled", zap.Error(err))
			r, _ = render.New(80, "", false)
		}
		return ui.Run(a, r)
	},
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
}

var setCmd = &cobra.Command{
	Use:   "set [key] [value]",
	Short: "Set a config value",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := config.Set(args[0], args[1]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Set %s = %s\n", args[0], displayValue(args[0], args[1]))
		return nil
	},
}

var getCmd = &cobra.Command{
	Use:   "get [key]",
	Short: "Get a config value",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		value := config.Get(args[0])
		fmt.Fprintf(cmd.OutOrStdout(), "%s = %s\n", args[0], displayValue(args[0], fmt.Sprint(value)))
		return nil
	},
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration file and data store",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := config.Save(cfg); err != nil {
			return err
		}
		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		file, err := config.File()
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Configuration initialized at %s\n", file)
		fmt.Fprintf(out, "Data store (%s) at %s with %d characters\n", cfg.StoreBackend, cfg.DataDir, len(a.Characters.All()))
		fmt.Fprintln(out, "Set your API key with: chatr api set --provider openai --base-url URL --key YOUR_KEY")
		return nil
	},
}

func init() {
	configCmd.AddCommand(setCmd)
	configCmd.AddCommand(getCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(initCmd)
}

func openApp(ctx context.Context) (*app.Context, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	return app.New(ctx, cfg, logger)
}

func isSensitiveConfigKey(key string) bool {
	return strings.Contains(strings.ToLower(strings.TrimSpace(key)), "api_key")
}

func maskSecret(value string) string {
	if len(value) <= 8 {
		return "***"
	}
	return value[:4] + "***" + value[len(value)-4:]
}

func displayValue(key, value string) string {
	if isSensitiveConfigKey(key) {
		return maskSecret(value)
	}
	return value
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
