package cmd

import (
	"fmt"
	"io"
	"sort"

	"github.com/maximbilan/chatr/internal/apiconfig"
	"github.com/maximbilan/chatr/internal/validation"
	"github.com/spf13/cobra"
)

var apiCmd = &cobra.Command{
	Use:   "api",
	Short: "Show or change the provider settings",
}

var apiShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the current provider settings",
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
		printAPIConfig(cmd.OutOrStdout(), settings)
		return nil
	},
}

var apiSetFlags struct {
	provider string
	model    string
	baseURL  string
	key      string
}

var apiSetCmd = &cobra.Command{
	Use:   "set",
	Short: "Update the provider settings",
	Long: `Update the provider settings. Only the flags given are changed; the
credentials of the other provider are kept.`,
	Args: cobra.NoArgs,
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
		if err := applyAPIFlags(cmd, &settings); err != nil {
			return err
		}
		if err := a.APIConfig.Save(cmd.Context(), settings); err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		printAPIConfig(out, settings)
		if err := apiconfig.Validate(settings); err != nil {
			fmt.Fprintf(out, "Warning: %v\n", err)
		}
		return nil
	},
}

func init() {
	bindAPISetFlags(apiSetCmd)

	apiCmd.AddCommand(apiShowCmd)
	apiCmd.AddCommand(apiSetCmd)
	rootCmd.AddCommand(apiCmd)
}

func bindAPISetFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringVar(&apiSetFlags.provider, "provider", "", "provider: openai or gemini")
	f.StringVar(&apiSetFlags.model, "model", "", "model id")
	f.StringVar(&apiSetFlags.baseURL, "base-url", "", "OpenAI-compatible endpoint root")
	f.StringVar(&apiSetFlags.key, "key", "", "API key for the selected provider")
}

func applyAPIFlags(cmd *cobra.Command, settings *apiconfig.Config) error {
	flags := cmd.Flags()
	if flags.Changed("provider") {
		p, err := apiconfig.ParseProvider(apiSetFlags.provider)
		if err != nil {
			return err
		}
		settings.Provider = p
	}
	provider := settings.ActiveProvider()
	settings.Provider = provider

	if flags.Changed("model") {
		if err := validation.ValidateModelID(apiSetFlags.model, provider == apiconfig.Gemini); err != nil {
			return err
		}
		settings.Model = apiSetFlags.model
	}
	if flags.Changed("base-url") {
		if provider != apiconfig.OpenAI {
			return fmt.Errorf("--base-url only applies to the openai provider")
		}
		if err := validation.ValidateBaseURL(apiSetFlags.baseURL); err != nil {
			return err
		}
		settings.OpenAIBaseURL = apiSetFlags.baseURL
	}
	if flags.Changed("key") {
		if provider == apiconfig.Gemini {
			settings.GeminiAPIKey = apiSetFlags.key
		} else {
			settings.OpenAIAPIKey = apiSetFlags.key
		}
	}
	return nil
}

func printAPIConfig(w io.Writer, settings apiconfig.Config) {
	fmt.Fprintf(w, "provider = %s\n", settings.ActiveProvider())
	fmt.Fprintf(w, "model = %s\n", settings.Model)
	fmt.Fprintf(w, "openai_base_url = %s\n", settings.OpenAIBaseURL)
	fmt.Fprintf(w, "openai_api_key = %s\n", maskSecret(settings.OpenAIAPIKey))
	fmt.Fprintf(w, "gemini_api_key = %s\n", maskSecret(settings.GeminiAPIKey))

	defaults := apiconfig.DefaultModels[settings.ActiveProvider()]
	ids := make([]string, 0, len(defaults))
	for id := range defaults {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		fmt.Fprintf(w, "default model: %s (%s)\n", id, defaults[id])
	}
}
