package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/minios-linux/autoi18n/i18n"
	"github.com/minios-linux/autoi18n/settings"
	"github.com/minios-linux/autoi18n/translate"
)

func newAuthCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Manage provider API keys",
		Long: `Store, remove and list provider API keys.

Keys are saved in $XDG_DATA_HOME/autoi18n/auth.json with 0600
permissions. A key given with --api-key, AUTOI18N_API_KEY or the
provider's own environment variable takes precedence over the stored one.

Examples:
  autoi18n auth login                          Interactive provider selection
  autoi18n auth login --provider groq          Store a Groq API key
  autoi18n auth login --provider custom-openai --base-url http://host/v1
  autoi18n auth logout --provider groq         Remove the Groq key
  autoi18n auth logout                         Remove all keys
  autoi18n auth list                           Show stored keys`,
	}
	cmd.AddCommand(
		newAuthLoginCmd(),
		newAuthLogoutCmd(),
		newAuthListCmd(),
	)
	return cmd
}

// authProviders lists the providers that take a key or an endpoint.
func authProviders() []translate.Provider {
	provs := translate.DefaultProviders()
	var out []translate.Provider
	for _, id := range translate.ProviderIDs() {
		p := provs[id]
		if p.NeedsKey() || id == translate.ProviderCustomOpenAI {
			out = append(out, p)
		}
	}
	return out
}

func completeAuthProviders(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	var out []string
	for _, p := range authProviders() {
		out = append(out, p.ID+"\t"+p.Name)
	}
	return out, cobra.ShellCompDirectiveNoFileComp
}

func newAuthLoginCmd() *cobra.Command {
	var provider, apiKey, baseURL string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Store an API key",
		RunE: func(cmd *cobra.Command, args []string) error {
			in := bufio.NewScanner(cmd.InOrStdin())
			if provider == "" {
				id, err := chooseProvider(in, os.Stderr)
				if err != nil {
					return err
				}
				provider = id
			}
			prov, ok := translate.DefaultProviders()[provider]
			if !ok {
				return fmt.Errorf(i18n.T("unknown provider %q (valid: %s)"), provider, strings.Join(translate.ProviderIDs(), ", "))
			}

			if provider == translate.ProviderCustomOpenAI && baseURL == "" {
				fmt.Fprint(os.Stderr, i18n.T("Endpoint URL (e.g. http://localhost:8080/v1): "))
				baseURL = readLine(in)
				if baseURL == "" {
					return errors.New(i18n.T("an endpoint URL is required for custom-openai"))
				}
			}
			if apiKey == "" {
				fmt.Fprintf(os.Stderr, i18n.T("API key for %s: "), prov.Name)
				apiKey = readLine(in)
			}
			if apiKey == "" && prov.NeedsKey() {
				return errors.New(i18n.T("no API key entered"))
			}

			if err := settings.SetAPIKey(provider, apiKey, baseURL); err != nil {
				return fmt.Errorf(i18n.T("saving credentials: %w"), err)
			}
			logSuccess(i18n.T("Credentials for %s saved to %s"), prov.Name, settings.FilePath())
			return nil
		},
	}
	cmd.Flags().StringVar(&provider, "provider", "", "Provider to store a key for")
	cmd.Flags().StringVar(&apiKey, "api-key", "", "API key (prompted when omitted)")
	cmd.Flags().StringVar(&baseURL, "base-url", "", "Endpoint URL (custom-openai)")
	_ = cmd.RegisterFlagCompletionFunc("provider", completeAuthProviders)
	return cmd
}

// chooseProvider prints a numbered menu to w and reads the choice, either
// a number or a provider ID.
func chooseProvider(in *bufio.Scanner, w io.Writer) (string, error) {
	provs := authProviders()
	fmt.Fprintf(w, "\n%s%s%s\n\n", colorBlue, i18n.T("Select provider to authenticate:"), colorReset)
	for i, p := range provs {
		fmt.Fprintf(w, "  %d. %s%-14s%s %s\n", i+1, colorYellow, p.ID, colorReset, p.Name)
	}
	fmt.Fprintf(w, "\n%s", i18n.T("Enter choice (number or name): "))

	choice := readLine(in)
	if choice == "" {
		return "", errors.New(i18n.T("no input received"))
	}
	if n, err := strconv.Atoi(choice); err == nil && n >= 1 && n <= len(provs) {
		return provs[n-1].ID, nil
	}
	for _, p := range provs {
		if p.ID == choice {
			return p.ID, nil
		}
	}
	return "", fmt.Errorf(i18n.T("invalid choice %q"), choice)
}

func readLine(in *bufio.Scanner) string {
	if !in.Scan() {
		return ""
	}
	return strings.TrimSpace(in.Text())
}

func newAuthLogoutCmd() *cobra.Command {
	var provider string

	cmd := &cobra.Command{
		Use:   "logout",
		Short: "Remove stored API keys",
		Long:  "Remove the stored key of one provider, or of all providers when --provider is not given.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if provider == "" {
				if err := settings.RemoveAll(); err != nil {
					return fmt.Errorf(i18n.T("removing credentials: %w"), err)
				}
				logSuccess("%s", i18n.T("All stored credentials removed"))
				return nil
			}
			if err := settings.Remove(provider); err != nil {
				return fmt.Errorf(i18n.T("removing credentials: %w"), err)
			}
			logSuccess(i18n.T("%s credentials removed"), provider)
			return nil
		},
	}
	cmd.Flags().StringVar(&provider, "provider", "", "Provider to log out (default: all)")
	_ = cmd.RegisterFlagCompletionFunc("provider", completeAuthProviders)
	return cmd
}

func newAuthListCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "Show stored API keys",
		Run: func(cmd *cobra.Command, args []string) {
			store := settings.Load()

			fmt.Fprintf(os.Stderr, "\n%s%s%s\n", colorBlue, i18n.T("Stored Credentials"), colorReset)
			fmt.Fprintln(os.Stderr, strings.Repeat("─", 60))
			for _, p := range authProviders() {
				entry := store[p.ID]
				switch {
				case entry != nil && entry.Key != "":
					fmt.Fprintf(os.Stderr, "  %-14s %s%s%s (%s)\n", p.ID, colorGreen, i18n.T("configured"), colorReset, settings.MaskKey(entry.Key))
				case entry != nil && entry.BaseURL != "":
					fmt.Fprintf(os.Stderr, "  %-14s %s%s%s (%s)\n", p.ID, colorGreen, i18n.T("configured"), colorReset, i18n.T("no key"))
				default:
					fmt.Fprintf(os.Stderr, "  %-14s %s%s%s\n", p.ID, colorRed, i18n.T("not configured"), colorReset)
				}
				if entry != nil && entry.BaseURL != "" {
					fmt.Fprintf(os.Stderr, "  %14s endpoint: %s\n", "", entry.BaseURL)
				}
			}

			fmt.Fprintf(os.Stderr, "\n  %s%s%s\n", colorYellow, i18n.T("Environment Variables"), colorReset)
			vars := []string{"AUTOI18N_API_KEY"}
			for _, p := range authProviders() {
				if p.EnvKey != "" {
					vars = append(vars, p.EnvKey)
				}
			}
			for _, name := range vars {
				if v := os.Getenv(name); v != "" {
					fmt.Fprintf(os.Stderr, "  %-18s %s%s%s\n", name, colorGreen, settings.MaskKey(v), colorReset)
				} else {
					fmt.Fprintf(os.Stderr, "  %-18s %s%s%s\n", name, colorRed, i18n.T("not set"), colorReset)
				}
			}
			fmt.Fprintln(os.Stderr)
		},
	}
}
