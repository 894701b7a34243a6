package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/MakeNowJust/heredoc/v2"
	"github.com/spf13/cobra"

	"github.com/tubeloc/tubeloc/engine"
	"github.com/tubeloc/tubeloc/i18n"
	"github.com/tubeloc/tubeloc/settings"
)

// authInput is read for interactive key entry. Tests replace it.
var authInput io.Reader = os.Stdin

var engineInfo = map[string]struct {
	name    string
	helpURL string
}{
	engine.NameDeepL:  {"DeepL API", "https://www.deepl.com/your-account/keys"},
	engine.NameGoogle: {"Google Cloud Translation", "https://console.cloud.google.com/apis/credentials"},
}

func newAuthCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Manage engine API keys",
		Long: heredoc.Doc(`
			Store API keys for the translation engines.

			Engines:
			  deepl    DeepL API (keys ending in :fx use the free endpoint)
			  google   Google Cloud Translation v2

			Keys given with --deepl-key/--google-key or TUBELOC_DEEPL_API_KEY /
			TUBELOC_GOOGLE_API_KEY take precedence over stored keys.`),
		Example: heredoc.Doc(`
			tubeloc auth login --engine deepl
			tubeloc auth login --engine google --key AIza...
			tubeloc auth logout --engine google
			tubeloc auth list`),
	}

	cmd.AddCommand(
		newAuthLoginCmd(),
		newAuthLogoutCmd(),
		newAuthListCmd(),
	)

	return cmd
}

func completeEngines(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	out := make([]string, 0, len(settings.Engines))
	for _, e := range settings.Engines {
		out = append(out, fmt.Sprintf("%s\t%s", e, engineInfo[e].name))
	}
	return out, cobra.ShellCompDirectiveNoFileComp
}

func newAuthLoginCmd() *cobra.Command {
	var name, key, baseURL string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Store an engine API key",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !settings.IsKnownEngine(name) {
				return fmt.Errorf("unknown engine %q (valid: %s)", name, strings.Join(settings.Engines, ", "))
			}
			info := engineInfo[name]

			if key == "" {
				fmt.Fprintf(logOut, "\n%s%s%s\n", colorBlue, info.name, colorReset)
				fmt.Fprintln(logOut, strings.Repeat("─", 60))
				fmt.Fprintf(logOut, "  %s %s%s%s\n\n", i18n.T("Get your API key from:"), colorGreen, info.helpURL, colorReset)

				existing := settings.GetAPIKey(name)
				if existing != "" {
					fmt.Fprintf(logOut, "  %s %s%s%s\n", i18n.T("Current key:"), colorYellow, settings.MaskKey(existing), colorReset)
					fmt.Fprintf(logOut, "  %s ", i18n.T("Enter new key to replace, or press Enter to keep:"))
				} else {
					fmt.Fprintf(logOut, "  %s ", i18n.T("Enter API key:"))
				}

				scanner := bufio.NewScanner(authInput)
				if !scanner.Scan() {
					return fmt.Errorf("no input received")
				}
				key = strings.TrimSpace(scanner.Text())
				if key == "" {
					if existing != "" {
						logInfo("Keeping existing key")
						return nil
					}
					return fmt.Errorf("no API key provided")
				}
			}

			if err := settings.SetAPIKey(name, key, baseURL); err != nil {
				return fmt.Errorf("saving API key: %w", err)
			}
			logSuccess("%s API key saved to %s", info.name, settings.FilePath())
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "engine", engine.NameDeepL, "Engine: deepl or google")
	cmd.Flags().StringVar(&key, "key", "", "API key (prompted for when omitted)")
	cmd.Flags().StringVar(&baseURL, "base-url", "", "Custom endpoint for this engine")
	_ = cmd.RegisterFlagCompletionFunc("engine", completeEngines)

	return cmd
}

func newAuthLogoutCmd() *cobra.Command {
	var name string

	cmd := &cobra.Command{
		Use:   "logout",
		Short: "Remove stored API keys",
		Long: heredoc.Doc(`
			Remove the stored key for one engine, or for all engines when
			--engine is not given.`),
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if name == "" {
				if err := settings.RemoveAll(); err != nil {
					return err
				}
				logSuccess("All stored credentials removed")
				return nil
			}
			if !settings.IsKnownEngine(name) {
				return fmt.Errorf("unknown engine %q (valid: %s)", name, strings.Join(settings.Engines, ", "))
			}
			if err := settings.Remove(name); err != nil {
				return fmt.Errorf("removing %s credentials: %w", name, err)
			}
			logSuccess("%s credentials removed", name)
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "engine", "", "Engine to log out (default: all)")
	_ = cmd.RegisterFlagCompletionFunc("engine", completeEngines)

	return cmd
}

func newAuthListCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "Show stored keys and environment overrides",
		Args:    cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "\n%s%s%s\n", colorBlue, i18n.T("Stored Credentials"), colorReset)
			fmt.Fprintln(w, strings.Repeat("─", 60))

			for _, name := range settings.Engines {
				entry := settings.Get(name)
				if entry != nil && entry.Key != "" {
					status := fmt.Sprintf("%s%s%s (key: %s)", colorGreen, i18n.T("configured"), colorReset, settings.MaskKey(entry.Key))
					if entry.BaseURL != "" {
						status += fmt.Sprintf("\n  %8s endpoint: %s", "", entry.BaseURL)
					}
					fmt.Fprintf(w, "  %-8s %s\n", name, status)
				} else {
					fmt.Fprintf(w, "  %-8s %s%s%s\n", name, colorRed, i18n.T("not configured"), colorReset)
				}
			}

			fmt.Fprintf(w, "\n  %s%s%s\n", colorYellow, i18n.T("Environment Variables"), colorReset)
			for _, name := range settings.Engines {
				v := settings.EnvVar(name)
				if val := os.Getenv(v); val != "" {
					fmt.Fprintf(w, "  %s: %s%s%s (%s)\n", v, colorGreen, settings.MaskKey(val), colorReset, i18n.T("overrides stored key"))
				} else {
					fmt.Fprintf(w, "  %s: %s%s%s\n", v, colorRed, i18n.T("not set"), colorReset)
				}
			}
			fmt.Fprintln(w)
		},
	}
}
