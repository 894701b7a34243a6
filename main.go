// tubeloc translates YouTube video metadata and subtitle tracks into a
// catalog of languages with DeepL as the primary engine and Google
// Translate as the fallback.
package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/MakeNowJust/heredoc/v2"
	"github.com/spf13/cobra"

	"github.com/tubeloc/tubeloc/i18n"
)

// Version information (set via -ldflags during build)
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// ANSI colors
const (
	colorReset  = "\033[0m"
	colorRed    = "\033[0;31m"
	colorGreen  = "\033[0;32m"
	colorYellow = "\033[1;33m"
	colorBlue   = "\033[0;34m"
)

// logOut is where the colored log helpers write. Tests redirect it.
var logOut io.Writer = os.Stderr

func logInfo(format string, args ...any) {
	fmt.Fprintf(logOut, colorBlue+"[INFO]"+colorReset+" "+i18n.T(format)+"\n", args...)
}

func logSuccess(format string, args ...any) {
	fmt.Fprintf(logOut, colorGreen+"[OK]"+colorReset+" "+i18n.T(format)+"\n", args...)
}

func logWarning(format string, args ...any) {
	fmt.Fprintf(logOut, colorYellow+"[WARN]"+colorReset+" "+i18n.T(format)+"\n", args...)
}

func logError(format string, args ...any) {
	fmt.Fprintf(logOut, colorRed+"[ERROR]"+colorReset+" "+i18n.T(format)+"\n", args...)
}

// newLogger builds the slog logger handed to library packages. --verbose
// forces debug; otherwise level comes from TUBELOC_LOG_LEVEL.
func newLogger(verbose bool, level string) *slog.Logger {
	var lvl slog.Level
	if verbose {
		lvl = slog.LevelDebug
	} else if err := lvl.UnmarshalText([]byte(strings.ToUpper(level))); err != nil {
		lvl = slog.LevelInfo
	}
	if !verbose && lvl < slog.LevelWarn {
		// Info-level library output duplicates the colored CLI log.
		lvl = slog.LevelWarn
	}
	return slog.New(slog.NewTextHandler(logOut, &slog.HandlerOptions{Level: lvl}))
}

// ---------------------------------------------------------------------------
// Global flags
// ---------------------------------------------------------------------------

var (
	rootDir string
	verbose bool
)

// ---------------------------------------------------------------------------
// Root command
// ---------------------------------------------------------------------------

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "tubeloc",
		Short: "Translate YouTube titles, descriptions and subtitles",
		Long: heredoc.Doc(`
			tubeloc translates YouTube video metadata and subtitle tracks into
			a fixed catalog of languages.

			Every language is tried with DeepL first. When DeepL fails or does
			not support the language, Google Translate is used instead. Failed
			languages get a visible placeholder and never abort the run.

			Commands:
			  langs       List the language catalog
			  meta        Translate a title and description
			  subs        Translate a subtitle file (SRT, SBV, VTT)
			  status      Show the result of the last run
			  auth        Manage engine API keys

			Configuration is read from flags, TUBELOC_* environment variables
			(a .env file in the project root is loaded), .tubeloc.yaml and the
			credential store, in that order.`),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			i18n.Init("")
		},
	}

	root.PersistentFlags().StringVar(&rootDir, "root", ".", "Project root directory (.tubeloc.yaml, .env)")
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")

	root.AddCommand(
		newLangsCmd(),
		newMetaCmd(),
		newSubsCmd(),
		newStatusCmd(),
		newAuthCmd(),
		newVersionCmd(),
	)

	return root
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		logError("%v", err)
		os.Exit(1)
	}
}

// ---------------------------------------------------------------------------
// version
// ---------------------------------------------------------------------------

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Long:  `Display version, commit hash, and build date.`,
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "tubeloc version %s\n", version)
			fmt.Fprintf(out, "  commit:    %s\n", commit)
			fmt.Fprintf(out, "  built:     %s\n", date)
		},
	}
}
