package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/MakeNowJust/heredoc/v2"
	"github.com/spf13/cobra"

	"github.com/tubeloc/tubeloc/export"
	"github.com/tubeloc/tubeloc/i18n"
	"github.com/tubeloc/tubeloc/lockfile"
	"github.com/tubeloc/tubeloc/subtitle"
	"github.com/tubeloc/tubeloc/translate"
)

// Output file names inside the output directory.
const (
	bundleFile        = "bundle.json"
	localizationsFile = "localizations.json"
)

// ---------------------------------------------------------------------------
// meta
// ---------------------------------------------------------------------------

func newMetaCmd() *cobra.Command {
	var (
		f               runFlags
		title           string
		description     string
		descriptionFile string
		skipFailed      bool
	)

	cmd := &cobra.Command{
		Use:   "meta [metadata.yaml|metadata.json]",
		Short: "Translate a video title and description",
		Long: heredoc.Doc(`
			Translate a video title and description into every catalog language.

			The input is a YAML or JSON file with "title" and "description"
			keys, or the --title and --description flags. Blank description
			lines are kept as they are.

			Writes to the output directory:
			  bundle.json          per-language review bundle, in catalog order
			  localizations.json   body for the YouTube videos.update call
			  tubeloc.lock         which engine served each language`),
		Example: heredoc.Doc(`
			tubeloc meta video.yaml
			tubeloc meta --title "My video" --description-file desc.txt --langs ko,ja
			tubeloc meta video.json --no-deepl --out build/l10n`),
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			md, err := loadMetadataInput(args, title, description, descriptionFile)
			if err != nil {
				return err
			}

			s, err := newSession(cmd, &f)
			if err != nil {
				return err
			}
			defer s.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			run := translate.NewRun(s.catalog)
			logInfo("Translating title and description into %d languages", s.catalog.Len())
			runErr := s.orchestrator().TranslateMetadata(ctx, run, md)
			if runErr != nil && ctx.Err() == nil {
				return runErr
			}

			bundle, err := export.Bundle(run, export.BundleOptions{SkipFailed: skipFailed, Indent: true})
			if err != nil {
				return err
			}
			if err := writeOutput(s.cfg.OutputDir, bundleFile, bundle); err != nil {
				return err
			}
			locs, err := export.Localizations(run, s.cfg.SourceLang)
			if err != nil {
				return err
			}
			if err := writeOutput(s.cfg.OutputDir, localizationsFile, locs); err != nil {
				return err
			}

			desc := strings.ReplaceAll(md.Description, "\r\n", "\n")
			sources := map[translate.Unit]string{
				translate.UnitTitle:       lockfile.UnitContent([]string{md.Title}),
				translate.UnitDescription: lockfile.UnitContent(strings.Split(desc, "\n")),
			}
			return finishRun(cmd.OutOrStdout(), s, run, sources, runErr, f.strict)
		},
	}

	f.register(cmd.Flags())
	cmd.Flags().StringVar(&title, "title", "", "Video title (instead of a metadata file)")
	cmd.Flags().StringVar(&description, "description", "", "Video description (instead of a metadata file)")
	cmd.Flags().StringVar(&descriptionFile, "description-file", "", "Read the description from a text file")
	cmd.Flags().BoolVar(&skipFailed, "skip-failed", false, "Leave failed languages out of bundle.json")

	return cmd
}

// loadMetadataInput reads the metadata file argument, or builds metadata
// from the flags when no file is given.
func loadMetadataInput(args []string, title, description, descriptionFile string) (translate.Metadata, error) {
	if len(args) == 1 {
		if title != "" || description != "" || descriptionFile != "" {
			return translate.Metadata{}, errors.New("use either a metadata file or --title/--description, not both")
		}
		return export.LoadMetadata(args[0])
	}

	if descriptionFile != "" {
		data, err := os.ReadFile(descriptionFile)
		if err != nil {
			return translate.Metadata{}, fmt.Errorf("reading %s: %w", descriptionFile, err)
		}
		description = strings.TrimRight(string(data), "\n")
	}
	if strings.TrimSpace(title) == "" && strings.TrimSpace(description) == "" {
		return translate.Metadata{}, errors.New("nothing to translate: pass a metadata file or --title/--description")
	}
	return translate.Metadata{Title: title, Description: description}, nil
}

// ---------------------------------------------------------------------------
// subs
// ---------------------------------------------------------------------------

func newSubsCmd() *cobra.Command {
	var (
		f           runFlags
		inputFormat string
		format      string
		zipPath     string
	)

	cmd := &cobra.Command{
		Use:   "subs <file>",
		Short: "Translate a subtitle file",
		Long: heredoc.Doc(`
			Translate a subtitle file (SRT, SBV or WebVTT) into every catalog
			language. Timings are kept; only the cue text is translated.

			One file per language is written to the output directory as
			subtitles_<lang>.<ext>. With --zip, the tracks are also packed
			into one archive; failed languages are listed in ERRORS.txt.

			A file that cannot be parsed is an error and nothing is translated.`),
		Example: heredoc.Doc(`
			tubeloc subs captions.srt
			tubeloc subs captions.sbv --format vtt --zip subtitles.zip
			tubeloc subs captions.vtt --langs ko,ja,zh-TW`),
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			src, err := readSubtitles(args[0], inputFormat)
			if err != nil {
				return err
			}
			logInfo("Parsed %s: %d segments (%s)", args[0], len(src.Segments), src.Format)

			s, err := newSession(cmd, &f)
			if err != nil {
				return err
			}
			defer s.Close()

			outFormat := src.Format
			if ff := firstNonEmpty(format, s.cfg.SubtitleFormat); ff != "" {
				if outFormat, err = subtitle.ParseFormat(ff); err != nil {
					return err
				}
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			run := translate.NewRun(s.catalog)
			logInfo("Translating %d segments into %d languages", len(src.Segments), s.catalog.Len())
			runErr := s.orchestrator().TranslateSubtitles(ctx, run, src)
			if runErr != nil && ctx.Err() == nil {
				return runErr
			}

			for _, r := range run.Results().Ordered() {
				track := r.Subtitles()
				if track == nil {
					continue
				}
				converted := *track
				converted.Format = outFormat
				path, err := export.WriteSubtitle(s.cfg.OutputDir, r.Entry.Key, &converted)
				if err != nil {
					return err
				}
				s.logger.Debug("wrote subtitles", "lang", r.Entry.Key, "path", path)
			}

			if zipPath != "" {
				if err := writeArchive(zipPath, run, outFormat); err != nil {
					return err
				}
				logSuccess("Wrote %s", zipPath)
			}

			sources := map[translate.Unit]string{
				translate.UnitSubtitles: lockfile.UnitContent(src.Texts()),
			}
			return finishRun(cmd.OutOrStdout(), s, run, sources, runErr, f.strict)
		},
	}

	f.register(cmd.Flags())
	cmd.Flags().StringVar(&inputFormat, "input-format", "", "Input format (default: detect from name and content)")
	cmd.Flags().StringVar(&format, "format", "", "Output format: srt, sbv, vtt (default: same as input)")
	cmd.Flags().StringVar(&zipPath, "zip", "", "Also write all tracks to this ZIP file")

	_ = cmd.RegisterFlagCompletionFunc("format", completeFormats)
	_ = cmd.RegisterFlagCompletionFunc("input-format", completeFormats)

	return cmd
}

func completeFormats(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	out := make([]string, 0, len(subtitle.Formats))
	for _, f := range subtitle.Formats {
		out = append(out, string(f))
	}
	return out, cobra.ShellCompDirectiveNoFileComp
}

// readSubtitles loads and parses a subtitle file.
func readSubtitles(path, format string) (*subtitle.File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	var ff subtitle.Format
	if format != "" {
		ff, err = subtitle.ParseFormat(format)
	} else {
		ff, err = subtitle.Detect(path, data)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	f, err := subtitle.Parse(data, ff)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return f, nil
}

func writeArchive(path string, run *translate.Run, format subtitle.Format) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("creating %s: %w", dir, err)
		}
	}
	out, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	if err := export.WriteArchive(out, run, format); err != nil {
		out.Close()
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return out.Close()
}

// ---------------------------------------------------------------------------
// Shared helpers
// ---------------------------------------------------------------------------

func writeOutput(dir, name string, data []byte) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating %s: %w", dir, err)
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	logSuccess("Wrote %s", path)
	return nil
}

// finishRun prints the summary, records the lock file and decides the
// command result.
func finishRun(w io.Writer, s *session, run *translate.Run, sources map[translate.Unit]string, runErr error, strict bool) error {
	printSummary(w, run)

	if st := s.memoStats(); st.Hits+st.Misses > 0 {
		logInfo("Memo cache: %d hits, %d misses (%.0f%%)", st.Hits, st.Misses, st.HitRate())
	}

	lf, err := lockfile.Load(s.cfg.OutputDir)
	if err != nil {
		return err
	}
	lf.RecordRun(run, sources)
	if err := lf.Save(); err != nil {
		return err
	}

	if runErr != nil {
		if errors.Is(runErr, context.Canceled) {
			logWarning("Interrupted; finished languages were saved")
			return nil
		}
		return runErr
	}

	failed := 0
	for _, r := range run.Results().Ordered() {
		if len(r.Outcomes()) > 0 && r.Status() == translate.StatusFailure {
			failed++
		}
	}
	if failed == 0 {
		logSuccess("Translation complete!")
		return nil
	}
	logWarning(i18n.N("%d language failed", "%d languages failed", failed), failed)
	if strict {
		return fmt.Errorf("%d of %d languages failed", failed, run.Results().Len())
	}
	return nil
}

// printSummary writes one row per translated language in catalog order.
func printSummary(w io.Writer, run *translate.Run) {
	fmt.Fprintf(w, "\n  %-7s %-20s %-10s %s\n", i18n.T("LANG"), i18n.T("NAME"), i18n.T("ENGINE"), i18n.T("STATUS"))
	fmt.Fprintln(w, "  "+strings.Repeat("─", 50))
	for _, r := range run.Results().Ordered() {
		if len(r.Outcomes()) == 0 {
			continue
		}
		status := colorGreen + r.Status().String() + colorReset
		if r.Status() == translate.StatusFailure {
			status = colorRed + r.Status().String() + colorReset
		}
		fmt.Fprintf(w, "  %-7s %-20s %-10s %s\n", r.Entry.Key, r.Entry.Name, r.EngineName(), status)
	}
	fmt.Fprintln(w)
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
