package main

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/MakeNowJust/heredoc/v2"
	"github.com/spf13/cobra"

	"github.com/tubeloc/tubeloc/catalog"
	"github.com/tubeloc/tubeloc/export"
	"github.com/tubeloc/tubeloc/i18n"
	"github.com/tubeloc/tubeloc/lockfile"
	"github.com/tubeloc/tubeloc/translate"
)

// ---------------------------------------------------------------------------
// langs
// ---------------------------------------------------------------------------

func newLangsCmd() *cobra.Command {
	var f runFlags

	cmd := &cobra.Command{
		Use:   "langs",
		Short: "List the language catalog",
		Long: heredoc.Doc(`
			List the target languages in export order, with the code sent to
			each engine. Overrides from .tubeloc.yaml and --langs/--exclude
			are applied.

			Flags:
			  *  DeepL needs beta languages enabled for this entry
			  G  always translated by Google Translate`),
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := loadConfig(cmd, &f)
			if err != nil {
				return err
			}
			c, err := cfg.Catalog(catalog.Default())
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "  %-7s %-20s %-7s %-7s %s\n", i18n.T("LANG"), i18n.T("NAME"), "DEEPL", "GOOGLE", "")
			fmt.Fprintln(w, "  "+strings.Repeat("─", 50))
			for _, e := range c.Entries() {
				var marks []string
				if e.Restricted {
					marks = append(marks, "*")
				}
				if e.PreferSecondary {
					marks = append(marks, "G")
				}
				primary := e.PrimaryCode
				if primary == "" || e.PreferSecondary {
					primary = "-"
				}
				fmt.Fprintf(w, "  %-7s %-20s %-7s %-7s %s\n", e.Key, e.Name, primary, e.SecondaryTarget(), strings.Join(marks, " "))
			}
			fmt.Fprintf(w, "\n  %s\n", fmt.Sprintf(i18n.N("%d language", "%d languages", c.Len()), c.Len()))
			return nil
		},
	}

	cmd.Flags().StringSliceVar(&f.langs, "langs", nil, "Only list these languages (comma-separated)")
	cmd.Flags().StringSliceVar(&f.exclude, "exclude", nil, "Languages to hide (comma-separated)")

	return cmd
}

// ---------------------------------------------------------------------------
// status (last run from tubeloc.lock)
// ---------------------------------------------------------------------------

func newStatusCmd() *cobra.Command {
	var (
		f      runFlags
		source string
		prune  bool
	)

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the result of the last run",
		Long: heredoc.Doc(`
			Show which engine served each language in the last run, read from
			tubeloc.lock in the output directory.

			With --source, the given metadata or subtitle file is compared to
			the checksums recorded in the last run, and languages whose source
			has changed since are marked.

			With --prune, languages that are no longer in the catalog (after
			overrides and --langs/--exclude) are dropped from tubeloc.lock.
			Without it the lock file is never written.`),
		Example: heredoc.Doc(`
			tubeloc status
			tubeloc status --out build/l10n --source video.yaml
			tubeloc status --prune --exclude hi`),
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := loadConfig(cmd, &f)
			if err != nil {
				return err
			}
			lf, err := lockfile.Load(cfg.OutputDir)
			if err != nil {
				return err
			}
			if n, _ := lf.Stats(); n == 0 {
				logInfo("No lock file found in %s", cfg.OutputDir)
				return nil
			}

			if prune {
				c, err := cfg.Catalog(catalog.Default())
				if err != nil {
					return err
				}
				before, _ := lf.Stats()
				lf.Clean(c.Keys())
				after, _ := lf.Stats()
				if err := lf.Save(); err != nil {
					return fmt.Errorf("saving lock file: %w", err)
				}
				logSuccess("Pruned %d of %d languages from %s", before-after, before, lf.Path())
			}

			var current map[string]string
			if source != "" {
				if current, err = sourceChecksums(source); err != nil {
					return err
				}
			}

			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "\n%s%s%s\n", colorBlue, i18n.T("Last run"), colorReset)
			fmt.Fprintln(w, strings.Repeat("─", 60))
			fmt.Fprintf(w, "  %-10s %s\n", "run:", lf.RunID)
			fmt.Fprintf(w, "  %-10s %s\n", "time:", lf.RunAt.Local().Format("2006-01-02 15:04:05"))
			fmt.Fprintf(w, "  %-10s %s\n", "lock:", lf.Path())
			fmt.Fprintf(w, "  %-10s %s\n\n", "summary:", lf.Summary())

			fmt.Fprintf(w, "  %-7s %-10s %-8s %-8s %s\n", i18n.T("LANG"), i18n.T("ENGINE"), "", i18n.T("STATUS"), "")
			for _, key := range orderedKeys(lf.Keys()) {
				l, _ := lf.Get(key)
				status := colorGreen + l.Status + colorReset
				if l.Status != translate.StatusSuccess.String() {
					status = colorRed + l.Status + colorReset
				}
				note := ""
				for unit, content := range current {
					if lf.IsChanged(key, unit, content) {
						note = colorYellow + i18n.T("source changed") + colorReset
						break
					}
				}
				fmt.Fprintf(w, "  %-7s %-10s %-8s %s %s\n", key, l.EngineName, l.Engine, status, note)
				for _, e := range l.Errors {
					fmt.Fprintf(w, "          %s\n", e)
				}
			}
			fmt.Fprintln(w)
			return nil
		},
	}

	cmd.Flags().StringVarP(&f.outDir, "out", "o", "", "Output directory holding tubeloc.lock")
	cmd.Flags().StringVar(&source, "source", "", "Metadata (.yaml/.json) or subtitle file to compare with the last run")
	cmd.Flags().BoolVar(&prune, "prune", false, "Drop languages no longer in the catalog from tubeloc.lock")
	cmd.Flags().StringSliceVar(&f.langs, "langs", nil, "With --prune, the languages to keep (comma-separated)")
	cmd.Flags().StringSliceVar(&f.exclude, "exclude", nil, "With --prune, languages to drop (comma-separated)")

	return cmd
}

// orderedKeys sorts recorded languages in catalog order; keys no longer in
// the catalog go last, as recorded.
func orderedKeys(keys []string) []string {
	have := make(map[string]bool, len(keys))
	for _, k := range keys {
		have[k] = true
	}
	var out []string
	for _, k := range catalog.Default().Keys() {
		if have[k] {
			out = append(out, k)
			delete(have, k)
		}
	}
	for _, k := range keys {
		if have[k] {
			out = append(out, k)
		}
	}
	return out
}

// sourceChecksums returns unit name -> source content for a metadata or
// subtitle file, matching what the translating commands record.
func sourceChecksums(path string) (map[string]string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml", ".json":
		md, err := export.LoadMetadata(path)
		if err != nil {
			return nil, err
		}
		desc := strings.ReplaceAll(md.Description, "\r\n", "\n")
		return map[string]string{
			translate.UnitTitle.String():       lockfile.UnitContent([]string{md.Title}),
			translate.UnitDescription.String(): lockfile.UnitContent(strings.Split(desc, "\n")),
		}, nil
	default:
		f, err := readSubtitles(path, "")
		if err != nil {
			return nil, err
		}
		return map[string]string{
			translate.UnitSubtitles.String(): lockfile.UnitContent(f.Texts()),
		}, nil
	}
}
