package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/minios-linux/autoi18n/i18n"
	"github.com/minios-linux/autoi18n/langmeta"
	"github.com/minios-linux/autoi18n/reconcile"
	"github.com/minios-linux/autoi18n/translate"
)

// ANSI color codes
const (
	colorReset  = "\033[0m"
	colorRed    = "\033[0;31m"
	colorGreen  = "\033[0;32m"
	colorYellow = "\033[1;33m"
	colorBlue   = "\033[0;34m"
)

func newStatusCmd() *cobra.Command {
	var f translateFlags

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show translation progress per target and language",
		Long: `Show, for every target and language, how many source keys are still
missing from the output or changed since they were translated. Does not
modify any files and makes no provider requests.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := buildPlan(cmd.Flags(), &f)
			if err != nil {
				return err
			}
			return p.status(cmd.Context())
		},
	}
	fs := cmd.Flags()
	fs.StringVarP(&f.input, "input", "i", "", "Source catalog (skips the config file)")
	fs.StringVarP(&f.output, "output", "o", "", "Output path, {lang} is replaced by each target language")
	fs.StringVar(&f.from, "from", "", "Source language (default: en)")
	fs.StringVar(&f.to, "to", "", "Target languages, comma-separated")
	fs.BoolVar(&f.noLock, "no-lock", false, "Ignore the lock file")
	return cmd
}

// langStatus is one row of the status table.
type langStatus struct {
	lang    string
	total   int
	pending int
	err     error
}

func (s langStatus) percent() int {
	if s.total == 0 {
		return 100
	}
	return (s.total - s.pending) * 100 / s.total
}

// status dry-runs every job and prints what each would translate.
func (p *plan) status(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	noop := translate.Func(func(context.Context, string) (string, error) {
		return "", errors.New("dry run")
	})

	for i := range p.targets {
		rt := &p.targets[i]
		fmt.Fprintf(os.Stderr, "\n%s%s%s  %s\n", colorBlue, rt.Name, colorReset, rt.InputPath)
		fmt.Fprintln(os.Stderr, strings.Repeat("─", 60))

		var rows []langStatus
		for _, lang := range rt.Languages {
			opts, err := rt.Options(lang)
			if err != nil {
				return err
			}
			opts.Lock = p.lock
			opts.DryRun = true
			res, err := reconcile.Run(ctx, noop, opts)
			rows = append(rows, langStatus{lang: lang, total: res.Source, pending: res.Leaves, err: err})
		}

		width := langColumnWidth(rt.Languages)
		for _, row := range rows {
			label := padRight(langmeta.Label(row.lang), width)
			if row.err != nil {
				fmt.Fprintf(os.Stderr, "  %s  %s%v%s\n", label, colorRed, row.err, colorReset)
				continue
			}
			fmt.Fprintf(os.Stderr, "  %s  %s  %s\n", label, progressBar(row.percent(), 20),
				fmt.Sprintf(i18n.T("%d of %d pending"), row.pending, row.total))
		}
	}
	fmt.Fprintln(os.Stderr)

	if p.lock != nil {
		logInfo("%s", p.lock.Summary())
	}
	return nil
}

// progressBar renders percent as a colored bar of width cells followed by
// the number.
func progressBar(percent, width int) string {
	percent = min(max(percent, 0), 100)
	filled := percent * width / 100

	color := colorRed
	switch {
	case percent >= 100:
		color = colorGreen
	case percent >= 50:
		color = colorYellow
	}
	bar := strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
	return fmt.Sprintf("%s%s%s %3d%%", color, bar, colorReset, percent)
}

func langColumnWidth(langs []string) int {
	w := 0
	for _, lang := range langs {
		w = max(w, displayWidth(langmeta.Label(lang)))
	}
	return w
}

// displayWidth counts runes, with a flag (two regional indicators) as two
// columns.
func displayWidth(s string) int {
	return len([]rune(s))
}

func padRight(s string, width int) string {
	if n := displayWidth(s); n < width {
		return s + strings.Repeat(" ", width-n)
	}
	return s
}
