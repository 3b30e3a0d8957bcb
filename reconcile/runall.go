package reconcile

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/minios-linux/autoi18n/translate"
)

// Job pairs one target's options with the translator that serves it.
type Job struct {
	Translator translate.Translator
	Options    Options
}

// RunAll runs jobs with at most maxConcurrent in flight. A failed job does
// not stop the others; all failures are returned joined, each prefixed with
// its target language.
func RunAll(ctx context.Context, jobs []Job, maxConcurrent int) ([]Result, error) {
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}
	results := make([]Result, len(jobs))
	errs := make([]error, len(jobs))

	var g errgroup.Group
	g.SetLimit(maxConcurrent)
	for i, job := range jobs {
		g.Go(func() error {
			res, err := Run(ctx, job.Translator, job.Options)
			results[i] = res
			if err != nil {
				errs[i] = fmt.Errorf("%s: %w", job.Options.To, err)
			}
			return nil
		})
	}
	g.Wait()

	var failed []error
	for _, err := range errs {
		if err != nil {
			failed = append(failed, err)
		}
	}
	if len(failed) == 0 {
		return results, nil
	}
	return results, fmt.Errorf("%d language(s) failed: %w", len(failed), errors.Join(failed...))
}
