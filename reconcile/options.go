// Package reconcile translates a source catalog file into a target
// language file, incrementally and batch by batch.
//
// One run reads the source literal, works out which leaves need
// translating, groups them into batches, masks and translates each batch,
// and merges every finished batch into the output file before starting the
// next one. A failed run leaves the batches already written on disk.
package reconcile

import (
	"errors"
	"fmt"
	"time"

	"github.com/minios-linux/autoi18n/batch"
	"github.com/minios-linux/autoi18n/lockfile"
	"github.com/minios-linux/autoi18n/mask"
)

// Mode selects which source leaves are translated.
type Mode string

const (
	// ModeFull translates every source leaf.
	ModeFull Mode = "full"
	// ModeFast translates only leaves missing from the output, plus leaves
	// whose source value changed according to the lock file.
	ModeFast Mode = "fast"
)

// Strategy selects how leaves are grouped into translator calls.
type Strategy string

const (
	// StrategyMerge joins the leaves of a size-bounded batch into one call.
	StrategyMerge Strategy = "merge"
	// StrategyChunk groups top-level fragments by count and sends one call
	// per leaf.
	StrategyChunk Strategy = "chunk"
)

// ParseMode converts a configuration string to a Mode.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeFull, ModeFast:
		return Mode(s), nil
	case "":
		return ModeFast, nil
	}
	return "", fmt.Errorf("unknown mode %q (want %q or %q)", s, ModeFull, ModeFast)
}

// ParseStrategy converts a configuration string to a Strategy.
func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(s) {
	case StrategyMerge, StrategyChunk:
		return Strategy(s), nil
	case "":
		return StrategyMerge, nil
	}
	return "", fmt.Errorf("unknown strategy %q (want %q or %q)", s, StrategyMerge, StrategyChunk)
}

// Options controls one run.
type Options struct {
	// Input and Output are catalog file paths. The output may not exist.
	Input  string
	Output string
	// From and To are the source and target language codes.
	From string
	To   string
	// Mode defaults to ModeFast.
	Mode Mode
	// Strategy defaults to StrategyMerge.
	Strategy Strategy
	// ChunkSize is the fragment count per group in chunk strategy.
	ChunkSize int
	// Budget is the batch size budget in merge strategy.
	Budget int
	// Delay is awaited after every leaf translated in chunk strategy and
	// between batches in merge strategy.
	Delay time.Duration
	// Codec holds the masking rules. An unset joiner is chosen from To.
	Codec mask.Codec
	// Lock, when set, records source checksums of translated leaves.
	Lock *lockfile.LockFile
	// DryRun reports the batches without calling the translator or
	// writing anything.
	DryRun bool
	// Verbose logs every translated leaf.
	Verbose bool
	// OnProgress is called after each batch with translated leaf counts.
	OnProgress func(lang string, done, total int)
	// OnLog emits log messages.
	OnLog func(format string, args ...any)
	// OnError emits error and warning messages.
	OnError func(format string, args ...any)
}

func (o *Options) log(format string, args ...any) {
	if o.OnLog != nil {
		o.OnLog(format, args...)
	}
}

func (o *Options) logError(format string, args ...any) {
	if o.OnError != nil {
		o.OnError(format, args...)
	} else if o.OnLog != nil {
		o.OnLog(format, args...)
	}
}

func (o *Options) effectiveMode() Mode {
	if o.Mode == "" {
		return ModeFast
	}
	return o.Mode
}

func (o *Options) effectiveStrategy() Strategy {
	if o.Strategy == "" {
		return StrategyMerge
	}
	return o.Strategy
}

func (o *Options) effectiveChunkSize() int {
	if o.ChunkSize > 0 {
		return o.ChunkSize
	}
	return batch.DefaultChunkSize
}

func (o *Options) effectiveBudget() int {
	if o.Budget > 0 {
		return o.Budget
	}
	return batch.DefaultBudget
}

func (o *Options) codec() mask.Codec {
	c := o.Codec
	if c.Joiner.Sep == "" || c.Joiner.Pattern == nil {
		c.Joiner = mask.JoinerFor(o.To)
	}
	return c
}

// ---------------------------------------------------------------------------
// Results
// ---------------------------------------------------------------------------

// Status describes how a run ended.
type Status int

const (
	StatusUpToDate Status = iota
	StatusCreated
	StatusPatched
	StatusEmptySource
	StatusDryRun
)

func (s Status) String() string {
	switch s {
	case StatusCreated:
		return "created"
	case StatusPatched:
		return "patched"
	case StatusEmptySource:
		return "empty source"
	case StatusDryRun:
		return "dry run"
	}
	return "up to date"
}

// Result summarizes a run.
type Result struct {
	Status Status
	Output string
	// Batches is the number of batches (merge) or groups (chunk).
	Batches int
	// Source is the number of translatable leaves in the source.
	Source int
	// Leaves is the number of leaves selected for translation.
	Leaves int
	// Copied is the number of selected leaves copied without translation.
	Copied int
	// Calls is the number of translator calls made.
	Calls int
}

// ---------------------------------------------------------------------------
// Errors
// ---------------------------------------------------------------------------

var (
	// ErrSourceRead means the source file could not be read.
	ErrSourceRead = errors.New("cannot read source file")
	// ErrSourceParse means the source file holds no usable literal.
	ErrSourceParse = errors.New("cannot parse source file")
	// ErrOutputParse means the existing output could not be read or parsed
	// and was left untouched.
	ErrOutputParse = errors.New("cannot parse output file")
	// ErrOutputWrite means writing the output file failed.
	ErrOutputWrite = errors.New("cannot write output file")
	// ErrProvider wraps translator failures.
	ErrProvider = errors.New("translation failed")
	// ErrSegmentMismatch means the translator changed the number of
	// joined parts.
	ErrSegmentMismatch = errors.New("segment count mismatch")
)

// SegmentMismatchError reports a merged translation that came back with
// a different number of parts than were sent.
type SegmentMismatchError struct {
	Lang          string
	Want          int
	Got           int
	InputPreview  string
	OutputPreview string
}

func (e *SegmentMismatchError) Error() string {
	return fmt.Sprintf("%s: %s: input values length: %d --- output values length: %d\ninput values ---> %s\noutput values ---> %s",
		ErrSegmentMismatch, e.Lang, e.Want, e.Got, e.InputPreview, e.OutputPreview)
}

// Is matches ErrSegmentMismatch.
func (e *SegmentMismatchError) Is(target error) bool {
	return target == ErrSegmentMismatch
}

const previewLen = 100

func preview(parts []string) string {
	s := fmt.Sprintf("%q", parts)
	r := []rune(s)
	if len(r) <= previewLen {
		return s
	}
	return string(r[:previewLen]) + "... ..."
}
