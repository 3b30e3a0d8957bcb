package reconcile

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/minios-linux/autoi18n/batch"
	"github.com/minios-linux/autoi18n/fileio"
	"github.com/minios-linux/autoi18n/i18n"
	"github.com/minios-linux/autoi18n/literal"
	"github.com/minios-linux/autoi18n/mask"
	"github.com/minios-linux/autoi18n/merge"
	"github.com/minios-linux/autoi18n/translate"
	"github.com/minios-linux/autoi18n/tree"
)

// engine carries the state of one run.
type engine struct {
	opts   Options
	tr     translate.Translator
	codec  mask.Codec
	source *literal.Document
	// created is true when the output did not exist when the run started.
	created bool
	target  string
	res     Result
}

// Run reconciles opts.Output with opts.Input, translating through tr.
// Every finished batch is written before the next one starts; on error the
// returned Result still describes what was written.
func Run(ctx context.Context, tr translate.Translator, opts Options) (Result, error) {
	e := &engine{
		opts:  opts,
		tr:    tr,
		codec: opts.codec(),
		res:   Result{Output: opts.Output},
	}
	if opts.Lock != nil {
		e.target = opts.Lock.TargetKey(opts.Output)
	}

	// Extract source
	src, err := readSource(opts.Input)
	if err != nil {
		opts.logError("%s\n path ---> %s\n%v", i18n.T("Failed to read the source file"), opts.Input, err)
		return e.res, err
	}
	e.source = src
	e.res.Source = tree.Leaves(src.Tree)
	if e.res.Source == 0 {
		opts.log(i18n.T("Source file has no translatable entries: %s"), opts.Input)
		e.res.Status = StatusEmptySource
		return e.res, nil
	}

	// Existing output, parsed up front so a file we cannot merge into
	// stops the run before any translator call.
	out, err := readOutput(opts.Output)
	if err != nil {
		opts.logError("%s\n path ---> %s\n%v", i18n.T("Failed to parse the output file"), opts.Output, err)
		return e.res, err
	}
	e.created = out == nil

	todo := e.selectLeaves(out)
	e.res.Leaves = tree.Leaves(todo)
	if e.res.Leaves == 0 {
		e.res.Status = StatusUpToDate
		opts.log(i18n.T("No new keys for %s"), opts.To)
		return e.res, e.finishLock()
	}

	if e.opts.effectiveStrategy() == StrategyChunk {
		err = e.runChunks(ctx, todo)
	} else {
		err = e.runMerged(ctx, todo)
	}
	if err != nil {
		return e.res, err
	}

	switch {
	case opts.DryRun:
		e.res.Status = StatusDryRun
		opts.log(i18n.T("Dry run: %d leaves in %d batches for %s"), e.res.Leaves, e.res.Batches, opts.Output)
		return e.res, nil
	case e.created:
		e.res.Status = StatusCreated
		opts.log("%s --> %s", i18n.T("Created"), opts.Output)
	default:
		e.res.Status = StatusPatched
		opts.log("%s --> %s", i18n.T("Patched"), opts.Output)
	}
	return e.res, e.finishLock()
}

func readSource(path string) (*literal.Document, error) {
	text, exists, err := fileio.Read(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSourceRead, err)
	}
	if !exists {
		return nil, fmt.Errorf("%w: %s does not exist", ErrSourceRead, path)
	}
	doc, err := literal.Parse(text, literal.OptionsFor(path))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSourceParse, err)
	}
	return doc, nil
}

// readOutput returns nil for a missing or blank output file.
func readOutput(path string) (*literal.Document, error) {
	text, exists, err := fileio.Read(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrOutputParse, err)
	}
	if !exists || strings.TrimSpace(text) == "" {
		return nil, nil
	}
	doc, err := literal.Parse(text, literal.OptionsFor(path))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrOutputParse, err)
	}
	return doc, nil
}

// selectLeaves returns the source leaves this run translates.
func (e *engine) selectLeaves(out *literal.Document) *tree.Tree {
	src := e.source.Tree
	if e.opts.effectiveMode() == ModeFull || out == nil {
		return textOnly(src)
	}
	todo := merge.Pending(src, out.Tree)
	if lf := e.opts.Lock; lf != nil {
		changed := merge.Changed(src, func(path, value string) bool {
			key := lockKey(path)
			if !lf.Tracks(e.target, key) || !lf.IsChanged(e.target, key, value) {
				return false
			}
			// Only paths the output already holds as text; the rest are
			// pending anyway or belong to the file's author.
			n, ok := out.Tree.Lookup(path)
			return ok && n.IsText()
		})
		if changed.Len() > 0 {
			n := tree.Leaves(changed)
			e.opts.log(i18n.N("%d changed source value for %s", "%d changed source values for %s", n), n, e.opts.To)
			todo = merge.Align(merge.Merge(todo, changed), src)
		}
	}
	return todo
}

func textOnly(t *tree.Tree) *tree.Tree {
	return tree.Unflatten(tree.Flatten(t))
}

// ---------------------------------------------------------------------------
// Merge strategy
// ---------------------------------------------------------------------------

func (e *engine) runMerged(ctx context.Context, todo *tree.Tree) error {
	batches := batch.ByBudget(tree.Flatten(todo), e.opts.effectiveBudget())
	e.res.Batches = len(batches)

	if e.opts.DryRun {
		for i, b := range batches {
			e.opts.log(i18n.T("batch %d/%d: %d leaves, size %d"), i+1, len(batches), b.Len(), b.Size())
		}
		return nil
	}

	done := 0
	for i, b := range batches {
		if err := ctx.Err(); err != nil {
			return err
		}
		results, err := e.translateBatch(ctx, b)
		if err != nil {
			return err
		}
		if err := e.flush(tree.Unflatten(results)); err != nil {
			return err
		}
		done += b.Len()
		e.opts.log(i18n.T("batch %d/%d written (%d leaves)"), i+1, len(batches), b.Len())
		if e.opts.OnProgress != nil {
			e.opts.OnProgress(e.opts.To, done, e.res.Leaves)
		}
		if i < len(batches)-1 {
			if err := e.pause(ctx); err != nil {
				return err
			}
		}
	}
	return nil
}

// translateBatch sends the batch's translatable leaves as one joined text.
// Leaves that contain the joiner themselves are sent on their own.
func (e *engine) translateBatch(ctx context.Context, b batch.Batch) (*tree.PathMap, error) {
	j := e.codec.Joiner
	results := make(map[string]string, b.Len())

	var keys, values []string
	for i, k := range b.Keys {
		v := b.Values[i]
		switch {
		case e.codec.Untranslatable(v):
			results[k] = v
			e.res.Copied++
			e.logLeaf(v, v, true)
		case j.Contains(v):
			out, err := e.translateLeaf(ctx, v)
			if err != nil {
				return nil, err
			}
			results[k] = out
			e.logLeaf(v, out, false)
		default:
			keys = append(keys, k)
			values = append(values, v)
		}
	}

	if len(values) > 0 {
		masked, rec := e.codec.Mask(j.Join(values))
		translated, err := e.call(ctx, masked)
		if err != nil {
			return nil, err
		}
		e.warnMissing(rec, translated)
		parts := j.Split(rec.Restore(translated), len(values))
		if len(parts) != len(values) {
			err := &SegmentMismatchError{
				Lang:          e.opts.To,
				Want:          len(values),
				Got:           len(parts),
				InputPreview:  preview(values),
				OutputPreview: preview(parts),
			}
			e.opts.logError("%s %s", i18n.T("Merged translation returned a different number of values for"), e.opts.To)
			e.opts.logError("input values length: %d --- output values length: %d", err.Want, err.Got)
			e.opts.logError("input values ---> %s\n output values ---> %s", err.InputPreview, err.OutputPreview)
			return nil, err
		}
		for i, k := range keys {
			out := keepEdges(values[i], parts[i])
			results[k] = out
			e.logLeaf(values[i], out, false)
		}
	}

	pm := tree.NewPathMap()
	for _, k := range b.Keys {
		pm.Set(k, results[k])
	}
	return pm, nil
}

// ---------------------------------------------------------------------------
// Chunk strategy
// ---------------------------------------------------------------------------

func (e *engine) runChunks(ctx context.Context, todo *tree.Tree) error {
	groups := batch.ByCount(tree.Fragments(todo), e.opts.effectiveChunkSize())
	e.res.Batches = len(groups)

	if e.opts.DryRun {
		for i, g := range groups {
			e.opts.log(i18n.T("group %d/%d: %d leaves"), i+1, len(groups), tree.Leaves(g))
		}
		return nil
	}

	done := 0
	for _, g := range groups {
		flat := tree.Flatten(g)
		results := tree.NewPathMap()
		for _, k := range flat.Keys() {
			v, _ := flat.Get(k)
			if e.codec.Untranslatable(v) {
				results.Set(k, v)
				e.res.Copied++
				e.logLeaf(v, v, true)
				continue
			}
			out, err := e.translateLeaf(ctx, v)
			if err != nil {
				return err
			}
			results.Set(k, out)
			e.logLeaf(v, out, false)
			if err := e.pause(ctx); err != nil {
				return err
			}
		}
		if err := e.flush(tree.Unflatten(results)); err != nil {
			return err
		}
		done += flat.Len()
		if e.opts.OnProgress != nil {
			e.opts.OnProgress(e.opts.To, done, e.res.Leaves)
		}
	}
	return nil
}

func (e *engine) pause(ctx context.Context) error {
	if e.opts.Delay <= 0 {
		return nil
	}
	if e.opts.Verbose {
		e.opts.log("delay %dms", e.opts.Delay.Milliseconds())
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(e.opts.Delay):
		return nil
	}
}

// ---------------------------------------------------------------------------
// Single leaves and translator calls
// ---------------------------------------------------------------------------

// translateLeaf masks, translates and restores one leaf.
func (e *engine) translateLeaf(ctx context.Context, leaf string) (string, error) {
	masked, rec := e.codec.Mask(leaf)
	translated, err := e.call(ctx, masked)
	if err != nil {
		return "", err
	}
	e.warnMissing(rec, translated)
	out := rec.Restore(translated)
	if len(rec.Excluded()) > 0 {
		if got := len(e.codec.Joiner.Split(out, rec.Segments())); got != rec.Segments() {
			return "", &SegmentMismatchError{
				Lang:          e.opts.To,
				Want:          rec.Segments(),
				Got:           got,
				InputPreview:  preview([]string{leaf}),
				OutputPreview: preview([]string{translated}),
			}
		}
	}
	return keepEdges(leaf, out), nil
}

func (e *engine) call(ctx context.Context, text string) (string, error) {
	e.res.Calls++
	out, err := e.tr.Translate(ctx, text)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		e.opts.logError("%s %s: %v", i18n.T("Translation failed for"), e.opts.To, err)
		return "", fmt.Errorf("%w: %w", ErrProvider, err)
	}
	return out, nil
}

func (e *engine) warnMissing(rec *mask.Record, translated string) {
	for _, t := range rec.Missing(translated) {
		e.opts.logError(i18n.T("Placeholder %q was dropped by the translator"), t.Original)
	}
}

func (e *engine) logLeaf(from, to string, copied bool) {
	if !e.opts.Verbose {
		return
	}
	arrow := "-->"
	if copied {
		arrow = "--(with ignore copy)-->"
	}
	e.opts.log("%s: %s %s %s: %s", e.opts.From, from, arrow, e.opts.To, to)
}

// keepEdges trims the translation and gives it the source's leading and
// trailing whitespace.
func keepEdges(src, translated string) string {
	lead := src[:len(src)-len(strings.TrimLeftFunc(src, unicode.IsSpace))]
	rest := src[len(lead):]
	trail := rest[len(strings.TrimRightFunc(rest, unicode.IsSpace)):]
	return lead + strings.TrimSpace(translated) + trail
}

// ---------------------------------------------------------------------------
// Output
// ---------------------------------------------------------------------------

// flush merges results into the current output file and writes it back.
// The file is re-read every time so each write sees the previous one.
func (e *engine) flush(results *tree.Tree) error {
	path := e.opts.Output
	doc, err := readOutput(path)
	if err != nil {
		e.opts.logError("%s\n path ---> %s\n%v", i18n.T("Failed to parse the output file"), path, err)
		return err
	}
	if doc == nil {
		doc = e.newOutput()
	}

	merged := merge.Merge(doc.Tree, withoutRaw(results, doc.Tree))
	if e.created {
		merged = merge.Align(merged, e.source.Tree)
	}
	data := literal.Format(&literal.Document{Prefix: doc.Prefix, Tree: merged, Suffix: doc.Suffix}, literal.StyleFor(path))
	if err := fileio.WriteAtomic(path, data, 0o644); err != nil {
		e.opts.logError("%s %s: %v", i18n.T("Failed to write"), path, err)
		return fmt.Errorf("%w: %w", ErrOutputWrite, err)
	}
	if lf := e.opts.Lock; lf != nil {
		entries := make(map[string]string)
		flat := tree.Flatten(results)
		for _, k := range flat.Keys() {
			// Checksums track the source value, not the translation.
			if n, ok := e.source.Tree.Lookup(k); ok && n.IsText() {
				entries[lockKey(k)] = n.Text
			}
		}
		lf.UpdateBatch(e.target, entries)
		if err := lf.Save(); err != nil {
			e.opts.logError("%v", err)
		}
	}
	return nil
}

// newOutput builds the document for an output file that does not exist
// yet. It reuses the source's surroundings and raw entries when both files
// share a syntax.
func (e *engine) newOutput() *literal.Document {
	style := literal.StyleFor(e.opts.Output)
	if style != literal.StyleFor(e.opts.Input) {
		return literal.NewDocument(tree.New(), style)
	}
	return &literal.Document{
		Prefix: e.source.Prefix,
		Tree:   merge.Skeleton(e.source.Tree),
		Suffix: e.source.Suffix,
	}
}

// withoutRaw drops results whose path holds a raw entry in existing.
func withoutRaw(results, existing *tree.Tree) *tree.Tree {
	out := tree.New()
	for _, k := range results.Keys() {
		n, _ := results.Get(k)
		cur, ok := existing.Get(k)
		switch {
		case ok && cur.IsRaw():
			continue
		case ok && cur.IsBranch() && n.IsBranch():
			out.Set(k, tree.Branch(withoutRaw(n.Tree, cur.Tree)))
		default:
			out.Set(k, n)
		}
	}
	return out
}

// finishLock records baseline checksums for source leaves the output
// already holds and forgets keys the source no longer has.
func (e *engine) finishLock() error {
	lf := e.opts.Lock
	if lf == nil || e.opts.DryRun {
		return nil
	}
	out, err := readOutput(e.opts.Output)
	if err != nil || out == nil {
		return nil
	}
	flat := tree.Flatten(e.source.Tree)
	entries := make(map[string]string)
	keys := make([]string, 0, flat.Len())
	for _, k := range flat.Keys() {
		v, _ := flat.Get(k)
		keys = append(keys, lockKey(k))
		if n, ok := out.Tree.Lookup(k); ok && n.IsText() {
			entries[lockKey(k)] = v
		}
	}
	added := lf.Adopt(e.target, entries)
	removed := lf.Clean(e.target, keys)
	if added == 0 && removed == 0 {
		return nil
	}
	if err := lf.Save(); err != nil {
		return fmt.Errorf("%w: %w", ErrOutputWrite, err)
	}
	return nil
}

// lockKey renders a flat path as a lock file key. Dots and backslashes
// inside a key are escaped so "a.b" and a → b stay distinct.
func lockKey(path string) string {
	parts := strings.Split(path, tree.Sep)
	for i, p := range parts {
		parts[i] = lockKeyEscaper.Replace(p)
	}
	return strings.Join(parts, ".")
}

var lockKeyEscaper = strings.NewReplacer(`\`, `\\`, ".", `\.`)

// IsNoOp reports whether err is nil and res describes a run that wrote
// nothing.
func IsNoOp(res Result, err error) bool {
	if err != nil {
		return false
	}
	return res.Status == StatusUpToDate || res.Status == StatusEmptySource || res.Status == StatusDryRun
}
