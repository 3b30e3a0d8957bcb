package main

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/minios-linux/autoi18n/i18n"
)

// defaultDebounce is how long a source file must stay quiet before it is
// translated again.
const defaultDebounce = 500 * time.Millisecond

func newWatchCmd() *cobra.Command {
	var (
		f        translateFlags
		debounce time.Duration
	)

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Translate again whenever a source catalog changes",
		Long: `Run one translate pass, then keep watching the source catalogs and
translate the affected target each time one of them is saved. Stop with
Ctrl-C.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext()
			defer cancel()

			p, err := buildPlan(cmd.Flags(), &f)
			if err != nil {
				return err
			}
			if err := p.run(ctx, &f); err != nil {
				logError("%v", err)
			}

			var inputs []string
			for _, rt := range p.targets {
				inputs = append(inputs, rt.InputPath)
			}
			logInfo(i18n.N("Watching %d source file", "Watching %d source files", len(inputs)), len(inputs))

			return watchInputs(ctx, inputs, debounce, func(path string) {
				logInfo(i18n.T("Changed: %s"), path)
				if err := p.only(path).run(ctx, &f); err != nil {
					logError("%v", err)
				}
			}, nil)
		},
	}
	addTranslateFlags(cmd.Flags(), &f)
	cmd.Flags().DurationVar(&debounce, "debounce", defaultDebounce, "Quiet period before a changed file is translated")
	registerCompletions(cmd)
	return cmd
}

// only returns a copy of p restricted to the targets reading input.
func (p *plan) only(input string) *plan {
	sub := *p
	sub.targets = nil
	for _, rt := range p.targets {
		if rt.InputPath == input {
			sub.targets = append(sub.targets, rt)
		}
	}
	return &sub
}

// watchInputs calls onChange with the path of every file in paths that is
// created or written, once it has been quiet for debounce. Directories
// are watched rather than files so editors that save by renaming are
// seen too. onChange runs on the calling goroutine, one call at a time.
//
// If ready is non-nil, a value is sent once the watcher is set up.
func watchInputs(ctx context.Context, paths []string, debounce time.Duration, onChange func(path string), ready chan<- struct{}) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer watcher.Close()

	wanted := make(map[string]bool, len(paths))
	dirs := make(map[string]bool)
	for _, p := range paths {
		p = filepath.Clean(p)
		wanted[p] = true
		dirs[filepath.Dir(p)] = true
	}
	for dir := range dirs {
		if err := watcher.Add(dir); err != nil {
			return fmt.Errorf("watching %s: %w", dir, err)
		}
	}

	if ready != nil {
		ready <- struct{}{}
	}

	db := newDebouncer(ctx, debounce)
	defer db.stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			name := filepath.Clean(event.Name)
			if !wanted[name] || event.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			db.touch(name)
		case tk := <-db.fire:
			if db.due(tk) {
				onChange(tk.name)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logWarning("watch: %v", err)
		}
	}
}

// tick is a debounce timer firing for one generation of a path.
type tick struct {
	name string
	gen  int
}

// debouncer restarts a path's timer on every touch. Every touch bumps the
// path's generation, and a timer that fires for an older generation is
// not due.
type debouncer struct {
	ctx    context.Context
	delay  time.Duration
	fire   chan tick
	gens   map[string]int
	timers map[string]*time.Timer
}

func newDebouncer(ctx context.Context, delay time.Duration) *debouncer {
	return &debouncer{
		ctx:    ctx,
		delay:  delay,
		fire:   make(chan tick),
		gens:   make(map[string]int),
		timers: make(map[string]*time.Timer),
	}
}

func (d *debouncer) touch(name string) {
	if t, ok := d.timers[name]; ok {
		t.Stop()
	}
	d.gens[name]++
	tk := tick{name: name, gen: d.gens[name]}
	d.timers[name] = time.AfterFunc(d.delay, func() {
		select {
		case d.fire <- tk:
		case <-d.ctx.Done():
		}
	})
}

// due reports whether tk belongs to the latest touch of its path.
func (d *debouncer) due(tk tick) bool {
	if tk.gen != d.gens[tk.name] {
		return false
	}
	delete(d.timers, tk.name)
	return true
}

func (d *debouncer) stop() {
	for _, t := range d.timers {
		t.Stop()
	}
}
