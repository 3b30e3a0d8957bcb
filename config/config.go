// Package config loads .autoi18n.yaml.
//
// The file declares global defaults and a list of targets. Each target
// names one source catalog and an output path pattern containing {lang}.
// Settings a target leaves unset are inherited from the top level.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/minios-linux/autoi18n/batch"
	"github.com/minios-linux/autoi18n/mask"
	"github.com/minios-linux/autoi18n/reconcile"
)

// FileName is the default config file name.
const FileName = ".autoi18n.yaml"

// LangPlaceholder is replaced by the target language in output paths.
const LangPlaceholder = "{lang}"

// DefaultPlaceholderRule matches {{interpolation}} placeholders. It is the
// default for both exclude and reserve.
const DefaultPlaceholderRule = `/\{\{.+?}}/`

// ---------------------------------------------------------------------------
// YAML schema
// ---------------------------------------------------------------------------

// File is the top-level .autoi18n.yaml structure.
type File struct {
	// SourceLang is the source language code (default "en").
	SourceLang string `yaml:"source_lang,omitempty"`
	// ToolsLang is the language of autoi18n's own messages.
	ToolsLang string `yaml:"tools_lang,omitempty"`
	// Languages is the default target language list.
	Languages []string `yaml:"languages,omitempty"`

	Mode          string   `yaml:"mode,omitempty"`
	Strategy      string   `yaml:"strategy,omitempty"`
	Delay         Duration `yaml:"delay,omitempty"`
	ChunkSize     int      `yaml:"chunk_size,omitempty"`
	MergeBudget   int      `yaml:"merge_budget,omitempty"`
	MaxConcurrent int      `yaml:"max_concurrent,omitempty"`

	// Rule lists. A nil list takes the default; an empty list disables it.
	CopyThrough []string `yaml:"copy_through,omitempty"`
	Exclude     []string `yaml:"exclude,omitempty"`
	Reserve     []string `yaml:"reserve,omitempty"`

	Provider Provider `yaml:"provider,omitempty"`
	// Lock enables autoi18n.lock (default true).
	Lock *bool `yaml:"lock,omitempty"`

	Targets []Target `yaml:"targets"`

	path string
}

// Provider selects and tunes the translation backend.
type Provider struct {
	ID         string   `yaml:"id,omitempty"`
	Model      string   `yaml:"model,omitempty"`
	BaseURL    string   `yaml:"base_url,omitempty"`
	Proxy      string   `yaml:"proxy,omitempty"`
	Timeout    Duration `yaml:"timeout,omitempty"`
	MaxRetries int      `yaml:"max_retries,omitempty"`
	// Prompt replaces the default system prompt.
	Prompt string `yaml:"prompt,omitempty"`
}

// Target is one source catalog and its translations.
type Target struct {
	// Name is shown in logs (default: base name of Input).
	Name string `yaml:"name,omitempty"`
	// Input is the source catalog path, relative to the config file.
	Input string `yaml:"input"`
	// Output is the output path pattern; it must contain {lang} unless the
	// target has a single language.
	Output string `yaml:"output"`

	SourceLang  string   `yaml:"source_lang,omitempty"`
	Languages   []string `yaml:"languages,omitempty"`
	Mode        string   `yaml:"mode,omitempty"`
	Strategy    string   `yaml:"strategy,omitempty"`
	Delay       Duration `yaml:"delay,omitempty"`
	ChunkSize   int      `yaml:"chunk_size,omitempty"`
	MergeBudget int      `yaml:"merge_budget,omitempty"`
	CopyThrough []string `yaml:"copy_through,omitempty"`
	Exclude     []string `yaml:"exclude,omitempty"`
	Reserve     []string `yaml:"reserve,omitempty"`
	Prompt      string   `yaml:"prompt,omitempty"`
}

// Duration is a time.Duration written as "1500ms", "2s" or a plain number
// of milliseconds.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(n *yaml.Node) error {
	var s string
	if err := n.Decode(&s); err != nil {
		return err
	}
	v, err := ParseDuration(s)
	if err != nil {
		return fmt.Errorf("line %d: %w", n.Line, err)
	}
	*d = Duration(v)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// ParseDuration accepts Go durations and plain milliseconds.
func ParseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	if ms, err := strconv.Atoi(s); err == nil {
		if ms < 0 {
			return 0, fmt.Errorf("negative duration %q", s)
		}
		return time.Duration(ms) * time.Millisecond, nil
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q", s)
	}
	if v < 0 {
		return 0, fmt.Errorf("negative duration %q", s)
	}
	return v, nil
}

// ---------------------------------------------------------------------------
// Loading
// ---------------------------------------------------------------------------

// Load reads FileName from dir. It returns nil when the file does not exist.
func Load(dir string) (*File, error) {
	f, err := LoadFile(filepath.Join(dir, FileName))
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	return f, err
}

// LoadFile reads and validates the config file at path.
func LoadFile(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	var f File
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	if err := f.Validate(path); err != nil {
		return nil, err
	}
	return &f, nil
}

// Path returns the file the config was loaded from, or "" for a config
// built in memory.
func (f *File) Path() string { return f.path }

// LockEnabled reports whether autoi18n.lock is used.
func (f *File) LockEnabled() bool {
	return f.Lock == nil || *f.Lock
}

// Validate applies defaults, pushes global settings into every target and
// checks the result. path is used in error messages; when it names a file,
// relative target paths are resolved against its directory.
func (f *File) Validate(path string) error {
	f.path = path

	if f.SourceLang == "" {
		f.SourceLang = "en"
	}
	if f.ChunkSize == 0 {
		f.ChunkSize = batch.DefaultChunkSize
	}
	if f.MergeBudget == 0 {
		f.MergeBudget = batch.DefaultBudget
	}
	if f.MaxConcurrent == 0 {
		f.MaxConcurrent = 1
	}
	if f.Exclude == nil {
		f.Exclude = []string{DefaultPlaceholderRule}
	}
	if f.Reserve == nil {
		f.Reserve = []string{DefaultPlaceholderRule}
	}
	if f.ChunkSize < 0 || f.MergeBudget < 0 || f.MaxConcurrent < 0 {
		return fmt.Errorf("%s: chunk_size, merge_budget and max_concurrent must be positive", path)
	}
	if f.Provider.MaxRetries < 0 {
		return fmt.Errorf("%s: provider.max_retries must not be negative", path)
	}
	if _, err := reconcile.ParseMode(f.Mode); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	if _, err := reconcile.ParseStrategy(f.Strategy); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}

	if len(f.Targets) == 0 {
		return fmt.Errorf("%s: no targets defined", path)
	}
	names := make(map[string]bool, len(f.Targets))
	for i := range f.Targets {
		t := &f.Targets[i]
		if t.Input == "" {
			return fmt.Errorf("%s: target #%d has no input", path, i+1)
		}
		if t.Name == "" {
			t.Name = filepath.Base(t.Input)
		}
		if names[t.Name] {
			return fmt.Errorf("%s: duplicate target name %q", path, t.Name)
		}
		names[t.Name] = true
		if t.Output == "" {
			return fmt.Errorf("%s: target %q has no output", path, t.Name)
		}
		f.inherit(t)

		if !strings.Contains(t.Output, LangPlaceholder) && len(t.Languages) > 1 {
			return fmt.Errorf("%s: target %q: output must contain %s when translating to several languages", path, t.Name, LangPlaceholder)
		}
		if t.ChunkSize < 0 || t.MergeBudget < 0 {
			return fmt.Errorf("%s: target %q: chunk_size and merge_budget must be positive", path, t.Name)
		}
		if _, err := reconcile.ParseMode(t.Mode); err != nil {
			return fmt.Errorf("%s: target %q: %w", path, t.Name, err)
		}
		if _, err := reconcile.ParseStrategy(t.Strategy); err != nil {
			return fmt.Errorf("%s: target %q: %w", path, t.Name, err)
		}
		for _, set := range []struct {
			key   string
			rules []string
		}{
			{"copy_through", t.CopyThrough},
			{"exclude", t.Exclude},
			{"reserve", t.Reserve},
		} {
			if _, err := mask.ParseRules(set.rules); err != nil {
				return fmt.Errorf("%s: target %q: %s: %w", path, t.Name, set.key, err)
			}
		}
	}
	return nil
}

func (f *File) inherit(t *Target) {
	if t.SourceLang == "" {
		t.SourceLang = f.SourceLang
	}
	if len(t.Languages) == 0 {
		t.Languages = f.Languages
	}
	if t.Mode == "" {
		t.Mode = f.Mode
	}
	if t.Strategy == "" {
		t.Strategy = f.Strategy
	}
	if t.Delay == 0 {
		t.Delay = f.Delay
	}
	if t.ChunkSize == 0 {
		t.ChunkSize = f.ChunkSize
	}
	if t.MergeBudget == 0 {
		t.MergeBudget = f.MergeBudget
	}
	if t.CopyThrough == nil {
		t.CopyThrough = f.CopyThrough
	}
	if t.Exclude == nil {
		t.Exclude = f.Exclude
	}
	if t.Reserve == nil {
		t.Reserve = f.Reserve
	}
	if t.Prompt == "" {
		t.Prompt = f.Provider.Prompt
	}
}

// Codec builds the masking codec for translating into lang.
func (t *Target) Codec(lang string) (mask.Codec, error) {
	c := mask.Codec{Joiner: mask.JoinerFor(lang)}
	var err error
	if c.CopyThrough, err = mask.ParseRules(t.CopyThrough); err != nil {
		return c, fmt.Errorf("copy_through: %w", err)
	}
	if c.Exclude, err = mask.ParseRules(t.Exclude); err != nil {
		return c, fmt.Errorf("exclude: %w", err)
	}
	if c.Reserve, err = mask.ParseRules(t.Reserve); err != nil {
		return c, fmt.Errorf("reserve: %w", err)
	}
	return c, nil
}
