package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"golang.org/x/text/language"

	"github.com/minios-linux/autoi18n/reconcile"
)

// ResolvedTarget is a target with absolute paths and a language list.
type ResolvedTarget struct {
	Target
	// InputPath is the absolute source catalog path.
	InputPath string
	// OutputPattern is the absolute output path pattern.
	OutputPattern string
}

// Resolve makes target paths absolute against baseDir. Targets without
// languages get the languages of output files that already exist.
func (f *File) Resolve(baseDir string) ([]ResolvedTarget, error) {
	absBase, err := filepath.Abs(baseDir)
	if err != nil {
		return nil, err
	}

	var out []ResolvedTarget
	for _, t := range f.Targets {
		rt := ResolvedTarget{
			Target:        t,
			InputPath:     absPath(absBase, t.Input),
			OutputPattern: absPath(absBase, t.Output),
		}
		if len(rt.Languages) == 0 {
			rt.Languages = DetectLanguages(rt.OutputPattern, rt.SourceLang)
		}
		if len(rt.Languages) == 0 {
			return nil, fmt.Errorf("target %q: no languages configured and none found at %s", t.Name, rt.OutputPattern)
		}
		for _, lang := range rt.Languages {
			if rt.OutputPath(lang) == rt.InputPath {
				return nil, fmt.Errorf("target %q: output for %s is the input file", t.Name, lang)
			}
		}
		out = append(out, rt)
	}
	return out, nil
}

func absPath(base, p string) string {
	if filepath.IsAbs(p) {
		return filepath.Clean(p)
	}
	return filepath.Join(base, p)
}

// OutputPath returns the output file for lang.
func (rt *ResolvedTarget) OutputPath(lang string) string {
	return strings.ReplaceAll(rt.OutputPattern, LangPlaceholder, lang)
}

// Options returns the engine options for translating into lang. Lock,
// DryRun, Verbose and callbacks are left to the caller.
func (rt *ResolvedTarget) Options(lang string) (reconcile.Options, error) {
	mode, err := reconcile.ParseMode(rt.Mode)
	if err != nil {
		return reconcile.Options{}, err
	}
	strategy, err := reconcile.ParseStrategy(rt.Strategy)
	if err != nil {
		return reconcile.Options{}, err
	}
	codec, err := rt.Codec(lang)
	if err != nil {
		return reconcile.Options{}, fmt.Errorf("target %q: %w", rt.Name, err)
	}
	return reconcile.Options{
		Input:     rt.InputPath,
		Output:    rt.OutputPath(lang),
		From:      rt.SourceLang,
		To:        lang,
		Mode:      mode,
		Strategy:  strategy,
		ChunkSize: rt.ChunkSize,
		Budget:    rt.MergeBudget,
		Delay:     time.Duration(rt.Delay),
		Codec:     codec,
	}, nil
}

// AllLanguages returns the sorted union of the languages of targets.
func AllLanguages(targets []ResolvedTarget) []string {
	seen := make(map[string]bool)
	var all []string
	for _, rt := range targets {
		for _, lang := range rt.Languages {
			if !seen[lang] {
				seen[lang] = true
				all = append(all, lang)
			}
		}
	}
	sort.Strings(all)
	return all
}

// ---------------------------------------------------------------------------
// Language detection
// ---------------------------------------------------------------------------

// DetectLanguages lists the languages of existing files matching pattern,
// leaving out sourceLang.
func DetectLanguages(pattern, sourceLang string) []string {
	i := strings.Index(pattern, LangPlaceholder)
	if i < 0 {
		return nil
	}
	prefix, suffix := pattern[:i], pattern[i+len(LangPlaceholder):]
	glob := escapeGlob(prefix) + "*" + strings.ReplaceAll(escapeGlob(suffix), LangPlaceholder, "*")
	matches, err := filepath.Glob(glob)
	if err != nil {
		return nil
	}

	// The language code ends where the literal text after {lang} starts.
	end := suffix
	if k := strings.Index(end, LangPlaceholder); k >= 0 {
		end = end[:k]
	}

	var langs []string
	for _, m := range matches {
		if info, err := os.Stat(m); err != nil || info.IsDir() {
			continue
		}
		rest := strings.TrimPrefix(m, prefix)
		lang := rest
		if end != "" {
			k := strings.Index(rest, end)
			if k < 0 {
				continue
			}
			lang = rest[:k]
		}
		if lang == sourceLang || !IsLangCode(lang) {
			continue
		}
		if m != strings.ReplaceAll(pattern, LangPlaceholder, lang) {
			continue
		}
		langs = append(langs, lang)
	}
	sort.Strings(langs)
	return langs
}

func escapeGlob(s string) string {
	r := strings.NewReplacer(`*`, `\*`, `?`, `\?`, `[`, `\[`)
	return r.Replace(s)
}

// IsLangCode reports whether s parses as a BCP 47 tag in either "pt-BR" or
// gettext "pt_BR" form.
func IsLangCode(s string) bool {
	if s == "" || len(s) > 16 {
		return false
	}
	_, err := language.Parse(strings.ReplaceAll(s, "_", "-"))
	return err == nil
}
