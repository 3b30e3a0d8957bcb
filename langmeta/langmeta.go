// Package langmeta provides language display metadata (native and English
// names, emoji flags) for prompts and CLI output.
package langmeta

import (
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

// Meta describes a language for display.
type Meta struct {
	// Code is the canonical BCP 47 form ("pt-BR").
	Code string
	// Name is the language's name for itself ("Português").
	Name string
	// English is the English name ("Brazilian Portuguese").
	English string
	// Flag is the emoji flag of the language's likely region.
	Flag string
}

func canonicalize(lang string) string {
	normalized := strings.ReplaceAll(strings.TrimSpace(lang), "_", "-")
	if normalized == "" {
		return ""
	}
	parts := strings.Split(normalized, "-")
	parts[0] = strings.ToLower(parts[0])
	if len(parts) >= 2 && len(parts[1]) == 2 {
		parts[1] = strings.ToUpper(parts[1])
	}
	return strings.Join(parts, "-")
}

// Resolve returns metadata for codes such as "de", "pt_BR" or "zh-Hant".
// Unknown codes come back with the input as every name and no flag.
func Resolve(lang string) Meta {
	code := canonicalize(lang)
	tag, err := language.Parse(code)
	if err != nil || code == "" {
		return Meta{Code: lang, Name: lang, English: lang}
	}

	m := Meta{
		Code:    tag.String(),
		Name:    display.Self.Name(tag),
		English: display.English.Tags().Name(tag),
	}
	if m.Name == "" {
		m.Name = lang
	}
	if m.English == "" {
		m.English = m.Name
	}
	if region, conf := tag.Region(); conf != language.No {
		m.Flag = Flag(region.String())
	}
	return m
}

// Flag turns a two-letter region code into its emoji flag. Other input
// gives "".
func Flag(region string) string {
	if len(region) != 2 {
		return ""
	}
	region = strings.ToUpper(region)
	var b strings.Builder
	for _, c := range region {
		if c < 'A' || c > 'Z' {
			return ""
		}
		b.WriteRune(0x1F1E6 + c - 'A')
	}
	return b.String()
}

// Label formats a language for CLI lists: "🇩🇪 de (Deutsch)".
func Label(lang string) string {
	m := Resolve(lang)
	s := lang
	if m.Name != lang {
		s += " (" + m.Name + ")"
	}
	if m.Flag != "" {
		s = m.Flag + " " + s
	}
	return s
}
