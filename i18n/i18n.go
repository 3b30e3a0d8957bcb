// Package i18n localizes autoi18n's own messages.
//
// Catalogs are gettext .po files embedded under locales/ and looked up
// through gotext. Until Init is called, T and N return their input.
package i18n

import (
	"embed"
	"os"
	"strings"

	"github.com/leonelquinteros/gotext"
)

// Layout: locales/{lang}/LC_MESSAGES/autoi18n.po
//
//go:embed all:locales
var locales embed.FS

const domain = "autoi18n"

// catalog is nil until Init finds a catalog for the language.
var catalog gotext.Translator

// Init loads the catalog for lang, or for the language named by the
// environment when lang is empty.
func Init(lang string) {
	if lang == "" {
		lang = detectLanguage()
	}

	loc := gotext.NewLocaleFSWithPath(lang, locales, "locales")
	loc.AddDomain(domain)
	catalog = loc.Domains[domain]
}

// T translates msgid, returning it unchanged when no translation exists.
// The result is a format string; it is never formatted here.
func T(msgid string) string {
	if catalog == nil {
		return msgid
	}
	return catalog.Get(msgid)
}

// N translates a message with plural forms.
func N(singular, plural string, n int) string {
	if catalog == nil {
		if n == 1 {
			return singular
		}
		return plural
	}
	return catalog.GetN(singular, plural, n)
}

// detectLanguage follows GNU gettext: LANGUAGE, LC_ALL, LC_MESSAGES, LANG.
func detectLanguage() string {
	for _, env := range []string{"LANGUAGE", "LC_ALL", "LC_MESSAGES", "LANG"} {
		val := os.Getenv(env)
		if val == "" {
			continue
		}
		if env == "LANGUAGE" {
			val, _, _ = strings.Cut(val, ":")
		}
		// "ru_RU.UTF-8" -> "ru_RU"
		if idx := strings.IndexByte(val, '.'); idx >= 0 {
			val = val[:idx]
		}
		if val == "C" || val == "POSIX" || val == "" {
			continue
		}
		return val
	}
	return "en"
}
