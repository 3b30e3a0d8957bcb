package mask

import (
	"fmt"
	"regexp"
	"strings"
)

type ruleKind int

const (
	ruleExact ruleKind = iota
	ruleRegexp
	ruleFunc
)

// Rule matches text by exact string, regular expression, or predicate.
type Rule struct {
	kind  ruleKind
	exact string
	re    *regexp.Regexp
	fn    func(string) bool
	name  string
}

// Exact returns a rule matching the literal string s. An empty s never
// matches.
func Exact(s string) Rule {
	return Rule{kind: ruleExact, exact: s}
}

// Regexp returns a rule matching re anywhere in the text.
func Regexp(re *regexp.Regexp) Rule {
	return Rule{kind: ruleRegexp, re: re}
}

// MustRegexp compiles expr and panics on error.
func MustRegexp(expr string) Rule {
	return Regexp(regexp.MustCompile(expr))
}

// Func returns a rule backed by a predicate. As a reservation rule it
// covers the whole segment when the predicate holds.
func Func(name string, fn func(string) bool) Rule {
	return Rule{kind: ruleFunc, fn: fn, name: name}
}

// ParseRule converts a configuration string into a rule. Strings written as
// /expr/flags become regular expressions (flags i, m, s; g and u are
// accepted and ignored). Anything else is an exact match.
func ParseRule(s string) (Rule, error) {
	if len(s) < 2 || s[0] != '/' {
		return Exact(s), nil
	}
	end := strings.LastIndexByte(s, '/')
	if end == 0 {
		return Exact(s), nil
	}
	expr, flags := s[1:end], s[end+1:]

	var inline strings.Builder
	for _, f := range flags {
		switch f {
		case 'i', 'm', 's':
			inline.WriteRune(f)
		case 'g', 'u':
		default:
			return Rule{}, fmt.Errorf("rule %q: unsupported flag %q", s, f)
		}
	}
	if inline.Len() > 0 {
		expr = "(?" + inline.String() + ")" + expr
	}
	re, err := regexp.Compile(expr)
	if err != nil {
		return Rule{}, fmt.Errorf("rule %q: %w", s, err)
	}
	return Regexp(re), nil
}

// ParseRules converts every string with ParseRule.
func ParseRules(items []string) ([]Rule, error) {
	rules := make([]Rule, 0, len(items))
	for _, s := range items {
		r, err := ParseRule(s)
		if err != nil {
			return nil, err
		}
		rules = append(rules, r)
	}
	return rules, nil
}

func (r Rule) String() string {
	switch r.kind {
	case ruleRegexp:
		return "/" + r.re.String() + "/"
	case ruleFunc:
		if r.name != "" {
			return r.name
		}
		return "func"
	}
	return r.exact
}

// Match reports whether s matches the rule as a whole: exact equality, a
// regular expression match anywhere, or the predicate holding.
func (r Rule) Match(s string) bool {
	switch r.kind {
	case ruleRegexp:
		return r.re != nil && r.re.MatchString(s)
	case ruleFunc:
		return r.fn != nil && r.fn(s)
	}
	return r.exact != "" && r.exact == s
}

// Locate returns the byte spans of every occurrence of the rule in s.
func (r Rule) Locate(s string) [][2]int {
	var spans [][2]int
	switch r.kind {
	case ruleRegexp:
		if r.re == nil {
			return nil
		}
		for _, loc := range r.re.FindAllStringIndex(s, -1) {
			if loc[1] > loc[0] {
				spans = append(spans, [2]int{loc[0], loc[1]})
			}
		}
	case ruleFunc:
		if s != "" && r.fn != nil && r.fn(s) {
			spans = append(spans, [2]int{0, len(s)})
		}
	default:
		if r.exact == "" {
			return nil
		}
		off := 0
		for {
			i := strings.Index(s[off:], r.exact)
			if i < 0 {
				break
			}
			start := off + i
			spans = append(spans, [2]int{start, start + len(r.exact)})
			off = start + len(r.exact)
		}
	}
	return spans
}

func matchAny(rules []Rule, s string) bool {
	for _, r := range rules {
		if r.Match(s) {
			return true
		}
	}
	return false
}
