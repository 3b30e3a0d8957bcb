// Package mask protects parts of a string from a machine translator and
// restores them afterwards.
//
// A leaf is cut into segments on the joiner separator. Segments matched by
// an exclusion rule are replaced with a sentinel; substrings matched by a
// reservation rule are replaced with tokens of the form
//
//	A{k}R0Z{segment}A{k}R1Z{match}A{k}R2Z
//
// where k is the smallest salt whose marker does not occur in the leaf.
// Unmask puts everything back, whatever the translator did to the rest.
package mask

import (
	"fmt"
	"sort"
	"strings"
)

// Sentinel replaces an excluded segment in the masked text.
const Sentinel = "-"

// Codec holds the rule sets applied to every leaf.
type Codec struct {
	Joiner Joiner
	// CopyThrough rules match whole leaves that skip translation entirely.
	CopyThrough []Rule
	// Exclude rules match segments replaced by Sentinel.
	Exclude []Rule
	// Reserve rules match substrings that must survive verbatim.
	Reserve []Rule
}

// Token maps a placeholder to the text it replaced.
type Token struct {
	Token    string
	Original string
}

// Record holds what Mask replaced in one leaf.
type Record struct {
	joiner   Joiner
	segments int
	excluded map[int]string
	tokens   []Token
}

// Segments returns the number of segments the leaf was cut into.
func (r *Record) Segments() int { return r.segments }

// Excluded returns the original text of excluded segments by index.
func (r *Record) Excluded() map[int]string { return r.excluded }

// Tokens returns the reservation tokens in the order they were created.
func (r *Record) Tokens() []Token { return r.tokens }

// Missing lists tokens that do not occur in s.
func (r *Record) Missing(s string) []Token {
	var out []Token
	for _, t := range r.tokens {
		if !strings.Contains(s, t.Token) {
			out = append(out, t)
		}
	}
	return out
}

// Empty reports whether nothing was masked.
func (r *Record) Empty() bool {
	return len(r.excluded) == 0 && len(r.tokens) == 0
}

func (c Codec) joiner() Joiner {
	if c.Joiner.Sep == "" || c.Joiner.Pattern == nil {
		return DefaultJoiner
	}
	return c.Joiner
}

// Bypass reports whether leaf is copied through without translation.
func (c Codec) Bypass(leaf string) bool {
	return matchAny(c.CopyThrough, leaf)
}

// Untranslatable reports whether leaf is copied to the output as is:
// it is blank, matches a copy-through rule, or every non-empty segment
// matches an exclusion rule.
func (c Codec) Untranslatable(leaf string) bool {
	if strings.TrimSpace(leaf) == "" || c.Bypass(leaf) {
		return true
	}
	if len(c.Exclude) == 0 {
		return false
	}
	for _, seg := range strings.Split(leaf, c.joiner().Sep) {
		if seg != "" && !matchAny(c.Exclude, seg) {
			return false
		}
	}
	return true
}

// Mask returns the text to send to the translator and the record needed to
// undo the substitutions.
func (c Codec) Mask(leaf string) (string, *Record) {
	j := c.joiner()
	segs := strings.Split(leaf, j.Sep)
	rec := &Record{
		joiner:   j,
		segments: len(segs),
		excluded: make(map[int]string),
	}
	salt := pickSalt(leaf)

	for i, seg := range segs {
		if seg == "" {
			continue
		}
		if matchAny(c.Exclude, seg) {
			rec.excluded[i] = seg
			segs[i] = Sentinel
			continue
		}
		segs[i] = c.reserve(seg, i, salt, rec)
	}
	return strings.Join(segs, j.Sep), rec
}

// reserve replaces every reservation match in seg with a token. Where
// matches overlap, the earlier rule wins, then the leftmost match.
func (c Codec) reserve(seg string, idx, salt int, rec *Record) string {
	var spans [][2]int
	for _, r := range c.Reserve {
		for _, sp := range r.Locate(seg) {
			if !overlapsAny(spans, sp) {
				spans = append(spans, sp)
			}
		}
	}
	if len(spans) == 0 {
		return seg
	}
	sort.Slice(spans, func(a, b int) bool { return spans[a][0] < spans[b][0] })

	var b strings.Builder
	prev := 0
	for n, sp := range spans {
		tok := fmt.Sprintf("A%dR0Z%dA%dR1Z%dA%dR2Z", salt, idx, salt, n, salt)
		rec.tokens = append(rec.tokens, Token{Token: tok, Original: seg[sp[0]:sp[1]]})
		b.WriteString(seg[prev:sp[0]])
		b.WriteString(tok)
		prev = sp[1]
	}
	b.WriteString(seg[prev:])
	return b.String()
}

// Unmask restores reserved substrings (every occurrence of each token), then
// puts excluded segments back by index.
func (c Codec) Unmask(translated string, rec *Record) string {
	return rec.Restore(translated)
}

// Restore is Unmask bound to the record.
func (r *Record) Restore(translated string) string {
	out := translated
	for _, t := range r.tokens {
		out = strings.ReplaceAll(out, t.Token, t.Original)
	}
	if len(r.excluded) == 0 {
		return out
	}
	parts := r.joiner.Split(out, r.segments)
	if len(parts) != r.segments {
		// Segment structure was lost; callers detect this when they split
		// the result themselves.
		return out
	}
	for i, orig := range r.excluded {
		parts[i] = orig
	}
	return r.joiner.Join(parts)
}

func overlapsAny(spans [][2]int, sp [2]int) bool {
	for _, s := range spans {
		if sp[0] < s[1] && s[0] < sp[1] {
			return true
		}
	}
	return false
}

func pickSalt(leaf string) int {
	for k := 0; ; k++ {
		if !strings.Contains(leaf, fmt.Sprintf("A%dR0Z", k)) {
			return k
		}
	}
}
