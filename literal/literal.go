// Package literal locates the object literal embedded in a catalog host
// file and converts it to a tree, keeping everything around it verbatim.
//
// A host file is either a bare JSON object or a script module in which the
// first `export` keyword precedes the object literal:
//
//	import { helper } from './helper'
//
//	export default {
//	  title: 'Settings',
//	  count: (n) => { return n + ' items' },
//	  nested: { ok: "OK", },
//	}
//
// The accepted surface is JSON plus unquoted and numeric keys, single,
// double and backtick quoted strings, trailing commas, and comments between
// entries. String values become text leaves, objects become branches, and
// any other value (functions, numbers, arrays, interpolated templates) is
// kept as raw source text. Nothing is evaluated.
package literal

import (
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf16"
	"unicode/utf8"

	"github.com/minios-linux/autoi18n/tree"
)

// ErrNoLiteral is returned when the text holds no object literal.
var ErrNoLiteral = errors.New("no object literal found")

// SyntaxError describes malformed literal text.
type SyntaxError struct {
	Offset int
	Line   int
	Column int
	Msg    string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("line %d, column %d: %s", e.Line, e.Column, e.Msg)
}

// Document is a parsed host file: the bytes before the literal, the
// literal itself, and the bytes after its closing brace.
type Document struct {
	Prefix string
	Tree   *tree.Tree
	Suffix string
}

// ParseOptions controls how the literal is located.
type ParseOptions struct {
	// Script enables module handling: the literal is searched after the
	// first export keyword.
	Script bool
}

// IsScript reports whether path is handled as a script module.
func IsScript(path string) bool {
	return !strings.EqualFold(filepath.Ext(path), ".json")
}

// OptionsFor returns the parse options for a file path.
func OptionsFor(path string) ParseOptions {
	return ParseOptions{Script: IsScript(path)}
}

// Parse extracts the object literal from text.
func Parse(text string, opts ParseOptions) (*Document, error) {
	open := findLiteral(text, opts.Script)
	if open < 0 {
		return nil, ErrNoLiteral
	}
	p := &parser{src: text, pos: open}
	t, err := p.parseObject()
	if err != nil {
		return nil, err
	}
	return &Document{
		Prefix: text[:open],
		Tree:   t,
		Suffix: text[p.pos:],
	}, nil
}

// findLiteral returns the offset of the literal's opening brace.
func findLiteral(src string, script bool) int {
	if script {
		if exp := scanOutside(src, 0, func(i int) bool { return isWordAt(src, i, "export") }); exp >= 0 {
			if open := scanOutside(src, exp, func(i int) bool { return src[i] == '{' }); open >= 0 {
				return open
			}
		}
	}
	return scanOutside(src, 0, func(i int) bool { return src[i] == '{' })
}

// scanOutside returns the first offset >= from, outside comments and
// string, template or regular expression literals, for which match holds.
func scanOutside(src string, from int, match func(i int) bool) int {
	p := &parser{src: src, pos: from}
	prev := byte(0)
	for p.pos < len(src) {
		c := src[p.pos]
		if c == '/' && (p.peek(1) == '/' || p.peek(1) == '*') {
			if _, err := p.skipToken(c, prev); err != nil {
				return -1
			}
			continue
		}
		if skipped, err := p.skipToken(c, prev); err != nil {
			return -1
		} else if skipped {
			prev = 'a'
			continue
		}
		if match(p.pos) {
			return p.pos
		}
		if !isSpaceByte(c) {
			prev = c
		}
		p.pos++
	}
	return -1
}

func isWordAt(src string, i int, word string) bool {
	if !strings.HasPrefix(src[i:], word) {
		return false
	}
	if i > 0 && isIdentByte(src[i-1]) {
		return false
	}
	end := i + len(word)
	return end >= len(src) || !isIdentByte(src[end])
}

// ---------------------------------------------------------------------------
// Parser
// ---------------------------------------------------------------------------

type parser struct {
	src string
	pos int
}

func (p *parser) errorf(format string, args ...any) error {
	line, col := 1, 1
	for _, r := range p.src[:min(p.pos, len(p.src))] {
		if r == '\n' {
			line++
			col = 1
		} else {
			col++
		}
	}
	return &SyntaxError{Offset: p.pos, Line: line, Column: col, Msg: fmt.Sprintf(format, args...)}
}

func (p *parser) peek(n int) byte {
	if p.pos+n < len(p.src) {
		return p.src[p.pos+n]
	}
	return 0
}

func (p *parser) eof() bool { return p.pos >= len(p.src) }

// skipSpace skips whitespace and comments.
func (p *parser) skipSpace() error {
	for !p.eof() {
		c := p.src[p.pos]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\f' || c == '\v':
			p.pos++
		case c == '/' && p.peek(1) == '/':
			p.skipLineComment()
		case c == '/' && p.peek(1) == '*':
			if err := p.skipBlockComment(); err != nil {
				return err
			}
		default:
			if r, size := utf8.DecodeRuneInString(p.src[p.pos:]); r == '\uFEFF' || r == '\u00A0' || r == '\u2028' || r == '\u2029' {
				p.pos += size
				continue
			}
			return nil
		}
	}
	return nil
}

func (p *parser) skipLineComment() {
	if i := strings.IndexByte(p.src[p.pos:], '\n'); i >= 0 {
		p.pos += i + 1
		return
	}
	p.pos = len(p.src)
}

func (p *parser) skipBlockComment() error {
	i := strings.Index(p.src[p.pos+2:], "*/")
	if i < 0 {
		return p.errorf("unterminated comment")
	}
	p.pos += 2 + i + 2
	return nil
}

// parseObject parses from an opening brace through its closing brace.
func (p *parser) parseObject() (*tree.Tree, error) {
	if p.eof() || p.src[p.pos] != '{' {
		return nil, p.errorf("expected '{'")
	}
	p.pos++
	t := tree.New()
	for {
		if err := p.skipSpace(); err != nil {
			return nil, err
		}
		if p.eof() {
			return nil, p.errorf("unterminated object")
		}
		if p.src[p.pos] == '}' {
			p.pos++
			return t, nil
		}
		if err := p.parseEntry(t); err != nil {
			return nil, err
		}
		if err := p.skipSpace(); err != nil {
			return nil, err
		}
		if p.eof() {
			return nil, p.errorf("unterminated object")
		}
		switch p.src[p.pos] {
		case ',':
			p.pos++
		case '}':
		default:
			return nil, p.errorf("expected ',' or '}' after entry, found %q", p.src[p.pos])
		}
	}
}

func (p *parser) parseEntry(t *tree.Tree) error {
	start := p.pos
	key, ident, err := p.parseKey()
	if err != nil {
		return err
	}
	if err := p.skipSpace(); err != nil {
		return err
	}

	// get/set/async prefixes on method shorthand.
	if ident && (key == "get" || key == "set" || key == "async") && !p.eof() && isIdentStart(p.src[p.pos:]) {
		key, _, err = p.parseKey()
		if err != nil {
			return err
		}
		if err := p.skipSpace(); err != nil {
			return err
		}
		if p.eof() || p.src[p.pos] != '(' {
			return p.errorf("expected '(' after %q", key)
		}
	}

	if p.eof() {
		return p.errorf("unexpected end of input after key %q", key)
	}
	switch c := p.src[p.pos]; {
	case c == ':':
		p.pos++
	case c == '(':
		raw, err := p.scanMethod(start)
		if err != nil {
			return err
		}
		t.Set(key, tree.Method(raw))
		return nil
	case ident && (c == ',' || c == '}'):
		// Shorthand property: the value is a variable of the same name.
		t.Set(key, tree.Opaque(key))
		return nil
	default:
		return p.errorf("expected ':' after key %q", key)
	}

	if err := p.skipSpace(); err != nil {
		return err
	}
	n, err := p.parseValue()
	if err != nil {
		return err
	}
	t.Set(key, n)
	return nil
}

// parseKey reads a property name. ident reports whether it was written as
// a bare identifier.
func (p *parser) parseKey() (key string, ident bool, err error) {
	if p.eof() {
		return "", false, p.errorf("expected property name")
	}
	c := p.src[p.pos]
	switch {
	case c == '"' || c == '\'':
		key, err = p.parseQuoted(c)
		return key, false, err
	case c == '`':
		s, interp, err := p.parseTemplate()
		if err != nil {
			return "", false, err
		}
		if interp {
			return "", false, p.errorf("interpolated template used as key")
		}
		return s, false, nil
	case c >= '0' && c <= '9':
		start := p.pos
		for !p.eof() && (isIdentByte(p.src[p.pos]) || p.src[p.pos] == '.') {
			p.pos++
		}
		return p.src[start:p.pos], false, nil
	case isIdentStart(p.src[p.pos:]):
		start := p.pos
		for !p.eof() {
			r, size := utf8.DecodeRuneInString(p.src[p.pos:])
			if !isIdentRune(r) {
				break
			}
			p.pos += size
		}
		return p.src[start:p.pos], true, nil
	case c == '[':
		return "", false, p.errorf("computed property names are not supported")
	case c == '.':
		return "", false, p.errorf("spread entries are not supported")
	}
	return "", false, p.errorf("unexpected %q where a property name was expected", c)
}

func (p *parser) parseValue() (tree.Node, error) {
	if p.eof() {
		return tree.Node{}, p.errorf("expected value")
	}
	switch c := p.src[p.pos]; c {
	case '{':
		sub, err := p.parseObject()
		if err != nil {
			return tree.Node{}, err
		}
		return tree.Branch(sub), nil
	case '"', '\'':
		start := p.pos
		s, err := p.parseQuoted(c)
		if err != nil {
			return tree.Node{}, err
		}
		if !p.atValueEnd() {
			p.pos = start
			return p.rawValue()
		}
		return tree.Text(s), nil
	case '`':
		start := p.pos
		s, interp, err := p.parseTemplate()
		if err != nil {
			return tree.Node{}, err
		}
		if interp || !p.atValueEnd() {
			p.pos = start
			return p.rawValue()
		}
		return tree.Text(s), nil
	}
	return p.rawValue()
}

// atValueEnd reports whether only trivia separates the position from the
// next ',' or '}'. String concatenation and similar expressions are kept
// raw.
func (p *parser) atValueEnd() bool {
	save := p.pos
	defer func() { p.pos = save }()
	if p.skipSpace() != nil || p.eof() {
		return false
	}
	c := p.src[p.pos]
	return c == ',' || c == '}'
}

func (p *parser) rawValue() (tree.Node, error) {
	raw, err := p.scanRaw()
	if err != nil {
		return tree.Node{}, err
	}
	return tree.Opaque(raw), nil
}

// scanMethod reads a method-shorthand entry starting at start (the key)
// through the closing brace of its body.
func (p *parser) scanMethod(start int) (string, error) {
	if err := p.skipBalanced(); err != nil { // parameters
		return "", err
	}
	if err := p.skipSpace(); err != nil {
		return "", err
	}
	if p.eof() || p.src[p.pos] != '{' {
		return "", p.errorf("expected method body")
	}
	if err := p.skipBalanced(); err != nil {
		return "", err
	}
	return p.src[start:p.pos], nil
}

// skipBalanced advances over a bracketed region starting at the current
// opening bracket.
func (p *parser) skipBalanced() error {
	depth := 0
	prev := byte(0)
	for !p.eof() {
		c := p.src[p.pos]
		if skipped, err := p.skipToken(c, prev); err != nil {
			return err
		} else if skipped {
			prev = 'a'
			continue
		}
		switch c {
		case '(', '[', '{':
			depth++
		case ')', ']', '}':
			depth--
			if depth == 0 {
				p.pos++
				return nil
			}
			if depth < 0 {
				return p.errorf("unbalanced %q", c)
			}
		}
		if !isSpaceByte(c) {
			prev = c
		}
		p.pos++
	}
	return p.errorf("unterminated bracket")
}

// scanRaw advances over an expression until a ',' or '}' at depth zero
// and returns its text without surrounding trivia.
func (p *parser) scanRaw() (string, error) {
	start := p.pos
	end := p.pos
	depth := 0
	prev := byte(0)
	for !p.eof() {
		c := p.src[p.pos]
		if c == '/' && (p.peek(1) == '/' || p.peek(1) == '*') {
			if p.peek(1) == '/' {
				p.skipLineComment()
			} else if err := p.skipBlockComment(); err != nil {
				return "", err
			}
			continue
		}
		if skipped, err := p.skipToken(c, prev); err != nil {
			return "", err
		} else if skipped {
			prev = 'a'
			end = p.pos
			continue
		}
		switch c {
		case '(', '[', '{':
			depth++
		case ')', ']', '}':
			if depth == 0 {
				if c == '}' {
					return p.rawText(start, end)
				}
				return "", p.errorf("unbalanced %q", c)
			}
			depth--
		case ',':
			if depth == 0 {
				return p.rawText(start, end)
			}
		}
		if !isSpaceByte(c) {
			prev = c
			end = p.pos + 1
		}
		p.pos++
	}
	return "", p.errorf("unterminated value")
}

func (p *parser) rawText(start, end int) (string, error) {
	raw := p.src[start:end]
	if strings.TrimSpace(raw) == "" {
		return "", p.errorf("expected value")
	}
	return raw, nil
}

// skipToken advances over a string, template, regular expression or
// comment starting at the current position.
func (p *parser) skipToken(c, prev byte) (bool, error) {
	switch {
	case c == '"' || c == '\'':
		_, err := p.parseQuoted(c)
		return true, err
	case c == '`':
		_, _, err := p.parseTemplate()
		return true, err
	case c == '/' && p.peek(1) == '/':
		p.skipLineComment()
		return true, nil
	case c == '/' && p.peek(1) == '*':
		return true, p.skipBlockComment()
	case c == '/' && p.regexAllowed(prev):
		return true, p.skipRegexp()
	}
	return false, nil
}

// regexAllowed guesses whether a slash starts a regular expression from
// the previous significant character.
func (p *parser) regexAllowed(prev byte) bool {
	if prev == 0 || strings.IndexByte("(,=:[!&|?{};+-*%<>~^", prev) >= 0 {
		return true
	}
	if isIdentByte(prev) {
		i := p.pos - 1
		for i >= 0 && isSpaceByte(p.src[i]) {
			i--
		}
		j := i
		for j >= 0 && isIdentByte(p.src[j]) {
			j--
		}
		switch p.src[j+1 : i+1] {
		case "return", "typeof", "case", "in", "of", "void", "delete", "throw":
			return true
		}
	}
	return false
}

func (p *parser) skipRegexp() error {
	p.pos++ // opening slash
	inClass := false
	for !p.eof() {
		c := p.src[p.pos]
		switch {
		case c == '\\':
			p.pos += 2
			continue
		case c == '\n':
			return p.errorf("unterminated regular expression")
		case c == '[':
			inClass = true
		case c == ']':
			inClass = false
		case c == '/' && !inClass:
			p.pos++
			for !p.eof() && isIdentByte(p.src[p.pos]) {
				p.pos++
			}
			return nil
		}
		p.pos++
	}
	return p.errorf("unterminated regular expression")
}

// parseQuoted decodes a single or double quoted string.
func (p *parser) parseQuoted(q byte) (string, error) {
	p.pos++
	var b strings.Builder
	for {
		if p.eof() {
			return "", p.errorf("unterminated string")
		}
		c := p.src[p.pos]
		switch {
		case c == q:
			p.pos++
			return b.String(), nil
		case c == '\n':
			return "", p.errorf("newline in string")
		case c == '\\':
			if err := p.parseEscape(&b); err != nil {
				return "", err
			}
		default:
			b.WriteByte(c)
			p.pos++
		}
	}
}

// parseTemplate decodes a backtick string. interp reports whether it
// contains ${...} substitutions, in which case the decoded text is not
// meaningful.
func (p *parser) parseTemplate() (s string, interp bool, err error) {
	p.pos++
	var b strings.Builder
	for {
		if p.eof() {
			return "", false, p.errorf("unterminated template literal")
		}
		c := p.src[p.pos]
		switch {
		case c == '`':
			p.pos++
			return b.String(), interp, nil
		case c == '\\':
			if err := p.parseEscape(&b); err != nil {
				return "", false, err
			}
		case c == '$' && p.peek(1) == '{':
			interp = true
			p.pos++
			if err := p.skipBalanced(); err != nil {
				return "", false, err
			}
		case c == '\r':
			// Template literals normalize CRLF and CR to LF.
			b.WriteByte('\n')
			p.pos++
			if !p.eof() && p.src[p.pos] == '\n' {
				p.pos++
			}
		default:
			b.WriteByte(c)
			p.pos++
		}
	}
}

// parseEscape decodes one backslash escape into b.
func (p *parser) parseEscape(b *strings.Builder) error {
	p.pos++ // backslash
	if p.eof() {
		return p.errorf("unterminated escape")
	}
	c := p.src[p.pos]
	p.pos++
	switch c {
	case 'n':
		b.WriteByte('\n')
	case 't':
		b.WriteByte('\t')
	case 'r':
		b.WriteByte('\r')
	case 'b':
		b.WriteByte('\b')
	case 'f':
		b.WriteByte('\f')
	case 'v':
		b.WriteByte('\v')
	case '0':
		b.WriteByte(0)
	case '\n':
		// Line continuation.
	case '\r':
		if !p.eof() && p.src[p.pos] == '\n' {
			p.pos++
		}
	case 'x':
		v, err := p.hexDigits(2)
		if err != nil {
			return err
		}
		b.WriteRune(rune(v))
	case 'u':
		r, err := p.unicodeEscape()
		if err != nil {
			return err
		}
		if utf16.IsSurrogate(r) && strings.HasPrefix(p.src[p.pos:], `\u`) {
			save := p.pos
			p.pos += 2
			if r2, err := p.unicodeEscape(); err == nil {
				if pair := utf16.DecodeRune(r, r2); pair != unicode.ReplacementChar {
					b.WriteRune(pair)
					return nil
				}
			}
			p.pos = save
		}
		b.WriteRune(r)
	default:
		// Unknown escapes stand for the character itself.
		p.pos--
		r, size := utf8.DecodeRuneInString(p.src[p.pos:])
		b.WriteRune(r)
		p.pos += size
	}
	return nil
}

func (p *parser) unicodeEscape() (rune, error) {
	if !p.eof() && p.src[p.pos] == '{' {
		end := strings.IndexByte(p.src[p.pos:], '}')
		if end < 0 {
			return 0, p.errorf("unterminated unicode escape")
		}
		v, err := strconv.ParseUint(p.src[p.pos+1:p.pos+end], 16, 32)
		if err != nil || v > unicode.MaxRune {
			return 0, p.errorf("invalid unicode escape")
		}
		p.pos += end + 1
		return rune(v), nil
	}
	v, err := p.hexDigits(4)
	return rune(v), err
}

func (p *parser) hexDigits(n int) (uint64, error) {
	if p.pos+n > len(p.src) {
		return 0, p.errorf("truncated escape")
	}
	v, err := strconv.ParseUint(p.src[p.pos:p.pos+n], 16, 32)
	if err != nil {
		return 0, p.errorf("invalid hex escape %q", p.src[p.pos:p.pos+n])
	}
	p.pos += n
	return v, nil
}

// ---------------------------------------------------------------------------
// Character classes
// ---------------------------------------------------------------------------

func isSpaceByte(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\f' || c == '\v'
}

func isIdentByte(c byte) bool {
	return c == '_' || c == '$' || c >= 0x80 ||
		(c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}

func isIdentStart(s string) bool {
	r, _ := utf8.DecodeRuneInString(s)
	return r == '_' || r == '$' || unicode.IsLetter(r)
}

func isIdentRune(r rune) bool {
	return r == '_' || r == '$' || unicode.IsLetter(r) || unicode.IsDigit(r) ||
		unicode.Is(unicode.Mn, r) || unicode.Is(unicode.Mc, r) || unicode.Is(unicode.Pc, r)
}

// IsIdentifier reports whether s can be written as a bare property name.
func IsIdentifier(s string) bool {
	if s == "" || !isIdentStart(s) {
		return false
	}
	for _, r := range s {
		if !isIdentRune(r) {
			return false
		}
	}
	return true
}
