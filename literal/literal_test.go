package literal

import (
	"errors"
	"strings"
	"testing"

	"github.com/minios-linux/autoi18n/tree"
)

const scriptModule = `import { helper } from './helper' // {not this}

/* header { } */
export default {
  title: 'Settings',
  "quoted-key": "Quoted",
  nested: {
    ok: "OK", // trailing comment
    multi: ` + "`line one\nline two`" + `,
  },
  count: (n) => { return n + ' items' },
  plural(n) {
    return n === 1 ? 'one' : 'many'
  },
  total: 42,
  list: ['a', 'b'],
  greet: ` + "`Hi ${name}!`" + `,
  joined: 'a' + 'b',
  pattern: /[}{,]/g,
  10: 'ten',
  escaped: 'it\'s é\n',
}

export const other = 1
`

func TestParseScriptModule(t *testing.T) {
	doc, err := Parse(scriptModule, ParseOptions{Script: true})
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if !strings.HasSuffix(doc.Prefix, "export default ") {
		t.Fatalf("Prefix = %q", doc.Prefix)
	}
	if doc.Suffix != "\n\nexport const other = 1\n" {
		t.Fatalf("Suffix = %q", doc.Suffix)
	}

	want := []string{"title", "quoted-key", "nested", "count", "plural", "total", "list", "greet", "joined", "pattern", "10", "escaped"}
	if got := doc.Tree.Keys(); strings.Join(got, ",") != strings.Join(want, ",") {
		t.Fatalf("Keys() = %v", got)
	}

	texts := map[string]string{
		"title":      "Settings",
		"quoted-key": "Quoted",
		"10":         "ten",
		"escaped":    "it's é\n",
	}
	texts["nested"+tree.Sep+"ok"] = "OK"
	texts["nested"+tree.Sep+"multi"] = "line one\nline two"
	for path, want := range texts {
		n, ok := doc.Tree.Lookup(path)
		if !ok || !n.IsText() || n.Text != want {
			t.Errorf("Lookup(%s) = %+v, want text %q", tree.Display(path), n, want)
		}
	}

	raws := map[string]tree.Kind{
		"count":   tree.KindOpaque,
		"plural":  tree.KindMethod,
		"total":   tree.KindOpaque,
		"list":    tree.KindOpaque,
		"greet":   tree.KindOpaque,
		"joined":  tree.KindOpaque,
		"pattern": tree.KindOpaque,
	}
	for key, kind := range raws {
		n, _ := doc.Tree.Get(key)
		if n.Kind != kind {
			t.Errorf("%s kind = %v, want %v", key, n.Kind, kind)
		}
	}

	if n, _ := doc.Tree.Get("count"); n.Raw != "(n) => { return n + ' items' }" {
		t.Errorf("count raw = %q", n.Raw)
	}
	if n, _ := doc.Tree.Get("plural"); !strings.HasPrefix(n.Raw, "plural(n) {") || !strings.HasSuffix(n.Raw, "}") {
		t.Errorf("plural raw = %q", n.Raw)
	}
	if n, _ := doc.Tree.Get("pattern"); n.Raw != "/[}{,]/g" {
		t.Errorf("pattern raw = %q", n.Raw)
	}
}

func TestParseJSON(t *testing.T) {
	src := `{
  "a": "A",
  "b": { "c": "C", "n": 3, "t": true, "z": null }
}
`
	doc, err := Parse(src, ParseOptions{})
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if doc.Prefix != "" || doc.Suffix != "\n" {
		t.Fatalf("Prefix/Suffix = %q/%q", doc.Prefix, doc.Suffix)
	}
	if got := tree.Leaves(doc.Tree); got != 2 {
		t.Fatalf("Leaves = %d, want 2", got)
	}
	if n, _ := doc.Tree.Lookup("b" + tree.Sep + "n"); n.Kind != tree.KindOpaque || n.Raw != "3" {
		t.Fatalf("b.n = %+v", n)
	}
}

func TestParseSurrogatePair(t *testing.T) {
	doc, err := Parse(`{"e": "\uD83D\uDE00"}`, ParseOptions{})
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if n, _ := doc.Tree.Get("e"); n.Text != "😀" {
		t.Fatalf("e = %q", n.Text)
	}
}

func TestParseErrors(t *testing.T) {
	cases := []struct {
		name string
		src  string
	}{
		{"unterminated object", `{"a": "b"`},
		{"unterminated string", `{"a": "b}`},
		{"missing colon", `{"a" "b"}`},
		{"missing comma", `{"a": {"x": "y"} "c": "d"}`},
		{"computed key", `{[k]: "v"}`},
		{"unterminated comment", `{ /* "a": "b" }`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse(tc.src, ParseOptions{})
			var se *SyntaxError
			if !errors.As(err, &se) {
				t.Fatalf("err = %v, want *SyntaxError", err)
			}
			if se.Line != 1 || se.Column < 1 {
				t.Fatalf("position = %d:%d", se.Line, se.Column)
			}
		})
	}

	if _, err := Parse("no braces here", ParseOptions{Script: true}); !errors.Is(err, ErrNoLiteral) {
		t.Fatalf("err = %v, want ErrNoLiteral", err)
	}
}

func TestSyntaxErrorPosition(t *testing.T) {
	_, err := Parse("{\n  a: 'x',\n  b 'y'\n}", ParseOptions{Script: true})
	var se *SyntaxError
	if !errors.As(err, &se) {
		t.Fatalf("err = %v", err)
	}
	if se.Line != 3 || se.Column != 5 {
		t.Fatalf("position = %d:%d, want 3:5", se.Line, se.Column)
	}
}

func TestScriptWithoutExport(t *testing.T) {
	doc, err := Parse("module.exports = { a: 'A' };\n", ParseOptions{Script: true})
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if doc.Prefix != "module.exports = " || doc.Suffix != ";\n" {
		t.Fatalf("Prefix/Suffix = %q/%q", doc.Prefix, doc.Suffix)
	}
}

func TestPrefixWithRegexp(t *testing.T) {
	src := "const re = /\"{/;\nconst half = total / 2 / 1;\nexport default { a: 'x' }\n"
	doc, err := Parse(src, ParseOptions{Script: true})
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if !strings.HasSuffix(doc.Prefix, "export default ") {
		t.Fatalf("Prefix = %q", doc.Prefix)
	}
	if n, ok := doc.Tree.Lookup("a"); !ok || n.Text != "x" {
		t.Fatalf("Lookup(a) = %+v, %v", n, ok)
	}
}

func TestFormatJSON(t *testing.T) {
	tr := tree.New()
	tr.Set("a", tree.Text(`say "hi" <b>`))
	sub := tree.New()
	sub.Set("x", tree.Text("X"))
	tr.Set("b", tree.Branch(sub))
	tr.Set("e", tree.Branch(tree.New()))

	got := string(Format(NewDocument(tr, StyleJSON), StyleJSON))
	want := `{
  "a": "say \"hi\" <b>",
  "b": {
    "x": "X"
  },
  "e": {}
}
`
	if got != want {
		t.Fatalf("Format =\n%s\nwant\n%s", got, want)
	}
}

func TestFormatScript(t *testing.T) {
	tr := tree.New()
	tr.Set("title", tree.Text("Title"))
	tr.Set("with-dash", tree.Text("x"))
	tr.Set("count", tree.Opaque("(n) => n"))
	tr.Set("plural", tree.Method("plural(n) { return n }"))

	got := string(Format(NewDocument(tr, StyleScript), StyleScript))
	want := `export default {
  title: "Title",
  "with-dash": "x",
  count: (n) => n,
  plural(n) { return n },
}
`
	if got != want {
		t.Fatalf("Format =\n%s\nwant\n%s", got, want)
	}
}

// Formatting a parsed module and parsing it again gives the same tree.
func TestFormatParseRoundTrip(t *testing.T) {
	doc, err := Parse(scriptModule, ParseOptions{Script: true})
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	out := Format(doc, StyleScript)
	again, err := Parse(string(out), ParseOptions{Script: true})
	if err != nil {
		t.Fatalf("Parse(formatted): %v\n%s", err, out)
	}
	if !tree.Equal(doc.Tree, again.Tree) {
		t.Fatalf("trees differ after round trip:\n%s", out)
	}
	if again.Prefix != doc.Prefix || again.Suffix != doc.Suffix {
		t.Fatal("prefix or suffix changed")
	}
}

func TestStyleFor(t *testing.T) {
	for path, want := range map[string]Style{
		"locales/en.json": StyleJSON,
		"locales/EN.JSON": StyleJSON,
		"locales/en.ts":   StyleScript,
		"locales/en.js":   StyleScript,
	} {
		if got := StyleFor(path); got != want {
			t.Errorf("StyleFor(%q) = %v, want %v", path, got, want)
		}
	}
}

func TestIsIdentifier(t *testing.T) {
	for s, want := range map[string]bool{
		"title": true, "_x": true, "$y": true, "名前": true, "a1": true,
		"": false, "1a": false, "a-b": false, "a b": false,
	} {
		if got := IsIdentifier(s); got != want {
			t.Errorf("IsIdentifier(%q) = %v", s, got)
		}
	}
}
