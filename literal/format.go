package literal

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/minios-linux/autoi18n/tree"
)

// Style selects the output syntax.
type Style int

const (
	// StyleJSON writes quoted keys and no trailing commas.
	StyleJSON Style = iota
	// StyleScript writes bare identifier keys and trailing commas.
	StyleScript
)

// StyleFor returns the style matching a file path.
func StyleFor(path string) Style {
	if IsScript(path) {
		return StyleScript
	}
	return StyleJSON
}

const indent = "  "

// Format renders doc with two-space indentation. Raw entries are written
// verbatim. The output always ends with a newline.
func Format(doc *Document, style Style) []byte {
	var b bytes.Buffer
	b.WriteString(doc.Prefix)
	writeObject(&b, doc.Tree, style, 0)
	b.WriteString(doc.Suffix)
	if !bytes.HasSuffix(b.Bytes(), []byte("\n")) {
		b.WriteByte('\n')
	}
	return b.Bytes()
}

// NewDocument returns a document for a file that does not exist yet.
func NewDocument(t *tree.Tree, style Style) *Document {
	if style == StyleScript {
		return &Document{Prefix: "export default ", Tree: t, Suffix: "\n"}
	}
	return &Document{Tree: t, Suffix: "\n"}
}

func writeObject(b *bytes.Buffer, t *tree.Tree, style Style, depth int) {
	keys := t.Keys()
	if len(keys) == 0 {
		b.WriteString("{}")
		return
	}
	b.WriteString("{\n")
	pad := strings.Repeat(indent, depth+1)
	for i, k := range keys {
		n, _ := t.Get(k)
		b.WriteString(pad)
		switch n.Kind {
		case tree.KindMethod:
			b.WriteString(n.Raw)
		default:
			b.WriteString(formatKey(k, style))
			b.WriteString(": ")
			switch n.Kind {
			case tree.KindText:
				b.WriteString(quote(n.Text))
			case tree.KindBranch:
				writeObject(b, n.Tree, style, depth+1)
			case tree.KindOpaque:
				b.WriteString(n.Raw)
			}
		}
		if style == StyleScript || i < len(keys)-1 {
			b.WriteByte(',')
		}
		b.WriteByte('\n')
	}
	b.WriteString(strings.Repeat(indent, depth))
	b.WriteByte('}')
}

func formatKey(k string, style Style) string {
	if style == StyleScript && IsIdentifier(k) {
		return k
	}
	return quote(k)
}

// quote returns s as a double-quoted string literal. HTML characters are
// left alone.
func quote(s string) string {
	var b bytes.Buffer
	enc := json.NewEncoder(&b)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(s); err != nil {
		return `""`
	}
	return strings.TrimSuffix(b.String(), "\n")
}
