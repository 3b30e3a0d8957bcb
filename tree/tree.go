// Package tree implements the ordered key/value text tree that holds a
// localization catalog, plus the flat path view used for size accounting
// and incremental diffing.
//
// A tree maps string keys (in insertion order) to nodes. A node is one of:
//
//	Text    a translatable string leaf
//	Branch  a nested tree
//	Opaque  a non-translatable value kept as raw source text
//	Method  a whole entry written in method-shorthand form, kept verbatim
package tree

import (
	"strings"
)

// Sep joins ancestor keys into a flat path. Keys containing Sep are not
// supported: Flatten followed by Unflatten would split them.
const Sep = "\x1f"

// Kind discriminates Node variants.
type Kind int

const (
	KindText Kind = iota
	KindBranch
	KindOpaque
	KindMethod
)

func (k Kind) String() string {
	switch k {
	case KindText:
		return "text"
	case KindBranch:
		return "branch"
	case KindOpaque:
		return "opaque"
	case KindMethod:
		return "method"
	}
	return "unknown"
}

// Node is a single value inside a Tree.
type Node struct {
	Kind Kind
	// Text holds the leaf value (KindText).
	Text string
	// Raw holds the original source text (KindOpaque, KindMethod).
	Raw string
	// Tree holds the children (KindBranch).
	Tree *Tree
}

// Text returns a translatable leaf.
func Text(s string) Node { return Node{Kind: KindText, Text: s} }

// Branch returns an internal node.
func Branch(t *Tree) Node { return Node{Kind: KindBranch, Tree: t} }

// Opaque returns a value that is never translated and is re-emitted as raw.
func Opaque(raw string) Node { return Node{Kind: KindOpaque, Raw: raw} }

// Method returns a whole entry (key included) in method-shorthand form.
func Method(raw string) Node { return Node{Kind: KindMethod, Raw: raw} }

// IsText reports whether n is a translatable leaf.
func (n Node) IsText() bool { return n.Kind == KindText }

// IsBranch reports whether n holds a subtree.
func (n Node) IsBranch() bool { return n.Kind == KindBranch && n.Tree != nil }

// IsRaw reports whether n is kept as raw source text.
func (n Node) IsRaw() bool { return n.Kind == KindOpaque || n.Kind == KindMethod }

// Tree is an order-preserving mapping of keys to nodes.
type Tree struct {
	keys  []string
	nodes map[string]Node
}

// New returns an empty tree.
func New() *Tree {
	return &Tree{nodes: make(map[string]Node)}
}

// Set stores n under key. New keys are appended; existing keys keep their
// position.
func (t *Tree) Set(key string, n Node) {
	if t.nodes == nil {
		t.nodes = make(map[string]Node)
	}
	if _, ok := t.nodes[key]; !ok {
		t.keys = append(t.keys, key)
	}
	t.nodes[key] = n
}

// Get returns the node stored under key.
func (t *Tree) Get(key string) (Node, bool) {
	if t == nil {
		return Node{}, false
	}
	n, ok := t.nodes[key]
	return n, ok
}

// Delete removes key from the tree.
func (t *Tree) Delete(key string) {
	if _, ok := t.nodes[key]; !ok {
		return
	}
	delete(t.nodes, key)
	for i, k := range t.keys {
		if k == key {
			t.keys = append(t.keys[:i], t.keys[i+1:]...)
			break
		}
	}
}

// Keys returns the keys in insertion order.
func (t *Tree) Keys() []string {
	if t == nil {
		return nil
	}
	return t.keys
}

// Len returns the number of direct children.
func (t *Tree) Len() int {
	if t == nil {
		return 0
	}
	return len(t.keys)
}

// Clone returns a deep copy of t.
func (t *Tree) Clone() *Tree {
	out := New()
	for _, k := range t.Keys() {
		n := t.nodes[k]
		if n.IsBranch() {
			n = Branch(n.Tree.Clone())
		}
		out.Set(k, n)
	}
	return out
}

// Equal reports whether a and b hold the same keys, in the same order,
// with equal nodes.
func Equal(a, b *Tree) bool {
	if a.Len() != b.Len() {
		return false
	}
	ak, bk := a.Keys(), b.Keys()
	for i := range ak {
		if ak[i] != bk[i] {
			return false
		}
		an, bn := a.nodes[ak[i]], b.nodes[bk[i]]
		if an.Kind != bn.Kind {
			return false
		}
		switch an.Kind {
		case KindText:
			if an.Text != bn.Text {
				return false
			}
		case KindBranch:
			if !Equal(an.Tree, bn.Tree) {
				return false
			}
		default:
			if an.Raw != bn.Raw {
				return false
			}
		}
	}
	return true
}

// Lookup follows a flat path through nested branches.
func (t *Tree) Lookup(path string) (Node, bool) {
	parts := strings.Split(path, Sep)
	cur := t
	for i, p := range parts {
		n, ok := cur.Get(p)
		if !ok {
			return Node{}, false
		}
		if i == len(parts)-1 {
			return n, true
		}
		if !n.IsBranch() {
			return Node{}, false
		}
		cur = n.Tree
	}
	return Node{}, false
}

// Leaves returns the number of Text leaves at any depth.
func Leaves(t *Tree) int {
	n := 0
	for _, k := range t.Keys() {
		node := t.nodes[k]
		switch {
		case node.IsText():
			n++
		case node.IsBranch():
			n += Leaves(node.Tree)
		}
	}
	return n
}

// Fragments splits t into one single-key tree per top-level Text or Branch
// entry, in order. Raw entries are not translatable and are left out.
func Fragments(t *Tree) []*Tree {
	var out []*Tree
	for _, k := range t.Keys() {
		n := t.nodes[k]
		if n.IsRaw() {
			continue
		}
		f := New()
		f.Set(k, n)
		out = append(out, f)
	}
	return out
}

// Display renders a flat path for humans.
func Display(path string) string {
	return strings.ReplaceAll(path, Sep, ".")
}
