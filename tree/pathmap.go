package tree

import "strings"

// PathMap is an ordered mapping of flat paths to leaf strings.
type PathMap struct {
	keys   []string
	values map[string]string
}

// NewPathMap returns an empty path map.
func NewPathMap() *PathMap {
	return &PathMap{values: make(map[string]string)}
}

// Set stores value under path, appending new paths.
func (m *PathMap) Set(path, value string) {
	if _, ok := m.values[path]; !ok {
		m.keys = append(m.keys, path)
	}
	m.values[path] = value
}

// Get returns the value stored under path.
func (m *PathMap) Get(path string) (string, bool) {
	v, ok := m.values[path]
	return v, ok
}

// Keys returns paths in insertion order.
func (m *PathMap) Keys() []string { return m.keys }

// Len returns the number of paths.
func (m *PathMap) Len() int { return len(m.keys) }

// Values returns the leaf values in path order.
func (m *PathMap) Values() []string {
	out := make([]string, len(m.keys))
	for i, k := range m.keys {
		out[i] = m.values[k]
	}
	return out
}

// Flatten walks t depth-first and records every Text leaf under its path.
func Flatten(t *Tree) *PathMap {
	m := NewPathMap()
	flattenInto(m, t, "")
	return m
}

func flattenInto(m *PathMap, t *Tree, prefix string) {
	for _, k := range t.Keys() {
		n := t.nodes[k]
		path := k
		if prefix != "" {
			path = prefix + Sep + k
		}
		switch {
		case n.IsText():
			m.Set(path, n.Text)
		case n.IsBranch():
			flattenInto(m, n.Tree, path)
		}
	}
}

// Unflatten rebuilds the nested tree described by m.
func Unflatten(m *PathMap) *Tree {
	root := New()
	for _, path := range m.Keys() {
		parts := strings.Split(path, Sep)
		cur := root
		for _, p := range parts[:len(parts)-1] {
			n, ok := cur.Get(p)
			if !ok || !n.IsBranch() {
				n = Branch(New())
				cur.Set(p, n)
			}
			cur = n.Tree
		}
		cur.Set(parts[len(parts)-1], Text(m.values[path]))
	}
	return root
}
