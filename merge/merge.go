// Package merge implements deep merging of catalog trees and the
// incremental diff that decides which source leaves still need a
// translation.
package merge

import (
	"github.com/minios-linux/autoi18n/tree"
)

// Merge returns a copy of existing with updates applied.
//   - Leaves from updates overwrite leaves at the same path.
//   - Paths only present in existing (raw entries included) keep their
//     value and position.
//   - New keys are appended in update order.
//   - When one side has a branch and the other a leaf, updates win.
func Merge(existing, updates *tree.Tree) *tree.Tree {
	out := existing.Clone()
	mergeInto(out, updates)
	return out
}

func mergeInto(dst, src *tree.Tree) {
	for _, k := range src.Keys() {
		n, _ := src.Get(k)
		cur, ok := dst.Get(k)
		if ok && cur.IsBranch() && n.IsBranch() {
			mergeInto(cur.Tree, n.Tree)
			continue
		}
		if n.IsBranch() {
			n = tree.Branch(n.Tree.Clone())
		}
		dst.Set(k, n)
	}
}

// Pending returns the source leaves that existing does not hold a usable
// translation for: the path is missing, holds a branch, or holds an empty
// string where the source is not empty. Raw entries in existing belong to
// the file's author and are never pending.
func Pending(source, existing *tree.Tree) *tree.Tree {
	out := tree.New()
	for _, k := range source.Keys() {
		n, _ := source.Get(k)
		cur, ok := existing.Get(k)
		switch {
		case n.IsText():
			switch {
			case !ok, cur.IsBranch(), cur.IsText() && cur.Text == "" && n.Text != "":
				out.Set(k, n)
			}
		case n.IsBranch():
			var sub *tree.Tree
			if ok && cur.IsBranch() {
				sub = Pending(n.Tree, cur.Tree)
			} else {
				sub = Pending(n.Tree, nil)
			}
			if tree.Leaves(sub) > 0 {
				out.Set(k, tree.Branch(sub))
			}
		}
	}
	return out
}

// Changed returns the source leaves selected by keep, called with the
// flat path and value of every leaf.
func Changed(source *tree.Tree, keep func(path, value string) bool) *tree.Tree {
	flat := tree.Flatten(source)
	sel := tree.NewPathMap()
	for _, p := range flat.Keys() {
		v, _ := flat.Get(p)
		if keep(p, v) {
			sel.Set(p, v)
		}
	}
	return tree.Unflatten(sel)
}

// Skeleton returns the raw (opaque and method) entries of t, nested in the
// branches that contain them. Branches without raw entries are dropped.
func Skeleton(t *tree.Tree) *tree.Tree {
	out := tree.New()
	for _, k := range t.Keys() {
		n, _ := t.Get(k)
		switch {
		case n.IsRaw():
			out.Set(k, n)
		case n.IsBranch():
			if sub := Skeleton(n.Tree); sub.Len() > 0 {
				out.Set(k, tree.Branch(sub))
			}
		}
	}
	return out
}

// Align returns a copy of t whose keys follow their order in ref. Keys
// unknown to ref keep their relative order after the known ones.
func Align(t, ref *tree.Tree) *tree.Tree {
	out := tree.New()
	seen := make(map[string]bool, t.Len())
	place := func(k string) {
		n, _ := t.Get(k)
		if r, ok := ref.Get(k); ok && n.IsBranch() && r.IsBranch() {
			n = tree.Branch(Align(n.Tree, r.Tree))
		} else if n.IsBranch() {
			n = tree.Branch(n.Tree.Clone())
		}
		out.Set(k, n)
		seen[k] = true
	}
	for _, k := range ref.Keys() {
		if _, ok := t.Get(k); ok {
			place(k)
		}
	}
	for _, k := range t.Keys() {
		if !seen[k] {
			place(k)
		}
	}
	return out
}
