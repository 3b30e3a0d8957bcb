// Package batch groups catalog leaves into translator requests.
//
// Two policies exist: ByBudget packs flattened leaves until a size budget
// is reached (one request per batch), ByCount groups whole top-level
// fragments by count (one request per leaf inside each group).
package batch

import (
	"unicode/utf8"

	"github.com/minios-linux/autoi18n/merge"
	"github.com/minios-linux/autoi18n/tree"
)

// LeafOverhead is added to every leaf's length to account for the joiner
// placed between leaves in a merged request.
const LeafOverhead = 14

// DefaultBudget is the size budget used when none is configured.
const DefaultBudget = 5000

// DefaultChunkSize is the fragment count used when none is configured.
const DefaultChunkSize = 5

// Batch is an ordered list of flat paths and their leaf values.
type Batch struct {
	Keys   []string
	Values []string
}

// Len returns the number of leaves in the batch.
func (b Batch) Len() int { return len(b.Keys) }

// Size returns the estimated serialized size of the batch.
func (b Batch) Size() int {
	n := 0
	for _, v := range b.Values {
		n += LeafSize(v)
	}
	return n
}

// PathMap returns the batch as a path map.
func (b Batch) PathMap() *tree.PathMap {
	m := tree.NewPathMap()
	for i, k := range b.Keys {
		m.Set(k, b.Values[i])
	}
	return m
}

// LeafSize is the accounted size of one leaf.
func LeafSize(v string) int {
	return utf8.RuneCountInString(v) + LeafOverhead
}

// ByBudget splits pm into consecutive batches. A batch is closed when the
// next leaf would bring its size to budget or beyond; a leaf larger than
// the budget gets a batch of its own. budget <= 0 puts everything in one
// batch.
func ByBudget(pm *tree.PathMap, budget int) []Batch {
	var (
		out  []Batch
		cur  Batch
		size int
	)
	for _, k := range pm.Keys() {
		v, _ := pm.Get(k)
		n := LeafSize(v)
		if budget > 0 && cur.Len() > 0 && size+n >= budget {
			out = append(out, cur)
			cur = Batch{}
			size = 0
		}
		cur.Keys = append(cur.Keys, k)
		cur.Values = append(cur.Values, v)
		size += n
	}
	if cur.Len() > 0 {
		out = append(out, cur)
	}
	return out
}

// ByCount merges every n consecutive fragments into one tree.
func ByCount(fragments []*tree.Tree, n int) []*tree.Tree {
	if n <= 0 {
		n = DefaultChunkSize
	}
	var out []*tree.Tree
	for i := 0; i < len(fragments); i += n {
		end := min(i+n, len(fragments))
		group := tree.New()
		for _, f := range fragments[i:end] {
			group = merge.Merge(group, f)
		}
		out = append(out, group)
	}
	return out
}
