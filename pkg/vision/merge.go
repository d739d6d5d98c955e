package vision

import (
	"errors"
	"fmt"
	"slices"

	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"
	"gonum.org/v1/gonum/stat"
)

var (
	ErrSignatureMismatch = errors.New("blocks to merge have different signatures")
	ErrNothingToMerge    = errors.New("no blocks to merge")
)

// MergeBlocks returns a block whose position and size are the means of the
// given blocks. All blocks must share one signature.
func MergeBlocks(blocks ...Block) (Block, error) {
	if len(blocks) == 0 {
		return Block{}, ErrNothingToMerge
	}
	sig := blocks[0].Signature
	xs := make([]float64, len(blocks))
	ys := make([]float64, len(blocks))
	ws := make([]float64, len(blocks))
	hs := make([]float64, len(blocks))
	for i, b := range blocks {
		if b.Signature != sig {
			return Block{}, fmt.Errorf("%w: %d and %d", ErrSignatureMismatch, sig, b.Signature)
		}
		xs[i], ys[i], ws[i], hs[i] = b.X, b.Y, b.Width, b.Height
	}
	return Block{
		Signature: sig,
		X:         stat.Mean(xs, nil),
		Y:         stat.Mean(ys, nil),
		Width:     stat.Mean(ws, nil),
		Height:    stat.Mean(hs, nil),
	}, nil
}

// MustMergeBlocks is MergeBlocks for callers that have already grouped blocks
// by signature; a mismatch is a programming error.
func MustMergeBlocks(blocks ...Block) Block {
	merged, err := MergeBlocks(blocks...)
	if err != nil {
		panic(err)
	}
	return merged
}

// Pair is two blocks judged to be the same object. When the pair comes from
// comparing two sets, A is from the first set and B from the second.
type Pair struct {
	A, B Block
}

// NearlyEqualPairs finds pairs of blocks which are probably the same object.
// With b nil every unordered pair within a is tested; otherwise every block
// of a is tested against every block of b.
func NearlyEqualPairs(a, b []Block, threshold float64) []Pair {
	var pairs []Pair
	seen := map[Pair]bool{}
	add := func(p Pair) {
		if !seen[p] {
			seen[p] = true
			pairs = append(pairs, p)
		}
	}

	if b == nil {
		for i := range a {
			for j := i + 1; j < len(a); j++ {
				if a[i].NearlyEquals(a[j], threshold) {
					add(Pair{a[i], a[j]})
				}
			}
		}
		return pairs
	}

	for _, this := range a {
		for _, that := range b {
			if this.NearlyEquals(that, threshold) {
				add(Pair{this, that})
			}
		}
	}
	return pairs
}

// MergeSimilarBlocks collapses groups of near-equal blocks. Blocks are joined
// whenever they are nearly equal (within a if b is nil, otherwise only across
// a and b) and each connected group is replaced by its merge. Near-equality
// need not be transitive: a chain of pairwise near-equal blocks becomes one
// block. The result is sorted with Compare.
func MergeSimilarBlocks(a, b []Block, threshold float64) []Block {
	g := simple.NewUndirectedGraph()
	ids := map[Block]int64{}
	var nodes []Block
	addNode := func(blk Block) int64 {
		if id, ok := ids[blk]; ok {
			return id
		}
		id := int64(len(nodes))
		ids[blk] = id
		nodes = append(nodes, blk)
		g.AddNode(simple.Node(id))
		return id
	}
	for _, blk := range a {
		addNode(blk)
	}
	for _, blk := range b {
		addNode(blk)
	}

	for _, p := range NearlyEqualPairs(a, b, threshold) {
		from, to := ids[p.A], ids[p.B]
		if from == to {
			continue
		}
		g.SetEdge(simple.Edge{F: simple.Node(from), T: simple.Node(to)})
	}

	var out []Block
	for _, component := range topo.ConnectedComponents(g) {
		group := make([]Block, len(component))
		for i, n := range component {
			group[i] = nodes[n.ID()]
		}
		if len(group) == 1 {
			out = append(out, group[0])
			continue
		}
		// Edges only join blocks of one signature.
		out = append(out, MustMergeBlocks(group...))
	}
	slices.SortFunc(out, Compare)
	return slices.Compact(out)
}
