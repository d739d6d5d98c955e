package vision

import (
	"slices"

	"golang.org/x/exp/maps"
)

// Scene is a set of blocks seen together, either in one camera frame or in
// several frames merged. Scenes are values: merging and diffing build new
// scenes.
type Scene struct {
	blocks map[Block]struct{}
}

func NewScene(blocks ...Block) Scene {
	s := Scene{blocks: make(map[Block]struct{}, len(blocks))}
	for _, b := range blocks {
		s.blocks[b] = struct{}{}
	}
	return s
}

// Blocks returns the scene's blocks sorted with Compare.
func (s Scene) Blocks() []Block {
	out := maps.Keys(s.blocks)
	slices.SortFunc(out, Compare)
	return out
}

func (s Scene) Len() int {
	return len(s.blocks)
}

func (s Scene) Contains(b Block) bool {
	_, ok := s.blocks[b]
	return ok
}

// WithSignature returns the scene's blocks that carry the given signature.
func (s Scene) WithSignature(sig int) []Block {
	var out []Block
	for _, b := range s.Blocks() {
		if b.Signature == sig {
			out = append(out, b)
		}
	}
	return out
}

// MergeWith unions two scenes, merging any blocks of one that are nearly
// equal to blocks of the other.
func (s Scene) MergeWith(other Scene, threshold float64) Scene {
	return NewScene(MergeSimilarBlocks(s.Blocks(), other.Blocks(), threshold)...)
}

// Diff is the change between two scenes.
type Diff struct {
	// Added holds blocks of the later scene with no counterpart in the earlier one.
	Added []Block
	// Disappeared holds blocks of the earlier scene with no counterpart in the later one.
	Disappeared []Block
	// Ambiguous holds matches where a block was nearly equal to more than one
	// candidate in the other scene. Such blocks are counted as matched, so
	// Added and Disappeared may undercount when Ambiguous is not empty.
	Ambiguous []Pair
}

func (d Diff) Empty() bool {
	return len(d.Added) == 0 && len(d.Disappeared) == 0
}

// Diff compares the receiver (earlier) with other (later).
func (s Scene) Diff(other Scene, threshold float64) Diff {
	pairs := NearlyEqualPairs(s.Blocks(), other.Blocks(), threshold)

	disappeared := maps.Clone(s.blocks)
	added := maps.Clone(other.blocks)
	countA := map[Block]int{}
	countB := map[Block]int{}
	for _, p := range pairs {
		delete(disappeared, p.A)
		delete(added, p.B)
		countA[p.A]++
		countB[p.B]++
	}

	var d Diff
	for _, p := range pairs {
		if countA[p.A] > 1 || countB[p.B] > 1 {
			d.Ambiguous = append(d.Ambiguous, p)
		}
	}
	d.Added = NewScene(maps.Keys(added)...).Blocks()
	d.Disappeared = NewScene(maps.Keys(disappeared)...).Blocks()
	return d
}
