package vision

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var approx = cmpopts.EquateApprox(0, 1e-9)

func TestMergeBlocks(t *testing.T) {
	merged, err := MergeBlocks(unit(0, 0), Block{Signature: 1, X: 1, Y: 1, Width: 2, Height: 2})
	require.NoError(t, err)
	assert.Equal(t, Block{Signature: 1, X: 0.5, Y: 0.5, Width: 1.5, Height: 1.5}, merged)
}

func TestMergeCopiesIsIdentity(t *testing.T) {
	b := Block{Signature: 4, X: 12.3, Y: 45.6, Width: 7.8, Height: 9.1}
	for n := 1; n <= 7; n++ {
		copies := make([]Block, n)
		for i := range copies {
			copies[i] = b
		}
		merged, err := MergeBlocks(copies...)
		require.NoError(t, err)
		if diff := cmp.Diff(b, merged, approx); diff != "" {
			t.Errorf("merge of %d copies (-want +got):\n%s", n, diff)
		}
	}
}

func TestMergeBlocksRejectsMixedSignatures(t *testing.T) {
	_, err := MergeBlocks(unit(0, 0), Block{Signature: 2, Width: 1, Height: 1})
	assert.ErrorIs(t, err, ErrSignatureMismatch)

	_, err = MergeBlocks()
	assert.ErrorIs(t, err, ErrNothingToMerge)

	assert.Panics(t, func() {
		MustMergeBlocks(unit(0, 0), Block{Signature: 2})
	})
}

func TestNearlyEqualPairsWithinOneSet(t *testing.T) {
	b1, b2, b3 := unit(0, 0), unit(1, 1), unit(0, 0)
	b3.Width = 1 - smallNumber

	pairs := NearlyEqualPairs([]Block{b1, b2, b3}, nil, DefaultThreshold)
	assert.Equal(t, []Pair{{b1, b3}}, pairs)
}

func TestNearlyEqualPairsAcrossSets(t *testing.T) {
	b1, b2 := unit(0, 0), unit(smallNumber, smallNumber)
	b3, b4 := unit(0, 0), unit(1, 1)

	pairs := NearlyEqualPairs([]Block{b1, b2}, []Block{b3, b4}, DefaultThreshold)
	assert.ElementsMatch(t, []Pair{{b1, b3}, {b2, b3}}, pairs)
}

func TestNearlyEqualPairsEmpty(t *testing.T) {
	assert.Empty(t, NearlyEqualPairs(nil, nil, DefaultThreshold))
	assert.Empty(t, NearlyEqualPairs([]Block{unit(0, 0)}, []Block{}, DefaultThreshold))
}

func TestMergeSimilarBlocksWithinOneSet(t *testing.T) {
	b1, b2, b3 := unit(0, 0), unit(1, 1), unit(smallNumber, smallNumber)

	got := MergeSimilarBlocks([]Block{b1, b2, b3}, nil, DefaultThreshold)

	want := []Block{MustMergeBlocks(b1, b3), b2}
	if diff := cmp.Diff(want, got, approx); diff != "" {
		t.Errorf("merged blocks (-want +got):\n%s", diff)
	}
}

func TestMergeSimilarBlocksAcrossSets(t *testing.T) {
	b1, b2 := unit(0, 0), unit(smallNumber*2, smallNumber*2)
	b3, b4 := unit(smallNumber, smallNumber), unit(1, 1)

	got := MergeSimilarBlocks([]Block{b1, b2}, []Block{b3, b4}, DefaultThreshold)

	want := []Block{MustMergeBlocks(b1, b2, b3), b4}
	if diff := cmp.Diff(want, got, approx); diff != "" {
		t.Errorf("merged blocks (-want +got):\n%s", diff)
	}
}

func TestMergeSimilarBlocksChains(t *testing.T) {
	// Each neighbour is near-equal but the ends of the chain are not.
	step := 0.06
	chain := []Block{unit(0, 0), unit(step, 0), unit(2*step, 0)}
	require.False(t, chain[0].NearlyEquals(chain[2], DefaultThreshold))
	require.True(t, chain[0].NearlyEquals(chain[1], DefaultThreshold))
	require.True(t, chain[1].NearlyEquals(chain[2], DefaultThreshold))

	got := MergeSimilarBlocks(chain, nil, DefaultThreshold)
	require.Len(t, got, 1)
	if diff := cmp.Diff(unit(step, 0), got[0], approx); diff != "" {
		t.Errorf("chain merge (-want +got):\n%s", diff)
	}
}

func TestMergeSimilarBlocksKeepsSignaturesApart(t *testing.T) {
	a := unit(0, 0)
	b := a
	b.Signature = 2

	got := MergeSimilarBlocks([]Block{a, b}, nil, DefaultThreshold)
	assert.ElementsMatch(t, []Block{a, b}, got)
}

func TestMergeSimilarBlocksSharedBlock(t *testing.T) {
	a := unit(0, 0)
	got := MergeSimilarBlocks([]Block{a}, []Block{a}, DefaultThreshold)
	assert.Equal(t, []Block{a}, got)
}
