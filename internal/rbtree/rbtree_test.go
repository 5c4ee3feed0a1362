package rbtree

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type span struct {
	lo, hi uint64
}

func (s span) Ord(other span) int {
	switch {
	case s.lo < other.lo:
		return -1
	case s.lo > other.lo:
		return 1
	default:
		return 0
	}
}

func (s span) Overlaps(other span) bool { return s.hi >= other.lo && s.lo <= other.hi }
func (s span) Lo() uint64               { return s.lo }
func (s span) Hi() uint64               { return s.hi }

func TestInsertAndFindOverlap(t *testing.T) {
	var tree Tree[span]
	assert.True(t, tree.Empty())

	tree.Insert(span{10, 20})
	tree.Insert(span{30, 40})
	tree.Insert(span{50, 100})
	assert.False(t, tree.Empty())

	assert.True(t, tree.FindOverlap(span{15, 16}))
	assert.True(t, tree.FindOverlap(span{5, 11}))
	assert.True(t, tree.FindOverlap(span{95, 200}))
	assert.False(t, tree.FindOverlap(span{21, 29}))
	assert.False(t, tree.FindOverlap(span{101, 200}))
}

func TestClearEmptiesTree(t *testing.T) {
	var tree Tree[span]
	tree.Insert(span{0, 10})
	tree.Clear()
	assert.True(t, tree.Empty())
	assert.False(t, tree.FindOverlap(span{0, 10}))
}

func TestDuplicateRangesAllowed(t *testing.T) {
	var tree Tree[span]
	tree.Insert(span{0, 10})
	tree.Insert(span{0, 10})
	assert.True(t, tree.FindOverlap(span{5, 5}))
}

// TestManyInsertsFindsOverlaps inserts a large number of disjoint
// ranges in random order and checks that every inserted range (and
// none of the gaps between them) is reported as overlapping,
// exercising the rebalancing logic across many rotations.
func TestManyInsertsFindsOverlaps(t *testing.T) {
	const n = 2000
	perm := rand.New(rand.NewSource(1)).Perm(n)

	var tree Tree[span]
	for _, i := range perm {
		lo := uint64(i * 10)
		tree.Insert(span{lo, lo + 5})
	}

	for i := 0; i < n; i++ {
		lo := uint64(i * 10)
		require.True(t, tree.FindOverlap(span{lo + 1, lo + 2}), "range %d should overlap", i)
		require.False(t, tree.FindOverlap(span{lo + 6, lo + 9}), "gap after range %d should not overlap", i)
	}
}
