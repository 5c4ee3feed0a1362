package barrier

import "github.com/dxvkgo/core/internal/rbtree"

// hashTableSize matches DxvkBarrierTracker::HashTableSize exactly;
// it is not a tunable, the bucket bitmask below only works because
// 2*hashTableSize fits one uint64.
const hashTableSize = 32

// Tracker detects read/write hazards across a resource's address
// ranges (spec.md §4.3). It holds 2*hashTableSize red-black trees,
// one half keyed for pending reads and one for pending writes, with
// a single bitmask recording which buckets are currently populated
// so Empty() never has to scan a tree.
//
// original_source's DxvkBarrierTracker keeps a second bitmask,
// m_rootMaskSubtree, alongside m_rootMaskValid; its retrieved header
// declares it but the method bodies that would explain its role
// (allocateNode/insertNode/removeNode) were not part of the
// retrieved source, and spec.md's own description of empty() names
// only "a 64-bit mask of populated buckets" — so this tracker carries
// the one mask spec.md actually specifies and omits the second,
// unexplained one rather than guess at its semantics.
type Tracker struct {
	valid   uint64
	buckets [2 * hashTableSize]rbtree.Tree[AddressRange]
}

func bucketIndex(r AddressRange, access Access) int {
	hash := r.Resource * 93887
	hash ^= hash >> 16
	idx := int(hash % hashTableSize)
	if access == AccessWrite {
		idx += hashTableSize
	}
	return idx
}

// FindRange reports whether any previously inserted range sharing
// the same resource overlaps r in the tree for accessType.
func (t *Tracker) FindRange(r AddressRange, accessType Access) bool {
	idx := bucketIndex(r, accessType)
	if t.valid&(1<<uint(idx)) == 0 {
		return false
	}
	return t.buckets[idx].FindOverlap(r)
}

// InsertRange inserts r into the tree for accessType. If the target
// bucket was marked invalid by a previous Clear, its tree is reset
// before insertion, reusing its already-allocated node storage
// (rbtree.Tree.Clear keeps capacity; this is the "keep node storage
// for reuse" behavior spec.md §4.3 calls for).
func (t *Tracker) InsertRange(r AddressRange, accessType Access) {
	idx := bucketIndex(r, accessType)
	bit := uint64(1) << uint(idx)
	if t.valid&bit == 0 {
		t.buckets[idx].Clear()
		t.valid |= bit
	}
	t.buckets[idx].Insert(r)
}

// Clear invalidates every bucket in O(1) by clearing the validity
// mask; the trees themselves are only actually reset lazily, on the
// next InsertRange that touches each bucket.
func (t *Tracker) Clear() {
	t.valid = 0
}

// Empty reports whether any bucket holds ranges.
func (t *Tracker) Empty() bool {
	return t.valid == 0
}
