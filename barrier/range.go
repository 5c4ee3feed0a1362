// Package barrier implements the hazard tracker and batched pipeline
// barrier emission described in spec.md §4.3, grounded on
// original_source/src/dxvk/dxvk_barrier.h's DxvkAddressRange,
// DxvkBarrierTracker and DxvkBarrierSet/DxvkBarrierBatch.
package barrier

import "github.com/dxvkgo/core/internal/rbtree"

// Access distinguishes which half of the tracker's hash table a range
// belongs to. It is distinct from resource.Access: the tracker only
// ever queries/inserts one access type at a time, it never needs the
// "acquired for both" state resource.Resource's use-count tracks.
type Access int

const (
	AccessRead Access = iota
	AccessWrite
)

// AddressRange is the tracker's key type: a resource identifier plus
// an inclusive [Start, End] range, ordered by (Resource, Start) and
// compared for overlap by resource equality plus interval
// intersection (original_source's DxvkAddressRange::contains/
// overlaps/lt).
type AddressRange struct {
	// Resource is the 48-bit id from resource.Resource.ResourceID.
	Resource uint64
	// Start and End are inclusive. For buffers this is a byte range;
	// for images it encodes {first subresource index, last
	// subresource index} (spec.md §4.3).
	Start, End uint64
}

// Contains reports whether other lies entirely within r.
func (r AddressRange) Contains(other AddressRange) bool {
	return r.Resource == other.Resource &&
		r.Start <= other.Start && r.End >= other.End
}

// Overlaps implements rbtree.Range.
func (r AddressRange) Overlaps(other AddressRange) bool {
	return r.Resource == other.Resource &&
		r.End >= other.Start && r.Start <= other.End
}

// Ord implements rbtree.Range: ranges sort by (Resource, Start).
func (r AddressRange) Ord(other AddressRange) int {
	if r.Resource != other.Resource {
		if r.Resource < other.Resource {
			return -1
		}
		return 1
	}
	switch {
	case r.Start < other.Start:
		return -1
	case r.Start > other.Start:
		return 1
	default:
		return 0
	}
}

// Lo and Hi implement rbtree.Range. They double as the interval
// tree's pruning bound; Overlaps' resource-equality check keeps
// cross-resource hash collisions in the same bucket from producing
// false positives even though Lo/Hi ignore Resource.
func (r AddressRange) Lo() uint64 { return r.Start }
func (r AddressRange) Hi() uint64 { return r.End }

var _ rbtree.Range[AddressRange] = AddressRange{}
