package barrier

import "testing"

func TestTrackerClearedFindsNothing(t *testing.T) {
	var tr Tracker
	if !tr.Empty() {
		t.Fatal("zero-value tracker should be empty")
	}
	tr.InsertRange(AddressRange{Resource: 1, Start: 0, End: 10}, AccessWrite)
	tr.Clear()
	if !tr.Empty() {
		t.Fatal("Clear should make the tracker empty")
	}
	if tr.FindRange(AddressRange{Resource: 1, Start: 0, End: 10}, AccessWrite) {
		t.Fatal("find_range after clear must return false")
	}
	if tr.FindRange(AddressRange{Resource: 1, Start: 0, End: 10}, AccessRead) {
		t.Fatal("find_range after clear must return false")
	}
}

// Literal trace from spec.md §8 scenario 2.
func TestTrackerEndToEndScenario(t *testing.T) {
	var tr Tracker

	tr.InsertRange(AddressRange{Resource: 0x1, Start: 0, End: 99}, AccessWrite)

	if tr.FindRange(AddressRange{Resource: 0x1, Start: 50, End: 60}, AccessRead) {
		t.Fatal("read query must not see a write-only insert")
	}
	if !tr.FindRange(AddressRange{Resource: 0x1, Start: 50, End: 60}, AccessWrite) {
		t.Fatal("write query must see the overlapping write insert")
	}

	tr.InsertRange(AddressRange{Resource: 0x1, Start: 200, End: 299}, AccessWrite)

	if !tr.FindRange(AddressRange{Resource: 0x1, Start: 99, End: 200}, AccessWrite) {
		t.Fatal("99..200 inclusive must overlap the second inserted range at 200")
	}
}

func TestTrackerInsertNoOverlapThenFind(t *testing.T) {
	var tr Tracker
	r := AddressRange{Resource: 7, Start: 1000, End: 2000}
	tr.InsertRange(r, AccessRead)
	if !tr.FindRange(r, AccessRead) {
		t.Fatal("inserting r then finding r must succeed")
	}
}

func TestTrackerDistinctResourcesDoNotAlias(t *testing.T) {
	var tr Tracker
	tr.InsertRange(AddressRange{Resource: 1, Start: 0, End: 100}, AccessWrite)
	if tr.FindRange(AddressRange{Resource: 2, Start: 0, End: 100}, AccessWrite) {
		t.Fatal("a range on a different resource id must not be reported as overlapping")
	}
}

func TestTrackerBucketReuseAfterClear(t *testing.T) {
	var tr Tracker
	// Force enough distinct resources through to populate many buckets,
	// then clear and insert again; the tree storage should be reused
	// without producing stale hits.
	for i := uint64(0); i < 128; i++ {
		tr.InsertRange(AddressRange{Resource: i, Start: 0, End: 1}, AccessWrite)
	}
	tr.Clear()
	for i := uint64(0); i < 128; i++ {
		if tr.FindRange(AddressRange{Resource: i, Start: 0, End: 1}, AccessWrite) {
			t.Fatalf("resource %d should not be found after clear", i)
		}
	}
	tr.InsertRange(AddressRange{Resource: 5, Start: 0, End: 1}, AccessWrite)
	if !tr.FindRange(AddressRange{Resource: 5, Start: 0, End: 1}, AccessWrite) {
		t.Fatal("reinserting after clear must be found")
	}
}
