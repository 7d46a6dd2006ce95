package memory

import "testing"

func TestSegmentTryMergeAppend(t *testing.T) {
	a := NewSegment(0x1000, []byte{1, 2, 3})
	b := NewSegment(0x1003, []byte{4, 5})

	if !a.TryMerge(b) {
		t.Fatalf("expected merge to succeed")
	}

	want := []byte{1, 2, 3, 4, 5}
	if a.Len() != len(want) {
		t.Fatalf("got length %d, want %d", a.Len(), len(want))
	}

	for i, v := range want {
		if a.Data[i] != v {
			t.Fatalf("byte %d: got %d, want %d", i, a.Data[i], v)
		}
	}
}

func TestSegmentTryMergeRejectsGap(t *testing.T) {
	a := NewSegment(0x1000, []byte{1, 2, 3})
	b := NewSegment(0x2000, []byte{9})

	if a.TryMerge(b) {
		t.Fatalf("expected merge across a gap to fail")
	}
}

func TestSegmentTryMergePrepend(t *testing.T) {
	a := NewSegment(0x10, []byte{1, 2, 3})
	b := NewSegment(0x0E, []byte{9, 8})

	if !a.TryMerge(b) {
		t.Fatalf("expected prepend merge to succeed")
	}

	want := []byte{9, 8, 1, 2, 3}
	if a.Start != 0x0E || a.Len() != len(want) {
		t.Fatalf("got start=0x%x len=%d, want start=0xE len=%d", a.Start, a.Len(), len(want))
	}

	for i, v := range want {
		if a.Data[i] != v {
			t.Fatalf("byte %d: got %d, want %d", i, a.Data[i], v)
		}
	}
}

func TestSegmentOverlapsExcludesAdjacency(t *testing.T) {
	a := NewSegment(0x100, []byte{1, 2, 3, 4})
	b := NewSegment(0x104, []byte{5})

	if a.Overlaps(b) {
		t.Fatalf("adjacent segments must not be reported as overlapping")
	}

	if !b.Extends(a) {
		t.Fatalf("b should extend a")
	}
}
