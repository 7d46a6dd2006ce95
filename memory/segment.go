// Copyright 2020 Sebastian Lehmann. All rights reserved.
// Use of this source code is governed by a GNU-style
// license that can be found in the LICENSE file.

// Package memory holds the address-keyed byte-segment model shared by every
// firmware-image decoder and by the DfuSe device-layout parser.
package memory

// Segment is a contiguous run of bytes anchored at an absolute address.
type Segment struct {
	Start uint64
	Data  []byte
}

// NewSegment builds a Segment, copying data so the caller's slice can be
// reused.
func NewSegment(start uint64, data []byte) Segment {
	cp := make([]byte, len(data))
	copy(cp, data)

	return Segment{Start: start, Data: cp}
}

// End returns the address of the last byte in the segment.
func (s Segment) End() uint64 {
	return s.Start + uint64(len(s.Data)) - 1
}

// Len returns the number of bytes held by the segment.
func (s Segment) Len() int {
	return len(s.Data)
}

// Equal reports whether two segments start at the same address and hold
// identical bytes.
func (s Segment) Equal(other Segment) bool {
	if s.Start != other.Start || len(s.Data) != len(other.Data) {
		return false
	}

	for i := range s.Data {
		if s.Data[i] != other.Data[i] {
			return false
		}
	}

	return true
}

// Contains reports whether addr falls within the segment's extent.
func (s Segment) Contains(addr uint64) bool {
	return addr >= s.Start && addr <= s.End()
}

// Overlaps reports whether s and other share at least one address.
// Exact adjacency does not count as overlap, it is handled by Extends.
func (s Segment) Overlaps(other Segment) bool {
	return s.Start <= other.End() && other.Start <= s.End()
}

// Extends reports whether self begins exactly one byte after other ends,
// i.e. other could be grown by appending self's bytes.
func (s Segment) Extends(other Segment) bool {
	return s.Start == other.End()+1
}

// WriteByte overwrites a single byte already covered by the segment.
// It reports false if addr is out of range.
func (s *Segment) WriteByte(addr uint64, b byte) bool {
	if !s.Contains(addr) {
		return false
	}

	s.Data[addr-s.Start] = b

	return true
}

// TryMerge attempts to fold other into s in place. It succeeds only when
// other extends s on either side; merging preserves byte order, so
// prepending other = [9,8] onto s = [1,2,3] yields [9,8,1,2,3].
func (s *Segment) TryMerge(other Segment) bool {
	switch {
	case other.Extends(*s):
		s.Data = append(s.Data, other.Data...)
		return true

	case s.Extends(other):
		merged := make([]byte, 0, len(other.Data)+len(s.Data))
		merged = append(merged, other.Data...)
		merged = append(merged, s.Data...)

		s.Start = other.Start
		s.Data = merged

		return true

	default:
		return false
	}
}
