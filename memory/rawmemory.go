package memory

import "sort"

// RawMemory is an ordered, non-overlapping collection of Segments. Segments
// that are exactly adjacent are always merged rather than kept separate.
type RawMemory struct {
	segments []Segment
}

// NewRawMemory returns an empty RawMemory.
func NewRawMemory() *RawMemory {
	return &RawMemory{}
}

// Segments returns the current segments in ascending start-address order.
// The returned slice is owned by the caller.
func (m *RawMemory) Segments() []Segment {
	out := make([]Segment, len(m.segments))
	copy(out, m.segments)

	return out
}

// Len reports the number of disjoint segments currently held.
func (m *RawMemory) Len() int {
	return len(m.segments)
}

// First returns the lowest-addressed segment. The second return is false
// when the memory is empty.
func (m *RawMemory) First() (Segment, bool) {
	if len(m.segments) == 0 {
		return Segment{}, false
	}

	return m.segments[0], true
}

// Last returns the highest-addressed segment. The second return is false
// when the memory is empty.
func (m *RawMemory) Last() (Segment, bool) {
	if len(m.segments) == 0 {
		return Segment{}, false
	}

	return m.segments[len(m.segments)-1], true
}

// TryAdd inserts seg into the memory, merging with an adjacent segment when
// possible. It returns false if seg overlaps an existing segment without
// being insertable (overlap is always rejected, never silently merged).
func (m *RawMemory) TryAdd(seg Segment) bool {
	for _, existing := range m.segments {
		if seg.Overlaps(existing) {
			return false
		}
	}

	for i := range m.segments {
		if seg.Extends(m.segments[i]) {
			m.segments[i].TryMerge(seg)
			m.mergeCascade(i)

			return true
		}

		if m.segments[i].Extends(seg) {
			merged := seg
			merged.TryMerge(m.segments[i])
			m.segments[i] = merged
			m.mergeCascade(i)

			return true
		}
	}

	m.segments = append(m.segments, seg)
	sort.Slice(m.segments, func(i, j int) bool {
		return m.segments[i].Start < m.segments[j].Start
	})

	return true
}

// mergeCascade re-checks the segment at idx against both neighbors after it
// grew in place. A single in-place merge can leave the grown segment newly
// adjacent to the segment on its other side, which would otherwise sit
// unmerged until the next unrelated TryAdd happened to touch it.
func (m *RawMemory) mergeCascade(idx int) {
	for {
		merged := false

		if idx+1 < len(m.segments) && m.segments[idx].TryMerge(m.segments[idx+1]) {
			m.segments = append(m.segments[:idx+1], m.segments[idx+2:]...)
			merged = true
		}

		if idx > 0 && m.segments[idx-1].TryMerge(m.segments[idx]) {
			m.segments = append(m.segments[:idx], m.segments[idx+1:]...)
			idx--
			merged = true
		}

		if !merged {
			return
		}
	}
}

// NamedMemory pairs a RawMemory with the DfuSe target label it was parsed
// from.
type NamedMemory struct {
	RawMemory
	Name string
}

// NewNamedMemory wraps mem with the given target name.
func NewNamedMemory(name string, mem *RawMemory) NamedMemory {
	if mem == nil {
		mem = NewRawMemory()
	}

	return NamedMemory{RawMemory: *mem, Name: name}
}
