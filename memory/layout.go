package memory

import "fmt"

// LayoutInconsistentError is raised when appending a Block would break the
// Layout's contiguity invariant.
type LayoutInconsistentError struct {
	ExpectedStart uint64
	ActualStart   uint64
}

func (e *LayoutInconsistentError) Error() string {
	return fmt.Sprintf("layout inconsistent: expected next block at 0x%x, got 0x%x",
		e.ExpectedStart, e.ActualStart)
}

// Layout is an ordered list of contiguous Blocks: blocks[i+1].StartAddr ==
// blocks[i].StartAddr + blocks[i].Size for every i.
type Layout struct {
	blocks []Block
}

// NewLayout returns an empty Layout.
func NewLayout() *Layout {
	return &Layout{}
}

// Blocks returns the blocks in append order.
func (l *Layout) Blocks() []Block {
	out := make([]Block, len(l.blocks))
	copy(out, l.blocks)

	return out
}

// Append adds block to the end of the layout. The first block fixes the
// layout's start address; every later block must begin exactly where the
// previous one ends.
func (l *Layout) Append(block Block) error {
	if len(l.blocks) > 0 {
		last := l.blocks[len(l.blocks)-1]
		expected := last.StartAddr + last.Size

		if block.StartAddr != expected {
			return &LayoutInconsistentError{ExpectedStart: expected, ActualStart: block.StartAddr}
		}
	}

	l.blocks = append(l.blocks, block)

	return nil
}

// StartAddress returns the address of the first block, or 0 for an empty
// layout.
func (l *Layout) StartAddress() uint64 {
	if len(l.blocks) == 0 {
		return 0
	}

	return l.blocks[0].StartAddr
}

// Size returns the sum of every block's size.
func (l *Layout) Size() uint64 {
	var total uint64

	for _, b := range l.blocks {
		total += b.Size
	}

	return total
}

// End returns the address one past the last block (half-open), or the
// layout's start address when empty.
func (l *Layout) End() uint64 {
	return l.StartAddress() + l.Size()
}

// BlockAt returns the block covering addr, if any.
func (l *Layout) BlockAt(addr uint64) (Block, bool) {
	for _, b := range l.blocks {
		if addr >= b.StartAddr && addr < b.End() {
			return b, true
		}
	}

	return Block{}, false
}

// NamedLayout pairs a Layout with the DfuSe alt-setting name it was parsed
// from.
type NamedLayout struct {
	Layout
	Name string
}
