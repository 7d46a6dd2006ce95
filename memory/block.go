package memory

import "github.com/boljen/go-bitmap"

// Permission bit positions within a Block's Permission bitmap.Bitmap,
// mirroring the low three bits of a DfuSe layout-string
// permission letter (spec §4.2).
const (
	PermReadable  = 0
	PermWriteable = 1
	PermEraseable = 2

	permissionBits = 3
)

// Permission is a small bit set drawn from {Readable, Writeable, Eraseable}.
type Permission struct {
	bits bitmap.Bitmap
}

// NewPermission builds a Permission from the low three bits of mask, the
// same encoding as a DfuSe layout-string permission letter masked by 0x07.
func NewPermission(mask byte) Permission {
	p := Permission{bits: bitmap.New(permissionBits)}

	p.bits.Set(PermReadable, mask&0x01 != 0)
	p.bits.Set(PermWriteable, mask&0x02 != 0)
	p.bits.Set(PermEraseable, mask&0x04 != 0)

	return p
}

func (p Permission) Readable() bool  { return p.bits.Get(PermReadable) }
func (p Permission) Writeable() bool { return p.bits.Get(PermWriteable) }
func (p Permission) Eraseable() bool { return p.bits.Get(PermEraseable) }

// Equal reports whether two permission sets carry the same bits.
func (p Permission) Equal(other Permission) bool {
	return p.Readable() == other.Readable() &&
		p.Writeable() == other.Writeable() &&
		p.Eraseable() == other.Eraseable()
}

// Block is a fixed-size, fixed-permission run of device memory.
type Block struct {
	StartAddr   uint64
	Size        uint64
	Permissions Permission
}

// End returns the address one past the last byte of the block (half-open
// extent, matching scenario S4's overlap test).
func (b Block) End() uint64 {
	return b.StartAddr + b.Size
}

// Equal reports whether two blocks describe the same extent and
// permissions.
func (b Block) Equal(other Block) bool {
	return b.StartAddr == other.StartAddr && b.Size == other.Size &&
		b.Permissions.Equal(other.Permissions)
}

// Overlaps reports whether b and other share any address, using half-open
// extents: Block(0,10).Overlaps(Block(5,10)) is true,
// Block(0,10).Overlaps(Block(20,5)) is false.
func (b Block) Overlaps(other Block) bool {
	return b.StartAddr < other.End() && other.StartAddr < b.End()
}
