// Copyright 2020 Sebastian Lehmann. All rights reserved.
// Use of this source code is governed by a GNU-style
// license that can be found in the LICENSE file.

package godfu

// Direction selects the data phase of a control transfer.
type Direction uint8

const (
	DirOut Direction = 0
	DirIn  Direction = 1
)

// Transport is the minimal USB control-transfer and string-fetch surface
// the engine needs from its collaborator. Enumeration, interface claim, and
// the control-transfer syscall itself live outside the core (spec §1); the
// engine only ever talks to this interface.
type Transport interface {
	// ControlTransfer issues one USB class-typed control transfer to the
	// DFU interface and returns the number of bytes actually transferred.
	ControlTransfer(bRequest uint8, wValue, wIndex uint16, dir Direction, buffer []byte) (int, error)

	// SetAltSetting switches the claimed interface to alt. A transport
	// that already sits on alt should treat this as a no-op (testable
	// property 9).
	SetAltSetting(alt int) error

	// GetAltSetting returns the interface's current alternate setting.
	GetAltSetting() (int, error)

	// GetStringDescriptor fetches and returns a USB string descriptor with
	// trailing NULs trimmed.
	GetStringDescriptor(index int) (string, error)

	// BusReset issues a USB bus reset against the open device. ok is false
	// when the transport has no bus-reset capability. Reconfigure and
	// Manifest do not refuse in that case; they continue without a reset.
	BusReset() (ok bool, err error)

	// LayoutString returns the DfuSe memory-layout mini-language string
	// for the given alt setting, resolved from that alt setting's
	// iInterface string descriptor. This is device-owned interface
	// metadata, so the transport (which already owns descriptor parsing)
	// resolves it rather than the core walking raw descriptors itself.
	LayoutString(alt int) (string, error)

	// Close releases the device handle.
	Close() error

	// IsOpen reports whether the handle is still usable.
	IsOpen() bool
}

// Candidate describes one DFU-capable interface found during enumeration:
// bInterfaceClass == 0xFE, bInterfaceSubClass == 0x01,
// bInterfaceProtocol in {0x01, 0x02}. Descriptor is the 9-byte DFU
// functional descriptor that follows the interface descriptor; it is the
// zero value when no valid functional descriptor follows it.
type Candidate struct {
	VendorID    uint16
	ProductID   uint16
	Interface   int
	AltSettings []int
	Descriptor  FunctionalDescriptor
}
