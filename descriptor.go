// Copyright 2020 Sebastian Lehmann. All rights reserved.
// Use of this source code is governed by a GNU-style
// license that can be found in the LICENSE file.

package godfu

import (
	"fmt"

	"github.com/boljen/go-bitmap"
)

const (
	dfuFunctionalDescriptorLength = 9
	dfuFunctionalDescriptorType   = 0x21

	attrBits = 4

	attrCanDownload            = 0
	attrCanUpload              = 1
	attrManifestationTolerant  = 2
	attrWillDetach             = 3
)

// Version is a two-part BCD version, (major, minor), as decoded from a
// bcdDevice or bcdDFU field.
type Version struct {
	Major byte
	Minor byte
}

func (v Version) String() string {
	return fmt.Sprintf("%d.%d", v.Major, v.Minor)
}

func versionFromBcd(bcd uint16) Version {
	return Version{Major: byte(bcd >> 8), Minor: byte(bcd)}
}

// FunctionalDescriptor is the 9-byte DFU functional descriptor attached to
// the DFU USB interface (DFU 1.1 §4.1.3).
type FunctionalDescriptor struct {
	attributes      bitmap.Bitmap
	DetachTimeoutMs uint16
	TransferSize    uint16
	DfuVersion      Version
}

// ParseFunctionalDescriptor decodes buf, rejecting anything whose length or
// descriptor-type byte disagrees with the DFU functional descriptor layout.
func ParseFunctionalDescriptor(buf []byte) (FunctionalDescriptor, error) {
	if len(buf) != dfuFunctionalDescriptorLength {
		return FunctionalDescriptor{}, NewFormatError("DFU functional descriptor must be 9 bytes")
	}

	if buf[0] != dfuFunctionalDescriptorLength {
		return FunctionalDescriptor{}, NewFormatError("DFU functional descriptor length byte mismatch")
	}

	if buf[1] != dfuFunctionalDescriptorType {
		return FunctionalDescriptor{}, NewFormatError("DFU functional descriptor type byte mismatch")
	}

	attrs := bitmap.New(attrBits)
	attrs.Set(attrCanDownload, buf[2]&0x01 != 0)
	attrs.Set(attrCanUpload, buf[2]&0x02 != 0)
	attrs.Set(attrManifestationTolerant, buf[2]&0x04 != 0)
	attrs.Set(attrWillDetach, buf[2]&0x08 != 0)

	detachTimeout, err := readUint16LEAt(buf, 3)
	if err != nil {
		return FunctionalDescriptor{}, err
	}

	transferSize, err := readUint16LEAt(buf, 5)
	if err != nil {
		return FunctionalDescriptor{}, err
	}

	dfuVersion, err := readUint16LEAt(buf, 7)
	if err != nil {
		return FunctionalDescriptor{}, err
	}

	return FunctionalDescriptor{
		attributes:      attrs,
		DetachTimeoutMs: detachTimeout,
		TransferSize:    transferSize,
		DfuVersion:      versionFromBcd(dfuVersion),
	}, nil
}

func (d FunctionalDescriptor) CanDownload() bool           { return d.attributes.Get(attrCanDownload) }
func (d FunctionalDescriptor) CanUpload() bool              { return d.attributes.Get(attrCanUpload) }
func (d FunctionalDescriptor) ManifestationTolerant() bool { return d.attributes.Get(attrManifestationTolerant) }
func (d FunctionalDescriptor) WillDetach() bool             { return d.attributes.Get(attrWillDetach) }

// WithTransferSize returns a copy of d with TransferSize overridden. Some
// bootloaders under-report this field; a caller with out-of-band knowledge
// of the real chunk size (a device profile, typically) uses this to correct
// it before the descriptor reaches the engine.
func (d FunctionalDescriptor) WithTransferSize(size uint16) FunctionalDescriptor {
	d.TransferSize = size
	return d
}

// Identification is the tuple a transport uses to tell devices apart and
// decide whether a firmware file applies to one.
type Identification struct {
	VendorID       uint16
	ProductID      uint16
	ProductVersion Version
	DfuVersion     Version
}
