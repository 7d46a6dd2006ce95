// Copyright 2020 Sebastian Lehmann. All rights reserved.
// Use of this source code is governed by a GNU-style
// license that can be found in the LICENSE file.

package firmware

import (
	"bytes"

	"github.com/bbnote/godfu/memory"

	"github.com/bbnote/godfu"
)

const (
	suffixLength  = 16
	suffixSig     = "UFD"
	dfuseSig      = "DfuSe"
	dfuseVersion  = 1
	bcdDfu11      = 0x0100
	bcdDfu11a     = 0x011A
	plainAltIndex = 0
)

// DfuFile is the decoded result of a DFU/DfuSe container: the suffix's
// device-identification tuple plus one named memory image per
// alt-setting.
type DfuFile struct {
	Ident  godfu.Identification
	Images map[uint8]memory.NamedMemory
}

// DecodeDfuFile parses a .dfu file: it validates the CRC-32 suffix, then
// branches on bcdDFU into either a single plain-DFU image (bcdDFU ==
// 0x0100) or a DfuSe target/element tree (bcdDFU == 0x011A).
func DecodeDfuFile(data []byte) (DfuFile, error) {
	if len(data) < suffixLength {
		return DfuFile{}, godfu.NewFormatError("file too short for a DFU suffix")
	}

	tail := data[len(data)-suffixLength:]

	bcdDevice := leUint16(tail[0:2])
	idProduct := leUint16(tail[2:4])
	idVendor := leUint16(tail[4:6])
	bcdDfu := leUint16(tail[6:8])
	sig := tail[8:11]
	bLength := tail[11]
	dwCrc := leUint32(tail[12:16])

	if string(sig) != suffixSig {
		return DfuFile{}, godfu.NewFormatError("suffix signature is not \"UFD\"")
	}

	if bLength < suffixLength {
		return DfuFile{}, godfu.NewFormatError("suffix bLength must be at least 16")
	}

	if int(bLength) > len(data) {
		return DfuFile{}, godfu.NewFormatError("suffix bLength exceeds file size")
	}

	computedCrc := godfu.CRC32(data[:len(data)-4])
	if computedCrc != dwCrc {
		return DfuFile{}, &godfu.CrcError{Want: dwCrc, Got: computedCrc}
	}

	payload := data[:len(data)-int(bLength)]

	ident := godfu.Identification{
		VendorID:       idVendor,
		ProductID:      idProduct,
		ProductVersion: versionFromBcd(bcdDevice),
		DfuVersion:     versionFromBcd(bcdDfu),
	}

	switch bcdDfu {
	case bcdDfu11:
		mem := memory.NewRawMemory()
		// the DFU 1.1 wire format carries no image address; ~0 is the
		// documented sentinel for "address field is irrelevant" (spec §8 S7).
		mem.TryAdd(memory.NewSegment(^uint64(0), payload))

		return DfuFile{
			Ident: ident,
			Images: map[uint8]memory.NamedMemory{
				plainAltIndex: memory.NewNamedMemory("", mem),
			},
		}, nil

	case bcdDfu11a:
		images, err := decodeDfuseContainer(payload)
		if err != nil {
			return DfuFile{}, err
		}

		return DfuFile{Ident: ident, Images: images}, nil

	default:
		return DfuFile{}, &godfu.UnsupportedDfuVersionError{BcdDfu: bcdDfu}
	}
}

func decodeDfuseContainer(payload []byte) (map[uint8]memory.NamedMemory, error) {
	if len(payload) < 11 || string(payload[0:5]) != dfuseSig {
		return nil, godfu.NewFormatError("dfuse container signature mismatch")
	}

	version := payload[5]
	if version != dfuseVersion {
		return nil, godfu.NewFormatError("unsupported dfuse container version")
	}

	bTargets := payload[10]
	offset := 11

	images := make(map[uint8]memory.NamedMemory)

	for t := 0; t < int(bTargets); t++ {
		alt, name, mem, next, err := decodeDfuseTarget(payload, offset)
		if err != nil {
			return nil, err
		}

		images[alt] = memory.NewNamedMemory(name, mem)
		offset = next
	}

	if offset != len(payload) {
		return nil, godfu.NewFormatError("trailing data after dfuse targets")
	}

	return images, nil
}

func decodeDfuseTarget(payload []byte, offset int) (uint8, string, *memory.RawMemory, int, error) {
	const targetHeaderLen = 6 + 1 + 1 + 255 + 4 + 4

	if offset+targetHeaderLen > len(payload) {
		return 0, "", nil, 0, godfu.NewFormatError("truncated dfuse target header")
	}

	if string(payload[offset:offset+6]) != "Target" {
		return 0, "", nil, 0, godfu.NewFormatError("dfuse target signature mismatch")
	}

	cursor := offset + 6

	altSetting := payload[cursor]
	cursor++

	named := payload[cursor] != 0
	cursor++

	nameBytes := payload[cursor : cursor+255]
	cursor += 255

	name := ""
	if named {
		if nul := bytes.IndexByte(nameBytes, 0); nul >= 0 {
			name = string(nameBytes[:nul])
		} else {
			name = string(nameBytes)
		}
	}

	targetSize := leUint32(payload[cursor : cursor+4])
	cursor += 4

	nbElements := leUint32(payload[cursor : cursor+4])
	cursor += 4

	elementsStart := cursor

	mem := memory.NewRawMemory()

	for e := uint32(0); e < nbElements; e++ {
		if cursor+8 > len(payload) {
			return 0, "", nil, 0, godfu.NewFormatError("truncated dfuse element header")
		}

		addr := leUint32(payload[cursor : cursor+4])
		size := leUint32(payload[cursor+4 : cursor+8])
		cursor += 8

		if cursor+int(size) > len(payload) {
			return 0, "", nil, 0, godfu.NewFormatError("truncated dfuse element payload")
		}

		data := payload[cursor : cursor+int(size)]
		cursor += int(size)

		if !mem.TryAdd(memory.NewSegment(uint64(addr), data)) {
			return 0, "", nil, 0, &godfu.OverlapError{FirstStart: uint64(addr)}
		}
	}

	// dwTargetSize covers the image elements only, not the 271-byte target
	// prefix (name/alt-setting/element-count) that precedes them.
	if uint32(cursor-elementsStart) != targetSize {
		return 0, "", nil, 0, godfu.NewFormatError("dfuse target size does not match its elements")
	}

	return altSetting, name, mem, cursor, nil
}

func leUint16(b []byte) uint16 {
	return uint16(b[0]) | uint16(b[1])<<8
}

func leUint32(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}

func versionFromBcd(bcd uint16) godfu.Version {
	return godfu.Version{Major: byte(bcd >> 8), Minor: byte(bcd)}
}
