// Copyright 2020 Sebastian Lehmann. All rights reserved.
// Use of this source code is governed by a GNU-style
// license that can be found in the LICENSE file.

package firmware

import (
	"bufio"
	"encoding/hex"
	"io"
	"strings"

	"github.com/bbnote/godfu/memory"

	"github.com/bbnote/godfu"
)

const (
	ihexRecData                = 0x00
	ihexRecEOF                 = 0x01
	ihexRecExtendedSegmentAddr = 0x02
	ihexRecStartSegmentAddr    = 0x03
	ihexRecExtendedLinearAddr  = 0x04
	ihexRecStartLinearAddr     = 0x05
)

// DecodeIntelHex parses an Intel HEX (.hex) file into a RawMemory.
func DecodeIntelHex(r io.Reader) (*memory.RawMemory, error) {
	p := newLineParser()

	scanner := bufio.NewScanner(r)
	sawEOF := false

	for scanner.Scan() {
		p.line++

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		done, err := decodeIntelHexLine(p, line)
		if err != nil {
			return nil, err
		}

		if done {
			sawEOF = true
			break
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, err
	}

	if !sawEOF {
		return nil, godfu.NewFormatError("intel hex file must end on an EOF record")
	}

	return p.result(), nil
}

// decodeIntelHexLine decodes one ':'-prefixed record, returning done=true
// on an EOF record.
func decodeIntelHexLine(p *lineParser, line string) (bool, error) {
	if len(line) < 11 || line[0] != ':' {
		return false, godfu.NewFormatErrorAt("intel hex record must start with ':'", int64(p.line))
	}

	raw, err := hex.DecodeString(line[1:])
	if err != nil {
		return false, godfu.NewFormatErrorAt("invalid hex digits: "+err.Error(), int64(p.line))
	}

	if len(raw) < 5 {
		return false, godfu.NewFormatErrorAt("record too short", int64(p.line))
	}

	byteCount := int(raw[0])
	recAddr := uint16(raw[1])<<8 | uint16(raw[2])
	recType := raw[3]

	if len(raw) != 5+byteCount {
		return false, godfu.NewFormatErrorAt("record length does not match byte count", int64(p.line))
	}

	data := raw[4 : 4+byteCount]
	checksum := raw[4+byteCount]

	var sum byte
	for _, b := range raw[:len(raw)-1] {
		sum += b
	}

	want := byte((0 - int(sum)) & 0xFF)
	if want != checksum {
		return false, &godfu.ChecksumError{Line: p.line, Want: want, Got: checksum}
	}

	switch recType {
	case ihexRecData:
		p.addData(p.addrOffset+uint64(recAddr), data)

	case ihexRecEOF:
		return true, nil

	case ihexRecExtendedSegmentAddr:
		if len(data) != 2 {
			return false, godfu.NewFormatErrorAt("extended segment address record must carry 2 data bytes", int64(p.line))
		}

		p.flush()
		p.addrOffset = uint64(uint16(data[0])<<8|uint16(data[1])) << 4

	case ihexRecExtendedLinearAddr:
		if len(data) != 2 {
			return false, godfu.NewFormatErrorAt("extended linear address record must carry 2 data bytes", int64(p.line))
		}

		p.flush()
		p.addrOffset = uint64(uint16(data[0])<<8|uint16(data[1])) << 16

	case ihexRecStartSegmentAddr, ihexRecStartLinearAddr:
		// start-address records only set a CPU entry point, not memory
		// content; nothing to store.

	default:
		return false, godfu.NewFormatErrorAt("unknown intel hex record type", int64(p.line))
	}

	return false, nil
}
