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

// addressWidthBytes maps an S-record type to its address field width.
var addressWidthBytes = map[byte]int{
	'0': 2,
	'1': 2,
	'2': 3,
	'3': 4,
	'5': 2,
	'6': 3,
	'7': 4,
	'8': 3,
	'9': 2,
}

// DecodeSRecord parses a Motorola S-record (.s19/.srec/…) file into a
// RawMemory.
func DecodeSRecord(r io.Reader) (*memory.RawMemory, error) {
	p := newLineParser()

	scanner := bufio.NewScanner(r)

	for scanner.Scan() {
		p.line++

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		if err := decodeSRecordLine(p, line); err != nil {
			return nil, err
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, err
	}

	return p.result(), nil
}

func decodeSRecordLine(p *lineParser, line string) error {
	if len(line) < 4 || line[0] != 'S' {
		return godfu.NewFormatErrorAt("s-record must start with 'S'", int64(p.line))
	}

	recType := line[1]

	width, ok := addressWidthBytes[recType]
	if !ok {
		return godfu.NewFormatErrorAt("unknown s-record type", int64(p.line))
	}

	raw, err := hex.DecodeString(line[2:])
	if err != nil {
		return godfu.NewFormatErrorAt("invalid hex digits: "+err.Error(), int64(p.line))
	}

	if len(raw) < 1 {
		return godfu.NewFormatErrorAt("s-record missing byte count", int64(p.line))
	}

	byteCount := int(raw[0])
	if len(raw) != 1+byteCount {
		return godfu.NewFormatErrorAt("record length does not match byte count", int64(p.line))
	}

	if byteCount < width+1 {
		return godfu.NewFormatErrorAt("byte count too small for address+checksum", int64(p.line))
	}

	addrBytes := raw[1 : 1+width]

	var addr uint64
	for _, b := range addrBytes {
		addr = addr<<8 | uint64(b)
	}

	dataLen := byteCount - width - 1
	data := raw[1+width : 1+width+dataLen]
	checksum := raw[len(raw)-1]

	var sum byte
	for _, b := range raw[:len(raw)-1] {
		sum += b
	}

	want := sum ^ 0xFF
	if want != checksum {
		return &godfu.ChecksumError{Line: p.line, Want: want, Got: checksum}
	}

	switch recType {
	case '0', '5', '6':
		// header / count records: checked above, not stored.

	case '1', '2', '3':
		p.addData(addr, data)

	case '7', '8', '9':
		// start-address records terminate and flush the current segment.
		p.flush()

	default:
		return godfu.NewFormatErrorAt("unknown s-record type", int64(p.line))
	}

	return nil
}
