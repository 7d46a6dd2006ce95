// Copyright 2020 Sebastian Lehmann. All rights reserved.
// Use of this source code is governed by a GNU-style
// license that can be found in the LICENSE file.

// Package layout parses a DfuSe alt-setting's iInterface string into a
// memory.NamedLayout: "@<name> /0x<addr>/<n>*<size><unit><perm>[,...]".
package layout

import (
	"strconv"
	"strings"

	"github.com/bbnote/godfu/memory"
)

type parseError struct {
	reason string
}

func (e *parseError) Error() string {
	return "malformed dfuse layout string: " + e.reason
}

func fail(reason string) error {
	return &parseError{reason: reason}
}

// Parse decodes a DfuSe layout-string, e.g.
// "@Internal Flash /0x08000000/16*001Ka,112*001Kg", into a NamedLayout
// whose blocks are emitted contiguously starting at the declared address.
func Parse(s string) (memory.NamedLayout, error) {
	if !strings.HasPrefix(s, "@") {
		return memory.NamedLayout{}, fail("must start with '@'")
	}

	rest := s[1:]

	slashIdx := strings.Index(rest, "/0x")
	if slashIdx < 0 {
		slashIdx = strings.Index(rest, "/0X")
	}
	if slashIdx < 0 {
		return memory.NamedLayout{}, fail("missing '/0x<address>/' field")
	}

	name := strings.TrimSpace(rest[:slashIdx])
	remainder := rest[slashIdx+1:]

	fields := strings.Split(remainder, "/")
	if len(fields) < 2 {
		return memory.NamedLayout{}, fail("expected <addr>/<sectors> fields")
	}

	addrField := fields[0]
	if len(addrField) < 3 || !(addrField[:2] == "0x" || addrField[:2] == "0X") {
		return memory.NamedLayout{}, fail("address field must start with 0x")
	}

	baseAddr, err := strconv.ParseUint(addrField[2:], 16, 64)
	if err != nil {
		return memory.NamedLayout{}, fail("invalid hex address: " + err.Error())
	}

	sectorsField := fields[1]

	l := memory.NewLayout()
	addr := baseAddr

	for _, group := range strings.Split(sectorsField, ",") {
		group = strings.TrimSpace(group)
		if group == "" {
			continue
		}

		count, blockSize, err := parseSectorGroup(group)
		if err != nil {
			return memory.NamedLayout{}, err
		}

		for i := 0; i < count; i++ {
			block := memory.Block{
				StartAddr:   addr,
				Size:        blockSize,
				Permissions: memory.NewPermission(permMaskOf(group)),
			}

			if err := l.Append(block); err != nil {
				return memory.NamedLayout{}, err
			}

			addr += blockSize
		}
	}

	return memory.NamedLayout{Layout: *l, Name: name}, nil
}

// parseSectorGroup decodes "<n>*<size><unit><perm>" into (count, byte size).
func parseSectorGroup(group string) (int, uint64, error) {
	starIdx := strings.Index(group, "*")
	if starIdx < 0 {
		return 0, 0, fail("sector group missing '*': " + group)
	}

	countStr := group[:starIdx]
	sizeStr := group[starIdx+1:]

	count, err := strconv.Atoi(strings.TrimSpace(countStr))
	if err != nil {
		return 0, 0, fail("invalid sector count: " + err.Error())
	}

	if len(sizeStr) < 2 {
		return 0, 0, fail("sector size/unit/permission field too short: " + sizeStr)
	}

	unit := sizeStr[len(sizeStr)-2]
	numPart := sizeStr[:len(sizeStr)-2]

	size, err := strconv.ParseUint(strings.TrimSpace(numPart), 10, 64)
	if err != nil {
		return 0, 0, fail("invalid sector size: " + err.Error())
	}

	switch unit {
	case ' ':
		// size already in bytes
	case 'K':
		size *= 1024
	case 'M':
		size *= 1024 * 1024
	default:
		return 0, 0, fail("unknown size unit: " + string(unit))
	}

	return count, size, nil
}

// permMaskOf returns the low three bits of the trailing permission letter
// of a sector group, e.g. "16*001Ka" -> 'a' -> 0x01.
func permMaskOf(group string) byte {
	letter := group[len(group)-1]
	return letter & 0x07
}
