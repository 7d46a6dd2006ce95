// Copyright 2020 Sebastian Lehmann. All rights reserved.
// Use of this source code is governed by a GNU-style
// license that can be found in the LICENSE file.

package firmware

import "github.com/bbnote/godfu/memory"

// lineParser holds the state shared by the Intel HEX and S-record
// decoders: the current line number, an address offset to add to each
// record's address field, and a segment being accumulated across
// consecutive contiguous records. It is a plain struct with no package
// globals, so each decode call gets its own.
type lineParser struct {
	line        int
	addrOffset  uint64
	mem         *memory.RawMemory
	pending     *memory.Segment
}

func newLineParser() *lineParser {
	return &lineParser{mem: memory.NewRawMemory()}
}

// addData appends data at absolute address addr, continuing the pending
// segment when addr is contiguous with it and flushing (then starting a
// new one) on any discontinuity.
func (p *lineParser) addData(addr uint64, data []byte) {
	if p.pending != nil {
		next := p.pending.Start + uint64(p.pending.Len())

		if addr == next {
			p.pending.Data = append(p.pending.Data, data...)
			return
		}

		p.flush()
	}

	seg := memory.NewSegment(addr, data)
	p.pending = &seg
}

// flush commits the accumulated segment, if any, into the RawMemory.
func (p *lineParser) flush() {
	if p.pending == nil {
		return
	}

	p.mem.TryAdd(*p.pending)
	p.pending = nil
}

func (p *lineParser) result() *memory.RawMemory {
	p.flush()
	return p.mem
}
