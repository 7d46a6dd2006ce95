// Copyright 2020 Sebastian Lehmann. All rights reserved.
// Use of this source code is governed by a GNU-style
// license that can be found in the LICENSE file.

package firmware

import (
	"errors"
	"strings"
	"testing"

	"github.com/bbnote/godfu/memory"

	"github.com/bbnote/godfu"
)

func TestDecodeIntelHexSingleSegment(t *testing.T) {
	src := ":0400000001020304F2\n:00000001FF\n"

	mem, err := DecodeIntelHex(strings.NewReader(src))
	if err != nil {
		t.Fatalf("DecodeIntelHex: %v", err)
	}

	if mem.Len() != 1 {
		t.Fatalf("want 1 segment, got %d", mem.Len())
	}

	seg, _ := mem.First()
	if seg.Start != 0 {
		t.Fatalf("want start 0, got 0x%x", seg.Start)
	}

	want := []byte{0x01, 0x02, 0x03, 0x04}
	if !seg.Equal(memory.NewSegment(0, want)) {
		t.Fatalf("data mismatch: got %x", seg.Data)
	}
}

func TestDecodeIntelHexExtendedLinearAddress(t *testing.T) {
	// :02000004 0001 F9 sets the upper 16 bits to 0x0001, so the following
	// data record at 0x0000 lands at 0x00010000.
	src := ":020000040001F9\n:040000001122334452\n:00000001FF\n"

	mem, err := DecodeIntelHex(strings.NewReader(src))
	if err != nil {
		t.Fatalf("DecodeIntelHex: %v", err)
	}

	seg, ok := mem.First()
	if !ok {
		t.Fatal("expected a segment")
	}

	if seg.Start != 0x00010000 {
		t.Fatalf("want start 0x10000, got 0x%x", seg.Start)
	}
}

func TestDecodeIntelHexBadChecksum(t *testing.T) {
	// last byte flipped from F2 to F3.
	src := ":0400000001020304F3\n:00000001FF\n"

	_, err := DecodeIntelHex(strings.NewReader(src))
	if err == nil {
		t.Fatal("expected a checksum error")
	}

	var checksumErr *godfu.ChecksumError
	if !errors.As(err, &checksumErr) {
		t.Fatalf("want *godfu.ChecksumError, got %T: %v", err, err)
	}
}

func TestDecodeIntelHexMissingEOF(t *testing.T) {
	src := ":0400000001020304F2\n"

	_, err := DecodeIntelHex(strings.NewReader(src))
	if err == nil {
		t.Fatal("expected an error for a missing EOF record")
	}
}

