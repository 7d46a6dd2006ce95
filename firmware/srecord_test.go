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

func TestDecodeSRecordSingleSegment(t *testing.T) {
	src := "S107000001020304EE\nS9030000FC\n"

	mem, err := DecodeSRecord(strings.NewReader(src))
	if err != nil {
		t.Fatalf("DecodeSRecord: %v", err)
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

func TestDecodeSRecordBadChecksum(t *testing.T) {
	// last byte flipped from EE to EF.
	src := "S107000001020304EF\nS9030000FC\n"

	_, err := DecodeSRecord(strings.NewReader(src))
	if err == nil {
		t.Fatal("expected a checksum error")
	}

	var checksumErr *godfu.ChecksumError
	if !errors.As(err, &checksumErr) {
		t.Fatalf("want *godfu.ChecksumError, got %T: %v", err, err)
	}
}

func TestDecodeSRecordUnknownType(t *testing.T) {
	src := "S407000001020304EE\n"

	_, err := DecodeSRecord(strings.NewReader(src))
	if err == nil {
		t.Fatal("expected an error for an unknown record type")
	}
}
