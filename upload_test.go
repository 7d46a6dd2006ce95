// Copyright 2020 Sebastian Lehmann. All rights reserved.
// Use of this source code is governed by a GNU-style
// license that can be found in the LICENSE file.

package godfu

import "testing"

func uploadCapableDescriptor(transferSize uint16) FunctionalDescriptor {
	buf := make([]byte, 9)
	buf[0] = 9
	buf[1] = 0x21
	buf[2] = 0x0B // CanDownload|CanUpload|WillDetach
	putUint16LEAt(buf, 3, 0)
	putUint16LEAt(buf, 5, transferSize)
	putUint16LEAt(buf, 7, 0x0110)

	desc, err := ParseFunctionalDescriptor(buf)
	if err != nil {
		panic(err)
	}

	return desc
}

func TestUploadFirmwareStopsOnShortTransfer(t *testing.T) {
	ft := newFakeTransport()
	ft.statusQueue = []Status{{State: StateIdle}}
	ft.uploadChunks = [][]byte{{1, 2, 3}}

	d := NewDevice(ft, 0, uploadCapableDescriptor(4), Identification{})

	data, err := UploadFirmware(d, nil)
	if err != nil {
		t.Fatalf("UploadFirmware: %v", err)
	}

	if string(data) != string([]byte{1, 2, 3}) {
		t.Fatalf("data = %v, want [1 2 3]", data)
	}
}

func TestUploadFirmwareStopsOnFullThenShort(t *testing.T) {
	ft := newFakeTransport()
	ft.statusQueue = []Status{{State: StateIdle}}
	ft.uploadChunks = [][]byte{{1, 2}, {3}}

	d := NewDevice(ft, 0, uploadCapableDescriptor(2), Identification{})

	data, err := UploadFirmware(d, nil)
	if err != nil {
		t.Fatalf("UploadFirmware: %v", err)
	}

	if string(data) != string([]byte{1, 2, 3}) {
		t.Fatalf("data = %v, want [1 2 3]", data)
	}

	if ft.uploadN != 2 {
		t.Fatalf("upload requests = %d, want 2", ft.uploadN)
	}
}

func TestUploadFirmwareRejectsWhenCanUploadUnset(t *testing.T) {
	buf := make([]byte, 9)
	buf[0] = 9
	buf[1] = 0x21
	buf[2] = 0x01 // CanDownload only
	putUint16LEAt(buf, 5, 4)
	desc, err := ParseFunctionalDescriptor(buf)
	if err != nil {
		t.Fatalf("ParseFunctionalDescriptor: %v", err)
	}

	ft := newFakeTransport()
	d := NewDevice(ft, 0, desc, Identification{})

	if _, err := UploadFirmware(d, nil); err == nil {
		t.Fatal("expected an error when CanUpload is unset")
	}
}

func TestUploadDfuSeRejectsOutOfRangeAddress(t *testing.T) {
	ft := newFakeTransport()
	ft.layoutStrings[0] = "@Internal Flash /0x08000000/4*16Kg,1*64Kg,7*128Kg"

	d := NewDevice(ft, 0, uploadCapableDescriptor(64), Identification{})

	// address 0 falls outside the declared layout entirely.
	if _, err := UploadDfuSe(d, 0, 0x0, 16, nil); err == nil {
		t.Fatal("expected an out-of-range error")
	}
}

func TestUploadDfuSeReissuesSetAddressOnBlockNumWrap(t *testing.T) {
	ft := newFakeTransport()
	ft.layoutStrings[0] = "@Internal Flash /0x08000000/4*16Kg,1*64Kg,7*128Kg"
	ft.statusQueue = []Status{
		{State: StateIdle},       // ResetToIdle's GETSTATUS
		{State: StateDnloadIdle}, // every SetAddress command poll afterwards
	}

	fullChunks := int(uploadBlockNumWrap) - int(UploadBaseDfuSe) + 2
	ft.uploadChunks = make([][]byte, fullChunks+1)
	for i := 0; i < fullChunks; i++ {
		ft.uploadChunks[i] = []byte{0xAA}
	}
	ft.uploadChunks[fullChunks] = nil // short (zero-length) transfer ends the loop

	d := NewDevice(ft, 0, uploadCapableDescriptor(1), Identification{})

	if _, err := UploadDfuSe(d, 0, 0x08000000, uint64(fullChunks), nil); err != nil {
		t.Fatalf("UploadDfuSe: %v", err)
	}

	// dnloadCalls[0] is UploadDfuSe's initial SetAddress; every SetAddress
	// issued afterwards comes from uploadLoop's wrap handling, so exactly
	// one more entry is expected for the single wrap this test crosses.
	if len(ft.dnloadCalls) != 2 {
		t.Fatalf("dnload calls = %d, want 2 (initial SetAddress + one wrap reissue)", len(ft.dnloadCalls))
	}

	if ft.dnloadCalls[1].data[0] != byte(dfuseSetAddress) {
		t.Fatalf("expected the second dnload call to reissue SetAddress, got opcode 0x%02x", ft.dnloadCalls[1].data[0])
	}
}

func TestUploadDfuSeReadsFromSetAddress(t *testing.T) {
	ft := newFakeTransport()
	ft.layoutStrings[0] = "@Internal Flash /0x08000000/4*16Kg,1*64Kg,7*128Kg"
	ft.statusQueue = []Status{
		{State: StateIdle},        // ResetToIdle's GETSTATUS
		{State: StateDnloadIdle},  // SetAddress command poll
		{State: StateIdle},        // (unused, extra safety)
	}
	ft.uploadChunks = [][]byte{{0xDE, 0xAD, 0xBE, 0xEF}}

	d := NewDevice(ft, 0, uploadCapableDescriptor(8), Identification{})

	data, err := UploadDfuSe(d, 0, 0x08000000, 4, nil)
	if err != nil {
		t.Fatalf("UploadDfuSe: %v", err)
	}

	if len(data) != 4 {
		t.Fatalf("data length = %d, want 4 (truncated to the requested length)", len(data))
	}

	if len(ft.dnloadCalls) != 1 {
		t.Fatalf("dnload calls = %d, want 1 (the SetAddress command)", len(ft.dnloadCalls))
	}
}
