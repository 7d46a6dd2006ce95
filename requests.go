// Copyright 2020 Sebastian Lehmann. All rights reserved.
// Use of this source code is governed by a GNU-style
// license that can be found in the LICENSE file.

package godfu

// DFU class-request numbers (DFU 1.1 §3).
const (
	reqDetach    uint8 = 0
	reqDnload    uint8 = 1
	reqUpload    uint8 = 2
	reqGetStatus uint8 = 3
	reqClrStatus uint8 = 4
	reqGetState  uint8 = 5
	reqAbort     uint8 = 6
)

// Detach asks the device to leave application mode and enter the DFU
// bootloader, or (if already in DFU mode) to leave the bootloader.
func Detach(t Transport, iface int, timeoutMs uint16) error {
	_, err := t.ControlTransfer(reqDetach, timeoutMs, uint16(iface), DirOut, nil)
	if err != nil {
		return &TransferError{Request: "DETACH", Cause: err}
	}

	return nil
}

// Dnload transfers one block of firmware data, or (blockNum == 0) a DfuSe
// command, to the device.
func Dnload(t Transport, iface int, blockNum uint16, data []byte) error {
	_, err := t.ControlTransfer(reqDnload, blockNum, uint16(iface), DirOut, data)
	if err != nil {
		return &TransferError{Request: "DNLOAD", Cause: err}
	}

	return nil
}

// Upload reads up to len(buf) bytes of firmware data from the device,
// returning the number of bytes actually transferred. A short transfer
// signals the end of the upload.
func Upload(t Transport, iface int, blockNum uint16, buf []byte) (int, error) {
	n, err := t.ControlTransfer(reqUpload, blockNum, uint16(iface), DirIn, buf)
	if err != nil {
		return 0, &TransferError{Request: "UPLOAD", Cause: err}
	}

	return n, nil
}

// GetStatus issues GETSTATUS and parses the 6-byte response.
func GetStatus(t Transport, iface int) (Status, error) {
	buf := make([]byte, 6)

	_, err := t.ControlTransfer(reqGetStatus, 0, uint16(iface), DirIn, buf)
	if err != nil {
		return Status{}, &TransferError{Request: "GETSTATUS", Cause: err}
	}

	return ParseStatus(buf)
}

// ClrStatus issues CLRSTATUS, clearing a device-reported error.
func ClrStatus(t Transport, iface int) error {
	_, err := t.ControlTransfer(reqClrStatus, 0, uint16(iface), DirOut, nil)
	if err != nil {
		return &TransferError{Request: "CLRSTATUS", Cause: err}
	}

	return nil
}

// GetState issues GETSTATE, returning the device's current DfuState
// without the rest of a GETSTATUS response.
func GetState(t Transport, iface int) (DfuState, error) {
	buf := make([]byte, 1)

	_, err := t.ControlTransfer(reqGetState, 0, uint16(iface), DirIn, buf)
	if err != nil {
		return 0, &TransferError{Request: "GETSTATE", Cause: err}
	}

	return DfuState(buf[0]), nil
}

// Abort issues ABORT, returning the device from any abortable state back
// to dfuIDLE.
func Abort(t Transport, iface int) error {
	_, err := t.ControlTransfer(reqAbort, 0, uint16(iface), DirOut, nil)
	if err != nil {
		return &TransferError{Request: "ABORT", Cause: err}
	}

	return nil
}
