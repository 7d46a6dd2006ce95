// Copyright 2020 Sebastian Lehmann. All rights reserved.
// Use of this source code is governed by a GNU-style
// license that can be found in the LICENSE file.

package godfu

import "fmt"

// DfuState enumerates the states of the DFU state machine (DFU 1.1 §6.1.2).
type DfuState uint8

const (
	StateAppIdle             DfuState = 0
	StateAppDetach           DfuState = 1
	StateIdle                DfuState = 2
	StateDnloadSync          DfuState = 3
	StateDnloadBusy          DfuState = 4
	StateDnloadIdle          DfuState = 5
	StateManifestSync        DfuState = 6
	StateManifest            DfuState = 7
	StateManifestWaitReset   DfuState = 8
	StateUploadIdle          DfuState = 9
	StateError               DfuState = 10
)

var stateNames = map[DfuState]string{
	StateAppIdle:           "appIDLE",
	StateAppDetach:         "appDETACH",
	StateIdle:              "dfuIDLE",
	StateDnloadSync:        "dfuDNLOAD-SYNC",
	StateDnloadBusy:        "dfuDNBUSY",
	StateDnloadIdle:        "dfuDNLOAD-IDLE",
	StateManifestSync:      "dfuMANIFEST-SYNC",
	StateManifest:          "dfuMANIFEST",
	StateManifestWaitReset: "dfuMANIFEST-WAIT-RESET",
	StateUploadIdle:        "dfuUPLOAD-IDLE",
	StateError:             "dfuERROR",
}

func (s DfuState) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}

	return fmt.Sprintf("dfuState(%d)", uint8(s))
}

// IsAppState reports whether the device is still running its application
// firmware rather than the DFU bootloader.
func (s DfuState) IsAppState() bool {
	return s < StateIdle
}

// Abortable reports whether ABORT is a legal request from this state.
func (s DfuState) Abortable() bool {
	switch s {
	case StateDnloadSync, StateDnloadIdle, StateManifestSync, StateUploadIdle:
		return true
	default:
		return false
	}
}

// ErrorCode enumerates the bError values of a GETSTATUS response
// (DFU 1.1 §6.1.2). Any wire value beyond StalledPkt round-trips as
// Unknown rather than fabricating a name for it.
type ErrorCode uint8

const (
	ErrOk               ErrorCode = 0x00
	ErrTarget           ErrorCode = 0x01
	ErrFile             ErrorCode = 0x02
	ErrWrite            ErrorCode = 0x03
	ErrErase            ErrorCode = 0x04
	ErrCheckErased      ErrorCode = 0x05
	ErrProg             ErrorCode = 0x06
	ErrVerify           ErrorCode = 0x07
	ErrAddress          ErrorCode = 0x08
	ErrNotDone          ErrorCode = 0x09
	ErrFirmware         ErrorCode = 0x0A
	ErrVendor           ErrorCode = 0x0B
	ErrUsbReset         ErrorCode = 0x0C
	ErrPorReset         ErrorCode = 0x0D
	ErrUnknown_         ErrorCode = 0x0E // wire value "unknown", distinct from the Unknown sentinel below
	ErrStalledPkt       ErrorCode = 0x0F
	ErrUnknown          ErrorCode = 0xFF
)

var errorNames = map[ErrorCode]string{
	ErrOk:          "No error",
	ErrTarget:      "File is not targeted for this device",
	ErrFile:        "File is for this device but fails some vendor verification",
	ErrWrite:       "Device is unable to write memory",
	ErrErase:       "Memory erase function failed",
	ErrCheckErased: "Memory erase check failed",
	ErrProg:        "Program memory function failed",
	ErrVerify:      "Programmed memory failed verification",
	ErrAddress:     "Cannot program memory due to address out of range",
	ErrNotDone:     "Received DNLOAD with wLength=0 but device does not think transfer is complete",
	ErrFirmware:    "Device's firmware is corrupt and cannot return to a normal operation",
	ErrVendor:      "iString indicates a vendor-specific error",
	ErrUsbReset:    "Device detected unexpected USB reset signalling",
	ErrPorReset:    "Device detected unexpected power on reset",
	ErrUnknown_:    "Something went wrong, but the device does not know what",
	ErrStalledPkt:  "Device stalled an unexpected request",
}

// ParseErrorCode maps a raw bError byte to an ErrorCode, folding any value
// past StalledPkt into Unknown per spec.
func ParseErrorCode(b byte) ErrorCode {
	if b > byte(ErrStalledPkt) {
		return ErrUnknown
	}

	return ErrorCode(b)
}

func (e ErrorCode) String() string {
	if name, ok := errorNames[e]; ok {
		return name
	}

	return "Unknown error"
}

// Status is the parsed result of a GETSTATUS request (DFU 1.1 §6.1.2).
type Status struct {
	Error         ErrorCode
	PollTimeoutMs uint32
	State         DfuState
	IString       uint8
}

// ParseStatus decodes a 6-byte GETSTATUS response: bStatus, then a
// little-endian 24-bit bwPollTimeout, then bState, then iString.
func ParseStatus(buf []byte) (Status, error) {
	if len(buf) < 6 {
		return Status{}, NewFormatError("GETSTATUS response must be 6 bytes")
	}

	pollTimeout, err := readUint24LEAt(buf, 1)
	if err != nil {
		return Status{}, err
	}

	return Status{
		Error:         ParseErrorCode(buf[0]),
		PollTimeoutMs: pollTimeout,
		State:         DfuState(buf[4]),
		IString:       buf[5],
	}, nil
}
