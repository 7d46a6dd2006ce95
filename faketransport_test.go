// Copyright 2020 Sebastian Lehmann. All rights reserved.
// Use of this source code is governed by a GNU-style
// license that can be found in the LICENSE file.

package godfu

import "errors"

// fakeTransport is an in-memory stand-in for a real gousb-backed Transport,
// good enough to drive the state machine through its documented paths
// without any USB hardware.
type fakeTransport struct {
	open bool
	alt  int

	setAltCalls int
	setAltErr   error

	statusQueue []Status
	getStatusN  int

	dnloadCalls []dnloadCall
	dnloadErr   error

	uploadChunks [][]byte
	uploadN      int
	uploadErr    error

	abortCalls    int
	abortErr      error
	clrStatusErr  error
	detachErr     error
	detachCalls   int

	busResetOK    bool
	busResetErr   error
	busResetCalls int

	stringDescriptors map[int]string
	layoutStrings     map[int]string
}

type dnloadCall struct {
	blockNum uint16
	data     []byte
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		open:              true,
		busResetOK:        true,
		stringDescriptors: map[int]string{},
		layoutStrings:     map[int]string{},
	}
}

func (f *fakeTransport) ControlTransfer(bRequest uint8, wValue, wIndex uint16, dir Direction, buffer []byte) (int, error) {
	switch bRequest {
	case reqDetach:
		f.detachCalls++
		return 0, f.detachErr

	case reqDnload:
		f.dnloadCalls = append(f.dnloadCalls, dnloadCall{blockNum: wValue, data: append([]byte{}, buffer...)})
		if f.dnloadErr != nil {
			return 0, f.dnloadErr
		}

		return len(buffer), nil

	case reqUpload:
		if f.uploadErr != nil {
			return 0, f.uploadErr
		}

		if f.uploadN >= len(f.uploadChunks) {
			return 0, nil
		}

		chunk := f.uploadChunks[f.uploadN]
		f.uploadN++
		n := copy(buffer, chunk)

		return n, nil

	case reqGetStatus:
		var s Status
		if f.getStatusN < len(f.statusQueue) {
			s = f.statusQueue[f.getStatusN]
			f.getStatusN++
		} else if len(f.statusQueue) > 0 {
			s = f.statusQueue[len(f.statusQueue)-1]
		}

		encodeStatus(buffer, s)

		return len(buffer), nil

	case reqClrStatus:
		return 0, f.clrStatusErr

	case reqAbort:
		f.abortCalls++
		return 0, f.abortErr

	case reqGetState:
		return 0, errors.New("fakeTransport: GETSTATE not used by this suite")
	}

	return 0, errors.New("fakeTransport: unhandled request")
}

func encodeStatus(buf []byte, s Status) {
	buf[0] = byte(s.Error)
	putUint16LEAt(buf, 1, uint16(s.PollTimeoutMs))
	buf[3] = byte(s.PollTimeoutMs >> 16)
	buf[4] = byte(s.State)
	buf[5] = s.IString
}

func (f *fakeTransport) SetAltSetting(alt int) error {
	f.setAltCalls++

	if f.setAltErr != nil {
		return f.setAltErr
	}

	f.alt = alt

	return nil
}

func (f *fakeTransport) GetAltSetting() (int, error) {
	return f.alt, nil
}

func (f *fakeTransport) GetStringDescriptor(index int) (string, error) {
	return f.stringDescriptors[index], nil
}

func (f *fakeTransport) BusReset() (bool, error) {
	f.busResetCalls++
	return f.busResetOK, f.busResetErr
}

func (f *fakeTransport) LayoutString(alt int) (string, error) {
	s, ok := f.layoutStrings[alt]
	if !ok {
		return "", errors.New("fakeTransport: no layout string registered")
	}

	return s, nil
}

func (f *fakeTransport) Close() error {
	f.open = false
	return nil
}

func (f *fakeTransport) IsOpen() bool {
	return f.open
}

func idleDescriptor() FunctionalDescriptor {
	// bmAttributes=0x0B (CanDownload|CanUpload|WillDetach),
	// DetachTimeoutMs=100, TransferSize=2048, bcdDFU=0x0110.
	buf := []byte{9, 0x21, 0x0B, 0x64, 0x00, 0x00, 0x08, 0x10, 0x01}
	d, err := ParseFunctionalDescriptor(buf)
	if err != nil {
		panic(err)
	}

	return d
}
