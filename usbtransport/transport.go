// Copyright 2020 Sebastian Lehmann. All rights reserved.
// Use of this source code is governed by a GNU-style
// license that can be found in the LICENSE file.

package usbtransport

import (
	"github.com/google/gousb"

	"github.com/bbnote/godfu"
)

const (
	dfuClassOut = 0x21 // host-to-device | class | interface
	dfuClassIn  = 0xA1 // device-to-host | class | interface
)

// Transport claims one DFU interface on an already-open gousb.Device and
// implements godfu.Transport against it.
type Transport struct {
	dev    *gousb.Device
	cfg    *gousb.Config
	iface  *gousb.Interface
	ifNum  int
	altNum int
	open   bool
}

// Open claims cfgNum/ifNum/altNum on dev, mirroring the config-then-interface
// claim sequence every gousb consumer in this codebase follows.
func Open(dev *gousb.Device, cfgNum, ifNum, altNum int) (*Transport, error) {
	// DFU interfaces are frequently still bound to a kernel driver (e.g.
	// usb-storage on a device that also exposes a mass-storage function);
	// let libusb detach and reattach it around the claim instead of
	// failing outright.
	if err := dev.SetAutoDetach(true); err != nil {
		logger.Debugf("SetAutoDetach failed (continuing): %v", err)
	}

	cfg, err := dev.Config(cfgNum)
	if err != nil {
		return nil, err
	}

	iface, err := cfg.Interface(ifNum, altNum)
	if err != nil {
		_ = cfg.Close()
		return nil, err
	}

	return &Transport{dev: dev, cfg: cfg, iface: iface, ifNum: ifNum, altNum: altNum, open: true}, nil
}

func (t *Transport) ControlTransfer(bRequest uint8, wValue, wIndex uint16, dir godfu.Direction, buffer []byte) (int, error) {
	rType := uint8(dfuClassOut)
	if dir == godfu.DirIn {
		rType = dfuClassIn
	}

	return withRetry(func() (int, error) {
		return t.dev.Control(rType, bRequest, wValue, wIndex, buffer)
	})
}

// SetAltSetting re-claims the interface at alt, since gousb ties an alt
// setting to the Interface handle itself rather than exposing a standalone
// SET_INTERFACE call.
func (t *Transport) SetAltSetting(alt int) error {
	if alt == t.altNum {
		return nil
	}

	next, err := t.cfg.Interface(t.ifNum, alt)
	if err != nil {
		return err
	}

	t.iface.Close()
	t.iface = next
	t.altNum = alt

	return nil
}

// GetAltSetting reports the alt setting gousb currently has claimed. gousb
// ties an alt setting to the Interface handle itself (SetAltSetting re-claims
// a new one rather than issuing SET_INTERFACE on the wire), so the claimed
// handle is already the native source of truth and no device round-trip is
// needed.
func (t *Transport) GetAltSetting() (int, error) {
	return t.altNum, nil
}

func (t *Transport) GetStringDescriptor(index int) (string, error) {
	return t.dev.GetStringDescriptor(index)
}

func (t *Transport) BusReset() (bool, error) {
	return true, t.dev.Reset()
}

// LayoutString resolves alt's iInterface string descriptor: the DfuSe
// layout mini-language travels there rather than in any binary descriptor
// field.
func (t *Transport) LayoutString(alt int) (string, error) {
	index, err := findInterfaceStringIndex(t.dev, t.ifNum, alt)
	if err != nil {
		return "", err
	}

	return t.dev.GetStringDescriptor(index)
}

func (t *Transport) Close() error {
	if !t.open {
		return nil
	}

	t.open = false

	t.iface.Close()

	if err := t.cfg.Close(); err != nil {
		return err
	}

	return t.dev.Close()
}

func (t *Transport) IsOpen() bool {
	return t.open
}
