// Copyright 2020 Sebastian Lehmann. All rights reserved.
// Use of this source code is governed by a GNU-style
// license that can be found in the LICENSE file.

// Package usbtransport is the gousb-backed implementation of godfu.Transport:
// it owns device enumeration, interface/alt-setting claim, and the raw
// control-transfer plumbing the core state machine never touches directly.
package usbtransport

import (
	"github.com/google/gousb"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/bbnote/godfu"
)

// AnyID matches any vendor or product id during enumeration.
const AnyID = gousb.ID(0xFFFF)

var logger = logrus.New()

// SetLogger replaces the package-level logger, mirroring the root package's
// own SetLogger so a host CLI can wire a single configured instance through
// both.
func SetLogger(l *logrus.Logger) {
	logger = l
}

// Context owns the libusb session every device open goes through.
type Context struct {
	ctx *gousb.Context
}

// NewContext opens a fresh libusb session.
func NewContext() *Context {
	ctx := gousb.NewContext()
	ctx.Debug(1)

	return &Context{ctx: ctx}
}

// Close releases the libusb session. Every Transport opened from this
// Context must be closed first.
func (c *Context) Close() error {
	return c.ctx.Close()
}

// FindCandidates opens every device matching vid/pid (AnyID matches
// anything) and returns the godfu.Candidate describing each DFU-capable
// interface found on it, alongside the still-open *gousb.Device it came
// from so a caller can immediately open a Transport on the one it picks.
// Devices with no DFU interface are closed and dropped.
func (c *Context) FindCandidates(vid, pid gousb.ID) ([]godfu.Candidate, []*gousb.Device, error) {
	devices, err := c.ctx.OpenDevices(func(desc *gousb.DeviceDesc) bool {
		if vid != AnyID && desc.Vendor != vid {
			return false
		}

		if pid != AnyID && desc.Product != pid {
			return false
		}

		return true
	})
	if err != nil {
		return nil, nil, errors.Wrap(err, "opening candidate devices")
	}

	var candidates []godfu.Candidate
	var matched []*gousb.Device

	for _, dev := range devices {
		found, err := scanForDfuInterfaces(dev)
		if err != nil {
			logger.Debugf("descriptor scan failed for %s: %v", dev, err)
		}

		if len(found) == 0 {
			_ = dev.Close()
			continue
		}

		for _, cand := range found {
			candidates = append(candidates, cand)
			matched = append(matched, dev)
		}
	}

	return candidates, matched, nil
}

// OpenDevice resolves vid/pid down to one DFU-capable device and claims its
// first candidate interface/alt setting. If nothing matches the exact
// vid/pid pair and pid isn't already AnyID, it retries against vid alone,
// generalizing NewStLink's serial-number disambiguation into a pick-first/
// close-rest policy for a protocol with no equivalent per-unit identifier.
// Alongside the claimed Transport it returns the Candidate it chose and the
// Identification tuple (idVendor/idProduct/bcdDevice/bcdDFU) a caller needs
// to build a godfu.Device.
func (c *Context) OpenDevice(vid, pid gousb.ID) (*Transport, godfu.Candidate, godfu.Identification, error) {
	candidates, devices, err := c.FindCandidates(vid, pid)
	if err != nil {
		return nil, godfu.Candidate{}, godfu.Identification{}, err
	}

	if len(candidates) == 0 && pid != AnyID {
		candidates, devices, err = c.FindCandidates(vid, AnyID)
		if err != nil {
			return nil, godfu.Candidate{}, godfu.Identification{}, err
		}
	}

	if len(candidates) == 0 {
		return nil, godfu.Candidate{}, godfu.Identification{}, &godfu.DeviceNotFoundError{VendorID: uint16(vid), ProductID: uint16(pid)}
	}

	chosenDev := devices[0]
	chosenCand := candidates[0]

	for i := 1; i < len(devices); i++ {
		if devices[i] != chosenDev {
			_ = devices[i].Close()
		}
	}

	ident := godfu.Identification{
		VendorID:       uint16(chosenDev.Desc.Vendor),
		ProductID:      uint16(chosenDev.Desc.Product),
		ProductVersion: godfu.Version{Major: byte(chosenDev.Desc.Device.Major()), Minor: byte(chosenDev.Desc.Device.Minor())},
		DfuVersion:     chosenCand.Descriptor.DfuVersion,
	}

	cfgNum, err := chosenDev.ActiveConfigNum()
	if err != nil {
		_ = chosenDev.Close()
		return nil, godfu.Candidate{}, godfu.Identification{}, errors.Wrap(err, "reading active configuration")
	}

	alt := 0
	if len(chosenCand.AltSettings) > 0 {
		alt = chosenCand.AltSettings[0]
	}

	t, err := Open(chosenDev, cfgNum, chosenCand.Interface, alt)
	if err != nil {
		_ = chosenDev.Close()
		return nil, godfu.Candidate{}, godfu.Identification{}, errors.Wrapf(err, "claiming interface %d alt %d", chosenCand.Interface, alt)
	}

	return t, chosenCand, ident, nil
}
