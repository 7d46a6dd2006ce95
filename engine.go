// Copyright 2020 Sebastian Lehmann. All rights reserved.
// Use of this source code is governed by a GNU-style
// license that can be found in the LICENSE file.

package godfu

import "time"

// Device binds a Transport to one DFU interface and its functional
// descriptor. It is the handle every state-machine operation in this
// package takes, mirroring the way the teacher's StLinkHandle carries its
// gousb.Device plus parsed version/feature state.
type Device struct {
	transport  Transport
	iface      int
	descriptor FunctionalDescriptor
	ident      Identification

	currentAlt int
}

// NewDevice wraps an already-open Transport for the given interface.
func NewDevice(t Transport, iface int, descriptor FunctionalDescriptor, ident Identification) *Device {
	return &Device{transport: t, iface: iface, descriptor: descriptor, ident: ident}
}

// Descriptor returns the device's parsed DFU functional descriptor.
func (d *Device) Descriptor() FunctionalDescriptor { return d.descriptor }

// Identification returns the device's vendor/product/version tuple.
func (d *Device) Identification() Identification { return d.ident }

// Close releases the underlying transport handle.
func (d *Device) Close() error {
	return d.transport.Close()
}

// SelectAltSetting switches to alt, doing nothing if it is already current
// (testable property 9: idempotent, no USB traffic on a repeat call).
func (d *Device) SelectAltSetting(alt int) error {
	current, err := d.transport.GetAltSetting()
	if err != nil {
		return err
	}

	if current == alt {
		d.currentAlt = alt
		return nil
	}

	if err := d.transport.SetAltSetting(alt); err != nil {
		return err
	}

	d.currentAlt = alt

	return nil
}

// pollUntilIdle busy-polls GETSTATUS, sleeping the device-dictated
// poll_timeout_ms between attempts, until the state leaves DnloadBusy. It
// is the only suspension point used by every download chunk and DfuSe
// command (spec §5).
func (d *Device) pollUntilIdle() (Status, error) {
	for {
		s, err := GetStatus(d.transport, d.iface)
		if err != nil {
			return Status{}, err
		}

		if s.State == StateDnloadBusy {
			time.Sleep(time.Duration(s.PollTimeoutMs) * time.Millisecond)
			continue
		}

		return s, nil
	}
}

// abortIfPossible issues a best-effort ABORT when the device is still open
// and its last known state allows it. Errors are deliberately discarded:
// this runs only on a failure path trying to leave the device recoverable.
func (d *Device) abortIfPossible(last Status) {
	if !d.transport.IsOpen() {
		return
	}

	if !last.State.Abortable() {
		return
	}

	_ = Abort(d.transport, d.iface)
}
