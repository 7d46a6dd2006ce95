// Copyright 2020 Sebastian Lehmann. All rights reserved.
// Use of this source code is governed by a GNU-style
// license that can be found in the LICENSE file.

package godfu

import "time"

const reconfigureSleepPaddingMs = 500

// Reconfigure drives a device from application mode into the DFU
// bootloader (spec §4.4). The caller must re-open the device, now
// presenting the DFU interface, after this returns.
func Reconfigure(d *Device) error {
	status, err := GetStatus(d.transport, d.iface)
	if err != nil {
		return err
	}

	if status.State == StateAppIdle {
		if err := Detach(d.transport, d.iface, d.descriptor.DetachTimeoutMs); err != nil {
			if !d.descriptor.WillDetach() {
				return err
			}

			logger.Debugf("detach transport error swallowed, device already tripped detach-attach: %v", err)
		}
	}

	if d.descriptor.WillDetach() {
		if err := d.transport.Close(); err != nil {
			logger.Warnf("error closing handle before re-enumeration: %v", err)
		}
	} else {
		if ok, err := d.transport.BusReset(); ok {
			if err != nil {
				logger.Debugf("bus reset error swallowed, device already vanished: %v", err)
			}
		}

		if err := d.transport.Close(); err != nil {
			logger.Warnf("error closing handle before re-enumeration: %v", err)
		}
	}

	sleepMs := int(d.descriptor.DetachTimeoutMs) + reconfigureSleepPaddingMs
	time.Sleep(time.Duration(sleepMs) * time.Millisecond)

	return nil
}

// ResetToIdle clears any device error and asserts the terminal state is
// dfuIDLE (spec §4.5).
func ResetToIdle(d *Device, obs Observer) error {
	if obs == nil {
		obs = NopObserver{}
	}

	status, err := GetStatus(d.transport, d.iface)
	if err != nil {
		return err
	}

	if status.State == StateError {
		obs.OnDeviceError(deviceErrorMessage(d, status))

		if err := ClrStatus(d.transport, d.iface); err != nil {
			return err
		}

		status, err = GetStatus(d.transport, d.iface)
		if err != nil {
			return err
		}
	}

	if status.State.Abortable() {
		if err := Abort(d.transport, d.iface); err != nil {
			return err
		}

		status, err = GetStatus(d.transport, d.iface)
		if err != nil {
			return err
		}
	}

	if status.State != StateIdle {
		return &InvalidStateError{Expected: StateIdle, Actual: status.State}
	}

	return nil
}

// deviceErrorMessage stringifies a status error: vendor errors consult the
// iString descriptor, every other code stringifies itself.
func deviceErrorMessage(d *Device, status Status) string {
	if status.Error == ErrVendor && status.IString != 0 {
		if s, err := d.transport.GetStringDescriptor(int(status.IString)); err == nil && s != "" {
			return s
		}
	}

	return status.Error.String()
}
