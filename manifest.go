// Copyright 2020 Sebastian Lehmann. All rights reserved.
// Use of this source code is governed by a GNU-style
// license that can be found in the LICENSE file.

package godfu

import "time"

// Manifest ends the transfer phase and drives the device through
// manifestation, closing the handle on return (spec §4.8). Any transfer
// error is tolerated only when the descriptor says the device is not
// manifestation-tolerant but will detach on its own.
func Manifest(d *Device) error {
	tolerate := !d.descriptor.ManifestationTolerant() && d.descriptor.WillDetach()

	err := manifestSequence(d)
	if err != nil && !tolerate {
		_ = d.transport.Close()
		return err
	}

	_ = d.transport.Close()

	if err != nil {
		logger.Debugf("manifest transfer error swallowed, device expected to detach: %v", err)
	}

	return nil
}

func manifestSequence(d *Device) error {
	if err := Dnload(d.transport, d.iface, 0, []byte{}); err != nil {
		return err
	}

	status, err := GetStatus(d.transport, d.iface)
	if err != nil {
		return err
	}

	for status.State == StateManifest {
		time.Sleep(time.Duration(status.PollTimeoutMs) * time.Millisecond)

		status, err = GetStatus(d.transport, d.iface)
		if err != nil {
			return err
		}
	}

	if d.descriptor.ManifestationTolerant() {
		if status.State != StateIdle {
			return &InvalidStateError{Expected: StateIdle, Actual: status.State, Reason: "manifest"}
		}

		if _, err := d.transport.BusReset(); err != nil {
			return err
		}

		return nil
	}

	if status.State != StateManifestWaitReset {
		return &InvalidStateError{Expected: StateManifestWaitReset, Actual: status.State, Reason: "manifest"}
	}

	if !d.descriptor.WillDetach() {
		if _, err := d.transport.BusReset(); err != nil {
			return err
		}
	}

	return nil
}
