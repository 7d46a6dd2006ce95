// Copyright 2020 Sebastian Lehmann. All rights reserved.
// Use of this source code is governed by a GNU-style
// license that can be found in the LICENSE file.

package godfu

// Download performs a plain DFU 1.1 download of a single contiguous byte
// sequence (spec §4.6). The caller must have already run ResetToIdle.
func Download(d *Device, data []byte, obs Observer) error {
	if obs == nil {
		obs = NopObserver{}
	}

	transferSize := int(d.descriptor.TransferSize)
	if transferSize <= 0 {
		transferSize = len(data)
	}

	total := len(data)
	transferred := 0
	var blockNum uint16
	lastStatus := Status{State: StateIdle}

	for transferred < total {
		chunk := transferSize
		if remaining := total - transferred; remaining < chunk {
			chunk = remaining
		}

		if err := Dnload(d.transport, d.iface, blockNum, data[transferred:transferred+chunk]); err != nil {
			d.abortIfPossible(lastStatus)
			return err
		}

		status, err := d.pollUntilIdle()
		if err != nil {
			d.abortIfPossible(lastStatus)
			return err
		}

		lastStatus = status

		if status.State != StateDnloadIdle {
			d.abortIfPossible(status)
			return &InvalidStateError{Expected: StateDnloadIdle, Actual: status.State}
		}

		blockNum++
		transferred += chunk

		obs.OnProgress(transferred, total)
	}

	return nil
}
