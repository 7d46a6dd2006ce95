// Copyright 2020 Sebastian Lehmann. All rights reserved.
// Use of this source code is governed by a GNU-style
// license that can be found in the LICENSE file.

package godfu

import (
	"github.com/bbnote/godfu/layout"
	"github.com/bbnote/godfu/memory"
)

// dfuseCommand is the small, deliberately separate enum of commands that
// ride the DNLOAD(blockNum=0) channel, so a caller can never confuse a
// firmware block with a command (Design Notes §9).
type dfuseCommand byte

const (
	dfuseGetCommands   dfuseCommand = 0x00
	dfuseSetAddress    dfuseCommand = 0x21
	dfuseErase         dfuseCommand = 0x41
	dfuseReadUnprotect dfuseCommand = 0x92
)

const (
	dfuseFirstDataBlockNum = 2
	dfuseBlockNumWrap      = 0x10000
)

// sendDfuseCommand issues one DfuSe command over the DNLOAD command
// channel and waits for the device to report dfuDNLOAD-IDLE.
func sendDfuseCommand(d *Device, code dfuseCommand, payload []byte) error {
	buf := append([]byte{byte(code)}, payload...)

	if err := Dnload(d.transport, d.iface, 0, buf); err != nil {
		return err
	}

	status, err := d.pollUntilIdle()
	if err != nil {
		return err
	}

	if status.State != StateDnloadIdle {
		return &InvalidStateError{Expected: StateDnloadIdle, Actual: status.State, Reason: "dfuse command"}
	}

	return nil
}

func setAddressCommand(d *Device, addr uint64) error {
	payload := make([]byte, 4)
	putUint32LEAt(payload, 0, uint32(addr))

	return sendDfuseCommand(d, dfuseSetAddress, payload)
}

func eraseCommand(d *Device, blockStart uint64) error {
	payload := make([]byte, 4)
	putUint32LEAt(payload, 0, uint32(blockStart))

	return sendDfuseCommand(d, dfuseErase, payload)
}

// DownloadDfuSe downloads a single named-memory target to an alt setting
// using the DfuSe address-targeted protocol (spec §4.7). obs receives
// progress events against the sum of this target's segment lengths.
func DownloadDfuSe(d *Device, altSetting uint8, image memory.NamedMemory, obs Observer) error {
	if obs == nil {
		obs = NopObserver{}
	}

	if err := d.SelectAltSetting(int(altSetting)); err != nil {
		return err
	}

	layoutStr, err := d.transport.LayoutString(int(altSetting))
	if err != nil {
		return err
	}

	named, err := layout.Parse(layoutStr)
	if err != nil {
		return err
	}

	first, ok := image.First()
	if !ok {
		return nil
	}

	last, _ := image.Last()

	if first.Start < named.StartAddress() || last.End() >= named.End() {
		return &OutOfRangeError{
			Addr:         first.Start,
			LayoutStart:  named.StartAddress(),
			LayoutEnd:    named.End(),
			LayoutDevice: named.Name,
		}
	}

	if err := ResetToIdle(d, obs); err != nil {
		return err
	}

	if err := eraseDfuseRange(d, &named.Layout, first.Start, last.End()); err != nil {
		return err
	}

	total := 0
	for _, seg := range image.Segments() {
		total += seg.Len()
	}

	transferred := 0
	transferSize := int(d.descriptor.TransferSize)
	if transferSize <= 0 {
		transferSize = 1
	}

	for _, seg := range image.Segments() {
		if err := downloadDfuseSegment(d, seg, transferSize, &transferred, total, obs); err != nil {
			return err
		}
	}

	return nil
}

// eraseDfuseRange walks every block covering [lo, hi] (inclusive), failing
// with ReadOnlyTargetError on a non-writeable block and erasing each
// Eraseable one.
func eraseDfuseRange(d *Device, l *memory.Layout, lo, hi uint64) error {
	addr := lo

	for addr <= hi {
		block, ok := l.BlockAt(addr)
		if !ok {
			return &OutOfRangeError{Addr: addr, LayoutStart: l.StartAddress(), LayoutEnd: l.End()}
		}

		if !block.Permissions.Writeable() {
			return &ReadOnlyTargetError{BlockStart: block.StartAddr}
		}

		if block.Permissions.Eraseable() {
			if err := eraseCommand(d, block.StartAddr); err != nil {
				return err
			}
		}

		addr = block.End()
	}

	return nil
}

// downloadDfuseSegment transfers one segment's bytes in transferSize
// chunks starting with blockNum=2, re-issuing SetAddress and resetting the
// block counter to 2 whenever it wraps past 0xFFFF (spec §4.7 point 7,
// testable property 8).
func downloadDfuseSegment(d *Device, seg memory.Segment, transferSize int, transferred *int, total int, obs Observer) error {
	if err := setAddressCommand(d, seg.Start); err != nil {
		return err
	}

	blockNum := uint16(dfuseFirstDataBlockNum)
	offset := 0

	for offset < seg.Len() {
		chunk := transferSize
		if remaining := seg.Len() - offset; remaining < chunk {
			chunk = remaining
		}

		if err := Dnload(d.transport, d.iface, blockNum, seg.Data[offset:offset+chunk]); err != nil {
			d.abortIfPossible(Status{State: StateDnloadIdle})
			return err
		}

		status, err := d.pollUntilIdle()
		if err != nil {
			return err
		}

		if status.State != StateDnloadIdle {
			d.abortIfPossible(status)
			return &InvalidStateError{Expected: StateDnloadIdle, Actual: status.State}
		}

		offset += chunk
		*transferred += chunk

		obs.OnProgress(*transferred, total)

		nextBlockNum := uint32(blockNum) + 1
		if nextBlockNum >= dfuseBlockNumWrap {
			if err := setAddressCommand(d, seg.Start+uint64(offset)); err != nil {
				return err
			}

			blockNum = dfuseFirstDataBlockNum
		} else {
			blockNum = uint16(nextBlockNum)
		}
	}

	return nil
}
