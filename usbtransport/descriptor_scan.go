// Copyright 2020 Sebastian Lehmann. All rights reserved.
// Use of this source code is governed by a GNU-style
// license that can be found in the LICENSE file.

package usbtransport

import (
	"github.com/google/gousb"
	"github.com/pkg/errors"

	"github.com/bbnote/godfu"
)

const (
	reqGetDescriptor = 0x06
	descTypeConfig   = 0x02
	descTypeInterface = 0x04

	dfuInterfaceClass    = 0xFE
	dfuInterfaceSubClass = 0x01
)

// fetchConfigDescriptor retrieves the raw bytes of a device's active
// configuration descriptor: first the 4-byte header to learn wTotalLength,
// then the full blob in one follow-up transfer.
func fetchConfigDescriptor(dev *gousb.Device, cfgIndex uint8) ([]byte, error) {
	header := make([]byte, 4)

	if _, err := dev.Control(0x80, reqGetDescriptor, uint16(descTypeConfig)<<8|uint16(cfgIndex), 0, header); err != nil {
		return nil, errors.Wrap(err, "fetching configuration descriptor header")
	}

	total := int(header[2]) | int(header[3])<<8

	full := make([]byte, total)
	if _, err := dev.Control(0x80, reqGetDescriptor, uint16(descTypeConfig)<<8|uint16(cfgIndex), 0, full); err != nil {
		return nil, errors.Wrap(err, "fetching full configuration descriptor")
	}

	return full, nil
}

// scanForDfuInterfaces walks dev's active configuration descriptor looking
// for interfaces with class 0xFE, subclass 0x01, protocol 1 or 2, reading
// the 9-byte DFU functional descriptor that immediately follows each one's
// alternate-setting descriptor. Such an interface is returned even when
// that functional descriptor is missing or malformed; its Candidate then
// carries a zero-value Descriptor. Interfaces sharing the same interface
// number are folded into one Candidate with multiple AltSettings.
func scanForDfuInterfaces(dev *gousb.Device) ([]godfu.Candidate, error) {
	cfgNum, err := dev.ActiveConfigNum()
	if err != nil {
		return nil, err
	}

	raw, err := fetchConfigDescriptor(dev, uint8(cfgNum-1))
	if err != nil {
		return nil, err
	}

	return parseDfuInterfaces(raw, uint16(dev.Desc.Vendor), uint16(dev.Desc.Product)), nil
}

// parseDfuInterfaces is the device-independent half of scanForDfuInterfaces:
// everything that only needs the raw configuration-descriptor bytes.
func parseDfuInterfaces(raw []byte, vendorID, productID uint16) []godfu.Candidate {
	byInterface := map[int]*godfu.Candidate{}

	for i := 0; i+2 <= len(raw); {
		bLength := int(raw[i])
		if bLength == 0 || i+bLength > len(raw) {
			break
		}

		bDescriptorType := raw[i+1]

		if bDescriptorType == descTypeInterface && bLength >= 9 {
			ifaceNum := int(raw[i+2])
			altSetting := int(raw[i+3])
			class := raw[i+5]
			subClass := raw[i+6]
			protocol := raw[i+7]

			if class == dfuInterfaceClass && subClass == dfuInterfaceSubClass && (protocol == 1 || protocol == 2) {
				functional, ferr := nextFunctionalDescriptor(raw, i+bLength)

				cand, ok := byInterface[ifaceNum]
				if !ok {
					cand = &godfu.Candidate{
						VendorID:  vendorID,
						ProductID: productID,
						Interface: ifaceNum,
					}
					byInterface[ifaceNum] = cand
				}

				cand.AltSettings = append(cand.AltSettings, altSetting)

				if ferr == nil {
					cand.Descriptor = functional
				}
			}
		}

		i += bLength
	}

	var out []godfu.Candidate
	for _, cand := range byInterface {
		out = append(out, *cand)
	}

	return out
}

// findInterfaceStringIndex returns the iInterface string index of the
// interface descriptor matching ifNum/altSetting in dev's active
// configuration descriptor.
func findInterfaceStringIndex(dev *gousb.Device, ifNum, altSetting int) (int, error) {
	cfgNum, err := dev.ActiveConfigNum()
	if err != nil {
		return 0, err
	}

	raw, err := fetchConfigDescriptor(dev, uint8(cfgNum-1))
	if err != nil {
		return 0, err
	}

	return parseInterfaceStringIndex(raw, ifNum, altSetting)
}

// parseInterfaceStringIndex is the device-independent half of
// findInterfaceStringIndex.
func parseInterfaceStringIndex(raw []byte, ifNum, altSetting int) (int, error) {
	for i := 0; i+2 <= len(raw); {
		bLength := int(raw[i])
		if bLength == 0 || i+bLength > len(raw) {
			break
		}

		if raw[i+1] == descTypeInterface && bLength >= 9 {
			if int(raw[i+2]) == ifNum && int(raw[i+3]) == altSetting {
				return int(raw[i+8]), nil
			}
		}

		i += bLength
	}

	return 0, godfu.NewFormatError("interface/alt-setting not found in configuration descriptor")
}

// nextFunctionalDescriptor parses the 9-byte DFU functional descriptor
// expected to sit immediately after an interface descriptor in the
// configuration descriptor's byte stream.
func nextFunctionalDescriptor(raw []byte, offset int) (godfu.FunctionalDescriptor, error) {
	if offset+9 > len(raw) {
		return godfu.FunctionalDescriptor{}, godfu.NewFormatError("config descriptor truncated before DFU functional descriptor")
	}

	return godfu.ParseFunctionalDescriptor(raw[offset : offset+9])
}
