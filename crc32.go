// Copyright 2020 Sebastian Lehmann. All rights reserved.
// Use of this source code is governed by a GNU-style
// license that can be found in the LICENSE file.

package godfu

import "hash/crc32"

// CRC32 computes the IEEE 802.3 polynomial checksum the DFU suffix uses to
// protect everything preceding the dwCRC field.
func CRC32(data []byte) uint32 {
	return crc32.ChecksumIEEE(data)
}
