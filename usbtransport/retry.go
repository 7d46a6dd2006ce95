// Copyright 2020 Sebastian Lehmann. All rights reserved.
// Use of this source code is governed by a GNU-style
// license that can be found in the LICENSE file.

package usbtransport

import (
	"time"

	"github.com/bbnote/godfu"
)

const (
	maxControlRetries = 10
	retryDelay        = 10 * time.Millisecond
)

// withRetry retries a flaky control transfer up to maxControlRetries times
// with a fixed backoff, matching the transient USB stall behaviour real DFU
// bootloaders exhibit under load. A caller past the retry budget gets a
// PersistentTransferError instead of the raw last cause.
func withRetry(fn func() (int, error)) (int, error) {
	var lastErr error

	for attempt := 0; attempt <= maxControlRetries; attempt++ {
		n, err := fn()
		if err == nil {
			return n, nil
		}

		lastErr = err

		if attempt < maxControlRetries {
			time.Sleep(retryDelay)
		}
	}

	return 0, &godfu.PersistentTransferError{Request: "control transfer", Retries: maxControlRetries, Cause: lastErr}
}
