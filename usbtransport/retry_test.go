// Copyright 2020 Sebastian Lehmann. All rights reserved.
// Use of this source code is governed by a GNU-style
// license that can be found in the LICENSE file.

package usbtransport

import (
	"errors"
	"testing"

	"github.com/bbnote/godfu"
)

func TestWithRetrySucceedsWithoutRetrying(t *testing.T) {
	calls := 0

	n, err := withRetry(func() (int, error) {
		calls++
		return 7, nil
	})

	if err != nil {
		t.Fatalf("withRetry: %v", err)
	}

	if n != 7 || calls != 1 {
		t.Errorf("n=%d calls=%d, want 7/1", n, calls)
	}
}

func TestWithRetryRecoversAfterTransientFailures(t *testing.T) {
	calls := 0

	n, err := withRetry(func() (int, error) {
		calls++
		if calls < 3 {
			return 0, errors.New("stall")
		}
		return 4, nil
	})

	if err != nil {
		t.Fatalf("withRetry: %v", err)
	}

	if n != 4 || calls != 3 {
		t.Errorf("n=%d calls=%d, want 4/3", n, calls)
	}
}

func TestWithRetryEscalatesAfterBudgetExhausted(t *testing.T) {
	calls := 0

	_, err := withRetry(func() (int, error) {
		calls++
		return 0, errors.New("stall")
	})

	if err == nil {
		t.Fatal("expected an error once the retry budget is exhausted")
	}

	var persistent *godfu.PersistentTransferError
	if !errors.As(err, &persistent) {
		t.Fatalf("error = %v, want *godfu.PersistentTransferError", err)
	}

	if calls != maxControlRetries+1 {
		t.Errorf("calls = %d, want %d", calls, maxControlRetries+1)
	}
}
