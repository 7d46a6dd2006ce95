// Copyright 2020 Sebastian Lehmann. All rights reserved.
// Use of this source code is governed by a GNU-style
// license that can be found in the LICENSE file.

package godfu

import "testing"

func TestSelectAltSettingIsIdempotent(t *testing.T) {
	ft := newFakeTransport()
	ft.alt = 1

	d := NewDevice(ft, 0, idleDescriptor(), Identification{})

	if err := d.SelectAltSetting(1); err != nil {
		t.Fatalf("SelectAltSetting: %v", err)
	}

	if ft.setAltCalls != 0 {
		t.Fatalf("selecting the already-current alt setting issued %d SetAltSetting calls, want 0", ft.setAltCalls)
	}

	if err := d.SelectAltSetting(2); err != nil {
		t.Fatalf("SelectAltSetting: %v", err)
	}

	if ft.setAltCalls != 1 {
		t.Fatalf("selecting a new alt setting issued %d calls, want 1", ft.setAltCalls)
	}

	if ft.alt != 2 {
		t.Fatalf("alt = %d, want 2", ft.alt)
	}
}

func TestAbortIfPossibleSkipsWhenNotAbortable(t *testing.T) {
	ft := newFakeTransport()
	d := NewDevice(ft, 0, idleDescriptor(), Identification{})

	d.abortIfPossible(Status{State: StateIdle})

	if ft.abortCalls != 0 {
		t.Fatalf("abortIfPossible issued ABORT from a non-abortable state")
	}
}

func TestAbortIfPossibleSkipsWhenClosed(t *testing.T) {
	ft := newFakeTransport()
	ft.open = false

	d := NewDevice(ft, 0, idleDescriptor(), Identification{})

	d.abortIfPossible(Status{State: StateDnloadIdle})

	if ft.abortCalls != 0 {
		t.Fatalf("abortIfPossible issued ABORT against a closed transport")
	}
}

func TestAbortIfPossibleFiresWhenAbortable(t *testing.T) {
	ft := newFakeTransport()
	d := NewDevice(ft, 0, idleDescriptor(), Identification{})

	d.abortIfPossible(Status{State: StateDnloadIdle})

	if ft.abortCalls != 1 {
		t.Fatalf("abortCalls = %d, want 1", ft.abortCalls)
	}
}
