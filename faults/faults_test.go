// Copyright (c) 2025 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package faults

import (
	"errors"
	"testing"
)

func TestProtocolErrorUnwraps(t *testing.T) {
	inner := errors.New("crc mismatch")
	err := &ProtocolError{Actor: "extruder-rs485", Err: inner}

	if !errors.Is(err, inner) {
		t.Fatal("expected errors.Is to find the wrapped cause")
	}
	if got, want := err.Error(), "protocol error on extruder-rs485: crc mismatch"; got != want {
		t.Fatalf("Error() = %q, want %q", got, want)
	}
}

func TestSafetyFaultMessage(t *testing.T) {
	err := &SafetyFault{Machine: "extruder-1", Zone: "zone-1", Kind: HeatingWatchdog}
	if got, want := err.Error(), "safety fault on extruder-1/zone-1: heating_watchdog"; got != want {
		t.Fatalf("Error() = %q, want %q", got, want)
	}
}

func TestSafetyKindString(t *testing.T) {
	cases := []struct {
		kind SafetyKind
		want string
	}{
		{HeatingWatchdog, "heating_watchdog"},
		{WiringError, "wiring_error"},
		{OverTemperature, "over_temperature"},
		{SafetyKind(99), "unknown"},
	}
	for _, tc := range cases {
		if got := tc.kind.String(); got != tc.want {
			t.Errorf("SafetyKind(%d).String() = %q, want %q", tc.kind, got, tc.want)
		}
	}
}
