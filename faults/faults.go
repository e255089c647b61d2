// Copyright (c) 2025 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

// Package faults defines the error taxonomy used across the control
// core, per spec.md §7. Each type carries enough context to decide how
// far the fault propagates without the caller needing to inspect
// strings.
package faults

import "fmt"

// ConfigurationError signals bad limits, a missing role or an identity
// mismatch discovered while constructing a machine. It is fatal: the
// machine is not registered.
type ConfigurationError struct {
	Machine string
	Reason  string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration error on %s: %s", e.Machine, e.Reason)
}

// TransportError signals a bus drop or a terminal missing from the
// process-data image. Affected machines move to a Disconnected slot
// and stop emitting live values until the next topology scan.
type TransportError struct {
	Machine string
	Err     error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport error on %s: %v", e.Machine, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// ProtocolError signals a Modbus CRC mismatch, a too-short frame or an
// invalid function code. It is logged with a counter; the offending
// request is dropped and the actor returns to ReadyToSend.
type ProtocolError struct {
	Actor string
	Err   error
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("protocol error on %s: %v", e.Actor, e.Err)
}

func (e *ProtocolError) Unwrap() error { return e.Err }

// SafetyKind distinguishes the physical conditions a SafetyFault can
// report.
type SafetyKind int

const (
	HeatingWatchdog SafetyKind = iota
	WiringError
	OverTemperature
)

func (k SafetyKind) String() string {
	switch k {
	case HeatingWatchdog:
		return "heating_watchdog"
	case WiringError:
		return "wiring_error"
	case OverTemperature:
		return "over_temperature"
	default:
		return "unknown"
	}
}

// SafetyFault forces the owning machine to Standby and latches until
// explicitly acknowledged.
type SafetyFault struct {
	Machine string
	Zone    string
	Kind    SafetyKind
}

func (e *SafetyFault) Error() string {
	return fmt.Sprintf("safety fault on %s/%s: %s", e.Machine, e.Zone, e.Kind)
}

// UserError signals a rejected mutation (e.g. wind before homing, a
// limit violation, auto-tune on a disabled zone). It is silently
// ignored at the control layer; the next StateEvent reflects the
// unchanged values so the client observes the rejection.
type UserError struct {
	Reason string
}

func (e *UserError) Error() string { return fmt.Sprintf("rejected: %s", e.Reason) }
