// Copyright (c) 2025 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package ethercat

import "fmt"

// SubDeviceIdentityTuple identifies a physical terminal as reported by
// the bus master during topology enumeration.
type SubDeviceIdentityTuple struct {
	VendorID   uint32
	ProductID  uint32
	Revision   uint32
}

// DeviceRole is a stable, machine-local slot that binds a physical
// terminal to a functional role (e.g. role 2 = "spool stepper").
type DeviceRole uint16

// Configuration is an opaque bag of SDO values written during
// pre-operational state. Each driver interprets its own Configuration.
type Configuration map[string]any

// Device is the contract every terminal driver implements. Identity
// matching happens once, before Input/Output are ever called; a
// mismatch is fatal at machine construction (ConfigurationError).
type Device interface {
	// Identities lists the SubDeviceIdentityTuples this driver accepts.
	Identities() []SubDeviceIdentityTuple
	// WriteConfig writes all SDO entries during pre-operational state; idempotent.
	WriteConfig(cfg Configuration) error
	// Input decodes the terminal's PDO slice out of the input process image.
	Input(img *ProcessImage, span Span) error
	// Output encodes the terminal's PDO slice into the output process image.
	Output(img *ProcessImage, span Span) error
	// InputLen and OutputLen are the terminal's fixed bit widths.
	InputLen() int
	OutputLen() int
	// IsUsed and Claim implement the exactly-one-owner invariant of §3.
	IsUsed() bool
	Claim() error
}

// MatchIdentity reports whether got matches one of the identities a
// driver declares support for.
func MatchIdentity(d Device, got SubDeviceIdentityTuple) error {
	for _, want := range d.Identities() {
		if want == got {
			return nil
		}
	}
	return fmt.Errorf("ethercat: identity %+v does not match any of %v", got, d.Identities())
}

// BaseDevice supplies the is_used bookkeeping shared by every terminal
// driver so concrete drivers only need to embed it.
type BaseDevice struct {
	isUsed bool
}

// IsUsed reports whether the terminal has already been claimed by a machine.
func (b *BaseDevice) IsUsed() bool { return b.isUsed }

// Claim marks the terminal as owned; it is an error to claim it twice.
func (b *BaseDevice) Claim() error {
	if b.isUsed {
		return fmt.Errorf("ethercat: terminal already claimed")
	}
	b.isUsed = true
	return nil
}
