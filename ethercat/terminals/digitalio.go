// Copyright (c) 2025 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

// Package terminals holds the typed facades over individual EL-series
// terminal PDOs: digital/analog I/O, temperature inputs, the stepper
// velocity drive, the serial-interface gateway to Modbus RTU, and the
// pulse-train output.
package terminals

import "github.com/extrudeco/filacore/ethercat"

// DigitalIn is an EL1xxx-style digital input terminal: one bit per channel.
type DigitalIn struct {
	ethercat.BaseDevice
	identities []ethercat.SubDeviceIdentityTuple
	channels   int
	state      []bool
}

// NewDigitalIn builds a digital input terminal with the given channel count.
func NewDigitalIn(identities []ethercat.SubDeviceIdentityTuple, channels int) *DigitalIn {
	return &DigitalIn{identities: identities, channels: channels, state: make([]bool, channels)}
}

func (d *DigitalIn) Identities() []ethercat.SubDeviceIdentityTuple { return d.identities }
func (d *DigitalIn) WriteConfig(ethercat.Configuration) error      { return nil }
func (d *DigitalIn) InputLen() int                                 { return d.channels }
func (d *DigitalIn) OutputLen() int                                { return 0 }

func (d *DigitalIn) Input(img *ethercat.ProcessImage, span ethercat.Span) error {
	for i := 0; i < d.channels; i++ {
		d.state[i] = img.Bit(span.Offset + i)
	}
	return nil
}
func (d *DigitalIn) Output(*ethercat.ProcessImage, ethercat.Span) error { return nil }

// Channel reports the latched state of channel i (0-based).
func (d *DigitalIn) Channel(i int) bool { return d.state[i] }

// DigitalOut is an EL2xxx-style digital output terminal.
type DigitalOut struct {
	ethercat.BaseDevice
	identities []ethercat.SubDeviceIdentityTuple
	channels   int
	command    []bool
}

// NewDigitalOut builds a digital output terminal with the given channel count.
func NewDigitalOut(identities []ethercat.SubDeviceIdentityTuple, channels int) *DigitalOut {
	return &DigitalOut{identities: identities, channels: channels, command: make([]bool, channels)}
}

func (d *DigitalOut) Identities() []ethercat.SubDeviceIdentityTuple { return d.identities }
func (d *DigitalOut) WriteConfig(ethercat.Configuration) error      { return nil }
func (d *DigitalOut) InputLen() int                                 { return 0 }
func (d *DigitalOut) OutputLen() int                                { return d.channels }

func (d *DigitalOut) Input(*ethercat.ProcessImage, ethercat.Span) error { return nil }
func (d *DigitalOut) Output(img *ethercat.ProcessImage, span ethercat.Span) error {
	for i := 0; i < d.channels; i++ {
		img.SetBit(span.Offset+i, d.command[i])
	}
	return nil
}

// SetChannel commands channel i (0-based) on or off; takes effect on the next Output.
func (d *DigitalOut) SetChannel(i int, on bool) { d.command[i] = on }
