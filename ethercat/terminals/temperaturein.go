// Copyright (c) 2025 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package terminals

import (
	"github.com/extrudeco/filacore/ethercat"
	"github.com/extrudeco/filacore/units"
)

// TemperatureIn is an EL3314/EL3204-style thermocouple/RTD input
// terminal: one signed tenths-of-a-degree reading plus a wiring-error
// bit per channel.
type TemperatureIn struct {
	ethercat.BaseDevice
	identities  []ethercat.SubDeviceIdentityTuple
	channels    int
	tenthsC     []int16
	wiringError []bool
}

// NewTemperatureIn builds a temperature input terminal of channels channels.
func NewTemperatureIn(identities []ethercat.SubDeviceIdentityTuple, channels int) *TemperatureIn {
	return &TemperatureIn{
		identities:  identities,
		channels:    channels,
		tenthsC:     make([]int16, channels),
		wiringError: make([]bool, channels),
	}
}

func (t *TemperatureIn) Identities() []ethercat.SubDeviceIdentityTuple { return t.identities }
func (t *TemperatureIn) WriteConfig(ethercat.Configuration) error      { return nil }

// Each channel is a 16-bit value plus a one-bit status word containing
// the wiring-error flag at bit 0 of the status byte that precedes it.
func (t *TemperatureIn) InputLen() int                                  { return t.channels * 32 }
func (t *TemperatureIn) OutputLen() int                                 { return 0 }
func (t *TemperatureIn) Output(*ethercat.ProcessImage, ethercat.Span) error { return nil }

func (t *TemperatureIn) Input(img *ethercat.ProcessImage, span ethercat.Span) error {
	for i := 0; i < t.channels; i++ {
		base := span.Offset + i*32
		t.wiringError[i] = img.Bit(base)
		t.tenthsC[i] = img.Int16(base + 16)
	}
	return nil
}

// Channel returns the measured temperature for channel i.
func (t *TemperatureIn) Channel(i int) units.Temperature {
	return units.Temperature(float64(t.tenthsC[i]) / 10.0)
}

// WiringError reports whether channel i is reporting an open/short circuit.
func (t *TemperatureIn) WiringError(i int) bool { return t.wiringError[i] }
