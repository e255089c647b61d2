// Copyright (c) 2025 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package terminals

import "github.com/extrudeco/filacore/ethercat"

// AnalogIn is an EL3xxx-style analog input terminal: one signed 16-bit
// sample per channel, full-scale at scaleMax counts.
type AnalogIn struct {
	ethercat.BaseDevice
	identities []ethercat.SubDeviceIdentityTuple
	channels   int
	scaleMax   float64
	raw        []int16
}

// NewAnalogIn builds an analog input terminal of channels channels, full
// scale at scaleMax raw counts (e.g. 32767 for a +/-10V 16-bit input).
func NewAnalogIn(identities []ethercat.SubDeviceIdentityTuple, channels int, scaleMax float64) *AnalogIn {
	return &AnalogIn{identities: identities, channels: channels, scaleMax: scaleMax, raw: make([]int16, channels)}
}

func (a *AnalogIn) Identities() []ethercat.SubDeviceIdentityTuple { return a.identities }
func (a *AnalogIn) WriteConfig(ethercat.Configuration) error      { return nil }
func (a *AnalogIn) InputLen() int                                  { return a.channels * 16 }
func (a *AnalogIn) OutputLen() int                                 { return 0 }
func (a *AnalogIn) Output(*ethercat.ProcessImage, ethercat.Span) error { return nil }

func (a *AnalogIn) Input(img *ethercat.ProcessImage, span ethercat.Span) error {
	for i := 0; i < a.channels; i++ {
		a.raw[i] = img.Int16(span.Offset + i*16)
	}
	return nil
}

// Normalized returns channel i scaled to [-1,1].
func (a *AnalogIn) Normalized(i int) float64 {
	return float64(a.raw[i]) / a.scaleMax
}

// Raw returns the unscaled sample for channel i.
func (a *AnalogIn) Raw(i int) int16 { return a.raw[i] }
