// Copyright (c) 2025 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package control

import "github.com/extrudeco/filacore/units"

// TensionArmSensor reads the tension-arm angle and normalises it to
// [0,1] where 1 means taut (θ at θ_min) and 0 means slack (θ at
// θ_max), per spec.md §4.8. Angles outside [θ_min, θ_max] are clamped
// and flagged via OutOfRange so callers can reject the reading.
type TensionArmSensor struct {
	min units.Angle
	max units.Angle
}

// NewTensionArmSensor builds a sensor clamping readings to [min, max].
func NewTensionArmSensor(min, max units.Angle) *TensionArmSensor {
	return &TensionArmSensor{min: min, max: max}
}

// Normalize clamps raw to the sensor's range and returns the
// normalised tension T = (max-raw)/(max-min), plus whether raw fell
// outside the configured range before clamping.
func (s *TensionArmSensor) Normalize(raw units.Angle) (tension float64, outOfRange bool) {
	outOfRange = raw < s.min || raw > s.max
	clamped := raw.Clamp(s.min, s.max)
	span := float64(s.max - s.min)
	if span == 0 {
		return 0, outOfRange
	}
	return float64(s.max-clamped) / span, outOfRange
}
