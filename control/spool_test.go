// Copyright (c) 2025 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package control

import (
	"math"
	"testing"

	"github.com/extrudeco/filacore/units"
)

// TestAdaptiveSpoolTautArmCommandsZero covers the §8 concrete scenario:
// with the tension arm fully taut (tension=1.0), the commanded speed
// tends to zero because (1-T)=0.
func TestAdaptiveSpoolTautArmCommandsZero(t *testing.T) {
	s := NewAdaptiveSpool(AdaptiveSpoolConfig{})
	var cmd units.AngularVelocity
	for i := 0; i < 100; i++ {
		cmd = s.Update(1.0, 1.0, false, 0.01)
	}
	if math.Abs(float64(cmd)) > 1e-6 {
		t.Fatalf("commanded omega = %v, want ~0 with a fully taut arm", cmd)
	}
}

// TestAdaptiveSpoolSlackArmRampsToSafetyMax covers the §8 concrete
// scenario: with the tension arm fully slack (tension=0), the target
// omega is (1/0.0425)*4 ≈ 94.1 rad/s, clamped to the 600 RPM safety
// ceiling, and smoothing ramps the command up to it.
func TestAdaptiveSpoolSlackArmRampsToSafetyMax(t *testing.T) {
	s := NewAdaptiveSpool(AdaptiveSpoolConfig{})
	safetyMax := units.AngularVelocityFromRPM(600)

	var cmd units.AngularVelocity
	for i := 0; i < 2000; i++ {
		cmd = s.Update(1.0, 0.0, false, 0.01)
	}
	if math.Abs(float64(cmd-safetyMax)) > 0.05 {
		t.Fatalf("commanded omega = %v rad/s, want ~%v rad/s (600 RPM)", cmd, safetyMax)
	}
}

func TestAdaptiveSpoolOutOfRangeForcesZero(t *testing.T) {
	s := NewAdaptiveSpool(AdaptiveSpoolConfig{})
	s.Update(1.0, 0.0, false, 0.01)
	if s.Command() == 0 {
		t.Fatal("expected a nonzero command before the out-of-range update")
	}
	cmd := s.Update(1.0, 0.0, true, 0.01)
	if cmd != 0 {
		t.Fatalf("out-of-range update returned %v, want 0", cmd)
	}
}

func TestTensionArmSensorNormalize(t *testing.T) {
	sensor := NewTensionArmSensor(0, math.Pi/2)

	tension, outOfRange := sensor.Normalize(0)
	if outOfRange || math.Abs(tension-1.0) > 1e-9 {
		t.Fatalf("at min angle: tension=%v outOfRange=%v, want 1.0/false", tension, outOfRange)
	}

	tension, outOfRange = sensor.Normalize(units.Angle(math.Pi / 2))
	if outOfRange || math.Abs(tension-0.0) > 1e-9 {
		t.Fatalf("at max angle: tension=%v outOfRange=%v, want 0.0/false", tension, outOfRange)
	}

	_, outOfRange = sensor.Normalize(units.Angle(-0.1))
	if !outOfRange {
		t.Fatal("expected angle below min to report out of range")
	}
}
