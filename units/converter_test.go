// Copyright (c) 2025 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package units

import (
	"math"
	"testing"
)

func TestAngularStepConverterRoundTrip(t *testing.T) {
	c := NewAngularStepConverter(200)
	for _, a := range []float64{0, 1, -1, 3.5, -12.25, 1000} {
		steps := c.AngleToSteps(Angle(a))
		back := c.StepsToAngle(steps)
		if math.Abs(float64(back)-a) > 1e-9 {
			t.Fatalf("round trip mismatch: %v -> %v -> %v", a, steps, back)
		}
	}
}

func TestLinearStepConverterDistanceToSteps(t *testing.T) {
	c := NewLinearStepConverter(200, Length(0.1))
	// one full revolution of a 0.1m-radius wheel covers 2*pi*0.1m and costs 200 steps.
	steps := c.DistanceToSteps(Length(2 * math.Pi * 0.1))
	if math.Abs(steps-200.0) > 1e-6 {
		t.Fatalf("distance_to_steps(2*pi*0.1) = %v, want ~200", steps)
	}
}

func TestLinearStepConverterStepsToVelocity(t *testing.T) {
	c := NewLinearStepConverter(200, Length(0.1))
	v := c.StepsToVelocity(200.0)
	want := 2 * math.Pi * 0.1
	if math.Abs(float64(v)-want) > 1e-6 {
		t.Fatalf("steps_to_velocity(200) = %v, want %v", v, want)
	}
}

func TestLinearStepConverterRoundTripBounded(t *testing.T) {
	c := NewLinearStepConverter(200, Length(0.1))
	const stepsPerRev = 200.0
	const radius = 0.1
	bound := stepsPerRev * 2 * math.Pi * radius * 1e3
	samples := []float64{0, 1, -1, bound, -bound, bound / 2}
	for _, x := range samples {
		steps := c.DistanceToSteps(Length(x))
		back := c.StepsToDistance(steps)
		if math.Abs(float64(back)-x) > 1e-6*math.Max(1, math.Abs(x)) {
			t.Fatalf("round trip mismatch at x=%v: got %v", x, back)
		}
	}
}
