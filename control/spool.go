// Copyright (c) 2025 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package control

import (
	"math"

	"github.com/extrudeco/filacore/units"
)

// SpoolRegulationMode selects how the spool's target speed is derived.
type SpoolRegulationMode int

const (
	// MinMax drives the spool to hold the tension arm between fixed
	// angle bounds with no learned radius adaptation.
	MinMax SpoolRegulationMode = iota
	// Adaptive runs the proportional radius-learning law of spec.md §4.8.
	Adaptive
)

// AdaptiveSpoolConfig carries the tunables of the adaptive law. Zero
// values are replaced by the documented defaults in NewAdaptiveSpool.
type AdaptiveSpoolConfig struct {
	TensionTarget            float64
	RadiusLearningRate       float64 // metres per second
	MinRadius, MaxRadius     units.Length
	MaxSpeedMultiplier       float64
	SafetyMaxAngularVelocity units.AngularVelocity
	AccelerationFactor       float64 // fraction of max angular velocity, per second
	DeaccelUrgencyMultiplier float64
}

// AdaptiveSpool implements the adaptive spool speed controller: it
// learns the effective winding radius from observed tension error and
// smooths the resulting angular velocity target through an
// acceleration-limited filter with an urgency boost near zero.
type AdaptiveSpool struct {
	cfg      AdaptiveSpoolConfig
	radius   units.Length
	smoothed units.AngularVelocity
}

// NewAdaptiveSpool builds a controller seeded with the learned radius
// at its minimum (0.0425 m), per spec.md §4.8.
func NewAdaptiveSpool(cfg AdaptiveSpoolConfig) *AdaptiveSpool {
	if cfg.TensionTarget == 0 {
		cfg.TensionTarget = 0.7
	}
	if cfg.RadiusLearningRate == 0 {
		cfg.RadiusLearningRate = 0.5
	}
	if cfg.MinRadius == 0 {
		cfg.MinRadius = 0.0425
	}
	if cfg.MaxRadius == 0 {
		cfg.MaxRadius = 0.20
	}
	if cfg.MaxSpeedMultiplier == 0 {
		cfg.MaxSpeedMultiplier = 4
	}
	if cfg.SafetyMaxAngularVelocity == 0 {
		cfg.SafetyMaxAngularVelocity = units.AngularVelocityFromRPM(600)
	}
	if cfg.AccelerationFactor == 0 {
		cfg.AccelerationFactor = 0.2
	}
	if cfg.DeaccelUrgencyMultiplier == 0 {
		cfg.DeaccelUrgencyMultiplier = 1.0
	}
	return &AdaptiveSpool{cfg: cfg, radius: cfg.MinRadius}
}

// Radius reports the controller's currently learned winding radius.
func (s *AdaptiveSpool) Radius() units.Length { return s.radius }

// Command reports the last smoothed angular velocity command.
func (s *AdaptiveSpool) Command() units.AngularVelocity { return s.smoothed }

// Update runs one adaptive-law + smoothing cycle given the puller's
// linear speed and the tension-arm sensor's normalised tension
// (already clamped to [0,1] by the caller via TensionArmSensor). If
// outOfRange is true the command is forced to zero immediately,
// bypassing smoothing, per spec.md §4.8.
func (s *AdaptiveSpool) Update(puller units.Velocity, tension float64, outOfRange bool, dt float64) units.AngularVelocity {
	if outOfRange {
		s.smoothed = 0
		return 0
	}

	s.radius = (s.radius + units.Length((tension-s.cfg.TensionTarget)*s.cfg.RadiusLearningRate*dt)).
		Clamp(s.cfg.MinRadius, s.cfg.MaxRadius)

	target := units.AngularVelocity(float64(puller)/float64(s.radius)*s.cfg.MaxSpeedMultiplier*(1-tension)).
		Clamp(0, s.cfg.SafetyMaxAngularVelocity)

	maxRate := float64(s.cfg.SafetyMaxAngularVelocity) * s.cfg.AccelerationFactor
	urgency := 1.0
	if math.Abs(float64(target)) < 0.1 {
		urgency = s.cfg.DeaccelUrgencyMultiplier / (math.Abs(float64(target)) + 0.01)
	}
	maxDelta := maxRate * urgency * dt

	delta := float64(target - s.smoothed)
	if delta > maxDelta {
		delta = maxDelta
	}
	if delta < -maxDelta {
		delta = -maxDelta
	}
	s.smoothed += units.AngularVelocity(delta)
	return s.smoothed
}
