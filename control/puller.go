// Copyright (c) 2025 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package control

import "github.com/extrudeco/filacore/units"

// PullerSpeedController holds the puller's commanded linear speed and
// direction; actuation happens through the stepper/inverter facade the
// machine wires it to.
type PullerSpeedController struct {
	target  units.Velocity
	forward bool
	maxRate units.Velocity
}

// NewPullerSpeedController builds a controller clamped to [0, maxRate].
func NewPullerSpeedController(maxRate units.Velocity) *PullerSpeedController {
	return &PullerSpeedController{maxRate: maxRate, forward: true}
}

// SetTarget commands a new magnitude, clamped to [0, maxRate].
func (p *PullerSpeedController) SetTarget(v units.Velocity) {
	p.target = v.Abs().Clamp(0, p.maxRate)
}

// SetForward commands the rotation direction.
func (p *PullerSpeedController) SetForward(forward bool) { p.forward = forward }

// Forward reports the commanded rotation direction.
func (p *PullerSpeedController) Forward() bool { return p.forward }

// Command returns the signed velocity to write to the actuator facade.
func (p *PullerSpeedController) Command() units.Velocity {
	if p.forward {
		return p.target
	}
	return -p.target
}

// SpoolSpeedController selects between a fixed min/max bang-bang law
// and the adaptive radius-learning law of spec.md §4.8.
type SpoolSpeedController struct {
	mode     SpoolRegulationMode
	adaptive *AdaptiveSpool

	minMaxLow  units.AngularVelocity
	minMaxHigh units.AngularVelocity
}

// NewSpoolSpeedController builds a controller in Adaptive mode by
// default, with minMaxLow/High available if the mode is switched to
// MinMax.
func NewSpoolSpeedController(cfg AdaptiveSpoolConfig, minMaxLow, minMaxHigh units.AngularVelocity) *SpoolSpeedController {
	return &SpoolSpeedController{
		mode:       Adaptive,
		adaptive:   NewAdaptiveSpool(cfg),
		minMaxLow:  minMaxLow,
		minMaxHigh: minMaxHigh,
	}
}

// SetMode switches the regulation law.
func (s *SpoolSpeedController) SetMode(mode SpoolRegulationMode) { s.mode = mode }

// Mode reports the active regulation law.
func (s *SpoolSpeedController) Mode() SpoolRegulationMode { return s.mode }

// Update runs one cycle of the active law and returns the commanded
// angular velocity.
func (s *SpoolSpeedController) Update(puller units.Velocity, tension float64, outOfRange bool, dt float64) units.AngularVelocity {
	if s.mode == MinMax {
		if outOfRange {
			return 0
		}
		if tension > 0.5 {
			return s.minMaxLow
		}
		return s.minMaxHigh
	}
	return s.adaptive.Update(puller, tension, outOfRange, dt)
}
