// Copyright (c) 2025 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package units

import "math"

// AngularStepConverter maps angle/angular-velocity to and from stepper
// motor microsteps for a driver configured with stepsPerRevolution
// steps per full revolution. It is a pure linear mapping; the only
// state is the configured resolution.
type AngularStepConverter struct {
	stepsPerRevolution float64
}

// NewAngularStepConverter builds a converter for a stepper driven at
// stepsPerRev microsteps per revolution.
func NewAngularStepConverter(stepsPerRev int16) AngularStepConverter {
	return AngularStepConverter{stepsPerRevolution: float64(stepsPerRev)}
}

func (c AngularStepConverter) radiansPerStep() float64 {
	return 2 * math.Pi / c.stepsPerRevolution
}

// AngleToSteps converts an angle to a (fractional) step count.
func (c AngularStepConverter) AngleToSteps(a Angle) float64 {
	return float64(a) / c.radiansPerStep()
}

// StepsToAngle converts a step count to an angle.
func (c AngularStepConverter) StepsToAngle(steps float64) Angle {
	return Angle(steps * c.radiansPerStep())
}

// AngularVelocityToStepsPerSecond converts an angular velocity to signed steps/second.
func (c AngularStepConverter) AngularVelocityToStepsPerSecond(w AngularVelocity) float64 {
	return float64(w) / c.radiansPerStep()
}

// StepsPerSecondToAngularVelocity converts signed steps/second to an angular velocity.
func (c AngularStepConverter) StepsPerSecondToAngularVelocity(stepsPerSec float64) AngularVelocity {
	return AngularVelocity(stepsPerSec * c.radiansPerStep())
}

// LinearStepConverter composes an AngularStepConverter with a wheel/drum
// radius so that v = omega*r and s = theta*r.
type LinearStepConverter struct {
	angular AngularStepConverter
	radius  float64
}

// NewLinearStepConverter builds a converter for a stepper driving a
// wheel or drum of the given radius (metres).
func NewLinearStepConverter(stepsPerRev int16, radius Length) LinearStepConverter {
	return LinearStepConverter{
		angular: NewAngularStepConverter(stepsPerRev),
		radius:  float64(radius),
	}
}

// DistanceToSteps converts a linear distance to a (fractional) step count.
func (c LinearStepConverter) DistanceToSteps(d Length) float64 {
	return c.angular.AngleToSteps(Angle(float64(d) / c.radius))
}

// StepsToDistance converts a step count to a linear distance.
func (c LinearStepConverter) StepsToDistance(steps float64) Length {
	return Length(float64(c.angular.StepsToAngle(steps)) * c.radius)
}

// VelocityToStepsPerSecond converts a linear velocity to signed steps/second.
func (c LinearStepConverter) VelocityToStepsPerSecond(v Velocity) float64 {
	return c.angular.AngularVelocityToStepsPerSecond(AngularVelocity(float64(v) / c.radius))
}

// StepsToVelocity converts signed steps/second to a linear velocity.
func (c LinearStepConverter) StepsToVelocity(stepsPerSec float64) Velocity {
	w := c.angular.StepsPerSecondToAngularVelocity(stepsPerSec)
	return Velocity(float64(w) * c.radius)
}
