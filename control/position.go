// Copyright (c) 2025 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

// Package control implements the per-machine motion and process
// controllers: position planning, traverse homing, PID temperature
// regulation and adaptive spool speed control.
package control

import (
	"fmt"
	"math"

	"github.com/extrudeco/filacore/units"
)

// Phase is the acceleration-position controller's current planning phase.
type Phase int

const (
	Idle Phase = iota
	Accelerating
	Cruising
	Decelerating
)

func (p Phase) String() string {
	switch p {
	case Idle:
		return "Idle"
	case Accelerating:
		return "Accelerating"
	case Cruising:
		return "Cruising"
	case Decelerating:
		return "Decelerating"
	default:
		return "Unknown"
	}
}

// Limits bounds the controller's commanded speed and acceleration. The
// bounds are asymmetric: MinSpeed/MinAccel govern motion in the
// negative direction, MaxSpeed/MaxAccel the positive direction.
type Limits struct {
	MinSpeed units.Velocity
	MaxSpeed units.Velocity
	MinAccel units.Acceleration
	MaxAccel units.Acceleration
}

func (l Limits) validate() error {
	if l.MinSpeed > 0 || l.MaxSpeed < 0 {
		return fmt.Errorf("control: speed limits must straddle zero, got [%v,%v]", l.MinSpeed, l.MaxSpeed)
	}
	if l.MinAccel > 0 || l.MaxAccel < 0 {
		return fmt.Errorf("control: accel limits must straddle zero, got [%v,%v]", l.MinAccel, l.MaxAccel)
	}
	return nil
}

// PositionControllerBuilder configures a PositionController before use.
// All configuration mutations route through this builder, and Build
// validates the limits. No stopping-distance coefficients are
// precomputed: each plan derives the stopping distance from the limits.
type PositionControllerBuilder struct {
	limits            Limits
	positionTolerance units.Length
	speedTolerance    units.Velocity
	posLimits         [2]units.Length
	hasPosLimits      bool
}

// NewPositionControllerBuilder returns a builder with the generous
// defaults used when the caller does not constrain tolerances or
// absolute position limits.
func NewPositionControllerBuilder() *PositionControllerBuilder {
	return &PositionControllerBuilder{
		positionTolerance: units.Length(0.05e-3),
		speedTolerance:    units.Velocity(1e-3),
	}
}

func (b *PositionControllerBuilder) WithSpeedLimits(min, max units.Velocity) *PositionControllerBuilder {
	b.limits.MinSpeed, b.limits.MaxSpeed = min, max
	return b
}

func (b *PositionControllerBuilder) WithAccelLimits(min, max units.Acceleration) *PositionControllerBuilder {
	b.limits.MinAccel, b.limits.MaxAccel = min, max
	return b
}

func (b *PositionControllerBuilder) WithTolerances(position units.Length, speed units.Velocity) *PositionControllerBuilder {
	b.positionTolerance, b.speedTolerance = position, speed
	return b
}

func (b *PositionControllerBuilder) WithPositionLimits(min, max units.Length) *PositionControllerBuilder {
	b.posLimits = [2]units.Length{min, max}
	b.hasPosLimits = true
	return b
}

// Build constructs a PositionController at rest at initial.
func (b *PositionControllerBuilder) Build(initial units.Length) (*PositionController, error) {
	if err := b.limits.validate(); err != nil {
		return nil, err
	}
	c := &PositionController{
		limits:            b.limits,
		positionTolerance: b.positionTolerance,
		speedTolerance:    b.speedTolerance,
		position:          initial,
		target:            initial,
		phase:             Idle,
	}
	if b.hasPosLimits {
		c.hasPosLimits = true
		c.posLimits = b.posLimits
	}
	return c, nil
}

// PositionController plans and executes one of a deceleration-only,
// triangular or trapezoidal speed profile towards a target position,
// re-planning whenever the target moves by more than positionTolerance.
type PositionController struct {
	limits            Limits
	positionTolerance units.Length
	speedTolerance    units.Velocity
	hasPosLimits      bool
	posLimits         [2]units.Length

	position units.Length
	speed    units.Velocity
	accel    units.Acceleration
	target   units.Length

	phase      Phase
	direction  int
	decelStart units.Length
	peakSpeed  units.Velocity
}

// Position reports the controller's last-known position.
func (c *PositionController) Position() units.Length { return c.position }

// Speed reports the controller's last-commanded speed.
func (c *PositionController) Speed() units.Velocity { return c.speed }

// CurrentPhase reports the controller's current planning phase.
func (c *PositionController) CurrentPhase() Phase { return c.phase }

// IsMoving reports whether the controller is actively planning motion.
func (c *PositionController) IsMoving() bool { return c.phase != Idle }

// Reset snaps the controller to pos at rest. Rejected if pos falls
// outside the configured position limits.
func (c *PositionController) Reset(pos units.Length) error {
	if c.hasPosLimits && (pos < c.posLimits[0] || pos > c.posLimits[1]) {
		return fmt.Errorf("control: reset position %v outside limits [%v,%v]", pos, c.posLimits[0], c.posLimits[1])
	}
	c.position = pos
	c.target = pos
	c.speed = 0
	c.accel = 0
	c.phase = Idle
	return nil
}

// EmergencyStop zeros speed and acceleration, pins the target to the
// current position, and returns the FSM to Idle.
func (c *PositionController) EmergencyStop() {
	c.speed = 0
	c.accel = 0
	c.target = c.position
	c.phase = Idle
}

func sign(f float64) int {
	switch {
	case f > 0:
		return 1
	case f < 0:
		return -1
	default:
		return 0
	}
}

func (c *PositionController) accelMagnitude(direction int, accelerating bool) float64 {
	// accelerating=true picks the limit used to speed up towards
	// direction; accelerating=false picks the limit used to slow down.
	forward := direction > 0
	if accelerating == forward {
		return math.Abs(float64(c.limits.MaxAccel))
	}
	return math.Abs(float64(c.limits.MinAccel))
}

func (c *PositionController) maxSpeed(direction int) float64 {
	if direction >= 0 {
		return float64(c.limits.MaxSpeed)
	}
	return math.Abs(float64(c.limits.MinSpeed))
}

// plan (re-)derives the motion profile towards target from the
// controller's current position and speed, per spec.md §4.6.
func (c *PositionController) plan(target units.Length) {
	c.target = target
	dist := float64(target - c.position)
	direction := sign(dist)
	if direction == 0 {
		c.phase = Idle
		c.speed = 0
		c.accel = 0
		return
	}

	aAccel := c.accelMagnitude(direction, true)
	aDecel := c.accelMagnitude(direction, false)
	vCurrent := float64(c.speed)
	vMax := c.maxSpeed(direction)
	d := math.Abs(dist)

	stoppingDistance := (vCurrent * vCurrent) / (2 * aDecel)
	var vPeak float64
	if d <= stoppingDistance {
		// Deceleration-only: already moving fast enough that simply
		// shedding speed reaches the target.
		vPeak = math.Abs(vCurrent)
		c.phase = Decelerating
	} else {
		distToCruise := (vMax*vMax - vCurrent*vCurrent) / (2 * aAccel)
		distToStop := (vMax * vMax) / (2 * aDecel)
		if d < distToCruise+distToStop {
			vPeak = math.Sqrt(math.Max(0, vCurrent*vCurrent) + 2*d*(aAccel*aDecel/(aAccel+aDecel)))
			if vPeak > vMax {
				vPeak = vMax
			}
		} else {
			vPeak = vMax
		}
		c.phase = Accelerating
	}

	c.direction = direction
	c.peakSpeed = units.Velocity(float64(direction) * vPeak)
	c.decelStart = target - units.Length(float64(direction)*vPeak*vPeak/(2*aDecel))
}

// Update advances the plan by dt seconds towards target. dt must be
// positive; a non-positive dt silently returns the last position. A
// target that moved by more than positionTolerance triggers a replan.
func (c *PositionController) Update(target units.Length, dt float64) units.Length {
	if dt <= 0 {
		return c.position
	}
	if math.Abs(float64(target-c.target)) > float64(c.positionTolerance) {
		c.plan(target)
	}

	switch c.phase {
	case Idle:
		c.speed = 0
		c.accel = 0

	case Accelerating:
		aAccel := c.accelMagnitude(c.direction, true)
		c.accel = units.Acceleration(float64(c.direction) * aAccel)
		c.speed += units.Velocity(float64(c.accel) * dt)
		c.clampToPeak()
		c.position += units.Length(float64(c.speed) * dt)
		c.maybeEnterDecel()

	case Cruising:
		c.accel = 0
		c.position += units.Length(float64(c.speed) * dt)
		c.maybeEnterDecel()

	case Decelerating:
		aDecel := c.accelMagnitude(c.direction, false)
		c.accel = units.Acceleration(-float64(c.direction) * aDecel)
		newSpeed := c.speed + units.Velocity(float64(c.accel)*dt)
		// Never let deceleration reverse the direction of travel.
		if sign(float64(newSpeed)) != 0 && sign(float64(newSpeed)) != c.direction {
			newSpeed = 0
		}
		c.speed = newSpeed
		c.position += units.Length(float64(c.speed) * dt)
		if c.speed == 0 && math.Abs(float64(c.target-c.position)) > float64(c.positionTolerance) {
			// Discretization left a residual short of the target; plan
			// a fresh short segment to close it instead of stalling.
			c.plan(c.target)
		}
	}

	if c.phase != Idle && sign(float64(c.target-c.position)) == -c.direction {
		// This step carried the position past the target: land on it.
		c.position = c.target
		c.speed = 0
		c.accel = 0
		c.phase = Idle
	}

	c.clampToPositionLimits()
	c.maybeSnapToTarget()
	return c.position
}

func (c *PositionController) clampToPeak() {
	if c.direction > 0 && c.speed > c.peakSpeed {
		c.speed = c.peakSpeed
		c.phase = Cruising
	}
	if c.direction < 0 && c.speed < c.peakSpeed {
		c.speed = c.peakSpeed
		c.phase = Cruising
	}
}

func (c *PositionController) maybeEnterDecel() {
	if c.direction > 0 && c.position >= c.decelStart {
		c.phase = Decelerating
	}
	if c.direction < 0 && c.position <= c.decelStart {
		c.phase = Decelerating
	}
}

func (c *PositionController) clampToPositionLimits() {
	if !c.hasPosLimits {
		return
	}
	if c.position < c.posLimits[0] {
		c.position = c.posLimits[0]
		c.speed = 0
		c.accel = 0
		c.phase = Idle
	}
	if c.position > c.posLimits[1] {
		c.position = c.posLimits[1]
		c.speed = 0
		c.accel = 0
		c.phase = Idle
	}
}

func (c *PositionController) maybeSnapToTarget() {
	if math.Abs(float64(c.target-c.position)) <= float64(c.positionTolerance) &&
		math.Abs(float64(c.speed)) <= float64(c.speedTolerance) {
		c.position = c.target
		c.speed = 0
		c.accel = 0
		c.phase = Idle
	}
}
