// Copyright (c) 2025 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package control

import (
	"fmt"
	"math"
	"time"

	"github.com/extrudeco/filacore/units"
)

// TraverseState is the traverse motion state machine's position in the
// homing/winding cycle described in spec.md §4.5.
type TraverseState int

const (
	NotHomed TraverseState = iota
	TraverseIdle
	GoingIn
	GoingOut
	HomingInitialize
	HomingEscapeEndstop
	HomingFindEndstopCoarse
	HomingFindEndstopFineDistancing
	HomingFindEndstopFine
	HomingValidate
	TraversingGoingOut
	TraversingIn
	TraversingOut
)

func (s TraverseState) String() string {
	switch s {
	case NotHomed:
		return "NotHomed"
	case TraverseIdle:
		return "Idle"
	case GoingIn:
		return "GoingIn"
	case GoingOut:
		return "GoingOut"
	case HomingInitialize:
		return "Homing(Initialize)"
	case HomingEscapeEndstop:
		return "Homing(EscapeEndstop)"
	case HomingFindEndstopCoarse:
		return "Homing(FindEndstopCoarse)"
	case HomingFindEndstopFineDistancing:
		return "Homing(FindEndstopFineDistancing)"
	case HomingFindEndstopFine:
		return "Homing(FindEndstopFine)"
	case HomingValidate:
		return "Homing(Validate)"
	case TraversingGoingOut:
		return "Traversing(GoingOut)"
	case TraversingIn:
		return "Traversing(TraversingIn)"
	case TraversingOut:
		return "Traversing(TraversingOut)"
	default:
		return "Unknown"
	}
}

const (
	traverseGoSpeed       = units.Velocity(0.1)   // 100 mm/s
	traverseCreepSpeed    = units.Velocity(0.01)  // 10 mm/s
	traverseHomingEscape  = units.Velocity(0.01)  // 10 mm/s
	traverseHomingFineDis = units.Velocity(0.002) // 2 mm/s
	traverseHomingCoarse  = units.Velocity(-0.1)  // -100 mm/s
	traverseHomingFine    = units.Velocity(-0.002)
	traverseValidateDur   = 100 * time.Millisecond
	traverseCloseEnough   = units.Length(1e-3) // 1 mm
)

// Endstop reports the physical limit switch state read once per cycle.
type Endstop interface {
	Triggered() bool
}

// Traverse drives the traversing stepper through homing and then
// between the configured inner/outer winding limits.
type Traverse struct {
	state      TraverseState
	position   units.Length
	inner      units.Length
	outer      units.Length
	stepSize   units.Length
	validateAt time.Time
	direction  int // +1 toward outer, -1 toward inner, during Traversing
}

// NewTraverse builds a traverse FSM starting in NotHomed.
func NewTraverse(stepSize units.Length) *Traverse {
	return &Traverse{state: NotHomed, stepSize: stepSize}
}

// State reports the traverse FSM's current state.
func (tr *Traverse) State() TraverseState { return tr.state }

// Position reports the traverse's mirrored stepper position.
func (tr *Traverse) Position() units.Length { return tr.position }

// Homed reports whether a homing cycle has completed.
func (tr *Traverse) Homed() bool {
	return tr.state != NotHomed && tr.state != HomingInitialize &&
		tr.state != HomingEscapeEndstop && tr.state != HomingFindEndstopCoarse &&
		tr.state != HomingFindEndstopFineDistancing && tr.state != HomingFindEndstopFine &&
		tr.state != HomingValidate
}

// CurrentInner/CurrentOuter report the active winding limits.
func (tr *Traverse) CurrentInner() units.Length { return tr.inner }
func (tr *Traverse) CurrentOuter() units.Length { return tr.outer }

// SetLimits validates and applies new inner/outer winding limits. Per
// spec.md §4.5, outer must exceed inner by more than 0.9 mm; violating
// writes are rejected and the previous limits are preserved.
func (tr *Traverse) SetLimits(inner, outer units.Length) error {
	if float64(outer-inner) <= 0.9e-3 {
		return fmt.Errorf("control: traverse limits outer-inner=%v must exceed 0.9mm", outer-inner)
	}
	tr.inner, tr.outer = inner, outer
	return nil
}

// GotoHome starts (or restarts) a homing cycle.
func (tr *Traverse) GotoHome() {
	tr.state = HomingInitialize
}

// GoIn/GoOut command an absolute move; rejected (no-op) until homed.
func (tr *Traverse) GoIn() {
	if tr.Homed() {
		tr.state = GoingIn
	}
}

func (tr *Traverse) GoOut() {
	if tr.Homed() {
		tr.state = GoingOut
	}
}

// StartWinding begins the continuous inner/outer sweep; rejected until
// homed (callers must also check a tension-arm-zeroed precondition
// external to this FSM, per spec.md §4.10).
func (tr *Traverse) StartWinding() error {
	if !tr.Homed() {
		return fmt.Errorf("control: cannot start winding before homing completes")
	}
	tr.direction = 1
	tr.state = TraversingGoingOut
	return nil
}

// Update steps the FSM by dt given the stepper's mirrored microstep
// position and (during homing) the endstop reading, returning the
// commanded speed for this cycle.
func (tr *Traverse) Update(now time.Time, mirroredPosition units.Length, endstop Endstop, spoolAngularVelocity units.AngularVelocity) units.Velocity {
	tr.position = mirroredPosition

	switch tr.state {
	case NotHomed, TraverseIdle:
		return 0

	case GoingIn:
		if math.Abs(float64(tr.position-tr.inner)) <= 1e-3 {
			tr.state = TraverseIdle
			return 0
		}
		return tr.goSpeed(tr.inner)

	case GoingOut:
		if math.Abs(float64(tr.position-tr.outer)) <= 1e-3 {
			tr.state = TraverseIdle
			return 0
		}
		return tr.goSpeed(tr.outer)

	case HomingInitialize:
		tr.state = HomingEscapeEndstop
		return 0

	case HomingEscapeEndstop:
		if endstop != nil && !endstop.Triggered() {
			tr.state = HomingFindEndstopCoarse
			return 0
		}
		return traverseHomingEscape

	case HomingFindEndstopCoarse:
		if endstop != nil && endstop.Triggered() {
			tr.state = HomingFindEndstopFineDistancing
			return 0
		}
		return traverseHomingCoarse

	case HomingFindEndstopFineDistancing:
		if endstop != nil && !endstop.Triggered() {
			tr.state = HomingFindEndstopFine
			return 0
		}
		return traverseHomingFineDis

	case HomingFindEndstopFine:
		if endstop != nil && endstop.Triggered() {
			tr.position = 0
			tr.validateAt = now
			tr.state = HomingValidate
			return 0
		}
		return traverseHomingFine

	case HomingValidate:
		if now.Sub(tr.validateAt) >= traverseValidateDur {
			tr.state = TraverseIdle
		}
		return 0

	case TraversingGoingOut, TraversingIn, TraversingOut:
		return tr.updateTraversing(spoolAngularVelocity)

	default:
		return 0
	}
}

func (tr *Traverse) goSpeed(target units.Length) units.Velocity {
	d := math.Abs(float64(target - tr.position))
	speed := traverseGoSpeed
	if d <= 1e-3 {
		speed = traverseCreepSpeed
	}
	if target < tr.position {
		return -speed
	}
	return speed
}

func (tr *Traverse) updateTraversing(spoolAngularVelocity units.AngularVelocity) units.Velocity {
	sweepSpeed := units.Velocity(spoolAngularVelocity.RPM()/60) * units.Velocity(tr.stepSize)
	switch tr.state {
	case TraversingGoingOut:
		if math.Abs(float64(tr.position-tr.outer)) <= 1e-3 {
			tr.state = TraversingIn
			return 0
		}
		return traverseGoSpeed
	case TraversingIn:
		if math.Abs(float64(tr.position-tr.inner)) <= 1e-3 {
			tr.state = TraversingOut
			return 0
		}
		return -sweepSpeed
	case TraversingOut:
		if math.Abs(float64(tr.position-tr.outer)) <= 1e-3 {
			tr.state = TraversingIn
			return 0
		}
		return sweepSpeed
	default:
		return 0
	}
}
