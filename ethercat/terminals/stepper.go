// Copyright (c) 2025 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package terminals

import "github.com/extrudeco/filacore/ethercat"

// StepperVelocity is an EL70x1-style stepper terminal driven in
// velocity mode: it accepts a signed steps/second setpoint and reports
// a latched encoder position plus enable/reset/overcurrent flags.
type StepperVelocity struct {
	ethercat.BaseDevice
	identities []ethercat.SubDeviceIdentityTuple

	// output (commanded)
	velocitySetpoint int32
	enable           bool
	reset            bool

	// input (measured)
	encoderPosition int32
	overcurrent     bool
	ready           bool
}

// NewStepperVelocity builds a stepper-velocity terminal.
func NewStepperVelocity(identities []ethercat.SubDeviceIdentityTuple) *StepperVelocity {
	return &StepperVelocity{identities: identities}
}

func (s *StepperVelocity) Identities() []ethercat.SubDeviceIdentityTuple { return s.identities }
func (s *StepperVelocity) WriteConfig(ethercat.Configuration) error      { return nil }

// Layout: input = position(i32) + status byte (bit0 overcurrent, bit1 ready).
// output = velocity(i32) + control byte (bit0 enable, bit1 reset).
func (s *StepperVelocity) InputLen() int  { return 32 + 8 }
func (s *StepperVelocity) OutputLen() int { return 32 + 8 }

func (s *StepperVelocity) Input(img *ethercat.ProcessImage, span ethercat.Span) error {
	s.encoderPosition = img.Int32(span.Offset)
	s.overcurrent = img.Bit(span.Offset + 32)
	s.ready = img.Bit(span.Offset + 33)
	return nil
}

func (s *StepperVelocity) Output(img *ethercat.ProcessImage, span ethercat.Span) error {
	img.SetInt32(span.Offset, s.velocitySetpoint)
	img.SetBit(span.Offset+32, s.enable)
	img.SetBit(span.Offset+33, s.reset)
	return nil
}

// SetVelocity commands a signed steps/second setpoint.
func (s *StepperVelocity) SetVelocity(stepsPerSec int32) { s.velocitySetpoint = stepsPerSec }

// SetEnable engages or disengages the drive.
func (s *StepperVelocity) SetEnable(on bool) { s.enable = on }

// PulseReset issues a one-cycle reset pulse request; the caller is
// responsible for clearing it again the following cycle.
func (s *StepperVelocity) PulseReset(on bool) { s.reset = on }

// EncoderPosition returns the latched microstep counter.
func (s *StepperVelocity) EncoderPosition() int32 { return s.encoderPosition }

// Overcurrent reports the drive's overcurrent flag.
func (s *StepperVelocity) Overcurrent() bool { return s.overcurrent }

// Ready reports the drive's ready flag.
func (s *StepperVelocity) Ready() bool { return s.ready }
