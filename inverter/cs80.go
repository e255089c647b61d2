// Copyright (c) 2025 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

// Package inverter wraps the Modbus serial actor with the high-level
// intents and register templates of a Mitsubishi CS80-family inverter,
// per spec.md §4.9.
package inverter

import (
	"time"

	"github.com/extrudeco/filacore/modbus"
	"github.com/extrudeco/filacore/modbus/actor"
	"github.com/extrudeco/filacore/units"
)

// Register addresses, already adjusted for the wire per the "40001 +
// index" convention (spec.md §6): subtract 40001 before transmitting.
const (
	regControlWord  = 0x0008
	regRAMFrequency = 0x000D
	regReset        = 0x0001
	regStatusTriple = 0x00C8
)

// MitsubishiControlRequests enumerates the high-level intents this
// actor materialises into ModbusRequest templates.
type MitsubishiControlRequests int

const (
	StopMotor MitsubishiControlRequests = iota
	SetFrequencyTarget
	SetRotation
	ResetInverter
	ReadInverterStatus
	ReadMotorStatus
	// ClearAllParameters and ClearNonCommunicationParameters are CS80
	// vendor operations this driver does not expose: they rewrite the
	// inverter's persisted parameter set and have no corresponding
	// mutation in the control surface.
	ClearAllParameters
	ClearNonCommunicationParameters
)

func (r MitsubishiControlRequests) supported() bool {
	switch r {
	case ClearAllParameters, ClearNonCommunicationParameters:
		return false
	default:
		return true
	}
}

// Status is the decoded running/fault state from ReadInverterStatus.
type Status struct {
	Running bool
	Forward bool
	Fault   bool
}

// MotorStatus is the decoded electrical telemetry from ReadMotorStatus.
type MotorStatus struct {
	Frequency units.Frequency
	Current   units.Current
	Voltage   units.Voltage
}

const (
	reqIDReset  = "reset"
	reqIDStatus = "status"
	reqIDMotor  = "motor"
	reqIDFreq   = "frequency"
	reqIDStop   = "stop"
	reqIDDir    = "direction"
)

// CS80Actor drives one inverter over a shared Modbus serial actor.
type CS80Actor struct {
	actor   *actor.Actor
	slaveID byte

	initialized bool
	status      Status
	motor       MotorStatus
	lastFault   error
}

// New builds a CS80Actor for slaveID over terminal.
func New(terminal actor.Terminal, slaveID byte, bitsPerChar, baudRate int64, cycleGrace time.Duration) *CS80Actor {
	return &CS80Actor{
		actor:   actor.New(terminal, bitsPerChar, baudRate, cycleGrace),
		slaveID: slaveID,
	}
}

// Status reports the last decoded running/fault state.
func (c *CS80Actor) Status() Status { return c.status }

// MotorStatus reports the last decoded electrical telemetry.
func (c *CS80Actor) MotorStatus() MotorStatus { return c.motor }

// StopMotor requests an immediate stop; highest priority, matching the
// CS80's safety-critical command class.
func (c *CS80Actor) StopMotor() {
	req := &modbus.ModbusRequest{SlaveID: c.slaveID, FunctionCode: modbus.PresetHoldingRegister,
		Data: regWrite(regControlWord, 0x0000)}
	c.actor.AddRequest(reqIDStop, 100, req, modbus.OperationCommand, false, 0)
}

// SetFrequencyTarget commands a new RAM frequency setpoint.
func (c *CS80Actor) SetFrequencyTarget(f units.Frequency) {
	raw := uint16(f.Hz() * 100) // CS80 RAM frequency register is in 0.01Hz units.
	req := &modbus.ModbusRequest{SlaveID: c.slaveID, FunctionCode: modbus.PresetHoldingRegister,
		Data: regWrite(regRAMFrequency, raw)}
	c.actor.AddRequest(reqIDFreq, 50, req, modbus.ReadWrite, false, 0)
}

// SetRotation commands the run direction.
func (c *CS80Actor) SetRotation(forward bool) {
	value := uint16(0x0002) // reverse
	if forward {
		value = 0x0001 // forward
	}
	req := &modbus.ModbusRequest{SlaveID: c.slaveID, FunctionCode: modbus.PresetHoldingRegister,
		Data: regWrite(regControlWord, value)}
	c.actor.AddRequest(reqIDDir, 60, req, modbus.OperationCommand, false, 0)
}

// ResetInverter clears a latched inverter-side fault; highest priority.
func (c *CS80Actor) ResetInverter() {
	req := &modbus.ModbusRequest{SlaveID: c.slaveID, FunctionCode: modbus.PresetHoldingRegister,
		Data: regWrite(regReset, 0x0001)}
	c.actor.AddRequest(reqIDReset, 100, req, modbus.Reset, false, 0)
}

// Act runs one cycle: on first use it initialises and queues a reset;
// afterwards it keeps the periodic status/motor reads flowing and
// consumes whatever exchange completed this cycle, per spec.md §4.9.
func (c *CS80Actor) Act(now time.Time) error {
	if !c.initialized {
		c.ResetInverter()
		c.initialized = true
	}

	c.queueStatusReads()

	err := c.actor.Act(now)

	if resp := c.actor.GetResponse(); resp != nil {
		switch c.actor.LastResponseRequestID() {
		case reqIDStatus:
			c.status = decodeStatus(resp.Data)
		case reqIDMotor:
			c.motor = decodeMotorStatus(resp.Data)
		}
	}
	return err
}

// FaultCount reports the underlying actor's protocol fault counter.
func (c *CS80Actor) FaultCount() int { return c.actor.FaultCount() }

func (c *CS80Actor) queueStatusReads() {
	statusReq := &modbus.ModbusRequest{SlaveID: c.slaveID, FunctionCode: modbus.ReadHoldingRegister,
		Data: regRead(regStatusTriple, 1)}
	c.actor.AddRequest(reqIDStatus, 10, statusReq, modbus.ReadWrite, false, 0)

	motorReq := &modbus.ModbusRequest{SlaveID: c.slaveID, FunctionCode: modbus.ReadHoldingRegister,
		Data: regRead(regStatusTriple+1, 2)}
	c.actor.AddRequest(reqIDMotor, 5, motorReq, modbus.ReadWrite, false, 0)
}

func regWrite(addr, value uint16) []byte {
	return []byte{byte(addr >> 8), byte(addr), byte(value >> 8), byte(value)}
}

func regRead(addr, count uint16) []byte {
	return []byte{byte(addr >> 8), byte(addr), byte(count >> 8), byte(count)}
}

func decodeStatus(data []byte) Status {
	if len(data) < 3 {
		return Status{}
	}
	word := uint16(data[1])<<8 | uint16(data[2])
	return Status{
		Running: word&0x0001 != 0,
		Forward: word&0x0002 != 0,
		Fault:   word&0x8000 != 0,
	}
}

func decodeMotorStatus(data []byte) MotorStatus {
	if len(data) < 5 {
		return MotorStatus{}
	}
	freqRaw := uint16(data[1])<<8 | uint16(data[2])
	currentRaw := uint16(data[3])<<8 | uint16(data[4])
	return MotorStatus{
		Frequency: units.Frequency(float64(freqRaw) / 100),
		Current:   units.Current(float64(currentRaw) / 100),
	}
}
