// Copyright (c) 2025 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

// Package modbus implements the Modbus RTU request/response codec and
// the RTU inter-frame silence timing used to talk to inverters tunneled
// over the EtherCAT serial-interface terminal. It knows nothing about
// serial ports or cyclic scheduling; see modbus/actor for that.
package modbus

import (
	"fmt"

	"github.com/extrudeco/filacore/modbus/crc"
)

// FunctionCode is the subset of Modbus function codes this core speaks.
type FunctionCode byte

const (
	ReadHoldingRegister  FunctionCode = 0x03
	PresetHoldingRegister FunctionCode = 0x06
	DiagnoseFunction     FunctionCode = 0x08
)

func (f FunctionCode) String() string {
	switch f {
	case ReadHoldingRegister:
		return "ReadHoldingRegister"
	case PresetHoldingRegister:
		return "PresetHoldingRegister"
	case DiagnoseFunction:
		return "DiagnoseFunction"
	default:
		return fmt.Sprintf("FunctionCode(0x%02X)", byte(f))
	}
}

func (f FunctionCode) valid() bool {
	switch f {
	case ReadHoldingRegister, PresetHoldingRegister, DiagnoseFunction:
		return true
	default:
		return false
	}
}

// ModbusRequest is an outbound RTU exchange.
type ModbusRequest struct {
	SlaveID      byte
	FunctionCode FunctionCode
	Data         []byte
}

// ModbusResponse is a decoded RTU reply.
type ModbusResponse struct {
	SlaveID      byte
	FunctionCode FunctionCode
	Data         []byte
	CRC          uint16
}

// MinFrameSize is the smallest legal RTU frame: slave + func + 2-byte CRC,
// one byte of data is always present for the function codes in use here.
const MinFrameSize = 5

// Encode serializes r into a wire frame: slave_id, func, data..., crc_lo, crc_hi.
func (r *ModbusRequest) Encode() []byte {
	frame := make([]byte, 2+len(r.Data)+2)
	frame[0] = r.SlaveID
	frame[1] = byte(r.FunctionCode)
	copy(frame[2:], r.Data)

	var c crc.CRC
	c.Reset().PushBytes(frame[:len(frame)-2])
	checksum := c.Value()
	frame[len(frame)-2] = byte(checksum)      // low byte first on the wire
	frame[len(frame)-1] = byte(checksum >> 8) // then high byte
	return frame
}

// DecodeResponse validates and parses a raw RTU reply.
//
// Fails when the frame is shorter than MinFrameSize, the slave id is
// outside [1,247], the function code is unrecognized, or the trailing
// little-endian CRC does not match the CRC-16/MODBUS of every
// preceding byte.
func DecodeResponse(raw []byte) (*ModbusResponse, error) {
	if len(raw) < MinFrameSize {
		return nil, fmt.Errorf("modbus: frame length %d below minimum %d", len(raw), MinFrameSize)
	}
	slaveID := raw[0]
	if slaveID < 1 || slaveID > 247 {
		return nil, fmt.Errorf("modbus: slave id %d out of range [1,247]", slaveID)
	}
	fc := FunctionCode(raw[1])
	if !fc.valid() {
		return nil, fmt.Errorf("modbus: unknown function code 0x%02X", raw[1])
	}

	n := len(raw)
	var c crc.CRC
	c.Reset().PushBytes(raw[:n-2])
	want := c.Value()
	got := uint16(raw[n-1])<<8 | uint16(raw[n-2])
	if got != want {
		return nil, fmt.Errorf("modbus: crc mismatch: frame has 0x%04X, computed 0x%04X", got, want)
	}

	return &ModbusResponse{
		SlaveID:      slaveID,
		FunctionCode: fc,
		Data:         append([]byte(nil), raw[2:n-2]...),
		CRC:          got,
	}, nil
}

// RequestType classifies a request by the operation it performs on the
// slave, which bounds how long the slave is allowed to take to answer.
type RequestType int

const (
	OperationCommand RequestType = iota
	ReadWrite
	ParamClear
	Reset
	NoResponseType
)

// MaxResponseDelay returns the slave's processing budget for t, in nanoseconds.
func (t RequestType) MaxResponseDelay() int64 {
	switch t {
	case OperationCommand:
		return 12_000_000
	case ReadWrite:
		return 30_000_000
	case ParamClear:
		return 5_000_000_000
	case Reset:
		return 900_000_000
	case NoResponseType:
		return 12_000_000
	default:
		return 12_000_000
	}
}
