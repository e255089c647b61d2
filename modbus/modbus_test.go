// Copyright (c) 2025 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package modbus

import (
	"bytes"
	"testing"
)

func TestEncodeReadHoldingRegister(t *testing.T) {
	req := &ModbusRequest{
		SlaveID:      0x01,
		FunctionCode: ReadHoldingRegister,
		Data:         []byte{0x03, 0xEB, 0x00, 0x01},
	}
	got := req.Encode()
	want := []byte{0x01, 0x03, 0x03, 0xEB, 0x00, 0x01, 0xF4, 0x7A}
	if !bytes.Equal(got, want) {
		t.Fatalf("Encode() = % X, want % X", got, want)
	}
}

func TestDecodeResponse(t *testing.T) {
	raw := []byte{0x11, 0x03, 0x06, 0x17, 0x70, 0x0B, 0xB8, 0x03, 0xE8, 0x2C, 0xE6}
	resp, err := DecodeResponse(raw)
	if err != nil {
		t.Fatalf("DecodeResponse: %v", err)
	}
	if resp.SlaveID != 0x11 || resp.FunctionCode != ReadHoldingRegister {
		t.Fatalf("unexpected header: %+v", resp)
	}
	want := []byte{0x06, 0x17, 0x70, 0x0B, 0xB8, 0x03, 0xE8}
	if !bytes.Equal(resp.Data, want) {
		t.Fatalf("Data = % X, want % X", resp.Data, want)
	}
	if resp.CRC != 0xE62C {
		t.Fatalf("CRC = 0x%04X, want 0xE62C", resp.CRC)
	}
}

func TestDecodeResponseRejectsShortFrame(t *testing.T) {
	if _, err := DecodeResponse([]byte{0x01, 0x03, 0x00}); err == nil {
		t.Fatal("expected error for frame shorter than minimum")
	}
}

func TestDecodeResponseRejectsBadSlaveID(t *testing.T) {
	req := &ModbusRequest{SlaveID: 0, FunctionCode: ReadHoldingRegister, Data: []byte{0, 0, 0, 1}}
	if _, err := DecodeResponse(req.Encode()); err == nil {
		t.Fatal("expected error for slave id 0")
	}
}

func TestDecodeResponseRejectsBadCRC(t *testing.T) {
	raw := []byte{0x11, 0x03, 0x06, 0x17, 0x70, 0x0B, 0xB8, 0x03, 0xE8, 0x2C, 0xE7}
	if _, err := DecodeResponse(raw); err == nil {
		t.Fatal("expected crc mismatch error")
	}
}

// TestEncodeDecodeRoundTrip checks invariant 1: decoding a legally
// shaped response frame recovers the original request's header fields.
func TestEncodeDecodeRoundTrip(t *testing.T) {
	req := &ModbusRequest{
		SlaveID:      0x05,
		FunctionCode: PresetHoldingRegister,
		Data:         []byte{0x00, 0x08, 0x00, 0x01},
	}
	raw := req.Encode()
	resp, err := DecodeResponse(raw)
	if err != nil {
		t.Fatalf("DecodeResponse: %v", err)
	}
	if resp.SlaveID != req.SlaveID || resp.FunctionCode != req.FunctionCode {
		t.Fatalf("round trip header mismatch: got %+v", resp)
	}
	if !bytes.Equal(resp.Data, req.Data) {
		t.Fatalf("round trip data mismatch: got % X want % X", resp.Data, req.Data)
	}
}

func TestCalculateRTUTimeout(t *testing.T) {
	cases := []struct {
		bits, delay, baud, size, want int64
	}{
		{10, 0, 9600, 10, 14040},
		{10, 1_200_000, 9600, 10, 14040 + 1_200_000},
		{10, 0, 9600, 0, 3640},
	}
	for _, c := range cases {
		got := CalculateRTUTimeout(c.bits, c.delay, c.baud, c.size)
		if got != c.want {
			t.Errorf("CalculateRTUTimeout(%d,%d,%d,%d) = %d, want %d", c.bits, c.delay, c.baud, c.size, got, c.want)
		}
	}
}

func TestCalculateRTUTimeoutAtLeastsFloor(t *testing.T) {
	// Invariant 3: result must be >= delay + ceil(size*bits*1e6/baud) + ceil(3.5*bits*1e6/baud).
	bits, delay, baud, size := int64(8), int64(500_000), int64(19200), int64(16)
	got := CalculateRTUTimeout(bits, delay, baud, size)
	nsPerBit := float64(1_000_000) / float64(baud)
	floor := float64(delay) + ceilf(float64(size)*float64(bits)*nsPerBit) + ceilf(3.5*float64(bits)*nsPerBit)
	if float64(got) < floor-1 {
		t.Fatalf("CalculateRTUTimeout = %d below floor %v", got, floor)
	}
}

func ceilf(f float64) float64 {
	i := int64(f)
	if float64(i) < f {
		i++
	}
	return float64(i)
}
