// Copyright (c) 2025 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

// Package ethercat models the EtherCAT process-data image and the
// per-terminal device abstraction built on top of it. The real bus
// master (topology enumeration, CoE access, cyclic PDO exchange with
// the physical fieldbus) is an external collaborator; this package only
// owns the bit-level contract described in spec.md §3/§4.2.
package ethercat

import "fmt"

// ProcessImage is a contiguous, least-significant-bit-first bit buffer.
// One instance exists per direction (inputs / outputs) and is owned
// exclusively by the cyclic thread — no locking, matching §5 "Shared
// resources".
type ProcessImage struct {
	bits []byte
}

// NewProcessImage allocates an image wide enough to hold numBits bits.
func NewProcessImage(numBits int) *ProcessImage {
	return &ProcessImage{bits: make([]byte, (numBits+7)/8)}
}

// Len returns the number of addressable bits.
func (p *ProcessImage) Len() int { return len(p.bits) * 8 }

// Bit reads a single bit at offset.
func (p *ProcessImage) Bit(offset int) bool {
	return p.bits[offset/8]&(1<<uint(offset%8)) != 0
}

// SetBit writes a single bit at offset.
func (p *ProcessImage) SetBit(offset int, v bool) {
	byteIdx, bitIdx := offset/8, uint(offset%8)
	if v {
		p.bits[byteIdx] |= 1 << bitIdx
	} else {
		p.bits[byteIdx] &^= 1 << bitIdx
	}
}

// Uint16 reads a 16-bit little-endian field starting at offset (must be byte-aligned).
func (p *ProcessImage) Uint16(offset int) uint16 {
	b := p.bits[offset/8:]
	return uint16(b[0]) | uint16(b[1])<<8
}

// SetUint16 writes a 16-bit little-endian field starting at offset (must be byte-aligned).
func (p *ProcessImage) SetUint16(offset int, v uint16) {
	b := p.bits[offset/8:]
	b[0] = byte(v)
	b[1] = byte(v >> 8)
}

// Int16 reads a signed 16-bit little-endian field.
func (p *ProcessImage) Int16(offset int) int16 { return int16(p.Uint16(offset)) }

// SetInt16 writes a signed 16-bit little-endian field.
func (p *ProcessImage) SetInt16(offset int, v int16) { p.SetUint16(offset, uint16(v)) }

// Int32 reads a signed 32-bit little-endian field.
func (p *ProcessImage) Int32(offset int) int32 {
	b := p.bits[offset/8:]
	return int32(uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24)
}

// SetInt32 writes a signed 32-bit little-endian field.
func (p *ProcessImage) SetInt32(offset int, v int32) {
	b := p.bits[offset/8:]
	u := uint32(v)
	b[0] = byte(u)
	b[1] = byte(u >> 8)
	b[2] = byte(u >> 16)
	b[3] = byte(u >> 24)
}

// Bytes returns the raw underlying slice for the span [offset, offset+numBytes).
func (p *ProcessImage) Bytes(offset, numBytes int) []byte {
	start := offset / 8
	return p.bits[start : start+numBytes]
}

// SetBytes copies data into the span starting at offset.
func (p *ProcessImage) SetBytes(offset int, data []byte) {
	start := offset / 8
	copy(p.bits[start:], data)
}

// Span returns a bounds-checked description of a terminal's bit range.
type Span struct {
	Offset int
	Bits   int
}

func (s Span) String() string {
	return fmt.Sprintf("[%d,%d)", s.Offset, s.Offset+s.Bits)
}
