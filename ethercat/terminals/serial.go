// Copyright (c) 2014 Quoc-Viet Nguyen. All rights reserved.
// Copyright (c) 2025 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package terminals

import (
	"fmt"
	"io"
	"sync"

	"github.com/grid-x/serial"

	"github.com/extrudeco/filacore/ethercat"
)

// SerialEncoding is the wire format of one character on the bus.
type SerialEncoding struct {
	DataBits int
	Parity   string // "N", "E", "O"
	StopBits int
}

// TotalBits returns the number of bits one character occupies on the
// wire: 1 start bit + data bits + (0 or 1) parity bit + stop bits.
func (e SerialEncoding) TotalBits() int {
	bits := 1 + e.DataBits + e.StopBits
	if e.Parity != "N" {
		bits++
	}
	return bits
}

// SerialInterface is an EL6xxx-style RS485 gateway terminal: it owns a
// physical serial port (here, a github.com/grid-x/serial.Port) and
// surfaces the cooperative, single-step API the Modbus serial actor
// drives once per cycle, plus the transmit/receive-accept handshake
// bits described in spec.md §4.4.
type SerialInterface struct {
	ethercat.BaseDevice
	identities []ethercat.SubDeviceIdentityTuple

	cfg  serial.Config
	mu   sync.Mutex
	port io.ReadWriteCloser

	baudrate int
	encoding SerialEncoding

	txBuf      []byte
	rxBuf      []byte
	hasMessage bool

	// handshake bits mirrored to/from the process image.
	txAccept bool
	rxAccept bool
}

// NewSerialInterface builds a serial-interface terminal for the given
// device path at baudrate, using encoding for the character format.
func NewSerialInterface(identities []ethercat.SubDeviceIdentityTuple, device string, baudrate int, encoding SerialEncoding) *SerialInterface {
	parity := serial.ParityNone
	switch encoding.Parity {
	case "E":
		parity = serial.ParityEven
	case "O":
		parity = serial.ParityOdd
	}
	return &SerialInterface{
		identities: identities,
		baudrate:   baudrate,
		encoding:   encoding,
		cfg: serial.Config{
			Address:  device,
			BaudRate: baudrate,
			DataBits: encoding.DataBits,
			StopBits: encoding.StopBits,
			Parity:   parity,
		},
	}
}

func (s *SerialInterface) Identities() []ethercat.SubDeviceIdentityTuple { return s.identities }
func (s *SerialInterface) WriteConfig(ethercat.Configuration) error      { return nil }

// This terminal exchanges no fixed-width PDO payload of its own beyond
// the handshake bits; the message bytes travel over the real serial
// link, not the EtherCAT process image.
func (s *SerialInterface) InputLen() int  { return 2 }
func (s *SerialInterface) OutputLen() int { return 2 }

func (s *SerialInterface) Input(img *ethercat.ProcessImage, span ethercat.Span) error {
	img.SetBit(span.Offset, s.txAccept)
	img.SetBit(span.Offset+1, s.rxAccept)
	return nil
}

func (s *SerialInterface) Output(*ethercat.ProcessImage, ethercat.Span) error { return nil }

// Initialize opens the underlying serial port. Idempotent.
func (s *SerialInterface) Initialize() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.port != nil {
		return nil
	}
	port, err := serial.Open(&s.cfg)
	if err != nil {
		return fmt.Errorf("ethercat: open serial port %s: %w", s.cfg.Address, err)
	}
	s.port = port
	return nil
}

// Close releases the underlying serial port.
func (s *SerialInterface) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.port == nil {
		return nil
	}
	err := s.port.Close()
	s.port = nil
	return err
}

// TxAccept reports the current toggle state of the transmit-accept handshake bit.
func (s *SerialInterface) TxAccept() bool { return s.txAccept }

// RxAccept reports the current toggle state of the receive-accept handshake bit.
func (s *SerialInterface) RxAccept() bool { return s.rxAccept }

// GetBaudrate reports the configured baudrate.
func (s *SerialInterface) GetBaudrate() int { return s.baudrate }

// GetSerialEncoding reports the configured character format.
func (s *SerialInterface) GetSerialEncoding() SerialEncoding { return s.encoding }

// HasMessage reports whether a complete frame is buffered for ReadMessage.
func (s *SerialInterface) HasMessage() bool { return s.hasMessage }

// ReadMessage returns and clears the buffered frame.
func (s *SerialInterface) ReadMessage() []byte {
	msg := s.rxBuf
	s.rxBuf = nil
	s.hasMessage = false
	return msg
}

// WriteMessage queues frame for transmission; commit happens on the
// next cooperative Poll so the handshake bits advance exactly one
// cycle at a time, matching the actor's state machine.
func (s *SerialInterface) WriteMessage(frame []byte) {
	s.txBuf = frame
}

// Poll is the terminal's one cooperative step per cycle: if a frame is
// queued, write it to the wire and toggle the transmit-accept bit;
// otherwise attempt a non-blocking read and toggle the receive-accept
// bit when a frame completes. It never blocks past the current cycle.
func (s *SerialInterface) Poll(readFrame func(io.Reader) ([]byte, bool, error)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.port == nil {
		return fmt.Errorf("ethercat: serial interface not initialized")
	}

	if s.txBuf != nil {
		if _, err := s.port.Write(s.txBuf); err != nil {
			return fmt.Errorf("ethercat: serial write: %w", err)
		}
		s.txBuf = nil
		s.txAccept = !s.txAccept
		return nil
	}

	frame, complete, err := readFrame(s.port)
	if err != nil {
		return fmt.Errorf("ethercat: serial read: %w", err)
	}
	if complete {
		s.rxBuf = frame
		s.hasMessage = true
		s.rxAccept = !s.rxAccept
	}
	return nil
}
