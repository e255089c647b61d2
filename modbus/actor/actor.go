// Copyright (c) 2025 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

// Package actor implements the cooperative, cycle-stepped Modbus RTU
// request scheduler described in spec.md §4.4: it owns one serial
// terminal and arbitrates a priority-ordered queue of pending requests,
// never blocking the EtherCAT cyclic thread it is stepped from.
package actor

import (
	"fmt"
	"sort"
	"time"

	"github.com/extrudeco/filacore/modbus"
)

// State is the actor's current position in the §4.4 handshake.
type State int

const (
	Uninitialized State = iota
	ReadyToSend
	WaitingForRequestAccept
	WaitingForResponse
	WaitingForReceiveAccept
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "Uninitialized"
	case ReadyToSend:
		return "ReadyToSend"
	case WaitingForRequestAccept:
		return "WaitingForRequestAccept"
	case WaitingForResponse:
		return "WaitingForResponse"
	case WaitingForReceiveAccept:
		return "WaitingForReceiveAccept"
	default:
		return "Unknown"
	}
}

// Terminal is the subset of terminals.SerialInterface the actor needs.
// Defined here (not imported from ethercat/terminals) to keep this
// package testable without a real serial port.
type Terminal interface {
	Initialize() error
	HasMessage() bool
	ReadMessage() []byte
	WriteMessage([]byte)
	TxAccept() bool
	RxAccept() bool
}

type pendingRequest struct {
	requestID         string
	priority          int
	effectivePriority int
	insertionSeq      uint64
	request           *modbus.ModbusRequest
	requestType       modbus.RequestType
	noResponseExpected bool
	timeoutOverride   time.Duration
}

// Actor schedules Modbus exchanges over one serial terminal.
type Actor struct {
	terminal Terminal
	state    State

	pending map[string]*pendingRequest
	seq     uint64

	inFlight     *pendingRequest
	sentAt       time.Time
	lastTxAccept bool
	lastRxAccept bool
	frameLen     int

	lastResponse          *modbus.ModbusResponse
	lastResponseRequestID string

	faultCount int

	// CycleGrace bounds how much slack beyond the computed silence
	// timeout the actor tolerates before declaring a timeout fault;
	// it should track the EtherCAT bus cycle time.
	CycleGrace time.Duration

	BitsPerChar int64
	BaudRate    int64
}

// New builds an actor driving terminal.
func New(terminal Terminal, bitsPerChar int64, baudRate int64, cycleGrace time.Duration) *Actor {
	return &Actor{
		terminal:    terminal,
		state:       Uninitialized,
		pending:     make(map[string]*pendingRequest),
		CycleGrace:  cycleGrace,
		BitsPerChar: bitsPerChar,
		BaudRate:    baudRate,
	}
}

// AddRequest enqueues or replaces the pending request under requestID.
// Effective priority is seeded from priority on first insertion and is
// preserved (not reset) on replacement, so a request that has already
// aged past its peers keeps its earned boost.
func (a *Actor) AddRequest(requestID string, priority int, req *modbus.ModbusRequest, reqType modbus.RequestType, noResponseExpected bool, timeoutOverride time.Duration) {
	if existing, ok := a.pending[requestID]; ok {
		existing.request = req
		existing.requestType = reqType
		existing.noResponseExpected = noResponseExpected
		existing.timeoutOverride = timeoutOverride
		return
	}
	a.seq++
	a.pending[requestID] = &pendingRequest{
		requestID:          requestID,
		priority:           priority,
		effectivePriority:  priority,
		insertionSeq:       a.seq,
		request:            req,
		requestType:        reqType,
		noResponseExpected: noResponseExpected,
		timeoutOverride:    timeoutOverride,
	}
}

// GetResponse returns and clears the most recently completed exchange.
func (a *Actor) GetResponse() *modbus.ModbusResponse {
	r := a.lastResponse
	a.lastResponse = nil
	return r
}

// LastResponseRequestID reports the requestID the most recently
// completed exchange was enqueued under, so a caller multiplexing
// several request kinds over one actor can tell them apart.
func (a *Actor) LastResponseRequestID() string { return a.lastResponseRequestID }

// FaultCount reports how many exchanges have timed out or failed to
// decode since construction (a ProtocolError counter, per spec.md §7).
func (a *Actor) FaultCount() int { return a.faultCount }

// CurrentState reports the actor's current handshake state.
func (a *Actor) CurrentState() State { return a.state }

// selectNext picks the highest effective-priority pending request,
// breaking ties by insertion order (FIFO), and bumps every other
// pending request's effective priority by one so none starves (spec.md
// §4.4 "Priority arbitration").
func (a *Actor) selectNext() *pendingRequest {
	if len(a.pending) == 0 {
		return nil
	}
	ordered := make([]*pendingRequest, 0, len(a.pending))
	for _, p := range a.pending {
		ordered = append(ordered, p)
	}
	sort.Slice(ordered, func(i, j int) bool {
		if ordered[i].effectivePriority != ordered[j].effectivePriority {
			return ordered[i].effectivePriority > ordered[j].effectivePriority
		}
		return ordered[i].insertionSeq < ordered[j].insertionSeq
	})
	winner := ordered[0]
	for _, p := range ordered[1:] {
		p.effectivePriority++
	}
	delete(a.pending, winner.requestID)
	return winner
}

// Act performs at most one state transition; it never blocks.
func (a *Actor) Act(now time.Time) error {
	switch a.state {
	case Uninitialized:
		if err := a.terminal.Initialize(); err != nil {
			a.faultCount++
			return fmt.Errorf("actor: initialize: %w", err)
		}
		a.state = ReadyToSend
		a.lastTxAccept = a.terminal.TxAccept()
		a.lastRxAccept = a.terminal.RxAccept()
		return nil

	case ReadyToSend:
		next := a.selectNext()
		if next == nil {
			return nil
		}
		frame := next.request.Encode()
		a.lastTxAccept = a.terminal.TxAccept()
		a.lastRxAccept = a.terminal.RxAccept()
		a.terminal.WriteMessage(frame)
		a.inFlight = next
		a.frameLen = len(frame)
		a.sentAt = now
		if next.noResponseExpected {
			a.state = ReadyToSend
			a.inFlight = nil
			return nil
		}
		a.state = WaitingForRequestAccept
		return nil

	case WaitingForRequestAccept:
		if a.terminal.TxAccept() != a.lastTxAccept {
			a.state = WaitingForResponse
		}
		return nil

	case WaitingForResponse:
		timeout := a.timeoutFor(a.inFlight)
		elapsed := now.Sub(a.sentAt)
		if elapsed >= timeout && a.terminal.HasMessage() {
			raw := a.terminal.ReadMessage()
			resp, err := modbus.DecodeResponse(raw)
			if err != nil {
				a.faultCount++
				a.inFlight = nil
				a.state = ReadyToSend
				return fmt.Errorf("actor: decode response: %w", err)
			}
			a.lastResponse = resp
			a.lastResponseRequestID = a.inFlight.requestID
			a.state = WaitingForReceiveAccept
			return nil
		}
		if elapsed >= timeout+a.CycleGrace {
			a.faultCount++
			requestID := a.inFlight.requestID
			a.inFlight = nil
			a.state = ReadyToSend
			return fmt.Errorf("actor: request %s timed out after %v", requestID, elapsed)
		}
		return nil

	case WaitingForReceiveAccept:
		if a.terminal.RxAccept() != a.lastRxAccept {
			a.inFlight = nil
			a.state = ReadyToSend
		}
		return nil

	default:
		a.state = Uninitialized
		return fmt.Errorf("actor: unrecoverable error, resetting")
	}
}

func (a *Actor) timeoutFor(p *pendingRequest) time.Duration {
	if p.timeoutOverride > 0 {
		return p.timeoutOverride
	}
	ns := modbus.CalculateRTUTimeout(a.BitsPerChar, p.requestType.MaxResponseDelay(), a.BaudRate, int64(a.frameLen))
	return time.Duration(ns)
}
