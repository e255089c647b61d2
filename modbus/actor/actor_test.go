// Copyright (c) 2025 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package actor

import (
	"testing"
	"time"

	"github.com/extrudeco/filacore/modbus"
)

// fakeTerminal is a hand-written stand-in for a real serial-interface
// terminal; no mocking framework, matching the teacher's test style.
type fakeTerminal struct {
	initialized bool
	txAccept    bool
	rxAccept    bool
	written     []byte
	nextReply   []byte
	hasMessage  bool
}

func (f *fakeTerminal) Initialize() error { f.initialized = true; return nil }
func (f *fakeTerminal) HasMessage() bool  { return f.hasMessage }
func (f *fakeTerminal) ReadMessage() []byte {
	f.hasMessage = false
	return f.nextReply
}
func (f *fakeTerminal) WriteMessage(b []byte) {
	f.written = b
	f.txAccept = !f.txAccept
	if f.nextReply != nil {
		f.hasMessage = true
		f.rxAccept = !f.rxAccept
	}
}
func (f *fakeTerminal) TxAccept() bool { return f.txAccept }
func (f *fakeTerminal) RxAccept() bool { return f.rxAccept }

func readHoldingRequest(slave byte) *modbus.ModbusRequest {
	return &modbus.ModbusRequest{SlaveID: slave, FunctionCode: modbus.ReadHoldingRegister, Data: []byte{0, 0, 0, 1}}
}

func TestActorInitializesThenSendsAndReceives(t *testing.T) {
	resp := (&modbus.ModbusRequest{SlaveID: 1, FunctionCode: modbus.ReadHoldingRegister, Data: []byte{0x06, 0x00, 0x00}}).Encode()
	term := &fakeTerminal{nextReply: resp}
	a := New(term, 10, 9600, time.Millisecond)

	now := time.Now()
	if err := a.Act(now); err != nil {
		t.Fatalf("init: %v", err)
	}
	if a.CurrentState() != ReadyToSend {
		t.Fatalf("state after init = %v, want ReadyToSend", a.CurrentState())
	}

	a.AddRequest("status", 1, readHoldingRequest(1), modbus.ReadWrite, false, 0)
	if err := a.Act(now); err != nil {
		t.Fatalf("send: %v", err)
	}
	if a.CurrentState() != WaitingForRequestAccept {
		t.Fatalf("state after send = %v, want WaitingForRequestAccept", a.CurrentState())
	}

	if err := a.Act(now); err != nil {
		t.Fatalf("tx-accept: %v", err)
	}
	if a.CurrentState() != WaitingForResponse {
		t.Fatalf("state after tx-accept = %v, want WaitingForResponse", a.CurrentState())
	}

	later := now.Add(time.Second)
	if err := a.Act(later); err != nil {
		t.Fatalf("response: %v", err)
	}
	if a.CurrentState() != WaitingForReceiveAccept {
		t.Fatalf("state after response = %v, want WaitingForReceiveAccept", a.CurrentState())
	}

	if err := a.Act(later); err != nil {
		t.Fatalf("rx-accept: %v", err)
	}
	if a.CurrentState() != ReadyToSend {
		t.Fatalf("state after rx-accept = %v, want ReadyToSend", a.CurrentState())
	}
	if a.GetResponse() == nil {
		t.Fatal("expected a completed response")
	}
}

// TestNoResponseExpectedShortCircuits checks the §4.4 fast path.
func TestNoResponseExpectedShortCircuits(t *testing.T) {
	term := &fakeTerminal{}
	a := New(term, 10, 9600, time.Millisecond)
	now := time.Now()
	a.Act(now) // Uninitialized -> ReadyToSend

	a.AddRequest("stop", 10, readHoldingRequest(1), modbus.OperationCommand, true, 0)
	if err := a.Act(now); err != nil {
		t.Fatalf("send: %v", err)
	}
	if a.CurrentState() != ReadyToSend {
		t.Fatalf("no_response_expected should stay ReadyToSend, got %v", a.CurrentState())
	}
}

// TestPriorityArbitrationPreventsStarvation checks invariant 6: a
// request that never wins keeps getting its effective priority bumped
// every round until it eventually becomes the winner, even against a
// periodically re-issued high-priority request.
func TestPriorityArbitrationPreventsStarvation(t *testing.T) {
	a := &Actor{pending: make(map[string]*pendingRequest)}
	a.AddRequest("low", 1, readHoldingRequest(1), modbus.ReadWrite, false, 0)
	a.AddRequest("high", 5, readHoldingRequest(2), modbus.OperationCommand, false, 0)

	lastLowPriority := 1
	lowWon := false
	const maxRounds = 1000
	for i := 0; i < maxRounds && !lowWon; i++ {
		winner := a.selectNext()
		switch winner.requestID {
		case "high":
			// Simulate the periodic controller re-issuing the same command.
			a.AddRequest("high", 5, readHoldingRequest(2), modbus.OperationCommand, false, 0)
			low := a.pending["low"]
			if low.effectivePriority < lastLowPriority {
				t.Fatalf("low's effective priority decreased: %d -> %d", lastLowPriority, low.effectivePriority)
			}
			lastLowPriority = low.effectivePriority
		case "low":
			lowWon = true
			// Re-issue low too, so the next assertion sees it pending again.
			a.AddRequest("low", 1, readHoldingRequest(1), modbus.ReadWrite, false, 0)
		default:
			t.Fatalf("unexpected winner %q", winner.requestID)
		}
	}
	if !lowWon {
		t.Fatalf("low never won within %d rounds despite monotonically growing priority", maxRounds)
	}
	// Low wins as soon as its effective priority ties high's static 5:
	// the tie goes to low because it was inserted first (FIFO).
	if lastLowPriority != 5 {
		t.Fatalf("low won at effective priority %d, want 5 (tie with high broken FIFO)", lastLowPriority)
	}
}
