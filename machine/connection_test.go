// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package machine

import (
	"testing"
	"time"

	"github.com/extrudeco/filacore/ethercat"
)

func newBareMachine(serial uint16) *Machine {
	ident := ethercat.MachineIdentificationUnique{Serial: serial}
	return New(Config{Ident: ident})
}

func TestManagerTickRunsEveryRegisteredMachine(t *testing.T) {
	mgr := NewManager()
	a := newBareMachine(1)
	b := newBareMachine(2)
	mgr.Register(a)
	mgr.Register(b)

	a.Inbox() <- SetModeMutation{Mode: Wind}
	a.tensionZeroed = true // homed vacuously, no traverse configured
	b.Inbox() <- SetModeMutation{Mode: Pull}
	b.tensionZeroed = true

	mgr.Tick(time.Now(), 0.01)

	if a.Mode() != Wind {
		t.Fatalf("machine a mode = %v, want Wind", a.Mode())
	}
	if b.Mode() != Pull {
		t.Fatalf("machine b mode = %v, want Pull", b.Mode())
	}
}

func TestManagerConnectOneWayDeliversWithoutBlockingSender(t *testing.T) {
	mgr := NewManager()
	src := newBareMachine(1)
	dst := newBareMachine(2)
	mgr.Register(src)
	mgr.Register(dst)

	conn, err := mgr.ConnectOneWay(src.Ident, 0, dst.Ident)
	if err != nil {
		t.Fatalf("ConnectOneWay: %v", err)
	}
	if !conn.Available {
		t.Fatal("expected connection to be available once resolved")
	}

	conn.Send("telemetry")
	mgr.Tick(time.Now(), 0.01) // dst's Act drains crossInbox

	select {
	case <-dst.crossInbox:
		t.Fatal("expected dst.Act to have already drained the cross message")
	default:
	}
}

func TestManagerConnectOneWayUnknownTargetErrors(t *testing.T) {
	mgr := NewManager()
	src := newBareMachine(1)
	mgr.Register(src)

	missing := ethercat.MachineIdentificationUnique{Serial: 99}
	if _, err := mgr.ConnectOneWay(src.Ident, 0, missing); err == nil {
		t.Fatal("expected error resolving an unregistered target")
	}
}

func TestManagerConnectTwoWayWiresBothDirections(t *testing.T) {
	mgr := NewManager()
	a := newBareMachine(1)
	b := newBareMachine(2)
	mgr.Register(a)
	mgr.Register(b)

	fwd, err := mgr.ConnectTwoWay(a, 0, b.Ident)
	if err != nil {
		t.Fatalf("ConnectTwoWay: %v", err)
	}
	if fwd.Target != b.Ident {
		t.Fatalf("forward connection target = %+v, want %+v", fwd.Target, b.Ident)
	}
	if len(b.connections) != 1 || b.connections[0].Target != a.Ident {
		t.Fatalf("expected b to have adopted a reverse connection back to a, got %+v", b.connections)
	}
}

func TestMachineConnectionSendDropsWhenOutboxFull(t *testing.T) {
	dst := newBareMachine(1)
	conn := &MachineConnection{Target: dst.Ident, Available: true, outbox: dst.crossInbox}

	for i := 0; i < cap(dst.crossInbox)+5; i++ {
		conn.Send(i) // must never block even once the channel is full
	}
}
