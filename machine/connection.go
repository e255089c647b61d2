// Copyright (c) 2025 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package machine

import (
	"fmt"
	"sync"
	"time"

	"github.com/extrudeco/filacore/ethercat"
)

// MachineConnection is one outbound cross-machine wire: an identity to
// resolve plus a bounded channel the manager hands back once resolved.
// A machine never stores a pointer to another machine, per spec.md §9.
type MachineConnection struct {
	Target    ethercat.MachineIdentificationUnique
	Available bool
	outbox    chan any
}

// Send enqueues msg without blocking the caller's cycle. If the
// channel is full the message is dropped, per spec.md §5.
func (c *MachineConnection) Send(msg any) {
	if c.outbox == nil {
		return
	}
	select {
	case c.outbox <- msg:
	default:
	}
}

// connectRequest is the element type of Manager.requests. Nothing in
// this package sends or receives on that channel; SetConnectedMachine
// does not dispatch one.
type connectRequest struct {
	from, to ethercat.MachineIdentificationUnique
	twoWay   bool
	slot     int
	reply    chan *MachineConnection
}

// Manager resolves cross-machine connection requests and hands each
// side a channel endpoint, keeping ownership single-rooted (spec.md §9).
type Manager struct {
	mu       sync.Mutex
	machines map[ethercat.MachineIdentificationUnique]*Machine
	order    []*Machine
	requests chan connectRequest
}

// NewManager builds an empty manager.
func NewManager() *Manager {
	return &Manager{
		machines: make(map[ethercat.MachineIdentificationUnique]*Machine),
		requests: make(chan connectRequest, 64),
	}
}

// Register adds m under its identity, making it resolvable by
// ConnectOneWay/ConnectTwoWay from other machines and including it in
// Tick's enumeration order.
func (mgr *Manager) Register(m *Machine) {
	mgr.mu.Lock()
	defer mgr.mu.Unlock()
	mgr.machines[m.Ident] = m
	mgr.order = append(mgr.order, m)
}

// Tick runs one bus cycle: every registered machine's Act in
// registration order (spec.md §5 "Concurrency model").
func (mgr *Manager) Tick(now time.Time, dt float64) {
	mgr.mu.Lock()
	order := mgr.order
	mgr.mu.Unlock()
	for _, m := range order {
		m.Act(now, dt)
	}
}

// ConnectOneWay resolves target and wires a bounded channel from from
// into target's inbox, marking the connection available. It never
// blocks the caller's cycle.
func (mgr *Manager) ConnectOneWay(from ethercat.MachineIdentificationUnique, slot int, target ethercat.MachineIdentificationUnique) (*MachineConnection, error) {
	mgr.mu.Lock()
	defer mgr.mu.Unlock()
	dst, ok := mgr.machines[target]
	if !ok {
		return nil, fmt.Errorf("machine: connection target %v not found", target)
	}
	conn := &MachineConnection{Target: target, Available: true, outbox: dst.crossInbox}
	return conn, nil
}

// ConnectTwoWay resolves target and wires channels in both directions.
func (mgr *Manager) ConnectTwoWay(from *Machine, slot int, target ethercat.MachineIdentificationUnique) (*MachineConnection, error) {
	mgr.mu.Lock()
	dst, ok := mgr.machines[target]
	mgr.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("machine: connection target %v not found", target)
	}
	fwd := &MachineConnection{Target: target, Available: true, outbox: dst.crossInbox}
	back := &MachineConnection{Target: from.Ident, Available: true, outbox: from.crossInbox}
	dst.adoptReverseConnection(back)
	return fwd, nil
}
