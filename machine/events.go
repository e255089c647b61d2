// Copyright (c) 2025 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package machine

import (
	"sync"
	"time"

	"github.com/extrudeco/filacore/units"
)

// LiveValuesEvent is the ~10Hz telemetry snapshot of spec.md §6.
type LiveValuesEvent struct {
	At                time.Time
	TraversePosition  units.Length
	PullerSpeed       units.Velocity
	SpoolAngularSpeed units.AngularVelocity
	Temperatures      map[string]units.Temperature
	HeatingWattage    map[string]float64
}

// StateEvent is the configuration snapshot plus derived gating
// booleans emitted whenever the hashed state changes, per spec.md §6.
type StateEvent struct {
	At              time.Time
	Mode            Mode
	CanWind         bool
	CanGoIn         bool
	CanGoOut        bool
	CanGoHome       bool
	Faulted         bool
	FaultReason     string
	IsDefaultState  bool
	TraverseInner   units.Length
	TraverseOuter   units.Length
	AutoAction      AutoAction
	AutoTargetMeter units.Length
}

// Namespace is the per-machine, single-writer event cache: the owning
// machine's cycle thread is the only writer, external transport
// threads read copy-on-read immutable snapshots, per spec.md §5.
type Namespace struct {
	mu    sync.Mutex
	live  LiveValuesEvent
	state StateEvent
	hash  uint64
}

// PublishLive overwrites the live-values snapshot.
func (n *Namespace) PublishLive(ev LiveValuesEvent) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.live = ev
}

// Live returns a copy of the last published live-values snapshot.
func (n *Namespace) Live() LiveValuesEvent {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.live
}

// PublishState overwrites the state snapshot if hash differs from the
// last published one, reporting whether it actually changed.
func (n *Namespace) PublishState(ev StateEvent, hash uint64) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	if hash == n.hash && !ev.IsDefaultState {
		return false
	}
	n.state = ev
	n.hash = hash
	return true
}

// State returns a copy of the last published state snapshot.
func (n *Namespace) State() StateEvent {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.state
}
