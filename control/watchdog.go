// Copyright (c) 2025 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package control

import (
	"time"

	"github.com/extrudeco/filacore/units"
)

const (
	watchdogGrace    = 60 * time.Second
	watchdogMinDelta = units.Temperature(5)
)

// HeatingWatchdog detects a heating zone that has been commanded on
// for a sustained period without making meaningful progress towards
// its target, per spec.md §4.7. One instance guards one zone.
type HeatingWatchdog struct {
	armed     bool
	t0        time.Time
	measured0 units.Temperature
	faulted   bool
}

// Observe runs one watchdog cycle. heating is the zone's commanded
// duty>0 state, target/measured its current setpoint and reading. It
// returns true exactly once, the cycle the fault is declared.
func (w *HeatingWatchdog) Observe(now time.Time, target, measured units.Temperature, heating bool) (faulted bool) {
	if w.faulted {
		return false
	}
	if !(target > measured && heating) {
		w.armed = false
		return false
	}
	if !w.armed {
		w.armed = true
		w.t0 = now
		w.measured0 = measured
		return false
	}
	if now.Sub(w.t0) >= watchdogGrace && measured-w.measured0 < watchdogMinDelta {
		w.faulted = true
		return true
	}
	return false
}

// Faulted reports whether the watchdog has latched a fault.
func (w *HeatingWatchdog) Faulted() bool { return w.faulted }

// Acknowledge clears a latched fault, re-arming the watchdog on the
// next Observe call that meets the heating precondition.
func (w *HeatingWatchdog) Acknowledge() {
	w.faulted = false
	w.armed = false
}

// Reset clears the armed/tracking state; used when the zone returns to
// Standby or its heating permit is revoked. A latched fault stays in
// place until Acknowledge.
func (w *HeatingWatchdog) Reset() {
	w.armed = false
}
