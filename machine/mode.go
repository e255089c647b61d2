// Copyright (c) 2025 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package machine

// Mode is the machine-wide operating mode FSM of spec.md §4.10.
type Mode int

const (
	Standby Mode = iota
	Heat
	Pull
	Wind
)

func (m Mode) String() string {
	switch m {
	case Standby:
		return "Standby"
	case Heat:
		return "Heat"
	case Pull:
		return "Pull"
	case Wind:
		return "Wind"
	default:
		return "Unknown"
	}
}

// AutoAction selects what happens when the accumulated meter counter
// reaches its target, per spec.md §4.10.
type AutoAction int

const (
	NoAction AutoAction = iota
	AutoPull
	AutoHold
)
