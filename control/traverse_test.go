// Copyright (c) 2025 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package control

import (
	"testing"
	"time"
)

type fakeEndstop struct{ triggered bool }

func (f *fakeEndstop) Triggered() bool { return f.triggered }

// TestTraverseHomingSequence walks through the homing sub-states and
// asserts Wind is only reachable afterwards, per spec.md §8 invariant 5.
func TestTraverseHomingSequence(t *testing.T) {
	tr := NewTraverse(0.01)
	if err := tr.StartWinding(); err == nil {
		t.Fatal("expected StartWinding to be rejected before homing")
	}

	tr.GotoHome()
	endstop := &fakeEndstop{triggered: true}
	now := time.Now()

	// Initialize -> EscapeEndstop
	tr.Update(now, 0, endstop, 0)
	if tr.State() != HomingEscapeEndstop {
		t.Fatalf("state = %v, want HomingEscapeEndstop", tr.State())
	}

	// Still on the endstop: keep escaping.
	tr.Update(now, 0, endstop, 0)
	if tr.State() != HomingEscapeEndstop {
		t.Fatalf("state = %v, want still HomingEscapeEndstop while triggered", tr.State())
	}

	endstop.triggered = false
	tr.Update(now, 0.01, endstop, 0)
	if tr.State() != HomingFindEndstopCoarse {
		t.Fatalf("state = %v, want HomingFindEndstopCoarse", tr.State())
	}

	endstop.triggered = true
	tr.Update(now, 0, endstop, 0)
	if tr.State() != HomingFindEndstopFineDistancing {
		t.Fatalf("state = %v, want HomingFindEndstopFineDistancing", tr.State())
	}

	endstop.triggered = false
	tr.Update(now, 0.005, endstop, 0)
	if tr.State() != HomingFindEndstopFine {
		t.Fatalf("state = %v, want HomingFindEndstopFine", tr.State())
	}

	endstop.triggered = true
	tr.Update(now, 0.001, endstop, 0)
	if tr.State() != HomingValidate {
		t.Fatalf("state = %v, want HomingValidate", tr.State())
	}
	if tr.Position() != 0 {
		t.Fatalf("position at endstop capture = %v, want 0", tr.Position())
	}

	tr.Update(now.Add(50*time.Millisecond), 0, endstop, 0)
	if tr.State() != HomingValidate {
		t.Fatalf("validate should still be pending at 50ms, got %v", tr.State())
	}

	tr.Update(now.Add(150*time.Millisecond), 0, endstop, 0)
	if tr.State() != TraverseIdle {
		t.Fatalf("state after validate window = %v, want Idle", tr.State())
	}
	if !tr.Homed() {
		t.Fatal("expected Homed() to be true after homing completes")
	}
	if pos := tr.Position(); pos < -0.01e-3 || pos > 0.01e-3 {
		t.Fatalf("position after homing = %v, want 0 ± 0.01mm", pos)
	}

	if err := tr.SetLimits(0, 0.05); err != nil {
		t.Fatalf("set limits: %v", err)
	}
	if err := tr.StartWinding(); err != nil {
		t.Fatalf("StartWinding after homing: %v", err)
	}
}

func TestTraverseLimitsRejectTooClose(t *testing.T) {
	tr := NewTraverse(0.01)
	if err := tr.SetLimits(0, 0.0005); err == nil {
		t.Fatal("expected limits closer than 0.9mm to be rejected")
	}
}
