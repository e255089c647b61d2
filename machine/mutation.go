// Copyright (c) 2025 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package machine

import (
	"github.com/extrudeco/filacore/control"
	"github.com/extrudeco/filacore/ethercat"
	"github.com/extrudeco/filacore/units"
)

// Mutation is the discriminated command type accepted by a machine's
// inbox, per spec.md §6. Each mutation either takes effect atomically
// within one cycle or is rejected and reflected (unchanged) in the
// next StateEvent.
type Mutation interface{ isMutation() }

type SetModeMutation struct{ Mode Mode }
type ZeroTensionArmMutation struct{}
type SetHeatingTargetTemperatureMutation struct {
	Zone   string
	Target units.Temperature
}
type SetHeatingEnabledMutation struct{ Enabled bool }
type StartHeatingAutoTuneMutation struct {
	Zone   string
	Target units.Temperature
}
type SetPullerTargetSpeedMutation struct{ Speed units.Velocity }
type SetPullerForwardMutation struct{ Forward bool }
type SetSpoolRegulationModeMutation struct{ Mode control.SpoolRegulationMode }
type SetTraverseLimitInnerMutation struct{ Inner units.Length }
type SetTraverseLimitOuterMutation struct{ Outer units.Length }
type GotoTraverseHomeMutation struct{}
type SetConnectedMachineMutation struct {
	Slot   int
	Target *ethercat.MachineIdentificationUnique
	TwoWay bool
}
type SetSpoolAutomaticActionMutation struct {
	Action       AutoAction
	TargetMeters units.Length
}
type ResetSpoolProgressMutation struct{}
type EmergencyStopMutation struct{}

func (SetModeMutation) isMutation()                     {}
func (ZeroTensionArmMutation) isMutation()               {}
func (SetHeatingTargetTemperatureMutation) isMutation()  {}
func (SetHeatingEnabledMutation) isMutation()            {}
func (StartHeatingAutoTuneMutation) isMutation()         {}
func (SetPullerTargetSpeedMutation) isMutation()         {}
func (SetPullerForwardMutation) isMutation()             {}
func (SetSpoolRegulationModeMutation) isMutation()       {}
func (SetTraverseLimitInnerMutation) isMutation()        {}
func (SetTraverseLimitOuterMutation) isMutation()        {}
func (GotoTraverseHomeMutation) isMutation()             {}
func (SetConnectedMachineMutation) isMutation()          {}
func (SetSpoolAutomaticActionMutation) isMutation()      {}
func (ResetSpoolProgressMutation) isMutation()           {}
func (EmergencyStopMutation) isMutation()                {}
