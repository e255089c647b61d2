// Copyright (c) 2025 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package ethercat

import "fmt"

// MachineIdentification identifies a machine type.
type MachineIdentification struct {
	Vendor  uint16
	Machine uint16
}

// MachineIdentificationUnique additionally carries the machine's serial number.
type MachineIdentificationUnique struct {
	MachineIdentification
	Serial uint16
}

// Slot binds a physical Device to a DeviceRole inside a device group.
type Slot struct {
	Role   DeviceRole
	Device Device
	Span   Span
}

// Group is the set of terminals assigned to one machine, indexed by role.
// Roles must be unique within a group; this is validated at construction.
type Group struct {
	Ident MachineIdentificationUnique
	slots map[DeviceRole]*Slot
}

// NewGroup validates slots for role uniqueness and builds a Group.
func NewGroup(ident MachineIdentificationUnique, slots []Slot) (*Group, error) {
	g := &Group{Ident: ident, slots: make(map[DeviceRole]*Slot, len(slots))}
	for i := range slots {
		s := slots[i]
		if _, dup := g.slots[s.Role]; dup {
			return nil, fmt.Errorf("ethercat: duplicate device role %d in group %+v", s.Role, ident)
		}
		if err := s.Device.Claim(); err != nil {
			return nil, fmt.Errorf("ethercat: role %d: %w", s.Role, err)
		}
		g.slots[s.Role] = &s
	}
	return g, nil
}

// ByRole looks up the terminal bound to role, failing if the role is
// absent — a machine borrows its terminals by role, never by identity.
func (g *Group) ByRole(role DeviceRole) (*Slot, error) {
	s, ok := g.slots[role]
	if !ok {
		return nil, fmt.Errorf("ethercat: group %+v has no device for role %d", g.Ident, role)
	}
	return s, nil
}

// Input decodes every slot's PDO span out of img.
func (g *Group) Input(img *ProcessImage) error {
	for role, s := range g.slots {
		if err := s.Device.Input(img, s.Span); err != nil {
			return fmt.Errorf("ethercat: role %d input: %w", role, err)
		}
	}
	return nil
}

// Output encodes every slot's PDO span into img.
func (g *Group) Output(img *ProcessImage) error {
	for role, s := range g.slots {
		if err := s.Device.Output(img, s.Span); err != nil {
			return fmt.Errorf("ethercat: role %d output: %w", role, err)
		}
	}
	return nil
}
