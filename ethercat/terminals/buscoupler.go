// Copyright (c) 2025 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package terminals

import "github.com/extrudeco/filacore/ethercat"

// SubModule is one plug-in slot of a bus-coupler, with its offset
// inside the coupler's own PDO span learned at startup from the
// coupler's CoE PDO-mapping index.
type SubModule struct {
	Device ethercat.Device
	Offset ethercat.Span // relative to the coupler's own span
}

// BusCoupler is a composite terminal (e.g. EK1100) that forwards
// Input/Output to an ordered list of plugged sub-modules after handling
// its own fixed bits (typically none for a passive coupler).
type BusCoupler struct {
	ethercat.BaseDevice
	identities []ethercat.SubDeviceIdentityTuple
	slots      []SubModule
}

// NewBusCoupler builds a coupler with slots already offset-resolved
// (the offset table is computed at startup by reading the coupler's
// PDO-mapping CoE index; that read is the bus master's job, not ours).
func NewBusCoupler(identities []ethercat.SubDeviceIdentityTuple, slots []SubModule) *BusCoupler {
	return &BusCoupler{identities: identities, slots: slots}
}

func (c *BusCoupler) Identities() []ethercat.SubDeviceIdentityTuple { return c.identities }
func (c *BusCoupler) WriteConfig(cfg ethercat.Configuration) error {
	for _, s := range c.slots {
		if err := s.Device.WriteConfig(cfg); err != nil {
			return err
		}
	}
	return nil
}

func (c *BusCoupler) InputLen() int {
	total := 0
	for _, s := range c.slots {
		total += s.Device.InputLen()
	}
	return total
}

func (c *BusCoupler) OutputLen() int {
	total := 0
	for _, s := range c.slots {
		total += s.Device.OutputLen()
	}
	return total
}

func (c *BusCoupler) Input(img *ethercat.ProcessImage, span ethercat.Span) error {
	for _, s := range c.slots {
		sub := ethercat.Span{Offset: span.Offset + s.Offset.Offset, Bits: s.Offset.Bits}
		if err := s.Device.Input(img, sub); err != nil {
			return err
		}
	}
	return nil
}

func (c *BusCoupler) Output(img *ethercat.ProcessImage, span ethercat.Span) error {
	for _, s := range c.slots {
		sub := ethercat.Span{Offset: span.Offset + s.Offset.Offset, Bits: s.Offset.Bits}
		if err := s.Device.Output(img, sub); err != nil {
			return err
		}
	}
	return nil
}

// Slots returns the coupler's plugged sub-modules in order.
func (c *BusCoupler) Slots() []SubModule { return c.slots }
