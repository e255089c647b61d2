// Copyright (c) 2025 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

// Package machine implements the per-machine cyclic composition of
// spec.md §4.10: draining mutations, reading sensors through terminal
// facades, stepping controllers in dependency order, writing
// actuators, accounting auto-actions, and publishing events.
package machine

import (
	"fmt"
	"hash/fnv"
	"log/slog"
	"time"

	"github.com/extrudeco/filacore/control"
	"github.com/extrudeco/filacore/ethercat"
	"github.com/extrudeco/filacore/faults"
	"github.com/extrudeco/filacore/inverter"
	"github.com/extrudeco/filacore/units"
)

// TemperatureZone bundles one heating zone's controller, watchdog, and
// the terminal facades it reads from and drives.
type TemperatureZone struct {
	Name       string
	Controller *control.TemperatureController
	Watchdog   *control.HeatingWatchdog
	ReadSensor func() (measured units.Temperature, wiringError bool)
	DriveSSR   func(on bool)

	target units.Temperature
}

// Config wires a Machine's controllers and terminal facades together.
// Any field may be left nil/zero if the machine does not have that
// subsystem (e.g. a machine with no traverse axis).
type Config struct {
	Ident ethercat.MachineIdentificationUnique

	Traverse            *control.Traverse
	ReadTraverseEndstop func() control.Endstop
	ReadTraversePos     func() units.Length
	DriveTraverse       func(speed units.Velocity)

	TensionArmSensor     *control.TensionArmSensor
	ReadTensionArmAngle  func() units.Angle
	ZeroTensionArmOffset func()

	Puller          *control.PullerSpeedController
	ReadPullerSpeed func() units.Velocity
	DrivePuller     func(speed units.Velocity)

	Spool       *control.SpoolSpeedController
	DriveSpool  func(omega units.AngularVelocity)

	PullerInverter *inverter.CS80Actor

	TemperatureZones []*TemperatureZone

	MaxConnectedMachines int
	Logger               *slog.Logger
}

// Machine is one cyclically-composed extrusion/winding unit.
type Machine struct {
	Ident ethercat.MachineIdentificationUnique
	log   *slog.Logger

	mode Mode

	inbox      chan Mutation
	crossInbox chan any

	traverse            *control.Traverse
	readTraverseEndstop func() control.Endstop
	readTraversePos     func() units.Length
	driveTraverse       func(units.Velocity)

	tensionSensor       *control.TensionArmSensor
	readTensionArmAngle func() units.Angle
	zeroTensionArm      func()
	tensionZeroed       bool

	puller          *control.PullerSpeedController
	readPullerSpeed func() units.Velocity
	drivePuller     func(units.Velocity)

	spool      *control.SpoolSpeedController
	driveSpool func(units.AngularVelocity)

	pullerInverter *inverter.CS80Actor

	heatingEnabled bool
	zones          []*TemperatureZone

	connections          []*MachineConnection
	maxConnectedMachines int

	autoAction       AutoAction
	autoTargetMeters units.Length
	autoMeters       units.Length

	faulted     bool
	faultReason string

	namespace    Namespace
	emittedFirst bool
}

// New builds a Machine from cfg, at rest in Standby.
func New(cfg Config) *Machine {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Machine{
		Ident:                cfg.Ident,
		log:                  cfg.Logger,
		inbox:                make(chan Mutation, 32),
		crossInbox:           make(chan any, 32),
		traverse:             cfg.Traverse,
		readTraverseEndstop:  cfg.ReadTraverseEndstop,
		readTraversePos:      cfg.ReadTraversePos,
		driveTraverse:        cfg.DriveTraverse,
		tensionSensor:        cfg.TensionArmSensor,
		readTensionArmAngle:  cfg.ReadTensionArmAngle,
		zeroTensionArm:       cfg.ZeroTensionArmOffset,
		puller:               cfg.Puller,
		readPullerSpeed:      cfg.ReadPullerSpeed,
		drivePuller:          cfg.DrivePuller,
		spool:                cfg.Spool,
		driveSpool:           cfg.DriveSpool,
		pullerInverter:       cfg.PullerInverter,
		zones:                cfg.TemperatureZones,
		maxConnectedMachines: cfg.MaxConnectedMachines,
	}
}

// Inbox returns the channel external transport threads deposit
// mutations into; it never blocks their thread (spec.md §5).
func (m *Machine) Inbox() chan<- Mutation { return m.inbox }

// Namespace returns the machine's copy-on-read event cache.
func (m *Machine) Namespace() *Namespace { return &m.namespace }

// Mode reports the machine's current operating mode.
func (m *Machine) Mode() Mode { return m.mode }

// Faulted reports whether a latched safety fault is blocking operation.
func (m *Machine) Faulted() bool { return m.faulted }

// AcknowledgeFault clears a latched safety fault.
func (m *Machine) AcknowledgeFault() {
	m.faulted = false
	m.faultReason = ""
	for _, z := range m.zones {
		z.Watchdog.Acknowledge()
	}
}

func (m *Machine) adoptReverseConnection(c *MachineConnection) {
	if m.maxConnectedMachines > 0 && len(m.connections) >= m.maxConnectedMachines {
		return
	}
	m.connections = append(m.connections, c)
}

// Act runs exactly one cycle: drain mutations, read sensors, step
// controllers in dependency order, write actuators, account
// auto-actions, and emit events, per spec.md §4.10.
func (m *Machine) Act(now time.Time, dt float64) {
	m.drainInbox()
	m.drainCrossMessages()

	measured := m.stepTemperatures(now, dt)
	pullerSpeed := m.stepPullerAndSpool(dt)
	m.stepTraverse(now)

	if m.pullerInverter != nil {
		if err := m.pullerInverter.Act(now); err != nil {
			m.log.Warn("inverter cycle fault", "machine", m.Ident,
				"err", &faults.ProtocolError{Actor: "puller", Err: err})
		}
	}

	m.applyAutoAction(dt, pullerSpeed)
	m.publishEvents(now, measured, pullerSpeed)
}

func (m *Machine) drainInbox() {
	for {
		select {
		case mut := <-m.inbox:
			m.applyMutation(mut)
		default:
			return
		}
	}
}

func (m *Machine) drainCrossMessages() {
	for {
		select {
		case <-m.crossInbox:
			// Cross-machine telemetry is consumed by higher-level logic
			// not modeled here; draining keeps the bounded channel from
			// filling and silently dropping future messages.
		default:
			return
		}
	}
}

func (m *Machine) applyMutation(mut Mutation) {
	switch mu := mut.(type) {
	case EmergencyStopMutation:
		m.emergencyStop()

	case SetModeMutation:
		m.transitionMode(mu.Mode)

	case ZeroTensionArmMutation:
		if m.zeroTensionArm != nil {
			m.zeroTensionArm()
		}
		m.tensionZeroed = true

	case SetHeatingTargetTemperatureMutation:
		for _, z := range m.zones {
			if z.Name == mu.Zone {
				z.target = mu.Target
			}
		}

	case SetHeatingEnabledMutation:
		m.heatingEnabled = mu.Enabled
		if !mu.Enabled {
			for _, z := range m.zones {
				z.Watchdog.Reset()
			}
		}

	case StartHeatingAutoTuneMutation:
		if !m.heatingEnabled {
			return // UserError: auto-tune on a disabled zone is rejected silently.
		}
		for _, z := range m.zones {
			if z.Name == mu.Zone {
				z.Controller.StartAutoTune(mu.Target)
			}
		}

	case SetPullerTargetSpeedMutation:
		if m.puller != nil {
			m.puller.SetTarget(mu.Speed)
		}

	case SetPullerForwardMutation:
		if m.puller != nil {
			m.puller.SetForward(mu.Forward)
		}

	case SetSpoolRegulationModeMutation:
		if m.spool != nil {
			m.spool.SetMode(mu.Mode)
		}

	case SetTraverseLimitInnerMutation:
		if m.traverse != nil {
			m.traverse.SetLimits(mu.Inner, m.traverse.CurrentOuter())
		}

	case SetTraverseLimitOuterMutation:
		if m.traverse != nil {
			m.traverse.SetLimits(m.traverse.CurrentInner(), mu.Outer)
		}

	case GotoTraverseHomeMutation:
		if m.traverse != nil {
			m.traverse.GotoHome()
		}

	case SetSpoolAutomaticActionMutation:
		m.autoAction = mu.Action
		m.autoTargetMeters = mu.TargetMeters
		m.autoMeters = 0

	case ResetSpoolProgressMutation:
		m.autoMeters = 0

	case SetConnectedMachineMutation:
		// Act takes no action on this mutation: it neither resolves the
		// target machine nor forwards a request to the Manager.
		// Connections are made by calling Manager.ConnectOneWay or
		// Manager.ConnectTwoWay directly.
		_ = mu
	}
}

func (m *Machine) emergencyStop() {
	m.mode = Standby
	if m.puller != nil {
		m.puller.SetTarget(0)
	}
	for _, z := range m.zones {
		z.target = 0
	}
	m.autoMeters = 0
}

// transitionMode validates and performs the Mode FSM transition of
// spec.md §4.10, rejecting illegal transitions silently (UserError).
func (m *Machine) transitionMode(target Mode) {
	if m.faulted {
		return
	}
	if target == Wind {
		homed := m.traverse == nil || m.traverse.Homed()
		if !homed || !m.tensionZeroed {
			return
		}
	}

	switch target {
	case Standby:
		if m.puller != nil {
			m.puller.SetTarget(0)
		}
		for _, z := range m.zones {
			z.Watchdog.Reset()
		}
	case Heat:
		m.heatingEnabled = true
	case Pull, Wind:
		m.autoMeters = 0
	}
	m.mode = target
}

func (m *Machine) stepTemperatures(now time.Time, dt float64) map[string]units.Temperature {
	measured := make(map[string]units.Temperature, len(m.zones))
	for _, z := range m.zones {
		meas, wiringErr := z.ReadSensor()
		measured[z.Name] = meas

		var duty float64
		switch {
		case z.Controller.AutoTuning():
			var completed bool
			duty, completed = z.Controller.StepAutoTune(meas, now)
			if completed {
				m.log.Info("auto-tune completed", "machine", m.Ident, "zone", z.Name)
			}
		case m.heatingEnabled:
			duty = z.Controller.Update(z.target, meas, wiringErr, dt)
		default:
			z.Controller.Update(z.target, meas, true, dt) // forces duty=0 while disabled
		}

		if wiringErr || (m.heatingEnabled && z.Controller.WiringError()) {
			m.latchSafetyFault(z.Name, "wiring_error")
		}
		if z.Watchdog.Observe(now, z.target, meas, duty > 0) {
			m.latchSafetyFault(z.Name, "heating_watchdog")
			m.mode = Standby
			m.heatingEnabled = false
		}

		if z.DriveSSR != nil {
			z.DriveSSR(z.Controller.SSROutput(time.Duration(now.UnixNano())))
		}
	}
	return measured
}

func (m *Machine) latchSafetyFault(zone, reason string) {
	m.faulted = true
	m.faultReason = fmt.Sprintf("%s:%s", zone, reason)
}

func (m *Machine) stepPullerAndSpool(dt float64) units.Velocity {
	var pullerSpeed units.Velocity
	if m.puller != nil {
		pullerSpeed = m.puller.Command()
		if m.drivePuller != nil {
			m.drivePuller(pullerSpeed)
		}
	}

	if m.spool != nil {
		var angle units.Angle
		if m.readTensionArmAngle != nil {
			angle = m.readTensionArmAngle()
		}
		var tension float64
		var outOfRange bool
		if m.tensionSensor != nil {
			tension, outOfRange = m.tensionSensor.Normalize(angle)
		}
		omega := m.spool.Update(pullerSpeed.Abs(), tension, outOfRange, dt)
		if m.driveSpool != nil {
			m.driveSpool(omega)
		}
	}

	return pullerSpeed
}

func (m *Machine) stepTraverse(now time.Time) {
	if m.traverse == nil {
		return
	}
	var endstop control.Endstop
	if m.readTraverseEndstop != nil {
		endstop = m.readTraverseEndstop()
	}
	var pos units.Length
	if m.readTraversePos != nil {
		pos = m.readTraversePos()
	}
	var spoolOmega units.AngularVelocity
	if m.spool != nil {
		spoolOmega = m.spool.Command()
	}
	speed := m.traverse.Update(now, pos, endstop, spoolOmega)
	if m.driveTraverse != nil {
		m.driveTraverse(speed)
	}
}

// applyAutoAction integrates puller distance while in Pull or Wind and
// fires the configured action once target_length is reached, per
// spec.md §4.10.
func (m *Machine) applyAutoAction(dt float64, pullerSpeed units.Velocity) {
	if m.autoAction == NoAction {
		return
	}
	if m.mode != Pull && m.mode != Wind {
		return
	}
	m.autoMeters += units.Length(float64(pullerSpeed.Abs()) * dt)
	if m.autoMeters < m.autoTargetMeters {
		return
	}
	m.autoMeters = 0
	switch m.autoAction {
	case AutoPull:
		m.transitionMode(Pull)
	case AutoHold:
		m.transitionMode(Standby)
	}
}

func (m *Machine) publishEvents(now time.Time, measured map[string]units.Temperature, pullerSpeed units.Velocity) {
	wattage := make(map[string]float64, len(m.zones))
	for _, z := range m.zones {
		wattage[z.Name] = z.Controller.Wattage()
	}

	var traversePos units.Length
	if m.traverse != nil {
		traversePos = m.traverse.Position()
	}
	var spoolOmega units.AngularVelocity
	if m.spool != nil {
		spoolOmega = m.spool.Command()
	}

	m.namespace.PublishLive(LiveValuesEvent{
		At:                now,
		TraversePosition:  traversePos,
		PullerSpeed:       pullerSpeed,
		SpoolAngularSpeed: spoolOmega,
		Temperatures:      measured,
		HeatingWattage:    wattage,
	})

	homed := m.traverse == nil || m.traverse.Homed()
	state := StateEvent{
		At:              now,
		Mode:            m.mode,
		CanWind:         homed && m.tensionZeroed && !m.faulted,
		CanGoIn:         homed && !m.faulted,
		CanGoOut:        homed && !m.faulted,
		CanGoHome:       !m.faulted,
		Faulted:         m.faulted,
		FaultReason:     m.faultReason,
		IsDefaultState:  !m.emittedFirst,
		AutoAction:      m.autoAction,
		AutoTargetMeter: m.autoTargetMeters,
	}
	if m.traverse != nil {
		state.TraverseInner = m.traverse.CurrentInner()
		state.TraverseOuter = m.traverse.CurrentOuter()
	}

	hash := stateHash(state)
	if m.namespace.PublishState(state, hash) {
		m.emittedFirst = true
	}
}

func stateHash(s StateEvent) uint64 {
	h := fnv.New64a()
	fmt.Fprintf(h, "%v|%v|%v|%v|%v|%v|%v|%v",
		s.Mode, s.CanWind, s.CanGoIn, s.CanGoOut, s.CanGoHome, s.Faulted, s.TraverseInner, s.TraverseOuter)
	return h.Sum64()
}
