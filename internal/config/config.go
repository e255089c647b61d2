// Copyright (c) 2025-2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

// Package config loads the bus topology and per-machine operator
// configuration from a single structured text file, per spec.md §6
// "Configuration input": a flat key-value record per machine, unknown
// keys ignored, missing required keys fail machine construction.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/extrudeco/filacore/faults"
	"github.com/extrudeco/filacore/units"
)

// Config is the top-level bus topology plus the per-machine records
// layered on the same viper instance (one sub-tree per machine name).
type Config struct {
	Log      LogConfig       `mapstructure:"log"`
	Bus      BusConfig       `mapstructure:"bus"`
	Machines []MachineConfig `mapstructure:"machines"`
}

// LogConfig mirrors the teacher's logging configuration.
type LogConfig struct {
	Level string `mapstructure:"level"` // debug, info, warn, error
	File  string `mapstructure:"file"`  // empty means stdout
}

// BusConfig carries the EtherCAT cycle timing and the physical serial
// port settings shared by every machine's serial-interface terminal
// and Modbus actor (spec.md §4.2, §4.4).
type BusConfig struct {
	CycleTime time.Duration `mapstructure:"cycle_time"`
	Serial    SerialConfig  `mapstructure:"serial"`
	// DiagSnapshotPath names a file for the diagnostic process-image
	// mmap of ethercat/diag.go. LoadConfig only loads the value; no code
	// in this repository opens a snapshot from it.
	DiagSnapshotPath string `mapstructure:"diag_snapshot_path"`
}

// SerialConfig configures the physical RS485/RS232 port, matching the
// teacher's rtu SerialConfig fields.
type SerialConfig struct {
	Device   string        `mapstructure:"device"`
	BaudRate int           `mapstructure:"baud_rate"`
	DataBits int           `mapstructure:"data_bits"`
	Parity   string        `mapstructure:"parity"`
	StopBits int           `mapstructure:"stop_bits"`
	Timeout  time.Duration `mapstructure:"timeout"`

	RS485              bool          `mapstructure:"rs485"`
	DelayRtsBeforeSend time.Duration `mapstructure:"delay_rts_before_send"`
	DelayRtsAfterSend  time.Duration `mapstructure:"delay_rts_after_send"`
	RtsHighDuringSend  bool          `mapstructure:"rts_high_during_send"`
	RtsHighAfterSend   bool          `mapstructure:"rts_high_after_send"`
	RxDuringTx         bool          `mapstructure:"rx_during_tx"`
}

// DeviceIdentity names one pre-enumerated EtherCAT terminal by its CoE
// identity tuple and the role a machine borrows it by (spec.md §9
// "Device polymorphism").
type DeviceIdentity struct {
	Role       string `mapstructure:"role"`
	VendorID   uint32 `mapstructure:"vendor_id"`
	ProductID  uint32 `mapstructure:"product_id"`
	Revision   uint32 `mapstructure:"revision"`
	SubDevice  int    `mapstructure:"subdevice"`
}

// TemperatureZoneConfig configures one heating zone's PID gains and
// safety limits (spec.md §4.7).
type TemperatureZoneConfig struct {
	Name           string  `mapstructure:"name"`
	Kp             float64 `mapstructure:"kp"`
	Ki             float64 `mapstructure:"ki"`
	Kd             float64 `mapstructure:"kd"`
	MaxTemperature float64 `mapstructure:"max_temperature"`
	Wattage        float64 `mapstructure:"wattage"`
}

// MachineConfig is the per-machine operator record of spec.md §6.
type MachineConfig struct {
	Name string `mapstructure:"name"`

	Devices []DeviceIdentity `mapstructure:"devices"`

	TraverseStepSize units.Length `mapstructure:"-"`
	TraverseStepMM   float64      `mapstructure:"traverse_step_mm"`

	TemperatureZones []TemperatureZoneConfig `mapstructure:"temperature_zones"`

	SpoolRegulationMode string `mapstructure:"spool_regulation_mode"` // "min_max" | "adaptive"

	InverterSlaveID int `mapstructure:"inverter_slave_id"`

	MaxConnectedMachines int `mapstructure:"max_connected_machines"`
}

// LoadConfig reads configFile (or the default search path if empty)
// and returns the validated bus + machine configuration.
func LoadConfig(configFile string) (*Config, error) {
	v := viper.New()

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("/etc/filacore/")
		v.AddConfigPath("$HOME/.filacore")
		v.AddConfigPath(".")
	}

	v.SetDefault("log.level", "info")
	v.SetDefault("bus.cycle_time", 10*time.Millisecond)
	v.SetDefault("bus.serial.timeout", 500*time.Millisecond)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil, fmt.Errorf("failed to find config file: %w", err)
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.Bus.Serial.Parity = strings.ToUpper(cfg.Bus.Serial.Parity)

	for i := range cfg.Machines {
		m := &cfg.Machines[i]
		if m.Name == "" {
			return nil, &faults.ConfigurationError{Machine: fmt.Sprintf("machines[%d]", i), Reason: "missing required key: name"}
		}
		if m.SpoolRegulationMode == "" {
			m.SpoolRegulationMode = "min_max"
		}
		m.TraverseStepSize = units.Length(m.TraverseStepMM / 1000)
		for _, z := range m.TemperatureZones {
			if z.Name == "" {
				return nil, &faults.ConfigurationError{Machine: m.Name, Reason: "temperature zone missing required key: name"}
			}
			if z.MaxTemperature <= 0 {
				return nil, &faults.ConfigurationError{Machine: m.Name, Reason: fmt.Sprintf("zone %s: missing required key: max_temperature", z.Name)}
			}
		}
		for _, d := range m.Devices {
			if d.Role == "" {
				return nil, &faults.ConfigurationError{Machine: m.Name, Reason: "device entry missing required key: role"}
			}
		}
	}

	return &cfg, nil
}
