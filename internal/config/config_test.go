// Copyright (c) 2025-2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, yaml string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func TestLoadConfigParsesMachinesAndDefaults(t *testing.T) {
	path := writeConfig(t, `
bus:
  serial:
    device: /dev/ttyUSB0
    baud_rate: 9600
machines:
  - name: extruder-1
    spool_regulation_mode: adaptive
    traverse_step_mm: 0.5
    temperature_zones:
      - name: barrel-1
        kp: 2
        ki: 0.1
        max_temperature: 300
    devices:
      - role: traverse_stepper
        vendor_id: 2
        product_id: 1
`)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if len(cfg.Machines) != 1 {
		t.Fatalf("len(Machines) = %d, want 1", len(cfg.Machines))
	}
	m := cfg.Machines[0]
	if m.Name != "extruder-1" {
		t.Errorf("Name = %q, want extruder-1", m.Name)
	}
	if m.SpoolRegulationMode != "adaptive" {
		t.Errorf("SpoolRegulationMode = %q, want adaptive", m.SpoolRegulationMode)
	}
	if m.TraverseStepSize != 0.0005 {
		t.Errorf("TraverseStepSize = %v, want 0.0005", m.TraverseStepSize)
	}
	if cfg.Bus.Serial.Device != "/dev/ttyUSB0" {
		t.Errorf("Serial.Device = %q, want /dev/ttyUSB0", cfg.Bus.Serial.Device)
	}
	if cfg.Log.Level != "info" {
		t.Errorf("Log.Level = %q, want default info", cfg.Log.Level)
	}
}

func TestLoadConfigRejectsMachineMissingName(t *testing.T) {
	path := writeConfig(t, `
machines:
  - spool_regulation_mode: adaptive
`)

	if _, err := LoadConfig(path); err == nil {
		t.Fatal("expected ConfigurationError for machine missing name, got nil")
	}
}

func TestLoadConfigRejectsZoneMissingMaxTemperature(t *testing.T) {
	path := writeConfig(t, `
machines:
  - name: extruder-1
    temperature_zones:
      - name: barrel-1
        kp: 1
`)

	if _, err := LoadConfig(path); err == nil {
		t.Fatal("expected ConfigurationError for zone missing max_temperature, got nil")
	}
}
