// Copyright (c) 2025 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package control

import (
	"testing"
	"time"

	"github.com/extrudeco/filacore/units"
)

func TestTemperatureControllerClampsDutyAndWattage(t *testing.T) {
	c := NewTemperatureController(TemperatureControllerConfig{
		Kp: 2, Ki: 0.1, Kd: 0, RatedWatts: 500, Efficiency: 0.9,
	})
	duty := c.Update(200, 20, false, 0.1)
	if duty != 1 {
		t.Fatalf("duty with huge error = %v, want saturated to 1", duty)
	}
	if w := c.Wattage(); w != 450 {
		t.Fatalf("wattage = %v, want 450", w)
	}
}

func TestTemperatureControllerSafetyShutoff(t *testing.T) {
	c := NewTemperatureController(TemperatureControllerConfig{
		Kp: 2, MaxTemperature: 250,
	})
	c.Update(200, 260, false, 0.1)
	if c.Duty() != 0 || c.Heating() || !c.WiringError() {
		t.Fatalf("over-temperature should force duty=0, heating=false, wiringError=true; got duty=%v heating=%v wiringError=%v",
			c.Duty(), c.Heating(), c.WiringError())
	}

	c2 := NewTemperatureController(TemperatureControllerConfig{Kp: 2})
	c2.Update(200, 100, true, 0.1)
	if c2.Duty() != 0 || !c2.WiringError() {
		t.Fatal("wiring error input should force duty=0 and latch wiringError")
	}
}

func TestTemperatureControllerSSRWindow(t *testing.T) {
	c := NewTemperatureController(TemperatureControllerConfig{Window: 500 * time.Millisecond})
	c.duty = 0.4
	if !c.SSROutput(0) {
		t.Fatal("expected SSR on at the start of the window")
	}
	if c.SSROutput(100 * time.Millisecond) == false {
		t.Fatal("expected SSR still on at 100ms of a 200ms on-time")
	}
	if c.SSROutput(300 * time.Millisecond) {
		t.Fatal("expected SSR off at 300ms of a 200ms on-time")
	}
}

// TestHeatingWatchdogFaultsOnStalledRise and its no-fault counterpart
// are the §8 concrete watchdog scenarios.
func TestHeatingWatchdogFaultsOnStalledRise(t *testing.T) {
	w := &HeatingWatchdog{}
	start := time.Now()

	w.Observe(start, 200, 25, true)
	faulted := w.Observe(start.Add(60*time.Second), 200, 28, true)
	if !faulted {
		t.Fatal("expected a fault when the rise stalls below the 5°C/60s threshold")
	}
	if !w.Faulted() {
		t.Fatal("expected Faulted() to report true after the fault")
	}
}

func TestHeatingWatchdogNoFaultOnNormalRise(t *testing.T) {
	w := &HeatingWatchdog{}
	start := time.Now()

	w.Observe(start, 200, 25, true)
	faulted := w.Observe(start.Add(60*time.Second), 200, 60, true)
	if faulted || w.Faulted() {
		t.Fatal("expected no fault when measured rose well past the threshold")
	}
}

func TestHeatingWatchdogResetClearsArming(t *testing.T) {
	w := &HeatingWatchdog{}
	start := time.Now()
	w.Observe(start, 200, 25, true)
	w.Reset()
	// After a reset the clock restarts: 60s later with a stalled rise
	// should not immediately fault because arming restarts now.
	faulted := w.Observe(start.Add(60*time.Second), 200, 26, true)
	if faulted {
		t.Fatal("expected watchdog reset to restart the tracking window")
	}
}

func TestAutoTuneConvergesAndAppliesGains(t *testing.T) {
	c := NewTemperatureController(TemperatureControllerConfig{})
	c.StartAutoTune(units.Temperature(100))

	now := time.Now()
	measured := units.Temperature(90)
	completed := false
	for i := 0; i < 2000 && !completed; i++ {
		now = now.Add(100 * time.Millisecond)
		duty, done := c.StepAutoTune(measured, now)
		if duty > 0 {
			measured += 0.05
		} else {
			measured -= 0.05
		}
		completed = done
	}
	if !completed {
		t.Fatal("expected auto-tune to complete within the simulated run")
	}
	if c.AutoTuneProgress() != 100 {
		t.Fatalf("progress after completion = %v, want 100", c.AutoTuneProgress())
	}
	if c.cfg.Kp <= 0 || c.cfg.Ki <= 0 || c.cfg.Kd <= 0 {
		t.Fatalf("expected positive Ziegler-Nichols gains, got Kp=%v Ki=%v Kd=%v", c.cfg.Kp, c.cfg.Ki, c.cfg.Kd)
	}
}
