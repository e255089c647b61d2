// Copyright (c) 2025 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package control

import (
	"math"
	"time"

	"github.com/extrudeco/filacore/units"
)

// TemperatureControllerConfig carries the PID gains and physical
// parameters of one heating zone, per spec.md §4.7.
type TemperatureControllerConfig struct {
	Kp, Ki, Kd     float64
	IntegralMin    float64
	IntegralMax    float64
	Window         time.Duration
	RatedWatts     float64
	Efficiency     float64
	MaxTemperature units.Temperature
}

// TemperatureController is a discrete PID with anti-windup driving an
// SSR through a fixed-window PWM duty cycle.
type TemperatureController struct {
	cfg TemperatureControllerConfig

	integral  float64
	lastError float64
	duty      float64
	heating   bool
	wiring    bool

	autotune *autoTune
}

// NewTemperatureController builds a controller; a zero Window defaults
// to 500ms and a zero Efficiency defaults to 1.0.
func NewTemperatureController(cfg TemperatureControllerConfig) *TemperatureController {
	if cfg.Window == 0 {
		cfg.Window = 500 * time.Millisecond
	}
	if cfg.Efficiency == 0 {
		cfg.Efficiency = 1.0
	}
	if cfg.IntegralMin == 0 && cfg.IntegralMax == 0 {
		cfg.IntegralMax = 100
		cfg.IntegralMin = -100
	}
	return &TemperatureController{cfg: cfg}
}

// Duty reports the last computed PWM duty in [0,1].
func (c *TemperatureController) Duty() float64 { return c.duty }

// Heating reports whether the element is currently commanded on.
func (c *TemperatureController) Heating() bool { return c.heating }

// WiringError reports whether the last update saw an over-temperature
// or sensor wiring fault; while true the heating permit is ignored.
func (c *TemperatureController) WiringError() bool { return c.wiring }

// Wattage returns the estimated instantaneous power draw of the element.
func (c *TemperatureController) Wattage() float64 {
	return c.duty * c.cfg.RatedWatts * c.cfg.Efficiency
}

// Update runs one PID cycle. If measured exceeds MaxTemperature or the
// input reports a wiring fault, duty is forced to zero and the fault
// latches until the next call without either condition.
func (c *TemperatureController) Update(target, measured units.Temperature, inputWiringError bool, dt float64) float64 {
	if inputWiringError || (c.cfg.MaxTemperature != 0 && measured > c.cfg.MaxTemperature) {
		c.duty = 0
		c.heating = false
		c.wiring = true
		return 0
	}
	c.wiring = false

	if dt <= 0 {
		return c.duty
	}

	errVal := float64(target - measured)
	c.integral += errVal * dt
	if c.integral > c.cfg.IntegralMax {
		c.integral = c.cfg.IntegralMax
	}
	if c.integral < c.cfg.IntegralMin {
		c.integral = c.cfg.IntegralMin
	}
	derivative := (errVal - c.lastError) / dt
	c.lastError = errVal

	u := c.cfg.Kp*errVal + c.cfg.Ki*c.integral + c.cfg.Kd*derivative
	c.duty = math.Max(0, math.Min(1, u))
	c.heating = c.duty > 0
	return c.duty
}

// SSROutput reports whether the SSR should be driven on, given elapsed
// time t since the start of the current PWM window.
func (c *TemperatureController) SSROutput(t time.Duration) bool {
	onTime := time.Duration(c.duty * float64(c.cfg.Window))
	return t%c.cfg.Window < onTime
}

// StartAutoTune begins a relay (Ziegler-Nichols) auto-tune around target.
func (c *TemperatureController) StartAutoTune(target units.Temperature) {
	c.autotune = newAutoTune(target)
}

// AutoTuning reports whether a tune is in progress.
func (c *TemperatureController) AutoTuning() bool { return c.autotune != nil && !c.autotune.done }

// AutoTuneProgress reports 0..100.
func (c *TemperatureController) AutoTuneProgress() int {
	if c.autotune == nil {
		return 0
	}
	return c.autotune.progress
}

// StepAutoTune runs one relay-test cycle using measured, overriding the
// normal PID output; once enough oscillation cycles are observed it
// applies the computed gains to the controller and returns true exactly
// once, on the cycle that completes the tune.
func (c *TemperatureController) StepAutoTune(measured units.Temperature, now time.Time) (duty float64, justCompleted bool) {
	if c.autotune == nil || c.autotune.done {
		return c.duty, false
	}
	duty, completed := c.autotune.step(measured, now)
	c.duty = duty
	c.heating = duty > 0
	if completed {
		c.cfg.Kp, c.cfg.Ki, c.cfg.Kd = c.autotune.kp, c.autotune.ki, c.autotune.kd
		c.autotune.done = true
		c.autotune.progress = 100
		return duty, true
	}
	return duty, false
}

// autoTune implements the relay auto-tune described in spec.md §4.7: a
// duty=0/1 square wave is driven around target, the steady-state
// oscillation amplitude A and period P are measured over a few cycles,
// and Ziegler-Nichols gains are derived from the ultimate gain
// Ku = 4/(π·A).
type autoTune struct {
	target   units.Temperature
	relayOn  bool
	lastFlip time.Time
	flips    []time.Time
	peaks    []float64
	curPeak  float64
	progress int
	done     bool

	kp, ki, kd float64
}

const autoTuneCyclesNeeded = 3

func newAutoTune(target units.Temperature) *autoTune {
	return &autoTune{target: target, relayOn: true}
}

func (a *autoTune) step(measured units.Temperature, now time.Time) (duty float64, completed bool) {
	m := float64(measured)
	if a.relayOn && m > a.curPeak {
		a.curPeak = m
	}
	if !a.relayOn && (a.curPeak == 0 || m < a.curPeak) {
		a.curPeak = m
	}

	crossedUp := m >= float64(a.target) && a.relayOn
	crossedDown := m < float64(a.target) && !a.relayOn

	if crossedUp {
		a.relayOn = false
		a.recordFlip(now)
		a.peaks = append(a.peaks, a.curPeak)
		a.curPeak = m
	} else if crossedDown {
		a.relayOn = true
		a.recordFlip(now)
		a.peaks = append(a.peaks, a.curPeak)
		a.curPeak = m
	}

	cycles := len(a.flips) / 2
	a.progress = (cycles * 100) / autoTuneCyclesNeeded
	if a.progress > 99 {
		a.progress = 99
	}

	if cycles >= autoTuneCyclesNeeded {
		a.finish()
		return dutyFor(a.relayOn), true
	}
	return dutyFor(a.relayOn), false
}

func dutyFor(on bool) float64 {
	if on {
		return 1
	}
	return 0
}

func (a *autoTune) recordFlip(now time.Time) {
	a.flips = append(a.flips, now)
	a.lastFlip = now
}

func (a *autoTune) finish() {
	amplitude := averageAmplitude(a.peaks)
	period := averagePeriod(a.flips)
	if amplitude <= 0 || period <= 0 {
		return
	}
	ku := 4 / (math.Pi * amplitude)
	a.kp = 0.6 * ku
	a.ki = 2 * a.kp / period
	a.kd = a.kp * period / 8
}

func averageAmplitude(peaks []float64) float64 {
	if len(peaks) < 2 {
		return 0
	}
	sum := 0.0
	n := 0
	for i := 1; i < len(peaks); i++ {
		sum += math.Abs(peaks[i] - peaks[i-1])
		n++
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n) / 2
}

func averagePeriod(flips []time.Time) float64 {
	if len(flips) < 3 {
		return 0
	}
	// A full relay period spans two flips (on->off->on).
	total := flips[len(flips)-1].Sub(flips[len(flips)-3]).Seconds()
	return total
}
