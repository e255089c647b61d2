// Copyright (c) 2025 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package terminals

import "github.com/extrudeco/filacore/ethercat"

// PulseTrainMode selects the terminal's CoE operating mode.
type PulseTrainMode int

const (
	FrequencyModulation PulseTrainMode = iota
	PulseDirection
	PWM
)

// PulseTrainConfig carries the CoE-configured base frequencies and ramp
// time constants for both channels.
type PulseTrainConfig struct {
	BaseFrequencyHz [2]uint32
	RampTimeMs      [2]uint32
	Mode            [2]PulseTrainMode
}

type pulseTrainChannel struct {
	targetFrequency int32
	targetCounter   int32
	encoderCounter  int32
	overflow        bool
	underflow       bool
}

// PulseTrain is an EL2521-style two-channel pulse-train output terminal.
type PulseTrain struct {
	ethercat.BaseDevice
	identities []ethercat.SubDeviceIdentityTuple
	cfg        PulseTrainConfig
	channels   [2]pulseTrainChannel
}

// NewPulseTrain builds a pulse-train terminal.
func NewPulseTrain(identities []ethercat.SubDeviceIdentityTuple) *PulseTrain {
	return &PulseTrain{identities: identities}
}

func (p *PulseTrain) Identities() []ethercat.SubDeviceIdentityTuple { return p.identities }

func (p *PulseTrain) WriteConfig(cfg ethercat.Configuration) error {
	if v, ok := cfg["pulsetrain"]; ok {
		p.cfg = v.(PulseTrainConfig)
	}
	return nil
}

// Layout per channel: target_frequency(i32) + target_counter(i32) for
// output; encoder_counter(i32) + status byte (bit0 overflow, bit1
// underflow) for input.
func (p *PulseTrain) OutputLen() int { return 2 * (32 + 32) }
func (p *PulseTrain) InputLen() int  { return 2 * (32 + 8) }

func (p *PulseTrain) Output(img *ethercat.ProcessImage, span ethercat.Span) error {
	const chanBits = 64
	for ch := 0; ch < 2; ch++ {
		base := span.Offset + ch*chanBits
		img.SetInt32(base, p.channels[ch].targetFrequency)
		img.SetInt32(base+32, p.channels[ch].targetCounter)
	}
	return nil
}

func (p *PulseTrain) Input(img *ethercat.ProcessImage, span ethercat.Span) error {
	const chanBits = 40
	for ch := 0; ch < 2; ch++ {
		base := span.Offset + ch*chanBits
		p.channels[ch].encoderCounter = img.Int32(base)
		p.channels[ch].overflow = img.Bit(base + 32)
		p.channels[ch].underflow = img.Bit(base + 33)
	}
	return nil
}

// SetTargetFrequency commands channel ch's frequency in hertz (signed: sign gives direction).
func (p *PulseTrain) SetTargetFrequency(ch int, hz int32) { p.channels[ch].targetFrequency = hz }

// SetTargetCounter commands channel ch's absolute target pulse count.
func (p *PulseTrain) SetTargetCounter(ch int, count int32) { p.channels[ch].targetCounter = count }

// EncoderCounter reports channel ch's latched pulse counter.
func (p *PulseTrain) EncoderCounter(ch int) int32 { return p.channels[ch].encoderCounter }

// Overflow/Underflow report channel ch's encoder status bits.
func (p *PulseTrain) Overflow(ch int) bool  { return p.channels[ch].overflow }
func (p *PulseTrain) Underflow(ch int) bool { return p.channels[ch].underflow }
