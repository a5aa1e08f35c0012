// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package rcswitch

import (
	"fmt"
	"time"
)

// Pulse is a high period followed by a low period, in µs
type Pulse struct {
	High uint32
	Low  uint32
}

// HighDuration returns the high period
func (p Pulse) HighDuration() time.Duration { return time.Duration(p.High) * time.Microsecond }

// LowDuration returns the low period
func (p Pulse) LowDuration() time.Duration { return time.Duration(p.Low) * time.Microsecond }

// ModulateCodeword returns one repetition of cw, sync included.
// A Float symbol is a zero pulse followed by a one pulse.
func ModulateCodeword(cw Codeword, p ProtocolSpec) ([]Pulse, error) {
	pulses := make([]Pulse, 0, 2*len(cw)+1)
	for i, s := range cw {
		switch s {
		case Zero:
			pulses = append(pulses, p.pulse(p.Zero))
		case One:
			pulses = append(pulses, p.pulse(p.One))
		case Float:
			pulses = append(pulses, p.pulse(p.Zero), p.pulse(p.One))
		default:
			return nil, fmt.Errorf("invalid symbol %q at position %d", s, i)
		}
	}
	return append(pulses, p.pulse(p.Sync)), nil
}

// ModulateBits returns one repetition of b, sync included
func ModulateBits(b BitString, p ProtocolSpec) []Pulse {
	pulses := make([]Pulse, 0, b.Len()+1)
	for i := 0; i < b.Len(); i++ {
		if b.Bit(i) {
			pulses = append(pulses, p.pulse(p.One))
		} else {
			pulses = append(pulses, p.pulse(p.Zero))
		}
	}
	return append(pulses, p.pulse(p.Sync))
}

// Durations flattens pulses into the edge durations a receiver measures
func Durations(pulses []Pulse) []uint32 {
	out := make([]uint32, 0, 2*len(pulses))
	for _, p := range pulses {
		out = append(out, p.High, p.Low)
	}
	return out
}

// TrainDuration returns the air time of pulses repeated repeat times
func TrainDuration(pulses []Pulse, repeat int) time.Duration {
	var total time.Duration
	for _, p := range pulses {
		total += p.HighDuration() + p.LowDuration()
	}
	return total * time.Duration(repeat)
}
