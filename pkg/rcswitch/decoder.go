// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package rcswitch

import "time"

// DecodedCode is a value recovered from a received pulse train
type DecodedCode struct {
	Value       uint64
	BitLength   uint32
	PulseLength uint32 // µs, derived from the measured sync width
	ProtocolID  uint8
	Timestamp   time.Time
}

// Bits returns the value as a BitString of BitLength bits
func (c DecodedCode) Bits() (BitString, error) {
	return NewBitString(c.Value, int(c.BitLength))
}

// Codeword returns the tri-state reading of the value
func (c DecodedCode) Codeword() (Codeword, error) {
	return BitsToCodeword(c.Value, int(c.BitLength))
}

// minChanges is the number of buffered durations a decode needs to exceed
const minChanges = 6

// DecodeTimings decodes timings against a single protocol.
//
// timings[0] holds the sync low width that opened the frame and
// timings[1:changeCount] the alternating high/low data durations.
// The pulse unit is back-derived from the sync width, so a transmitter
// running a few percent fast or slow still decodes. Durations match when
// they are within tolerance percent of the nominal width, bounds included.
func DecodeTimings(timings []uint32, changeCount int, p ProtocolSpec, tolerance int) (DecodedCode, error) {
	if changeCount <= minChanges || changeCount > len(timings) || p.Sync.Low == 0 {
		return DecodedCode{}, ErrNoMatch
	}

	delay := timings[0] / p.Sync.Low
	tol := delay * uint32(tolerance) / 100

	var code uint64
	for i := 1; i+1 < changeCount; i += 2 {
		high, low := timings[i], timings[i+1]
		code <<= 1
		switch {
		case within(high, delay*p.Zero.High, tol) && within(low, delay*p.Zero.Low, tol):
		case within(high, delay*p.One.High, tol) && within(low, delay*p.One.Low, tol):
			code |= 1
		default:
			return DecodedCode{}, ErrNoMatch
		}
	}
	if code == 0 {
		return DecodedCode{}, ErrNoMatch
	}

	return DecodedCode{
		Value:       code,
		BitLength:   uint32(changeCount / 2),
		PulseLength: delay,
		ProtocolID:  p.ID,
		Timestamp:   time.Now(),
	}, nil
}

// DecodeAny tries protocols in order and returns the first match
func DecodeAny(timings []uint32, changeCount int, protocols []ProtocolSpec, tolerance int) (DecodedCode, error) {
	for _, p := range protocols {
		if code, err := DecodeTimings(timings, changeCount, p, tolerance); err == nil {
			return code, nil
		}
	}
	return DecodedCode{}, ErrNoMatch
}

func within(d, nominal, tol uint32) bool {
	return d+tol >= nominal && d <= nominal+tol
}
