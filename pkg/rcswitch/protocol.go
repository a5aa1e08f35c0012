// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package rcswitch implements the pulse-timed on/off-keyed codec used by
// 315/433 MHz remote switch receivers.
//
// Commands are encoded into tri-state codewords, modulated into timed
// pulses and driven onto an output line. Received edge durations are fed
// through a sync-detecting state machine and decoded against the known
// protocol timings with a tolerance window.
package rcswitch

import "fmt"

// Receive buffer and sync detection limits
const (
	MaxChanges      = 67   // Longest supported code plus sync
	SyncThreshold   = 5000 // µs, anything longer is a sync candidate
	SyncMatchWindow = 200  // µs, allowed drift between repeated syncs
)

// Defaults for the configuration surface
const (
	DefaultProtocol  = 1
	DefaultRepeat    = 10
	DefaultTolerance = 60 // percent
)

// Waveform is a high/low pair expressed in pulse units
type Waveform struct {
	High uint32
	Low  uint32
}

// ProtocolSpec describes the timing of one protocol variant
type ProtocolSpec struct {
	ID          uint8
	PulseLength uint32 // µs per pulse unit
	Sync        Waveform
	Zero        Waveform
	One         Waveform
}

var protocolTable = [...]ProtocolSpec{
	{ID: 1, PulseLength: 350, Sync: Waveform{1, 31}, Zero: Waveform{1, 3}, One: Waveform{3, 1}},
	{ID: 2, PulseLength: 650, Sync: Waveform{1, 10}, Zero: Waveform{1, 2}, One: Waveform{2, 1}},
}

// Protocols returns the built-in protocols in decode preference order
func Protocols() []ProtocolSpec {
	out := make([]ProtocolSpec, len(protocolTable))
	copy(out, protocolTable[:])
	return out
}

// LookupProtocol returns the built-in protocol with the given id
func LookupProtocol(id int) (ProtocolSpec, error) {
	for _, p := range protocolTable {
		if int(p.ID) == id {
			return p, nil
		}
	}
	return ProtocolSpec{}, fmt.Errorf("%w: %d", ErrUnknownProtocol, id)
}

// WithPulseLength returns a copy of p using the given pulse unit.
// A zero value keeps the protocol default.
func (p ProtocolSpec) WithPulseLength(us uint32) ProtocolSpec {
	if us > 0 {
		p.PulseLength = us
	}
	return p
}

// SyncWidth returns the nominal sync low duration in µs
func (p ProtocolSpec) SyncWidth() uint32 {
	return p.PulseLength * p.Sync.Low
}

// pulse converts a waveform to absolute durations
func (p ProtocolSpec) pulse(w Waveform) Pulse {
	return Pulse{High: p.PulseLength * w.High, Low: p.PulseLength * w.Low}
}

// String returns a short description of the protocol
func (p ProtocolSpec) String() string {
	return fmt.Sprintf("protocol %d (%dµs, sync %d/%d)", p.ID, p.PulseLength, p.Sync.High, p.Sync.Low)
}
