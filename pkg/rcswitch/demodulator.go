// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package rcswitch

// DemodState is the receive state machine state
type DemodState int

const (
	StateIdle          DemodState = iota // no sync seen yet
	StateAccumulating                    // collecting data durations
	StateSyncCandidate                   // long low seen, waiting for a repeat
	StateSyncConfirmed                   // repeated sync, decode attempted
)

func (s DemodState) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateAccumulating:
		return "ACCUMULATING"
	case StateSyncCandidate:
		return "SYNC_CANDIDATE"
	case StateSyncConfirmed:
		return "SYNC_CONFIRMED"
	}
	return "UNKNOWN"
}

// Demodulator turns a stream of edge durations into decoded codes.
// It is not safe for concurrent use; feed it from a single goroutine.
type Demodulator struct {
	timings     [MaxChanges]uint32
	changeCount int
	repeatCount int
	state       DemodState

	protocols []ProtocolSpec
	tolerance int
	stats     *Statistics
}

// NewDemodulator creates a demodulator decoding against protocols, in order.
// An empty protocol list selects every built-in protocol. A tolerance of
// zero or less selects DefaultTolerance.
func NewDemodulator(protocols []ProtocolSpec, tolerance int) *Demodulator {
	if len(protocols) == 0 {
		protocols = Protocols()
	}
	if tolerance <= 0 {
		tolerance = DefaultTolerance
	}
	return &Demodulator{
		protocols: protocols,
		tolerance: tolerance,
		stats:     NewStatistics(),
	}
}

// Reset drops all buffered durations
func (d *Demodulator) Reset() {
	d.timings = [MaxChanges]uint32{}
	d.changeCount = 0
	d.repeatCount = 0
	d.state = StateIdle
}

// State returns the current state
func (d *Demodulator) State() DemodState { return d.state }

// ChangeCount returns the number of buffered durations
func (d *Demodulator) ChangeCount() int { return d.changeCount }

// RepeatCount returns the number of consecutive matching syncs
func (d *Demodulator) RepeatCount() int { return d.repeatCount }

// Statistics returns the demodulator counters
func (d *Demodulator) Statistics() *Statistics { return d.stats }

// Feed processes one edge duration in µs. It returns a code when the
// duration completes the second repeated sync of a valid frame.
func (d *Demodulator) Feed(duration uint32) (DecodedCode, bool) {
	var (
		code DecodedCode
		ok   bool
	)
	d.stats.Edges++

	switch {
	case duration > SyncThreshold && matchesSync(duration, d.timings[0]):
		// The sync high pulse was buffered as data, drop it
		d.repeatCount++
		d.changeCount--
		d.stats.SyncRepeats++
		d.state = StateSyncCandidate
		if d.repeatCount == 2 {
			code, ok = d.decode()
			d.repeatCount = 0
			d.state = StateSyncConfirmed
		}
		d.changeCount = 0

	case duration > SyncThreshold:
		// First sighting of this sync width, start over
		d.changeCount = 0
		d.repeatCount = 0
		d.stats.SyncCandidates++
		d.state = StateSyncCandidate

	default:
		if d.state != StateIdle {
			d.state = StateAccumulating
		}
	}

	if d.changeCount >= MaxChanges {
		d.changeCount = 0
		d.repeatCount = 0
		d.state = StateIdle
		d.stats.Overflows++
	}
	d.timings[d.changeCount] = duration
	d.changeCount++

	return code, ok
}

func (d *Demodulator) decode() (DecodedCode, bool) {
	d.stats.DecodeAttempts++
	code, err := DecodeAny(d.timings[:], d.changeCount, d.protocols, d.tolerance)
	if err != nil {
		d.stats.NoMatch++
		return DecodedCode{}, false
	}
	d.stats.Decoded++
	return code, true
}

// matchesSync reports whether d is within SyncMatchWindow of the previous sync
func matchesSync(d, prev uint32) bool {
	diff := int64(d) - int64(prev)
	return diff > -SyncMatchWindow && diff < SyncMatchWindow
}
