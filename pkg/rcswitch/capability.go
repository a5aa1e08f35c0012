// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package rcswitch

import (
	"context"
	"time"
)

// Output drives the transmitter data line
type Output interface {
	SetLevel(high bool) error
}

// TrainOutput is implemented by outputs that time pulses themselves,
// such as a microcontroller bridge. The transmitter hands over one
// repetition and the repeat count instead of toggling levels.
type TrainOutput interface {
	EmitTrain(ctx context.Context, pulses []Pulse, repeat int) error
}

// EdgeSource delivers the durations between consecutive receiver edges,
// in µs, starting from a falling edge.
type EdgeSource interface {
	Subscribe(fn func(durationUs uint32)) error
	Unsubscribe() error
}

// Clock holds the line for a pulse duration
type Clock interface {
	Hold(d time.Duration)
}

// spinThreshold is the remainder a monotonicClock busy-waits instead of sleeping
const spinThreshold = 2 * time.Millisecond

// monotonicClock sleeps for the bulk of long holds and spins on the
// monotonic clock for the remainder.
type monotonicClock struct{}

// MonotonicClock returns the default pulse clock
func MonotonicClock() Clock { return monotonicClock{} }

func (monotonicClock) Hold(d time.Duration) {
	start := time.Now()
	if d > spinThreshold {
		time.Sleep(d - spinThreshold)
	}
	for time.Since(start) < d {
	}
}
