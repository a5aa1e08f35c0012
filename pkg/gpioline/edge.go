// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package gpioline

import (
	"math"
	"time"
)

// edgeTimer turns edge timestamps into durations between consecutive edges.
// Timing starts at the first falling edge.
type edgeTimer struct {
	now     func() time.Time
	last    time.Time
	started bool
}

func newEdgeTimer() edgeTimer {
	return edgeTimer{now: time.Now}
}

func (t *edgeTimer) reset() {
	t.started = false
}

// edge records an edge that left the line at level high and returns the
// time since the previous edge in µs
func (t *edgeTimer) edge(high bool) (uint32, bool) {
	now := t.now()
	if !t.started {
		if high {
			return 0, false
		}
		t.started = true
		t.last = now
		return 0, false
	}

	d := now.Sub(t.last)
	t.last = now
	if d < 0 {
		return 0, false
	}
	us := d.Microseconds()
	if us > math.MaxUint32 {
		us = math.MaxUint32
	}
	return uint32(us), true
}
