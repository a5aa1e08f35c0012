// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package rcswitch

import (
	"context"
	"errors"
	"sync"
	"time"
)

// fakeClock advances virtual time instead of waiting
type fakeClock struct {
	mu  sync.Mutex
	now time.Duration
}

func (c *fakeClock) Hold(d time.Duration) {
	c.mu.Lock()
	c.now += d
	c.mu.Unlock()
}

func (c *fakeClock) Now() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

type transition struct {
	high bool
	at   time.Duration
}

// recordingOutput records level changes against a fakeClock
type recordingOutput struct {
	clock       *fakeClock
	transitions []transition
	failAt      int // fail the nth SetLevel call (1-based), 0 never
	onSet       func(n int)
}

var errLineFault = errors.New("line fault")

func (o *recordingOutput) SetLevel(high bool) error {
	n := len(o.transitions) + 1
	if o.onSet != nil {
		o.onSet(n)
	}
	if o.failAt > 0 && n == o.failAt {
		return errLineFault
	}
	o.transitions = append(o.transitions, transition{high: high, at: o.clock.Now()})
	return nil
}

// pulses rebuilds the emitted pulses; the final low lasts until end
func (o *recordingOutput) pulses(end time.Duration) []Pulse {
	var out []Pulse
	for i := 0; i+1 < len(o.transitions); i += 2 {
		rise, fall := o.transitions[i], o.transitions[i+1]
		next := end
		if i+2 < len(o.transitions) {
			next = o.transitions[i+2].at
		}
		out = append(out, Pulse{
			High: uint32((fall.at - rise.at) / time.Microsecond),
			Low:  uint32((next - fall.at) / time.Microsecond),
		})
	}
	return out
}

// fakeEdgeSource delivers durations synchronously to the subscriber
type fakeEdgeSource struct {
	mu           sync.Mutex
	fn           func(uint32)
	subscribes   int
	unsubscribes int
	subscribeErr error
}

func (s *fakeEdgeSource) Subscribe(fn func(uint32)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.subscribeErr != nil {
		return s.subscribeErr
	}
	s.fn = fn
	s.subscribes++
	return nil
}

func (s *fakeEdgeSource) Unsubscribe() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fn = nil
	s.unsubscribes++
	return nil
}

func (s *fakeEdgeSource) subscribed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fn != nil
}

// emit delivers durations and returns how many reached a subscriber
func (s *fakeEdgeSource) emit(durations ...uint32) int {
	delivered := 0
	for _, d := range durations {
		s.mu.Lock()
		fn := s.fn
		s.mu.Unlock()
		if fn != nil {
			fn(d)
			delivered++
		}
	}
	return delivered
}

// fakeTrainOutput accepts whole pulse trains
type fakeTrainOutput struct {
	pulses []Pulse
	repeat int
	calls  int
	err    error
}

func (o *fakeTrainOutput) SetLevel(bool) error {
	return errors.New("train output driven by level")
}

func (o *fakeTrainOutput) EmitTrain(ctx context.Context, pulses []Pulse, repeat int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	o.calls++
	o.pulses = append([]Pulse(nil), pulses...)
	o.repeat = repeat
	return o.err
}
