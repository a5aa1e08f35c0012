// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package gpioline

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/davecheney/gpio"
)

type fakePin struct {
	levels   []bool
	input    bool // level seen by Get
	err      error
	watchErr error
	callback gpio.IRQEvent
	ended    int
	closed   bool
}

func (p *fakePin) Set()       { p.levels = append(p.levels, true) }
func (p *fakePin) Clear()     { p.levels = append(p.levels, false) }
func (p *fakePin) Get() bool  { return p.input }
func (p *fakePin) Err() error { return p.err }

// drive changes the input level and fires cb the way the watch does
func (p *fakePin) drive(cb gpio.IRQEvent, high bool) {
	p.input = high
	cb()
}

func (p *fakePin) BeginWatch(edge gpio.Edge, callback gpio.IRQEvent) error {
	if p.watchErr != nil {
		return p.watchErr
	}
	if edge != gpio.EdgeBoth {
		return errors.New("unexpected edge")
	}
	p.callback = callback
	return nil
}

func (p *fakePin) EndWatch() error {
	p.ended++
	p.callback = nil
	return nil
}

func (p *fakePin) Close() error {
	p.closed = true
	return nil
}

// steppedClock advances by the next step on every reading
type steppedClock struct {
	t     time.Time
	steps []time.Duration
}

func (c *steppedClock) now() time.Time {
	if len(c.steps) > 0 {
		c.t = c.t.Add(c.steps[0])
		c.steps = c.steps[1:]
	}
	return c.t
}

func TestOutputSetLevel(t *testing.T) {
	p := &fakePin{}
	o := &Output{pin: p}

	for _, high := range []bool{true, false, true} {
		if err := o.SetLevel(high); err != nil {
			t.Fatalf("SetLevel(%v) failed: %v", high, err)
		}
	}
	if len(p.levels) != 3 || !p.levels[0] || p.levels[1] || !p.levels[2] {
		t.Errorf("levels = %v", p.levels)
	}

	p.err = errors.New("write /sys/class/gpio/gpio17/value: device busy")
	if err := o.SetLevel(true); err == nil {
		t.Error("SetLevel() ignored a pin error")
	}

	p.err = nil
	o.Close()
	if !p.closed || p.levels[len(p.levels)-1] {
		t.Error("Close() did not leave the line low and release the pin")
	}
}

func TestEdgeTimer(t *testing.T) {
	clock := &steppedClock{
		t:     time.Unix(0, 0),
		steps: []time.Duration{0, 0, 350 * time.Microsecond, 1050 * time.Microsecond},
	}
	timer := edgeTimer{now: clock.now}

	// A rising edge before any falling edge is ignored
	if _, ok := timer.edge(true); ok {
		t.Fatal("rising edge started timing")
	}
	if _, ok := timer.edge(false); ok {
		t.Fatal("first falling edge produced a duration")
	}
	if d, ok := timer.edge(true); !ok || d != 350 {
		t.Errorf("edge() = %d, %v, want 350", d, ok)
	}
	if d, ok := timer.edge(false); !ok || d != 1050 {
		t.Errorf("edge() = %d, %v, want 1050", d, ok)
	}

	timer.reset()
	if _, ok := timer.edge(true); ok {
		t.Error("edge after reset produced a duration")
	}
}

func TestEdgeTimerClampsLongGaps(t *testing.T) {
	clock := &steppedClock{t: time.Unix(0, 0), steps: []time.Duration{0, 2 * time.Hour}}
	timer := edgeTimer{now: clock.now}

	timer.edge(false)
	if d, ok := timer.edge(true); !ok || d != math.MaxUint32 {
		t.Errorf("edge() = %d, %v, want MaxUint32", d, ok)
	}
}

func TestInputSubscribe(t *testing.T) {
	p := &fakePin{}
	in := newInput(p)
	clock := &steppedClock{t: time.Unix(0, 0), steps: []time.Duration{0, 0, 350 * time.Microsecond, 10850 * time.Microsecond}}
	in.timer.now = clock.now

	var got []uint32
	if err := in.Subscribe(func(d uint32) { got = append(got, d) }); err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}
	cb := p.callback
	// Timing starts at the first falling level read from the pin
	p.drive(cb, true)
	p.drive(cb, false)
	p.drive(cb, true)
	p.drive(cb, false)
	if len(got) != 2 || got[0] != 350 || got[1] != 10850 {
		t.Errorf("durations = %v", got)
	}

	if err := in.Unsubscribe(); err != nil {
		t.Fatalf("Unsubscribe failed: %v", err)
	}
	// A callback already in flight when the watch ended delivers nothing
	p.drive(cb, true)
	if len(got) != 2 || p.ended != 1 {
		t.Errorf("edge delivered after Unsubscribe: %v", got)
	}
}

func TestInputSubscribeFailure(t *testing.T) {
	p := &fakePin{watchErr: errors.New("edge not supported")}
	in := newInput(p)

	if err := in.Subscribe(func(uint32) {}); err == nil {
		t.Fatal("Subscribe() succeeded")
	}
	if in.fn != nil {
		t.Error("handler kept after a failed Subscribe")
	}
}
