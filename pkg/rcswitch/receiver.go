// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package rcswitch

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"
)

// DefaultQueueSize is the receive event queue capacity
const DefaultQueueSize = 1024

// edgeEvent is one queued duration. gap marks the first edge after lost or
// suppressed edges; the frame in progress is discarded before it.
type edgeEvent struct {
	d   uint32
	gap bool
}

// Receiver decodes codes from an edge source.
//
// Edge callbacks only enqueue durations; a single goroutine owns the
// demodulator and processes them in arrival order. The most recent code is
// kept in a single slot that TakeDecoded empties.
type Receiver struct {
	line      *Line
	tolerance int
	queue     int
	log       zerolog.Logger

	mu      sync.Mutex // guards running, stop, done
	running bool
	stop    chan struct{}
	done    chan struct{}

	gap     atomic.Bool // set until an edge carrying the gap is queued
	dropped atomic.Uint64

	statsMu sync.Mutex // guards demod
	demod   *Demodulator

	latest atomic.Pointer[DecodedCode]
	notify chan struct{}
}

// NewReceiver creates a receiver on line
func NewReceiver(line *Line, opts ...Option) *Receiver {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return &Receiver{
		line:      line,
		tolerance: o.tolerance,
		queue:     o.queue,
		log:       o.log,
		notify:    make(chan struct{}, 1),
	}
}

// EnableReceive starts decoding against protocols, in order.
// No protocols selects every built-in protocol.
func (r *Receiver) EnableReceive(protocols ...ProtocolSpec) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.running {
		return ErrReceiveActive
	}

	demod := NewDemodulator(protocols, r.tolerance)
	r.statsMu.Lock()
	r.demod = demod
	r.statsMu.Unlock()
	r.latest.Store(nil)
	r.gap.Store(false)
	r.dropped.Store(0)

	events := make(chan edgeEvent, r.queue)
	stop := make(chan struct{})
	done := make(chan struct{})
	go r.run(demod, events, stop, done)

	handler := func(d uint32) {
		ev := edgeEvent{d: d, gap: r.gap.Load()}
		select {
		case events <- ev:
			if ev.gap {
				r.gap.Store(false)
			}
		default:
			r.gap.Store(true)
			r.dropped.Add(1)
		}
	}
	// Edges missed while a transmission held the line break the frame too
	resumed := func() { r.gap.Store(true) }
	if err := r.line.Attach(handler, resumed); err != nil {
		close(stop)
		<-done
		return err
	}

	r.stop, r.done = stop, done
	r.running = true
	r.log.Debug().Int("protocols", len(demod.protocols)).Int("tolerance", r.tolerance).Msg("receive enabled")
	return nil
}

// DisableReceive stops decoding. Edges already queued are still processed
// and the latest code stays available.
func (r *Receiver) DisableReceive() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.running {
		return nil
	}
	err := r.line.Detach()
	close(r.stop)
	<-r.done
	r.running = false
	r.log.Debug().Msg("receive disabled")
	return err
}

// Enabled reports whether the receiver is running
func (r *Receiver) Enabled() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.running
}

// TakeDecoded returns and clears the latest decoded code
func (r *Receiver) TakeDecoded() (DecodedCode, bool) {
	c := r.latest.Swap(nil)
	if c == nil {
		return DecodedCode{}, false
	}
	return *c, true
}

// WaitDecoded blocks until a code is decoded or ctx is done
func (r *Receiver) WaitDecoded(ctx context.Context) (DecodedCode, error) {
	for {
		if c, ok := r.TakeDecoded(); ok {
			return c, nil
		}
		select {
		case <-ctx.Done():
			return DecodedCode{}, ctx.Err()
		case <-r.notify:
		}
	}
}

// Statistics returns a snapshot of the receive counters
func (r *Receiver) Statistics() Statistics {
	r.statsMu.Lock()
	defer r.statsMu.Unlock()

	if r.demod == nil {
		return Statistics{}
	}
	s := *r.demod.Statistics()
	s.Dropped = r.dropped.Load()
	s.CalculateRates()
	return s
}

func (r *Receiver) run(demod *Demodulator, events <-chan edgeEvent, stop, done chan struct{}) {
	defer close(done)
	for {
		select {
		case <-stop:
			// Finish what was queued before the edge source was detached
			for {
				select {
				case ev := <-events:
					r.process(demod, ev)
				default:
					return
				}
			}
		case ev := <-events:
			r.process(demod, ev)
		}
	}
}

func (r *Receiver) process(demod *Demodulator, ev edgeEvent) {
	r.statsMu.Lock()
	if ev.gap {
		demod.Reset()
	}
	code, ok := demod.Feed(ev.d)
	r.statsMu.Unlock()

	if !ok {
		return
	}
	r.latest.Store(&code)
	select {
	case r.notify <- struct{}{}:
	default:
	}
	r.log.Debug().
		Uint64("value", code.Value).
		Uint32("bits", code.BitLength).
		Uint8("protocol", code.ProtocolID).
		Uint32("pulse_us", code.PulseLength).
		Msg("code decoded")
}
