// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package rcswitch

import (
	"context"
	"errors"

	"github.com/rs/zerolog"
)

// Option configures a Transmitter or Receiver
type Option func(*options)

type options struct {
	clock     Clock
	repeat    int
	tolerance int
	queue     int
	log       zerolog.Logger
}

func defaultOptions() options {
	return options{
		clock:     MonotonicClock(),
		repeat:    DefaultRepeat,
		tolerance: DefaultTolerance,
		queue:     DefaultQueueSize,
		log:       zerolog.Nop(),
	}
}

// WithClock sets the clock used to hold pulses
func WithClock(c Clock) Option {
	return func(o *options) {
		if c != nil {
			o.clock = c
		}
	}
}

// WithRepeat sets how many times each code is transmitted
func WithRepeat(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.repeat = n
		}
	}
}

// WithTolerance sets the receive tolerance in percent
func WithTolerance(percent int) Option {
	return func(o *options) {
		if percent > 0 {
			o.tolerance = percent
		}
	}
}

// WithQueueSize sets the receive event queue capacity
func WithQueueSize(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.queue = n
		}
	}
}

// WithLogger sets the diagnostics logger
func WithLogger(l zerolog.Logger) Option {
	return func(o *options) {
		o.log = l
	}
}

// Transmitter sends codes over an output line
type Transmitter struct {
	out    Output
	line   *Line
	clock  Clock
	repeat int
	log    zerolog.Logger
}

// NewTransmitter creates a transmitter. line may be nil when no receiver
// shares the radio.
func NewTransmitter(out Output, line *Line, opts ...Option) *Transmitter {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if line == nil {
		line = NewLine(nil)
	}
	return &Transmitter{
		out:    out,
		line:   line,
		clock:  o.clock,
		repeat: o.repeat,
		log:    o.log,
	}
}

// Repeat returns the number of repetitions per transmission
func (t *Transmitter) Repeat() int { return t.repeat }

// Switch encodes addr and transmits it
func (t *Transmitter) Switch(ctx context.Context, addr Address, on bool, p ProtocolSpec) error {
	cw, err := Encode(addr, on)
	if err != nil {
		return err
	}
	return t.SendCodeword(ctx, cw, p)
}

// SendCodeword transmits a tri-state codeword
func (t *Transmitter) SendCodeword(ctx context.Context, cw Codeword, p ProtocolSpec) error {
	pulses, err := ModulateCodeword(cw, p)
	if err != nil {
		return err
	}
	t.log.Debug().
		Str("codeword", cw.String()).
		Uint8("protocol", p.ID).
		Uint32("pulse_us", p.PulseLength).
		Int("repeat", t.repeat).
		Msg("transmitting codeword")
	return t.SendPulses(ctx, pulses)
}

// SendBits transmits a binary value
func (t *Transmitter) SendBits(ctx context.Context, b BitString, p ProtocolSpec) error {
	t.log.Debug().
		Str("bits", b.String()).
		Uint8("protocol", p.ID).
		Uint32("pulse_us", p.PulseLength).
		Int("repeat", t.repeat).
		Msg("transmitting bits")
	return t.SendPulses(ctx, ModulateBits(b, p))
}

// SendPulses transmits one repetition of pulses, repeated Repeat times.
// Cancellation is honoured between pulses; the line is left low.
func (t *Transmitter) SendPulses(ctx context.Context, pulses []Pulse) (err error) {
	resume, err := t.line.Suspend()
	if err != nil {
		return &TransmitError{Pulse: -1, Err: err}
	}
	defer func() {
		if rerr := resume(); rerr != nil {
			t.log.Warn().Err(rerr).Msg("receiver not resumed after transmit")
			if err == nil {
				err = rerr
			}
		}
	}()

	if to, ok := t.out.(TrainOutput); ok {
		if err := to.EmitTrain(ctx, pulses, t.repeat); err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			return &TransmitError{Pulse: -1, Err: err}
		}
		return nil
	}

	for r := 0; r < t.repeat; r++ {
		for i, p := range pulses {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := t.emit(p); err != nil {
				return &TransmitError{Pulse: r*len(pulses) + i, Err: err}
			}
		}
	}
	return nil
}

func (t *Transmitter) emit(p Pulse) error {
	if err := t.out.SetLevel(true); err != nil {
		return err
	}
	t.clock.Hold(p.HighDuration())
	if err := t.out.SetLevel(false); err != nil {
		return err
	}
	t.clock.Hold(p.LowDuration())
	return nil
}
