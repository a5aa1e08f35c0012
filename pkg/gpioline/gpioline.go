// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package gpioline drives a 433/315 MHz transmitter module and reads a
// receiver module through sysfs GPIO pins.
package gpioline

import (
	"fmt"
	"sync"

	"github.com/davecheney/gpio"
)

// pin is the part of gpio.Pin the line uses
type pin interface {
	Set()
	Clear()
	Get() bool
	Err() error
	BeginWatch(edge gpio.Edge, callback gpio.IRQEvent) error
	EndWatch() error
	Close() error
}

// Output is a transmitter data pin. It implements rcswitch.Output.
type Output struct {
	pin pin
}

// OpenOutput exports pin number n as an output held low
func OpenOutput(n int) (*Output, error) {
	p, err := gpio.OpenPin(n, gpio.ModeOutput)
	if err != nil {
		return nil, fmt.Errorf("failed to open GPIO %d for output: %w", n, err)
	}
	o := &Output{pin: p}
	if err := o.SetLevel(false); err != nil {
		p.Close()
		return nil, err
	}
	return o, nil
}

// SetLevel drives the data line
func (o *Output) SetLevel(high bool) error {
	if high {
		o.pin.Set()
	} else {
		o.pin.Clear()
	}
	if err := o.pin.Err(); err != nil {
		return fmt.Errorf("GPIO write failed: %w", err)
	}
	return nil
}

// Close drives the line low and releases the pin
func (o *Output) Close() error {
	o.pin.Clear()
	return o.pin.Close()
}

// Input is a receiver data pin. It implements rcswitch.EdgeSource.
type Input struct {
	pin pin

	mu    sync.Mutex
	fn    func(uint32)
	timer edgeTimer
}

// OpenInput exports pin number n as an input
func OpenInput(n int) (*Input, error) {
	p, err := gpio.OpenPin(n, gpio.ModeInput)
	if err != nil {
		return nil, fmt.Errorf("failed to open GPIO %d for input: %w", n, err)
	}
	return newInput(p), nil
}

func newInput(p pin) *Input {
	return &Input{pin: p, timer: newEdgeTimer()}
}

// Subscribe watches both edges and delivers the time between them to fn
func (in *Input) Subscribe(fn func(durationUs uint32)) error {
	in.mu.Lock()
	in.fn = fn
	in.timer.reset()
	in.mu.Unlock()

	// The watch callback carries no level, read it back from the pin
	if err := in.pin.BeginWatch(gpio.EdgeBoth, func() { in.onEdge(in.pin.Get()) }); err != nil {
		in.mu.Lock()
		in.fn = nil
		in.mu.Unlock()
		return fmt.Errorf("failed to watch GPIO edges: %w", err)
	}
	return nil
}

// Unsubscribe stops the watch. No edge is delivered after it returns.
func (in *Input) Unsubscribe() error {
	err := in.pin.EndWatch()

	in.mu.Lock()
	in.fn = nil
	in.mu.Unlock()

	if err != nil {
		return fmt.Errorf("failed to stop GPIO watch: %w", err)
	}
	return nil
}

// Close releases the pin
func (in *Input) Close() error {
	in.Unsubscribe()
	return in.pin.Close()
}

func (in *Input) onEdge(high bool) {
	in.mu.Lock()
	defer in.mu.Unlock()

	if in.fn == nil {
		return
	}
	if d, ok := in.timer.edge(high); ok {
		in.fn(d)
	}
}
