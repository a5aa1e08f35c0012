// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package rcswitch

import (
	"fmt"
	"sync"
)

// Line is the radio line shared by a transmitter and a receiver.
// While a transmission holds the line the receiver is unsubscribed, so the
// receiver never hears its own signal.
type Line struct {
	mu      sync.Mutex
	input   EdgeSource
	handler func(uint32)
	resumed func()
}

// NewLine creates a line. input may be nil for transmit-only setups.
func NewLine(input EdgeSource) *Line {
	return &Line{input: input}
}

// Attach subscribes handler to the input. It blocks while a transmission
// holds the line. resumed, if not nil, is called each time the handler is
// about to be resubscribed after a transmission.
func (l *Line) Attach(handler func(uint32), resumed func()) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.input == nil {
		return fmt.Errorf("line has no receive input")
	}
	if l.handler != nil {
		return ErrReceiveActive
	}
	if err := l.input.Subscribe(handler); err != nil {
		return fmt.Errorf("subscribe failed: %w", err)
	}
	l.handler = handler
	l.resumed = resumed
	return nil
}

// Detach unsubscribes the current handler, if any
func (l *Line) Detach() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.handler == nil {
		return nil
	}
	l.handler = nil
	l.resumed = nil
	if err := l.input.Unsubscribe(); err != nil {
		return fmt.Errorf("unsubscribe failed: %w", err)
	}
	return nil
}

// Attached reports whether a receiver is subscribed
func (l *Line) Attached() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.handler != nil
}

// Suspend takes exclusive hold of the line for a transmission. An attached
// receiver is unsubscribed until the returned resume func is called.
// resume must be called exactly once.
func (l *Line) Suspend() (resume func() error, err error) {
	l.mu.Lock()

	if l.handler == nil {
		return func() error {
			l.mu.Unlock()
			return nil
		}, nil
	}

	if err := l.input.Unsubscribe(); err != nil {
		l.mu.Unlock()
		return nil, fmt.Errorf("suspend receive: %w", err)
	}
	return func() error {
		defer l.mu.Unlock()
		if l.resumed != nil {
			l.resumed()
		}
		if err := l.input.Subscribe(l.handler); err != nil {
			l.handler = nil
			l.resumed = nil
			return fmt.Errorf("resume receive: %w", err)
		}
		return nil
	}, nil
}
