// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package rcswitch

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidAddress  = errors.New("invalid switch address")
	ErrTransmit        = errors.New("transmit failed")
	ErrNoMatch         = errors.New("no protocol matched")
	ErrUnknownProtocol = errors.New("unknown protocol")
	ErrInvalidBits     = errors.New("invalid bit string")
	ErrReceiveActive   = errors.New("receiver already enabled")
)

// InvalidAddressError reports a malformed encoder input
type InvalidAddressError struct {
	Scheme Scheme
	Field  string
	Value  interface{}
}

func (e *InvalidAddressError) Error() string {
	return fmt.Sprintf("%v: scheme %s %s=%v", ErrInvalidAddress, e.Scheme, e.Field, e.Value)
}

// Is matches ErrInvalidAddress
func (e *InvalidAddressError) Is(target error) bool {
	return target == ErrInvalidAddress
}

// TransmitError wraps a fault reported by the output capability
type TransmitError struct {
	Pulse int // index of the pulse being emitted, -1 if not pulse specific
	Err   error
}

func (e *TransmitError) Error() string {
	if e.Pulse < 0 {
		return fmt.Sprintf("%v: %v", ErrTransmit, e.Err)
	}
	return fmt.Sprintf("%v at pulse %d: %v", ErrTransmit, e.Pulse, e.Err)
}

func (e *TransmitError) Unwrap() error {
	return e.Err
}

// Is matches ErrTransmit
func (e *TransmitError) Is(target error) bool {
	return target == ErrTransmit
}
