// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package pulsebridge

import (
	"fmt"
	"time"

	"github.com/Thermoquad/rcswitch/pkg/rcswitch"
)

// Message builders create packets ready for encoding. Host commands first,
// then the bridge side messages used by bridge firmware simulators and tests.

// NewSubscribe creates a SUBSCRIBE packet (0x10).
// The bridge starts streaming EDGES messages.
func NewSubscribe() *Packet {
	return NewPacket(MsgSubscribe, nil)
}

// NewUnsubscribe creates an UNSUBSCRIBE packet (0x11)
func NewUnsubscribe() *Packet {
	return NewPacket(MsgUnsubscribe, nil)
}

// NewTransmit creates a TRANSMIT packet (0x20) carrying one repetition of a
// pulse train. The bridge replies with TRANSMIT_DONE after repeat rounds.
func NewTransmit(pulses []rcswitch.Pulse, repeat int) *Packet {
	flat := make([]uint64, 0, 2*len(pulses))
	for _, p := range pulses {
		flat = append(flat, uint64(p.High), uint64(p.Low))
	}
	return NewPacket(MsgTransmit, map[int]interface{}{
		keyRepeat: uint64(repeat),
		keyPulses: flat,
	})
}

// NewPingRequest creates a PING_REQUEST packet (0x2F)
func NewPingRequest() *Packet {
	return NewPacket(MsgPingRequest, nil)
}

// NewEdges creates an EDGES packet (0x30)
func NewEdges(durations []uint32) *Packet {
	list := make([]uint64, len(durations))
	for i, d := range durations {
		list[i] = uint64(d)
	}
	return NewPacket(MsgEdges, map[int]interface{}{keyDurations: list})
}

// NewTransmitDone creates a TRANSMIT_DONE packet (0x31)
func NewTransmitDone() *Packet {
	return NewPacket(MsgTransmitDone, nil)
}

// NewPingResponse creates a PING_RESPONSE packet (0x3F)
func NewPingResponse(uptime time.Duration) *Packet {
	return NewPacket(MsgPingResponse, map[int]interface{}{
		keyUptime: uint64(uptime.Milliseconds()),
	})
}

// NewError creates an ERROR packet (0xE0)
func NewError(code ErrorCode, message string) *Packet {
	payload := map[int]interface{}{keyCode: uint64(code)}
	if message != "" {
		payload[keyMessage] = message
	}
	return NewPacket(MsgError, payload)
}

// ParseTransmit extracts the pulse train and repeat count of a TRANSMIT packet
func ParseTransmit(p *Packet) ([]rcswitch.Pulse, int, error) {
	if err := expectType(p, MsgTransmit); err != nil {
		return nil, 0, err
	}
	m := p.PayloadMap()
	repeat, ok := GetMapUint(m, keyRepeat)
	if !ok {
		return nil, 0, fmt.Errorf("TRANSMIT: missing repeat")
	}
	flat, err := GetMapDurations(m, keyPulses)
	if err != nil {
		return nil, 0, fmt.Errorf("TRANSMIT: %w", err)
	}
	if len(flat)%2 != 0 {
		return nil, 0, fmt.Errorf("TRANSMIT: odd number of durations (%d)", len(flat))
	}

	pulses := make([]rcswitch.Pulse, 0, len(flat)/2)
	for i := 0; i < len(flat); i += 2 {
		pulses = append(pulses, rcswitch.Pulse{High: flat[i], Low: flat[i+1]})
	}
	return pulses, int(repeat), nil
}

// ParseEdges extracts the durations of an EDGES packet
func ParseEdges(p *Packet) ([]uint32, error) {
	if err := expectType(p, MsgEdges); err != nil {
		return nil, err
	}
	d, err := GetMapDurations(p.PayloadMap(), keyDurations)
	if err != nil {
		return nil, fmt.Errorf("EDGES: %w", err)
	}
	return d, nil
}

// ParsePingResponse extracts the bridge uptime of a PING_RESPONSE packet
func ParsePingResponse(p *Packet) (time.Duration, error) {
	if err := expectType(p, MsgPingResponse); err != nil {
		return 0, err
	}
	ms, ok := GetMapUint(p.PayloadMap(), keyUptime)
	if !ok {
		return 0, fmt.Errorf("PING_RESPONSE: missing uptime")
	}
	return time.Duration(ms) * time.Millisecond, nil
}

// ParseError converts an ERROR packet into a BridgeError
func ParseError(p *Packet) (*BridgeError, error) {
	if err := expectType(p, MsgError); err != nil {
		return nil, err
	}
	m := p.PayloadMap()
	code, ok := GetMapUint(m, keyCode)
	if !ok {
		return nil, fmt.Errorf("ERROR: missing code")
	}
	msg, _ := GetMapString(m, keyMessage)
	return &BridgeError{Code: ErrorCode(code), Message: msg}, nil
}

func expectType(p *Packet, msgType uint8) error {
	if err := p.ParseError(); err != nil {
		return err
	}
	if p.Type() != msgType {
		return fmt.Errorf("%w: %s, want %s", ErrUnexpectedReply, FormatMessageType(p.Type()), FormatMessageType(msgType))
	}
	return nil
}
