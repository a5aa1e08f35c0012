// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package pulsebridge

import (
	"fmt"
	"time"
)

// Decoder implements the frame decoder state machine
type Decoder struct {
	state      int
	buffer     []byte // length + payload, for the CRC
	escapeNext bool
	packet     *Packet
	rawBuffer  []byte // raw bytes including framing
}

// NewDecoder creates a new frame decoder
func NewDecoder() *Decoder {
	return &Decoder{
		state:     stateIdle,
		buffer:    make([]byte, 0, MaxPacketSize),
		rawBuffer: make([]byte, 0, 64),
	}
}

// Reset returns the decoder to idle
func (d *Decoder) Reset() {
	d.state = stateIdle
	d.buffer = d.buffer[:0]
	d.escapeNext = false
	d.packet = nil
	d.rawBuffer = d.rawBuffer[:0]
}

// RawBytes returns the raw bytes accumulated since the last frame start
func (d *Decoder) RawBytes() []byte {
	return d.rawBuffer
}

// DecodeByte feeds one byte through the state machine. It returns a packet
// when b completes a valid frame, nil while a frame is incomplete, and an
// error when the frame is malformed.
func (d *Decoder) DecodeByte(b byte) (*Packet, error) {
	d.rawBuffer = append(d.rawBuffer, b)

	if d.escapeNext {
		d.escapeNext = false
		return d.accept(b ^ EscXor)
	}

	switch b {
	case EscByte:
		if d.state != stateIdle {
			d.escapeNext = true
		}
		return nil, nil

	case StartByte:
		d.Reset()
		d.rawBuffer = append(d.rawBuffer, b)
		d.state = stateLength1
		return nil, nil

	case EndByte:
		state := d.state
		if state == stateIdle {
			d.Reset()
			return nil, nil
		}
		if state != stateEnd {
			d.Reset()
			return nil, fmt.Errorf("unexpected END byte in state %d", state)
		}

		packet := d.packet
		calculated := CalculateCRC(d.buffer)
		d.Reset()
		if packet.crc != calculated {
			return nil, fmt.Errorf("%w: expected 0x%04X, got 0x%04X", ErrCRCMismatch, calculated, packet.crc)
		}
		packet.timestamp = time.Now()
		return packet, nil
	}

	return d.accept(b)
}

// accept handles one unstuffed data byte
func (d *Decoder) accept(b byte) (*Packet, error) {
	switch d.state {
	case stateIdle:
		return nil, nil

	case stateLength1:
		d.packet = &Packet{length: uint16(b) << 8}
		d.buffer = append(d.buffer, b)
		d.state = stateLength2
		return nil, nil

	case stateLength2:
		d.packet.length |= uint16(b)
		d.buffer = append(d.buffer, b)
		if d.packet.length == 0 || d.packet.length > MaxPayloadSize {
			length := d.packet.length
			d.Reset()
			return nil, fmt.Errorf("invalid length: %d (valid 1-%d)", length, MaxPayloadSize)
		}
		d.packet.cborPayload = make([]byte, 0, d.packet.length)
		d.state = statePayload
		return nil, nil

	case statePayload:
		d.packet.cborPayload = append(d.packet.cborPayload, b)
		d.buffer = append(d.buffer, b)
		if len(d.packet.cborPayload) >= int(d.packet.length) {
			d.state = stateCRC1
		}
		return nil, nil

	case stateCRC1:
		d.packet.crc = uint16(b) << 8
		d.state = stateCRC2
		return nil, nil

	case stateCRC2:
		d.packet.crc |= uint16(b)
		d.state = stateEnd
		return nil, nil

	case stateEnd:
		d.Reset()
		return nil, fmt.Errorf("frame longer than declared length")

	default:
		d.Reset()
		return nil, fmt.Errorf("invalid state: %d", d.state)
	}
}
