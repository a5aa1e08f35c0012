// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package pulsebridge implements the host side of the pulse bridge protocol.
//
// A pulse bridge is a microcontroller wired to a 433/315 MHz transmitter and
// receiver. It times pulse trains on behalf of hosts that cannot hold a GPIO
// line with microsecond accuracy, and streams measured receiver edge
// durations back. Frames use START/END delimiters with byte stuffing, a
// 2-byte big-endian length, a CBOR payload [msg_type, payload_map] and a
// CRC-16-CCITT trailer.
package pulsebridge

// Protocol framing bytes
const (
	StartByte = 0x7E
	EndByte   = 0x7F
	EscByte   = 0x7D
	EscXor    = 0x20
)

// Frame size limits
const (
	LengthSize     = 2
	CRCSize        = 2
	MaxPayloadSize = 2048
	MaxPacketSize  = LengthSize + MaxPayloadSize + CRCSize
)

// CRC-16-CCITT configuration
const (
	crcPolynomial = 0x1021
	crcInitial    = 0xFFFF
)

// Message types - Commands (Host → Bridge) 0x10-0x2F
const (
	MsgSubscribe   = 0x10
	MsgUnsubscribe = 0x11
	MsgTransmit    = 0x20
	MsgPingRequest = 0x2F
)

// Message types - Data (Bridge → Host) 0x30-0x3F
const (
	MsgEdges        = 0x30
	MsgTransmitDone = 0x31
	MsgPingResponse = 0x3F
)

// Message types - Errors (Bridge → Host) 0xE0-0xEF
const (
	MsgError = 0xE0
)

// Payload keys
const (
	keyRepeat    = 0 // TRANSMIT
	keyPulses    = 1 // TRANSMIT, flat high/low µs list
	keyDurations = 0 // EDGES
	keyUptime    = 0 // PING_RESPONSE, ms
	keyCode      = 0 // ERROR
	keyMessage   = 1 // ERROR
)

// Decoder states (internal)
const (
	stateIdle = iota
	stateLength1
	stateLength2
	statePayload
	stateCRC1
	stateCRC2
	stateEnd
)

// ErrorCode is the code carried by an ERROR message
type ErrorCode int

// Error code values
const (
	ErrorInvalidCmd ErrorCode = 0x01
	ErrorBusy       ErrorCode = 0x02
	ErrorTooLong    ErrorCode = 0x03
	ErrorRadioFault ErrorCode = 0x04
)
