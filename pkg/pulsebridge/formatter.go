// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package pulsebridge

import (
	"fmt"
	"strings"
	"time"
)

// FormatPacket formats a packet into a human-readable string
func FormatPacket(p *Packet) string {
	timestamp := p.Timestamp().Format("15:04:05.000")
	result := fmt.Sprintf("[%s] %s (0x%02X) len=%d\n", timestamp, FormatMessageType(p.Type()), p.Type(), p.length)

	if err := p.ParseError(); err != nil {
		return result + fmt.Sprintf("  Parse error: %v\n", err)
	}
	return result + FormatPayloadMap(p.Type(), p.PayloadMap())
}

// FormatMessageType returns the human-readable name for a message type
func FormatMessageType(msgType uint8) string {
	switch msgType {
	case MsgSubscribe:
		return "SUBSCRIBE"
	case MsgUnsubscribe:
		return "UNSUBSCRIBE"
	case MsgTransmit:
		return "TRANSMIT"
	case MsgPingRequest:
		return "PING_REQUEST"
	case MsgEdges:
		return "EDGES"
	case MsgTransmitDone:
		return "TRANSMIT_DONE"
	case MsgPingResponse:
		return "PING_RESPONSE"
	case MsgError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// FormatPayloadMap formats a payload map based on message type
func FormatPayloadMap(msgType uint8, m map[int]interface{}) string {
	switch msgType {
	case MsgSubscribe, MsgUnsubscribe, MsgPingRequest, MsgTransmitDone:
		return "  (no payload)\n"

	case MsgTransmit:
		repeat, _ := GetMapUint(m, keyRepeat)
		flat, err := GetMapDurations(m, keyPulses)
		if err != nil {
			return fmt.Sprintf("  Invalid: %v\n", err)
		}
		return fmt.Sprintf("  Repeat: %d, Pulses: %d\n  %s\n", repeat, len(flat)/2, formatDurations(flat, 16))

	case MsgEdges:
		d, err := GetMapDurations(m, keyDurations)
		if err != nil {
			return fmt.Sprintf("  Invalid: %v\n", err)
		}
		return fmt.Sprintf("  Edges: %d\n  %s\n", len(d), formatDurations(d, 16))

	case MsgPingResponse:
		uptime, _ := GetMapUint(m, keyUptime)
		return fmt.Sprintf("  Uptime: %s\n", formatDuration(uptime))

	case MsgError:
		code, _ := GetMapUint(m, keyCode)
		msg, _ := GetMapString(m, keyMessage)
		if msg == "" {
			return fmt.Sprintf("  Code: %s\n", formatErrorCode(ErrorCode(code)))
		}
		return fmt.Sprintf("  Code: %s, Message: %s\n", formatErrorCode(ErrorCode(code)), msg)

	default:
		return fmt.Sprintf("  Payload: %v\n", m)
	}
}

func formatErrorCode(code ErrorCode) string {
	switch code {
	case ErrorInvalidCmd:
		return "INVALID_CMD"
	case ErrorBusy:
		return "BUSY"
	case ErrorTooLong:
		return "TOO_LONG"
	case ErrorRadioFault:
		return "RADIO_FAULT"
	default:
		return fmt.Sprintf("UNKNOWN(0x%02X)", int(code))
	}
}

// formatDurations prints at most limit µs values
func formatDurations(d []uint32, limit int) string {
	n := len(d)
	if n > limit {
		n = limit
	}
	parts := make([]string, 0, n+1)
	for _, v := range d[:n] {
		parts = append(parts, fmt.Sprintf("%d", v))
	}
	if len(d) > limit {
		parts = append(parts, fmt.Sprintf("… (+%d)", len(d)-limit))
	}
	return strings.Join(parts, " ")
}

// formatDuration converts milliseconds to a human-readable duration
func formatDuration(ms uint64) string {
	if ms < 1000 {
		return fmt.Sprintf("%d ms", ms)
	}
	return (time.Duration(ms) * time.Millisecond).Truncate(time.Second).String()
}
