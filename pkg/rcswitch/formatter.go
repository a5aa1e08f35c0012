// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package rcswitch

import (
	"fmt"
	"strings"
)

// FormatCode formats a decoded code into a human-readable string
func FormatCode(c DecodedCode) string {
	timestamp := c.Timestamp.Format("15:04:05.000")

	result := fmt.Sprintf("[%s] protocol=%d bits=%d pulse=%dµs value=%d (0x%X)\n",
		timestamp, c.ProtocolID, c.BitLength, c.PulseLength, c.Value, c.Value)

	if bits, err := c.Bits(); err == nil {
		result += fmt.Sprintf("  Binary:    %s\n", bits)
	}
	if cw, err := c.Codeword(); err == nil {
		result += fmt.Sprintf("  Tri-state: %s\n", cw)
		if desc := Describe(cw); desc != cw.String() {
			result += fmt.Sprintf("  Address:   %s\n", desc)
		}
	}

	return result
}

// FormatCodeword formats a codeword with its binary pulse sequence
func FormatCodeword(cw Codeword) string {
	result := fmt.Sprintf("Codeword:  %s\n", cw)
	if bits, err := cw.Bits(); err == nil {
		result += fmt.Sprintf("Bits:      %s\n", FormatBits(bits))
	}
	if desc := Describe(cw); desc != cw.String() {
		result += fmt.Sprintf("Address:   %s\n", desc)
	}
	return result
}

// FormatPulses formats one repetition of a pulse train as high/low pairs
func FormatPulses(pulses []Pulse) string {
	parts := make([]string, 0, len(pulses))
	for _, p := range pulses {
		parts = append(parts, fmt.Sprintf("%d/%d", p.High, p.Low))
	}
	return strings.Join(parts, " ")
}

// FormatBits formats a binary value with its width and integer value
func FormatBits(b BitString) string {
	return fmt.Sprintf("%s (%d bits, value %d, 0x%X)", b, b.Len(), b.Value(), b.Value())
}
