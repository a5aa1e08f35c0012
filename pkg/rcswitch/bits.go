// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package rcswitch

import (
	"fmt"
	"strings"
)

// MaxBits is the widest value a BitString or DecodedCode can hold
const MaxBits = 64

// BitString is a binary value with an explicit width. Leading zeros are
// significant and are transmitted.
type BitString struct {
	value  uint64
	length int
}

// NewBitString zero-fills value to length bits, MSB first
func NewBitString(value uint64, length int) (BitString, error) {
	if length < 1 || length > MaxBits {
		return BitString{}, fmt.Errorf("%w: length %d (valid 1-%d)", ErrInvalidBits, length, MaxBits)
	}
	if length < MaxBits && value>>uint(length) != 0 {
		return BitString{}, fmt.Errorf("%w: value %d does not fit in %d bits", ErrInvalidBits, value, length)
	}
	return BitString{value: value, length: length}, nil
}

// ParseBitString parses a string over {0,1}
func ParseBitString(s string) (BitString, error) {
	if len(s) == 0 || len(s) > MaxBits {
		return BitString{}, fmt.Errorf("%w: length %d (valid 1-%d)", ErrInvalidBits, len(s), MaxBits)
	}
	var v uint64
	for i := 0; i < len(s); i++ {
		v <<= 1
		switch s[i] {
		case '0':
		case '1':
			v |= 1
		default:
			return BitString{}, fmt.Errorf("%w: invalid digit %q at position %d", ErrInvalidBits, s[i], i)
		}
	}
	return BitString{value: v, length: len(s)}, nil
}

// Value returns the integer value
func (b BitString) Value() uint64 { return b.value }

// Len returns the bit width
func (b BitString) Len() int { return b.length }

// Bit returns bit i counting from the most significant (leftmost) bit
func (b BitString) Bit(i int) bool {
	return b.value&(1<<uint(b.length-1-i)) != 0
}

func (b BitString) String() string {
	var sb strings.Builder
	sb.Grow(b.length)
	for i := 0; i < b.length; i++ {
		if b.Bit(i) {
			sb.WriteByte('1')
		} else {
			sb.WriteByte('0')
		}
	}
	return sb.String()
}

// Bits returns the binary pulse sequence the modulator emits for cw:
// 0 -> 0, 1 -> 1, F -> 01.
func (cw Codeword) Bits() (BitString, error) {
	var v uint64
	n := 0
	push := func(bit uint64) {
		v = v<<1 | bit
		n++
	}
	for _, s := range cw {
		switch s {
		case Zero:
			push(0)
		case One:
			push(1)
		case Float:
			push(0)
			push(1)
		default:
			return BitString{}, fmt.Errorf("invalid symbol %q", s)
		}
	}
	return NewBitString(v, n)
}

// BitsToCodeword inverts Codeword.Bits. A 0 followed by a 1 is read as F,
// so the result is only exact for codewords that never place a 1 symbol
// directly after a 0 symbol. None of the addressing schemes do.
func BitsToCodeword(value uint64, length int) (Codeword, error) {
	b, err := NewBitString(value, length)
	if err != nil {
		return nil, err
	}
	cw := make(Codeword, 0, length)
	for i := 0; i < length; i++ {
		if !b.Bit(i) {
			if i+1 < length && b.Bit(i+1) {
				cw = append(cw, Float)
				i++
				continue
			}
			cw = append(cw, Zero)
		} else {
			cw = append(cw, One)
		}
	}
	return cw, nil
}
