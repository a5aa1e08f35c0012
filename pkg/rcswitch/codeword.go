// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package rcswitch

import (
	"fmt"
	"strings"
)

// Symbol is one tri-state codeword symbol
type Symbol byte

const (
	Zero  Symbol = '0'
	One   Symbol = '1'
	Float Symbol = 'F'
)

// CodewordLength is the symbol count produced by every addressing scheme
const CodewordLength = 12

// Codeword is an ordered sequence of tri-state symbols, sent left to right
type Codeword []Symbol

// ParseCodeword parses a string over {0,1,F}
func ParseCodeword(s string) (Codeword, error) {
	if s == "" {
		return nil, fmt.Errorf("empty codeword")
	}
	cw := make(Codeword, 0, len(s))
	for i := 0; i < len(s); i++ {
		switch c := Symbol(s[i]); c {
		case Zero, One, Float:
			cw = append(cw, c)
		case 'f':
			cw = append(cw, Float)
		default:
			return nil, fmt.Errorf("invalid symbol %q at position %d", s[i], i)
		}
	}
	return cw, nil
}

// String returns the codeword as a string over {0,1,F}
func (cw Codeword) String() string {
	var b strings.Builder
	b.Grow(len(cw))
	for _, s := range cw {
		b.WriteByte(byte(s))
	}
	return b.String()
}

// Scheme identifies an addressing scheme
type Scheme byte

const (
	SchemeTypeA Scheme = 'A' // 10 pole DIP switches
	SchemeTypeB Scheme = 'B' // two rotary/sliding switches
	SchemeTypeC Scheme = 'C' // Intertechno
)

func (s Scheme) String() string {
	return string(s)
}

// Address is a switch address that can be encoded into a codeword
type Address interface {
	Scheme() Scheme
	Codeword(on bool) (Codeword, error)
}

// Encode returns the codeword switching addr on or off
func Encode(addr Address, on bool) (Codeword, error) {
	if addr == nil {
		return nil, &InvalidAddressError{Field: "address", Value: nil}
	}
	return addr.Codeword(on)
}

// Switch position tables, index n holds the pattern for switch n.
// Index 0 is the "no switch" pattern and is never selected.
var (
	switchCodeA = [...]string{"FFFFF", "0FFFF", "F0FFF", "FF0FF", "FFF0F", "FFFF0"}
	switchCodeB = [...]string{"FFFF", "0FFF", "F0FF", "FF0F", "FFF0"}
)

// Intertechno family codes for 'a'..'p'
var familyCodeC = [...]string{
	"0000", "F000", "0F00", "FF00", "00F0", "F0F0", "0FF0", "FFF0",
	"000F", "F00F", "0F0F", "FF0F", "00FF", "F0FF", "0FFF", "FFFF",
}

// SchemeA addresses a receiver set with 10 pole DIP switches.
// GroupName holds the first five DIP positions ('1' = on),
// Switch selects the receiver 1..5.
type SchemeA struct {
	GroupName string
	Switch    int
}

func (a SchemeA) Scheme() Scheme { return SchemeTypeA }

func (a SchemeA) Codeword(on bool) (Codeword, error) {
	if a.Switch < 1 || a.Switch > 5 {
		return nil, &InvalidAddressError{Scheme: SchemeTypeA, Field: "switch", Value: a.Switch}
	}
	if len(a.GroupName) != 5 {
		return nil, &InvalidAddressError{Scheme: SchemeTypeA, Field: "group_name", Value: a.GroupName}
	}

	cw := make(Codeword, 0, CodewordLength)
	for i := 0; i < len(a.GroupName); i++ {
		switch a.GroupName[i] {
		case '0':
			cw = append(cw, Float)
		case '1':
			cw = append(cw, Zero)
		default:
			return nil, &InvalidAddressError{Scheme: SchemeTypeA, Field: "group_name", Value: a.GroupName}
		}
	}
	cw = appendSymbols(cw, switchCodeA[a.Switch])
	if on {
		cw = append(cw, Zero, Float)
	} else {
		cw = append(cw, Float, Zero)
	}
	return cw, nil
}

// SchemeB addresses a receiver with two rotary switches (group 1..4, switch 1..4)
type SchemeB struct {
	Group  int
	Switch int
}

func (b SchemeB) Scheme() Scheme { return SchemeTypeB }

func (b SchemeB) Codeword(on bool) (Codeword, error) {
	if b.Group < 1 || b.Group > 4 {
		return nil, &InvalidAddressError{Scheme: SchemeTypeB, Field: "group", Value: b.Group}
	}
	if b.Switch < 1 || b.Switch > 4 {
		return nil, &InvalidAddressError{Scheme: SchemeTypeB, Field: "switch", Value: b.Switch}
	}

	cw := make(Codeword, 0, CodewordLength)
	cw = appendSymbols(cw, switchCodeB[b.Group])
	cw = appendSymbols(cw, switchCodeB[b.Switch])
	cw = append(cw, Float, Float, Float)
	cw = append(cw, statusSymbol(on))
	return cw, nil
}

// SchemeC addresses an Intertechno receiver (family 'a'..'p', group 1..4, device 1..4)
type SchemeC struct {
	Family byte
	Group  int
	Device int
}

func (c SchemeC) Scheme() Scheme { return SchemeTypeC }

func (c SchemeC) Codeword(on bool) (Codeword, error) {
	if c.Family < 'a' || c.Family > 'p' {
		return nil, &InvalidAddressError{Scheme: SchemeTypeC, Field: "family", Value: string(rune(c.Family))}
	}
	if c.Group < 1 || c.Group > 4 {
		return nil, &InvalidAddressError{Scheme: SchemeTypeC, Field: "group", Value: c.Group}
	}
	if c.Device < 1 || c.Device > 4 {
		return nil, &InvalidAddressError{Scheme: SchemeTypeC, Field: "device", Value: c.Device}
	}

	cw := make(Codeword, 0, CodewordLength)
	cw = appendSymbols(cw, familyCodeC[c.Family-'a'])

	// 4-bit device/group code, MSB first, 1 -> F and 0 -> 0
	code := (c.Device - 1) + (c.Group-1)*4
	for bit := 3; bit >= 0; bit-- {
		if code&(1<<bit) != 0 {
			cw = append(cw, Float)
		} else {
			cw = append(cw, Zero)
		}
	}
	cw = append(cw, Zero, Float, Float)
	cw = append(cw, statusSymbol(on))
	return cw, nil
}

func statusSymbol(on bool) Symbol {
	if on {
		return Float
	}
	return Zero
}

func appendSymbols(cw Codeword, s string) Codeword {
	for i := 0; i < len(s); i++ {
		cw = append(cw, Symbol(s[i]))
	}
	return cw
}

// ParseSchemeA recovers a scheme A address and status from a codeword
func ParseSchemeA(cw Codeword) (SchemeA, bool, error) {
	if len(cw) != CodewordLength {
		return SchemeA{}, false, fmt.Errorf("scheme A: expected %d symbols, got %d", CodewordLength, len(cw))
	}
	s := cw.String()

	var group strings.Builder
	for i := 0; i < 5; i++ {
		switch cw[i] {
		case Float:
			group.WriteByte('0')
		case Zero:
			group.WriteByte('1')
		default:
			return SchemeA{}, false, fmt.Errorf("scheme A: invalid group symbol %q", cw[i])
		}
	}

	sw := indexOf(switchCodeA[1:], s[5:10])
	if sw < 0 {
		return SchemeA{}, false, fmt.Errorf("scheme A: unknown switch pattern %s", s[5:10])
	}

	var on bool
	switch s[10:] {
	case "0F":
		on = true
	case "F0":
		on = false
	default:
		return SchemeA{}, false, fmt.Errorf("scheme A: invalid status %s", s[10:])
	}
	return SchemeA{GroupName: group.String(), Switch: sw + 1}, on, nil
}

// ParseSchemeB recovers a scheme B address and status from a codeword
func ParseSchemeB(cw Codeword) (SchemeB, bool, error) {
	if len(cw) != CodewordLength {
		return SchemeB{}, false, fmt.Errorf("scheme B: expected %d symbols, got %d", CodewordLength, len(cw))
	}
	s := cw.String()

	group := indexOf(switchCodeB[1:], s[0:4])
	sw := indexOf(switchCodeB[1:], s[4:8])
	if group < 0 || sw < 0 || s[8:11] != "FFF" {
		return SchemeB{}, false, fmt.Errorf("scheme B: codeword %s does not match", s)
	}
	on, err := parseStatus(cw[11])
	if err != nil {
		return SchemeB{}, false, fmt.Errorf("scheme B: %w", err)
	}
	return SchemeB{Group: group + 1, Switch: sw + 1}, on, nil
}

// ParseSchemeC recovers a scheme C address and status from a codeword
func ParseSchemeC(cw Codeword) (SchemeC, bool, error) {
	if len(cw) != CodewordLength {
		return SchemeC{}, false, fmt.Errorf("scheme C: expected %d symbols, got %d", CodewordLength, len(cw))
	}
	s := cw.String()

	family := indexOf(familyCodeC[:], s[0:4])
	if family < 0 || s[8:11] != "0FF" {
		return SchemeC{}, false, fmt.Errorf("scheme C: codeword %s does not match", s)
	}

	code := 0
	for _, sym := range cw[4:8] {
		code <<= 1
		switch sym {
		case Float:
			code |= 1
		case Zero:
		default:
			return SchemeC{}, false, fmt.Errorf("scheme C: invalid device symbol %q", sym)
		}
	}
	on, err := parseStatus(cw[11])
	if err != nil {
		return SchemeC{}, false, fmt.Errorf("scheme C: %w", err)
	}
	return SchemeC{Family: byte('a' + family), Group: code/4 + 1, Device: code%4 + 1}, on, nil
}

// Describe returns a human-readable address for a codeword, trying the
// schemes in order B, C, A. Unknown codewords are returned verbatim.
func Describe(cw Codeword) string {
	if b, on, err := ParseSchemeB(cw); err == nil {
		return fmt.Sprintf("B group=%d switch=%d %s", b.Group, b.Switch, onOff(on))
	}
	if c, on, err := ParseSchemeC(cw); err == nil {
		return fmt.Sprintf("C family=%c group=%d device=%d %s", c.Family, c.Group, c.Device, onOff(on))
	}
	if a, on, err := ParseSchemeA(cw); err == nil {
		return fmt.Sprintf("A group=%s switch=%d %s", a.GroupName, a.Switch, onOff(on))
	}
	return cw.String()
}

func parseStatus(s Symbol) (bool, error) {
	switch s {
	case Float:
		return true, nil
	case Zero:
		return false, nil
	}
	return false, fmt.Errorf("invalid status symbol %q", s)
}

func indexOf(table []string, s string) int {
	for i, v := range table {
		if v == s {
			return i
		}
	}
	return -1
}

func onOff(on bool) string {
	if on {
		return "ON"
	}
	return "OFF"
}
