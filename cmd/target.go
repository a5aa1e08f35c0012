// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/rcswitch/pkg/config"
	"github.com/Thermoquad/rcswitch/pkg/rcswitch"
)

const addressUsage = `Codes are given as an address and a state:
  A <group_name> <switch> on|off    e.g. A 11001 2 on
  B <group> <switch> on|off         e.g. B 1 3 off
  C <family> <group> <device> on|off  e.g. C a 1 2 on

or with --name <switch> on|off for a switch from the config file, or as a
raw code with --codeword, --bits or --value.`

const allUsage = `With --all on|off the code goes to every switch marked manage in the
config file.`

// codeTarget is a code resolved from the command line, ready to modulate
type codeTarget struct {
	label    string
	protocol rcswitch.ProtocolSpec
	codeword rcswitch.Codeword // nil for raw binary codes
	bits     rcswitch.BitString // empty for codewords longer than 64 bits
}

// pulses returns one repetition of the pulse train
func (t codeTarget) pulses() ([]rcswitch.Pulse, error) {
	if t.codeword != nil {
		return rcswitch.ModulateCodeword(t.codeword, t.protocol)
	}
	return rcswitch.ModulateBits(t.bits, t.protocol), nil
}

// withPulseLength returns t with a different pulse unit
func (t codeTarget) withPulseLength(us uint32) codeTarget {
	t.protocol = t.protocol.WithPulseLength(us)
	return t
}

// codeFlags are the ways a command can be told which code to use
type codeFlags struct {
	name     string
	codeword string
	bits     string
	value    uint64
	length   int
	all      bool
}

func (f *codeFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.name, "name", "n", "", "Switch name from the config file")
	cmd.Flags().StringVar(&f.codeword, "codeword", "", "Raw tri-state codeword, e.g. F0FFFF0FFFFF")
	cmd.Flags().StringVar(&f.bits, "bits", "", "Raw binary code, e.g. 000101010001")
	cmd.Flags().Uint64Var(&f.value, "value", 0, "Raw code as a decimal value (see --length)")
	cmd.Flags().IntVar(&f.length, "length", config.DefaultRawLength, "Bit length for --value")
}

// registerAll adds --all for commands that can address every managed switch
func (f *codeFlags) registerAll(cmd *cobra.Command) {
	f.register(cmd)
	cmd.Flags().BoolVar(&f.all, "all", false, "Use every managed switch from the config file")
}

// resolveAll builds the targets: every managed switch with --all, otherwise
// the single code resolve finds
func (f *codeFlags) resolveAll(cmd *cobra.Command, c *config.Config, args []string) ([]codeTarget, error) {
	if !f.all {
		t, err := f.resolve(cmd, c, args)
		if err != nil {
			return nil, err
		}
		return []codeTarget{t}, nil
	}

	if f.name != "" || f.codeword != "" || f.bits != "" || cmd.Flags().Changed("value") {
		return nil, fmt.Errorf("--all cannot be combined with --name, --codeword, --bits or --value")
	}
	if len(args) != 1 {
		return nil, fmt.Errorf("usage: --all on|off")
	}
	on, err := parseState(args[0])
	if err != nil {
		return nil, err
	}
	return managedTargets(c, on)
}

// managedTargets resolves every switch marked manage
func managedTargets(c *config.Config, on bool) ([]codeTarget, error) {
	managed := c.Managed()
	if len(managed) == 0 {
		return nil, fmt.Errorf("no switches with manage set in the config")
	}
	targets := make([]codeTarget, 0, len(managed))
	for _, s := range managed {
		t, err := switchTarget(c, s, on)
		if err != nil {
			return nil, err
		}
		targets = append(targets, t)
	}
	return targets, nil
}

// resolve builds the target from the flags and positional arguments
func (f *codeFlags) resolve(cmd *cobra.Command, c *config.Config, args []string) (codeTarget, error) {
	protocol, err := c.ProtocolSpec()
	if err != nil {
		return codeTarget{}, err
	}
	t := codeTarget{protocol: protocol}

	raw := 0
	for _, set := range []bool{f.codeword != "", f.bits != "", cmd.Flags().Changed("value"), f.name != ""} {
		if set {
			raw++
		}
	}
	if raw > 1 {
		return codeTarget{}, fmt.Errorf("--name, --codeword, --bits and --value are mutually exclusive")
	}

	switch {
	case f.codeword != "":
		if len(args) > 0 {
			return codeTarget{}, fmt.Errorf("unexpected arguments with --codeword: %v", args)
		}
		cw, err := rcswitch.ParseCodeword(f.codeword)
		if err != nil {
			return codeTarget{}, err
		}
		t.codeword = cw
		t.label = rcswitch.Describe(cw)
		if bits, err := cw.Bits(); err == nil {
			t.bits = bits
		}
		return t, nil

	case f.bits != "":
		if len(args) > 0 {
			return codeTarget{}, fmt.Errorf("unexpected arguments with --bits: %v", args)
		}
		t.bits, err = rcswitch.ParseBitString(f.bits)
		t.label = "bits " + f.bits
		return t, err

	case cmd.Flags().Changed("value"):
		if len(args) > 0 {
			return codeTarget{}, fmt.Errorf("unexpected arguments with --value: %v", args)
		}
		t.bits, err = rcswitch.NewBitString(f.value, f.length)
		t.label = fmt.Sprintf("value %d/%d", f.value, f.length)
		return t, err

	case f.name != "":
		s, ok := c.Switch(f.name)
		if !ok {
			return codeTarget{}, fmt.Errorf("no switch named %q in the config", f.name)
		}
		if len(args) != 1 {
			return codeTarget{}, fmt.Errorf("usage: --name %s on|off", f.name)
		}
		on, err := parseState(args[0])
		if err != nil {
			return codeTarget{}, err
		}
		return switchTarget(c, s, on)

	default:
		addr, on, err := parseAddress(args)
		if err != nil {
			return codeTarget{}, err
		}
		return t.withAddress(addr, on)
	}
}

// switchTarget resolves a configured switch, honoring its protocol override.
// Raw switches resolve to their on or off bits.
func switchTarget(c *config.Config, s config.SwitchConfig, on bool) (codeTarget, error) {
	protocol, err := c.ProtocolSpec()
	if err != nil {
		return codeTarget{}, err
	}
	if s.Protocol != 0 {
		p, err := rcswitch.LookupProtocol(s.Protocol)
		if err != nil {
			return codeTarget{}, err
		}
		protocol = p.WithPulseLength(c.Radio.PulseLength)
	}
	t := codeTarget{
		label:    fmt.Sprintf("%s %s", s.Name, stateName(on)),
		protocol: protocol,
	}
	if s.Raw() {
		t.bits, err = s.RawCode(on)
		return t, err
	}
	addr, err := s.Address()
	if err != nil {
		return codeTarget{}, err
	}
	return t.withAddress(addr, on)
}

func (t codeTarget) withAddress(addr rcswitch.Address, on bool) (codeTarget, error) {
	cw, err := rcswitch.Encode(addr, on)
	if err != nil {
		return codeTarget{}, err
	}
	t.codeword = cw
	if t.label == "" {
		t.label = rcswitch.Describe(cw)
	}
	t.bits, err = cw.Bits()
	return t, err
}

// parseAddress parses "<scheme> <fields...> on|off"
func parseAddress(args []string) (rcswitch.Address, bool, error) {
	if len(args) < 2 {
		return nil, false, fmt.Errorf("missing address\n\n%s", addressUsage)
	}

	on, err := parseState(args[len(args)-1])
	if err != nil {
		return nil, false, err
	}
	fields := args[1 : len(args)-1]

	var addr rcswitch.Address
	switch strings.ToUpper(args[0]) {
	case "A":
		if len(fields) != 2 {
			return nil, false, fmt.Errorf("scheme A takes <group_name> <switch>")
		}
		sw, err := strconv.Atoi(fields[1])
		if err != nil {
			return nil, false, fmt.Errorf("invalid switch %q", fields[1])
		}
		addr = rcswitch.SchemeA{GroupName: fields[0], Switch: sw}

	case "B":
		n, err := atoiAll(fields, 2, "scheme B takes <group> <switch>")
		if err != nil {
			return nil, false, err
		}
		addr = rcswitch.SchemeB{Group: n[0], Switch: n[1]}

	case "C":
		if len(fields) != 3 || len(fields[0]) != 1 {
			return nil, false, fmt.Errorf("scheme C takes <family a-p> <group> <device>")
		}
		n, err := atoiAll(fields[1:], 2, "scheme C takes <family a-p> <group> <device>")
		if err != nil {
			return nil, false, err
		}
		addr = rcswitch.SchemeC{Family: strings.ToLower(fields[0])[0], Group: n[0], Device: n[1]}

	default:
		return nil, false, fmt.Errorf("unknown scheme %q (use A, B or C)", args[0])
	}
	return addr, on, nil
}

func atoiAll(fields []string, want int, usage string) ([]int, error) {
	if len(fields) != want {
		return nil, fmt.Errorf("%s", usage)
	}
	out := make([]int, len(fields))
	for i, f := range fields {
		n, err := strconv.Atoi(f)
		if err != nil {
			return nil, fmt.Errorf("invalid number %q: %s", f, usage)
		}
		out[i] = n
	}
	return out, nil
}

func parseState(s string) (bool, error) {
	switch strings.ToLower(s) {
	case "on", "1":
		return true, nil
	case "off", "0":
		return false, nil
	default:
		return false, fmt.Errorf("invalid state %q (use on or off)", s)
	}
}

func stateName(on bool) string {
	if on {
		return "ON"
	}
	return "OFF"
}
