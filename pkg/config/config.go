// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package config loads the rcswitch tool configuration from YAML or TOML.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/Thermoquad/rcswitch/pkg/rcswitch"
)

// Backend kinds
const (
	BackendGPIO      = "gpio"
	BackendSerial    = "serial"
	BackendWebSocket = "websocket"
)

// DefaultRawLength is the bit length of raw switch codes
const DefaultRawLength = 24

// Config is the complete tool configuration
type Config struct {
	Radio    RadioConfig    `yaml:"radio" toml:"radio"`
	Backend  BackendConfig  `yaml:"backend" toml:"backend"`
	Log      LogConfig      `yaml:"log" toml:"log"`
	Sweep    SweepConfig    `yaml:"sweep" toml:"sweep"`
	Switches []SwitchConfig `yaml:"switches" toml:"switches"`
}

// RadioConfig holds the codec settings
type RadioConfig struct {
	Protocol    int    `yaml:"protocol" toml:"protocol"`
	PulseLength uint32 `yaml:"pulse_length" toml:"pulse_length"` // µs, 0 = protocol default
	Repeat      int    `yaml:"repeat" toml:"repeat"`
	Tolerance   int    `yaml:"tolerance" toml:"tolerance"` // percent
}

// BackendConfig selects how the radio is reached
type BackendConfig struct {
	Kind string `yaml:"kind" toml:"kind"`

	// gpio
	TxPin int `yaml:"tx_pin" toml:"tx_pin"`
	RxPin int `yaml:"rx_pin" toml:"rx_pin"` // -1 = transmit only

	// serial
	Port string `yaml:"port" toml:"port"`
	Baud int    `yaml:"baud" toml:"baud"`

	// websocket
	URL         string `yaml:"url" toml:"url"`
	Username    string `yaml:"username" toml:"username"`
	NoSSLVerify bool   `yaml:"no_ssl_verify" toml:"no_ssl_verify"`
}

// LogConfig controls diagnostics output
type LogConfig struct {
	Level   string `yaml:"level" toml:"level"`
	NoColor bool   `yaml:"no_color" toml:"no_color"`
}

// SweepConfig holds the pulse length sweep defaults
type SweepConfig struct {
	Start      uint32        `yaml:"start" toml:"start"` // µs, 0 with End 0 = protocol ±5
	End        uint32        `yaml:"end" toml:"end"`     // µs, inclusive
	Step       uint32        `yaml:"step" toml:"step"`
	Retransmit int           `yaml:"retransmit" toml:"retransmit"`
	Spacing    time.Duration `yaml:"spacing" toml:"spacing"`
}

// SwitchConfig names a receiver so it can be addressed by name.
// A switch has either a scheme address or raw on/off codes.
type SwitchConfig struct {
	Name   string `yaml:"name" toml:"name"`
	Scheme string `yaml:"scheme" toml:"scheme"` // A, B or C, empty for raw codes

	GroupName string `yaml:"group_name" toml:"group_name"` // scheme A DIP positions
	Family    string `yaml:"family" toml:"family"`         // scheme C
	Group     int    `yaml:"group" toml:"group"`
	Switch    int    `yaml:"switch" toml:"switch"` // schemes A and B
	Device    int    `yaml:"device" toml:"device"` // scheme C

	On     uint64 `yaml:"on" toml:"on"`
	Off    uint64 `yaml:"off" toml:"off"`
	Length int    `yaml:"length" toml:"length"` // raw code bits, 0 = 24

	Protocol int  `yaml:"protocol" toml:"protocol"` // 0 = radio default
	Manage   bool `yaml:"manage" toml:"manage"`     // included when sending to all switches
}

// Default returns the configuration used when no file is given
func Default() *Config {
	return &Config{
		Radio: RadioConfig{
			Protocol:  rcswitch.DefaultProtocol,
			Repeat:    rcswitch.DefaultRepeat,
			Tolerance: rcswitch.DefaultTolerance,
		},
		Backend: BackendConfig{
			Kind:  BackendGPIO,
			TxPin: 17,
			RxPin: 27,
			Baud:  115200,
		},
		Log: LogConfig{Level: "info"},
		Sweep: SweepConfig{
			Step:       1,
			Retransmit: 1,
			Spacing:    500 * time.Millisecond,
		},
	}
}

// Load reads path on top of the defaults. The format follows the file
// extension: .yaml/.yml or .toml.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	cfg := Default()
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	case ".toml":
		if _, err := toml.Decode(string(data), cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	default:
		return nil, fmt.Errorf("unsupported config format %q (use .yaml, .yml or .toml)", ext)
	}
	return cfg, nil
}

// ProtocolSpec resolves the radio protocol with its pulse length override
func (c *Config) ProtocolSpec() (rcswitch.ProtocolSpec, error) {
	p, err := rcswitch.LookupProtocol(c.Radio.Protocol)
	if err != nil {
		return rcswitch.ProtocolSpec{}, err
	}
	return p.WithPulseLength(c.Radio.PulseLength), nil
}

// Switch returns the named switch
func (c *Config) Switch(name string) (SwitchConfig, bool) {
	for _, s := range c.Switches {
		if s.Name == name {
			return s, true
		}
	}
	return SwitchConfig{}, false
}

// Managed returns the switches marked manage, in config order
func (c *Config) Managed() []SwitchConfig {
	var out []SwitchConfig
	for _, s := range c.Switches {
		if s.Manage {
			out = append(out, s)
		}
	}
	return out
}

// Raw reports whether the switch is driven by raw codes
func (s SwitchConfig) Raw() bool {
	return s.On != 0 || s.Off != 0
}

// RawCode returns the raw on or off code
func (s SwitchConfig) RawCode(on bool) (rcswitch.BitString, error) {
	v := s.Off
	if on {
		v = s.On
	}
	n := s.Length
	if n == 0 {
		n = DefaultRawLength
	}
	b, err := rcswitch.NewBitString(v, n)
	if err != nil {
		return rcswitch.BitString{}, fmt.Errorf("switch %q: %w", s.Name, err)
	}
	return b, nil
}

// Address builds the receiver address the switch describes
func (s SwitchConfig) Address() (rcswitch.Address, error) {
	if s.Raw() {
		return nil, fmt.Errorf("switch %q has raw codes, not an address", s.Name)
	}
	switch strings.ToUpper(s.Scheme) {
	case "A":
		return rcswitch.SchemeA{GroupName: s.GroupName, Switch: s.Switch}, nil
	case "B":
		return rcswitch.SchemeB{Group: s.Group, Switch: s.Switch}, nil
	case "C":
		if len(s.Family) != 1 {
			return nil, fmt.Errorf("switch %q: family must be a single letter a-p", s.Name)
		}
		return rcswitch.SchemeC{Family: strings.ToLower(s.Family)[0], Group: s.Group, Device: s.Device}, nil
	default:
		return nil, fmt.Errorf("switch %q: unknown scheme %q (use A, B or C)", s.Name, s.Scheme)
	}
}
