// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package config

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/Thermoquad/rcswitch/pkg/rcswitch"
)

// Validate checks the configuration. It does not mutate it.
func Validate(cfg *Config) error {
	if _, err := cfg.ProtocolSpec(); err != nil {
		return fmt.Errorf("radio: %w", err)
	}
	if cfg.Radio.Repeat < 1 {
		return fmt.Errorf("radio: repeat must be at least 1, got %d", cfg.Radio.Repeat)
	}
	if cfg.Radio.Tolerance < 1 || cfg.Radio.Tolerance > 100 {
		return fmt.Errorf("radio: tolerance must be 1-100%%, got %d", cfg.Radio.Tolerance)
	}

	if err := validateBackend(cfg.Backend); err != nil {
		return fmt.Errorf("backend: %w", err)
	}

	if _, err := zerolog.ParseLevel(cfg.Log.Level); err != nil {
		return fmt.Errorf("log: %w", err)
	}

	if err := validateSweep(cfg.Sweep); err != nil {
		return fmt.Errorf("sweep: %w", err)
	}

	seen := make(map[string]bool)
	for i, s := range cfg.Switches {
		if s.Name == "" {
			return fmt.Errorf("switches[%d]: name is required", i)
		}
		if seen[s.Name] {
			return fmt.Errorf("switches[%d]: duplicate name %q", i, s.Name)
		}
		seen[s.Name] = true

		if err := validateSwitchCode(s); err != nil {
			return err
		}
		if s.Protocol != 0 {
			if _, err := rcswitch.LookupProtocol(s.Protocol); err != nil {
				return fmt.Errorf("switch %q: %w", s.Name, err)
			}
		}
	}
	return nil
}

func validateBackend(b BackendConfig) error {
	switch b.Kind {
	case BackendGPIO:
		if b.TxPin < 0 {
			return fmt.Errorf("tx_pin must be set")
		}
		if b.RxPin == b.TxPin {
			return fmt.Errorf("tx_pin and rx_pin are both %d", b.TxPin)
		}
	case BackendSerial:
		if b.Port == "" {
			return fmt.Errorf("port is required for the serial backend")
		}
		if b.Baud <= 0 {
			return fmt.Errorf("baud must be positive, got %d", b.Baud)
		}
	case BackendWebSocket:
		if b.URL == "" {
			return fmt.Errorf("url is required for the websocket backend")
		}
	default:
		return fmt.Errorf("unknown kind %q (use gpio, serial or websocket)", b.Kind)
	}
	return nil
}

func validateSwitchCode(s SwitchConfig) error {
	if !s.Raw() {
		addr, err := s.Address()
		if err != nil {
			return err
		}
		// Encoding checks every address field
		if _, err := rcswitch.Encode(addr, true); err != nil {
			return fmt.Errorf("switch %q: %w", s.Name, err)
		}
		return nil
	}

	if s.Scheme != "" {
		return fmt.Errorf("switch %q: scheme and raw codes are mutually exclusive", s.Name)
	}
	if s.On == 0 || s.Off == 0 {
		return fmt.Errorf("switch %q: raw codes need both on and off", s.Name)
	}
	for _, on := range []bool{true, false} {
		if _, err := s.RawCode(on); err != nil {
			return err
		}
	}
	return nil
}

func validateSweep(s SweepConfig) error {
	if s.Step == 0 {
		return fmt.Errorf("step must be positive")
	}
	if s.Retransmit < 1 {
		return fmt.Errorf("retransmit must be at least 1, got %d", s.Retransmit)
	}
	if s.Spacing < 0 {
		return fmt.Errorf("spacing must not be negative, got %v", s.Spacing)
	}
	if (s.Start == 0) != (s.End == 0) {
		return fmt.Errorf("start and end must be set together")
	}
	if s.End < s.Start {
		return fmt.Errorf("end %d µs is before start %d µs", s.End, s.Start)
	}
	return nil
}
