// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/Thermoquad/rcswitch/pkg/config"
)

var (
	configPath string

	// Backend flags
	backendKind   string
	portName      string
	baudRate      int
	wsURL         string
	wsUsername    string
	wsNoSSLVerify bool
	txPin         int
	rxPin         int

	// Radio flags
	protocolID  int
	pulseLength uint32
	repeatCount int
	tolerance   int

	logLevel string
	noColor  bool

	// Resolved in PersistentPreRunE
	cfg    *config.Config
	logger zerolog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "rcswitch",
	Short: "Send and receive 315/433 MHz remote switch codes",
	Long: `rcswitch - A CLI tool for operating remote controlled mains switches.

Encodes switch addresses into tri-state codewords, transmits them as timed
pulse trains and decodes codes picked up by a receiver module.

Backends:
  GPIO:      --backend gpio [--tx-pin 17] [--rx-pin 27]
  Serial:    --backend serial --port /dev/ttyACM0 [--baud 115200]
  WebSocket: --backend websocket --url ws://host/path [--username user]

The serial and WebSocket backends talk to a pulse bridge microcontroller that
times pulses and edges itself.

Settings are read from --config (YAML or TOML) and overridden by flags.
For WebSocket authentication, the password is read from the RCSWITCH_PASSWORD
environment variable, or prompted interactively if not set. There is no
--password flag, so credentials stay out of shell history.`,
	Version:           "1.0.0",
	SilenceUsage:      true,
	PersistentPreRunE: loadConfig,
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&configPath, "config", "c", "", "Config file (.yaml, .yml or .toml)")

	flags.StringVar(&backendKind, "backend", "", "Radio backend: gpio, serial or websocket")
	flags.StringVarP(&portName, "port", "p", "", "Serial port device (serial backend)")
	flags.IntVarP(&baudRate, "baud", "b", 115200, "Baud rate (serial backend)")
	flags.StringVarP(&wsURL, "url", "u", "", "WebSocket URL, ws:// or wss:// (websocket backend)")
	flags.StringVar(&wsUsername, "username", "", "Username for HTTP Basic auth")
	flags.BoolVar(&wsNoSSLVerify, "no-ssl-verify", false, "Skip TLS certificate verification (wss:// only)")
	flags.IntVar(&txPin, "tx-pin", 17, "Transmitter GPIO pin (gpio backend)")
	flags.IntVar(&rxPin, "rx-pin", 27, "Receiver GPIO pin, -1 to disable (gpio backend)")

	flags.IntVarP(&protocolID, "protocol", "P", 1, "Protocol id")
	flags.Uint32VarP(&pulseLength, "pulse-length", "l", 0, "Pulse length in µs (0 = protocol default)")
	flags.IntVarP(&repeatCount, "repeat", "r", 10, "Transmissions per code")
	flags.IntVar(&tolerance, "tolerance", 60, "Receive tolerance in percent")

	flags.StringVar(&logLevel, "log-level", "info", "Log level: trace, debug, info, warn, error")
	flags.BoolVar(&noColor, "no-color", false, "Disable colored log output")
}

// loadConfig reads the config file and applies flags given on the command line
func loadConfig(cmd *cobra.Command, args []string) error {
	var err error
	if configPath != "" {
		cfg, err = config.Load(configPath)
		if err != nil {
			return err
		}
	} else {
		cfg = config.Default()
	}

	flags := cmd.Flags()
	if flags.Changed("backend") {
		cfg.Backend.Kind = backendKind
	} else if configPath == "" {
		// Without a config file the connection flags pick the backend
		switch {
		case flags.Changed("url"):
			cfg.Backend.Kind = config.BackendWebSocket
		case flags.Changed("port"):
			cfg.Backend.Kind = config.BackendSerial
		}
	}
	if flags.Changed("port") {
		cfg.Backend.Port = portName
	}
	if flags.Changed("baud") {
		cfg.Backend.Baud = baudRate
	}
	if flags.Changed("url") {
		cfg.Backend.URL = wsURL
	}
	if flags.Changed("username") {
		cfg.Backend.Username = wsUsername
	}
	if flags.Changed("no-ssl-verify") {
		cfg.Backend.NoSSLVerify = wsNoSSLVerify
	}
	if flags.Changed("tx-pin") {
		cfg.Backend.TxPin = txPin
	}
	if flags.Changed("rx-pin") {
		cfg.Backend.RxPin = rxPin
	}
	if flags.Changed("protocol") {
		cfg.Radio.Protocol = protocolID
	}
	if flags.Changed("pulse-length") {
		cfg.Radio.PulseLength = pulseLength
	}
	if flags.Changed("repeat") {
		cfg.Radio.Repeat = repeatCount
	}
	if flags.Changed("tolerance") {
		cfg.Radio.Tolerance = tolerance
	}
	if flags.Changed("log-level") {
		cfg.Log.Level = logLevel
	}
	if flags.Changed("no-color") {
		cfg.Log.NoColor = noColor
	}

	if err := config.Validate(cfg); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logger, err = newLogger(cfg.Log)
	return err
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}
