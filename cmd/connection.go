// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"syscall"
	"time"

	"golang.org/x/term"

	"github.com/Thermoquad/rcswitch/pkg/config"
	"github.com/Thermoquad/rcswitch/pkg/gpioline"
	"github.com/Thermoquad/rcswitch/pkg/pulsebridge"
	"github.com/Thermoquad/rcswitch/pkg/rcswitch"
)

// errNoReceiver is returned when a command needs a receiver the backend lacks
var errNoReceiver = errors.New("backend has no receiver (set --rx-pin)")

// radio is an opened backend
type radio struct {
	out    rcswitch.Output
	input  rcswitch.EdgeSource // nil when transmit-only
	bridge *pulsebridge.Client // nil for gpio
	info   string

	closers []io.Closer
}

// Close releases the backend
func (r *radio) Close() error {
	var errs []error
	for i := len(r.closers) - 1; i >= 0; i-- {
		if err := r.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// line returns the line shared by a transmitter and receiver on this radio
func (r *radio) line() *rcswitch.Line {
	return rcswitch.NewLine(r.input)
}

// radioOptions tunes openRadio
type radioOptions struct {
	receive      bool                      // open the receiver input
	onPacket     func(*pulsebridge.Packet) // bridge frame observer
	replyTimeout time.Duration             // bridge reply timeout, 0 for the default
}

// openRadio opens the configured backend
func openRadio(ctx context.Context, opts radioOptions) (*radio, error) {
	b := cfg.Backend
	switch b.Kind {
	case config.BackendGPIO:
		return openGPIO(b, opts)
	case config.BackendSerial, config.BackendWebSocket:
		client, info, err := openBridge(ctx, b, opts)
		if err != nil {
			return nil, err
		}
		r := &radio{out: client, bridge: client, info: info, closers: []io.Closer{client}}
		if opts.receive {
			r.input = client
		}
		return r, nil
	default:
		return nil, fmt.Errorf("unknown backend %q", b.Kind)
	}
}

func openGPIO(b config.BackendConfig, opts radioOptions) (*radio, error) {
	out, err := gpioline.OpenOutput(b.TxPin)
	if err != nil {
		return nil, err
	}
	r := &radio{
		out:     out,
		info:    fmt.Sprintf("GPIO: tx=%d", b.TxPin),
		closers: []io.Closer{out},
	}

	if opts.receive {
		if b.RxPin < 0 {
			r.Close()
			return nil, errNoReceiver
		}
		in, err := gpioline.OpenInput(b.RxPin)
		if err != nil {
			r.Close()
			return nil, err
		}
		r.input = in
		r.closers = append(r.closers, in)
		r.info += fmt.Sprintf(" rx=%d", b.RxPin)
	}

	logger.Debug().Str("backend", r.info).Msg("radio opened")
	return r, nil
}

// openBridge connects to a pulse bridge over serial or WebSocket
func openBridge(ctx context.Context, b config.BackendConfig, opts radioOptions) (*pulsebridge.Client, string, error) {
	var (
		conn io.ReadWriteCloser
		info string
		err  error
	)

	switch b.Kind {
	case config.BackendWebSocket:
		password := ""
		if b.Username != "" {
			password, err = GetPassword()
			if err != nil {
				return nil, "", err
			}
		}
		conn, err = pulsebridge.DialWebSocket(ctx, b.URL, b.Username, password, b.NoSSLVerify)
		info = fmt.Sprintf("WebSocket: %s", b.URL)
	case config.BackendSerial:
		conn, err = pulsebridge.OpenSerial(b.Port, b.Baud)
		info = fmt.Sprintf("Serial: %s @ %d baud", b.Port, b.Baud)
	default:
		return nil, "", fmt.Errorf("backend %q is not a pulse bridge (use --backend serial or websocket)", b.Kind)
	}
	if err != nil {
		return nil, "", err
	}

	clientOpts := []pulsebridge.Option{pulsebridge.WithLogger(logger.With().Str("component", "bridge").Logger())}
	if opts.onPacket != nil {
		clientOpts = append(clientOpts, pulsebridge.WithPacketHandler(opts.onPacket))
	}
	if opts.replyTimeout > 0 {
		clientOpts = append(clientOpts, pulsebridge.WithTimeout(opts.replyTimeout))
	}

	logger.Debug().Str("backend", info).Msg("bridge connected")
	return pulsebridge.NewClient(conn, clientOpts...), info, nil
}

// GetPassword retrieves password from environment or prompts user
func GetPassword() (string, error) {
	if pw := os.Getenv("RCSWITCH_PASSWORD"); pw != "" {
		return pw, nil
	}

	fmt.Fprint(os.Stderr, "Password: ")

	passwordBytes, err := term.ReadPassword(int(syscall.Stdin))
	if err != nil {
		// Not a terminal, read a line instead
		reader := bufio.NewReader(os.Stdin)
		password, err := reader.ReadString('\n')
		if err != nil {
			return "", fmt.Errorf("failed to read password: %w", err)
		}
		fmt.Fprintln(os.Stderr)
		return strings.TrimSpace(password), nil
	}

	fmt.Fprintln(os.Stderr)
	return string(passwordBytes), nil
}
