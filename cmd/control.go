// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/Thermoquad/rcswitch/pkg/config"
	"github.com/Thermoquad/rcswitch/pkg/pulsebridge"
	"github.com/Thermoquad/rcswitch/pkg/rcswitch"
)

var controlCmd = &cobra.Command{
	Use:   "control",
	Short: "Interactive TUI for switching outlets",
	Long: `Switch outlets from an interactive terminal UI.

The switches named in the config file are listed on the left. Enter toggles
the selected switch, or use the ON and OFF buttons. Any other code can be
typed into the address field, e.g. "B 1 3 on".

When the backend has a receiver, codes from other remotes update the state
of matching switches and are shown in the event log. With a pulse bridge the
bridge is pinged periodically and its uptime shown.

Tab switches between the list, the address field and the buttons.`,
	RunE: runControl,
}

func init() {
	rootCmd.AddCommand(controlCmd)
}

// controlBackend is what the control TUI needs from an opened radio
type controlBackend struct {
	info        string
	send        func(ctx context.Context, t codeTarget) error
	ping        func(ctx context.Context) (pulsebridge.PingResult, error) // nil without a bridge
	rxStats     func() rcswitch.Statistics                               // nil without a receiver
	bridgeStats func() pulsebridge.Statistics                            // nil without a bridge
}

func runControl(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	receive := cfg.Backend.Kind != config.BackendGPIO || cfg.Backend.RxPin >= 0
	r, err := openRadio(ctx, radioOptions{receive: receive})
	if err != nil {
		return err
	}
	defer r.Close()

	line := r.line()
	tx := newTransmitter(r, line)
	backend := controlBackend{
		info: r.info,
		send: func(ctx context.Context, t codeTarget) error {
			return transmit(ctx, tx, t)
		},
	}

	var rx *rcswitch.Receiver
	if r.input != nil {
		rx = newReceiver(line)
		if err := rx.EnableReceive(); err != nil {
			return fmt.Errorf("enable receive: %w", err)
		}
		defer rx.DisableReceive()
		backend.rxStats = rx.Statistics
	}
	if r.bridge != nil {
		backend.ping = r.bridge.Ping
		backend.bridgeStats = r.bridge.Statistics
	}

	m, err := initialControlModel(ctx, cfg, backend)
	if err != nil {
		return err
	}

	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithMouseCellMotion(), tea.WithContext(ctx))

	// Forward received codes to the TUI
	if rx != nil {
		go func() {
			for {
				code, err := rx.WaitDecoded(ctx)
				if err != nil {
					return
				}
				p.Send(controlCodeMsg(code))
			}
		}()
	}

	// Watch the bridge link
	if r.bridge != nil {
		go func() {
			select {
			case <-r.bridge.Done():
				p.Send(connectionLostMsg{err: r.bridge.Err()})
			case <-ctx.Done():
			}
		}()
	}

	if _, err := p.Run(); err != nil && ctx.Err() == nil {
		return fmt.Errorf("TUI error: %w", err)
	}
	return nil
}
