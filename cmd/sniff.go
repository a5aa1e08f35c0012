// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/rcswitch/pkg/pulsebridge"
	"github.com/Thermoquad/rcswitch/pkg/rcswitch"
)

var (
	sniffFrames bool
	sniffStats  bool
)

var sniffCmd = &cobra.Command{
	Use:   "sniff",
	Short: "Print received codes in human-readable format",
	Long: `Continuously decode and display codes picked up by the receiver.

Each code is shown with timestamp, protocol, bit length, measured pulse
length, binary and tri-state readings and, when it matches a known switch
scheme, the decoded address.

With a pulse bridge backend, --frames also prints every bridge frame.`,
	RunE: runSniff,
}

func init() {
	rootCmd.AddCommand(sniffCmd)
	sniffCmd.Flags().BoolVar(&sniffFrames, "frames", false, "Print raw bridge frames (serial and websocket backends)")
	sniffCmd.Flags().BoolVar(&sniffStats, "stats", false, "Print receive statistics on exit")
}

func newReceiver(line *rcswitch.Line) *rcswitch.Receiver {
	return rcswitch.NewReceiver(line,
		rcswitch.WithTolerance(cfg.Radio.Tolerance),
		rcswitch.WithLogger(logger.With().Str("component", "receiver").Logger()),
	)
}

func runSniff(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	out := cmd.OutOrStdout()
	opts := radioOptions{receive: true}
	if sniffFrames {
		opts.onPacket = func(p *pulsebridge.Packet) {
			fmt.Fprint(out, pulsebridge.FormatPacket(p))
		}
	}

	r, err := openRadio(ctx, opts)
	if err != nil {
		return err
	}
	defer r.Close()

	fmt.Fprintf(out, "rcswitch - Receive Log\n")
	fmt.Fprintf(out, "Backend: %s\n", r.info)
	fmt.Fprintf(out, "Tolerance: %d%%\n", cfg.Radio.Tolerance)
	fmt.Fprintf(out, "Press Ctrl+C to exit\n\n")

	rx := newReceiver(r.line())
	if err := rx.EnableReceive(); err != nil {
		return err
	}
	defer rx.DisableReceive()

	for {
		code, err := rx.WaitDecoded(ctx)
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			return err
		}
		fmt.Fprint(out, rcswitch.FormatCode(code))
	}

	if sniffStats {
		s := rx.Statistics()
		fmt.Fprintf(out, "\n%s", s.String())
	}
	return nil
}
