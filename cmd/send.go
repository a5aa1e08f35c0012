// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/rcswitch/pkg/rcswitch"
)

var sendFlags codeFlags

var sendCmd = &cobra.Command{
	Use:   "send <scheme> <fields...> on|off",
	Short: "Transmit a switch code",
	Long: `Transmit a code repeat times (default 10) on the configured backend.

` + addressUsage + "\n\n" + allUsage,
	RunE: runSend,
}

func init() {
	rootCmd.AddCommand(sendCmd)
	sendFlags.registerAll(sendCmd)
}

func runSend(cmd *cobra.Command, args []string) error {
	targets, err := sendFlags.resolveAll(cmd, cfg, args)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	r, err := openRadio(ctx, radioOptions{})
	if err != nil {
		return err
	}
	defer r.Close()

	tx := newTransmitter(r, r.line())
	return sendTargets(ctx, cmd.OutOrStdout(), tx, targets)
}

// sendTargets transmits each target in turn. A failed target does not stop
// the rest unless ctx is done.
func sendTargets(ctx context.Context, out io.Writer, tx *rcswitch.Transmitter, targets []codeTarget) error {
	var errs []error
	for _, t := range targets {
		start := time.Now()
		if err := transmit(ctx, tx, t); err != nil {
			fmt.Fprintf(out, "FAILED %s: %v\n", t.label, err)
			errs = append(errs, err)
			if ctx.Err() != nil {
				break
			}
			continue
		}
		fmt.Fprintf(out, "Sent %s (%s, %d times) in %v\n",
			t.label, t.protocol, tx.Repeat(), time.Since(start).Round(time.Millisecond))
	}
	if len(errs) > 1 {
		logger.Warn().Int("failed", len(errs)).Int("targets", len(targets)).Msg("send completed with errors")
	}
	return errors.Join(errs...)
}

func newTransmitter(r *radio, line *rcswitch.Line) *rcswitch.Transmitter {
	return rcswitch.NewTransmitter(r.out, line,
		rcswitch.WithRepeat(cfg.Radio.Repeat),
		rcswitch.WithLogger(logger.With().Str("component", "transmitter").Logger()),
	)
}

func transmit(ctx context.Context, tx *rcswitch.Transmitter, t codeTarget) error {
	var err error
	if t.codeword != nil {
		err = tx.SendCodeword(ctx, t.codeword, t.protocol)
	} else {
		err = tx.SendBits(ctx, t.bits, t.protocol)
	}
	if err != nil {
		return fmt.Errorf("send %s: %w", t.label, err)
	}
	return nil
}
