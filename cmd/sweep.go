// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/rcswitch/pkg/config"
	"github.com/Thermoquad/rcswitch/pkg/rcswitch"
)

var (
	sweepFlags      codeFlags
	sweepStart      uint32
	sweepEnd        uint32
	sweepStep       uint32
	sweepRetransmit int
	sweepSpacing    time.Duration
)

var sweepCmd = &cobra.Command{
	Use:   "sweep <scheme> <fields...> on|off",
	Short: "Transmit a code across a range of pulse lengths",
	Long: `Transmit a code once per pulse length between --start and --end.

Cheap receivers drift, and some only react to a pulse length a little off the
protocol default. Sweeping the pulse length finds a value that works; set it
with --pulse-length or pulse_length in the config file afterwards.

Without --start and --end the sweep covers the protocol pulse length ±5 µs.
Flags left unset fall back to the sweep section of the config file.

` + addressUsage + "\n\n" + allUsage,
	RunE: runSweep,
}

func init() {
	rootCmd.AddCommand(sweepCmd)
	sweepFlags.registerAll(sweepCmd)
	sweepCmd.Flags().Uint32Var(&sweepStart, "start", 0, "First pulse length in µs")
	sweepCmd.Flags().Uint32Var(&sweepEnd, "end", 0, "Last pulse length in µs (inclusive)")
	sweepCmd.Flags().Uint32Var(&sweepStep, "step", 1, "Pulse length increment in µs")
	sweepCmd.Flags().IntVar(&sweepRetransmit, "retransmit", 1, "Transmissions per pulse length")
	sweepCmd.Flags().DurationVar(&sweepSpacing, "spacing", 500*time.Millisecond, "Pause between pulse lengths")
}

// sweepSettings merges the sweep flags over the config file
func sweepSettings(cmd *cobra.Command, c config.SweepConfig) config.SweepConfig {
	flags := cmd.Flags()
	if flags.Changed("start") {
		c.Start = sweepStart
	}
	if flags.Changed("end") {
		c.End = sweepEnd
	}
	if flags.Changed("step") {
		c.Step = sweepStep
	}
	if flags.Changed("retransmit") {
		c.Retransmit = sweepRetransmit
	}
	if flags.Changed("spacing") {
		c.Spacing = sweepSpacing
	}
	return c
}

// sweepRange returns the pulse lengths to try
func sweepRange(nominal, start, end, step uint32) ([]uint32, error) {
	if start == 0 && end == 0 {
		start, end = nominal-5, nominal+5
		if nominal <= 5 {
			start = 1
		}
	}
	if start == 0 || end < start {
		return nil, fmt.Errorf("invalid sweep range %d-%d µs", start, end)
	}
	if step == 0 {
		return nil, fmt.Errorf("step must be positive")
	}

	var out []uint32
	for us := start; ; us += step {
		out = append(out, us)
		if end-us < step {
			break
		}
	}
	return out, nil
}

func runSweep(cmd *cobra.Command, args []string) error {
	targets, err := sweepFlags.resolveAll(cmd, cfg, args)
	if err != nil {
		return err
	}
	settings := sweepSettings(cmd, cfg.Sweep)
	if settings.Retransmit < 1 {
		return fmt.Errorf("retransmit must be at least 1, got %d", settings.Retransmit)
	}
	ranges := make([][]uint32, len(targets))
	for i, t := range targets {
		if ranges[i], err = sweepRange(t.protocol.PulseLength, settings.Start, settings.End, settings.Step); err != nil {
			return err
		}
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	r, err := openRadio(ctx, radioOptions{})
	if err != nil {
		return err
	}
	defer r.Close()

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "rcswitch - Pulse Length Sweep\n")
	fmt.Fprintf(out, "Backend: %s\n", r.info)

	tx := newTransmitter(r, r.line())
	for i, t := range targets {
		if err := sweepTarget(ctx, out, tx, t, ranges[i], settings); err != nil {
			return err
		}
	}

	fmt.Fprintf(out, "\n--- Sweep complete ---\n")
	return nil
}

// sweepTarget sends t at each pulse length, pausing between lengths
func sweepTarget(ctx context.Context, out io.Writer, tx *rcswitch.Transmitter, t codeTarget, lengths []uint32, s config.SweepConfig) error {
	fmt.Fprintf(out, "\nCode: %s\n", t.label)
	fmt.Fprintf(out, "Pulse lengths: %d-%d µs (%d steps)\n\n", lengths[0], lengths[len(lengths)-1], len(lengths))

	for i, us := range lengths {
		step := t.withPulseLength(us)
		fmt.Fprintf(out, "[%d/%d] %d µs: ", i+1, len(lengths), us)

		for n := 0; n < s.Retransmit; n++ {
			if err := transmit(ctx, tx, step); err != nil {
				fmt.Fprintf(out, "FAILED\n")
				return err
			}
		}
		fmt.Fprintf(out, "sent\n")
		logger.Debug().Str("code", t.label).Uint32("pulse_us", us).Int("retransmit", s.Retransmit).Msg("sweep step sent")

		if i < len(lengths)-1 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(s.Spacing):
			}
		}
	}
	return nil
}
