// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/Thermoquad/rcswitch/pkg/pulsebridge"
	"github.com/Thermoquad/rcswitch/pkg/rcswitch"
)

var (
	showAll       bool
	statsInterval int
	useTUI        bool
)

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Watch receiver health and decoded codes",
	Long: `Track received codes and receiver anomalies with statistics.

This command listens on the receiver and reports:
  - Decoded codes (a press repeated within a second is shown once)
  - Receive buffer overflows and dropped edges
  - Bridge CRC errors, decode errors and reported faults
  - Statistics and trends (edge rate, decode rate, success rate)

Use --show-all to display every decoded repetition.

Statistics are refreshed every second in the terminal UI, or printed at the
--stats-interval in text mode.`,
	RunE: runMonitor,
}

func init() {
	rootCmd.AddCommand(monitorCmd)
	monitorCmd.Flags().BoolVar(&showAll, "show-all", false, "Show every decoded repetition")
	monitorCmd.Flags().IntVar(&statsInterval, "stats-interval", 10, "Statistics update interval (seconds, text mode)")
	monitorCmd.Flags().BoolVar(&useTUI, "tui", true, "Use terminal UI (false for text mode)")
}

// repeatWindow is how long an identical code counts as the same press
const repeatWindow = time.Second

// codeDeduper folds the repetitions of one transmission into one event
type codeDeduper struct {
	last   rcswitch.DecodedCode
	window time.Duration
}

// repeat reports whether c repeats the previous code
func (d *codeDeduper) repeat(c rcswitch.DecodedCode) bool {
	same := !d.last.Timestamp.IsZero() &&
		c.Value == d.last.Value &&
		c.BitLength == d.last.BitLength &&
		c.ProtocolID == d.last.ProtocolID &&
		c.Timestamp.Sub(d.last.Timestamp) < d.window
	d.last = c
	return same
}

// receiveAnomalies describes counters that grew between two snapshots
func receiveAnomalies(prev, cur rcswitch.Statistics) []string {
	var out []string
	if cur.Overflows > prev.Overflows {
		out = append(out, fmt.Sprintf("receive buffer overflowed %d time(s)", cur.Overflows-prev.Overflows))
	}
	if cur.Dropped > prev.Dropped {
		out = append(out, fmt.Sprintf("%d edge(s) dropped, receiver queue overrun", cur.Dropped-prev.Dropped))
	}
	return out
}

// bridgeAnomalies describes bridge error counters that grew
func bridgeAnomalies(prev, cur pulsebridge.Statistics) []string {
	var out []string
	if cur.CRCErrors > prev.CRCErrors {
		out = append(out, fmt.Sprintf("%d bridge frame(s) failed CRC", cur.CRCErrors-prev.CRCErrors))
	}
	if cur.DecodeErrors > prev.DecodeErrors {
		out = append(out, fmt.Sprintf("%d bridge frame(s) failed to decode", cur.DecodeErrors-prev.DecodeErrors))
	}
	if cur.BridgeErrors > prev.BridgeErrors {
		out = append(out, fmt.Sprintf("bridge reported %d error(s)", cur.BridgeErrors-prev.BridgeErrors))
	}
	return out
}

func runMonitor(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	r, err := openRadio(ctx, radioOptions{receive: true})
	if err != nil {
		return err
	}
	defer r.Close()

	rx := newReceiver(r.line())
	if err := rx.EnableReceive(); err != nil {
		return err
	}
	defer rx.DisableReceive()

	if useTUI {
		return runTUIMode(ctx, r, rx)
	}
	return runTextMode(ctx, cmd.OutOrStdout(), r, rx)
}

// runTUIMode runs the monitor in the terminal UI
func runTUIMode(ctx context.Context, r *radio, rx *rcswitch.Receiver) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	m := initialModel(r.info, showAll, rx.Statistics)
	if r.bridge != nil {
		m.bridgeStats = r.bridge.Statistics
	}
	p := tea.NewProgram(m, tea.WithContext(ctx))

	// Receiver goroutine
	go func() {
		for {
			code, err := rx.WaitDecoded(ctx)
			if err != nil {
				return
			}
			p.Send(codeMsg(code))
		}
	}()

	if _, err := p.Run(); err != nil && ctx.Err() == nil {
		return fmt.Errorf("TUI error: %w", err)
	}
	return nil
}

// runTextMode prints codes and anomalies as lines
func runTextMode(ctx context.Context, out io.Writer, r *radio, rx *rcswitch.Receiver) error {
	fmt.Fprintf(out, "rcswitch - Receive Monitor\n")
	fmt.Fprintf(out, "Backend: %s\n", r.info)
	fmt.Fprintf(out, "Statistics interval: %d seconds\n", statsInterval)
	if showAll {
		fmt.Fprintf(out, "Mode: All repetitions\n")
	} else {
		fmt.Fprintf(out, "Mode: One line per press\n")
	}
	fmt.Fprintf(out, "Press Ctrl+C to exit\n\n")

	codes := make(chan rcswitch.DecodedCode, 16)
	go func() {
		defer close(codes)
		for {
			code, err := rx.WaitDecoded(ctx)
			if err != nil {
				return
			}
			codes <- code
		}
	}()

	statsTicker := time.NewTicker(time.Duration(statsInterval) * time.Second)
	defer statsTicker.Stop()
	anomalyTicker := time.NewTicker(time.Second)
	defer anomalyTicker.Stop()

	dedup := codeDeduper{window: repeatWindow}
	prevRx := rx.Statistics()
	var prevBridge pulsebridge.Statistics
	if r.bridge != nil {
		prevBridge = r.bridge.Statistics()
	}

	for {
		select {
		case code, ok := <-codes:
			if !ok {
				return nil
			}
			if dedup.repeat(code) && !showAll {
				continue
			}
			fmt.Fprint(out, rcswitch.FormatCode(code))

		case <-anomalyTicker.C:
			cur := rx.Statistics()
			issues := receiveAnomalies(prevRx, cur)
			prevRx = cur
			if r.bridge != nil {
				b := r.bridge.Statistics()
				issues = append(issues, bridgeAnomalies(prevBridge, b)...)
				prevBridge = b
			}
			for _, issue := range issues {
				fmt.Fprintf(out, "[%s] \033[1;33mANOMALY:\033[0m %s\n", time.Now().Format("15:04:05.000"), issue)
			}

		case <-statsTicker.C:
			s := rx.Statistics()
			fmt.Fprintln(out)
			fmt.Fprint(out, s.String())
			if r.bridge != nil {
				b := r.bridge.Statistics()
				fmt.Fprint(out, b.String())
			}
			fmt.Fprintln(out)

		case <-ctx.Done():
			return nil
		}
	}
}
