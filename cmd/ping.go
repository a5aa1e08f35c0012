// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/rcswitch/pkg/config"
)

var (
	pingTimeout int
	pingCount   int
)

var pingCmd = &cobra.Command{
	Use:   "ping",
	Short: "Test a pulse bridge with PING_REQUEST",
	Long: `Send PING_REQUEST frames to the pulse bridge and wait for PING_RESPONSE.

This is useful for verifying:
  - The serial port or WebSocket connection is established
  - HTTP Basic authentication works
  - The bridge firmware is processing frames

Exit codes:
  0 - All pings successful
  1 - One or more pings failed/timed out
  2 - Connection error`,
	RunE: runPing,
}

func init() {
	rootCmd.AddCommand(pingCmd)
	pingCmd.Flags().IntVar(&pingTimeout, "timeout", 5, "Timeout in seconds for each ping")
	pingCmd.Flags().IntVar(&pingCount, "count", 3, "Number of pings to send")
}

func runPing(cmd *cobra.Command, args []string) error {
	if cfg.Backend.Kind == config.BackendGPIO {
		return fmt.Errorf("ping needs a pulse bridge (use --backend serial or websocket)")
	}

	timeout := time.Duration(pingTimeout) * time.Second
	client, info, err := openBridge(cmd.Context(), cfg.Backend, radioOptions{replyTimeout: timeout})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Connection error: %v\n", err)
		os.Exit(2)
	}
	defer client.Close()

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "rcswitch - Bridge Ping Test\n")
	fmt.Fprintf(out, "Connection: %s\n", info)
	fmt.Fprintf(out, "Timeout: %d seconds per ping\n", pingTimeout)
	fmt.Fprintf(out, "Count: %d pings\n\n", pingCount)

	successCount := 0
	failCount := 0
	for i := 1; i <= pingCount; i++ {
		fmt.Fprintf(out, "Ping %d/%d: ", i, pingCount)

		ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
		res, err := client.Ping(ctx)
		cancel()
		if err != nil {
			fmt.Fprintf(out, "FAILED: %v\n", err)
			failCount++
		} else {
			fmt.Fprintf(out, "PONG from bridge, uptime=%s, rtt=%v\n",
				formatUptime(uint64(res.Uptime.Milliseconds())), res.RoundTrip.Round(time.Millisecond))
			successCount++
		}

		if i < pingCount {
			time.Sleep(100 * time.Millisecond)
		}
	}

	fmt.Fprintf(out, "\n--- Ping statistics ---\n")
	fmt.Fprintf(out, "%d pings sent, %d responses received, %.0f%% packet loss\n",
		pingCount, successCount, float64(failCount)/float64(pingCount)*100)

	if failCount > 0 {
		client.Close()
		os.Exit(1)
	}
	return nil
}
