// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/rcswitch/pkg/rcswitch"
)

var (
	receiveTestTimeout int
	receiveTestFlags   codeFlags
)

var receiveTestCmd = &cobra.Command{
	Use:   "receive_test [<scheme> <fields...> on|off]",
	Short: "Test the receiver by waiting for a decoded code",
	Long: `Wait for a code to be decoded until timeout.

Without an address any decoded code passes. With an address (or --name,
--codeword, --bits, --value) only that code passes; other codes are printed
and ignored.

Exit codes:
  0 - Code received before timeout
  1 - Timeout reached without receiving a code
  2 - Backend error

Useful for checking receiver wiring, or a remote's address, from scripts.`,
	RunE: runReceiveTest,
}

func init() {
	rootCmd.AddCommand(receiveTestCmd)
	receiveTestCmd.Flags().IntVar(&receiveTestTimeout, "timeout", 10, "Timeout in seconds to wait for a code")
	receiveTestFlags.register(receiveTestCmd)
}

// codeMatches reports whether a decoded code carries the wanted bits
func codeMatches(code rcswitch.DecodedCode, want *rcswitch.BitString) bool {
	if want == nil {
		return true
	}
	return code.BitLength == uint32(want.Len()) && code.Value == want.Value()
}

func runReceiveTest(cmd *cobra.Command, args []string) error {
	var want *rcswitch.BitString
	anyCode := len(args) == 0 && receiveTestFlags.name == "" && receiveTestFlags.codeword == "" &&
		receiveTestFlags.bits == "" && !cmd.Flags().Changed("value")
	if !anyCode {
		t, err := receiveTestFlags.resolve(cmd, cfg, args)
		if err != nil {
			return err
		}
		if t.bits.Len() == 0 {
			return fmt.Errorf("%s is too long to be received", t.label)
		}
		want = &t.bits
	}

	timeout := time.Duration(receiveTestTimeout) * time.Second
	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	r, err := openRadio(ctx, radioOptions{receive: true})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Backend error: %v\n", err)
		os.Exit(2)
	}
	defer r.Close()

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "rcswitch - Receive Test\n")
	fmt.Fprintf(out, "Backend: %s\n", r.info)
	fmt.Fprintf(out, "Timeout: %d seconds\n", receiveTestTimeout)
	if want != nil {
		fmt.Fprintf(out, "Waiting for %s...\n\n", want)
	} else {
		fmt.Fprintf(out, "Waiting for any code...\n\n")
	}

	rx := newReceiver(r.line())
	if err := rx.EnableReceive(); err != nil {
		r.Close()
		fmt.Fprintf(os.Stderr, "Backend error: %v\n", err)
		os.Exit(2)
	}

	for {
		code, err := rx.WaitDecoded(ctx)
		if err != nil {
			rx.DisableReceive()
			r.Close()
			fmt.Fprintf(os.Stderr, "TIMEOUT: No matching code received within %d seconds\n", receiveTestTimeout)
			os.Exit(1)
		}
		if !codeMatches(code, want) {
			fmt.Fprintf(out, "(ignoring other code)\n%s", rcswitch.FormatCode(code))
			continue
		}

		rx.DisableReceive()
		fmt.Fprintf(out, "SUCCESS: Received code\n%s", rcswitch.FormatCode(code))
		return nil
	}
}
