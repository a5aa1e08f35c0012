// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/rcswitch/pkg/rcswitch"
)

var encodeFlags codeFlags

var encodeCmd = &cobra.Command{
	Use:   "encode <scheme> <fields...> on|off",
	Short: "Show the codeword and pulse train for a code",
	Long: `Encode a switch address without transmitting it.

Prints the tri-state codeword, the binary pulse sequence, one repetition of
the pulse train as high/low pairs in µs and the air time of a transmission.

` + addressUsage,
	RunE: runEncode,
}

func init() {
	rootCmd.AddCommand(encodeCmd)
	encodeFlags.register(encodeCmd)
}

func runEncode(cmd *cobra.Command, args []string) error {
	t, err := encodeFlags.resolve(cmd, cfg, args)
	if err != nil {
		return err
	}
	return printEncoding(cmd.OutOrStdout(), t, cfg.Radio.Repeat)
}

func printEncoding(w io.Writer, t codeTarget, repeat int) error {
	pulses, err := t.pulses()
	if err != nil {
		return err
	}

	if t.codeword != nil {
		fmt.Fprint(w, rcswitch.FormatCodeword(t.codeword))
	} else {
		fmt.Fprintf(w, "Bits:      %s\n", rcswitch.FormatBits(t.bits))
	}
	fmt.Fprintf(w, "Protocol:  %s\n", t.protocol)
	fmt.Fprintf(w, "Pulses:    %s\n", rcswitch.FormatPulses(pulses))
	fmt.Fprintf(w, "Air time:  %v per repetition, %v for %d\n",
		rcswitch.TrainDuration(pulses, 1).Round(time.Microsecond),
		rcswitch.TrainDuration(pulses, repeat).Round(time.Microsecond),
		repeat)
	return nil
}
