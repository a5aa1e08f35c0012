// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad
//
// rcswitch - 433/315 MHz remote switch transmitter and receiver
//
// A CLI tool for sending and decoding pulse-timed OOK codes of common
// remote-controlled outlets, over GPIO or a pulse bridge.

package main

import (
	"os"

	"github.com/Thermoquad/rcswitch/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
