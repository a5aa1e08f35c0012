// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"io"
	"os"

	"github.com/rs/zerolog"

	"github.com/Thermoquad/rcswitch/pkg/config"
)

// newLogger builds the console logger written to stderr
func newLogger(c config.LogConfig) (zerolog.Logger, error) {
	return newLoggerTo(os.Stderr, c)
}

func newLoggerTo(w io.Writer, c config.LogConfig) (zerolog.Logger, error) {
	level := zerolog.InfoLevel
	if c.Level != "" {
		l, err := zerolog.ParseLevel(c.Level)
		if err != nil {
			return zerolog.Nop(), err
		}
		level = l
	}

	out := zerolog.ConsoleWriter{
		Out:        w,
		TimeFormat: "15:04:05.000",
		NoColor:    c.NoColor,
	}
	return zerolog.New(out).Level(level).With().Timestamp().Logger(), nil
}
