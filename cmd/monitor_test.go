// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"bytes"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/Thermoquad/rcswitch/pkg/config"
	"github.com/Thermoquad/rcswitch/pkg/pulsebridge"
	"github.com/Thermoquad/rcswitch/pkg/rcswitch"
)

// decodedFor returns the code a receiver reports for cw
func decodedFor(t *testing.T, cw string, at time.Time) rcswitch.DecodedCode {
	t.Helper()
	parsed, err := rcswitch.ParseCodeword(cw)
	if err != nil {
		t.Fatalf("ParseCodeword(%q) failed: %v", cw, err)
	}
	bits, err := parsed.Bits()
	if err != nil {
		t.Fatalf("Bits failed: %v", err)
	}
	return rcswitch.DecodedCode{
		Value:       bits.Value(),
		BitLength:   uint32(bits.Len()),
		PulseLength: 350,
		ProtocolID:  1,
		Timestamp:   at,
	}
}

func TestCodeDeduper(t *testing.T) {
	d := codeDeduper{window: time.Second}
	start := time.Now()
	a := decodedFor(t, "0FFFFF0FFFFF", start)
	b := decodedFor(t, "0FFFFF0FFFF0", start)

	steps := []struct {
		code   rcswitch.DecodedCode
		offset time.Duration
		repeat bool
	}{
		{a, 0, false},
		{a, 100 * time.Millisecond, true},
		{a, 900 * time.Millisecond, true},
		{b, 950 * time.Millisecond, false},
		{a, 1000 * time.Millisecond, false},
		{a, 2100 * time.Millisecond, false}, // gap longer than the window
	}

	for i, s := range steps {
		c := s.code
		c.Timestamp = start.Add(s.offset)
		if got := d.repeat(c); got != s.repeat {
			t.Errorf("step %d: repeat = %v, want %v", i, got, s.repeat)
		}
	}
}

func TestReceiveAnomalies(t *testing.T) {
	prev := rcswitch.Statistics{Overflows: 1, Dropped: 0, NoMatch: 5}
	cur := rcswitch.Statistics{Overflows: 3, Dropped: 4, NoMatch: 50}

	got := receiveAnomalies(prev, cur)
	if len(got) != 2 {
		t.Fatalf("receiveAnomalies = %v, want 2 entries", got)
	}
	if !strings.Contains(got[0], "overflowed 2 time(s)") {
		t.Errorf("got[0] = %q", got[0])
	}
	if !strings.Contains(got[1], "4 edge(s) dropped") {
		t.Errorf("got[1] = %q", got[1])
	}

	if got := receiveAnomalies(cur, cur); len(got) != 0 {
		t.Errorf("unchanged counters reported %v", got)
	}
}

func TestBridgeAnomalies(t *testing.T) {
	prev := pulsebridge.Statistics{CRCErrors: 1}
	cur := pulsebridge.Statistics{CRCErrors: 2, DecodeErrors: 3, BridgeErrors: 1, TotalPackets: 100}

	got := bridgeAnomalies(prev, cur)
	want := []string{
		"1 bridge frame(s) failed CRC",
		"3 bridge frame(s) failed to decode",
		"bridge reported 1 error(s)",
	}
	if len(got) != len(want) {
		t.Fatalf("bridgeAnomalies = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("got[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestFormatUptime(t *testing.T) {
	tests := []struct {
		ms   uint64
		want string
	}{
		{0, "0 seconds"},
		{999, "0 seconds"},
		{1000, "1 second"},
		{42000, "42 seconds"},
		{61000, "1 minute and 1 second"},
		{7200000, "2 hours"},
		{90061000, "1 day, 1 hour, 1 minute, and 1 second"},
		{2*86400000 + 3000, "2 days and 3 seconds"},
	}

	for _, tt := range tests {
		if got := formatUptime(tt.ms); got != tt.want {
			t.Errorf("formatUptime(%d) = %q, want %q", tt.ms, got, tt.want)
		}
	}
}

func TestNewLoggerTo(t *testing.T) {
	var buf bytes.Buffer
	l, err := newLoggerTo(&buf, config.LogConfig{Level: "debug", NoColor: true})
	if err != nil {
		t.Fatalf("newLoggerTo failed: %v", err)
	}

	l.Debug().Str("backend", "gpio").Msg("radio opened")
	l.Trace().Msg("hidden")

	out := buf.String()
	if !strings.Contains(out, "DBG") || !strings.Contains(out, "radio opened") || !strings.Contains(out, "backend=gpio") {
		t.Errorf("output = %q", out)
	}
	if strings.Contains(out, "hidden") {
		t.Errorf("trace message written at debug level: %q", out)
	}

	if _, err := newLoggerTo(&buf, config.LogConfig{Level: "loud"}); err == nil {
		t.Error("invalid level accepted")
	}
}

func TestMonitorModel_Codes(t *testing.T) {
	m := initialModel("test backend", false, nil)
	now := time.Now()
	code := decodedFor(t, "0FFFFF0FFFFF", now)

	var tm tea.Model = m
	tm, _ = tm.Update(codeMsg(code))
	code.Timestamp = now.Add(100 * time.Millisecond)
	tm, _ = tm.Update(codeMsg(code))

	got := tm.(model)
	if got.presses != 1 {
		t.Errorf("presses = %d, want 1", got.presses)
	}
	if len(got.eventLog) != 1 || got.eventLog[0].message != "P1 22 bits value=698709 B group=1 switch=3 ON" {
		t.Errorf("eventLog = %+v", got.eventLog)
	}
	if got.lastCode == nil || !got.lastCode.Timestamp.Equal(code.Timestamp) {
		t.Errorf("lastCode = %+v", got.lastCode)
	}
	if !strings.Contains(got.View(), "B group=1 switch=3 ON") {
		t.Error("View does not show the decoded code")
	}

	// --show-all logs every repetition
	all := initialModel("test backend", true, nil)
	tm = all
	tm, _ = tm.Update(codeMsg(code))
	tm, _ = tm.Update(codeMsg(code))
	if n := len(tm.(model).eventLog); n != 2 {
		t.Errorf("show-all logged %d entries, want 2", n)
	}
}

func TestMonitorModel_Anomalies(t *testing.T) {
	rx := rcswitch.Statistics{Edges: 100}
	link := pulsebridge.Statistics{}
	m := initialModel("test backend", false, func() rcswitch.Statistics { return rx })
	m.bridgeStats = func() pulsebridge.Statistics { return link }

	var tm tea.Model = m
	tm, _ = tm.Update(tickMsg(time.Now()))
	if n := len(tm.(model).eventLog); n != 0 {
		t.Fatalf("first tick logged %d entries", n)
	}

	rx.Overflows = 2
	link.CRCErrors = 1
	tm, cmd := tm.Update(tickMsg(time.Now()))
	if cmd == nil {
		t.Error("tick did not schedule the next tick")
	}
	got := tm.(model)
	if len(got.eventLog) != 2 {
		t.Fatalf("eventLog = %+v, want 2 entries", got.eventLog)
	}
	for _, e := range got.eventLog {
		if !e.isError {
			t.Errorf("anomaly %q not flagged as error", e.message)
		}
	}
	if got.stats.Edges != 100 {
		t.Errorf("stats not refreshed: %+v", got.stats)
	}
}

func TestMonitorModel_Keys(t *testing.T) {
	m := initialModel("test backend", false, nil)
	m.addLogEntry("something", false)

	var tm tea.Model = m
	tm, _ = tm.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("r")})
	if n := len(tm.(model).eventLog); n != 0 {
		t.Errorf("reset left %d entries", n)
	}

	tm, cmd := tm.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	if cmd == nil || !tm.(model).quitting {
		t.Error("q did not quit")
	}
}
