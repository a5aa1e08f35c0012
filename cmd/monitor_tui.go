// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/Thermoquad/rcswitch/pkg/pulsebridge"
	"github.com/Thermoquad/rcswitch/pkg/rcswitch"
)

// Event log entry
type eventLogEntry struct {
	timestamp time.Time
	message   string
	isError   bool // true for anomalies, false for codes and notices
}

// TUI model
type model struct {
	backendInfo   string
	showAll       bool
	rxStats       func() rcswitch.Statistics
	bridgeStats   func() pulsebridge.Statistics // nil without a bridge
	stats         rcswitch.Statistics
	bridge        pulsebridge.Statistics
	dedup         codeDeduper
	eventLog      []eventLogEntry
	maxLogEntries int
	lastCode      *rcswitch.DecodedCode
	presses       int
	width         int
	height        int
	quitting      bool
}

// Messages
type tickMsg time.Time
type codeMsg rcswitch.DecodedCode

// formatUptime formats uptime in milliseconds to human-friendly string
func formatUptime(ms uint64) string {
	seconds := ms / 1000
	minutes := seconds / 60
	hours := minutes / 60
	days := hours / 24

	seconds %= 60
	minutes %= 60
	hours %= 24

	units := []struct {
		n    uint64
		name string
	}{
		{days, "day"},
		{hours, "hour"},
		{minutes, "minute"},
		{seconds, "second"},
	}

	parts := []string{}
	for _, u := range units {
		if u.n == 0 {
			continue
		}
		if u.n == 1 {
			parts = append(parts, "1 "+u.name)
		} else {
			parts = append(parts, fmt.Sprintf("%d %ss", u.n, u.name))
		}
	}

	switch len(parts) {
	case 0:
		return "0 seconds"
	case 1:
		return parts[0]
	case 2:
		return parts[0] + " and " + parts[1]
	}
	last := parts[len(parts)-1]
	rest := strings.Join(parts[:len(parts)-1], ", ")
	return rest + ", and " + last
}

func initialModel(backendInfo string, showAll bool, rxStats func() rcswitch.Statistics) model {
	return model{
		backendInfo:   backendInfo,
		showAll:       showAll,
		rxStats:       rxStats,
		dedup:         codeDeduper{window: repeatWindow},
		eventLog:      make([]eventLogEntry, 0),
		maxLogEntries: 100,
		width:         80,
		height:        24,
	}
}

func (m model) Init() tea.Cmd {
	return tea.Batch(
		tickCmd(),
		tea.EnterAltScreen,
	)
}

func tickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		case "r":
			m.eventLog = m.eventLog[:0]
			m.presses = 0
			m.lastCode = nil
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case tickMsg:
		m.refreshStats()
		return m, tickCmd()

	case codeMsg:
		code := rcswitch.DecodedCode(msg)
		repeat := m.dedup.repeat(code)
		m.lastCode = &code
		if !repeat {
			m.presses++
		}
		if !repeat || m.showAll {
			m.addLogEntry(describeCode(code), false)
		}
	}

	return m, nil
}

// refreshStats pulls new counters and logs anomalies
func (m *model) refreshStats() {
	if m.rxStats != nil {
		cur := m.rxStats()
		for _, issue := range receiveAnomalies(m.stats, cur) {
			m.addLogEntry(issue, true)
		}
		m.stats = cur
	}
	if m.bridgeStats != nil {
		cur := m.bridgeStats()
		for _, issue := range bridgeAnomalies(m.bridge, cur) {
			m.addLogEntry(issue, true)
		}
		m.bridge = cur
	}
}

// describeCode returns a one-line summary of a decoded code
func describeCode(c rcswitch.DecodedCode) string {
	s := fmt.Sprintf("P%d %d bits value=%d", c.ProtocolID, c.BitLength, c.Value)
	if cw, err := c.Codeword(); err == nil {
		if desc := rcswitch.Describe(cw); desc != cw.String() {
			return s + " " + desc
		}
		return s + " " + cw.String()
	}
	return s
}

func (m *model) addLogEntry(message string, isError bool) {
	entry := eventLogEntry{
		timestamp: time.Now(),
		message:   message,
		isError:   isError,
	}
	m.eventLog = append(m.eventLog, entry)

	// Keep only last N entries
	if len(m.eventLog) > m.maxLogEntries {
		m.eventLog = m.eventLog[len(m.eventLog)-m.maxLogEntries:]
	}
}

func (m model) View() string {
	if m.quitting {
		return "Shutting down...\n"
	}

	// Styles
	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("12")).
		Background(lipgloss.Color("235")).
		Padding(0, 1)

	headerStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("241"))

	statsLabelStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("12")).
		Bold(true)

	statsValueStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("10"))

	errorStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("9")).
		Bold(true)

	warningStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("11"))

	boxStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("240")).
		Padding(0, 1)

	var s strings.Builder
	s.WriteString(titleStyle.Render("RCSWITCH - RECEIVE MONITOR"))
	s.WriteString("\n")
	mode := "One line per press"
	if m.showAll {
		mode = "All repetitions"
	}
	s.WriteString(headerStyle.Render(fmt.Sprintf("%s | Mode: %s | 'r' to reset log, 'q' to quit", m.backendInfo, mode)))
	s.WriteString("\n\n")

	// Receiver statistics
	st := m.stats
	statsContent := strings.Builder{}
	statsContent.WriteString(fmt.Sprintf("%s %s   %s %s   %s %s\n",
		statsLabelStyle.Render("Edges:"), statsValueStyle.Render(fmt.Sprintf("%d", st.Edges)),
		statsLabelStyle.Render("Codes:"), statsValueStyle.Render(fmt.Sprintf("%d (%.1f%%)", st.Decoded, st.SuccessRate())),
		statsLabelStyle.Render("Presses:"), statsValueStyle.Render(fmt.Sprintf("%d", m.presses)),
	))
	statsContent.WriteString(fmt.Sprintf("%s %d   %s %d   %s %d\n",
		statsLabelStyle.Render("Syncs:"), st.SyncCandidates,
		statsLabelStyle.Render("Repeats:"), st.SyncRepeats,
		statsLabelStyle.Render("No match:"), st.NoMatch,
	))

	if st.Overflows > 0 || st.Dropped > 0 {
		statsContent.WriteString(fmt.Sprintf("%s %s   %s %s\n",
			statsLabelStyle.Render("Overflows:"), warningStyle.Render(fmt.Sprintf("%d", st.Overflows)),
			statsLabelStyle.Render("Dropped:"), errorStyle.Render(fmt.Sprintf("%d", st.Dropped)),
		))
	}

	statsContent.WriteString(fmt.Sprintf("%s %s   %s %s",
		statsLabelStyle.Render("Edge Rate:"), statsValueStyle.Render(fmt.Sprintf("%.1f edges/s", st.EdgeRate)),
		statsLabelStyle.Render("Decode Rate:"), statsValueStyle.Render(fmt.Sprintf("%.2f codes/s", st.DecodeRate)),
	))

	s.WriteString(boxStyle.Render(statsContent.String()))
	s.WriteString("\n\n")

	// Bridge link, only with a bridge backend
	if m.bridgeStats != nil {
		b := m.bridge
		bridgeContent := fmt.Sprintf("%s %s   %s %s   %s %s",
			statsLabelStyle.Render("Frames:"), statsValueStyle.Render(fmt.Sprintf("%d", b.TotalPackets)),
			statsLabelStyle.Render("Edge msgs:"), statsValueStyle.Render(fmt.Sprintf("%d", b.EdgeMessages)),
			statsLabelStyle.Render("Errors:"), func() string {
				n := b.CRCErrors + b.DecodeErrors + b.MalformedPackets + b.BridgeErrors
				if n > 0 {
					return errorStyle.Render(fmt.Sprintf("%d", n))
				}
				return statsValueStyle.Render("0")
			}(),
		)
		s.WriteString(statsLabelStyle.Render("Bridge Link:"))
		s.WriteString("\n")
		s.WriteString(boxStyle.Render(bridgeContent))
		s.WriteString("\n\n")
	}

	// Latest code
	if m.lastCode != nil {
		s.WriteString(statsLabelStyle.Render("Latest Code:"))
		s.WriteString("\n")
		s.WriteString(boxStyle.Render(strings.TrimRight(rcswitch.FormatCode(*m.lastCode), "\n")))
		s.WriteString("\n\n")
	}

	// Event log
	s.WriteString(statsLabelStyle.Render("Recent Events:"))
	s.WriteString("\n")

	logHeight := m.height - 20
	if logHeight < 5 {
		logHeight = 5
	}

	logContent := strings.Builder{}
	startIdx := len(m.eventLog) - logHeight
	if startIdx < 0 {
		startIdx = 0
	}

	if len(m.eventLog) == 0 {
		logContent.WriteString(headerStyle.Render("  (no events yet)"))
	} else {
		for i := startIdx; i < len(m.eventLog); i++ {
			entry := m.eventLog[i]
			timestamp := entry.timestamp.Format("15:04:05.000")
			if entry.isError {
				logContent.WriteString(fmt.Sprintf("%s %s\n",
					headerStyle.Render(timestamp),
					errorStyle.Render("✗ "+entry.message),
				))
			} else {
				logContent.WriteString(fmt.Sprintf("%s %s\n",
					headerStyle.Render(timestamp),
					statsValueStyle.Render("✓ "+entry.message),
				))
			}
		}
	}

	s.WriteString(boxStyle.Width(m.width - 4).Render(logContent.String()))

	return s.String()
}
