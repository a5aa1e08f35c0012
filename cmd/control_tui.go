// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/Thermoquad/rcswitch/pkg/config"
	"github.com/Thermoquad/rcswitch/pkg/pulsebridge"
	"github.com/Thermoquad/rcswitch/pkg/rcswitch"
)

//////////////////////////////////////////////////////////////
// Constants
//////////////////////////////////////////////////////////////

const (
	pingInterval      = 5 * time.Second // Ping the bridge every interval
	bridgePingTimeout = 2 * time.Second
)

// Focus states
const (
	focusSwitchList = iota
	focusAddressInput
	focusOnButton
	focusOffButton
	focusCount
)

//////////////////////////////////////////////////////////////
// Types
//////////////////////////////////////////////////////////////

// switchItem is a configured switch and its last known state
type switchItem struct {
	cfg     config.SwitchConfig
	summary string
	known   bool
	on      bool
	source  string // "sent" or "remote"
	changed time.Time
}

// Implement list.Item interface
func (s switchItem) Title() string { return s.cfg.Name }
func (s switchItem) Description() string {
	if !s.known {
		return s.summary + "  ?"
	}
	return fmt.Sprintf("%s  %s (%s %s)", s.summary, stateName(s.on), s.source, s.changed.Format("15:04:05"))
}
func (s switchItem) FilterValue() string { return s.cfg.Name }

// codeRef maps a codeword back to a switch and state
type codeRef struct {
	index int
	on    bool
}

// controlModel is the Bubble Tea model for the control TUI
type controlModel struct {
	ctx     context.Context
	cfg     *config.Config
	backend controlBackend

	// Switches
	switches   []switchItem
	switchList list.Model
	codes      map[string]codeRef

	// Monitoring
	stats         rcswitch.Statistics
	bridge        pulsebridge.Statistics
	dedup         codeDeduper
	eventLog      []eventLogEntry
	maxLogEntries int

	// Control
	addressInput textinput.Model
	focusedField int
	busy         bool

	// UI state
	width          int
	height         int
	quitting       bool
	connectionLost bool

	// Ping state
	lastPingTime time.Time
	pinging      bool
	bridgeUptime time.Duration
	roundTrip    time.Duration
	hasUptime    bool
}

//////////////////////////////////////////////////////////////
// Messages
//////////////////////////////////////////////////////////////

type controlTickMsg time.Time

type controlCodeMsg rcswitch.DecodedCode

type sentMsg struct {
	target  codeTarget
	ref     *codeRef // nil for ad-hoc codes
	err     error
	elapsed time.Duration
}

type pongMsg struct {
	result pulsebridge.PingResult
	err    error
}

type connectionLostMsg struct {
	err error
}

//////////////////////////////////////////////////////////////
// Model Initialization
//////////////////////////////////////////////////////////////

func initialControlModel(ctx context.Context, c *config.Config, backend controlBackend) (controlModel, error) {
	ti := textinput.New()
	ti.Placeholder = "B 1 3 on"
	ti.CharLimit = 32
	ti.Width = 24

	switches := make([]switchItem, 0, len(c.Switches))
	codes := make(map[string]codeRef)
	for i, s := range c.Switches {
		summary, err := switchSummary(s)
		if err != nil {
			return controlModel{}, fmt.Errorf("switch %q: %w", s.Name, err)
		}
		for _, on := range []bool{true, false} {
			t, err := switchTarget(c, s, on)
			if err != nil {
				return controlModel{}, fmt.Errorf("switch %q: %w", s.Name, err)
			}
			codes[codeKey(t.bits.Value(), t.bits.Len())] = codeRef{index: i, on: on}
		}
		switches = append(switches, switchItem{cfg: s, summary: summary})
	}

	delegate := list.NewDefaultDelegate()
	delegate.ShowDescription = true
	delegate.SetHeight(2)
	switchList := list.New(nil, delegate, 30, 10)
	switchList.Title = "Switches"
	switchList.SetShowStatusBar(false)
	switchList.SetShowHelp(false)
	switchList.SetFilteringEnabled(false)

	m := controlModel{
		ctx:           ctx,
		cfg:           c,
		backend:       backend,
		switches:      switches,
		switchList:    switchList,
		codes:         codes,
		dedup:         codeDeduper{window: repeatWindow},
		eventLog:      make([]eventLogEntry, 0),
		maxLogEntries: 100,
		addressInput:  ti,
		focusedField:  focusSwitchList,
		width:         80,
		height:        24,
	}
	m.updateSwitchList()
	if len(switches) == 0 {
		m.focusedField = focusAddressInput
		m.addressInput.Focus()
		m.addLogEntry("No switches in the config, type an address", false)
	}
	return m, nil
}

// codeKey identifies a code by its decoded bits
func codeKey(value uint64, bits int) string {
	return fmt.Sprintf("%d/%d", value, bits)
}

// switchSummary returns a short form of a switch's address or raw codes
func switchSummary(s config.SwitchConfig) (string, error) {
	if s.Raw() {
		return fmt.Sprintf("raw %d/%d", s.On, s.Off), nil
	}
	addr, err := s.Address()
	if err != nil {
		return "", err
	}
	return addressSummary(addr), nil
}

// addressSummary returns a short form of an address
func addressSummary(addr rcswitch.Address) string {
	switch a := addr.(type) {
	case rcswitch.SchemeA:
		return fmt.Sprintf("A %s/%d", a.GroupName, a.Switch)
	case rcswitch.SchemeB:
		return fmt.Sprintf("B %d/%d", a.Group, a.Switch)
	case rcswitch.SchemeC:
		return fmt.Sprintf("C %c/%d/%d", a.Family, a.Group, a.Device)
	}
	return addr.Scheme().String()
}

//////////////////////////////////////////////////////////////
// Bubble Tea Interface
//////////////////////////////////////////////////////////////

func (m controlModel) Init() tea.Cmd {
	return controlTickCmd()
}

func controlTickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return controlTickMsg(t)
	})
}

func (m controlModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKeyMsg(msg)

	case tea.MouseMsg:
		if msg.Action == tea.MouseActionRelease && msg.Button == tea.MouseButtonLeft {
			m.switchList, _ = m.switchList.Update(msg)
		}
		return m, nil

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.updateListSize()

	case controlTickMsg:
		m.refreshStats()
		cmds = append(cmds, controlTickCmd())
		if m.backend.ping != nil && !m.pinging && !m.connectionLost &&
			time.Time(msg).Sub(m.lastPingTime) >= pingInterval {
			m.lastPingTime = time.Time(msg)
			m.pinging = true
			cmds = append(cmds, m.pingCmd())
		}

	case pongMsg:
		m.pinging = false
		if msg.err != nil {
			m.addLogEntry(fmt.Sprintf("Ping failed: %v", msg.err), true)
		} else {
			m.bridgeUptime = msg.result.Uptime
			m.roundTrip = msg.result.RoundTrip
			m.hasUptime = true
		}

	case sentMsg:
		m.busy = false
		if msg.err != nil {
			m.addLogEntry(msg.err.Error(), true)
			break
		}
		m.addLogEntry(fmt.Sprintf("Sent %s in %v", msg.target.label, msg.elapsed.Round(time.Millisecond)), false)
		if msg.ref != nil {
			m.setState(*msg.ref, "sent")
		}

	case controlCodeMsg:
		m.handleCode(rcswitch.DecodedCode(msg))

	case connectionLostMsg:
		m.connectionLost = true
		if msg.err != nil {
			m.addLogEntry(fmt.Sprintf("Connection lost: %v", msg.err), true)
		} else {
			m.addLogEntry("Connection lost", true)
		}
	}

	// Update child components
	var cmd tea.Cmd
	if m.focusedField == focusAddressInput {
		m.addressInput, cmd = m.addressInput.Update(msg)
		cmds = append(cmds, cmd)
	}
	if m.focusedField == focusSwitchList {
		m.switchList, cmd = m.switchList.Update(msg)
		cmds = append(cmds, cmd)
	}

	return m, tea.Batch(cmds...)
}

func (m controlModel) handleKeyMsg(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		m.quitting = true
		return m, tea.Quit

	case "q":
		if m.focusedField != focusAddressInput {
			m.quitting = true
			return m, tea.Quit
		}

	case "tab":
		m.cycleFocus(1)
		return m, nil

	case "shift+tab":
		m.cycleFocus(-1)
		return m, nil

	case "enter":
		return m.handleEnter()

	case "up", "k", "down", "j":
		if m.focusedField == focusSwitchList {
			var cmd tea.Cmd
			m.switchList, cmd = m.switchList.Update(msg)
			return m, cmd
		}
	}

	// Pass through to focused component
	if m.focusedField == focusAddressInput {
		var cmd tea.Cmd
		m.addressInput, cmd = m.addressInput.Update(msg)
		return m, cmd
	}

	return m, nil
}

func (m *controlModel) cycleFocus(delta int) {
	for {
		m.focusedField = (m.focusedField + delta + focusCount) % focusCount
		// List and buttons need a switch to act on
		if len(m.switches) > 0 || m.focusedField == focusAddressInput {
			break
		}
	}

	if m.focusedField == focusAddressInput {
		m.addressInput.Focus()
	} else {
		m.addressInput.Blur()
	}
}

func (m controlModel) handleEnter() (tea.Model, tea.Cmd) {
	switch m.focusedField {
	case focusSwitchList:
		idx := m.selectedIndex()
		if idx < 0 {
			return m, nil
		}
		s := m.switches[idx]
		return m.sendSwitch(idx, !(s.known && s.on))

	case focusOnButton, focusOffButton:
		idx := m.selectedIndex()
		if idx < 0 {
			return m, nil
		}
		return m.sendSwitch(idx, m.focusedField == focusOnButton)

	case focusAddressInput:
		text := strings.TrimSpace(m.addressInput.Value())
		if text == "" {
			return m, nil
		}
		addr, on, err := parseAddress(strings.Fields(text))
		if err != nil {
			m.addLogEntry(fmt.Sprintf("Invalid address %q: %v", text, firstLine(err)), true)
			return m, nil
		}
		protocol, err := m.cfg.ProtocolSpec()
		if err != nil {
			m.addLogEntry(err.Error(), true)
			return m, nil
		}
		t, err := codeTarget{protocol: protocol}.withAddress(addr, on)
		if err != nil {
			m.addLogEntry(err.Error(), true)
			return m, nil
		}
		cmd := m.send(t, m.lookup(t.bits.Value(), t.bits.Len()))
		if cmd != nil {
			m.addressInput.SetValue("")
		}
		return m, cmd
	}
	return m, nil
}

func (m controlModel) sendSwitch(idx int, on bool) (tea.Model, tea.Cmd) {
	t, err := switchTarget(m.cfg, m.switches[idx].cfg, on)
	if err != nil {
		m.addLogEntry(err.Error(), true)
		return m, nil
	}
	cmd := m.send(t, &codeRef{index: idx, on: on})
	return m, cmd
}

// send starts a transmission, or returns nil when one cannot start
func (m *controlModel) send(t codeTarget, ref *codeRef) tea.Cmd {
	if m.connectionLost {
		m.addLogEntry("Cannot send: connection lost", true)
		return nil
	}
	if m.busy {
		m.addLogEntry("Still transmitting, try again", true)
		return nil
	}
	m.busy = true

	ctx, send := m.ctx, m.backend.send
	return func() tea.Msg {
		start := time.Now()
		err := send(ctx, t)
		return sentMsg{target: t, ref: ref, err: err, elapsed: time.Since(start)}
	}
}

func (m controlModel) pingCmd() tea.Cmd {
	ctx, ping := m.ctx, m.backend.ping
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(ctx, bridgePingTimeout)
		defer cancel()
		res, err := ping(ctx)
		return pongMsg{result: res, err: err}
	}
}

//////////////////////////////////////////////////////////////
// Data Processing
//////////////////////////////////////////////////////////////

func (m *controlModel) handleCode(code rcswitch.DecodedCode) {
	if m.dedup.repeat(code) {
		return
	}

	ref := m.lookup(code.Value, int(code.BitLength))
	if ref == nil {
		if cw, err := code.Codeword(); err == nil {
			m.addLogEntry("Received "+rcswitch.Describe(cw), false)
		} else {
			m.addLogEntry(fmt.Sprintf("Received P%d %d bits value=%d", code.ProtocolID, code.BitLength, code.Value), false)
		}
		return
	}
	m.addLogEntry(fmt.Sprintf("Remote: %s %s", m.switches[ref.index].cfg.Name, stateName(ref.on)), false)
	m.setState(*ref, "remote")
}

func (m *controlModel) lookup(value uint64, bits int) *codeRef {
	ref, ok := m.codes[codeKey(value, bits)]
	if !ok {
		return nil
	}
	return &ref
}

func (m *controlModel) setState(ref codeRef, source string) {
	s := &m.switches[ref.index]
	s.known = true
	s.on = ref.on
	s.source = source
	s.changed = time.Now()
	m.updateSwitchList()
}

// refreshStats pulls new counters and logs anomalies
func (m *controlModel) refreshStats() {
	if m.backend.rxStats != nil {
		cur := m.backend.rxStats()
		for _, issue := range receiveAnomalies(m.stats, cur) {
			m.addLogEntry(issue, true)
		}
		m.stats = cur
	}
	if m.backend.bridgeStats != nil {
		cur := m.backend.bridgeStats()
		for _, issue := range bridgeAnomalies(m.bridge, cur) {
			m.addLogEntry(issue, true)
		}
		m.bridge = cur
	}
}

//////////////////////////////////////////////////////////////
// View
//////////////////////////////////////////////////////////////

func (m controlModel) View() string {
	if m.quitting {
		return "Shutting down...\n"
	}

	var s strings.Builder

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

	focusedBoxStyle := boxStyle.
		BorderForeground(lipgloss.Color("12"))

	buttonStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("0")).
		Background(lipgloss.Color("12")).
		Padding(0, 2)

	focusedButtonStyle := buttonStyle.
		Background(lipgloss.Color("10"))

	// Header
	s.WriteString(titleStyle.Render("RCSWITCH CONTROL"))
	s.WriteString(" ")
	connStatus := m.backend.info
	if m.connectionLost {
		connStatus = errorStyle.Render("CONNECTION LOST")
	}
	s.WriteString(headerStyle.Render(fmt.Sprintf("| %s | q=quit Tab=switch Enter=send", connStatus)))
	s.WriteString("\n")

	if m.hasUptime {
		s.WriteString(fmt.Sprintf(" %s %s  %s %s",
			statsLabelStyle.Render("Bridge Uptime:"),
			statsValueStyle.Render(formatUptime(uint64(m.bridgeUptime.Milliseconds()))),
			statsLabelStyle.Render("RTT:"),
			statsValueStyle.Render(m.roundTrip.Round(time.Microsecond).String())))
	}
	s.WriteString("\n\n")

	// Switch list and control panel side by side
	leftWidth := 34
	rightWidth := m.width - leftWidth - 6
	if rightWidth < 30 {
		rightWidth = 30
	}

	listStyle := boxStyle.Width(leftWidth)
	if m.focusedField == focusSwitchList {
		listStyle = focusedBoxStyle.Width(leftWidth)
	}
	switchPanel := listStyle.Render(m.switchList.View())

	controlContent := m.renderControlPanel(statsLabelStyle, statsValueStyle, headerStyle, warningStyle, buttonStyle, focusedButtonStyle)
	controlPanel := boxStyle.Width(rightWidth).Render(controlContent)

	s.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, switchPanel, " ", controlPanel))
	s.WriteString("\n")

	s.WriteString(m.renderStatisticsBar(statsLabelStyle, statsValueStyle, errorStyle, boxStyle))
	s.WriteString("\n")

	s.WriteString(m.renderEventLog(statsLabelStyle, headerStyle, warningStyle, errorStyle, boxStyle))

	return s.String()
}

func (m controlModel) renderControlPanel(statsLabelStyle, statsValueStyle, headerStyle, warningStyle, buttonStyle, focusedButtonStyle lipgloss.Style) string {
	var s strings.Builder

	if idx := m.selectedIndex(); idx >= 0 {
		sw := m.switches[idx]
		state := "unknown"
		if sw.known {
			state = stateName(sw.on)
		}
		s.WriteString(fmt.Sprintf("%s %s (%s)\n", statsLabelStyle.Render("Selected:"), sw.cfg.Name, sw.summary))
		s.WriteString(fmt.Sprintf("%s %s\n\n", statsLabelStyle.Render("State:"), statsValueStyle.Render(state)))

		for _, b := range []struct {
			focus int
			text  string
		}{{focusOnButton, "[ ON ]"}, {focusOffButton, "[ OFF ]"}} {
			if m.focusedField == b.focus {
				s.WriteString(focusedButtonStyle.Render(b.text))
			} else {
				s.WriteString(buttonStyle.Render(b.text))
			}
			s.WriteString(" ")
		}
		s.WriteString("\n\n")
	} else {
		s.WriteString(headerStyle.Render("No switch selected"))
		s.WriteString("\n\n")
	}

	s.WriteString(statsLabelStyle.Render("Address: "))
	s.WriteString(m.addressInput.View())
	s.WriteString("\n")

	if m.busy {
		s.WriteString(warningStyle.Render("Transmitting..."))
	}
	return s.String()
}

func (m controlModel) renderStatisticsBar(statsLabelStyle, statsValueStyle, errorStyle, boxStyle lipgloss.Style) string {
	var parts []string
	if m.backend.rxStats != nil {
		parts = append(parts,
			fmt.Sprintf("%s %s", statsLabelStyle.Render("Edges:"), statsValueStyle.Render(fmt.Sprintf("%d", m.stats.Edges))),
			fmt.Sprintf("%s %s", statsLabelStyle.Render("Codes:"), statsValueStyle.Render(fmt.Sprintf("%d", m.stats.Decoded))),
			fmt.Sprintf("%s %s", statsLabelStyle.Render("Rate:"), statsValueStyle.Render(fmt.Sprintf("%.1f edges/s", m.stats.EdgeRate))),
		)
	} else {
		parts = append(parts, statsLabelStyle.Render("Receiver off"))
	}
	if m.backend.bridgeStats != nil {
		errs := m.bridge.CRCErrors + m.bridge.DecodeErrors + m.bridge.MalformedPackets + m.bridge.BridgeErrors
		errText := statsValueStyle.Render("0")
		if errs > 0 {
			errText = errorStyle.Render(fmt.Sprintf("%d", errs))
		}
		parts = append(parts,
			fmt.Sprintf("%s %s", statsLabelStyle.Render("Frames:"), statsValueStyle.Render(fmt.Sprintf("%d", m.bridge.TotalPackets))),
			fmt.Sprintf("%s %s", statsLabelStyle.Render("Link errors:"), errText),
		)
	}
	return boxStyle.Width(m.width - 4).Render(strings.Join(parts, "  "))
}

func (m controlModel) renderEventLog(statsLabelStyle, headerStyle, warningStyle, errorStyle, boxStyle lipgloss.Style) string {
	var s strings.Builder
	s.WriteString(statsLabelStyle.Render("EVENTS"))
	s.WriteString("\n")

	logHeight := 8
	startIdx := len(m.eventLog) - logHeight
	if startIdx < 0 {
		startIdx = 0
	}

	if len(m.eventLog) == 0 {
		s.WriteString(headerStyle.Render("  (no events yet)"))
	} else {
		for _, entry := range m.eventLog[startIdx:] {
			icon := "i"
			style := warningStyle
			if entry.isError {
				icon = "x"
				style = errorStyle
			}
			s.WriteString(fmt.Sprintf("%s %s %s\n",
				headerStyle.Render(entry.timestamp.Format("15:04:05.000")),
				style.Render(icon),
				entry.message))
		}
	}

	return boxStyle.Width(m.width - 4).Render(s.String())
}

//////////////////////////////////////////////////////////////
// Helpers
//////////////////////////////////////////////////////////////

func (m *controlModel) addLogEntry(message string, isError bool) {
	m.eventLog = append(m.eventLog, eventLogEntry{
		timestamp: time.Now(),
		message:   message,
		isError:   isError,
	})
	if len(m.eventLog) > m.maxLogEntries {
		m.eventLog = m.eventLog[len(m.eventLog)-m.maxLogEntries:]
	}
}

func (m controlModel) selectedIndex() int {
	idx := m.switchList.Index()
	if idx < 0 || idx >= len(m.switches) {
		return -1
	}
	return idx
}

func (m *controlModel) updateSwitchList() {
	items := make([]list.Item, len(m.switches))
	for i, s := range m.switches {
		items[i] = s
	}
	m.switchList.SetItems(items)
}

func (m *controlModel) updateListSize() {
	listHeight := m.height / 3
	if listHeight < 5 {
		listHeight = 5
	}
	m.switchList.SetSize(32, listHeight)
}

// firstLine drops the usage text some parse errors carry
func firstLine(err error) string {
	msg, _, _ := strings.Cut(err.Error(), "\n")
	return msg
}
