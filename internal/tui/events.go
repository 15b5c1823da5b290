// Package tui implements a terminal UI that shows a watcher's events live.
package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/twiced-technology-gmbh/dirwatch/internal/journal"
	"github.com/twiced-technology-gmbh/dirwatch/internal/output"
	"github.com/twiced-technology-gmbh/dirwatch/internal/watcher"
)

// Layout constants.
const (
	listChrome   = 3 // header line, blank line and status bar
	helpChrome   = 1
	tickInterval = time.Second
	timeW        = 13

	// DefaultMaxEvents bounds the in-memory event list.
	DefaultMaxEvents = 1000
)

// Controller is the part of a watcher the UI drives.
type Controller interface {
	Pause()
	Resume()
	State() watcher.State
	Root() string
	Metrics() watcher.Metrics
}

// EventMsg carries one observed event into the program.
type EventMsg struct {
	Entry journal.Entry
}

// StoppedMsg tells the program the watcher has stopped on its own.
type StoppedMsg struct{}

// TickMsg is sent periodically to refresh the status bar counters.
type TickMsg struct{}

func tickCmd() tea.Cmd {
	return tea.Tick(tickInterval, func(time.Time) tea.Msg { return TickMsg{} })
}

type keyMap struct {
	Pause key.Binding
	Clear key.Binding
	Down  key.Binding
	Up    key.Binding
	Quit  key.Binding
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Pause, k.Clear, k.Down, k.Up, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{k.ShortHelp()}
}

var keys = keyMap{
	Pause: key.NewBinding(key.WithKeys("p", " "), key.WithHelp("p/space", "pause")),
	Clear: key.NewBinding(key.WithKeys("c"), key.WithHelp("c", "clear")),
	Down:  key.NewBinding(key.WithKeys("j", "down"), key.WithHelp("j", "down")),
	Up:    key.NewBinding(key.WithKeys("k", "up"), key.WithHelp("k", "up")),
	Quit:  key.NewBinding(key.WithKeys("q", "esc", "ctrl+c"), key.WithHelp("q", "quit")),
}

var (
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("252")).
			Background(lipgloss.Color("236"))

	statusBarStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	pausedStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("226")).Bold(true)
	stoppedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	dimStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

// Model is the top-level bubbletea model.
type Model struct {
	ctl       Controller
	events    []journal.Entry
	maxEvents int
	// offset counts rows scrolled up from the newest event; 0 follows the tail.
	offset  int
	width   int
	height  int
	stopped bool
	help    help.Model
}

// New creates a Model for ctl. maxEvents <= 0 selects DefaultMaxEvents.
func New(ctl Controller, maxEvents int) *Model {
	if maxEvents <= 0 {
		maxEvents = DefaultMaxEvents
	}
	return &Model{
		ctl:       ctl,
		maxEvents: maxEvents,
		help:      help.New(),
	}
}

// Events returns the buffered events, oldest first.
func (m *Model) Events() []journal.Entry { return m.events }

// Init starts the refresh tick.
func (m *Model) Init() tea.Cmd {
	return tickCmd()
}

// Update handles messages.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		m.clampOffset()
		return m, nil
	case EventMsg:
		m.push(msg.Entry)
		return m, nil
	case StoppedMsg:
		m.stopped = true
		return m, nil
	case TickMsg:
		return m, tickCmd()
	}
	return m, nil
}

func (m *Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, keys.Quit):
		return m, tea.Quit
	case key.Matches(msg, keys.Pause):
		m.togglePause()
	case key.Matches(msg, keys.Clear):
		m.events = nil
		m.offset = 0
	case key.Matches(msg, keys.Down):
		if m.offset > 0 {
			m.offset--
		}
	case key.Matches(msg, keys.Up):
		m.offset++
		m.clampOffset()
	}
	return m, nil
}

func (m *Model) togglePause() {
	switch m.ctl.State() {
	case watcher.StateActive:
		m.ctl.Pause()
	case watcher.StatePaused:
		m.ctl.Resume()
	}
}

func (m *Model) push(e journal.Entry) {
	m.events = append(m.events, e)
	if over := len(m.events) - m.maxEvents; over > 0 {
		m.events = append(m.events[:0], m.events[over:]...)
	}
	// Keep a scrolled view anchored on the same rows.
	if m.offset > 0 {
		m.offset++
		m.clampOffset()
	}
}

func (m *Model) listHeight() int {
	h := m.height - listChrome - helpChrome
	if h < 1 {
		h = 1
	}
	return h
}

func (m *Model) clampOffset() {
	maxOffset := len(m.events) - m.listHeight()
	if maxOffset < 0 {
		maxOffset = 0
	}
	if m.offset > maxOffset {
		m.offset = maxOffset
	}
}

// visible returns the window of events shown on screen.
func (m *Model) visible() []journal.Entry {
	end := len(m.events) - m.offset
	start := end - m.listHeight()
	if start < 0 {
		start = 0
	}
	return m.events[start:end]
}

// View renders the model.
func (m *Model) View() string {
	if m.width == 0 {
		return "Loading..."
	}

	var b strings.Builder
	b.WriteString(headerStyle.Render(truncate(
		fmt.Sprintf(" %-*s%s", timeW, "TIME", "PATH"), m.width)))
	b.WriteByte('\n')

	rows := m.visible()
	for _, e := range rows {
		b.WriteString(m.renderRow(e))
		b.WriteByte('\n')
	}
	if len(rows) == 0 {
		b.WriteString(dimStyle.Render(" waiting for events..."))
		b.WriteByte('\n')
	}
	for i := max(len(rows), 1); i < m.listHeight(); i++ {
		b.WriteByte('\n')
	}

	b.WriteByte('\n')
	b.WriteString(m.renderStatusBar())
	b.WriteByte('\n')
	b.WriteString(m.help.View(keys))
	return b.String()
}

func (m *Model) renderRow(e journal.Entry) string {
	ts := e.Timestamp.Local().Format(output.TimeLayout)
	kinds := "[" + strings.Join(e.Kinds, "|") + "]"
	line := truncate(fmt.Sprintf(" %-*s%s %s", timeW, ts, e.Path, kinds), m.width)
	return output.ActionStyle(e.Flags).Render(line)
}

func (m *Model) renderStatusBar() string {
	state := m.ctl.State()
	label := state.String()
	switch {
	case m.stopped || state == watcher.StateStopped:
		label = stoppedStyle.Render("stopped")
	case state == watcher.StatePaused:
		label = pausedStyle.Render(label)
	}

	met := m.ctl.Metrics()
	status := fmt.Sprintf(" %s | %d shown | %d delivered | %d dropped",
		m.ctl.Root(), len(m.events), met.Delivered, met.Dropped)
	if m.offset > 0 {
		status += fmt.Sprintf(" | +%d below", m.offset)
	}
	return label + statusBarStyle.Render(truncate(status, m.width-lipgloss.Width(label)))
}

func truncate(s string, maxLen int) string {
	if maxLen < 4 { //nolint:mnd // minimum length for truncation
		maxLen = 4
	}
	if lipgloss.Width(s) <= maxLen {
		return s
	}
	runes := []rune(s)
	target := min(maxLen-3, len(runes)) //nolint:mnd // room for "..."
	for target > 0 && lipgloss.Width(string(runes[:target])) > maxLen-3 {
		target--
	}
	return string(runes[:target]) + "..."
}
