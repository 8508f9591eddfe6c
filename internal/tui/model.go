package tui

import (
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/npratt/cellpilot/internal/events"
)

const (
	// maxEventLines is the maximum number of event lines to keep in the buffer.
	maxEventLines = 1000
	// trimEventLines is the number of lines to remove when buffer exceeds max.
	trimEventLines = 100
	// tickInterval is the interval for periodic stats sync.
	tickInterval = time.Second
)

// eventLine is one rendered row of the event log.
type eventLine struct {
	Time  time.Time
	Text  string
	Style lipgloss.Style
}

// runInfo mirrors the header counters.
type runInfo struct {
	RunID       string
	Index       int
	Total       int
	Generation  int
	Restarts    int
	MaxRestarts int
	Completed   int
	Failed      int
}

// model is the bubbletea model for the TUI.
type model struct {
	eventChan <-chan events.Event

	status    string
	run       runInfo
	artifacts []string
	lines     []eventLine

	width      int
	height     int
	scrollPos  int
	autoScroll bool
	spinner    spinner.Model

	onPause  func()
	onResume func()
	onQuit   func()

	statsGetter StatsGetter
}

// eventMsg wraps an event for the bubbletea message system.
type eventMsg events.Event

// channelClosedMsg signals that the event channel was closed.
type channelClosedMsg struct{}

// tickMsg signals a periodic tick for stats synchronization.
type tickMsg time.Time

func newModel(eventChan <-chan events.Event, onPause, onResume, onQuit func(), sg StatsGetter) model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = styles.StatusRunning

	return model{
		eventChan:   eventChan,
		status:      "idle",
		autoScroll:  true,
		spinner:     sp,
		onPause:     onPause,
		onResume:    onResume,
		onQuit:      onQuit,
		statsGetter: sg,
	}
}

// Init implements tea.Model.
func (m model) Init() tea.Cmd {
	return tea.Batch(waitForEvent(m.eventChan), doTick(), m.spinner.Tick)
}

// waitForEvent waits for the next event, or reports the channel closing.
func waitForEvent(ch <-chan events.Event) tea.Cmd {
	return func() tea.Msg {
		event, ok := <-ch
		if !ok {
			return channelClosedMsg{}
		}
		return eventMsg(event)
	}
}

func doTick() tea.Cmd {
	return tea.Tick(tickInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// visibleLines returns the number of event lines that fit in the viewport.
func (m model) visibleLines() int {
	// border (2), header (3), dividers (2), footer (1)
	return max(1, m.height-8)
}

func (m model) maxScroll() int {
	return max(0, len(m.lines)-m.visibleLines())
}
