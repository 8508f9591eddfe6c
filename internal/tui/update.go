package tui

import (
	"log/slog"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/npratt/cellpilot/internal/events"
)

// Update implements tea.Model.
func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case eventMsg:
		m.handleEvent(events.Event(msg))
		return m, waitForEvent(m.eventChan)

	case channelClosedMsg:
		slog.Info("event channel closed, exiting TUI")
		return m, tea.Quit

	case tickMsg:
		m.syncStats()
		return m, doTick()

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

// handleKey processes keyboard input.
func (m model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, keys.Quit):
		if m.onQuit != nil {
			m.onQuit()
		}
		return m, tea.Quit

	case key.Matches(msg, keys.Pause):
		if m.onPause != nil {
			m.onPause()
		}

	case key.Matches(msg, keys.Resume):
		if m.onResume != nil {
			m.onResume()
		}

	case key.Matches(msg, keys.Up):
		if m.scrollPos > 0 {
			m.scrollPos--
			m.autoScroll = false
		}

	case key.Matches(msg, keys.Down):
		if m.scrollPos < m.maxScroll() {
			m.scrollPos++
		}
		if m.scrollPos >= m.maxScroll() {
			m.autoScroll = true
		}

	case key.Matches(msg, keys.Top):
		m.scrollPos = 0
		m.autoScroll = false

	case key.Matches(msg, keys.Bottom):
		m.scrollPos = m.maxScroll()
		m.autoScroll = true
	}
	return m, nil
}

// handleEvent updates header state and appends a log line.
func (m *model) handleEvent(ev events.Event) {
	if ev == nil {
		return
	}

	style := styles.Output
	switch e := ev.(type) {
	case *events.RunStartEvent:
		m.run = runInfo{RunID: e.RunID, Total: e.Total, MaxRestarts: e.MaxRestarts, Generation: 1}
		m.artifacts = nil
		style = styles.Status
	case *events.RunStateChangedEvent:
		m.status = e.To
		style = statusStyle(e.To)
	case *events.UnitStartEvent:
		m.run.Index = e.Index
		m.run.Total = e.Total
		m.run.Generation = e.Generation
		style = styles.Unit
	case *events.UnitEndEvent:
		switch e.Outcome {
		case "completed":
			m.run.Completed++
		case "errored", "timed_out":
			m.run.Failed++
			style = styles.Error
		default:
			style = styles.Unit
		}
	case *events.RestartDetectedEvent:
		m.run.Restarts = e.Restarts
		m.run.Completed = 0
		m.run.Failed = 0
		style = styles.Restart
	case *events.ArtifactFoundEvent:
		m.artifacts = append(m.artifacts, e.URL)
		style = styles.Artifact
	case *events.RunStopEvent:
		m.status = e.Final
		m.run.Completed = e.Completed
		m.run.Failed = e.Failed
		m.run.Restarts = e.Restarts
		style = statusStyle(e.Final)
	case *events.ErrorEvent:
		style = styles.Error
	case *events.UnitOutputEvent:
		for _, line := range e.Lines {
			if strings.TrimSpace(line) == "" {
				continue
			}
			m.appendLine(ev.Timestamp(), "  "+events.SafeString(line), styles.Output)
		}
		return
	}

	if text := events.Format(ev); text != "" {
		m.appendLine(ev.Timestamp(), text, style)
	}
}

func (m *model) appendLine(ts time.Time, text string, style lipgloss.Style) {
	m.lines = append(m.lines, eventLine{Time: ts, Text: text, Style: style})
	if len(m.lines) > maxEventLines {
		m.lines = m.lines[trimEventLines:]
		m.scrollPos = max(0, m.scrollPos-trimEventLines)
	}
	if m.autoScroll {
		m.scrollPos = m.maxScroll()
	}
}

// syncStats refreshes header counters from the controller.
func (m *model) syncStats() {
	if m.statsGetter == nil {
		return
	}
	s := m.statsGetter.Stats()
	if s.RunID == "" {
		return
	}
	m.status = string(s.State)
	m.run = runInfo{
		RunID:       s.RunID,
		Index:       s.Index,
		Total:       s.Total,
		Generation:  s.Generation,
		Restarts:    s.Restarts,
		MaxRestarts: s.MaxRestarts,
		Completed:   s.Completed,
		Failed:      s.Failed,
	}
	m.artifacts = s.Artifacts
}
