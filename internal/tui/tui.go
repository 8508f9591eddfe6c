// Package tui renders a live view of a sequence run using bubbletea.
package tui

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/npratt/cellpilot/internal/controller"
	"github.com/npratt/cellpilot/internal/events"
)

// Minimum terminal size for the full-screen view.
const (
	minWidth  = 60
	minHeight = 12
)

// StatsGetter provides controller counters for the header.
type StatsGetter interface {
	Stats() controller.Stats
}

// TUI is the terminal view of one run.
type TUI struct {
	eventChan   <-chan events.Event
	onPause     func()
	onResume    func()
	onQuit      func()
	statsGetter StatsGetter
}

// Option configures the TUI.
type Option func(*TUI)

// New creates a TUI that renders events from eventChan.
func New(eventChan <-chan events.Event, opts ...Option) *TUI {
	t := &TUI{eventChan: eventChan}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// WithOnPause sets the callback invoked when the user presses 'p'.
func WithOnPause(fn func()) Option {
	return func(t *TUI) { t.onPause = fn }
}

// WithOnResume sets the callback invoked when the user presses 'r'.
func WithOnResume(fn func()) Option {
	return func(t *TUI) { t.onResume = fn }
}

// WithOnQuit sets the callback invoked when the user presses 'q'.
func WithOnQuit(fn func()) Option {
	return func(t *TUI) { t.onQuit = fn }
}

// WithStatsGetter sets the stats provider for header display.
func WithStatsGetter(sg StatsGetter) Option {
	return func(t *TUI) { t.statsGetter = sg }
}

// Run blocks until the user quits or the event channel closes. Without a
// usable terminal it falls back to line output.
func (t *TUI) Run() error {
	if !isTerminal() || terminalTooSmall() {
		return t.runSimple()
	}

	m := newModel(t.eventChan, t.onPause, t.onResume, t.onQuit, t.statsGetter)
	_, err := tea.NewProgram(m, tea.WithAltScreen()).Run()
	return err
}
