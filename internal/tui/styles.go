package tui

import "github.com/charmbracelet/lipgloss"

// styles contains all lipgloss styles used by the TUI.
var styles = struct {
	Container lipgloss.Style
	Divider   lipgloss.Style

	Status   lipgloss.Style
	Progress lipgloss.Style
	Artifact lipgloss.Style
	Footer   lipgloss.Style

	// Event styles
	Unit    lipgloss.Style
	Output  lipgloss.Style
	Restart lipgloss.Style
	Error   lipgloss.Style

	// Status colors
	StatusIdle    lipgloss.Style
	StatusRunning lipgloss.Style
	StatusPaused  lipgloss.Style
	StatusDone    lipgloss.Style
	StatusFailed  lipgloss.Style
}{
	Container: lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("240")),

	Divider: lipgloss.NewStyle().
		Foreground(lipgloss.Color("240")),

	Status: lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("212")),

	Progress: lipgloss.NewStyle().
		Foreground(lipgloss.Color("220")),

	Artifact: lipgloss.NewStyle().
		Underline(true).
		Foreground(lipgloss.Color("39")),

	Footer: lipgloss.NewStyle().
		Foreground(lipgloss.Color("245")),

	Unit: lipgloss.NewStyle().
		Foreground(lipgloss.Color("114")),

	Output: lipgloss.NewStyle().
		Foreground(lipgloss.Color("250")),

	Restart: lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("214")),

	Error: lipgloss.NewStyle().
		Foreground(lipgloss.Color("196")),

	StatusIdle: lipgloss.NewStyle().
		Foreground(lipgloss.Color("245")),

	StatusRunning: lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("82")),

	StatusPaused: lipgloss.NewStyle().
		Foreground(lipgloss.Color("214")),

	StatusDone: lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("39")),

	StatusFailed: lipgloss.NewStyle().
		Foreground(lipgloss.Color("196")),
}

// statusStyle picks the header color for a controller state.
func statusStyle(status string) lipgloss.Style {
	switch status {
	case "running", "restarting":
		return styles.StatusRunning
	case "paused", "stopping":
		return styles.StatusPaused
	case "done":
		return styles.StatusDone
	case "aborted", "stopped":
		return styles.StatusFailed
	default:
		return styles.StatusIdle
	}
}
