package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/npratt/cellpilot/internal/events"
)

// View implements tea.Model.
func (m model) View() string {
	if m.width == 0 || m.height == 0 {
		return "starting..."
	}
	if m.width < minWidth || m.height < minHeight {
		return fmt.Sprintf("terminal too small (%dx%d, need %dx%d)", m.width, m.height, minWidth, minHeight)
	}

	inner := m.width - 4
	divider := styles.Divider.Render(strings.Repeat("─", inner))

	sections := []string{
		m.renderHeader(),
		divider,
		m.renderEvents(inner),
		divider,
		m.renderFooter(),
	}
	return styles.Container.
		Width(m.width - 2).
		Render(lipgloss.JoinVertical(lipgloss.Left, sections...))
}

func (m model) renderHeader() string {
	status := statusStyle(m.status).Render(strings.ToUpper(m.status))
	if m.status == "running" || m.status == "restarting" {
		status = m.spinner.View() + " " + status
	}

	progress := fmt.Sprintf("unit %d/%d  gen %d  restarts %d/%d  ok %d  failed %d",
		displayIndex(m.run.Index, m.run.Total), m.run.Total, m.run.Generation,
		m.run.Restarts, m.run.MaxRestarts, m.run.Completed, m.run.Failed)

	line1 := styles.Status.Render("cellpilot") + "  " + status + "  " + styles.Progress.Render(progress)

	artifact := styles.Footer.Render("no artifact yet")
	if len(m.artifacts) > 0 {
		artifact = "url: " + styles.Artifact.Render(m.artifacts[0])
		if extra := len(m.artifacts) - 1; extra > 0 {
			artifact += styles.Footer.Render(fmt.Sprintf(" (+%d more)", extra))
		}
	}

	run := ""
	if m.run.RunID != "" {
		run = styles.Footer.Render("run " + shortRunID(m.run.RunID))
	}
	return lipgloss.JoinVertical(lipgloss.Left, line1, artifact, run)
}

func (m model) renderEvents(width int) string {
	visible := m.visibleLines()
	start := min(m.scrollPos, m.maxScroll())
	end := min(len(m.lines), start+visible)

	rows := make([]string, 0, visible)
	for _, l := range m.lines[start:end] {
		text := events.Truncate(l.Time.Format("15:04:05")+" "+l.Text, width)
		rows = append(rows, l.Style.Render(text))
	}
	for len(rows) < visible {
		rows = append(rows, "")
	}
	return strings.Join(rows, "\n")
}

func (m model) renderFooter() string {
	parts := make([]string, 0, len(keys.help()))
	for _, b := range keys.help() {
		h := b.Help()
		parts = append(parts, h.Key+" "+h.Desc)
	}
	if !m.autoScroll {
		parts = append(parts, "[scrolled]")
	}
	return styles.Footer.Render(strings.Join(parts, " · "))
}

// displayIndex shows units 1-based while a run is underway.
func displayIndex(index, total int) int {
	if total == 0 {
		return 0
	}
	return min(index+1, total)
}

func shortRunID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
