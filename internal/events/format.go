package events

import (
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode"
)

const (
	maxLineLength     = 200
	maxMessageLength  = 100
	truncateIndicator = "..."
)

// Format converts an event to a human-readable string for display.
// Returns empty string for nil or unknown event types.
func Format(event Event) string {
	if event == nil {
		return ""
	}

	switch e := event.(type) {
	case *RunStartEvent:
		return formatRunStart(e)
	case *RunStopEvent:
		return formatRunStop(e)
	case *RunStateChangedEvent:
		return fmt.Sprintf("state: %s -> %s", SafeString(e.From), SafeString(e.To))
	case *UnitStartEvent:
		return formatUnitStart(e)
	case *UnitEndEvent:
		return formatUnitEnd(e)
	case *UnitOutputEvent:
		return formatUnitOutput(e)
	case *RestartDetectedEvent:
		return fmt.Sprintf("[!] restart dialog at unit %d (%d/%d restarts)", e.Index, e.Restarts, e.MaxRestarts)
	case *ArtifactFoundEvent:
		return fmt.Sprintf("[*] artifact from unit %d: %s", e.Index, SafeString(e.URL))
	case *ConnectionStatusEvent:
		return formatConnection(e)
	case *ErrorEvent:
		return formatError(e)
	default:
		return ""
	}
}

// FormatWithTimestamp formats an event with a timestamp prefix.
func FormatWithTimestamp(event Event) string {
	if event == nil {
		return ""
	}
	ts := event.Timestamp().Format("15:04:05")
	detail := Format(event)
	if detail == "" {
		return fmt.Sprintf("[%s] %s", ts, event.Type())
	}
	return fmt.Sprintf("[%s] %s", ts, detail)
}

func formatRunStart(e *RunStartEvent) string {
	if e.NotebookURL != "" {
		return fmt.Sprintf("run %s started: %d units, %s", shortID(e.RunID), e.Total, Truncate(e.NotebookURL, 60))
	}
	return fmt.Sprintf("run %s started: %d units", shortID(e.RunID), e.Total)
}

func formatRunStop(e *RunStopEvent) string {
	dur := (time.Duration(e.DurationMs) * time.Millisecond).Round(time.Second)
	base := fmt.Sprintf("run %s: %d completed, %d failed, %d restarts in %s",
		SafeString(e.Final), e.Completed, e.Failed, e.Restarts, dur)
	if reason := SafeString(e.Reason); reason != "" {
		return base + " (" + reason + ")"
	}
	return base
}

func formatUnitStart(e *UnitStartEvent) string {
	if e.Generation > 1 {
		return fmt.Sprintf("unit %d/%d started (generation %d)", e.Index+1, e.Total, e.Generation)
	}
	return fmt.Sprintf("unit %d/%d started", e.Index+1, e.Total)
}

func formatUnitEnd(e *UnitEndEvent) string {
	symbol := OutcomeSymbol(e.Outcome)
	dur := (time.Duration(e.DurationMs) * time.Millisecond).Round(100 * time.Millisecond)
	if reason := SafeString(e.Reason); reason != "" {
		return fmt.Sprintf("[%s] unit %d %s after %s: %s", symbol, e.Index, e.Outcome, dur, Truncate(reason, maxMessageLength))
	}
	return fmt.Sprintf("[%s] unit %d %s after %s", symbol, e.Index, e.Outcome, dur)
}

func formatUnitOutput(e *UnitOutputEvent) string {
	text := SafeString(strings.Join(e.Lines, " | "))
	return fmt.Sprintf("unit %d: %s", e.Index, Truncate(text, maxLineLength))
}

func formatConnection(e *ConnectionStatusEvent) string {
	if label := SafeString(e.Label); label != "" {
		return fmt.Sprintf("runtime %s (%s)", SafeString(e.Status), Truncate(label, 40))
	}
	return fmt.Sprintf("runtime %s", SafeString(e.Status))
}

func formatError(e *ErrorEvent) string {
	msg := SafeString(e.Message)
	severity := SafeString(e.Severity)
	if severity == "" {
		severity = SeverityError
	}
	prefix := strings.ToUpper(severity)
	if e.Index != nil {
		return fmt.Sprintf("%s: unit %d - %s", prefix, *e.Index, Truncate(msg, maxMessageLength))
	}
	return fmt.Sprintf("%s: %s", prefix, Truncate(msg, maxMessageLength))
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// Truncate shortens text to maxLen, adding indicator if truncated.
func Truncate(s string, maxLen int) string {
	s = SafeString(s)
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= len(truncateIndicator) {
		return truncateIndicator
	}
	return s[:maxLen-len(truncateIndicator)] + truncateIndicator
}

// ansiRegex matches ANSI escape sequences.
var ansiRegex = regexp.MustCompile(`\x1b\[[0-9;]*[a-zA-Z]`)

// StripANSI removes ANSI escape sequences from a string.
func StripANSI(s string) string {
	return ansiRegex.ReplaceAllString(s, "")
}

// SafeString sanitizes a string for display by removing control characters
// and flattening newlines. Notebook output is full of both.
func SafeString(s string) string {
	s = StripANSI(s)
	s = strings.ReplaceAll(s, "\n", " ")
	s = strings.ReplaceAll(s, "\r", " ")

	var sb strings.Builder
	sb.Grow(len(s))
	for _, r := range s {
		if r == ' ' || !unicode.IsControl(r) {
			sb.WriteRune(r)
		}
	}

	result := sb.String()
	for strings.Contains(result, "  ") {
		result = strings.ReplaceAll(result, "  ", " ")
	}
	return strings.TrimSpace(result)
}

// OutcomeSymbol returns a one-character marker for a unit outcome.
func OutcomeSymbol(outcome string) string {
	switch outcome {
	case "completed":
		return "+"
	case "errored":
		return "x"
	case "timed_out":
		return "~"
	case "interrupted":
		return "!"
	case "cancelled":
		return "-"
	default:
		return "?"
	}
}
