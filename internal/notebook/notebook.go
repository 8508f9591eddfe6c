// Package notebook defines the observed data model of a hosted notebook and
// the capability interfaces the executor drives it through. Concrete lookup
// mechanisms (DOM selectors, shadow roots) live behind these interfaces.
package notebook

import (
	"context"
	"errors"
	"strings"
	"time"
)

// ErrControlNotFound is returned when a control the automation needs
// (run button, dialog button) is absent from the page.
var ErrControlNotFound = errors.New("control not found")

// ErrInterrupted signals that a restart dialog invalidated in-progress work.
var ErrInterrupted = errors.New("restart interrupt")

// Phase is the status derived from one probe of a unit.
type Phase string

// Unit phases.
const (
	PhaseIdle      Phase = "idle"
	PhaseRunning   Phase = "running"
	PhaseCompleted Phase = "completed"
	PhaseError     Phase = "error"
)

// Status holds the attributes observed on a unit. The notebook owns them;
// cellpilot only reads.
type Status struct {
	Running  bool     `json:"isRunning"`
	Focused  bool     `json:"isFocused"`
	HasError bool     `json:"hasError"`
	Output   []string `json:"output"`
}

// HasOutput reports whether any output line carries non-whitespace text.
func (s Status) HasOutput() bool {
	for _, line := range s.Output {
		if strings.TrimSpace(line) != "" {
			return true
		}
	}
	return false
}

// Phase classifies the status. An error wins over running.
func (s Status) Phase() Phase {
	switch {
	case s.HasError:
		return PhaseError
	case s.Running:
		return PhaseRunning
	case s.HasOutput():
		return PhaseCompleted
	default:
		return PhaseIdle
	}
}

// Probe is the tagged result of reading one unit. When OK is false, Reason
// says why (for example "run button not found"); Status is zero.
type Probe struct {
	OK     bool
	Status Status
	Reason string
}

// Unavailable builds a failed probe.
func Unavailable(reason string) Probe {
	return Probe{Reason: reason}
}

// Available builds a successful probe.
func Available(s Status) Probe {
	return Probe{OK: true, Status: s}
}

// Attempt is one poll cycle of a unit. It is discarded after use.
type Attempt struct {
	Index     int
	Elapsed   time.Duration
	OutputLen int
	Phase     Phase
	Probe     Probe
}

// Prober reads the current status of a unit. It never fails loudly: all
// failure is reported through Probe.OK and Probe.Reason.
type Prober interface {
	Probe(ctx context.Context, index int) Probe
}

// Trigger starts execution of a unit. It returns ErrControlNotFound when
// the unit has no run control.
type Trigger interface {
	Run(ctx context.Context, index int) error
}

// Interrupts detects and acknowledges the out-of-band restart dialog.
type Interrupts interface {
	// Present waits briefly for the dialog and reports whether it showed up.
	Present(ctx context.Context) bool
	// Acknowledge clicks through the dialog.
	Acknowledge(ctx context.Context) error
}

// Notebook is the full surface a sequence run needs.
type Notebook interface {
	Prober
	Trigger
	Interrupts
	// Count returns the number of units currently on the page.
	Count(ctx context.Context) (int, error)
}
