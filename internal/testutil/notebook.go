package testutil

import (
	"context"
	"fmt"
	"sync"

	"github.com/npratt/cellpilot/internal/notebook"
)

// FakeNotebook is a scripted notebook.Notebook. Each unit answers probes
// from its script in order, repeating the last entry; a unit without a
// script completes on its first probe. The restart dialog is raised
// explicitly or from the OnRun hook.
type FakeNotebook struct {
	mu sync.Mutex

	Units    int
	Scripts  map[int][]notebook.Probe
	RunErrs  map[int]error
	CountErr error

	// OnRun is called (without the lock held) after each trigger with the
	// unit index and the 1-based trigger count for that index.
	OnRun func(f *FakeNotebook, index, call int)

	dialog   bool
	runs     []int
	runCount map[int]int
	probes   map[int]int
	acks     int
}

// NewFakeNotebook creates a notebook with units units that all complete
// immediately.
func NewFakeNotebook(units int) *FakeNotebook {
	return &FakeNotebook{
		Units:    units,
		Scripts:  make(map[int][]notebook.Probe),
		RunErrs:  make(map[int]error),
		runCount: make(map[int]int),
		probes:   make(map[int]int),
	}
}

// Count returns the configured number of units.
func (f *FakeNotebook) Count(ctx context.Context) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.CountErr != nil {
		return 0, f.CountErr
	}
	return f.Units, nil
}

// Run records the trigger and restarts the unit's probe script.
func (f *FakeNotebook) Run(ctx context.Context, index int) error {
	f.mu.Lock()
	if err := f.RunErrs[index]; err != nil {
		f.mu.Unlock()
		return err
	}
	f.runs = append(f.runs, index)
	f.runCount[index]++
	f.probes[index] = 0
	call := f.runCount[index]
	hook := f.OnRun
	f.mu.Unlock()

	if hook != nil {
		hook(f, index, call)
	}
	return nil
}

// Probe returns the next scripted probe for index.
func (f *FakeNotebook) Probe(ctx context.Context, index int) notebook.Probe {
	f.mu.Lock()
	defer f.mu.Unlock()

	script, ok := f.Scripts[index]
	if !ok || len(script) == 0 {
		return notebook.Available(notebook.Status{Output: []string{fmt.Sprintf("unit %d done", index)}})
	}
	n := f.probes[index]
	f.probes[index]++
	if n >= len(script) {
		n = len(script) - 1
	}
	return script[n]
}

// Present reports whether the restart dialog is showing.
func (f *FakeNotebook) Present(ctx context.Context) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.dialog
}

// Acknowledge dismisses the dialog.
func (f *FakeNotebook) Acknowledge(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.dialog {
		return notebook.ErrControlNotFound
	}
	f.dialog = false
	f.acks++
	return nil
}

// RaiseDialog makes the restart dialog appear.
func (f *FakeNotebook) RaiseDialog() {
	f.mu.Lock()
	f.dialog = true
	f.mu.Unlock()
}

// Runs returns the unit indices in trigger order.
func (f *FakeNotebook) Runs() []int {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]int, len(f.runs))
	copy(out, f.runs)
	return out
}

// Acks returns how many times the dialog was acknowledged.
func (f *FakeNotebook) Acks() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.acks
}

// Running is a probe of a unit still executing with the given output.
func Running(output ...string) notebook.Probe {
	return notebook.Available(notebook.Status{Running: true, Output: output})
}

// Finished is a probe of a unit that stopped with the given output.
func Finished(output ...string) notebook.Probe {
	return notebook.Available(notebook.Status{Output: output})
}

// Failed is a probe of a unit showing an error.
func Failed(output ...string) notebook.Probe {
	return notebook.Available(notebook.Status{HasError: true, Output: output})
}
