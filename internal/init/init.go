// Package initcmd writes a starter cellpilot config file for a project or
// for the current user.
package initcmd

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/npratt/cellpilot/internal/config"
)

// ErrChanged is returned when the target exists with different content and
// Force is not set.
var ErrChanged = errors.New("config file has changes (use --force to overwrite)")

// Options configures the init command behavior.
type Options struct {
	DryRun      bool
	Force       bool
	Global      bool
	NotebookURL string    // Written as notebook.url when set
	Dir         string    // Project directory (defaults to the working directory)
	Writer      io.Writer // Output writer (defaults to os.Stdout)

	now func() time.Time
}

// Action is what init did, or would do, to the config file.
type Action string

// Init actions.
const (
	ActionCreated     Action = "created"
	ActionOverwritten Action = "overwritten"
	ActionUnchanged   Action = "unchanged"
	ActionSkipped     Action = "skipped"
)

// Result contains the outcome of the init operation.
type Result struct {
	Path   string
	Action Action
	Backup string // Previous content's location after an overwrite
	Diff   string // Unified diff against the existing file, if it differs
	DryRun bool
}

const header = `# cellpilot configuration.
# Precedence: defaults < ~/.config/cellpilot/config.yaml < .cellpilot/config.yaml
#             < --config < CELLPILOT_* environment < flags
`

// Render returns the starter config file content.
func Render(notebookURL string) (string, error) {
	cfg := config.Default()
	cfg.Notebook.URL = notebookURL
	data, err := config.Render(cfg)
	if err != nil {
		return "", fmt.Errorf("render config: %w", err)
	}
	return header + string(data), nil
}

// TargetPath returns the file init writes for opts.
func TargetPath(opts Options) (string, error) {
	if opts.Global {
		path, err := config.GlobalConfigFilePath()
		if err != nil {
			return "", fmt.Errorf("locate global config: %w", err)
		}
		return path, nil
	}
	dir := opts.Dir
	if dir == "" {
		dir = "."
	}
	return filepath.Join(dir, config.ProjectConfigDir, config.ProjectConfigFile), nil
}

// Run executes the init command with the given options.
func Run(opts Options) (*Result, error) {
	if opts.Writer == nil {
		opts.Writer = os.Stdout
	}
	if opts.now == nil {
		opts.now = time.Now
	}
	w := opts.Writer

	path, err := TargetPath(opts)
	if err != nil {
		return nil, err
	}
	content, err := Render(opts.NotebookURL)
	if err != nil {
		return nil, err
	}

	result := &Result{Path: path, DryRun: opts.DryRun}

	existing, err := os.ReadFile(path)
	exists := err == nil
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	switch {
	case !exists:
		result.Action = ActionCreated
	case string(existing) == content:
		result.Action = ActionUnchanged
		_, _ = fmt.Fprintf(w, "Already up to date: %s\n", path)
		return result, nil
	default:
		result.Diff = UnifiedDiff(path, "new", string(existing), content)
		if !opts.Force {
			result.Action = ActionSkipped
			_, _ = fmt.Fprintf(w, "%s has changes:\n%s\n", path, result.Diff)
			if opts.DryRun {
				return result, nil
			}
			return result, ErrChanged
		}
		result.Action = ActionOverwritten
	}

	if opts.DryRun {
		_, _ = fmt.Fprintln(w, "DRY RUN - No changes will be made")
		switch result.Action {
		case ActionCreated:
			_, _ = fmt.Fprintf(w, "Would create: %s\n", path)
			_, _ = fmt.Fprintln(w, "--- BEGIN FILE ---")
			_, _ = fmt.Fprint(w, content)
			_, _ = fmt.Fprintln(w, "--- END FILE ---")
		case ActionOverwritten:
			_, _ = fmt.Fprintf(w, "Would overwrite: %s\n%s\n", path, result.Diff)
		}
		return result, nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return result, fmt.Errorf("create directory: %w", err)
	}

	if result.Action == ActionOverwritten {
		result.Backup = fmt.Sprintf("%s.%s.bak", path, opts.now().Format("20060102-150405"))
		if err := os.WriteFile(result.Backup, existing, 0644); err != nil {
			return result, fmt.Errorf("back up %s: %w", path, err)
		}
	}

	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		return result, fmt.Errorf("write %s: %w", path, err)
	}

	if result.Backup != "" {
		_, _ = fmt.Fprintf(w, "Overwritten: %s (previous saved to %s)\n", path, result.Backup)
	} else {
		_, _ = fmt.Fprintf(w, "Created: %s\n", path)
	}
	_, _ = fmt.Fprintln(w, "You can now use 'cellpilot run' to execute the notebook.")
	return result, nil
}
