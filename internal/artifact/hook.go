package artifact

import (
	"context"
	"log/slog"
	"strconv"
	"strings"

	"github.com/npratt/cellpilot/internal/exec"
)

// HookVars are the values a hook command can reference.
type HookVars struct {
	URL   string
	RunID string
	Index int
}

// ExpandArgs substitutes {{.URL}}, {{.RunID}} and {{.Index}} in args.
// Replacement is single pass, so values containing placeholders stay literal.
// When no argument mentions {{.URL}} the URL is appended as a final argument.
func ExpandArgs(args []string, vars HookVars) []string {
	r := strings.NewReplacer(
		"{{.URL}}", vars.URL,
		"{{.RunID}}", vars.RunID,
		"{{.Index}}", strconv.Itoa(vars.Index),
	)

	out := make([]string, 0, len(args)+1)
	mentionsURL := false
	for _, a := range args {
		if strings.Contains(a, "{{.URL}}") {
			mentionsURL = true
		}
		out = append(out, r.Replace(a))
	}
	if !mentionsURL {
		out = append(out, vars.URL)
	}
	return out
}

// Hook hands each new artifact to an external command.
type Hook struct {
	runner  exec.CommandRunner
	command []string
	logger  *slog.Logger
}

// NewHook creates a Hook. An empty command yields a Hook that does nothing.
func NewHook(runner exec.CommandRunner, command []string, logger *slog.Logger) *Hook {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hook{runner: runner, command: command, logger: logger}
}

// Enabled reports whether a command is configured.
func (h *Hook) Enabled() bool {
	return h != nil && len(h.command) > 0 && h.runner != nil
}

// Deliver runs the hook command for one artifact. Failures are logged and
// returned but never stop a run.
func (h *Hook) Deliver(ctx context.Context, vars HookVars) error {
	if !h.Enabled() {
		return nil
	}
	args := ExpandArgs(h.command[1:], vars)
	out, err := h.runner.Run(ctx, h.command[0], args...)
	if err != nil {
		h.logger.Warn("artifact hook failed",
			"command", h.command[0],
			"url", vars.URL,
			"error", err)
		return err
	}
	h.logger.Info("artifact delivered",
		"command", h.command[0],
		"url", vars.URL,
		"output_bytes", len(out))
	return nil
}
