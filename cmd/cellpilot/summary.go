package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/npratt/cellpilot/internal/controller"
)

// summaryFile is the JSON shape written by --summary-file. Artifact repeats
// the first entry of Artifacts for consumers that only want one URL.
type summaryFile struct {
	*controller.Summary
	Artifact string `json:"artifact,omitempty"`
	Duration string `json:"duration"`
}

// printSummary writes the human-readable end-of-run report.
func printSummary(w io.Writer, s *controller.Summary) {
	_, _ = fmt.Fprintf(w, "Run %s: %s", s.RunID, s.Final)
	if s.Reason != "" {
		_, _ = fmt.Fprintf(w, " (%s)", s.Reason)
	}
	_, _ = fmt.Fprintln(w)
	_, _ = fmt.Fprintf(w, "  Units:     %d/%d completed, %d failed\n", s.Completed, s.Total, s.Failed)
	_, _ = fmt.Fprintf(w, "  Restarts:  %d\n", s.Restarts)
	_, _ = fmt.Fprintf(w, "  Duration:  %s\n", s.Duration.Round(time.Second))
	if len(s.Artifacts) == 0 {
		_, _ = fmt.Fprintln(w, "  Artifacts: none")
		return
	}
	_, _ = fmt.Fprintln(w, "  Artifacts:")
	for _, a := range s.Artifacts {
		_, _ = fmt.Fprintf(w, "    %s\n", a)
	}
}

// writeSummaryFile writes the summary as indented JSON, replacing path
// atomically.
func writeSummaryFile(path string, s *controller.Summary) error {
	out := summaryFile{Summary: s, Duration: s.Duration.String()}
	if url, ok := s.Artifact(); ok {
		out.Artifact = url
	}

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal summary: %w", err)
	}
	data = append(data, '\n')

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create summary directory: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("write summary: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("rename summary: %w", err)
	}
	return nil
}
