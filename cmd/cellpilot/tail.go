package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"

	"github.com/npratt/cellpilot/internal/events"
)

// tailLast prints the last n lines of the event log.
func tailLast(w io.Writer, path string, n int) error {
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			_, _ = fmt.Fprintln(w, "No events yet (log file does not exist)")
			return nil
		}
		return fmt.Errorf("open log file: %w", err)
	}
	defer func() { _ = file.Close() }()

	var lines []string
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read log file: %w", err)
	}

	if len(lines) == 0 {
		_, _ = fmt.Fprintln(w, "No events yet")
		return nil
	}

	start := 0
	if n > 0 && len(lines) > n {
		start = len(lines) - n
	}
	for _, line := range lines[start:] {
		printEventLine(w, line)
	}
	return nil
}

// logFollower reads whatever was appended to the event log since the last
// drain. A partial trailing line is held until its newline arrives.
type logFollower struct {
	path    string
	file    *os.File
	reader  *bufio.Reader
	pending string
}

// open opens the log. atEnd skips the existing content.
func (f *logFollower) open(atEnd bool) error {
	file, err := os.Open(f.path)
	if err != nil {
		return err
	}
	if atEnd {
		if _, err := file.Seek(0, io.SeekEnd); err != nil {
			_ = file.Close()
			return fmt.Errorf("seek to end: %w", err)
		}
	}
	f.file = file
	f.reader = bufio.NewReader(file)
	f.pending = ""
	return nil
}

func (f *logFollower) close() {
	if f.file != nil {
		_ = f.file.Close()
		f.file = nil
		f.reader = nil
	}
}

func (f *logFollower) drain(w io.Writer) error {
	if f.reader == nil {
		return nil
	}
	for {
		chunk, err := f.reader.ReadString('\n')
		if err != nil {
			f.pending += chunk
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("read log: %w", err)
		}
		line := f.pending + strings.TrimSuffix(chunk, "\n")
		f.pending = ""
		printEventLine(w, line)
	}
}

// tailFollow prints events as they are appended to the log. It watches the
// log's directory so it notices the file being created or rotated.
func tailFollow(ctx context.Context, w io.Writer, path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create log directory: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer func() { _ = watcher.Close() }()

	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}

	f := &logFollower{path: path}
	defer f.close()
	if err := f.open(true); err != nil {
		if !os.IsNotExist(err) {
			return fmt.Errorf("open log file: %w", err)
		}
		_, _ = fmt.Fprintln(w, "Waiting for log file to be created...")
	}

	_, _ = fmt.Fprintln(w, "Following events (Ctrl+C to stop)...")

	target := filepath.Base(path)
	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Base(event.Name) != target {
				continue
			}

			switch {
			case event.Has(fsnotify.Create):
				// A new run rotated the old log away.
				f.close()
				if err := f.open(false); err != nil && !os.IsNotExist(err) {
					return fmt.Errorf("open log file: %w", err)
				}
			case event.Has(fsnotify.Write):
				if f.file == nil {
					if err := f.open(false); err != nil && !os.IsNotExist(err) {
						return fmt.Errorf("open log file: %w", err)
					}
				}
			case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
				if err := f.drain(w); err != nil {
					return err
				}
				f.close()
				continue
			default:
				continue
			}
			if err := f.drain(w); err != nil {
				return err
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			return fmt.Errorf("watch log: %w", err)
		}
	}
}

// printEventLine prints one JSONL log line in the same form the TUI uses.
// Lines that are not events are printed as they are.
func printEventLine(w io.Writer, line string) {
	if strings.TrimSpace(line) == "" {
		return
	}
	ev, err := events.ParseEvent([]byte(line))
	if err != nil || ev == nil {
		_, _ = fmt.Fprintln(w, line)
		return
	}
	_, _ = fmt.Fprintln(w, events.FormatWithTimestamp(ev))
}
