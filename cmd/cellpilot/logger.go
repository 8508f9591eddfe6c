package main

import (
	"io"
	"log/slog"
	"path/filepath"

	"github.com/npratt/cellpilot/internal/config"
	"gopkg.in/natefinch/lumberjack.v2"
)

// debugLogName is the file the TUI logger writes next to the event log.
const debugLogName = "cellpilot-debug.log"

// TUILoggerResult contains the results of setting up logging for TUI mode.
type TUILoggerResult struct {
	Logger   *slog.Logger
	LogFile  io.WriteCloser
	FilePath string
}

// Close closes the log file if it was opened.
func (r *TUILoggerResult) Close() error {
	if r.LogFile != nil {
		return r.LogFile.Close()
	}
	return nil
}

// SetupTUILogger creates a logger that writes to a rotating file instead of
// stderr, so log lines do not tear through the TUI.
func SetupTUILogger(logDir string, level slog.Leveler, rotationCfg config.LogRotationConfig) *TUILoggerResult {
	debugLogPath := filepath.Join(logDir, debugLogName)

	debugLogWriter := &lumberjack.Logger{
		Filename:   debugLogPath,
		MaxSize:    rotationCfg.MaxSizeMB,
		MaxBackups: rotationCfg.MaxBackups,
		MaxAge:     rotationCfg.MaxAgeDays,
		Compress:   rotationCfg.Compress,
	}

	return &TUILoggerResult{
		Logger:   NewJSONLogger(debugLogWriter, level),
		LogFile:  debugLogWriter,
		FilePath: debugLogPath,
	}
}

// NewJSONLogger creates the JSON logger every mode uses.
func NewJSONLogger(w io.Writer, level slog.Leveler) *slog.Logger {
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}))
}
