// Package config provides configuration types and defaults for cellpilot.
package config

import (
	"errors"
	"fmt"
	"time"
)

// Failure policies for units that end Errored or TimedOut.
const (
	OnFailureAdvance = "advance"
	OnFailureHalt    = "halt"
)

// Config holds all configuration for cellpilot.
type Config struct {
	Notebook    NotebookConfig    `yaml:"notebook" mapstructure:"notebook"`
	Executor    ExecutorConfig    `yaml:"executor" mapstructure:"executor"`
	Connection  ConnectionConfig  `yaml:"connection" mapstructure:"connection"`
	Browser     BrowserConfig     `yaml:"browser" mapstructure:"browser"`
	Artifact    ArtifactConfig    `yaml:"artifact" mapstructure:"artifact"`
	Paths       PathsConfig       `yaml:"paths" mapstructure:"paths"`
	LogRotation LogRotationConfig `yaml:"log_rotation" mapstructure:"log_rotation"`
}

// NotebookConfig selects the notebook and how the sequence treats it.
type NotebookConfig struct {
	URL         string `yaml:"url" mapstructure:"url"`
	MaxRestarts int    `yaml:"max_restarts" mapstructure:"max_restarts"`
	OnFailure   string `yaml:"on_failure" mapstructure:"on_failure"` // "advance" or "halt"
}

// ExecutorConfig holds per-unit polling settings.
type ExecutorConfig struct {
	PollInterval time.Duration `yaml:"poll_interval" mapstructure:"poll_interval"`
	UnitTimeout  time.Duration `yaml:"unit_timeout" mapstructure:"unit_timeout"`
	SettleDelay  time.Duration `yaml:"settle_delay" mapstructure:"settle_delay"` // Wait after triggering before the first probe
}

// ConnectionConfig holds runtime connection gate settings.
type ConnectionConfig struct {
	Enabled      bool          `yaml:"enabled" mapstructure:"enabled"` // Wait for a connected runtime before unit 0 and after restarts
	PollInterval time.Duration `yaml:"poll_interval" mapstructure:"poll_interval"`
	Timeout      time.Duration `yaml:"timeout" mapstructure:"timeout"`
	MaxAttempts  int           `yaml:"max_attempts" mapstructure:"max_attempts"` // Connect clicks before giving up
}

// BrowserConfig holds browser launch settings.
type BrowserConfig struct {
	Headless        bool          `yaml:"headless" mapstructure:"headless"`
	ControlURL      string        `yaml:"control_url" mapstructure:"control_url"` // Attach to a running browser instead of launching
	Bin             string        `yaml:"bin" mapstructure:"bin"`                 // Browser binary (empty = auto-detect/download)
	UserDataDir     string        `yaml:"user_data_dir" mapstructure:"user_data_dir"`
	NavigateTimeout time.Duration `yaml:"navigate_timeout" mapstructure:"navigate_timeout"`
	DialogWait      time.Duration `yaml:"dialog_wait" mapstructure:"dialog_wait"` // How long to wait for the restart dialog on each check
}

// ArtifactConfig holds artifact extraction settings.
type ArtifactConfig struct {
	Marker      string        `yaml:"marker" mapstructure:"marker"`
	Hook        []string      `yaml:"hook" mapstructure:"hook"` // Command run for each new artifact
	HookTimeout time.Duration `yaml:"hook_timeout" mapstructure:"hook_timeout"`
}

// PathsConfig holds file paths for state, logs, and socket.
type PathsConfig struct {
	State  string `yaml:"state" mapstructure:"state"`
	Log    string `yaml:"log" mapstructure:"log"`
	Socket string `yaml:"socket" mapstructure:"socket"`
	PID    string `yaml:"pid" mapstructure:"pid"`
}

// LogRotationConfig holds settings for log file rotation.
// Used for the event log and the TUI debug log.
type LogRotationConfig struct {
	MaxSizeMB  int  `yaml:"max_size_mb" mapstructure:"max_size_mb"`
	MaxBackups int  `yaml:"max_backups" mapstructure:"max_backups"`
	MaxAgeDays int  `yaml:"max_age_days" mapstructure:"max_age_days"`
	Compress   bool `yaml:"compress" mapstructure:"compress"`
}

// Default returns a Config with the standard cadence.
func Default() *Config {
	return &Config{
		Notebook: NotebookConfig{
			MaxRestarts: 3,
			OnFailure:   OnFailureAdvance,
		},
		Executor: ExecutorConfig{
			PollInterval: 2 * time.Second,
			UnitTimeout:  120 * time.Second,
			SettleDelay:  2 * time.Second,
		},
		Connection: ConnectionConfig{
			Enabled:      true,
			PollInterval: 3 * time.Second,
			Timeout:      60 * time.Second,
			MaxAttempts:  3,
		},
		Browser: BrowserConfig{
			Headless:        false,
			NavigateTimeout: 60 * time.Second,
			DialogWait:      500 * time.Millisecond,
		},
		Artifact: ArtifactConfig{
			Marker:      "Running on public URL",
			Hook:        []string{},
			HookTimeout: 30 * time.Second,
		},
		Paths: PathsConfig{
			State:  ".cellpilot/state.json",
			Log:    ".cellpilot/events.log",
			Socket: ".cellpilot/cellpilot.sock",
			PID:    ".cellpilot/cellpilot.pid",
		},
		LogRotation: LogRotationConfig{
			MaxSizeMB:  100,
			MaxBackups: 3,
			MaxAgeDays: 7,
			Compress:   true,
		},
	}
}

// Validate reports settings that would make a run meaningless.
func (c *Config) Validate() error {
	var errs []error
	if c.Notebook.MaxRestarts < 0 {
		errs = append(errs, fmt.Errorf("notebook.max_restarts must be >= 0, got %d", c.Notebook.MaxRestarts))
	}
	switch c.Notebook.OnFailure {
	case OnFailureAdvance, OnFailureHalt:
	default:
		errs = append(errs, fmt.Errorf("notebook.on_failure must be %q or %q, got %q",
			OnFailureAdvance, OnFailureHalt, c.Notebook.OnFailure))
	}
	if c.Executor.PollInterval <= 0 {
		errs = append(errs, fmt.Errorf("executor.poll_interval must be positive, got %s", c.Executor.PollInterval))
	}
	if c.Executor.UnitTimeout <= 0 {
		errs = append(errs, fmt.Errorf("executor.unit_timeout must be positive, got %s", c.Executor.UnitTimeout))
	}
	if c.Executor.SettleDelay < 0 {
		errs = append(errs, fmt.Errorf("executor.settle_delay must be >= 0, got %s", c.Executor.SettleDelay))
	}
	if c.Connection.Enabled && c.Connection.MaxAttempts < 1 {
		errs = append(errs, fmt.Errorf("connection.max_attempts must be >= 1, got %d", c.Connection.MaxAttempts))
	}
	return errors.Join(errs...)
}
