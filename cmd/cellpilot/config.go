package main

// Flag names for Viper binding
const (
	// Global flags
	FlagVerbose    = "verbose"
	FlagConfig     = "config"
	FlagLogFile    = "log-file"
	FlagStateFile  = "state-file"
	FlagSocketPath = "socket-path"

	// Run command flags
	FlagTUI          = "tui"
	FlagHeadless     = "headless"
	FlagControlURL   = "control-url"
	FlagMaxRestarts  = "max-restarts"
	FlagUnitTimeout  = "unit-timeout"
	FlagPollInterval = "poll-interval"
	FlagOnFailure    = "on-failure"
	FlagMarker       = "marker"
	FlagHook         = "hook"
	FlagNoConnect    = "no-connect"
	FlagSummaryFile  = "summary-file"

	// Run command daemon mode flags
	FlagDaemon = "daemon"

	// Events command flags
	FlagFollow = "follow"
	FlagCount  = "count"

	// Init command flags
	FlagDryRun      = "dry-run"
	FlagForce       = "force"
	FlagGlobal      = "global"
	FlagNotebookURL = "notebook-url"

	// Output format flags
	FlagJSON = "json"
)
