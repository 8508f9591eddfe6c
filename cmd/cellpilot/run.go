package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"
	"golang.org/x/term"

	"github.com/npratt/cellpilot/internal/artifact"
	"github.com/npratt/cellpilot/internal/browser"
	"github.com/npratt/cellpilot/internal/config"
	"github.com/npratt/cellpilot/internal/connection"
	"github.com/npratt/cellpilot/internal/controller"
	"github.com/npratt/cellpilot/internal/daemon"
	"github.com/npratt/cellpilot/internal/events"
	"github.com/npratt/cellpilot/internal/exec"
	"github.com/npratt/cellpilot/internal/executor"
	"github.com/npratt/cellpilot/internal/shutdown"
	"github.com/npratt/cellpilot/internal/tui"
)

const (
	shutdownTimeout = 30 * time.Second
	tuiBufferSize   = 5000
)

var errNoNotebook = errors.New("notebook URL required (argument, notebook.url, or CELLPILOT_NOTEBOOK_URL)")

func newRunCmd(logger *slog.Logger, logLevel *slog.LevelVar) *cobra.Command {
	runCmd := &cobra.Command{
		Use:   "run [notebook-url]",
		Short: "Run every cell of a notebook in order",
		Long: `Open the notebook in a browser, connect its runtime, and run each cell in
order. A runtime restart dialog sends the sequence back to the first cell;
after --max-restarts of them the run is aborted.

The run's public URL, if any cell printed one, is reported at the end and
written to --summary-file.

Use --daemon to run in the background.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSequence(cmd, args, logger, logLevel)
		},
	}

	flags := runCmd.Flags()
	flags.Bool(FlagDaemon, false, "Run as a background daemon")
	flags.Bool(FlagTUI, false, "Enable terminal UI")
	flags.Bool(FlagHeadless, false, "Launch the browser without a window")
	flags.String(FlagControlURL, "", "Attach to a running browser's DevTools URL instead of launching one")
	flags.Int(FlagMaxRestarts, 0, "Restart dialogs tolerated before the run is aborted")
	flags.Duration(FlagUnitTimeout, 0, "How long a single cell may run")
	flags.Duration(FlagPollInterval, 0, "Delay between cell status checks")
	flags.String(FlagOnFailure, "", "What to do when a cell errors or times out (advance/halt)")
	flags.String(FlagMarker, "", "Output prefix that announces an artifact URL")
	flags.String(FlagHook, "", `Command run for each new artifact (e.g. "notify-send {{.URL}}")`)
	flags.Bool(FlagNoConnect, false, "Skip waiting for a connected runtime")
	flags.String(FlagSummaryFile, "", "Write the run summary as JSON to this path")

	flags.VisitAll(func(f *pflag.Flag) {
		_ = viper.BindPFlag(f.Name, f)
	})
	return runCmd
}

// applyRunFlags copies explicitly set run flags and the positional URL over
// the loaded config, then validates the result.
func applyRunFlags(flags *pflag.FlagSet, cfg *config.Config, args []string) error {
	if len(args) > 0 && args[0] != "" {
		cfg.Notebook.URL = args[0]
	}

	var errs []error
	get := func(err error) {
		if err != nil {
			errs = append(errs, err)
		}
	}

	if flags.Changed(FlagHeadless) {
		v, err := flags.GetBool(FlagHeadless)
		get(err)
		cfg.Browser.Headless = v
	}
	if flags.Changed(FlagControlURL) {
		v, err := flags.GetString(FlagControlURL)
		get(err)
		cfg.Browser.ControlURL = v
	}
	if flags.Changed(FlagMaxRestarts) {
		v, err := flags.GetInt(FlagMaxRestarts)
		get(err)
		cfg.Notebook.MaxRestarts = v
	}
	if flags.Changed(FlagUnitTimeout) {
		v, err := flags.GetDuration(FlagUnitTimeout)
		get(err)
		cfg.Executor.UnitTimeout = v
	}
	if flags.Changed(FlagPollInterval) {
		v, err := flags.GetDuration(FlagPollInterval)
		get(err)
		cfg.Executor.PollInterval = v
	}
	if flags.Changed(FlagOnFailure) {
		v, err := flags.GetString(FlagOnFailure)
		get(err)
		cfg.Notebook.OnFailure = v
	}
	if flags.Changed(FlagMarker) {
		v, err := flags.GetString(FlagMarker)
		get(err)
		cfg.Artifact.Marker = v
	}
	if flags.Changed(FlagHook) {
		v, err := flags.GetString(FlagHook)
		get(err)
		cfg.Artifact.Hook = strings.Fields(v)
	}
	if flags.Changed(FlagNoConnect) {
		v, err := flags.GetBool(FlagNoConnect)
		get(err)
		cfg.Connection.Enabled = !v
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("read flags: %w", err)
	}

	if cfg.Notebook.URL == "" && cfg.Browser.ControlURL == "" {
		return errNoNotebook
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

func runSequence(cmd *cobra.Command, args []string, logger *slog.Logger, logLevel *slog.LevelVar) error {
	daemonMode := viper.GetBool(FlagDaemon)

	// Determine TUI mode: explicit flag > auto-detect from TTY
	tuiEnabled := viper.GetBool(FlagTUI)
	if !cmd.Flags().Changed(FlagTUI) && !daemonMode {
		tuiEnabled = term.IsTerminal(int(os.Stdout.Fd()))
	}
	if tuiEnabled && daemonMode {
		return fmt.Errorf("--tui and --daemon flags are incompatible")
	}

	if viper.GetBool(FlagVerbose) {
		logLevel.Set(slog.LevelDebug)
		logger.Debug("verbose logging enabled")
	}

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := applyRunFlags(cmd.Flags(), cfg, args); err != nil {
		return err
	}

	projectRoot := daemon.FindProjectRoot("")
	cfg.Paths, err = daemon.ResolvePaths(cfg.Paths, projectRoot)
	if err != nil {
		return fmt.Errorf("resolve paths: %w", err)
	}

	pidFile := daemon.NewPIDFile(cfg.Paths.PID)
	pidFile.CleanupStale(cfg.Paths.Socket)
	if daemon.NewClient(cfg.Paths.Socket).IsRunning() {
		return fmt.Errorf("cellpilot already running (socket: %s)", cfg.Paths.Socket)
	}

	if daemonMode {
		shouldExit, _, err := daemon.Daemonize(cfg.Paths.Socket, os.Stdout)
		if err != nil {
			return fmt.Errorf("daemonize: %w", err)
		}
		if shouldExit {
			return nil
		}
	}

	if err := pidFile.Acquire(); err != nil {
		if errors.Is(err, daemon.ErrAlreadyRunning) {
			return fmt.Errorf("cellpilot already running (pid file: %s)", cfg.Paths.PID)
		}
		return err
	}
	defer pidFile.Release()

	ctx := cmd.Context()

	// TUI mode: redirect logger to file before anything else logs
	runLogger := logger
	if tuiEnabled {
		tuiLog := SetupTUILogger(filepath.Dir(cfg.Paths.Log), logLevel, cfg.LogRotation)
		defer func() { _ = tuiLog.Close() }()
		runLogger = tuiLog.Logger
		slog.SetDefault(runLogger)
	}

	runLogger.Info("cellpilot starting",
		"version", version,
		"notebook", cfg.Notebook.URL,
		"log_file", cfg.Paths.Log,
		"state_file", cfg.Paths.State,
		"max_restarts", cfg.Notebook.MaxRestarts,
		"daemon_mode", daemonMode,
	)

	// Write daemon info for CLI discovery
	infoPath := daemon.InfoPath(projectRoot)
	info := &daemon.Info{
		SocketPath:  cfg.Paths.Socket,
		PIDPath:     cfg.Paths.PID,
		LogPath:     cfg.Paths.Log,
		StatePath:   cfg.Paths.State,
		NotebookURL: cfg.Notebook.URL,
		StartTime:   time.Now(),
		PID:         os.Getpid(),
	}
	if err := daemon.WriteInfo(infoPath, info); err != nil {
		runLogger.Warn("failed to write daemon info", "error", err)
	}
	defer func() { _ = daemon.RemoveInfo(infoPath) }()

	router := events.NewRouter(events.DefaultBufferSize)
	router.SetLogger(runLogger)

	stopSinks, err := startSinks(ctx, cfg, router)
	if err != nil {
		router.Close()
		return err
	}
	defer func() {
		router.Close()
		stopSinks()
	}()

	session, err := browser.Open(ctx, cfg.Browser, runLogger)
	if err != nil {
		return fmt.Errorf("open browser: %w", err)
	}
	defer func() {
		if err := session.Close(); err != nil {
			runLogger.Warn("browser close failed", "error", err)
		}
	}()

	if err := session.Navigate(ctx, cfg.Notebook.URL); err != nil {
		return fmt.Errorf("open notebook: %w", err)
	}

	ctrl := buildController(cfg, session, router, runLogger)
	dmn := daemon.New(cfg, ctrl, runLogger)

	var tuiEvents <-chan events.Event
	if tuiEnabled {
		tuiEvents = router.SubscribeBuffered(tuiBufferSize)
	}

	var summary *controller.Summary
	runCtx, runCancel := context.WithCancel(ctx)
	defer runCancel()

	g, gctx := errgroup.WithContext(runCtx)
	g.Go(func() error {
		return dmn.Start(gctx)
	})
	g.Go(func() error {
		// The daemon only lives as long as the run.
		defer runCancel()
		return shutdown.Run(gctx, runLogger, shutdownTimeout,
			func(ctx context.Context) error {
				s, err := ctrl.Run(ctx)
				summary = s
				return err
			},
			ctrl.Stop,
		)
	})

	waitErr := make(chan error, 1)
	go func() {
		err := g.Wait()
		if tuiEvents != nil {
			router.Unsubscribe(tuiEvents)
		}
		waitErr <- err
	}()

	if tuiEnabled {
		tuiApp := tui.New(tuiEvents,
			tui.WithOnPause(ctrl.Pause),
			tui.WithOnResume(ctrl.Resume),
			tui.WithOnQuit(ctrl.Stop),
			tui.WithStatsGetter(ctrl),
		)
		if err := tuiApp.Run(); err != nil {
			runLogger.Warn("tui exited with error", "error", err)
		}
		ctrl.Stop()
	}

	err = <-waitErr
	if summary == nil {
		return err
	}

	printSummary(os.Stdout, summary)
	if path := viper.GetString(FlagSummaryFile); path != "" {
		if werr := writeSummaryFile(path, summary); werr != nil {
			runLogger.Error("failed to write summary", "error", werr, "path", path)
			if err == nil {
				err = werr
			}
		}
	}
	if err != nil {
		return err
	}
	return summary.Err()
}

// startSinks subscribes the event log and state file to router. The
// returned func stops both; call it after closing the router.
func startSinks(ctx context.Context, cfg *config.Config, router *events.Router) (func(), error) {
	logSink := events.NewRotatingLogSink(cfg.Paths.Log, events.Rotation{
		MaxSizeMB:  cfg.LogRotation.MaxSizeMB,
		MaxBackups: cfg.LogRotation.MaxBackups,
		MaxAgeDays: cfg.LogRotation.MaxAgeDays,
		Compress:   cfg.LogRotation.Compress,
	})
	stateSink := events.NewStateSink(cfg.Paths.State)

	sinkCtx, sinkCancel := context.WithCancel(ctx)

	if err := logSink.Start(sinkCtx, router.Subscribe()); err != nil {
		sinkCancel()
		return nil, fmt.Errorf("start log sink: %w", err)
	}
	if err := stateSink.Start(sinkCtx, router.SubscribeBuffered(events.StateBufferSize)); err != nil {
		sinkCancel()
		_ = logSink.Stop()
		return nil, fmt.Errorf("start state sink: %w", err)
	}

	return func() {
		sinkCancel()
		_ = logSink.Stop()
		_ = stateSink.Stop()
	}, nil
}

// buildController assembles the executor, connection gate and artifact hook
// around the browser session.
func buildController(cfg *config.Config, session *browser.Session, router *events.Router, logger *slog.Logger) *controller.Controller {
	nb := session.Notebook()

	runner := executor.New(nb, artifact.NewExtractor(cfg.Artifact.Marker), executor.Options{
		PollInterval: cfg.Executor.PollInterval,
		UnitTimeout:  cfg.Executor.UnitTimeout,
		SettleDelay:  cfg.Executor.SettleDelay,
	}, logger, router)

	opts := []controller.Option{
		controller.WithNotebookURL(cfg.Notebook.URL),
		controller.WithHook(artifact.NewHook(exec.NewExecRunner(), cfg.Artifact.Hook, logger)),
	}
	if cfg.Connection.Enabled {
		gate := connection.NewGate(session.Toolbar(), connection.GateOptions{
			PollInterval: cfg.Connection.PollInterval,
			Timeout:      cfg.Connection.Timeout,
			MaxAttempts:  cfg.Connection.MaxAttempts,
		}, logger, router)
		opts = append(opts, controller.WithGate(gate))
	}

	return controller.New(cfg, nb, runner, router, logger, opts...)
}
