package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/npratt/cellpilot/internal/config"
	"github.com/npratt/cellpilot/internal/daemon"
	initcmd "github.com/npratt/cellpilot/internal/init"
)

var version = "dev"

// getDaemonClient creates a daemon client by finding daemon.json in the project.
func getDaemonClient() (*daemon.Client, error) {
	info, err := daemon.FindInfo("")
	if err != nil {
		return nil, fmt.Errorf("cellpilot not running: %w", err)
	}
	return daemon.NewClient(info.SocketPath), nil
}

// loadConfig loads the layered config and applies the global path flags.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.LoadConfig(viper.GetViper())
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	flags := cmd.Flags()
	if flags.Changed(FlagLogFile) {
		cfg.Paths.Log = viper.GetString(FlagLogFile)
	}
	if flags.Changed(FlagStateFile) {
		cfg.Paths.State = viper.GetString(FlagStateFile)
	}
	if flags.Changed(FlagSocketPath) {
		cfg.Paths.Socket = viper.GetString(FlagSocketPath)
	}
	return cfg, nil
}

func main() {
	logLevel := &slog.LevelVar{}
	logger := NewJSONLogger(os.Stderr, logLevel)

	viper.SetEnvPrefix(config.EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	viper.AutomaticEnv()

	rootCmd := &cobra.Command{
		Use:   "cellpilot",
		Short: "Run a hosted notebook top to bottom through a browser",
		Long: `cellpilot drives a hosted notebook through a real browser session. It
connects the runtime, runs every cell in order, waits for each to finish,
and starts over from the first cell whenever the notebook asks for a
runtime restart.

Lines that follow "Running on public URL" in cell output are collected as
artifacts; the first one is the run's result.`,
		SilenceUsage: true,
	}

	// Persistent flags available to all commands
	rootCmd.PersistentFlags().Bool(FlagVerbose, false, "Enable verbose (debug) logging")
	rootCmd.PersistentFlags().String(FlagConfig, "", "Config file path (default: .cellpilot/config.yaml)")
	rootCmd.PersistentFlags().String(FlagLogFile, "", "Event log path")
	rootCmd.PersistentFlags().String(FlagStateFile, "", "State file path")
	rootCmd.PersistentFlags().String(FlagSocketPath, "", "Unix socket path for daemon control")

	rootCmd.PersistentFlags().VisitAll(func(f *pflag.Flag) {
		_ = viper.BindPFlag(f.Name, f)
	})

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("cellpilot %s\n", version)
		},
	}

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show the state of the running sequence",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := getDaemonClient()
			if err != nil {
				return err
			}

			status, err := client.Status()
			if err != nil {
				return err
			}

			if viper.GetBool(FlagJSON) {
				data, err := json.MarshalIndent(status, "", "  ")
				if err != nil {
					return fmt.Errorf("marshal status: %w", err)
				}
				fmt.Println(string(data))
				return nil
			}

			run := status.Run
			fmt.Printf("Status: %s\n", status.Status)
			fmt.Printf("Run: %s\n", status.RunID)
			fmt.Printf("Uptime: %s\n", status.Uptime)
			fmt.Printf("Started: %s\n", status.StartTime)
			fmt.Printf("Progress:\n")
			if run.Total > 0 {
				fmt.Printf("  Unit: %d/%d\n", min(run.Index+1, run.Total), run.Total)
			}
			fmt.Printf("  Generation: %d\n", run.Generation)
			fmt.Printf("  Restarts: %d/%d\n", run.Restarts, run.MaxRestarts)
			fmt.Printf("  Completed: %d\n", run.Completed)
			fmt.Printf("  Failed: %d\n", run.Failed)
			for _, a := range run.Artifacts {
				fmt.Printf("  Artifact: %s\n", a)
			}
			return nil
		},
	}
	statusCmd.Flags().Bool(FlagJSON, false, "Output status as JSON")
	_ = viper.BindPFlag(FlagJSON, statusCmd.Flags().Lookup(FlagJSON))

	pauseCmd := &cobra.Command{
		Use:   "pause",
		Short: "Pause before the next cell",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := getDaemonClient()
			if err != nil {
				return err
			}
			if err := client.Pause(); err != nil {
				return err
			}
			fmt.Println("Pause requested - the sequence will pause after the current cell")
			return nil
		},
	}

	resumeCmd := &cobra.Command{
		Use:   "resume",
		Short: "Resume a paused sequence",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := getDaemonClient()
			if err != nil {
				return err
			}
			if err := client.Resume(); err != nil {
				return err
			}
			fmt.Println("Resume requested")
			return nil
		},
	}

	stopCmd := &cobra.Command{
		Use:   "stop",
		Short: "Stop the running sequence",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := getDaemonClient()
			if err != nil {
				return err
			}
			if err := client.Stop(); err != nil {
				return err
			}
			fmt.Println("Stop requested")
			return nil
		},
	}

	eventsCmd := &cobra.Command{
		Use:   "events",
		Short: "View recent events",
		RunE: func(cmd *cobra.Command, args []string) error {
			logPath := eventLogPath(cmd)
			if viper.GetBool(FlagFollow) {
				return tailFollow(cmd.Context(), os.Stdout, logPath)
			}
			return tailLast(os.Stdout, logPath, viper.GetInt(FlagCount))
		},
	}
	eventsCmd.Flags().Bool(FlagFollow, false, "Follow event stream (like tail -f)")
	eventsCmd.Flags().Int(FlagCount, 20, "Number of recent events to show")
	eventsCmd.Flags().VisitAll(func(f *pflag.Flag) {
		_ = viper.BindPFlag(f.Name, f)
	})

	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration as YAML",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			data, err := config.Render(cfg)
			if err != nil {
				return fmt.Errorf("render config: %w", err)
			}
			_, err = os.Stdout.Write(data)
			return err
		},
	}

	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write a starter cellpilot configuration",
		Long: `Write a starter configuration populated with the defaults.

Creates .cellpilot/config.yaml in the current directory, or
~/.config/cellpilot/config.yaml with --global. An existing file that
differs is left alone and its diff printed unless --force is given,
in which case the previous file is kept as a timestamped .bak.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := initcmd.Options{
				DryRun:      viper.GetBool(FlagDryRun),
				Force:       viper.GetBool(FlagForce),
				Global:      viper.GetBool(FlagGlobal),
				NotebookURL: viper.GetString(FlagNotebookURL),
			}

			_, err := initcmd.Run(opts)
			return err
		},
	}

	initCmd.Flags().Bool(FlagDryRun, false, "Show what would be changed without making changes")
	initCmd.Flags().Bool(FlagForce, false, "Overwrite an existing config (creates a timestamped backup)")
	initCmd.Flags().Bool(FlagGlobal, false, "Write ~/.config/cellpilot/config.yaml instead of ./.cellpilot/config.yaml")
	initCmd.Flags().String(FlagNotebookURL, "", "Notebook URL to record in the config")
	initCmd.Flags().VisitAll(func(f *pflag.Flag) {
		_ = viper.BindPFlag(f.Name, f)
	})

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(newRunCmd(logger, logLevel))
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(pauseCmd)
	rootCmd.AddCommand(resumeCmd)
	rootCmd.AddCommand(stopCmd)
	rootCmd.AddCommand(eventsCmd)
	rootCmd.AddCommand(configCmd)

	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		logger.Error("command failed", "error", err)
		os.Exit(1)
	}
}

// eventLogPath prefers the running daemon's log, then the configured one.
func eventLogPath(cmd *cobra.Command) string {
	if info, err := daemon.FindInfo(""); err == nil && info.LogPath != "" {
		return info.LogPath
	}

	logPath := config.Default().Paths.Log
	if cfg, err := loadConfig(cmd); err == nil {
		logPath = cfg.Paths.Log
	}
	resolved, err := daemon.ResolvePaths(config.PathsConfig{Log: logPath}, daemon.FindProjectRoot(""))
	if err != nil {
		return logPath
	}
	return resolved.Log
}
