package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/oklog/ulid/v2"
	"github.com/spf13/cobra"

	"github.com/jmylchreest/nowplaying/internal/config"
	"github.com/jmylchreest/nowplaying/internal/discord"
	"github.com/jmylchreest/nowplaying/internal/logging"
	"github.com/jmylchreest/nowplaying/internal/presence"
	"github.com/jmylchreest/nowplaying/internal/watch"
)

// Build-time variables (set via ldflags)
var (
	version   = "dev"
	commit    = "unknown"
	buildTime = "unknown"
)

// Pauses before exiting so a console window stays readable.
const (
	fatalExitDelay    = 5 * time.Second
	scaffoldExitDelay = 3 * time.Second
)

var rootOpts struct {
	configPath string
	logLevel   string
	noPause    bool
}

// rootCmd runs the daemon when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "nowplaying",
	Short: "Mirror a now playing text file into your Discord status",
	Long: `nowplaying watches a text file written by your music player and shows
its contents as a "Listening to" status on Discord.

The file is checked every few seconds and only re-read when its modification
time changes. Content shorter than the configured minimum length clears the
status.

On first run a commented config file is created; fill in the token and path
and start nowplaying again.`,
	Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildTime),
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runDaemon,
}

// Execute runs the root command and exits with the matching status.
// The daemon logs its own fatal errors; subcommand errors are printed here.
func Execute() {
	cmd, err := rootCmd.ExecuteC()
	if err != nil {
		if cmd == rootCmd {
			pause(exitDelay(err))
		} else {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
	}
	os.Exit(exitCode(err))
}

func init() {
	rootCmd.PersistentFlags().StringVar(&rootOpts.configPath, "config", "",
		"Path to config file (default: ~/.config/nowplaying/config.toml)")
	rootCmd.PersistentFlags().StringVar(&rootOpts.logLevel, "log-level", "",
		"Override the configured log level (debug, info, warn, error, critical)")
	rootCmd.PersistentFlags().BoolVar(&rootOpts.noPause, "no-pause", false,
		"Exit immediately on errors instead of pausing")
}

// exitCode maps a command error to a process exit status.
// A freshly scaffolded config is a normal exit.
func exitCode(err error) int {
	if err == nil || errors.Is(err, config.ErrScaffolded) {
		return 0
	}
	return 1
}

func exitDelay(err error) time.Duration {
	if errors.Is(err, config.ErrScaffolded) {
		return scaffoldExitDelay
	}
	return fatalExitDelay
}

// pause sleeps for d when attached to a terminal.
func pause(d time.Duration) {
	if rootOpts.noPause || !isatty.IsTerminal(os.Stdout.Fd()) {
		return
	}
	time.Sleep(d)
}

// configPath returns the --config value or the default path.
func configPath() string {
	if rootOpts.configPath != "" {
		return rootOpts.configPath
	}
	return config.Path()
}

// loadConfig loads and validates the config, scaffolding it when missing.
// Problems are logged at critical level.
func loadConfig(logger *slog.Logger) (*config.Config, error) {
	path := configPath()
	logger.Debug("loading config", "path", path)

	cfg, err := config.Load(path)
	if config.IsNotExist(err) {
		logger.Error("no config file, creating one now", "path", path)
		if err := config.WriteScaffold(path, false); err != nil {
			logging.Critical(logger, "failed to create config", "path", path, "error", err)
			return nil, err
		}
		logger.Info("config created, please set config", "path", path)
		return nil, config.ErrScaffolded
	}
	if err != nil {
		logging.Critical(logger, "failed to load config", "path", path, "error", err)
		return nil, err
	}

	if rootOpts.logLevel != "" {
		cfg.Log.Level = rootOpts.logLevel
	}

	if err := cfg.Validate(); err != nil {
		logging.Critical(logger, "invalid config, exiting", "error", err)
		return nil, err
	}

	return cfg, nil
}

// newBootstrapLogger returns the logger used until the config is loaded.
// It writes to stdout and the default log file so that config errors are
// kept in the log as well. If the file cannot be opened it logs to stdout only.
func newBootstrapLogger() (*slog.Logger, func() error) {
	logger, closeFn, err := logging.New(logging.Options{Level: rootOpts.logLevel, File: config.DefaultLogFile})
	if err == nil {
		return logger, closeFn
	}

	// An unknown --log-level is reported by Validate later.
	fallback, closeFn, ferr := logging.New(logging.Options{})
	if ferr != nil {
		fallback, closeFn = slog.Default(), func() error { return nil }
	}
	fallback.Warn("failed to set up bootstrap logging, logging to stdout only", "error", err)
	return fallback, closeFn
}

// sameFile reports whether two log file paths name the same file.
func sameFile(a, b string) bool {
	return a != "" && b != "" && filepath.Clean(a) == filepath.Clean(b)
}

func runDaemon(cmd *cobra.Command, args []string) error {
	bootstrap, closeBootstrap := newBootstrapLogger()
	defer func() { _ = closeBootstrap() }()

	cfg, err := loadConfig(bootstrap)
	if err != nil {
		return err
	}

	// Append to the bootstrap lines rather than truncating them.
	logger, closeLog, err := logging.New(logging.Options{
		Level:  cfg.Log.Level,
		File:   cfg.Log.File,
		Append: sameFile(cfg.Log.File, config.DefaultLogFile),
	})
	if err != nil {
		logging.Critical(bootstrap, "failed to set up logging", "error", err)
		return err
	}
	defer func() { _ = closeLog() }()

	logger = logger.With("run", ulid.Make().String())
	slog.SetDefault(logger)
	logger.Info("config loaded", "version", version, "path", cfg.Watch.Path, "bot", cfg.Discord.Bot)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return runSession(ctx, stop, cfg, logger)
}

// runSession logs in and runs the presence updater until ctx is done or
// the quit command is received.
func runSession(ctx context.Context, stop context.CancelFunc, cfg *config.Config, logger *slog.Logger) error {
	session, err := discord.NewSession(cfg.Discord, logger)
	if err != nil {
		logging.Critical(logger, "failed to create session", "error", err)
		return err
	}
	session.SetQuitHandler(stop)

	if err := session.Open(); err != nil {
		logging.Critical(logger, "log in failed, check token!", "error", err)
		return err
	}
	defer func() {
		if err := session.Close(); err != nil {
			logger.Warn("error closing session", "error", err)
		}
	}()

	opts := presence.Options{
		MinLength:    cfg.Watch.MinLength,
		Interval:     cfg.Watch.Interval.Duration(),
		StartupDelay: cfg.Watch.StartupDelay.Duration(),
	}

	if cfg.Watch.Notify {
		notifier, err := watch.NewNotifier(cfg.Watch.Path, logger)
		if err != nil {
			logger.Warn("failed to create file notifier, polling only", "error", err)
		} else if err := notifier.Start(ctx); err != nil {
			logger.Warn("failed to start file notifier, polling only", "error", err)
			_ = notifier.Stop()
		} else {
			defer func() { _ = notifier.Stop() }()
			opts.Wake = notifier.C()
		}
	}

	updater := presence.NewUpdater(presence.NewFileSource(cfg.Watch.Path), session, session, opts, logger)

	err = updater.Run(ctx)
	if ctx.Err() != nil {
		logger.Info("shutting down")
		return nil
	}
	return err
}
