package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/c360studio/qualitygate/config"
)

// loadConfig layers command-line flags over the file and environment
// configuration and sets up logging for the resolved debug level.
func loadConfig(cmd *cobra.Command, flags *globalFlags, getenv func(string) string) (*config.Config, *slog.Logger, error) {
	bootstrap := newLogger(config.IsDebugEnv(getenv) || flags.debug)

	loader := config.NewLoader(bootstrap).WithEnv(getenv)
	if flags.configFile != "" {
		loader = loader.WithFile(flags.configFile)
	}
	cfg, err := loader.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}

	applyFlags(cmd, flags, cfg)

	if err := cfg.Finalize(); err != nil {
		return nil, nil, fmt.Errorf("invalid configuration: %w", err)
	}

	logger := newLogger(cfg.Debug)
	slog.SetDefault(logger)
	return cfg, logger, nil
}

// applyFlags copies only flags the user set, so unset flags never reset
// values from lower layers.
func applyFlags(cmd *cobra.Command, flags *globalFlags, cfg *config.Config) {
	changed := func(name string) bool {
		f := cmd.Flags().Lookup(name)
		return f != nil && f.Changed
	}
	if changed("directory") {
		cfg.Directory = flags.directory
	}
	if changed("bin") {
		cfg.Bin = flags.bin
	}
	if changed("config") {
		cfg.ConfigPath = flags.cliConfig
	}
	if changed("task") {
		cfg.Task = flags.task
	}
	if changed("monorepo") {
		cfg.Monorepo = flags.monorepo
	}
	if changed("projects") {
		cfg.Projects = flags.projects
	}
	if changed("silent") {
		cfg.Silent = flags.silent
	}
	if changed("debug") {
		cfg.Debug = flags.debug
	}
	if changed("metrics-file") {
		cfg.MetricsFile = flags.metricsFile
	}
}

func newLogger(debug bool) *slog.Logger {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}
