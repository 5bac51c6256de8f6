package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/c360studio/qualitygate/annotations"
	"github.com/c360studio/qualitygate/ci"
	"github.com/c360studio/qualitygate/config"
	"github.com/c360studio/qualitygate/metrics"
	"github.com/c360studio/qualitygate/tools/git"
	"github.com/c360studio/qualitygate/tools/github"
	"github.com/c360studio/qualitygate/tools/process"
)

// App wires the run's components from the configuration.
type App struct {
	cfg    *config.Config
	logger *slog.Logger
	refs   github.Refs

	gitExecutor *git.Executor
	client      *github.Client
	runner      *process.RecordingRunner
	metrics     *metrics.Metrics
	stdout      io.Writer
}

// NewApp creates a new application instance. The GitHub client is only
// created when both a token and a repository are configured.
func NewApp(ctx context.Context, cfg *config.Config, logger *slog.Logger, stdout io.Writer) (*App, error) {
	refs, err := github.ParseRefs(github.Env{
		EventPath: cfg.GitHub.EventPath,
		Ref:       cfg.GitHub.Ref,
		SHA:       cfg.GitHub.SHA,
	})
	if err != nil {
		return nil, err
	}

	app := &App{
		cfg:         cfg,
		logger:      logger,
		refs:        refs,
		gitExecutor: git.NewExecutor(cfg.Directory, logger),
		runner:      process.NewRecordingRunner(process.NewExecRunner(logger), logger),
		metrics:     metrics.New(),
		stdout:      stdout,
	}

	if cfg.Token == "" || cfg.GitHub.Repository == "" {
		logger.Info("No GitHub token or repository, skipping artifacts and comments")
		return app, nil
	}
	repo, err := github.ParseRepository(cfg.GitHub.Repository)
	if err != nil {
		return nil, err
	}
	client, err := github.NewClient(ctx, github.Options{
		Token:      cfg.Token,
		APIURL:     cfg.GitHub.APIURL,
		Repository: repo,
		RunID:      cfg.GitHub.RunID,
		Refs:       refs,
		Logger:     logger,
	})
	if err != nil {
		return nil, fmt.Errorf("create GitHub client: %w", err)
	}
	app.client = client
	return app, nil
}

// Run executes the CI run.
func (a *App) Run(ctx context.Context) (*ci.RunResult, error) {
	var platform ci.Platform
	if a.client != nil {
		platform = a.client
	}
	runner, err := ci.NewRunner(ci.Options{
		Config:      a.cfg,
		Refs:        a.refs,
		Git:         a.gitExecutor,
		Platform:    platform,
		Runner:      a.runner,
		Annotations: annotations.NewWriter(a.stdout),
		Metrics:     a.metrics,
		Logger:      a.logger,
	})
	if err != nil {
		return nil, err
	}
	result, err := runner.Run(ctx)
	for _, rec := range a.runner.Failures() {
		a.logger.Warn("Command failed",
			slog.String("command", rec.Command),
			slog.String("status", rec.Status),
			slog.Int("exit_code", rec.ExitCode),
			slog.String("stderr", rec.Stderr))
	}
	return result, err
}

// Commands returns the commands run so far.
func (a *App) Commands() []process.Record {
	return a.runner.Records()
}

// Close removes downloaded artifacts.
func (a *App) Close() error {
	if a.client == nil {
		return nil
	}
	return a.client.Close()
}
