package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
)

// ProjectConfigFile is the name of the project-level config file
const ProjectConfigFile = "qualitygate.yaml"

// Loader handles configuration loading with layered precedence
type Loader struct {
	logger *slog.Logger
	getenv func(string) string
	// file is an explicit config file; empty means search for one
	file string
}

// NewLoader creates a new configuration loader
func NewLoader(logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{logger: logger, getenv: os.Getenv}
}

// WithEnv replaces the environment lookup, mainly for tests.
func (l *Loader) WithEnv(getenv func(string) string) *Loader {
	l.getenv = getenv
	return l
}

// WithFile loads the given file instead of searching for qualitygate.yaml.
func (l *Loader) WithFile(path string) *Loader {
	l.file = path
	return l
}

// Load loads configuration with layered precedence:
// 1. Default config
// 2. Project config (qualitygate.yaml in current or parent directories)
// 3. Environment variables (action inputs and GitHub run context)
//
// Command-line flags are applied by the caller on top of the result, which
// is why Load does not validate.
func (l *Loader) Load() (*Config, error) {
	config := DefaultConfig()

	projectConfigPath := l.file
	if projectConfigPath == "" {
		projectConfigPath = l.findProjectConfig()
	}
	if projectConfigPath != "" {
		if err := config.applyFile(projectConfigPath); err != nil {
			return nil, err
		}
		l.logger.Debug("Loaded project config", slog.String("path", projectConfigPath))
	} else {
		l.logger.Debug("No project config found")
	}

	if err := config.ApplyEnv(l.getenv); err != nil {
		return nil, fmt.Errorf("invalid environment: %w", err)
	}
	return config, nil
}

// Finalize resolves the directory to an absolute path and validates.
func (c *Config) Finalize() error {
	if c.Directory == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("failed to get working directory: %w", err)
		}
		c.Directory = cwd
	}
	abs, err := filepath.Abs(c.Directory)
	if err != nil {
		return fmt.Errorf("invalid directory %q: %w", c.Directory, err)
	}
	c.Directory = abs
	return c.Validate()
}

// findProjectConfig searches for qualitygate.yaml in current and parent directories
func (l *Loader) findProjectConfig() string {
	cwd, err := os.Getwd()
	if err != nil {
		return ""
	}

	dir := cwd
	for {
		configPath := filepath.Join(dir, ProjectConfigFile)
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}

		// Move to parent directory
		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached root
			break
		}
		dir = parent
	}

	return ""
}
