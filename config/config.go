// Package config provides configuration loading and management for qualitygate.
package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/c360studio/qualitygate/monorepo"
	"github.com/c360studio/qualitygate/tools/github"
)

// Config represents the complete qualitygate configuration
type Config struct {
	// Token authenticates GitHub API calls
	Token string `yaml:"token"`
	// Bin is the command that runs the code-quality CLI
	Bin string `yaml:"bin"`
	// ConfigPath is passed to the CLI as --config when set
	ConfigPath string `yaml:"config"`
	// Directory is the repository (or single project) directory
	Directory string `yaml:"directory"`
	Silent    bool   `yaml:"silent"`
	Debug     bool   `yaml:"debug"`
	// Task is the script or target name that runs the CLI in a monorepo
	Task string `yaml:"task"`
	// Monorepo is "false" (disabled), "true" (auto-detect) or a tool name
	Monorepo string `yaml:"monorepo"`
	// Projects are directory globs used when no monorepo tool is detected
	Projects         []string `yaml:"projects"`
	NxProjectsFilter []string `yaml:"nx_projects_filter"`
	// Annotations enables inline annotations for new issues
	Annotations bool `yaml:"annotations"`
	// Artifacts enables reusing base branch reports from workflow artifacts
	Artifacts   bool         `yaml:"artifacts"`
	CLIPackage  string       `yaml:"cli_package"`
	MetricsFile string       `yaml:"metrics_file"`
	GitHub      GitHubConfig `yaml:"github"`
}

// GitHubConfig describes the workflow run environment
type GitHubConfig struct {
	APIURL     string `yaml:"api_url"`
	Repository string `yaml:"repository"`
	RunID      int64  `yaml:"run_id"`
	EventPath  string `yaml:"event_path"`
	Ref        string `yaml:"ref"`
	SHA        string `yaml:"sha"`
}

// DefaultConfig returns a Config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Bin:         monorepo.DefaultBin,
		Task:        monorepo.DefaultTask,
		Monorepo:    "false",
		Annotations: true,
		Artifacts:   true,
		CLIPackage:  monorepo.DefaultCLIPackage,
		GitHub: GitHubConfig{
			APIURL: github.DefaultAPIURL,
		},
	}
}

// MonorepoMode interprets the monorepo setting.
func (c *Config) MonorepoMode() (monorepo.Mode, error) {
	switch strings.ToLower(strings.TrimSpace(c.Monorepo)) {
	case "", "false":
		return monorepo.Mode{}, nil
	case "true":
		return monorepo.Mode{Enabled: true}, nil
	}
	tool, err := monorepo.ParseTool(c.Monorepo)
	if err != nil {
		return monorepo.Mode{}, err
	}
	return monorepo.Mode{Enabled: true, Tool: tool}, nil
}

// Validate checks that the configuration is valid
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Bin) == "" {
		return fmt.Errorf("bin is required")
	}
	if strings.TrimSpace(c.Task) == "" {
		return fmt.Errorf("task is required")
	}
	if c.Directory == "" {
		return fmt.Errorf("directory is required")
	}
	if _, err := c.MonorepoMode(); err != nil {
		return fmt.Errorf("monorepo: %w", err)
	}
	if c.GitHub.Repository != "" {
		if _, err := github.ParseRepository(c.GitHub.Repository); err != nil {
			return fmt.Errorf("github.repository: %w", err)
		}
	}
	return nil
}

// LoadFromFile loads configuration from a YAML file
func LoadFromFile(path string) (*Config, error) {
	config := DefaultConfig()
	if err := config.applyFile(path); err != nil {
		return nil, err
	}
	return config, nil
}

// applyFile decodes a YAML file over the current values, so only keys
// present in the file change.
func (c *Config) applyFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}
	return nil
}
