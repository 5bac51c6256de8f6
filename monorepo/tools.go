// Package monorepo discovers the projects of a JavaScript monorepo and the
// command that runs the code-quality task in each of them.
package monorepo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/c360studio/qualitygate/tools/process"
)

// Tool names a supported monorepo tool.
type Tool string

// Supported tools, in detection priority order.
const (
	ToolNx    Tool = "nx"
	ToolTurbo Tool = "turbo"
	ToolYarn  Tool = "yarn"
	ToolPnpm  Tool = "pnpm"
	ToolNpm   Tool = "npm"
)

// Defaults shared with the action inputs.
const (
	DefaultTask       = "code-pushup"
	DefaultCLIPackage = "@code-pushup/cli"
	DefaultBin        = "npx --no-install code-pushup"
)

var (
	// ErrInvalidTool is returned for a tool name outside the supported set.
	ErrInvalidTool = errors.New("invalid monorepo tool")
	// ErrModeDisabled is returned when projects are listed without monorepo mode.
	ErrModeDisabled = errors.New("monorepo mode not enabled")
	// ErrTurboPackageManager is returned when Turborepo is used without a
	// supported package manager.
	ErrTurboPackageManager = errors.New("package manager for Turborepo not found")
)

// ParseTool validates a tool name.
func ParseTool(s string) (Tool, error) {
	t := Tool(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := HandlerFor(t); !ok {
		return "", fmt.Errorf("%w %q, expected one of %s", ErrInvalidTool, s, strings.Join(toolNames(), "/"))
	}
	return t, nil
}

func toolNames() []string {
	handlers := Handlers()
	names := make([]string, len(handlers))
	for i, h := range handlers {
		names[i] = string(h.Tool())
	}
	return names
}

// ProjectConfig is one project to run the task for. An empty Directory
// means the monorepo root.
type ProjectConfig struct {
	Name      string `json:"name"`
	Bin       string `json:"bin"`
	Directory string `json:"directory,omitempty"`
}

// HandlerOptions is what every handler needs to inspect the repository.
type HandlerOptions struct {
	Dir              string
	Task             string
	Silent           bool
	Runner           process.Runner
	CLIPackage       string
	NxProjectsFilter []string
	Logger           *slog.Logger
}

func (o HandlerOptions) task() string {
	if o.Task == "" {
		return DefaultTask
	}
	return o.Task
}

func (o HandlerOptions) cliPackage() string {
	if o.CLIPackage == "" {
		return DefaultCLIPackage
	}
	return o.CLIPackage
}

func (o HandlerOptions) runner() process.Runner {
	if o.Runner == nil {
		return process.NewExecRunner(o.logger())
	}
	return o.Runner
}

func (o HandlerOptions) logger() *slog.Logger {
	if o.Logger == nil {
		return slog.Default()
	}
	return o.Logger
}

// Handler detects and lists projects for one monorepo tool.
type Handler interface {
	Tool() Tool
	// IsConfigured reports whether the repository uses this tool. A negative
	// answer is never an error; err signals broken configuration.
	IsConfigured(ctx context.Context, opts HandlerOptions) (bool, error)
	ListProjects(ctx context.Context, opts HandlerOptions) ([]ProjectConfig, error)
}

// ToolError identifies the tool and step that failed.
type ToolError struct {
	Tool Tool
	Step string
	Err  error
}

func (e *ToolError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Tool, e.Step, e.Err)
}

func (e *ToolError) Unwrap() error {
	return e.Err
}
