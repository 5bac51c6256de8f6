package monorepo

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/c360studio/qualitygate/tools/process"
)

// Mode selects monorepo behaviour. An empty Tool means auto-detect.
type Mode struct {
	Enabled bool
	Tool    Tool
}

// ListOptions configures project resolution.
type ListOptions struct {
	Mode Mode
	// Projects are directory globs used when no tool is found.
	Projects         []string
	Task             string
	Bin              string
	Directory        string
	Silent           bool
	Runner           process.Runner
	CLIPackage       string
	NxProjectsFilter []string
	Logger           *slog.Logger
}

func (o ListOptions) handlerOptions() HandlerOptions {
	return HandlerOptions{
		Dir:              o.Directory,
		Task:             o.Task,
		Silent:           o.Silent,
		Runner:           o.Runner,
		CLIPackage:       o.CLIPackage,
		NxProjectsFilter: o.NxProjectsFilter,
		Logger:           o.Logger,
	}
}

func (o ListOptions) bin() string {
	if o.Bin == "" {
		return DefaultBin
	}
	return o.Bin
}

// ListProjects resolves the monorepo projects to run the task for.
func ListProjects(ctx context.Context, opts ListOptions) ([]ProjectConfig, error) {
	if !opts.Mode.Enabled {
		return nil, ErrModeDisabled
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	hopts := opts.handlerOptions()

	tool := opts.Mode.Tool
	if tool == "" {
		detected, ok, err := DetectTool(ctx, hopts)
		if err != nil {
			return nil, err
		}
		if ok {
			tool = detected
			logger.Info("Auto-detected monorepo tool", slog.String("tool", string(tool)))
		} else {
			logger.Info("Couldn't auto-detect any supported monorepo tool")
		}
	} else {
		logger.Info("Using monorepo tool from inputs", slog.String("tool", string(tool)))
	}

	if tool != "" {
		handler, ok := HandlerFor(tool)
		if !ok {
			return nil, fmt.Errorf("%w %q", ErrInvalidTool, tool)
		}
		projects, err := handler.ListProjects(ctx, hopts)
		if err != nil {
			return nil, &ToolError{Tool: tool, Step: "list projects", Err: err}
		}
		logger.Info(fmt.Sprintf("Found %d projects in %s monorepo", len(projects), tool))
		logger.Debug("Projects", slog.String("names", projectNames(projects)))
		return projects, nil
	}

	if len(opts.Projects) > 0 {
		dirs, err := globDirectories(opts.Directory, opts.Projects)
		if err != nil {
			return nil, err
		}
		logger.Info(fmt.Sprintf("Found %d project folders matching %q from inputs", len(dirs), strings.Join(opts.Projects, ",")))
		projects := make([]ProjectConfig, len(dirs))
		for i, dir := range dirs {
			projects[i] = ProjectConfig{
				Name:      dir,
				Bin:       opts.bin(),
				Directory: filepath.Join(opts.Directory, filepath.FromSlash(dir)),
			}
		}
		logger.Debug("Projects", slog.String("names", projectNames(projects)))
		return projects, nil
	}

	packages, err := ListPackages(opts.Directory, nil)
	if err != nil {
		return nil, err
	}
	logger.Info(fmt.Sprintf("Found %d NPM packages in repository", len(packages)))
	projects := make([]ProjectConfig, len(packages))
	for i, p := range packages {
		projects[i] = ProjectConfig{Name: p.Name, Bin: opts.bin(), Directory: p.Directory}
	}
	logger.Debug("Projects", slog.String("names", projectNames(projects)))
	return projects, nil
}

// globDirectories returns directories under root matching the patterns,
// relative and slash-separated. Patterns keep their order.
func globDirectories(root string, patterns []string) ([]string, error) {
	var includes, excludes []string
	for _, p := range patterns {
		if rest, ok := strings.CutPrefix(p, "!"); ok {
			excludes = append(excludes, cleanPattern(rest))
		} else {
			includes = append(includes, cleanPattern(p))
		}
	}

	fsys := os.DirFS(root)
	seen := make(map[string]bool)
	var dirs []string
	for _, pattern := range includes {
		matches, err := doublestar.Glob(fsys, pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid project pattern %q: %w", pattern, err)
		}
		sort.Strings(matches)
		for _, m := range matches {
			m = path.Clean(m)
			if seen[m] || inExcludedDir(m) || excludedBy(excludes, m) {
				continue
			}
			info, err := fs.Stat(fsys, m)
			if err != nil || !info.IsDir() {
				continue
			}
			seen[m] = true
			dirs = append(dirs, m)
		}
	}
	return dirs, nil
}

func projectNames(projects []ProjectConfig) string {
	names := make([]string, len(projects))
	for i, p := range projects {
		names[i] = p.Name
	}
	return strings.Join(names, ", ")
}
