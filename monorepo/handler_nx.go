package monorepo

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/c360studio/qualitygate/tools/process"
)

const nxConfigFile = "nx.json"

type nxHandler struct{}

func (nxHandler) Tool() Tool { return ToolNx }

func (nxHandler) IsConfigured(ctx context.Context, opts HandlerOptions) (bool, error) {
	if !FileExists(filepath.Join(opts.Dir, nxConfigFile)) {
		return false, nil
	}
	code, err := process.Exec(ctx, opts.runner(), process.Command{
		Name:   "npx",
		Args:   []string{"nx", "report"},
		Dir:    opts.Dir,
		Silent: opts.Silent,
	})
	if err != nil {
		opts.logger().Debug("Nx workspace check failed", "error", err)
		return false, nil
	}
	return code == 0, nil
}

func (nxHandler) ListProjects(ctx context.Context, opts HandlerOptions) ([]ProjectConfig, error) {
	filter := opts.NxProjectsFilter
	if len(filter) == 0 {
		filter = []string{"--with-target=" + opts.task()}
	}
	args := append([]string{"nx", "show", "projects"}, filter...)
	args = append(args, "--json")

	stdout, err := process.Output(ctx, opts.runner(), process.Command{
		Name:   "npx",
		Args:   args,
		Dir:    opts.Dir,
		Silent: opts.Silent,
	})
	if err != nil {
		return nil, err
	}

	names, err := parseNxProjects(stdout)
	if err != nil {
		return nil, err
	}
	projects := make([]ProjectConfig, len(names))
	for i, name := range names {
		projects[i] = ProjectConfig{
			Name: name,
			Bin:  fmt.Sprintf("npx nx run %s:%s --", name, opts.task()),
		}
	}
	return projects, nil
}

func parseNxProjects(stdout string) ([]string, error) {
	var raw any
	if err := json.Unmarshal([]byte(stdout), &raw); err != nil {
		return nil, fmt.Errorf("invalid non-JSON output from 'nx show projects': %w", err)
	}
	items, ok := raw.([]any)
	if !ok {
		return nil, fmt.Errorf("invalid JSON output from 'nx show projects', expected array of strings, received %s", stdout)
	}
	names := make([]string, len(items))
	for i, item := range items {
		s, ok := item.(string)
		if !ok {
			return nil, fmt.Errorf("invalid JSON output from 'nx show projects', expected array of strings, received %s", stdout)
		}
		names[i] = s
	}
	return names, nil
}
