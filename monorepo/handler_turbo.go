package monorepo

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
)

const turboConfigFile = "turbo.json"

// turboConfig accepts the current "tasks" key and the pre-2.0 "pipeline".
type turboConfig struct {
	Tasks    map[string]any `json:"tasks"`
	Pipeline map[string]any `json:"pipeline"`
}

func (c turboConfig) hasTask(task string) bool {
	if _, ok := c.Tasks[task]; ok {
		return true
	}
	_, ok := c.Pipeline[task]
	return ok
}

type turboHandler struct {
	// packageManagers list workspace packages, first configured wins.
	packageManagers []Handler
}

func newTurboHandler() turboHandler {
	return turboHandler{packageManagers: []Handler{pnpmHandler{}, yarnHandler{}, npmHandler{}}}
}

func (turboHandler) Tool() Tool { return ToolTurbo }

func (turboHandler) IsConfigured(_ context.Context, opts HandlerOptions) (bool, error) {
	path := filepath.Join(opts.Dir, turboConfigFile)
	if !FileExists(path) {
		return false, nil
	}
	var cfg turboConfig
	if err := ReadJSONFile(path, &cfg); err != nil {
		return false, err
	}
	return cfg.hasTask(opts.task()), nil
}

func (h turboHandler) ListProjects(ctx context.Context, opts HandlerOptions) ([]ProjectConfig, error) {
	for _, pm := range h.packageManagers {
		ok, err := pm.IsConfigured(ctx, opts)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		opts.logger().Debug("Listing Turborepo packages", "package_manager", string(pm.Tool()))
		packages, err := pm.ListProjects(ctx, opts)
		if err != nil {
			return nil, err
		}
		projects := make([]ProjectConfig, len(packages))
		for i, p := range packages {
			projects[i] = ProjectConfig{
				Name: p.Name,
				Bin:  fmt.Sprintf("npx turbo run %s -F %s --", opts.task(), p.Name),
			}
		}
		return projects, nil
	}

	names := make([]string, len(h.packageManagers))
	for i, pm := range h.packageManagers {
		names[i] = string(pm.Tool())
	}
	return nil, fmt.Errorf("%w, expected one of %s", ErrTurboPackageManager, strings.Join(names, "/"))
}
