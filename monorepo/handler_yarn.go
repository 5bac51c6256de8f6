package monorepo

import (
	"context"
	"path/filepath"
)

const yarnLockFile = "yarn.lock"

type yarnHandler struct{}

func (yarnHandler) Tool() Tool { return ToolYarn }

func (yarnHandler) IsConfigured(_ context.Context, opts HandlerOptions) (bool, error) {
	if !FileExists(filepath.Join(opts.Dir, yarnLockFile)) {
		return false, nil
	}
	return HasWorkspacesEnabled(opts.Dir)
}

func (yarnHandler) ListProjects(_ context.Context, opts HandlerOptions) ([]ProjectConfig, error) {
	packages, root, err := ListWorkspaces(opts.Dir)
	if err != nil {
		return nil, err
	}
	return workspaceProjects(packages, root, opts, yarnBin), nil
}
