package monorepo

import (
	"context"
	"path/filepath"
)

const npmLockFile = "package-lock.json"

type npmHandler struct{}

func (npmHandler) Tool() Tool { return ToolNpm }

func (npmHandler) IsConfigured(_ context.Context, opts HandlerOptions) (bool, error) {
	if !FileExists(filepath.Join(opts.Dir, npmLockFile)) {
		return false, nil
	}
	return HasWorkspacesEnabled(opts.Dir)
}

func (npmHandler) ListProjects(_ context.Context, opts HandlerOptions) ([]ProjectConfig, error) {
	packages, root, err := ListWorkspaces(opts.Dir)
	if err != nil {
		return nil, err
	}
	return workspaceProjects(packages, root, opts, npmBin), nil
}
