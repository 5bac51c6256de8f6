package monorepo

import (
	"context"
	"path/filepath"
)

const pnpmWorkspaceFile = "pnpm-workspace.yaml"

type pnpmWorkspace struct {
	Packages []string `yaml:"packages"`
}

type pnpmHandler struct{}

func (pnpmHandler) Tool() Tool { return ToolPnpm }

func (pnpmHandler) IsConfigured(_ context.Context, opts HandlerOptions) (bool, error) {
	return FileExists(filepath.Join(opts.Dir, pnpmWorkspaceFile)) &&
		FileExists(filepath.Join(opts.Dir, packageJSONFile)), nil
}

func (pnpmHandler) ListProjects(_ context.Context, opts HandlerOptions) ([]ProjectConfig, error) {
	var workspace pnpmWorkspace
	if err := ReadYAMLFile(filepath.Join(opts.Dir, pnpmWorkspaceFile), &workspace); err != nil {
		return nil, err
	}
	packages, err := ListPackages(opts.Dir, workspace.Packages)
	if err != nil {
		return nil, err
	}
	root, err := readRootPackageJSON(opts.Dir)
	if err != nil {
		return nil, err
	}
	return workspaceProjects(packages, root, opts, pnpmBin), nil
}
