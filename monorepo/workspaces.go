package monorepo

import "fmt"

// includePackage reports whether a workspace package gets a project: it
// declares the task script, or the CLI is installed in it or at the root.
func includePackage(pkg, root *PackageJSON, opts HandlerOptions) bool {
	return HasScript(pkg, opts.task()) ||
		HasDependency(pkg, opts.cliPackage()) ||
		HasDependency(root, opts.cliPackage())
}

// binFormat renders a package's command given whether it runs a script.
type binFormat func(name, task string, script bool) string

func workspaceProjects(packages []Package, root *PackageJSON, opts HandlerOptions, bin binFormat) []ProjectConfig {
	projects := make([]ProjectConfig, 0, len(packages))
	for _, p := range packages {
		if !includePackage(p.Manifest, root, opts) {
			continue
		}
		projects = append(projects, ProjectConfig{
			Name: p.Name,
			Bin:  bin(p.Name, opts.task(), HasScript(p.Manifest, opts.task())),
		})
	}
	return projects
}

func runOrExec(script bool) string {
	if script {
		return "run"
	}
	return "exec"
}

func npmBin(name, task string, script bool) string {
	return fmt.Sprintf("npm -w %s %s %s --", name, runOrExec(script), task)
}

func yarnBin(name, task string, script bool) string {
	return fmt.Sprintf("yarn workspace %s %s %s", name, runOrExec(script), task)
}

func pnpmBin(name, task string, script bool) string {
	return fmt.Sprintf("pnpm -F %s %s %s", name, runOrExec(script), task)
}
