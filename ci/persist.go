package ci

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
)

// Layout of files written by the code-quality CLI.
const (
	OutputDir      = ".code-pushup"
	ReportFilename = "report"
)

var persistFormats = []string{"json", "md"}

var separatorsPattern = regexp.MustCompile(`[/\\\s]+`)

// ProjectToFilename turns a project name such as "@acme/web app" into a
// filename prefix ("acme-web-app").
func ProjectToFilename(project string) string {
	name := separatorsPattern.ReplaceAllString(project, "-")
	return strings.ReplaceAll(name, "@", "")
}

// filename prefixes base with the project so monorepo projects sharing a
// directory don't overwrite each other's files.
func filename(project, base string) string {
	if project == "" {
		return base
	}
	return ProjectToFilename(project) + "-" + base
}

// PersistedFiles locates the files of one CLI run.
type PersistedFiles struct {
	JSON string `json:"json,omitempty"`
	MD   string `json:"md,omitempty"`
}

func persistedFiles(dir, project string, isDiff bool) PersistedFiles {
	name := filename(project, ReportFilename)
	if isDiff {
		name += "-diff"
	}
	root := filepath.Join(dir, OutputDir)
	return PersistedFiles{
		JSON: filepath.Join(root, name+".json"),
		MD:   filepath.Join(root, name+".md"),
	}
}

func persistArgs(dir, project string) []string {
	args := []string{
		"--persist.outputDir=" + filepath.Join(dir, OutputDir),
		"--persist.filename=" + filename(project, ReportFilename),
	}
	for _, format := range persistFormats {
		args = append(args, "--persist.format="+format)
	}
	return args
}

func configArgs(config string) []string {
	if config == "" {
		return nil
	}
	return []string{fmt.Sprintf("--config=%s", config)}
}
