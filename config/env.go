package config

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/sethvargo/go-githubactions"
)

// ApplyEnv overrides fields from the environment: action inputs
// (INPUT_<NAME>), the GitHub Actions run context (GITHUB_*) and the runner
// debug switches. Unset variables leave fields untouched.
func (c *Config) ApplyEnv(getenv func(string) string) error {
	action := githubactions.New(githubactions.WithGetenv(getenv))
	in := func(name string) string {
		if v := action.GetInput(name); v != "" {
			return v
		}
		return action.GetInput(strings.ReplaceAll(name, "_", "-"))
	}

	setString := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	setBool := func(dst *bool, name string) error {
		v := in(name)
		if v == "" {
			return nil
		}
		b, err := parseBool(v)
		if err != nil {
			return fmt.Errorf("input %s: %w", strings.ToLower(name), err)
		}
		*dst = b
		return nil
	}

	setString(&c.Token, getenv("GITHUB_TOKEN"))
	setString(&c.Token, in("TOKEN"))
	setString(&c.Bin, in("BIN"))
	setString(&c.ConfigPath, in("CONFIG"))
	setString(&c.Directory, in("DIRECTORY"))
	setString(&c.Task, in("TASK"))
	setString(&c.Monorepo, in("MONOREPO"))
	setString(&c.CLIPackage, in("CLI_PACKAGE"))
	setString(&c.MetricsFile, in("METRICS_FILE"))
	if v := in("PROJECTS"); v != "" {
		c.Projects = splitList(v)
	}
	if v := in("NX_PROJECTS_FILTER"); v != "" {
		c.NxProjectsFilter = strings.Fields(v)
	}
	for name, dst := range map[string]*bool{
		"SILENT":      &c.Silent,
		"ANNOTATIONS": &c.Annotations,
		"ARTIFACTS":   &c.Artifacts,
	} {
		if err := setBool(dst, name); err != nil {
			return err
		}
	}

	setString(&c.GitHub.APIURL, getenv("GITHUB_API_URL"))
	setString(&c.GitHub.Repository, getenv("GITHUB_REPOSITORY"))
	setString(&c.GitHub.EventPath, getenv("GITHUB_EVENT_PATH"))
	setString(&c.GitHub.Ref, getenv("GITHUB_REF"))
	setString(&c.GitHub.SHA, getenv("GITHUB_SHA"))
	if v := getenv("GITHUB_RUN_ID"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("GITHUB_RUN_ID: invalid run ID %q", v)
		}
		c.GitHub.RunID = id
	}

	if IsDebugEnv(getenv) {
		c.Debug = true
	}
	return nil
}

// IsDebugEnv reports whether the runner has debug logging enabled.
func IsDebugEnv(getenv func(string) string) bool {
	return githubactions.New(githubactions.WithGetenv(getenv)).IsDebug() ||
		getenv("ACTIONS_RUNNER_DEBUG") == "true" ||
		getenv("ACTIONS_STEP_DEBUG") == "true"
}

// parseBool accepts the YAML 1.2 core schema booleans the runner uses for
// action inputs.
func parseBool(v string) (bool, error) {
	switch v {
	case "true", "True", "TRUE":
		return true, nil
	case "false", "False", "FALSE":
		return false, nil
	}
	return false, fmt.Errorf("invalid boolean %q, expected true or false", v)
}

// splitList splits comma- or newline-separated input values.
func splitList(v string) []string {
	var out []string
	for _, item := range strings.FieldsFunc(v, func(r rune) bool { return r == ',' || r == '\n' }) {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
