package monorepo

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

const packageJSONFile = "package.json"

// PackageJSON holds the package manifest fields used for project discovery.
type PackageJSON struct {
	Name                 string            `json:"name"`
	Private              bool              `json:"private"`
	Workspaces           Workspaces        `json:"workspaces"`
	Scripts              map[string]string `json:"scripts"`
	Dependencies         map[string]string `json:"dependencies"`
	DevDependencies      map[string]string `json:"devDependencies"`
	OptionalDependencies map[string]string `json:"optionalDependencies"`
	PeerDependencies     map[string]string `json:"peerDependencies"`
}

// Workspaces accepts both the array form (`"workspaces": ["packages/*"]`) and
// the object form (`"workspaces": {"packages": ["packages/*"]}`).
type Workspaces []string

// UnmarshalJSON implements json.Unmarshaler.
func (w *Workspaces) UnmarshalJSON(data []byte) error {
	var list []string
	if err := json.Unmarshal(data, &list); err == nil {
		*w = list
		return nil
	}
	var obj struct {
		Packages []string `json:"packages"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return fmt.Errorf("workspaces must be an array or an object with packages: %w", err)
	}
	*w = obj.Packages
	return nil
}

// FileExists reports whether path is an existing regular file.
func FileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

// ReadJSONFile decodes a JSON file into v.
func ReadJSONFile(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return nil
}

// ReadYAMLFile decodes a YAML file into v.
func ReadYAMLFile(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return nil
}

// ReadPackageJSON reads the package.json in dir.
func ReadPackageJSON(dir string) (*PackageJSON, error) {
	var pkg PackageJSON
	if err := ReadJSONFile(filepath.Join(dir, packageJSONFile), &pkg); err != nil {
		return nil, err
	}
	return &pkg, nil
}

// HasScript reports whether the manifest declares a script named task.
func HasScript(pkg *PackageJSON, task string) bool {
	if pkg == nil {
		return false
	}
	_, ok := pkg.Scripts[task]
	return ok
}

// HasDependency reports whether the manifest depends on name in any
// dependency section.
func HasDependency(pkg *PackageJSON, name string) bool {
	if pkg == nil {
		return false
	}
	for _, deps := range []map[string]string{
		pkg.Dependencies,
		pkg.DevDependencies,
		pkg.OptionalDependencies,
		pkg.PeerDependencies,
	} {
		if _, ok := deps[name]; ok {
			return true
		}
	}
	return false
}
