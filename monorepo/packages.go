package monorepo

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// excludedDirs are never searched for packages.
var excludedDirs = map[string]bool{
	"node_modules": true,
	".git":         true,
}

// Package is a directory containing a package.json.
type Package struct {
	Name      string
	Directory string
	Manifest  *PackageJSON
}

// ListPackages returns packages under root. Patterns are workspace globs
// relative to root; a leading "!" excludes matching directories. With no
// patterns every directory containing a package.json is returned.
func ListPackages(root string, patterns []string) ([]Package, error) {
	var dirs []string
	var err error
	if len(patterns) == 0 {
		dirs, err = walkPackageDirs(root)
	} else {
		dirs, err = globPackageDirs(root, patterns)
	}
	if err != nil {
		return nil, err
	}

	packages := make([]Package, 0, len(dirs))
	for _, rel := range dirs {
		dir := filepath.Join(root, filepath.FromSlash(rel))
		manifest, err := ReadPackageJSON(dir)
		if err != nil {
			return nil, err
		}
		name := manifest.Name
		if name == "" {
			name = filepath.Base(dir)
		}
		packages = append(packages, Package{Name: name, Directory: dir, Manifest: manifest})
	}
	return packages, nil
}

// walkPackageDirs finds every directory with a package.json. The root comes
// first, then shallower directories before deeper ones, lexically within a
// depth.
func walkPackageDirs(root string) ([]string, error) {
	var dirs []string
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if p != root && excludedDirs[d.Name()] {
				return filepath.SkipDir
			}
			return nil
		}
		if d.Name() != packageJSONFile {
			return nil
		}
		rel, err := filepath.Rel(root, filepath.Dir(p))
		if err != nil {
			return err
		}
		dirs = append(dirs, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan %s for packages: %w", root, err)
	}
	sort.SliceStable(dirs, func(i, j int) bool {
		return dirDepth(dirs[i]) < dirDepth(dirs[j])
	})
	return dirs, nil
}

func dirDepth(rel string) int {
	if rel == "." {
		return 0
	}
	return strings.Count(rel, "/") + 1
}

// globPackageDirs resolves workspace patterns to package directories.
// Patterns keep their order; matches within a pattern are sorted.
func globPackageDirs(root string, patterns []string) ([]string, error) {
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
		matches, err := doublestar.Glob(fsys, path.Join(pattern, packageJSONFile))
		if err != nil {
			return nil, fmt.Errorf("invalid workspace pattern %q: %w", pattern, err)
		}
		sort.Strings(matches)
		for _, m := range matches {
			dir := path.Dir(m)
			if seen[dir] || inExcludedDir(dir) || excludedBy(excludes, dir) {
				continue
			}
			seen[dir] = true
			dirs = append(dirs, dir)
		}
	}
	return dirs, nil
}

func cleanPattern(p string) string {
	p = strings.TrimPrefix(filepath.ToSlash(strings.TrimSpace(p)), "./")
	return strings.TrimSuffix(path.Clean(p), "/")
}

func inExcludedDir(dir string) bool {
	for _, seg := range strings.Split(dir, "/") {
		if excludedDirs[seg] {
			return true
		}
	}
	return false
}

func excludedBy(excludes []string, dir string) bool {
	for _, ex := range excludes {
		if ok, _ := doublestar.Match(ex, dir); ok {
			return true
		}
	}
	return false
}

// readRootPackageJSON returns nil without error when root has no package.json.
func readRootPackageJSON(root string) (*PackageJSON, error) {
	pkg, err := ReadPackageJSON(root)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	return pkg, nil
}

// HasWorkspacesEnabled reports whether the root package.json declares
// workspaces.
func HasWorkspacesEnabled(root string) (bool, error) {
	pkg, err := readRootPackageJSON(root)
	if err != nil {
		return false, err
	}
	return pkg != nil && len(pkg.Workspaces) > 0, nil
}

// ListWorkspaces returns the packages matched by the root package.json
// workspaces together with the root manifest.
func ListWorkspaces(root string) ([]Package, *PackageJSON, error) {
	rootPkg, err := ReadPackageJSON(root)
	if err != nil {
		return nil, nil, err
	}
	if len(rootPkg.Workspaces) == 0 {
		return nil, rootPkg, nil
	}
	packages, err := ListPackages(root, rootPkg.Workspaces)
	if err != nil {
		return nil, nil, err
	}
	return packages, rootPkg, nil
}
