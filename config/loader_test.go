package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoader_Precedence(t *testing.T) {
	root := t.TempDir()
	nested := filepath.Join(root, "packages", "web")
	if err := os.MkdirAll(nested, 0755); err != nil {
		t.Fatal(err)
	}
	content := "bin: npx code-pushup\ntask: quality\nsilent: true\n"
	if err := os.WriteFile(filepath.Join(root, ProjectConfigFile), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	t.Chdir(nested)

	cfg, err := NewLoader(nil).WithEnv(envMap(map[string]string{
		"INPUT_TASK":   "code-pushup",
		"INPUT_SILENT": "false",
	})).Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Bin != "npx code-pushup" {
		t.Errorf("expected bin from parent directory config, got %s", cfg.Bin)
	}
	if cfg.Task != "code-pushup" {
		t.Errorf("expected environment to override file, got %s", cfg.Task)
	}
	if cfg.Silent {
		t.Error("expected environment to switch silent off")
	}

	if err := cfg.Finalize(); err != nil {
		t.Fatalf("Finalize() error = %v", err)
	}
	wd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Directory != wd {
		t.Errorf("expected directory to default to working directory, got %s", cfg.Directory)
	}
}

func TestLoader_ExplicitFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ci.yaml")
	if err := os.WriteFile(path, []byte("monorepo: nx\n"), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := NewLoader(nil).WithEnv(envMap(nil)).WithFile(path).Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Monorepo != "nx" {
		t.Errorf("expected monorepo nx, got %s", cfg.Monorepo)
	}
}

func TestLoader_MissingExplicitFile(t *testing.T) {
	_, err := NewLoader(nil).WithEnv(envMap(nil)).WithFile(filepath.Join(t.TempDir(), "nope.yaml")).Load()
	if err == nil {
		t.Error("expected error for missing explicit config file")
	}
}

func TestFinalize_RelativeDirectory(t *testing.T) {
	root := t.TempDir()
	t.Chdir(root)

	cfg := DefaultConfig()
	cfg.Directory = "apps/web"
	if err := cfg.Finalize(); err != nil {
		t.Fatalf("Finalize() error = %v", err)
	}
	if !filepath.IsAbs(cfg.Directory) {
		t.Errorf("expected absolute directory, got %s", cfg.Directory)
	}
	if filepath.Base(cfg.Directory) != "web" {
		t.Errorf("unexpected directory %s", cfg.Directory)
	}
}
