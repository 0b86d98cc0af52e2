package config

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/guisu-dev/guisu/internal/path"
)

func writeFile(t *testing.T, p, data string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(p, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestLoadIgnoresMissingFile(t *testing.T) {
	dir := t.TempDir()
	cfg, err := LoadIgnores(path.MustAbsPath(dir))
	if err != nil {
		t.Fatal(err)
	}
	if len(cfg.Global) != 0 {
		t.Errorf("expected empty config for missing file, got %+v", cfg)
	}
}

func TestLoadIgnoresParsesPlatforms(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, ".guisu", "ignores.toml"), `
global = [".git/", "*.log"]
darwin = [".DS_Store"]
linux = ["*.swp"]
`)
	cfg, err := LoadIgnores(path.MustAbsPath(dir))
	if err != nil {
		t.Fatal(err)
	}
	if len(cfg.Global) != 2 {
		t.Errorf("got %v", cfg.Global)
	}
	if cfg.ForPlatform("darwin")[0] != ".DS_Store" {
		t.Errorf("got %v", cfg.ForPlatform("darwin"))
	}
	if cfg.ForPlatform("plan9") != nil {
		t.Errorf("unknown platform should yield nil")
	}
}

func TestBuildMatcherExcludesConfiguredPatterns(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, ".guisu", "ignores.toml"), `global = ["*.log"]`)
	m, err := BuildMatcher(path.MustAbsPath(dir), "")
	if err != nil {
		t.Fatal(err)
	}
	if !m.Match("debug.log", false) {
		t.Errorf("expected debug.log to be excluded")
	}
	if m.Match("keep.txt", false) {
		t.Errorf("keep.txt should not be excluded")
	}
}

func TestLoadVariablesBaseAndPlatformOverride(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "variables", "user.toml"), `name = "alice"`)
	writeFile(t, filepath.Join(dir, "variables", "linux", "user.toml"), `name = "alice-linux"`)

	vars, err := LoadVariables(path.MustAbsPath(dir))
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := vars["user"]; !ok {
		t.Fatalf("expected a 'user' key, got %v", vars)
	}
	want := "alice"
	if runtime.GOOS == "linux" {
		want = "alice-linux"
	}
	user, _ := vars["user"].(map[string]any)
	if user["name"] != want {
		t.Errorf("user.name = %v, want %q", user["name"], want)
	}
}

func TestLoadVariablesEmptyDirIsNotAnError(t *testing.T) {
	dir := t.TempDir()
	vars, err := LoadVariables(path.MustAbsPath(dir))
	if err != nil {
		t.Fatal(err)
	}
	if len(vars) != 0 {
		t.Errorf("expected empty variable set, got %v", vars)
	}
}
