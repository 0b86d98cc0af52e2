package hooks

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/guisu-dev/guisu/internal/path"
	"github.com/guisu-dev/guisu/internal/store"
)

func writeHookFile(t *testing.T, p, data string, mode os.FileMode) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(p, []byte(data), mode); err != nil {
		t.Fatal(err)
	}
}

func TestLoadExecutableHook(t *testing.T) {
	dir := t.TempDir()
	writeHookFile(t, filepath.Join(dir, ".guisu", "hooks", "pre", "10-setup.sh"), "#!/bin/sh\necho hi\n", 0o755)

	pre, post, err := Loader{}.Load(path.MustAbsPath(dir))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(post) != 0 {
		t.Errorf("expected no post hooks, got %v", post)
	}
	if len(pre) != 1 || pre[0].Name != "10-setup.sh" {
		t.Fatalf("got %+v", pre)
	}
}

func TestLoadSkipsHiddenAndBackupFiles(t *testing.T) {
	dir := t.TempDir()
	writeHookFile(t, filepath.Join(dir, ".guisu", "hooks", "pre", ".hidden"), "x", 0o755)
	writeHookFile(t, filepath.Join(dir, ".guisu", "hooks", "pre", "setup.sh~"), "x", 0o755)
	writeHookFile(t, filepath.Join(dir, ".guisu", "hooks", "pre", "setup.sh.swp"), "x", 0o755)
	writeHookFile(t, filepath.Join(dir, ".guisu", "hooks", "pre", "real.sh"), "#!/bin/sh\n", 0o755)

	pre, _, err := Loader{}.Load(path.MustAbsPath(dir))
	if err != nil {
		t.Fatal(err)
	}
	if len(pre) != 1 || pre[0].Name != "real.sh" {
		t.Fatalf("got %+v", pre)
	}
}

func TestLoadTomlHook(t *testing.T) {
	dir := t.TempDir()
	writeHookFile(t, filepath.Join(dir, ".guisu", "hooks", "post", "01-notify.toml"), `
name = "notify"
cmd = "echo done"
mode = "once"
`, 0o644)

	_, post, err := Loader{}.Load(path.MustAbsPath(dir))
	if err != nil {
		t.Fatal(err)
	}
	if len(post) != 1 || post[0].Name != "notify" || post[0].Mode != Once {
		t.Fatalf("got %+v", post)
	}
}

func openTestStore(t *testing.T) *store.Store {
	t.Helper()
	p := path.MustAbsPath(t.TempDir() + "/state.db")
	s, err := store.Open(p)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestRunOnceModeSkipsSecondRun(t *testing.T) {
	st := openTestStore(t)
	r := &Runner{Store: st}
	h := Hook{Name: "setup", Order: 10, Cmd: "true", Mode: Once}

	result, err := r.Run(context.Background(), Pre, []Hook{h}, runtime.GOOS)
	if err != nil {
		t.Fatal(err)
	}
	if len(result.Results) != 1 || result.Results[0].Status != Succeeded {
		t.Fatalf("first run should succeed, got %+v", result.Results)
	}

	result2, err := r.Run(context.Background(), Pre, []Hook{h}, runtime.GOOS)
	if err != nil {
		t.Fatal(err)
	}
	if result2.Results[0].Status != Skipped {
		t.Errorf("second run should be skipped, got %+v", result2.Results)
	}
}

func TestRunOnChangeRerunsOnCommandChange(t *testing.T) {
	st := openTestStore(t)
	r := &Runner{Store: st}
	h1 := Hook{Name: "build", Order: 10, Cmd: "true", Mode: OnChange}

	if _, err := r.Run(context.Background(), Pre, []Hook{h1}, runtime.GOOS); err != nil {
		t.Fatal(err)
	}

	h2 := Hook{Name: "build", Order: 10, Cmd: "true # changed", Mode: OnChange}
	result, err := r.Run(context.Background(), Pre, []Hook{h2}, runtime.GOOS)
	if err != nil {
		t.Fatal(err)
	}
	if result.Results[0].Status != Succeeded {
		t.Errorf("changed command should re-run, got %+v", result.Results)
	}
}

func TestRunAbortsStageOnFailureWithoutContinueOnError(t *testing.T) {
	st := openTestStore(t)
	r := &Runner{Store: st}
	failing := Hook{Name: "bad", Order: 10, Cmd: "false", Mode: Always}
	later := Hook{Name: "later", Order: 20, Cmd: "true", Mode: Always}

	result, err := r.Run(context.Background(), Pre, []Hook{failing, later}, runtime.GOOS)
	if err != nil {
		t.Fatal(err)
	}
	if !result.Aborted {
		t.Errorf("expected stage to be aborted")
	}
	if len(result.Results) != 1 {
		t.Errorf("later group should not have run, got %+v", result.Results)
	}
}

func TestRunPlatformFiltering(t *testing.T) {
	st := openTestStore(t)
	r := &Runner{Store: st}
	h := Hook{Name: "windows-only", Order: 10, Cmd: "true", Platforms: []string{"windows"}}

	result, err := r.Run(context.Background(), Pre, []Hook{h}, "linux")
	if err != nil {
		t.Fatal(err)
	}
	if len(result.Results) != 0 {
		t.Errorf("hook restricted to windows should not run on linux, got %+v", result.Results)
	}
}
