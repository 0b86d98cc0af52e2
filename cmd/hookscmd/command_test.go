package hookscmd

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/guisu-dev/guisu/cmd"
	"github.com/guisu-dev/guisu/internal/logger"
)

func init() {
	logger.Init("error", "text", io.Discard)
}

func TestHooksRun_NoHooksConfigured(t *testing.T) {
	srcDir := t.TempDir()
	destDir := t.TempDir()
	statePath := filepath.Join(t.TempDir(), "state.db")

	rootCmd := cmd.GetRootCmd()
	var buf bytes.Buffer
	rootCmd.SetOut(&buf)
	rootCmd.SetErr(&buf)
	rootCmd.SetArgs([]string{"hooks", "run", "pre", "--source-dir", srcDir, "--dest-dir", destDir, "--state-file", statePath})

	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("hooks run failed: %v, output: %s", err, buf.String())
	}
	if !bytes.Contains(buf.Bytes(), []byte("no pre hooks configured")) {
		t.Errorf("expected a no-hooks notice, got: %s", buf.String())
	}
}

func TestHooksRun_RunsExecutableHook(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("executable hook scripts assume a POSIX shell")
	}
	srcDir := t.TempDir()
	destDir := t.TempDir()
	statePath := filepath.Join(t.TempDir(), "state.db")

	hookDir := filepath.Join(srcDir, ".guisu", "hooks", "pre")
	if err := os.MkdirAll(hookDir, 0o755); err != nil {
		t.Fatal(err)
	}
	script := filepath.Join(hookDir, "01-touch.sh")
	if err := os.WriteFile(script, []byte("#!/bin/sh\nexit 0\n"), 0o755); err != nil {
		t.Fatal(err)
	}

	rootCmd := cmd.GetRootCmd()
	var buf bytes.Buffer
	rootCmd.SetOut(&buf)
	rootCmd.SetErr(&buf)
	rootCmd.SetArgs([]string{"hooks", "run", "pre", "--source-dir", srcDir, "--dest-dir", destDir, "--state-file", statePath})

	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("hooks run failed: %v, output: %s", err, buf.String())
	}
	if !bytes.Contains(buf.Bytes(), []byte("01-touch.sh: ok")) {
		t.Errorf("expected the hook to report ok, got: %s", buf.String())
	}
}

func TestHooksRun_RejectsUnknownStage(t *testing.T) {
	srcDir := t.TempDir()
	destDir := t.TempDir()
	statePath := filepath.Join(t.TempDir(), "state.db")

	rootCmd := cmd.GetRootCmd()
	var buf bytes.Buffer
	rootCmd.SetOut(&buf)
	rootCmd.SetErr(&buf)
	rootCmd.SetArgs([]string{"hooks", "run", "sideways", "--source-dir", srcDir, "--dest-dir", destDir, "--state-file", statePath})

	if err := rootCmd.Execute(); err == nil {
		t.Fatal("expected an error for an unknown hook stage")
	}
}
