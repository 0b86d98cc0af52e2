package diffcmd

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/guisu-dev/guisu/cmd"
	"github.com/guisu-dev/guisu/internal/logger"
)

func init() {
	logger.Init("error", "text", io.Discard)
}

func TestDiffCmd_ShowsNewFileAsChanged(t *testing.T) {
	srcDir := t.TempDir()
	destDir := t.TempDir()
	statePath := filepath.Join(t.TempDir(), "state.db")

	if err := os.MkdirAll(filepath.Join(srcDir, "home"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(srcDir, "home", ".gitconfig"), []byte("line one\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	rootCmd := cmd.GetRootCmd()
	var buf bytes.Buffer
	rootCmd.SetOut(&buf)
	rootCmd.SetErr(&buf)
	rootCmd.SetArgs([]string{"diff", "--source-dir", srcDir, "--dest-dir", destDir, "--state-file", statePath})

	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("diff failed: %v, output: %s", err, buf.String())
	}
	if !bytes.Contains(buf.Bytes(), []byte("--- home/.gitconfig")) {
		t.Errorf("expected a diff header for the changed entry, got: %s", buf.String())
	}
}

func TestDiffCmd_NoOutputWhenUpToDate(t *testing.T) {
	srcDir := t.TempDir()
	destDir := t.TempDir()
	statePath := filepath.Join(t.TempDir(), "state.db")

	rootCmd := cmd.GetRootCmd()
	var buf bytes.Buffer
	rootCmd.SetOut(&buf)
	rootCmd.SetErr(&buf)
	rootCmd.SetArgs([]string{"diff", "--source-dir", srcDir, "--dest-dir", destDir, "--state-file", statePath})

	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("diff failed: %v, output: %s", err, buf.String())
	}
	if buf.Len() != 0 {
		t.Errorf("expected no output for an empty source tree, got: %s", buf.String())
	}
}
