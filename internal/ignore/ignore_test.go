package ignore

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/guisu-dev/guisu/internal/logger"
)

func init() {
	logger.Init("error", "text", io.Discard)
}

func TestNewPatternMatcher(t *testing.T) {
	tests := []struct {
		name     string
		patterns []string
		want     int
	}{
		{name: "empty patterns", patterns: []string{}, want: 0},
		{name: "single pattern", patterns: []string{"node_modules"}, want: 1},
		{name: "multiple patterns", patterns: []string{"node_modules", ".git", "dist"}, want: 3},
		{name: "with comments", patterns: []string{"# comment", "node_modules", "# another comment"}, want: 1},
		{name: "with empty lines", patterns: []string{"", "node_modules", "  ", ".git"}, want: 2},
		{name: "with negation", patterns: []string{"!important", "*.log"}, want: 2},
		{name: "with directory pattern", patterns: []string{"node_modules/", "*.log"}, want: 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pm := NewPatternMatcher(tt.patterns)
			if len(pm.patterns) != tt.want {
				t.Errorf("got %d compiled patterns, want %d", len(pm.patterns), tt.want)
			}
		})
	}
}

func TestPatternMatcherMatch(t *testing.T) {
	tests := []struct {
		name     string
		patterns []string
		path     string
		isDir    bool
		want     bool
	}{
		{name: "exact dir match", patterns: []string{"node_modules"}, path: "node_modules", isDir: true, want: true},
		{name: "nested dir match", patterns: []string{"node_modules"}, path: "pkg/node_modules", isDir: true, want: true},
		{name: "descendant of excluded dir", patterns: []string{"node_modules"}, path: "node_modules/pkg/index.js", isDir: false, want: true},
		{name: "glob suffix", patterns: []string{"*.log"}, path: "debug.log", isDir: false, want: true},
		{name: "glob suffix no match", patterns: []string{"*.log"}, path: "debug.txt", isDir: false, want: false},
		{name: "directory-only does not match file", patterns: []string{"build/"}, path: "build", isDir: false, want: false},
		{name: "directory-only matches dir", patterns: []string{"build/"}, path: "build", isDir: true, want: true},
		{name: "doublestar anywhere", patterns: []string{"**/cache"}, path: "a/b/cache", isDir: true, want: true},
		{name: "no match at all", patterns: []string{"node_modules"}, path: "src/main.go", isDir: false, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pm := NewPatternMatcher(tt.patterns)
			if got := pm.Match(tt.path, tt.isDir); got != tt.want {
				t.Errorf("Match(%q, %v) = %v, want %v", tt.path, tt.isDir, got, tt.want)
			}
		})
	}
}

// TestNegationLastMatchWins mirrors the engine's documented negation
// scenario: ".config/*" excludes everything under .config, but a later
// "!.config/atuin/" re-admits that one subtree.
func TestNegationLastMatchWins(t *testing.T) {
	pm := NewPatternMatcher([]string{".config/*", "!.config/atuin/"})

	if !pm.Match(".config/random", true) {
		t.Errorf(".config/random should be excluded")
	}
	if pm.Match(".config/atuin", true) {
		t.Errorf(".config/atuin should be re-admitted by the negation")
	}

	// A pattern appearing after the negation should win again.
	pm2 := NewPatternMatcher([]string{".config/*", "!.config/atuin/", ".config/atuin/secret.log"})
	if !pm2.Match(".config/atuin/secret.log", false) {
		t.Errorf("a later re-exclusion pattern must win over an earlier negation")
	}
}

func TestLoadCustomIgnoreFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "custom.ignore")
	if err := os.WriteFile(path, []byte("# comment\nnode_modules\n*.log\n"), 0o644); err != nil {
		t.Fatalf("write custom ignore file: %v", err)
	}

	patterns, err := LoadCustomIgnoreFile(path)
	if err != nil {
		t.Fatalf("LoadCustomIgnoreFile: %v", err)
	}
	if len(patterns) != 2 {
		t.Fatalf("got %d patterns, want 2: %v", len(patterns), patterns)
	}
}

func TestLoadCustomIgnoreFileMissing(t *testing.T) {
	if _, err := LoadCustomIgnoreFile("/nonexistent/path/to/file"); err == nil {
		t.Fatalf("expected an error for a missing custom ignore file")
	}
}

func TestNewMatcherNoOp(t *testing.T) {
	m, err := NewMatcher(nil, nil, "")
	if err != nil {
		t.Fatalf("NewMatcher: %v", err)
	}
	if m.Match("anything", false) {
		t.Errorf("no-op matcher should never exclude")
	}
}

func TestNewMatcherPlatformOverridesGlobal(t *testing.T) {
	m, err := NewMatcher([]string{"secrets/*"}, []string{"!secrets/public.txt"}, "")
	if err != nil {
		t.Fatalf("NewMatcher: %v", err)
	}
	if m.Match("secrets/private.txt", false) != true {
		t.Errorf("global pattern should still exclude")
	}
	if m.Match("secrets/public.txt", false) != false {
		t.Errorf("platform pattern should re-admit the file")
	}
}
