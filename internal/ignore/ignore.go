// Package ignore provides gitignore-style pattern matching used to skip
// entries during the reconciliation engine's source-tree walk. Patterns
// come from a platform-tagged list (see internal/config's ignores.toml
// loader) and are matched with true last-match-wins semantics, including
// "!" negation, the way git itself resolves a stack of .gitignore rules.
package ignore

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/guisu-dev/guisu/internal/logger"
)

// Matcher determines if a path should be excluded from the walk.
// Implementations of this interface provide pattern matching functionality
// to filter files and directories during reconciliation.
type Matcher interface {
	// Match returns true if the path should be excluded.
	// The path can be relative to the root being walked or absolute.
	//
	// Parameters:
	//   - path: The path to check (relative or absolute)
	//   - isDir: Whether the path represents a directory
	//
	// Returns true if the path matches an exclusion pattern and should be excluded.
	Match(path string, isDir bool) bool
}

// PatternMatcher matches paths against exclusion patterns.
// Supports patterns similar to .gitignore:
// - Exact matches: "node_modules"
// - Directory matches: "node_modules/" (matches directories only)
// - Glob patterns: "*.log", "**/build"
// - Negation: "!important.log"
type PatternMatcher struct {
	patterns []pattern
}

type pattern struct {
	// raw is the original pattern string
	raw string
	// glob is the doublestar-ready pattern, always rooted: patterns with no
	// inner slash are rewritten with a "**/" prefix so they match at any depth
	glob string
	// isDirOnly is true if pattern ends with /
	isDirOnly bool
	// isNegation is true if pattern starts with !
	isNegation bool
}

// NewPatternMatcher creates a new pattern matcher from a list of patterns.
// Patterns support .gitignore-style syntax including:
//   - Exact matches: "node_modules"
//   - Directory-only: "node_modules/" (matches directories only)
//   - Glob patterns: "*.log", "**/build"
//   - Negation: "!important.log" (un-excludes previously excluded paths)
//
// Empty lines and lines starting with "#" are treated as comments and ignored.
//
// Parameters:
//   - patterns: A slice of pattern strings to compile
//
// Returns a new PatternMatcher instance ready to use.
func NewPatternMatcher(patterns []string) *PatternMatcher {
	pm := &PatternMatcher{
		patterns: make([]pattern, 0, len(patterns)),
	}

	for _, raw := range patterns {
		if pat, ok := compilePattern(raw); ok {
			pm.patterns = append(pm.patterns, pat)
		}
	}

	return pm
}

func compilePattern(raw string) (pattern, bool) {
	line := strings.TrimSpace(raw)
	if line == "" || strings.HasPrefix(line, "#") {
		return pattern{}, false
	}

	pat := pattern{raw: raw}

	if strings.HasPrefix(line, "!") {
		pat.isNegation = true
		line = strings.TrimPrefix(line, "!")
	}
	if strings.HasSuffix(line, "/") {
		pat.isDirOnly = true
		line = strings.TrimSuffix(line, "/")
	}

	line = filepath.ToSlash(line)
	anchored := strings.HasPrefix(line, "/")
	line = strings.TrimPrefix(line, "/")

	if anchored || strings.Contains(line, "/") {
		pat.glob = line
	} else {
		// No slash (besides a trailing one already trimmed): match at any depth.
		pat.glob = "**/" + line
	}

	return pat, true
}

// Match returns true if the path should be excluded, using gitignore's
// last-match-wins rule: the final pattern in source order that matches
// this path decides the verdict, regardless of earlier matches.
func (pm *PatternMatcher) Match(path string, isDir bool) bool {
	path = filepath.ToSlash(path)
	excluded := false
	for _, pat := range pm.patterns {
		if pat.matches(path, isDir) {
			excluded = !pat.isNegation
		}
	}
	return excluded
}

// matches reports whether this single compiled pattern applies to path.
// A directory pattern like "node_modules" is also checked against every
// ancestor prefix of path, so a descendant of an excluded directory is
// excluded too even though doublestar only matched the directory itself.
func (p pattern) matches(path string, isDir bool) bool {
	if p.isDirOnly && !isDir {
		if !dirPrefixMatches(p.glob, path) {
			return false
		}
		return true
	}
	if ok, err := doublestar.Match(p.glob, path); err == nil && ok {
		return true
	}
	return dirPrefixMatches(p.glob, path)
}

func dirPrefixMatches(glob, path string) bool {
	for i := 0; i < len(path); i++ {
		if path[i] != '/' {
			continue
		}
		if ok, err := doublestar.Match(glob, path[:i]); err == nil && ok {
			return true
		}
	}
	return false
}

// LoadCustomIgnoreFile loads patterns from a custom ignore file specified by the user.
// The file path is validated and normalized to prevent directory traversal attacks.
// It returns an error if the file doesn't exist, as the user explicitly
// specified the file path.
//
// Parameters:
//   - filePath: The absolute or relative path to the custom ignore file
//
// Returns a slice of pattern strings and any error encountered.
// Returns an error if the file doesn't exist or cannot be read.
func LoadCustomIgnoreFile(filePath string) ([]string, error) {
	// Clean the path to prevent directory traversal
	cleanPath := filepath.Clean(filePath)
	absPath, err := filepath.Abs(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve absolute path: %w", err)
	}

	// Validate that the cleaned absolute path doesn't contain directory traversal
	// After filepath.Clean and filepath.Abs, the path should be normalized
	// Additional check: ensure the resolved path matches the cleaned path
	if absPath != filepath.Clean(absPath) {
		return nil, fmt.Errorf("invalid file path: %s", filePath)
	}

	// Validate that the path doesn't attempt to escape (double-check after normalization)
	// This is a user-provided path, so we validate it's a legitimate file path
	if strings.Contains(absPath, "..") {
		return nil, fmt.Errorf("invalid file path: %s", filePath)
	}

	// absPath is validated and normalized, safe to open
	// Path is validated and normalized above
	file, err := os.Open(absPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("ignore file does not exist: %s", filePath)
		}
		return nil, fmt.Errorf("failed to open ignore file %s: %w", filePath, err)
	}
	defer func() {
		if err := file.Close(); err != nil {
			logger.Warn("Failed to close ignore file", "error", err)
		}
	}()

	var patterns []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line != "" && !strings.HasPrefix(line, "#") {
			patterns = append(patterns, line)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read ignore file %s: %w", filePath, err)
	}

	return patterns, nil
}

// NewMatcher builds a Matcher from a platform-tagged pattern set: global
// patterns followed by the patterns for the current platform, in that
// order, so a platform-specific line can override a global one per
// last-match-wins. An optional custom ignore file (loaded via
// LoadCustomIgnoreFile) is appended last, giving it the final say.
// Returns a no-op matcher when the combined pattern list is empty.
func NewMatcher(global, platformPatterns []string, customIgnoreFile string) (Matcher, error) {
	all := make([]string, 0, len(global)+len(platformPatterns))
	all = append(all, global...)
	all = append(all, platformPatterns...)

	if customIgnoreFile != "" {
		custom, err := LoadCustomIgnoreFile(customIgnoreFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load custom ignore file: %w", err)
		}
		all = append(all, custom...)
		logger.Info("Loaded custom ignore file", "file", customIgnoreFile, "patterns", len(custom))
	}

	if len(all) == 0 {
		return &noOpMatcher{}, nil
	}
	return NewPatternMatcher(all), nil
}

// noOpMatcher is a Matcher implementation that never matches anything.
// It is used when no exclusion patterns are provided, allowing all paths
// to be included in the source walk.
type noOpMatcher struct{}

// Match always returns false, indicating no paths should be excluded.
// This allows all files and directories to be processed when no exclusions are configured.
//
// Parameters:
//   - path: The path to check (unused)
//   - isDir: Whether the path is a directory (unused)
//
// Returns false (never excludes anything).
func (n *noOpMatcher) Match(path string, isDir bool) bool {
	return false
}
