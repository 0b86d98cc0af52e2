package config

import (
	"os"
	"path/filepath"
	"runtime"

	"github.com/pelletier/go-toml/v2"

	"github.com/guisu-dev/guisu/internal/ignore"
	"github.com/guisu-dev/guisu/internal/path"
)

// IgnoresConfig is the decoded shape of .guisu/ignores.toml: a global
// pattern list plus one override list per supported platform.
type IgnoresConfig struct {
	Global  []string `toml:"global"`
	Darwin  []string `toml:"darwin"`
	Linux   []string `toml:"linux"`
	Windows []string `toml:"windows"`
}

// ForPlatform returns the override list for goos, or nil for
// any platform the config doesn't mention.
func (c IgnoresConfig) ForPlatform(goos string) []string {
	switch goos {
	case "darwin":
		return c.Darwin
	case "linux":
		return c.Linux
	case "windows":
		return c.Windows
	default:
		return nil
	}
}

// LoadIgnores reads .guisu/ignores.toml under sourceDir. A missing file is
// not an error: it is treated as an empty configuration.
func LoadIgnores(sourceDir path.AbsPath) (IgnoresConfig, error) {
	p := filepath.Join(sourceDir.String(), ".guisu", "ignores.toml")
	data, err := os.ReadFile(p)
	if err != nil {
		if os.IsNotExist(err) {
			return IgnoresConfig{}, nil
		}
		return IgnoresConfig{}, err
	}

	var cfg IgnoresConfig
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return IgnoresConfig{}, err
	}
	return cfg, nil
}

// BuildMatcher loads ignores.toml and produces the Matcher the source
// reader walks with, tagged for the running platform.
func BuildMatcher(sourceDir path.AbsPath, customIgnoreFile string) (ignore.Matcher, error) {
	cfg, err := LoadIgnores(sourceDir)
	if err != nil {
		return nil, err
	}
	return ignore.NewMatcher(cfg.Global, cfg.ForPlatform(runtime.GOOS), customIgnoreFile)
}
