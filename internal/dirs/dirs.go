// Package dirs resolves the reconciliation engine's well-known
// filesystem locations via the XDG base directory spec. It is CLI-only:
// nothing under internal/ other than cmd imports this package, so the
// engine's own test suite stays hermetic (every engine package always
// receives explicit paths from its caller).
package dirs

import (
	"path/filepath"

	"github.com/adrg/xdg"
)

const appName = "guisu"

// StateDBPath returns the default location of the persistent store's
// bbolt file, under the XDG state directory.
func StateDBPath() (string, error) {
	return xdg.StateFile(filepath.Join(appName, "state.db"))
}

// DefaultSourceDir returns the default source tree location,
// $HOME/.local/share/guisu, the way a dotfiles manager conventionally
// roots its managed tree.
func DefaultSourceDir() (string, error) {
	return filepath.Join(xdg.Home, ".local", "share", appName), nil
}

// DefaultConfigFile returns the default location of the CLI's own
// configuration file (distinct from the per-source-tree .guisu config).
func DefaultConfigFile() (string, error) {
	return xdg.ConfigFile(filepath.Join(appName, "config.toml"))
}
