package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/guisu-dev/guisu/internal/apply"
	"github.com/guisu-dev/guisu/internal/cliprompt"
	"github.com/guisu-dev/guisu/internal/conflict"
	"github.com/guisu-dev/guisu/internal/core"
	"github.com/guisu-dev/guisu/internal/dirs"
	"github.com/guisu-dev/guisu/internal/engine"
	"github.com/guisu-dev/guisu/internal/path"
)

// ResolveSourceDir returns the effective source directory: the --source-dir
// flag / GUISU_SOURCE_DIR env var, or the XDG-derived default.
func ResolveSourceDir() (string, error) {
	if SourceDir != "" {
		return SourceDir, nil
	}
	return dirs.DefaultSourceDir()
}

// ResolveDestDir returns the effective destination directory: the
// --dest-dir flag / GUISU_DEST_DIR env var, or $HOME.
func ResolveDestDir() (string, error) {
	if DestDir != "" {
		return DestDir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolving home directory: %w", err)
	}
	return home, nil
}

// ResolveConfigFile returns the effective CLI config file path: the
// --config flag / GUISU_CONFIG env var, or the XDG-derived default.
func ResolveConfigFile() (string, error) {
	if ConfigFile != "" {
		return ConfigFile, nil
	}
	return dirs.DefaultConfigFile()
}

// ResolveStatePath returns the effective state database path: the
// --state-file flag / GUISU_STATE_FILE env var, or the XDG-derived default.
func ResolveStatePath() (string, error) {
	if StateFile != "" {
		return StateFile, nil
	}
	return dirs.StateDBPath()
}

// OpenSession resolves every directory a reconciliation pass needs and
// opens an engine.Session bound to them. Callers must Close it.
//
// Every failure here - an unresolvable directory, a state database that
// won't open - stems from how the invocation is configured rather than
// from anything about the reconciliation itself, so callers get it back
// wrapped as a core.ExitError(core.ExitConfigError).
func OpenSession() (*engine.Session, error) {
	sourceDir, err := ResolveSourceDir()
	if err != nil {
		return nil, core.NewExitError(core.ExitConfigError, err)
	}
	destDir, err := ResolveDestDir()
	if err != nil {
		return nil, core.NewExitError(core.ExitConfigError, err)
	}
	statePath, err := ResolveStatePath()
	if err != nil {
		return nil, core.NewExitError(core.ExitConfigError, fmt.Errorf("resolving state path: %w", err))
	}

	sess, err := engine.Open(engine.Options{
		SourceDir: sourceDir,
		DestDir:   destDir,
		StatePath: statePath,
	})
	if err != nil {
		return nil, core.NewExitError(core.ExitConfigError, err)
	}
	return sess, nil
}

// NewSystem builds the apply.System a pass should write through: a real
// filesystem writer, wrapped in a recording DryRunSystem when --dry-run
// is set.
func NewSystem() apply.System {
	real := apply.RealSystem{}
	if DryRun {
		return apply.NewDryRunSystem(real)
	}
	return real
}

// RelativeToDest resolves arg (an absolute path, or one relative to the
// working directory) to a path.RelPath rooted at destDir, the form every
// command that takes a single destination-path argument (cat, edit, add)
// needs before it can look the entry up in the source tree.
func RelativeToDest(destDir path.AbsPath, arg string) (path.RelPath, error) {
	abs := arg
	if !filepath.IsAbs(abs) {
		wd, err := os.Getwd()
		if err != nil {
			return path.RelPath{}, err
		}
		abs = filepath.Join(wd, arg)
	}
	absPath, err := path.NewAbsPath(abs)
	if err != nil {
		return path.RelPath{}, err
	}
	return absPath.StripPrefix(destDir)
}

// NewResolver builds the conflict.Resolver a pass should use, wiring a
// real terminal prompter when --interactive is set and falling back to
// the non-interactive default (conflicts skip) otherwise.
func NewResolver(lookup cliprompt.ContentLookup) *conflict.Resolver {
	var prompter conflict.Prompter
	if Interactive {
		prompter = cliprompt.New(os.Stdin, os.Stdout, lookup)
	}
	return conflict.NewResolver(Force, DryRun, prompter)
}
