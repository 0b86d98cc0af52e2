// Package source implements the reconciliation engine's source-state
// reader: a depth-first, symlink-aware walk of the source tree that
// parses each entry's filename and mode into a SourceEntry, the way the
// teacher's merkle walker folds a directory tree into a deterministic
// structure, generalized here from hashing to attribute parsing.
package source

import (
	"os"
	"path/filepath"
	"sort"

	"github.com/guisu-dev/guisu/internal/attr"
	"github.com/guisu-dev/guisu/internal/core"
	"github.com/guisu-dev/guisu/internal/ignore"
	"github.com/guisu-dev/guisu/internal/path"
)

// Kind discriminates a SourceEntry the way the original's Rust enum does.
type Kind int

const (
	KindFile Kind = iota
	KindDirectory
	KindSymlink
)

// SourceEntry is one parsed node of the source tree.
type SourceEntry struct {
	Kind       Kind
	SourcePath path.SourceRelPath
	TargetPath path.RelPath
	Attributes attr.Attributes // zero value for symlinks
	LinkTarget string          // only set for KindSymlink
}

// Read walks root and returns every entry keyed by its target-facing
// RelPath, parsing attributes for files and directories and capturing
// symlinks as leaves (never followed). Entries ignored by matcher are
// skipped before descending, so an ignored directory is never opened.
func Read(root path.AbsPath, matcher ignore.Matcher) (map[path.RelPath]SourceEntry, error) {
	entries := make(map[path.RelPath]SourceEntry)
	if err := walk(root, path.RelPath{}, path.RelPath{}, matcher, entries); err != nil {
		return nil, err
	}
	return entries, nil
}

// walk recurses into dir (root joined with sourceRelSoFar), adding every
// visited entry to out. It threads two accumulators down the recursion:
// sourceRelSoFar, the raw on-disk path used to open directories and build
// SourcePath, and targetRelSoFar, the attribute-stripped path used to
// build TargetPath. A directory's own `.j2`/`.age` suffix is as real as a
// file's, so it must be stripped from targetRelSoFar before any
// descendant's TargetPath is built from it - only sourceRelSoFar keeps
// the raw name, since that's what ReadDir needs on the next level down.
func walk(root path.AbsPath, sourceRelSoFar, targetRelSoFar path.RelPath, matcher ignore.Matcher, out map[path.RelPath]SourceEntry) error {
	dir := root.Join(sourceRelSoFar)
	osEntries, err := os.ReadDir(dir.String())
	if err != nil {
		return &core.FSError{Op: "readdir", Path: dir.String(), Err: err}
	}

	names := make([]string, 0, len(osEntries))
	byName := make(map[string]os.DirEntry, len(osEntries))
	for _, e := range osEntries {
		names = append(names, e.Name())
		byName[e.Name()] = e
	}
	sort.Strings(names)

	for _, name := range names {
		de := byName[name]
		childAbs := dir.Join(mustRel(name))

		info, err := os.Lstat(childAbs.String())
		if err != nil {
			return &core.FSError{Op: "lstat", Path: childAbs.String(), Err: err}
		}

		isDir := info.IsDir() && info.Mode()&os.ModeSymlink == 0
		relForMatch := filepath.ToSlash(filepath.Join(sourceRelSoFar.String(), name))
		if matcher.Match(relForMatch, isDir) {
			continue
		}

		sourceRel, err := path.NewSourceRelPath(joinRel(sourceRelSoFar, name))
		if err != nil {
			return err
		}

		if info.Mode()&os.ModeSymlink != 0 {
			linkTarget, err := os.Readlink(childAbs.String())
			if err != nil {
				return &core.FSError{Op: "readlink", Path: childAbs.String(), Err: err}
			}
			targetRel, err := path.NewRelPath(joinRel(targetRelSoFar, attr.TargetName(name)))
			if err != nil {
				return err
			}
			out[targetRel] = SourceEntry{Kind: KindSymlink, SourcePath: sourceRel, TargetPath: targetRel, LinkTarget: linkTarget}
			continue
		}

		strippedName, attrs, err := attr.FromFilename(name, info.Mode())
		if err != nil {
			return err
		}
		targetRel, err := path.NewRelPath(joinRel(targetRelSoFar, strippedName))
		if err != nil {
			return err
		}

		if de.IsDir() {
			out[targetRel] = SourceEntry{Kind: KindDirectory, SourcePath: sourceRel, TargetPath: targetRel, Attributes: attrs}
			childSourceRelSoFar, _ := path.NewRelPath(joinRel(sourceRelSoFar, name))
			childTargetRelSoFar, _ := path.NewRelPath(joinRel(targetRelSoFar, strippedName))
			if err := walk(root, childSourceRelSoFar, childTargetRelSoFar, matcher, out); err != nil {
				return err
			}
			continue
		}

		out[targetRel] = SourceEntry{Kind: KindFile, SourcePath: sourceRel, TargetPath: targetRel, Attributes: attrs}
	}

	return nil
}

func mustRel(name string) path.RelPath {
	r, _ := path.NewRelPath(name)
	return r
}

func joinRel(base path.RelPath, name string) string {
	if base.String() == "" {
		return name
	}
	return filepath.Join(base.String(), name)
}
