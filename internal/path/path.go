// Package path provides three newtypes over a plain string path that make
// absolute-vs-relative confusion a compile-time rather than a runtime
// problem: AbsPath, RelPath, and SourceRelPath (a RelPath that still carries
// the source tree's attribute-encoding suffixes in its filename).
package path

import (
	"fmt"
	"path/filepath"

	"github.com/guisu-dev/guisu/internal/core"
)

// AbsPath is a filesystem path guaranteed to be absolute.
type AbsPath struct{ p string }

// NewAbsPath validates p is absolute before wrapping it.
func NewAbsPath(p string) (AbsPath, error) {
	if !filepath.IsAbs(p) {
		return AbsPath{}, &core.PathError{Op: "NewAbsPath", Path: p, Err: core.ErrPathNotAbsolute}
	}
	return AbsPath{p: filepath.Clean(p)}, nil
}

// MustAbsPath panics on an invalid path; reserved for constants/tests.
func MustAbsPath(p string) AbsPath {
	a, err := NewAbsPath(p)
	if err != nil {
		panic(err)
	}
	return a
}

func (a AbsPath) String() string { return a.p }

// Join appends a relative path, producing a new absolute path.
func (a AbsPath) Join(rel RelPath) AbsPath {
	return AbsPath{p: filepath.Join(a.p, rel.p)}
}

// Parent returns the parent directory, or false if a is the filesystem root.
func (a AbsPath) Parent() (AbsPath, bool) {
	parent := filepath.Dir(a.p)
	if parent == a.p {
		return AbsPath{}, false
	}
	return AbsPath{p: parent}, true
}

// StripPrefix removes base from a, returning the remainder as a RelPath.
func (a AbsPath) StripPrefix(base AbsPath) (RelPath, error) {
	rel, err := filepath.Rel(base.p, a.p)
	if err != nil || rel == ".." || len(rel) >= 2 && rel[:2] == ".." {
		return RelPath{}, &core.PathError{Op: "StripPrefix", Path: a.p, Base: base.p, Err: core.ErrNotUnderBase}
	}
	return RelPath{p: rel}, nil
}

// FileName returns the final path component.
func (a AbsPath) FileName() string { return filepath.Base(a.p) }

// RelPath is a path guaranteed not to be absolute.
type RelPath struct{ p string }

// NewRelPath validates p is relative before wrapping it.
func NewRelPath(p string) (RelPath, error) {
	if filepath.IsAbs(p) {
		return RelPath{}, &core.PathError{Op: "NewRelPath", Path: p, Err: core.ErrPathNotRelative}
	}
	return RelPath{p: filepath.Clean(p)}, nil
}

func (r RelPath) String() string { return r.p }

// Join appends another relative path.
func (r RelPath) Join(other RelPath) RelPath {
	return RelPath{p: filepath.Join(r.p, other.p)}
}

// Parent returns the parent relative path, or false for a single-component path.
func (r RelPath) Parent() (RelPath, bool) {
	parent := filepath.Dir(r.p)
	if parent == "." {
		return RelPath{}, false
	}
	return RelPath{p: parent}, true
}

// FileName returns the final path component.
func (r RelPath) FileName() string { return filepath.Base(r.p) }

// ToSource reinterprets this RelPath as a SourceRelPath, assuming no
// attribute encoding needs to be applied (the caller already stripped it,
// or never had any to begin with).
func (r RelPath) ToSource() SourceRelPath { return SourceRelPath{p: r.p} }

// SourceRelPath is a relative path within the source tree, whose filename
// may still carry attribute-encoding suffixes (.age, .j2).
type SourceRelPath struct{ p string }

// NewSourceRelPath validates p is relative before wrapping it.
func NewSourceRelPath(p string) (SourceRelPath, error) {
	if filepath.IsAbs(p) {
		return SourceRelPath{}, &core.PathError{Op: "NewSourceRelPath", Path: p, Err: core.ErrPathNotRelative}
	}
	return SourceRelPath{p: filepath.Clean(p)}, nil
}

func (s SourceRelPath) String() string { return s.p }

// Join appends another source-relative path.
func (s SourceRelPath) Join(other SourceRelPath) SourceRelPath {
	return SourceRelPath{p: filepath.Join(s.p, other.p)}
}

// Parent returns the parent source-relative path, or false for a single-component path.
func (s SourceRelPath) Parent() (SourceRelPath, bool) {
	parent := filepath.Dir(s.p)
	if parent == "." {
		return SourceRelPath{}, false
	}
	return SourceRelPath{p: parent}, true
}

// FileName returns the final path component, attribute suffixes included.
func (s SourceRelPath) FileName() string { return filepath.Base(s.p) }

// ToRel reinterprets this SourceRelPath as a plain RelPath, preserving
// whatever attribute encoding is still present in the filename.
func (s SourceRelPath) ToRel() RelPath { return RelPath{p: s.p} }

var _ fmt.Stringer = AbsPath{}
