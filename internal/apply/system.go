package apply

import (
	"fmt"
	"os"
	"sync"

	"github.com/guisu-dev/guisu/internal/core"
	"github.com/guisu-dev/guisu/internal/path"
)

// RealSystem performs real filesystem syscalls. WriteFile writes to a
// temp sibling file and renames it into place, the transactional-write
// pattern generalized here from a whole-project transaction down to a
// single file.
type RealSystem struct{}

var _ System = RealSystem{}

func (RealSystem) ReadFile(p path.AbsPath) ([]byte, error) {
	return os.ReadFile(p.String())
}

func (RealSystem) WriteFile(p path.AbsPath, content []byte, mode *uint32) error {
	perm := os.FileMode(0o644)
	if mode != nil {
		perm = os.FileMode(*mode)
	}

	dir := filepathDir(p)
	tmp, err := os.CreateTemp(dir, ".guisu-tmp-*")
	if err != nil {
		return &core.FSError{Op: "createtemp", Path: p.String(), Err: err}
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(content); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return &core.FSError{Op: "write", Path: p.String(), Err: err}
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return &core.FSError{Op: "sync", Path: p.String(), Err: err}
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return &core.FSError{Op: "close", Path: p.String(), Err: err}
	}
	if err := os.Chmod(tmpName, perm); err != nil {
		os.Remove(tmpName)
		return &core.FSError{Op: "chmod", Path: p.String(), Err: err}
	}
	if err := os.Rename(tmpName, p.String()); err != nil {
		os.Remove(tmpName)
		return &core.FSError{Op: "rename", Path: p.String(), Err: err}
	}
	return nil
}

func (RealSystem) CreateDirAll(p path.AbsPath, mode *uint32) error {
	perm := os.FileMode(0o755)
	if mode != nil {
		perm = os.FileMode(*mode)
	}
	if err := os.MkdirAll(p.String(), perm); err != nil {
		return &core.FSError{Op: "mkdirall", Path: p.String(), Err: err}
	}
	// MkdirAll only applies perm to directories it creates; chmod covers
	// the case where the directory already existed with a different mode.
	if err := os.Chmod(p.String(), perm); err != nil {
		return &core.FSError{Op: "chmod", Path: p.String(), Err: err}
	}
	return nil
}

func (RealSystem) Remove(p path.AbsPath) error {
	if err := os.Remove(p.String()); err != nil && !os.IsNotExist(err) {
		return &core.FSError{Op: "remove", Path: p.String(), Err: err}
	}
	return nil
}

func (RealSystem) RemoveAll(p path.AbsPath) error {
	if err := os.RemoveAll(p.String()); err != nil {
		return &core.FSError{Op: "removeall", Path: p.String(), Err: err}
	}
	return nil
}

func (RealSystem) Exists(p path.AbsPath) bool {
	_, err := os.Lstat(p.String())
	return err == nil
}

func (RealSystem) Lstat(p path.AbsPath) (os.FileInfo, error) {
	return os.Lstat(p.String())
}

func (RealSystem) Symlink(target string, link path.AbsPath) error {
	if err := os.Symlink(target, link.String()); err != nil {
		return &core.FSError{Op: "symlink", Path: link.String(), Err: err}
	}
	return nil
}

func (RealSystem) Readlink(p path.AbsPath) (string, error) {
	return os.Readlink(p.String())
}

func filepathDir(p path.AbsPath) string {
	parent, ok := p.Parent()
	if !ok {
		return p.String()
	}
	return parent.String()
}

// OperationKind discriminates one recorded DryRunSystem operation,
// mirroring the original's Operation enum.
type OperationKind int

const (
	OpReadFile OperationKind = iota
	OpWriteFile
	OpCreateDir
	OpRemove
	OpRemoveAll
	OpSymlink
)

func (k OperationKind) String() string {
	switch k {
	case OpReadFile:
		return "read"
	case OpWriteFile:
		return "write"
	case OpCreateDir:
		return "createdir"
	case OpRemove:
		return "remove"
	case OpRemoveAll:
		return "removeall"
	case OpSymlink:
		return "symlink"
	default:
		return "unknown"
	}
}

// Operation is one action a DryRunSystem would have performed, recorded
// instead of executed.
type Operation struct {
	Kind   OperationKind
	Path   string
	Size   int
	Mode   *uint32
	Target string // symlink target, when Kind == OpSymlink
}

func (o Operation) String() string {
	switch o.Kind {
	case OpWriteFile:
		return fmt.Sprintf("write %s (%d bytes)", o.Path, o.Size)
	case OpSymlink:
		return fmt.Sprintf("symlink %s -> %s", o.Path, o.Target)
	default:
		return fmt.Sprintf("%s %s", o.Kind, o.Path)
	}
}

// DryRunSystem records every would-be operation instead of mutating
// anything on disk. Reads still hit the real filesystem (there's nothing
// to simulate for a read), but every mutating call appends an Operation
// and returns success.
type DryRunSystem struct {
	Underlying System // used for ReadFile, Exists, Lstat, Readlink
	mu         sync.Mutex
	ops        []Operation
}

var _ System = (*DryRunSystem)(nil)

// NewDryRunSystem wraps a real (or fake) System for read-only operations.
func NewDryRunSystem(underlying System) *DryRunSystem {
	return &DryRunSystem{Underlying: underlying}
}

func (d *DryRunSystem) record(op Operation) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.ops = append(d.ops, op)
}

// Operations returns every operation recorded so far, in recording order.
func (d *DryRunSystem) Operations() []Operation {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]Operation, len(d.ops))
	copy(out, d.ops)
	return out
}

func (d *DryRunSystem) ReadFile(p path.AbsPath) ([]byte, error) { return d.Underlying.ReadFile(p) }

func (d *DryRunSystem) WriteFile(p path.AbsPath, content []byte, mode *uint32) error {
	d.record(Operation{Kind: OpWriteFile, Path: p.String(), Size: len(content), Mode: mode})
	return nil
}

func (d *DryRunSystem) CreateDirAll(p path.AbsPath, mode *uint32) error {
	d.record(Operation{Kind: OpCreateDir, Path: p.String(), Mode: mode})
	return nil
}

func (d *DryRunSystem) Remove(p path.AbsPath) error {
	d.record(Operation{Kind: OpRemove, Path: p.String()})
	return nil
}

func (d *DryRunSystem) RemoveAll(p path.AbsPath) error {
	d.record(Operation{Kind: OpRemoveAll, Path: p.String()})
	return nil
}

func (d *DryRunSystem) Exists(p path.AbsPath) bool { return d.Underlying.Exists(p) }

func (d *DryRunSystem) Lstat(p path.AbsPath) (os.FileInfo, error) { return d.Underlying.Lstat(p) }

func (d *DryRunSystem) Symlink(target string, link path.AbsPath) error {
	d.record(Operation{Kind: OpSymlink, Path: link.String(), Target: target})
	return nil
}

func (d *DryRunSystem) Readlink(p path.AbsPath) (string, error) { return d.Underlying.Readlink(p) }
