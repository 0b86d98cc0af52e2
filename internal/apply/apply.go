// Package apply implements the reconciliation engine's applicator: for
// each target entry, read the current destination, classify the drift via
// internal/compare, resolve any conflict via internal/conflict, write
// (or skip) accordingly, and record the new base hash. Grounded on the
// original's engine/src/system.rs trait/impl split, generalized here
// behind the System interface so the apply pass can run for real or in
// dry-run mode with identical decision logic.
package apply

import (
	"errors"
	"os"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/guisu-dev/guisu/internal/compare"
	"github.com/guisu-dev/guisu/internal/conflict"
	"github.com/guisu-dev/guisu/internal/core"
	"github.com/guisu-dev/guisu/internal/logger"
	"github.com/guisu-dev/guisu/internal/path"
	"github.com/guisu-dev/guisu/internal/source"
	"github.com/guisu-dev/guisu/internal/store"
	"github.com/guisu-dev/guisu/internal/target"
	"github.com/zeebo/blake3"
)

// DefaultWorkers bounds concurrent entry application the same way
// internal/target bounds concurrent content processing.
const DefaultWorkers = 8

// System is every filesystem operation the applicator needs, so tests and
// dry-run mode can swap in a fake without touching real disk state.
type System interface {
	ReadFile(p path.AbsPath) ([]byte, error)
	WriteFile(p path.AbsPath, content []byte, mode *uint32) error
	CreateDirAll(p path.AbsPath, mode *uint32) error
	Remove(p path.AbsPath) error
	RemoveAll(p path.AbsPath) error
	Exists(p path.AbsPath) bool
	Lstat(p path.AbsPath) (os.FileInfo, error)
	Symlink(target string, link path.AbsPath) error
	Readlink(p path.AbsPath) (string, error)
}

// Summary holds relaxed-ordering atomic counters for one apply pass; the
// pass may run entries in parallel, so no counter here implies a
// happens-before relationship with any other.
type Summary struct {
	Files       atomic.Int64
	Directories atomic.Int64
	Symlinks    atomic.Int64
	Skipped     atomic.Int64
	Failed      atomic.Int64
}

// Applicator drives one apply pass.
type Applicator struct {
	System   System
	DestRoot path.AbsPath
	Store    *store.Store
	Resolver *conflict.Resolver
}

// New builds an Applicator.
func New(sys System, destRoot path.AbsPath, st *store.Store, resolver *conflict.Resolver) *Applicator {
	return &Applicator{System: sys, DestRoot: destRoot, Store: st, Resolver: resolver}
}

func hashBytes(data []byte) [32]byte {
	h := blake3.New()
	_, _ = h.Write(data)
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}

// missingHash is the sentinel base hash used for a destination that
// doesn't exist yet: distinct from any real content hash (all-zero,
// which blake3 never produces for non-empty input, and an empty source
// file hashes to blake3's well-known empty-input digest rather than all
// zero), so the comparator always yields SourceChanged for a brand new
// destination.
var missingHash = [32]byte{}

// Apply runs one pass over targets. When the resolver has no interactive
// prompter configured, entries are applied concurrently (bounded by
// workers); otherwise the pass is serialized, since the sticky/prompt
// path is inherently single-threaded. An entry that fails is logged and
// counted in Summary.Failed and the pass goes on with the others; only a
// Quit decision (core.ErrUserCancelled) stops the pass early.
func (a *Applicator) Apply(targets map[path.RelPath]target.TargetEntry, workers int) (*Summary, error) {
	if workers < 1 {
		workers = DefaultWorkers
	}

	summary := &Summary{}
	newStates := make(map[path.RelPath]store.EntryState)
	var mu sync.Mutex

	apply := func(rel path.RelPath, te target.TargetEntry) error {
		state, err := a.applyOne(rel, te, summary)
		if err != nil {
			if errors.Is(err, core.ErrUserCancelled) {
				return err
			}
			summary.Failed.Add(1)
			logger.Error("Failed to apply entry", "path", rel.String(), "error", err)
			return nil
		}
		if state != nil {
			mu.Lock()
			newStates[rel] = *state
			mu.Unlock()
		}
		return nil
	}

	if a.Resolver != nil && a.Resolver.Interactive() {
		for rel, te := range targets {
			if err := apply(rel, te); err != nil {
				return summary, err
			}
		}
	} else {
		g := &errgroup.Group{}
		g.SetLimit(workers)
		for rel, te := range targets {
			rel, te := rel, te
			g.Go(func() error { return apply(rel, te) })
		}
		if err := g.Wait(); err != nil {
			return summary, err
		}
	}

	// A dry-run pass simulates every write through System but must leave
	// the persistent store untouched, or the next real pass would compare
	// against base hashes that were never actually written to disk.
	dryRun := a.Resolver != nil && a.Resolver.DryRun
	if !dryRun && len(newStates) > 0 {
		if err := a.Store.PutEntries(newStates); err != nil {
			return summary, err
		}
	}

	return summary, nil
}

// applyOne reconciles a single entry and returns the new base state to
// persist, or nil if the entry was skipped.
func (a *Applicator) applyOne(rel path.RelPath, te target.TargetEntry, summary *Summary) (*store.EntryState, error) {
	abs := a.DestRoot.Join(rel)

	// Directories carry no content to diff: creation is idempotent, so the
	// applicator only ensures the directory exists with the right mode
	// rather than running it through the three-way comparator.
	if te.Kind == source.KindDirectory {
		if !a.System.Exists(abs) {
			if err := a.System.CreateDirAll(abs, te.Mode); err != nil {
				return nil, err
			}
			summary.Directories.Add(1)
		}
		state := store.EntryState{ContentHash: hashBytes([]byte("dir:" + rel.String()))}
		if te.Mode != nil {
			state.HasMode = true
			state.Mode = *te.Mode
		}
		return &state, nil
	}

	destHash, destKind, err := a.readDest(abs, te.Kind)
	if err != nil {
		return nil, err
	}

	var sourceHash [32]byte
	switch te.Kind {
	case source.KindFile:
		sourceHash = hashBytes(te.Content)
	default: // symlink
		sourceHash = hashBytes([]byte(te.LinkTarget))
	}

	if destKind != te.Kind && destKind != target.KindMissing {
		if !a.Resolver.Force && !a.Resolver.Interactive() {
			return nil, core.ErrKindConflict
		}
		decision, err := a.Resolver.Resolve(compare.BothChanged, rel, isBinary(te))
		if err != nil {
			return nil, err
		}
		if decision == conflict.Quit {
			return nil, core.ErrUserCancelled
		}
		if decision != conflict.Override {
			summary.Skipped.Add(1)
			return nil, nil
		}
		if err := a.remove(abs, destKind); err != nil {
			return nil, err
		}
		destHash = missingHash
	}

	existing, hasBase, err := a.Store.GetEntry(rel)
	var baseHash *[32]byte
	if hasBase {
		baseHash = &existing.ContentHash
	}

	result := compare.Compare(sourceHash, destHash, baseHash)

	write := false
	switch result {
	case compare.SourceChanged:
		write = true
	case compare.NoChange, compare.Converged:
		write = false
	default:
		decision, err := a.Resolver.Resolve(result, rel, isBinary(te))
		if err != nil {
			return nil, err
		}
		if decision == conflict.Quit {
			return nil, core.ErrUserCancelled
		}
		if decision != conflict.Override {
			summary.Skipped.Add(1)
			return nil, nil
		}
		write = true
	}

	if write {
		if err := a.write(abs, te); err != nil {
			return nil, err
		}
		switch te.Kind {
		case source.KindFile:
			summary.Files.Add(1)
		case source.KindSymlink:
			summary.Symlinks.Add(1)
		}
	}

	state := store.EntryState{ContentHash: sourceHash}
	if te.Mode != nil {
		state.HasMode = true
		state.Mode = *te.Mode
	}
	return &state, nil
}

func isBinary(te target.TargetEntry) bool {
	for _, b := range te.Content {
		if b == 0 {
			return true
		}
	}
	return false
}

func (a *Applicator) readDest(abs path.AbsPath, wantKind source.Kind) ([32]byte, source.Kind, error) {
	info, err := a.System.Lstat(abs)
	if err != nil {
		if os.IsNotExist(err) {
			return missingHash, target.KindMissing, nil
		}
		return missingHash, target.KindMissing, &core.FSError{Op: "lstat", Path: abs.String(), Err: err}
	}

	switch {
	case info.Mode()&os.ModeSymlink != 0:
		linkTarget, err := a.System.Readlink(abs)
		if err != nil {
			return missingHash, target.KindMissing, &core.FSError{Op: "readlink", Path: abs.String(), Err: err}
		}
		return hashBytes([]byte(linkTarget)), source.KindSymlink, nil
	case info.IsDir():
		return hashBytes([]byte("dir-marker")), source.KindDirectory, nil
	default:
		content, err := a.System.ReadFile(abs)
		if err != nil {
			return missingHash, target.KindMissing, &core.FSError{Op: "readfile", Path: abs.String(), Err: err}
		}
		return hashBytes(content), source.KindFile, nil
	}
}

func (a *Applicator) remove(abs path.AbsPath, kind source.Kind) error {
	if kind == source.KindDirectory {
		return a.System.RemoveAll(abs)
	}
	return a.System.Remove(abs)
}

func (a *Applicator) write(abs path.AbsPath, te target.TargetEntry) error {
	switch te.Kind {
	case source.KindDirectory:
		return a.System.CreateDirAll(abs, te.Mode)
	case source.KindSymlink:
		if a.System.Exists(abs) {
			if err := a.System.Remove(abs); err != nil {
				return err
			}
		}
		return a.System.Symlink(te.LinkTarget, abs)
	default:
		if parent, ok := abs.Parent(); ok {
			if err := a.System.CreateDirAll(parent, nil); err != nil {
				return err
			}
		}
		return a.System.WriteFile(abs, te.Content, te.Mode)
	}
}
