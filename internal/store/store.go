// Package store implements the reconciliation engine's persistent state:
// a single embedded, ACID key-value file holding the base content hash of
// every reconciled entry and the fingerprint of every gated hook, backed by
// go.etcd.io/bbolt — the maintained fork of the boltdb API the wider
// dependency-management ecosystem already reaches for when it needs a
// single-file, single-writer embedded store.
package store

import (
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.etcd.io/bbolt"

	"github.com/guisu-dev/guisu/internal/core"
	"github.com/guisu-dev/guisu/internal/path"
)

var (
	entriesBucket = []byte("entries")
	hooksBucket   = []byte("hooks")
)

// EntryState is the persisted record for one reconciled entry: the content
// hash it was last written with (the "base" hash for the next three-way
// comparison) and its mode, if the entry is a regular file.
type EntryState struct {
	ContentHash [32]byte
	HasMode     bool
	Mode        uint32
}

// HookFingerprint is the persisted record for one gated hook.
type HookFingerprint struct {
	Fingerprint [32]byte
	LastRunUnix int64
}

// Store wraps a single bbolt database file.
type Store struct {
	db *bbolt.DB
}

// Open creates (if needed) and opens the store at p, creating both
// top-level buckets in one initial transaction. The parent directory is
// created with 0o700 and the file itself with 0o600, matching the
// original's durability and confidentiality requirements for a state file
// that may contain hook-fingerprint material derived from secrets.
func Open(p path.AbsPath) (*Store, error) {
	dir := filepath.Dir(p.String())
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, &core.StateError{Op: "mkdir", Err: err}
	}

	db, err := bbolt.Open(p.String(), 0o600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, &core.StateError{Op: "open", Err: err}
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(entriesBucket); err != nil {
			return err
		}
		_, err := tx.CreateBucketIfNotExists(hooksBucket)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, &core.StateError{Op: "init buckets", Err: err}
	}

	return &Store{db: db}, nil
}

// Close releases the underlying file handle.
func (s *Store) Close() error { return s.db.Close() }

func encodeEntryState(e EntryState) []byte {
	b := make([]byte, 32+1+4)
	copy(b[:32], e.ContentHash[:])
	if e.HasMode {
		b[32] = 1
	}
	binary.BigEndian.PutUint32(b[33:], e.Mode)
	return b
}

func decodeEntryState(b []byte) (EntryState, error) {
	if len(b) != 37 {
		return EntryState{}, fmt.Errorf("corrupt entry state: got %d bytes, want 37", len(b))
	}
	var e EntryState
	copy(e.ContentHash[:], b[:32])
	e.HasMode = b[32] == 1
	e.Mode = binary.BigEndian.Uint32(b[33:])
	return e, nil
}

func encodeHookFingerprint(h HookFingerprint) []byte {
	b := make([]byte, 32+8)
	copy(b[:32], h.Fingerprint[:])
	binary.BigEndian.PutUint64(b[32:], uint64(h.LastRunUnix))
	return b
}

func decodeHookFingerprint(b []byte) (HookFingerprint, error) {
	if len(b) != 40 {
		return HookFingerprint{}, fmt.Errorf("corrupt hook fingerprint: got %d bytes, want 40", len(b))
	}
	var h HookFingerprint
	copy(h.Fingerprint[:], b[:32])
	h.LastRunUnix = int64(binary.BigEndian.Uint64(b[32:]))
	return h, nil
}

// GetEntry returns the persisted state for rel, or ok=false if none exists.
func (s *Store) GetEntry(rel path.RelPath) (EntryState, bool, error) {
	var state EntryState
	var found bool
	err := s.db.View(func(tx *bbolt.Tx) error {
		v := tx.Bucket(entriesBucket).Get([]byte(rel.String()))
		if v == nil {
			return nil
		}
		found = true
		var err error
		state, err = decodeEntryState(v)
		return err
	})
	if err != nil {
		return EntryState{}, false, &core.StateError{Op: "get entry", Err: err}
	}
	return state, found, nil
}

// PutEntries writes every entry in states in a single transaction, the
// batching an apply pass requires so the store's on-disk generation always
// corresponds to a complete pass, never a partial one.
func (s *Store) PutEntries(states map[path.RelPath]EntryState) error {
	err := s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(entriesBucket)
		for rel, state := range states {
			if err := b.Put([]byte(rel.String()), encodeEntryState(state)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return &core.StateError{Op: "put entries", Err: err}
	}
	return nil
}

// DeleteEntry removes a persisted entry, used when an apply pass removes
// the corresponding target.
func (s *Store) DeleteEntry(rel path.RelPath) error {
	err := s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(entriesBucket).Delete([]byte(rel.String()))
	})
	if err != nil {
		return &core.StateError{Op: "delete entry", Err: err}
	}
	return nil
}

// GetHook returns the persisted fingerprint for a hook id, or ok=false.
func (s *Store) GetHook(id string) (HookFingerprint, bool, error) {
	var fp HookFingerprint
	var found bool
	err := s.db.View(func(tx *bbolt.Tx) error {
		v := tx.Bucket(hooksBucket).Get([]byte(id))
		if v == nil {
			return nil
		}
		found = true
		var err error
		fp, err = decodeHookFingerprint(v)
		return err
	})
	if err != nil {
		return HookFingerprint{}, false, &core.StateError{Op: "get hook", Err: err}
	}
	return fp, found, nil
}

// PutHook persists a hook's fingerprint after a successful run.
func (s *Store) PutHook(id string, fp HookFingerprint) error {
	err := s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(hooksBucket).Put([]byte(id), encodeHookFingerprint(fp))
	})
	if err != nil {
		return &core.StateError{Op: "put hook", Err: err}
	}
	return nil
}

// AllEntryPaths returns every relative path currently tracked, used by
// Orphans/PruneOrphans/Validate to compare the persisted set against the
// live source tree.
func (s *Store) AllEntryPaths() ([]string, error) {
	var paths []string
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(entriesBucket).ForEach(func(k, _ []byte) error {
			paths = append(paths, string(k))
			return nil
		})
	})
	if err != nil {
		return nil, &core.StateError{Op: "list entries", Err: err}
	}
	return paths, nil
}
