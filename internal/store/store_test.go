package store

import (
	"testing"

	"github.com/guisu-dev/guisu/internal/path"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	p := path.MustAbsPath(t.TempDir() + "/state.db")
	s, err := Open(p)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func rel(t *testing.T, s string) path.RelPath {
	t.Helper()
	r, err := path.NewRelPath(s)
	if err != nil {
		t.Fatal(err)
	}
	return r
}

func TestGetEntryMissing(t *testing.T) {
	s := openTestStore(t)
	_, ok, err := s.GetEntry(rel(t, "nope"))
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Errorf("expected no entry")
	}
}

func TestPutAndGetEntry(t *testing.T) {
	s := openTestStore(t)
	state := EntryState{ContentHash: [32]byte{1, 2, 3}, HasMode: true, Mode: 0o644}
	if err := s.PutEntries(map[path.RelPath]EntryState{rel(t, "a"): state}); err != nil {
		t.Fatal(err)
	}
	got, ok, err := s.GetEntry(rel(t, "a"))
	if err != nil || !ok {
		t.Fatalf("ok=%v err=%v", ok, err)
	}
	if got.ContentHash != state.ContentHash || got.HasMode != state.HasMode || got.Mode != state.Mode {
		t.Errorf("got %+v want %+v", got, state)
	}
}

func TestDeleteEntry(t *testing.T) {
	s := openTestStore(t)
	s.PutEntries(map[path.RelPath]EntryState{rel(t, "a"): {}})
	if err := s.DeleteEntry(rel(t, "a")); err != nil {
		t.Fatal(err)
	}
	_, ok, _ := s.GetEntry(rel(t, "a"))
	if ok {
		t.Errorf("expected entry to be gone")
	}
}

func TestHookFingerprintRoundtrip(t *testing.T) {
	s := openTestStore(t)
	fp := HookFingerprint{Fingerprint: [32]byte{9}, LastRunUnix: 1234567}
	if err := s.PutHook("pre/10-setup", fp); err != nil {
		t.Fatal(err)
	}
	got, ok, err := s.GetHook("pre/10-setup")
	if err != nil || !ok {
		t.Fatalf("ok=%v err=%v", ok, err)
	}
	if got != fp {
		t.Errorf("got %+v want %+v", got, fp)
	}
}

func TestOrphansAndPrune(t *testing.T) {
	s := openTestStore(t)
	s.PutEntries(map[path.RelPath]EntryState{
		rel(t, "kept"):   {},
		rel(t, "gone"):   {},
	})
	live := map[string]struct{}{"kept": {}}

	orphans, err := s.Orphans(live)
	if err != nil {
		t.Fatal(err)
	}
	if len(orphans) != 1 || orphans[0] != "gone" {
		t.Fatalf("got %v", orphans)
	}

	n, err := s.PruneOrphans(live)
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("expected 1 pruned, got %d", n)
	}
	if _, ok, _ := s.GetEntry(rel(t, "gone")); ok {
		t.Errorf("orphan should have been deleted")
	}
	if _, ok, _ := s.GetEntry(rel(t, "kept")); !ok {
		t.Errorf("live entry should remain")
	}
}

func TestValidateReportsInvalidHash(t *testing.T) {
	s := openTestStore(t)
	s.PutEntries(map[path.RelPath]EntryState{
		rel(t, "zero"): {ContentHash: [32]byte{}},
		rel(t, "real"): {ContentHash: [32]byte{1}},
	})
	live := map[string]struct{}{"zero": {}, "real": {}}

	report, err := s.Validate(live)
	if err != nil {
		t.Fatal(err)
	}
	if report.EntriesChecked != 2 {
		t.Errorf("got %d entries checked", report.EntriesChecked)
	}
	if report.InvalidHashes != 1 {
		t.Errorf("expected 1 invalid hash, got %d", report.InvalidHashes)
	}
}
