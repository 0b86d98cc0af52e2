package store

import "github.com/guisu-dev/guisu/internal/path"

// ValidationReport summarizes a state-repair pass over the persisted
// entries table, per the original's state_validator.rs.
type ValidationReport struct {
	EntriesChecked    int
	InvalidHashes     int
	OrphanedEntries   []string
	IncompleteEntries []string
}

// Orphans returns persisted entry paths that no longer appear in live (the
// current source-derived target set).
func (s *Store) Orphans(live map[string]struct{}) ([]string, error) {
	all, err := s.AllEntryPaths()
	if err != nil {
		return nil, err
	}
	var orphans []string
	for _, p := range all {
		if _, ok := live[p]; !ok {
			orphans = append(orphans, p)
		}
	}
	return orphans, nil
}

// PruneOrphans deletes every persisted entry absent from live and returns
// the count removed.
func (s *Store) PruneOrphans(live map[string]struct{}) (int, error) {
	orphans, err := s.Orphans(live)
	if err != nil {
		return 0, err
	}
	for _, p := range orphans {
		rel, err := path.NewRelPath(p)
		if err != nil {
			continue
		}
		if err := s.DeleteEntry(rel); err != nil {
			return 0, err
		}
	}
	return len(orphans), nil
}

// Validate walks every persisted entry, checking its hash is well-formed
// and that it still corresponds to something in live, without mutating
// anything. This is the read-only half of `state repair`; PruneOrphans is
// the mutating half the CLI calls when the user confirms.
func (s *Store) Validate(live map[string]struct{}) (ValidationReport, error) {
	all, err := s.AllEntryPaths()
	if err != nil {
		return ValidationReport{}, err
	}

	report := ValidationReport{EntriesChecked: len(all)}
	for _, p := range all {
		if _, ok := live[p]; !ok {
			report.OrphanedEntries = append(report.OrphanedEntries, p)
			continue
		}
		rel, err := path.NewRelPath(p)
		if err != nil {
			report.IncompleteEntries = append(report.IncompleteEntries, p)
			continue
		}
		state, found, err := s.GetEntry(rel)
		if err != nil || !found {
			report.IncompleteEntries = append(report.IncompleteEntries, p)
			continue
		}
		zero := true
		for _, b := range state.ContentHash {
			if b != 0 {
				zero = false
				break
			}
		}
		if zero {
			report.InvalidHashes++
		}
	}
	return report, nil
}
