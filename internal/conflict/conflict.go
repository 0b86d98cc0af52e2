// Package conflict implements the reconciliation engine's conflict
// resolution policy: given a three-way comparison result, decide whether
// to write the new content, skip it, or ask the user, with a sticky
// "apply to all remaining" override once the user picks one.
package conflict

import (
	"github.com/guisu-dev/guisu/internal/compare"
	"github.com/guisu-dev/guisu/internal/path"
)

// Decision is what the applicator should do with one entry.
type Decision int

const (
	Override Decision = iota
	Skip
	Diff
	AllOverride
	AllSkip
	Quit
)

// Prompter asks the user what to do about one conflicting entry. The
// concrete textual/diff-rendering implementation lives at the CLI layer;
// internal/conflict only depends on this interface.
type Prompter interface {
	Ask(entry path.RelPath, binary bool) (Decision, error)
}

// noPrompt is the non-interactive stub: any entry that would otherwise
// require a prompt is treated as Skip, leaving the user's local
// modification untouched rather than guessing.
type noPrompt struct{}

func (noPrompt) Ask(path.RelPath, bool) (Decision, error) { return Skip, nil }

// NoPrompt is the default Prompter used when running non-interactively.
var NoPrompt Prompter = noPrompt{}

// Resolver tracks the sticky AllOverride/AllSkip choice across a single
// apply pass. It is not safe for concurrent use: the interactive path is
// single-threaded by construction, so the applicator serializes entries
// whenever a real Prompter (as opposed to NoPrompt) is configured.
type Resolver struct {
	Force   bool
	DryRun  bool
	Prompt  Prompter
	sticky  *Decision
}

// NewResolver builds a Resolver. A nil prompt defaults to NoPrompt.
func NewResolver(force, dryRun bool, prompt Prompter) *Resolver {
	if prompt == nil {
		prompt = NoPrompt
	}
	return &Resolver{Force: force, DryRun: dryRun, Prompt: prompt}
}

// Resolve decides what to do about one entry given its comparison result.
// Callers must bypass Resolve entirely for compare.SourceChanged (and
// compare.NoChange/compare.Converged) — only compare.DestinationChanged
// and compare.BothChanged represent an actual conflict requiring a
// decision; Resolve still classifies them defensively via
// Result.ToChangeType, answering Override for every non-conflict result
// without prompting or consulting a sticky choice, so a caller that
// invokes it unconditionally gets a safe answer.
func (r *Resolver) Resolve(result compare.Result, entry path.RelPath, binary bool) (Decision, error) {
	switch result.ToChangeType() {
	case compare.NoConflict, compare.SourceUpdate:
		return Override, nil
	}

	if r.sticky != nil {
		return *r.sticky, nil
	}

	if r.Force {
		return Override, nil
	}

	decision, err := r.Prompt.Ask(entry, binary)
	if err != nil {
		return Skip, err
	}

	switch decision {
	case AllOverride:
		d := Override
		r.sticky = &d
		return Override, nil
	case AllSkip:
		d := Skip
		r.sticky = &d
		return Skip, nil
	default:
		return decision, nil
	}
}

// Interactive reports whether this resolver prompts a real user, as
// opposed to the non-interactive NoPrompt stub. Callers use this to
// decide whether entries must be applied serially.
func (r *Resolver) Interactive() bool {
	_, isNoPrompt := r.Prompt.(noPrompt)
	return !isNoPrompt
}
