// Package target builds the in-memory target tree: the result of running
// every source entry through the content pipeline, ready to be compared
// against the destination tree. Work is fanned out across a bounded
// worker pool the way the teacher's Merkle engine bounds concurrent file
// hashing with a semaphore, generalized here to bound concurrent
// decrypt/render work instead of raw I/O.
package target

import (
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/guisu-dev/guisu/internal/attr"
	"github.com/guisu-dev/guisu/internal/content"
	"github.com/guisu-dev/guisu/internal/core"
	"github.com/guisu-dev/guisu/internal/path"
	"github.com/guisu-dev/guisu/internal/source"
)

// DefaultWorkers mirrors the teacher's DefaultMaxWorkers for the
// content-processing stage.
const DefaultWorkers = 8

// TargetEntry is the fully-resolved, in-memory representation of one
// reconciled entry: its content after decrypt/render/inline-secret
// expansion, and the mode it should carry on disk.
type TargetEntry struct {
	Kind       source.Kind
	Path       path.RelPath
	Content    []byte  // KindFile only
	Mode       *uint32 // nil when the entry carries no explicit mode policy
	LinkTarget string  // KindSymlink only
}

// DestEntry is the corresponding read of the destination tree for one
// path. KindMissing (the Kind zero-adjacent sentinel below) means nothing
// exists there yet.
const KindMissing source.Kind = -1

type DestEntry struct {
	Kind       source.Kind
	Content    []byte
	Mode       *uint32
	LinkTarget string
}

// Matches reports whether d already holds exactly what t would write:
// same kind, content, mode and link target. Used to short-circuit a
// write when the destination already agrees with the target.
func (d DestEntry) Matches(t TargetEntry) bool {
	if d.Kind != t.Kind {
		return false
	}
	switch t.Kind {
	case source.KindSymlink:
		return d.LinkTarget == t.LinkTarget
	case source.KindDirectory:
		return modesEqual(d.Mode, t.Mode)
	default:
		return string(d.Content) == string(t.Content) && modesEqual(d.Mode, t.Mode)
	}
}

func modesEqual(a, b *uint32) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// Diagnostic records a non-fatal problem with one entry (e.g. a failed
// decrypt for an identity the current run doesn't hold) collected during
// Build rather than aborting the whole run.
type Diagnostic struct {
	Path path.RelPath
	Err  error
}

// Build runs every source entry through pipeline, bounded to workers
// concurrent entries at a time. Reader entries (files) are processed by
// reading their content from sourceRoot and handing it to the pipeline;
// directories and symlinks pass through unchanged. A failure on one
// entry is recorded as a Diagnostic and does not abort the others.
func Build(sourceRoot path.AbsPath, entries map[path.RelPath]source.SourceEntry, readFile func(path.SourceRelPath) ([]byte, error), pipeline *content.Pipeline, context map[string]any, workers int) (map[path.RelPath]TargetEntry, []Diagnostic, error) {
	if workers < 1 {
		workers = DefaultWorkers
	}

	type result struct {
		key   path.RelPath
		entry TargetEntry
		diag  *Diagnostic
	}

	keys := make([]path.RelPath, 0, len(entries))
	for k := range entries {
		keys = append(keys, k)
	}

	results := make([]result, len(keys))
	g := &errgroup.Group{}
	g.SetLimit(workers)

	for i, k := range keys {
		i, k := i, k
		se := entries[k]
		g.Go(func() error {
			te, err := buildOne(se, readFile, pipeline, context)
			if err != nil {
				results[i] = result{key: k, diag: &Diagnostic{Path: k, Err: err}}
				return nil
			}
			results[i] = result{key: k, entry: te}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, nil, &core.ContentError{Stage: "build", Path: sourceRoot.String(), Err: err}
	}

	out := make(map[path.RelPath]TargetEntry, len(keys))
	var diags []Diagnostic
	for _, r := range results {
		if r.diag != nil {
			diags = append(diags, *r.diag)
			continue
		}
		out[r.key] = r.entry
	}

	sort.Slice(diags, func(i, j int) bool { return diags[i].Path.String() < diags[j].Path.String() })

	return out, diags, nil
}

func buildOne(se source.SourceEntry, readFile func(path.SourceRelPath) ([]byte, error), pipeline *content.Pipeline, context map[string]any) (TargetEntry, error) {
	switch se.Kind {
	case source.KindSymlink:
		return TargetEntry{Kind: source.KindSymlink, Path: se.TargetPath, LinkTarget: se.LinkTarget}, nil
	case source.KindDirectory:
		mode := dirModePtr(se.Attributes)
		return TargetEntry{Kind: source.KindDirectory, Path: se.TargetPath, Mode: mode}, nil
	default:
		raw, err := readFile(se.SourcePath)
		if err != nil {
			return TargetEntry{}, err
		}
		processed, err := pipeline.Process(raw, se.Attributes, context, se.SourcePath.String())
		if err != nil {
			return TargetEntry{}, err
		}
		mode := fileModePtr(se.Attributes)
		return TargetEntry{Kind: source.KindFile, Path: se.TargetPath, Content: processed, Mode: mode}, nil
	}
}

func fileModePtr(a attr.Attributes) *uint32 {
	m := uint32(a.FileMode())
	return &m
}

func dirModePtr(a attr.Attributes) *uint32 {
	m := uint32(a.DirMode())
	return &m
}
