// Package engine wires the reconciliation packages together into the
// handful of operations the CLI exposes: source.Read, target.Build, and
// apply.Applicator behind one construction call, the way the teacher's
// internal/merkle.NewEngineWithExclusions is the one call every command
// makes to get a ready-to-use engine instance.
package engine

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/guisu-dev/guisu/internal/adapters/crypto"
	"github.com/guisu-dev/guisu/internal/adapters/template"
	"github.com/guisu-dev/guisu/internal/apply"
	"github.com/guisu-dev/guisu/internal/compare"
	"github.com/guisu-dev/guisu/internal/conflict"
	"github.com/guisu-dev/guisu/internal/config"
	"github.com/guisu-dev/guisu/internal/content"
	"github.com/guisu-dev/guisu/internal/hooks"
	"github.com/guisu-dev/guisu/internal/path"
	"github.com/guisu-dev/guisu/internal/source"
	"github.com/guisu-dev/guisu/internal/store"
	"github.com/guisu-dev/guisu/internal/target"
	"github.com/zeebo/blake3"
)

// Session holds everything a single CLI invocation needs to read the
// source tree, build the target tree, and optionally apply it.
type Session struct {
	SourceDir path.AbsPath
	DestDir   path.AbsPath
	Store     *store.Store
	Pipeline  *content.Pipeline
	Variables map[string]any
	matcher   sourceMatcher
}

// sourceMatcher is the subset of ignore.Matcher engine needs, named
// locally so this file doesn't have to import internal/ignore just for
// the interface type.
type sourceMatcher interface {
	Match(path string, isDir bool) bool
}

// Options configures Open. CustomIgnoreFile and AgeIdentityFile default to
// the source tree's own conventional locations when empty.
type Options struct {
	SourceDir        string
	DestDir          string
	StatePath        string
	CustomIgnoreFile string
	AgeIdentityFile  string
}

// Open loads ignores/variables, constructs the content pipeline (age
// decryption is wired in only if an identity file is found, matching the
// original's "encryption is opt-in per machine" behavior), and opens the
// persistent store.
func Open(opts Options) (*Session, error) {
	if opts.SourceDir == "" {
		return nil, fmt.Errorf("source directory is required")
	}
	if opts.DestDir == "" {
		return nil, fmt.Errorf("destination directory is required")
	}

	sourceDir, err := path.NewAbsPath(opts.SourceDir)
	if err != nil {
		return nil, fmt.Errorf("invalid source directory: %w", err)
	}
	destDir, err := path.NewAbsPath(opts.DestDir)
	if err != nil {
		return nil, fmt.Errorf("invalid destination directory: %w", err)
	}

	matcher, err := config.BuildMatcher(sourceDir, opts.CustomIgnoreFile)
	if err != nil {
		return nil, fmt.Errorf("loading ignores: %w", err)
	}

	vars, err := config.LoadVariables(sourceDir.Join(mustRel(".guisu")))
	if err != nil {
		return nil, fmt.Errorf("loading variables: %w", err)
	}
	vars["system"] = systemInfo()

	pipeline, err := buildPipeline(sourceDir, opts.AgeIdentityFile)
	if err != nil {
		return nil, fmt.Errorf("building content pipeline: %w", err)
	}

	statePath := opts.StatePath
	if statePath == "" {
		return nil, fmt.Errorf("state path is required")
	}
	st, err := store.Open(path.MustAbsPath(statePath))
	if err != nil {
		return nil, fmt.Errorf("opening state store: %w", err)
	}

	return &Session{
		SourceDir: sourceDir,
		DestDir:   destDir,
		Store:     st,
		Pipeline:  pipeline,
		Variables: vars,
		matcher:   matcher,
	}, nil
}

// Close releases the session's state store handle.
func (s *Session) Close() error {
	return s.Store.Close()
}

func mustRel(p string) path.RelPath {
	r, err := path.NewRelPath(p)
	if err != nil {
		panic(err)
	}
	return r
}

// buildPipeline wires a real AgeDecryptor when an identity file exists
// under sourceDir/.guisu/age/keys.txt (or the caller's override), falling
// back to a no-op decryptor for sources that carry no encrypted entries.
func buildPipeline(sourceDir path.AbsPath, identityFileOverride string) (*content.Pipeline, error) {
	identityFile := identityFileOverride
	if identityFile == "" {
		identityFile = filepath.Join(sourceDir.String(), ".guisu", "age", "keys.txt")
	}

	var decryptor content.Decryptor = content.NoOpDecryptor{}
	if _, err := os.Stat(identityFile); err == nil {
		dec, err := crypto.LoadIdentities(identityFile)
		if err != nil {
			return nil, fmt.Errorf("loading age identities from %s: %w", identityFile, err)
		}
		decryptor = dec
	}

	return &content.Pipeline{Decryptor: decryptor, Renderer: template.GoTemplateRenderer{}}, nil
}

// systemInfo mirrors the original's SystemInfo context fields (os/arch);
// Open stores it under the "system" key of the template variables.
func systemInfo() map[string]any {
	return map[string]any{
		"os":   runtime.GOOS,
		"arch": runtime.GOARCH,
	}
}

// ReadSource walks the source tree with the session's matcher.
func (s *Session) ReadSource() (map[path.RelPath]source.SourceEntry, error) {
	return source.Read(s.SourceDir, s.matcher)
}

// BuildTargets runs every source entry through the content pipeline,
// bounded by workers (0 uses target.DefaultWorkers).
func (s *Session) BuildTargets(entries map[path.RelPath]source.SourceEntry, workers int) (map[path.RelPath]target.TargetEntry, []target.Diagnostic, error) {
	readFile := func(rel path.SourceRelPath) ([]byte, error) {
		abs := s.SourceDir.Join(rel.ToRel())
		data, err := os.ReadFile(abs.String())
		if err != nil {
			return nil, err
		}
		return data, nil
	}
	return target.Build(s.SourceDir, entries, readFile, s.Pipeline, s.Variables, workers)
}

// NewApplicator constructs an Applicator bound to this session's store,
// writing through sys (RealSystem for a real pass, DryRunSystem for
// --dry-run) and resolving conflicts through resolver.
func (s *Session) NewApplicator(sys apply.System, resolver *conflict.Resolver) *apply.Applicator {
	return apply.New(sys, s.DestDir, s.Store, resolver)
}

// LoadHooks discovers the pre/post hooks declared under this session's
// source tree, the one place both the apply path and the standalone
// "hooks run" command get them from.
func (s *Session) LoadHooks() (pre, post []hooks.Hook, err error) {
	return hooks.Loader{}.Load(s.SourceDir)
}

// RunHookStage runs one hook stage against this session's store. Apply
// uses this to run Pre before any write and Post after the last one;
// "hooks run" uses it to run either stage standalone.
func (s *Session) RunHookStage(ctx context.Context, stage hooks.Stage, set []hooks.Hook) (hooks.StageResult, error) {
	runner := &hooks.Runner{Store: s.Store}
	return runner.Run(ctx, stage, set, runtime.GOOS)
}

// PlanEntry is one entry's read-only comparison result, plus enough
// content to render a diff, for status/diff reporting that must never
// mutate the destination or the persistent store.
type PlanEntry struct {
	Path       path.RelPath
	Result     compare.Result
	DestExists bool
	DestBytes  []byte
}

func hashBytes(data []byte) [32]byte {
	h := blake3.New()
	_, _ = h.Write(data)
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}

// Plan classifies every target entry against the live destination and the
// persisted base hash, without writing anything. Status and diff both
// build their report from this.
func (s *Session) Plan(targets map[path.RelPath]target.TargetEntry) (map[path.RelPath]PlanEntry, error) {
	out := make(map[path.RelPath]PlanEntry, len(targets))
	for rel, te := range targets {
		abs := s.DestDir.Join(rel)

		var sourceHash [32]byte
		switch te.Kind {
		case source.KindFile:
			sourceHash = hashBytes(te.Content)
		case source.KindSymlink:
			sourceHash = hashBytes([]byte(te.LinkTarget))
		default:
			sourceHash = hashBytes([]byte("dir:" + rel.String()))
		}

		info, err := os.Lstat(abs.String())
		destExists := err == nil
		var destHash [32]byte
		var destBytes []byte
		if destExists {
			switch {
			case info.Mode()&os.ModeSymlink != 0:
				linkTarget, lerr := os.Readlink(abs.String())
				if lerr == nil {
					destHash = hashBytes([]byte(linkTarget))
				}
			case info.IsDir():
				destHash = hashBytes([]byte("dir-marker"))
			default:
				data, rerr := os.ReadFile(abs.String())
				if rerr == nil {
					destBytes = data
					destHash = hashBytes(data)
				}
			}
		}

		var baseHash *[32]byte
		if te.Kind != source.KindDirectory {
			existing, hasBase, err := s.Store.GetEntry(rel)
			if err == nil && hasBase {
				baseHash = &existing.ContentHash
			}
		}

		var result compare.Result
		if !destExists {
			result = compare.SourceChanged
		} else {
			result = compare.Compare(sourceHash, destHash, baseHash)
		}

		out[rel] = PlanEntry{Path: rel, Result: result, DestExists: destExists, DestBytes: destBytes}
	}
	return out, nil
}

// kindMatches reports whether se falls under one of the --include/--exclude
// kind filter keywords: files, dirs, symlinks, templates, encrypted. The
// first two pairs filter on source.Kind, the last two on attribute flags
// that only files and directories can carry.
func kindMatches(se source.SourceEntry, keyword string) bool {
	switch keyword {
	case "files":
		return se.Kind == source.KindFile
	case "dirs":
		return se.Kind == source.KindDirectory
	case "symlinks":
		return se.Kind == source.KindSymlink
	case "templates":
		return se.Attributes.Template
	case "encrypted":
		return se.Attributes.Encrypted
	default:
		return false
	}
}

// FilterEntries narrows entries to the --include/--exclude kind filters.
// An empty include list means "every kind"; exclude is applied afterward
// and always wins over include for an entry matching both.
func FilterEntries(entries map[path.RelPath]source.SourceEntry, include, exclude []string) map[path.RelPath]source.SourceEntry {
	if len(include) == 0 && len(exclude) == 0 {
		return entries
	}

	out := make(map[path.RelPath]source.SourceEntry, len(entries))
	for rel, se := range entries {
		if len(include) > 0 {
			included := false
			for _, kw := range include {
				if kindMatches(se, kw) {
					included = true
					break
				}
			}
			if !included {
				continue
			}
		}

		excluded := false
		for _, kw := range exclude {
			if kindMatches(se, kw) {
				excluded = true
				break
			}
		}
		if excluded {
			continue
		}

		out[rel] = se
	}
	return out
}
