package target

import (
	"errors"
	"testing"

	"github.com/guisu-dev/guisu/internal/attr"
	"github.com/guisu-dev/guisu/internal/content"
	"github.com/guisu-dev/guisu/internal/path"
	"github.com/guisu-dev/guisu/internal/source"
)

func rel(t *testing.T, s string) path.RelPath {
	t.Helper()
	r, err := path.NewRelPath(s)
	if err != nil {
		t.Fatal(err)
	}
	return r
}

func srcRel(t *testing.T, s string) path.SourceRelPath {
	t.Helper()
	r, err := path.NewSourceRelPath(s)
	if err != nil {
		t.Fatal(err)
	}
	return r
}

func TestBuildFileAndDirectory(t *testing.T) {
	root := path.MustAbsPath(t.TempDir())
	entries := map[path.RelPath]source.SourceEntry{
		rel(t, "home/.gitconfig"): {
			Kind:       source.KindFile,
			SourcePath: srcRel(t, "home/.gitconfig"),
			TargetPath: rel(t, "home/.gitconfig"),
			Attributes: attr.Attributes{},
		},
		rel(t, "home"): {
			Kind:       source.KindDirectory,
			SourcePath: srcRel(t, "home"),
			TargetPath: rel(t, "home"),
			Attributes: attr.Attributes{},
		},
	}

	readFile := func(p path.SourceRelPath) ([]byte, error) {
		return []byte("content of " + p.String()), nil
	}

	out, diags, err := Build(root, entries, readFile, content.NewNoOpPipeline(), nil, 2)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if len(diags) != 0 {
		t.Fatalf("unexpected diagnostics: %+v", diags)
	}

	file, ok := out[rel(t, "home/.gitconfig")]
	if !ok || file.Kind != source.KindFile {
		t.Fatalf("missing or wrong kind for file entry: %+v ok=%v", file, ok)
	}
	if string(file.Content) != "content of home/.gitconfig" {
		t.Errorf("got content %q", file.Content)
	}
	if file.Mode == nil {
		t.Errorf("expected a mode for file entry")
	}

	dir, ok := out[rel(t, "home")]
	if !ok || dir.Kind != source.KindDirectory {
		t.Fatalf("missing or wrong kind for dir entry: %+v ok=%v", dir, ok)
	}
}

func TestBuildCollectsDiagnosticsWithoutAborting(t *testing.T) {
	root := path.MustAbsPath(t.TempDir())
	entries := map[path.RelPath]source.SourceEntry{
		rel(t, "bad"): {
			Kind:       source.KindFile,
			SourcePath: srcRel(t, "bad"),
			TargetPath: rel(t, "bad"),
		},
		rel(t, "good"): {
			Kind:       source.KindFile,
			SourcePath: srcRel(t, "good"),
			TargetPath: rel(t, "good"),
		},
	}

	readFile := func(p path.SourceRelPath) ([]byte, error) {
		if p.String() == "bad" {
			return nil, errors.New("boom")
		}
		return []byte("ok"), nil
	}

	out, diags, err := Build(root, entries, readFile, content.NewNoOpPipeline(), nil, 2)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if len(diags) != 1 || diags[0].Path.String() != "bad" {
		t.Fatalf("expected one diagnostic for 'bad', got %+v", diags)
	}
	if _, ok := out[rel(t, "bad")]; ok {
		t.Errorf("failed entry should not appear in output")
	}
	if _, ok := out[rel(t, "good")]; !ok {
		t.Errorf("good entry should still be built")
	}
}

func TestDestEntryMatches(t *testing.T) {
	mode := uint32(0o644)
	te := TargetEntry{Kind: source.KindFile, Content: []byte("x"), Mode: &mode}
	de := DestEntry{Kind: source.KindFile, Content: []byte("x"), Mode: &mode}
	if !de.Matches(te) {
		t.Errorf("expected match")
	}
	de.Content = []byte("y")
	if de.Matches(te) {
		t.Errorf("expected mismatch on content")
	}
}
