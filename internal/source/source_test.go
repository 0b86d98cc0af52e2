package source

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/guisu-dev/guisu/internal/ignore"
	"github.com/guisu-dev/guisu/internal/path"
)

type noOpMatcher struct{}

func (noOpMatcher) Match(string, bool) bool { return false }

func writeFile(t *testing.T, p string, data string, mode os.FileMode) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(p, []byte(data), mode); err != nil {
		t.Fatal(err)
	}
}

func TestReadBasicTree(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "home", ".gitconfig"), "x", 0o644)
	writeFile(t, filepath.Join(dir, "home", ".env.j2.age"), "enc", 0o600)
	writeFile(t, filepath.Join(dir, "home", "bin", "run.sh"), "#!/bin/sh", 0o755)

	root := path.MustAbsPath(dir)
	entries, err := Read(root, noOpMatcher{})
	if err != nil {
		t.Fatalf("Read: %v", err)
	}

	gitconfig, ok := entries[relOf(t, "home/.gitconfig")]
	if !ok {
		t.Fatalf("missing home/.gitconfig, got %v", keysOf(entries))
	}
	if gitconfig.Kind != KindFile || gitconfig.Attributes.Template || gitconfig.Attributes.Encrypted {
		t.Errorf("unexpected attrs for .gitconfig: %+v", gitconfig)
	}

	env, ok := entries[relOf(t, "home/.env")]
	if !ok {
		t.Fatalf("missing home/.env, got %v", keysOf(entries))
	}
	if !env.Attributes.Template || !env.Attributes.Encrypted {
		t.Errorf("expected template+encrypted attrs, got %+v", env.Attributes)
	}
	if !env.Attributes.Private {
		t.Errorf("0o600 file should be Private, got %+v", env.Attributes)
	}

	run, ok := entries[relOf(t, "home/bin/run.sh")]
	if !ok {
		t.Fatalf("missing home/bin/run.sh, got %v", keysOf(entries))
	}
	if !run.Attributes.Executable {
		t.Errorf("0o755 file should be Executable, got %+v", run.Attributes)
	}

	binDir, ok := entries[relOf(t, "home/bin")]
	if !ok || binDir.Kind != KindDirectory {
		t.Errorf("expected home/bin directory entry, got %+v ok=%v", binDir, ok)
	}
}

func TestReadSkipsIgnoredDirectory(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "cache", "data.bin"), "x", 0o644)
	writeFile(t, filepath.Join(dir, "keep.txt"), "x", 0o644)

	root := path.MustAbsPath(dir)
	m, err := ignore.NewMatcher([]string{"cache/"}, nil, "")
	if err != nil {
		t.Fatal(err)
	}
	entries, err := Read(root, m)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if _, ok := entries[relOf(t, "cache")]; ok {
		t.Errorf("cache directory should have been skipped")
	}
	if _, ok := entries[relOf(t, "cache/data.bin")]; ok {
		t.Errorf("descendant of ignored directory should never be visited")
	}
	if _, ok := entries[relOf(t, "keep.txt")]; !ok {
		t.Errorf("keep.txt should still be present")
	}
}

func TestReadSymlinkNeverFollowed(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "real.txt"), "x", 0o644)
	if err := os.Symlink(filepath.Join(dir, "real.txt"), filepath.Join(dir, "link.txt")); err != nil {
		t.Fatal(err)
	}

	root := path.MustAbsPath(dir)
	entries, err := Read(root, noOpMatcher{})
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	link, ok := entries[relOf(t, "link.txt")]
	if !ok || link.Kind != KindSymlink {
		t.Fatalf("expected symlink entry, got %+v ok=%v", link, ok)
	}
	if link.LinkTarget != filepath.Join(dir, "real.txt") {
		t.Errorf("unexpected link target %q", link.LinkTarget)
	}
}

func TestReadStripsAttributeSuffixFromDirectoryAncestors(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "private.age", "child.txt"), "x", 0o644)
	writeFile(t, filepath.Join(dir, "private.age", "sub", "nested.txt"), "x", 0o644)

	root := path.MustAbsPath(dir)
	entries, err := Read(root, noOpMatcher{})
	if err != nil {
		t.Fatalf("Read: %v", err)
	}

	privateDir, ok := entries[relOf(t, "private")]
	if !ok || privateDir.Kind != KindDirectory {
		t.Fatalf("expected private directory entry stripped of .age, got %v", keysOf(entries))
	}
	if !privateDir.Attributes.Encrypted {
		t.Errorf("expected .age directory to carry Encrypted attribute, got %+v", privateDir.Attributes)
	}

	if _, ok := entries[relOf(t, "private.age/child.txt")]; ok {
		t.Errorf("child target path must not carry the directory's raw suffix, got %v", keysOf(entries))
	}
	child, ok := entries[relOf(t, "private/child.txt")]
	if !ok || child.Kind != KindFile {
		t.Fatalf("expected private/child.txt, got %v", keysOf(entries))
	}

	nested, ok := entries[relOf(t, "private/sub/nested.txt")]
	if !ok || nested.Kind != KindFile {
		t.Fatalf("expected private/sub/nested.txt for a grandchild, got %v", keysOf(entries))
	}
}

func relOf(t *testing.T, s string) path.RelPath {
	t.Helper()
	r, err := path.NewRelPath(s)
	if err != nil {
		t.Fatal(err)
	}
	return r
}

func keysOf(m map[path.RelPath]SourceEntry) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k.String())
	}
	return out
}
