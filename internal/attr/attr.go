// Package attr parses the orthogonal file-attribute flags a source entry
// carries from its filename suffixes and Unix mode bits, and provides the
// pure inverse used by commands that need to find a source file behind a
// destination path.
package attr

import (
	"os"
	"strings"

	"github.com/guisu-dev/guisu/internal/core"
)

const (
	templateSuffix  = ".j2"
	encryptedSuffix = ".age"
)

// Attributes is a value type; equality is structural (plain struct equality).
type Attributes struct {
	Template   bool
	Encrypted  bool
	Executable bool
	Private    bool
	Readonly   bool
}

// FromFilename implements the source-reader's attribute-parsing step:
// strip ".age", then strip ".j2" from what remains, then derive the
// mode-based flags. Returns the stripped (target-facing) name alongside
// the parsed attributes.
func FromFilename(name string, mode os.FileMode) (string, Attributes, error) {
	var a Attributes

	stripped := name
	if s, ok := strings.CutSuffix(stripped, encryptedSuffix); ok {
		a.Encrypted = true
		stripped = s
	}
	if s, ok := strings.CutSuffix(stripped, templateSuffix); ok {
		a.Template = true
		stripped = s
	}

	if stripped == "" {
		return "", Attributes{}, &core.FSError{Op: "attr.FromFilename", Path: name, Err: core.ErrInvalidAttributes}
	}

	modeAttrs := FromMode(mode)
	a.Executable = modeAttrs.Executable
	a.Private = modeAttrs.Private
	a.Readonly = modeAttrs.Readonly

	return stripped, a, nil
}

// FromMode derives the mode-based attribute flags alone, with no filename
// parsing. FromFilename uses this for entries read from an existing source
// tree; `add` uses it directly to capture an existing destination file's
// mode before a source filename has been chosen for it.
func FromMode(mode os.FileMode) Attributes {
	perm := mode.Perm()
	return Attributes{
		Executable: perm&0o111 != 0,
		Private:    perm&0o077 == 0,
		Readonly:   perm&0o200 == 0,
	}
}

// TargetName is the pure function mapping a source filename to its target
// (destination-facing) name: strip ".age" then ".j2", in that order, each
// only if present. It performs no mode lookup and never fails — attribute
// validity (non-empty stripped name) is only enforced by FromFilename,
// which a caller reading real entries always goes through first.
func TargetName(sourceName string) string {
	name := strings.TrimSuffix(sourceName, encryptedSuffix)
	name = strings.TrimSuffix(name, templateSuffix)
	return name
}

// CandidateSourceNames is the inverse used by `add`/`edit`: given a target
// (destination-facing) name, enumerate the source filenames that could map
// to it, in the order a lookup should try them: the bare name first, then
// ".j2", then ".age", and the doubly-suffixed ".j2.age" last. Order
// matters because a filesystem listing a caller searches against may
// contain more than one candidate; the first one present wins.
func CandidateSourceNames(targetName string) []string {
	return []string{
		targetName,
		targetName + templateSuffix,
		targetName + encryptedSuffix,
		targetName + templateSuffix + encryptedSuffix,
	}
}

// FileMode derives the Unix permission bits for a target file from its
// attributes, per the applicator's mode policy: 0o600 if private else
// 0o644, execute bit added if executable, owner-write bit cleared if
// readonly.
func (a Attributes) FileMode() os.FileMode {
	var m os.FileMode = 0o644
	if a.Private {
		m = 0o600
	}
	if a.Executable {
		m |= 0o111
	}
	if a.Readonly {
		m &^= 0o200
	}
	return m
}

// DirMode derives the Unix permission bits for a target directory. Readonly
// is deliberately not consulted: the semantics of a readonly directory are
// underspecified, so only Private affects directory mode.
func (a Attributes) DirMode() os.FileMode {
	if a.Private {
		return 0o700
	}
	return 0o755
}
