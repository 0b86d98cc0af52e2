// Package cliprompt implements the reconciliation engine's interactive
// conflict prompter: the concrete, terminal-facing half of
// internal/conflict.Prompter, rendering a diff between the current
// destination content and the pending target content before asking the
// user what to do.
package cliprompt

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"

	"github.com/guisu-dev/guisu/internal/conflict"
	"github.com/guisu-dev/guisu/internal/path"
)

// ContentLookup returns the current destination and pending target
// content for entry, used only to render a diff when the user asks for
// one; a binary entry may return empty slices since TerminalPrompter
// never renders a diff for those.
type ContentLookup func(entry path.RelPath) (dest, target []byte)

// TerminalPrompter asks the user what to do about a conflicting entry via
// a line-oriented prompt, the natural fit for a CLI that may run with its
// stdout piped elsewhere but still wants an interactive stdin.
type TerminalPrompter struct {
	In      io.Reader
	Out     io.Writer
	Lookup  ContentLookup
	scanner *bufio.Scanner
}

var _ conflict.Prompter = (*TerminalPrompter)(nil)

// New builds a TerminalPrompter reading from in and writing prompts to out.
func New(in io.Reader, out io.Writer, lookup ContentLookup) *TerminalPrompter {
	return &TerminalPrompter{In: in, Out: out, Lookup: lookup}
}

// Ask prints the conflicting entry's path and a single-letter menu,
// looping until the user gives an answer Decision understands. "d" prints
// a diff and re-prompts rather than resolving, mirroring Decision.Diff's
// role as a non-terminal choice.
func (p *TerminalPrompter) Ask(entry path.RelPath, binary bool) (conflict.Decision, error) {
	if p.scanner == nil {
		p.scanner = bufio.NewScanner(p.In)
	}

	for {
		fmt.Fprintf(p.Out, "%s has diverged from the applied state.\n", entry.String())
		if binary {
			fmt.Fprint(p.Out, "[o]verride [s]kip [O]verride all [S]kip all [q]uit: ")
		} else {
			fmt.Fprint(p.Out, "[o]verride [s]kip [d]iff [O]verride all [S]kip all [q]uit: ")
		}

		if !p.scanner.Scan() {
			return conflict.Skip, p.scanner.Err()
		}
		answer := strings.TrimSpace(p.scanner.Text())

		switch answer {
		case "o":
			return conflict.Override, nil
		case "s":
			return conflict.Skip, nil
		case "O":
			return conflict.AllOverride, nil
		case "S":
			return conflict.AllSkip, nil
		case "q":
			return conflict.Quit, nil
		case "d":
			if binary || p.Lookup == nil {
				fmt.Fprintln(p.Out, "no diff available for this entry")
				continue
			}
			dest, target := p.Lookup(entry)
			fmt.Fprintln(p.Out, renderDiff(dest, target))
			continue
		default:
			fmt.Fprintln(p.Out, "unrecognized answer, try again")
		}
	}
}

// renderDiff produces a human-readable unified-ish diff between the
// current destination content and the pending target content.
func renderDiff(dest, target []byte) string {
	dmp := diffmatchpatch.New()
	diffs := dmp.DiffMain(string(dest), string(target), false)
	diffs = dmp.DiffCleanupSemantic(diffs)
	return dmp.DiffPrettyText(diffs)
}
