package cmd

import (
	"fmt"
	"io"

	"github.com/guisu-dev/guisu/internal/hooks"
)

// HookStatusName renders a hooks.Status the way every command that
// prints hook outcomes (apply, hooks run) should.
func HookStatusName(s hooks.Status) string {
	switch s {
	case hooks.Succeeded:
		return "ok"
	case hooks.Skipped:
		return "skipped"
	default:
		return "failed"
	}
}

// PrintHookResults writes one line per hook outcome to out, and the
// hook's error (if any) to errOut.
func PrintHookResults(out, errOut io.Writer, result hooks.StageResult) {
	for _, r := range result.Results {
		fmt.Fprintf(out, "%s: %s\n", r.Hook.Name, HookStatusName(r.Status))
		if r.Err != nil {
			fmt.Fprintf(errOut, "  %v\n", r.Err)
		}
	}
}
