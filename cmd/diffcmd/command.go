// Package diffcmd provides the "diff" command, which renders a textual
// diff of every entry an apply pass would change.
package diffcmd

import (
	"fmt"
	"sort"

	"github.com/sergi/go-diff/diffmatchpatch"
	"github.com/spf13/cobra"

	"github.com/guisu-dev/guisu/cmd"
	"github.com/guisu-dev/guisu/internal/compare"
	"github.com/guisu-dev/guisu/internal/engine"
	"github.com/guisu-dev/guisu/internal/logger"
	"github.com/guisu-dev/guisu/internal/path"
	"github.com/guisu-dev/guisu/internal/source"
)

var diffCmd = &cobra.Command{
	Use:   "diff",
	Short: "Show a diff of pending changes",
	RunE: func(c *cobra.Command, args []string) error {
		log := logger.With("command", "diff")

		sess, err := cmd.OpenSession()
		if err != nil {
			log.Error("Failed to open session", "error", err)
			return err
		}
		defer sess.Close()

		entries, err := sess.ReadSource()
		if err != nil {
			log.Error("Failed to read source tree", "error", err)
			return err
		}
		entries = engine.FilterEntries(entries, cmd.IncludePatterns, cmd.ExcludePatterns)

		targets, diags, err := sess.BuildTargets(entries, 0)
		if err != nil {
			log.Error("Failed to build target tree", "error", err)
			return err
		}
		for _, d := range diags {
			fmt.Fprintf(c.ErrOrStderr(), "warning: %s: %v\n", d.Path.String(), d.Err)
		}

		plan, err := sess.Plan(targets)
		if err != nil {
			log.Error("Failed to plan apply pass", "error", err)
			return err
		}

		keys := make([]path.RelPath, 0, len(plan))
		for rel := range plan {
			keys = append(keys, rel)
		}
		sort.Slice(keys, func(i, j int) bool { return keys[i].String() < keys[j].String() })

		dmp := diffmatchpatch.New()
		for _, rel := range keys {
			pe := plan[rel]
			if pe.Result == compare.NoChange || pe.Result == compare.Converged {
				continue
			}
			te := targets[rel]

			if te.Kind != source.KindFile {
				fmt.Fprintf(c.OutOrStdout(), "--- %s (%s changed)\n", rel.String(), kindName(te.Kind))
				continue
			}
			if looksBinary(pe.DestBytes) || looksBinary(te.Content) {
				fmt.Fprintf(c.OutOrStdout(), "--- %s (binary, diff omitted)\n", rel.String())
				continue
			}

			fmt.Fprintf(c.OutOrStdout(), "--- %s\n", rel.String())
			diffs := dmp.DiffMain(string(pe.DestBytes), string(te.Content), false)
			diffs = dmp.DiffCleanupSemantic(diffs)
			fmt.Fprintln(c.OutOrStdout(), dmp.DiffPrettyText(diffs))
		}

		if len(diags) > 0 {
			return fmt.Errorf("%d entries failed to process", len(diags))
		}
		return nil
	},
}

func kindName(k source.Kind) string {
	switch k {
	case source.KindDirectory:
		return "directory"
	case source.KindSymlink:
		return "symlink"
	default:
		return "file"
	}
}

func looksBinary(data []byte) bool {
	n := len(data)
	if n > 8192 {
		n = 8192
	}
	for i := 0; i < n; i++ {
		if data[i] == 0 {
			return true
		}
	}
	return false
}

func init() {
	cmd.Register(diffCmd)
}
