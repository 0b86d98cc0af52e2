// Package status provides the "status" command, which reports what an
// apply pass would change without writing anything.
package status

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/guisu-dev/guisu/cmd"
	"github.com/guisu-dev/guisu/internal/compare"
	"github.com/guisu-dev/guisu/internal/engine"
	"github.com/guisu-dev/guisu/internal/logger"
	"github.com/guisu-dev/guisu/internal/path"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show what an apply pass would change",
	RunE: func(c *cobra.Command, args []string) error {
		log := logger.With("command", "status")

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

		changed := 0
		for _, rel := range keys {
			symbol, ok := statusSymbol(plan[rel].Result)
			if !ok {
				continue
			}
			changed++
			fmt.Fprintf(c.OutOrStdout(), "%s %s\n", symbol, rel.String())
		}

		if changed == 0 {
			fmt.Fprintln(c.OutOrStdout(), "up to date")
		}
		if len(diags) > 0 {
			return fmt.Errorf("%d entries failed to process", len(diags))
		}
		return nil
	},
}

// statusSymbol maps a comparison result to the one-letter status column:
// M for a plain source-driven update, L for a local modification the
// destination carries, C for a true conflict between the two.
func statusSymbol(r compare.Result) (string, bool) {
	switch r {
	case compare.NoChange, compare.Converged:
		return "", false
	case compare.SourceChanged:
		return "M", true
	case compare.DestinationChanged:
		return "L", true
	case compare.BothChanged:
		return "C", true
	default:
		return "?", true
	}
}

func init() {
	cmd.Register(statusCmd)
}
