// Package apply provides the "apply" command, which reconciles the
// destination directory against the source tree.
package apply

import (
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/guisu-dev/guisu/cmd"
	applyengine "github.com/guisu-dev/guisu/internal/apply"
	"github.com/guisu-dev/guisu/internal/cliprompt"
	"github.com/guisu-dev/guisu/internal/core"
	"github.com/guisu-dev/guisu/internal/engine"
	"github.com/guisu-dev/guisu/internal/hooks"
	"github.com/guisu-dev/guisu/internal/logger"
	"github.com/guisu-dev/guisu/internal/path"
	"github.com/guisu-dev/guisu/internal/target"
)

var applyCmd = &cobra.Command{
	Use:   "apply",
	Short: "Apply pending changes to the destination directory",
	RunE: func(c *cobra.Command, args []string) error {
		log := logger.With("command", "apply")

		workers, err := c.Flags().GetInt("workers")
		if err != nil {
			return err
		}

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

		targets, diags, err := sess.BuildTargets(entries, workers)
		if err != nil {
			log.Error("Failed to build target tree", "error", err)
			return err
		}
		for _, d := range diags {
			fmt.Fprintf(c.ErrOrStderr(), "warning: %s: %v\n", d.Path.String(), d.Err)
		}

		pre, post, err := sess.LoadHooks()
		if err != nil {
			log.Error("Failed to load hooks", "error", err)
			return err
		}

		ctx, cancel := signal.NotifyContext(c.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer cancel()

		// Pre-stage hooks must complete before any file write in this
		// pass, so they run here, ahead of applicator.Apply.
		if len(pre) > 0 {
			preResult, err := sess.RunHookStage(ctx, hooks.Pre, pre)
			if err != nil {
				log.Error("Pre hooks failed", "error", err)
				return err
			}
			cmd.PrintHookResults(c.OutOrStdout(), c.ErrOrStderr(), preResult)
			if preResult.Aborted {
				return core.NewExitError(core.ExitApplyFailures, fmt.Errorf("pre hooks aborted; apply not run"))
			}
		}

		system := cmd.NewSystem()
		lookup := diffLookup(sess, system, targets)
		resolver := cmd.NewResolver(lookup)
		applicator := sess.NewApplicator(system, resolver)

		summary, err := applicator.Apply(targets, workers)
		if err != nil {
			if errors.Is(err, core.ErrUserCancelled) {
				fmt.Fprintln(c.OutOrStdout(), "cancelled")
				return core.NewExitError(core.ExitCancelled, err)
			}
			log.Error("Apply pass failed", "error", err)
			return err
		}

		fmt.Fprintf(c.OutOrStdout(), "files: %d, directories: %d, symlinks: %d, skipped: %d, failed: %d\n",
			summary.Files.Load(), summary.Directories.Load(), summary.Symlinks.Load(),
			summary.Skipped.Load(), summary.Failed.Load())

		// Post-stage hooks start only once every write above has
		// flushed, regardless of dry-run or per-entry failures in the
		// summary - those are reported separately below.
		var postAborted bool
		if len(post) > 0 {
			postResult, err := sess.RunHookStage(ctx, hooks.Post, post)
			if err != nil {
				log.Error("Post hooks failed", "error", err)
				return err
			}
			cmd.PrintHookResults(c.OutOrStdout(), c.ErrOrStderr(), postResult)
			postAborted = postResult.Aborted
		}

		if summary.Failed.Load() > 0 {
			return core.NewExitError(core.ExitApplyFailures, fmt.Errorf("%d entries failed to apply", summary.Failed.Load()))
		}
		if len(diags) > 0 {
			return core.NewExitError(core.ExitApplyFailures, fmt.Errorf("%d entries failed to process", len(diags)))
		}
		if postAborted {
			return core.NewExitError(core.ExitApplyFailures, fmt.Errorf("post hooks aborted"))
		}
		return nil
	},
}

// diffLookup builds the ContentLookup an interactive prompt's "diff"
// option uses to render what would change for one entry.
func diffLookup(sess *engine.Session, system applyengine.System, targets map[path.RelPath]target.TargetEntry) cliprompt.ContentLookup {
	return func(entry path.RelPath) (dest, tgt []byte) {
		te, ok := targets[entry]
		if !ok {
			return nil, nil
		}
		abs := sess.DestDir.Join(entry)
		destBytes, _ := system.ReadFile(abs)
		return destBytes, te.Content
	}
}

func init() {
	applyCmd.Flags().IntP("workers", "w", 0, "Number of entries to process concurrently (default: engine default)")
	cmd.Register(applyCmd)
}
