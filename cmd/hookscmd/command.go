// Package hookscmd provides the "hooks run" command, which executes a
// hook stage standalone, outside of an apply pass, for debugging hook
// configuration.
package hookscmd

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/guisu-dev/guisu/cmd"
	"github.com/guisu-dev/guisu/internal/hooks"
	"github.com/guisu-dev/guisu/internal/logger"
)

var hooksCmd = &cobra.Command{
	Use:   "hooks",
	Short: "Inspect and run hooks outside of an apply pass",
}

var hooksRunCmd = &cobra.Command{
	Use:   "run [pre|post]",
	Short: "Run one hook stage standalone",
	Args:  cobra.ExactArgs(1),
	RunE: func(c *cobra.Command, args []string) error {
		log := logger.With("command", "hooks run")

		var stage hooks.Stage
		switch args[0] {
		case "pre":
			stage = hooks.Pre
		case "post":
			stage = hooks.Post
		default:
			return fmt.Errorf("unknown hook stage %q, expected \"pre\" or \"post\"", args[0])
		}

		sess, err := cmd.OpenSession()
		if err != nil {
			log.Error("Failed to open session", "error", err)
			return err
		}
		defer sess.Close()

		pre, post, err := sess.LoadHooks()
		if err != nil {
			log.Error("Failed to load hooks", "error", err)
			return err
		}
		set := pre
		if stage == hooks.Post {
			set = post
		}
		if len(set) == 0 {
			fmt.Fprintf(c.OutOrStdout(), "no %s hooks configured\n", args[0])
			return nil
		}

		ctx, cancel := signal.NotifyContext(c.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer cancel()

		result, err := sess.RunHookStage(ctx, stage, set)
		if err != nil {
			log.Error("Hook stage failed", "error", err)
			return err
		}

		cmd.PrintHookResults(c.OutOrStdout(), c.ErrOrStderr(), result)
		if result.Aborted {
			return fmt.Errorf("%s hooks aborted after a failing hook", args[0])
		}
		return nil
	},
}

func init() {
	hooksCmd.AddCommand(hooksRunCmd)
	cmd.Register(hooksCmd)
}
