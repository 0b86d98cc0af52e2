// Package state provides the "state init" and "state repair" commands,
// which manage the persistent store independently of an apply pass.
package state

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/guisu-dev/guisu/cmd"
	"github.com/guisu-dev/guisu/internal/logger"
)

var stateCmd = &cobra.Command{
	Use:   "state",
	Short: "Manage the persistent reconciliation state",
}

var stateInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create the persistent state database if it doesn't already exist",
	RunE: func(c *cobra.Command, args []string) error {
		log := logger.With("command", "state init")

		statePath, err := cmd.ResolveStatePath()
		if err != nil {
			log.Error("Failed to resolve state path", "error", err)
			return err
		}

		// Opening the store already creates the file and its buckets if
		// absent, so init's only job is to do that and report the path.
		sess, err := cmd.OpenSession()
		if err != nil {
			log.Error("Failed to open session", "error", err)
			return err
		}
		defer sess.Close()

		fmt.Fprintf(c.OutOrStdout(), "state database ready at %s\n", statePath)
		return nil
	},
}

var stateRepairCmd = &cobra.Command{
	Use:   "repair",
	Short: "Prune orphaned entries and report store health",
	RunE: func(c *cobra.Command, args []string) error {
		log := logger.With("command", "state repair")

		prune, err := c.Flags().GetBool("prune")
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

		live := make(map[string]struct{}, len(entries))
		for rel := range entries {
			live[rel.String()] = struct{}{}
		}

		report, err := sess.Store.Validate(live)
		if err != nil {
			log.Error("Failed to validate store", "error", err)
			return err
		}

		fmt.Fprintf(c.OutOrStdout(), "entries checked: %d\n", report.EntriesChecked)
		fmt.Fprintf(c.OutOrStdout(), "invalid hashes: %d\n", report.InvalidHashes)
		fmt.Fprintf(c.OutOrStdout(), "orphaned entries: %d\n", len(report.OrphanedEntries))
		fmt.Fprintf(c.OutOrStdout(), "incomplete entries: %d\n", len(report.IncompleteEntries))
		for _, p := range report.OrphanedEntries {
			fmt.Fprintf(c.OutOrStdout(), "  orphan: %s\n", p)
		}

		if prune {
			pruned, err := sess.Store.PruneOrphans(live)
			if err != nil {
				log.Error("Failed to prune orphans", "error", err)
				return err
			}
			fmt.Fprintf(c.OutOrStdout(), "pruned: %d\n", pruned)
		}

		if report.InvalidHashes > 0 || len(report.IncompleteEntries) > 0 {
			return fmt.Errorf("store has %d invalid and %d incomplete entries", report.InvalidHashes, len(report.IncompleteEntries))
		}
		return nil
	},
}

func init() {
	stateRepairCmd.Flags().Bool("prune", false, "Delete orphaned entries from the store")
	stateCmd.AddCommand(stateInitCmd, stateRepairCmd)
	cmd.Register(stateCmd)
}
