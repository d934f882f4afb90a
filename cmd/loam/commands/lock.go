package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

func (c *CLI) newLockCmd() *cobra.Command {
	lockCmd := &cobra.Command{
		Use:   "lock",
		Short: "Inspect and update the lockfile",
	}

	updateCmd := &cobra.Command{
		Use:   "update [name]...",
		Short: "Re-resolve against the registry and move unpinned entries",
		Long: `Update re-resolves the project's dependencies against the live registry.
With names given, only those packages may move; everything else stays at
its locked version. Pinned entries never move.`,
		Args: cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			summary, err := c.app.Update(cmd.Context(), args)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if summary.Diff.Empty() {
				_, _ = fmt.Fprintln(out, "lockfile is up to date")
				return nil
			}
			for _, name := range summary.Diff.Added {
				_, _ = fmt.Fprintf(out, "added %s\n", name)
			}
			for _, change := range summary.Diff.Changed {
				_, _ = fmt.Fprintf(out, "moved %s %s -> %s\n", change.Name, change.Old, change.New)
			}
			for _, name := range summary.Diff.Removed {
				_, _ = fmt.Fprintf(out, "removed %s\n", name)
			}
			return nil
		},
	}

	lockCmd.AddCommand(updateCmd)
	return lockCmd
}
