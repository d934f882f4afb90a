package commands

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.trai.ch/loam/internal/app"
)

func (c *CLI) newInstallCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "install",
		Short: "Resolve and install the project's dependencies",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			frozen, _ := cmd.Flags().GetBool("frozen")

			summary, err := c.app.Install(cmd.Context(), app.InstallOptions{Frozen: frozen})
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), summaryLine(summary))
			return nil
		},
	}
	cmd.Flags().Bool("frozen", false, "Fail instead of re-resolving when the lockfile is missing or stale")
	return cmd
}

func (c *CLI) newBuildCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "build",
		Short: "Install the locked dependency set exactly as pinned",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			summary, err := c.app.Install(cmd.Context(), app.InstallOptions{Frozen: true})
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), summaryLine(summary))
			return nil
		},
	}
}
