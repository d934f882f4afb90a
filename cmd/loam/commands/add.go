package commands

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.trai.ch/loam/internal/app"
)

func (c *CLI) newAddCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add <declaration>...",
		Short: "Add root dependencies and install them",
		Long: `Add records new root dependencies in the project file and installs them.
A declaration is a package name optionally followed by a constraint
expression, e.g. "lpeg >= 1.0" or "argparse ~> 0.7".`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pin, _ := cmd.Flags().GetBool("pin")

			summary, err := c.app.Add(cmd.Context(), args, app.AddOptions{Pin: pin})
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), summaryLine(summary))
			return nil
		},
	}
	cmd.Flags().Bool("pin", false, "Pin the added packages so lock update never moves them")
	return cmd
}
