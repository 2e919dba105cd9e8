package cmd

import (
	"fmt"

	"github.com/garnizeh/ats/internal/app"
	"github.com/spf13/cobra"
)

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Run one recovery sweep over applications that were never scored",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		c, err := app.Open(ctx, cfg, lg)
		if err != nil {
			return err
		}
		defer c.Close()

		stats, err := c.Sweeper().RunOnce(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "found=%d ok=%d failed=%d\n", stats.Found, stats.OK, stats.Failed)
		if stats.Failed > 0 {
			return fmt.Errorf("%d evaluations failed", stats.Failed)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(sweepCmd)
}
