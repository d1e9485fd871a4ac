package main

import (
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/waterdragen/coverage-cli/internal/scratch"
)

var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Remove scratch artifacts left by crashed runs",
	Long: `Sweeps every scratch artifact the ledger still lists, typically leftovers
of runs that terminated before their own cleanup ran. Safe to run repeatedly;
final region sets and run diagnostics are never touched.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		swept, err := scratch.SweepOrphans(ctx, st)
		if err != nil {
			return eris.Wrap(err, "cleanup")
		}
		fmt.Printf("Swept %d orphaned artifacts\n", swept)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(cleanupCmd)
}
