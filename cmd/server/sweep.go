package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Purge expired uploads once and exit",
	Long: `sweep removes every expired record and its stored file, then prints
how many were removed and how many files could not be deleted. It is safe to
run from cron while the server is stopped.`,
	RunE: runSweep,
}

func init() {
	rootCmd.AddCommand(sweepCmd)
}

func runSweep(cmd *cobra.Command, args []string) error {
	_, locker, _, err := setup()
	if err != nil {
		return err
	}

	report, err := locker.SweepExpired(cmd.Context())
	if err != nil {
		return fmt.Errorf("sweep failed: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "removed %d expired upload(s), %d file(s) could not be deleted\n",
		len(report.Removed), len(report.Failed))
	for _, code := range report.Failed {
		fmt.Fprintf(cmd.OutOrStdout(), "  failed: %s\n", code)
	}
	return nil
}
