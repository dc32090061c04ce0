package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var getOut string

var getCmd = &cobra.Command{
	Use:   "get <code>",
	Short: "Download the file behind a pickup code",
	Long: `Download the file behind a pickup code and save it under its original
name. The code is used up: afterwards it no longer works.`,
	Args: cobra.ExactArgs(1),
	RunE: runGet,
}

func init() {
	getCmd.Flags().StringVarP(&getOut, "out", "o", ".", "Directory to save the file in")
	rootCmd.AddCommand(getCmd)
}

func runGet(cmd *cobra.Command, args []string) error {
	path, err := newClient().Pickup(cmd.Context(), args[0], getOut)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "✓ Saved %s\n", path)
	return nil
}
