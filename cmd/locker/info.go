package main

import (
	"fmt"

	"github.com/docker/go-units"
	"github.com/spf13/cobra"
)

var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Show the server announcement and upload limit",
	Args:  cobra.NoArgs,
	RunE:  runInfo,
}

func init() {
	rootCmd.AddCommand(infoCmd)
}

func runInfo(cmd *cobra.Command, args []string) error {
	info, err := newClient().Info(cmd.Context())
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Server:          %s\n", serverURL)
	fmt.Fprintf(out, "Max upload size: %d MB (%s)\n", info.MaxFileSizeMB, units.BytesSize(float64(info.MaxUploadBytes)))
	if info.Announcement != "" {
		fmt.Fprintf(out, "Announcement:    %s\n", info.Announcement)
	}
	return nil
}
