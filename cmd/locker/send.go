package main

import (
	"fmt"
	"slices"
	"time"

	"locker/internal/bundle"
	"locker/internal/server/service"

	"github.com/docker/go-units"
	"github.com/spf13/cobra"
)

var sendHours int

var sendCmd = &cobra.Command{
	Use:   "send <paths...>",
	Short: "Upload files and print the pickup code",
	Long: `Upload a file and print its four-digit pickup code.

A single regular file is uploaded as-is. Several paths, or a directory, are
zipped on the fly into one archive.

Examples:
  locker send report.pdf
  locker send --hours 24 photos/ notes.txt`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSend,
}

func init() {
	sendCmd.Flags().IntVarP(&sendHours, "hours", "H", 1, fmt.Sprintf("Hours to keep the file, one of %v", service.ExpiryWindows))
	rootCmd.AddCommand(sendCmd)
}

func runSend(cmd *cobra.Command, args []string) error {
	if !slices.Contains(service.ExpiryWindows, sendHours) {
		return fmt.Errorf("--hours must be one of %v", service.ExpiryWindows)
	}

	src, err := bundle.Prepare(args, time.Now())
	if err != nil {
		return err
	}

	c := newClient()
	info, err := c.Info(cmd.Context())
	if err != nil {
		return err
	}
	if src.Size >= 0 && src.Size > info.MaxUploadBytes {
		return fmt.Errorf("%s is %s, the server accepts at most %d MB",
			src.Name, units.BytesSize(float64(src.Size)), info.MaxFileSizeMB)
	}

	if src.Bundled {
		fmt.Fprintf(cmd.ErrOrStderr(), "Bundling %d file(s) into %s\n", src.Files, src.Name)
	}

	body, err := src.Open()
	if err != nil {
		return err
	}
	defer body.Close()

	res, err := c.Upload(cmd.Context(), src.Name, body, sendHours)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "✓ Uploaded %s (%s)\n", res.Filename, units.BytesSize(float64(res.Size)))
	fmt.Fprintf(out, "  Pickup code: %s\n", res.Code)
	fmt.Fprintf(out, "  Expires:     %s\n", res.ExpireTime.Local().Format("2006-01-02 15:04:05"))
	return nil
}
