package main

import (
	"fmt"
	"os"

	"locker/internal/client"

	"github.com/spf13/cobra"
)

var (
	Version   = "dev"
	serverURL string
)

var rootCmd = &cobra.Command{
	Use:     "locker",
	Short:   "Send and pick up files through a locker server",
	Version: Version,
	Long: `locker is the command line client for a file pickup locker.
Send files to get a pickup code, or pick up a file with a code someone gave you.`,
	SilenceUsage: true,
}

func init() {
	defaultServer := client.DefaultServer
	if env := os.Getenv("LOCKER_SERVER"); env != "" {
		defaultServer = env
	}

	rootCmd.PersistentFlags().StringVarP(&serverURL, "server", "s", defaultServer, "Locker server URL (or set LOCKER_SERVER env var)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newClient() *client.Client {
	return client.New(serverURL)
}
