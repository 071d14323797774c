package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/stagehand-vp/stagehand/internal/download"
)

func downloadCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "download <url> <dest>",
		Short: "Download a file over HTTP to a local path",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			chunkSize, _ := cmd.Flags().GetInt("chunk-size")
			debug, _ := cmd.Flags().GetBool("debug")

			client := download.NewClient(download.Config{
				ChunkSize: chunkSize,
				Logger:    newLogger(debug),
			})

			ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			dest, n, err := client.Fetch(ctx, args[0], args[1])
			if err != nil {
				return err
			}
			fmt.Fprintf(os.Stdout, "Downloaded %d bytes to %s\n", n, dest)
			return nil
		},
	}
	cmd.Flags().Int("chunk-size", 0, "Write granularity in bytes (default 8192)")
	cmd.Flags().Bool("debug", false, "Enable debug logging")
	return cmd
}
