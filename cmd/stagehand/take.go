package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/spf13/cobra"
	"github.com/stagehand-vp/stagehand/internal/takelog"
	"github.com/stagehand-vp/stagehand/pkg/app"
	"github.com/stagehand-vp/stagehand/pkg/slate"
)

func takeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "take",
		Short: "Work with capture names and the take log",
	}
	cmd.PersistentFlags().String("db", "", "Path to the take log database (default: <data dir>/takes.db)")
	cmd.AddCommand(takeNameCmd(), takeRecordCmd(), takeListCmd())
	return cmd
}

// openTakeLog opens the store referenced by the --db flag, or the default
// location under the data directory.
func openTakeLog(cmd *cobra.Command) (*takelog.Store, error) {
	path, _ := cmd.Flags().GetString("db")
	if path == "" {
		path = filepath.Join(app.DefaultDataDir(), "takes.db")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, err
	}
	return takelog.Open(path, newLogger(false))
}

func takeNameCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "name <slate> <take>",
		Short: "Print the capture name for a slate and take number",
		Args:  cobra.ExactArgs(2),
		RunE: func(_ *cobra.Command, args []string) error {
			take, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("take must be a number: %w", err)
			}
			fmt.Fprintln(os.Stdout, slate.CaptureName(args[0], take))
			return nil
		},
	}
}

func takeRecordCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "record <slate> [take]",
		Short: "Record a take; omit the number to use the next free take",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openTakeLog(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			ctx := cmd.Context()
			take := 0
			if len(args) == 2 {
				take, err = strconv.Atoi(args[1])
				if err != nil {
					return fmt.Errorf("take must be a number: %w", err)
				}
			}
			if take <= 0 {
				take, err = store.NextTake(ctx, args[0])
				if err != nil {
					return err
				}
			}

			entry, err := store.Record(ctx, args[0], take)
			if err != nil {
				return err
			}
			fmt.Fprintf(os.Stdout, "Recorded %s (day %s)\n", entry.Name, entry.Day)
			return nil
		},
	}
}

func takeListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recorded takes, newest first",
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := openTakeLog(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			limit, _ := cmd.Flags().GetInt("limit")
			entries, err := store.List(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if len(entries) == 0 {
				fmt.Fprintln(os.Stdout, "No takes recorded.")
				return nil
			}
			for _, e := range entries {
				fmt.Fprintf(os.Stdout, "%s\t%s\t%s\n", e.Name, e.Day, e.RecordedAt.Format(time.RFC3339))
			}
			return nil
		},
	}
	cmd.Flags().Int("limit", 50, "Maximum number of takes to list")
	return cmd
}
