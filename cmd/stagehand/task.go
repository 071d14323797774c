package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/stagehand-vp/stagehand/internal/proc"
)

func taskCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "task",
		Short: "Inspect and control watched processes",
	}
	cmd.AddCommand(taskCheckCmd(), taskKillCmd())
	return cmd
}

func taskCheckCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check <process>",
		Short: "Check whether a named process is running",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			debug, _ := cmd.Flags().GetBool("debug")
			poller, err := proc.New(args[0], newLogger(debug))
			if err != nil {
				return err
			}

			status := poller.Poll(cmd.Context())
			fmt.Fprintf(os.Stdout, "%s: %s\n", args[0], status)
			if status == proc.StatusExited {
				os.Exit(1)
			}
			return nil
		},
	}
	cmd.Flags().Bool("debug", false, "Enable debug logging")
	return cmd
}

func taskKillCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "kill <process>",
		Short: "Force-terminate a named process",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			debug, _ := cmd.Flags().GetBool("debug")
			poller, err := proc.New(args[0], newLogger(debug))
			if err != nil {
				return err
			}

			poller.Kill(cmd.Context())
			fmt.Fprintf(os.Stdout, "kill signal sent to %s\n", args[0])
			return nil
		},
	}
	cmd.Flags().Bool("debug", false, "Enable debug logging")
	return cmd
}
