package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/stagehand-vp/stagehand/pkg/app"
)

func serviceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "service",
		Short: "Run or manage stagehand as an OS service",
	}

	for _, action := range []string{"install", "uninstall", "start", "stop", "restart"} {
		cmd.AddCommand(serviceControlCmd(action))
	}
	cmd.AddCommand(serviceRunCmd())
	return cmd
}

func serviceControlCmd(action string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   action,
		Short: fmt.Sprintf("%s the stagehand service", action),
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			params, err := runParams(cmd)
			if err != nil {
				return err
			}
			if err := app.ControlService(params, action); err != nil {
				return err
			}
			fmt.Printf("service %s: ok\n", action)
			return nil
		},
	}
	addDaemonFlags(cmd)
	return cmd
}

// serviceRunCmd is what the service manager invokes; interactively it
// behaves like plain start.
func serviceRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the daemon under the service manager",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			params, err := runParams(cmd)
			if err != nil {
				return err
			}
			return app.RunService(params)
		},
	}
	addDaemonFlags(cmd)
	return cmd
}
