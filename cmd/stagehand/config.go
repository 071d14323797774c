package main

import (
	"fmt"
	"os"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"
	"github.com/stagehand-vp/stagehand/internal/config"
	"github.com/stagehand-vp/stagehand/pkg/app"
	"gopkg.in/yaml.v3"
)

func configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration management",
	}
	cmd.AddCommand(configValidateCmd(), configInitCmd())
	return cmd
}

func configValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate [path]",
		Short: "Validate a configuration file",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			path := ""
			if len(args) == 1 {
				path = args[0]
			} else {
				resolved, err := app.ResolveConfigPath()
				if err != nil {
					return err
				}
				path = resolved
			}

			cfg, err := config.Load(path)
			if err != nil {
				return err
			}

			fmt.Printf("Configuration OK: %s (%d watched tasks)\n", path, len(cfg.Watchdog.Tasks))
			return nil
		},
	}
}

func configInitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init [path]",
		Short: "Create a configuration file interactively",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "stagehand.yaml"
			if len(args) == 1 {
				path = args[0]
			}

			force, _ := cmd.Flags().GetBool("force")
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", path)
			}

			cfg, err := promptConfig()
			if err != nil {
				return err
			}
			if err := config.Validate(cfg); err != nil {
				return err
			}

			data, err := yaml.Marshal(cfg)
			if err != nil {
				return err
			}
			if err := os.WriteFile(path, data, 0o600); err != nil {
				return err
			}

			fmt.Printf("Wrote %s\n", path)
			return nil
		},
	}
	cmd.Flags().Bool("force", false, "Overwrite an existing file")
	return cmd
}

// promptConfig walks the operator through the minimal daemon setup.
func promptConfig() (*config.Config, error) {
	var (
		bind          = "127.0.0.1:8990"
		process       string
		timeout       = "10m"
		killOnTimeout bool
	)

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Gateway bind address").
				Description("Address the operator HTTP API listens on").
				Value(&bind),
			huh.NewInput().
				Title("Watched process").
				Description("Process image name to watch, e.g. UE4Editor.exe (leave empty to skip)").
				Value(&process),
			huh.NewInput().
				Title("Watch timeout").
				Description("Give up watching after this long, e.g. 10m").
				Value(&timeout).
				Validate(func(s string) error {
					_, err := time.ParseDuration(s)
					return err
				}),
			huh.NewConfirm().
				Title("Force-kill on timeout?").
				Value(&killOnTimeout),
		),
	)
	if err := form.Run(); err != nil {
		return nil, err
	}

	cfg := &config.Config{Version: "1"}
	cfg.Gateway.Bind = bind
	if process != "" {
		parsed, err := time.ParseDuration(timeout)
		if err != nil {
			return nil, err
		}
		cfg.Watchdog.Tasks = []config.WatchTaskConfig{{
			Process:       process,
			Timeout:       config.Duration(parsed),
			KillOnTimeout: killOnTimeout,
		}}
	}
	cfg.Defaults()
	return cfg, nil
}
