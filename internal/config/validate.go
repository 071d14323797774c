package config

import (
	"errors"
	"fmt"
	"net"

	"github.com/robfig/cron/v3"
)

// Validate checks the structural validity of a Config. All problems are
// reported at once via errors.Join.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.Version == "" {
		errs = append(errs, errors.New("config: version field is required"))
	} else if cfg.Version != "1" {
		errs = append(errs, fmt.Errorf("config: unsupported version %q (supported: \"1\")", cfg.Version))
	}

	if cfg.Gateway.Bind != "" {
		if _, err := net.ResolveTCPAddr("tcp", cfg.Gateway.Bind); err != nil {
			errs = append(errs, fmt.Errorf("config: invalid gateway bind address %q", cfg.Gateway.Bind))
		}
	}

	seen := make(map[string]struct{}, len(cfg.Watchdog.Tasks))
	for i, task := range cfg.Watchdog.Tasks {
		if task.Process == "" {
			errs = append(errs, fmt.Errorf("config: watchdog.tasks[%d]: process is required", i))
			continue
		}
		name := task.Name
		if name == "" {
			name = task.Process
		}
		if _, dup := seen[name]; dup {
			errs = append(errs, fmt.Errorf("config: watchdog.tasks[%d]: duplicate task name %q", i, name))
		}
		seen[name] = struct{}{}
	}

	errs = append(errs, validateSchedule("downloads.purge_schedule", cfg.Downloads.PurgeSchedule)...)
	errs = append(errs, validateSchedule("takelog.purge_schedule", cfg.TakeLog.PurgeSchedule)...)

	return errors.Join(errs...)
}

func validateSchedule(field, expr string) []error {
	if expr == "" {
		return nil
	}
	if _, err := cron.ParseStandard(expr); err != nil {
		return []error{fmt.Errorf("config: %s: invalid cron expression %q: %w", field, expr, err)}
	}
	return nil
}
