// Package proc checks liveness of a named OS process and can request its
// forced termination. The liveness check is fail-safe: if the process list
// cannot be queried for any reason, the process is reported as still alive,
// so callers never conclude termination from a broken probe.
package proc

import (
	"context"
	"errors"
	"log/slog"
	"os/exec"
	"runtime"
	"strings"
)

// Status is the result of a liveness probe.
type Status int

// Probe results.
const (
	// StatusAlive means the process was found, or the probe failed
	// (fail-safe default).
	StatusAlive Status = iota
	// StatusExited means the process list was queried successfully and the
	// process was not in it.
	StatusExited
)

// String implements fmt.Stringer.
func (s Status) String() string {
	if s == StatusExited {
		return "exited"
	}
	return "alive"
}

// runner executes a platform command and returns its combined output.
// Injectable so tests never shell out.
type runner func(ctx context.Context, name string, args ...string) ([]byte, error)

func execRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput()
}

// Poller probes a single named process, e.g. "UE4Editor.exe".
type Poller struct {
	task   string
	goos   string
	logger *slog.Logger
	run    runner
}

// New creates a Poller for the given process image name.
func New(task string, logger *slog.Logger) (*Poller, error) {
	if task == "" {
		return nil, errors.New("proc: empty task name")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Poller{
		task:   task,
		goos:   runtime.GOOS,
		logger: logger,
		run:    execRunner,
	}, nil
}

// Task returns the process image name this poller probes.
func (p *Poller) Task() string {
	return p.task
}

// Poll queries the OS process list for the task. Any query failure is
// reported as StatusAlive.
func (p *Poller) Poll(ctx context.Context) Status {
	switch p.goos {
	case "windows":
		return p.pollWindows(ctx)
	default:
		return p.pollUnix(ctx)
	}
}

// pollWindows filters the task list by image name. Some processes do not
// list the .exe suffix, so the match is a substring check on the stripped
// name rather than an exact image-name comparison.
func (p *Poller) pollWindows(ctx context.Context) Status {
	out, err := p.run(ctx, "tasklist", "/FI", `IMAGENAME eq `+p.task)
	if err != nil {
		p.logger.Debug("proc: tasklist query failed, assuming alive", "task", p.task, "error", err)
		return StatusAlive
	}
	if strings.Contains(string(out), strings.TrimSuffix(p.task, ".exe")) {
		return StatusAlive
	}
	return StatusExited
}

func (p *Poller) pollUnix(ctx context.Context) Status {
	out, err := p.run(ctx, "pgrep", "-x", strings.TrimSuffix(p.task, ".exe"))
	if err != nil {
		// pgrep exits 1 when nothing matched; that is a successful probe
		// with an empty result, not a query failure.
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && exitErr.ExitCode() == 1 {
			return StatusExited
		}
		p.logger.Debug("proc: pgrep query failed, assuming alive", "task", p.task, "error", err)
		return StatusAlive
	}
	if len(strings.TrimSpace(string(out))) > 0 {
		return StatusAlive
	}
	return StatusExited
}

// Kill requests OS-level forced termination of the task. All failures are
// swallowed: callers cannot distinguish "already dead" from "kill failed".
func (p *Poller) Kill(ctx context.Context) {
	var err error
	switch p.goos {
	case "windows":
		_, err = p.run(ctx, "taskkill", "/F", "/IM", p.task)
	default:
		_, err = p.run(ctx, "pkill", "-x", strings.TrimSuffix(p.task, ".exe"))
	}
	if err != nil {
		p.logger.Debug("proc: kill failed", "task", p.task, "error", err)
	}
}
