package app

import (
	"context"
	"fmt"
	"time"

	"github.com/kardianos/service"
)

// serviceStopTimeout bounds how long the service manager waits for the
// daemon goroutine to unwind after Stop.
const serviceStopTimeout = 15 * time.Second

// program adapts Run to the service.Interface lifecycle. Start must not
// block, so the daemon runs in a goroutine that Stop cancels.
type program struct {
	params RunParams

	cancel context.CancelFunc
	done   chan struct{}
	runErr error
}

func (p *program) Start(service.Service) error {
	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	p.done = make(chan struct{})

	go func() {
		defer close(p.done)
		p.runErr = Run(ctx, p.params)
	}()
	return nil
}

func (p *program) Stop(service.Service) error {
	if p.cancel == nil {
		return nil
	}
	p.cancel()

	select {
	case <-p.done:
		return p.runErr
	case <-time.After(serviceStopTimeout):
		return fmt.Errorf("daemon did not stop within %s", serviceStopTimeout)
	}
}

// NewService wraps the daemon in an OS service (systemd, launchd, or the
// Windows service manager, depending on platform).
func NewService(params RunParams) (service.Service, error) {
	cfg := &service.Config{
		Name:        "stagehand",
		DisplayName: "Stagehand",
		Description: "Companion daemon for virtual production operator consoles.",
		Arguments:   []string{"service", "run"},
	}
	if params.ConfigPath != "" {
		cfg.Arguments = append(cfg.Arguments, "--config", params.ConfigPath)
	}
	return service.New(&program{params: params}, cfg)
}

// ControlService runs a service manager action: install, uninstall, start,
// stop, or restart.
func ControlService(params RunParams, action string) error {
	svc, err := NewService(params)
	if err != nil {
		return err
	}
	if err := service.Control(svc, action); err != nil {
		return fmt.Errorf("service %s: %w", action, err)
	}
	return nil
}

// RunService hands control to the service manager. When launched
// interactively it behaves like a plain Run.
func RunService(params RunParams) error {
	svc, err := NewService(params)
	if err != nil {
		return err
	}
	return svc.Run()
}
