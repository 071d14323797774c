// Package watchdog watches named render-node processes. Each watched task is
// polled until the process exits, the task's timeout elapses, or the watchdog
// shuts down. Timed-out tasks can optionally be force-killed. Terminal
// transitions are published to subscribers (the gateway event feed) and
// counted in Prometheus.
package watchdog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/stagehand-vp/stagehand/internal/metrics"
	"github.com/stagehand-vp/stagehand/internal/proc"
	"github.com/stagehand-vp/stagehand/internal/repeat"
)

// Sentinel errors for watchdog operations.
var (
	ErrAlreadyStarted = errors.New("watchdog: already started")
	ErrNotStarted     = errors.New("watchdog: not started")
)

// TaskState is the lifecycle state of a single watched task.
type TaskState string

// Task states.
const (
	StateWatching TaskState = "watching"
	StateExited   TaskState = "exited"
	StateTimedOut TaskState = "timed_out"
	StateKilled   TaskState = "killed"
	StateStopped  TaskState = "stopped"
)

// EventKind classifies a published watchdog event.
type EventKind string

// Event kinds.
const (
	EventStarted  EventKind = "started"
	EventExited   EventKind = "exited"
	EventTimedOut EventKind = "timed_out"
	EventKilled   EventKind = "killed"
	EventStopped  EventKind = "stopped"
)

// Event is a single watchdog state transition.
type Event struct {
	Task string    `json:"task"`
	Kind EventKind `json:"kind"`
	Time time.Time `json:"time"`
}

// TaskStatus is a point-in-time view of one watched task.
type TaskStatus struct {
	Task  string    `json:"task"`
	State TaskState `json:"state"`
	Since time.Time `json:"since"`
}

// Task configures one watched process.
type Task struct {
	Name          string        // display name, defaults to Process
	Process       string        // OS image name, e.g. "UE4Editor.exe"
	Interval      time.Duration // poll interval, default 5s
	Timeout       time.Duration // max watch duration, default 10m
	KillOnTimeout bool          // force-kill the process when the timeout elapses
}

func (t Task) withDefaults() Task {
	if t.Name == "" {
		t.Name = t.Process
	}
	if t.Interval <= 0 {
		t.Interval = 5 * time.Second
	}
	if t.Timeout <= 0 {
		t.Timeout = 10 * time.Minute
	}
	return t
}

// Prober is the process probe used per task (breaks the proc dependency for tests).
type Prober interface {
	Poll(ctx context.Context) proc.Status
	Kill(ctx context.Context)
}

// Config holds watchdog configuration.
type Config struct {
	Logger  *slog.Logger
	Metrics *metrics.Set     // nil = no instrumentation
	Now     func() time.Time // injectable for testing

	// NewProber builds the probe for a process name. Defaults to proc.New.
	NewProber func(process string, logger *slog.Logger) (Prober, error)
}

func (c Config) withDefaults() Config {
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	if c.NewProber == nil {
		c.NewProber = func(process string, logger *slog.Logger) (Prober, error) {
			return proc.New(process, logger)
		}
	}
	return c
}

// watcher pairs one task with its repeater and state.
type watcher struct {
	task   Task
	prober Prober
	rep    *repeat.Repeater[proc.Status]

	mu    sync.Mutex
	state TaskState
	since time.Time
}

func (w *watcher) setState(s TaskState, at time.Time) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.state = s
	w.since = at
}

func (w *watcher) status() TaskStatus {
	w.mu.Lock()
	defer w.mu.Unlock()
	return TaskStatus{Task: w.task.Name, State: w.state, Since: w.since}
}

// Watchdog owns one watcher per configured task.
type Watchdog struct {
	cfg   Config
	tasks []Task

	mu       sync.Mutex
	watchers []*watcher
	cancel   context.CancelFunc
	wg       sync.WaitGroup

	subMu   sync.Mutex
	subs    map[int]chan Event
	nextSub int
}

// New creates a Watchdog for the given tasks. Duplicate task names are
// rejected.
func New(cfg Config, tasks []Task) (*Watchdog, error) {
	seen := make(map[string]struct{}, len(tasks))
	normalized := make([]Task, 0, len(tasks))
	for i, task := range tasks {
		if task.Process == "" {
			return nil, fmt.Errorf("watchdog: task %d: process name is required", i)
		}
		task = task.withDefaults()
		if _, dup := seen[task.Name]; dup {
			return nil, fmt.Errorf("watchdog: duplicate task name %q", task.Name)
		}
		seen[task.Name] = struct{}{}
		normalized = append(normalized, task)
	}

	return &Watchdog{
		cfg:   cfg.withDefaults(),
		tasks: normalized,
		subs:  make(map[int]chan Event),
	}, nil
}

// Subscribe registers an event channel. The returned cancel function must be
// called to release it. Slow subscribers drop events rather than block the
// watchers.
func (d *Watchdog) Subscribe() (<-chan Event, func()) {
	d.subMu.Lock()
	defer d.subMu.Unlock()

	id := d.nextSub
	d.nextSub++
	ch := make(chan Event, 16)
	d.subs[id] = ch

	return ch, func() {
		d.subMu.Lock()
		defer d.subMu.Unlock()
		if _, ok := d.subs[id]; ok {
			delete(d.subs, id)
			close(ch)
		}
	}
}

func (d *Watchdog) publish(ev Event) {
	d.subMu.Lock()
	defer d.subMu.Unlock()
	for _, ch := range d.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}

// Start begins watching all configured tasks. Returns ErrAlreadyStarted if
// called twice.
func (d *Watchdog) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.cancel != nil {
		return ErrAlreadyStarted
	}

	runCtx, cancel := context.WithCancel(ctx)

	for _, task := range d.tasks {
		w, err := d.startWatcher(runCtx, task)
		if err != nil {
			cancel()
			for _, started := range d.watchers {
				started.rep.Stop()
			}
			d.watchers = nil
			return err
		}
		d.watchers = append(d.watchers, w)
	}

	d.cancel = cancel
	d.cfg.Logger.Info("watchdog started", "tasks", len(d.watchers))
	return nil
}

func (d *Watchdog) startWatcher(ctx context.Context, task Task) (*watcher, error) {
	prober, err := d.cfg.NewProber(task.Process, d.cfg.Logger)
	if err != nil {
		return nil, fmt.Errorf("watchdog: task %q: %w", task.Name, err)
	}

	w := &watcher{task: task, prober: prober}

	rep, err := repeat.New(repeat.Config[proc.Status]{
		Interval: task.Interval,
		Timeout:  task.Timeout,
		Logger:   d.cfg.Logger,
		Now:      d.cfg.Now,
		Func: func(ctx context.Context) (proc.Status, bool) {
			if d.cfg.Metrics != nil {
				d.cfg.Metrics.PollCycles.WithLabelValues(task.Name).Inc()
			}
			return prober.Poll(ctx), true
		},
	})
	if err != nil {
		return nil, fmt.Errorf("watchdog: task %q: %w", task.Name, err)
	}
	w.rep = rep

	rep.OnFinish(func(proc.Status) {
		now := d.cfg.Now()
		w.setState(StateExited, now)
		d.countOutcome(task.Name, StateExited)
		d.cfg.Logger.Info("watched process exited", "task", task.Name)
		d.publish(Event{Task: task.Name, Kind: EventExited, Time: now})
	})
	rep.OnTimeout(func() {
		now := d.cfg.Now()
		w.setState(StateTimedOut, now)
		d.countOutcome(task.Name, StateTimedOut)
		d.cfg.Logger.Warn("watch timed out", "task", task.Name, "timeout", task.Timeout)
		d.publish(Event{Task: task.Name, Kind: EventTimedOut, Time: now})

		if task.KillOnTimeout {
			prober.Kill(ctx)
			killedAt := d.cfg.Now()
			w.setState(StateKilled, killedAt)
			if d.cfg.Metrics != nil {
				d.cfg.Metrics.Kills.Inc()
			}
			d.cfg.Logger.Warn("watched process killed", "task", task.Name)
			d.publish(Event{Task: task.Name, Kind: EventKilled, Time: killedAt})
		}
	})

	startedAt := d.cfg.Now()
	w.setState(StateWatching, startedAt)
	d.publish(Event{Task: task.Name, Kind: EventStarted, Time: startedAt})

	evaluator := func(s proc.Status) bool { return s == proc.StatusExited }
	if err := rep.Start(ctx, evaluator); err != nil {
		return nil, fmt.Errorf("watchdog: task %q: %w", task.Name, err)
	}

	// Stop fires no callback; translate it into a state transition from a
	// waiter goroutine.
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		<-rep.Done()
		if rep.Result().Outcome == repeat.OutcomeStopped {
			now := d.cfg.Now()
			w.setState(StateStopped, now)
			d.countOutcome(task.Name, StateStopped)
			d.publish(Event{Task: task.Name, Kind: EventStopped, Time: now})
		}
	}()

	return w, nil
}

func (d *Watchdog) countOutcome(task string, state TaskState) {
	if d.cfg.Metrics != nil {
		d.cfg.Metrics.WatchOutcomes.WithLabelValues(task, string(state)).Inc()
	}
}

// Stop cancels all watchers and waits for them to settle or ctx to expire.
// Returns ErrNotStarted if Start was never called.
func (d *Watchdog) Stop(ctx context.Context) error {
	d.mu.Lock()
	cancel := d.cancel
	watchers := d.watchers
	d.cancel = nil
	d.mu.Unlock()

	if cancel == nil {
		return ErrNotStarted
	}
	cancel()

	settled := make(chan struct{})
	go func() {
		for _, w := range watchers {
			<-w.rep.Done()
		}
		d.wg.Wait()
		close(settled)
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-settled:
		d.cfg.Logger.Info("watchdog stopped")
		return nil
	}
}

// Snapshot returns the current state of every watched task.
func (d *Watchdog) Snapshot() []TaskStatus {
	d.mu.Lock()
	defer d.mu.Unlock()

	out := make([]TaskStatus, 0, len(d.watchers))
	for _, w := range d.watchers {
		out = append(out, w.status())
	}
	return out
}
