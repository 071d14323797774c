// Package repeat provides a poll-until-done scheduler: it runs a function at
// a fixed interval until an evaluator reports completion, a timeout elapses,
// or the caller stops it. Every lifecycle settles into exactly one Outcome,
// delivered both through optional callbacks and a Done channel.
package repeat

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// Sentinel errors for scheduler operations.
var (
	ErrAlreadyStarted = errors.New("repeat: already started")
	ErrNilFunc        = errors.New("repeat: nil Func")
)

// Outcome is the terminal state of a repeater lifecycle.
type Outcome int

// Terminal outcomes. Exactly one is reached per Start.
const (
	// OutcomeFinished means the evaluator accepted a poll result.
	OutcomeFinished Outcome = iota
	// OutcomeTimedOut means the timeout elapsed before completion.
	OutcomeTimedOut
	// OutcomeStopped means Stop was called or the context was cancelled.
	OutcomeStopped
)

// String implements fmt.Stringer.
func (o Outcome) String() string {
	switch o {
	case OutcomeFinished:
		return "finished"
	case OutcomeTimedOut:
		return "timed_out"
	case OutcomeStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Result is the tagged terminal result of a repeater lifecycle.
// Value is only meaningful when Outcome is OutcomeFinished.
type Result[T any] struct {
	Outcome Outcome
	Value   T
}

// Func is the polled work. The bool reports whether the returned value is a
// real result worth handing to the evaluator; polls that produced nothing
// return false and the cycle reschedules without evaluation.
type Func[T any] func(ctx context.Context) (T, bool)

// Config holds repeater configuration.
type Config[T any] struct {
	Interval time.Duration // delay between poll cycles, default 1s
	Timeout  time.Duration // max elapsed time since Start; <=0 expires after the first cycle
	Func     Func[T]       // required
	Logger   *slog.Logger
	Now      func() time.Time // injectable for testing
}

func (c Config[T]) withDefaults() Config[T] {
	if c.Interval <= 0 {
		c.Interval = time.Second
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	return c
}

// Repeater polls Func until the evaluator accepts a result, the timeout
// elapses, or Stop is called. All scheduling state is owned by the repeater
// itself; callers interact only through Start, Stop, Done, and Wait.
//
// Func is guaranteed to run at least once, even when Timeout is zero or
// negative: the timeout check only applies after the first execution.
// Stop is cooperative: a cycle already dispatched may run Func one more
// time, but no callback fires once the stop is observed.
//
// Panics in Func, the evaluator, or a callback are not recovered and
// propagate on whichever goroutine runs the cycle.
type Repeater[T any] struct {
	cfg Config[T]

	mu        sync.Mutex
	cancel    context.CancelFunc
	eval      func(T) bool
	onFinish  func(T)
	onTimeout func()
	startTime time.Time
	started   bool // Func has run at least once

	settleOnce sync.Once
	done       chan struct{}
	result     Result[T]
}

// New creates a Repeater with the given configuration.
func New[T any](cfg Config[T]) (*Repeater[T], error) {
	if cfg.Func == nil {
		return nil, ErrNilFunc
	}
	return &Repeater[T]{
		cfg:  cfg.withDefaults(),
		done: make(chan struct{}),
	}, nil
}

// OnFinish registers a callback invoked at most once when the evaluator
// accepts a result. Register before Start.
func (r *Repeater[T]) OnFinish(fn func(T)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onFinish = fn
}

// OnTimeout registers a callback invoked at most once if the timeout elapses
// before completion. Register before Start.
func (r *Repeater[T]) OnTimeout(fn func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onTimeout = fn
}

// Start records the start time and runs the first poll cycle synchronously
// in the caller's goroutine; subsequent cycles run on a dedicated goroutine
// every Interval. The evaluator may be nil, in which case only the timeout
// or Stop can end the lifecycle. Returns ErrAlreadyStarted on a second call.
func (r *Repeater[T]) Start(ctx context.Context, evaluator func(T) bool) error {
	r.mu.Lock()
	if r.cancel != nil {
		r.mu.Unlock()
		return ErrAlreadyStarted
	}
	runCtx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	r.eval = evaluator
	r.startTime = r.cfg.Now()
	r.mu.Unlock()

	if r.cycle(runCtx) {
		return nil
	}
	go r.loop(runCtx)
	return nil
}

// Stop requests cooperative cancellation. It does not interrupt an in-flight
// Func invocation; it prevents future cycles and callback firing. Calling
// Stop before Start or after settlement is a no-op.
func (r *Repeater[T]) Stop() {
	r.mu.Lock()
	cancel := r.cancel
	r.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// Done returns a channel closed when the lifecycle settles.
func (r *Repeater[T]) Done() <-chan struct{} {
	return r.done
}

// Result returns the terminal result. Only valid after Done is closed.
func (r *Repeater[T]) Result() Result[T] {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.result
}

// Wait blocks until the lifecycle settles or ctx is cancelled.
func (r *Repeater[T]) Wait(ctx context.Context) (Result[T], error) {
	select {
	case <-ctx.Done():
		return Result[T]{}, ctx.Err()
	case <-r.done:
		return r.Result(), nil
	}
}

// loop runs cycles every Interval until one is terminal or ctx is cancelled.
func (r *Repeater[T]) loop(ctx context.Context) {
	timer := time.NewTimer(r.cfg.Interval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			r.settle(Result[T]{Outcome: OutcomeStopped}, nil)
			return
		case <-timer.C:
			if r.cycle(ctx) {
				return
			}
			timer.Reset(r.cfg.Interval)
		}
	}
}

// cycle runs one poll: stop check, timeout check, Func, evaluation.
// It reports whether the lifecycle settled.
func (r *Repeater[T]) cycle(ctx context.Context) bool {
	if ctx.Err() != nil {
		r.settle(Result[T]{Outcome: OutcomeStopped}, nil)
		return true
	}

	r.mu.Lock()
	elapsed := r.cfg.Now().Sub(r.startTime)
	started := r.started
	eval := r.eval
	onFinish := r.onFinish
	onTimeout := r.onTimeout
	r.started = true
	r.mu.Unlock()

	// The first cycle always runs Func, even if the timeout has nominally
	// elapsed already. The timeout check only applies once started.
	if started && elapsed > r.cfg.Timeout {
		r.cfg.Logger.Debug("repeat: timed out", "elapsed", elapsed, "timeout", r.cfg.Timeout)
		r.settle(Result[T]{Outcome: OutcomeTimedOut}, func() {
			if onTimeout != nil {
				onTimeout()
			}
		})
		return true
	}

	v, ok := r.cfg.Func(ctx)

	if ok && eval != nil && eval(v) {
		// Stop may have been requested while Func ran; honor it over finish.
		if ctx.Err() != nil {
			r.settle(Result[T]{Outcome: OutcomeStopped}, nil)
			return true
		}
		r.cfg.Logger.Debug("repeat: finished", "elapsed", elapsed)
		r.settle(Result[T]{Outcome: OutcomeFinished, Value: v}, func() {
			if onFinish != nil {
				onFinish(v)
			}
		})
		return true
	}
	return false
}

// settle records the terminal result exactly once, releases the context
// derived in Start, fires the associated callback, and closes the done
// channel. The cancel matters on the finish and timeout paths: without it
// the derived context would linger until the caller's ctx is cancelled.
func (r *Repeater[T]) settle(res Result[T], callback func()) {
	r.settleOnce.Do(func() {
		r.mu.Lock()
		r.result = res
		cancel := r.cancel
		r.mu.Unlock()
		if cancel != nil {
			cancel()
		}
		if callback != nil {
			callback()
		}
		close(r.done)
	})
}
