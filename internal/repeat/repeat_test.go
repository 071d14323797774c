package repeat

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestNew_NilFunc(t *testing.T) {
	t.Parallel()

	_, err := New(Config[int]{})
	if !errors.Is(err, ErrNilFunc) {
		t.Fatalf("New error = %v, want ErrNilFunc", err)
	}
}

func TestStart_RunsAtLeastOnceWithZeroTimeout(t *testing.T) {
	t.Parallel()

	var calls atomic.Int64
	r, err := New(Config[int]{
		Interval: time.Millisecond,
		Timeout:  0,
		Func: func(context.Context) (int, bool) {
			calls.Add(1)
			return 0, false
		},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	var timeouts atomic.Int64
	r.OnTimeout(func() { timeouts.Add(1) })

	if err := r.Start(context.Background(), nil); err != nil {
		t.Fatalf("Start: %v", err)
	}

	res, err := r.Wait(context.Background())
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if res.Outcome != OutcomeTimedOut {
		t.Errorf("Outcome = %v, want %v", res.Outcome, OutcomeTimedOut)
	}
	if got := calls.Load(); got != 1 {
		t.Errorf("Func ran %d times, want exactly 1", got)
	}
	if got := timeouts.Load(); got != 1 {
		t.Errorf("timeout callback fired %d times, want exactly 1", got)
	}
}

func TestStart_FinishesWhenEvaluatorAccepts(t *testing.T) {
	t.Parallel()

	var calls atomic.Int64
	r, err := New(Config[int]{
		Interval: time.Millisecond,
		Timeout:  time.Minute,
		Func: func(context.Context) (int, bool) {
			return int(calls.Add(1)), true
		},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	var finished atomic.Int64
	var finishValue atomic.Int64
	r.OnFinish(func(v int) {
		finished.Add(1)
		finishValue.Store(int64(v))
	})
	r.OnTimeout(func() { t.Error("timeout callback fired on finish path") })

	// Accept the third poll result.
	err = r.Start(context.Background(), func(v int) bool { return v >= 3 })
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	res, err := r.Wait(context.Background())
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if res.Outcome != OutcomeFinished {
		t.Fatalf("Outcome = %v, want %v", res.Outcome, OutcomeFinished)
	}
	if res.Value != 3 {
		t.Errorf("Value = %d, want 3", res.Value)
	}
	if got := finished.Load(); got != 1 {
		t.Errorf("finish callback fired %d times, want exactly 1", got)
	}
	if got := finishValue.Load(); got != 3 {
		t.Errorf("finish callback value = %d, want 3", got)
	}

	// No cycle k+1 after acceptance.
	time.Sleep(10 * time.Millisecond)
	if got := calls.Load(); got != 3 {
		t.Errorf("Func ran %d times after finish, want 3", got)
	}
}

func TestStart_FirstCycleSynchronous(t *testing.T) {
	t.Parallel()

	ran := false
	r, err := New(Config[string]{
		Interval: time.Hour,
		Timeout:  time.Hour,
		Func: func(context.Context) (string, bool) {
			ran = true
			return "done", true
		},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if err := r.Start(context.Background(), func(string) bool { return true }); err != nil {
		t.Fatalf("Start: %v", err)
	}

	// Start returned: with an accepting evaluator the lifecycle must already
	// have settled in the caller's goroutine.
	if !ran {
		t.Fatal("first cycle did not run synchronously in Start")
	}
	select {
	case <-r.Done():
	default:
		t.Fatal("Done not closed after synchronous finish")
	}
	if res := r.Result(); res.Outcome != OutcomeFinished || res.Value != "done" {
		t.Errorf("Result = %+v, want finished/done", res)
	}
}

func TestStop_NoCallbacksNoFurtherCycles(t *testing.T) {
	t.Parallel()

	var calls atomic.Int64
	r, err := New(Config[int]{
		Interval: 5 * time.Millisecond,
		Timeout:  time.Minute,
		Func: func(context.Context) (int, bool) {
			calls.Add(1)
			return 0, false
		},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	r.OnFinish(func(int) { t.Error("finish callback fired after Stop") })
	r.OnTimeout(func() { t.Error("timeout callback fired after Stop") })

	if err := r.Start(context.Background(), func(int) bool { return false }); err != nil {
		t.Fatalf("Start: %v", err)
	}

	r.Stop()

	res, err := r.Wait(context.Background())
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if res.Outcome != OutcomeStopped {
		t.Errorf("Outcome = %v, want %v", res.Outcome, OutcomeStopped)
	}

	settled := calls.Load()
	time.Sleep(25 * time.Millisecond)
	if got := calls.Load(); got != settled {
		t.Errorf("Func ran %d more times after settlement", got-settled)
	}
}

func TestStart_Twice(t *testing.T) {
	t.Parallel()

	r, err := New(Config[int]{
		Interval: time.Millisecond,
		Timeout:  time.Minute,
		Func:     func(context.Context) (int, bool) { return 0, false },
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer r.Stop()

	if err := r.Start(context.Background(), nil); err != nil {
		t.Fatalf("first Start: %v", err)
	}
	if err := r.Start(context.Background(), nil); !errors.Is(err, ErrAlreadyStarted) {
		t.Fatalf("second Start error = %v, want ErrAlreadyStarted", err)
	}
}

func TestStart_TimeoutFiresExactlyOnce(t *testing.T) {
	t.Parallel()

	// Fake clock: every reading advances by one second, so the timeout check
	// trips on the second cycle regardless of scheduling jitter.
	var ticks atomic.Int64
	base := time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC)
	now := func() time.Time {
		return base.Add(time.Duration(ticks.Add(1)) * time.Second)
	}

	var calls atomic.Int64
	r, err := New(Config[int]{
		Interval: time.Millisecond,
		Timeout:  500 * time.Millisecond,
		Now:      now,
		Func: func(context.Context) (int, bool) {
			calls.Add(1)
			return 0, true
		},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	var timeouts atomic.Int64
	r.OnTimeout(func() { timeouts.Add(1) })

	if err := r.Start(context.Background(), func(int) bool { return false }); err != nil {
		t.Fatalf("Start: %v", err)
	}

	res, err := r.Wait(context.Background())
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if res.Outcome != OutcomeTimedOut {
		t.Errorf("Outcome = %v, want %v", res.Outcome, OutcomeTimedOut)
	}
	if got := timeouts.Load(); got != 1 {
		t.Errorf("timeout callback fired %d times, want exactly 1", got)
	}
	if got := calls.Load(); got != 1 {
		t.Errorf("Func ran %d times, want 1 (timeout on second cycle)", got)
	}
}

func TestSettle_ReleasesDerivedContext(t *testing.T) {
	t.Parallel()

	var polled atomic.Pointer[context.Context]
	r, err := New(Config[int]{
		Interval: time.Millisecond,
		Timeout:  time.Minute,
		Func: func(ctx context.Context) (int, bool) {
			polled.Store(&ctx)
			return 1, true
		},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if err := r.Start(context.Background(), func(int) bool { return true }); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if _, err := r.Wait(context.Background()); err != nil {
		t.Fatalf("Wait: %v", err)
	}

	// Finishing must cancel the context derived in Start, not leave it
	// hanging off the caller's ctx until that is cancelled.
	ctx := *polled.Load()
	if !errors.Is(ctx.Err(), context.Canceled) {
		t.Errorf("derived ctx.Err() = %v after finish, want context.Canceled", ctx.Err())
	}
}

func TestWait_ContextCancelled(t *testing.T) {
	t.Parallel()

	r, err := New(Config[int]{
		Interval: time.Millisecond,
		Timeout:  time.Hour,
		Func:     func(context.Context) (int, bool) { return 0, false },
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer r.Stop()

	if err := r.Start(context.Background(), nil); err != nil {
		t.Fatalf("Start: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := r.Wait(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("Wait error = %v, want context.Canceled", err)
	}
}

func TestOutcome_String(t *testing.T) {
	t.Parallel()

	tests := []struct {
		o    Outcome
		want string
	}{
		{OutcomeFinished, "finished"},
		{OutcomeTimedOut, "timed_out"},
		{OutcomeStopped, "stopped"},
		{Outcome(99), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.o.String(); got != tt.want {
			t.Errorf("Outcome(%d).String() = %q, want %q", tt.o, got, tt.want)
		}
	}
}
