package eventloop

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// Loop is a FIFO queue of continuations executed one at a time.
// Post and AfterFunc are safe to call from any goroutine.
type Loop struct {
	clock Clock

	mu    sync.Mutex
	queue []func()
	wake  chan struct{}

	running atomic.Bool
}

// Option configures a Loop.
type Option func(*Loop)

// WithClock sets the clock used for timers. Defaults to the wall clock.
func WithClock(c Clock) Option {
	return func(l *Loop) {
		if c != nil {
			l.clock = c
		}
	}
}

// New creates an idle Loop.
func New(opts ...Option) *Loop {
	l := &Loop{
		clock: RealClock{},
		wake:  make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Clock returns the clock driving the loop's timers.
func (l *Loop) Clock() Clock {
	return l.clock
}

// Post schedules fn to run after every task already queued.
func (l *Loop) Post(fn func()) {
	if fn == nil {
		return
	}
	l.mu.Lock()
	l.queue = append(l.queue, fn)
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
}

// Len returns the number of queued tasks.
func (l *Loop) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.queue)
}

// RunPending runs queued tasks, including tasks queued while running, until
// the queue is empty. It returns the number of tasks executed.
func (l *Loop) RunPending() int {
	n := 0
	for {
		l.mu.Lock()
		if len(l.queue) == 0 {
			l.mu.Unlock()
			return n
		}
		fn := l.queue[0]
		l.queue[0] = nil
		l.queue = l.queue[1:]
		l.mu.Unlock()

		fn()
		n++
	}
}

// Run processes tasks on the calling goroutine until ctx is done.
// Only one goroutine may run a Loop at a time.
func (l *Loop) Run(ctx context.Context) error {
	if !l.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer l.running.Store(false)

	for {
		l.RunPending()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-l.wake:
		}
	}
}

// Running reports whether a goroutine is inside Run.
func (l *Loop) Running() bool {
	return l.running.Load()
}

// Timer is a cancellable deferred continuation.
type Timer struct {
	stopped atomic.Bool
	fired   atomic.Bool
	cancel  func() bool
}

// Stop prevents the continuation from running. It reports whether the call
// stopped the timer, false if it already ran or was already stopped.
// Stop is effective even when the clock has fired and the continuation is
// sitting in the loop queue.
func (t *Timer) Stop() bool {
	if t == nil {
		return false
	}
	if t.fired.Load() {
		return false
	}
	if !t.stopped.CompareAndSwap(false, true) {
		return false
	}
	if t.cancel != nil {
		t.cancel()
	}
	return true
}

// AfterFunc posts fn to the loop once d has elapsed on the loop's clock.
// A non-positive d posts fn immediately.
func (l *Loop) AfterFunc(d time.Duration, fn func()) *Timer {
	t := &Timer{}
	run := func() {
		if t.stopped.Load() {
			return
		}
		t.fired.Store(true)
		fn()
	}
	if d <= 0 {
		l.Post(run)
		return t
	}
	t.cancel = l.clock.AfterFunc(d, func() { l.Post(run) })
	return t
}
