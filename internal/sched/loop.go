package sched

import (
	"container/heap"
	"context"
	"errors"
	"time"
)

// ErrLoopStopped is returned by Call once the loop has exited.
var ErrLoopStopped = errors.New("event loop stopped")

// Clock reports the shared audio clock in seconds.
type Clock interface {
	Now() float64
}

// Timers arms one-shot callbacks against the audio clock.
type Timers interface {
	Clock
	AfterFunc(delay float64, fn func()) *Task
}

// Task is a pending callback. Cancel is the only way to retract it.
type Task struct {
	at        float64
	seq       uint64
	fn        func()
	cancelled bool
	fired     bool
	index     int
}

// Cancel prevents the task from firing. Safe on nil, fired or already
// cancelled tasks.
func (t *Task) Cancel() {
	if t == nil {
		return
	}
	t.cancelled = true
}

// Pending reports whether the task will still fire.
func (t *Task) Pending() bool {
	return t != nil && !t.cancelled && !t.fired
}

// When returns the clock time the task is due.
func (t *Task) When() float64 { return t.at }

// Loop is a single-goroutine cooperative event loop. All callbacks run on
// the goroutine that drives Advance (directly in tests, or through Run).
// Nothing here is safe for concurrent use except Call.
type Loop struct {
	now   float64
	seq   uint64
	tasks taskHeap
	calls chan func()
	done  chan struct{}
}

// NewLoop creates a loop with its clock at zero.
func NewLoop() *Loop {
	return &Loop{
		calls: make(chan func()),
		done:  make(chan struct{}),
	}
}

// Now returns the current clock time in seconds.
func (l *Loop) Now() float64 { return l.now }

// AfterFunc schedules fn to run delay seconds from now. Negative delays run
// at the current time on the next Advance.
func (l *Loop) AfterFunc(delay float64, fn func()) *Task {
	if delay < 0 {
		delay = 0
	}
	l.seq++
	t := &Task{at: l.now + delay, seq: l.seq, fn: fn}
	heap.Push(&l.tasks, t)
	return t
}

// Pending returns the number of armed, uncancelled tasks.
func (l *Loop) Pending() int {
	n := 0
	for _, t := range l.tasks {
		if !t.cancelled {
			n++
		}
	}
	return n
}

// Advance moves the clock forward by d seconds, firing every due task in
// time order. Each task observes Now() equal to its own due time.
func (l *Loop) Advance(d float64) {
	target := l.now + d
	for len(l.tasks) > 0 && l.tasks[0].at <= target {
		t := heap.Pop(&l.tasks).(*Task)
		if t.cancelled {
			continue
		}
		if t.at > l.now {
			l.now = t.at
		}
		t.fired = true
		t.fn()
	}
	if target > l.now {
		l.now = target
	}
}

// Run drives the loop in real time: every frame it advances the clock by the
// frame length and then hands the elapsed span to render. Calls queued with
// Call run between frames. Blocks until ctx is cancelled.
func (l *Loop) Run(ctx context.Context, frame time.Duration, render func(start, end float64)) {
	defer close(l.done)

	ticker := time.NewTicker(frame)
	defer ticker.Stop()

	step := frame.Seconds()
	for {
		select {
		case <-ctx.Done():
			return
		case fn := <-l.calls:
			fn()
		case <-ticker.C:
			start := l.now
			l.Advance(step)
			if render != nil {
				render(start, l.now)
			}
		}
	}
}

// Call runs fn on the loop goroutine and waits for it to finish. It must not
// be called from inside a loop callback.
func (l *Loop) Call(ctx context.Context, fn func()) error {
	finished := make(chan struct{})
	wrapped := func() {
		defer close(finished)
		fn()
	}

	select {
	case l.calls <- wrapped:
	case <-l.done:
		return ErrLoopStopped
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case <-finished:
		return nil
	case <-l.done:
		return ErrLoopStopped
	}
}

type taskHeap []*Task

func (h taskHeap) Len() int { return len(h) }

func (h taskHeap) Less(i, j int) bool {
	if h[i].at != h[j].at {
		return h[i].at < h[j].at
	}
	return h[i].seq < h[j].seq
}

func (h taskHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *taskHeap) Push(x any) {
	t := x.(*Task)
	t.index = len(*h)
	*h = append(*h, t)
}

func (h *taskHeap) Pop() any {
	old := *h
	n := len(old)
	t := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return t
}
