// Package task provides a cancellable unit of asynchronous work that
// completes exactly once, optionally bounded by an absolute deadline.
package task

import (
	"context"
	"sync"
	"time"

	"github.com/tevino/abool"

	"darvaza.org/namequery/pkg/errors"
)

// A Task is a pending result. It transitions to done exactly once,
// either via [Task.Complete], [Task.Fail], or its deadline firing.
// A parent abandons a Task it no longer needs; completions after
// abandonment are discarded.
type Task[T any] struct {
	mu sync.Mutex

	done      *abool.AtomicBool
	abandoned *abool.AtomicBool
	doneCh    chan struct{}

	timer  *time.Timer
	onDone func(T, error)

	result T
	err    error
}

// New allocates a pending [Task].
func New[T any]() *Task[T] {
	return &Task[T]{
		done:      abool.New(),
		abandoned: abool.New(),
		doneCh:    make(chan struct{}),
	}
}

// SetDeadline arms cancellation. When the deadline elapses before
// completion the Task fails with a timeout error and its continuation
// is invoked. A zero time disarms a previously set deadline.
func (t *Task[T]) SetDeadline(at time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}

	if at.IsZero() || t.done.IsSet() {
		return
	}

	t.timer = time.AfterFunc(time.Until(at), func() {
		t.Fail(errors.ErrTimeoutMessage("", errors.NOANSWER))
	})
}

// Complete transitions a pending Task to done-ok and invokes its
// continuation. It reports whether this call won the transition;
// a second completion attempt returns false and has no effect.
func (t *Task[T]) Complete(v T) bool {
	return t.finish(v, nil)
}

// Fail transitions a pending Task to done-error and invokes its
// continuation. It reports whether this call won the transition.
func (t *Task[T]) Fail(err error) bool {
	var zero T
	if err == nil {
		err = errors.ErrInternalError("", "task failed without error")
	}
	return t.finish(zero, err)
}

func (t *Task[T]) finish(v T, err error) bool {
	if !t.done.SetToIf(false, true) {
		// already done
		return false
	}

	t.mu.Lock()
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
	t.result = v
	t.err = err
	fn := t.onDone
	t.onDone = nil
	t.mu.Unlock()

	close(t.doneCh)

	if fn != nil && !t.abandoned.IsSet() {
		fn(v, err)
	}
	return true
}

// IsDone reports the current state without blocking.
func (t *Task[T]) IsDone() bool {
	return t.done.IsSet()
}

// Done returns a channel closed on completion.
func (t *Task[T]) Done() <-chan struct{} {
	return t.doneCh
}

// Result returns the outcome of a done Task. Calling Result on a
// pending Task is an error.
func (t *Task[T]) Result() (T, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.done.IsSet() {
		var zero T
		return zero, errors.ErrInternalError("", "task still pending")
	}
	return t.result, t.err
}

// Wait blocks until the Task is done or the context expires.
func (t *Task[T]) Wait(ctx context.Context) (T, error) {
	select {
	case <-t.doneCh:
		return t.Result()
	case <-ctx.Done():
		var zero T
		return zero, errors.ErrTimeout("", ctx.Err())
	}
}

// OnDone attaches the continuation invoked on completion. If the Task
// is already done the continuation runs immediately. Only one
// continuation is supported; protocols chain steps by starting child
// tasks from it.
func (t *Task[T]) OnDone(fn func(T, error)) {
	if fn == nil {
		return
	}

	t.mu.Lock()
	if !t.done.IsSet() {
		t.onDone = fn
		t.mu.Unlock()
		return
	}
	v, err := t.result, t.err
	t.mu.Unlock()

	if !t.abandoned.IsSet() {
		fn(v, err)
	}
}

// Abandon tells the Task its result is no longer wanted. The deadline
// timer is released and the continuation will not be invoked. The
// eventual completion, if any, is discarded.
func (t *Task[T]) Abandon() {
	t.abandoned.Set()

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
	t.onDone = nil
}

// IsAbandoned reports whether the parent discarded this Task.
func (t *Task[T]) IsAbandoned() bool {
	return t.abandoned.IsSet()
}
