// Package task provides a single-result future for work that runs in the
// background and is observed through a channel rather than a callback.
package task

import "context"

// Task is the pending result of a background operation.
type Task[T any] struct {
	done  chan struct{}
	value T
	err   error
}

// Go runs fn in a new goroutine and returns its Task.
func Go[T any](fn func() (T, error)) *Task[T] {
	t := &Task[T]{done: make(chan struct{})}
	go func() {
		defer close(t.done)
		t.value, t.err = fn()
	}()
	return t
}

// Done returns an already completed Task.
func Done[T any](value T, err error) *Task[T] {
	t := &Task[T]{done: make(chan struct{}), value: value, err: err}
	close(t.done)
	return t
}

// Finished is closed once the result is available.
func (t *Task[T]) Finished() <-chan struct{} {
	return t.done
}

// Result returns the outcome; it must only be called after Finished is closed.
func (t *Task[T]) Result() (T, error) {
	return t.value, t.err
}

// Wait blocks until the task completes or ctx is done. Cancelling ctx stops
// the wait, not the task.
func (t *Task[T]) Wait(ctx context.Context) (T, error) {
	select {
	case <-t.done:
		return t.value, t.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}
