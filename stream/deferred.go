package stream

import (
	"context"
	"errors"
	"sync/atomic"
)

var (
	ErrAlreadyResolved = errors.New("stream: deferred already resolved")
	ErrAlreadyConsumed = errors.New("stream: deferred already consumed")
)

type outcome[T any] struct {
	value T
	err   error
}

// Deferred is a write-once, read-once handoff of a single value from a
// background producer to one waiting consumer.
type Deferred[T any] struct {
	ch       chan outcome[T]
	resolved atomic.Bool
	consumed atomic.Bool
}

func NewDeferred[T any]() *Deferred[T] {
	return &Deferred[T]{ch: make(chan outcome[T], 1)}
}

// Resolved returns a deferred that already holds value.
func Resolved[T any](value T) *Deferred[T] {
	d := NewDeferred[T]()
	_ = d.Resolve(value)
	return d
}

// Resolve delivers value. It never blocks. Every call after the first
// returns ErrAlreadyResolved and leaves the delivered outcome untouched.
func (d *Deferred[T]) Resolve(value T) error {
	return d.deliver(outcome[T]{value: value})
}

// Fail delivers err as the terminal outcome.
func (d *Deferred[T]) Fail(err error) error {
	return d.deliver(outcome[T]{err: err})
}

func (d *Deferred[T]) deliver(o outcome[T]) error {
	if !d.resolved.CompareAndSwap(false, true) {
		return ErrAlreadyResolved
	}
	d.ch <- o
	return nil
}

// IsResolved reports whether a producer has delivered an outcome.
func (d *Deferred[T]) IsResolved() bool {
	return d.resolved.Load()
}

// Await blocks until the outcome is delivered or ctx is done. Only the first
// call may consume the outcome; later calls return ErrAlreadyConsumed.
func (d *Deferred[T]) Await(ctx context.Context) (T, error) {
	var zero T
	if !d.consumed.CompareAndSwap(false, true) {
		return zero, ErrAlreadyConsumed
	}

	select {
	case o := <-d.ch:
		return o.value, o.err
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

// Then returns a deferred resolved with fn applied to the outcome of d. The
// returned deferred becomes the only consumer of d.
func Then[T, U any](ctx context.Context, d *Deferred[T], fn func(T, error) (U, error)) *Deferred[U] {
	next := NewDeferred[U]()
	go func() {
		value, err := fn(d.Await(ctx))
		if err != nil {
			_ = next.Fail(err)
			return
		}
		_ = next.Resolve(value)
	}()
	return next
}
