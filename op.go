package rods

import (
	"context"
)

// Op is a deferred operation against the backend. Every query and save in
// this package is written once as an Op; the callback and future forms below
// are thin presentations of that single implementation.
//
//	// blocking
//	u, err := users.Get(1).Await(ctx)
//
//	// callback
//	users.Get(1).Then(ctx, func(u *rods.Entity, err error) { ... })
//
//	// future
//	f := users.Fetch(nil).Start(ctx)
//	all, err := f.Wait(ctx)
type Op[T any] func(ctx context.Context) (T, error)

// Await runs the operation and returns its outcome.
func (op Op[T]) Await(ctx context.Context) (T, error) {
	return op(ctx)
}

// Then runs the operation and hands its outcome to done.
func (op Op[T]) Then(ctx context.Context, done func(T, error)) {
	v, err := op(ctx)
	done(v, err)
}

// Start runs the operation on its own goroutine. The caller must not touch
// the query or entity behind the operation until the future resolves.
func (op Op[T]) Start(ctx context.Context) *Future[T] {
	f := &Future[T]{done: make(chan struct{})}
	go func() {
		defer close(f.done)
		f.val, f.err = op(ctx)
	}()
	return f
}

// Future is the pending outcome of an Op started with Start.
type Future[T any] struct {
	done chan struct{}
	val  T
	err  error
}

// Done is closed once the outcome is available.
func (f *Future[T]) Done() <-chan struct{} { return f.done }

// Wait blocks until the outcome is available or ctx ends. Abandoning the
// wait does not stop the operation itself.
func (f *Future[T]) Wait(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		return f.val, f.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}
