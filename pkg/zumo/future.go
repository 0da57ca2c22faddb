package zumo

import (
	"context"
	"sync"
)

// Future is the eventual outcome of an asynchronous operation. It resolves
// exactly once, with either a value or an error.
type Future[T any] struct {
	done chan struct{}
	once sync.Once
	val  T
	err  error
}

func newFuture[T any]() *Future[T] {
	return &Future[T]{done: make(chan struct{})}
}

// resolve stores the outcome. Only the first call has any effect; it
// reports whether this call won.
func (f *Future[T]) resolve(val T, err error) bool {
	won := false

	f.once.Do(func() {
		f.val = val
		f.err = err
		won = true
		close(f.done)
	})

	return won
}

// Done is closed once the outcome is available.
func (f *Future[T]) Done() <-chan struct{} {
	return f.done
}

// Wait blocks until the outcome is available or ctx is done. Canceling ctx
// stops the wait only; it does not cancel the operation.
func (f *Future[T]) Wait(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		return f.val, f.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Then calls fn with the outcome on its own goroutine once it is available.
// fn runs exactly once.
func (f *Future[T]) Then(fn func(T, error)) {
	go func() {
		<-f.done
		fn(f.val, f.err)
	}()
}

// Go runs fn on a new goroutine and returns its Future. This turns any
// blocking Client or Table call into a callback-style one:
//
//	zumo.Go(ctx, func(ctx context.Context) ([]zumo.Item, error) {
//		return todo.Get(ctx, q)
//	}).Then(render)
func Go[T any](ctx context.Context, fn func(context.Context) (T, error)) *Future[T] {
	f := newFuture[T]()

	go func() {
		val, err := fn(ctx)
		f.resolve(val, err)
	}()

	return f
}
