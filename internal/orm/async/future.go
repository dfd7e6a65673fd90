// Package async provides futures for store round trips and the handle returned
// by asynchronous entity fields.
package async

import (
	"context"
)

// Future is the eventual result of one store operation.
//
// The operation is never cancelled once started: the context given to Wait only
// bounds how long the caller blocks.
type Future[T any] struct {
	done  chan struct{}
	value T
	err   error
}

// Go starts fn in its own goroutine. fn receives a context that keeps ctx's
// values but is detached from its cancellation.
func Go[T any](ctx context.Context, fn func(ctx context.Context) (T, error)) *Future[T] {
	f := &Future[T]{done: make(chan struct{})}
	opCtx := context.WithoutCancel(ctx)
	go func() {
		defer close(f.done)
		f.value, f.err = fn(opCtx)
	}()
	return f
}

// Resolved returns a future that is already complete
func Resolved[T any](value T, err error) *Future[T] {
	f := &Future[T]{done: make(chan struct{}), value: value, err: err}
	close(f.done)
	return f
}

// Done is closed when the future completes
func (f *Future[T]) Done() <-chan struct{} {
	return f.done
}

// Wait blocks until the future completes or ctx is done
func (f *Future[T]) Wait(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		return f.value, f.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Then returns a future completing with fn applied to f's value. Errors from f
// skip fn.
func Then[T, U any](f *Future[T], fn func(T) (U, error)) *Future[U] {
	return Go(context.Background(), func(context.Context) (U, error) {
		<-f.done
		if f.err != nil {
			var zero U
			return zero, f.err
		}
		return fn(f.value)
	})
}
