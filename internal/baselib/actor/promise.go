package actor

import (
	"context"
	"sync"

	"github.com/lightningnetwork/lnd/fn/v2"
)

// promiseState is the shared, one-shot completion cell backing both ends of
// a Promise/Future pair: Complete (the producer side) and Await/OnComplete
// (the consumer side) all close over the same done channel.
type promiseState[T any] struct {
	mu        sync.Mutex
	done      chan struct{}
	closeOnce sync.Once
	result    fn.Result[T]
}

// promiseImpl is the producer-facing half of a promiseState.
type promiseImpl[T any] struct {
	*promiseState[T]
}

// futureImpl is the consumer-facing half of a promiseState.
type futureImpl[T any] struct {
	*promiseState[T]
}

// NewPromise creates a fresh, uncompleted Promise.
func NewPromise[T any]() Promise[T] {
	return promiseImpl[T]{promiseState: &promiseState[T]{done: make(chan struct{})}}
}

// Complete sets the promise's result. Only the first call has any effect;
// it returns whether this call was the one that completed it.
func (p promiseImpl[T]) Complete(result fn.Result[T]) bool {
	completed := false
	p.closeOnce.Do(func() {
		p.mu.Lock()
		p.result = result
		p.mu.Unlock()
		close(p.done)
		completed = true
	})
	return completed
}

// Future returns the consumer-facing view of this promise.
func (p promiseImpl[T]) Future() Future[T] {
	return futureImpl[T]{promiseState: p.promiseState}
}

// Await blocks until the promise completes or ctx is cancelled.
func (f futureImpl[T]) Await(ctx context.Context) fn.Result[T] {
	select {
	case <-f.done:
		f.mu.Lock()
		defer f.mu.Unlock()
		return f.result

	case <-ctx.Done():
		return fn.Err[T](ctx.Err())
	}
}

// ThenApply returns a new Future that resolves to transform applied to
// this future's value, or propagates its error untouched.
func (f futureImpl[T]) ThenApply(ctx context.Context, transform func(T) T) Future[T] {
	next := NewPromise[T]()

	go func() {
		result := f.Await(ctx)
		result.WhenOk(func(v T) {
			next.Complete(fn.Ok(transform(v)))
		})
		result.WhenErr(func(err error) {
			next.Complete(fn.Err[T](err))
		})
	}()

	return next.Future()
}

// OnComplete invokes cb once this future resolves, on a dedicated
// goroutine so callers are never blocked waiting for it.
func (f futureImpl[T]) OnComplete(ctx context.Context, cb func(fn.Result[T])) {
	go cb(f.Await(ctx))
}
