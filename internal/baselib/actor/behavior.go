package actor

import (
	"context"

	"github.com/lightningnetwork/lnd/fn/v2"
)

// functionBehavior adapts a plain function into an ActorBehavior, so a
// one-off actor doesn't need its own named type just to implement Receive.
type functionBehavior[M Message, R any] struct {
	receive func(ctx context.Context, msg M) fn.Result[R]
}

// Receive implements ActorBehavior by invoking the wrapped function.
func (b functionBehavior[M, R]) Receive(ctx context.Context, msg M) fn.Result[R] {
	return b.receive(ctx, msg)
}

// NewFunctionBehavior wraps fn as an ActorBehavior. This is the common case
// for actors whose entire logic is a single stateless (or closure-captured)
// function, avoiding the boilerplate of a dedicated behavior type.
func NewFunctionBehavior[M Message, R any](
	fn func(ctx context.Context, msg M) fn.Result[R],
) ActorBehavior[M, R] {
	return functionBehavior[M, R]{receive: fn}
}
