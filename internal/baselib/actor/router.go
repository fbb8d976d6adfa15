package actor

import (
	"context"
	"sync/atomic"

	"github.com/lightningnetwork/lnd/fn/v2"
)

// RoutingStrategy picks which of a set of refs a message should go to,
// letting ServiceKey.Ref's virtual ActorRef load-balance without the
// caller needing to know how many actors are actually registered.
type RoutingStrategy[M Message, R any] interface {
	// Select picks one ref from refs. refs is never empty when Select is
	// called.
	Select(refs []ActorRef[M, R]) ActorRef[M, R]
}

// roundRobinStrategy cycles through the currently registered refs in
// registration order.
type roundRobinStrategy[M Message, R any] struct {
	next atomic.Uint64
}

// NewRoundRobinStrategy returns a RoutingStrategy that cycles through refs
// in registration order.
func NewRoundRobinStrategy[M Message, R any]() RoutingStrategy[M, R] {
	return &roundRobinStrategy[M, R]{}
}

// Select implements RoutingStrategy.
func (s *roundRobinStrategy[M, R]) Select(refs []ActorRef[M, R]) ActorRef[M, R] {
	i := s.next.Add(1) - 1
	return refs[i%uint64(len(refs))]
}

// router is a virtual ActorRef that fans Tell/Ask out across every actor
// currently registered under a service key, re-resolving the registration
// list on every call so actors spawned or unregistered after the router
// was created are picked up without needing to recreate it.
type router[M Message, R any] struct {
	receptionist *Receptionist
	key          ServiceKey[M, R]
	strategy     RoutingStrategy[M, R]
	dlo          ActorRef[Message, any]
}

// NewRouter returns a virtual ActorRef that load-balances, via strategy,
// across every actor currently registered under key in r. When no actor is
// registered, Tell forwards the message to dlo (if non-nil) and Ask returns
// a future completed with ErrActorTerminated.
func NewRouter[M Message, R any](
	r *Receptionist, key ServiceKey[M, R], strategy RoutingStrategy[M, R],
	dlo ActorRef[Message, any],
) ActorRef[M, R] {
	return &router[M, R]{
		receptionist: r,
		key:          key,
		strategy:     strategy,
		dlo:          dlo,
	}
}

// ID implements BaseActorRef.
func (rt *router[M, R]) ID() string {
	return "router:" + rt.key.name
}

func (rt *router[M, R]) pick() (ActorRef[M, R], bool) {
	refs := FindInReceptionist(rt.receptionist, rt.key)
	if len(refs) == 0 {
		return nil, false
	}
	return rt.strategy.Select(refs), true
}

// Tell implements TellOnlyRef.
func (rt *router[M, R]) Tell(ctx context.Context, msg M) {
	ref, ok := rt.pick()
	if !ok {
		if rt.dlo != nil {
			rt.dlo.Tell(ctx, msg)
		}
		return
	}
	ref.Tell(ctx, msg)
}

// Ask implements ActorRef.
func (rt *router[M, R]) Ask(ctx context.Context, msg M) Future[R] {
	ref, ok := rt.pick()
	if !ok {
		promise := NewPromise[R]()
		promise.Complete(fn.Err[R](ErrActorTerminated))
		return promise.Future()
	}
	return ref.Ask(ctx, msg)
}
