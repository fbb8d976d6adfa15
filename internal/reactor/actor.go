package reactor

import (
	"fmt"
	"sync/atomic"
	"time"
)

// ActorID is an actor's identity, a stable (index, generation) pair per
// spec 3: "a single-threaded unit of work with an identity (index,
// generation)." The generation guards against a stale reference to a
// slot that has since been reused by a different actor.
type ActorID struct {
	Index      uint32
	Generation uint32
}

func (id ActorID) String() string {
	return fmt.Sprintf("%d.%d", id.Index, id.Generation)
}

// IsZero reports whether id is the zero ActorID (never a valid identity).
func (id ActorID) IsZero() bool {
	return id.Index == 0 && id.Generation == 0
}

// ActorState names one of an actor's lifecycle states, spec 3:
// "unregistered -> registered -> running -> stopping -> stopped."
type ActorState int32

const (
	ActorUnregistered ActorState = iota
	ActorRegistered
	ActorRunning
	ActorStopping
	ActorStopped
)

func (s ActorState) String() string {
	switch s {
	case ActorUnregistered:
		return "unregistered"
	case ActorRegistered:
		return "registered"
	case ActorRunning:
		return "running"
	case ActorStopping:
		return "stopping"
	case ActorStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Actor is any unit of work the reactor can host: it is driven purely
// through execute, spec 4.5: "an actor is any object implementing
// execute(events, now_deadline) -> action and owning any number of
// sockets via the reactor's per-socket API."
type Actor interface {
	// Execute is invoked by the owning reactor, never concurrently, with
	// the event mask that woke the actor and the current time. It
	// returns the Action the reactor should take next.
	Execute(events EventMask, now time.Time) Action
}

// actorEntry is the reactor's bookkeeping record for one hosted actor,
// spec 3's "reactor entry": "maps an actor identity to: the actor
// object, its current event mask, its per-socket stubs, and two index
// arrays of socket slots with pending I/O timeouts." Here the two timeout
// index arrays belong to the Reactor (recvIdx/sendIdx), shared by all its
// actors, rather than to each entry.
type actorEntry struct {
	id      ActorID
	actor   Actor
	state   atomic.Int32
	mask    EventMask
	sockets []*SocketStub

	// pendingMask accumulates events posted from other goroutines (a
	// cross-thread wake, spec 4.2's "cross-thread posting") until the
	// owning reactor next drains it.
	pendingMask atomic.Uint32
}

func newActorEntry(id ActorID, a Actor) *actorEntry {
	e := &actorEntry{id: id, actor: a}
	e.state.Store(int32(ActorRegistered))
	return e
}

func (e *actorEntry) State() ActorState {
	return ActorState(e.state.Load())
}

func (e *actorEntry) setState(s ActorState) {
	e.state.Store(int32(s))
}

// postEvent adds ev to the actor's pending cross-thread event mask. Safe
// to call from any goroutine; the owning reactor observes it on its next
// mailbox-drain pass (spec 4.2 step (f): "process cross-thread
// wake-ups").
func (e *actorEntry) postEvent(ev EventMask) {
	for {
		old := e.pendingMask.Load()
		next := old | uint32(ev)
		if e.pendingMask.CompareAndSwap(old, next) {
			return
		}
	}
}

// drainPendingEvents atomically takes and clears the accumulated
// cross-thread event mask.
func (e *actorEntry) drainPendingEvents() EventMask {
	return EventMask(e.pendingMask.Swap(0))
}
