package reactor

import (
	"fmt"
	"sync"
	"time"

	"github.com/solidframe/solidframe/internal/bufpool"
)

// Reactor is one worker-thread event loop: it owns a readiness poller,
// a set of hosted actors, and the per-direction timeout bookkeeping for
// their sockets (spec 4.2: "one reactor per worker thread hosts a set of
// actors"). All actor execution happens on whichever goroutine calls
// Run/RunOnce; only that goroutine may mutate a hosted actor's sockets,
// matching spec 3's "only the reactor currently hosting an actor may
// mutate it; other parties interact by posting events."
type Reactor struct {
	mu          sync.Mutex
	actors      map[uint32]*actorEntry
	generations map[uint32]uint32
	nextIndex   uint32
	freeIndices []uint32
	load        int

	fdOwner map[int]*SocketStub

	recvIdx *timeoutIndex
	sendIdx *timeoutIndex

	p poller

	readyQueue []uint32
	queued     map[uint32]bool

	// pool is this reactor's buffer pool. Actors hosted here use it for
	// scratch read/write buffers instead of allocating directly, so a
	// single Reactor goroutine never needs to lock around pool access
	// (spec 4.1: "each reactor owns exactly one Pool").
	pool *bufpool.Pool
}

// NewReactor constructs a Reactor with its platform readiness poller.
func NewReactor() (*Reactor, error) {
	p, err := newPoller()
	if err != nil {
		return nil, fmt.Errorf("reactor: create poller: %w", err)
	}

	return &Reactor{
		actors:      make(map[uint32]*actorEntry),
		generations: make(map[uint32]uint32),
		fdOwner:     make(map[int]*SocketStub),
		recvIdx:     newTimeoutIndex(DirectionRecv),
		sendIdx:     newTimeoutIndex(DirectionSend),
		p:           p,
		queued:      make(map[uint32]bool),
		pool:        bufpool.NewPool(nil),
	}, nil
}

// Close releases the reactor's poller resources and returns its buffer
// pool's cached buffers to the runtime.
func (r *Reactor) Close() error {
	r.pool.Close()
	return r.p.close()
}

// Pool returns the reactor's buffer pool, for actors hosted on this
// reactor to acquire/release scratch buffers through.
func (r *Reactor) Pool() *bufpool.Pool {
	return r.pool
}

// wakePoller interrupts a blocked poll wait, used to make Run observe a
// closed stop channel promptly instead of waiting out whatever deadline
// (possibly indefinite) the poller was last given.
func (r *Reactor) wakePoller() {
	r.p.wake()
}

// ActorInfo is a snapshot of one hosted actor's identity and lifecycle
// state, exposed for admin/introspection surfaces.
type ActorInfo struct {
	ID     ActorID
	State  ActorState
	Events EventMask
}

// ListActors returns a snapshot of every actor currently hosted by r.
func (r *Reactor) ListActors() []ActorInfo {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]ActorInfo, 0, len(r.actors))
	for _, e := range r.actors {
		out = append(out, ActorInfo{
			ID:     e.id,
			State:  e.State(),
			Events: e.mask,
		})
	}
	return out
}

// Load reports the reactor's current hosted-actor count, the estimate a
// Scheduler balances new registrations against (spec 4.5: "balances new
// actor registrations across them by lowest estimated load (actor
// count)").
func (r *Reactor) Load() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.load
}

// Register adds a to the reactor and returns its new stable identity.
// Index slots are reused (via freeIndices) once an actor unregisters,
// with the generation counter bumped so a stale ActorID referencing the
// old occupant is detectably wrong.
func (r *Reactor) Register(a Actor) ActorID {
	r.mu.Lock()
	defer r.mu.Unlock()

	var idx uint32
	if n := len(r.freeIndices); n > 0 {
		idx = r.freeIndices[n-1]
		r.freeIndices = r.freeIndices[:n-1]
	} else {
		r.nextIndex++
		idx = r.nextIndex
	}

	gen := r.generations[idx] + 1
	r.generations[idx] = gen

	id := ActorID{Index: idx, Generation: gen}
	r.actors[idx] = newActorEntry(id, a)
	r.load++

	return id
}

// Unregister removes id's actor from the reactor, if id is still current
// (its generation matches the live occupant).
func (r *Reactor) Unregister(id ActorID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.unregisterLocked(id)
}

func (r *Reactor) unregisterLocked(id ActorID) {
	e, ok := r.actors[id.Index]
	if !ok || e.id.Generation != id.Generation {
		return
	}

	for _, s := range e.sockets {
		delete(r.fdOwner, s.fd)
		r.recvIdx.remove(s.timeoutIndex(DirectionRecv), s)
		r.sendIdx.remove(s.timeoutIndex(DirectionSend), s)
		r.p.remove(s.fd)
	}

	delete(r.actors, id.Index)
	delete(r.queued, id.Index)
	r.freeIndices = append(r.freeIndices, id.Index)
	r.load--
}

// PostEvent posts ev to id, safe to call from any goroutine (spec 4.2's
// "cross-thread posting": queued on the actor's mailbox, the owning
// reactor woken via a self-pipe or equivalent).
func (r *Reactor) PostEvent(id ActorID, ev EventMask) {
	r.mu.Lock()
	e, ok := r.actors[id.Index]
	r.mu.Unlock()

	if !ok || e.id.Generation != id.Generation {
		return
	}
	e.postEvent(ev)
	r.p.wake()
}

// RegisterSocket attaches fd to id as a new SocketStub and registers it
// with the poller for readability (the common starting interest for a
// freshly accepted or connected socket).
func (r *Reactor) RegisterSocket(id ActorID, fd int, kind SocketKind) (*SocketStub, error) {
	r.mu.Lock()
	e, ok := r.actors[id.Index]
	if !ok || e.id.Generation != id.Generation {
		r.mu.Unlock()
		return nil, fmt.Errorf("reactor: unknown actor %s", id)
	}

	s := newSocketStub(fd, kind, id)
	e.sockets = append(e.sockets, s)
	r.fdOwner[fd] = s
	r.mu.Unlock()

	if err := r.p.add(pollInterest{fd: fd, readable: true}); err != nil {
		return nil, fmt.Errorf("reactor: register socket: %w", err)
	}
	return s, nil
}

// SetInterest updates the poll interest for an already-registered
// socket, e.g. when a pending send means the reactor must also learn
// about writability.
func (r *Reactor) SetInterest(s *SocketStub, readable, writable bool) error {
	return r.p.modify(pollInterest{fd: s.fd, readable: readable, writable: writable})
}

// SetRecvTimeout arms a one-shot recv-side deadline for s, spec 4.5:
// "timers attach to either the recv side or send side of a specific
// socket." Arming while a previous timer is pending replaces it
// (invariant I "timeout at most once").
func (r *Reactor) SetRecvTimeout(s *SocketStub, deadline time.Time) {
	r.setTimeout(s, DirectionRecv, deadline)
}

// SetSendTimeout arms a one-shot send-side deadline for s.
func (r *Reactor) SetSendTimeout(s *SocketStub, deadline time.Time) {
	r.setTimeout(s, DirectionSend, deadline)
}

func (r *Reactor) setTimeout(s *SocketStub, dir Direction, deadline time.Time) {
	idx := s.timeoutIndex(dir)
	ti := r.directionIndex(dir)
	if idx != noTimeoutIndex {
		ti.remove(idx, s)
	}
	ti.insert(int(s.fd), deadline.UnixNano(), s)
}

func (r *Reactor) directionIndex(dir Direction) *timeoutIndex {
	if dir == DirectionSend {
		return r.sendIdx
	}
	return r.recvIdx
}

// enqueueReady marks idx ready to run, at most once per tick -- spec's
// reactor-fairness invariant ("no actor is dispatched more than once
// after being made ready" within one tick).
func (r *Reactor) enqueueReady(idx uint32) {
	if r.queued[idx] {
		return
	}
	r.queued[idx] = true
	r.readyQueue = append(r.readyQueue, idx)
}

// drainMailboxes folds each actor's cross-thread-posted events into its
// live mask and enqueues it, run before polling each tick (spec 4.2 step
// (f), and the fairness invariant's "mailbox before poll, per tick").
func (r *Reactor) drainMailboxes() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for idx, e := range r.actors {
		pending := e.drainPendingEvents()
		if pending == 0 {
			continue
		}
		e.mask |= pending
		r.enqueueReady(idx)
	}
}

// pollOnce polls readiness and timers with a deadline equal to the
// earliest pending timeout (spec 4.2 step (a)), folding the resulting
// events into each owning actor's mask (step (b), (c)).
func (r *Reactor) pollOnce(scratch []pollEvent) []pollEvent {
	deadline := r.earliestDeadline()

	scratch = scratch[:0]
	scratch, err := r.p.wait(scratch, deadline)
	if err != nil {
		log.Errorf("reactor: poll wait failed: %v", err)
		return scratch
	}

	r.mu.Lock()
	for _, ev := range scratch {
		s, ok := r.fdOwner[ev.fd]
		if !ok {
			continue
		}
		e, ok := r.actors[s.actorID.Index]
		if !ok || e.id.Generation != s.actorID.Generation {
			continue
		}

		var m EventMask
		if ev.read {
			m |= EventInDone
		}
		if ev.write {
			m |= EventOutDone
		}
		if ev.err {
			m |= EventErrDone
		}
		e.mask |= m
		r.enqueueReady(s.actorID.Index)
	}
	r.mu.Unlock()

	now := time.Now().UnixNano()
	r.fireExpiredTimeouts(r.recvIdx, EventTimeoutRecv, now)
	r.fireExpiredTimeouts(r.sendIdx, EventTimeoutSend, now)

	return scratch
}

func (r *Reactor) fireExpiredTimeouts(ti *timeoutIndex, ev EventMask, now int64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, fd := range ti.expired(now, nil) {
		s, ok := r.fdOwner[fd]
		if !ok {
			continue
		}
		e, ok := r.actors[s.actorID.Index]
		if !ok {
			continue
		}
		e.mask |= ev
		r.enqueueReady(s.actorID.Index)
	}
}

// earliestDeadline is the reactor-wide poll deadline: the sooner of the
// recv-side and send-side earliest timeouts, spec 4.2: "the earliest
// deadline is cached for the poller's next wake time."
func (r *Reactor) earliestDeadline() time.Time {
	var best time.Time

	if d, ok := r.recvIdx.earliestDeadline(); ok {
		t := time.Unix(0, d)
		if best.IsZero() || t.Before(best) {
			best = t
		}
	}
	if d, ok := r.sendIdx.earliestDeadline(); ok {
		t := time.Unix(0, d)
		if best.IsZero() || t.Before(best) {
			best = t
		}
	}
	return best
}

// drainReady executes every currently-queued actor exactly once, in
// queued order, and applies each one's requested Action (spec 4.2 step
// (d), (e)).
func (r *Reactor) drainReady(now time.Time) {
	queue := r.readyQueue
	r.readyQueue = nil

	for _, idx := range queue {
		delete(r.queued, idx)

		r.mu.Lock()
		e, ok := r.actors[idx]
		r.mu.Unlock()
		if !ok {
			continue
		}

		events := e.mask
		e.mask = 0
		e.setState(ActorRunning)

		action := e.actor.Execute(events, now)

		switch action {
		case ActionCloseAndUnregister:
			e.setState(ActorStopped)
			r.Unregister(e.id)
		case ActionRescheduleNow:
			e.setState(ActorRegistered)
			r.enqueueReady(idx)
		case ActionWaitForEvents:
			e.setState(ActorRegistered)
		}
	}
}

// RunOnce executes a single reactor tick: drain mailboxes, poll for
// readiness and expired timers, then dispatch every actor made ready by
// either.
func (r *Reactor) RunOnce(scratch []pollEvent) []pollEvent {
	r.drainMailboxes()
	scratch = r.pollOnce(scratch)
	r.drainReady(time.Now())
	return scratch
}

// Run drives RunOnce in a loop until stop is closed. It is meant to be
// called on its own goroutine, one per reactor, per spec 4.5's "each
// reactor owns one OS thread and runs a single-threaded event loop."
func (r *Reactor) Run(stop <-chan struct{}) {
	scratch := make([]pollEvent, 0, 128)
	for {
		select {
		case <-stop:
			return
		default:
		}
		scratch = r.RunOnce(scratch)
	}
}
