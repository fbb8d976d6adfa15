package demoproto

import (
	"time"

	"github.com/solidframe/solidframe/internal/reactor"
	"github.com/solidframe/solidframe/internal/serial"
	"golang.org/x/sys/unix"
)

// ListenerActor hosts a listening socket and fans incoming connections
// out to ConnActors placed on sched, spec 4.4's accept fan-out: at most
// reactor.MaxAcceptBatch connections are pulled off the backlog per
// wake-up, so one busy listener cannot starve the other actors hosted on
// its reactor.
type ListenerActor struct {
	fd    int
	sched *reactor.Scheduler
	types *serial.TypeIDMap
	svc   *CommandService

	host reactor.Host
	stub *reactor.SocketStub
}

// NewListenerActor wraps an already-bound, already-listening, non-blocking
// fd. svc, if non-nil, is handed to every spawned ConnActor so command
// evaluation happens off the accepting reactor's goroutine.
func NewListenerActor(fd int, sched *reactor.Scheduler, types *serial.TypeIDMap, svc *CommandService) *ListenerActor {
	return &ListenerActor{fd: fd, sched: sched, types: types, svc: svc}
}

// Attach registers the listening socket with r under actor id id.
func (l *ListenerActor) Attach(r *reactor.Reactor, id reactor.ActorID) error {
	stub, err := r.RegisterSocket(id, l.fd, reactor.SocketKindAcceptor)
	if err != nil {
		return err
	}
	l.host = r
	l.stub = stub
	return nil
}

// Execute implements reactor.Actor: on readability, accept up to
// MaxAcceptBatch pending connections, placing each on the scheduler's
// least-loaded reactor.
func (l *ListenerActor) Execute(events reactor.EventMask, now time.Time) reactor.Action {
	if !events.Has(reactor.EventInDone) {
		return reactor.ActionWaitForEvents
	}

	accepted := 0
	for accepted < reactor.MaxAcceptBatch {
		connFD, result := l.host.Accept(l.stub)
		if result != reactor.IOSuccess {
			break
		}

		accepted++
		if spawnErr := l.spawn(connFD); spawnErr != nil {
			unix.Close(connFD)
		}
	}

	if accepted == reactor.MaxAcceptBatch {
		// Backlog may still hold more; come back promptly rather than
		// waiting for an unrelated readiness edge.
		return reactor.ActionRescheduleNow
	}
	return reactor.ActionWaitForEvents
}

func (l *ListenerActor) spawn(connFD int) error {
	conn, err := NewConnActor(connFD, l.types, l.svc)
	if err != nil {
		return err
	}

	r, id := l.sched.Place(conn)
	return conn.Attach(r, id)
}
