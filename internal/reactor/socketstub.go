package reactor

// SocketStub is a reactor-managed socket slot, spec 3's "Socket slot
// (aio::Socket / SocketStub): a record associating a file
// descriptor/handle with: its kind ... a pending receive buffer
// pointer+length, a pending send buffer pointer+length, byte counters,
// a poll-interest mask, per-direction deadlines ..., a pending-request
// code, and per-direction indices into the reactor's timeout
// bookkeeping."
//
// Invariant (spec 3): a non-empty recvBuf means a recv is in flight; the
// same holds for sendBuf and a send. Only the owning reactor goroutine
// ever touches a SocketStub's fields after registration.
type SocketStub struct {
	fd   int
	kind SocketKind

	actorID ActorID

	recvBuf []byte
	recvLen int

	sendBuf []byte
	sendLen int

	recvBytes uint64
	sendBytes uint64

	interest EventMask

	recvDeadline int64 // unix nanos, 0 == none
	sendDeadline int64

	recvTimeoutIdx int
	sendTimeoutIdx int
}

func newSocketStub(fd int, kind SocketKind, owner ActorID) *SocketStub {
	return &SocketStub{
		fd:             fd,
		kind:           kind,
		actorID:        owner,
		recvTimeoutIdx: noTimeoutIndex,
		sendTimeoutIdx: noTimeoutIndex,
	}
}

// setTimeoutIndex implements timeoutIndexSetter: the reactor's timeout
// indices call this after an insert/swap-remove so the stub always knows
// its own current slot.
func (s *SocketStub) setTimeoutIndex(direction Direction, idx int) {
	if direction == DirectionSend {
		s.sendTimeoutIdx = idx
		return
	}
	s.recvTimeoutIdx = idx
}

func (s *SocketStub) timeoutIndex(direction Direction) int {
	if direction == DirectionSend {
		return s.sendTimeoutIdx
	}
	return s.recvTimeoutIdx
}

// recvPending reports whether a recv is currently in flight on this
// stub (spec 3's non-empty-buffer invariant).
func (s *SocketStub) recvPending() bool {
	return s.recvBuf != nil
}

// sendPending reports whether a send is currently in flight on this
// stub.
func (s *SocketStub) sendPending() bool {
	return s.sendBuf != nil
}
