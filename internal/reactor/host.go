package reactor

import (
	"time"

	"golang.org/x/sys/unix"
)

// Host is the per-actor socket API spec 4.2 calls the "base-actor API":
// every non-blocking I/O primitive an actor needs (Connect, Accept, Send,
// Recv, SendTo, RecvFrom, SecureAccept, SecureConnect), plus the timeout
// setters and registration calls an actor uses to manage its sockets,
// gated through the reactor that owns them so a socket is only ever
// touched from the goroutine hosting its actor. *Reactor implements Host
// directly; actors are handed one at Attach time instead of reaching for
// reactor internals.
type Host interface {
	Connect(s *SocketStub, addr unix.Sockaddr) IOResult
	Accept(s *SocketStub) (fd int, result IOResult)
	Send(s *SocketStub, data []byte) (n int, result IOResult)
	Recv(s *SocketStub, buf []byte) (n int, result IOResult)
	SendTo(s *SocketStub, data []byte, addr unix.Sockaddr) (n int, result IOResult)
	RecvFrom(s *SocketStub, buf []byte) (n int, addr unix.Sockaddr, result IOResult)
	SecureAccept(s *SocketStub, sec SecureSocket) IOResult
	SecureConnect(s *SocketStub, sec SecureSocket) IOResult

	RegisterSocket(id ActorID, fd int, kind SocketKind) (*SocketStub, error)
	SetInterest(s *SocketStub, readable, writable bool) error
	SetRecvTimeout(s *SocketStub, deadline time.Time)
	SetSendTimeout(s *SocketStub, deadline time.Time)
	PostEvent(id ActorID, ev EventMask)
}

var _ Host = (*Reactor)(nil)

// Connect issues a non-blocking connect on s's fd. A connect still in
// flight (EINPROGRESS, or EALREADY on a retry) reports IOWait; completion
// is observed the ordinary way, through the socket's next EventOutDone,
// rather than a second return value here.
func (r *Reactor) Connect(s *SocketStub, addr unix.Sockaddr) IOResult {
	err := unix.Connect(s.fd, addr)
	switch err {
	case nil:
		return IOSuccess
	case unix.EINPROGRESS, unix.EALREADY:
		return IOWait
	default:
		return IOError
	}
}

// Accept pulls one pending connection off s's listening fd, non-blocking.
func (r *Reactor) Accept(s *SocketStub) (int, IOResult) {
	fd, _, err := unix.Accept4(s.fd, unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC)
	switch err {
	case nil:
		return fd, IOSuccess
	case unix.EAGAIN:
		return 0, IOWait
	default:
		return 0, IOError
	}
}

// Send writes data to s's fd. A partial or fully-blocked write is
// recorded in the stub's sendBuf/sendLen pending-request fields (spec 3's
// SocketStub invariant: a non-empty sendBuf means a send is in flight),
// cleared again once the write completes.
func (r *Reactor) Send(s *SocketStub, data []byte) (int, IOResult) {
	n, err := unix.Write(s.fd, data)
	if n > 0 {
		s.sendBytes += uint64(n)
	}

	switch {
	case err == nil && n == len(data):
		s.sendBuf, s.sendLen = nil, 0
		return n, IOSuccess
	case err == nil:
		s.sendBuf, s.sendLen = data[n:], len(data)-n
		return n, IOWait
	case err == unix.EAGAIN:
		s.sendBuf, s.sendLen = data, len(data)
		return 0, IOWait
	default:
		s.sendBuf, s.sendLen = nil, 0
		return n, IOError
	}
}

// Recv reads into buf from s's fd, tracking an in-flight attempt in
// recvBuf/recvLen the same way Send tracks sendBuf/sendLen.
func (r *Reactor) Recv(s *SocketStub, buf []byte) (int, IOResult) {
	n, err := unix.Read(s.fd, buf)
	if n > 0 {
		s.recvBytes += uint64(n)
	}

	switch {
	case err == nil:
		s.recvBuf, s.recvLen = nil, 0
		return n, IOSuccess
	case err == unix.EAGAIN:
		s.recvBuf, s.recvLen = buf, len(buf)
		return 0, IOWait
	default:
		s.recvBuf, s.recvLen = nil, 0
		return 0, IOError
	}
}

// SendTo writes data as a single datagram to addr via s's fd.
func (r *Reactor) SendTo(s *SocketStub, data []byte, addr unix.Sockaddr) (int, IOResult) {
	err := unix.Sendto(s.fd, data, 0, addr)
	switch err {
	case nil:
		s.sendBytes += uint64(len(data))
		return len(data), IOSuccess
	case unix.EAGAIN:
		return 0, IOWait
	default:
		return 0, IOError
	}
}

// RecvFrom reads one pending datagram from s's fd into buf.
func (r *Reactor) RecvFrom(s *SocketStub, buf []byte) (int, unix.Sockaddr, IOResult) {
	n, from, err := unix.Recvfrom(s.fd, buf, 0)
	switch err {
	case nil:
		s.recvBytes += uint64(n)
		return n, from, IOSuccess
	case unix.EAGAIN:
		return 0, nil, IOWait
	default:
		return 0, nil, IOError
	}
}

// SecureAccept drives sec's handshake on the accepting side of s.
func (r *Reactor) SecureAccept(s *SocketStub, sec SecureSocket) IOResult {
	return secureHandshake(sec)
}

// SecureConnect drives sec's handshake on the connecting side of s.
func (r *Reactor) SecureConnect(s *SocketStub, sec SecureSocket) IOResult {
	return secureHandshake(sec)
}

func secureHandshake(sec SecureSocket) IOResult {
	switch err := sec.Handshake(); err {
	case nil:
		return IOSuccess
	case ErrHandshakePending:
		return IOWait
	default:
		return IOError
	}
}
