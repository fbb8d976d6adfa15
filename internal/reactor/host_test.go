package reactor

import (
	"crypto/tls"
	"errors"
	"net"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

// newStubPair wires up a connected non-blocking socketpair and registers
// one end as a SocketStub against a fresh Reactor, mirroring how
// demoproto.ConnActor's Attach does it, minus the actor bookkeeping this
// test doesn't need.
func newStubPair(t *testing.T) (r *Reactor, stub *SocketStub, peerFD int) {
	t.Helper()

	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM|unix.SOCK_NONBLOCK, 0)
	require.NoError(t, err)
	t.Cleanup(func() {
		unix.Close(fds[1])
	})

	r, err = NewReactor()
	require.NoError(t, err)
	t.Cleanup(func() { r.Close() })

	id := r.Register(&scriptedActor{})

	stub, err = r.RegisterSocket(id, fds[0], SocketKindStream)
	require.NoError(t, err)

	return r, stub, fds[1]
}

func TestHostSendRecvRoundTrip(t *testing.T) {
	t.Parallel()

	r, stub, peerFD := newStubPair(t)

	var host Host = r

	n, result := host.Send(stub, []byte("hello"))
	require.Equal(t, IOSuccess, result)
	require.Equal(t, 5, n)
	require.False(t, stub.sendPending())

	buf := make([]byte, 16)
	got, err := unix.Read(peerFD, buf)
	require.NoError(t, err)
	require.Equal(t, "hello", string(buf[:got]))

	_, err = unix.Write(peerFD, []byte("world"))
	require.NoError(t, err)

	n, result = host.Recv(stub, buf)
	require.Equal(t, IOSuccess, result)
	require.Equal(t, "world", string(buf[:n]))
	require.False(t, stub.recvPending())
}

func TestHostRecvWaitsOnEmptySocket(t *testing.T) {
	t.Parallel()

	r, stub, _ := newStubPair(t)
	var host Host = r

	buf := make([]byte, 16)
	n, result := host.Recv(stub, buf)
	require.Equal(t, IOWait, result)
	require.Equal(t, 0, n)
	require.True(t, stub.recvPending())
}

func TestHostSendTracksPartialWriteThenClears(t *testing.T) {
	t.Parallel()

	r, stub, _ := newStubPair(t)

	var host Host = r

	// A send this large cannot complete in one non-blocking write once
	// the kernel's socket buffer fills; either it succeeds in full (a
	// generous loopback buffer) or it reports a partial write via IOWait
	// with sendPending() true. One of the two must hold either way.
	big := make([]byte, 64<<20)
	n, result := host.Send(stub, big)
	require.Contains(t, []IOResult{IOSuccess, IOWait}, result)
	if result == IOWait {
		require.True(t, stub.sendPending())
		require.Less(t, n, len(big))
	} else {
		require.False(t, stub.sendPending())
		require.Equal(t, len(big), n)
	}
}

func TestHostAcceptConnect(t *testing.T) {
	t.Parallel()

	listenFD, err := unix.Socket(unix.AF_UNIX, unix.SOCK_STREAM|unix.SOCK_NONBLOCK, 0)
	require.NoError(t, err)
	defer unix.Close(listenFD)

	sockPath := t.TempDir() + "/host-accept.sock"
	require.NoError(t, unix.Bind(listenFD, &unix.SockaddrUnix{Name: sockPath}))
	require.NoError(t, unix.Listen(listenFD, 1))

	r, err := NewReactor()
	require.NoError(t, err)
	defer r.Close()

	id := r.Register(&scriptedActor{})
	listenStub, err := r.RegisterSocket(id, listenFD, SocketKindAcceptor)
	require.NoError(t, err)

	var host Host = r

	_, result := host.Accept(listenStub)
	require.Equal(t, IOWait, result)

	clientFD, err := unix.Socket(unix.AF_UNIX, unix.SOCK_STREAM|unix.SOCK_NONBLOCK, 0)
	require.NoError(t, err)
	defer unix.Close(clientFD)

	clientStub, err := r.RegisterSocket(id, clientFD, SocketKindStream)
	require.NoError(t, err)

	connResult := host.Connect(clientStub, &unix.SockaddrUnix{Name: sockPath})
	require.Contains(t, []IOResult{IOSuccess, IOWait}, connResult)

	acceptedFD, acceptResult := host.Accept(listenStub)
	require.Equal(t, IOSuccess, acceptResult)
	unix.Close(acceptedFD)
}

type fakeSecureSocket struct {
	handshakeCalls int
	readyAfter     int
	err            error
}

func (f *fakeSecureSocket) Handshake() error {
	f.handshakeCalls++
	if f.handshakeCalls < f.readyAfter {
		return ErrHandshakePending
	}
	return f.err
}

func (f *fakeSecureSocket) Read(p []byte) (int, error)  { return 0, nil }
func (f *fakeSecureSocket) Write(p []byte) (int, error) { return 0, nil }
func (f *fakeSecureSocket) WantRead() bool              { return false }
func (f *fakeSecureSocket) WantWrite() bool             { return false }

func TestSecureHandshakeTranslatesIOResult(t *testing.T) {
	t.Parallel()

	r, stub, _ := newStubPair(t)
	var host Host = r

	pending := &fakeSecureSocket{readyAfter: 3}
	require.Equal(t, IOWait, host.SecureAccept(stub, pending))
	require.Equal(t, IOWait, host.SecureAccept(stub, pending))
	require.Equal(t, IOSuccess, host.SecureAccept(stub, pending))

	failing := &fakeSecureSocket{readyAfter: 1, err: errors.New("boom")}
	require.Equal(t, IOError, host.SecureConnect(stub, failing))
}

// TestTLSSecureSocketPendingThenDone exercises TLSSecureSocket's
// Once-guarded background handshake goroutine without depending on a
// real certificate: a *tls.Conn wrapping one end of a net.Pipe blocks
// reading the server's hello until the pipe is closed out from under it,
// which is enough to drive Handshake from ErrHandshakePending to a
// terminal (non-nil) error, exercising exactly the pending-to-done
// transition and the single onDone call Host.SecureConnect relies on.
func TestTLSSecureSocketPendingThenDone(t *testing.T) {
	t.Parallel()

	clientConn, serverConn := net.Pipe()

	clientTLS := tls.Client(clientConn, &tls.Config{InsecureSkipVerify: true})

	done := make(chan struct{}, 1)
	sec := NewTLSSecureSocket(clientTLS, func() { done <- struct{}{} })

	require.Equal(t, ErrHandshakePending, sec.Handshake())

	serverConn.Close()
	clientConn.Close()

	<-done

	err := sec.Handshake()
	require.Error(t, err)
	require.Equal(t, err, sec.Handshake())
}
