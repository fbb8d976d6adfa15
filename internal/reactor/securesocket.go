package reactor

import (
	"crypto/tls"
	"errors"
	"sync"
)

// SecureSocket is the thin secure-channel abstraction spec 6 calls for:
// handshake plus read/write, and a want-read/want-write pair an
// incremental (truly non-blocking) TLS state machine would use to tell
// Host.SecureAccept/SecureConnect which poll interest to re-arm on the
// next IOWait. A tls.Conn-backed implementation satisfies it (see
// TLSSecureSocket below); the interface is what Host drives, so any other
// secure transport can be swapped in without the reactor knowing about
// TLS at all.
type SecureSocket interface {
	Handshake() error
	Read(p []byte) (int, error)
	Write(p []byte) (int, error)
	WantRead() bool
	WantWrite() bool
}

// ErrHandshakePending is returned by SecureSocket.Handshake while a
// handshake has been started but hasn't finished; Host.SecureAccept/
// SecureConnect translate it to IOWait rather than IOError.
var ErrHandshakePending = errors.New("reactor: secure handshake pending")

// TLSSecureSocket adapts a *tls.Conn to SecureSocket. crypto/tls's Conn
// does not support resuming a partially-done handshake across repeated
// non-blocking calls the way an incremental TLS state machine would, so
// the handshake instead runs once to completion on its own goroutine —
// the same off-reactor-goroutine pattern demoproto.CommandService uses
// for blocking work — and onDone (typically reactor.PostEvent with
// EventUserSignal) is called when it finishes, so the owning actor's next
// Execute can observe the result via a further Handshake call.
type TLSSecureSocket struct {
	conn   *tls.Conn
	onDone func()

	start sync.Once
	done  chan struct{}
	err   error
}

// NewTLSSecureSocket wraps conn. onDone, if non-nil, is invoked exactly
// once, from the handshake goroutine, as soon as the handshake finishes
// (successfully or not).
func NewTLSSecureSocket(conn *tls.Conn, onDone func()) *TLSSecureSocket {
	return &TLSSecureSocket{conn: conn, onDone: onDone, done: make(chan struct{})}
}

// Handshake kicks off conn.Handshake() on first call and returns
// ErrHandshakePending until the background goroutine completes it, after
// which it returns the same cached result on every subsequent call.
func (s *TLSSecureSocket) Handshake() error {
	s.start.Do(func() {
		go func() {
			s.err = s.conn.Handshake()
			close(s.done)
			if s.onDone != nil {
				s.onDone()
			}
		}()
	})

	select {
	case <-s.done:
		return s.err
	default:
		return ErrHandshakePending
	}
}

func (s *TLSSecureSocket) Read(p []byte) (int, error) {
	return s.conn.Read(p)
}

func (s *TLSSecureSocket) Write(p []byte) (int, error) {
	return s.conn.Write(p)
}

// WantRead/WantWrite always report false: the handshake runs to
// completion off-goroutine rather than pausing mid-record on a partial
// read or write, so there's no poll-interest signal to surface. A
// SecureSocket backed by a genuinely incremental (non-blocking) TLS
// implementation would use these instead of the goroutine indirection.
func (s *TLSSecureSocket) WantRead() bool  { return false }
func (s *TLSSecureSocket) WantWrite() bool { return false }
