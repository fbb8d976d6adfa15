package demoproto

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/solidframe/solidframe/internal/bufpool"
	"github.com/solidframe/solidframe/internal/reactor"
	"github.com/solidframe/solidframe/internal/serial"
	"golang.org/x/sys/unix"
)

// readChunk is how much a ConnActor tries to read off its socket per
// readable wake-up.
const readChunk = 4096

// errSendFailed/errRecvFailed stand in for the syscall error Host.Send/
// Host.Recv collapse into IOError: spec 4.2's per-call IOResult is a
// three-state Success/Wait/Error outcome with no underlying error value
// to surface, so these are what ConnActor reports upward instead.
var (
	errSendFailed = errors.New("demoproto: send failed")
	errRecvFailed = errors.New("demoproto: recv failed")
)

// ConnActor hosts one accepted connection as a reactor actor: it parses
// a stream of Command values off the wire and writes a text reply back
// for each one, spec §2's "typical request" walk through C1-C4 made
// concrete.
type ConnActor struct {
	fd    int
	id    reactor.ActorID
	stub  *reactor.SocketStub
	host  reactor.Host
	pool  *bufpool.Pool
	types *serial.TypeIDMap
	svc   *CommandService

	ser *serial.Serializer
	de  *serial.Deserializer

	// pendingCmd and pendingPushed track a command parse still in
	// flight across Execute calls: the deserializer's PushPointer frame
	// must be queued exactly once per command, since queuing a second
	// one before the first resolves would orphan whichever variable the
	// first frame was still pointed at (the trampoline processes frames
	// in FIFO order, so a fresh PushPointer call queues behind, rather
	// than replaces, a still-pending one).
	pendingCmd    interface{}
	pendingPushed bool

	// repliesMu guards replyQueue, which accumulates command results
	// computed asynchronously by svc; Execute drains it on the
	// EventUserSignal wake-up svc's completion posts back.
	repliesMu  sync.Mutex
	replyQueue []string

	closed bool
}

// NewConnActor constructs the per-connection actor; it still needs to be
// registered with a reactor and have its socket attached before it will
// see any events (see Attach). svc is where Command.Apply is actually
// evaluated; a nil svc falls back to applying commands inline on the
// reactor's own goroutine.
func NewConnActor(fd int, types *serial.TypeIDMap, svc *CommandService) (*ConnActor, error) {
	c := &ConnActor{fd: fd, types: types, svc: svc}

	ser, err := serial.NewSerializer(c.send, types)
	if err != nil {
		return nil, err
	}
	c.ser = ser
	c.de = serial.NewDeserializer(types, serial.DefaultLimits())

	return c, nil
}

// send implements protocol.SendFunc on top of the reactor's Host socket
// API: a partial or fully-blocked write reports (n, nil), exactly as
// protocol.Writer's attemptFlush expects for a non-blocking send.
func (c *ConnActor) send(p []byte) (int, error) {
	n, result := c.host.Send(c.stub, p)
	if result == reactor.IOError {
		return n, errSendFailed
	}
	return n, nil
}

// Attach registers the connection's socket with r under actor id id, and
// remembers both so Execute can drive reads/writes and adjust poll
// interest.
func (c *ConnActor) Attach(r *reactor.Reactor, id reactor.ActorID) error {
	stub, err := r.RegisterSocket(id, c.fd, reactor.SocketKindStream)
	if err != nil {
		return err
	}
	c.host = r
	c.pool = r.Pool()
	c.id = id
	c.stub = stub
	return nil
}

// Execute implements reactor.Actor. It reads any available bytes into
// the deserializer, parses as many complete commands as have arrived,
// queues a reply for each, and flushes queued output when the socket is
// writable.
func (c *ConnActor) Execute(events reactor.EventMask, now time.Time) reactor.Action {
	if c.closed {
		return reactor.ActionCloseAndUnregister
	}

	if events.Has(reactor.EventErrDone) {
		c.closed = true
		unix.Close(c.fd)
		return reactor.ActionCloseAndUnregister
	}

	if events.Has(reactor.EventInDone) {
		if err := c.readAvailable(); err != nil {
			c.closed = true
			unix.Close(c.fd)
			return reactor.ActionCloseAndUnregister
		}
		c.processCommands()
	}

	if events.Has(reactor.EventUserSignal) {
		c.drainReplies()
	}

	if !c.ser.Empty() {
		outcome := c.ser.Run()
		if outcome == serial.Failure {
			c.closed = true
			unix.Close(c.fd)
			return reactor.ActionCloseAndUnregister
		}
	}

	writable := !c.ser.Empty()
	if err := c.host.SetInterest(c.stub, true, writable); err != nil {
		c.closed = true
		return reactor.ActionCloseAndUnregister
	}

	return reactor.ActionWaitForEvents
}

func (c *ConnActor) readAvailable() error {
	buf, classIndex := c.pool.Acquire(readChunk)
	buf = buf[:cap(buf)]
	defer func() {
		if classIndex >= 0 {
			c.pool.Release(buf, classIndex)
		}
	}()

	for {
		n, result := c.host.Recv(c.stub, buf)
		if n > 0 {
			c.de.Feed(buf[:n])
		}

		switch result {
		case reactor.IOWait:
			return nil
		case reactor.IOError:
			return errRecvFailed
		}
		if n == 0 || n < len(buf) {
			return nil
		}
	}
}

// processCommands drains as many fully-buffered commands as are
// currently available, replying to each in turn. A command that isn't
// fully on the wire yet leaves the deserializer in Wait and processing
// stops until more bytes arrive.
func (c *ConnActor) processCommands() {
	for {
		if !c.pendingPushed {
			c.pendingCmd = nil
			c.de.PushPointer(&c.pendingCmd)
			c.pendingPushed = true
		}

		outcome := c.de.Run()
		switch outcome {
		case serial.Success:
			c.pendingPushed = false

			command, ok := c.pendingCmd.(Command)
			if !ok {
				c.ser.PushString(errors.New("demoproto: not a Command").Error())
				c.ser.PushFlushAll()
				continue
			}
			c.dispatch(command)
		case serial.Wait:
			return
		default:
			return
		}
	}
}

// dispatch evaluates command's reply. When a CommandService is wired in,
// evaluation runs on the service's own goroutine and the reply is queued
// for a later Execute call, woken by EventUserSignal; otherwise the
// command is applied inline, matching the single-reactor-goroutine path
// used before a service existed.
func (c *ConnActor) dispatch(command Command) {
	if c.svc == nil {
		c.ser.PushString(command.Apply())
		c.ser.PushFlushAll()
		return
	}

	c.svc.Apply(context.Background(), command, func(reply string, err error) {
		if err != nil {
			reply = err.Error()
		}

		c.repliesMu.Lock()
		c.replyQueue = append(c.replyQueue, reply)
		c.repliesMu.Unlock()

		c.host.PostEvent(c.id, reactor.EventUserSignal)
	})
}

// drainReplies flushes every reply CommandService has completed since the
// last drain onto the wire.
func (c *ConnActor) drainReplies() {
	c.repliesMu.Lock()
	queue := c.replyQueue
	c.replyQueue = nil
	c.repliesMu.Unlock()

	for _, reply := range queue {
		c.ser.PushString(reply)
		c.ser.PushFlushAll()
	}
}
