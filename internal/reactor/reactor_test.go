package reactor

import (
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// scriptedActor runs a caller-supplied sequence of Actions, recording
// every Execute call it receives.
type scriptedActor struct {
	mu      sync.Mutex
	actions []Action
	calls   []EventMask
}

func (a *scriptedActor) Execute(events EventMask, now time.Time) Action {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.calls = append(a.calls, events)
	if len(a.actions) == 0 {
		return ActionWaitForEvents
	}
	act := a.actions[0]
	a.actions = a.actions[1:]
	return act
}

func (a *scriptedActor) callCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.calls)
}

func newScriptedActor(actions ...Action) *scriptedActor {
	return &scriptedActor{actions: actions}
}

func newTestReactor(t *testing.T) *Reactor {
	t.Helper()
	r, err := NewReactor()
	require.NoError(t, err)
	t.Cleanup(func() { r.Close() })
	return r
}

// TestReactorDispatchFairness verifies the reactor-fairness invariant:
// within one drain pass, every actor made ready beforehand runs exactly
// once, in the order it was enqueued.
func TestReactorDispatchFairness(t *testing.T) {
	t.Parallel()

	r := newTestReactor(t)

	a1 := newScriptedActor(ActionWaitForEvents)
	a2 := newScriptedActor(ActionWaitForEvents)
	a3 := newScriptedActor(ActionWaitForEvents)

	id1 := r.Register(a1)
	id2 := r.Register(a2)
	id3 := r.Register(a3)

	r.enqueueReady(id1.Index)
	r.enqueueReady(id2.Index)
	r.enqueueReady(id3.Index)

	// Enqueueing again before the drain must not cause a second
	// dispatch this tick.
	r.enqueueReady(id1.Index)

	r.drainReady(time.Now())

	require.Equal(t, 1, a1.callCount())
	require.Equal(t, 1, a2.callCount())
	require.Equal(t, 1, a3.callCount())
}

// TestReactorRescheduleRunsNextTickOnly verifies that ActionRescheduleNow
// re-arms an actor for a later drain pass rather than looping it inside
// the current one.
func TestReactorRescheduleRunsNextTickOnly(t *testing.T) {
	t.Parallel()

	r := newTestReactor(t)
	a := newScriptedActor(ActionRescheduleNow, ActionWaitForEvents)
	id := r.Register(a)

	r.enqueueReady(id.Index)
	r.drainReady(time.Now())
	require.Equal(t, 1, a.callCount(), "reschedule must not re-run within the same drain pass")

	r.drainReady(time.Now())
	require.Equal(t, 2, a.callCount(), "a rescheduled actor must run again on the next drain pass")
}

// TestReactorCloseAndUnregister verifies that an actor returning
// ActionCloseAndUnregister is removed from the reactor and its slot
// becomes reusable.
func TestReactorCloseAndUnregister(t *testing.T) {
	t.Parallel()

	r := newTestReactor(t)
	a := newScriptedActor(ActionCloseAndUnregister)
	id := r.Register(a)
	require.Equal(t, 1, r.Load())

	r.enqueueReady(id.Index)
	r.drainReady(time.Now())

	require.Equal(t, 0, r.Load())

	b := newScriptedActor(ActionWaitForEvents)
	idB := r.Register(b)
	require.Equal(t, id.Index, idB.Index, "freed index slots must be reused")
	require.NotEqual(t, id.Generation, idB.Generation, "a reused slot must bump its generation")
}

// TestReactorPostEventCrossThread verifies that PostEvent, called from
// another goroutine, is observed on the next mailbox drain and causes
// the posting actor to run with exactly the posted mask.
func TestReactorPostEventCrossThread(t *testing.T) {
	t.Parallel()

	r := newTestReactor(t)
	a := newScriptedActor(ActionWaitForEvents)
	id := r.Register(a)

	done := make(chan struct{})
	go func() {
		r.PostEvent(id, EventKill)
		close(done)
	}()
	<-done

	r.drainMailboxes()
	r.drainReady(time.Now())

	require.Equal(t, 1, a.callCount())
	require.True(t, a.calls[0].Has(EventKill))
}

// TestReactorSocketTimeoutFires exercises the real poller end to end: a
// pipe read end is registered with a recv timeout already in the past,
// and RunOnce must deliver EventTimeoutRecv even though no data ever
// arrives (S4-style scenario).
func TestReactorSocketTimeoutFires(t *testing.T) {
	t.Parallel()

	r := newTestReactor(t)
	a := newScriptedActor(ActionWaitForEvents)
	id := r.Register(a)

	pr, pw, err := os.Pipe()
	require.NoError(t, err)
	t.Cleanup(func() { pr.Close(); pw.Close() })

	stub, err := r.RegisterSocket(id, int(pr.Fd()), SocketKindStream)
	require.NoError(t, err)

	r.SetRecvTimeout(stub, time.Now().Add(-time.Millisecond))

	r.RunOnce(nil)

	require.Equal(t, 1, a.callCount())
	require.True(t, a.calls[0].Has(EventTimeoutRecv))

	// One-shot: with the timeout consumed and no new deadline armed, a
	// second tick must wait indefinitely rather than refiring the
	// timeout -- proven here by making the pipe readable so the tick
	// completes, and checking the resulting event carries no timeout
	// flag at all.
	_, err = pw.Write([]byte("x"))
	require.NoError(t, err)
	r.RunOnce(nil)

	require.Equal(t, 2, a.callCount())
	require.False(t, a.calls[1].Has(EventTimeoutRecv))
	require.True(t, a.calls[1].Has(EventInDone))
}

// TestReactorSocketReadinessFires verifies real readiness delivery:
// writing to a registered pipe wakes the owning actor with EventInDone.
func TestReactorSocketReadinessFires(t *testing.T) {
	t.Parallel()

	r := newTestReactor(t)
	a := newScriptedActor(ActionWaitForEvents)
	id := r.Register(a)

	pr, pw, err := os.Pipe()
	require.NoError(t, err)
	t.Cleanup(func() { pr.Close(); pw.Close() })

	_, err = r.RegisterSocket(id, int(pr.Fd()), SocketKindStream)
	require.NoError(t, err)

	_, err = pw.Write([]byte("hi"))
	require.NoError(t, err)

	deadline := time.Now().Add(2 * time.Second)
	for a.callCount() == 0 && time.Now().Before(deadline) {
		r.RunOnce(nil)
	}

	require.Equal(t, 1, a.callCount())
	require.True(t, a.calls[0].Has(EventInDone))
}

// TestReactorUnregisterUnknownIDIsNoop verifies a stale ActorID
// (mismatched generation) is silently ignored.
func TestReactorUnregisterUnknownIDIsNoop(t *testing.T) {
	t.Parallel()

	r := newTestReactor(t)
	a := newScriptedActor(ActionWaitForEvents)
	id := r.Register(a)

	stale := id
	stale.Generation++
	r.Unregister(stale)

	require.Equal(t, 1, r.Load())
}
