package reactor

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// TestMailboxCrossThreadPostOrderingNoDuplicates covers S5: posting two
// distinct events to an actor from another thread before the owning
// reactor next drains its mailbox must deliver both to a single
// Execute call, with no duplicate delivery and no event lost.
func TestMailboxCrossThreadPostOrderingNoDuplicates(t *testing.T) {
	t.Parallel()

	r := newTestReactor(t)
	a := newScriptedActor(ActionWaitForEvents)
	id := r.Register(a)

	done := make(chan struct{})
	go func() {
		defer close(done)
		r.PostEvent(id, EventInDone)
		r.PostEvent(id, EventOutDone)
	}()
	<-done

	r.drainMailboxes()
	r.drainReady(time.Now())

	require.Equal(t, 1, a.callCount(), "both posts must be folded into a single Execute call")
	require.True(t, a.calls[0].Has(EventInDone))
	require.True(t, a.calls[0].Has(EventOutDone))

	// A second drain with nothing newly posted must not re-deliver.
	r.drainMailboxes()
	r.drainReady(time.Now())
	require.Equal(t, 1, a.callCount())
}

// TestMailboxRepeatedPostSameEventIsIdempotent verifies that posting the
// same event twice before a drain still yields exactly one delivery of
// that event, not two.
func TestMailboxRepeatedPostSameEventIsIdempotent(t *testing.T) {
	t.Parallel()

	r := newTestReactor(t)
	a := newScriptedActor(ActionWaitForEvents)
	id := r.Register(a)

	r.PostEvent(id, EventKill)
	r.PostEvent(id, EventKill)

	r.drainMailboxes()
	r.drainReady(time.Now())

	require.Equal(t, 1, a.callCount())
	require.True(t, a.calls[0].Has(EventKill))
}
