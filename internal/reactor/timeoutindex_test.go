package reactor

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// fakeStub records the last index it was told for each direction, the
// way a real SocketStub's setTimeoutIndex would.
type fakeStub struct {
	recvIdx int
	sendIdx int
}

func newFakeStub() *fakeStub {
	return &fakeStub{recvIdx: noTimeoutIndex, sendIdx: noTimeoutIndex}
}

func (s *fakeStub) setTimeoutIndex(direction Direction, idx int) {
	if direction == DirectionSend {
		s.sendIdx = idx
		return
	}
	s.recvIdx = idx
}

// TestTimeoutIndexSwapRemoveFixesBackPointer verifies that removing a
// non-last entry relocates the last entry into the freed slot and
// updates that entry's owning stub's back-pointer, per spec 4.2's
// "removal swaps the last element into the freed slot and fixes the
// swapped stub's back-pointer."
func TestTimeoutIndexSwapRemoveFixesBackPointer(t *testing.T) {
	t.Parallel()

	ti := newTimeoutIndex(DirectionRecv)

	stubA, stubB, stubC := newFakeStub(), newFakeStub(), newFakeStub()
	idxA := ti.insert(100, 10, stubA)
	idxB := ti.insert(200, 20, stubB)
	idxC := ti.insert(300, 30, stubC)

	require.Equal(t, 0, idxA)
	require.Equal(t, 1, idxB)
	require.Equal(t, 2, idxC)
	require.Equal(t, 0, stubA.recvIdx)
	require.Equal(t, 1, stubB.recvIdx)
	require.Equal(t, 2, stubC.recvIdx)

	// Remove the middle entry (B); the last entry (C) must be swapped
	// into its place, and stubC must learn its new index is 1.
	ti.remove(idxB, stubB)

	require.Equal(t, 2, ti.len())
	require.Equal(t, 1, stubC.recvIdx, "swapped stub must have its back-pointer fixed")
	require.Equal(t, int64(10), ti.entries[0].deadline)
	require.Equal(t, int64(30), ti.entries[1].deadline)
}

// TestTimeoutIndexDirectionsAreIndependent verifies that the recv and
// send timeout indices never cross-contaminate, which is precisely the
// bug spec Design Notes §9 calls out and says not to replicate (a single
// careless assignment writing the recv timestamp into both the recv and
// send position fields).
func TestTimeoutIndexDirectionsAreIndependent(t *testing.T) {
	t.Parallel()

	recvIdx := newTimeoutIndex(DirectionRecv)
	sendIdx := newTimeoutIndex(DirectionSend)

	stub := newFakeStub()
	recvIdx.insert(1, 1000, stub)
	sendIdx.insert(1, 2000, stub)

	require.Equal(t, 0, stub.recvIdx)
	require.Equal(t, 0, stub.sendIdx)

	// Arming (inserting) the send-side timeout must not perturb the
	// recv-side bookkeeping at all.
	require.Equal(t, 1, recvIdx.len())
	require.Equal(t, 1, sendIdx.len())

	recvDeadline, ok := recvIdx.earliestDeadline()
	require.True(t, ok)
	require.Equal(t, int64(1000), recvDeadline)

	sendDeadline, ok := sendIdx.earliestDeadline()
	require.True(t, ok)
	require.Equal(t, int64(2000), sendDeadline)
}

// TestTimeoutIndexExpiredIsOneShot verifies that an expired entry is
// removed (not merely reported), matching invariant I "timeout at most
// once."
func TestTimeoutIndexExpiredIsOneShot(t *testing.T) {
	t.Parallel()

	ti := newTimeoutIndex(DirectionRecv)
	stub := newFakeStub()
	ti.insert(42, 500, stub)

	fired := ti.expired(500, stub)
	require.Equal(t, []int{42}, fired)
	require.Equal(t, 0, ti.len())

	// A second pass at the same "now" must not re-fire it.
	fired = ti.expired(500, stub)
	require.Empty(t, fired)
}

// TestTimeoutIndexEarliestDeadlineRecomputedFromSurvivors verifies the
// cache is recomputed, not incrementally maintained, so it reflects
// removals correctly.
func TestTimeoutIndexEarliestDeadlineRecomputedFromSurvivors(t *testing.T) {
	t.Parallel()

	ti := newTimeoutIndex(DirectionRecv)
	a, b := newFakeStub(), newFakeStub()
	idxA := ti.insert(1, 100, a)
	ti.insert(2, 200, b)

	d, ok := ti.earliestDeadline()
	require.True(t, ok)
	require.Equal(t, int64(100), d)

	ti.remove(idxA, a)

	d, ok = ti.earliestDeadline()
	require.True(t, ok)
	require.Equal(t, int64(200), d)
}
