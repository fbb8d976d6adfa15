package bufpool

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// TestSizeToIndexMonotone verifies that SizeToIndex is monotone and agrees
// with IndexToCapacity, per spec 4.1.
func TestSizeToIndexMonotone(t *testing.T) {
	t.Parallel()

	prevIdx := -1
	for size := 0; size <= 1<<13; size++ {
		idx, ok := SizeToIndex(size)
		if !ok {
			require.Greater(t, size, IndexToCapacity(numClasses-1))
			continue
		}

		require.GreaterOrEqual(t, IndexToCapacity(idx), size,
			"class capacity must be >= requested size")
		require.GreaterOrEqual(t, idx, prevIdx,
			"SizeToIndex must be monotone in size")
		prevIdx = idx
	}
}

// TestSizeToIndexBypass verifies that a request larger than the biggest
// class takes the unclassed bypass path.
func TestSizeToIndexBypass(t *testing.T) {
	t.Parallel()

	_, ok := SizeToIndex(IndexToCapacity(numClasses - 1))
	require.True(t, ok)

	_, ok = SizeToIndex(IndexToCapacity(numClasses-1) + 1)
	require.False(t, ok)
}

// TestPoolAcquireReleaseClassPreserved verifies that a buffer returned to
// the pool is associated with the same size class from which it was taken.
func TestPoolAcquireReleaseClassPreserved(t *testing.T) {
	t.Parallel()

	pool := NewPool(nil)

	buf, idx := pool.Acquire(100)
	require.GreaterOrEqual(t, cap(buf), 100)
	require.GreaterOrEqual(t, idx, 0)

	pool.Release(buf, idx)

	buf2, idx2 := pool.Acquire(100)
	require.Equal(t, idx, idx2)
	require.Same(t, &buf[:1][0], &buf2[:1][0],
		"expected the cached buffer to be handed back (LIFO reuse)")
}

// TestPoolBypassBufferNotCached verifies that oversized requests are never
// recycled through the class caches.
func TestPoolBypassBufferNotCached(t *testing.T) {
	t.Parallel()

	pool := NewPool(nil)

	big := IndexToCapacity(numClasses-1) + 1
	buf, idx := pool.Acquire(big)
	require.Equal(t, -1, idx)
	require.Equal(t, big, cap(buf))

	// Release on a bypass buffer is a documented no-op.
	pool.Release(buf, idx)
	for _, s := range pool.Stats() {
		require.Zero(t, s.Cached)
	}
}

// TestPoolAccounting exercises invariant I5: allocated - cached equals the
// number of buffers currently held by user code, for a single class.
func TestPoolAccounting(t *testing.T) {
	t.Parallel()

	pool := NewPool(nil)

	const class = 6 // 128 bytes
	capBytes := IndexToCapacity(class)

	var held [][]byte
	for i := 0; i < 10; i++ {
		buf, idx := pool.Acquire(capBytes)
		require.Equal(t, class, idx)
		held = append(held, buf)
	}

	stats := pool.Stats()[class]
	require.Equal(t, 10, stats.Outstanding)
	require.Equal(t, stats.Allocated-stats.Cached, stats.Outstanding)

	for _, buf := range held {
		pool.Release(buf, class)
	}

	stats = pool.Stats()[class]
	require.Zero(t, stats.Outstanding)
	require.Equal(t, stats.Allocated-stats.Cached, stats.Outstanding)
}

// TestPoolRecycleLIFO is the S6 scenario: request and release 100 buffers of
// class 6 (128B); at most the policy's cache capacity remain cached, the
// rest are freed, and a subsequent request returns cached buffers first.
func TestPoolRecycleLIFO(t *testing.T) {
	t.Parallel()

	pool := NewPool(nil)
	const class = 6

	var bufs [][]byte
	for i := 0; i < 100; i++ {
		buf, idx := pool.Acquire(IndexToCapacity(class))
		require.Equal(t, class, idx)
		bufs = append(bufs, buf)
	}

	for _, buf := range bufs {
		pool.Release(buf, class)
	}

	capLimit := DefaultCachePolicy().CacheCapacity(class)
	stats := pool.Stats()[class]
	require.LessOrEqual(t, stats.Cached, capLimit)
	require.Equal(t, 100-stats.Cached, stats.Freed)

	// A subsequent request of 100 should return the cached ones first.
	reused := 0
	for i := 0; i < 100; i++ {
		_, idx := pool.Acquire(IndexToCapacity(class))
		require.Equal(t, class, idx)
	}
	stats2 := pool.Stats()[class]
	reused = stats2.Allocated - (stats.Allocated)
	require.LessOrEqual(t, reused, 100)
}

// TestPoolCloseFreesCached verifies Close drops every cached buffer.
func TestPoolCloseFreesCached(t *testing.T) {
	t.Parallel()

	pool := NewPool(nil)
	buf, idx := pool.Acquire(64)
	pool.Release(buf, idx)

	require.NotZero(t, pool.Stats()[idx].Cached)

	pool.Close()

	for _, s := range pool.Stats() {
		require.Zero(t, s.Cached)
	}

	// Release after Close is safe and simply drops the buffer.
	buf2, idx2 := pool.Acquire(64)
	pool.Release(buf2, idx2)
	require.Zero(t, pool.Stats()[idx2].Cached)
}
