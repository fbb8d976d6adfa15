// Package bufpool implements the size-classed reusable byte-buffer pool
// (spec component C1). Each Reactor owns exactly one Pool; buffers never
// cross goroutine boundaries through the pool itself, so no locking is
// required on the hot path.
package bufpool

import "fmt"

const (
	// minClassShift is the exponent of the smallest size class (2^2 = 4
	// bytes).
	minClassShift = 2

	// maxClassShift is the exponent of the largest size class (2^12 =
	// 4096 bytes). Requests above this capacity bypass the cache
	// entirely.
	maxClassShift = 12

	// numClasses is the number of distinct size classes, [2^2 .. 2^12].
	numClasses = maxClassShift - minClassShift + 1
)

// CachePolicy decides how many buffers of a given size class a Pool may
// hold onto before it starts freeing them back to the runtime.
type CachePolicy interface {
	// CacheCapacity returns the maximum number of buffers of the given
	// class index (0 == smallest class) that should be cached.
	CacheCapacity(classIndex int) int
}

// defaultCachePolicyBudget is the amount of memory (in bytes) each class is
// allowed to hold in its cache, following the spec's "~32 x 4KiB worth of
// memory per class" sizing: smaller classes get deeper caches.
const defaultCachePolicyBudget = 32 * 4096

// DefaultCachePolicy returns the default policy: deeper caches for small
// classes, shallower for large ones, each scaled to roughly the same total
// cached-byte budget.
func DefaultCachePolicy() CachePolicy {
	return defaultCachePolicy{}
}

type defaultCachePolicy struct{}

func (defaultCachePolicy) CacheCapacity(classIndex int) int {
	cap := IndexToCapacity(classIndex)
	n := defaultCachePolicyBudget / cap
	if n < 1 {
		n = 1
	}
	return n
}

// SizeToIndex maps a requested size to the smallest size class capable of
// holding it. It returns (index, true) for sizes that fit within the
// largest class, or (numClasses, false) for sizes that must bypass the
// cache entirely.
func SizeToIndex(size int) (int, bool) {
	if size < 0 {
		size = 0
	}
	for i := 0; i < numClasses; i++ {
		if size <= IndexToCapacity(i) {
			return i, true
		}
	}
	return numClasses, false
}

// IndexToCapacity returns the buffer capacity, in bytes, of the given class
// index. It is the monotone inverse of SizeToIndex.
func IndexToCapacity(classIndex int) int {
	return 1 << (minClassShift + classIndex)
}

// Pool is a size-classed, LIFO byte-buffer cache owned by a single Reactor
// goroutine. It is not safe for concurrent use from multiple goroutines;
// each Reactor constructs its own Pool.
type Pool struct {
	policy  CachePolicy
	caches  [numClasses][][]byte
	stats   [numClasses]classStats
	closed  bool
}

type classStats struct {
	// outstanding is the number of buffers of this class currently held
	// by user code (acquired but not yet released).
	outstanding int

	// cached is the number of buffers currently sitting in the class's
	// LIFO cache.
	cached int

	// allocated is the lifetime count of buffers allocated (cache miss)
	// for this class.
	allocated int

	// freed is the lifetime count of buffers dropped because the cache
	// was already full for this class.
	freed int
}

// NewPool constructs a Pool using the given cache policy. A nil policy
// falls back to DefaultCachePolicy.
func NewPool(policy CachePolicy) *Pool {
	if policy == nil {
		policy = DefaultCachePolicy()
	}
	return &Pool{policy: policy}
}

// Acquire returns a buffer with capacity >= requestedSize. If requestedSize
// exceeds the largest size class, a buffer of exactly requestedSize is
// allocated directly from the heap (the bypass path) and classIndex is
// reported as -1; such a buffer must not be passed to Release.
func (p *Pool) Acquire(requestedSize int) (buf []byte, classIndex int) {
	idx, ok := SizeToIndex(requestedSize)
	if !ok {
		return make([]byte, 0, requestedSize), -1
	}

	cache := &p.caches[idx]
	if n := len(*cache); n > 0 {
		buf = (*cache)[n-1]
		*cache = (*cache)[:n-1]
		p.stats[idx].cached--
	} else {
		buf = make([]byte, 0, IndexToCapacity(idx))
		p.stats[idx].allocated++
	}
	p.stats[idx].outstanding++

	return buf, idx
}

// Release returns a buffer previously obtained from Acquire to the pool. If
// classIndex is -1 (a bypass-path buffer), Release is a no-op: the buffer is
// simply dropped for the garbage collector. If the class's cache is already
// at its configured capacity, the buffer is dropped instead of retained.
func (p *Pool) Release(buf []byte, classIndex int) {
	if classIndex < 0 {
		return
	}
	if classIndex >= numClasses {
		panic(fmt.Sprintf("bufpool: invalid class index %d", classIndex))
	}

	p.stats[classIndex].outstanding--

	if p.closed {
		p.stats[classIndex].freed++
		return
	}

	cap := p.policy.CacheCapacity(classIndex)
	cache := &p.caches[classIndex]
	if len(*cache) >= cap {
		p.stats[classIndex].freed++
		return
	}

	*cache = append(*cache, buf[:0])
	p.stats[classIndex].cached++
}

// Close frees every buffer currently cached by the pool. It does not affect
// buffers presently held by user code (outstanding ones continue to work
// normally; Release after Close simply drops them instead of recaching).
func (p *Pool) Close() {
	for i := range p.caches {
		p.stats[i].freed += len(p.caches[i])
		p.stats[i].cached = 0
		p.caches[i] = nil
	}
	p.closed = true
}

// ClassStats reports the outstanding/cached/allocated/freed counters for a
// single size class. Allocated and Freed are lifetime counts, so invariant
// I5 reads allocated - freed - cached == outstanding.
type ClassStats struct {
	ClassIndex  int
	Capacity    int
	Outstanding int
	Cached      int
	Allocated   int
	Freed       int
}

// Stats returns a snapshot of accounting counters for every size class.
func (p *Pool) Stats() []ClassStats {
	out := make([]ClassStats, numClasses)
	for i := range out {
		s := p.stats[i]
		out[i] = ClassStats{
			ClassIndex:  i,
			Capacity:    IndexToCapacity(i),
			Outstanding: s.outstanding,
			Cached:      s.cached,
			Allocated:   s.allocated,
			Freed:       s.freed,
		}
	}
	return out
}
