package reactor

import "time"

// pollInterest is the subset of EventMask a poller cares about: whether
// a registered fd should be watched for readability, writability, or
// both.
type pollInterest struct {
	fd       int
	readable bool
	writable bool
}

// pollEvent is one readiness notification a poller produces for a
// previously-registered fd.
type pollEvent struct {
	fd    int
	read  bool
	write bool
	err   bool
}

// poller is the OS-specific readiness multiplexer a Reactor drives its
// loop with, grounded on spec 4.2's "owns a readiness poller." Exactly
// one implementation is compiled in per platform: poller_linux.go wraps
// epoll via golang.org/x/sys/unix; poller_other.go is a portable
// fallback for platforms without epoll.
type poller interface {
	// add registers fd for the given interest.
	add(i pollInterest) error

	// modify updates a previously-added fd's interest.
	modify(i pollInterest) error

	// remove deregisters fd.
	remove(fd int) error

	// wait blocks until at least one fd is ready or deadline elapses,
	// appending ready events to dst and returning the extended slice.
	// A zero deadline means "block indefinitely."
	wait(dst []pollEvent, deadline time.Time) ([]pollEvent, error)

	// wake interrupts a concurrent wait call from another goroutine,
	// used to deliver cross-thread posted events promptly (spec 4.2:
	// "the reactor owning it is woken via a self-pipe or equivalent").
	wake() error

	close() error
}
