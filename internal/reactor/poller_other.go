//go:build !linux

package reactor

import (
	"sync"
	"time"

	"golang.org/x/sys/unix"
)

// pollFallback is the portable poller backend for non-Linux unix
// platforms, built on the POSIX poll(2) syscall instead of epoll. It
// re-scans its whole interest set on every wait call rather than
// maintaining kernel-side registration the way epoll does; fine for the
// modest per-reactor socket counts this framework targets, and kept
// only as a fallback -- production deployments are expected to run the
// Linux epoll backend (poller_linux.go).
type pollFallback struct {
	wakeR int
	wakeW int

	// mu guards interests: add/modify/remove can be called from a
	// goroutine placing a newly accepted connection onto a reactor other
	// than its own, concurrently with that reactor's own wait call
	// rebuilding its scan list.
	mu        sync.Mutex
	interests map[int]pollInterest
}

func newPoller() (poller, error) {
	fds := make([]int, 2)
	if err := unix.Pipe(fds); err != nil {
		return nil, err
	}
	if err := unix.SetNonblock(fds[0], true); err != nil {
		unix.Close(fds[0])
		unix.Close(fds[1])
		return nil, err
	}

	return &pollFallback{
		wakeR:     fds[0],
		wakeW:     fds[1],
		interests: make(map[int]pollInterest),
	}, nil
}

func (p *pollFallback) add(i pollInterest) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.interests[i.fd] = i
	return nil
}

func (p *pollFallback) modify(i pollInterest) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.interests[i.fd] = i
	return nil
}

func (p *pollFallback) remove(fd int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.interests, fd)
	return nil
}

func (p *pollFallback) wait(dst []pollEvent, deadline time.Time) ([]pollEvent, error) {
	p.mu.Lock()
	fds := make([]unix.PollFd, 0, len(p.interests)+1)
	fds = append(fds, unix.PollFd{Fd: int32(p.wakeR), Events: unix.POLLIN})

	order := make([]int, 0, len(p.interests))
	for fd, in := range p.interests {
		var events int16
		if in.readable {
			events |= unix.POLLIN
		}
		if in.writable {
			events |= unix.POLLOUT
		}
		fds = append(fds, unix.PollFd{Fd: int32(fd), Events: events})
		order = append(order, fd)
	}
	p.mu.Unlock()

	timeoutMS := -1
	if !deadline.IsZero() {
		d := time.Until(deadline)
		if d < 0 {
			d = 0
		}
		timeoutMS = int(d.Milliseconds())
	}

	n, err := unix.Poll(fds, timeoutMS)
	if err != nil {
		if err == unix.EINTR {
			return dst, nil
		}
		return dst, err
	}
	if n == 0 {
		return dst, nil
	}

	if fds[0].Revents&unix.POLLIN != 0 {
		drain := make([]byte, 64)
		unix.Read(p.wakeR, drain)
	}

	for idx, fd := range order {
		re := fds[idx+1].Revents
		if re == 0 {
			continue
		}
		dst = append(dst, pollEvent{
			fd:    fd,
			read:  re&(unix.POLLIN|unix.POLLHUP) != 0,
			write: re&unix.POLLOUT != 0,
			err:   re&(unix.POLLERR|unix.POLLHUP|unix.POLLNVAL) != 0,
		})
	}
	return dst, nil
}

func (p *pollFallback) wake() error {
	_, err := unix.Write(p.wakeW, []byte{1})
	return err
}

func (p *pollFallback) close() error {
	unix.Close(p.wakeR)
	return unix.Close(p.wakeW)
}
