//go:build linux

package reactor

import (
	"time"

	"golang.org/x/sys/unix"
)

// epollPoller is the Linux poller backend, grounded on the epoll-based
// readiness loop pattern used by the gaio async-IO library (see
// other_examples' gaio watcher): one epoll instance per reactor, plus an
// eventfd used purely to interrupt a blocked Wait from another goroutine
// (spec 4.2's "woken via a self-pipe or equivalent").
type epollPoller struct {
	epfd    int
	wakeFD  int
	events  []unix.EpollEvent
}

func newPoller() (poller, error) {
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, err
	}

	wakeFD, _, errno := unix.Syscall(unix.SYS_EVENTFD2, 0, unix.EFD_CLOEXEC|unix.EFD_NONBLOCK, 0)
	if errno != 0 {
		unix.Close(epfd)
		return nil, errno
	}

	p := &epollPoller{
		epfd:   epfd,
		wakeFD: int(wakeFD),
		events: make([]unix.EpollEvent, 128),
	}

	if err := unix.EpollCtl(p.epfd, unix.EPOLL_CTL_ADD, p.wakeFD, &unix.EpollEvent{
		Events: unix.EPOLLIN,
		Fd:     int32(p.wakeFD),
	}); err != nil {
		p.close()
		return nil, err
	}

	return p, nil
}

func interestToEpollEvents(i pollInterest) uint32 {
	var ev uint32
	if i.readable {
		ev |= unix.EPOLLIN
	}
	if i.writable {
		ev |= unix.EPOLLOUT
	}
	return ev
}

func (p *epollPoller) add(i pollInterest) error {
	return unix.EpollCtl(p.epfd, unix.EPOLL_CTL_ADD, i.fd, &unix.EpollEvent{
		Events: interestToEpollEvents(i),
		Fd:     int32(i.fd),
	})
}

func (p *epollPoller) modify(i pollInterest) error {
	return unix.EpollCtl(p.epfd, unix.EPOLL_CTL_MOD, i.fd, &unix.EpollEvent{
		Events: interestToEpollEvents(i),
		Fd:     int32(i.fd),
	})
}

func (p *epollPoller) remove(fd int) error {
	return unix.EpollCtl(p.epfd, unix.EPOLL_CTL_DEL, fd, nil)
}

func (p *epollPoller) wait(dst []pollEvent, deadline time.Time) ([]pollEvent, error) {
	timeoutMS := -1
	if !deadline.IsZero() {
		d := time.Until(deadline)
		if d < 0 {
			d = 0
		}
		timeoutMS = int(d.Milliseconds())
	}

	n, err := unix.EpollWait(p.epfd, p.events, timeoutMS)
	if err != nil {
		if err == unix.EINTR {
			return dst, nil
		}
		return dst, err
	}

	drainBuf := make([]byte, 8)
	for i := 0; i < n; i++ {
		ev := p.events[i]
		if int(ev.Fd) == p.wakeFD {
			unix.Read(p.wakeFD, drainBuf)
			continue
		}

		dst = append(dst, pollEvent{
			fd:    int(ev.Fd),
			read:  ev.Events&(unix.EPOLLIN|unix.EPOLLHUP) != 0,
			write: ev.Events&unix.EPOLLOUT != 0,
			err:   ev.Events&(unix.EPOLLERR|unix.EPOLLHUP) != 0,
		})
	}
	return dst, nil
}

func (p *epollPoller) wake() error {
	one := []byte{1, 0, 0, 0, 0, 0, 0, 0}
	_, err := unix.Write(p.wakeFD, one)
	return err
}

func (p *epollPoller) close() error {
	unix.Close(p.wakeFD)
	return unix.Close(p.epfd)
}
