// +build linux

package netpoll

import (
	"os"
	"runtime"

	"golang.org/x/sys/unix"

	"evhttpd/errors"
	"evhttpd/internal/logging"
)

// Poller represents a poller which is in charge of monitoring file-descriptors.
// All descriptors are watched level-triggered; client sockets additionally
// carry EPOLLONESHOT so that a connection handed to a worker stops producing
// events until the worker re-arms it.
type Poller struct {
	fd int // epoll fd
}

// OpenPoller instantiates a poller.
func OpenPoller() (poller *Poller, err error) {
	poller = new(Poller)
	if poller.fd, err = unix.EpollCreate1(unix.EPOLL_CLOEXEC); err != nil {
		poller = nil
		err = os.NewSyscallError("epoll_create1", err)
		return
	}
	return
}

// Close closes the poller.
func (p *Poller) Close() error {
	return os.NewSyscallError("close", unix.Close(p.fd))
}

// Polling blocks the current goroutine, waiting for network-events.
//
// The callback is invoked once per ready descriptor, in arrival order within
// a batch. After every batch sweep is invoked once. Returning
// errors.ErrServerShutdown from either unwinds the loop; any other error is
// logged and the loop keeps running.
func (p *Poller) Polling(callback func(fd int, ev uint32) error, sweep func() error) error {
	el := newEventList(InitEvents)
	for {
		n, err := unix.EpollWait(p.fd, el.events, -1)
		if n == 0 || (n < 0 && err == unix.EINTR) {
			runtime.Gosched()
			continue
		} else if err != nil {
			logging.DefaultLogger.Warnf("Error occurs in epoll: %v", os.NewSyscallError("epoll_wait", err))
			return err
		}

		for i := 0; i < n; i++ {
			fd := int(el.events[i].Fd)
			switch err = callback(fd, el.events[i].Events); err {
			case nil:
			case errors.ErrServerShutdown:
				return err
			default:
				logging.DefaultLogger.Warnf("Error occurs in event-loop: %v", err)
			}
		}

		switch err = sweep(); err {
		case nil:
		case errors.ErrServerShutdown:
			return err
		default:
			logging.DefaultLogger.Warnf("Error occurs in batch sweep: %v", err)
		}

		if n == el.size {
			el.expand()
		} else if n < el.size>>1 {
			el.shrink()
		}
	}
}

const (
	readEvents    = unix.EPOLLPRI | unix.EPOLLIN
	writeEvents   = unix.EPOLLOUT
	clientEvents  = unix.EPOLLRDHUP | unix.EPOLLONESHOT
	// ErrEvents marks a peer hangup or a transport error on the descriptor.
	ErrEvents = unix.EPOLLERR | unix.EPOLLHUP | unix.EPOLLRDHUP
)

// AddRead registers the given file-descriptor with readable events to the
// poller, level-triggered with no one-shot semantics. Meant for the listener
// and the signal pipe, which are always owned by the reactor.
func (p *Poller) AddRead(fd int) error {
	return os.NewSyscallError("epoll_ctl add",
		unix.EpollCtl(p.fd, unix.EPOLL_CTL_ADD, fd, &unix.EpollEvent{Fd: int32(fd), Events: readEvents}))
}

// AddReadClient registers a client socket for readable events. The one-shot
// flag mutes the descriptor after each delivery until ModRead/ModWrite
// re-arms it, which is what serializes reactor/worker ownership.
func (p *Poller) AddReadClient(fd int) error {
	return os.NewSyscallError("epoll_ctl add",
		unix.EpollCtl(p.fd, unix.EPOLL_CTL_ADD, fd, &unix.EpollEvent{Fd: int32(fd), Events: readEvents | clientEvents}))
}

// ModRead re-arms a client socket for readable events.
func (p *Poller) ModRead(fd int) error {
	return os.NewSyscallError("epoll_ctl mod",
		unix.EpollCtl(p.fd, unix.EPOLL_CTL_MOD, fd, &unix.EpollEvent{Fd: int32(fd), Events: readEvents | clientEvents}))
}

// ModWrite re-arms a client socket for writable events.
func (p *Poller) ModWrite(fd int) error {
	return os.NewSyscallError("epoll_ctl mod",
		unix.EpollCtl(p.fd, unix.EPOLL_CTL_MOD, fd, &unix.EpollEvent{Fd: int32(fd), Events: writeEvents | clientEvents}))
}

// Delete removes the given file-descriptor from the poller.
func (p *Poller) Delete(fd int) error {
	return os.NewSyscallError("epoll_ctl del", unix.EpollCtl(p.fd, unix.EPOLL_CTL_DEL, fd, nil))
}
