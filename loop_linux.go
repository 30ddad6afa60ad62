// +build linux

package evhttpd

import (
	"github.com/panjf2000/ants/v2"
	"golang.org/x/sys/unix"

	"evhttpd/internal/netpoll"
)

// handleEvent drives one client slot for one readiness delivery. Hangups win
// over everything; otherwise readable hands off to the pool and writable
// drains the gather vector.
func (svr *server) handleEvent(fd int, ev uint32) error {
	if fd < 0 || fd >= len(svr.conns) {
		return nil
	}
	c := svr.conns[fd]
	if c == nil {
		return nil
	}

	switch {
	case ev&netpoll.ErrEvents != 0:
		svr.evict(c)
	case ev&unix.EPOLLIN != 0:
		svr.onReadable(c)
	case ev&unix.EPOLLOUT != 0:
		svr.onWritable(c)
	}
	return nil
}

// onReadable hands the connection to the worker pool. The one-shot
// registration already muted the fd, so a successful handoff leaves the
// worker as sole owner; on overload the fd is re-armed and the readiness
// re-offers itself next wakeup.
func (svr *server) onReadable(c *conn) {
	if err := svr.pool.Invoke(c); err != nil {
		if err == ants.ErrPoolOverload {
			_ = svr.poller.ModRead(c.fd)
			return
		}
		svr.logger.Errorf("worker handoff for %v: %v", c.peer, err)
		svr.evict(c)
		return
	}
	svr.refreshTimer(c)
}

// onWritable performs the vectored send of headers plus mmap'd body. On
// completion the connection either resets for the next keep-alive request or
// goes down with its timer.
func (svr *server) onWritable(c *conn) {
	if c.closing {
		svr.evict(c)
		return
	}

	for c.bytesToSend > 0 {
		n, err := unix.Writev(c.fd, c.pendingVec())
		if err != nil {
			switch err {
			case unix.EAGAIN:
				_ = svr.poller.ModWrite(c.fd)
				svr.refreshTimer(c)
				return
			case unix.EINTR:
				continue
			default:
				svr.evict(c)
				return
			}
		}
		c.bytesSent += n
		c.bytesToSend -= n
	}

	// Response fully sent.
	c.unmap()
	if c.keepAlive {
		c.reset()
		_ = svr.poller.ModRead(c.fd)
		svr.refreshTimer(c)
		return
	}
	svr.evict(c)
}
