// +build linux

package evhttpd

import (
	"time"

	"golang.org/x/sys/unix"

	"evhttpd/errors"
	"evhttpd/internal/timerlist"
)

// dispatch routes one readiness event by descriptor identity: the listener,
// the signal pipe, or a client slot.
func (svr *server) dispatch(fd int, ev uint32) error {
	switch fd {
	case svr.ln.fd:
		return svr.acceptNewConnection()
	case svr.pipe.r:
		return svr.drainSignalPipe()
	default:
		return svr.handleEvent(fd, ev)
	}
}

// drainSignalPipe decodes queued signal bytes. Effects are deferred to the
// batch sweep so they land after the I/O events of the current batch.
func (svr *server) drainSignalPipe() error {
	var buf [256]byte
	for {
		n, err := unix.Read(svr.pipe.r, buf[:])
		if n <= 0 {
			if err == unix.EINTR {
				continue
			}
			return nil
		}
		for _, b := range buf[:n] {
			switch b {
			case sigAlarmByte:
				svr.tickPending = true
			case sigTermByte:
				svr.stopping = true
			}
		}
	}
}

// sweep runs at the end of every readiness batch: fire due idle timers, then
// honor a pending shutdown.
func (svr *server) sweep() error {
	if svr.tickPending {
		svr.tickPending = false
		svr.timers.Tick(time.Now())
	}
	if svr.stopping {
		return errors.ErrServerShutdown
	}
	return nil
}

// armTimer inserts the connection's idle timer. The callback checks handle
// identity so a slot that moved on (or was already closed) makes it a no-op.
func (svr *server) armTimer(c *conn) {
	t := &timerlist.Timer{Expire: time.Now().Add(svr.idleBudget())}
	t.Callback = func() {
		if c.timer != t {
			return
		}
		c.timer = nil
		svr.logger.Infof("closing idle connection to %v", c.peer)
		c.close()
	}
	c.timer = t
	svr.timers.Add(t)
}

func (svr *server) idleBudget() time.Duration {
	return 3 * svr.opts.Timeslot
}

// refreshTimer pushes the connection's expiry forward after I/O progress.
func (svr *server) refreshTimer(c *conn) {
	if c.timer != nil {
		svr.timers.Adjust(c.timer, time.Now().Add(svr.idleBudget()))
	}
}

// evict closes a connection from the reactor: fetch the timer handle first,
// null it, close the slot, then drop the node from the list.
func (svr *server) evict(c *conn) {
	t := c.timer
	c.timer = nil
	c.close()
	if t != nil {
		svr.timers.Remove(t)
	}
}
