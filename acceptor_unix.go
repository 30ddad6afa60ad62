// +build linux

package evhttpd

import (
	"os"
	"sync/atomic"

	"golang.org/x/sys/unix"

	"evhttpd/internal/netpoll"
)

var busyReply = []byte("Internal server busy")

// acceptNewConnection takes one connection off the listener. The listener is
// level-triggered, so a backlog re-fires on the next wakeup.
func (svr *server) acceptNewConnection() error {
	nfd, sa, err := unix.Accept(svr.ln.fd)
	if err != nil {
		switch err {
		case unix.EAGAIN, unix.EINTR:
			return nil
		default:
			// Per-accept failures never take the reactor down.
			svr.logger.Warnf("accept error: %v", os.NewSyscallError("accept", err))
			return nil
		}
	}
	if err = unix.SetNonblock(nfd, true); err != nil {
		svr.logger.Warnf("fcntl nonblock: %v", err)
		_ = unix.Close(nfd)
		return nil
	}

	if svr.liveConns() >= svr.opts.MaxConns || nfd >= len(svr.conns) {
		_, _ = unix.Write(nfd, busyReply)
		_ = unix.Close(nfd)
		svr.logger.Warnf("connection refused, table is full (%d live)", svr.liveConns())
		return nil
	}

	if svr.opts.TCPNoDelay {
		sniffErrorAndLog(netpoll.SetNoDelay(nfd, true))
	}
	if svr.opts.TCPKeepAlive > 0 {
		sniffErrorAndLog(netpoll.SetKeepAlive(nfd, svr.opts.TCPKeepAlive))
	}

	remote := netpoll.SockaddrToTCPAddr(sa)
	c := newConn(svr, nfd, remote)
	svr.conns[nfd] = c
	atomic.AddInt32(&svr.userCount, 1)
	svr.armTimer(c)

	if err = svr.poller.AddReadClient(nfd); err != nil {
		svr.logger.Errorf("register fd %d: %v", nfd, err)
		svr.evict(c)
		return nil
	}
	svr.logger.Debugf("accepted connection from %v", remote)
	return nil
}
