// +build linux

package evhttpd

import (
	"net"
	"sync/atomic"

	"golang.org/x/sys/unix"

	"evhttpd/internal/timerlist"
)

const (
	// readBufferSize bounds a complete request (line + headers + body).
	readBufferSize = 2048
	// writeBufferSize bounds the response head and inline error bodies.
	writeBufferSize = 1024
	// maxFileNameLen bounds the resolved file path.
	maxFileNameLen = 200
)

type checkState int

const (
	checkRequestLine checkState = iota
	checkHeader
	checkContent
)

// httpCode is the verdict of a parse/dispatch step. It travels through
// connection state between the worker and the reactor, never as a Go error.
type httpCode int

const (
	noRequest httpCode = iota
	getRequest
	badRequest
	noResource
	forbiddenRequest
	fileRequest
	internalError
	closedConnection
)

type method int

const (
	methodGet method = iota
	methodPost
)

// conn is one client connection slot. A conn is logically owned by exactly
// one of reactor / worker / quiescent-in-table at a time; the one-shot
// readiness registration enforces the handoff.
type conn struct {
	fd   int
	peer net.Addr
	svr  *server

	readBuf    [readBufferSize]byte
	readIdx    int // bytes received
	checkedIdx int // parser cursor
	startLine  int // start of the line being parsed

	writeBuf [writeBufferSize]byte
	writeIdx int

	state         checkState
	meth          method
	url           []byte
	version       []byte
	host          []byte
	contentLength int
	keepAlive     bool
	cgi           bool // POST form path
	body          []byte

	realFile string
	fileSize int64
	fileMap  []byte // mmap'd region, nil unless a FILE_REQUEST is in flight

	iov         [2][]byte
	iovCount    int
	bytesSent   int
	bytesToSend int

	closing bool // worker hit a dead peer; reactor finishes the close

	timer *timerlist.Timer // non-owning handle into the timer list
}

func newConn(svr *server, fd int, peer net.Addr) *conn {
	c := &conn{svr: svr, fd: fd, peer: peer}
	c.reset()
	return c
}

// reset returns the slot to the pristine parse state. Called on init and
// between keep-alive requests; it does not touch fd, peer or timer.
func (c *conn) reset() {
	c.readIdx, c.checkedIdx, c.startLine = 0, 0, 0
	c.writeIdx = 0
	c.state = checkRequestLine
	c.meth = methodGet
	c.url, c.version, c.host, c.body = nil, nil, nil, nil
	c.contentLength = 0
	c.keepAlive = false
	c.cgi = false
	c.realFile = ""
	c.fileSize = 0
	c.iov[0], c.iov[1] = nil, nil
	c.iovCount = 0
	c.bytesSent, c.bytesToSend = 0, 0
	c.closing = false
}

// readOnce drains the socket into the read buffer until EAGAIN. Returns
// false when the peer closed or the transport failed.
func (c *conn) readOnce() bool {
	for {
		if c.readIdx >= len(c.readBuf) {
			// Full buffer; the parser decides whether that is a complete
			// request or an oversize one.
			return true
		}
		n, err := unix.Read(c.fd, c.readBuf[c.readIdx:])
		if n > 0 {
			c.readIdx += n
			continue
		}
		if n == 0 && err == nil {
			return false
		}
		switch err {
		case unix.EAGAIN:
			return true
		case unix.EINTR:
			continue
		default:
			return false
		}
	}
}

// process runs on a pool worker: drain the socket, advance the parser, and
// when a verdict is reached frame the response and hand the connection back
// to the reactor by re-arming readiness.
func (c *conn) process() {
	if !c.readOnce() {
		c.deferClose()
		return
	}

	code := c.processRead()
	if code == noRequest {
		// Need more bytes.
		_ = c.svr.poller.ModRead(c.fd)
		return
	}

	if c.host != nil {
		c.svr.logger.Debugf("request from %v host=%s verdict=%d", c.peer, c.host, code)
	}

	if !c.processWrite(code) {
		c.deferClose()
		return
	}
	_ = c.svr.poller.ModWrite(c.fd)
}

// deferClose hands the close back to the reactor: workers do not touch the
// timer list, so the slot is flagged and writability (always immediate) gets
// the reactor to evict it.
func (c *conn) deferClose() {
	c.closing = true
	_ = c.svr.poller.ModWrite(c.fd)
}

// close releases the slot: drops it from the table, deregisters and closes
// the socket, and unmaps any file region. Idempotent. The timer node is the
// caller's business.
func (c *conn) close() {
	if c.fd < 0 {
		return
	}
	fd := c.fd
	c.fd = -1
	c.unmap()
	c.svr.conns[fd] = nil
	_ = c.svr.poller.Delete(fd)
	_ = unix.Close(fd)
	atomic.AddInt32(&c.svr.userCount, -1)
	c.svr.logger.Debugf("closed connection to %v", c.peer)
}

func (c *conn) unmap() {
	if c.fileMap != nil {
		_ = unix.Munmap(c.fileMap)
		c.fileMap = nil
	}
}

// pendingVec returns the unsent tail of the gathered response as an iovec.
func (c *conn) pendingVec() [][]byte {
	hdr := c.writeIdx
	if c.bytesSent < hdr {
		if c.iovCount == 2 {
			return [][]byte{c.iov[0][c.bytesSent:], c.iov[1]}
		}
		return [][]byte{c.iov[0][c.bytesSent:]}
	}
	return [][]byte{c.iov[1][c.bytesSent-hdr:]}
}
