// +build linux

package evhttpd

import (
	"bytes"

	"evhttpd/internal/logging"
)

// lineStatus is the outcome of scanning for one CRLF-terminated line.
type lineStatus int

const (
	lineOK   lineStatus = iota // complete line consumed
	lineBad                    // bare CR or stray LF, terminal
	lineOpen                   // buffer ends mid-line, need more bytes
)

const defaultIndexPage = "/judge.html"

var (
	bytesGET        = []byte("GET")
	bytesPOST       = []byte("POST")
	bytesHTTP11     = []byte("HTTP/1.1")
	bytesSchemeHTTP = []byte("http://")
	hdrConnection   = []byte("Connection")
	hdrContentLen   = []byte("Content-Length")
	hdrHost         = []byte("Host")
	valKeepAlive    = []byte("keep-alive")
)

// parseLine scans readBuf[checkedIdx:readIdx] for a CRLF terminator. On
// lineOK the cursor has moved past the CRLF; on lineOpen it rests where the
// scan stopped (the end of the data, or a trailing CR) so the next read
// resumes the scan there; lineBad is terminal.
func (c *conn) parseLine() lineStatus {
	for ; c.checkedIdx < c.readIdx; c.checkedIdx++ {
		switch c.readBuf[c.checkedIdx] {
		case '\r':
			if c.checkedIdx+1 == c.readIdx {
				return lineOpen
			}
			if c.readBuf[c.checkedIdx+1] == '\n' {
				c.checkedIdx += 2
				return lineOK
			}
			return lineBad
		case '\n':
			if c.checkedIdx > c.startLine && c.readBuf[c.checkedIdx-1] == '\r' {
				c.checkedIdx++
				return lineOK
			}
			return lineBad
		}
	}
	return lineOpen
}

// processRead is the parse-side state machine: extract lines, feed them to
// the per-state handlers, and on a complete request dispatch it.
func (c *conn) processRead() httpCode {
	for {
		if c.state == checkContent {
			switch code := c.parseContent(); code {
			case getRequest:
				return c.doRequest()
			case badRequest:
				return badRequest
			default:
				return noRequest
			}
		}

		switch c.parseLine() {
		case lineOpen:
			if c.readIdx >= len(c.readBuf) {
				// A line longer than the whole buffer can never complete.
				return badRequest
			}
			return noRequest
		case lineBad:
			return badRequest
		}

		line := c.readBuf[c.startLine : c.checkedIdx-2]
		c.startLine = c.checkedIdx

		switch c.state {
		case checkRequestLine:
			if code := c.parseRequestLine(line); code == badRequest {
				return badRequest
			}
		case checkHeader:
			code := c.parseHeaders(line)
			if code == badRequest {
				return badRequest
			}
			if code == getRequest {
				return c.doRequest()
			}
		default:
			return internalError
		}
	}
}

// parseRequestLine expects `METHOD SP URL SP VERSION`.
func (c *conn) parseRequestLine(line []byte) httpCode {
	sp := bytes.IndexAny(line, " \t")
	if sp < 0 {
		return badRequest
	}
	switch m := line[:sp]; {
	case bytes.Equal(m, bytesGET):
		c.meth = methodGet
	case bytes.Equal(m, bytesPOST):
		c.meth = methodPost
		c.cgi = true
	default:
		return badRequest
	}

	rest := skipWS(line[sp+1:])
	sp = bytes.IndexAny(rest, " \t")
	if sp < 0 {
		return badRequest
	}
	u := rest[:sp]
	c.version = skipWS(rest[sp+1:])
	if !bytes.Equal(c.version, bytesHTTP11) {
		return badRequest
	}

	if bytes.HasPrefix(u, bytesSchemeHTTP) {
		u = u[len(bytesSchemeHTTP):]
		i := bytes.IndexByte(u, '/')
		if i < 0 {
			return badRequest
		}
		u = u[i:]
	}
	if len(u) == 0 || u[0] != '/' {
		return badRequest
	}
	if len(u) == 1 {
		u = []byte(defaultIndexPage)
	}
	c.url = u
	c.state = checkHeader
	return noRequest
}

// parseHeaders handles one `Name: value` line; an empty line ends the
// headers. Unknown headers are logged and ignored.
func (c *conn) parseHeaders(line []byte) httpCode {
	if len(line) == 0 {
		if c.contentLength > 0 {
			c.state = checkContent
			return noRequest
		}
		return getRequest
	}

	i := bytes.IndexByte(line, ':')
	if i < 0 {
		logging.DefaultLogger.Debugf("oop! unknown header %q", line)
		return noRequest
	}
	key, val := line[:i], skipWS(line[i+1:])
	switch {
	case bytes.EqualFold(key, hdrConnection):
		if bytes.EqualFold(val, valKeepAlive) {
			c.keepAlive = true
		}
	case bytes.EqualFold(key, hdrContentLen):
		n, ok := parseDecimal(val)
		if !ok {
			return badRequest
		}
		c.contentLength = n
	case bytes.EqualFold(key, hdrHost):
		c.host = val
	default:
		logging.DefaultLogger.Debugf("oop! unknown header %q", line)
	}
	return noRequest
}

// parseContent waits for contentLength bytes of body past the headers.
func (c *conn) parseContent() httpCode {
	if c.checkedIdx+c.contentLength > len(c.readBuf) {
		return badRequest
	}
	if c.readIdx-c.checkedIdx >= c.contentLength {
		c.body = c.readBuf[c.checkedIdx : c.checkedIdx+c.contentLength]
		c.checkedIdx += c.contentLength
		c.startLine = c.checkedIdx
		return getRequest
	}
	return noRequest
}

func skipWS(b []byte) []byte {
	for len(b) > 0 && (b[0] == ' ' || b[0] == '\t') {
		b = b[1:]
	}
	return b
}

func parseDecimal(b []byte) (int, bool) {
	if len(b) == 0 {
		return 0, false
	}
	n := 0
	for _, ch := range b {
		if ch < '0' || ch > '9' {
			return 0, false
		}
		n = n*10 + int(ch-'0')
		if n > 1<<30 {
			return 0, false
		}
	}
	return n, true
}
