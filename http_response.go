// +build linux

package evhttpd

import "strconv"

// Canonical status titles and short error pages.
const (
	ok200Title = "OK"

	error400Title = "Bad Request"
	error400Form  = "Your request has bad syntax or is inherently impossible to satisfy.\n"

	error403Title = "Forbidden"
	error403Form  = "You do not have permission to get file from this server.\n"

	error404Title = "Not Found"
	error404Form  = "The requested file was not found on this server.\n"

	error500Title = "Internal Error"
	error500Form  = "There was an unusual problem serving the requested file.\n"

	emptyPage = "<html><body></body></html>"
)

func (c *conn) addResponse(s string) bool {
	if c.writeIdx+len(s) > len(c.writeBuf) {
		return false
	}
	copy(c.writeBuf[c.writeIdx:], s)
	c.writeIdx += len(s)
	return true
}

func (c *conn) addStatusLine(status int, title string) bool {
	return c.addResponse("HTTP/1.1 ") &&
		c.addResponse(strconv.Itoa(status)) &&
		c.addResponse(" ") &&
		c.addResponse(title) &&
		c.addResponse("\r\n")
}

func (c *conn) addContentLength(n int) bool {
	return c.addResponse("Content-Length: ") &&
		c.addResponse(strconv.Itoa(n)) &&
		c.addResponse("\r\n")
}

func (c *conn) addContentType() bool {
	return c.addResponse("Content-Type: text/html\r\n")
}

func (c *conn) addLinger() bool {
	if c.keepAlive {
		return c.addResponse("Connection: keep-alive\r\n")
	}
	return c.addResponse("Connection: close\r\n")
}

func (c *conn) addBlankLine() bool {
	return c.addResponse("\r\n")
}

func (c *conn) addHeaders(contentLen int) bool {
	return c.addContentLength(contentLen) &&
		c.addContentType() &&
		c.addLinger() &&
		c.addBlankLine()
}

func (c *conn) addErrorPage(status int, title, form string) bool {
	return c.addStatusLine(status, title) &&
		c.addHeaders(len(form)) &&
		c.addResponse(form)
}

// processWrite frames the response for the given verdict into the write
// buffer and sets up the gather vector. The full status line, headers and
// body are always produced; a false return means the buffer overflowed (or
// the verdict has no response to frame) and the connection must go down
// without a partial response.
func (c *conn) processWrite(code httpCode) bool {
	switch code {
	case internalError:
		if !c.addErrorPage(500, error500Title, error500Form) {
			return false
		}
	case badRequest:
		if !c.addErrorPage(400, error400Title, error400Form) {
			return false
		}
	case noResource:
		if !c.addErrorPage(404, error404Title, error404Form) {
			return false
		}
	case forbiddenRequest:
		if !c.addErrorPage(403, error403Title, error403Form) {
			return false
		}
	case fileRequest:
		if !c.addStatusLine(200, ok200Title) {
			return false
		}
		if c.fileSize > 0 {
			if !c.addHeaders(int(c.fileSize)) {
				return false
			}
			c.iov[0] = c.writeBuf[:c.writeIdx]
			c.iov[1] = c.fileMap
			c.iovCount = 2
			c.bytesToSend = c.writeIdx + int(c.fileSize)
			return true
		}
		// Empty file: serve a stub page inline.
		if !c.addHeaders(len(emptyPage)) || !c.addResponse(emptyPage) {
			return false
		}
	default:
		return false
	}

	c.iov[0] = c.writeBuf[:c.writeIdx]
	c.iovCount = 1
	c.bytesToSend = c.writeIdx
	return true
}
