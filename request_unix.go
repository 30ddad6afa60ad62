// +build linux

package evhttpd

import (
	"bytes"

	"github.com/valyala/bytebufferpool"
	"golang.org/x/sys/unix"

	"evhttpd/internal/auth"
)

var (
	pathLogin    = []byte("/login")
	pathRegister = []byte("/register")

	pageWelcome       = []byte("/welcome.html")
	pageLogin         = []byte("/login.html")
	pageLoginError    = []byte("/login_error.html")
	pageRegisterError = []byte("/register_error.html")
)

// doRequest resolves the parsed request against the document root. POSTs to
// the login/register endpoints consult the credential store and rewrite the
// URL to the outcome page before resolution.
func (c *conn) doRequest() httpCode {
	if c.cgi && c.meth == methodPost {
		if bytes.Equal(c.url, pathLogin) || bytes.Equal(c.url, pathRegister) {
			c.url = c.handleForm()
		}
	}

	if hasDotDotSegment(c.url) {
		return forbiddenRequest
	}

	path := c.svr.opts.DocRoot + string(c.url)
	if len(path) > maxFileNameLen {
		return badRequest
	}

	var st unix.Stat_t
	if err := unix.Stat(path, &st); err != nil {
		return noResource
	}
	if st.Mode&unix.S_IROTH == 0 {
		return forbiddenRequest
	}
	if st.Mode&unix.S_IFMT == unix.S_IFDIR {
		return badRequest
	}

	fd, err := unix.Open(path, unix.O_RDONLY, 0)
	if err != nil {
		return noResource
	}
	c.realFile = path
	c.fileSize = st.Size
	if st.Size > 0 {
		m, err := unix.Mmap(fd, 0, int(st.Size), unix.PROT_READ, unix.MAP_PRIVATE)
		if err != nil {
			_ = unix.Close(fd)
			return internalError
		}
		c.fileMap = m
	}
	_ = unix.Close(fd)
	return fileRequest
}

// handleForm runs the login/register flow for a `user=X&password=Y` body and
// returns the outcome page the request is rewritten to.
func (c *conn) handleForm() []byte {
	user, password, ok := parseForm(c.body)
	login := bytes.Equal(c.url, pathLogin)

	if !ok || c.svr.store == nil {
		if login {
			return pageLoginError
		}
		return pageRegisterError
	}

	if login {
		if c.svr.store.Verify(user, password) {
			return pageWelcome
		}
		return pageLoginError
	}

	if err := c.svr.store.Insert(user, password); err != nil {
		if err != auth.ErrUserExists {
			c.svr.logger.Errorf("register %q failed: %v", user, err)
		}
		return pageRegisterError
	}
	return pageLogin
}

// parseForm pulls user and password out of an urlencoded body.
func parseForm(body []byte) (user, password string, ok bool) {
	for len(body) > 0 {
		pair := body
		if i := bytes.IndexByte(body, '&'); i >= 0 {
			pair, body = body[:i], body[i+1:]
		} else {
			body = nil
		}
		eq := bytes.IndexByte(pair, '=')
		if eq < 0 {
			return "", "", false
		}
		key, val := pair[:eq], pair[eq+1:]
		decoded, valid := unescapeForm(val)
		if !valid {
			return "", "", false
		}
		switch string(key) {
		case "user":
			user = decoded
		case "password":
			password = decoded
		}
	}
	return user, password, user != ""
}

// unescapeForm percent-decodes one form value into a pooled scratch buffer.
func unescapeForm(b []byte) (string, bool) {
	bb := bytebufferpool.Get()
	defer bytebufferpool.Put(bb)

	for i := 0; i < len(b); i++ {
		switch b[i] {
		case '+':
			_ = bb.WriteByte(' ')
		case '%':
			if i+2 >= len(b) {
				return "", false
			}
			hi, ok1 := unhex(b[i+1])
			lo, ok2 := unhex(b[i+2])
			if !ok1 || !ok2 {
				return "", false
			}
			_ = bb.WriteByte(hi<<4 | lo)
			i += 2
		default:
			_ = bb.WriteByte(b[i])
		}
	}
	return bb.String(), true
}

func unhex(ch byte) (byte, bool) {
	switch {
	case ch >= '0' && ch <= '9':
		return ch - '0', true
	case ch >= 'a' && ch <= 'f':
		return ch - 'a' + 10, true
	case ch >= 'A' && ch <= 'F':
		return ch - 'A' + 10, true
	}
	return 0, false
}

// hasDotDotSegment reports whether any /-separated segment of the url is
// exactly "..", which would escape the document root.
func hasDotDotSegment(url []byte) bool {
	for len(url) > 0 {
		seg := url
		if i := bytes.IndexByte(url, '/'); i >= 0 {
			seg, url = url[:i], url[i+1:]
		} else {
			url = nil
		}
		if string(seg) == ".." {
			return true
		}
	}
	return false
}
