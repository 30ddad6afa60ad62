// +build linux

package evhttpd

import (
	"bytes"
	"io/ioutil"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"evhttpd/internal/auth"
	"evhttpd/internal/logging"
	"evhttpd/internal/timerlist"
)

// newTestServer builds a server shell (no sockets) over a fresh temp
// document root, enough to drive the parse/dispatch path directly.
func newTestServer(t *testing.T, store *auth.Store) (string, *server) {
	t.Helper()
	docRoot, err := ioutil.TempDir("", "docroot")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.RemoveAll(docRoot) })
	opts := (&Options{DocRoot: docRoot}).withDefaults()
	svr := &server{
		opts:   opts,
		store:  store,
		logger: logging.DefaultLogger,
		conns:  make([]*conn, maxFD),
		timers: timerlist.New(),
	}
	return docRoot, svr
}

func writeDocFile(t *testing.T, docRoot, name string, content []byte, mode os.FileMode) string {
	t.Helper()
	path := filepath.Join(docRoot, name)
	if err := ioutil.WriteFile(path, content, mode); err != nil {
		t.Fatal(err)
	}
	// Umask-proof the mode.
	if err := os.Chmod(path, mode); err != nil {
		t.Fatal(err)
	}
	return path
}

func newTestStore(t *testing.T) *auth.Store {
	t.Helper()
	dir, err := ioutil.TempDir("", "creds")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.RemoveAll(dir) })
	s, err := auth.Open(filepath.Join(dir, "users.db"))
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func resolve(svr *server, meth method, url string, body []byte) (*conn, httpCode) {
	c := newConn(svr, -1, nil)
	c.meth = meth
	c.cgi = meth == methodPost
	c.url = []byte(url)
	c.body = body
	return c, c.doRequest()
}

func TestDoRequestServesFile(t *testing.T) {
	docRoot, svr := newTestServer(t, nil)
	content := bytes.Repeat([]byte("z"), 123)
	writeDocFile(t, docRoot, "index.html", content, 0644)

	c, code := resolve(svr, methodGet, "/index.html", nil)
	if code != fileRequest {
		t.Fatalf("verdict = %v, want fileRequest", code)
	}
	defer c.unmap()
	if c.fileSize != 123 {
		t.Fatalf("fileSize = %d, want 123", c.fileSize)
	}
	if !bytes.Equal(c.fileMap, content) {
		t.Fatal("mmap'd content differs from the file")
	}
	if !strings.HasSuffix(c.realFile, "/index.html") {
		t.Fatalf("realFile = %q", c.realFile)
	}

	c.unmap()
	if c.fileMap != nil {
		t.Fatal("unmap left the region live")
	}
}

func TestDoRequestMissing(t *testing.T) {
	_, svr := newTestServer(t, nil)
	if _, code := resolve(svr, methodGet, "/nope.html", nil); code != noResource {
		t.Fatalf("verdict = %v, want noResource", code)
	}
}

func TestDoRequestForbidden(t *testing.T) {
	docRoot, svr := newTestServer(t, nil)
	writeDocFile(t, docRoot, "secret.html", []byte("x"), 0600)
	if _, code := resolve(svr, methodGet, "/secret.html", nil); code != forbiddenRequest {
		t.Fatalf("verdict = %v, want forbiddenRequest", code)
	}
}

func TestDoRequestDirectory(t *testing.T) {
	docRoot, svr := newTestServer(t, nil)
	if err := os.Mkdir(filepath.Join(docRoot, "sub"), 0755); err != nil {
		t.Fatal(err)
	}
	if _, code := resolve(svr, methodGet, "/sub", nil); code != badRequest {
		t.Fatalf("verdict = %v, want badRequest", code)
	}
}

func TestDoRequestTraversal(t *testing.T) {
	_, svr := newTestServer(t, nil)
	for _, url := range []string{"/../etc/passwd", "/a/../../etc/passwd", "/.."} {
		if _, code := resolve(svr, methodGet, url, nil); code != forbiddenRequest {
			t.Fatalf("resolve(%q) = %v, want forbiddenRequest", url, code)
		}
	}
	// Dots inside a segment are not traversal.
	docRoot, svr2 := newTestServer(t, nil)
	writeDocFile(t, docRoot, "a..b.html", []byte("x"), 0644)
	c, code := resolve(svr2, methodGet, "/a..b.html", nil)
	if code != fileRequest {
		t.Fatalf("dotted name verdict = %v, want fileRequest", code)
	}
	c.unmap()
}

func TestDoRequestOversizePath(t *testing.T) {
	_, svr := newTestServer(t, nil)
	long := "/" + strings.Repeat("a", maxFileNameLen)
	if _, code := resolve(svr, methodGet, long, nil); code != badRequest {
		t.Fatalf("verdict = %v, want badRequest", code)
	}
}

func TestLoginRegisterFlow(t *testing.T) {
	store := newTestStore(t)
	docRoot, svr := newTestServer(t, store)
	for _, page := range []string{
		"welcome.html", "login.html", "login_error.html", "register_error.html",
	} {
		writeDocFile(t, docRoot, page, []byte("<html>"+page+"</html>"), 0644)
	}

	serve := func(url string, body string) string {
		c, code := resolve(svr, methodPost, url, []byte(body))
		if code != fileRequest {
			t.Fatalf("POST %s %q verdict = %v, want fileRequest", url, body, code)
		}
		c.unmap()
		return filepath.Base(c.realFile)
	}

	// Fresh user registers, then logs in.
	if got := serve("/register", "user=alice&password=s3cret"); got != "login.html" {
		t.Fatalf("register landed on %s", got)
	}
	if !store.Verify("alice", "s3cret") {
		t.Fatal("register did not persist the credential")
	}
	if got := serve("/login", "user=alice&password=s3cret"); got != "welcome.html" {
		t.Fatalf("login landed on %s", got)
	}
	if got := serve("/login", "user=alice&password=wrong"); got != "login_error.html" {
		t.Fatalf("bad login landed on %s", got)
	}
	if got := serve("/register", "user=alice&password=other"); got != "register_error.html" {
		t.Fatalf("duplicate register landed on %s", got)
	}

	// Percent-escapes decode before the store is consulted.
	if got := serve("/login", "user=al%69ce&password=s3cret"); got != "welcome.html" {
		t.Fatalf("escaped login landed on %s", got)
	}

	// Garbage bodies land on the error page instead of blowing up.
	if got := serve("/login", "no-equals-here"); got != "login_error.html" {
		t.Fatalf("garbage body landed on %s", got)
	}
}

func TestParseForm(t *testing.T) {
	tests := []struct {
		in       string
		user, pw string
		ok       bool
	}{
		{"user=bob&password=pw", "bob", "pw", true},
		{"password=pw&user=bob", "bob", "pw", true},
		{"user=a+b&password=p%20w", "a b", "p w", true},
		{"user=&password=pw", "", "", false},
		{"user=bob", "bob", "", true},
		{"nonsense", "", "", false},
		{"user=%zz&password=pw", "", "", false},
		{"user=bob&password=%2", "", "", false},
	}
	for _, tt := range tests {
		user, pw, ok := parseForm([]byte(tt.in))
		if ok != tt.ok {
			t.Fatalf("parseForm(%q) ok = %v, want %v", tt.in, ok, tt.ok)
		}
		if !ok {
			continue
		}
		if user != tt.user || pw != tt.pw {
			t.Fatalf("parseForm(%q) = %q, %q", tt.in, user, pw)
		}
	}
}
