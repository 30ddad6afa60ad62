// +build linux

package evhttpd

import "time"

// Options are the server knobs. The zero value serves files from the default
// document root with the default pool and timer settings.
type Options struct {
	// DocRoot is the directory files are served from.
	DocRoot string

	// Workers is the number of goroutines in the request-processing pool.
	Workers int

	// MaxConns caps the number of live client connections. Accepts past the
	// cap are answered with a busy reply and closed.
	MaxConns int

	// Timeslot is the tick period of the idle sweep; a connection is evicted
	// after three timeslots without I/O progress.
	Timeslot time.Duration

	// TCPNoDelay disables Nagle's algorithm on accepted sockets.
	TCPNoDelay bool

	// TCPKeepAlive enables SO_KEEPALIVE on accepted sockets with the given
	// period when positive.
	TCPKeepAlive time.Duration

	// ReusePort sets SO_REUSEPORT on the listener.
	ReusePort bool
}

const (
	defaultDocRoot  = "/var/www/html"
	defaultWorkers  = 8
	defaultMaxConns = 65536
	defaultTimeslot = 5 * time.Second
)

func (o *Options) withDefaults() *Options {
	if o == nil {
		o = new(Options)
	}
	if o.DocRoot == "" {
		o.DocRoot = defaultDocRoot
	}
	if o.Workers <= 0 {
		o.Workers = defaultWorkers
	}
	if o.MaxConns <= 0 {
		o.MaxConns = defaultMaxConns
	}
	if o.Timeslot <= 0 {
		o.Timeslot = defaultTimeslot
	}
	return o
}
