// +build linux

package evhttpd

import (
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"golang.org/x/sys/unix"
)

// Signal bytes carried over the self-pipe. The periodic tick reuses SIGALRM's
// number since it plays the alarm's role.
const (
	sigAlarmByte = byte(unix.SIGALRM)
	sigTermByte  = byte(unix.SIGTERM)
)

// signalPipe is the self-pipe: signals and timer beats become single bytes on
// a nonblocking socketpair whose read end the reactor multiplexes like any
// other descriptor, so their effects are serialized with I/O events.
type signalPipe struct {
	r, w   int
	sigCh  chan os.Signal
	ticker *time.Ticker
	done   chan struct{}
	once   sync.Once
}

func newSignalPipe(timeslot time.Duration) (*signalPipe, error) {
	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM|unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC, 0)
	if err != nil {
		return nil, os.NewSyscallError("socketpair", err)
	}

	p := &signalPipe{
		r:      fds[0],
		w:      fds[1],
		sigCh:  make(chan os.Signal, 16),
		ticker: time.NewTicker(timeslot),
		done:   make(chan struct{}),
	}

	signal.Ignore(syscall.SIGPIPE)
	signal.Notify(p.sigCh, syscall.SIGTERM)
	go p.forward()

	return p, nil
}

func (p *signalPipe) forward() {
	for {
		select {
		case <-p.done:
			return
		case sig := <-p.sigCh:
			if s, ok := sig.(syscall.Signal); ok {
				p.notify(byte(s))
			}
		case <-p.ticker.C:
			p.notify(sigAlarmByte)
		}
	}
}

// notify writes one byte to the pipe. A full pipe drops the byte; that is
// fine, the reactor is behind and will observe the queued ones first.
func (p *signalPipe) notify(b byte) {
	_, _ = unix.Write(p.w, []byte{b})
}

func (p *signalPipe) close() {
	p.once.Do(func() {
		signal.Stop(p.sigCh)
		p.ticker.Stop()
		close(p.done)
		_ = unix.Close(p.w)
		_ = unix.Close(p.r)
	})
}
