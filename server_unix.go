// +build linux

package evhttpd

import (
	"sync/atomic"

	"evhttpd/errors"
	"evhttpd/internal/auth"
	"evhttpd/internal/logging"
	"evhttpd/internal/netpoll"
	"evhttpd/internal/timerlist"
)

// maxFD sizes the connection table: a dense array indexed by socket
// descriptor, so slot lookup is O(1) and the hot path never allocates.
const maxFD = 65536

type server struct {
	ln     *listener
	poller *netpoll.Poller
	opts   *Options
	store  *auth.Store
	logger logging.Logger
	pool   *workerPool
	pipe   *signalPipe

	conns  []*conn
	timers *timerlist.List

	userCount int32 // live connections, atomic

	// Reactor-local flags, flipped by the signal-pipe drain and consumed at
	// batch boundaries.
	tickPending bool
	stopping    bool
}

// Serve runs the server on addr ("ip:port") until SIGTERM. It owns the
// listener, the poller, the timer list and the worker pool for its lifetime.
func Serve(addr string, store *auth.Store, opts *Options) error {
	svr, err := newServer("tcp", addr, store, opts)
	if err != nil {
		return err
	}
	defer svr.release()
	return svr.run()
}

func newServer(network, addr string, store *auth.Store, opts *Options) (svr *server, err error) {
	opts = opts.withDefaults()

	svr = &server{
		opts:   opts,
		store:  store,
		logger: logging.DefaultLogger,
		conns:  make([]*conn, maxFD),
		timers: timerlist.New(),
	}

	if svr.ln, err = initListener(network, addr, opts.ReusePort); err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			svr.release()
		}
	}()

	if svr.poller, err = netpoll.OpenPoller(); err != nil {
		return nil, err
	}
	if svr.pool, err = newWorkerPool(opts.Workers); err != nil {
		return nil, err
	}
	if svr.pipe, err = newSignalPipe(opts.Timeslot); err != nil {
		return nil, err
	}

	if err = svr.poller.AddRead(svr.ln.fd); err != nil {
		return nil, err
	}
	if err = svr.poller.AddRead(svr.pipe.r); err != nil {
		return nil, err
	}
	return svr, nil
}

func (svr *server) run() error {
	svr.logger.Infof("evhttpd is listening on %v (root=%s, workers=%d)",
		svr.ln.lnaddr, svr.opts.DocRoot, svr.opts.Workers)
	err := svr.poller.Polling(svr.dispatch, svr.sweep)
	if err == errors.ErrServerShutdown {
		svr.logger.Infof("evhttpd is exiting normally on the shutdown signal")
		return nil
	}
	svr.logger.Errorf("evhttpd reactor is exiting due to error: %v", err)
	return err
}

func (svr *server) release() {
	for _, c := range svr.conns {
		if c != nil {
			svr.evict(c)
		}
	}
	if svr.pool != nil {
		svr.pool.Release()
	}
	if svr.pipe != nil {
		svr.pipe.close()
	}
	if svr.ln != nil {
		svr.ln.close()
	}
	if svr.poller != nil {
		sniffErrorAndLog(svr.poller.Close())
	}
}

func (svr *server) liveConns() int {
	return int(atomic.LoadInt32(&svr.userCount))
}

func sniffErrorAndLog(err error) {
	if err != nil {
		logging.DefaultLogger.Errorf(err.Error())
	}
}
