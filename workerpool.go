// +build linux

package evhttpd

import "github.com/panjf2000/ants/v2"

// task is what the pool runs; satisfied by *conn.
type task interface {
	process()
}

// workerPool is the bounded request-processing pool. The pool is nonblocking:
// Invoke fails with ants.ErrPoolOverload when every worker is busy, and the
// reactor re-arms the connection's read readiness so the level-triggered
// poller re-offers it on the next wakeup.
type workerPool struct {
	pool *ants.PoolWithFunc
}

func newWorkerPool(size int) (*workerPool, error) {
	p, err := ants.NewPoolWithFunc(size, func(arg interface{}) {
		arg.(task).process()
	}, ants.WithNonblocking(true))
	if err != nil {
		return nil, err
	}
	return &workerPool{pool: p}, nil
}

func (wp *workerPool) Invoke(t task) error {
	return wp.pool.Invoke(t)
}

func (wp *workerPool) Release() {
	wp.pool.Release()
}
