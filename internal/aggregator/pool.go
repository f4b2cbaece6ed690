package aggregator

import (
	"sync"

	"github.com/pantach/patientdb/internal/obslog"
	"github.com/pantach/patientdb/internal/registry"
)

// Pool is a fixed set of worker goroutines draining a Queue, the
// goroutine analogue of whoserver.c's pthread_create thread pool.
type Pool struct {
	size  int
	queue *Queue
	reg   *registry.Registry
	wg    sync.WaitGroup
}

// NewPool creates a Pool of n goroutines that will drain q once Start is
// called. reg is consulted per-query to know which Worker addresses to
// fan out to.
func NewPool(n int, q *Queue, reg *registry.Registry) *Pool {
	return &Pool{size: n, queue: q, reg: reg}
}

// Start launches the pool's goroutines. Each pulls one Conn at a time
// from the queue and dispatches it by kind.
func (p *Pool) Start() {
	log := obslog.WithComponent("aggregator")
	for i := 0; i < p.size; i++ {
		p.wg.Add(1)
		go func(id int) {
			defer p.wg.Done()
			for {
				conn, ok := p.queue.Pop()
				if !ok {
					return
				}
				switch conn.Kind {
				case StatsConn:
					handleStats(conn.Net, conn.CorrID, p.reg)
				case QueryConn:
					handleQuery(conn.Net, conn.CorrID, p.reg)
				default:
					log.Warn().Int("worker", id).Msg("unknown connection kind")
					_ = conn.Net.Close()
				}
			}
		}(i)
	}
}

// Wait blocks until every pool goroutine has returned, which happens
// once the queue is closed and drained.
func (p *Pool) Wait() {
	p.wg.Wait()
}
