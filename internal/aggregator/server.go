package aggregator

import (
	"fmt"
	"net"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/pantach/patientdb/internal/metrics"
	"github.com/pantach/patientdb/internal/obslog"
	"github.com/pantach/patientdb/internal/registry"
	"github.com/pantach/patientdb/internal/wire"
)

// Server owns the Aggregator's two listeners, bounded accept queue, and
// fixed thread pool.
type Server struct {
	cfg     CLA
	reg     *registry.Registry
	queue   *Queue
	pool    *Pool
	queryLn net.Listener
	statsLn net.Listener
	done    chan struct{}
}

// New builds a Server. Call Run to bind both listeners and serve until
// ctx-equivalent signal shutdown.
func New(cfg CLA) *Server {
	reg := registry.New()
	queue := NewQueue(cfg.QueueSize)
	return &Server{
		cfg:   cfg,
		reg:   reg,
		queue: queue,
		pool:  NewPool(cfg.Workers, queue, reg),
		done:  make(chan struct{}),
	}
}

// Run binds both listeners, starts the thread pool, and serves until
// SIGINT, matching the original's signal-driven shutdown.
func (s *Server) Run() error {
	log := obslog.WithComponent("aggregator")

	queryLn, err := net.Listen("tcp", fmt.Sprintf(":%d", s.cfg.QueryPort))
	if err != nil {
		return fmt.Errorf("aggregator: listen query port: %w", err)
	}
	s.queryLn = queryLn

	statsLn, err := net.Listen("tcp", fmt.Sprintf(":%d", s.cfg.StatsPort))
	if err != nil {
		_ = queryLn.Close()
		return fmt.Errorf("aggregator: listen stats port: %w", err)
	}
	s.statsLn = statsLn

	log.Info().
		Str("query_addr", queryLn.Addr().String()).
		Str("stats_addr", statsLn.Addr().String()).
		Int("workers", s.cfg.Workers).
		Int("queue_size", s.cfg.QueueSize).
		Msg("aggregator listening")

	s.pool.Start()
	go s.reportQueueDepth()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT)

	var wg sync.WaitGroup
	wg.Add(2)
	go s.acceptLoop(queryLn, QueryConn, &wg)
	go s.acceptLoop(statsLn, StatsConn, &wg)

	<-sigCh
	log.Info().Msg("shutting down")
	close(s.done)
	_ = queryLn.Close()
	_ = statsLn.Close()
	wg.Wait()
	s.queue.Close()
	s.pool.Wait()
	return nil
}

// acceptLoop accepts connections on ln, tags them with kind, and pushes
// them onto the shared queue. A full queue gets the original's rejection
// message rather than blocking the accept loop.
func (s *Server) acceptLoop(ln net.Listener, kind ConnKind, wg *sync.WaitGroup) {
	defer wg.Done()

	for {
		conn, err := ln.Accept()
		if err != nil {
			return
		}

		corrID := uuid.NewString()
		if !s.queue.Push(&Conn{Kind: kind, Net: conn, CorrID: corrID}) {
			metrics.AggregatorQueueRejections.Inc()
			_ = wire.WriteString(conn, "Circular buffer full. Closing connection...\n")
			_ = wire.WriteString(conn, "")
			_ = conn.Close()
			obslog.WithConnID(corrID).Warn().Msg("accept queue full, connection rejected")
			continue
		}
	}
}

// reportQueueDepth samples the accept-queue depth and registry size on a
// fixed interval, feeding the gauges scraped by Prometheus.
func (s *Server) reportQueueDepth() {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			metrics.AggregatorQueueDepth.Set(float64(s.queue.Len()))
			metrics.AggregatorWorkerRegistrySize.Set(float64(s.reg.Len()))
		}
	}
}
