// Package workersrv implements the Worker's query server loop: read
// assigned countries and the Aggregator address from the Master's
// pipe, ingest each country's record files, register with the
// Aggregator's stats port, then accept one framed query per connection
// until told to stop, rescanning on SIGUSR1. Grounded on
// original_source/master.c's worker() function.
package workersrv

import (
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sys/unix"

	"github.com/pantach/patientdb/internal/fifoipc"
	"github.com/pantach/patientdb/internal/ingest"
	"github.com/pantach/patientdb/internal/metrics"
	"github.com/pantach/patientdb/internal/obslog"
	"github.com/pantach/patientdb/internal/patient"
	"github.com/pantach/patientdb/internal/wire"
)

// Worker owns one Worker process's patient index, ingestion pipeline,
// and query listener. All of its methods run on a single goroutine
// (the accept loop): no locks guard the Index because nothing else
// touches it concurrently.
type Worker struct {
	countries []string
	aggAddr   string
	inputDir  string

	index    *patient.Index
	pipeline *ingest.Pipeline

	listener net.Listener
	port     int
}

// NewWorker performs the pipe handshake (countries, then the Aggregator
// address) and builds the ingestion pipeline, but does not yet ingest or
// listen.
func NewWorker(cfg CLA) (*Worker, error) {
	if cfg.BufferSize <= 0 {
		return nil, fmt.Errorf("workersrv: buffer size must be positive, got %d", cfg.BufferSize)
	}

	r, err := fifoipc.OpenReader(cfg.PipePath)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	br := fifoipc.BufferedReader(r, cfg.BufferSize)

	countries, err := fifoipc.ReadCountries(br)
	if err != nil {
		return nil, fmt.Errorf("workersrv: read countries: %w", err)
	}

	aggAddr, err := fifoipc.ReadAggregatorAddr(br)
	if err != nil {
		return nil, fmt.Errorf("workersrv: read aggregator addr: %w", err)
	}

	ix := patient.NewIndex()

	w := &Worker{
		countries: countries,
		aggAddr:   aggAddr,
		inputDir:  cfg.InputDir,
		index:     ix,
		pipeline:  ingest.NewPipeline(cfg.InputDir, ix),
	}
	return w, nil
}

// IngestAll runs the initial ingestion pass over every assigned country,
// returning the emitted statistics blocks, one slice element per block.
func (w *Worker) IngestAll() []string {
	log := obslog.WithComponent("worker")
	start := time.Now()
	defer func() { metrics.WorkerRescanDuration.Observe(time.Since(start).Seconds()) }()

	var stats []string
	for _, country := range w.countries {
		err := w.pipeline.Rescan(country, func(s string) {
			stats = append(stats, s)
		}, func(e *ingest.LineError) {
			metrics.WorkerIngestErrorsTotal.WithLabelValues(string(e.Kind)).Inc()
			log.Warn().Str("country", country).Str("kind", string(e.Kind)).Str("line", e.Line).Msg(e.Message)
		})
		if err != nil {
			log.Error().Err(err).Str("country", country).Msg("ingestion failed")
		}
		metrics.WorkerPatientsTotal.WithLabelValues(country).Set(float64(w.index.CountryPatientCount(country)))
	}
	return stats
}

// Rescan re-runs ingestion for every assigned country and returns only
// the statistics emitted for files discovered since the last pass, the
// SIGUSR1 handler's entry point.
func (w *Worker) Rescan() []string {
	return w.IngestAll()
}

// Listen opens the kernel-chosen TCP query port.
func (w *Worker) Listen() error {
	l, err := net.Listen("tcp", ":0")
	if err != nil {
		return fmt.Errorf("workersrv: listen: %w", err)
	}
	w.listener = l
	w.port = l.Addr().(*net.TCPAddr).Port
	return nil
}

// Port returns the worker's kernel-chosen listening port. Valid only
// after Listen.
func (w *Worker) Port() int { return w.port }

// RegisterAndPushStats dials the Aggregator's stats address and pushes
// one "PORT:<n>" registration frame followed by every stats block,
// terminated by an empty frame, matching the Aggregator's stats-handler
// read loop (which stops, and closes its end, at the first empty frame).
func (w *Worker) RegisterAndPushStats(stats []string) error {
	conn, err := net.Dial("tcp", w.aggAddr)
	if err != nil {
		return fmt.Errorf("workersrv: dial aggregator stats: %w", err)
	}
	defer conn.Close()

	if err := wire.WriteString(conn, fmt.Sprintf("PORT:%d", w.port)); err != nil {
		return err
	}
	for _, s := range stats {
		if err := wire.WriteString(conn, s); err != nil {
			return err
		}
	}
	return wire.WriteString(conn, "")
}

// Serve runs the accept loop: one framed query per connection, dispatched
// to the patient index, replied with one framed message. SIGUSR1
// triggers a rescan and stats push; SIGINT/SIGQUIT break the loop
// (SIGQUIT additionally aborts the process, matching the original's
// behavior).
func (w *Worker) Serve() error {
	log := obslog.WithComponent("worker")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGQUIT, syscall.SIGUSR1)
	defer signal.Stop(sigCh)

	connCh := make(chan net.Conn)
	acceptErrCh := make(chan error, 1)
	go func() {
		for {
			conn, err := w.listener.Accept()
			if err != nil {
				acceptErrCh <- err
				return
			}
			connCh <- conn
		}
	}()

	for {
		select {
		case sig := <-sigCh:
			switch sig {
			case syscall.SIGUSR1:
				newStats := w.Rescan()
				if len(newStats) > 0 {
					if err := w.RegisterAndPushStats(newStats); err != nil {
						log.Error().Err(err).Msg("failed to push rescan stats")
					}
				}
			case syscall.SIGQUIT:
				log.Warn().Msg("SIGQUIT received, aborting")
				_ = w.listener.Close()
				_ = unix.Kill(os.Getpid(), unix.SIGABRT)
				return nil
			default: // SIGINT
				_ = w.listener.Close()
				return nil
			}

		case err := <-acceptErrCh:
			return err

		case conn := <-connCh:
			w.handleConn(conn)
		}
	}
}

func (w *Worker) handleConn(conn net.Conn) {
	defer conn.Close()

	line, err := wire.ReadString(conn)
	if err != nil {
		return
	}

	reply := Dispatch(w.index, w.countries, line)
	_ = wire.WriteString(conn, reply)
}
