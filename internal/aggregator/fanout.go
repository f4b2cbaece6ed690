package aggregator

import (
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/pantach/patientdb/internal/metrics"
	"github.com/pantach/patientdb/internal/obslog"
	"github.com/pantach/patientdb/internal/queryproto"
	"github.com/pantach/patientdb/internal/registry"
	"github.com/pantach/patientdb/internal/wire"
)

// handleQuery reads one framed query line from a client connection and
// fans it out to every registered Worker, one after another. For
// /diseaseFrequency it sends one frame with the summed count; for every
// other command it forwards each non-empty Worker reply verbatim as its
// own frame as soon as it arrives. Every reply sequence, including the
// unknown-command error, ends with an empty terminator frame. Grounded on
// original_source/whoserver.c's query_handler and master.c's
// client-facing dispatch.
func handleQuery(conn net.Conn, corrID string, reg *registry.Registry) {
	defer conn.Close()
	log := obslog.WithConnID(corrID)

	line, err := wire.ReadString(conn)
	if err != nil {
		return
	}
	start := time.Now()
	defer func() { metrics.AggregatorFanoutDuration.Observe(time.Since(start).Seconds()) }()

	tokens := queryproto.Tokenize(line)
	if len(tokens) == 0 {
		_ = wire.WriteString(conn, "")
		return
	}

	cmd, ok := queryproto.Lookup(tokens[0])
	if !ok {
		_ = wire.WriteString(conn, queryproto.ErrUnknownCommand)
		_ = wire.WriteString(conn, "")
		return
	}

	log.Debug().Str("command", tokens[0]).Msg("fanout round starting")

	workers := reg.Snapshot()
	replies := make([]string, 0, len(workers))
	for _, w := range workers {
		reply, err := queryWorker(w, line)
		if err != nil {
			log.Warn().Err(err).Str("worker", w.String()).Msg("worker query failed")
			continue
		}
		if cmd.Name == queryproto.DiseaseFrequency {
			replies = append(replies, reply)
		} else if reply != "" {
			_ = wire.WriteString(conn, reply)
		}
	}

	if cmd.Name == queryproto.DiseaseFrequency {
		_ = wire.WriteString(conn, sumDiseaseFrequency(replies))
	}
	_ = wire.WriteString(conn, "")
}

// queryWorker dials a single Worker, sends the query line, and returns
// its framed reply.
func queryWorker(addr registry.WorkerAddr, line string) (string, error) {
	conn, err := net.Dial("tcp", addr.String())
	if err != nil {
		return "", err
	}
	defer conn.Close()

	if err := wire.WriteString(conn, line); err != nil {
		return "", err
	}
	return wire.ReadString(conn)
}

// sumDiseaseFrequency adds up every Worker's integer reply, skipping any
// reply of "-1" (a Worker's signal that the query's dates failed to
// parse). The sum starts at zero and is always sent, whether or not any
// worker contributed to it.
func sumDiseaseFrequency(replies []string) string {
	sum := 0
	for _, r := range replies {
		r = strings.TrimSpace(r)
		if r == "-1" || r == "" {
			continue
		}
		n, err := strconv.Atoi(r)
		if err != nil {
			continue
		}
		sum += n
	}
	return strconv.Itoa(sum)
}
