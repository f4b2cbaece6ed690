package aggregator

import (
	"net"
	"strconv"
	"strings"

	"github.com/pantach/patientdb/internal/obslog"
	"github.com/pantach/patientdb/internal/registry"
	"github.com/pantach/patientdb/internal/wire"
)

// handleStats drains one Worker's stats push: a leading "PORT:<n>"
// registration frame, followed by zero or more statistics blocks, ended
// by an empty frame (wire.ErrNoMoreMessages from the Worker closing the
// connection is treated the same as a clean terminator). Grounded on
// original_source/whoserver.c's stats_handler.
func handleStats(conn net.Conn, corrID string, reg *registry.Registry) {
	defer conn.Close()
	log := obslog.WithConnID(corrID)

	host, _, err := net.SplitHostPort(conn.RemoteAddr().String())
	if err != nil {
		log.Warn().Err(err).Msg("stats conn: bad remote addr")
		return
	}

	first, err := wire.ReadString(conn)
	if err != nil {
		log.Warn().Err(err).Msg("stats conn: failed to read registration frame")
		return
	}

	port, ok := parsePortFrame(first)
	if !ok {
		log.Warn().Str("frame", first).Msg("stats conn: expected PORT: frame")
		return
	}
	reg.Add(registry.WorkerAddr{Host: host, Port: port})
	log.Info().Str("host", host).Int("port", port).Msg("worker registered")

	for {
		block, err := wire.ReadString(conn)
		if err != nil || block == "" {
			return
		}
		log.Debug().Str("host", host).Int("len", len(block)).Msg("stats block received")
	}
}

func parsePortFrame(s string) (int, bool) {
	const prefix = "PORT:"
	if !strings.HasPrefix(s, prefix) {
		return 0, false
	}
	port, err := strconv.Atoi(strings.TrimPrefix(s, prefix))
	if err != nil {
		return 0, false
	}
	return port, true
}
