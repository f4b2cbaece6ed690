// Package fifoipc implements the Master→Worker control channel: one
// named pipe per worker slot, carrying framed country-assignment and
// aggregator-address messages, grounded on original_source/master.c's
// wfifo_%d pipes and fifo.c's framing.
package fifoipc

import (
	"bufio"
	"fmt"
	"io"
	"os"

	"golang.org/x/sys/unix"

	"github.com/pantach/patientdb/internal/wire"
)

// Mode matches the 0775 permission the distilled spec requires for the
// control pipes.
const Mode = 0o775

// Path renders the pipe path for worker slot i, matching
// original_source/master.c's WORKER_FIFO_TEMPLATE "wfifo_%d".
func Path(slot int) string {
	return fmt.Sprintf("wfifo_%d", slot)
}

// Create makes the named pipe at path, tolerating one that already exists
// (a prior run's pipe left on disk).
func Create(path string) error {
	if err := unix.Mkfifo(path, Mode); err != nil && !os.IsExist(err) {
		return fmt.Errorf("fifoipc: mkfifo %s: %w", path, err)
	}
	return nil
}

// Remove unlinks the pipe at path. Errors are not fatal: cleanup on
// shutdown is best-effort.
func Remove(path string) error {
	return os.Remove(path)
}

// OpenWriter opens path for writing. This blocks until a reader has
// opened the same pipe, matching named-pipe open semantics; callers
// should open after the corresponding worker process has started.
func OpenWriter(path string) (*os.File, error) {
	f, err := os.OpenFile(path, os.O_WRONLY, 0)
	if err != nil {
		return nil, fmt.Errorf("fifoipc: open writer %s: %w", path, err)
	}
	return f, nil
}

// OpenReader opens path for reading, blocking until a writer attaches.
func OpenReader(path string) (*os.File, error) {
	f, err := os.OpenFile(path, os.O_RDONLY, 0)
	if err != nil {
		return nil, fmt.Errorf("fifoipc: open reader %s: %w", path, err)
	}
	return f, nil
}

// BufferedWriter wraps w in a bufio.Writer sized at bufSize, the Go
// stand-in for original_source/fifo.c's _write_fifo fixed bufsize stack
// buffer. Small writes collect in the buffer; a write larger than the
// buffer's free space is passed to w whole once the buffer is empty, so
// writes to w are not capped at bufSize bytes. Callers must Flush after
// their last write.
func BufferedWriter(w io.Writer, bufSize int) *bufio.Writer {
	return bufio.NewWriterSize(w, bufSize)
}

// BufferedReader wraps r in a bufio.Reader sized at bufSize, the read-side
// analogue of BufferedWriter matching original_source/fifo.c's
// _read_fifo.
func BufferedReader(r io.Reader, bufSize int) *bufio.Reader {
	return bufio.NewReaderSize(r, bufSize)
}

// WriteCountries writes countries as a sequence of framed strings,
// followed by an empty-string terminator frame.
func WriteCountries(w io.Writer, countries []string) error {
	for _, c := range countries {
		if err := wire.WriteString(w, c); err != nil {
			return err
		}
	}
	return wire.WriteString(w, "")
}

// ReadCountries reads framed strings until the empty terminator,
// returning the accumulated list.
func ReadCountries(r io.Reader) ([]string, error) {
	var out []string
	for {
		s, err := wire.ReadString(r)
		if err != nil {
			return nil, err
		}
		if s == "" {
			return out, nil
		}
		out = append(out, s)
	}
}

// WriteAggregatorAddr appends one frame carrying the Aggregator's TCP
// address (host:port), sent once after the initial country list. Per
// DESIGN.md's respawn note, the Master resends this on every respawn
// rather than relying on the Worker to have persisted it.
func WriteAggregatorAddr(w io.Writer, addr string) error {
	return wire.WriteString(w, addr)
}

// ReadAggregatorAddr reads the aggregator-address frame.
func ReadAggregatorAddr(r io.Reader) (string, error) {
	return wire.ReadString(r)
}
