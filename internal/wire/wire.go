// Package wire implements the length-prefixed framing used on every pipe
// and socket link in the system, grounded on original_source/fifo.c and
// original_source/msg.c. Every frame is a fixed-width uint32 length
// header (the Go analogue of the original's native size_t header —
// network byte order here so the same framing works identically on
// pipes and TCP sockets) followed by that many bytes of body.
package wire

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// ErrNoMoreMessages is returned by ReadString/ReadRaw when the peer closed
// the connection before a complete header could be read, matching the
// original's read_fifo "no more messages" EOF convention.
var ErrNoMoreMessages = errors.New("wire: no more messages")

// MaxFrameSize bounds an accepted frame body, guarding against a
// corrupt or hostile length header forcing an unbounded allocation.
const MaxFrameSize = 64 << 20 // 64 MiB

// WriteString writes s as a framed message. An empty string is a legal
// frame and is used throughout the protocols as an end-of-stream
// terminator (country list terminator, stats terminator, query reply
// terminator).
func WriteString(w io.Writer, s string) error {
	return writeFrame(w, []byte(s))
}

// ReadString reads one framed string message.
func ReadString(r io.Reader) (string, error) {
	b, err := readFrame(r)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// WriteRaw writes an opaque byte payload as a framed message. The worker
// assignment protocol does not use it: country names and the
// aggregator-address record travel as framed strings (see fifoipc).
func WriteRaw(w io.Writer, p []byte) error {
	return writeFrame(w, p)
}

// ReadRaw reads one framed opaque message.
func ReadRaw(r io.Reader) ([]byte, error) {
	return readFrame(r)
}

func writeFrame(w io.Writer, body []byte) error {
	var header [4]byte
	binary.BigEndian.PutUint32(header[:], uint32(len(body)))

	bw := bufio.NewWriter(w)
	if _, err := bw.Write(header[:]); err != nil {
		return fmt.Errorf("wire: write header: %w", err)
	}
	if len(body) > 0 {
		if _, err := bw.Write(body); err != nil {
			return fmt.Errorf("wire: write body: %w", err)
		}
	}
	return bw.Flush()
}

func readFrame(r io.Reader) ([]byte, error) {
	var header [4]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, ErrNoMoreMessages
		}
		return nil, fmt.Errorf("wire: read header: %w", err)
	}

	n := binary.BigEndian.Uint32(header[:])
	if n > MaxFrameSize {
		return nil, fmt.Errorf("wire: frame of %d bytes exceeds max %d", n, MaxFrameSize)
	}
	if n == 0 {
		return []byte{}, nil
	}

	body := make([]byte, n)
	if _, err := io.ReadFull(r, body); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, ErrNoMoreMessages
		}
		return nil, fmt.Errorf("wire: read body: %w", err)
	}
	return body, nil
}
