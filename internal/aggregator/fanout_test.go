package aggregator

import (
	"net"
	"strconv"
	"testing"

	"github.com/pantach/patientdb/internal/registry"
	"github.com/pantach/patientdb/internal/wire"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// startFakeWorker listens on an ephemeral port and replies to every framed
// query line with the given fixed reply, closing the connection
// afterward (mirroring a real Worker's per-connection protocol).
func startFakeWorker(t *testing.T, reply string) registry.WorkerAddr {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go func(c net.Conn) {
				defer c.Close()
				if _, err := wire.ReadString(c); err != nil {
					return
				}
				_ = wire.WriteString(c, reply)
			}(conn)
		}
	}()

	addr := ln.Addr().(*net.TCPAddr)
	return registry.WorkerAddr{Host: "127.0.0.1", Port: addr.Port}
}

func TestHandleQueryDiseaseFrequencySumsAcrossWorkersSkippingNegativeOne(t *testing.T) {
	reg := registry.New()
	reg.Add(startFakeWorker(t, "3"))
	reg.Add(startFakeWorker(t, "-1"))
	reg.Add(startFakeWorker(t, "5"))

	client, server := net.Pipe()
	go handleQuery(server, "test-corr-id", reg)

	require.NoError(t, wire.WriteString(client, "/diseaseFrequency FluA 01-01-2020 31-01-2020"))
	reply, err := wire.ReadString(client)
	require.NoError(t, err)
	assert.Equal(t, "8", reply)
}

func TestHandleQuerySearchStreamsRepliesVerbatim(t *testing.T) {
	reg := registry.New()
	reg.Add(startFakeWorker(t, "p1 Alice Smith FluA 18 10-01-2020 undefined\n"))
	reg.Add(startFakeWorker(t, ""))

	client, server := net.Pipe()
	go handleQuery(server, "test-corr-id", reg)

	require.NoError(t, wire.WriteString(client, "/searchPatientRecord p1"))
	reply, err := wire.ReadString(client)
	require.NoError(t, err)
	assert.Contains(t, reply, "p1 Alice Smith FluA 18")
}

func TestHandleQueryUnknownCommand(t *testing.T) {
	reg := registry.New()
	client, server := net.Pipe()
	go handleQuery(server, "test-corr-id", reg)

	require.NoError(t, wire.WriteString(client, "/bogus"))
	reply, err := wire.ReadString(client)
	require.NoError(t, err)
	assert.Equal(t, "Unknown command\n", reply)
}

func TestSumDiseaseFrequencyAllNegativeOneYieldsZero(t *testing.T) {
	assert.Equal(t, "0", sumDiseaseFrequency([]string{"-1", "-1"}))
}

func TestSumDiseaseFrequencyMixed(t *testing.T) {
	got := sumDiseaseFrequency([]string{"2", "-1", strconv.Itoa(7)})
	assert.Equal(t, "9", got)
}
