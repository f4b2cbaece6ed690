package aggregator

import (
	"net"
	"testing"
	"time"

	"github.com/pantach/patientdb/internal/registry"
	"github.com/pantach/patientdb/internal/wire"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPoolServicesQueuedQueryWithNoWorkersRegistered(t *testing.T) {
	q := NewQueue(4)
	reg := registry.New()
	pool := NewPool(2, q, reg)
	pool.Start()
	defer func() {
		q.Close()
		pool.Wait()
	}()

	client, server := net.Pipe()
	require.True(t, q.Push(&Conn{Kind: QueryConn, Net: server}))
	require.NoError(t, wire.WriteString(client, "/searchPatientRecord p1"))

	client.SetReadDeadline(time.Now().Add(2 * time.Second))
	reply, err := wire.ReadString(client)
	require.NoError(t, err)
	assert.Equal(t, "", reply, "no registered workers means an empty reply sequence")
}

func TestPoolServicesQueuedStatsConnection(t *testing.T) {
	q := NewQueue(4)
	reg := registry.New()
	pool := NewPool(1, q, reg)
	pool.Start()
	defer func() {
		q.Close()
		pool.Wait()
	}()

	client, server := dialedPair(t)
	require.NoError(t, wire.WriteString(client, "PORT:4242"))
	go wire.WriteString(client, "")
	require.True(t, q.Push(&Conn{Kind: StatsConn, Net: server}))

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if reg.Len() == 1 {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	require.Equal(t, 1, reg.Len())
	assert.Equal(t, 4242, reg.Snapshot()[0].Port)
}
