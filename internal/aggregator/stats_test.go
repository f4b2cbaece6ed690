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

// dialedPair returns a real loopback TCP connection pair (server side,
// client side) — handleStats relies on net.SplitHostPort(RemoteAddr()),
// which net.Pipe's synthetic addresses do not support.
func dialedPair(t *testing.T) (client, server net.Conn) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })

	serverCh := make(chan net.Conn, 1)
	go func() {
		c, err := ln.Accept()
		if err == nil {
			serverCh <- c
		}
	}()

	client, err = net.Dial("tcp", ln.Addr().String())
	require.NoError(t, err)
	server = <-serverCh
	return client, server
}

func TestHandleStatsRegistersWorkerFromPortFrame(t *testing.T) {
	reg := registry.New()
	client, server := dialedPair(t)

	done := make(chan struct{})
	go func() {
		handleStats(server, "test-corr-id", reg)
		close(done)
	}()

	require.NoError(t, wire.WriteString(client, "PORT:5050"))
	require.NoError(t, wire.WriteString(client, "01-01-2020\nUK\n\n"))
	require.NoError(t, wire.WriteString(client, ""))
	client.Close()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("handleStats never returned")
	}

	require.Equal(t, 1, reg.Len())
	assert.Equal(t, 5050, reg.Snapshot()[0].Port)
}

func TestHandleStatsIgnoresMalformedRegistrationFrame(t *testing.T) {
	reg := registry.New()
	client, server := dialedPair(t)

	done := make(chan struct{})
	go func() {
		handleStats(server, "test-corr-id", reg)
		close(done)
	}()

	require.NoError(t, wire.WriteString(client, "not-a-port-frame"))
	client.Close()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("handleStats never returned")
	}

	assert.Equal(t, 0, reg.Len())
}
