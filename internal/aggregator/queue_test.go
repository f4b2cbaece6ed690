package aggregator

import (
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fakeConn() *Conn {
	c1, c2 := net.Pipe()
	go discardReads(c2)
	return &Conn{Kind: QueryConn, Net: c1}
}

func discardReads(c net.Conn) {
	// drains a net.Pipe peer so that any write to the queued end cannot
	// block; Queue itself never reads or writes the conn
	buf := make([]byte, 256)
	for {
		if _, err := c.Read(buf); err != nil {
			return
		}
	}
}

func TestQueuePushPopFIFO(t *testing.T) {
	q := NewQueue(4)
	c1, c2, c3 := fakeConn(), fakeConn(), fakeConn()

	require.True(t, q.Push(c1))
	require.True(t, q.Push(c2))
	require.True(t, q.Push(c3))
	assert.Equal(t, 3, q.Len())

	got1, ok := q.Pop()
	require.True(t, ok)
	assert.Same(t, c1, got1)

	got2, ok := q.Pop()
	require.True(t, ok)
	assert.Same(t, c2, got2)
}

func TestQueuePushFailsWhenFull(t *testing.T) {
	q := NewQueue(1)
	require.True(t, q.Push(fakeConn()))
	assert.False(t, q.Push(fakeConn()))
}

func TestQueuePopBlocksUntilPush(t *testing.T) {
	q := NewQueue(2)
	done := make(chan *Conn, 1)

	go func() {
		conn, ok := q.Pop()
		if ok {
			done <- conn
		}
	}()

	select {
	case <-done:
		t.Fatal("Pop returned before any Push")
	case <-time.After(50 * time.Millisecond):
	}

	c := fakeConn()
	require.True(t, q.Push(c))

	select {
	case got := <-done:
		assert.Same(t, c, got)
	case <-time.After(time.Second):
		t.Fatal("Pop never unblocked after Push")
	}
}

func TestQueueCloseUnblocksWaitingPop(t *testing.T) {
	q := NewQueue(1)
	var wg sync.WaitGroup
	wg.Add(1)

	go func() {
		defer wg.Done()
		_, ok := q.Pop()
		assert.False(t, ok)
	}()

	time.Sleep(20 * time.Millisecond)
	q.Close()

	done := make(chan struct{})
	go func() { wg.Wait(); close(done) }()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Close did not unblock Pop")
	}
}

func TestQueueConcurrentProducersConsumersNoDuplicateOrLoss(t *testing.T) {
	const n = 200
	q := NewQueue(8)

	var produced sync.WaitGroup
	for i := 0; i < n; i++ {
		produced.Add(1)
		go func() {
			defer produced.Done()
			for !q.Push(fakeConn()) {
				time.Sleep(time.Millisecond)
			}
		}()
	}

	seen := make(chan *Conn, n)
	var consumed sync.WaitGroup
	for i := 0; i < 4; i++ {
		consumed.Add(1)
		go func() {
			defer consumed.Done()
			for i := 0; i < n/4; i++ {
				conn, ok := q.Pop()
				if !ok {
					return
				}
				seen <- conn
			}
		}()
	}

	produced.Wait()
	consumed.Wait()
	close(seen)

	unique := make(map[*Conn]bool)
	for c := range seen {
		assert.False(t, unique[c], "connection serviced twice")
		unique[c] = true
	}
	assert.Equal(t, n, len(unique))
}
