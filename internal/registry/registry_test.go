package registry

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAddAndSnapshot(t *testing.T) {
	r := New()
	r.Add(WorkerAddr{Host: "127.0.0.1", Port: 9001})
	r.Add(WorkerAddr{Host: "127.0.0.1", Port: 9002})

	snap := r.Snapshot()
	assert.Equal(t, 2, r.Len())
	assert.Equal(t, []WorkerAddr{{Host: "127.0.0.1", Port: 9001}, {Host: "127.0.0.1", Port: 9002}}, snap)
}

func TestConcurrentAddIsSafe(t *testing.T) {
	r := New()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			r.Add(WorkerAddr{Host: "h", Port: p})
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 50, r.Len())
}
