// Package registry implements the Aggregator's WorkerRegistry: an
// append-only, never-pruned sequence of worker addresses populated at
// STATS time and read by every query fanout. Access is guarded by a
// read/write lock — the original's lock-free treatment relies on a
// registration-before-query ordering this reimplementation does not
// assume (see DESIGN.md).
package registry

import (
	"net"
	"strconv"
	"sync"
)

// WorkerAddr is one worker's query-listening address, as reported over
// the stats link with "PORT:<n>".
type WorkerAddr struct {
	Host string
	Port int
}

// String formats the address for net.Dial.
func (a WorkerAddr) String() string {
	return net.JoinHostPort(a.Host, strconv.Itoa(a.Port))
}

// Registry is the Aggregator's worker address book. Addresses are never
// removed: a connect to a dead worker is silently skipped by the fanout
// path rather than being pruned here, so a later respawn on the same
// slot simply reuses or grows the list.
type Registry struct {
	mu   sync.RWMutex
	addr []WorkerAddr
}

// New returns an empty Registry.
func New() *Registry { return &Registry{} }

// Add appends a worker address. Safe for concurrent use with Snapshot.
func (r *Registry) Add(a WorkerAddr) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.addr = append(r.addr, a)
}

// Snapshot returns a copy of the current address list for a query fanout
// round to iterate without holding the lock during slow network I/O.
func (r *Registry) Snapshot() []WorkerAddr {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]WorkerAddr, len(r.addr))
	copy(out, r.addr)
	return out
}

// Len reports the current registry size.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.addr)
}
