package workersrv

// CLA holds the Worker's startup configuration, delivered as flags by
// the Master when it spawns the process.
type CLA struct {
	PipePath   string
	InputDir   string
	BufferSize int
}
