package supervisor

// CLA holds the Master's command-line configuration (-w -b -s -p -i),
// named for the original's "command-line arguments" struct.
type CLA struct {
	WorkersRequested int
	BufferSize       int
	InputDir         string
	AggregatorAddr   string // "ip:port"
	WorkerBinary     string // path to the worker executable
}
