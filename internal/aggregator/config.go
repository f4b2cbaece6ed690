package aggregator

// CLA holds the Aggregator's startup configuration (-q -s -w -b).
type CLA struct {
	QueryPort int
	StatsPort int
	Workers   int // pool size
	QueueSize int // bounded accept-queue capacity
}
