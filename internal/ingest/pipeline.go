// Package ingest implements the per-country ingestion and incremental
// rescan pipeline: date-ordered parsing of record files, EXIT-line
// reconciliation, duplicate detection, and on-signal rescan that emits
// statistics only for files discovered since the last pass.
package ingest

import (
	"path/filepath"

	"github.com/pantach/patientdb/internal/patient"
)

// StatsFunc receives one emitted statistics block as ingestion discovers
// newly-parsed files.
type StatsFunc func(stats string)

// Pipeline owns one FileTracker per assigned country and drives ingestion
// against a shared patient.Index. It is used both for the initial load
// and for every SIGUSR1-triggered rescan, and is not safe for concurrent
// use — like the Index it drives, it belongs to the Worker's single main
// goroutine.
type Pipeline struct {
	inputDir string
	index    *patient.Index
	trackers map[string]*FileTracker
}

// NewPipeline creates a Pipeline rooted at inputDir, feeding ix.
func NewPipeline(inputDir string, ix *patient.Index) *Pipeline {
	return &Pipeline{
		inputDir: inputDir,
		index:    ix,
		trackers: make(map[string]*FileTracker),
	}
}

func (p *Pipeline) trackerFor(country string) *FileTracker {
	t, ok := p.trackers[country]
	if !ok {
		t = NewFileTracker()
		p.trackers[country] = t
	}
	return t
}

// Rescan discovers new files for one country, stable-sorts the known set
// by date, and parses every file not yet marked Parsed, in date order,
// emitting one StatsFunc call per newly parsed file that produced at
// least one patient on its date. Idempotent: a second call with no
// filesystem changes emits no statistics.
func (p *Pipeline) Rescan(country string, onStats StatsFunc, onLineError func(*LineError)) error {
	tracker := p.trackerFor(country)
	dir := filepath.Join(p.inputDir, country)

	if err := tracker.Discover(dir); err != nil {
		return err
	}

	for _, rf := range tracker.Sorted() {
		if rf.Parsed {
			continue
		}

		// Open/read failures are system-call failures: fatal to the
		// caller, which owns process-termination policy.
		if _, err := ingestFile(p.index, country, rf, onLineError); err != nil {
			return err
		}

		matching := p.index.GetByCountryAndEntryDate(country, rf.Date)
		if stats := BuildStats(country, rf.Date, matching); stats != "" && onStats != nil {
			onStats(stats)
		}
		rf.Parsed = true
	}

	return nil
}
