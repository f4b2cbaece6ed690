package ingest

import (
	"os"
	"path/filepath"
	"sort"

	"github.com/pantach/patientdb/internal/patient"
)

// RecordFile tracks one record file's path and whether it has already
// been fully parsed. Parsed flips monotonically false→true.
type RecordFile struct {
	Path   string
	Date   patient.Date
	Parsed bool
}

// FileTracker is the ordered set of known record files for one country,
// keyed by path, grounded on original_source/master.c's Record_file
// vector plus update_recordfiles/parse_recordfiles.
type FileTracker struct {
	known map[string]*RecordFile
}

// NewFileTracker returns an empty tracker.
func NewFileTracker() *FileTracker {
	return &FileTracker{known: make(map[string]*RecordFile)}
}

// Discover lists dir and adds any path not already known, with
// Parsed=false. A basename that isn't a well-formed dd-mm-yyyy date is
// skipped (it is not a record file).
func (t *FileTracker) Discover(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}

	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		path := filepath.Join(dir, e.Name())
		if _, known := t.known[path]; known {
			continue
		}
		date, err := patient.ParseDate(e.Name())
		if err != nil {
			continue
		}
		t.known[path] = &RecordFile{Path: path, Date: date, Parsed: false}
	}
	return nil
}

// Sorted returns every known file, stable-sorted ascending by the date
// encoded in its basename; ties (which should not occur) break on path
// string.
func (t *FileTracker) Sorted() []*RecordFile {
	out := make([]*RecordFile, 0, len(t.known))
	for _, rf := range t.known {
		out = append(out, rf)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if c := patient.CompareDate(out[i].Date, out[j].Date); c != 0 {
			return c < 0
		}
		return out[i].Path < out[j].Path
	})
	return out
}
