package ingest

import (
	"bufio"
	"os"
	"strconv"
	"strings"

	"github.com/pantach/patientdb/internal/patient"
)

// LineErrorKind classifies a per-line ingestion failure.
type LineErrorKind string

const (
	ErrKindMalformedLine  LineErrorKind = "ELINE"
	ErrKindExitBeforeEntry LineErrorKind = "EEXIT"
	ErrKindDuplicateID    LineErrorKind = "EDUPID"
	ErrKindUnknownID      LineErrorKind = "EINVID"
	ErrKindBadRecordData  LineErrorKind = "ERECDAT"
)

// LineError reports one rejected line; ingestion continues past it.
type LineError struct {
	Kind    LineErrorKind
	Line    string
	Message string
}

func (e *LineError) Error() string { return e.Message }

// fileEventSink receives per-line LineErrors as ingestion runs; the
// caller decides whether to log, collect, or ignore them.
type fileEventSink func(*LineError)

// ingestFile parses one record file's non-blank lines against ix,
// classifying and reporting failures via onError instead of aborting.
// Returns the number of lines successfully applied.
func ingestFile(ix *patient.Index, country string, rf *RecordFile, onError fileEventSink) (int, error) {
	f, err := os.Open(rf.Path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	applied := 0
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if ingestLine(ix, country, rf.Date, line, onError) {
			applied++
		}
	}
	return applied, scanner.Err()
}

func ingestLine(ix *patient.Index, country string, fileDate patient.Date, line string, onError fileEventSink) bool {
	fields := strings.Fields(line)
	if len(fields) < 6 {
		report(onError, ErrKindMalformedLine, line, "Erroneous line")
		return false
	}

	id, action, first, last, virus, ageStr := fields[0], fields[1], fields[2], fields[3], fields[4], fields[5]

	switch strings.ToUpper(action) {
	case "ENTER":
		return ingestEnter(ix, country, fileDate, id, first, last, virus, ageStr, line, onError)
	case "EXIT":
		return ingestExit(ix, country, fileDate, id, line, onError)
	default:
		report(onError, ErrKindMalformedLine, line, "Erroneous line")
		return false
	}
}

func ingestEnter(ix *patient.Index, country string, fileDate patient.Date, id, first, last, virus, ageStr, line string, onError fileEventSink) bool {
	if _, exists := ix.Find(country, id); exists {
		report(onError, ErrKindDuplicateID, line, "Duplicate record id")
		return false
	}

	age, err := strconv.Atoi(ageStr)
	if err != nil {
		report(onError, ErrKindBadRecordData, line, "Erroneous record data")
		return false
	}

	p := &patient.Patient{
		ID:        id,
		First:     first,
		Last:      last,
		Virus:     virus,
		Country:   country,
		Age:       age,
		EntryDate: fileDate,
		ExitDate:  patient.Undefined,
	}
	if err := p.Validate(); err != nil {
		report(onError, ErrKindBadRecordData, line, "Erroneous record data")
		return false
	}

	if err := ix.Insert(p); err != nil {
		report(onError, ErrKindDuplicateID, line, "Duplicate record id")
		return false
	}
	return true
}

func ingestExit(ix *patient.Index, country string, fileDate patient.Date, id, line string, onError fileEventSink) bool {
	p, ok := ix.Find(country, id)
	if !ok {
		report(onError, ErrKindUnknownID, line, "Invalid record id")
		return false
	}

	if err := ix.SetExit(p, fileDate); err != nil {
		report(onError, ErrKindExitBeforeEntry, line, "Exit date comes before entry date")
		return false
	}
	return true
}

func report(onError fileEventSink, kind LineErrorKind, line, msg string) {
	if onError == nil {
		return
	}
	onError(&LineError{Kind: kind, Line: line, Message: msg})
}
