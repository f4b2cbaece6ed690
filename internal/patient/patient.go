// Package patient implements the in-memory Patient index: an
// authoritative country→id map plus two order-statistic trees (by
// country, by virus) keyed on entry date, grounded on
// original_source/patient.c's PatientDB.
package patient

import "fmt"

// MinAge and MaxAge bound the Patient.Age invariant (1 <= age <= 120).
const (
	MinAge = 1
	MaxAge = 120
)

// Patient is one admitted-patient record. Mutated in place only by
// Index.SetExit; every other field is fixed at construction.
type Patient struct {
	ID        string
	First     string
	Last      string
	Virus     string
	Country   string
	Age       int
	EntryDate Date
	ExitDate  Date
}

// Validate checks the field-level invariants a Patient must satisfy
// before it may be inserted: age range, and exit-not-before-entry when
// both are defined.
func (p *Patient) Validate() error {
	if p.Age < MinAge || p.Age > MaxAge {
		return fmt.Errorf("age %d out of range [%d,%d]", p.Age, MinAge, MaxAge)
	}
	if !p.EntryDate.IsDefined() {
		return fmt.Errorf("entry date is not defined")
	}
	if p.ExitDate.IsDefined() && CompareDate(p.ExitDate, p.EntryDate) < 0 {
		return fmt.Errorf("exit date %s precedes entry date %s", p.ExitDate, p.EntryDate)
	}
	return nil
}

// AgeBucket is one of the four fixed age ranges used by TopKAgeRanges.
type AgeBucket int

const (
	Age0to20 AgeBucket = iota
	Age0to40
	Age0to60
	Age60Plus
	numAgeBuckets
)

// Label renders the bucket the way original_source/patient.c's statistics
// blocks word each age range.
func (b AgeBucket) Label() string {
	switch b {
	case Age0to20:
		return "0-20"
	case Age0to40:
		return "21-40"
	case Age0to60:
		return "41-60"
	default:
		return "60+"
	}
}

func bucketFor(age int) AgeBucket {
	switch {
	case age <= 20:
		return Age0to20
	case age <= 40:
		return Age0to40
	case age <= 60:
		return Age0to60
	default:
		return Age60Plus
	}
}

// BucketFor exports bucketFor for callers outside the package (the
// ingestion pipeline's statistics emitter buckets ages the same way
// TopKAgeRanges does).
func BucketFor(age int) AgeBucket { return bucketFor(age) }

// NumAgeBuckets is the fixed number of age buckets (4).
const NumAgeBuckets = int(numAgeBuckets)
