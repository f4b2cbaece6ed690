package ingest

import (
	"fmt"
	"strings"

	"github.com/pantach/patientdb/internal/patient"
)

// BuildStats renders the statistics-emitter string for one (country,
// date) pair, grounded on original_source/master.c's
// worker_generate_stats: a header line with the file date and country,
// then one block per virus present among patients, each block giving the
// age-range case counts. Per-virus counts are computed from the full set
// of patients passed in (the worker always passes the complete result of
// GetByCountryAndEntryDate, not merely newly-inserted patients). Virus
// block order follows iteration of a Go map and is therefore
// unspecified; callers MUST NOT depend on it.
func BuildStats(country string, date patient.Date, patients []*patient.Patient) string {
	if len(patients) == 0 {
		return ""
	}

	byVirus := make(map[string][]*patient.Patient)
	for _, p := range patients {
		byVirus[p.Virus] = append(byVirus[p.Virus], p)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%s\n%s\n", date, country)

	for virus, group := range byVirus {
		var counts [4]int
		for _, p := range group {
			counts[patient.BucketFor(p.Age)]++
		}

		fmt.Fprintf(&sb, "%s\n", virus)
		fmt.Fprintf(&sb, "Age range %s years: %d cases\n", patient.Age0to20.Label(), counts[patient.Age0to20])
		fmt.Fprintf(&sb, "Age range %s years: %d cases\n", patient.Age0to40.Label(), counts[patient.Age0to40])
		fmt.Fprintf(&sb, "Age range %s years: %d cases\n", patient.Age0to60.Label(), counts[patient.Age0to60])
		fmt.Fprintf(&sb, "Age range %s years: %d cases\n", patient.Age60Plus.Label(), counts[patient.Age60Plus])
		sb.WriteString("\n")
	}

	return sb.String()
}
