package workersrv

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/pantach/patientdb/internal/patient"
	"github.com/pantach/patientdb/internal/queryproto"
)

// Dispatch runs one query line against ix, iterating over assignedCountries
// when the command's optional country argument was omitted, grounded on
// original_source/master.c's worker()'s command dispatch loop.
func Dispatch(ix *patient.Index, assignedCountries []string, line string) string {
	tokens := queryproto.Tokenize(line)
	if len(tokens) == 0 {
		return ""
	}

	cmd, ok := queryproto.Lookup(tokens[0])
	if !ok {
		return queryproto.ErrUnknownCommand
	}
	if len(tokens) < cmd.MandArgs {
		return queryproto.ErrMissingArgs
	}

	switch cmd.Name {
	case queryproto.DiseaseFrequency:
		return dispatchDiseaseFrequency(ix, assignedCountries, tokens, cmd)
	case queryproto.TopKAgeRanges:
		return dispatchTopK(ix, tokens)
	case queryproto.SearchPatientRecord:
		return dispatchSearch(ix, assignedCountries, tokens)
	case queryproto.NumPatientAdmissions:
		return dispatchAdmissions(ix, assignedCountries, tokens, cmd)
	case queryproto.NumPatientDischarges:
		return dispatchDischarges(ix, assignedCountries, tokens, cmd)
	default:
		return queryproto.ErrUnknownCommand
	}
}

func countriesFor(assigned []string, tokens []string, cmd queryproto.Command) []string {
	if c := cmd.Country(tokens); c != "" {
		return []string{c}
	}
	return assigned
}

func dispatchDiseaseFrequency(ix *patient.Index, assigned, tokens []string, cmd queryproto.Command) string {
	virus, start, end := tokens[1], tokens[2], tokens[3]
	startDate, err1 := patient.ParseDate(start)
	endDate, err2 := patient.ParseDate(end)
	if err1 != nil || err2 != nil {
		return "-1"
	}

	if country := cmd.Country(tokens); country != "" {
		return strconv.Itoa(ix.DiseaseFrequency(virus, startDate, endDate, country))
	}

	sum := 0
	for _, c := range assigned {
		sum += ix.DiseaseFrequency(virus, startDate, endDate, c)
	}
	return strconv.Itoa(sum)
}

func dispatchTopK(ix *patient.Index, tokens []string) string {
	k, err := strconv.Atoi(tokens[1])
	if err != nil {
		return ""
	}
	country, virus, start, end := tokens[2], tokens[3], tokens[4], tokens[5]

	startDate, err1 := patient.ParseDate(start)
	endDate, err2 := patient.ParseDate(end)
	if err1 != nil || err2 != nil {
		return ""
	}

	results := ix.TopKAgeRanges(k, country, virus, startDate, endDate)
	if results == nil {
		return ""
	}

	var sb strings.Builder
	for _, r := range results {
		fmt.Fprintf(&sb, "%s: %.0f%%\n", r.Label, r.Percent)
	}
	return sb.String()
}

func dispatchSearch(ix *patient.Index, assigned []string, tokens []string) string {
	id := tokens[1]

	var sb strings.Builder
	for _, country := range assigned {
		p, ok := ix.Find(country, id)
		if !ok {
			continue
		}
		fmt.Fprintf(&sb, "%s %s %s %s %d %s %s\n",
			p.ID, p.First, p.Last, p.Virus, p.Age, p.EntryDate, p.ExitDate)
	}
	return sb.String()
}

func dispatchAdmissions(ix *patient.Index, assigned, tokens []string, cmd queryproto.Command) string {
	virus, start, end := tokens[1], tokens[2], tokens[3]
	startDate, err1 := patient.ParseDate(start)
	endDate, err2 := patient.ParseDate(end)
	if err1 != nil || err2 != nil {
		return ""
	}

	var sb strings.Builder
	for _, country := range countriesFor(assigned, tokens, cmd) {
		n := ix.Admissions(country, virus, startDate, endDate)
		fmt.Fprintf(&sb, "%s %d\n", country, n)
	}
	return sb.String()
}

func dispatchDischarges(ix *patient.Index, assigned, tokens []string, cmd queryproto.Command) string {
	virus, start, end := tokens[1], tokens[2], tokens[3]
	startDate, err1 := patient.ParseDate(start)
	endDate, err2 := patient.ParseDate(end)
	if err1 != nil || err2 != nil {
		return ""
	}

	var sb strings.Builder
	for _, country := range countriesFor(assigned, tokens, cmd) {
		n := ix.Discharges(country, virus, startDate, endDate)
		fmt.Fprintf(&sb, "%s %d\n", country, n)
	}
	return sb.String()
}
