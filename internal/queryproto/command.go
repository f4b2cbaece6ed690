// Package queryproto defines the five analytic query commands clients may
// send, grounded on original_source/command.c's immutable command table.
package queryproto

import "strings"

// Name identifies one of the five supported commands.
type Name string

const (
	DiseaseFrequency    Name = "/diseaseFrequency"
	TopKAgeRanges       Name = "/topk-AgeRanges"
	SearchPatientRecord Name = "/searchPatientRecord"
	NumPatientAdmissions Name = "/numPatientAdmissions"
	NumPatientDischarges Name = "/numPatientDischarges"
)

// Command describes one command's argument shape. MandArgs is the
// minimum total token count, command name included (matches
// original_source/command.c's cmdarg->size check, which counts the
// command name as element 0). CountryArgPos is the index into the full
// token slice (command name at index 0) where an optional or mandatory
// trailing country argument lives; 0 means "no country argument".
type Command struct {
	Name          Name
	MandArgs      int
	CountryArgPos int
}

// table is immutable for the process lifetime, the Go analogue of
// original_source/command.c's static const array.
var table = []Command{
	{Name: DiseaseFrequency, MandArgs: 4, CountryArgPos: 4},
	{Name: TopKAgeRanges, MandArgs: 6, CountryArgPos: 2},
	{Name: SearchPatientRecord, MandArgs: 2, CountryArgPos: 0},
	{Name: NumPatientAdmissions, MandArgs: 4, CountryArgPos: 4},
	{Name: NumPatientDischarges, MandArgs: 4, CountryArgPos: 4},
}

// Lookup finds a Command by its wire name, returning false if unknown.
func Lookup(name string) (Command, bool) {
	for _, c := range table {
		if string(c.Name) == name {
			return c, true
		}
	}
	return Command{}, false
}

// Tokenize splits a raw query line on runs of whitespace.
func Tokenize(line string) []string {
	return strings.Fields(line)
}

// ErrUnknownCommand and ErrMissingArgs are the two user-visible parse
// failure replies.
const (
	ErrUnknownCommand = "Unknown command\n"
	ErrMissingArgs    = "Please provide all the necessary arguments\n"
)

// HasCountry reports whether tokens (full slice, command name at index 0)
// actually carries this command's country argument.
func (c Command) HasCountry(tokens []string) bool {
	return c.CountryArgPos != 0 && len(tokens) > c.CountryArgPos
}

// Country extracts the country argument from tokens (tokens[0] is the
// command name), or "" if this command has none or it was omitted.
func (c Command) Country(tokens []string) string {
	if !c.HasCountry(tokens) {
		return ""
	}
	return tokens[c.CountryArgPos]
}
