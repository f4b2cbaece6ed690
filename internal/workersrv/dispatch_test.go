package workersrv

import (
	"testing"

	"github.com/pantach/patientdb/internal/patient"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedIndex(t *testing.T) *patient.Index {
	t.Helper()
	ix := patient.NewIndex()
	entry, err := patient.ParseDate("10-01-2020")
	require.NoError(t, err)

	require.NoError(t, ix.Insert(&patient.Patient{ID: "p1", First: "Alice", Last: "Smith", Virus: "FluA", Country: "UK", Age: 18, EntryDate: entry, ExitDate: patient.Undefined}))
	require.NoError(t, ix.Insert(&patient.Patient{ID: "p2", First: "Bob", Last: "Jones", Virus: "FluB", Country: "France", Age: 45, EntryDate: entry, ExitDate: patient.Undefined}))
	return ix
}

func TestDispatchUnknownCommand(t *testing.T) {
	ix := seedIndex(t)
	got := Dispatch(ix, []string{"UK"}, "/bogus a b")
	assert.Equal(t, "Unknown command\n", got)
}

func TestDispatchMissingArgs(t *testing.T) {
	ix := seedIndex(t)
	got := Dispatch(ix, []string{"UK"}, "/diseaseFrequency FluA")
	assert.Equal(t, "Please provide all the necessary arguments\n", got)
}

func TestDispatchDiseaseFrequencyWithAndWithoutCountry(t *testing.T) {
	ix := seedIndex(t)

	withCountry := Dispatch(ix, []string{"UK", "France"}, "/diseaseFrequency FluA 01-01-2020 31-01-2020 UK")
	assert.Equal(t, "1", withCountry)

	withoutCountry := Dispatch(ix, []string{"UK", "France"}, "/diseaseFrequency FluA 01-01-2020 31-01-2020")
	assert.Equal(t, "1", withoutCountry)
}

func TestDispatchSearchPatientRecordAcrossAssignedCountries(t *testing.T) {
	ix := seedIndex(t)
	got := Dispatch(ix, []string{"UK", "France"}, "/searchPatientRecord p1")
	assert.Contains(t, got, "p1 Alice Smith FluA 18")
}

func TestDispatchAdmissionsPerCountryWhenNoCountryGiven(t *testing.T) {
	ix := seedIndex(t)
	got := Dispatch(ix, []string{"UK", "France"}, "/numPatientAdmissions FluA 01-01-2020 31-01-2020")
	assert.Contains(t, got, "UK 1")
	assert.Contains(t, got, "France 0")
}
