package ingest

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/pantach/patientdb/internal/patient"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeRecordFile(t *testing.T, dir, country, date, body string) {
	t.Helper()
	countryDir := filepath.Join(dir, country)
	require.NoError(t, os.MkdirAll(countryDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(countryDir, date), []byte(body), 0o644))
}

// Disease frequency after ingestion equals the number of successfully
// validated ENTER lines for that virus on that date.
func TestRescanAppliesEntersAndEmitsStats(t *testing.T) {
	dir := t.TempDir()
	writeRecordFile(t, dir, "UK", "10-01-2020",
		"p1 ENTER Alice Smith FluA 18\np2 ENTER Bob Jones FluA 45\n")

	ix := patient.NewIndex()
	pipe := NewPipeline(dir, ix)

	var stats []string
	var lineErrs []*LineError
	require.NoError(t, pipe.Rescan("UK", func(s string) { stats = append(stats, s) }, func(e *LineError) { lineErrs = append(lineErrs, e) }))

	assert.Empty(t, lineErrs)
	require.Len(t, stats, 1)
	assert.Contains(t, stats[0], "10-01-2020")
	assert.Contains(t, stats[0], "UK")
	assert.Contains(t, stats[0], "FluA")
	assert.Contains(t, stats[0], "Age range 0-20 years: 1 cases")
	assert.Contains(t, stats[0], "Age range 21-40 years: 0 cases")
	assert.Contains(t, stats[0], "Age range 41-60 years: 1 cases")

	d, err := patient.ParseDate("10-01-2020")
	require.NoError(t, err)
	assert.Equal(t, 2, ix.DiseaseFrequency("FluA", d, d, "UK"))
}

// Invariant 4: rescanning twice without filesystem changes emits no
// statistics the second time.
func TestRescanIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	writeRecordFile(t, dir, "UK", "10-01-2020", "p1 ENTER Alice Smith FluA 18\n")

	ix := patient.NewIndex()
	pipe := NewPipeline(dir, ix)

	var firstCount, secondCount int
	require.NoError(t, pipe.Rescan("UK", func(string) { firstCount++ }, nil))
	require.NoError(t, pipe.Rescan("UK", func(string) { secondCount++ }, nil))

	assert.Equal(t, 1, firstCount)
	assert.Equal(t, 0, secondCount)
}

// Rescan after a new file appears only emits stats for the new file.
func TestRescanOnlyEmitsForNewFiles(t *testing.T) {
	dir := t.TempDir()
	writeRecordFile(t, dir, "UK", "10-01-2020", "p1 ENTER Alice Smith FluA 18\n")

	ix := patient.NewIndex()
	pipe := NewPipeline(dir, ix)
	require.NoError(t, pipe.Rescan("UK", nil, nil))

	writeRecordFile(t, dir, "UK", "11-01-2020", "p2 ENTER Bob Jones FluA 30\n")

	var emitted []string
	require.NoError(t, pipe.Rescan("UK", func(s string) { emitted = append(emitted, s) }, nil))

	require.Len(t, emitted, 1)
	assert.Contains(t, emitted[0], "11-01-2020")
}

func TestIngestClassifiesLineErrors(t *testing.T) {
	dir := t.TempDir()
	body := "p1 ENTER Alice Smith FluA 18\n" +
		"p1 ENTER Dup User FluB 20\n" + // duplicate id
		"bad line\n" + // malformed
		"p2 EXIT\n" + // malformed too (fewer than six tokens)
		"p3 ENTER Old Person FluA 200\n" // bad age
	writeRecordFile(t, dir, "UK", "10-01-2020", body)

	ix := patient.NewIndex()
	pipe := NewPipeline(dir, ix)

	var kinds []LineErrorKind
	require.NoError(t, pipe.Rescan("UK", nil, func(e *LineError) { kinds = append(kinds, e.Kind) }))

	assert.Contains(t, kinds, ErrKindDuplicateID)
	assert.Contains(t, kinds, ErrKindMalformedLine)
	assert.Contains(t, kinds, ErrKindBadRecordData)
}

func TestExitReconciliation(t *testing.T) {
	dir := t.TempDir()
	writeRecordFile(t, dir, "UK", "10-01-2020", "p1 ENTER Alice Smith FluA 18\n")
	writeRecordFile(t, dir, "UK", "15-01-2020", "p1 EXIT Alice Smith FluA 18\n")

	ix := patient.NewIndex()
	pipe := NewPipeline(dir, ix)
	require.NoError(t, pipe.Rescan("UK", nil, nil))

	p, ok := ix.Find("UK", "p1")
	require.True(t, ok)
	assert.True(t, p.ExitDate.IsDefined())
}

// An EXIT in an earlier-dated file, discovered after the matching ENTER
// was ingested, is rejected, leaving exit_date undefined.
func TestExitBeforeEntryAcrossFiles(t *testing.T) {
	dir := t.TempDir()
	writeRecordFile(t, dir, "UK", "10-01-2020", "p1 ENTER Alice Smith FluA 18\n")

	ix := patient.NewIndex()
	pipe := NewPipeline(dir, ix)
	require.NoError(t, pipe.Rescan("UK", nil, nil))

	writeRecordFile(t, dir, "UK", "05-01-2020", "p1 EXIT Alice Smith FluA 18\n")

	var kinds []LineErrorKind
	require.NoError(t, pipe.Rescan("UK", nil, func(e *LineError) { kinds = append(kinds, e.Kind) }))

	assert.Contains(t, kinds, ErrKindExitBeforeEntry)

	p, ok := ix.Find("UK", "p1")
	require.True(t, ok)
	assert.False(t, p.ExitDate.IsDefined())
}
