package fifoipc

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteReadCountriesRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCountries(&buf, []string{"UK", "France", "Spain"}))

	got, err := ReadCountries(&buf)
	require.NoError(t, err)
	assert.Equal(t, []string{"UK", "France", "Spain"}, got)
}

func TestWriteReadEmptyCountryList(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCountries(&buf, nil))

	got, err := ReadCountries(&buf)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestWriteReadAggregatorAddr(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteAggregatorAddr(&buf, "127.0.0.1:9999"))

	got, err := ReadAggregatorAddr(&buf)
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:9999", got)
}

func TestPathMatchesTemplate(t *testing.T) {
	assert.Equal(t, "wfifo_0", Path(0))
	assert.Equal(t, "wfifo_3", Path(3))
}
