package importer

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTruncateInputDataFiltersByStopID(t *testing.T) {
	dir := t.TempDir()
	// Stop id is field 0 in Stop.txt, field 1 in PERSON.txt/Search.txt and
	// field 3 in Contraband.txt/SearchBasis.txt.
	writeFile(t, filepath.Join(dir, "Stop.txt"),
		"5\tApex PD\r\n10\tCary PD\r\n15\tDurham PD\r\n")
	writeFile(t, filepath.Join(dir, "PERSON.txt"),
		"1\t5\tD\r\n2\t10\tD\r\n3\t15\tP\r\n")
	writeFile(t, filepath.Join(dir, "Search.txt"),
		"1\t10\t2\r\n2\t15\t3\r\n")
	writeFile(t, filepath.Join(dir, "Contraband.txt"),
		"1\t1\t2\t10\r\n2\t2\t3\t15\r\n")
	writeFile(t, filepath.Join(dir, "SearchBasis.txt"),
		"1\t1\t2\t10\r\n2\t2\t3\t15\r\n")

	require.NoError(t, TruncateInputData(dir, 6, 12))

	stop, err := os.ReadFile(filepath.Join(dir, "Stop.txt"))
	require.NoError(t, err)
	assert.Equal(t, "10\tCary PD\r\n", string(stop))

	person, err := os.ReadFile(filepath.Join(dir, "PERSON.txt"))
	require.NoError(t, err)
	assert.Equal(t, "2\t10\tD\r\n", string(person))

	search, err := os.ReadFile(filepath.Join(dir, "Search.txt"))
	require.NoError(t, err)
	assert.Equal(t, "1\t10\t2\r\n", string(search))

	contraband, err := os.ReadFile(filepath.Join(dir, "Contraband.txt"))
	require.NoError(t, err)
	assert.Equal(t, "1\t1\t2\t10\r\n", string(contraband))

	basis, err := os.ReadFile(filepath.Join(dir, "SearchBasis.txt"))
	require.NoError(t, err)
	assert.Equal(t, "1\t1\t2\t10\r\n", string(basis))
}

func TestTruncateInputDataRejectsNonNumericStopID(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "Stop.txt"), "not-a-number\tApex PD\r\n")

	err := TruncateInputData(dir, 1, 10)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse stop id")
}
