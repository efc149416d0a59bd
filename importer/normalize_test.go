package importer

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func TestToStandardCSVClampsToFirstRowWidth(t *testing.T) {
	dir := t.TempDir()
	inPath := filepath.Join(dir, "Stop.txt")
	outPath := filepath.Join(dir, "Stop.csv")

	// Raw dialect: tab-delimited, CRLF line endings.  The third row is
	// ragged with an extra trailing column.
	writeFile(t, inPath, "1\tApex PD\t2020-01-01\r\n2\tCary PD\t2020-01-02\r\n3\tDurham PD\t2020-01-03\textra\r\n")

	require.NoError(t, ToStandardCSV(inPath, outPath))

	out, err := os.ReadFile(outPath)
	require.NoError(t, err)
	assert.Equal(t,
		"column1,column2,column3\n"+
			"1,Apex PD,2020-01-01\n"+
			"2,Cary PD,2020-01-02\n"+
			"3,Durham PD,2020-01-03\n",
		string(out))
}

func TestToStandardCSVTrimsFieldWhitespace(t *testing.T) {
	dir := t.TempDir()
	inPath := filepath.Join(dir, "data.txt")
	outPath := filepath.Join(dir, "data.csv")
	writeFile(t, inPath, "1\t Apex PD \r\n")

	require.NoError(t, ToStandardCSV(inPath, outPath))

	out, err := os.ReadFile(outPath)
	require.NoError(t, err)
	assert.Equal(t, "column1,column2\n1,Apex PD\n", string(out))
}

func TestToStandardCSVQuotesOnlyWhenNeeded(t *testing.T) {
	dir := t.TempDir()
	inPath := filepath.Join(dir, "data.txt")
	outPath := filepath.Join(dir, "data.csv")
	writeFile(t, inPath, "1\tSmith, John\r\n2\tplain\r\n")

	require.NoError(t, ToStandardCSV(inPath, outPath))

	out, err := os.ReadFile(outPath)
	require.NoError(t, err)
	assert.Equal(t, "column1,column2\n1,\"Smith, John\"\n2,plain\n", string(out))
}

func TestConvertToCSVSkipsExistingAndReadme(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "Stop.txt"), "1\tApex PD\r\n")
	writeFile(t, filepath.Join(dir, "Search.txt"), "10\t1\r\n")
	writeFile(t, filepath.Join(dir, "QUERY_README.txt"), "years covered: 2020\r\n")
	// Pre-existing output must not be rewritten.
	writeFile(t, filepath.Join(dir, "Search.csv"), "already converted\n")

	require.NoError(t, ConvertToCSV(dir))

	stop, err := os.ReadFile(filepath.Join(dir, "Stop.csv"))
	require.NoError(t, err)
	assert.Equal(t, "column1,column2\n1,Apex PD\n", string(stop))

	search, err := os.ReadFile(filepath.Join(dir, "Search.csv"))
	require.NoError(t, err)
	assert.Equal(t, "already converted\n", string(search))

	_, err = os.Stat(filepath.Join(dir, "QUERY_README.csv"))
	assert.True(t, os.IsNotExist(err))
}

func TestConvertToCSVStripsNulBytes(t *testing.T) {
	dir := t.TempDir()
	raw := []byte("1\tAp\x00ex PD\r\n")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "Stop.txt"), raw, 0644))

	require.NoError(t, ConvertToCSV(dir))

	out, err := os.ReadFile(filepath.Join(dir, "Stop.csv"))
	require.NoError(t, err)
	assert.Equal(t, "column1,column2\n1,Apex PD\n", string(out))
}

func TestStripNulBytesLeavesCleanFilesAlone(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "clean.txt")
	writeFile(t, path, "no nulls here\n")
	before, err := os.Stat(path)
	require.NoError(t, err)

	require.NoError(t, StripNulBytes(path))

	after, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, before.ModTime(), after.ModTime())
}

func TestLineCount(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "data.txt")
	writeFile(t, path, "a\r\nb\r\nc\r\n")

	count, err := LineCount(path)
	require.NoError(t, err)
	assert.Equal(t, 3, count)
}
