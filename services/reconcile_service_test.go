package services

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opendatapolicing/trafficstops/models"
	"github.com/opendatapolicing/trafficstops/notify"
)

// fakeMailer records messages instead of delivering them.
type fakeMailer struct {
	messages []notify.Message
}

func (m *fakeMailer) Send(msg notify.Message) error {
	m.messages = append(m.messages, msg)
	return nil
}

func writeStopCSV(t *testing.T, dir string, agencies ...string) {
	t.Helper()
	content := "column1,column2,column3\n"
	for i, agency := range agencies {
		content += string(rune('1'+i)) + "," + agency + ",2024-01-01\n"
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, "Stop.csv"), []byte(content), 0644))
}

func writeReferenceCSV(t *testing.T, path string, agencies []models.Agency) {
	t.Helper()
	require.NoError(t, WriteAgencyCSV(path, agencies))
}

func TestUpdateAgenciesNoNewAgencies(t *testing.T) {
	dir := t.TempDir()
	writeStopCSV(t, dir, "Apex PD", "Cary PD")
	refPath := filepath.Join(dir, "reference.csv")
	writeReferenceCSV(t, refPath, []models.Agency{
		{ID: 1, Name: "Apex PD"},
		{ID: 2, Name: "Cary PD"},
	})

	mailer := &fakeMailer{}
	used, err := UpdateAgencies(refPath, dir, mailer, []string{"admin@example.com"})
	require.NoError(t, err)

	// The canonical artifact is used unchanged and nobody is notified.
	assert.Equal(t, refPath, used)
	assert.Empty(t, mailer.messages)
}

func TestUpdateAgenciesAppendsNewAgenciesWithStableIDs(t *testing.T) {
	dir := t.TempDir()
	writeStopCSV(t, dir, "Apex PD", "Durham PD")
	refPath := filepath.Join(dir, "reference.csv")
	writeReferenceCSV(t, refPath, []models.Agency{
		{ID: 1, Name: "Apex PD", CensusProfileID: "37001"},
		{ID: 2, Name: "Cary PD"},
	})

	mailer := &fakeMailer{}
	used, err := UpdateAgencies(refPath, dir, mailer, []string{"admin@example.com"})
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dir, "NC_agencies.csv"), used)

	updated, err := ReadAgencyCSV(used)
	require.NoError(t, err)
	require.Len(t, updated, 3)
	assert.Equal(t, models.Agency{ID: 1, Name: "Apex PD", CensusProfileID: "37001"}, updated[0])
	assert.Equal(t, models.Agency{ID: 2, Name: "Cary PD"}, updated[1])
	assert.Equal(t, models.Agency{ID: 3, Name: "Durham PD"}, updated[2])

	// The canonical artifact was not mutated.
	original, err := ReadAgencyCSV(refPath)
	require.NoError(t, err)
	assert.Len(t, original, 2)

	require.Len(t, mailer.messages, 1)
	msg := mailer.messages[0]
	assert.Equal(t, []string{"admin@example.com"}, msg.To)
	assert.Contains(t, msg.Body, "Durham PD")
	require.NotNil(t, msg.Attachment)
	assert.Equal(t, "NC_agencies.csv", msg.Attachment.Filename)
	assert.Equal(t, "application/csv", msg.Attachment.MIMEType)
}

func TestUpdateAgenciesAssignsSortedOrderAfterMaximum(t *testing.T) {
	dir := t.TempDir()
	writeStopCSV(t, dir, "Zebulon PD", "Boone PD", "Apex PD")
	refPath := filepath.Join(dir, "reference.csv")
	writeReferenceCSV(t, refPath, []models.Agency{
		{ID: 7, Name: "Apex PD"},
	})

	mailer := &fakeMailer{}
	used, err := UpdateAgencies(refPath, dir, mailer, nil)
	require.NoError(t, err)

	updated, err := ReadAgencyCSV(used)
	require.NoError(t, err)
	require.Len(t, updated, 3)
	// New names sort lexicographically and extend past the current max id,
	// so re-running the same extract reproduces the same assignment.
	assert.Equal(t, 8, updated[1].ID)
	assert.Equal(t, "Boone PD", updated[1].Name)
	assert.Equal(t, 9, updated[2].ID)
	assert.Equal(t, "Zebulon PD", updated[2].Name)
}

func TestReadAgencyCSVRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "agencies.csv")
	agencies := []models.Agency{
		{ID: 1, Name: "Apex PD", CensusProfileID: "37001"},
		{ID: 2, Name: "Smith, John Associates"},
	}
	require.NoError(t, WriteAgencyCSV(path, agencies))

	loaded, err := ReadAgencyCSV(path)
	require.NoError(t, err)
	assert.Equal(t, agencies, loaded)
}
