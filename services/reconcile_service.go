// services/reconcile_service.go
package services

import (
	"encoding/csv"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/jszwec/csvutil"

	"github.com/opendatapolicing/trafficstops/models"
	"github.com/opendatapolicing/trafficstops/notify"
)

// stopAgencyColumn is the position of the agency name in the normalized
// Stop.csv (column2).
const stopAgencyColumn = 1

// UpdateAgencies checks whether the new extract names any agency missing
// from the reference table.  If not, the canonical artifact is used as-is.
// Otherwise a run-scoped copy is written next to the extract with the new
// agencies appended — each assigned the next id after the current maximum,
// in sorted name order so re-runs of the same extract produce identical
// ids — and the monitors are emailed so census linkage keys can be added
// before the table is checked in.  The canonical artifact itself is never
// touched.  Returns the artifact path the load should use.
func UpdateAgencies(referenceCSVPath, destination string, mailer notify.Mailer, monitors []string) (string, error) {
	currentAgencies, err := stopFileAgencies(filepath.Join(destination, "Stop.csv"))
	if err != nil {
		return "", err
	}

	existing, err := ReadAgencyCSV(referenceCSVPath)
	if err != nil {
		return "", err
	}
	existingNames := make(map[string]bool, len(existing))
	maxID := 0
	for _, agency := range existing {
		existingNames[agency.Name] = true
		if agency.ID > maxID {
			maxID = agency.ID
		}
	}

	var extraAgencies []string
	for name := range currentAgencies {
		if !existingNames[name] {
			extraAgencies = append(extraAgencies, name)
		}
	}
	if len(extraAgencies) == 0 {
		log.Printf("Service: No new agencies in latest data, using table %s\n", referenceCSVPath)
		return referenceCSVPath, nil
	}

	sort.Strings(extraAgencies)
	updated := make([]models.Agency, 0, len(existing)+len(extraAgencies))
	updated = append(updated, existing...)
	for _, name := range extraAgencies {
		maxID++
		updated = append(updated, models.Agency{ID: maxID, Name: name})
	}

	newCSVPath := filepath.Join(destination, "NC_agencies.csv")
	if err := WriteAgencyCSV(newCSVPath, updated); err != nil {
		return "", err
	}
	log.Printf("Service: %d new agencies in latest data, using table %s\n", len(extraAgencies), newCSVPath)

	content, err := os.ReadFile(newCSVPath)
	if err != nil {
		return "", fmt.Errorf("failed to read updated agency table: %w", err)
	}
	err = mailer.Send(notify.Message{
		Subject: "New agencies were discovered during import",
		Body: fmt.Sprintf(`Here are the new agencies:

    %s

A new agency table is attached.  You can add census codes for the
new agencies before checking in.
`, strings.Join(extraAgencies, ", ")),
		To: monitors,
		Attachment: &notify.Attachment{
			Filename: filepath.Base(newCSVPath),
			Content:  content,
			MIMEType: "application/csv",
		},
	})
	if err != nil {
		return "", err
	}

	return newCSVPath, nil
}

// stopFileAgencies collects the distinct agency names from the normalized
// stop file, skipping the synthesized header.
func stopFileAgencies(stopCSVPath string) (map[string]bool, error) {
	f, err := os.Open(stopCSVPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", stopCSVPath, err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1
	if _, err := reader.Read(); err != nil && err != io.EOF {
		return nil, fmt.Errorf("failed to read header of %s: %w", stopCSVPath, err)
	}

	agencies := make(map[string]bool)
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", stopCSVPath, err)
		}
		if stopAgencyColumn < len(row) {
			agencies[row[stopAgencyColumn]] = true
		}
	}
	return agencies, nil
}

// ReadAgencyCSV loads an agency reference artifact.
func ReadAgencyCSV(path string) ([]models.Agency, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open agency table %s: %w", path, err)
	}
	defer f.Close()

	decoder, err := csvutil.NewDecoder(csv.NewReader(f))
	if err != nil {
		return nil, fmt.Errorf("failed to create decoder for %s: %w", path, err)
	}
	var agencies []models.Agency
	if err := decoder.Decode(&agencies); err != nil {
		return nil, fmt.Errorf("failed to decode agency table %s: %w", path, err)
	}
	return agencies, nil
}

// WriteAgencyCSV writes an agency reference artifact.
func WriteAgencyCSV(path string, agencies []models.Agency) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create agency table %s: %w", path, err)
	}
	defer f.Close()

	writer := csv.NewWriter(f)
	encoder := csvutil.NewEncoder(writer)
	for _, agency := range agencies {
		if err := encoder.Encode(agency); err != nil {
			return fmt.Errorf("failed to encode agency %q: %w", agency.Name, err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("failed to flush agency table %s: %w", path, err)
	}
	return nil
}
