// importer/normalize.go
package importer

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
)

// Dialect pins down the CSV variant on each side of the conversion, so
// neither direction depends on encoding/csv defaults drifting.
type Dialect struct {
	Comma   rune
	UseCRLF bool
}

// RawDialect matches the state's extract files: tab-delimited,
// double-quoted, CRLF line endings.
var RawDialect = Dialect{Comma: '\t', UseCRLF: true}

// StandardDialect is the canonical output format consumed by the bulk
// loader: comma-delimited, minimal quoting, Unix line endings.
var StandardDialect = Dialect{Comma: ',', UseCRLF: false}

// readmeBasename is the one non-data file shipped inside the extract.
const readmeBasename = "QUERY_README.txt"

// ToStandardCSV converts one raw delimited file into the canonical CSV
// format.  The first row fixes the column count; later rows with extra
// trailing columns are clamped to that width, since some source records are
// known to be ragged.  Output headers are positional (column1, column2, ...)
// because the raw files carry no usable header row.
func ToStandardCSV(inputPath, outputPath string) error {
	input, err := os.Open(inputPath)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", inputPath, err)
	}
	defer input.Close()

	output, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", outputPath, err)
	}
	defer output.Close()

	reader := csv.NewReader(input)
	reader.Comma = RawDialect.Comma
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	writer := csv.NewWriter(output)
	writer.Comma = StandardDialect.Comma
	writer.UseCRLF = StandardDialect.UseCRLF

	headingsWritten := false
	numColumns := 0
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", inputPath, err)
		}

		if !headingsWritten {
			numColumns = len(row)
			headings := make([]string, numColumns)
			for i := range headings {
				headings[i] = fmt.Sprintf("column%d", i+1)
			}
			if err := writer.Write(headings); err != nil {
				return fmt.Errorf("failed to write header to %s: %w", outputPath, err)
			}
			headingsWritten = true
		}

		if len(row) > numColumns {
			row = row[:numColumns]
		}
		for i, column := range row {
			row[i] = strings.TrimSpace(column)
		}
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("failed to write row to %s: %w", outputPath, err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("failed to flush %s: %w", outputPath, err)
	}
	return nil
}

// ConvertToCSV converts every raw *.txt data file in destination to its
// sibling canonical .csv, skipping files already converted on a previous
// run.
func ConvertToCSV(destination string) error {
	paths, err := filepath.Glob(filepath.Join(destination, "*.txt"))
	if err != nil {
		return fmt.Errorf("failed to list data files in %s: %w", destination, err)
	}

	for _, dataPath := range paths {
		if filepath.Base(dataPath) == readmeBasename {
			continue
		}
		csvPath := strings.TrimSuffix(dataPath, ".txt") + ".csv"
		if _, err := os.Stat(csvPath); err == nil {
			log.Printf("Importer: %s already exists, skipping csv conversion\n", csvPath)
			continue
		}

		log.Printf("Importer: Converting %s > %s\n", dataPath, csvPath)
		// The raw Stop file has been observed to contain embedded NUL
		// bytes, which break CSV parsing.
		if err := StripNulBytes(dataPath); err != nil {
			return err
		}
		if err := ToStandardCSV(dataPath, csvPath); err != nil {
			return err
		}
		checkLineCounts(dataPath, csvPath)
	}
	return nil
}

// checkLineCounts compares source and output line counts; the output should
// have exactly one extra line for the synthesized header.  A mismatch is
// logged for operator follow-up but does not abort the run.
func checkLineCounts(dataPath, csvPath string) {
	dataCount, err := LineCount(dataPath)
	if err != nil {
		log.Printf("ERROR Importer: Failed to count lines in %s: %v\n", dataPath, err)
		return
	}
	csvCount, err := LineCount(csvPath)
	if err != nil {
		log.Printf("ERROR Importer: Failed to count lines in %s: %v\n", csvPath, err)
		return
	}
	if dataCount == csvCount-1 {
		log.Printf("Importer: CSV line count matches original data file: %d\n", dataCount)
	} else {
		log.Printf("ERROR Importer: DAT %d\n", dataCount)
		log.Printf("ERROR Importer: CSV %d\n", csvCount)
	}
}

// StripNulBytes removes embedded NUL bytes from a file in place.
func StripNulBytes(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	cleaned := bytes.ReplaceAll(data, []byte{0}, nil)
	if len(cleaned) == len(data) {
		return nil
	}
	if err := os.WriteFile(path, cleaned, 0644); err != nil {
		return fmt.Errorf("failed to rewrite %s: %w", path, err)
	}
	return nil
}

// LineCount counts newline-terminated lines in a file.
func LineCount(path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	count := 0
	buf := make([]byte, 64*1024)
	for {
		n, err := f.Read(buf)
		count += bytes.Count(buf[:n], []byte{'\n'})
		if err == io.EOF {
			return count, nil
		}
		if err != nil {
			return 0, err
		}
	}
}
