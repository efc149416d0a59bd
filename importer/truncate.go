// importer/truncate.go
package importer

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strconv"
)

// rawDataFiles maps each raw file to the tab-separated field index that
// holds the stop id.
var rawDataFiles = []struct {
	basename     string
	stopFieldNum int
}{
	{"Stop.txt", 0},
	{"PERSON.txt", 1},
	{"Search.txt", 1},
	{"Contraband.txt", 3},
	{"SearchBasis.txt", 3},
}

// TruncateInputData filters the raw data files down to stops with ids in
// [minStopID, maxStopID], rewriting each file in place.  This is a
// development aid: limiting the input size makes every later phase of the
// import much faster.
func TruncateInputData(destination string, minStopID, maxStopID int64) error {
	log.Printf("Importer: Filtering out stops with id not in (%d, %d)\n", minStopID, maxStopID)
	for _, dataFile := range rawDataFiles {
		inPath := filepath.Join(destination, dataFile.basename)
		if err := filterFileByStopID(inPath, dataFile.stopFieldNum, minStopID, maxStopID); err != nil {
			return err
		}
	}
	return nil
}

func filterFileByStopID(inPath string, stopFieldNum int, minStopID, maxStopID int64) error {
	in, err := os.Open(inPath)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", inPath, err)
	}
	defer in.Close()

	outPath := inPath + ".new"
	out, err := os.Create(outPath)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", outPath, err)
	}
	defer out.Close()

	reader := bufio.NewReader(in)
	writer := bufio.NewWriter(out)
	for {
		line, readErr := reader.ReadBytes('\n')
		if len(line) > 0 {
			fields := bytes.Split(line, []byte{'\t'})
			if stopFieldNum >= len(fields) {
				return fmt.Errorf("row in %s has no field %d", inPath, stopFieldNum)
			}
			stopID, err := strconv.ParseInt(string(bytes.TrimSpace(fields[stopFieldNum])), 10, 64)
			if err != nil {
				return fmt.Errorf("failed to parse stop id in %s: %w", inPath, err)
			}
			if minStopID <= stopID && stopID <= maxStopID {
				if _, err := writer.Write(line); err != nil {
					return fmt.Errorf("failed to write %s: %w", outPath, err)
				}
			}
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			return fmt.Errorf("failed to read %s: %w", inPath, readErr)
		}
	}
	if err := writer.Flush(); err != nil {
		return fmt.Errorf("failed to flush %s: %w", outPath, err)
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", outPath, err)
	}

	if err := os.Rename(outPath, inPath); err != nil {
		return fmt.Errorf("failed to replace %s: %w", inPath, err)
	}
	return nil
}
