// importer/download.go
package importer

import (
	"archive/zip"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"time"
)

const downloadChunkSize = 64 * 1024

// EnsureDestination makes sure the destination directory exists, creating a
// temporary directory when none is given.  Returns the directory actually
// used.
func EnsureDestination(destination string) (string, error) {
	if destination == "" {
		tmp, err := os.MkdirTemp("", "state-")
		if err != nil {
			return "", fmt.Errorf("failed to create temp directory: %w", err)
		}
		log.Printf("Importer: Created temp directory %s\n", tmp)
		return tmp, nil
	}
	if _, err := os.Stat(destination); os.IsNotExist(err) {
		if err := os.MkdirAll(destination, 0755); err != nil {
			return "", fmt.Errorf("failed to create directory %s: %w", destination, err)
		}
		log.Printf("Importer: Created %s\n", destination)
	}
	return destination, nil
}

// ZipPath returns the local archive path for a URL, derived from the URL
// basename.  Its existence is the skip-if-downloaded check.
func ZipPath(url, destination string) string {
	return filepath.Join(destination, path.Base(url))
}

// DownloadAndUnzip fetches the archive at url into destination (skipping the
// download if the file already exists) and extracts it.  Returns the
// destination directory used.
func DownloadAndUnzip(url, destination string) (string, error) {
	destination, err := EnsureDestination(destination)
	if err != nil {
		return "", err
	}

	zipFilename := ZipPath(url, destination)
	if _, err := os.Stat(zipFilename); err == nil {
		log.Printf("Importer: %s exists, skipping download\n", zipFilename)
	} else {
		if err := downloadFile(url, zipFilename); err != nil {
			return "", err
		}
	}

	if err := Unzip(destination, zipFilename); err != nil {
		return "", err
	}
	return destination, nil
}

// downloadFile streams a URL to a local path in fixed-size chunks, logging
// progress every few seconds.
func downloadFile(url, localSavePath string) error {
	log.Printf("Importer: Downloading data to %s\n", localSavePath)

	resp, err := http.Get(url)
	if err != nil {
		return fmt.Errorf("failed to make GET request to %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("failed to download file from %s: received status code %d", url, resp.StatusCode)
	}

	outFile, err := os.Create(localSavePath)
	if err != nil {
		return fmt.Errorf("failed to create local file %s: %w", localSavePath, err)
	}
	defer outFile.Close()

	contentLength := resp.ContentLength
	buf := make([]byte, downloadChunkSize)
	var downloaded int64
	lastReport := time.Now()
	for {
		n, readErr := resp.Body.Read(buf)
		if n > 0 {
			if _, err := outFile.Write(buf[:n]); err != nil {
				return fmt.Errorf("failed to write downloaded content to %s: %w", localSavePath, err)
			}
			downloaded += int64(n)
			if time.Since(lastReport) >= 5*time.Second {
				if contentLength > 0 {
					log.Printf("Importer: %.2g%% downloaded\n", float64(downloaded)/float64(contentLength)*100)
				} else {
					log.Printf("Importer: %d bytes downloaded\n", downloaded)
				}
				lastReport = time.Now()
			}
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			return fmt.Errorf("failed to read response body from %s: %w", url, readErr)
		}
	}
	log.Println("Importer: 100% downloaded")
	return nil
}

// FirstFileInZip returns the destination path of the first entry in the
// archive.  The extract's data files are at the archive root, so this path
// existing means a prior extraction completed.
func FirstFileInZip(destination, zipPath string) (string, error) {
	archive, err := zip.OpenReader(zipPath)
	if err != nil {
		return "", fmt.Errorf("failed to open archive %s: %w", zipPath, err)
	}
	defer archive.Close()
	if len(archive.File) == 0 {
		return "", fmt.Errorf("archive %s is empty", zipPath)
	}
	return filepath.Join(destination, archive.File[0].Name), nil
}

// Unzip extracts zipPath into destination, skipping extraction entirely if
// the first archived file already exists there.
func Unzip(destination, zipPath string) error {
	firstFile, err := FirstFileInZip(destination, zipPath)
	if err != nil {
		return err
	}
	if _, err := os.Stat(firstFile); err == nil {
		log.Printf("Importer: %s exists, skipping extract\n", firstFile)
		return nil
	}

	archive, err := zip.OpenReader(zipPath)
	if err != nil {
		return fmt.Errorf("failed to open archive %s: %w", zipPath, err)
	}
	defer archive.Close()

	log.Printf("Importer: Extracting archive into %s\n", destination)
	for _, f := range archive.File {
		outPath := filepath.Join(destination, f.Name)
		if !filepath.IsLocal(f.Name) {
			return fmt.Errorf("archive entry %q escapes destination directory", f.Name)
		}
		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(outPath, 0755); err != nil {
				return fmt.Errorf("failed to create directory %s: %w", outPath, err)
			}
			continue
		}
		if err := os.MkdirAll(filepath.Dir(outPath), 0755); err != nil {
			return fmt.Errorf("failed to create directory for %s: %w", outPath, err)
		}
		if err := extractFile(f, outPath); err != nil {
			return err
		}
	}
	log.Println("Importer: Extraction complete")
	return nil
}

func extractFile(f *zip.File, outPath string) error {
	rc, err := f.Open()
	if err != nil {
		return fmt.Errorf("failed to open archive entry %s: %w", f.Name, err)
	}
	defer rc.Close()

	out, err := os.Create(outPath)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", outPath, err)
	}
	defer out.Close()

	if _, err := io.Copy(out, rc); err != nil {
		return fmt.Errorf("failed to extract %s: %w", f.Name, err)
	}
	return nil
}
