// importer/ftp.go
package importer

import (
	"crypto/tls"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/jlaffaye/ftp"

	"github.com/opendatapolicing/trafficstops/config"
)

const (
	ftpRemoteDir  = "/TSTOPextract"
	ftpRemoteFile = "STOPS_Extract.zip"
	// The extract is regenerated nightly, so the local archive name carries
	// the download date; re-runs on the same day skip the transfer.
	ftpZipLayout = "NC_STOPS_Extract_2006_01_02.zip"
)

// FTPDownloadAndUnzip fetches the state extract over explicit-TLS FTP into
// destination (skipping the transfer if today's archive already exists) and
// extracts it.  Returns the destination directory used.
func FTPDownloadAndUnzip(cfg config.FTPConfig, destination string) (string, error) {
	destination, err := EnsureDestination(destination)
	if err != nil {
		return "", err
	}

	zipFilename := filepath.Join(destination, time.Now().Format(ftpZipLayout))
	if _, err := os.Stat(zipFilename); err == nil {
		log.Printf("Importer: %s exists, skipping download\n", zipFilename)
	} else {
		if err := ftpDownload(cfg, zipFilename); err != nil {
			return "", err
		}
	}

	if err := Unzip(destination, zipFilename); err != nil {
		return "", err
	}
	return destination, nil
}

func ftpDownload(cfg config.FTPConfig, zipFilename string) error {
	log.Printf("Importer: Downloading data to %s\n", zipFilename)

	conn, err := ftp.Dial(cfg.Host+":21",
		ftp.DialWithExplicitTLS(&tls.Config{ServerName: cfg.Host}),
		ftp.DialWithTimeout(30*time.Second),
	)
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %w", cfg.Host, err)
	}
	defer conn.Quit()

	if err := conn.Login(cfg.User, cfg.Password); err != nil {
		return fmt.Errorf("failed to log in to %s: %w", cfg.Host, err)
	}

	if err := conn.ChangeDir(ftpRemoteDir); err != nil {
		return fmt.Errorf("failed to change to remote directory %s: %w", ftpRemoteDir, err)
	}

	// A successful listing confirms the protected data channel is up before
	// committing to the file transfer.
	entries, err := conn.List(".")
	if err != nil {
		return fmt.Errorf("directory listing of %s was not acknowledged by %s: %w", ftpRemoteDir, cfg.Host, err)
	}
	log.Printf("Importer: Files available at %s:\n", cfg.Host)
	for _, entry := range entries {
		log.Printf("Importer:   %s (%d bytes)\n", entry.Name, entry.Size)
	}

	log.Printf("Importer: Downloading %q...\n", ftpRemoteFile)
	resp, err := conn.Retr(ftpRemoteFile)
	if err != nil {
		return fmt.Errorf("failed to retrieve %s: %w", ftpRemoteFile, err)
	}
	defer resp.Close()

	out, err := os.Create(zipFilename)
	if err != nil {
		return fmt.Errorf("failed to create local file %s: %w", zipFilename, err)
	}
	defer out.Close()

	if _, err := io.Copy(out, resp); err != nil {
		return fmt.Errorf("failed to write %s: %w", zipFilename, err)
	}
	log.Printf("Importer: File written to %q\n", zipFilename)
	return nil
}
