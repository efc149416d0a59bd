package importer

import (
	"archive/zip"
	"bytes"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildZip(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	// Stop.txt first: the extraction skip check looks at the first entry.
	names := []string{"Stop.txt", "Search.txt", "QUERY_README.txt"}
	for _, name := range names {
		content, ok := files[name]
		if !ok {
			continue
		}
		f, err := w.Create(name)
		require.NoError(t, err)
		_, err = f.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func TestDownloadAndUnzipIsIdempotent(t *testing.T) {
	archive := buildZip(t, map[string]string{
		"Stop.txt":   "1\tApex PD\r\n",
		"Search.txt": "10\t1\r\n",
	})

	var requests int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&requests, 1)
		w.Write(archive)
	}))
	defer server.Close()

	dir := t.TempDir()
	url := server.URL + "/extract.zip"

	dest, err := DownloadAndUnzip(url, dir)
	require.NoError(t, err)
	assert.Equal(t, dir, dest)
	assert.FileExists(t, filepath.Join(dir, "extract.zip"))
	assert.FileExists(t, filepath.Join(dir, "Stop.txt"))
	assert.FileExists(t, filepath.Join(dir, "Search.txt"))

	// Second invocation performs no network I/O and leaves the tree as-is.
	_, err = DownloadAndUnzip(url, dir)
	require.NoError(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&requests))
}

func TestDownloadAndUnzipRejectsNonSuccessStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "forbidden", http.StatusForbidden)
	}))
	defer server.Close()

	_, err := DownloadAndUnzip(server.URL+"/extract.zip", t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "403")
}

func TestUnzipSkipsWhenFirstFileExists(t *testing.T) {
	dir := t.TempDir()
	archive := buildZip(t, map[string]string{"Stop.txt": "1\tApex PD\r\n"})
	zipPath := filepath.Join(dir, "extract.zip")
	require.NoError(t, os.WriteFile(zipPath, archive, 0644))

	// Simulate a prior extraction; its contents must survive.
	require.NoError(t, os.WriteFile(filepath.Join(dir, "Stop.txt"), []byte("already extracted"), 0644))

	require.NoError(t, Unzip(dir, zipPath))

	content, err := os.ReadFile(filepath.Join(dir, "Stop.txt"))
	require.NoError(t, err)
	assert.Equal(t, "already extracted", string(content))
}

func TestEnsureDestinationCreatesTempDirWhenEmpty(t *testing.T) {
	dest, err := EnsureDestination("")
	require.NoError(t, err)
	defer os.RemoveAll(dest)
	assert.DirExists(t, dest)
}

func TestZipPathUsesURLBasename(t *testing.T) {
	assert.Equal(t, filepath.Join("/tmp/work", "extract.zip"),
		ZipPath("https://example.com/data/extract.zip", "/tmp/work"))
}
