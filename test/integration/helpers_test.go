//go:build integration

package integration_test

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/adrg/xdg"
)

// testEnv holds the sandboxed XDG roots for one test.
type testEnv struct {
	ConfigHome string
	DataHome   string
	BinHome    string
	CacheDir   string
	BackupDir  string
}

// setupTestEnv points every XDG base directory at a temp dir so nothing a
// test installs or writes leaks into the real home directory.
func setupTestEnv(t *testing.T) *testEnv {
	t.Helper()
	root := t.TempDir()
	env := &testEnv{
		ConfigHome: filepath.Join(root, "config"),
		DataHome:   filepath.Join(root, "data"),
		BinHome:    filepath.Join(root, "bin"),
		CacheDir:   filepath.Join(root, "cache"),
		BackupDir:  filepath.Join(root, "backups"),
	}

	t.Cleanup(xdg.Reload)
	t.Setenv("XDG_CONFIG_HOME", env.ConfigHome)
	t.Setenv("XDG_DATA_HOME", env.DataHome)
	t.Setenv("XDG_BIN_HOME", env.BinHome)
	t.Setenv("XDG_STATE_HOME", filepath.Join(root, "state"))
	xdg.Reload()
	return env
}

// editorArchive builds a tar.gz laid out like an upstream linux build.
func editorArchive(t *testing.T, version string) []byte {
	t.Helper()
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)

	dirs := []string{"VSCode-linux-x64/", "VSCode-linux-x64/bin/", "VSCode-linux-x64/resources/"}
	for _, d := range dirs {
		if err := tw.WriteHeader(&tar.Header{Name: d, Typeflag: tar.TypeDir, Mode: 0755}); err != nil {
			t.Fatalf("writing dir header: %v", err)
		}
	}
	files := map[string]string{
		"VSCode-linux-x64/bin/code":              "#!/bin/sh\necho " + version + "\n",
		"VSCode-linux-x64/resources/version.txt": version + "\n",
	}
	for name, body := range files {
		hdr := &tar.Header{Name: name, Typeflag: tar.TypeReg, Mode: 0755, Size: int64(len(body))}
		if err := tw.WriteHeader(hdr); err != nil {
			t.Fatalf("writing header for %s: %v", name, err)
		}
		if _, err := tw.Write([]byte(body)); err != nil {
			t.Fatalf("writing %s: %v", name, err)
		}
	}
	if err := tw.Close(); err != nil {
		t.Fatalf("closing tar: %v", err)
	}
	if err := gz.Close(); err != nil {
		t.Fatalf("closing gzip: %v", err)
	}
	return buf.Bytes()
}

// downloadServer serves payload with Range and HEAD support and counts GETs.
type downloadServer struct {
	*httptest.Server
	gets atomic.Int32
}

func serveArtifact(t *testing.T, payload []byte) *downloadServer {
	t.Helper()
	ds := &downloadServer{}
	modTime := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)
	ds.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			ds.gets.Add(1)
		}
		http.ServeContent(w, r, "code.tar.gz", modTime, bytes.NewReader(payload))
	}))
	t.Cleanup(ds.Close)
	return ds
}
