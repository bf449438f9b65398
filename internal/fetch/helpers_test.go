package fetch

import (
	"bytes"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

// rpmPayload returns n bytes starting with the RPM lead magic.
func rpmPayload(n int) []byte {
	b := make([]byte, n)
	copy(b, []byte{0xED, 0xAB, 0xEE, 0xDB})
	for i := 4; i < n; i++ {
		b[i] = byte(i % 251)
	}
	return b
}

// artifactServer serves one payload with Range support and can be told to
// misbehave in the ways real mirrors do.
type artifactServer struct {
	*httptest.Server
	payload []byte
	modTime time.Time

	mu          sync.Mutex
	heads       int
	gets        int
	ranges      []string
	failGets    int
	failAfter   int
	headStatus  int
	ignoreRange bool
	lieLength   int
}

func newArtifactServer(t *testing.T, payload []byte) *artifactServer {
	t.Helper()
	s := &artifactServer{
		payload: payload,
		modTime: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	s.Server = httptest.NewServer(http.HandlerFunc(s.handle))
	t.Cleanup(s.Close)
	return s
}

func (s *artifactServer) URL() string { return s.Server.URL + "/latest/linux-rpm-x64/stable" }

func (s *artifactServer) handle(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	modTime := s.modTime
	if r.Method == http.MethodHead {
		s.heads++
		status := s.headStatus
		s.mu.Unlock()
		if status != 0 {
			w.WriteHeader(status)
			return
		}
		http.ServeContent(w, r, "code.rpm", modTime, bytes.NewReader(s.payload))
		return
	}

	s.gets++
	s.ranges = append(s.ranges, r.Header.Get("Range"))
	fail := s.gets <= s.failGets
	ignoreRange := s.ignoreRange
	lie := s.lieLength
	s.mu.Unlock()

	switch {
	case fail:
		s.abort(w, r)
	case lie > 0:
		w.Header().Set("Content-Length", strconv.Itoa(lie))
		w.WriteHeader(http.StatusOK)
		w.Write(s.payload[:lie])
	default:
		if ignoreRange {
			r.Header.Del("Range")
		}
		http.ServeContent(w, r, "code.rpm", modTime, bytes.NewReader(s.payload))
	}
}

// abort sends failAfter bytes of the requested range and drops the connection.
func (s *artifactServer) abort(w http.ResponseWriter, r *http.Request) {
	start := 0
	if rng := r.Header.Get("Range"); rng != "" {
		start, _ = strconv.Atoi(strings.TrimSuffix(strings.TrimPrefix(rng, "bytes="), "-"))
	}
	end := min(start+s.failAfter, len(s.payload))

	w.Header().Set("Content-Length", strconv.Itoa(len(s.payload)-start))
	if start > 0 {
		w.Header().Set("Content-Range", fmt.Sprintf("bytes %d-%d/%d", start, len(s.payload)-1, len(s.payload)))
		w.WriteHeader(http.StatusPartialContent)
	} else {
		w.WriteHeader(http.StatusOK)
	}
	w.Write(s.payload[start:end])
	w.(http.Flusher).Flush()
	panic(http.ErrAbortHandler)
}

func (s *artifactServer) counts() (heads, gets int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.heads, s.gets
}

func (s *artifactServer) rangeHeaders() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.ranges...)
}

func (s *artifactServer) set(fn func(*artifactServer)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s)
}

func newTestFetcher(s *artifactServer, opts ...Option) *Fetcher {
	base := []Option{
		WithHTTPClient(s.Client()),
		WithRetryDelay(0),
		WithLogger(zerolog.Nop()),
	}
	return New(append(base, opts...)...)
}

func cachePath(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "cache", "code-linux-rpm-x64.rpm")
}

func writeFile(t *testing.T, path string, data []byte) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, data, 0644))
}

func dirOf(path string) string { return filepath.Dir(path) }
