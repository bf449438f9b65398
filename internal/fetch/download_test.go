package fetch

import (
	"bytes"
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func probe(t *testing.T, f *Fetcher, srv *artifactServer) *RemoteArtifactInfo {
	t.Helper()
	info, err := f.Probe(context.Background(), srv.URL())
	require.NoError(t, err)
	return info
}

func TestFetch_FromScratch(t *testing.T) {
	payload := rpmPayload(1000)
	srv := newArtifactServer(t, payload)
	f := newTestFetcher(srv)
	path := cachePath(t)
	require.NoError(t, os.MkdirAll(dirOf(path), 0755))

	local, err := f.Fetch(context.Background(), probe(t, f, srv), LocalArtifact{Path: path}, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(1000), local.SizeOnDisk)

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, bytes.Equal(payload, got))
	assert.Equal(t, []string{""}, srv.rangeHeaders())
}

func TestFetch_ResumesAtSizeOnDisk(t *testing.T) {
	payload := rpmPayload(1000)
	srv := newArtifactServer(t, payload)
	f := newTestFetcher(srv)
	path := cachePath(t)
	writeFile(t, path, payload[:400])

	local, err := Stat(path)
	require.NoError(t, err)
	require.Equal(t, int64(400), local.SizeOnDisk)

	result, err := f.Fetch(context.Background(), probe(t, f, srv), local, 3)
	require.NoError(t, err)
	assert.Equal(t, int64(1000), result.SizeOnDisk)
	assert.Equal(t, []string{"bytes=400-"}, srv.rangeHeaders())

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, bytes.Equal(payload, got))
}

func TestFetch_RetriesAndKeepsPartialBytes(t *testing.T) {
	payload := rpmPayload(1000)
	srv := newArtifactServer(t, payload)
	srv.set(func(s *artifactServer) {
		s.failGets = 2
		s.failAfter = 100
	})
	f := newTestFetcher(srv)
	path := cachePath(t)
	require.NoError(t, os.MkdirAll(dirOf(path), 0755))

	var retries []int64
	result, err := f.fetch(context.Background(), probe(t, f, srv), LocalArtifact{Path: path}, 3, func(attempt int, offset int64, err error) {
		retries = append(retries, offset)
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1000), result.SizeOnDisk)

	_, gets := srv.counts()
	assert.Equal(t, 3, gets, "succeeds on the third attempt")
	assert.Equal(t, []string{"", "bytes=100-", "bytes=200-"}, srv.rangeHeaders())
	assert.Equal(t, []int64{100, 200}, retries)

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, bytes.Equal(payload, got))
}

func TestFetch_RetriesExhausted(t *testing.T) {
	srv := newArtifactServer(t, rpmPayload(1000))
	srv.set(func(s *artifactServer) {
		s.failGets = 100
		s.failAfter = 100
	})
	f := newTestFetcher(srv)
	path := cachePath(t)
	require.NoError(t, os.MkdirAll(dirOf(path), 0755))

	_, err := f.Fetch(context.Background(), probe(t, f, srv), LocalArtifact{Path: path}, 2)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNetwork)

	var fe *FetchError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, 3, fe.Attempts)

	local, err := Stat(path)
	require.NoError(t, err)
	assert.Equal(t, int64(300), local.SizeOnDisk, "partial bytes are never truncated")
}

func TestFetch_ServerIgnoresRange(t *testing.T) {
	payload := rpmPayload(1000)
	srv := newArtifactServer(t, payload)
	srv.set(func(s *artifactServer) { s.ignoreRange = true })
	f := newTestFetcher(srv)
	path := cachePath(t)
	writeFile(t, path, payload[:400])

	local, err := Stat(path)
	require.NoError(t, err)
	result, err := f.Fetch(context.Background(), probe(t, f, srv), local, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(1000), result.SizeOnDisk)

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, bytes.Equal(payload, got))
}

func TestFetch_ShortTransferIsSizeMismatch(t *testing.T) {
	srv := newArtifactServer(t, rpmPayload(1000))
	srv.set(func(s *artifactServer) { s.lieLength = 700 })
	f := newTestFetcher(srv)
	path := cachePath(t)
	require.NoError(t, os.MkdirAll(dirOf(path), 0755))

	_, err := f.Fetch(context.Background(), probe(t, f, srv), LocalArtifact{Path: path}, 3)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSizeMismatch)

	var fe *FetchError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, int64(1000), fe.Expected)
	assert.Equal(t, int64(700), fe.Actual)
}

func TestFetch_OversizedLocalFile(t *testing.T) {
	srv := newArtifactServer(t, rpmPayload(1000))
	f := newTestFetcher(srv)
	path := cachePath(t)
	writeFile(t, path, rpmPayload(1200))

	local, err := Stat(path)
	require.NoError(t, err)
	_, err = f.Fetch(context.Background(), probe(t, f, srv), local, 3)
	assert.ErrorIs(t, err, ErrSizeMismatch)

	_, gets := srv.counts()
	assert.Zero(t, gets)
}

func TestFetch_CompleteFileTransfersNothing(t *testing.T) {
	payload := rpmPayload(1000)
	srv := newArtifactServer(t, payload)
	f := newTestFetcher(srv)
	path := cachePath(t)
	writeFile(t, path, payload)

	local, err := Stat(path)
	require.NoError(t, err)
	_, err = f.Fetch(context.Background(), probe(t, f, srv), local, 3)
	require.NoError(t, err)

	_, gets := srv.counts()
	assert.Zero(t, gets)
}

func TestFetch_CancelKeepsPartialFile(t *testing.T) {
	srv := newArtifactServer(t, rpmPayload(1000))
	srv.set(func(s *artifactServer) {
		s.failGets = 1
		s.failAfter = 250
	})
	f := newTestFetcher(srv, WithRetryDelay(time.Hour))
	path := cachePath(t)
	require.NoError(t, os.MkdirAll(dirOf(path), 0755))
	remote := probe(t, f, srv)

	ctx, cancel := context.WithCancel(context.Background())
	_, err := f.fetch(ctx, remote, LocalArtifact{Path: path}, 3, func(int, int64, error) { cancel() })
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, ErrNetwork)

	local, err := Stat(path)
	require.NoError(t, err)
	assert.Equal(t, int64(250), local.SizeOnDisk)
}

func TestProgressWriter(t *testing.T) {
	var buf bytes.Buffer
	p := newProgressWriter(&buf, 0, 2000)
	p.Write(make([]byte, 1000))
	p.Write(make([]byte, 1000))
	p.finish()

	assert.Contains(t, buf.String(), "50% (1,000 / 2,000 bytes)")
	assert.Contains(t, buf.String(), "100% (2,000 / 2,000 bytes)")
}

func TestIfRangeValidator(t *testing.T) {
	tests := []struct {
		name string
		etag string
		want string
	}{
		{"strong etag", `"abc"`, `"abc"`},
		{"weak etag falls back", `W/"abc"`, "Mon, 02 Mar 2026 10:00:00 GMT"},
		{"empty quotes fall back", `""`, "Mon, 02 Mar 2026 10:00:00 GMT"},
		{"no etag", "", "Mon, 02 Mar 2026 10:00:00 GMT"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			remote := &RemoteArtifactInfo{ETag: tt.etag, LastModified: "Mon, 02 Mar 2026 10:00:00 GMT"}
			assert.Equal(t, tt.want, ifRangeValidator(remote))
		})
	}
}
