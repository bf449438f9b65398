package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// Probe issues a HEAD request for url and records the advertised size and
// freshness validators. Servers that refuse HEAD are asked for the first byte
// with a ranged GET instead, and the total size is read from Content-Range.
func (f *Fetcher) Probe(ctx context.Context, url string) (*RemoteArtifactInfo, error) {
	resp, err := f.do(ctx, http.MethodHead, url, nil)
	if err != nil {
		return nil, &ProbeError{URL: url, Err: err}
	}
	resp.Body.Close()

	if resp.StatusCode == http.StatusMethodNotAllowed || resp.StatusCode == http.StatusNotImplemented {
		f.logger.Debug().Str("url", url).Int("status", resp.StatusCode).Msg("HEAD rejected, probing with ranged GET")
		return f.probeWithRange(ctx, url)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &ProbeError{URL: url, StatusCode: resp.StatusCode}
	}
	if resp.ContentLength < 0 {
		return nil, &ProbeError{URL: url, Err: errors.New("server did not advertise a content length")}
	}

	return &RemoteArtifactInfo{
		URL:           url,
		ContentLength: resp.ContentLength,
		LastModified:  resp.Header.Get("Last-Modified"),
		ETag:          resp.Header.Get("ETag"),
		AcceptRanges:  strings.Contains(resp.Header.Get("Accept-Ranges"), "bytes"),
		FetchedAt:     time.Now().UTC(),
	}, nil
}

func (f *Fetcher) probeWithRange(ctx context.Context, url string) (*RemoteArtifactInfo, error) {
	resp, err := f.do(ctx, http.MethodGet, url, map[string]string{"Range": "bytes=0-0"})
	if err != nil {
		return nil, &ProbeError{URL: url, Err: err}
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1))

	info := &RemoteArtifactInfo{
		URL:          url,
		LastModified: resp.Header.Get("Last-Modified"),
		ETag:         resp.Header.Get("ETag"),
		FetchedAt:    time.Now().UTC(),
	}

	switch resp.StatusCode {
	case http.StatusPartialContent:
		total, err := contentRangeTotal(resp.Header.Get("Content-Range"))
		if err != nil {
			return nil, &ProbeError{URL: url, Err: err}
		}
		info.ContentLength = total
		info.AcceptRanges = true
	case http.StatusOK:
		if resp.ContentLength < 0 {
			return nil, &ProbeError{URL: url, Err: errors.New("server did not advertise a content length")}
		}
		info.ContentLength = resp.ContentLength
	default:
		return nil, &ProbeError{URL: url, StatusCode: resp.StatusCode}
	}
	return info, nil
}

func (f *Fetcher) do(ctx context.Context, method, url string, headers map[string]string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating %s request: %w", method, err)
	}
	req.Header.Set("User-Agent", f.userAgent)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	return f.httpClient.Do(req)
}

// contentRangeStart parses "bytes 400-999/1000" and returns 400.
func contentRangeStart(header string) (int64, error) {
	start, _, err := parseContentRange(header)
	return start, err
}

// contentRangeTotal parses "bytes 0-0/1000" and returns 1000.
func contentRangeTotal(header string) (int64, error) {
	_, total, err := parseContentRange(header)
	if err == nil && total < 0 {
		return 0, fmt.Errorf("content range %q has unknown total size", header)
	}
	return total, err
}

func parseContentRange(header string) (start, total int64, err error) {
	value, ok := strings.CutPrefix(strings.TrimSpace(header), "bytes ")
	if !ok {
		return 0, 0, fmt.Errorf("malformed content range %q", header)
	}
	rng, size, ok := strings.Cut(value, "/")
	if !ok {
		return 0, 0, fmt.Errorf("malformed content range %q", header)
	}
	first, _, ok := strings.Cut(rng, "-")
	if !ok {
		return 0, 0, fmt.Errorf("malformed content range %q", header)
	}
	start, err = strconv.ParseInt(first, 10, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("malformed content range %q: %w", header, err)
	}
	total = -1
	if size != "*" {
		total, err = strconv.ParseInt(size, 10, 64)
		if err != nil {
			return 0, 0, fmt.Errorf("malformed content range %q: %w", header, err)
		}
	}
	return start, total, nil
}
