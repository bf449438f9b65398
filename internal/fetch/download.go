package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

// retryHook is told about each failed attempt before the retry delay starts.
type retryHook func(attempt int, offset int64, err error)

// Fetch downloads remote into local.Path, resuming from the bytes already on
// disk. Failed transfers are retried up to maxRetries times with a fixed delay;
// bytes written before a failure are kept and become the next resume offset.
// The result is only successful when the file holds exactly ContentLength bytes.
func (f *Fetcher) Fetch(ctx context.Context, remote *RemoteArtifactInfo, local LocalArtifact, maxRetries int) (*LocalArtifact, error) {
	return f.fetch(ctx, remote, local, maxRetries, nil)
}

func (f *Fetcher) fetch(ctx context.Context, remote *RemoteArtifactInfo, local LocalArtifact, maxRetries int, onRetry retryHook) (*LocalArtifact, error) {
	if maxRetries < 0 {
		maxRetries = 0
	}

	attempt := 0
	for {
		current, err := Stat(local.Path)
		if err != nil {
			return nil, err
		}
		if current.SizeOnDisk > remote.ContentLength {
			return nil, &FetchError{
				Kind:     ErrSizeMismatch,
				URL:      remote.URL,
				Attempts: attempt,
				Expected: remote.ContentLength,
				Actual:   current.SizeOnDisk,
			}
		}
		if current.Exists && current.SizeOnDisk == remote.ContentLength {
			break
		}

		attempt++
		f.logger.Debug().
			Str("url", remote.URL).
			Int("attempt", attempt).
			Int64("offset", current.SizeOnDisk).
			Msg("Starting transfer")

		err = f.transfer(ctx, remote, current)
		if err == nil {
			break
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			// Interrupted: the partial file stays for the next run.
			return nil, stopped(remote.URL, attempt, ctxErr)
		}

		after, statErr := Stat(local.Path)
		if statErr != nil {
			return nil, statErr
		}
		f.logger.Warn().
			Err(err).
			Str("url", remote.URL).
			Int("attempt", attempt).
			Int64("offset", after.SizeOnDisk).
			Msg("Transfer failed")

		if attempt > maxRetries {
			return nil, &FetchError{Kind: ErrNetwork, URL: remote.URL, Attempts: attempt, Err: err}
		}
		if onRetry != nil {
			onRetry(attempt, after.SizeOnDisk, err)
		}
		if err := sleep(ctx, f.retryDelay); err != nil {
			return nil, stopped(remote.URL, attempt, err)
		}
	}

	final, err := Stat(local.Path)
	if err != nil {
		return nil, err
	}
	if final.SizeOnDisk != remote.ContentLength {
		return nil, &FetchError{
			Kind:     ErrSizeMismatch,
			URL:      remote.URL,
			Attempts: attempt,
			Expected: remote.ContentLength,
			Actual:   final.SizeOnDisk,
		}
	}
	return &final, nil
}

// stopped reports a transfer ended by its context. Running out of transfer
// time is a network failure; a cancelled context is returned as is.
func stopped(url string, attempt int, ctxErr error) error {
	if errors.Is(ctxErr, context.DeadlineExceeded) {
		return &FetchError{Kind: ErrNetwork, URL: url, Attempts: attempt, Err: ctxErr}
	}
	return fmt.Errorf("downloading %s: %w", url, ctxErr)
}

// transfer performs a single GET, appending to the file when the server
// honours the range request.
func (f *Fetcher) transfer(ctx context.Context, remote *RemoteArtifactInfo, current LocalArtifact) error {
	offset := current.SizeOnDisk
	headers := map[string]string{}
	if offset > 0 {
		headers["Range"] = fmt.Sprintf("bytes=%d-", offset)
		if v := ifRangeValidator(remote); v != "" {
			headers["If-Range"] = v
		}
	}

	resp, err := f.do(ctx, http.MethodGet, remote.URL, headers)
	if err != nil {
		return fmt.Errorf("requesting %s: %w", remote.URL, err)
	}
	defer resp.Body.Close()

	flags := os.O_CREATE | os.O_WRONLY
	switch {
	case resp.StatusCode == http.StatusPartialContent && offset > 0:
		start, err := contentRangeStart(resp.Header.Get("Content-Range"))
		if err != nil {
			return err
		}
		if start != offset {
			return fmt.Errorf("server resumed at byte %d, expected %d", start, offset)
		}
		flags |= os.O_APPEND
	case resp.StatusCode == http.StatusOK:
		if offset > 0 {
			// The full body is on its way; appending it would corrupt the file.
			f.logger.Warn().
				Str("url", remote.URL).
				Int64("offset", offset).
				Msg("Server ignored range request, restarting from byte 0")
		}
		flags |= os.O_TRUNC
		offset = 0
	case resp.StatusCode == http.StatusRequestedRangeNotSatisfiable && offset == remote.ContentLength:
		return nil
	default:
		return fmt.Errorf("download returned status %d", resp.StatusCode)
	}

	file, err := os.OpenFile(current.Path, flags, 0644)
	if err != nil {
		return fmt.Errorf("opening download file: %w", err)
	}

	var dst io.Writer = file
	var progress *progressWriter
	if f.progress != nil {
		progress = newProgressWriter(f.progress, offset, remote.ContentLength)
		dst = io.MultiWriter(file, progress)
	}

	_, copyErr := io.Copy(dst, resp.Body)
	if progress != nil {
		progress.finish()
	}
	syncErr := file.Sync()
	closeErr := file.Close()

	if copyErr != nil {
		return fmt.Errorf("reading download stream: %w", copyErr)
	}
	return errors.Join(syncErr, closeErr)
}

// ifRangeValidator returns a validator safe for If-Range. Weak ETags are
// not allowed there, so Last-Modified is used instead.
func ifRangeValidator(remote *RemoteArtifactInfo) string {
	if len(remote.ETag) > 2 && !strings.HasPrefix(remote.ETag, "W/") {
		return remote.ETag
	}
	return remote.LastModified
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
