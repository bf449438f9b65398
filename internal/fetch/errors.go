package fetch

import (
	"errors"
	"fmt"
)

var (
	// ErrProbeFailed means no usable metadata could be obtained for the URL.
	ErrProbeFailed = errors.New("probe failed")
	// ErrNetwork means the transfer kept failing until retries ran out.
	ErrNetwork = errors.New("network transfer failed")
	// ErrSizeMismatch means the artifact on disk does not have the advertised size.
	ErrSizeMismatch = errors.New("size mismatch")
	// ErrWrongType means the artifact's signature does not match the expected kind.
	ErrWrongType = errors.New("wrong artifact type")
	// ErrChecksumMismatch means the artifact does not match the pinned digest.
	ErrChecksumMismatch = errors.New("checksum mismatch")
	// ErrLocked means another process holds the artifact's lock.
	ErrLocked = errors.New("artifact locked")
)

// ProbeError describes a failed metadata probe.
type ProbeError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *ProbeError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("probing %s: server returned status %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("probing %s: %v", e.URL, e.Err)
}

func (e *ProbeError) Unwrap() []error { return nonNil(ErrProbeFailed, e.Err) }

// FetchError describes a failed download. Kind is ErrNetwork or ErrSizeMismatch.
type FetchError struct {
	Kind     error
	URL      string
	Attempts int
	Expected int64
	Actual   int64
	Err      error
}

func (e *FetchError) Error() string {
	if errors.Is(e.Kind, ErrSizeMismatch) {
		return fmt.Sprintf("downloading %s: %v: expected %d bytes, have %d", e.URL, e.Kind, e.Expected, e.Actual)
	}
	return fmt.Sprintf("downloading %s: %v after %d attempts: %v", e.URL, e.Kind, e.Attempts, e.Err)
}

func (e *FetchError) Unwrap() []error { return nonNil(e.Kind, e.Err) }

// VerifyError describes an artifact that failed post-download checks.
// Kind is ErrSizeMismatch, ErrWrongType or ErrChecksumMismatch.
type VerifyError struct {
	Kind     error
	Path     string
	Expected string
	Actual   string
}

func (e *VerifyError) Error() string {
	return fmt.Sprintf("verifying %s: %v: expected %s, got %s", e.Path, e.Kind, e.Expected, e.Actual)
}

func (e *VerifyError) Unwrap() error { return e.Kind }

// IsCorrupt reports whether err means the cached artifact must be discarded.
func IsCorrupt(err error) bool {
	var ve *VerifyError
	return errors.As(err, &ve)
}

func nonNil(errs ...error) []error {
	out := errs[:0]
	for _, err := range errs {
		if err != nil {
			out = append(out, err)
		}
	}
	return out
}
