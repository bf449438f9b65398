package fetch

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/edkit-dev/edkit/internal/artifact"
)

// Verify checks that the artifact at local.Path has the advertised size and
// a file signature matching expected. When a SHA-256 pin is configured the
// digest is compared as well. Any failure is a *VerifyError.
func (f *Fetcher) Verify(local LocalArtifact, remote *RemoteArtifactInfo, expected artifact.Kind) error {
	current, err := Stat(local.Path)
	if err != nil {
		return err
	}
	if current.SizeOnDisk != remote.ContentLength {
		return &VerifyError{
			Kind:     ErrSizeMismatch,
			Path:     local.Path,
			Expected: strconv.FormatInt(remote.ContentLength, 10) + " bytes",
			Actual:   strconv.FormatInt(current.SizeOnDisk, 10) + " bytes",
		}
	}

	got, err := artifact.Sniff(local.Path)
	if err != nil {
		return err
	}
	if got != expected {
		return &VerifyError{
			Kind:     ErrWrongType,
			Path:     local.Path,
			Expected: expected.String(),
			Actual:   got.String(),
		}
	}

	if f.expectedSHA256 == "" {
		return nil
	}
	digest, err := fileSHA256(local.Path)
	if err != nil {
		return err
	}
	if !strings.EqualFold(digest, f.expectedSHA256) {
		return &VerifyError{
			Kind:     ErrChecksumMismatch,
			Path:     local.Path,
			Expected: f.expectedSHA256,
			Actual:   digest,
		}
	}
	return nil
}

func fileSHA256(path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("opening artifact for checksum: %w", err)
	}
	defer file.Close()

	h := sha256.New()
	if _, err := io.Copy(h, file); err != nil {
		return "", fmt.Errorf("computing checksum: %w", err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
