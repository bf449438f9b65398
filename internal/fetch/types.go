package fetch

import (
	"fmt"
	"os"
	"time"
)

// RemoteArtifactInfo is the result of a metadata probe. It is never mutated
// after the probe that produced it.
type RemoteArtifactInfo struct {
	URL           string    `json:"url"`
	ContentLength int64     `json:"content_length"`
	LastModified  string    `json:"last_modified,omitempty"`
	ETag          string    `json:"etag,omitempty"`
	AcceptRanges  bool      `json:"accept_ranges"`
	FetchedAt     time.Time `json:"fetched_at"`
}

// SameArtifact reports whether two probes describe the same published file.
func (r *RemoteArtifactInfo) SameArtifact(other *RemoteArtifactInfo) bool {
	if r == nil || other == nil {
		return false
	}
	if r.ContentLength != other.ContentLength || r.LastModified != other.LastModified {
		return false
	}
	if r.ETag != "" && other.ETag != "" && r.ETag != other.ETag {
		return false
	}
	return true
}

// LocalArtifact is the on-disk state of a cached artifact.
type LocalArtifact struct {
	Path       string
	SizeOnDisk int64
	Exists     bool
}

// Stat reads the current size of path. A missing file is not an error.
func Stat(path string) (LocalArtifact, error) {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return LocalArtifact{Path: path}, nil
	}
	if err != nil {
		return LocalArtifact{Path: path}, fmt.Errorf("stat %s: %w", path, err)
	}
	if info.IsDir() {
		return LocalArtifact{Path: path}, fmt.Errorf("%s is a directory", path)
	}
	return LocalArtifact{Path: path, SizeOnDisk: info.Size(), Exists: true}, nil
}

// Discard removes the artifact and its sidecar. Missing files are ignored.
func Discard(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing %s: %w", path, err)
	}
	return RemoveSidecar(path)
}
