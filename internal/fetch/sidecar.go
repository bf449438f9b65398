package fetch

import (
	"encoding/json"
	"fmt"
	"os"
)

const sidecarSuffix = ".meta.json"

// SidecarPath returns the metadata file kept next to an artifact.
func SidecarPath(artifactPath string) string {
	return artifactPath + sidecarSuffix
}

// LoadSidecar reads the last probe persisted for artifactPath.
// Returns nil, nil if no sidecar exists (first run).
func LoadSidecar(artifactPath string) (*RemoteArtifactInfo, error) {
	data, err := os.ReadFile(SidecarPath(artifactPath))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading artifact sidecar: %w", err)
	}

	var info RemoteArtifactInfo
	if err := json.Unmarshal(data, &info); err != nil {
		return nil, fmt.Errorf("parsing artifact sidecar: %w", err)
	}
	return &info, nil
}

// SaveSidecar persists info next to artifactPath, replacing any previous record.
func SaveSidecar(artifactPath string, info *RemoteArtifactInfo) error {
	data, err := json.MarshalIndent(info, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling artifact sidecar: %w", err)
	}

	path := SidecarPath(artifactPath)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("writing artifact sidecar: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("writing artifact sidecar: %w", err)
	}
	return nil
}

// RemoveSidecar deletes the sidecar for artifactPath if present.
func RemoveSidecar(artifactPath string) error {
	if err := os.Remove(SidecarPath(artifactPath)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing artifact sidecar: %w", err)
	}
	return nil
}
