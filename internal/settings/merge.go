package settings

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"sort"

	"github.com/edkit-dev/edkit/internal/logging"
	"github.com/tailscale/hujson"
)

// Diff lists the top-level keys a merge touches.
type Diff struct {
	Added   []string
	Changed []string
	Removed []string
}

// Empty reports whether the merge changes nothing.
func (d *Diff) Empty() bool {
	return len(d.Added) == 0 && len(d.Changed) == 0 && len(d.Removed) == 0
}

// Read parses a settings.json file. Comments and trailing commas are
// accepted. A missing or empty file is an empty object.
func Read(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return map[string]any{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return map[string]any{}, nil
	}

	std, err := hujson.Standardize(data)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	var values map[string]any
	if err := json.Unmarshal(std, &values); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	if values == nil {
		values = map[string]any{}
	}
	return values, nil
}

// Apply merges p into current in place and returns what changed. Keys named
// by the profile are replaced wholesale; every other key is left alone.
func Apply(current map[string]any, p *Profile) *Diff {
	diff := &Diff{}
	for key, want := range p.Overrides {
		have, ok := current[key]
		switch {
		case !ok:
			diff.Added = append(diff.Added, key)
		case !reflect.DeepEqual(have, want):
			diff.Changed = append(diff.Changed, key)
		default:
			continue
		}
		current[key] = want
	}
	for _, key := range p.Remove {
		if _, ok := current[key]; ok {
			delete(current, key)
			diff.Removed = append(diff.Removed, key)
		}
	}
	sort.Strings(diff.Added)
	sort.Strings(diff.Changed)
	sort.Strings(diff.Removed)
	return diff
}

// Merge applies p to the settings file at path. Nothing is written when
// dryRun is set or the merge changes nothing. Comments in the original file
// are not preserved.
func Merge(path string, p *Profile, dryRun bool) (*Diff, error) {
	logger := logging.GetLogger("settings")

	current, err := Read(path)
	if err != nil {
		return nil, err
	}
	diff := Apply(current, p)

	logger.Info().
		Str("path", path).
		Str("profile", p.Name).
		Strs("added", diff.Added).
		Strs("changed", diff.Changed).
		Strs("removed", diff.Removed).
		Bool("dry_run", dryRun).
		Msg("Settings merge")

	if dryRun || diff.Empty() {
		return diff, nil
	}
	if err := writeAtomic(path, current); err != nil {
		return nil, err
	}
	return diff, nil
}

// writeAtomic writes values as indented JSON with sorted keys via a temp
// file in the same directory.
func writeAtomic(path string, values map[string]any) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "    ")
	if err := enc.Encode(values); err != nil {
		return fmt.Errorf("encoding settings: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating %s: %w", dir, err)
	}

	mode := os.FileMode(0644)
	if info, err := os.Stat(path); err == nil {
		mode = info.Mode().Perm()
	}

	tmp, err := os.CreateTemp(dir, ".settings-*.json")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		return fmt.Errorf("writing temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("syncing temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Chmod(tmpName, mode); err != nil {
		return fmt.Errorf("setting permissions on %s: %w", tmpName, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("replacing %s: %w", path, err)
	}
	return nil
}
