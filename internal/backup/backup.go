// Package backup snapshots the editor's user configuration before an
// install or settings merge touches it.
package backup

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/edkit-dev/edkit/internal/logging"
	"github.com/edkit-dev/edkit/internal/session"
)

// timeLayout names backup directories so lexical order is chronological.
const timeLayout = "20060102-150405"

// Items are the entries of the editor User directory that are backed up.
var Items = []string{"settings.json", "keybindings.json", "snippets"}

// ErrNothingToBackUp means none of Items exist in the source directory.
var ErrNothingToBackUp = errors.New("no editor configuration to back up")

// Backup is one snapshot directory.
type Backup struct {
	Name    string
	Path    string
	Created time.Time
}

// Create copies Items from src into a new timestamped directory under root
// and records it on the session. In a dry run the path is computed and
// logged but nothing is written.
func Create(sess *session.Session, src, root string) (string, error) {
	var present []string
	for _, item := range Items {
		if _, err := os.Stat(filepath.Join(src, item)); err == nil {
			present = append(present, item)
		}
	}
	if len(present) == 0 {
		return "", fmt.Errorf("%w in %s", ErrNothingToBackUp, src)
	}

	dest := uniqueDir(filepath.Join(root, time.Now().Format(timeLayout)))
	sess.Log.Info().Str("src", src).Str("dest", dest).Strs("items", present).Msg("Backing up editor configuration")
	if sess.DryRun {
		sess.BackupPath = dest
		return dest, nil
	}

	if err := os.MkdirAll(dest, 0700); err != nil {
		return "", fmt.Errorf("creating backup directory: %w", err)
	}
	for _, item := range present {
		if err := copyTree(filepath.Join(src, item), filepath.Join(dest, item)); err != nil {
			return "", fmt.Errorf("backing up %s: %w", item, err)
		}
	}
	sess.BackupPath = dest
	return dest, nil
}

// List returns the snapshots under root, oldest first.
func List(root string) ([]Backup, error) {
	entries, err := os.ReadDir(root)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", root, err)
	}

	var backups []Backup
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		stamp := e.Name()
		if len(stamp) > len(timeLayout) {
			stamp = stamp[:len(timeLayout)]
		}
		created, err := time.ParseInLocation(timeLayout, stamp, time.Local)
		if err != nil {
			continue
		}
		backups = append(backups, Backup{Name: e.Name(), Path: filepath.Join(root, e.Name()), Created: created})
	}
	sort.Slice(backups, func(i, j int) bool { return backups[i].Name < backups[j].Name })
	return backups, nil
}

// Latest returns the newest snapshot, or nil when there is none.
func Latest(root string) (*Backup, error) {
	backups, err := List(root)
	if err != nil || len(backups) == 0 {
		return nil, err
	}
	return &backups[len(backups)-1], nil
}

// Restore copies a snapshot back into dest, overwriting what is there.
// Files in dest that the snapshot does not contain are left alone.
func Restore(path, dest string) error {
	logger := logging.GetLogger("backup")
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("opening backup: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("backup %s is not a directory", path)
	}

	restored := 0
	for _, item := range Items {
		from := filepath.Join(path, item)
		if _, err := os.Stat(from); err != nil {
			continue
		}
		if err := copyTree(from, filepath.Join(dest, item)); err != nil {
			return fmt.Errorf("restoring %s: %w", item, err)
		}
		restored++
	}
	if restored == 0 {
		return fmt.Errorf("backup %s is empty", path)
	}
	logger.Info().Str("backup", path).Str("dest", dest).Int("items", restored).Msg("Restored editor configuration")
	return nil
}

func uniqueDir(base string) string {
	dir := base
	for i := 2; ; i++ {
		if _, err := os.Stat(dir); os.IsNotExist(err) {
			return dir
		}
		dir = fmt.Sprintf("%s-%d", base, i)
	}
}

// copyTree copies a file or a directory recursively, keeping permissions.
func copyTree(src, dst string) error {
	return filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)

		info, err := d.Info()
		if err != nil {
			return err
		}
		switch {
		case d.IsDir():
			return os.MkdirAll(target, info.Mode().Perm()|0700)
		case info.Mode().IsRegular():
			return copyFile(path, target, info.Mode().Perm())
		default:
			// Symlinks and devices are not part of an editor config.
			return nil
		}
	})
}

func copyFile(src, dst string, mode os.FileMode) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	if err := os.MkdirAll(filepath.Dir(dst), 0700); err != nil {
		return err
	}
	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Close()
}
