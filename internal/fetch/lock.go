package fetch

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"
)

// Lock is an advisory lock file guarding an artifact path against a second
// concurrent edkit process.
type Lock struct {
	path string
}

// LockPath returns the lock file used for artifactPath.
func LockPath(artifactPath string) string {
	return artifactPath + ".lock"
}

// AcquireLock creates the lock file for artifactPath. A lock older than
// staleAfter is assumed to belong to a crashed process and is replaced.
// Zero staleAfter never breaks an existing lock.
func AcquireLock(artifactPath string, staleAfter time.Duration) (*Lock, error) {
	path := LockPath(artifactPath)
	for i := 0; i < 2; i++ {
		file, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
		if err == nil {
			fmt.Fprintf(file, "%d\n%s\n", os.Getpid(), time.Now().UTC().Format(time.RFC3339))
			file.Close()
			return &Lock{path: path}, nil
		}
		if !errors.Is(err, os.ErrExist) {
			return nil, fmt.Errorf("creating lock %s: %w", path, err)
		}

		info, statErr := os.Stat(path)
		if statErr != nil {
			continue
		}
		if staleAfter <= 0 || time.Since(info.ModTime()) < staleAfter {
			return nil, fmt.Errorf("%w: %s (held by pid %s)", ErrLocked, path, lockOwner(path))
		}
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("removing stale lock %s: %w", path, err)
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrLocked, path)
}

// Release removes the lock file.
func (l *Lock) Release() error {
	if l == nil {
		return nil
	}
	if err := os.Remove(l.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("releasing lock %s: %w", l.path, err)
	}
	return nil
}

func lockOwner(path string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		return "unknown"
	}
	for i, b := range data {
		if b == '\n' {
			if _, err := strconv.Atoi(string(data[:i])); err == nil {
				return string(data[:i])
			}
			break
		}
	}
	return "unknown"
}
