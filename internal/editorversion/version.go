// Package editorversion reads and compares installed editor versions.
package editorversion

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/edkit-dev/edkit/internal/executor"
	"github.com/edkit-dev/edkit/internal/platform"
)

// ErrNotInstalled means the variant's launcher is not on PATH.
var ErrNotInstalled = errors.New("editor is not installed")

// Installed runs the variant's launcher with --version and returns the
// first line of its output, e.g. "1.96.2".
func Installed(ctx context.Context, exec executor.Executor, variant platform.Variant) (string, error) {
	bin := variant.Binary()
	if !exec.LookPath(bin) {
		return "", fmt.Errorf("%w: %s not found on PATH", ErrNotInstalled, bin)
	}
	res, err := exec.Run(ctx, executor.Command{Name: bin, Args: []string{"--version"}})
	if err != nil {
		return "", fmt.Errorf("querying %s version: %w", bin, err)
	}
	first, _, _ := strings.Cut(strings.TrimSpace(res.Stdout), "\n")
	first = strings.TrimSpace(first)
	if first == "" {
		return "", fmt.Errorf("%s --version printed nothing", bin)
	}
	return first, nil
}

// Compare returns -1, 0 or 1 as a is older than, equal to or newer than b.
// A leading "v" and insiders suffixes such as "-insider" are tolerated.
func Compare(a, b string) (int, error) {
	av, err := parse(a)
	if err != nil {
		return 0, fmt.Errorf("parsing version %q: %w", a, err)
	}
	bv, err := parse(b)
	if err != nil {
		return 0, fmt.Errorf("parsing version %q: %w", b, err)
	}
	return av.Compare(bv), nil
}

// UpToDate reports whether installed satisfies the minimum version pin.
// An empty pin accepts any installed version.
func UpToDate(installed, pin string) (bool, error) {
	if installed == "" {
		return false, nil
	}
	if pin == "" {
		return true, nil
	}
	cmp, err := Compare(installed, pin)
	if err != nil {
		return false, err
	}
	return cmp >= 0, nil
}

func parse(version string) (*semver.Version, error) {
	return semver.NewVersion(strings.TrimPrefix(strings.TrimSpace(version), "v"))
}
