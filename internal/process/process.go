// Package process finds and closes running editor instances before an
// install replaces their files.
package process

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/edkit-dev/edkit/internal/executor"
	"github.com/edkit-dev/edkit/internal/logging"
)

// pollInterval is how often Close re-checks for survivors during the grace period.
var pollInterval = 250 * time.Millisecond

// Process is a running program.
type Process struct {
	PID  int
	Name string
}

// Find lists running processes whose command name is one of names.
func Find(ctx context.Context, exec executor.Executor, names []string) ([]Process, error) {
	res, err := exec.Run(ctx, executor.Command{Name: "ps", Args: []string{"-eo", "pid=,comm="}})
	if err != nil {
		return nil, fmt.Errorf("listing processes: %w", err)
	}
	return parsePS(res.Stdout, names), nil
}

// parsePS reads "pid comm" lines. comm may contain spaces, and on macOS it
// is a full executable path.
func parsePS(out string, names []string) []Process {
	want := make(map[string]bool, len(names))
	for _, n := range names {
		want[n] = true
	}

	var procs []Process
	sc := bufio.NewScanner(strings.NewReader(out))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		pidField, comm, ok := strings.Cut(line, " ")
		if !ok {
			continue
		}
		pid, err := strconv.Atoi(pidField)
		if err != nil {
			continue
		}
		comm = strings.TrimSpace(comm)
		switch {
		case want[comm]:
		case want[filepath.Base(comm)]:
			comm = filepath.Base(comm)
		default:
			continue
		}
		procs = append(procs, Process{PID: pid, Name: comm})
	}
	return procs
}

// Close asks every process named in names to exit with SIGTERM, waits up
// to grace for them to go, then sends SIGKILL to whatever is left.
func Close(ctx context.Context, exec executor.Executor, names []string, grace time.Duration) error {
	logger := logging.GetLogger("process")

	running, err := Find(ctx, exec, names)
	if err != nil {
		return err
	}
	if len(running) == 0 {
		logger.Debug().Strs("names", names).Msg("No editor processes running")
		return nil
	}
	logger.Info().Int("count", len(running)).Msg("Closing running editor")

	if err := signal(ctx, exec, "TERM", distinctNames(running)); err != nil {
		return err
	}

	if !exec.DryRun() {
		deadline := time.Now().Add(grace)
		for time.Now().Before(deadline) {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(pollInterval):
			}
			running, err = Find(ctx, exec, names)
			if err != nil {
				return err
			}
			if len(running) == 0 {
				return nil
			}
		}
	}

	logger.Warn().Int("count", len(running)).Dur("grace", grace).Msg("Editor did not exit, killing")
	if err := signal(ctx, exec, "KILL", distinctNames(running)); err != nil {
		return err
	}
	return nil
}

func signal(ctx context.Context, exec executor.Executor, sig string, names []string) error {
	for _, name := range names {
		_, err := exec.Run(ctx, executor.Command{Name: "pkill", Args: []string{"-" + sig, "-x", name}})
		var exitErr *executor.ExitError
		// pkill exits 1 when nothing matched, which is what we want.
		if errors.As(err, &exitErr) && exitErr.Result.ExitCode == 1 {
			continue
		}
		if err != nil {
			return fmt.Errorf("sending SIG%s to %s: %w", sig, name, err)
		}
	}
	return nil
}

func distinctNames(procs []Process) []string {
	seen := make(map[string]bool)
	var names []string
	for _, p := range procs {
		if !seen[p.Name] {
			seen[p.Name] = true
			names = append(names, p.Name)
		}
	}
	return names
}
