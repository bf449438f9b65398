package executor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"

	"github.com/edkit-dev/edkit/internal/logging"
	"github.com/rs/zerolog"
)

// Command is one external program invocation.
type Command struct {
	Name string
	Args []string
	// Sudo runs the command through sudo unless the process is already root.
	Sudo bool
	Dir  string
	// Stdin is fed to the process when set.
	Stdin io.Reader
}

// String renders the command the way it would be typed in a shell.
func (c Command) String() string {
	parts := make([]string, 0, len(c.Args)+2)
	if c.Sudo {
		parts = append(parts, "sudo")
	}
	parts = append(parts, c.Name)
	for _, a := range c.Args {
		if a == "" || strings.ContainsAny(a, " \t'\"") {
			a = "'" + strings.ReplaceAll(a, "'", `'\''`) + "'"
		}
		parts = append(parts, a)
	}
	return strings.Join(parts, " ")
}

// Result captures what a command produced.
type Result struct {
	ExitCode int
	Stdout   string
	Stderr   string
}

// Executor runs commands.
type Executor interface {
	Run(ctx context.Context, cmd Command) (*Result, error)
	// LookPath reports whether a program is available.
	LookPath(name string) bool
	DryRun() bool
}

// New returns a DryRunExecutor when dryRun is set, a ShellExecutor otherwise.
func New(dryRun bool) Executor {
	if dryRun {
		return NewDryRun()
	}
	return NewShell()
}

// ExitError is returned when a command ran but exited non-zero.
type ExitError struct {
	Command string
	Result  *Result
}

func (e *ExitError) Error() string {
	msg := strings.TrimSpace(e.Result.Stderr)
	if msg == "" {
		return fmt.Sprintf("%s exited with status %d", e.Command, e.Result.ExitCode)
	}
	return fmt.Sprintf("%s exited with status %d: %s", e.Command, e.Result.ExitCode, msg)
}

// ShellExecutor runs commands on the host.
type ShellExecutor struct {
	logger zerolog.Logger
	euid   int
}

// NewShell returns an executor that runs commands for real.
func NewShell() *ShellExecutor {
	return &ShellExecutor{
		logger: logging.GetLogger("executor"),
		euid:   os.Geteuid(),
	}
}

// Run executes cmd and waits for it. A non-zero exit is an *ExitError with
// the captured output attached.
func (e *ShellExecutor) Run(ctx context.Context, cmd Command) (*Result, error) {
	name, args := cmd.Name, cmd.Args
	if cmd.Sudo && e.euid != 0 {
		name, args = "sudo", append([]string{cmd.Name}, cmd.Args...)
	}

	e.logger.Info().
		Str("command", cmd.Name).
		Strs("args", cmd.Args).
		Bool("sudo", cmd.Sudo).
		Str("dir", cmd.Dir).
		Msg("Executing command")

	c := exec.CommandContext(ctx, name, args...)
	c.Dir = cmd.Dir
	c.Stdin = cmd.Stdin
	var stdout, stderr bytes.Buffer
	c.Stdout = &stdout
	c.Stderr = &stderr

	err := c.Run()
	result := &Result{Stdout: stdout.String(), Stderr: stderr.String()}
	if err == nil {
		e.logger.Debug().Str("command", cmd.Name).Msg("Command executed successfully")
		return result, nil
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		result.ExitCode = exitErr.ExitCode()
		e.logger.Error().
			Str("command", cmd.Name).
			Int("exit_code", result.ExitCode).
			Str("stderr", result.Stderr).
			Msg("Command execution failed")
		return result, &ExitError{Command: cmd.String(), Result: result}
	}
	return result, fmt.Errorf("running %s: %w", cmd.Name, err)
}

// LookPath reports whether name is on PATH.
func (e *ShellExecutor) LookPath(name string) bool {
	_, err := exec.LookPath(name)
	return err == nil
}

func (e *ShellExecutor) DryRun() bool { return false }

// DryRunExecutor records commands instead of running them.
type DryRunExecutor struct {
	logger zerolog.Logger

	mu       sync.Mutex
	commands []Command
	// Outputs maps a command name to canned stdout for read-only queries
	// such as ps or --version. Unmatched commands return empty output.
	outputs map[string]string
	paths   map[string]bool
}

// NewDryRun returns an executor that only logs.
func NewDryRun() *DryRunExecutor {
	return &DryRunExecutor{
		logger:  logging.GetLogger("executor"),
		outputs: map[string]string{},
		paths:   map[string]bool{},
	}
}

// Run records cmd and reports success.
func (e *DryRunExecutor) Run(ctx context.Context, cmd Command) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	e.mu.Lock()
	e.commands = append(e.commands, cmd)
	out := e.outputs[cmd.Name]
	e.mu.Unlock()

	e.logger.Info().Str("command", cmd.String()).Msg("Dry run mode - command would be executed")
	return &Result{Stdout: out}, nil
}

// LookPath answers from SetPath, defaulting to the host PATH.
func (e *DryRunExecutor) LookPath(name string) bool {
	e.mu.Lock()
	found, ok := e.paths[name]
	e.mu.Unlock()
	if ok {
		return found
	}
	_, err := exec.LookPath(name)
	return err == nil
}

func (e *DryRunExecutor) DryRun() bool { return true }

// SetOutput makes Run return stdout for every command called name.
func (e *DryRunExecutor) SetOutput(name, stdout string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.outputs[name] = stdout
}

// SetPath overrides LookPath for name.
func (e *DryRunExecutor) SetPath(name string, found bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.paths[name] = found
}

// Commands returns every command recorded so far.
func (e *DryRunExecutor) Commands() []Command {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]Command(nil), e.commands...)
}

// Transcript returns the recorded commands rendered as shell lines.
func (e *DryRunExecutor) Transcript() []string {
	cmds := e.Commands()
	lines := make([]string, len(cmds))
	for i, c := range cmds {
		lines[i] = c.String()
	}
	return lines
}
