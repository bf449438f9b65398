package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/edkit-dev/edkit/internal/branding"
	"github.com/edkit-dev/edkit/internal/config"
	"github.com/edkit-dev/edkit/internal/fetch"
	"github.com/edkit-dev/edkit/internal/logging"
	"github.com/edkit-dev/edkit/internal/pipeline"
	"github.com/edkit-dev/edkit/internal/session"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	buildVersion string
	buildCommit  string
	buildDate    string

	verbosity  int
	dryRun     bool
	configPath string
)

var rootCmd = &cobra.Command{
	Use:   branding.CLIName(),
	Short: branding.Description(),
	Long: branding.DisplayName() + ` downloads, installs and tunes the code editor on this machine.

The installer artifact is cached, resumed after interruptions and verified
before it is handed to the platform's package manager.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logging.SetupLogger(verbosity)
		_ = viper.BindPFlag(config.KeyVariant, cmd.Flags().Lookup("variant"))
		if configPath != "" {
			config.LoadFile(configPath)
		} else {
			config.Load()
		}
	},
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.CountVarP(&verbosity, "verbose", "v", "Increase log verbosity (-v info, -vv debug, -vvv trace)")
	flags.BoolVar(&dryRun, "dry-run", false, "Show what would be done without changing the system")
	flags.String("variant", "", "Editor variant: stable or insiders")
	flags.StringVar(&configPath, "config", "", "Config file (default ~/"+branding.HomeDir()+"/config.yaml)")
}

// Execute runs the root command with build info injected via ldflags.
// SIGINT and SIGTERM cancel the running command; a partial download stays
// in the cache and is resumed next time.
func Execute(version, commit, date string) error {
	buildVersion = version
	buildCommit = commit
	buildDate = date

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}

// Exit codes for typed failures. Anything else exits 1.
const (
	ExitFailure        = 1
	ExitProbeFailed    = 3
	ExitNetwork        = 4
	ExitSizeMismatch   = 5
	ExitWrongType      = 6
	ExitPreflight      = 7
	ExitLocked         = 8
	ExitChecksumFailed = 9
)

// ExitCode maps an error returned by Execute to a process exit status.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, fetch.ErrProbeFailed):
		return ExitProbeFailed
	case errors.Is(err, fetch.ErrWrongType):
		return ExitWrongType
	case errors.Is(err, fetch.ErrChecksumMismatch):
		return ExitChecksumFailed
	case errors.Is(err, fetch.ErrSizeMismatch):
		return ExitSizeMismatch
	case errors.Is(err, fetch.ErrNetwork):
		return ExitNetwork
	case errors.Is(err, fetch.ErrLocked):
		return ExitLocked
	case errors.Is(err, pipeline.ErrPreflightFailed):
		return ExitPreflight
	default:
		return ExitFailure
	}
}

// newSession builds the session every command works on. The download
// progress line is only drawn when stderr is a terminal.
func newSession() (*session.Session, error) {
	opts := []session.Option{session.WithUserAgent(branding.CLIName() + "/" + buildVersion)}
	if isatty.IsTerminal(os.Stderr.Fd()) || isatty.IsCygwinTerminal(os.Stderr.Fd()) {
		opts = append(opts, session.WithProgress(os.Stderr))
	}
	sess, err := session.New(config.Current(), dryRun, opts...)
	if err != nil {
		return nil, fmt.Errorf("starting session: %w", err)
	}
	return sess, nil
}
