// Package pipeline runs the full install: preflight, fetch, close the
// editor, back up, install, tune settings.
package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/edkit-dev/edkit/internal/backup"
	"github.com/edkit-dev/edkit/internal/editorversion"
	"github.com/edkit-dev/edkit/internal/fetch"
	"github.com/edkit-dev/edkit/internal/installer"
	"github.com/edkit-dev/edkit/internal/logging"
	"github.com/edkit-dev/edkit/internal/preflight"
	"github.com/edkit-dev/edkit/internal/process"
	"github.com/edkit-dev/edkit/internal/session"
	"github.com/edkit-dev/edkit/internal/settings"
)

// ErrPreflightFailed is returned when a preflight check fails.
var ErrPreflightFailed = errors.New("preflight checks failed")

// Options selects pipeline steps.
type Options struct {
	Force         bool
	SkipPreflight bool
	SkipSettings  bool
	KeepRunning   bool
	// Profile is merged into settings.json; nil means the built-in default.
	Profile *settings.Profile
}

// Summary describes what a run did, or would do in a dry run.
type Summary struct {
	SessionID    string
	Preflight    *preflight.Report
	Reason       fetch.Reason
	ArtifactPath string
	Downloaded   bool
	BackupPath   string
	SettingsDiff *settings.Diff
	Version      string
}

// Run executes the pipeline for sess.
func Run(ctx context.Context, sess *session.Session, opts Options) (*Summary, error) {
	done := logging.LogOperationStart(sess.Log, "install")
	defer done()

	sum := &Summary{SessionID: sess.ID}

	if !opts.SkipPreflight {
		report, err := preflight.Run(ctx, sess, sess.Out)
		if err != nil {
			return sum, err
		}
		sum.Preflight = report
		if report.Failed() {
			return sum, ErrPreflightFailed
		}
	}

	if err := acquire(ctx, sess, opts, sum); err != nil {
		return sum, err
	}

	if !opts.KeepRunning {
		fmt.Fprintln(sess.Out, "Closing running editor windows...")
		if err := process.Close(ctx, sess.Exec, sess.Variant.ProcessNames(), sess.Settings.CloseGrace); err != nil {
			return sum, fmt.Errorf("closing editor: %w", err)
		}
	}

	userDir, err := settings.UserDir(sess.Platform, sess.Variant)
	if err != nil {
		return sum, err
	}
	if _, err := backup.Create(sess, userDir, sess.Settings.BackupDir); err != nil {
		if !errors.Is(err, backup.ErrNothingToBackUp) {
			return sum, fmt.Errorf("backing up editor configuration: %w", err)
		}
		sess.Log.Info().Str("dir", userDir).Msg("No existing editor configuration, skipping backup")
	}
	sum.BackupPath = sess.BackupPath

	fmt.Fprintf(sess.Out, "Installing %s...\n", sum.ArtifactPath)
	if err := installer.Dispatch(sess.Platform.Kind).Install(ctx, sess, sum.ArtifactPath); err != nil {
		return sum, err
	}

	if !opts.SkipSettings {
		profile := opts.Profile
		if profile == nil {
			profile = settings.Default()
		}
		path, err := settings.UserSettingsPath(sess.Platform, sess.Variant)
		if err != nil {
			return sum, err
		}
		diff, err := settings.Merge(path, profile, sess.DryRun)
		if err != nil {
			return sum, fmt.Errorf("applying profile %s: %w", profile.Name, err)
		}
		sum.SettingsDiff = diff
	}

	version, err := editorversion.Installed(ctx, sess.Exec, sess.Variant)
	if err != nil {
		sess.Log.Debug().Err(err).Msg("Could not read installed version")
	}
	sum.Version = version
	return sum, nil
}

// acquire fetches and verifies the artifact. A dry run only probes and
// reports what the fetch would do.
func acquire(ctx context.Context, sess *session.Session, opts Options, sum *Summary) error {
	req := sess.Request(opts.Force)
	sum.ArtifactPath = req.Path
	f := sess.Fetcher()

	if sess.DryRun {
		decision, err := f.Plan(ctx, req.URL, req.Path, opts.Force)
		if err != nil {
			return err
		}
		sum.Reason = decision.Reason
		fmt.Fprintf(sess.Out, "Would fetch %s (%s)\n", req.URL, decision.Reason)
		return nil
	}

	fmt.Fprintf(sess.Out, "Fetching %s...\n", req.URL)
	result, err := f.Acquire(ctx, req)
	if err != nil {
		return err
	}
	sess.Artifact = result
	sum.Reason = result.Reason
	sum.Downloaded = result.Downloaded
	return nil
}
