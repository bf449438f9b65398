package cli

import (
	"errors"
	"fmt"

	"github.com/edkit-dev/edkit/internal/pipeline"
	"github.com/edkit-dev/edkit/internal/settings"
	"github.com/spf13/cobra"
)

var (
	installForce         bool
	installSkipPreflight bool
	installSkipSettings  bool
	installKeepRunning   bool
	installProfile       string
)

var installCmd = &cobra.Command{
	Use:   "install",
	Short: "Download, verify and install the editor",
	Long: `Run the full install: preflight checks, fetch and verify the installer
artifact, close running editor windows, back up the user configuration,
install, and apply the settings profile.

  edkit install                     # stable build
  edkit install --variant insiders  # Insiders build
  edkit install --dry-run -v        # show every step without changing anything`,
	Args: cobra.NoArgs,
	RunE: runInstall,
}

func init() {
	installCmd.Flags().BoolVar(&installForce, "force", false, "Discard the cached artifact and download again")
	installCmd.Flags().BoolVar(&installSkipPreflight, "skip-preflight", false, "Do not run preflight checks")
	installCmd.Flags().BoolVar(&installSkipSettings, "skip-settings", false, "Do not touch settings.json")
	installCmd.Flags().BoolVar(&installKeepRunning, "keep-running", false, "Do not close running editor windows")
	installCmd.Flags().StringVar(&installProfile, "profile", "", "Settings profile name or YAML file (default from config)")
	rootCmd.AddCommand(installCmd)
}

func runInstall(cmd *cobra.Command, args []string) error {
	sess, err := newSession()
	if err != nil {
		return err
	}

	opts := pipeline.Options{
		Force:         installForce,
		SkipPreflight: installSkipPreflight,
		SkipSettings:  installSkipSettings,
		KeepRunning:   installKeepRunning,
	}
	if !installSkipSettings {
		ref := installProfile
		if ref == "" {
			ref = sess.Settings.Profile
		}
		opts.Profile, err = settings.LoadProfile(ref)
		if err != nil {
			return err
		}
	}

	sum, err := pipeline.Run(cmd.Context(), sess, opts)
	if errors.Is(err, pipeline.ErrPreflightFailed) {
		return fmt.Errorf("%w (rerun with --skip-preflight to ignore)", err)
	}
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if sess.DryRun {
		fmt.Fprintln(out, "Dry run complete, nothing was changed.")
	}
	if sum.BackupPath != "" {
		fmt.Fprintf(out, "Backup:    %s\n", sum.BackupPath)
	}
	fmt.Fprintf(out, "Artifact:  %s (%s)\n", sum.ArtifactPath, sum.Reason)
	if sum.SettingsDiff != nil {
		printDiff(out, sum.SettingsDiff)
	}
	if sum.Version != "" {
		fmt.Fprintf(out, "Installed %s %s\n", sess.Variant.Binary(), sum.Version)
	}
	return nil
}
