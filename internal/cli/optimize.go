package cli

import (
	"fmt"
	"io"

	"github.com/edkit-dev/edkit/internal/settings"
	"github.com/spf13/cobra"
	"go.yaml.in/yaml/v3"
)

var (
	optimizeProfile string
	optimizeShow    bool
)

var optimizeCmd = &cobra.Command{
	Use:   "optimize",
	Short: "Apply a settings profile to settings.json",
	Long: `Merge a settings profile into the editor's settings.json. Keys named by
the profile are replaced, everything else is kept. Without --profile the
configured profile, or the built-in "performance" profile, is used.

  edkit optimize --show             # print the profile
  edkit optimize --dry-run          # show what would change
  edkit optimize --profile team.yaml`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		sess, err := newSession()
		if err != nil {
			return err
		}
		ref := optimizeProfile
		if ref == "" {
			ref = sess.Settings.Profile
		}
		profile, err := settings.LoadProfile(ref)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if optimizeShow {
			enc := yaml.NewEncoder(out)
			enc.SetIndent(2)
			if err := enc.Encode(profile); err != nil {
				return fmt.Errorf("printing profile: %w", err)
			}
			return enc.Close()
		}

		path, err := settings.UserSettingsPath(sess.Platform, sess.Variant)
		if err != nil {
			return err
		}
		diff, err := settings.Merge(path, profile, sess.DryRun)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Profile %s -> %s\n", profile.Name, path)
		printDiff(out, diff)
		return nil
	},
}

func init() {
	optimizeCmd.Flags().StringVar(&optimizeProfile, "profile", "", "Profile name or YAML file")
	optimizeCmd.Flags().BoolVar(&optimizeShow, "show", false, "Print the profile and exit")
	rootCmd.AddCommand(optimizeCmd)
}

func printDiff(w io.Writer, diff *settings.Diff) {
	if diff.Empty() {
		fmt.Fprintln(w, "Settings already up to date.")
		return
	}
	for _, k := range diff.Added {
		fmt.Fprintf(w, "  + %s\n", k)
	}
	for _, k := range diff.Changed {
		fmt.Fprintf(w, "  ~ %s\n", k)
	}
	for _, k := range diff.Removed {
		fmt.Fprintf(w, "  - %s\n", k)
	}
}
