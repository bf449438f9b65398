package cli

import (
	"fmt"

	"github.com/edkit-dev/edkit/internal/pipeline"
	"github.com/edkit-dev/edkit/internal/preflight"
	"github.com/spf13/cobra"
)

var checkFix bool

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Run preflight checks",
	Long: `Check free disk space, access to the download service, writable cache
and settings directories, and the inotify watch limit on Linux.

With --fix, a low inotify limit is raised through a sysctl drop-in.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		sess, err := newSession()
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()

		report, err := preflight.Run(cmd.Context(), sess, out)
		if err != nil {
			return err
		}

		if checkFix {
			if res, ok := report.Find(preflight.CheckInotify); ok && res.Status == preflight.StatusWarn {
				watches := sess.Settings.MinInotifyWatches
				if err := preflight.FixInotify(cmd.Context(), sess, watches); err != nil {
					fmt.Fprintf(out, "  [FAIL] Could not raise inotify limit: %v\n", err)
				} else {
					fmt.Fprintf(out, "  [FIX ] Set fs.inotify.max_user_watches to %d\n", watches)
				}
			}
		}

		if report.Failed() {
			return pipeline.ErrPreflightFailed
		}
		return nil
	},
}

func init() {
	checkCmd.Flags().BoolVar(&checkFix, "fix", false, "Repair what can be repaired")
	rootCmd.AddCommand(checkCmd)
}
