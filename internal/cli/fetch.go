package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var fetchForce bool

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Download and verify the installer artifact without installing",
	Long: `Download the installer artifact for this platform into the cache,
resuming a partial download when possible, and verify it. The path of the
verified artifact is printed on stdout.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		sess, err := newSession()
		if err != nil {
			return err
		}
		req := sess.Request(fetchForce)
		f := sess.Fetcher()

		if sess.DryRun {
			decision, err := f.Plan(cmd.Context(), req.URL, req.Path, fetchForce)
			if err != nil {
				return err
			}
			fmt.Fprintf(sess.Out, "Would fetch %s: %s\n", req.URL, decision.Reason)
			fmt.Fprintln(cmd.OutOrStdout(), req.Path)
			return nil
		}

		fmt.Fprintf(sess.Out, "Fetching %s...\n", req.URL)
		result, err := f.Acquire(cmd.Context(), req)
		if err != nil {
			return err
		}
		if !result.Downloaded {
			fmt.Fprintln(sess.Out, "Cached artifact is current.")
		}
		fmt.Fprintln(cmd.OutOrStdout(), result.Artifact.Path)
		return nil
	},
}

func init() {
	fetchCmd.Flags().BoolVar(&fetchForce, "force", false, "Discard the cached artifact and download again")
	rootCmd.AddCommand(fetchCmd)
}
