package cli

import (
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/edkit-dev/edkit/internal/editorversion"
	"github.com/edkit-dev/edkit/internal/fetch"
	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the cached artifact and whether a download is needed",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		sess, err := newSession()
		if err != nil {
			return err
		}
		req := sess.Request(false)

		local, err := fetch.Stat(req.Path)
		if err != nil {
			return err
		}
		known, err := fetch.LoadSidecar(req.Path)
		if err != nil {
			sess.Log.Warn().Err(err).Msg("Ignoring unreadable sidecar")
			known = nil
		}
		if known != nil && known.URL != req.URL {
			known = nil
		}

		f := sess.Fetcher()
		var decision fetch.Decision
		if known != nil {
			decision, err = f.Decide(cmd.Context(), local, known, false)
		} else {
			decision, err = f.Plan(cmd.Context(), req.URL, req.Path, false)
		}
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintf(w, "Platform:\t%s (%s)\n", sess.Platform.Token, sess.Platform.Kind)
		fmt.Fprintf(w, "Variant:\t%s\n", sess.Variant)
		fmt.Fprintf(w, "URL:\t%s\n", req.URL)
		fmt.Fprintf(w, "Artifact:\t%s\n", req.Path)
		if local.Exists {
			fmt.Fprintf(w, "Size on disk:\t%d\n", local.SizeOnDisk)
		} else {
			fmt.Fprintf(w, "Size on disk:\t(not cached)\n")
		}
		if known != nil {
			fmt.Fprintf(w, "Expected size:\t%d\n", known.ContentLength)
			fmt.Fprintf(w, "Last-Modified:\t%s\n", known.LastModified)
			fmt.Fprintf(w, "Recorded:\t%s\n", known.FetchedAt.Local().Format("2006-01-02 15:04:05"))
		}
		fmt.Fprintf(w, "Needs download:\t%t (%s)\n", decision.Needed, decision.Reason)

		version, err := editorversion.Installed(cmd.Context(), sess.Exec, sess.Variant)
		switch {
		case errors.Is(err, editorversion.ErrNotInstalled):
			fmt.Fprintf(w, "Installed:\tno\n")
		case err != nil:
			fmt.Fprintf(w, "Installed:\tunknown (%v)\n", err)
		default:
			fmt.Fprintf(w, "Installed:\t%s\n", version)
			if pin := sess.Settings.MinVersion; pin != "" {
				ok, err := editorversion.UpToDate(version, pin)
				if err != nil {
					return err
				}
				fmt.Fprintf(w, "Meets %s:\t%t\n", pin, ok)
			}
		}
		return w.Flush()
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
