package cli

import (
	"fmt"
	"path/filepath"
	"text/tabwriter"

	"github.com/edkit-dev/edkit/internal/backup"
	"github.com/edkit-dev/edkit/internal/settings"
	"github.com/spf13/cobra"
)

func init() {
	backupCmd.AddCommand(backupCreateCmd)
	backupCmd.AddCommand(backupListCmd)
	backupCmd.AddCommand(backupRestoreCmd)
	rootCmd.AddCommand(backupCmd)
}

var backupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Back up and restore the editor user configuration",
	Long: `Snapshots hold settings.json, keybindings.json and snippets/ from the
editor's User directory. install takes one automatically.`,
}

var backupCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Snapshot the editor configuration",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		sess, err := newSession()
		if err != nil {
			return err
		}
		src, err := settings.UserDir(sess.Platform, sess.Variant)
		if err != nil {
			return err
		}
		path, err := backup.Create(sess, src, sess.Settings.BackupDir)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), path)
		return nil
	},
}

var backupListCmd = &cobra.Command{
	Use:   "list",
	Short: "List snapshots, oldest first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		sess, err := newSession()
		if err != nil {
			return err
		}
		backups, err := backup.List(sess.Settings.BackupDir)
		if err != nil {
			return err
		}
		if len(backups) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No backups yet.")
			return nil
		}
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "NAME\tCREATED\tPATH")
		for _, b := range backups {
			fmt.Fprintf(w, "%s\t%s\t%s\n", b.Name, b.Created.Format("2006-01-02 15:04:05"), b.Path)
		}
		return w.Flush()
	},
}

var backupRestoreCmd = &cobra.Command{
	Use:   "restore [name]",
	Short: "Restore a snapshot (default: the latest)",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		sess, err := newSession()
		if err != nil {
			return err
		}
		root := sess.Settings.BackupDir

		var path string
		if len(args) == 1 {
			path = filepath.Join(root, args[0])
		} else {
			latest, err := backup.Latest(root)
			if err != nil {
				return err
			}
			if latest == nil {
				return fmt.Errorf("no backups in %s", root)
			}
			path = latest.Path
		}

		dest, err := settings.UserDir(sess.Platform, sess.Variant)
		if err != nil {
			return err
		}
		if sess.DryRun {
			fmt.Fprintf(cmd.OutOrStdout(), "Would restore %s into %s\n", path, dest)
			return nil
		}
		if err := backup.Restore(path, dest); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Restored %s into %s\n", path, dest)
		return nil
	},
}
