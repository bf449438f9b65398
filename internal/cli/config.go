package cli

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/edkit-dev/edkit/internal/branding"
	"github.com/edkit-dev/edkit/internal/config"
	"github.com/spf13/cobra"
)

func init() {
	configCmd.Long = configHelp()
	configCmd.AddCommand(configSetCmd, configGetCmd, configListCmd)
	rootCmd.AddCommand(configCmd)
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show and change edkit settings",
}

func configHelp() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Settings live in %s and can be overridden with %s environment variables.\n\nKeys:\n",
		config.FilePath(), branding.EnvVar("<KEY>"))
	for _, k := range config.Keys {
		fmt.Fprintf(&b, "  %-20s %s\n", k.Key, k.Help)
	}
	return b.String()
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Persist a setting",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value := args[0], args[1]
		if err := config.Set(key, value); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s = %s\n", key, value)
		return nil
	},
}

var configGetCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Print the resolved value of a setting",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if !config.Known(args[0]) {
			return fmt.Errorf("unknown config key %q", args[0])
		}
		fmt.Fprintln(cmd.OutOrStdout(), config.Get(args[0]))
		return nil
	},
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "Print every setting with its resolved value",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		for _, k := range config.Keys {
			fmt.Fprintf(w, "%s\t%s\n", k.Key, config.Get(k.Key))
		}
		return w.Flush()
	},
}
