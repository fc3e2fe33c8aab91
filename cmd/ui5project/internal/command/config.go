package command

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/albertocavalcante/go-ui5project/internal/config"
)

func newConfigCommand(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Read and write the ui5project configuration",
		Long: `Read and write settings in the configuration file ($HOME/.ui5rc).

Environment variables (UI5_DATA_DIR, UI5_REGISTRY, UI5_CONCURRENCY and
UI5_TIMEOUT) take precedence over the file.`,
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "Print all settings",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				cfg, err := c.loadConfig(cmd.Context())
				if err != nil {
					return err
				}
				for _, key := range config.Keys() {
					value, err := cfg.Get(key)
					if err != nil {
						return err
					}
					if _, err := fmt.Fprintf(cmd.OutOrStdout(), "%s = %s\n", key, value); err != nil {
						return err
					}
				}
				return nil
			},
		},
		&cobra.Command{
			Use:   "get <key>",
			Short: "Print a setting",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				cfg, err := c.loadConfig(cmd.Context())
				if err != nil {
					return err
				}
				value, err := cfg.Get(args[0])
				if err != nil {
					return err
				}
				_, err = fmt.Fprintln(cmd.OutOrStdout(), value)
				return err
			},
		},
		&cobra.Command{
			Use:   "set <key> [value]",
			Short: "Write a setting, or remove it when no value is given",
			Args:  cobra.RangeArgs(1, 2),
			RunE: func(cmd *cobra.Command, args []string) error {
				var value string
				if len(args) == 2 {
					value = args[1]
				}
				if err := config.Set(config.LoadOptions{ConfigFile: c.configFile}, args[0], value); err != nil {
					return err
				}
				if value == "" {
					_, err := fmt.Fprintf(cmd.OutOrStdout(), "Removed %s\n", args[0])
					return err
				}
				_, err := fmt.Fprintf(cmd.OutOrStdout(), "Set %s to %s\n", args[0], value)
				return err
			},
		},
	)
	return cmd
}
