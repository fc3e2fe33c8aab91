package command

import (
	"fmt"

	"github.com/spf13/cobra"

	ui5project "github.com/albertocavalcante/go-ui5project"
)

func newVersionsCommand(c *cli) *cobra.Command {
	var versionRange string
	cmd := &cobra.Command{
		Use:   "versions <OpenUI5|SAPUI5>",
		Short: "List the available framework versions",
		Long: `List the versions of OpenUI5 or SAPUI5 published in the configured registry.

With --range the specifier is resolved to a single version instead, e.g.
latest, 1.120 or ^1.120.0.`,
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"OpenUI5", "SAPUI5"},
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := c.logger(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			opts, err := c.frameworkOptions(cmd.Context())
			if err != nil {
				return err
			}
			opts = append(opts, ui5project.WithLogger(logger))

			w := cmd.OutOrStdout()
			if versionRange != "" {
				version, err := ui5project.ResolveFrameworkVersion(cmd.Context(), args[0], versionRange, opts...)
				if err != nil {
					return err
				}
				_, err = fmt.Fprintln(w, version)
				return err
			}

			versions, err := ui5project.FrameworkVersions(cmd.Context(), args[0], opts...)
			if err != nil {
				return err
			}
			for _, v := range versions {
				if _, err := fmt.Fprintln(w, v); err != nil {
					return err
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&versionRange, "range", "", "resolve a version specifier instead of listing all versions")
	return cmd
}
