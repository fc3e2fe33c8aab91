package command

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	ui5project "github.com/albertocavalcante/go-ui5project"
	"github.com/albertocavalcante/go-ui5project/graph"
)

// Output formats of the tree command.
const (
	formatText = "text"
	formatDOT  = "dot"
	formatJSON = "json"
)

type treeFlags struct {
	dir              string
	staticFile       string
	configPath       string
	frameworkVersion string
	noFramework      bool
	format           string
	why              string
	stats            bool
}

func newTreeCommand(c *cli) *cobra.Command {
	f := &treeFlags{}
	cmd := &cobra.Command{
		Use:   "tree",
		Short: "Print the project graph",
		Long: `Print the project graph of the project in the working directory.

By default the npm dependencies of the project are walked. Use --static-file
to read a static dependency definition instead.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runTree(cmd, c, f)
		},
	}
	cmd.Flags().StringVarP(&f.dir, "dir", "d", ".", "directory of the root project")
	cmd.Flags().StringVar(&f.staticFile, "static-file", "", "static dependency definition file to read instead of package.json")
	cmd.Flags().StringVar(&f.configPath, "config-path", "", "configuration file of the root project (default is ui5.yaml)")
	cmd.Flags().StringVar(&f.frameworkVersion, "framework-version", "", "override the framework version, e.g. latest or 1.120")
	cmd.Flags().BoolVar(&f.noFramework, "no-framework", false, "do not add framework libraries to the graph")
	cmd.Flags().StringVarP(&f.format, "format", "f", formatText, "output format: text, dot or json")
	cmd.Flags().StringVar(&f.why, "why", "", "explain why the named project is part of the graph")
	cmd.Flags().BoolVar(&f.stats, "stats", false, "print graph statistics as JSON")
	return cmd
}

func runTree(cmd *cobra.Command, c *cli, f *treeFlags) error {
	switch f.format {
	case formatText, formatDOT, formatJSON:
	default:
		return fmt.Errorf("unknown format %q, must be one of: text, dot, json", f.format)
	}

	logger, err := c.logger(cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	opts := []ui5project.Option{
		ui5project.WithLogger(logger),
		ui5project.WithCwd(f.dir),
		ui5project.WithRootConfigPath(f.configPath),
	}
	if f.noFramework {
		opts = append(opts, ui5project.WithoutFrameworkResolution())
	} else {
		frameworkOpts, err := c.frameworkOptions(cmd.Context())
		if err != nil {
			return err
		}
		opts = append(opts, frameworkOpts...)
		opts = append(opts, ui5project.WithVersionOverride(f.frameworkVersion))
	}

	var g *graph.ProjectGraph
	if f.staticFile != "" {
		g, err = ui5project.GraphFromStaticFile(cmd.Context(), f.staticFile, opts...)
	} else {
		g, err = ui5project.GraphFromPackageDependencies(cmd.Context(), opts...)
	}
	if err != nil {
		return err
	}
	g.Seal()
	return printGraph(cmd.OutOrStdout(), g, f)
}

func printGraph(w io.Writer, g *graph.ProjectGraph, f *treeFlags) error {
	if f.why != "" {
		text, err := g.ToExplainText(f.why)
		if err != nil {
			return err
		}
		_, err = fmt.Fprint(w, text)
		return err
	}
	if f.stats {
		data, err := json.MarshalIndent(g.Stats(), "", "  ")
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(w, string(data))
		return err
	}

	switch f.format {
	case formatDOT:
		_, err := fmt.Fprint(w, g.ToDOT())
		return err
	case formatJSON:
		data, err := g.ToJSON()
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(w, string(data))
		return err
	default:
		_, err := fmt.Fprint(w, g.ToText())
		return err
	}
}
