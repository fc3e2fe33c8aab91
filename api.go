// Package ui5project creates the dependency graph of UI5 projects.
//
// A graph is created from a dependency tree: the npm dependencies of a
// project on disk, a static dependency definition file or a tree of nodes
// built in code. Every node that carries a UI5 configuration (ui5.yaml or
// inline) becomes a project or extension of the graph.
//
// # Overview
//
// The package wires three components together:
//
//   - provider: supplies the dependency tree (NodeProvider)
//   - builder: turns the tree into a graph.ProjectGraph
//   - framework: installs the OpenUI5 or SAPUI5 libraries referenced by the
//     projects and adds them to the graph
//
// # Quick Start
//
//	// From the npm dependencies of the project in the working directory
//	g, err := ui5project.GraphFromPackageDependencies(ctx)
//
//	// From a static dependency definition
//	g, err := ui5project.GraphFromStaticFile(ctx, "projectDependencies.yaml")
//
//	// Without installing framework libraries
//	g, err := ui5project.GraphFromPackageDependencies(ctx, ui5project.WithoutFrameworkResolution())
//
// # Framework Resolution
//
// The root project's framework configuration selects OpenUI5 or SAPUI5 and
// its version. Packages are downloaded from the npm registry into the UI5
// data directory, which defaults to ~/.ui5:
//
//	g, err := ui5project.GraphFromPackageDependencies(ctx,
//	    ui5project.WithVersionOverride("latest"),
//	    ui5project.WithUI5DataDir("/var/cache/ui5"),
//	)
//
// # Thread Safety
//
// All public types in this package are safe for concurrent use.
package ui5project

import (
	"context"
	"errors"
	"os"
	"path/filepath"

	"github.com/albertocavalcante/go-ui5project/builder"
	"github.com/albertocavalcante/go-ui5project/framework"
	"github.com/albertocavalcante/go-ui5project/framework/npm"
	"github.com/albertocavalcante/go-ui5project/graph"
	"github.com/albertocavalcante/go-ui5project/internal/config"
	"github.com/albertocavalcante/go-ui5project/provider"
)

// GraphFromPackageDependencies creates the graph of the project in the
// configured directory by walking its npm dependencies.
func GraphFromPackageDependencies(ctx context.Context, opts ...Option) (*graph.ProjectGraph, error) {
	o, err := newOptions(opts...)
	if err != nil {
		return nil, err
	}
	cwd, err := o.workingDir()
	if err != nil {
		return nil, err
	}
	p, err := provider.NewNodePackageDependencies(provider.NodePackageOptions{
		Cwd:               cwd,
		RootConfigPath:    o.rootConfigPath,
		RootConfiguration: o.rootConfiguration,
		Logger:            o.log(),
	})
	if err != nil {
		return nil, err
	}
	return o.build(ctx, p)
}

// GraphFromStaticFile creates a graph from a static dependency definition
// in YAML or JSON. An empty path selects projectDependencies.yaml in the
// configured directory.
func GraphFromStaticFile(ctx context.Context, path string, opts ...Option) (*graph.ProjectGraph, error) {
	o, err := newOptions(opts...)
	if err != nil {
		return nil, err
	}
	cwd, err := o.workingDir()
	if err != nil {
		return nil, err
	}
	if path == "" {
		path = provider.DefaultStaticFile
	}
	if !filepath.IsAbs(path) {
		path = filepath.Join(cwd, path)
	}
	tree, err := provider.LoadDependencyTree(path)
	if err != nil {
		return nil, err
	}
	root, err := tree.RootNode(ctx)
	if err != nil {
		return nil, err
	}
	o.applyRootOverrides(root)
	return o.build(ctx, tree)
}

// GraphFromObject creates a graph from a dependency tree built in code.
// The tree is not modified.
func GraphFromObject(ctx context.Context, root *provider.Node, opts ...Option) (*graph.ProjectGraph, error) {
	o, err := newOptions(opts...)
	if err != nil {
		return nil, err
	}
	if root == nil {
		return nil, errors.New("failed to create graph: missing root node")
	}
	r := *root
	o.applyRootOverrides(&r)
	tree, err := provider.NewDependencyTree(&r)
	if err != nil {
		return nil, err
	}
	return o.build(ctx, tree)
}

// EnrichProjectGraph installs the framework libraries referenced by the
// projects of g and adds them to it.
func EnrichProjectGraph(ctx context.Context, g *graph.ProjectGraph, opts ...Option) error {
	o, err := newOptions(opts...)
	if err != nil {
		return err
	}
	return o.enrich(ctx, g)
}

// FrameworkVersions lists the versions of OpenUI5 or SAPUI5 available in
// the registry, in ascending order.
func FrameworkVersions(ctx context.Context, frameworkName string, opts ...Option) ([]string, error) {
	o, err := newOptions(opts...)
	if err != nil {
		return nil, err
	}
	installer, _, err := o.frameworkInstaller(ctx)
	if err != nil {
		return nil, err
	}
	return framework.AvailableVersions(ctx, installer, frameworkName)
}

// ResolveFrameworkVersion resolves a version specifier like "latest",
// "1.120" or "^1.120.0" to a version of OpenUI5 or SAPUI5.
func ResolveFrameworkVersion(ctx context.Context, frameworkName, spec string, opts ...Option) (string, error) {
	o, err := newOptions(opts...)
	if err != nil {
		return "", err
	}
	installer, concurrency, err := o.frameworkInstaller(ctx)
	if err != nil {
		return "", err
	}
	r, err := framework.NewResolver(frameworkName, framework.ResolverOptions{
		Installer:   installer,
		Logger:      o.log(),
		Concurrency: concurrency,
	})
	if err != nil {
		return "", err
	}
	return r.ResolveVersion(ctx, spec)
}

func (o *options) workingDir() (string, error) {
	if o.cwd != "" {
		return filepath.Abs(o.cwd)
	}
	return os.Getwd()
}

func (o *options) applyRootOverrides(root *provider.Node) {
	if o.rootConfigPath != "" {
		root.ConfigPath = o.rootConfigPath
	}
	if len(o.rootConfiguration) > 0 {
		root.Configuration = o.rootConfiguration
	}
}

func (o *options) build(ctx context.Context, p provider.NodeProvider) (*graph.ProjectGraph, error) {
	g, err := builder.Build(ctx, p, builder.WithLogger(o.log()), builder.WithConcurrency(o.concurrency))
	if err != nil {
		return nil, err
	}
	if !o.resolveFramework {
		return g, nil
	}
	if err := o.enrich(ctx, g); err != nil {
		return nil, err
	}
	return g, nil
}

func (o *options) enrich(ctx context.Context, g *graph.ProjectGraph) error {
	installer, concurrency, err := o.frameworkInstaller(ctx)
	if err != nil {
		return err
	}
	return framework.Enrich(ctx, g, framework.Options{
		VersionOverride: o.versionOverride,
		Installer:       installer,
		Logger:          o.log(),
		Concurrency:     concurrency,
	})
}

// frameworkInstaller returns the installer for framework packages and the
// concurrency to resolve them with.
func (o *options) frameworkInstaller(ctx context.Context) (framework.Installer, int, error) {
	if o.installer != nil {
		return o.installer, o.concurrency, nil
	}
	cfg, err := o.settings(ctx)
	if err != nil {
		return nil, 0, err
	}
	concurrency := o.concurrency
	if concurrency == 0 {
		concurrency = cfg.Concurrency
	}
	installer, err := o.newInstaller(cfg)
	if err != nil {
		return nil, 0, err
	}
	return installer, concurrency, nil
}

// settings returns the user configuration with explicit options applied.
func (o *options) settings(ctx context.Context) (*config.Config, error) {
	var cfg *config.Config
	if o.ui5DataDir != "" && o.registry != "" {
		cfg = &config.Config{Concurrency: config.DefaultConcurrency, Timeout: config.DefaultTimeout}
	} else {
		cwd, err := o.workingDir()
		if err != nil {
			return nil, err
		}
		if cfg, err = config.Load(ctx, config.LoadOptions{Cwd: cwd}); err != nil {
			return nil, err
		}
	}
	if o.ui5DataDir != "" {
		cfg.UI5DataDir = o.ui5DataDir
	}
	if o.registry != "" {
		cfg.Registry = o.registry
	}
	if o.timeout > 0 {
		cfg.Timeout = o.timeout
	}
	return cfg, nil
}

func (o *options) newInstaller(cfg *config.Config) (*npm.Installer, error) {
	registry := npm.NewRegistry(cfg.Registry,
		npm.WithTimeout(cfg.Timeout),
		npm.WithHTTPClient(o.httpClient),
		npm.WithCache(o.cache),
		npm.WithLogger(o.log()),
		npm.WithMetrics(o.metrics),
	)
	return npm.NewInstaller(npm.InstallerOptions{
		DataDir:  cfg.UI5DataDir,
		Registry: registry,
		Logger:   o.log(),
		Metrics:  o.metrics,
	})
}
