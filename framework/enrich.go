package framework

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/albertocavalcante/go-ui5project/framework/npm"
	"github.com/albertocavalcante/go-ui5project/graph"
	"github.com/albertocavalcante/go-ui5project/specification"
)

// testsuiteProject never gets advisory warnings for its framework
// dependencies.
const testsuiteProject = "testsuite"

// Options configures Enrich.
type Options struct {
	// VersionOverride replaces the framework version of the root project.
	// It may be a version specifier like "latest" or "1.120".
	VersionOverride string

	// Installer provides the framework packages. If nil, an npm installer
	// using UI5DataDir and the public registry is created.
	Installer Installer

	// UI5DataDir is the data directory of the default installer.
	UI5DataDir string

	Logger      *slog.Logger
	Concurrency int

	// ResolverFactory defaults to NewResolver.
	ResolverFactory ResolverFactory
}

// Enrich installs the framework libraries referenced in g and adds them to
// it. The root project selects the framework and its version.
func Enrich(ctx context.Context, g *graph.ProjectGraph, opts Options) error {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	root, err := g.Root()
	if err != nil {
		return err
	}
	name, configuredVersion := root.FrameworkName(), root.FrameworkVersion()
	version := configuredVersion
	if opts.VersionOverride != "" {
		version = opts.VersionOverride
	}

	if root.IsFrameworkProject() && version == "" {
		// Optional and development dependencies of a framework root are not
		// required to be part of the graph.
		for _, dep := range root.FrameworkDependencies() {
			if ShouldIncludeDependency(dep, false) && !g.HasProject(dep.Name) {
				return fmt.Errorf("missing framework dependency %s for framework project %s", dep.Name, root.Name())
			}
		}
		logger.Debug(fmt.Sprintf("Root project %s is a framework project and all its framework dependencies are part of the graph", root.Name()))
		return nil
	}

	if name == "" && configuredVersion == "" {
		logger.Debug(fmt.Sprintf("Root project %s has no framework configuration. Nothing to do here", root.Name()))
		return nil
	}
	if name != specification.FrameworkOpenUI5 && name != specification.FrameworkSAPUI5 {
		return &ConfigurationError{
			Project: root.Name(),
			Reason:  fmt.Sprintf(`unknown framework.name %q, must be "OpenUI5" or "SAPUI5"`, name),
		}
	}

	libraries, err := LibrariesFromGraph(ctx, g)
	if err != nil {
		return err
	}
	if len(libraries) == 0 {
		logger.Debug(fmt.Sprintf("No %s libraries referenced in project %s or in any of its dependencies", name, root.Name()))
		return nil
	}

	installer := opts.Installer
	if installer == nil {
		if opts.UI5DataDir == "" {
			return errors.New("failed to resolve framework libraries: missing installer and UI5 data directory")
		}
		installer, err = npm.NewInstaller(npm.InstallerOptions{DataDir: opts.UI5DataDir, Logger: logger})
		if err != nil {
			return err
		}
	}
	factory := opts.ResolverFactory
	if factory == nil {
		factory = NewResolver
	}
	resolverOpts := ResolverOptions{Installer: installer, Logger: logger, Concurrency: opts.Concurrency}

	if opts.VersionOverride != "" {
		resolver, err := factory(name, resolverOpts)
		if err != nil {
			return err
		}
		version, err = resolver.ResolveVersion(ctx, opts.VersionOverride)
		if err != nil {
			return err
		}
		logger.Info(fmt.Sprintf("Overriding configured %s version %s with version %s", name, configuredVersion, version))
	}
	if version == "" {
		return fmt.Errorf("no %s version defined for root project %s: %w", name, root.Name(), ErrMissingVersion)
	}
	logger.Info(fmt.Sprintf("Using %s version: %s", name, version))

	resolverOpts.Version = version
	resolver, err := factory(name, resolverOpts)
	if err != nil {
		return err
	}

	start := time.Now()
	result, err := resolver.Install(ctx, libraries)
	if err != nil {
		return err
	}
	logger.Debug(fmt.Sprintf("%s dependencies installed in %s", name, time.Since(start).Round(time.Millisecond)))

	frameworkGraph, err := graph.New(fmt.Sprintf("fake-root-of-%s-framework-dependency-graph", root.Name()), graph.WithLogger(logger))
	if err != nil {
		return err
	}
	processor := NewProjectProcessor(result.LibraryMetadata, frameworkGraph, logger)
	if err := processor.AddProjectToGraph(ctx, libraries...); err != nil {
		return err
	}

	var duplicates []string
	for _, p := range frameworkGraph.Projects() {
		if g.HasProject(p.Name()) {
			duplicates = append(duplicates, p.Name())
		}
	}
	if len(duplicates) > 0 {
		return fmt.Errorf("duplicate framework library definition(s) found in project %s: %s. "+
			"Framework libraries should only be referenced via ui5.yaml configuration. "+
			"Neither the root project, nor any of its dependencies should include them as direct dependencies (e.g. via package.json)",
			root.Name(), strings.Join(duplicates, ", "))
	}

	logger.Debug("Joining framework graph into project graph")
	if err := g.Join(frameworkGraph); err != nil {
		return err
	}
	return DeclareFrameworkDependencies(ctx, g, logger)
}

// ShouldIncludeDependency reports whether a framework dependency is
// resolved. The root project includes all of its dependencies, other
// projects skip optional and development ones.
func ShouldIncludeDependency(dep graph.FrameworkDependency, isRoot bool) bool {
	return isRoot || (!dep.Optional && !dep.Development)
}

// LibrariesFromGraph returns the framework libraries referenced by the
// projects of g in breadth-first order of the referencing projects.
// Framework projects other than the root are not asked for references.
func LibrariesFromGraph(ctx context.Context, g *graph.ProjectGraph) ([]string, error) {
	rootName := g.RootName()
	if !g.HasProject(rootName) {
		return nil, fmt.Errorf("failed to collect framework libraries: %w: %s", graph.ErrUnknownProject, rootName)
	}

	var libraries []string
	seenLibs := make(map[string]bool)
	visited := map[string]bool{rootName: true}
	queue := []string{rootName}
	for len(queue) > 0 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		name := queue[0]
		queue = queue[1:]

		project, _ := g.Project(name)
		if name == rootName || !project.IsFrameworkProject() {
			for _, dep := range project.FrameworkDependencies() {
				if ShouldIncludeDependency(dep, name == rootName) && !seenLibs[dep.Name] {
					seenLibs[dep.Name] = true
					libraries = append(libraries, dep.Name)
				}
			}
		}

		deps, err := g.Dependencies(name)
		if err != nil {
			return nil, err
		}
		for _, dep := range deps {
			if !visited[dep] {
				visited[dep] = true
				queue = append(queue, dep)
			}
		}
	}
	return libraries, nil
}

// DeclareFrameworkDependencies adds edges from the root and every
// non-framework project of g to the framework libraries it references. The
// root project gets required edges to all of them. Other projects skip
// development dependencies and get optional edges for optional dependencies
// present in the graph. Projects using deprecated or SAP internal libraries
// are warned about, except for a project named testsuite.
func DeclareFrameworkDependencies(ctx context.Context, g *graph.ProjectGraph, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	rootName := g.RootName()

	err := g.TraverseBreadthFirst(ctx, "", func(_ context.Context, project graph.Project, _ []string) error {
		name := project.Name()
		isRoot := name == rootName
		if !isRoot && project.IsFrameworkProject() {
			return nil
		}
		warned := make(map[string]bool)

		for _, dep := range project.FrameworkDependencies() {
			if !isRoot && dep.Development {
				continue
			}
			switch {
			case isRoot || !dep.Optional:
				if err := g.DeclareDependency(name, dep.Name); err != nil {
					return fmt.Errorf("failed to declare framework dependency %s of project %s: %w", dep.Name, name, err)
				}
			case g.HasProject(dep.Name):
				if err := g.DeclareOptionalDependency(name, dep.Name); err != nil {
					return fmt.Errorf("failed to declare framework dependency %s of project %s: %w", dep.Name, name, err)
				}
			default:
				continue
			}

			depProject, ok := g.Project(dep.Name)
			if !ok || name == testsuiteProject || warned[dep.Name] {
				continue
			}
			warned[dep.Name] = true
			if depProject.IsDeprecated() {
				logger.Warn(fmt.Sprintf("Dependency %s is deprecated and should not be used for new projects!", dep.Name))
			}
			if depProject.IsSapInternal() && !project.AllowSapInternal() {
				logger.Warn(fmt.Sprintf("Dependency %s is restricted for use by SAP internal projects only! "+
					"If the project %s is an SAP internal project, add the attribute "+
					`"allowSapInternal: true" to its metadata configuration`, dep.Name, name))
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	return g.ResolveOptionalDependencies(ctx)
}
