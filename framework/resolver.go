package framework

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/Masterminds/semver/v3"
	"golang.org/x/sync/errgroup"

	"github.com/albertocavalcante/go-ui5project/framework/npm"
	"github.com/albertocavalcante/go-ui5project/graph"
	"github.com/albertocavalcante/go-ui5project/specification"
)

const defaultMaxConcurrency = 5

// Installer provides framework packages. *npm.Installer implements it.
type Installer interface {
	InstallPackage(ctx context.Context, name, version string) (*npm.Installation, error)
	FetchPackageManifest(ctx context.Context, name, version string) (*npm.Manifest, error)
	FetchPackageVersions(ctx context.Context, name string) ([]string, error)
	ReadJSON(ctx context.Context, name, version, file string, v any) error
}

var _ Installer = (*npm.Installer)(nil)

// LibraryMetadata describes one framework library.
type LibraryMetadata struct {
	// Name is the library name, e.g. sap.m.
	Name string

	// ID is the npm package providing the library.
	ID string

	Version string

	// Path is the install location. It is empty until the library has
	// been installed.
	Path string

	Dependencies         []string
	OptionalDependencies []string
}

// InstallResult is the outcome of Resolver.Install.
type InstallResult struct {
	// LibraryMetadata holds every library of the closure by name.
	LibraryMetadata map[string]*LibraryMetadata
}

// Resolver installs framework libraries of one framework version.
type Resolver interface {
	// Install installs libraries and their transitive dependencies.
	Install(ctx context.Context, libraries []string) (*InstallResult, error)

	// ResolveVersion resolves a version specifier like "latest" or "1.120"
	// to a published version.
	ResolveVersion(ctx context.Context, spec string) (string, error)
}

// ResolverOptions configures a Resolver.
type ResolverOptions struct {
	// Version is the framework version to install. It may be empty for a
	// resolver only used to resolve version specifiers.
	Version string

	Installer   Installer
	Logger      *slog.Logger
	Concurrency int
}

// ResolverFactory creates the resolver for a framework name.
type ResolverFactory func(frameworkName string, opts ResolverOptions) (Resolver, error)

// NewResolver creates the resolver for "OpenUI5" or "SAPUI5".
func NewResolver(frameworkName string, opts ResolverOptions) (Resolver, error) {
	switch frameworkName {
	case specification.FrameworkOpenUI5:
		return NewOpenUI5Resolver(opts)
	case specification.FrameworkSAPUI5:
		return NewSAPUI5Resolver(opts)
	default:
		return nil, fmt.Errorf("unknown framework %q", frameworkName)
	}
}

// flavor holds what differs between the frameworks.
type flavor struct {
	name string

	// versionsPackage is the package whose published versions are the
	// framework versions.
	versionsPackage string

	minVersion *semver.Version
}

// metadataFunc returns the metadata of one library.
type metadataFunc func(ctx context.Context, library string) (*LibraryMetadata, error)

// baseResolver installs the transitive closure of a set of libraries. The
// metadata of a level of the closure is fetched concurrently. Once the
// closure is known every package is installed concurrently. Failures are
// collected instead of stopping at the first one.
type baseResolver struct {
	flavor      flavor
	version     string
	installer   Installer
	logger      *slog.Logger
	concurrency int
	metadata    metadataFunc
}

func newBaseResolver(f flavor, opts ResolverOptions, metadata metadataFunc) (*baseResolver, error) {
	if opts.Installer == nil {
		return nil, fmt.Errorf("failed to create %s resolver: missing installer", f.name)
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	concurrency := opts.Concurrency
	if concurrency <= 0 {
		concurrency = defaultMaxConcurrency
	}
	return &baseResolver{
		flavor:      f,
		version:     opts.Version,
		installer:   opts.Installer,
		logger:      logger,
		concurrency: concurrency,
		metadata:    metadata,
	}, nil
}

func (r *baseResolver) ResolveVersion(ctx context.Context, spec string) (string, error) {
	return resolveVersion(ctx, r.installer, r.flavor, spec)
}

// libraryState is the outcome of processing one library of the closure.
type libraryState struct {
	meta *LibraryMetadata
	err  error
}

func (r *baseResolver) Install(ctx context.Context, libraries []string) (*InstallResult, error) {
	if r.version == "" {
		return nil, fmt.Errorf("failed to install %s libraries: %w", r.flavor.name, ErrMissingVersion)
	}

	states, order, err := r.collect(ctx, libraries)
	if err != nil {
		return nil, err
	}
	if err := checkLibraryCycles(states, libraries); err != nil {
		return nil, err
	}
	if err := r.installAll(ctx, states, order); err != nil {
		return nil, err
	}
	if failures := aggregateFailures(states, libraries); len(failures) > 0 {
		return nil, &InstallError{Failures: failures}
	}

	result := &InstallResult{LibraryMetadata: make(map[string]*LibraryMetadata, len(states))}
	for name, st := range states {
		result.LibraryMetadata[name] = st.meta
	}
	return result, nil
}

// collect fetches the metadata of the closure of libraries level by level.
// order lists the closure in discovery order.
func (r *baseResolver) collect(ctx context.Context, libraries []string) (map[string]*libraryState, []string, error) {
	states := make(map[string]*libraryState)
	var order []string

	var frontier []string
	for _, lib := range libraries {
		if _, seen := states[lib]; !seen {
			states[lib] = &libraryState{}
			frontier = append(frontier, lib)
		}
	}

	for len(frontier) > 0 {
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(r.concurrency)
		for _, lib := range frontier {
			st := states[lib]
			g.Go(func() error {
				r.logger.Debug("Resolving framework library", "library", lib)
				st.meta, st.err = r.metadata(gctx, lib)
				return gctx.Err()
			})
		}
		if err := g.Wait(); err != nil {
			return nil, nil, err
		}
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}

		order = append(order, frontier...)
		var next []string
		for _, lib := range frontier {
			st := states[lib]
			if st.err != nil {
				continue
			}
			for _, dep := range dependenciesOf(st.meta) {
				if _, seen := states[dep]; !seen {
					states[dep] = &libraryState{}
					next = append(next, dep)
				}
			}
		}
		frontier = next
	}
	return states, order, nil
}

// installAll installs every library with metadata concurrently.
func (r *baseResolver) installAll(ctx context.Context, states map[string]*libraryState, order []string) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.concurrency)
	var mu sync.Mutex
	for _, lib := range order {
		st := states[lib]
		if st.err != nil {
			continue
		}
		g.Go(func() error {
			inst, err := r.installer.InstallPackage(gctx, st.meta.ID, st.meta.Version)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				st.err = err
			} else {
				st.meta.Path = inst.Path
			}
			return gctx.Err()
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}

func dependenciesOf(meta *LibraryMetadata) []string {
	deps := make([]string, 0, len(meta.Dependencies)+len(meta.OptionalDependencies))
	deps = append(deps, meta.Dependencies...)
	return append(deps, meta.OptionalDependencies...)
}

// checkLibraryCycles walks the closure depth-first from every requested
// library and reports the first cycle found.
func checkLibraryCycles(states map[string]*libraryState, libraries []string) error {
	done := make(map[string]bool)
	var visit func(lib string, ancestors []string) error
	visit = func(lib string, ancestors []string) error {
		for _, a := range ancestors {
			if a == lib {
				chain := append(append([]string{}, ancestors...), lib)
				return &graph.CycleError{Chain: chain}
			}
		}
		if done[lib] {
			return nil
		}
		st := states[lib]
		if st == nil || st.err != nil {
			done[lib] = true
			return nil
		}
		ancestors = append(ancestors, lib)
		for _, dep := range dependenciesOf(st.meta) {
			if err := visit(dep, ancestors); err != nil {
				return err
			}
		}
		done[lib] = true
		return nil
	}
	for _, lib := range libraries {
		if err := visit(lib, nil); err != nil {
			return err
		}
	}
	return nil
}

// aggregateFailures lists the failures of the requested libraries in
// requested order. A library failing because of a dependency carries the
// dependency's failure, unless an earlier entry already reported it.
func aggregateFailures(states map[string]*libraryState, libraries []string) []*LibraryError {
	var failures []*LibraryError
	listed := make(map[string]bool)
	reported := make(map[string]bool)

	// causes returns the failing libraries of the closure of lib whose own
	// dependencies are fine, in depth-first order.
	var causes func(lib string, seen map[string]bool) []string
	causes = func(lib string, seen map[string]bool) []string {
		if seen[lib] {
			return nil
		}
		seen[lib] = true
		st := states[lib]
		if st.err != nil {
			return []string{lib}
		}
		var out []string
		for _, dep := range dependenciesOf(st.meta) {
			out = append(out, causes(dep, seen)...)
		}
		return out
	}

	for _, lib := range libraries {
		if listed[lib] {
			continue
		}
		listed[lib] = true
		rootCauses := causes(lib, make(map[string]bool))
		if len(rootCauses) == 0 {
			continue
		}
		var errs causeList
		for _, c := range rootCauses {
			if reported[c] {
				continue
			}
			reported[c] = true
			if c == lib {
				errs = append(errs, states[c].err)
			} else {
				errs = append(errs, &LibraryError{Library: c, Err: states[c].err})
			}
		}
		failures = append(failures, &LibraryError{Library: lib, Err: errs.err()})
	}
	return failures
}
