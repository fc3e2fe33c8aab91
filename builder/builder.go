// Package builder creates a project graph from the dependency tree of a
// NodeProvider.
//
// The tree is walked breadth-first. Sibling nodes are resolved concurrently,
// but their results are applied to the graph strictly in tree order so that
// the first project discovered for a name always wins.
package builder

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"path/filepath"
	"slices"

	"golang.org/x/sync/errgroup"

	"github.com/albertocavalcante/go-ui5project/graph"
	"github.com/albertocavalcante/go-ui5project/module"
	"github.com/albertocavalcante/go-ui5project/provider"
	"github.com/albertocavalcante/go-ui5project/shim"
	"github.com/albertocavalcante/go-ui5project/specification"
)

const defaultMaxConcurrency = 5

// Option configures Build.
type Option func(*config)

type config struct {
	logger      *slog.Logger
	concurrency int
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *config) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithConcurrency limits how many sibling nodes are resolved at the same time.
func WithConcurrency(n int) Option {
	return func(c *config) {
		if n > 0 {
			c.concurrency = n
		}
	}
}

type queueItem struct {
	nodes  []*provider.Node
	parent *specification.Project
}

type resolved struct {
	node  *provider.Node
	mod   *module.Module
	specs *module.Specifications
	fresh bool
}

type build struct {
	provider provider.NodeProvider
	cfg      config

	g     *graph.ProjectGraph
	shims *shim.Collection
	root  *specification.Project
	app   *specification.Project
	queue []queueItem

	modules           map[string]*module.Module
	extensionsHandled map[string]bool
	explored          map[string]bool
}

// Build walks the dependency tree of p and returns the resulting project
// graph. The graph is not sealed.
func Build(ctx context.Context, p provider.NodeProvider, opts ...Option) (*graph.ProjectGraph, error) {
	cfg := config{
		logger:      slog.New(slog.DiscardHandler),
		concurrency: defaultMaxConcurrency,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	b := &build{
		provider:          p,
		cfg:               cfg,
		shims:             shim.New(cfg.logger),
		modules:           make(map[string]*module.Module),
		extensionsHandled: make(map[string]bool),
		explored:          make(map[string]bool),
	}
	if err := b.addRoot(ctx); err != nil {
		return nil, err
	}
	if err := b.walk(ctx); err != nil {
		return nil, err
	}
	if err := b.applyDependencyShims(); err != nil {
		return nil, err
	}
	if err := b.g.ResolveOptionalDependencies(ctx); err != nil {
		return nil, err
	}
	return b.g, nil
}

func (b *build) addRoot(ctx context.Context) error {
	rootNode, err := b.provider.RootNode(ctx)
	if err != nil {
		return fmt.Errorf("failed to get root node: %w", err)
	}
	if err := validateNode(rootNode); err != nil {
		return err
	}

	rootModule, err := b.newModule(rootNode)
	if err != nil {
		return err
	}
	specs, err := rootModule.Specifications()
	if err != nil {
		return err
	}
	if specs.Project == nil {
		if len(specs.Extensions) > 0 {
			return fmt.Errorf("failed to create a UI5 project from module %s at %s: "+
				"found %d extension(s) but no project. Make sure the path is correct and a project configuration is present or supplied",
				rootNode.ID, rootNode.Path, len(specs.Extensions))
		}
		return fmt.Errorf("failed to create a UI5 project from module %s at %s: "+
			"make sure the path is correct and a project configuration is present or supplied",
			rootNode.ID, rootNode.Path)
	}
	b.modules[rootNode.ID] = rootModule

	root := specs.Project
	b.root = root
	if root.Type() == graph.TypeApplication {
		b.app = root
	}

	b.g, err = graph.New(root.Name(), graph.WithLogger(b.cfg.logger))
	if err != nil {
		return err
	}
	if err := b.g.AddProject(root); err != nil {
		return err
	}
	if err := b.handleExtensions(rootNode.ID, specs.Extensions); err != nil {
		return err
	}

	deps, err := b.provider.Dependencies(ctx, rootNode)
	if err != nil {
		return fmt.Errorf("failed to get dependencies of root module %s: %w", rootNode.ID, err)
	}
	if len(deps) > 0 {
		b.queue = append(b.queue, queueItem{nodes: deps, parent: root})
	}
	return nil
}

func (b *build) walk(ctx context.Context) error {
	for len(b.queue) > 0 {
		if err := ctx.Err(); err != nil {
			return err
		}
		item := b.queue[0]
		b.queue = b.queue[1:]

		batch, err := b.prepare(item)
		if err != nil {
			return err
		}
		if err := b.resolveBatch(ctx, batch); err != nil {
			return err
		}
		for _, r := range batch {
			if err := b.apply(ctx, r, item.parent); err != nil {
				return err
			}
		}
	}
	return nil
}

// prepare assigns a module to every node of a queue item.
func (b *build) prepare(item queueItem) ([]*resolved, error) {
	batch := make([]*resolved, 0, len(item.nodes))
	for _, node := range item.nodes {
		if err := validateNode(node); err != nil {
			return nil, err
		}

		if mod, ok := b.modules[node.ID]; ok {
			b.cfg.logger.Debug(fmt.Sprintf("Re-visiting module %s as a dependency of %s", node.ID, item.parent.Name()))
			if mod.Path() != node.Path {
				b.cfg.logger.Debug(fmt.Sprintf("Inconsistency detected: Tree contains multiple references to module %s, "+
					"available at multiple paths: %s and %s. Using the first one", node.ID, mod.Path(), node.Path))
			}
			batch = append(batch, &resolved{node: node, mod: mod})
			continue
		}

		mod, err := b.newModule(node)
		if err != nil {
			return nil, err
		}
		b.modules[node.ID] = mod
		batch = append(batch, &resolved{node: node, mod: mod, fresh: true})
	}
	return batch, nil
}

func (b *build) expandCollection(node *provider.Node) []*provider.Node {
	var nodes []*provider.Node
	for _, entry := range b.shims.CollectionShims(node.ID) {
		b.cfg.logger.Debug(fmt.Sprintf("Applying module collection shim %s for module %s", entry.Contributor, node.ID))
		for _, id := range slices.Sorted(maps.Keys(entry.Payload.Modules)) {
			modulePath := filepath.Join(node.Path, filepath.FromSlash(entry.Payload.Modules[id]))
			b.cfg.logger.Debug(fmt.Sprintf("  Injecting module %s with path %s", id, modulePath))
			nodes = append(nodes, &provider.Node{
				ID:            id,
				Version:       node.Version,
				Path:          modulePath,
				Optional:      node.Optional,
				Configuration: node.Configuration,
			})
		}
	}
	return nodes
}

// resolveBatch reads the specifications of all modules of a batch concurrently.
func (b *build) resolveBatch(ctx context.Context, batch []*resolved) error {
	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(b.cfg.concurrency)
	for _, r := range batch {
		if r.fresh && b.shims.HasCollectionShims(r.node.ID) {
			continue
		}
		eg.Go(func() error {
			if err := egCtx.Err(); err != nil {
				return err
			}
			specs, err := r.mod.Specifications()
			if err != nil {
				return err
			}
			r.specs = specs
			return nil
		})
	}
	return eg.Wait()
}

// apply adds the result of one node to the graph. Nodes targeted by a
// collection shim, including shims contributed by earlier nodes of the same
// batch, are replaced by the modules of the collection, which are queued as
// a new item with the same parent.
func (b *build) apply(ctx context.Context, r *resolved, parent *specification.Project) error {
	node := r.node
	if (r.fresh || b.modules[node.ID] == nil) && b.shims.HasCollectionShims(node.ID) {
		b.cfg.logger.Debug(fmt.Sprintf("One or more module collection shims have been defined for module %s. "+
			"Therefore the module itself will not be resolved", node.ID))
		delete(b.modules, node.ID)
		b.queue = append(b.queue, queueItem{nodes: b.expandCollection(node), parent: parent})
		return nil
	}
	if r.specs == nil {
		specs, err := r.mod.Specifications()
		if err != nil {
			return err
		}
		r.specs = specs
	}
	project, extensions := r.specs.Project, r.specs.Extensions

	// Extensions of optional dependencies are only honored for direct
	// dependencies of the root project.
	if len(extensions) > 0 && (!node.Optional || parent == b.root) {
		if err := b.handleExtensions(node.ID, extensions); err != nil {
			return err
		}
	}

	if project == nil {
		if len(extensions) == 0 || b.explored[node.ID] {
			return nil
		}
		// Dependencies of an extension module belong to the parent project.
		b.explored[node.ID] = true
		return b.queueDependencies(ctx, node, parent)
	}

	name := project.Name()
	if project.Type() == graph.TypeApplication {
		switch {
		case b.app == nil:
			b.cfg.logger.Debug(fmt.Sprintf("Project %s qualifies as application project for project graph", name))
			b.app = project
		case b.app.Name() != name:
			b.cfg.logger.Info(fmt.Sprintf("Excluding additional application project %s from graph. "+
				"The project graph can only feature a single project of type application. "+
				"Project %s has already qualified for that role", name, b.app.Name()))
			return nil
		}
	}

	alreadyAdded := false
	if existing, ok := b.g.Project(name); ok {
		alreadyAdded = true
		if existing.RootPath() != project.RootPath() {
			b.cfg.logger.Debug(fmt.Sprintf("Project %s has already been added to the graph from %s, "+
				"ignoring the one found at %s", name, existing.RootPath(), project.RootPath()))
		}
	} else if err := b.g.AddProject(project); err != nil {
		return err
	}

	if node.Optional {
		if err := b.g.DeclareOptionalDependency(parent.Name(), name); err != nil {
			return err
		}
	} else if err := b.g.DeclareDependency(parent.Name(), name); err != nil {
		return err
	}
	if parent == b.root {
		b.warnAboutDirectDependency(project)
	}

	if alreadyAdded {
		// Its dependencies have been explored before.
		return nil
	}

	return b.queueDependencies(ctx, node, project)
}

func (b *build) queueDependencies(ctx context.Context, node *provider.Node, parent *specification.Project) error {
	deps, err := b.provider.Dependencies(ctx, node)
	if err != nil {
		return fmt.Errorf("failed to get dependencies of module %s: %w", node.ID, err)
	}
	if len(deps) > 0 {
		b.queue = append(b.queue, queueItem{nodes: deps, parent: parent})
	}
	return nil
}

func (b *build) warnAboutDirectDependency(project *specification.Project) {
	if project.IsDeprecated() && b.root.Name() != "testsuite" {
		b.cfg.logger.Warn(fmt.Sprintf("Dependency %s is deprecated and should not be used for new projects!", project.Name()))
	}
	if project.IsSapInternal() && !b.root.AllowSapInternal() {
		b.cfg.logger.Warn(fmt.Sprintf("Dependency %s is restricted for use by SAP internal projects only! "+
			"If the project %s is an SAP internal project, add the attribute "+
			"\"allowSapInternal: true\" to its metadata configuration", project.Name(), b.root.Name()))
	}
}

// handleExtensions dispatches the extensions of a module. Each module's
// extensions are handled at most once.
func (b *build) handleExtensions(moduleID string, extensions []graph.Extension) error {
	if b.extensionsHandled[moduleID] {
		return nil
	}
	b.extensionsHandled[moduleID] = true

	for _, ext := range extensions {
		switch ext.Kind() {
		case graph.KindProjectShim:
			s, ok := ext.(shim.ProjectShim)
			if !ok {
				return fmt.Errorf("extension %s of module %s is not a project shim", ext.Name(), moduleID)
			}
			b.shims.AddProjectShim(s)
		case graph.KindTask, graph.KindServerMiddleware:
			if err := b.g.AddExtension(ext); err != nil {
				return err
			}
		default:
			return fmt.Errorf("unknown extension type '%s' for %s", ext.Kind(), ext.Name())
		}
	}
	return nil
}

func (b *build) applyDependencyShims() error {
	all := b.shims.DependencyShims()
	for _, id := range b.shims.DependencyShimIDs() {
		for _, entry := range all[id] {
			source, err := b.shimProject(entry.Contributor, id, id, "Module")
			if err != nil {
				return err
			}
			if source == nil {
				continue
			}
			for _, depID := range entry.Payload {
				target, err := b.shimProject(entry.Contributor, id, depID, "Dependency")
				if err != nil {
					return err
				}
				if target == nil {
					continue
				}
				if err := b.g.DeclareDependency(source.Name(), target.Name()); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// shimProject returns the project of module id, or nil after logging a warning
// if the module is unknown or not part of the graph.
func (b *build) shimProject(contributor, shimmedID, id, role string) (graph.Project, error) {
	mod, ok := b.modules[id]
	if !ok {
		b.cfg.logger.Warn(fmt.Sprintf("Could not apply dependency shim %s for %s: %s %s is unknown",
			contributor, shimmedID, role, id))
		return nil, nil
	}
	specs, err := mod.Specifications()
	if err != nil {
		return nil, err
	}
	if specs.Project == nil {
		b.cfg.logger.Warn(fmt.Sprintf("Could not apply dependency shim %s for %s: %s %s is not a project",
			contributor, shimmedID, role, id))
		return nil, nil
	}
	project, ok := b.g.Project(specs.Project.Name())
	if !ok {
		b.cfg.logger.Warn(fmt.Sprintf("Could not apply dependency shim %s for %s: project %s is not part of the graph",
			contributor, shimmedID, specs.Project.Name()))
		return nil, nil
	}
	return project, nil
}

func (b *build) newModule(node *provider.Node) (*module.Module, error) {
	return module.New(module.Options{
		ID:            node.ID,
		Version:       node.Version,
		Path:          node.Path,
		ConfigPath:    node.ConfigPath,
		Configuration: node.Configuration,
		Shims:         b.shims,
		Logger:        b.cfg.logger,
	})
}

func validateNode(node *provider.Node) error {
	if node.SpecVersion != "" {
		return fmt.Errorf("provided node with ID %s contains a top-level 'specVersion' property. "+
			"Project configuration needs to be provided in a dedicated 'configuration' object", node.ID)
	}
	if len(node.Metadata) > 0 {
		return fmt.Errorf("provided node with ID %s contains a top-level 'metadata' property. "+
			"Project configuration needs to be provided in a dedicated 'configuration' object", node.ID)
	}
	return nil
}
