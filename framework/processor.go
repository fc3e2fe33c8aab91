package framework

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/albertocavalcante/go-ui5project/graph"
	"github.com/albertocavalcante/go-ui5project/module"
	"github.com/albertocavalcante/go-ui5project/specification"
)

// ProjectProcessor turns installed framework libraries into projects of a
// graph.
type ProjectProcessor struct {
	metadata    map[string]*LibraryMetadata
	graph       *graph.ProjectGraph
	logger      *slog.Logger
	concurrency int

	mu    sync.Mutex
	added map[string]string // library name to project name
}

// NewProjectProcessor creates a processor adding projects to g.
func NewProjectProcessor(metadata map[string]*LibraryMetadata, g *graph.ProjectGraph, logger *slog.Logger) *ProjectProcessor {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &ProjectProcessor{
		metadata:    metadata,
		graph:       g,
		logger:      logger,
		concurrency: defaultMaxConcurrency,
		added:       make(map[string]string),
	}
}

// AddProjectToGraph adds the projects of libraries and of their transitive
// dependencies to the graph. Required dependencies become required edges.
// Optional dependencies are only followed if their metadata is known and
// become optional edges. Libraries added by an earlier call are reused.
//
// Projects are created concurrently. They are added to the graph
// dependencies first, in a fixed order.
func (p *ProjectProcessor) AddProjectToGraph(ctx context.Context, libraries ...string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	order, err := p.plan(libraries)
	if err != nil {
		return err
	}

	projects := make([]*specification.Project, len(order))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.concurrency)
	for i, lib := range order {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			project, err := p.createProject(p.metadata[lib])
			if err != nil {
				return err
			}
			projects[i] = project
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	for i, lib := range order {
		if err := p.graph.AddProject(projects[i]); err != nil {
			return err
		}
		p.added[lib] = projects[i].Name()
	}
	for i, lib := range order {
		meta := p.metadata[lib]
		from := projects[i].Name()
		for _, dep := range meta.Dependencies {
			if err := p.graph.DeclareDependency(from, p.added[dep]); err != nil {
				return err
			}
		}
		for _, dep := range meta.OptionalDependencies {
			to, ok := p.added[dep]
			if !ok {
				continue
			}
			if err := p.graph.DeclareOptionalDependency(from, to); err != nil {
				return err
			}
		}
	}
	return nil
}

// plan returns the libraries not yet added in dependency order, failing on
// unknown libraries and cycles.
func (p *ProjectProcessor) plan(libraries []string) ([]string, error) {
	var order []string
	planned := make(map[string]bool)

	var visit func(lib string, ancestors []string, optional bool) error
	visit = func(lib string, ancestors []string, optional bool) error {
		for _, a := range ancestors {
			if a == lib {
				return &graph.CycleError{Chain: append(append([]string{}, ancestors...), lib)}
			}
		}
		if _, ok := p.added[lib]; ok || planned[lib] {
			return nil
		}
		meta, ok := p.metadata[lib]
		if !ok {
			if optional {
				return nil
			}
			return fmt.Errorf("failed to find library %s in framework library metadata: %w", lib, ErrUnknownLibrary)
		}
		ancestors = append(ancestors, lib)
		for _, dep := range meta.Dependencies {
			if err := visit(dep, ancestors, false); err != nil {
				return err
			}
		}
		for _, dep := range meta.OptionalDependencies {
			if err := visit(dep, ancestors, true); err != nil {
				return err
			}
		}
		planned[lib] = true
		order = append(order, lib)
		return nil
	}

	for _, lib := range libraries {
		if err := visit(lib, nil, false); err != nil {
			return nil, err
		}
	}
	return order, nil
}

func (p *ProjectProcessor) createProject(meta *LibraryMetadata) (*specification.Project, error) {
	if meta.Path == "" {
		return nil, fmt.Errorf("framework library %s has not been installed", meta.Name)
	}
	m, err := module.New(module.Options{
		ID:      meta.ID,
		Version: meta.Version,
		Path:    meta.Path,
		Logger:  p.logger,
	})
	if err != nil {
		return nil, err
	}
	specs, err := m.Specifications()
	if err != nil {
		return nil, fmt.Errorf("failed to read framework library %s: %w", meta.Name, err)
	}
	if specs.Project == nil {
		return nil, fmt.Errorf("framework library %s in module %s does not contain a project", meta.Name, meta.ID)
	}
	p.logger.Debug("Created framework project", "library", meta.Name, "project", specs.Project.Name())
	return specs.Project, nil
}
