package graph

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"slices"
	"strings"
	"sync"
)

// ProjectGraph is a directed graph of projects connected by required and
// optional dependency edges, plus a separate set of extensions.
//
// Projects are stored by name; edges are kept as insertion-ordered name sets
// so that traversal order is a function of declaration order only.
// All methods are safe for concurrent use. Visitors passed to the traversal
// methods may call back into the graph.
type ProjectGraph struct {
	mu sync.RWMutex

	rootName string

	projects     map[string]Project
	projectOrder []string

	required map[string]*nameSet
	optional map[string]*nameSet

	extensions     map[string]Extension
	extensionOrder []string

	sealed             bool
	unresolvedOptional bool

	logger *slog.Logger
}

// Option configures a ProjectGraph.
type Option func(*ProjectGraph)

// WithLogger sets the logger used for verbose output and warnings.
// Without it the graph is silent.
func WithLogger(l *slog.Logger) Option {
	return func(g *ProjectGraph) {
		if l != nil {
			g.logger = l
		}
	}
}

// New creates an empty graph whose root project will be rootName.
func New(rootName string, opts ...Option) (*ProjectGraph, error) {
	if rootName == "" {
		return nil, errors.New("could not create project graph: missing or empty root project name")
	}
	g := &ProjectGraph{
		rootName:   rootName,
		projects:   make(map[string]Project),
		required:   make(map[string]*nameSet),
		optional:   make(map[string]*nameSet),
		extensions: make(map[string]Extension),
		logger:     slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

// RootName returns the name of the root project.
func (g *ProjectGraph) RootName() string {
	return g.rootName
}

// Root returns the root project. It fails if the root has not been added yet.
func (g *ProjectGraph) Root() (Project, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	root, ok := g.projects[g.rootName]
	if !ok {
		return nil, fmt.Errorf("unable to find root project with name %s in project graph: %w", g.rootName, ErrUnknownProject)
	}
	return root, nil
}

// AddProject adds a project to the graph.
func (g *ProjectGraph) AddProject(p Project) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	name := p.Name()
	if err := g.checkSealedLocked(); err != nil {
		return fmt.Errorf("failed to add project %s to graph: %w", name, err)
	}
	if _, exists := g.projects[name]; exists {
		return fmt.Errorf("failed to add project %s to graph: a project with that name has already been added, "+
			"this might be caused by multiple modules containing projects with the same name: %w", name, ErrDuplicateName)
	}
	if isIntegerLike(name) {
		return fmt.Errorf("failed to add project %s to graph: project %w", name, ErrIntegerLikeName)
	}

	g.logger.Debug("Adding project", "project", name)
	g.projects[name] = p
	g.projectOrder = append(g.projectOrder, name)
	g.required[name] = newNameSet()
	g.optional[name] = newNameSet()
	return nil
}

// Project returns the project with the given name.
func (g *ProjectGraph) Project(name string) (Project, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	p, ok := g.projects[name]
	return p, ok
}

// HasProject reports whether a project with the given name exists.
func (g *ProjectGraph) HasProject(name string) bool {
	_, ok := g.Project(name)
	return ok
}

// Projects returns all projects in insertion order.
func (g *ProjectGraph) Projects() []Project {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]Project, 0, len(g.projectOrder))
	for _, name := range g.projectOrder {
		out = append(out, g.projects[name])
	}
	return out
}

// ProjectNames returns the names of all projects, sorted.
func (g *ProjectGraph) ProjectNames() []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	names := slices.Clone(g.projectOrder)
	slices.Sort(names)
	return names
}

// Size returns the number of projects.
func (g *ProjectGraph) Size() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.projects)
}

// AddExtension adds an extension to the graph.
func (g *ProjectGraph) AddExtension(e Extension) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	name := e.Name()
	if err := g.checkSealedLocked(); err != nil {
		return fmt.Errorf("failed to add extension %s to graph: %w", name, err)
	}
	if _, exists := g.extensions[name]; exists {
		return fmt.Errorf("failed to add extension %s to graph: an extension with that name has already been added, "+
			"this might be caused by multiple modules containing extensions with the same name: %w", name, ErrDuplicateName)
	}
	if isIntegerLike(name) {
		return fmt.Errorf("failed to add extension %s to graph: extension %w", name, ErrIntegerLikeName)
	}

	g.logger.Debug("Adding extension", "extension", name, "kind", e.Kind())
	g.extensions[name] = e
	g.extensionOrder = append(g.extensionOrder, name)
	return nil
}

// Extension returns the extension with the given name.
func (g *ProjectGraph) Extension(name string) (Extension, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	e, ok := g.extensions[name]
	return e, ok
}

// Extensions returns all extensions in insertion order.
func (g *ProjectGraph) Extensions() []Extension {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]Extension, 0, len(g.extensionOrder))
	for _, name := range g.extensionOrder {
		out = append(out, g.extensions[name])
	}
	return out
}

// ExtensionNames returns the names of all extensions, sorted.
func (g *ProjectGraph) ExtensionNames() []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	names := slices.Clone(g.extensionOrder)
	slices.Sort(names)
	return names
}

// DeclareDependency declares a required edge from one project to another.
// Declaring an existing required edge again only logs a warning.
func (g *ProjectGraph) DeclareDependency(from, to string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.checkSealedLocked(); err != nil {
		return &EdgeError{From: from, To: to, Err: err}
	}
	g.logger.Debug("Declaring dependency", "from", from, "to", to)
	return g.declareLocked(g.required, from, to, false)
}

// DeclareOptionalDependency declares an optional edge from one project to
// another. Optional edges are promoted to required ones by
// ResolveOptionalDependencies once their target is reachable from the root.
func (g *ProjectGraph) DeclareOptionalDependency(from, to string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.checkSealedLocked(); err != nil {
		return &EdgeError{From: from, To: to, Optional: true, Err: err}
	}
	g.logger.Debug("Declaring optional dependency", "from", from, "to", to)
	if err := g.declareLocked(g.optional, from, to, true); err != nil {
		return err
	}
	g.unresolvedOptional = true
	return nil
}

func (g *ProjectGraph) declareLocked(edges map[string]*nameSet, from, to string, optional bool) error {
	if _, ok := g.projects[from]; !ok {
		return &EdgeError{From: from, To: to, Optional: optional,
			Err: fmt.Errorf("unable to find depending project with name %s in project graph: %w", from, ErrUnknownProject)}
	}
	if _, ok := g.projects[to]; !ok {
		return &EdgeError{From: from, To: to, Optional: optional,
			Err: fmt.Errorf("unable to find dependency project with name %s in project graph: %w", to, ErrUnknownProject)}
	}
	if from == to {
		return &EdgeError{From: from, To: to, Optional: optional, Err: ErrSelfDependency}
	}
	if !edges[from].add(to) {
		g.logger.Warn(fmt.Sprintf("Dependency has already been declared: %s depends on %s", from, to))
	}
	return nil
}

// Dependencies returns the direct required dependencies of a project in
// declaration order.
func (g *ProjectGraph) Dependencies(name string) ([]string, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.dependenciesLocked(name)
}

func (g *ProjectGraph) dependenciesLocked(name string) ([]string, error) {
	deps, ok := g.required[name]
	if !ok {
		return nil, fmt.Errorf("failed to get dependencies for project %s: %w", name, ErrUnknownProject)
	}
	return deps.list(), nil
}

// OptionalDependencies returns the pending optional dependencies of a project.
func (g *ProjectGraph) OptionalDependencies(name string) ([]string, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	deps, ok := g.optional[name]
	if !ok {
		return nil, fmt.Errorf("failed to get optional dependencies for project %s: %w", name, ErrUnknownProject)
	}
	return deps.list(), nil
}

// Dependents returns the projects that declare a required edge to name,
// in project insertion order.
func (g *ProjectGraph) Dependents(name string) ([]string, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if _, ok := g.projects[name]; !ok {
		return nil, fmt.Errorf("failed to get dependents for project %s: %w", name, ErrUnknownProject)
	}
	var out []string
	for _, from := range g.projectOrder {
		if g.required[from].has(name) {
			out = append(out, from)
		}
	}
	return out, nil
}

// IsOptionalDependency reports whether the edge from -> to exists only as an
// optional edge. A required edge always wins.
func (g *ProjectGraph) IsOptionalDependency(from, to string) (bool, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	required, ok := g.required[from]
	if !ok {
		return false, fmt.Errorf("failed to determine whether dependency from %s to %s is optional: %w", from, to, ErrUnknownProject)
	}
	if required.has(to) {
		return false, nil
	}
	return g.optional[from].has(to), nil
}

// TransitiveDependencies returns every project reachable from name through
// required edges. Optional edges are ignored.
func (g *ProjectGraph) TransitiveDependencies(name string) ([]string, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if _, ok := g.projects[name]; !ok {
		return nil, fmt.Errorf("failed to get transitive dependencies for project %s: %w", name, ErrUnknownProject)
	}

	seen := make(map[string]bool)
	var result []string
	stack := []string{name}
	for len(stack) > 0 {
		current := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		deps := g.required[current].list()
		// Push in reverse so the first declared dependency is expanded first.
		for i := len(deps) - 1; i >= 0; i-- {
			dep := deps[i]
			if seen[dep] {
				continue
			}
			seen[dep] = true
			result = append(result, dep)
			stack = append(stack, dep)
		}
	}
	return result, nil
}

// ResolveOptionalDependencies promotes every optional edge whose target is
// already reachable from the root to a required edge. Edges whose promotion
// would close a cycle stay optional. Edges whose target is unreachable stay
// pending for a later call.
func (g *ProjectGraph) ResolveOptionalDependencies(ctx context.Context) error {
	g.mu.RLock()
	if err := g.checkSealedLocked(); err != nil {
		g.mu.RUnlock()
		return fmt.Errorf("failed to resolve optional dependencies: %w", err)
	}
	pending := g.unresolvedOptional
	g.mu.RUnlock()

	if !pending {
		g.logger.Debug("Skipping resolution of optional dependencies since none have been declared")
		return nil
	}

	g.logger.Debug("Resolving optional dependencies...")

	var (
		reachableMu sync.Mutex
		reachable   = make(map[string]bool)
	)
	err := g.TraverseBreadthFirst(ctx, "", func(_ context.Context, p Project, _ []string) error {
		reachableMu.Lock()
		reachable[p.Name()] = true
		reachableMu.Unlock()
		return nil
	})
	if err != nil {
		return err
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.checkSealedLocked(); err != nil {
		return fmt.Errorf("failed to resolve optional dependencies: %w", err)
	}

	unresolved := false
	for _, from := range g.projectOrder {
		optional := g.optional[from]
		for _, to := range optional.list() {
			if !reachable[to] {
				unresolved = true
				continue
			}
			g.logger.Debug(fmt.Sprintf("Resolving optional dependency from %s to %s...", from, to))
			if g.required[to].has(from) {
				g.logger.Debug(fmt.Sprintf("Cyclic optional dependency detected: %s already has a non-optional dependency to %s", to, from))
				g.logger.Debug(fmt.Sprintf("Optional dependency from %s to %s will not be declared as it would introduce a cycle", from, to))
				unresolved = true
				continue
			}
			if err := g.declareLocked(g.required, from, to, false); err != nil {
				return err
			}
			optional.remove(to)
		}
	}
	if !unresolved {
		g.unresolvedOptional = false
	}
	return nil
}

// HasUnresolvedOptionalDependencies reports whether optional edges are still pending.
func (g *ProjectGraph) HasUnresolvedOptionalDependencies() bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.unresolvedOptional
}

// Join merges all projects, extensions and edges of other into g. The other
// graph is sealed first. The join fails without modifying g if any project or
// extension name exists in both graphs.
func (g *ProjectGraph) Join(other *ProjectGraph) error {
	if other == g {
		return fmt.Errorf("failed to join project graph with root node %s into itself", g.rootName)
	}
	if !other.IsSealed() {
		g.logger.Debug(fmt.Sprintf("Sealing project graph with root node %s before joining it into project graph with root node %s",
			other.rootName, g.rootName))
		other.Seal()
	}

	other.mu.RLock()
	projectOrder := slices.Clone(other.projectOrder)
	projects := make(map[string]Project, len(other.projects))
	required := make(map[string]*nameSet, len(other.required))
	optional := make(map[string]*nameSet, len(other.optional))
	for name, p := range other.projects {
		projects[name] = p
		required[name] = other.required[name].clone()
		optional[name] = other.optional[name].clone()
	}
	extensionOrder := slices.Clone(other.extensionOrder)
	extensions := make(map[string]Extension, len(other.extensions))
	for name, e := range other.extensions {
		extensions[name] = e
	}
	otherUnresolved := other.unresolvedOptional
	other.mu.RUnlock()

	g.mu.Lock()
	defer g.mu.Unlock()

	wrap := func(err error) error {
		return fmt.Errorf("failed to join project graph with root node %s into project graph with root node %s: %w",
			other.rootName, g.rootName, err)
	}
	if err := g.checkSealedLocked(); err != nil {
		return wrap(err)
	}

	var collisions []string
	for _, name := range projectOrder {
		if _, exists := g.projects[name]; exists {
			collisions = append(collisions, name)
		}
	}
	for _, name := range extensionOrder {
		if _, exists := g.extensions[name]; exists {
			collisions = append(collisions, name)
		}
	}
	if len(collisions) > 0 {
		return wrap(fmt.Errorf("%w: %s", ErrDuplicateName, strings.Join(collisions, ", ")))
	}

	g.logger.Debug(fmt.Sprintf("Joining project graph with root node %s into project graph with root node %s",
		other.rootName, g.rootName))
	for _, name := range projectOrder {
		g.projects[name] = projects[name]
		g.required[name] = required[name]
		g.optional[name] = optional[name]
		g.projectOrder = append(g.projectOrder, name)
	}
	for _, name := range extensionOrder {
		g.extensions[name] = extensions[name]
		g.extensionOrder = append(g.extensionOrder, name)
	}
	g.unresolvedOptional = g.unresolvedOptional || otherUnresolved
	return nil
}

// Seal makes the graph read-only. Sealing is permanent.
func (g *ProjectGraph) Seal() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.sealed = true
}

// IsSealed reports whether the graph has been sealed.
func (g *ProjectGraph) IsSealed() bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.sealed
}

func (g *ProjectGraph) checkSealedLocked() error {
	if g.sealed {
		return fmt.Errorf("project graph with root node %s: %w", g.rootName, ErrSealed)
	}
	return nil
}

// numericName matches the string forms JavaScript converts to a number:
// decimals with optional sign and exponent, signed Infinity and unsigned
// hexadecimal, octal and binary literals.
var numericName = regexp.MustCompile(`^(?:[+-]?(?:Infinity|(?:\d+\.?\d*|\.\d+)(?:[eE][+-]?\d+)?)|0[xX][0-9a-fA-F]+|0[oO][0-7]+|0[bB][01]+)$`)

// isIntegerLike reports whether a name would be treated as a number by
// consumers that key objects by project name.
func isIntegerLike(name string) bool {
	trimmed := strings.TrimSpace(name)
	return trimmed == "" || numericName.MatchString(trimmed)
}
