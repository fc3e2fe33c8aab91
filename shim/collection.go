// Package shim collects the shims contributed by project-shim extensions
// while a project graph is built.
//
// A shim targets a module by id and comes in three flavors: configuration
// shims supply or override the ui5.yaml of a module, dependency shims add
// dependency edges and collection shims turn one module into several.
package shim

import (
	"log/slog"
	"maps"
	"slices"
	"sync"

	"github.com/albertocavalcante/go-ui5project/specification"
)

// Entry is one shim together with the extension that contributed it.
type Entry[T any] struct {
	Contributor string
	Payload     T
}

// ProjectShim is the subset of specification.ProjectShim the collection reads.
type ProjectShim interface {
	Name() string
	Shims() specification.Shims
}

// Collection holds all shims of one build, keyed by target module id.
type Collection struct {
	mu             sync.RWMutex
	configurations map[string][]Entry[map[string]any]
	dependencies   map[string][]Entry[[]string]
	collections    map[string][]Entry[specification.CollectionShim]
	logger         *slog.Logger
}

// New creates an empty collection.
func New(logger *slog.Logger) *Collection {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Collection{
		configurations: make(map[string][]Entry[map[string]any]),
		dependencies:   make(map[string][]Entry[[]string]),
		collections:    make(map[string][]Entry[specification.CollectionShim]),
		logger:         logger,
	}
}

// AddProjectShim registers every shim of ext. Shims from several extensions
// targeting the same module are kept in registration order.
func (c *Collection) AddProjectShim(ext ProjectShim) {
	c.mu.Lock()
	defer c.mu.Unlock()

	name := ext.Name()
	shims := ext.Shims()
	c.logger.Debug("Adding project shim", "extension", name,
		"configurations", len(shims.Configurations),
		"dependencies", len(shims.Dependencies),
		"collections", len(shims.Collections))

	addAll(c.configurations, name, shims.Configurations)
	addAll(c.dependencies, name, shims.Dependencies)
	addAll(c.collections, name, shims.Collections)
}

func addAll[T any](dst map[string][]Entry[T], contributor string, src map[string]T) {
	for _, id := range slices.Sorted(maps.Keys(src)) {
		dst[id] = append(dst[id], Entry[T]{Contributor: contributor, Payload: src[id]})
	}
}

// ConfigurationShims returns the configuration shims targeting a module.
func (c *Collection) ConfigurationShims(id string) []Entry[map[string]any] {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.Clone(c.configurations[id])
}

// DependencyShims returns all dependency shims keyed by source module id.
func (c *Collection) DependencyShims() map[string][]Entry[[]string] {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string][]Entry[[]string], len(c.dependencies))
	for id, entries := range c.dependencies {
		out[id] = slices.Clone(entries)
	}
	return out
}

// DependencyShimIDs returns the sorted ids of all modules with dependency shims.
func (c *Collection) DependencyShimIDs() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.Sorted(maps.Keys(c.dependencies))
}

// CollectionShims returns the collection shims targeting a module.
func (c *Collection) CollectionShims(id string) []Entry[specification.CollectionShim] {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.Clone(c.collections[id])
}

// HasCollectionShims reports whether a module is shimmed as a collection.
func (c *Collection) HasCollectionShims(id string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.collections[id]) > 0
}
