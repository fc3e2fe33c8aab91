package graph

import (
	"fmt"
	"slices"
)

// Path finds the shortest chain of required edges from one project to another.
// Returns nil if no path exists.
func (g *ProjectGraph) Path(from, to string) (DependencyChain, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	for _, name := range []string{from, to} {
		if _, ok := g.projects[name]; !ok {
			return nil, fmt.Errorf("failed to find path from %s to %s: %s: %w", from, to, name, ErrUnknownProject)
		}
	}
	if from == to {
		return DependencyChain{from}, nil
	}

	type queueItem struct {
		name string
		path []string
	}

	visited := map[string]bool{from: true}
	queue := []queueItem{{name: from, path: []string{from}}}

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		for _, dep := range g.required[current.name].order {
			if dep == to {
				return append(slices.Clone(current.path), dep), nil
			}
			if !visited[dep] {
				visited[dep] = true
				queue = append(queue, queueItem{name: dep, path: append(slices.Clone(current.path), dep)})
			}
		}
	}
	return nil, nil
}

// WhyIncluded returns every required-edge chain from the root to the named
// project. This can be expensive for large graphs with many paths.
func (g *ProjectGraph) WhyIncluded(name string) ([]DependencyChain, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	if _, ok := g.projects[name]; !ok {
		return nil, fmt.Errorf("project %q not found in graph: %w", name, ErrUnknownProject)
	}
	if _, ok := g.projects[g.rootName]; !ok {
		return nil, nil
	}

	var result []DependencyChain
	onPath := make(map[string]bool)
	var walk func(current string, path []string)
	walk = func(current string, path []string) {
		if current == name {
			result = append(result, slices.Clone(path))
			return
		}
		onPath[current] = true
		defer delete(onPath, current)
		for _, dep := range g.required[current].order {
			if !onPath[dep] {
				walk(dep, append(path, dep))
			}
		}
	}
	walk(g.rootName, []string{g.rootName})
	return result, nil
}

// Leaves returns the sorted names of all projects without required dependencies.
func (g *ProjectGraph) Leaves() []string {
	g.mu.RLock()
	defer g.mu.RUnlock()

	var leaves []string
	for name, deps := range g.required {
		if deps.len() == 0 {
			leaves = append(leaves, name)
		}
	}
	slices.Sort(leaves)
	return leaves
}

// Stats returns statistics about the graph.
func (g *ProjectGraph) Stats() Stats {
	g.mu.RLock()
	defer g.mu.RUnlock()

	stats := Stats{
		TotalProjects: len(g.projects),
		Extensions:    len(g.extensions),
	}
	for _, deps := range g.optional {
		stats.OptionalEdges += deps.len()
	}

	root, ok := g.required[g.rootName]
	if !ok {
		stats.UnreachableProjects = len(g.projects)
		return stats
	}
	stats.DirectDependencies = root.len()

	reachable := map[string]bool{g.rootName: true}
	queue := []string{g.rootName}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		for _, dep := range g.required[current].order {
			if !reachable[dep] {
				reachable[dep] = true
				queue = append(queue, dep)
			}
		}
	}
	// reachable includes the root itself.
	stats.TransitiveDependencies = max(len(reachable)-1-stats.DirectDependencies, 0)
	stats.UnreachableProjects = len(g.projects) - len(reachable)
	stats.MaxDepth = g.maxDepthLocked()
	return stats
}

func (g *ProjectGraph) maxDepthLocked() int {
	depths := make(map[string]int)
	onPath := make(map[string]bool)
	var maxDepth int

	var dfs func(name string, depth int)
	dfs = func(name string, depth int) {
		// A project already on the current path means this edge closes a cycle.
		if onPath[name] {
			return
		}
		if existing, ok := depths[name]; ok && existing >= depth {
			return
		}
		depths[name] = depth
		maxDepth = max(maxDepth, depth)

		onPath[name] = true
		for _, dep := range g.required[name].order {
			dfs(dep, depth+1)
		}
		delete(onPath, name)
	}

	dfs(g.rootName, 0)
	return maxDepth
}

// HasCycles reports whether the required edges contain a cycle.
func (g *ProjectGraph) HasCycles() bool {
	return len(g.FindCycles()) > 0
}

// FindCycles returns every cycle reachable over required edges. Each cycle
// starts and ends with the same project name. Projects are explored in
// insertion order, so the result is deterministic.
func (g *ProjectGraph) FindCycles() [][]string {
	g.mu.RLock()
	defer g.mu.RUnlock()

	var cycles [][]string
	visited := make(map[string]bool)
	recStack := make(map[string]bool)
	path := make([]string, 0)

	var findCycles func(name string)
	findCycles = func(name string) {
		visited[name] = true
		recStack[name] = true
		path = append(path, name)

		for _, dep := range g.required[name].order {
			if !visited[dep] {
				findCycles(dep)
			} else if recStack[dep] {
				start := slices.Index(path, dep)
				if start >= 0 {
					cycle := append(slices.Clone(path[start:]), dep)
					cycles = append(cycles, cycle)
				}
			}
		}

		path = path[:len(path)-1]
		recStack[name] = false
	}

	for _, name := range g.projectOrder {
		if !visited[name] {
			findCycles(name)
		}
	}
	return cycles
}
