package graph

import (
	"context"
	"fmt"
	"slices"

	"golang.org/x/sync/errgroup"
)

type bfsItem struct {
	names        []string
	predecessors []string
}

// TraverseBreadthFirst visits every project reachable from start through
// required edges, level by level. An empty start means the root project.
//
// The visitors of one queue item run concurrently and the traversal waits for
// all of them before moving on, so a project is only visited after every
// project that was enqueued before it. Each project is visited once, even when
// it is reachable through several paths. A project appearing in its own
// ancestor chain aborts the traversal with a *CycleError.
func (g *ProjectGraph) TraverseBreadthFirst(ctx context.Context, start string, visit Visitor) error {
	start, err := g.startName(start)
	if err != nil {
		return err
	}

	queue := []bfsItem{{names: []string{start}}}
	visited := make(map[string]bool)

	for len(queue) > 0 {
		if err := ctx.Err(); err != nil {
			return err
		}
		item := queue[0]
		queue = queue[1:]

		type pending struct {
			project Project
			deps    []string
		}
		var batch []pending
		for _, name := range item.names {
			if slices.Contains(item.predecessors, name) {
				return newCycleError(item.predecessors, name)
			}
			if visited[name] {
				continue
			}
			visited[name] = true

			project, ok := g.Project(name)
			if !ok {
				return fmt.Errorf("failed to traverse project graph: %s: %w", name, ErrUnknownProject)
			}
			deps, err := g.Dependencies(name)
			if err != nil {
				return err
			}
			queue = append(queue, bfsItem{
				names:        deps,
				predecessors: append(slices.Clone(item.predecessors), name),
			})
			batch = append(batch, pending{project: project, deps: deps})
		}

		eg, egCtx := errgroup.WithContext(ctx)
		for _, p := range batch {
			eg.Go(func() error {
				return visit(egCtx, p.project, p.deps)
			})
		}
		if err := eg.Wait(); err != nil {
			return err
		}
	}
	return nil
}

type dfsNode struct {
	project Project
	deps    []string
	done    chan struct{}
}

// TraverseDepthFirst visits every project reachable from start through
// required edges in post-order: a project's visitor only runs once the
// visitors of all its dependencies have completed. An empty start means the
// root project.
//
// Independent subtrees are visited concurrently. A project reachable through
// several parents is visited once and all parents wait for that single visit.
// A project appearing in its own ancestor chain aborts the traversal with a
// *CycleError before any visitor runs.
func (g *ProjectGraph) TraverseDepthFirst(ctx context.Context, start string, visit Visitor) error {
	start, err := g.startName(start)
	if err != nil {
		return err
	}

	nodes := make(map[string]*dfsNode)
	var order []string

	var discover func(name string, ancestors []string) error
	discover = func(name string, ancestors []string) error {
		if slices.Contains(ancestors, name) {
			return newCycleError(ancestors, name)
		}
		if _, seen := nodes[name]; seen {
			return nil
		}
		project, ok := g.Project(name)
		if !ok {
			return fmt.Errorf("failed to traverse project graph: %s: %w", name, ErrUnknownProject)
		}
		deps, err := g.Dependencies(name)
		if err != nil {
			return err
		}
		nodes[name] = &dfsNode{project: project, deps: deps, done: make(chan struct{})}

		next := append(slices.Clone(ancestors), name)
		for _, dep := range deps {
			if err := discover(dep, next); err != nil {
				return err
			}
		}
		order = append(order, name)
		return nil
	}
	if err := discover(start, nil); err != nil {
		return err
	}

	eg, egCtx := errgroup.WithContext(ctx)
	for _, name := range order {
		node := nodes[name]
		eg.Go(func() error {
			for _, dep := range node.deps {
				select {
				case <-nodes[dep].done:
				case <-egCtx.Done():
					return egCtx.Err()
				}
			}
			if err := visit(egCtx, node.project, node.deps); err != nil {
				return err
			}
			close(node.done)
			return nil
		})
	}
	return eg.Wait()
}

func (g *ProjectGraph) startName(start string) (string, error) {
	if start == "" {
		start = g.rootName
	}
	if !g.HasProject(start) {
		return "", fmt.Errorf("failed to start graph traversal: could not find project %s in project graph: %w", start, ErrUnknownProject)
	}
	return start, nil
}
