package graph

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type visitLog struct {
	mu    sync.Mutex
	order []string
}

func (l *visitLog) visitor() Visitor {
	return func(_ context.Context, p Project, _ []string) error {
		l.mu.Lock()
		defer l.mu.Unlock()
		l.order = append(l.order, p.Name())
		return nil
	}
}

func (l *visitLog) index(name string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i, n := range l.order {
		if n == name {
			return i
		}
	}
	return -1
}

func TestTraverseBreadthFirst(t *testing.T) {
	g := newTestGraph(t)
	var log visitLog

	require.NoError(t, g.TraverseBreadthFirst(context.Background(), "", log.visitor()))

	assert.Len(t, log.order, 4, "shared dependency must be visited once")
	assert.Equal(t, "root", log.order[0])
	assert.ElementsMatch(t, []string{"a", "b"}, log.order[1:3])
	assert.Equal(t, "c", log.order[3])
}

func TestTraverseBreadthFirst_StartProject(t *testing.T) {
	g := newTestGraph(t)
	var log visitLog

	require.NoError(t, g.TraverseBreadthFirst(context.Background(), "a", log.visitor()))
	assert.Equal(t, []string{"a", "c"}, log.order)

	err := g.TraverseBreadthFirst(context.Background(), "missing", log.visitor())
	require.ErrorIs(t, err, ErrUnknownProject)
}

func TestTraverseBreadthFirst_PassesDependencies(t *testing.T) {
	g := newTestGraph(t)
	var mu sync.Mutex
	got := make(map[string][]string)

	require.NoError(t, g.TraverseBreadthFirst(context.Background(), "", func(_ context.Context, p Project, deps []string) error {
		mu.Lock()
		defer mu.Unlock()
		got[p.Name()] = deps
		return nil
	}))

	assert.Equal(t, []string{"a", "b"}, got["root"])
	assert.Equal(t, []string{"c"}, got["a"])
	assert.Empty(t, got["c"])
}

func TestTraverseDepthFirst_PostOrder(t *testing.T) {
	g := newTestGraph(t)
	var log visitLog

	require.NoError(t, g.TraverseDepthFirst(context.Background(), "", log.visitor()))

	require.Len(t, log.order, 4)
	assert.Less(t, log.index("c"), log.index("a"))
	assert.Less(t, log.index("c"), log.index("b"))
	assert.Less(t, log.index("a"), log.index("root"))
	assert.Less(t, log.index("b"), log.index("root"))
}

func TestTraverseDepthFirst_DiamondVisitedOnce(t *testing.T) {
	g := newTestGraph(t)
	var calls atomic.Int32

	require.NoError(t, g.TraverseDepthFirst(context.Background(), "", func(_ context.Context, p Project, _ []string) error {
		if p.Name() == "c" {
			calls.Add(1)
			time.Sleep(10 * time.Millisecond)
		}
		return nil
	}))
	assert.Equal(t, int32(1), calls.Load())
}

func TestTraversal_Cycle(t *testing.T) {
	traversals := map[string]func(*ProjectGraph) func(context.Context, string, Visitor) error{
		"breadth-first": func(g *ProjectGraph) func(context.Context, string, Visitor) error { return g.TraverseBreadthFirst },
		"depth-first":   func(g *ProjectGraph) func(context.Context, string, Visitor) error { return g.TraverseDepthFirst },
	}

	for name, traversal := range traversals {
		t.Run(name, func(t *testing.T) {
			// A -> B -> C -> A
			g := graphWith(t, "A", "B", "C")
			require.NoError(t, g.DeclareDependency("A", "B"))
			require.NoError(t, g.DeclareDependency("B", "C"))
			require.NoError(t, g.DeclareDependency("C", "A"))

			err := traversal(g)(context.Background(), "A", func(context.Context, Project, []string) error {
				return nil
			})

			var cycleErr *CycleError
			require.ErrorAs(t, err, &cycleErr)
			assert.Equal(t, []string{"A", "B", "C", "A"}, cycleErr.Chain)
			assert.Equal(t, "Detected cyclic dependency chain: *A* -> B -> C -> *A*", err.Error())
		})
	}
}

func TestTraverseDepthFirst_CycleBelowRoot(t *testing.T) {
	// root -> A -> B -> A
	g := graphWith(t, "root", "A", "B")
	require.NoError(t, g.DeclareDependency("root", "A"))
	require.NoError(t, g.DeclareDependency("A", "B"))
	require.NoError(t, g.DeclareDependency("B", "A"))

	var visited atomic.Int32
	err := g.TraverseDepthFirst(context.Background(), "", func(context.Context, Project, []string) error {
		visited.Add(1)
		return nil
	})
	require.Error(t, err)
	assert.Equal(t, "Detected cyclic dependency chain: root -> *A* -> B -> *A*", err.Error())
	assert.Zero(t, visited.Load(), "no visitor runs when the graph contains a cycle")
}

func TestTraversal_VisitorError(t *testing.T) {
	errBoom := errors.New("boom")

	t.Run("breadth-first stops before next level", func(t *testing.T) {
		g := newTestGraph(t)
		var log visitLog
		err := g.TraverseBreadthFirst(context.Background(), "", func(ctx context.Context, p Project, deps []string) error {
			if p.Name() == "a" {
				return errBoom
			}
			return log.visitor()(ctx, p, deps)
		})
		require.ErrorIs(t, err, errBoom)
		assert.Equal(t, -1, log.index("c"))
	})

	t.Run("depth-first skips dependents", func(t *testing.T) {
		g := newTestGraph(t)
		var log visitLog
		err := g.TraverseDepthFirst(context.Background(), "", func(ctx context.Context, p Project, deps []string) error {
			if p.Name() == "c" {
				return errBoom
			}
			return log.visitor()(ctx, p, deps)
		})
		require.ErrorIs(t, err, errBoom)
		assert.Empty(t, log.order)
	})
}

func TestTraversal_VisitorMayMutate(t *testing.T) {
	g := newTestGraph(t)

	err := g.TraverseDepthFirst(context.Background(), "", func(_ context.Context, p Project, _ []string) error {
		return g.AddProject(lib(p.Name() + "-shadow"))
	})
	require.NoError(t, err)
	assert.Equal(t, 8, g.Size())
}

func TestTraversal_CanceledContext(t *testing.T) {
	g := newTestGraph(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := g.TraverseBreadthFirst(ctx, "", func(context.Context, Project, []string) error { return nil })
	require.ErrorIs(t, err, context.Canceled)
}
