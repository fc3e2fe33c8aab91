package graph

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPath(t *testing.T) {
	g := newTestGraph(t)

	tests := []struct {
		from, to string
		want     DependencyChain
	}{
		{"root", "c", DependencyChain{"root", "a", "c"}},
		{"root", "root", DependencyChain{"root"}},
		{"c", "root", nil},
		{"b", "c", DependencyChain{"b", "c"}},
	}

	for _, tt := range tests {
		t.Run(tt.from+"->"+tt.to, func(t *testing.T) {
			got, err := g.Path(tt.from, tt.to)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := g.Path("root", "missing")
	require.ErrorIs(t, err, ErrUnknownProject)
}

func TestWhyIncluded(t *testing.T) {
	g := newTestGraph(t)

	chains, err := g.WhyIncluded("c")
	require.NoError(t, err)
	require.Len(t, chains, 2)
	assert.Equal(t, "root -> a -> c", chains[0].String())
	assert.Equal(t, "root -> b -> c", chains[1].String())
}

func TestLeaves(t *testing.T) {
	g := newTestGraph(t)
	assert.Equal(t, []string{"c"}, g.Leaves())
}

func TestStats(t *testing.T) {
	g := newTestGraph(t)
	require.NoError(t, g.AddProject(lib("d")))
	require.NoError(t, g.DeclareOptionalDependency("c", "d"))
	require.NoError(t, g.AddExtension(&testExtension{name: "task", kind: KindTask}))

	assert.Equal(t, Stats{
		TotalProjects:          5,
		DirectDependencies:     2,
		TransitiveDependencies: 1,
		UnreachableProjects:    1,
		OptionalEdges:          1,
		Extensions:             1,
		MaxDepth:               2,
	}, g.Stats())
}

func TestFindCycles(t *testing.T) {
	g := newTestGraph(t)
	assert.False(t, g.HasCycles())
	assert.Empty(t, g.FindCycles())

	require.NoError(t, g.DeclareDependency("c", "a"))
	assert.True(t, g.HasCycles())
	assert.Equal(t, [][]string{{"a", "c", "a"}}, g.FindCycles())
}

func TestDependencyChain_String(t *testing.T) {
	assert.Empty(t, DependencyChain{}.String())
	assert.Equal(t, "a", DependencyChain{"a"}.String())
	assert.Equal(t, "a -> b -> c", DependencyChain{"a", "b", "c"}.String())
}

func TestToJSON(t *testing.T) {
	g := newTestGraph(t)
	require.NoError(t, g.AddProject(lib("d")))
	require.NoError(t, g.DeclareOptionalDependency("b", "d"))

	data, err := g.ToJSON()
	require.NoError(t, err)

	var tree TreeJSON
	require.NoError(t, json.Unmarshal(data, &tree))
	assert.Equal(t, "root", tree.Name)
	assert.True(t, tree.Root)
	require.Len(t, tree.Dependencies, 2)

	a := tree.Dependencies[0]
	assert.Equal(t, "a", a.Name)
	require.Len(t, a.Dependencies, 1)
	assert.Equal(t, "c", a.Dependencies[0].Name)

	b := tree.Dependencies[1]
	require.Len(t, b.Dependencies, 2)
	assert.Equal(t, "c", b.Dependencies[0].Name)
	assert.False(t, b.Dependencies[0].Unexpanded, "leaf projects have nothing to expand")
	assert.Equal(t, "d", b.Dependencies[1].Name)
	assert.True(t, b.Dependencies[1].Optional)
}

func TestToDOT(t *testing.T) {
	g := newTestGraph(t)
	require.NoError(t, g.AddProject(lib("d")))
	require.NoError(t, g.DeclareOptionalDependency("c", "d"))

	dot := g.ToDOT()
	assert.True(t, strings.HasPrefix(dot, "digraph dependencies {"))
	assert.Contains(t, dot, `"root" -> "a";`)
	assert.Contains(t, dot, `"c" -> "d" [style=dashed];`)
	assert.Contains(t, dot, "style=bold")
}

func TestToText(t *testing.T) {
	g := newTestGraph(t)
	require.NoError(t, g.AddExtension(&testExtension{name: "my-task", kind: KindTask}))

	text := g.ToText()
	assert.Contains(t, text, "Project Graph (root: root)")
	assert.Contains(t, text, "Total projects: 4")
	assert.Contains(t, text, "├── a@1.0.0 (library)")
	assert.Contains(t, text, "└── b@1.0.0 (library)")
	assert.Contains(t, text, "my-task (task)")
}

func TestToExplainText(t *testing.T) {
	g := newTestGraph(t)

	text, err := g.ToExplainText("c")
	require.NoError(t, err)
	assert.Contains(t, text, "Explanation for: c@1.0.0 (library)")
	assert.Contains(t, text, "1. root -> a -> c")
	assert.Contains(t, text, "2. root -> b -> c")

	_, err = g.ToExplainText("missing")
	require.ErrorIs(t, err, ErrUnknownProject)
}
