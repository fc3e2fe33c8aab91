package framework

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/albertocavalcante/go-ui5project/builder"
	"github.com/albertocavalcante/go-ui5project/graph"
	"github.com/albertocavalcante/go-ui5project/provider"
)

type lib struct {
	name        string
	optional    bool
	development bool
}

func frameworkNode(id, typ, name string, framework map[string]any, libs []lib, deps ...*provider.Node) *provider.Node {
	doc := map[string]any{
		"specVersion": "3.0",
		"type":        typ,
		"metadata":    map[string]any{"name": name},
	}
	if framework != nil || libs != nil {
		if framework == nil {
			framework = map[string]any{}
		}
		var libraries []any
		for _, l := range libs {
			libraries = append(libraries, map[string]any{"name": l.name, "optional": l.optional, "development": l.development})
		}
		framework["libraries"] = libraries
		doc["framework"] = framework
	}
	return &provider.Node{
		ID:            id,
		Version:       "1.0.0",
		Path:          "/modules/" + id,
		Configuration: provider.Configurations{doc},
		Dependencies:  deps,
	}
}

func openUI5Config(version string) map[string]any {
	return map[string]any{"name": "OpenUI5", "version": version}
}

func buildGraph(t *testing.T, root *provider.Node) *graph.ProjectGraph {
	t.Helper()
	tree, err := provider.NewDependencyTree(root)
	require.NoError(t, err)
	g, err := builder.Build(context.Background(), tree)
	require.NoError(t, err)
	return g
}

func dependencies(t *testing.T, g *graph.ProjectGraph, name string) []string {
	t.Helper()
	deps, err := g.Dependencies(name)
	require.NoError(t, err)
	return deps
}

// publishStandardLibraries publishes sap.m, sap.ui.core and sap.ui.layout.
func publishStandardLibraries(inst *fakeInstaller, version string) {
	inst.publishOpenUI5("sap.m", version, []string{"sap.ui.core"}, nil, "")
	inst.publishOpenUI5("sap.ui.core", version, nil, nil, "")
	inst.publishOpenUI5("sap.ui.layout", version, []string{"sap.ui.core"}, nil, "")
}

func TestShouldIncludeDependency(t *testing.T) {
	tests := []struct {
		name   string
		dep    graph.FrameworkDependency
		isRoot bool
		want   bool
	}{
		{"root required", graph.FrameworkDependency{Name: "a"}, true, true},
		{"root optional", graph.FrameworkDependency{Name: "a", Optional: true}, true, true},
		{"root development", graph.FrameworkDependency{Name: "a", Development: true}, true, true},
		{"dependency required", graph.FrameworkDependency{Name: "a"}, false, true},
		{"dependency optional", graph.FrameworkDependency{Name: "a", Optional: true}, false, false},
		{"dependency development", graph.FrameworkDependency{Name: "a", Development: true}, false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ShouldIncludeDependency(tt.dep, tt.isRoot))
		})
	}
}

func TestLibrariesFromGraph(t *testing.T) {
	root := frameworkNode("app", "application", "my.app", openUI5Config("1.120.0"),
		[]lib{{name: "sap.m"}, {name: "sap.ui.core", development: true}, {name: "sap.f", optional: true}},
		frameworkNode("lib", "library", "my.lib", nil,
			[]lib{{name: "sap.m"}, {name: "sap.ui.table"}, {name: "sap.ui.layout", optional: true}, {name: "themelib", development: true}}),
	)
	g := buildGraph(t, root)

	libs, err := LibrariesFromGraph(context.Background(), g)
	require.NoError(t, err)
	assert.Equal(t, []string{"sap.m", "sap.ui.core", "sap.f", "sap.ui.table"}, libs)
}

func TestEnrich(t *testing.T) {
	inst := newFakeInstaller(t)
	publishStandardLibraries(inst, "1.120.0")

	root := frameworkNode("app", "application", "my.app", openUI5Config("1.120.0"),
		[]lib{{name: "sap.m"}, {name: "sap.ui.layout", development: true}},
		frameworkNode("lib", "library", "my.lib", nil,
			[]lib{{name: "sap.ui.core"}, {name: "sap.ui.layout", optional: true}, {name: "sap.ui.table", optional: true}}),
	)
	g := buildGraph(t, root)

	require.NoError(t, Enrich(context.Background(), g, Options{Installer: inst}))

	assert.Equal(t, []string{"my.app", "my.lib", "sap.m", "sap.ui.core", "sap.ui.layout"}, g.ProjectNames())
	assert.Equal(t, []string{"my.lib", "sap.m", "sap.ui.layout"}, dependencies(t, g, "my.app"))
	assert.Equal(t, []string{"sap.ui.core", "sap.ui.layout"}, dependencies(t, g, "my.lib"))
	assert.Equal(t, []string{"sap.ui.core"}, dependencies(t, g, "sap.m"))

	optional, err := g.IsOptionalDependency("my.lib", "sap.ui.layout")
	require.NoError(t, err)
	assert.False(t, optional, "optional dependency reachable from the root must be promoted")
	assert.False(t, g.HasUnresolvedOptionalDependencies())
	assert.False(t, g.HasProject("fake-root-of-my.app-framework-dependency-graph"))

	var visited []string
	require.NoError(t, g.TraverseDepthFirst(context.Background(), "", func(_ context.Context, p graph.Project, _ []string) error {
		visited = append(visited, p.Name())
		return nil
	}))
	assert.Len(t, visited, 5)
}

func TestEnrich_VersionOverride(t *testing.T) {
	inst := newFakeInstaller(t)
	inst.versions["@openui5/sap.ui.core"] = []string{"1.119.0", "1.120.0", "1.120.5"}
	publishStandardLibraries(inst, "1.120.5")

	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, nil))
	root := frameworkNode("app", "application", "my.app", openUI5Config("1.119.0"), []lib{{name: "sap.m"}})
	g := buildGraph(t, root)

	require.NoError(t, Enrich(context.Background(), g, Options{Installer: inst, VersionOverride: "1.120", Logger: logger}))

	project, ok := g.Project("sap.m")
	require.True(t, ok)
	assert.Equal(t, "1.120.5", project.Version())
	assert.Contains(t, logs.String(), "Overriding configured OpenUI5 version 1.119.0 with version 1.120.5")
	assert.Contains(t, logs.String(), "Using OpenUI5 version: 1.120.5")
}

func TestEnrich_NoOps(t *testing.T) {
	tests := []struct {
		name string
		root *provider.Node
	}{
		{
			name: "no framework configuration",
			root: frameworkNode("app", "application", "my.app", nil, nil),
		},
		{
			name: "no libraries referenced",
			root: frameworkNode("app", "application", "my.app", openUI5Config("1.120.0"), nil),
		},
		{
			name: "framework root without version and all dependencies present",
			root: frameworkNode("@openui5/sap.m", "library", "sap.m", map[string]any{"name": "OpenUI5"},
				[]lib{{name: "sap.ui.core"}, {name: "sap.ui.layout", optional: true}},
				frameworkNode("@openui5/sap.ui.core", "library", "sap.ui.core", nil, nil)),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inst := newFakeInstaller(t)
			g := buildGraph(t, tt.root)
			before := g.ProjectNames()

			require.NoError(t, Enrich(context.Background(), g, Options{Installer: inst}))
			assert.Equal(t, before, g.ProjectNames())
			assert.Empty(t, inst.installs)
		})
	}
}

func TestEnrich_Errors(t *testing.T) {
	t.Run("unknown framework name", func(t *testing.T) {
		root := frameworkNode("app", "application", "my.app", map[string]any{"name": "UI6", "version": "1.0.0"}, []lib{{name: "sap.m"}})
		err := Enrich(context.Background(), buildGraph(t, root), Options{Installer: newFakeInstaller(t)})

		var cfgErr *ConfigurationError
		require.ErrorAs(t, err, &cfgErr)
		assert.Equal(t, "my.app", cfgErr.Project)
		assert.Contains(t, err.Error(), `"UI6"`)
	})

	t.Run("missing version", func(t *testing.T) {
		root := frameworkNode("app", "application", "my.app", map[string]any{"name": "OpenUI5"}, []lib{{name: "sap.m"}})
		err := Enrich(context.Background(), buildGraph(t, root), Options{Installer: newFakeInstaller(t)})
		require.ErrorIs(t, err, ErrMissingVersion)
		assert.Contains(t, err.Error(), "my.app")
	})

	for _, cfg := range []map[string]any{nil, {"name": "OpenUI5"}} {
		t.Run(fmt.Sprintf("framework root missing dependency %v", cfg), func(t *testing.T) {
			root := frameworkNode("@openui5/sap.m", "library", "sap.m", cfg,
				[]lib{{name: "sap.ui.core"}, {name: "sap.ui.layout", optional: true}})
			inst := newFakeInstaller(t)
			err := Enrich(context.Background(), buildGraph(t, root), Options{Installer: inst})
			require.Error(t, err)
			assert.NotErrorIs(t, err, ErrMissingVersion)
			assert.Contains(t, err.Error(), "missing framework dependency sap.ui.core for framework project sap.m")
			assert.Empty(t, inst.installs)
		})
	}

	t.Run("no installer", func(t *testing.T) {
		root := frameworkNode("app", "application", "my.app", openUI5Config("1.120.0"), []lib{{name: "sap.m"}})
		err := Enrich(context.Background(), buildGraph(t, root), Options{})
		require.Error(t, err)
	})

	t.Run("duplicate framework library", func(t *testing.T) {
		inst := newFakeInstaller(t)
		publishStandardLibraries(inst, "1.120.0")
		root := frameworkNode("app", "application", "my.app", openUI5Config("1.120.0"), []lib{{name: "sap.m"}},
			frameworkNode("vendored-core", "library", "sap.ui.core", nil, nil))
		g := buildGraph(t, root)

		err := Enrich(context.Background(), g, Options{Installer: inst})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "duplicate framework library definition(s) found in project my.app: sap.ui.core")
		assert.False(t, g.HasProject("sap.m"), "graph must not be joined")
	})

	t.Run("install failure", func(t *testing.T) {
		root := frameworkNode("app", "application", "my.app", openUI5Config("1.120.0"), []lib{{name: "sap.m"}, {name: "sap.f"}})
		err := Enrich(context.Background(), buildGraph(t, root), Options{Installer: newFakeInstaller(t)})
		var installErr *InstallError
		require.ErrorAs(t, err, &installErr)
		assert.Len(t, installErr.Failures, 2)
	})
}

func TestEnrich_CustomResolverFactory(t *testing.T) {
	inst := newFakeInstaller(t)
	publishStandardLibraries(inst, "1.120.0")
	var requested string
	factory := func(name string, opts ResolverOptions) (Resolver, error) {
		requested = name
		return NewOpenUI5Resolver(opts)
	}

	root := frameworkNode("app", "application", "my.app", map[string]any{"name": "SAPUI5", "version": "1.120.0"}, []lib{{name: "sap.m"}})
	g := buildGraph(t, root)
	require.NoError(t, Enrich(context.Background(), g, Options{Installer: inst, ResolverFactory: factory}))
	assert.Equal(t, "SAPUI5", requested)
	assert.True(t, g.HasProject("sap.m"))
}

func TestDeclareFrameworkDependencies_Warnings(t *testing.T) {
	inst := newFakeInstaller(t)
	inst.publishOpenUI5("sap.ui.commons", "1.120.0", nil, nil, "  deprecated: true\n")
	inst.publishOpenUI5("sap.internal", "1.120.0", nil, nil, "  sapInternal: true\n")

	root := frameworkNode("app", "application", "my.app", openUI5Config("1.120.0"),
		[]lib{{name: "sap.ui.commons"}, {name: "sap.internal"}},
		frameworkNode("testsuite-module", "library", "testsuite", nil,
			[]lib{{name: "sap.ui.commons"}, {name: "sap.internal"}}),
	)
	g := buildGraph(t, root)

	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, nil))
	require.NoError(t, Enrich(context.Background(), g, Options{Installer: inst, Logger: logger}))

	out := logs.String()
	assert.Equal(t, 1, bytes.Count(logs.Bytes(), []byte("Dependency sap.ui.commons is deprecated")))
	assert.Contains(t, out, "Dependency sap.internal is restricted for use by SAP internal projects only!")
	assert.Contains(t, out, "If the project my.app is an SAP internal project")
	assert.NotContains(t, out, "If the project testsuite")
	assert.Equal(t, []string{"sap.ui.commons", "sap.internal"}, dependencies(t, g, "testsuite"))
}
