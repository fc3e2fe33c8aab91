// Package graph provides the project graph of a UI5 project and its
// dependencies.
//
// A ProjectGraph holds projects and extensions by name. Projects are
// connected by required and optional dependency edges. Optional edges only
// become required once their target is reachable from the root through
// required edges, see ResolveOptionalDependencies.
//
// # Building a Graph
//
// Graphs are usually created by the builder package, but can be assembled by
// hand:
//
//	g, _ := graph.New("my.app")
//	_ = g.AddProject(app)
//	_ = g.AddProject(lib)
//	_ = g.DeclareDependency("my.app", "my.lib")
//
// # Traversal
//
// Both traversals visit each reachable project exactly once and fail with a
// *CycleError when a project appears in its own ancestor chain:
//
//	err := g.TraverseDepthFirst(ctx, "", func(ctx context.Context, p graph.Project, deps []string) error {
//		// every project in deps has been visited already
//		return nil
//	})
//
// # Output Formats
//
//	jsonBytes, _ := g.ToJSON() // nested dependency tree
//	dotString := g.ToDOT()     // Graphviz, optional edges dashed
//	textString := g.ToText()   // human-readable tree
package graph
