package graph

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

const separatorWidth = 60 // Width of separator lines in text output

// TreeJSON is the nested JSON representation of a graph, rooted at the root project.
type TreeJSON struct {
	Name         string           `json:"name"`
	Version      string           `json:"version,omitempty"`
	Type         string           `json:"type,omitempty"`
	Root         bool             `json:"root,omitempty"`
	Dependencies []TreeDependency `json:"dependencies,omitempty"`
	Extensions   []ExtensionJSON  `json:"extensions,omitempty"`
}

// TreeDependency is one dependency inside a TreeJSON.
type TreeDependency struct {
	Name         string           `json:"name"`
	Version      string           `json:"version,omitempty"`
	Type         string           `json:"type,omitempty"`
	Optional     bool             `json:"optional,omitempty"`
	Dependencies []TreeDependency `json:"dependencies,omitempty"`

	// Unexpanded marks a project whose dependencies were already printed
	// elsewhere in the tree.
	Unexpanded bool `json:"unexpanded,omitempty"`

	// Cycle marks an edge that leads back to one of its ancestors.
	Cycle bool `json:"cycle,omitempty"`
}

// ExtensionJSON describes an extension in a TreeJSON.
type ExtensionJSON struct {
	Name string        `json:"name"`
	Kind ExtensionKind `json:"kind"`
}

// ToJSON outputs the graph as an indented nested dependency tree.
func (g *ProjectGraph) ToJSON() ([]byte, error) {
	return json.MarshalIndent(g.toTree(), "", "  ")
}

func (g *ProjectGraph) toTree() *TreeJSON {
	g.mu.RLock()
	defer g.mu.RUnlock()

	tree := &TreeJSON{Name: g.rootName, Root: true}
	for _, name := range g.extensionOrder {
		tree.Extensions = append(tree.Extensions, ExtensionJSON{Name: name, Kind: g.extensions[name].Kind()})
	}
	root, ok := g.projects[g.rootName]
	if !ok {
		return tree
	}
	tree.Version = root.Version()
	tree.Type = root.Type()

	expanded := map[string]bool{g.rootName: true}
	onPath := map[string]bool{g.rootName: true}
	tree.Dependencies = g.treeDepsLocked(g.rootName, expanded, onPath)
	return tree
}

func (g *ProjectGraph) treeDepsLocked(name string, expanded, onPath map[string]bool) []TreeDependency {
	var deps []TreeDependency
	for _, depName := range g.required[name].order {
		dep := g.treeEntryLocked(depName)
		switch {
		case onPath[depName]:
			dep.Cycle = true
		case expanded[depName]:
			dep.Unexpanded = g.required[depName].len() > 0
		default:
			expanded[depName] = true
			onPath[depName] = true
			dep.Dependencies = g.treeDepsLocked(depName, expanded, onPath)
			delete(onPath, depName)
		}
		deps = append(deps, dep)
	}
	for _, depName := range g.optional[name].order {
		dep := g.treeEntryLocked(depName)
		dep.Optional = true
		dep.Unexpanded = g.required[depName].len() > 0
		deps = append(deps, dep)
	}
	return deps
}

func (g *ProjectGraph) treeEntryLocked(name string) TreeDependency {
	entry := TreeDependency{Name: name}
	if p, ok := g.projects[name]; ok {
		entry.Version = p.Version()
		entry.Type = p.Type()
	}
	return entry
}

// ToDOT outputs the graph in Graphviz DOT format. Pending optional edges are dashed.
func (g *ProjectGraph) ToDOT() string {
	g.mu.RLock()
	defer g.mu.RUnlock()

	var buf bytes.Buffer

	buf.WriteString("digraph dependencies {\n")
	buf.WriteString("  rankdir=LR;\n")
	buf.WriteString("  node [shape=box];\n\n")

	for _, name := range g.projectOrder {
		p := g.projects[name]
		label := fmt.Sprintf("%s\\n%s", name, p.Version())
		attrs := fmt.Sprintf(`label="%s"`, label) //nolint:gocritic // DOT format requires this quote style
		if name == g.rootName {
			attrs += ", style=bold"
		}
		if p.IsFrameworkProject() {
			attrs += ", color=blue"
		}
		buf.WriteString(fmt.Sprintf("  %q [%s];\n", name, attrs))
	}

	buf.WriteString("\n")

	for _, name := range g.projectOrder {
		for _, dep := range g.required[name].order {
			buf.WriteString(fmt.Sprintf("  %q -> %q;\n", name, dep))
		}
		for _, dep := range g.optional[name].order {
			buf.WriteString(fmt.Sprintf("  %q -> %q [style=dashed];\n", name, dep))
		}
	}

	buf.WriteString("}\n")
	return buf.String()
}

// ToText outputs a human-readable text representation of the graph.
func (g *ProjectGraph) ToText() string {
	stats := g.Stats()

	g.mu.RLock()
	defer g.mu.RUnlock()

	var buf bytes.Buffer

	buf.WriteString(fmt.Sprintf("Project Graph (root: %s)\n", g.rootName))
	buf.WriteString(strings.Repeat("=", separatorWidth) + "\n\n")

	buf.WriteString(fmt.Sprintf("Total projects: %d\n", stats.TotalProjects))
	buf.WriteString(fmt.Sprintf("Direct dependencies: %d\n", stats.DirectDependencies))
	buf.WriteString(fmt.Sprintf("Transitive dependencies: %d\n", stats.TransitiveDependencies))
	buf.WriteString(fmt.Sprintf("Max depth: %d\n", stats.MaxDepth))
	if stats.OptionalEdges > 0 {
		buf.WriteString(fmt.Sprintf("Unresolved optional dependencies: %d\n", stats.OptionalEdges))
	}
	if stats.Extensions > 0 {
		buf.WriteString(fmt.Sprintf("Extensions: %d\n", stats.Extensions))
	}
	buf.WriteString("\n")

	if _, ok := g.projects[g.rootName]; !ok {
		return buf.String()
	}

	buf.WriteString("Dependency Tree:\n")
	g.printTreeLocked(&buf, g.rootName, "", true, false, make(map[string]bool))

	if len(g.extensionOrder) > 0 {
		buf.WriteString("\nExtensions:\n")
		for _, name := range g.extensionOrder {
			buf.WriteString(fmt.Sprintf("  %s (%s)\n", name, g.extensions[name].Kind()))
		}
	}
	return buf.String()
}

func (g *ProjectGraph) printTreeLocked(buf *bytes.Buffer, name, prefix string, isLast, optional bool, visited map[string]bool) {
	connector := "├── "
	if isLast {
		connector = "└── "
	}
	label := name
	if p, ok := g.projects[name]; ok {
		label = describe(p)
	}
	if prefix == "" && name == g.rootName {
		buf.WriteString(label)
	} else {
		buf.WriteString(prefix + connector + label)
	}

	if optional {
		buf.WriteString(" (optional)\n")
		return
	}
	if visited[name] {
		buf.WriteString(" (circular)\n")
		return
	}
	buf.WriteString("\n")

	visited[name] = true
	defer func() { visited[name] = false }()

	required := g.required[name].order
	optionals := g.optional[name].order
	total := len(required) + len(optionals)
	for i, dep := range append(required[:len(required):len(required)], optionals...) {
		isLastChild := i == total-1
		childPrefix := prefix
		if prefix != "" || name != g.rootName {
			if isLast {
				childPrefix += "    "
			} else {
				childPrefix += "│   "
			}
		}
		g.printTreeLocked(buf, dep, childPrefix, isLastChild, i >= len(required), visited)
	}
}

// ToExplainText outputs every chain of required edges that pulls the named
// project into the graph.
func (g *ProjectGraph) ToExplainText(name string) (string, error) {
	chains, err := g.WhyIncluded(name)
	if err != nil {
		return "", err
	}
	p, _ := g.Project(name)

	var buf bytes.Buffer
	buf.WriteString(fmt.Sprintf("Explanation for: %s\n", describe(p)))
	buf.WriteString(strings.Repeat("=", separatorWidth) + "\n\n")

	if len(chains) == 0 {
		buf.WriteString("Not reachable from the root project through required dependencies.\n")
		return buf.String(), nil
	}
	buf.WriteString("Dependency Chains (paths from root):\n")
	for i, chain := range chains {
		buf.WriteString(fmt.Sprintf("  %d. %s\n", i+1, chain.String()))
	}
	return buf.String(), nil
}
