package graph

import (
	"context"
	"fmt"
)

// Project types understood by the graph builder and the framework engine.
const (
	TypeApplication  = "application"
	TypeLibrary      = "library"
	TypeThemeLibrary = "theme-library"
	TypeModule       = "module"
)

// Project is a named, versioned node of a ProjectGraph.
//
// Implementations are produced by the specification package; the graph only
// relies on the name for identity and hands the value back to visitors as-is.
type Project interface {
	// Name uniquely identifies the project within a graph.
	Name() string

	// Type is one of the Type* constants.
	Type() string

	// Version is the version of the module the project was created from.
	Version() string

	// RootPath is the directory the project was loaded from.
	RootPath() string

	// IsFrameworkProject reports whether the project is an OpenUI5 or SAPUI5
	// framework library distributed through the package registry.
	IsFrameworkProject() bool

	// FrameworkName is the configured framework flavor ("OpenUI5" or "SAPUI5"), if any.
	FrameworkName() string

	// FrameworkVersion is the configured framework version, if any.
	FrameworkVersion() string

	// FrameworkDependencies lists the framework libraries the project references.
	FrameworkDependencies() []FrameworkDependency

	// IsDeprecated reports whether the project is marked as deprecated.
	IsDeprecated() bool

	// IsSapInternal reports whether the project is restricted to SAP internal use.
	IsSapInternal() bool

	// AllowSapInternal reports whether the project may depend on SAP internal projects.
	AllowSapInternal() bool
}

// FrameworkDependency is a reference from a project to a framework library.
type FrameworkDependency struct {
	// Name is the library name, e.g. "sap.m".
	Name string `json:"name"`

	// Optional dependencies are only honored when some other path needs the library.
	Optional bool `json:"optional,omitempty"`

	// Development dependencies are only honored for the root project.
	Development bool `json:"development,omitempty"`
}

// ExtensionKind is the closed set of extension types a graph may contain.
type ExtensionKind string

const (
	// KindTask is a custom build task.
	KindTask ExtensionKind = "task"

	// KindServerMiddleware is a custom development server middleware.
	KindServerMiddleware ExtensionKind = "server-middleware"

	// KindProjectShim contributes configuration, dependency or collection shims.
	// Project shims are consumed while building a graph and never stored in it.
	KindProjectShim ExtensionKind = "project-shim"
)

// Valid reports whether k is one of the known extension kinds.
func (k ExtensionKind) Valid() bool {
	switch k {
	case KindTask, KindServerMiddleware, KindProjectShim:
		return true
	default:
		return false
	}
}

// Extension is a named, non-buildable node stored next to the projects of a graph.
type Extension interface {
	Name() string
	Kind() ExtensionKind
}

// Visitor is called once per project during a traversal.
// dependencies holds the names of the project's direct required dependencies.
type Visitor func(ctx context.Context, project Project, dependencies []string) error

// Stats provides statistics about the graph.
type Stats struct {
	// TotalProjects is the number of projects in the graph.
	TotalProjects int `json:"total_projects"`

	// DirectDependencies is the number of required dependencies of the root.
	DirectDependencies int `json:"direct_dependencies"`

	// TransitiveDependencies is the number of projects reachable from the root
	// through required edges, minus the direct ones.
	TransitiveDependencies int `json:"transitive_dependencies"`

	// UnreachableProjects counts projects not reachable from the root through
	// required edges (typically targets of unresolved optional edges).
	UnreachableProjects int `json:"unreachable_projects"`

	// OptionalEdges is the number of optional edges still pending.
	OptionalEdges int `json:"optional_edges"`

	// Extensions is the number of extensions in the graph.
	Extensions int `json:"extensions"`

	// MaxDepth is the length of the longest required-edge chain from the root.
	MaxDepth int `json:"max_depth"`
}

// DependencyChain is a path of required edges between two projects.
type DependencyChain []string

// String renders the chain as "a -> b -> c".
func (c DependencyChain) String() string {
	if len(c) == 0 {
		return ""
	}
	result := c[0]
	for i := 1; i < len(c); i++ {
		result += " -> " + c[i]
	}
	return result
}

func describe(p Project) string {
	return fmt.Sprintf("%s@%s (%s)", p.Name(), p.Version(), p.Type())
}
