// Package provider supplies the dependency trees a project graph is built from.
package provider

import (
	"context"
	"encoding/json"
	"fmt"
)

// NodeProvider enumerates a dependency tree.
type NodeProvider interface {
	// RootNode returns the node of the root project.
	RootNode(ctx context.Context) (*Node, error)

	// Dependencies returns the direct dependencies of a node.
	Dependencies(ctx context.Context, node *Node) ([]*Node, error)
}

// Node is one module of a dependency tree. Nodes are identified by ID, so
// the same module may be returned several times.
type Node struct {
	ID      string `json:"id"`
	Version string `json:"version"`
	Path    string `json:"path"`

	// Optional marks the edge from the parent to this node as optional.
	Optional bool `json:"optional,omitempty"`

	// Configuration replaces the module's ui5.yaml when set.
	Configuration Configurations `json:"configuration,omitempty"`
	ConfigPath    string         `json:"configPath,omitempty"`

	Dependencies []*Node `json:"dependencies,omitempty"`

	// SpecVersion and Metadata are only set by trees still using the legacy
	// node format, which is rejected.
	SpecVersion string         `json:"specVersion,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

// Configurations holds one or more configuration documents. It decodes
// from a single object as well as from a list of objects.
type Configurations []map[string]any

func (c *Configurations) UnmarshalJSON(data []byte) error {
	var list []map[string]any
	if err := json.Unmarshal(data, &list); err == nil {
		*c = list
		return nil
	}
	var single map[string]any
	if err := json.Unmarshal(data, &single); err != nil {
		return fmt.Errorf("configuration must be an object or a list of objects: %w", err)
	}
	if single == nil {
		*c = nil
		return nil
	}
	*c = Configurations{single}
	return nil
}

// String renders the node as "id@version".
func (n *Node) String() string {
	return n.ID + "@" + n.Version
}
