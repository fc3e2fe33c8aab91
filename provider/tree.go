package provider

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"sigs.k8s.io/yaml"
)

// DefaultStaticFile is the static dependency definition looked up by default.
const DefaultStaticFile = "projectDependencies.yaml"

// DependencyTree provides a dependency tree that is fully known upfront.
type DependencyTree struct {
	root *Node
}

var _ NodeProvider = (*DependencyTree)(nil)

// NewDependencyTree wraps a tree of nodes.
func NewDependencyTree(root *Node) (*DependencyTree, error) {
	if root == nil {
		return nil, errors.New("failed to create dependency tree provider: missing root node")
	}
	return &DependencyTree{root: root}, nil
}

func (t *DependencyTree) RootNode(context.Context) (*Node, error) {
	return t.root, nil
}

func (t *DependencyTree) Dependencies(_ context.Context, node *Node) ([]*Node, error) {
	return node.Dependencies, nil
}

// LoadDependencyTree reads a static dependency definition in YAML or JSON.
// Relative paths in the file are resolved against the directory containing it.
func LoadDependencyTree(path string) (*DependencyTree, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read dependency tree: %w", err)
	}
	var root Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("failed to parse dependency tree %s: %w", path, err)
	}
	absFile, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	resolvePaths(filepath.Dir(absFile), &root)
	return NewDependencyTree(&root)
}

func resolvePaths(base string, node *Node) {
	if node.Path != "" && !filepath.IsAbs(node.Path) {
		node.Path = filepath.Join(base, node.Path)
	}
	for _, dep := range node.Dependencies {
		resolvePaths(base, dep)
	}
}
