package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"sync"
)

// PackageJSON is the subset of a package.json needed to walk dependencies.
type PackageJSON struct {
	Name                 string            `json:"name"`
	Version              string            `json:"version"`
	Dependencies         map[string]string `json:"dependencies,omitempty"`
	DevDependencies      map[string]string `json:"devDependencies,omitempty"`
	OptionalDependencies map[string]string `json:"optionalDependencies,omitempty"`
	PeerDependencies     map[string]string `json:"peerDependencies,omitempty"`
}

// NodePackageDependencies provides the dependency tree of an npm project by
// reading package.json files and resolving packages from node_modules
// directories the way Node.js does.
type NodePackageDependencies struct {
	cwd               string
	rootConfigPath    string
	rootConfiguration Configurations
	logger            *slog.Logger

	mu       sync.Mutex
	packages map[string]*PackageJSON
}

var _ NodeProvider = (*NodePackageDependencies)(nil)

// NodePackageOptions configures NodePackageDependencies.
type NodePackageOptions struct {
	// Cwd is the directory of the root project.
	Cwd string

	// RootConfigPath overrides the configuration file of the root project.
	RootConfigPath string

	// RootConfiguration replaces the configuration of the root project.
	RootConfiguration Configurations

	Logger *slog.Logger
}

// NewNodePackageDependencies creates a provider rooted at opts.Cwd.
func NewNodePackageDependencies(opts NodePackageOptions) (*NodePackageDependencies, error) {
	if opts.Cwd == "" {
		return nil, errors.New("failed to create npm dependency provider: missing parameter 'cwd'")
	}
	cwd, err := filepath.Abs(opts.Cwd)
	if err != nil {
		return nil, err
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &NodePackageDependencies{
		cwd:               cwd,
		rootConfigPath:    opts.RootConfigPath,
		rootConfiguration: opts.RootConfiguration,
		logger:            logger,
		packages:          make(map[string]*PackageJSON),
	}, nil
}

func (p *NodePackageDependencies) RootNode(context.Context) (*Node, error) {
	pkg, err := p.readPackage(p.cwd)
	if err != nil {
		return nil, fmt.Errorf("failed to locate root package.json in %s: %w", p.cwd, err)
	}
	return &Node{
		ID:            pkg.Name,
		Version:       pkg.Version,
		Path:          p.cwd,
		Configuration: p.rootConfiguration,
		ConfigPath:    p.rootConfigPath,
	}, nil
}

func (p *NodePackageDependencies) Dependencies(ctx context.Context, node *Node) ([]*Node, error) {
	pkg, err := p.readPackage(node.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to read package.json of module %s: %w", node.ID, err)
	}
	isRoot := node.Path == p.cwd

	type candidate struct {
		name     string
		optional bool
		peer     bool
	}
	var candidates []candidate
	seen := make(map[string]bool)
	add := func(deps map[string]string, optional, peer bool) {
		for _, name := range slices.Sorted(maps.Keys(deps)) {
			if seen[name] {
				continue
			}
			seen[name] = true
			candidates = append(candidates, candidate{name: name, optional: optional, peer: peer})
		}
	}
	add(pkg.Dependencies, false, false)
	if isRoot {
		add(pkg.DevDependencies, false, false)
	}
	add(pkg.OptionalDependencies, true, false)
	add(pkg.PeerDependencies, false, true)

	nodes := make([]*Node, 0, len(candidates))
	for _, c := range candidates {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		modulePath, err := resolveModulePath(node.Path, c.name)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve dependency %s of module %s: %w", c.name, node.ID, err)
		}
		if modulePath == "" {
			if c.optional || c.peer {
				p.logger.Debug("Skipping dependency that is not installed", "module", node.ID, "dependency", c.name)
				continue
			}
			return nil, fmt.Errorf("unable to locate module %s via resolve lookup from %s", c.name, node.Path)
		}
		depPkg, err := p.readPackage(modulePath)
		if err != nil {
			return nil, fmt.Errorf("failed to read package.json of dependency %s of module %s: %w", c.name, node.ID, err)
		}
		nodes = append(nodes, &Node{
			ID:       depPkg.Name,
			Version:  depPkg.Version,
			Path:     modulePath,
			Optional: c.optional,
		})
	}
	return nodes, nil
}

func (p *NodePackageDependencies) readPackage(dir string) (*PackageJSON, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if pkg, ok := p.packages[dir]; ok {
		return pkg, nil
	}
	pkg, err := ReadPackageJSON(dir)
	if err != nil {
		return nil, err
	}
	p.packages[dir] = pkg
	return pkg, nil
}

// ReadPackageJSON reads <dir>/package.json.
func ReadPackageJSON(dir string) (*PackageJSON, error) {
	data, err := os.ReadFile(filepath.Join(dir, "package.json"))
	if err != nil {
		return nil, err
	}
	var pkg PackageJSON
	if err := json.Unmarshal(data, &pkg); err != nil {
		return nil, fmt.Errorf("invalid package.json in %s: %w", dir, err)
	}
	if pkg.Name == "" {
		return nil, fmt.Errorf("invalid package.json in %s: missing name", dir)
	}
	return &pkg, nil
}

// resolveModulePath looks up node_modules/<name> in from and all of its parent
// directories. It returns the real path of the package, or "" if it is not
// installed.
func resolveModulePath(from, name string) (string, error) {
	dir := from
	for {
		if filepath.Base(dir) != "node_modules" {
			candidate := filepath.Join(dir, "node_modules", filepath.FromSlash(name))
			_, err := os.Stat(filepath.Join(candidate, "package.json"))
			if err == nil {
				return filepath.EvalSymlinks(candidate)
			}
			if !errors.Is(err, fs.ErrNotExist) {
				return "", err
			}
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", nil
		}
		dir = parent
	}
}
