package specification

import (
	"errors"
	"fmt"
	"strings"

	"github.com/albertocavalcante/go-ui5project/graph"
)

// Framework names.
const (
	FrameworkOpenUI5 = "OpenUI5"
	FrameworkSAPUI5  = "SAPUI5"
)

var frameworkScopes = []string{"@openui5/", "@sapui5/"}

// ErrMissingName is returned for documents without metadata.name.
var ErrMissingName = errors.New("missing metadata.name")

// Project is a project created from a configuration document.
// It implements graph.Project.
type Project struct {
	id      string
	name    string
	typ     string
	version string
	path    string

	framework        *Framework
	deprecated       bool
	sapInternal      bool
	allowSapInternal bool

	config *Configuration
}

var _ graph.Project = (*Project)(nil)

func newProject(cfg *Configuration, id, version, path string) (*Project, error) {
	switch cfg.Type {
	case graph.TypeApplication, graph.TypeLibrary, graph.TypeThemeLibrary, graph.TypeModule:
	case "":
		return nil, fmt.Errorf("missing project type for module %s", id)
	default:
		return nil, fmt.Errorf("unsupported project type %q for module %s", cfg.Type, id)
	}
	if cfg.Metadata.Name == "" {
		return nil, fmt.Errorf("invalid configuration of module %s: %w", id, ErrMissingName)
	}
	return &Project{
		id:               id,
		name:             cfg.Metadata.Name,
		typ:              cfg.Type,
		version:          version,
		path:             path,
		framework:        cfg.Framework,
		deprecated:       cfg.Metadata.Deprecated,
		sapInternal:      cfg.Metadata.SapInternal,
		allowSapInternal: cfg.Metadata.AllowSapInternal,
		config:           cfg,
	}, nil
}

// ID returns the id of the module the project was created from.
func (p *Project) ID() string { return p.id }

func (p *Project) Name() string     { return p.name }
func (p *Project) Type() string     { return p.typ }
func (p *Project) Version() string  { return p.version }
func (p *Project) RootPath() string { return p.path }

// Configuration returns the decoded configuration document.
func (p *Project) Configuration() *Configuration { return p.config }

// IsFrameworkProject reports whether the project is distributed as part of
// OpenUI5 or SAPUI5.
func (p *Project) IsFrameworkProject() bool {
	for _, scope := range frameworkScopes {
		if strings.HasPrefix(p.id, scope) {
			return true
		}
	}
	return false
}

func (p *Project) FrameworkName() string {
	if p.framework == nil {
		return ""
	}
	return p.framework.Name
}

func (p *Project) FrameworkVersion() string {
	if p.framework == nil {
		return ""
	}
	return p.framework.Version
}

func (p *Project) FrameworkDependencies() []graph.FrameworkDependency {
	if p.framework == nil {
		return nil
	}
	deps := make([]graph.FrameworkDependency, 0, len(p.framework.Libraries))
	for _, l := range p.framework.Libraries {
		deps = append(deps, graph.FrameworkDependency{Name: l.Name, Optional: l.Optional, Development: l.Development})
	}
	return deps
}

func (p *Project) IsDeprecated() bool     { return p.deprecated }
func (p *Project) IsSapInternal() bool    { return p.sapInternal }
func (p *Project) AllowSapInternal() bool { return p.allowSapInternal }
func (p *Project) String() string         { return p.name + "@" + p.version }
