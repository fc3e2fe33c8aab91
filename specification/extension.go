package specification

import (
	"fmt"

	"github.com/albertocavalcante/go-ui5project/graph"
)

// Extension is a task or server-middleware extension.
type Extension struct {
	id      string
	name    string
	kind    graph.ExtensionKind
	version string
	path    string
}

var _ graph.Extension = (*Extension)(nil)

func (e *Extension) Name() string              { return e.name }
func (e *Extension) Kind() graph.ExtensionKind { return e.kind }

// ID returns the id of the module the extension was created from.
func (e *Extension) ID() string { return e.id }

func (e *Extension) Version() string  { return e.version }
func (e *Extension) RootPath() string { return e.path }

// ProjectShim is a project-shim extension. It is never added to a graph;
// the graph builder feeds it into a shim collection instead.
type ProjectShim struct {
	Extension
	shims Shims
}

// Shims returns the shim payload.
func (s *ProjectShim) Shims() Shims { return s.shims }

// UnknownExtension is an extension with a type this package does not know.
// Its Kind is the raw type value, so callers can reject it with a precise
// message.
type UnknownExtension struct {
	Extension
}

func newExtension(cfg *Configuration, id, version, path string) (graph.Extension, error) {
	if cfg.Metadata.Name == "" {
		return nil, fmt.Errorf("invalid configuration of module %s: %w", id, ErrMissingName)
	}
	base := Extension{
		id:      id,
		name:    cfg.Metadata.Name,
		kind:    graph.ExtensionKind(cfg.Type),
		version: version,
		path:    path,
	}
	switch base.kind {
	case graph.KindTask, graph.KindServerMiddleware:
		return &base, nil
	case graph.KindProjectShim:
		s := &ProjectShim{Extension: base}
		if cfg.Shims != nil {
			s.shims = *cfg.Shims
		}
		return s, nil
	default:
		return &UnknownExtension{Extension: base}, nil
	}
}
