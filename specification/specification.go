package specification

import (
	"fmt"

	"github.com/albertocavalcante/go-ui5project/graph"
)

// NewFromConfiguration creates the project or the extension described by doc.
// Exactly one of the returned values is non-nil on success.
//
// id, version and path describe the module the document belongs to.
func NewFromConfiguration(doc map[string]any, id, version, path string) (*Project, graph.Extension, error) {
	cfg, err := Decode(doc)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read configuration of module %s: %w", id, err)
	}
	switch cfg.Kind {
	case KindProject:
		p, err := newProject(cfg, id, version, path)
		if err != nil {
			return nil, nil, err
		}
		return p, nil, nil
	case KindExtension:
		e, err := newExtension(cfg, id, version, path)
		if err != nil {
			return nil, nil, err
		}
		return nil, e, nil
	default:
		return nil, nil, fmt.Errorf("unknown kind %q in configuration of module %s", cfg.Kind, id)
	}
}
