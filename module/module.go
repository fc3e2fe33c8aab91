// Package module resolves a single dependency tree node into the project
// and extensions it declares.
package module

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"dario.cat/mergo"
	"gopkg.in/yaml.v3"

	"github.com/albertocavalcante/go-ui5project/graph"
	"github.com/albertocavalcante/go-ui5project/shim"
	"github.com/albertocavalcante/go-ui5project/specification"
)

const defaultConfigFile = "ui5.yaml"

// Options configures a Module.
type Options struct {
	ID      string
	Version string
	Path    string

	// ConfigPath points to the configuration file, absolute or relative to
	// Path. It defaults to ui5.yaml and must exist when set explicitly.
	ConfigPath string

	// Configuration supplies the configuration documents directly. When set,
	// no file is read.
	Configuration []map[string]any

	Shims  *shim.Collection
	Logger *slog.Logger
}

// Specifications is the result of resolving a module.
type Specifications struct {
	// Project is nil if the module does not contain a project.
	Project *specification.Project

	Extensions []graph.Extension
}

// Module is one module of a dependency tree.
// Its specifications are read at most once.
type Module struct {
	opts   Options
	logger *slog.Logger

	specs func() (*Specifications, error)
}

// New creates a module. ID, Version and Path are required.
func New(opts Options) (*Module, error) {
	switch {
	case opts.ID == "":
		return nil, errors.New("could not create module: missing or empty parameter 'id'")
	case opts.Version == "":
		return nil, fmt.Errorf("could not create module %s: missing or empty parameter 'version'", opts.ID)
	case opts.Path == "":
		return nil, fmt.Errorf("could not create module %s: missing or empty parameter 'path'", opts.ID)
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	m := &Module{opts: opts, logger: logger}
	m.specs = sync.OnceValues(m.resolve)
	return m, nil
}

func (m *Module) ID() string      { return m.opts.ID }
func (m *Module) Version() string { return m.opts.Version }
func (m *Module) Path() string    { return m.opts.Path }

// Specifications returns the project and the extensions of the module.
func (m *Module) Specifications() (*Specifications, error) {
	return m.specs()
}

func (m *Module) resolve() (*Specifications, error) {
	configs, err := m.configurations()
	if err != nil {
		return nil, err
	}
	configs, err = m.applyConfigurationShims(configs)
	if err != nil {
		return nil, err
	}

	specs := &Specifications{}
	for _, doc := range configs {
		project, ext, err := specification.NewFromConfiguration(doc, m.opts.ID, m.opts.Version, m.opts.Path)
		if err != nil {
			return nil, err
		}
		if project != nil {
			if specs.Project != nil {
				return nil, fmt.Errorf("invalid configuration for module %s: per module there must be no more than one configuration of kind 'project'", m.opts.ID)
			}
			m.logger.Debug("Module contains project", "module", m.opts.ID, "project", project.Name())
			specs.Project = project
			continue
		}
		m.logger.Debug("Module contains extension", "module", m.opts.ID, "extension", ext.Name(), "kind", ext.Kind())
		specs.Extensions = append(specs.Extensions, ext)
	}
	return specs, nil
}

func (m *Module) configurations() ([]map[string]any, error) {
	if len(m.opts.Configuration) > 0 {
		configs := make([]map[string]any, 0, len(m.opts.Configuration))
		for _, doc := range m.opts.Configuration {
			if doc != nil {
				configs = append(configs, deepCopy(doc))
			}
		}
		return configs, nil
	}

	configPath := m.opts.ConfigPath
	explicit := configPath != ""
	if !explicit {
		configPath = defaultConfigFile
	}
	if !filepath.IsAbs(configPath) {
		configPath = filepath.Join(m.opts.Path, configPath)
	}

	f, err := os.Open(configPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) && !explicit {
			m.logger.Debug("No configuration file found", "module", m.opts.ID, "path", configPath)
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read configuration for module %s: %w", m.opts.ID, err)
	}
	defer f.Close()

	configs, err := ReadDocuments(f)
	if err != nil {
		return nil, fmt.Errorf("failed to parse configuration for module %s at %s: %w", m.opts.ID, configPath, err)
	}
	return configs, nil
}

// ReadDocuments decodes all YAML documents of a stream. Empty documents are skipped.
func ReadDocuments(r io.Reader) ([]map[string]any, error) {
	var docs []map[string]any
	dec := yaml.NewDecoder(r)
	for i := 0; ; i++ {
		var doc map[string]any
		err := dec.Decode(&doc)
		if errors.Is(err, io.EOF) {
			return docs, nil
		}
		if err != nil {
			return nil, fmt.Errorf("document %d: %w", i, err)
		}
		if doc != nil {
			docs = append(docs, doc)
		}
	}
}

// applyConfigurationShims deep-merges every configuration shim targeting the
// module into its project document. A module without any configuration
// takes the first shim as its configuration.
func (m *Module) applyConfigurationShims(configs []map[string]any) ([]map[string]any, error) {
	if m.opts.Shims == nil {
		return configs, nil
	}
	entries := m.opts.Shims.ConfigurationShims(m.opts.ID)
	if len(entries) == 0 {
		return configs, nil
	}
	m.logger.Debug(fmt.Sprintf("Applying %d configuration shims to module %s", len(entries), m.opts.ID))

	for _, entry := range entries {
		m.logger.Debug(fmt.Sprintf("Applying project shim %s for module %s...", entry.Contributor, m.opts.ID))
		payload := deepCopy(entry.Payload)

		target := projectDocument(configs)
		if target < 0 {
			configs = append(configs, payload)
			continue
		}
		if err := mergo.Merge(&configs[target], payload, mergo.WithOverride); err != nil {
			return nil, fmt.Errorf("failed to apply project shim %s to module %s: %w", entry.Contributor, m.opts.ID, err)
		}
	}
	return configs, nil
}

func projectDocument(configs []map[string]any) int {
	for i, doc := range configs {
		kind, _ := doc["kind"].(string)
		if kind == "" || kind == specification.KindProject {
			return i
		}
	}
	return -1
}

func deepCopy(src map[string]any) map[string]any {
	if src == nil {
		return nil
	}
	dst := make(map[string]any, len(src))
	for k, v := range src {
		dst[k] = deepCopyValue(v)
	}
	return dst
}

func deepCopyValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return deepCopy(t)
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = deepCopyValue(e)
		}
		return out
	default:
		return v
	}
}
