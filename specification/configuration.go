// Package specification turns raw ui5.yaml configuration documents into
// projects and extensions.
package specification

import (
	"fmt"

	"github.com/go-viper/mapstructure/v2"
)

// Document kinds.
const (
	KindProject   = "project"
	KindExtension = "extension"
)

// Configuration is the typed view of one configuration document.
// Fields not needed for graph resolution are ignored.
type Configuration struct {
	SpecVersion string     `mapstructure:"specVersion"`
	Kind        string     `mapstructure:"kind"`
	Type        string     `mapstructure:"type"`
	Metadata    Metadata   `mapstructure:"metadata"`
	Framework   *Framework `mapstructure:"framework"`
	Shims       *Shims     `mapstructure:"shims"`
}

// Metadata is the metadata section of a configuration document.
type Metadata struct {
	Name             string `mapstructure:"name"`
	Deprecated       bool   `mapstructure:"deprecated"`
	SapInternal      bool   `mapstructure:"sapInternal"`
	AllowSapInternal bool   `mapstructure:"allowSapInternal"`
}

// Framework is the framework section of a project configuration.
type Framework struct {
	Name      string             `mapstructure:"name"`
	Version   string             `mapstructure:"version"`
	Libraries []FrameworkLibrary `mapstructure:"libraries"`
}

// FrameworkLibrary is one entry of framework.libraries.
type FrameworkLibrary struct {
	Name        string `mapstructure:"name"`
	Optional    bool   `mapstructure:"optional"`
	Development bool   `mapstructure:"development"`
}

// Shims is the payload of a project-shim extension, keyed by module id.
type Shims struct {
	Configurations map[string]map[string]any `mapstructure:"configurations"`
	Dependencies   map[string][]string       `mapstructure:"dependencies"`
	Collections    map[string]CollectionShim `mapstructure:"collections"`
}

// CollectionShim maps the ids of the modules contained in a collection to
// their paths relative to the collection.
type CollectionShim struct {
	Modules map[string]string `mapstructure:"modules"`
}

// Decode converts a raw document into a Configuration. Scalars are converted
// leniently since YAML authors rarely quote versions.
func Decode(doc map[string]any) (*Configuration, error) {
	var cfg Configuration
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &cfg,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return nil, err
	}
	if err := decoder.Decode(doc); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if cfg.Kind == "" {
		cfg.Kind = KindProject
	}
	return &cfg, nil
}
