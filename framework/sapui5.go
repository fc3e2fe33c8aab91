package framework

import (
	"context"
	"fmt"
	"sync"

	"github.com/Masterminds/semver/v3"

	"github.com/albertocavalcante/go-ui5project/specification"
)

const (
	sapUI5MetadataPackage = "@sapui5/distribution-metadata"
	sapUI5MetadataFile    = "metadata.json"
)

var sapUI5 = flavor{
	name:            specification.FrameworkSAPUI5,
	versionsPackage: sapUI5MetadataPackage,
	minVersion:      semver.MustParse("1.76.0"),
}

// distributionMetadata is the content of metadata.json in
// @sapui5/distribution-metadata.
type distributionMetadata struct {
	Libraries map[string]struct {
		NpmPackageName       string   `json:"npmPackageName"`
		Version              string   `json:"version"`
		Dependencies         []string `json:"dependencies"`
		OptionalDependencies []string `json:"optionalDependencies"`
	} `json:"libraries"`
}

// SAPUI5Resolver resolves SAPUI5 libraries using the metadata published
// for every SAPUI5 version in @sapui5/distribution-metadata.
type SAPUI5Resolver struct {
	*baseResolver

	mu   sync.Mutex
	dist *distributionMetadata
}

var _ Resolver = (*SAPUI5Resolver)(nil)

// NewSAPUI5Resolver creates a resolver for SAPUI5 version opts.Version.
func NewSAPUI5Resolver(opts ResolverOptions) (*SAPUI5Resolver, error) {
	r := &SAPUI5Resolver{}
	base, err := newBaseResolver(sapUI5, opts, r.libraryMetadata)
	if err != nil {
		return nil, err
	}
	r.baseResolver = base
	return r, nil
}

// distribution loads metadata.json once. Failed loads are retried by the
// next caller.
func (r *SAPUI5Resolver) distribution(ctx context.Context) (*distributionMetadata, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.dist != nil {
		return r.dist, nil
	}
	var dist distributionMetadata
	if err := r.installer.ReadJSON(ctx, sapUI5MetadataPackage, r.version, sapUI5MetadataFile, &dist); err != nil {
		return nil, fmt.Errorf("failed to load SAPUI5 distribution metadata: %w", err)
	}
	r.dist = &dist
	return r.dist, nil
}

func (r *SAPUI5Resolver) libraryMetadata(ctx context.Context, library string) (*LibraryMetadata, error) {
	dist, err := r.distribution(ctx)
	if err != nil {
		return nil, err
	}
	lib, ok := dist.Libraries[library]
	if !ok {
		return nil, fmt.Errorf("%w: could not find library %q in SAPUI5 %s", ErrUnknownLibrary, library, r.version)
	}
	return &LibraryMetadata{
		Name:                 library,
		ID:                   lib.NpmPackageName,
		Version:              lib.Version,
		Dependencies:         lib.Dependencies,
		OptionalDependencies: lib.OptionalDependencies,
	}, nil
}
