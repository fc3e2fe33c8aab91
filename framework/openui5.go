package framework

import (
	"context"
	"maps"
	"slices"
	"strings"

	"github.com/Masterminds/semver/v3"

	"github.com/albertocavalcante/go-ui5project/specification"
)

const openUI5Scope = "@openui5/"

var openUI5 = flavor{
	name:            specification.FrameworkOpenUI5,
	versionsPackage: openUI5Scope + "sap.ui.core",
	minVersion:      semver.MustParse("1.52.5"),
}

// OpenUI5Resolver resolves OpenUI5 libraries. Every library is published as
// the npm package @openui5/<library> and declares its dependencies in its
// package.json.
type OpenUI5Resolver struct {
	*baseResolver
}

var _ Resolver = (*OpenUI5Resolver)(nil)

// NewOpenUI5Resolver creates a resolver for OpenUI5 version opts.Version.
func NewOpenUI5Resolver(opts ResolverOptions) (*OpenUI5Resolver, error) {
	r := &OpenUI5Resolver{}
	base, err := newBaseResolver(openUI5, opts, r.libraryMetadata)
	if err != nil {
		return nil, err
	}
	r.baseResolver = base
	return r, nil
}

func (r *OpenUI5Resolver) libraryMetadata(ctx context.Context, library string) (*LibraryMetadata, error) {
	pkg := openUI5Scope + library
	m, err := r.installer.FetchPackageManifest(ctx, pkg, r.version)
	if err != nil {
		return nil, err
	}
	return &LibraryMetadata{
		Name:                 library,
		ID:                   pkg,
		Version:              r.version,
		Dependencies:         scopedLibraries(m.Dependencies),
		OptionalDependencies: scopedLibraries(m.DevDependencies),
	}, nil
}

// scopedLibraries returns the sorted library names of the @openui5 packages
// in deps.
func scopedLibraries(deps map[string]string) []string {
	var libs []string
	for _, name := range slices.Sorted(maps.Keys(deps)) {
		if lib, ok := strings.CutPrefix(name, openUI5Scope); ok {
			libs = append(libs, lib)
		}
	}
	return libs
}
