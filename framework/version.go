package framework

import (
	"context"
	"fmt"
	"slices"

	"github.com/Masterminds/semver/v3"

	"github.com/albertocavalcante/go-ui5project/specification"
)

// versionSpec parses a framework version specifier. "latest" selects the
// highest release, exact versions select themselves and anything else must be
// a semver range such as "1.120" or "^1.120.0".
func versionSpec(spec string) (*semver.Constraints, *semver.Version, error) {
	invalid := fmt.Errorf("framework version specifier %q is incorrect or not supported", spec)
	switch spec {
	case "":
		return nil, nil, invalid
	case "latest":
		c, err := semver.NewConstraint("*")
		return c, nil, err
	}
	if v, err := semver.StrictNewVersion(spec); err == nil {
		c, err := semver.NewConstraint("=" + spec)
		return c, v, err
	}
	c, err := semver.NewConstraint(spec)
	if err != nil {
		return nil, nil, invalid
	}
	return c, nil, nil
}

// resolveVersion picks the highest of versions satisfying spec.
func resolveVersion(ctx context.Context, installer Installer, f flavor, spec string) (string, error) {
	constraint, exact, err := versionSpec(spec)
	if err != nil {
		return "", err
	}
	versions, err := installer.FetchPackageVersions(ctx, f.versionsPackage)
	if err != nil {
		return "", fmt.Errorf("failed to list %s versions: %w", f.name, err)
	}

	for _, raw := range slices.Backward(versions) {
		v, err := semver.NewVersion(raw)
		if err != nil {
			continue
		}
		if constraint.Check(v) {
			return v.Original(), nil
		}
	}

	if exact != nil && exact.LessThan(f.minVersion) {
		return "", fmt.Errorf("could not resolve framework version %s. Note that %s framework libraries can only be "+
			"consumed by the UI5 Tooling starting with %s v%s", spec, f.name, f.name, f.minVersion)
	}
	return "", fmt.Errorf("could not resolve framework version %s. "+
		"Make sure the version is valid and available in the configured registry", spec)
}

// AvailableVersions lists the versions of the framework that can be
// consumed, in ascending order. Versions published before the minimum
// supported version are left out.
func AvailableVersions(ctx context.Context, installer Installer, frameworkName string) ([]string, error) {
	var f flavor
	switch frameworkName {
	case specification.FrameworkOpenUI5:
		f = openUI5
	case specification.FrameworkSAPUI5:
		f = sapUI5
	default:
		return nil, fmt.Errorf("unknown framework %q", frameworkName)
	}
	versions, err := installer.FetchPackageVersions(ctx, f.versionsPackage)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s versions: %w", f.name, err)
	}
	available := make([]string, 0, len(versions))
	for _, raw := range versions {
		v, err := semver.NewVersion(raw)
		if err != nil || v.LessThan(f.minVersion) {
			continue
		}
		available = append(available, raw)
	}
	return available, nil
}
