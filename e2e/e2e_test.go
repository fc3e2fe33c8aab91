package e2e

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ui5project "github.com/albertocavalcante/go-ui5project"
	"github.com/albertocavalcante/go-ui5project/framework/npm"
	"github.com/albertocavalcante/go-ui5project/graph"
	"github.com/albertocavalcante/go-ui5project/provider"
)

const appYAML = `specVersion: "3.0"
type: application
metadata:
  name: my.app
framework:
  name: OpenUI5
  version: 1.120.0
  libraries:
    - name: sap.m
    - name: themelib_sap_horizon
      optional: true
`

const libYAML = `specVersion: "3.0"
type: library
metadata:
  name: my.lib
framework:
  name: OpenUI5
  libraries:
    - name: sap.ui.layout
    - name: sap.ui.unified
      optional: true
    - name: sap.ui.testrecorder
      development: true
`

// createProject writes an npm project using my-lib from node_modules.
func createProject(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	writeJSON(t, filepath.Join(dir, "package.json"), provider.PackageJSON{
		Name:         "my-app",
		Version:      "1.0.0",
		Dependencies: map[string]string{"my-lib": "^1.0.0"},
	})
	writeText(t, filepath.Join(dir, "ui5.yaml"), appYAML)

	libDir := filepath.Join(dir, "node_modules", "my-lib")
	writeJSON(t, filepath.Join(libDir, "package.json"), provider.PackageJSON{Name: "my-lib", Version: "1.0.0"})
	writeText(t, filepath.Join(libDir, "ui5.yaml"), libYAML)
	return dir
}

func writeText(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func writeJSON(t *testing.T, path string, v any) {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	writeText(t, path, string(data))
}

// publishOpenUI5Release publishes the libraries used by createProject.
func publishOpenUI5Release(reg *npmRegistry, version string) {
	reg.publishOpenUI5("sap.ui.core", version, nil, "")
	reg.publishOpenUI5("sap.m", version, []string{"sap.ui.core"}, "")
	reg.publishOpenUI5("sap.ui.layout", version, []string{"sap.ui.core"}, "")
	reg.publishOpenUI5("themelib_sap_horizon", version, []string{"sap.ui.core"}, "")
}

func dependencies(t *testing.T, g *graph.ProjectGraph, name string) []string {
	t.Helper()
	deps, err := g.Dependencies(name)
	require.NoError(t, err)
	return deps
}

func TestGraphFromPackageDependencies_OpenUI5(t *testing.T) {
	reg := newNPMRegistry(t)
	publishOpenUI5Release(reg, "1.120.0")
	dataDir := t.TempDir()
	cwd := createProject(t)

	metrics := npm.NewMetrics()
	promReg := prometheus.NewRegistry()
	metrics.MustRegister(promReg)

	opts := []ui5project.Option{
		ui5project.WithCwd(cwd),
		ui5project.WithUI5DataDir(dataDir),
		ui5project.WithRegistry(reg.URL()),
		ui5project.WithMetrics(metrics),
	}
	g, err := ui5project.GraphFromPackageDependencies(context.Background(), opts...)
	require.NoError(t, err)

	assert.Equal(t, []string{"my.app", "my.lib", "sap.m", "sap.ui.core", "sap.ui.layout", "themelib_sap_horizon"}, g.ProjectNames())
	assert.Equal(t, []string{"my.lib", "sap.m", "themelib_sap_horizon"}, dependencies(t, g, "my.app"))
	assert.Equal(t, []string{"sap.ui.layout"}, dependencies(t, g, "my.lib"))
	assert.Equal(t, []string{"sap.ui.core"}, dependencies(t, g, "sap.m"))
	assert.False(t, g.HasUnresolvedOptionalDependencies())

	core, ok := g.Project("sap.ui.core")
	require.True(t, ok)
	assert.True(t, core.IsFrameworkProject())
	assert.Equal(t, "1.120.0", core.Version())
	assert.FileExists(t, filepath.Join(core.RootPath(), "package.json"))
	assert.True(t, strings.HasPrefix(core.RootPath(), dataDir), "framework packages are installed in the data directory")
	assert.Equal(t, int32(4), reg.downloads.Load())

	// a second run reuses the installed packages
	_, err = ui5project.GraphFromPackageDependencies(context.Background(), opts...)
	require.NoError(t, err)
	assert.Equal(t, int32(4), reg.downloads.Load())

	expected := `
# HELP ui5_framework_package_installs_total Framework package install requests by result.
# TYPE ui5_framework_package_installs_total counter
ui5_framework_package_installs_total{result="cached"} 4
ui5_framework_package_installs_total{result="installed"} 4
`
	require.NoError(t, testutil.GatherAndCompare(promReg, strings.NewReader(expected), "ui5_framework_package_installs_total"))
}

func TestGraphFromPackageDependencies_VersionOverride(t *testing.T) {
	reg := newNPMRegistry(t)
	publishOpenUI5Release(reg, "1.120.0")
	publishOpenUI5Release(reg, "1.120.4")
	publishOpenUI5Release(reg, "1.121.0")

	g, err := ui5project.GraphFromPackageDependencies(context.Background(),
		ui5project.WithCwd(createProject(t)),
		ui5project.WithUI5DataDir(t.TempDir()),
		ui5project.WithRegistry(reg.URL()),
		ui5project.WithVersionOverride("1.120"),
	)
	require.NoError(t, err)

	sapM, ok := g.Project("sap.m")
	require.True(t, ok)
	assert.Equal(t, "1.120.4", sapM.Version())
}

func TestGraphFromObject_SAPUI5(t *testing.T) {
	reg := newNPMRegistry(t)
	metadata := map[string]any{
		"libraries": map[string]any{
			"sap.ui.core": map[string]any{"npmPackageName": "@openui5/sap.ui.core", "version": "1.120.1"},
			"sap.m": map[string]any{
				"npmPackageName": "@openui5/sap.m",
				"version":        "1.120.1",
				"dependencies":   []string{"sap.ui.core"},
			},
			"sap.ushell": map[string]any{
				"npmPackageName": "@sapui5/sap.ushell",
				"version":        "1.120.3",
				"dependencies":   []string{"sap.m"},
			},
		},
	}
	data, err := json.Marshal(metadata)
	require.NoError(t, err)
	reg.publish(npm.Manifest{Name: "@sapui5/distribution-metadata", Version: "1.120.5"}, map[string]string{"metadata.json": string(data)})
	reg.publishOpenUI5("sap.ui.core", "1.120.1", nil, "")
	reg.publishOpenUI5("sap.m", "1.120.1", []string{"sap.ui.core"}, "")
	reg.publish(npm.Manifest{Name: "@sapui5/sap.ushell", Version: "1.120.3"},
		map[string]string{"ui5.yaml": libraryYAML("sap.ushell", "  sapInternal: true\n")})

	root := &provider.Node{
		ID:      "my-app",
		Version: "1.0.0",
		Path:    t.TempDir(),
		Configuration: provider.Configurations{{
			"specVersion": "3.0",
			"type":        "application",
			"metadata":    map[string]any{"name": "my.app"},
			"framework": map[string]any{
				"name":      "SAPUI5",
				"version":   "1.120.5",
				"libraries": []any{map[string]any{"name": "sap.ushell"}},
			},
		}},
	}

	g, err := ui5project.GraphFromObject(context.Background(), root,
		ui5project.WithUI5DataDir(t.TempDir()),
		ui5project.WithRegistry(reg.URL()),
		ui5project.WithCache(npm.NewMemoryCache()),
	)
	require.NoError(t, err)
	assert.Equal(t, []string{"my.app", "sap.m", "sap.ui.core", "sap.ushell"}, g.ProjectNames())
	assert.Equal(t, []string{"sap.ushell"}, dependencies(t, g, "my.app"))
	assert.Equal(t, []string{"sap.m"}, dependencies(t, g, "sap.ushell"))

	ushell, ok := g.Project("sap.ushell")
	require.True(t, ok)
	assert.Equal(t, "1.120.3", ushell.Version())
	assert.True(t, ushell.IsSapInternal())
}

func TestGraphFromStaticFile_WithoutFramework(t *testing.T) {
	dir := t.TempDir()
	writeText(t, filepath.Join(dir, "app", "ui5.yaml"), appYAML)
	writeText(t, filepath.Join(dir, provider.DefaultStaticFile), `id: my-app
version: 1.0.0
path: ./app
`)

	g, err := ui5project.GraphFromStaticFile(context.Background(), "", ui5project.WithCwd(dir), ui5project.WithoutFrameworkResolution())
	require.NoError(t, err)
	assert.Equal(t, []string{"my.app"}, g.ProjectNames())

	root, err := g.Root()
	require.NoError(t, err)
	assert.Equal(t, "OpenUI5", root.FrameworkName())
	assert.Equal(t, "1.120.0", root.FrameworkVersion())
}

func TestFrameworkVersions(t *testing.T) {
	reg := newNPMRegistry(t)
	for _, v := range []string{"1.44.0", "1.96.0", "1.120.0", "1.120.4"} {
		reg.publishOpenUI5("sap.ui.core", v, nil, "")
	}
	opts := []ui5project.Option{
		ui5project.WithUI5DataDir(t.TempDir()),
		ui5project.WithRegistry(reg.URL()),
	}

	versions, err := ui5project.FrameworkVersions(context.Background(), "OpenUI5", opts...)
	require.NoError(t, err)
	assert.Equal(t, []string{"1.96.0", "1.120.0", "1.120.4"}, versions)

	version, err := ui5project.ResolveFrameworkVersion(context.Background(), "OpenUI5", "latest", opts...)
	require.NoError(t, err)
	assert.Equal(t, "1.120.4", version)

	_, err = ui5project.ResolveFrameworkVersion(context.Background(), "SAPUI5", "latest", opts...)
	require.ErrorIs(t, err, ui5project.ErrPackageNotFound)
}
