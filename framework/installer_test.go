package framework

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/albertocavalcante/go-ui5project/framework/npm"
)

// fakePackage is a package known to fakeInstaller.
type fakePackage struct {
	manifest *npm.Manifest
	files    map[string]string
}

// fakeInstaller serves packages from memory and installs them into a
// temporary directory.
type fakeInstaller struct {
	t   *testing.T
	dir string

	mu          sync.Mutex
	packages    map[string]*fakePackage // name@version
	versions    map[string][]string
	failInstall map[string]error
	installs    map[string]int
	readJSON    int
}

func newFakeInstaller(t *testing.T) *fakeInstaller {
	t.Helper()
	return &fakeInstaller{
		t:           t,
		dir:         t.TempDir(),
		packages:    map[string]*fakePackage{},
		versions:    map[string][]string{},
		failInstall: map[string]error{},
		installs:    map[string]int{},
	}
}

// libraryYAML is the ui5.yaml of a framework library.
func libraryYAML(name string, metadata string) string {
	return fmt.Sprintf("specVersion: \"3.0\"\ntype: library\nmetadata:\n  name: %s\n%s", name, metadata)
}

// publishOpenUI5 publishes @openui5/<lib> at version.
func (f *fakeInstaller) publishOpenUI5(lib, version string, deps, devDeps []string, metadata string) {
	toMap := func(libs []string) map[string]string {
		m := map[string]string{}
		for _, l := range libs {
			m["@openui5/"+l] = version
		}
		return m
	}
	pkg := "@openui5/" + lib
	f.packages[pkg+"@"+version] = &fakePackage{
		manifest: &npm.Manifest{Name: pkg, Version: version, Dependencies: toMap(deps), DevDependencies: toMap(devDeps)},
		files:    map[string]string{"ui5.yaml": libraryYAML(lib, metadata)},
	}
}

func (f *fakeInstaller) publish(name, version string, files map[string]string) {
	f.packages[name+"@"+version] = &fakePackage{
		manifest: &npm.Manifest{Name: name, Version: version},
		files:    files,
	}
}

func (f *fakeInstaller) installCount(name, version string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.installs[name+"@"+version]
}

func (f *fakeInstaller) InstallPackage(_ context.Context, name, version string) (*npm.Installation, error) {
	key := name + "@" + version
	if err := f.failInstall[key]; err != nil {
		return nil, err
	}
	pkg, ok := f.packages[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", npm.ErrPackageNotFound, key)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	path := filepath.Join(f.dir, filepath.FromSlash(name), version)
	if f.installs[key] == 0 {
		require.NoError(f.t, os.MkdirAll(path, 0o755))
		data, err := json.Marshal(pkg.manifest)
		require.NoError(f.t, err)
		require.NoError(f.t, os.WriteFile(filepath.Join(path, "package.json"), data, 0o644))
		for file, content := range pkg.files {
			require.NoError(f.t, os.WriteFile(filepath.Join(path, file), []byte(content), 0o644))
		}
	}
	f.installs[key]++
	return &npm.Installation{Name: name, Version: version, Path: path}, nil
}

func (f *fakeInstaller) FetchPackageManifest(_ context.Context, name, version string) (*npm.Manifest, error) {
	pkg, ok := f.packages[name+"@"+version]
	if !ok {
		return nil, fmt.Errorf("%w: %s@%s", npm.ErrPackageNotFound, name, version)
	}
	return pkg.manifest, nil
}

func (f *fakeInstaller) FetchPackageVersions(_ context.Context, name string) ([]string, error) {
	versions, ok := f.versions[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", npm.ErrPackageNotFound, name)
	}
	return versions, nil
}

func (f *fakeInstaller) ReadJSON(ctx context.Context, name, version, file string, v any) error {
	f.mu.Lock()
	f.readJSON++
	f.mu.Unlock()

	inst, err := f.InstallPackage(ctx, name, version)
	if err != nil {
		return err
	}
	data, err := os.ReadFile(filepath.Join(inst.Path, file))
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}

var _ Installer = (*fakeInstaller)(nil)
