package e2e

import (
	"archive/tar"
	"bytes"
	"crypto/sha512"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/require"

	"github.com/albertocavalcante/go-ui5project/framework/npm"
)

// npmRegistry is an in-process npm registry serving packuments and
// gzipped tarballs.
type npmRegistry struct {
	t      *testing.T
	server *httptest.Server

	mu        sync.RWMutex
	packs     map[string]*npm.Packument
	tarballs  map[string][]byte
	downloads atomic.Int32
}

func newNPMRegistry(t *testing.T) *npmRegistry {
	t.Helper()
	r := &npmRegistry{t: t, packs: map[string]*npm.Packument{}, tarballs: map[string][]byte{}}
	r.server = httptest.NewServer(http.HandlerFunc(r.serve))
	t.Cleanup(r.server.Close)
	return r
}

func (r *npmRegistry) URL() string { return r.server.URL }

// publish adds name@version with the given package.json fields and files.
func (r *npmRegistry) publish(manifest npm.Manifest, files map[string]string) {
	pkgJSON, err := json.Marshal(manifest)
	require.NoError(r.t, err)

	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)
	write := func(name, content string) {
		require.NoError(r.t, tw.WriteHeader(&tar.Header{
			Name:     "package/" + name,
			Mode:     0o644,
			Size:     int64(len(content)),
			Typeflag: tar.TypeReg,
		}))
		_, err := tw.Write([]byte(content))
		require.NoError(r.t, err)
	}
	write("package.json", string(pkgJSON))
	for name, content := range files {
		write(name, content)
	}
	require.NoError(r.t, tw.Close())
	require.NoError(r.t, gz.Close())
	tarball := buf.Bytes()
	sum := sha512.Sum512(tarball)

	key := manifest.Name + "@" + manifest.Version
	manifest.Dist = npm.Dist{
		Tarball:   r.server.URL + "/-/tarballs/" + key,
		Integrity: "sha512-" + base64.StdEncoding.EncodeToString(sum[:]),
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.tarballs[key] = tarball
	p, ok := r.packs[manifest.Name]
	if !ok {
		p = &npm.Packument{Name: manifest.Name, Versions: map[string]*npm.Manifest{}}
		r.packs[manifest.Name] = p
	}
	p.Versions[manifest.Version] = &manifest
}

// publishOpenUI5 publishes the library @openui5/<lib> at version.
func (r *npmRegistry) publishOpenUI5(lib, version string, deps []string, metadata string) {
	dependencies := map[string]string{}
	for _, d := range deps {
		dependencies["@openui5/"+d] = version
	}
	r.publish(npm.Manifest{Name: "@openui5/" + lib, Version: version, Dependencies: dependencies},
		map[string]string{"ui5.yaml": libraryYAML(lib, metadata)})
}

func libraryYAML(name, metadata string) string {
	return fmt.Sprintf("specVersion: \"3.0\"\ntype: library\nmetadata:\n  name: %s\n%s", name, metadata)
}

func (r *npmRegistry) serve(w http.ResponseWriter, req *http.Request) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if key, ok := strings.CutPrefix(req.URL.Path, "/-/tarballs/"); ok {
		data, found := r.tarballs[key]
		if !found {
			http.NotFound(w, req)
			return
		}
		r.downloads.Add(1)
		_, _ = w.Write(data)
		return
	}
	name := strings.Replace(strings.TrimPrefix(req.URL.EscapedPath(), "/"), "%2f", "/", 1)
	p, found := r.packs[name]
	if !found {
		http.NotFound(w, req)
		return
	}
	_ = json.NewEncoder(w).Encode(p)
}
