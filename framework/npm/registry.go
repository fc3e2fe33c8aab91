package npm

import (
	"bytes"
	"context"
	"crypto/sha1" //nolint:gosec // npm publishes sha1 shasums for older packages
	"crypto/sha512"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"hash"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/Masterminds/semver/v3"
)

// DefaultRegistryURL is the public npm registry.
const DefaultRegistryURL = "https://registry.npmjs.org"

// Client configuration defaults.
const (
	DefaultMaxIdleConns        = 50
	DefaultMaxIdleConnsPerHost = 20
	DefaultIdleConnTimeout     = 90 * time.Second
	DefaultRequestTimeout      = 15 * time.Second
)

// Packument is the registry document describing every published version of
// a package.
type Packument struct {
	Name     string               `json:"name"`
	DistTags map[string]string    `json:"dist-tags,omitempty"`
	Versions map[string]*Manifest `json:"versions"`
}

// Manifest is the package.json of one published version.
type Manifest struct {
	Name                 string            `json:"name"`
	Version              string            `json:"version"`
	Dependencies         map[string]string `json:"dependencies,omitempty"`
	DevDependencies      map[string]string `json:"devDependencies,omitempty"`
	OptionalDependencies map[string]string `json:"optionalDependencies,omitempty"`
	Dist                 Dist              `json:"dist"`
}

// Dist locates the tarball of a published version.
type Dist struct {
	Tarball   string `json:"tarball,omitempty"`
	Shasum    string `json:"shasum,omitempty"`
	Integrity string `json:"integrity,omitempty"`
}

// Registry fetches packages from an npm registry.
type Registry struct {
	baseURL string
	client  *http.Client
	cache   ManifestCache
	logger  *slog.Logger
	metrics *Metrics

	packuments sync.Map // map[string]*Packument keyed by package name
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) RegistryOption {
	return func(r *Registry) {
		if client != nil {
			r.client = client
		}
	}
}

// WithTimeout sets the HTTP request timeout.
// Zero or negative values fall back to DefaultRequestTimeout.
func WithTimeout(timeout time.Duration) RegistryOption {
	return func(r *Registry) {
		if timeout > 0 {
			r.client.Timeout = timeout
		} else {
			r.client.Timeout = DefaultRequestTimeout
		}
	}
}

// WithCache sets a persistent cache for version manifests.
func WithCache(cache ManifestCache) RegistryOption {
	return func(r *Registry) {
		if cache != nil {
			r.cache = cache
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) RegistryOption {
	return func(r *Registry) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithMetrics records registry requests in m.
func WithMetrics(m *Metrics) RegistryOption {
	return func(r *Registry) {
		r.metrics = m
	}
}

// NewRegistry creates a client for the registry at baseURL. An empty baseURL
// selects DefaultRegistryURL.
func NewRegistry(baseURL string, opts ...RegistryOption) *Registry {
	if baseURL == "" {
		baseURL = DefaultRegistryURL
	}
	transport := &http.Transport{
		MaxIdleConns:        DefaultMaxIdleConns,
		MaxIdleConnsPerHost: DefaultMaxIdleConnsPerHost,
		IdleConnTimeout:     DefaultIdleConnTimeout,
	}
	r := &Registry{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		client: &http.Client{
			Timeout:   DefaultRequestTimeout,
			Transport: transport,
		},
		cache:  NoopCache{},
		logger: slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// BaseURL returns the registry base URL.
func (r *Registry) BaseURL() string {
	return r.baseURL
}

// Packument fetches the document listing all versions of a package.
// Results are cached by package name.
func (r *Registry) Packument(ctx context.Context, name string) (*Packument, error) {
	if cached, ok := r.packuments.Load(name); ok {
		return cached.(*Packument), nil
	}

	u := r.baseURL + "/" + escapePackageName(name)
	data, err := r.fetch(ctx, "packument", name, "", u)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch package information for %s: %w", name, err)
	}

	var p Packument
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("failed to parse package information for %s: %w", name, err)
	}

	actual, _ := r.packuments.LoadOrStore(name, &p)
	return actual.(*Packument), nil
}

// Manifest returns the manifest of one published version.
func (r *Registry) Manifest(ctx context.Context, name, version string) (*Manifest, error) {
	data, ok, err := r.cache.Get(ctx, name, version)
	if err != nil {
		r.logger.Debug("Manifest cache lookup failed", "package", name, "version", version, "error", err)
	}
	if ok {
		var m Manifest
		if err := json.Unmarshal(data, &m); err == nil {
			return &m, nil
		}
		r.logger.Debug("Ignoring unreadable cached manifest", "package", name, "version", version)
	}

	p, err := r.Packument(ctx, name)
	if err != nil {
		return nil, err
	}
	m, ok := p.Versions[version]
	if !ok || m == nil {
		return nil, fmt.Errorf("%w: %s@%s", ErrVersionNotFound, name, version)
	}

	if data, err := json.Marshal(m); err == nil {
		if err := r.cache.Put(ctx, name, version, data); err != nil {
			r.logger.Debug("Failed to cache manifest", "package", name, "version", version, "error", err)
		}
	}
	return m, nil
}

// Versions lists the published semver versions of a package in ascending
// order. Entries that are not valid semver are skipped.
func (r *Registry) Versions(ctx context.Context, name string) ([]string, error) {
	p, err := r.Packument(ctx, name)
	if err != nil {
		return nil, err
	}
	parsed := make([]*semver.Version, 0, len(p.Versions))
	for v := range p.Versions {
		sv, err := semver.StrictNewVersion(v)
		if err != nil {
			continue
		}
		parsed = append(parsed, sv)
	}
	slices.SortFunc(parsed, func(a, b *semver.Version) int { return a.Compare(b) })

	versions := make([]string, len(parsed))
	for i, v := range parsed {
		versions[i] = v.Original()
	}
	return versions, nil
}

// Extract downloads the tarball of name@version, verifies it against the
// published checksum and unpacks it into dest.
func (r *Registry) Extract(ctx context.Context, name, version, dest string) error {
	m, err := r.Manifest(ctx, name, version)
	if err != nil {
		return err
	}
	if m.Dist.Tarball == "" {
		return fmt.Errorf("no tarball published for %s@%s", name, version)
	}

	data, err := r.fetch(ctx, "tarball", name, version, m.Dist.Tarball)
	if err != nil {
		return fmt.Errorf("failed to download %s@%s: %w", name, version, err)
	}
	if err := verifyIntegrity(data, m.Dist); err != nil {
		return fmt.Errorf("%s@%s: %w", name, version, err)
	}
	if err := extractTarball(bytes.NewReader(data), dest); err != nil {
		return fmt.Errorf("failed to extract %s@%s: %w", name, version, err)
	}
	return nil
}

// ClearCache drops all cached packuments.
func (r *Registry) ClearCache() {
	r.packuments.Clear()
}

// fetch performs an HTTP GET and returns the response body.
func (r *Registry) fetch(ctx context.Context, kind, name, version, u string) (data []byte, err error) {
	defer func() { r.metrics.ObserveRequest(kind, err) }()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, http.NoBody)
	if err != nil {
		return nil, err
	}
	if kind == "packument" {
		req.Header.Set("Accept", "application/json")
	}

	r.logger.Debug("Requesting", "kind", kind, "url", u)
	resp, err := r.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, &RegistryError{StatusCode: resp.StatusCode, Package: name, Version: version, URL: u}
	}

	return io.ReadAll(resp.Body)
}

// escapePackageName encodes a package name for use as a registry path.
// Scoped names keep their leading "@" and escape the separating slash.
func escapePackageName(name string) string {
	if scope, pkg, ok := strings.Cut(name, "/"); ok && strings.HasPrefix(scope, "@") {
		return "@" + url.PathEscape(scope[1:]) + "%2f" + url.PathEscape(pkg)
	}
	return url.PathEscape(name)
}

// verifyIntegrity checks data against the strongest checksum in dist.
// Subresource integrity strings with sha512 take precedence over the sha1
// shasum. Without any checksum the data is accepted.
func verifyIntegrity(data []byte, dist Dist) error {
	for _, entry := range strings.Fields(dist.Integrity) {
		algo, digest, ok := strings.Cut(entry, "-")
		if !ok {
			continue
		}
		var h hash.Hash
		switch algo {
		case "sha512":
			h = sha512.New()
		case "sha1":
			h = sha1.New() //nolint:gosec
		default:
			continue
		}
		h.Write(data)
		if base64.StdEncoding.EncodeToString(h.Sum(nil)) != digest {
			return fmt.Errorf("%w: %s digest mismatch", ErrIntegrity, algo)
		}
		return nil
	}
	if dist.Shasum != "" {
		sum := sha1.Sum(data) //nolint:gosec
		if !strings.EqualFold(hex.EncodeToString(sum[:]), dist.Shasum) {
			return fmt.Errorf("%w: shasum mismatch", ErrIntegrity)
		}
	}
	return nil
}
