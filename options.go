package ui5project

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/albertocavalcante/go-ui5project/framework"
	"github.com/albertocavalcante/go-ui5project/framework/npm"
	"github.com/albertocavalcante/go-ui5project/provider"
)

// Option configures graph creation and framework resolution.
type Option func(*options) error

// options holds all configuration of the entry points.
type options struct {
	cwd               string
	rootConfigPath    string
	rootConfiguration provider.Configurations
	versionOverride   string
	resolveFramework  bool

	ui5DataDir  string
	registry    string
	httpClient  *http.Client
	cache       npm.ManifestCache
	timeout     time.Duration
	concurrency int
	metrics     *npm.Metrics
	installer   framework.Installer

	// logger is the structured logger for debug/info output.
	// If nil, logging is disabled (silent mode).
	logger *slog.Logger
}

// WithCwd sets the directory of the root project. It defaults to the
// working directory.
func WithCwd(dir string) Option {
	return func(o *options) error {
		o.cwd = dir
		return nil
	}
}

// WithRootConfigPath sets the configuration file of the root project,
// relative to its directory or absolute.
func WithRootConfigPath(path string) Option {
	return func(o *options) error {
		o.rootConfigPath = path
		return nil
	}
}

// WithRootConfiguration replaces the configuration of the root project.
func WithRootConfiguration(docs ...map[string]any) Option {
	return func(o *options) error {
		o.rootConfiguration = append(o.rootConfiguration, docs...)
		return nil
	}
}

// WithVersionOverride replaces the framework version configured by the root
// project. Version specifiers like "latest" or "1.120" are resolved against
// the registry.
func WithVersionOverride(version string) Option {
	return func(o *options) error {
		o.versionOverride = version
		return nil
	}
}

// WithoutFrameworkResolution skips adding framework libraries to created
// graphs.
func WithoutFrameworkResolution() Option {
	return func(o *options) error {
		o.resolveFramework = false
		return nil
	}
}

// WithUI5DataDir sets where framework packages are installed. It defaults
// to the configured ui5DataDir (UI5_DATA_DIR, ~/.ui5rc or ~/.ui5).
func WithUI5DataDir(dir string) Option {
	return func(o *options) error {
		o.ui5DataDir = dir
		return nil
	}
}

// WithRegistry sets the npm registry framework packages are downloaded from.
func WithRegistry(url string) Option {
	return func(o *options) error {
		if url == "" {
			return errors.New("registry URL must not be empty")
		}
		o.registry = url
		return nil
	}
}

// WithHTTPClient sets a custom HTTP client for registry requests.
func WithHTTPClient(client *http.Client) Option {
	return func(o *options) error {
		o.httpClient = client
		return nil
	}
}

// WithCache sets an external cache for package manifests.
func WithCache(cache npm.ManifestCache) Option {
	return func(o *options) error {
		o.cache = cache
		return nil
	}
}

// WithTimeout sets the HTTP request timeout.
func WithTimeout(d time.Duration) Option {
	return func(o *options) error {
		o.timeout = d
		return nil
	}
}

// WithConcurrency limits how many dependencies and framework libraries are
// processed at the same time.
func WithConcurrency(n int) Option {
	return func(o *options) error {
		if n < 1 {
			return errors.New("concurrency must be at least 1")
		}
		o.concurrency = n
		return nil
	}
}

// WithMetrics records registry and installation metrics.
func WithMetrics(m *npm.Metrics) Option {
	return func(o *options) error {
		o.metrics = m
		return nil
	}
}

// WithInstaller replaces the npm installer used for framework packages.
// Registry related options are ignored when it is set.
func WithInstaller(i framework.Installer) Option {
	return func(o *options) error {
		o.installer = i
		return nil
	}
}

// WithLogger sets a structured logger for diagnostics.
// If not set, logging is disabled (silent mode).
//
// Example:
//
//	logger := slog.New(slog.NewTextHandler(os.Stderr, nil)).With("component", "ui5project")
//	g, err := ui5project.GraphFromPackageDependencies(ctx, ui5project.WithLogger(logger))
func WithLogger(l *slog.Logger) Option {
	return func(o *options) error {
		o.logger = l
		return nil
	}
}

// validate checks the configuration for logical consistency.
func (o *options) validate() error {
	if o.timeout < 0 {
		return errors.New("timeout must be positive")
	}
	if o.versionOverride != "" && !o.resolveFramework {
		return errors.New("a framework version override requires framework resolution")
	}
	return nil
}

// log returns the configured logger, or a logger discarding everything.
func (o *options) log() *slog.Logger {
	if o.logger != nil {
		return o.logger
	}
	return slog.New(slog.DiscardHandler)
}

// newOptions applies opts on top of the defaults and validates the result.
func newOptions(opts ...Option) (*options, error) {
	o := &options{resolveFramework: true}
	for _, opt := range opts {
		if err := opt(o); err != nil {
			return nil, err
		}
	}
	if err := o.validate(); err != nil {
		return nil, err
	}
	return o, nil
}
