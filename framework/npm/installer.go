package npm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/albertocavalcante/go-ui5project/internal/flock"
)

// Installation describes an installed package.
type Installation struct {
	Name    string
	Version string
	Path    string

	// Cached is true when the package was already present on disk.
	Cached bool
}

// InstallerOptions configures an Installer.
type InstallerOptions struct {
	// DataDir is the UI5 data directory, usually ~/.ui5.
	DataDir string

	// Registry defaults to the public npm registry.
	Registry *Registry

	Logger  *slog.Logger
	Metrics *Metrics

	// Lock bounds the wait for the per package lock.
	Lock flock.Options
}

// Installer installs framework packages into
// <DataDir>/framework/packages/<name>/<version>. Concurrent installs of the
// same package version, in this process or others, extract it at most once.
type Installer struct {
	packagesDir string
	locksDir    string
	registry    *Registry
	logger      *slog.Logger
	metrics     *Metrics
	lockOpts    flock.Options

	group singleflight.Group
}

// NewInstaller creates an Installer.
func NewInstaller(opts InstallerOptions) (*Installer, error) {
	if opts.DataDir == "" {
		return nil, errors.New("failed to create package installer: missing parameter 'dataDir'")
	}
	dataDir, err := filepath.Abs(opts.DataDir)
	if err != nil {
		return nil, err
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	registry := opts.Registry
	if registry == nil {
		registry = NewRegistry(DefaultRegistryURL, WithLogger(logger), WithMetrics(opts.Metrics))
	}
	return &Installer{
		packagesDir: filepath.Join(dataDir, "framework", "packages"),
		locksDir:    filepath.Join(dataDir, "framework", "locks"),
		registry:    registry,
		logger:      logger,
		metrics:     opts.Metrics,
		lockOpts:    opts.Lock,
	}, nil
}

// PackagePath returns the install location of name@version.
func (i *Installer) PackagePath(name, version string) string {
	return filepath.Join(i.packagesDir, filepath.FromSlash(name), version)
}

func (i *Installer) stagingPath(name, version string) string {
	return filepath.Join(i.packagesDir, filepath.FromSlash(name), ".staging-"+version)
}

func (i *Installer) lockPath(name, version string) string {
	sanitized := strings.NewReplacer("/", "-", "\\", "-").Replace(name + "@" + version)
	return filepath.Join(i.locksDir, "package-"+sanitized+".lock")
}

// InstallPackage makes sure name@version is present on disk and returns its
// location. An existing package.json in the target short-circuits without
// taking the lock. Otherwise the package is extracted into a staging
// directory and renamed into place.
func (i *Installer) InstallPackage(ctx context.Context, name, version string) (*Installation, error) {
	start := time.Now()
	inst, err := i.install(ctx, name, version)
	i.metrics.ObserveInstall(time.Since(start), inst != nil && inst.Cached, err)
	if err != nil {
		return nil, fmt.Errorf("failed to install %s@%s: %w", name, version, err)
	}
	return inst, nil
}

func (i *Installer) install(ctx context.Context, name, version string) (*Installation, error) {
	target := i.PackagePath(name, version)
	if installed(target) {
		return &Installation{Name: name, Version: version, Path: target, Cached: true}, nil
	}

	v, err, _ := i.group.Do(name+"@"+version, func() (any, error) {
		cached := true
		err := flock.WithLock(ctx, i.lockPath(name, version), i.lockOpts, func() error {
			if installed(target) {
				return nil
			}
			cached = false
			return i.extract(ctx, name, version, target)
		})
		if err != nil {
			return nil, err
		}
		return &Installation{Name: name, Version: version, Path: target, Cached: cached}, nil
	})
	if err != nil {
		return nil, err
	}
	inst := *v.(*Installation)
	return &inst, nil
}

func (i *Installer) extract(ctx context.Context, name, version, target string) error {
	staging := i.stagingPath(name, version)
	if err := os.RemoveAll(staging); err != nil {
		return fmt.Errorf("failed to remove stale staging directory: %w", err)
	}

	i.logger.Info("Installing framework package", "package", name, "version", version)
	if err := i.registry.Extract(ctx, name, version, staging); err != nil {
		_ = os.RemoveAll(staging)
		return err
	}
	if !installed(staging) {
		_ = os.RemoveAll(staging)
		return fmt.Errorf("extracted package %s@%s contains no package.json", name, version)
	}

	if err := os.RemoveAll(target); err != nil {
		return fmt.Errorf("failed to remove stale install directory: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return err
	}
	if err := os.Rename(staging, target); err != nil {
		return fmt.Errorf("failed to move package into place: %w", err)
	}
	i.logger.Debug("Installed framework package", "package", name, "version", version, "path", target)
	return nil
}

// FetchPackageManifest returns the manifest of name@version, read from disk
// when the package is installed and from the registry otherwise.
func (i *Installer) FetchPackageManifest(ctx context.Context, name, version string) (*Manifest, error) {
	target := i.PackagePath(name, version)
	data, err := os.ReadFile(filepath.Join(target, "package.json"))
	switch {
	case err == nil:
		var m Manifest
		if err := json.Unmarshal(data, &m); err != nil {
			return nil, fmt.Errorf("failed to parse installed manifest of %s@%s: %w", name, version, err)
		}
		return &m, nil
	case errors.Is(err, fs.ErrNotExist):
		return i.registry.Manifest(ctx, name, version)
	default:
		return nil, err
	}
}

// FetchPackageVersions lists the published versions of a package in ascending
// semver order.
func (i *Installer) FetchPackageVersions(ctx context.Context, name string) ([]string, error) {
	return i.registry.Versions(ctx, name)
}

// ReadJSON installs name@version if needed and decodes file, relative to the
// package root, into v.
func (i *Installer) ReadJSON(ctx context.Context, name, version, file string, v any) error {
	inst, err := i.InstallPackage(ctx, name, version)
	if err != nil {
		return err
	}
	p, err := safeJoin(inst.Path, filepath.ToSlash(file))
	if err != nil {
		return err
	}
	data, err := os.ReadFile(p)
	if err != nil {
		return fmt.Errorf("failed to read %s of %s@%s: %w", file, name, version, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to parse %s of %s@%s: %w", file, name, version, err)
	}
	return nil
}

func installed(dir string) bool {
	info, err := os.Stat(filepath.Join(dir, "package.json"))
	return err == nil && info.Mode().IsRegular()
}
