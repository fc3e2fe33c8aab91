package npm

import (
	"errors"
	"fmt"
	"net/http"
)

// Sentinel errors for common registry failures.
var (
	// ErrPackageNotFound indicates the requested package does not exist in the registry.
	ErrPackageNotFound = errors.New("package not found")

	// ErrVersionNotFound indicates the requested version has not been published.
	ErrVersionNotFound = errors.New("version not found")

	// ErrRateLimited indicates the registry is rate limiting requests.
	ErrRateLimited = errors.New("rate limited")

	// ErrUnauthorized indicates authentication is required or failed.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrIntegrity indicates a downloaded tarball does not match its published checksum.
	ErrIntegrity = errors.New("integrity check failed")
)

// RegistryError is returned for unexpected HTTP responses from the registry.
// It matches the sentinel corresponding to its status code with errors.Is.
type RegistryError struct {
	StatusCode int
	Package    string
	Version    string
	URL        string
}

func (e *RegistryError) Error() string {
	id := e.Package
	if e.Version != "" {
		id += "@" + e.Version
	}
	return fmt.Sprintf("registry request for %s failed: HTTP %d: %s", id, e.StatusCode, e.URL)
}

func (e *RegistryError) Is(target error) bool {
	switch e.StatusCode {
	case http.StatusNotFound:
		return target == ErrPackageNotFound
	case http.StatusTooManyRequests:
		return target == ErrRateLimited
	case http.StatusUnauthorized, http.StatusForbidden:
		return target == ErrUnauthorized
	}
	return false
}
