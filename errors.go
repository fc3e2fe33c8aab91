package ui5project

import (
	"github.com/albertocavalcante/go-ui5project/framework"
	"github.com/albertocavalcante/go-ui5project/framework/npm"
	"github.com/albertocavalcante/go-ui5project/graph"
)

// Sentinel errors callers commonly check with errors.Is. They are the
// values of the packages that return them.
var (
	// ErrUnknownProject indicates a project name that is not part of a graph.
	ErrUnknownProject = graph.ErrUnknownProject

	// ErrMissingVersion indicates that the root project configures a
	// framework without a version and no override was given.
	ErrMissingVersion = framework.ErrMissingVersion

	// ErrUnknownLibrary indicates a framework library the selected framework
	// version does not provide.
	ErrUnknownLibrary = framework.ErrUnknownLibrary

	// ErrPackageNotFound indicates the registry does not know a package.
	ErrPackageNotFound = npm.ErrPackageNotFound

	// ErrVersionNotFound indicates the registry does not know a package version.
	ErrVersionNotFound = npm.ErrVersionNotFound

	// ErrRateLimited indicates the registry is rate limiting requests.
	ErrRateLimited = npm.ErrRateLimited

	// ErrUnauthorized indicates authentication is required or failed.
	ErrUnauthorized = npm.ErrUnauthorized
)
