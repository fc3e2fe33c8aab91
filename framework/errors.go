package framework

import (
	"errors"
	"fmt"
	"strings"
)

// ErrMissingVersion is returned when no framework version is configured and
// none was given as an override.
var ErrMissingVersion = errors.New("missing framework version")

// ErrUnknownLibrary is returned for libraries the framework does not provide.
var ErrUnknownLibrary = errors.New("unknown framework library")

// ConfigurationError reports an invalid framework configuration of a project.
type ConfigurationError struct {
	Project string
	Reason  string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid framework configuration in project %s: %s", e.Project, e.Reason)
}

// alreadyLogged replaces the cause of a library that failed only because one
// of its dependencies did.
const alreadyLogged = "Error already logged"

// LibraryError is the failure of one framework library.
type LibraryError struct {
	Library string

	// Err is nil if the library failed because of a dependency whose error
	// is reported separately.
	Err error
}

func (e *LibraryError) Error() string {
	cause := alreadyLogged
	if e.Err != nil {
		cause = e.Err.Error()
	}
	return fmt.Sprintf("Failed to resolve library %s: %s", e.Library, cause)
}

func (e *LibraryError) Unwrap() error {
	return e.Err
}

// causeList holds the failures of several dependencies of one library.
type causeList []error

func (c causeList) err() error {
	switch len(c) {
	case 0:
		return nil
	case 1:
		return c[0]
	}
	return c
}

func (c causeList) Error() string {
	msgs := make([]string, len(c))
	for i, err := range c {
		msgs[i] = err.Error()
	}
	return strings.Join(msgs, "; ")
}

func (c causeList) Unwrap() []error {
	return c
}

// InstallError aggregates every library failure of one resolution.
type InstallError struct {
	Failures []*LibraryError
}

func (e *InstallError) Error() string {
	if len(e.Failures) == 1 {
		return e.Failures[0].Error()
	}
	var b strings.Builder
	b.WriteString("Resolution of framework libraries failed with errors:")
	for i, f := range e.Failures {
		fmt.Fprintf(&b, "\n  %d. %s", i+1, f.Error())
	}
	return b.String()
}

// Unwrap exposes the root causes so errors.Is and errors.As see them.
func (e *InstallError) Unwrap() []error {
	var errs []error
	for _, f := range e.Failures {
		if f.Err != nil {
			errs = append(errs, f.Err)
		}
	}
	return errs
}
