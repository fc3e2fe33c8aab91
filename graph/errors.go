package graph

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for structural graph violations.
var (
	// ErrSealed indicates a mutation was attempted on a sealed graph.
	ErrSealed = errors.New("project graph has been sealed and can't be modified")

	// ErrDuplicateName indicates a project or extension name is already taken.
	ErrDuplicateName = errors.New("name has already been added")

	// ErrIntegerLikeName indicates a project or extension name that parses as a number.
	ErrIntegerLikeName = errors.New("name must not be integer-like")

	// ErrUnknownProject indicates a project name that is not part of the graph.
	ErrUnknownProject = errors.New("unknown project")

	// ErrSelfDependency indicates an edge from a project to itself.
	ErrSelfDependency = errors.New("a project can't depend on itself")
)

// CycleError reports a dependency cycle found during traversal.
//
// Chain holds the ancestor path followed by the repeated project, so the
// first and the last element are the same name.
type CycleError struct {
	Chain []string
}

func (e *CycleError) Error() string {
	if len(e.Chain) == 0 {
		return "Detected cyclic dependency chain"
	}
	repeated := e.Chain[len(e.Chain)-1]
	rendered := make([]string, len(e.Chain))
	marked := false
	for i, name := range e.Chain {
		if name == repeated && (!marked || i == len(e.Chain)-1) {
			rendered[i] = "*" + name + "*"
			marked = true
			continue
		}
		rendered[i] = name
	}
	return "Detected cyclic dependency chain: " + strings.Join(rendered, " -> ")
}

// newCycleError builds a CycleError from an ancestor stack and the project
// that closed the cycle.
func newCycleError(ancestors []string, name string) *CycleError {
	chain := make([]string, 0, len(ancestors)+1)
	chain = append(chain, ancestors...)
	chain = append(chain, name)
	return &CycleError{Chain: chain}
}

// EdgeError reports a failed dependency declaration.
type EdgeError struct {
	From     string
	To       string
	Optional bool
	Err      error
}

func (e *EdgeError) Error() string {
	kind := "dependency"
	if e.Optional {
		kind = "optional dependency"
	}
	return fmt.Sprintf("failed to declare %s from project %s to %s: %v", kind, e.From, e.To, e.Err)
}

func (e *EdgeError) Unwrap() error {
	return e.Err
}
