package graph

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorCode categorizes scheduler errors.
type ErrorCode string

const (
	// ErrCodeInvalidEdge indicates a self-dependency or an empty node reference.
	ErrCodeInvalidEdge ErrorCode = "INVALID_EDGE"

	// ErrCodeCyclicDependency indicates the dependency graph contains a cycle.
	ErrCodeCyclicDependency ErrorCode = "CYCLIC_DEPENDENCY"

	// ErrCodeDuplicateIdentifier indicates a boundary identifier is already registered.
	ErrCodeDuplicateIdentifier ErrorCode = "DUPLICATE_IDENTIFIER"

	// ErrCodeEmptyBoundary indicates a boundary was marked with no nodes.
	ErrCodeEmptyBoundary ErrorCode = "EMPTY_BOUNDARY"

	// ErrCodeInvalidBoundaryTopology indicates overlapping boundaries, or
	// boundaries whose crossing edges cannot be scheduled as atomic units.
	ErrCodeInvalidBoundaryTopology ErrorCode = "INVALID_BOUNDARY_TOPOLOGY"

	// ErrCodeSubgraphExecution indicates a compiled entry point failed.
	ErrCodeSubgraphExecution ErrorCode = "SUBGRAPH_EXECUTION"

	// ErrCodeNodeExecution indicates a single node failed during plan execution.
	ErrCodeNodeExecution ErrorCode = "NODE_EXECUTION"

	// ErrCodeUnknownNode indicates a reference to a node nobody registered.
	ErrCodeUnknownNode ErrorCode = "UNKNOWN_NODE"

	// ErrCodeUnknownBoundary indicates a reference to an unregistered boundary.
	ErrCodeUnknownBoundary ErrorCode = "UNKNOWN_BOUNDARY"
)

// Error is the structured error returned by every scheduler component.
type Error struct {
	// Code identifies the error category.
	Code ErrorCode

	// Message is a human-readable description.
	Message string

	// Node identifies the offending node, when there is one.
	Node NodeRef

	// Boundary identifies the offending compilation boundary, when there is one.
	Boundary string

	// Path holds the cycle for ErrCodeCyclicDependency, first node repeated last.
	Path []NodeRef

	// Err is the underlying cause (execution errors).
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Code))
	b.WriteString(": ")
	b.WriteString(e.Message)
	switch {
	case e.Boundary != "" && e.Node != "":
		fmt.Fprintf(&b, " (boundary=%s, node=%s)", e.Boundary, e.Node)
	case e.Boundary != "":
		fmt.Fprintf(&b, " (boundary=%s)", e.Boundary)
	case e.Node != "":
		fmt.Fprintf(&b, " (node=%s)", e.Node)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is an *Error with the same code, so sentinel
// comparisons like errors.Is(err, graph.ErrCyclicDependency) work.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

// Sentinels for errors.Is.
var (
	ErrInvalidEdge             = &Error{Code: ErrCodeInvalidEdge}
	ErrCyclicDependency        = &Error{Code: ErrCodeCyclicDependency}
	ErrDuplicateIdentifier     = &Error{Code: ErrCodeDuplicateIdentifier}
	ErrEmptyBoundary           = &Error{Code: ErrCodeEmptyBoundary}
	ErrInvalidBoundaryTopology = &Error{Code: ErrCodeInvalidBoundaryTopology}
	ErrSubgraphExecution       = &Error{Code: ErrCodeSubgraphExecution}
	ErrNodeExecution           = &Error{Code: ErrCodeNodeExecution}
	ErrUnknownNode             = &Error{Code: ErrCodeUnknownNode}
	ErrUnknownBoundary         = &Error{Code: ErrCodeUnknownBoundary}
)

// CodeOf extracts the error code from err, or "" if err is not an *Error.
// Uses errors.As to handle wrapped errors.
func CodeOf(err error) ErrorCode {
	var ge *Error
	if errors.As(err, &ge) {
		return ge.Code
	}
	return ""
}

// IsCycleError returns true if err is a cyclic dependency error.
func IsCycleError(err error) bool {
	return CodeOf(err) == ErrCodeCyclicDependency
}

// IsSubgraphExecutionError returns true if err came from a compiled entry point.
func IsSubgraphExecutionError(err error) bool {
	return CodeOf(err) == ErrCodeSubgraphExecution
}

// NewInvalidEdgeError creates an error for a rejected dependency edge.
func NewInvalidEdgeError(dependent, dependency NodeRef, reason string) *Error {
	return &Error{
		Code:    ErrCodeInvalidEdge,
		Message: fmt.Sprintf("%s -> %s: %s", dependent, dependency, reason),
		Node:    dependent,
	}
}

// NewCycleError creates an error for a detected cycle. path lists the nodes
// on the cycle in depends-on direction with the first node repeated last.
func NewCycleError(path []NodeRef) *Error {
	e := &Error{
		Code:    ErrCodeCyclicDependency,
		Message: "cyclic dependency detected: " + FormatPath(path),
		Path:    path,
	}
	if len(path) > 0 {
		e.Node = path[0]
	}
	return e
}

// NewUnknownNodeError creates an error for an unregistered node reference.
func NewUnknownNodeError(ref NodeRef) *Error {
	return &Error{
		Code:    ErrCodeUnknownNode,
		Message: "node is not registered",
		Node:    ref,
	}
}

// FormatPath renders a node path as "a -> b -> c".
func FormatPath(path []NodeRef) string {
	parts := make([]string, len(path))
	for i, ref := range path {
		parts[i] = string(ref)
	}
	return strings.Join(parts, " -> ")
}
