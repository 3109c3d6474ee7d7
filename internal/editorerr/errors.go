// Package editorerr collects the execution- and plugin-boundary error kinds
// that cross package lines (the Execution Engine reports them in its
// summary; the Plugin Host reports them to its log). Graph Store validation
// errors stay local to the graph package, since nothing outside it needs to
// switch on them by type.
package editorerr

import (
	"errors"
	"fmt"

	"github.com/nodeloom/core/internal/ids"
)

// ErrCycleDetected is returned defensively by the topological sort if it
// ever observes a cycle; the Graph Store's AddConnection should have
// rejected the edge that would have caused it, so reaching this is a sign
// of a Graph Store bug, not ordinary user input.
var ErrCycleDetected = errors.New("engine: cycle detected in topological sort")

// NodeProcessFailedError means a node's process() call returned an error,
// panicked, or (in a plugin) raised an exception-equivalent.
type NodeProcessFailedError struct {
	Node    ids.NodeID
	Message string
}

func (e *NodeProcessFailedError) Error() string {
	return fmt.Sprintf("node %s: process failed: %s", e.Node, e.Message)
}

// UpstreamErrorError means a node could not run because a node it depends
// on is in the Error state. (Named with the doubled suffix to keep one
// error-type-per-kind naming convention across this package; see
// UpstreamError for the friendlier constructor.)
type UpstreamErrorError struct {
	Node     ids.NodeID
	Upstream ids.NodeID
}

func (e *UpstreamErrorError) Error() string {
	return fmt.Sprintf("node %s: upstream node %s is in Error state", e.Node, e.Upstream)
}

// UpstreamError builds an UpstreamErrorError.
func UpstreamError(node, upstream ids.NodeID) error {
	return &UpstreamErrorError{Node: node, Upstream: upstream}
}

// NodeProcessFailed builds a NodeProcessFailedError.
func NodeProcessFailed(node ids.NodeID, message string) error {
	return &NodeProcessFailedError{Node: node, Message: message}
}

// LoadFailedError means a plugin shared library failed to load, failed to
// resolve its required CreatePlugin/DestroyPlugin symbols, or returned a
// handle the host rejected (nil, empty name, or an already-loaded name).
type LoadFailedError struct {
	Path   string
	Reason string
}

func (e *LoadFailedError) Error() string {
	return fmt.Sprintf("plugin %s: load failed: %s", e.Path, e.Reason)
}

// IncompatibleVersionError means a plugin's compatible_core_version is not
// in the host's major version series.
type IncompatibleVersionError struct {
	Path         string
	TheirVersion string
	HostVersion  string
}

func (e *IncompatibleVersionError) Error() string {
	return fmt.Sprintf("plugin %s: incompatible version %s (host is %s)", e.Path, e.TheirVersion, e.HostVersion)
}

// PanicIsolatedError means a plugin call outside of process() (create_plugin,
// on_load, register_nodes, a menu query) panicked and was isolated: the
// plugin's nodes are unavailable, but the host and other plugins continue.
// The library itself stays mapped in the process; Go cannot unload it.
type PanicIsolatedError struct {
	Plugin string
	Where  string
	Value  any
}

func (e *PanicIsolatedError) Error() string {
	return fmt.Sprintf("plugin %s: panic isolated in %s: %v", e.Plugin, e.Where, e.Value)
}
