package graph

import (
	"errors"
	"fmt"

	"github.com/nodeloom/core/internal/ids"
)

// Sentinel validation errors returned by Store mutations (spec.md §7). Wrap
// with errors.Is/As-friendly detail types below where a caller needs the
// offending id, not just the kind.
var (
	// ErrUnknownNode means a Connection endpoint or lookup named a NodeID
	// that does not exist in this Store.
	ErrUnknownNode = errors.New("graph: unknown node")
	// ErrPortOutOfRange means a Connection endpoint named a port index that
	// does not exist on the node.
	ErrPortOutOfRange = errors.New("graph: port index out of range")
	// ErrDirectionMismatch means a Connection did not go from an output
	// port to an input port.
	ErrDirectionMismatch = errors.New("graph: connection must run output to input")
	// ErrTypeMismatch means the producer and consumer DataTypes are not
	// Assignable.
	ErrTypeMismatch = errors.New("graph: incompatible port types")
	// ErrInputOccupied means the input port already has a connection and
	// neither its definition nor the caller's replace flag permits another.
	ErrInputOccupied = errors.New("graph: input port already connected")
	// ErrWouldCycle means adding the connection would introduce a cycle at
	// this graph level.
	ErrWouldCycle = errors.New("graph: connection would introduce a cycle")
	// ErrDuplicateConnection means the exact same four-tuple already exists.
	ErrDuplicateConnection = errors.New("graph: duplicate connection")
)

// UnknownNodeError names the NodeID that triggered ErrUnknownNode.
type UnknownNodeError struct {
	ID ids.NodeID
}

func (e *UnknownNodeError) Error() string {
	return fmt.Sprintf("%v: %s", ErrUnknownNode, e.ID)
}

func (e *UnknownNodeError) Unwrap() error { return ErrUnknownNode }

// PortOutOfRangeError names the node, direction and index that triggered
// ErrPortOutOfRange.
type PortOutOfRangeError struct {
	Node  ids.NodeID
	Dir   ids.Direction
	Index ids.PortIndex
}

func (e *PortOutOfRangeError) Error() string {
	return fmt.Sprintf("%v: %s %s port %d", ErrPortOutOfRange, e.Node, e.Dir, e.Index)
}

func (e *PortOutOfRangeError) Unwrap() error { return ErrPortOutOfRange }
