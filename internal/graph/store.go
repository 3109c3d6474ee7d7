// Package graph holds the authoritative in-memory representation of one
// graph level: its nodes, their ports, and the connections between them.
// A Store never mutates in place across levels — a subgraph node owns its
// own nested Store (graph.Node.Subgraph) — but within one level, mutation
// is direct and synchronous, with every change reported to subscribers
// before the mutating call returns (spec.md §4.1, §5).
package graph

import (
	"sort"
	"sync"

	"github.com/nodeloom/core/internal/ids"
	"github.com/nodeloom/core/internal/types"
)

// Store is one graph level: a node map and an ordered connection list. Its
// mutex-guarded map-of-nodes plus adjacency bookkeeping follows the same
// shape as a dependency graph, generalized here to carry typed ports and
// validate connections rather than bare string edges.
type Store struct {
	mu sync.RWMutex

	nodes       map[ids.NodeID]*Node
	connections []Connection

	alloc       *ids.Allocator
	subscribers []Subscriber
}

// New returns an empty Store ready to accept nodes.
func New() *Store {
	return &Store{
		nodes: make(map[ids.NodeID]*Node),
		alloc: ids.NewAllocator(),
	}
}

// AddNode assigns n a fresh NodeID, inserts it and returns the id. n's
// Position, Parameters, Inputs/Outputs and PanelType must already be
// populated by the caller (normally the Node Factory & Registry); AddNode
// only assigns identity and initial lifecycle state.
func (s *Store) AddNode(n *Node) ids.NodeID {
	s.mu.Lock()
	id := s.alloc.Next()
	n.ID = id
	n.state = Dirty
	if n.Parameters == nil {
		n.Parameters = make(map[string]types.NodeData)
	}
	s.nodes[id] = n
	s.mu.Unlock()

	// n.Impl was built by create_node before this node had an identity;
	// tell it now, if it can accept one, so id() answers correctly from
	// this point on (registry.BaseHandle implements this).
	if settable, ok := n.Impl.(identifiable); ok {
		settable.SetID(id)
	}

	s.emit(Event{Kind: NodeAdded, Node: id})
	return id
}

// identifiable is implemented by a plugin-owned node handle that needs to
// learn the NodeID the Graph Store assigned it in AddNode, since it was
// constructed before insertion when no id existed yet.
type identifiable interface {
	SetID(ids.NodeID)
}

// RemoveNode deletes the node and cascades to every Connection that
// references it. Removing an unknown id is a no-op (interaction errors are
// silently ignored per spec.md §7).
func (s *Store) RemoveNode(id ids.NodeID) {
	s.mu.Lock()
	if _, ok := s.nodes[id]; !ok {
		s.mu.Unlock()
		return
	}
	delete(s.nodes, id)

	var removed []Connection
	kept := s.connections[:0:0]
	for _, c := range s.connections {
		if c.FromNode == id || c.ToNode == id {
			removed = append(removed, c)
			continue
		}
		kept = append(kept, c)
	}
	s.connections = kept
	s.mu.Unlock()

	for _, c := range removed {
		s.emit(Event{Kind: ConnectionRemoved, Connection: c})
	}
	s.emit(Event{Kind: NodeRemoved, Node: id})
}

// Get returns the node with the given id, or nil if it does not exist.
func (s *Store) Get(id ids.NodeID) *Node {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.nodes[id]
}

// Nodes returns every node in the Store, ordered by NodeID. The order is
// stable across calls despite the backing map's randomized iteration —
// callers like the Execution Engine's topological sort depend on it to
// produce identical visitation order for the same graph on repeated runs.
func (s *Store) Nodes() []*Node {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Node, 0, len(s.nodes))
	for _, n := range s.nodes {
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// NodeCount returns the number of nodes currently in the Store.
func (s *Store) NodeCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.nodes)
}

// Connections returns the ordered connection list. The order is stable and
// used for deterministic iteration in tests, but carries no other meaning.
func (s *Store) Connections() []Connection {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Connection, len(s.connections))
	copy(out, s.connections)
	return out
}

// AddOptions controls the authoring policy for AddConnection.
type AddOptions struct {
	// Replace, when true and the target input already has a connection
	// that its definition does not allow alongside a second one, removes
	// the existing connection first instead of failing with
	// ErrInputOccupied.
	Replace bool
}

// AddConnection validates and inserts c, returning its index in the
// connection list. See the package-level Err* sentinels for failure modes.
// On any failure the Store is left unchanged.
func (s *Store) AddConnection(c Connection, opts AddOptions) (int, error) {
	s.mu.Lock()

	from, ok := s.nodes[c.FromNode]
	if !ok {
		s.mu.Unlock()
		return 0, &UnknownNodeError{ID: c.FromNode}
	}
	to, ok := s.nodes[c.ToNode]
	if !ok {
		s.mu.Unlock()
		return 0, &UnknownNodeError{ID: c.ToNode}
	}

	fromPort, ok := from.OutputDefinition(c.FromOutput)
	if !ok {
		s.mu.Unlock()
		return 0, &PortOutOfRangeError{Node: c.FromNode, Dir: ids.Output, Index: c.FromOutput}
	}
	toPort, ok := to.InputDefinition(c.ToInput)
	if !ok {
		s.mu.Unlock()
		return 0, &PortOutOfRangeError{Node: c.ToNode, Dir: ids.Input, Index: c.ToInput}
	}

	if fromPort.Direction != ids.Output || toPort.Direction != ids.Input {
		s.mu.Unlock()
		return 0, ErrDirectionMismatch
	}

	if !types.Assignable(fromPort.Type, toPort.Type) {
		s.mu.Unlock()
		return 0, ErrTypeMismatch
	}

	for _, existing := range s.connections {
		if existing.sameEndpoints(c) {
			s.mu.Unlock()
			return 0, ErrDuplicateConnection
		}
	}

	var displaced *Connection
	if !toPort.AllowMultiple {
		for i, existing := range s.connections {
			if existing.ToNode == c.ToNode && existing.ToInput == c.ToInput {
				if !opts.Replace {
					s.mu.Unlock()
					return 0, ErrInputOccupied
				}
				d := s.connections[i]
				displaced = &d
				break
			}
		}
	}

	if s.wouldCycleLocked(c) {
		s.mu.Unlock()
		return 0, ErrWouldCycle
	}

	if displaced != nil {
		s.removeConnectionLocked(*displaced)
	}

	s.connections = append(s.connections, c)
	idx := len(s.connections) - 1
	s.mu.Unlock()

	if displaced != nil {
		s.emit(Event{Kind: ConnectionRemoved, Connection: *displaced})
	}
	s.emit(Event{Kind: ConnectionAdded, Connection: c, ConnIndex: idx})
	return idx, nil
}

// RemoveConnection removes the connection at index. An out-of-range index
// is a no-op.
func (s *Store) RemoveConnection(index int) {
	s.mu.Lock()
	if index < 0 || index >= len(s.connections) {
		s.mu.Unlock()
		return
	}
	c := s.connections[index]
	s.connections = append(s.connections[:index], s.connections[index+1:]...)
	s.mu.Unlock()

	s.emit(Event{Kind: ConnectionRemoved, Connection: c, ConnIndex: index})
}

// removeConnectionLocked removes the first connection matching c's
// endpoints. Callers must hold s.mu for writing.
func (s *Store) removeConnectionLocked(c Connection) {
	for i, existing := range s.connections {
		if existing.sameEndpoints(c) {
			s.connections = append(s.connections[:i], s.connections[i+1:]...)
			return
		}
	}
}

// SetParameter overwrites a node's parameter value and emits
// ParameterChanged. Setting a parameter on an unknown node is a no-op.
func (s *Store) SetParameter(id ids.NodeID, name string, value types.NodeData) {
	s.mu.Lock()
	n, ok := s.nodes[id]
	if !ok {
		s.mu.Unlock()
		return
	}
	n.Parameters[name] = value
	s.mu.Unlock()

	s.emit(Event{Kind: ParameterChanged, Node: id})
}

// SetState overwrites a node's lifecycle state. Unlike AddNode/RemoveNode/
// AddConnection/RemoveConnection/SetParameter this does not emit an event:
// State transitions are the Execution Engine's own bookkeeping, not one of
// the five mutation kinds external subscribers observe (spec.md §5).
// Setting the state on an unknown node is a no-op.
func (s *Store) SetState(id ids.NodeID, state State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n, ok := s.nodes[id]; ok {
		n.state = state
	}
}

// InputsOf returns the connections whose ToNode is id.
func (s *Store) InputsOf(id ids.NodeID) []Connection {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Connection
	for _, c := range s.connections {
		if c.ToNode == id {
			out = append(out, c)
		}
	}
	return out
}

// OutputsOf returns the connections whose FromNode is id.
func (s *Store) OutputsOf(id ids.NodeID) []Connection {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Connection
	for _, c := range s.connections {
		if c.FromNode == id {
			out = append(out, c)
		}
	}
	return out
}

// Downstream returns the distinct nodes directly consuming id's outputs.
func (s *Store) Downstream(id ids.NodeID) []ids.NodeID {
	s.mu.RLock()
	defer s.mu.RUnlock()
	seen := make(map[ids.NodeID]bool)
	var out []ids.NodeID
	for _, c := range s.connections {
		if c.FromNode == id && !seen[c.ToNode] {
			seen[c.ToNode] = true
			out = append(out, c.ToNode)
		}
	}
	return out
}

// Upstream returns the distinct nodes id directly depends on.
func (s *Store) Upstream(id ids.NodeID) []ids.NodeID {
	s.mu.RLock()
	defer s.mu.RUnlock()
	seen := make(map[ids.NodeID]bool)
	var out []ids.NodeID
	for _, c := range s.connections {
		if c.ToNode == id && !seen[c.FromNode] {
			seen[c.FromNode] = true
			out = append(out, c.FromNode)
		}
	}
	return out
}

// wouldCycleLocked reports whether adding c would create a cycle, i.e.
// whether c.ToNode can already reach c.FromNode by following existing
// connections downstream. Callers must hold s.mu.
//
// The traversal direction mirrors the teacher's cycle check (depth-first
// search over adjacency, with a permanent/visiting mark set) but walks
// forward along data flow (from -> to) instead of an unordered dependency
// edge, since a new connection here always points from an existing output
// to a not-yet-dependent input.
func (s *Store) wouldCycleLocked(c Connection) bool {
	if c.FromNode == c.ToNode {
		return true
	}
	visited := make(map[ids.NodeID]bool)
	var visit func(id ids.NodeID) bool
	visit = func(id ids.NodeID) bool {
		if id == c.FromNode {
			return true
		}
		if visited[id] {
			return false
		}
		visited[id] = true
		for _, conn := range s.connections {
			if conn.FromNode == id {
				if visit(conn.ToNode) {
					return true
				}
			}
		}
		return false
	}
	return visit(c.ToNode)
}
