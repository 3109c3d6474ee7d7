// Package engine is the Execution Engine (spec.md §4.3): it subscribes to a
// Graph Store's events, tracks which nodes are dirty, and on Run walks the
// dirty set in dependency order, calling each node's process() and caching
// its outputs for downstream nodes to read. The dependency-order walk is
// Kahn's algorithm, adapted from the teacher's depCount/ready-queue
// scheduling in dag/executor.go but computed fresh from the Graph Store's
// connections rather than a parsed HCL dependency list.
package engine

import (
	"context"
	"sync"

	"github.com/nodeloom/core/internal/cache"
	"github.com/nodeloom/core/internal/editorerr"
	"github.com/nodeloom/core/internal/graph"
	"github.com/nodeloom/core/internal/ids"
	"github.com/nodeloom/core/internal/types"
)

// Processor is implemented by a node's Impl handle (graph.Node.Impl) to
// participate in execution. Built-in node implementations and plugin node
// handles implement it identically; the engine never distinguishes them.
type Processor interface {
	Process(ctx context.Context, inputs map[ids.PortIndex]types.NodeData, params map[string]types.NodeData) (map[ids.PortIndex]types.NodeData, error)
}

// Option configures an Engine at construction.
type Option func(*Engine)

// WithWorkers enables the concurrent dispatcher with n worker goroutines
// instead of the default single-threaded cooperative walk. This is an
// explicit opt-in extension (spec.md §5 leaves parallel execution open;
// this core treats sequential as the default and concurrency as something
// a caller must ask for). n <= 1 is equivalent to the default.
func WithWorkers(n int) Option {
	return func(e *Engine) { e.workers = n }
}

// WithCache wires a Cache Manager so that marking a node dirty also
// invalidates any cache entries keyed by it, preventing a plugin from
// reading stale memoized data for a node whose parameters just changed.
func WithCache(c *cache.Manager) Option {
	return func(e *Engine) { e.cache = c }
}

// Engine executes one Graph Store's dirty nodes in dependency order.
type Engine struct {
	store *graph.Store
	cache *cache.Manager

	workers int

	mu      sync.Mutex
	dirty   map[ids.NodeID]bool
	outputs map[ids.NodeID]map[ids.PortIndex]types.NodeData

	// subEngines lazily holds one nested Engine per subgraph node, so a
	// subgraph's own dirty nodes run as part of this Engine's Run.
	subEngines map[ids.NodeID]*Engine
}

// New returns an Engine subscribed to store's events. Every node already in
// store is marked dirty, matching the invariant that a freshly inserted
// node is always Dirty.
func New(store *graph.Store, opts ...Option) *Engine {
	e := &Engine{
		store:      store,
		dirty:      make(map[ids.NodeID]bool),
		outputs:    make(map[ids.NodeID]map[ids.PortIndex]types.NodeData),
		subEngines: make(map[ids.NodeID]*Engine),
	}
	for _, opt := range opts {
		opt(e)
	}
	for _, n := range store.Nodes() {
		e.dirty[n.ID] = true
	}
	store.Subscribe(e.handleEvent)
	return e
}

func (e *Engine) handleEvent(ev graph.Event) {
	switch ev.Kind {
	case graph.NodeAdded:
		e.markDirty(ev.Node)
	case graph.NodeRemoved:
		e.mu.Lock()
		delete(e.dirty, ev.Node)
		delete(e.outputs, ev.Node)
		delete(e.subEngines, ev.Node)
		e.mu.Unlock()
		if e.cache != nil {
			e.cache.InvalidateNode(ev.Node)
		}
	case graph.ConnectionAdded, graph.ConnectionRemoved:
		e.markDirtyTransitive(ev.Connection.ToNode)
	case graph.ParameterChanged:
		e.markDirtyTransitive(ev.Node)
	}
}

// markDirty marks a single node dirty without propagating downstream.
func (e *Engine) markDirty(id ids.NodeID) {
	e.mu.Lock()
	e.dirty[id] = true
	delete(e.outputs, id)
	e.mu.Unlock()
	if e.cache != nil {
		e.cache.InvalidateNode(id)
	}
}

// markDirtyTransitive marks id and every node reachable downstream from it
// dirty: a parameter change or a rewired connection can only ever affect
// the node itself and what consumes its outputs, never its ancestors.
func (e *Engine) markDirtyTransitive(id ids.NodeID) {
	seen := make(map[ids.NodeID]bool)
	var walk func(ids.NodeID)
	walk = func(n ids.NodeID) {
		if seen[n] {
			return
		}
		seen[n] = true
		e.markDirty(n)
		for _, d := range e.store.Downstream(n) {
			walk(d)
		}
	}
	walk(id)
}

// DirtyCount reports how many nodes are currently pending execution.
func (e *Engine) DirtyCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.dirty)
}

// Output returns the cached value produced by node id's output port, and
// whether it is present. A value is absent if the node has never
// successfully executed, or was marked dirty since.
func (e *Engine) Output(id ids.NodeID, port ids.PortIndex) (types.NodeData, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	ports, ok := e.outputs[id]
	if !ok {
		return types.NodeData{}, false
	}
	v, ok := ports[port]
	return v, ok
}

// RunSummary is the per-pass tally spec.md §4.3 mandates execute_dirty
// return: how many dirty nodes actually ran their process(), how many
// failed their own process() (panic or explicit error), and how many were
// never dispatched because an upstream dependency was already in Error
// (counted separately from Errored so a caller can tell "this node is
// broken" from "this node was blocked by something else that's broken").
type RunSummary struct {
	Executed int
	Errored  int
	Skipped  int
}

// add folds other into s, for aggregating a subgraph node's nested summary
// into its parent's.
func (s *RunSummary) add(other RunSummary) {
	s.Executed += other.Executed
	s.Errored += other.Errored
	s.Skipped += other.Skipped
}

// nodeOutcome classifies how one executeNode call concluded, feeding
// RunSummary.
type nodeOutcome int

const (
	outcomeExecuted nodeOutcome = iota
	outcomeErrored
	outcomeSkipped
)

// Run executes every currently dirty node in dependency order and returns
// a summary of the pass. The returned error is non-nil only for an
// Engine-level failure (a cycle in the topological sort) — individual
// node failures are per-node and non-fatal, reported through the summary
// and through graph.Store.SetState instead. Run does not stop early on a
// node failure; every node reachable via a valid dependency order is
// still visited, matching the teacher's mark-dependents-failed-but-keep-
// draining-the-queue behavior.
func (e *Engine) Run(ctx context.Context) (RunSummary, error) {
	order, err := e.topoOrder()
	if err != nil {
		return RunSummary{}, err
	}

	if e.workers > 1 {
		return e.runConcurrent(ctx, order), nil
	}
	return e.runSequential(ctx, order), nil
}

func (e *Engine) runSequential(ctx context.Context, order []ids.NodeID) RunSummary {
	var summary RunSummary
	for _, id := range order {
		if !e.isDirty(id) {
			continue
		}
		switch outcome, _ := e.executeNode(ctx, id); outcome {
		case outcomeExecuted:
			summary.Executed++
		case outcomeErrored:
			summary.Errored++
		case outcomeSkipped:
			summary.Skipped++
		}
	}
	return summary
}

func (e *Engine) isDirty(id ids.NodeID) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.dirty[id]
}

// topoOrder computes a dependency order over every node currently in the
// store using Kahn's algorithm: repeatedly peel off nodes with no
// unprocessed upstream dependency. The Graph Store rejects any connection
// that would create a cycle, so a short order here (len < total nodes)
// indicates a Graph Store bug rather than ordinary user input.
func (e *Engine) topoOrder() ([]ids.NodeID, error) {
	nodes := e.store.Nodes()
	inDegree := make(map[ids.NodeID]int, len(nodes))
	for _, n := range nodes {
		inDegree[n.ID] = len(e.store.Upstream(n.ID))
	}

	// Seed from nodes, not inDegree, so the initial queue order is stable
	// across calls: map iteration order is randomized, and two Run() calls
	// over the same graph and dirty set must visit nodes in the same order
	// (spec.md §5/§8).
	queue := make([]ids.NodeID, 0, len(nodes))
	for _, n := range nodes {
		if inDegree[n.ID] == 0 {
			queue = append(queue, n.ID)
		}
	}

	order := make([]ids.NodeID, 0, len(nodes))
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		order = append(order, id)
		for _, d := range e.store.Downstream(id) {
			inDegree[d]--
			if inDegree[d] == 0 {
				queue = append(queue, d)
			}
		}
	}

	if len(order) != len(nodes) {
		return nil, editorerr.ErrCycleDetected
	}
	return order, nil
}

// executeNode runs one node: it gathers its inputs from upstream output
// caches, dispatches to the node's Processor (or, for a subgraph node,
// drains the nested Store's own dirty set first), and records the
// resulting state and outputs. The returned nodeOutcome feeds the caller's
// RunSummary; the error is the underlying cause, kept for logging.
func (e *Engine) executeNode(ctx context.Context, id ids.NodeID) (nodeOutcome, error) {
	node := e.store.Get(id)
	if node == nil {
		e.mu.Lock()
		delete(e.dirty, id)
		e.mu.Unlock()
		return outcomeExecuted, nil
	}

	for _, up := range e.store.Upstream(id) {
		if upNode := e.store.Get(up); upNode != nil && upNode.State() == graph.Error {
			e.store.SetState(id, graph.Error)
			e.clearDirty(id)
			return outcomeSkipped, editorerr.UpstreamError(id, up)
		}
	}

	if node.Subgraph != nil {
		sub := e.subEngineFor(id, node.Subgraph)
		subSummary, err := sub.Run(ctx)
		if err != nil {
			e.store.SetState(id, graph.Error)
			e.clearDirty(id)
			return outcomeErrored, err
		}
		if subSummary.Errored > 0 {
			e.store.SetState(id, graph.Error)
			e.clearDirty(id)
			return outcomeErrored, editorerr.NodeProcessFailed(id, "subgraph has errored nodes")
		}
		e.store.SetState(id, graph.Clean)
		e.clearDirty(id)
		return outcomeExecuted, nil
	}

	proc, ok := node.Impl.(Processor)
	if !ok {
		// A node with no Processor implementation (a pure pass-through or a
		// malformed factory) is treated as trivially clean: it has nothing
		// to compute.
		e.store.SetState(id, graph.Clean)
		e.clearDirty(id)
		return outcomeExecuted, nil
	}

	inputs := e.gatherInputs(id, node)

	e.store.SetState(id, graph.Computing)
	result, err := e.safeProcess(ctx, id, proc, inputs, node.Parameters)
	if err != nil {
		e.store.SetState(id, graph.Error)
		e.clearDirty(id)
		return outcomeErrored, err
	}

	e.mu.Lock()
	e.outputs[id] = result
	e.mu.Unlock()
	e.store.SetState(id, graph.Clean)
	e.clearDirty(id)
	return outcomeExecuted, nil
}

func (e *Engine) clearDirty(id ids.NodeID) {
	e.mu.Lock()
	delete(e.dirty, id)
	e.mu.Unlock()
}

func (e *Engine) gatherInputs(id ids.NodeID, node *graph.Node) map[ids.PortIndex]types.NodeData {
	inputs := make(map[ids.PortIndex]types.NodeData, len(node.Inputs))
	for _, c := range e.store.InputsOf(id) {
		if v, ok := e.Output(c.FromNode, c.FromOutput); ok {
			inputs[c.ToInput] = v
		}
	}
	return inputs
}

// safeProcess calls proc.Process under recover(), converting a panic into
// a NodeProcessFailedError so one misbehaving node cannot bring down Run.
func (e *Engine) safeProcess(ctx context.Context, id ids.NodeID, proc Processor, inputs map[ids.PortIndex]types.NodeData, params map[string]types.NodeData) (result map[ids.PortIndex]types.NodeData, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = editorerr.NodeProcessFailed(id, "panic: "+errString(r))
		}
	}()
	result, procErr := proc.Process(ctx, inputs, params)
	if procErr != nil {
		return nil, editorerr.NodeProcessFailed(id, procErr.Error())
	}
	return result, nil
}

func errString(v any) string {
	if err, ok := v.(error); ok {
		return err.Error()
	}
	if s, ok := v.(string); ok {
		return s
	}
	return "unknown panic value"
}

// subEngineFor returns the nested Engine for a subgraph node, creating it
// on first use.
func (e *Engine) subEngineFor(id ids.NodeID, sub *graph.Store) *Engine {
	e.mu.Lock()
	defer e.mu.Unlock()
	if se, ok := e.subEngines[id]; ok {
		return se
	}
	se := New(sub, WithCache(e.cache))
	if e.workers > 1 {
		se.workers = e.workers
	}
	e.subEngines[id] = se
	return se
}
