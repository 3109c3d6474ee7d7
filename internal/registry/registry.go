// Package registry is the single lookup point mapping a node type id string
// to the factory that produces nodes of that type. Built-in factories and
// plugin-contributed factories register through the same interface
// (spec.md §4.4); the Plugin Host namespaces plugin type ids as
// "<plugin>.<node>" before registering them here.
package registry

import (
	"errors"
	"fmt"
	"sync"

	"github.com/nodeloom/core/internal/graph"
	"github.com/nodeloom/core/internal/ids"
	"github.com/nodeloom/core/internal/types"
)

// ErrTypeIdCollision means a factory is already registered under the
// requested type id. Registration is idempotent in the sense that
// registering the exact same type id twice is always rejected — there is
// no "last one wins" behavior.
var ErrTypeIdCollision = errors.New("registry: type id already registered")

// NodeMetadata is everything a factory declares about the nodes it
// produces: its ports, default parameter values, panel type and the
// cosmetic hints the GPU Instance Builder and Renderer consume.
type NodeMetadata struct {
	TypeID            string
	Category          string
	DisplayName       string
	Inputs            []types.PortDefinition
	Outputs           []types.PortDefinition
	DefaultParameters map[string]types.NodeData
	PanelType         types.PanelType
	Color             types.RGBA
	Icon              string
	// ProcessingCost is an advisory hint (spec.md §4.2) the scheduler or a
	// watchdog may use to flag slow nodes; the core does not act on it.
	ProcessingCost float64
}

// Factory produces nodes of one type. A plugin's node factory and a
// built-in node factory implement the identical interface, per spec.md
// §4.2/§4.4 — the Graph Store and Registry never distinguish the two.
type Factory interface {
	Metadata() NodeMetadata
	// CreateNode returns the PluginNodeHandle for a new node instance at
	// position (spec.md §4.2's create_node(position) → PluginNodeHandle).
	// The returned handle becomes graph.Node.Impl; the Graph Store never
	// calls anything on it besides what PluginNodeHandle declares.
	CreateNode(position types.Vec3) (PluginNodeHandle, error)
}

// Registry maps type id strings to Factory implementations.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// New returns an empty Registry.
func New() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Register adds factory under typeID. It returns ErrTypeIdCollision if the
// type id is already registered.
func (r *Registry) Register(typeID string, factory Factory) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.factories[typeID]; exists {
		return fmt.Errorf("%w: %q", ErrTypeIdCollision, typeID)
	}
	r.factories[typeID] = factory
	return nil
}

// Unregister removes typeID, if present. Used by the Plugin Host when a
// plugin unloads.
func (r *Registry) Unregister(typeID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.factories, typeID)
}

// Lookup returns the factory registered under typeID, or false.
func (r *Registry) Lookup(typeID string) (Factory, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.factories[typeID]
	return f, ok
}

// TypeIDs returns every registered type id, in no particular order.
func (r *Registry) TypeIDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.factories))
	for id := range r.factories {
		out = append(out, id)
	}
	return out
}

// CreateNode is the standard factory contract (spec.md §4.4): given a type
// id and a world position, it produces a *graph.Node whose id is the
// provisional zero value, and whose ports, panel type and default parameter
// values come verbatim from the factory's metadata(). The Graph Store
// assigns the real id when the caller passes the result to Store.AddNode.
func (r *Registry) CreateNode(typeID string, position types.Vec3) (*graph.Node, error) {
	factory, ok := r.Lookup(typeID)
	if !ok {
		return nil, fmt.Errorf("registry: unknown type id %q", typeID)
	}
	meta := factory.Metadata()

	impl, err := factory.CreateNode(position)
	if err != nil {
		return nil, fmt.Errorf("registry: create node %q: %w", typeID, err)
	}
	if impl == nil {
		return nil, fmt.Errorf("registry: create node %q: factory returned a nil PluginNodeHandle", typeID)
	}

	params := make(map[string]types.NodeData, len(meta.DefaultParameters))
	for k, v := range meta.DefaultParameters {
		params[k] = v.Clone()
	}

	return &graph.Node{
		ID:         ids.Zero,
		TypeID:     typeID,
		Name:       meta.DisplayName,
		Parameters: params,
		Position:   position,
		Inputs:     append([]types.PortDefinition(nil), meta.Inputs...),
		Outputs:    append([]types.PortDefinition(nil), meta.Outputs...),
		PanelType:  meta.PanelType,
		Color:      meta.Color,
		Visible:    true,
		Impl:       impl,
	}, nil
}
