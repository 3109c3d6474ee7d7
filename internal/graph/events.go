package graph

import "github.com/nodeloom/core/internal/ids"

// EventKind enumerates the mutations a Store reports to its subscribers.
type EventKind int

const (
	NodeAdded EventKind = iota
	NodeRemoved
	ConnectionAdded
	ConnectionRemoved
	ParameterChanged
)

// String renders the EventKind for logs and debug output.
func (k EventKind) String() string {
	switch k {
	case NodeAdded:
		return "NodeAdded"
	case NodeRemoved:
		return "NodeRemoved"
	case ConnectionAdded:
		return "ConnectionAdded"
	case ConnectionRemoved:
		return "ConnectionRemoved"
	case ParameterChanged:
		return "ParameterChanged"
	default:
		return "Unknown"
	}
}

// Event describes one Store mutation. Only the fields relevant to Kind are
// populated: Node for NodeAdded/NodeRemoved/ParameterChanged, Connection
// (plus ConnIndex, its position in the ordered connection list at the time
// of the event) for ConnectionAdded/ConnectionRemoved.
type Event struct {
	Kind       EventKind
	Node       ids.NodeID
	Connection Connection
	ConnIndex  int
}

// Subscriber receives Store events synchronously, before the mutating Store
// call that produced them returns (spec.md §5 ordering guarantee). Events
// are dispatched with the Store's mutex released, so a Subscriber may call
// the Store's read-only queries.
type Subscriber func(Event)

// Subscribe registers fn to receive every future event this Store emits.
// Subscriptions are never removed automatically; the Execution Engine and
// GPU Instance Builder subscribe once, at construction, for the lifetime of
// the Store.
func (s *Store) Subscribe(fn Subscriber) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subscribers = append(s.subscribers, fn)
}

// emit fans an event out to every subscriber. It must be called with s.mu
// NOT held: subscribers (the Execution Engine, the GPU Instance Builder) are
// allowed to call back into read-only Store queries, and Store's mutex is
// not reentrant.
func (s *Store) emit(ev Event) {
	s.mu.RLock()
	subs := make([]Subscriber, len(s.subscribers))
	copy(subs, s.subscribers)
	s.mu.RUnlock()

	for _, fn := range subs {
		fn(ev)
	}
}
