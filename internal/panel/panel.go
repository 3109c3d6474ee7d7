// Package panel is the Panel Manager (spec.md §4.8): it tracks, per node,
// whatever floating or docked UI panel that node's PanelType calls for —
// a parameter panel stacked against the canvas edge, or a viewport panel
// floating freely — without rendering any of it itself. It emits render
// instructions (a screen rect, a title and the owning node) that the
// surrounding UI layer turns into actual widgets.
package panel

import (
	"github.com/nodeloom/core/internal/graph"
	"github.com/nodeloom/core/internal/ids"
	"github.com/nodeloom/core/internal/types"
)

// Rect is a screen-space rectangle, position plus size.
type Rect struct {
	X, Y, W, H float64
}

// State is one node's panel bookkeeping: whether it's open, where it sits,
// and whether the user has pinned it open regardless of selection.
type State struct {
	Node    ids.NodeID
	Title   string
	Kind    types.PanelType
	Rect    Rect
	Visible bool
	Pinned  bool
}

// Manager owns every open panel, keyed by the node it belongs to.
type Manager struct {
	panels map[ids.NodeID]*State
	// stackNextY is where the next stacked parameter panel will be placed,
	// advancing as panels stack down the canvas's right edge.
	stackNextY float64
	stackX     float64
	stackWidth float64
}

// New returns an empty Manager. stackX/stackWidth position the parameter
// panel stack against the canvas's right edge.
func New(stackX, stackWidth float64) *Manager {
	return &Manager{
		panels:     make(map[ids.NodeID]*State),
		stackX:     stackX,
		stackWidth: stackWidth,
	}
}

// Open shows node's panel, creating it if this is the first time node's
// panel has been opened. A PanelParameter panel is placed in the stack
// (below any already-open parameter panels); a PanelViewport panel floats
// at a default position the caller may move with SetRect. PanelNone is a
// no-op: that node has no panel to open. PanelCombined is treated like
// PanelParameter: it is stacked, and no separate viewport panel is opened
// for it.
func (m *Manager) Open(node *graph.Node) *State {
	if node.PanelType == types.PanelNone {
		return nil
	}
	if existing, ok := m.panels[node.ID]; ok {
		existing.Visible = true
		return existing
	}

	var rect Rect
	switch node.PanelType {
	case types.PanelViewport:
		rect = Rect{X: node.Position.X + node.SizeHint.X + 20, Y: node.Position.Y, W: 320, H: 240}
	default:
		rect = Rect{X: m.stackX, Y: m.stackNextY, W: m.stackWidth, H: 160}
		m.stackNextY += rect.H + 8
	}

	s := &State{Node: node.ID, Title: node.Name, Kind: node.PanelType, Rect: rect, Visible: true}
	m.panels[node.ID] = s
	return s
}

// Close hides a node's panel without discarding its position, unless it
// is pinned — a pinned panel stays visible regardless of Close.
func (m *Manager) Close(id ids.NodeID) {
	if s, ok := m.panels[id]; ok && !s.Pinned {
		s.Visible = false
	}
}

// Pin marks a node's panel pinned: it stays open even if the node is
// deselected or the canvas view changes, the behavior the original
// editor's panel model calls "pinned on drag out" — dragging a panel away
// from its owning node's default position implicitly pins it.
func (m *Manager) Pin(id ids.NodeID, pinned bool) {
	if s, ok := m.panels[id]; ok {
		s.Pinned = pinned
	}
}

// SetRect moves/resizes a node's panel explicitly.
func (m *Manager) SetRect(id ids.NodeID, rect Rect) {
	if s, ok := m.panels[id]; ok {
		s.Rect = rect
	}
}

// Get returns the panel state for id, or nil if it has never been opened.
func (m *Manager) Get(id ids.NodeID) *State {
	return m.panels[id]
}

// Visible returns every currently visible panel, for the UI layer to
// render each frame.
func (m *Manager) Visible() []*State {
	var out []*State
	for _, s := range m.panels {
		if s.Visible {
			out = append(out, s)
		}
	}
	return out
}

// Discard removes a node's panel entirely, regardless of pinning. The
// Editor facade calls this from the Graph Store's NodeRemoved event so a
// removed node never leaves an orphaned panel on screen.
func (m *Manager) Discard(id ids.NodeID) {
	delete(m.panels, id)
}
