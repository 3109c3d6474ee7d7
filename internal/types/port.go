package types

import "github.com/nodeloom/core/internal/ids"

// PortDefinition describes one port of a node: its name, direction, data
// type and connection policy. Inputs accept at most one connection unless
// AllowMultiple is set; outputs are always allowed many downstream
// connections regardless of AllowMultiple.
type PortDefinition struct {
	Name          string
	Direction     ids.Direction
	Type          DataType
	Required      bool
	AllowMultiple bool
}

// PanelType tags which kind of panel, if any, a node's metadata requests.
type PanelType int

const (
	// PanelNone means the node has no associated panel.
	PanelNone PanelType = iota
	// PanelParameter is a parameter-editing panel, stacked by default.
	PanelParameter
	// PanelViewport is a viewport panel, floating by default.
	PanelViewport
	// PanelCombined requests both a parameter and a viewport panel.
	PanelCombined
)

// String renders the PanelType for logs and debug output.
func (p PanelType) String() string {
	switch p {
	case PanelNone:
		return "none"
	case PanelParameter:
		return "parameter"
	case PanelViewport:
		return "viewport"
	case PanelCombined:
		return "combined"
	default:
		return "unknown"
	}
}
