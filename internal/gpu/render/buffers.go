package render

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/nodeloom/core/internal/gpu/instance"
	"github.com/nodeloom/core/internal/types"
)

// The record types below are the GPU-resident instance layouts each
// pipeline's buffer holds: fixed-size, all-float32 mirrors of the
// instance.NodeInstance/PortInstance/ConnectionInstance CPU structures.
// Only their leading position/size floats line up with shaders/quad.wgsl's
// vertex input (position, size, color); the fields after those do not
// follow that layout. encoding/binary
// writes them straight to bytes since every field is a fixed-size numeric
// type; nothing here needs a bespoke serializer.

type nodeRecord struct {
	X, Y, W, H   float32
	CornerRadius float32
	BorderColor  [4]float32
	BevelTop     [4]float32
	BevelBottom  [4]float32
	BgTop        [4]float32
	BgBottom     [4]float32
	Selected     float32
}

type portRecord struct {
	X, Y, Radius float32
	Direction    float32
	BorderColor  [4]float32
	BevelColor   [4]float32
	BgColor      [4]float32
}

// connectionVertexRecord is one sampled point along a connection's
// polyline; the vertex buffer holds every connection's points back to
// back, in the same order connectionVertexCount sums them in.
type connectionVertexRecord struct {
	X, Y, Z  float32
	Color    [4]float32
	Selected float32
	Hover    float32
}

type debugLineRecord struct {
	X, Y, W, H float32
}

func encodeNodes(nodes []instance.NodeInstance) []byte {
	records := make([]nodeRecord, len(nodes))
	for i, n := range nodes {
		records[i] = nodeRecord{
			X: float32(n.X), Y: float32(n.Y), W: float32(n.W), H: float32(n.H),
			CornerRadius: float32(n.CornerRadius),
			BorderColor:  rgba32(n.BorderColor),
			BevelTop:     rgba32(n.BevelTop),
			BevelBottom:  rgba32(n.BevelBottom),
			BgTop:        rgba32(n.BgTop),
			BgBottom:     rgba32(n.BgBottom),
			Selected:     boolFloat(n.Selected),
		}
	}
	return mustEncode(records)
}

func encodePorts(ports []instance.PortInstance) []byte {
	records := make([]portRecord, len(ports))
	for i, p := range ports {
		records[i] = portRecord{
			X: float32(p.X), Y: float32(p.Y), Radius: float32(p.Radius),
			Direction:   float32(p.Direction),
			BorderColor: rgba32(p.BorderColor),
			BevelColor:  rgba32(p.BevelColor),
			BgColor:     rgba32(p.BgColor),
		}
	}
	return mustEncode(records)
}

func encodeConnections(conns []instance.ConnectionInstance) []byte {
	records := make([]connectionVertexRecord, 0, connectionVertexCount(conns))
	for _, c := range conns {
		color := rgba32(c.Color)
		for _, p := range c.Points {
			records = append(records, connectionVertexRecord{
				X: float32(p.X), Y: float32(p.Y), Z: float32(p.Z),
				Color:    color,
				Selected: boolFloat(c.Selected),
				Hover:    boolFloat(c.Hover),
			})
		}
	}
	return mustEncode(records)
}

func encodeDebugLines(nodes []instance.NodeInstance) []byte {
	records := make([]debugLineRecord, len(nodes))
	for i, n := range nodes {
		records[i] = debugLineRecord{X: float32(n.X), Y: float32(n.Y), W: float32(n.W), H: float32(n.H)}
	}
	return mustEncode(records)
}

func rgba32(c types.RGBA) [4]float32 {
	return [4]float32{float32(c.R), float32(c.G), float32(c.B), float32(c.A)}
}

func boolFloat(b bool) float32 {
	if b {
		return 1
	}
	return 0
}

// mustEncode writes a slice of fixed-size records to bytes. Every record
// type above is built entirely from float32 fields and arrays of them, so
// binary.Write can never fail on it; the error return exists only because
// io.Writer's contract requires one.
func mustEncode(records any) []byte {
	buf := new(bytes.Buffer)
	if err := binary.Write(buf, binary.LittleEndian, records); err != nil {
		panic(fmt.Sprintf("render: encoding a fixed-size instance record failed: %v", err))
	}
	return buf.Bytes()
}
