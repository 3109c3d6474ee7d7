package types

// Payload is the marker interface implemented by opaque domain data (Scene,
// Material, Image and the like) that a NodeData value of the matching
// DataType may carry. Payloads use shared ownership: copying a NodeData
// struct copies the interface value, not the data it points to, which is
// deliberate — large payloads should not be duplicated on every clone.
type Payload interface {
	payload()
}

// Vec3 is a plain 3-component vector, used both as a NodeData scalar and
// wherever the rest of the core needs a position or direction.
type Vec3 struct {
	X, Y, Z float64
}

// RGBA is a plain color value in the 0..1 range per channel.
type RGBA struct {
	R, G, B, A float64
}

// NodeData is the tagged union of values that flow through ports and
// populate node parameters. Only the field matching Kind is meaningful.
// Scalar variants (Float, Integer, Boolean, String, Vector3, Color) are
// cheap to copy by value; opaque variants carry a Payload by reference.
type NodeData struct {
	Kind    DataType
	Float   float64
	Int     int64
	Bool    bool
	Str     string
	Vector  Vec3
	Color   RGBA
	Payload Payload
}

// Float64 builds a Float NodeData.
func Float64(v float64) NodeData { return NodeData{Kind: Float, Float: v} }

// Int64 builds an Integer NodeData.
func Int64(v int64) NodeData { return NodeData{Kind: Integer, Int: v} }

// Bool builds a Boolean NodeData.
func Bool(v bool) NodeData { return NodeData{Kind: Boolean, Bool: v} }

// StringValue builds a String NodeData.
func StringValue(v string) NodeData { return NodeData{Kind: String, Str: v} }

// Vector3Value builds a Vector3 NodeData.
func Vector3Value(v Vec3) NodeData { return NodeData{Kind: Vector3, Vector: v} }

// ColorValue builds a Color NodeData.
func ColorValue(v RGBA) NodeData { return NodeData{Kind: Color, Color: v} }

// OpaqueValue builds a NodeData wrapping a Payload under the given DataType
// tag (Scene, Material, Light, Image or Any).
func OpaqueValue(kind DataType, p Payload) NodeData { return NodeData{Kind: kind, Payload: p} }

// Clone returns a copy of v. Scalar fields are copied by value; the Payload
// interface value (if any) is copied by reference, matching the shared
// ownership the data model calls for.
func (v NodeData) Clone() NodeData {
	return v
}

// IsZero reports whether v is the unset NodeData value: DataType tag Float,
// no scalar content and no payload. Callers should treat this as "absent"
// only where the surrounding API says so explicitly.
func (v NodeData) IsZero() bool {
	return v.Kind == Float && v.Float == 0 && v.Int == 0 && !v.Bool &&
		v.Str == "" && v.Vector == (Vec3{}) && v.Color == (RGBA{}) && v.Payload == nil
}
