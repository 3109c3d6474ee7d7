// Package types defines the port type system and the NodeData value
// variants that flow along connections and populate node parameters.
package types

// DataType is one of a small closed set of tags a port or a parameter
// value carries. Two ports may be connected only if their types are
// Assignable in the producer-to-consumer direction.
type DataType int

const (
	Float DataType = iota
	Integer
	Boolean
	Vector3
	Color
	String
	Scene
	Material
	Light
	Image
	// Any is assignable to and from every other DataType.
	Any
	// Opaque defers the assignability check to the producer; a port typed
	// Opaque is treated as compatible with any other port. It exists for
	// plugins that describe a port whose concrete shape is only known at
	// runtime.
	Opaque
)

// String renders the DataType for logs, UI labels and debug output.
func (t DataType) String() string {
	switch t {
	case Float:
		return "Float"
	case Integer:
		return "Integer"
	case Boolean:
		return "Boolean"
	case Vector3:
		return "Vector3"
	case Color:
		return "Color"
	case String:
		return "String"
	case Scene:
		return "Scene"
	case Material:
		return "Material"
	case Light:
		return "Light"
	case Image:
		return "Image"
	case Any:
		return "Any"
	case Opaque:
		return "Opaque"
	default:
		return "Unknown"
	}
}

// Assignable reports whether a value of type producer may flow into a port
// of type consumer. Any is assignable to and from anything; Opaque defers
// the check entirely (always compatible); otherwise the two tags must be
// equal.
func Assignable(producer, consumer DataType) bool {
	if producer == Any || consumer == Any {
		return true
	}
	if producer == Opaque || consumer == Opaque {
		return true
	}
	return producer == consumer
}
