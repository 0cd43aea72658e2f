// Package valuetype is the closed set of value types a Method's parameters
// and return may carry, along with the predicates the JIT layer uses to
// classify argument-passing strategy. Grounded on
// original_source/include/plugify/value_type.hpp's ValueType enum and
// ValueUtils predicates.
package valuetype

import "fmt"

// ValueType enumerates the primitive, pointer, string, struct, and array
// kinds a Method parameter or return can carry.
type ValueType uint8

const (
	Invalid ValueType = iota

	Void
	Bool
	Char8
	Char16
	Int8
	Int16
	Int32
	Int64
	UInt8
	UInt16
	UInt32
	UInt64
	Pointer
	Float
	Double

	Function

	String
	Any

	ArrayBool
	ArrayChar8
	ArrayChar16
	ArrayInt8
	ArrayInt16
	ArrayInt32
	ArrayInt64
	ArrayUInt8
	ArrayUInt16
	ArrayUInt32
	ArrayUInt64
	ArrayPointer
	ArrayFloat
	ArrayDouble
	ArrayString
	ArrayAny
	ArrayVector2
	ArrayVector3
	ArrayVector4
	ArrayMatrix4x4

	Vector2
	Vector3
	Vector4

	Matrix4x4

	lastAssigned = Matrix4x4
)

const (
	baseStart = Void
	baseEnd   = Function

	floatStart = Float
	floatEnd   = Double

	objectStart = String
	objectEnd   = ArrayMatrix4x4

	arrayStart = ArrayBool
	arrayEnd   = ArrayMatrix4x4

	structStart = Vector2
	structEnd   = Matrix4x4

	// hiddenParamStart marks the first struct type returned via a
	// caller-allocated hidden first argument under the host ABI. The
	// non-Windows/x64 boundary (Matrix4x4 only) is the one this runtime
	// targets; there is no Windows-x64 build in the pack to special-case.
	hiddenParamStart = Matrix4x4
)

func between(v, a, b ValueType) bool { return v >= a && v <= b }

// IsValid reports whether type is a recognized, non-zero ValueType.
func IsValid(t ValueType) bool { return between(t, Void, lastAssigned) }

// IsScalar reports whether t has no vector/array/struct part.
func IsScalar(t ValueType) bool { return between(t, baseStart, baseEnd) }

// IsFloating reports whether t is a scalar floating-point type.
func IsFloating(t ValueType) bool { return between(t, floatStart, floatEnd) }

// IsInt reports whether t is any signed or unsigned fixed-width integer.
func IsInt(t ValueType) bool {
	switch t {
	case Int8, Int16, Int32, Int64, UInt8, UInt16, UInt32, UInt64, Bool, Char8, Char16:
		return true
	default:
		return false
	}
}

// IsFloat reports the JIT-relevant "needs a float register" predicate:
// true for Float and Double (vector/matrix types are classified as structs).
func IsFloat(t ValueType) bool { return t == Float || t == Double }

// IsPointer reports whether t is a raw pointer.
func IsPointer(t ValueType) bool { return t == Pointer }

// IsFunction reports whether t is a C function pointer.
func IsFunction(t ValueType) bool { return t == Function }

// IsString reports whether t is a string.
func IsString(t ValueType) bool { return t == String }

// IsAny reports whether t is the dynamic "any" type.
func IsAny(t ValueType) bool { return t == Any }

// IsObject reports whether t is a reference type managed by pointer
// (string, any, or any array variant).
func IsObject(t ValueType) bool { return between(t, objectStart, objectEnd) }

// IsArray reports whether t is an array-of-* variant.
func IsArray(t ValueType) bool { return between(t, arrayStart, arrayEnd) }

// IsStruct reports whether t is a POD struct (vector2/3/4, matrix4x4).
func IsStruct(t ValueType) bool { return between(t, structStart, structEnd) }

// IsHiddenParam reports whether t is returned via a caller-allocated
// hidden first argument under the host ABI: all reference-counted objects,
// plus structs at or above the ABI's hidden-return threshold.
func IsHiddenParam(t ValueType) bool {
	return IsObject(t) || between(t, hiddenParamStart, structEnd)
}

var names = map[ValueType]string{
	Invalid: "invalid", Void: "void", Bool: "bool", Char8: "char8", Char16: "char16",
	Int8: "int8", Int16: "int16", Int32: "int32", Int64: "int64",
	UInt8: "uint8", UInt16: "uint16", UInt32: "uint32", UInt64: "uint64",
	Pointer: "ptr64", Float: "float", Double: "double", Function: "function",
	String: "string", Any: "any",
	ArrayBool: "bool[]", ArrayChar8: "char8[]", ArrayChar16: "char16[]",
	ArrayInt8: "int8[]", ArrayInt16: "int16[]", ArrayInt32: "int32[]", ArrayInt64: "int64[]",
	ArrayUInt8: "uint8[]", ArrayUInt16: "uint16[]", ArrayUInt32: "uint32[]", ArrayUInt64: "uint64[]",
	ArrayPointer: "ptr64[]", ArrayFloat: "float[]", ArrayDouble: "double[]",
	ArrayString: "string[]", ArrayAny: "any[]",
	ArrayVector2: "vec2[]", ArrayVector3: "vec3[]", ArrayVector4: "vec4[]",
	ArrayMatrix4x4: "mat4x4[]",
	Vector2:        "vec2", Vector3: "vec3", Vector4: "vec4", Matrix4x4: "mat4x4",
}

// String renders the canonical manifest spelling of a ValueType.
func (t ValueType) String() string {
	if s, ok := names[t]; ok {
		return s
	}
	return "invalid"
}

var fromName map[string]ValueType

func init() {
	fromName = make(map[string]ValueType, len(names))
	for t, s := range names {
		fromName[s] = t
	}
}

// FromString parses a manifest-spelled value type, returning Invalid for
// unrecognized input.
func FromString(s string) ValueType {
	if t, ok := fromName[s]; ok {
		return t
	}
	return Invalid
}

// MarshalText implements encoding.TextMarshaler for manifest (de)serialization.
func (t ValueType) MarshalText() ([]byte, error) { return []byte(t.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler for manifest (de)serialization.
func (t *ValueType) UnmarshalText(text []byte) error {
	v := FromString(string(text))
	if v == Invalid && string(text) != "invalid" {
		return fmt.Errorf("valuetype: unknown value type %q", text)
	}
	*t = v
	return nil
}
