package sem

import (
	"fmt"
	"strings"
)

// Kind discriminates the Type variant.
type Kind uint8

const (
	KindInvalid Kind = iota // poison type used after a reported error
	KindVoid
	KindBool
	KindInt
	KindUInt
	KindFloat
	KindVector
	KindMatrix
	KindArray
	KindStruct
)

// Type describes an FXSL type. Types are immutable after construction and
// shared freely; scalar types are package-level singletons.
type Type struct {
	Kind Kind

	// Base is the element type: vector/array element, matrix element
	// (always Float for matrices).
	Base *Type

	// Size is the vector arity (2-4) or array length.
	Size int

	// Cols and Rows describe matrix shape (square in FXSL source, kept
	// separate for column extraction).
	Cols, Rows int

	// Struct holds field layout for KindStruct.
	Struct *StructType
}

// StructType describes a named struct layout.
type StructType struct {
	Name   string
	Fields []StructField
}

// StructField is one field of a struct type.
type StructField struct {
	Name string
	Type *Type
}

// Scalar type singletons.
var (
	Invalid = &Type{Kind: KindInvalid}
	Void    = &Type{Kind: KindVoid}
	Bool    = &Type{Kind: KindBool}
	Int     = &Type{Kind: KindInt}
	UInt    = &Type{Kind: KindUInt}
	Float   = &Type{Kind: KindFloat}
)

// Vec returns the vector type with the given element type and arity.
func Vec(base *Type, size int) *Type {
	return &Type{Kind: KindVector, Base: base, Size: size}
}

// Mat returns the square float matrix type of the given dimension.
func Mat(dim int) *Type {
	return &Type{Kind: KindMatrix, Base: Float, Cols: dim, Rows: dim}
}

// ArrayOf returns the fixed-size array type with the given element type.
// The size must already be resolved to a compile-time constant.
func ArrayOf(elem *Type, size int) *Type {
	return &Type{Kind: KindArray, Base: elem, Size: size}
}

// Of returns the struct value type for a layout.
func (s *StructType) Of() *Type {
	return &Type{Kind: KindStruct, Struct: s}
}

// IsScalar reports whether t is a scalar numeric or bool type.
func (t *Type) IsScalar() bool {
	switch t.Kind {
	case KindBool, KindInt, KindUInt, KindFloat:
		return true
	}
	return false
}

// IsNumeric reports whether t is int, uint or float.
func (t *Type) IsNumeric() bool {
	return t.Kind == KindInt || t.Kind == KindUInt || t.Kind == KindFloat
}

// IsInteger reports whether t is int or uint.
func (t *Type) IsInteger() bool {
	return t.Kind == KindInt || t.Kind == KindUInt
}

// Same reports structural type equality.
func Same(a, b *Type) bool {
	if a == b {
		return true
	}
	if a == nil || b == nil || a.Kind != b.Kind {
		return false
	}
	switch a.Kind {
	case KindVector:
		return a.Size == b.Size && Same(a.Base, b.Base)
	case KindMatrix:
		return a.Cols == b.Cols && a.Rows == b.Rows
	case KindArray:
		return a.Size == b.Size && Same(a.Base, b.Base)
	case KindStruct:
		return a.Struct == b.Struct
	}
	return true // scalar kinds matched above
}

// Components returns the number of scalar components a value of type t
// flattens to in the IR. Void and Invalid have zero components.
func (t *Type) Components() int {
	switch t.Kind {
	case KindBool, KindInt, KindUInt, KindFloat:
		return 1
	case KindVector:
		return t.Size
	case KindMatrix:
		return t.Cols * t.Rows
	case KindArray:
		return t.Size * t.Base.Components()
	case KindStruct:
		n := 0
		for _, f := range t.Struct.Fields {
			n += f.Type.Components()
		}
		return n
	}
	return 0
}

// ComponentType returns the scalar type of component i in flattening order.
func (t *Type) ComponentType(i int) *Type {
	switch t.Kind {
	case KindBool, KindInt, KindUInt, KindFloat:
		return t
	case KindVector:
		return t.Base
	case KindMatrix:
		return Float
	case KindArray:
		per := t.Base.Components()
		return t.Base.ComponentType(i % per)
	case KindStruct:
		for _, f := range t.Struct.Fields {
			n := f.Type.Components()
			if i < n {
				return f.Type.ComponentType(i)
			}
			i -= n
		}
	}
	return Invalid
}

// FieldOffset returns the flattened component offset and type of the named
// struct field, or (-1, nil) if the field does not exist.
func (t *Type) FieldOffset(name string) (int, *Type) {
	if t.Kind != KindStruct {
		return -1, nil
	}
	off := 0
	for _, f := range t.Struct.Fields {
		if f.Name == name {
			return off, f.Type
		}
		off += f.Type.Components()
	}
	return -1, nil
}

// String renders the FXSL spelling of the type.
func (t *Type) String() string {
	switch t.Kind {
	case KindInvalid:
		return "<invalid>"
	case KindVoid:
		return "void"
	case KindBool:
		return "bool"
	case KindInt:
		return "int"
	case KindUInt:
		return "uint"
	case KindFloat:
		return "float"
	case KindVector:
		if t.Base.Kind == KindFloat {
			return fmt.Sprintf("vec%d", t.Size)
		}
		return fmt.Sprintf("%svec%d", strings.ToLower(t.Base.String()[:1]), t.Size)
	case KindMatrix:
		return fmt.Sprintf("mat%d", t.Cols)
	case KindArray:
		return fmt.Sprintf("%s[%d]", t.Base, t.Size)
	case KindStruct:
		return t.Struct.Name
	}
	return "<unknown>"
}
