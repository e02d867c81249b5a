package schema

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Kind is the shape of a field as it appears in a JSON sample.
type Kind int

const (
	KindUnknown Kind = iota
	KindNumber
	KindBoolean
	KindString
	KindNull
	KindObject
	KindArray
)

var kindNames = map[Kind]string{
	KindUnknown: "Unknown",
	KindNumber:  "Number",
	KindBoolean: "Boolean",
	KindString:  "String",
	KindNull:    "Null",
	KindObject:  "Object",
	KindArray:   "Array",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// FieldType is a field's inferred type. Arrays carry the type of their
// elements, so Array(Array(Number)) is expressible.
type FieldType struct {
	Kind Kind
	Elem *FieldType
}

// Common field types.
var (
	Unknown      = FieldType{Kind: KindUnknown}
	Number       = FieldType{Kind: KindNumber}
	Boolean      = FieldType{Kind: KindBoolean}
	String       = FieldType{Kind: KindString}
	Null         = FieldType{Kind: KindNull}
	Object       = FieldType{Kind: KindObject}
	UnknownArray = ArrayOf(Unknown)
	ObjectArray  = ArrayOf(Object)
)

// ArrayOf returns the array type with the given element type.
func ArrayOf(elem FieldType) FieldType {
	return FieldType{Kind: KindArray, Elem: &elem}
}

// String renders the type the way it is written in documents and metadata,
// e.g. "Number" or "Array(Object)".
func (t FieldType) String() string {
	if t.Kind == KindArray {
		elem := Unknown
		if t.Elem != nil {
			elem = *t.Elem
		}
		return "Array(" + elem.String() + ")"
	}
	return t.Kind.String()
}

// Equal reports whether two types are structurally identical.
func (t FieldType) Equal(other FieldType) bool {
	return t.String() == other.String()
}

// IsUnknownArray reports whether t is the type given to an empty array.
// It yields to any concrete type when schemas are merged.
func (t FieldType) IsUnknownArray() bool {
	return t.Kind == KindArray && (t.Elem == nil || t.Elem.Kind == KindUnknown)
}

// TakesCustomType reports whether a field of this type may be documented
// with a custom type. Objects and arrays of objects are described by their
// own tables instead.
func (t FieldType) TakesCustomType() bool {
	return t.Kind != KindObject && !t.Equal(ObjectArray) && !t.IsUnknownArray()
}

// ParseFieldType parses the textual form produced by String.
func ParseFieldType(text string) (FieldType, error) {
	text = strings.TrimSpace(text)
	if inner, ok := strings.CutPrefix(text, "Array("); ok {
		inner, ok = strings.CutSuffix(inner, ")")
		if !ok {
			return FieldType{}, fmt.Errorf("unterminated array type %q", text)
		}
		elem, err := ParseFieldType(inner)
		if err != nil {
			return FieldType{}, err
		}
		return ArrayOf(elem), nil
	}
	for kind, name := range kindNames {
		if kind != KindArray && name == text {
			return FieldType{Kind: kind}, nil
		}
	}
	return FieldType{}, fmt.Errorf("unknown field type %q", text)
}

// MarshalJSON implements json.Marshaler
func (t FieldType) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

// UnmarshalJSON implements json.Unmarshaler
func (t *FieldType) UnmarshalJSON(data []byte) error {
	var text string
	if err := json.Unmarshal(data, &text); err != nil {
		return fmt.Errorf("field type must be a string: %w", err)
	}
	parsed, err := ParseFieldType(text)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}
