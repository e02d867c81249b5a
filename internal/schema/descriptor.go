package schema

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// UnknownArrayValue is the value hint of an empty array. Like UnknownArray it
// yields to the other side of a merge.
const UnknownArrayValue = "Array of Unknown"

// FieldDescriptor is the inferred or supplied metadata of one field.
type FieldDescriptor struct {
	// Type is nil for descriptors that only carry documentation.
	Type *FieldType
	// Value is a rendering hint such as "`Production` object".
	Value string
	// ValueName names a custom type in the type map.
	ValueName   string
	Description string
	Optional    bool
	// AllowNegative is only ever supplied by overrides.
	AllowNegative *bool

	// note marks a descriptor that was written as a bare description string.
	note bool
}

// Describe returns a descriptor that only documents a field.
func Describe(description string) FieldDescriptor {
	return FieldDescriptor{Description: description, note: true}
}

// Typed returns a descriptor carrying only a type.
func Typed(t FieldType) FieldDescriptor {
	return FieldDescriptor{Type: &t}
}

// ObjectRef describes a field holding an object documented by table.
func ObjectRef(table string) FieldDescriptor {
	d := Typed(Object)
	d.Value = "`" + table + "` object"
	return d
}

// ObjectArrayRef describes a field holding objects documented by table.
func ObjectArrayRef(table string) FieldDescriptor {
	d := Typed(ObjectArray)
	d.Value = "Array of `" + table + "`"
	return d
}

// ArrayField describes a field holding an array of scalars.
func ArrayField(elem FieldType) FieldDescriptor {
	d := Typed(ArrayOf(elem))
	d.Value = "Array of " + elem.String()
	return d
}

// IsNote reports whether the descriptor was written as a bare string.
func (d FieldDescriptor) IsNote() bool {
	return d.note
}

// HasType reports whether a type is known for the field.
func (d FieldDescriptor) HasType() bool {
	return d.Type != nil
}

// TypeOrUnknown returns the field's type, falling back to Unknown.
func (d FieldDescriptor) TypeOrUnknown() FieldType {
	if d.Type == nil {
		return Unknown
	}
	return *d.Type
}

// Equal compares two descriptors attribute by attribute.
func (d FieldDescriptor) Equal(other FieldDescriptor) bool {
	if d.note != other.note || d.Value != other.Value || d.ValueName != other.ValueName ||
		d.Description != other.Description || d.Optional != other.Optional {
		return false
	}
	if (d.Type == nil) != (other.Type == nil) || (d.Type != nil && !d.Type.Equal(*other.Type)) {
		return false
	}
	if (d.AllowNegative == nil) != (other.AllowNegative == nil) {
		return false
	}
	return d.AllowNegative == nil || *d.AllowNegative == *other.AllowNegative
}

type descriptorJSON struct {
	Type          *FieldType `json:"type,omitempty"`
	Value         string     `json:"value,omitempty"`
	ValueName     string     `json:"value_name,omitempty"`
	Description   string     `json:"description,omitempty"`
	Optional      bool       `json:"optional,omitempty"`
	AllowNegative *bool      `json:"allow_negative,omitempty"`
}

// MarshalJSON writes notes back as bare strings.
func (d FieldDescriptor) MarshalJSON() ([]byte, error) {
	if d.note {
		return json.Marshal(d.Description)
	}
	return json.Marshal(descriptorJSON{
		Type:          d.Type,
		Value:         d.Value,
		ValueName:     d.ValueName,
		Description:   d.Description,
		Optional:      d.Optional,
		AllowNegative: d.AllowNegative,
	})
}

// UnmarshalJSON accepts either a descriptor object or a bare description.
func (d *FieldDescriptor) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '"' {
		var description string
		if err := json.Unmarshal(trimmed, &description); err != nil {
			return err
		}
		*d = Describe(description)
		return nil
	}

	var raw descriptorJSON
	if err := json.Unmarshal(trimmed, &raw); err != nil {
		return fmt.Errorf("field descriptor: %w", err)
	}
	*d = FieldDescriptor{
		Type:          raw.Type,
		Value:         raw.Value,
		ValueName:     raw.ValueName,
		Description:   raw.Description,
		Optional:      raw.Optional,
		AllowNegative: raw.AllowNegative,
	}
	return nil
}
