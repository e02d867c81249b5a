package schema

import (
	"github.com/invopop/jsonschema"
)

const fieldTypePattern = `^(Array\()*(Number|Boolean|String|Null|Unknown|Object)\)*$`

// JSONSchema describes a field descriptor, which may also be written as a
// bare description string.
func (FieldDescriptor) JSONSchema() *jsonschema.Schema {
	props := jsonschema.NewProperties()
	props.Set("type", &jsonschema.Schema{
		Type:        "string",
		Pattern:     fieldTypePattern,
		Description: "Inferred or declared type, e.g. Number or Array(Object).",
	})
	props.Set("value", &jsonschema.Schema{
		Type:        "string",
		Description: "Text shown in the Values column instead of the type.",
	})
	props.Set("value_name", &jsonschema.Schema{
		Type:        "string",
		Description: "Custom type from the type map, or the table name for objects.",
	})
	props.Set("description", &jsonschema.Schema{Type: "string"})
	props.Set("optional", &jsonschema.Schema{Type: "boolean"})
	props.Set("allow_negative", &jsonschema.Schema{
		Type:        "boolean",
		Description: "Set to false to document a number as always positive.",
	})

	return &jsonschema.Schema{
		OneOf: []*jsonschema.Schema{
			{Type: "string", Description: "Description of the field."},
			{
				Type:                 "object",
				Properties:           props,
				AdditionalProperties: jsonschema.FalseSchema,
			},
		},
	}
}

// JSONSchema describes a table of field descriptors.
func (Table) JSONSchema() *jsonschema.Schema {
	return &jsonschema.Schema{
		Type:                 "object",
		Description:          "Fields keyed by JSON name, in document order.",
		AdditionalProperties: FieldDescriptor{}.JSONSchema(),
	}
}

// JSONSchema describes a table set keyed by table name.
func (TableSet) JSONSchema() *jsonschema.Schema {
	return &jsonschema.Schema{
		Type:                 "object",
		Description:          "Tables keyed by name; \".\" is the root table.",
		AdditionalProperties: Table{}.JSONSchema(),
	}
}
