package metadata

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/invopop/jsonschema"
	orderedmap "github.com/wk8/go-ordered-map/v2"

	"github.com/mcncl/enphase-api/internal/errors"
)

// Methods maps HTTP method names to what they do, in file order.
type Methods struct {
	pairs *orderedmap.OrderedMap[string, string]
}

// NewMethods returns an empty method list.
func NewMethods() *Methods {
	return &Methods{pairs: orderedmap.New[string, string]()}
}

// Set adds or replaces a method.
func (m *Methods) Set(name, description string) {
	if m.pairs == nil {
		m.pairs = orderedmap.New[string, string]()
	}
	m.pairs.Set(name, description)
}

// Len returns the number of methods.
func (m *Methods) Len() int {
	if m == nil || m.pairs == nil {
		return 0
	}
	return m.pairs.Len()
}

// Names returns the method names in order.
func (m *Methods) Names() []string {
	names := make([]string, 0, m.Len())
	m.Range(func(name, _ string) {
		names = append(names, name)
	})
	return names
}

// Range calls fn for every method in order.
func (m *Methods) Range(fn func(name, description string)) {
	if m == nil || m.pairs == nil {
		return
	}
	for pair := m.pairs.Oldest(); pair != nil; pair = pair.Next() {
		fn(pair.Key, pair.Value)
	}
}

func (m *Methods) MarshalJSON() ([]byte, error) {
	if m.pairs == nil {
		return []byte("{}"), nil
	}
	return m.pairs.MarshalJSON()
}

func (m *Methods) UnmarshalJSON(data []byte) error {
	m.pairs = orderedmap.New[string, string]()
	return m.pairs.UnmarshalJSON(data)
}

func (Methods) JSONSchema() *jsonschema.Schema {
	return &jsonschema.Schema{
		Type:                 "object",
		Description:          "HTTP methods supported by the endpoint, each with a description.",
		AdditionalProperties: &jsonschema.Schema{Type: "string"},
	}
}

// CustomValue is one known value of a custom type.
type CustomValue struct {
	Value       Literal `json:"value" jsonschema:"required"`
	Name        string  `json:"name" jsonschema:"required"`
	Description string  `json:"description"`
	Uncertain   bool    `json:"uncertain,omitempty" jsonschema_description:"The meaning of this value is a guess."`
}

// TypeMap holds custom types keyed by value_name.
type TypeMap map[string][]CustomValue

// With returns the type map with overlay's types replacing same-named ones.
func (t TypeMap) With(overlay TypeMap) TypeMap {
	if len(overlay) == 0 {
		return t
	}
	if len(t) == 0 {
		return overlay
	}
	merged := make(TypeMap, len(t)+len(overlay))
	for name, values := range t {
		merged[name] = values
	}
	for name, values := range overlay {
		merged[name] = values
	}
	return merged
}

// Example returns the first value of the named type, for "e.g." hints.
func (t TypeMap) Example(name string) (string, bool) {
	values := t[name]
	if len(values) == 0 {
		return "", false
	}
	return values[0].Value.String(), true
}

// Literal is a JSON scalar kept as written.
type Literal json.RawMessage

// String returns strings without their quotes and anything else verbatim.
func (l Literal) String() string {
	if len(l) > 0 && l[0] == '"' {
		var s string
		if err := json.Unmarshal(l, &s); err == nil {
			return s
		}
	}
	return string(l)
}

func (l Literal) MarshalJSON() ([]byte, error) {
	if len(l) == 0 {
		return []byte("null"), nil
	}
	return l, nil
}

func (l *Literal) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && (data[0] == '{' || data[0] == '[') {
		return fmt.Errorf("custom type value must be a scalar, got %s", data)
	}
	*l = append((*l)[:0], data...)
	return nil
}

func (Literal) JSONSchema() *jsonschema.Schema {
	return &jsonschema.Schema{
		OneOf: []*jsonschema.Schema{
			{Type: "string"},
			{Type: "number"},
			{Type: "boolean"},
		},
	}
}

// LoadTypeMap reads a custom type map file.
func LoadTypeMap(path string) (TypeMap, error) {
	data, err := readFile(path)
	if err != nil {
		return nil, err
	}
	var typeMap TypeMap
	if err := json.Unmarshal(data, &typeMap); err != nil {
		return nil, errors.NewMetadataError(fmt.Sprintf("failed to parse %s", path), err)
	}
	return typeMap, nil
}

// CatalogSchema returns the JSON Schema of the endpoint metadata file.
func CatalogSchema() *jsonschema.Schema {
	r := &jsonschema.Reflector{
		DoNotReference:             true,
		ExpandedStruct:             true,
		RequiredFromJSONSchemaTags: true,
	}
	endpoint := r.Reflect(&Endpoint{})
	endpoint.Version = ""

	return &jsonschema.Schema{
		Version:              jsonschema.Version,
		Title:                "Gateway endpoint metadata",
		Description:          "Endpoints keyed by \"Category / Sub / Name\".",
		Type:                 "object",
		AdditionalProperties: endpoint,
	}
}

// TypeMapSchema returns the JSON Schema of a custom type map file.
func TypeMapSchema() *jsonschema.Schema {
	r := &jsonschema.Reflector{
		DoNotReference:             true,
		ExpandedStruct:             true,
		RequiredFromJSONSchemaTags: true,
	}
	value := r.Reflect(&CustomValue{})
	value.Version = ""

	return &jsonschema.Schema{
		Version:              jsonschema.Version,
		Title:                "Custom type map",
		Type:                 "object",
		AdditionalProperties: &jsonschema.Schema{Type: "array", Items: value},
	}
}

func (Text) JSONSchema() *jsonschema.Schema {
	return &jsonschema.Schema{
		OneOf: []*jsonschema.Schema{
			{Type: "string"},
			{Type: "null"},
		},
	}
}

func (EID) JSONSchema() *jsonschema.Schema {
	return &jsonschema.Schema{
		OneOf: []*jsonschema.Schema{
			{Type: "string"},
			{Type: "integer"},
		},
	}
}
