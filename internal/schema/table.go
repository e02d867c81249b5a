package schema

import (
	"encoding/json"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// RootTable is the name of the anonymous table describing a document's root.
const RootTable = "."

// Table maps field names to descriptors in the order fields were first seen.
type Table struct {
	fields *orderedmap.OrderedMap[string, FieldDescriptor]
}

// NewTable returns an empty table.
func NewTable() *Table {
	return &Table{fields: orderedmap.New[string, FieldDescriptor]()}
}

func (t *Table) init() {
	if t.fields == nil {
		t.fields = orderedmap.New[string, FieldDescriptor]()
	}
}

// Set stores d under name, keeping the position of an existing field.
func (t *Table) Set(name string, d FieldDescriptor) {
	t.init()
	t.fields.Set(name, d)
}

// Get returns the descriptor of name.
func (t *Table) Get(name string) (FieldDescriptor, bool) {
	if t == nil || t.fields == nil {
		return FieldDescriptor{}, false
	}
	return t.fields.Get(name)
}

// Has reports whether the table contains name.
func (t *Table) Has(name string) bool {
	_, ok := t.Get(name)
	return ok
}

// Len returns the number of fields.
func (t *Table) Len() int {
	if t == nil || t.fields == nil {
		return 0
	}
	return t.fields.Len()
}

// Names returns the field names in order.
func (t *Table) Names() []string {
	names := make([]string, 0, t.Len())
	t.Range(func(name string, _ FieldDescriptor) {
		names = append(names, name)
	})
	return names
}

// Range calls fn for every field in order.
func (t *Table) Range(fn func(name string, d FieldDescriptor)) {
	if t.Len() == 0 {
		return
	}
	for pair := t.fields.Oldest(); pair != nil; pair = pair.Next() {
		fn(pair.Key, pair.Value)
	}
}

// Clone returns a copy that can be modified independently.
func (t *Table) Clone() *Table {
	clone := NewTable()
	t.Range(func(name string, d FieldDescriptor) {
		clone.Set(name, d)
	})
	return clone
}

// Equal reports whether both tables hold equal descriptors under the same
// names. Field order is ignored.
func (t *Table) Equal(other *Table) bool {
	if t.Len() != other.Len() {
		return false
	}
	equal := true
	t.Range(func(name string, d FieldDescriptor) {
		o, ok := other.Get(name)
		if !ok || !d.Equal(o) {
			equal = false
		}
	})
	return equal
}

// MarshalJSON implements json.Marshaler
func (t *Table) MarshalJSON() ([]byte, error) {
	t.init()
	return t.fields.MarshalJSON()
}

// UnmarshalJSON implements json.Unmarshaler
func (t *Table) UnmarshalJSON(data []byte) error {
	t.fields = orderedmap.New[string, FieldDescriptor]()
	return t.fields.UnmarshalJSON(data)
}

// TableSet maps table names to tables, root table first.
type TableSet struct {
	tables *orderedmap.OrderedMap[string, *Table]
}

// NewTableSet returns an empty set.
func NewTableSet() *TableSet {
	return &TableSet{tables: orderedmap.New[string, *Table]()}
}

func (s *TableSet) init() {
	if s.tables == nil {
		s.tables = orderedmap.New[string, *Table]()
	}
}

// Set stores table under name.
func (s *TableSet) Set(name string, table *Table) {
	s.init()
	s.tables.Set(name, table)
}

// Get returns the table called name.
func (s *TableSet) Get(name string) (*Table, bool) {
	if s == nil || s.tables == nil {
		return nil, false
	}
	return s.tables.Get(name)
}

// Len returns the number of tables.
func (s *TableSet) Len() int {
	if s == nil || s.tables == nil {
		return 0
	}
	return s.tables.Len()
}

// Names returns the table names in order.
func (s *TableSet) Names() []string {
	names := make([]string, 0, s.Len())
	s.Range(func(name string, _ *Table) {
		names = append(names, name)
	})
	return names
}

// Range calls fn for every table in order.
func (s *TableSet) Range(fn func(name string, table *Table)) {
	if s.Len() == 0 {
		return
	}
	for pair := s.tables.Oldest(); pair != nil; pair = pair.Next() {
		fn(pair.Key, pair.Value)
	}
}

// Clone returns a deep copy.
func (s *TableSet) Clone() *TableSet {
	clone := NewTableSet()
	s.Range(func(name string, table *Table) {
		clone.Set(name, table.Clone())
	})
	return clone
}

// Equal compares two sets ignoring table and field order.
func (s *TableSet) Equal(other *TableSet) bool {
	if s.Len() != other.Len() {
		return false
	}
	equal := true
	s.Range(func(name string, table *Table) {
		o, ok := other.Get(name)
		if !ok || !table.Equal(o) {
			equal = false
		}
	})
	return equal
}

// MarshalJSON implements json.Marshaler
func (s *TableSet) MarshalJSON() ([]byte, error) {
	s.init()
	return s.tables.MarshalJSON()
}

// UnmarshalJSON implements json.Unmarshaler
func (s *TableSet) UnmarshalJSON(data []byte) error {
	s.tables = orderedmap.New[string, *Table]()
	if err := s.tables.UnmarshalJSON(data); err != nil {
		return err
	}
	// A table written as null still needs to be usable.
	s.Range(func(name string, table *Table) {
		if table == nil {
			s.tables.Set(name, NewTable())
		}
	})
	return nil
}

var (
	_ json.Marshaler   = (*TableSet)(nil)
	_ json.Unmarshaler = (*TableSet)(nil)
)
