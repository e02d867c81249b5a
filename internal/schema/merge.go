package schema

import (
	"strings"

	"github.com/mcncl/enphase-api/internal/errors"
)

// Depths at which Merge records optionality. Path length 0 is the table set,
// 1 a table's fields and 2 the attributes of a descriptor, so only MarkFields
// has any effect on descriptors.
const (
	MarkNone   = -1
	MarkFields = 1
)

// ConflictError reports two samples that disagree about the same field.
type ConflictError struct {
	Path []string
}

func (e *ConflictError) Error() string {
	return "conflict at " + strings.Join(e.Path, ".")
}

// Is makes ConflictError match errors.ErrSchemaConflict.
func (e *ConflictError) Is(target error) bool {
	return target == errors.ErrSchemaConflict
}

// Merge combines b into a copy of a and returns it; neither input is
// modified.
//
// Tables and fields only present in b are added. Descriptors present on both
// sides are merged attribute by attribute: a bare description folds into
// the other side, an empty array's type and value yield to the other side, and
// any other disagreement is a *ConflictError naming the path.
//
// When markOptionalAtDepth is MarkFields, a field present on only one side of
// a table present on both becomes optional.
func Merge(a, b *TableSet, markOptionalAtDepth int) (*TableSet, error) {
	merged := a.Clone()

	var err error
	b.Range(func(name string, table *Table) {
		if err != nil {
			return
		}
		existing, ok := merged.Get(name)
		if !ok {
			merged.Set(name, table.Clone())
			return
		}
		err = mergeTable(existing, table, []string{name}, markOptionalAtDepth)
	})
	if err != nil {
		return nil, err
	}
	return merged, nil
}

// mergeTable merges b into a in place. a must be owned by the caller.
func mergeTable(a, b *Table, path []string, markOptionalAtDepth int) error {
	mark := len(path) == markOptionalAtDepth

	var err error
	b.Range(func(name string, incoming FieldDescriptor) {
		if err != nil {
			return
		}
		existing, ok := a.Get(name)
		if !ok {
			if mark && !incoming.IsNote() && incoming.HasType() {
				incoming.Optional = true
			}
			a.Set(name, incoming)
			return
		}
		var merged FieldDescriptor
		merged, err = mergeDescriptor(existing, incoming, append(path[:len(path):len(path)], name))
		if err == nil {
			a.Set(name, merged)
		}
	})
	if err != nil {
		return err
	}

	if mark {
		for _, name := range a.Names() {
			d, _ := a.Get(name)
			if !b.Has(name) && d.HasType() {
				d.Optional = true
				a.Set(name, d)
			}
		}
	}
	return nil
}

func mergeDescriptor(a, b FieldDescriptor, path []string) (FieldDescriptor, error) {
	switch {
	case a.Equal(b):
		return a, nil
	case a.IsNote() && b.IsNote():
		return FieldDescriptor{}, &ConflictError{Path: path}
	case b.IsNote():
		a.Description = b.Description
		return a, nil
	case a.IsNote():
		b.Description = a.Description
		return b, nil
	}

	merged := a
	at := func(attr string) []string {
		return append(path[:len(path):len(path)], attr)
	}

	switch {
	case b.Type == nil:
	case a.Type == nil, a.Type.IsUnknownArray():
		merged.Type = b.Type
	case b.Type.IsUnknownArray(), a.Type.Equal(*b.Type):
	default:
		return FieldDescriptor{}, &ConflictError{Path: at("type")}
	}

	value, ok := mergeText(a.Value, b.Value, UnknownArrayValue)
	if !ok {
		return FieldDescriptor{}, &ConflictError{Path: at("value")}
	}
	merged.Value = value

	if merged.ValueName, ok = mergeText(a.ValueName, b.ValueName, ""); !ok {
		return FieldDescriptor{}, &ConflictError{Path: at("value_name")}
	}
	if merged.Description, ok = mergeText(a.Description, b.Description, ""); !ok {
		return FieldDescriptor{}, &ConflictError{Path: at("description")}
	}

	merged.Optional = a.Optional || b.Optional

	switch {
	case b.AllowNegative == nil:
	case a.AllowNegative == nil:
		merged.AllowNegative = b.AllowNegative
	case *a.AllowNegative != *b.AllowNegative:
		return FieldDescriptor{}, &ConflictError{Path: at("allow_negative")}
	}

	return merged, nil
}

// mergeText merges an optional string attribute. An empty side or the
// sentinel yields to the other side.
func mergeText(a, b, sentinel string) (string, bool) {
	switch {
	case a == b, b == "":
		return a, true
	case a == "":
		return b, true
	case sentinel != "" && a == sentinel:
		return b, true
	case sentinel != "" && b == sentinel:
		return a, true
	default:
		return "", false
	}
}
