package analyzer

import (
	"encoding/json"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/iancoleman/strcase"
	"github.com/mcncl/enphase-api/internal/config"
	"github.com/mcncl/enphase-api/internal/errors"
	"github.com/mcncl/enphase-api/internal/models"
	"github.com/mcncl/enphase-api/internal/schema"
)

// Analyzer derives table sets from JSON samples.
type Analyzer struct {
	// tableNamer turns a JSON key into the last segment of a child table name
	tableNamer func(key string) string
}

// NewAnalyzer creates a new Analyzer instance.
func NewAnalyzer() *Analyzer {
	return &Analyzer{tableNamer: Capitalize}
}

// NewAnalyzerWithConfig creates an Analyzer honouring the naming settings.
func NewAnalyzerWithConfig(cfg *config.Config) *Analyzer {
	a := NewAnalyzer()
	if cfg != nil && cfg.Naming.TableNames == config.NamingCamel {
		a.tableNamer = strcase.ToCamel
	}
	return a
}

// Analyze infers the table set of a parsed document.
func (a *Analyzer) Analyze(doc models.Document, overrides *schema.TableSet) (*schema.TableSet, error) {
	return a.Infer(doc.Root, schema.RootTable, overrides)
}

// Infer derives the table set describing value. Child tables are named
// after their position below tableName unless overrides gives the field a
// value_name. A scalar or scalar array at the root is described as the
// single field "." of the root table; the objects of a root array are
// described by the root table itself.
func (a *Analyzer) Infer(value models.JSONValue, tableName string, overrides *schema.TableSet) (*schema.TableSet, error) {
	obj, isObject := value.(*models.JSONObject)
	if !isObject {
		obj = models.NewJSONObject()
		obj.Set(schema.RootTable, value)
	}

	var fieldMap *schema.Table
	if overrides != nil {
		fieldMap, _ = overrides.Get(tableName)
	}

	current := schema.NewTable()
	var children *schema.TableSet

	absorb := func(child *schema.TableSet) error {
		if children == nil {
			children = child
			return nil
		}
		merged, err := schema.Merge(children, child, schema.MarkFields)
		if err != nil {
			return err
		}
		children = merged
		return nil
	}

	err := obj.Range(func(key string, v models.JSONValue) error {
		switch val := v.(type) {
		case *models.JSONObject:
			childName := a.TableName(fieldMap, tableName, key)
			child, err := a.Infer(val, childName, overrides)
			if err != nil {
				return err
			}
			if err := absorb(child); err != nil {
				return err
			}
			current.Set(key, schema.ObjectRef(childName))

		case models.JSONArray:
			if len(val) == 0 {
				current.Set(key, schema.ArrayField(schema.Unknown))
				return nil
			}
			if _, isObject := val[0].(*models.JSONObject); !isObject {
				current.Set(key, schema.ArrayField(TypeOf(val[0])))
				return nil
			}

			childName := a.TableName(fieldMap, tableName, key)
			for i, item := range val {
				itemObj, isObject := item.(*models.JSONObject)
				if !isObject {
					return errors.NewAnalysisError(
						fmt.Sprintf("element %d of %q is %s, expected an object like the first", i, key, TypeOf(item)),
						errors.ErrMixedArray,
					)
				}
				child, err := a.Infer(itemObj, childName, overrides)
				if err != nil {
					return err
				}
				if err := absorb(child); err != nil {
					return err
				}
			}
			current.Set(key, schema.ObjectArrayRef(childName))

		default:
			current.Set(key, schema.Typed(TypeOf(val)))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	result := schema.NewTableSet()
	result.Set(tableName, current)
	if children == nil {
		return result, nil
	}
	// The elements of a root array describe the root itself, so their table
	// replaces the synthetic wrapper.
	if _, clash := children.Get(tableName); clash && !isObject {
		return children, nil
	}
	// A child may share its name with this table when overrides say so; its
	// fields are merged in rather than replacing ours.
	return schema.Merge(result, children, schema.MarkFields)
}

// TableName returns the name of the table describing the object stored under
// key in the table called parent.
func (a *Analyzer) TableName(fieldMap *schema.Table, parent, key string) string {
	if d, ok := fieldMap.Get(key); ok && !d.IsNote() && d.ValueName != "" {
		return d.ValueName
	}
	if parent != "" && parent != schema.RootTable {
		return parent + "." + a.tableNamer(key)
	}
	return a.tableNamer(key)
}

// TypeOf classifies a scalar JSON value. Containers are Unknown here; the
// caller handles them.
func TypeOf(v models.JSONValue) schema.FieldType {
	switch v.(type) {
	case bool:
		return schema.Boolean
	case json.Number, float64, float32, int, int64:
		return schema.Number
	case string:
		return schema.String
	case nil:
		return schema.Null
	default:
		return schema.Unknown
	}
}

// Capitalize upper-cases the first letter of key and lower-cases the rest.
func Capitalize(key string) string {
	first, size := utf8.DecodeRuneInString(key)
	if first == utf8.RuneError {
		return key
	}
	return string(unicode.ToUpper(first)) + strings.ToLower(key[size:])
}
