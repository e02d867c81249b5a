package schema

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcncl/enphase-api/internal/errors"
)

// tables builds a TableSet from JSON, the same format endpoint overrides use.
func tables(t *testing.T, text string) *TableSet {
	t.Helper()
	set := NewTableSet()
	require.NoError(t, json.Unmarshal([]byte(text), set))
	return set
}

func field(t *testing.T, set *TableSet, table, name string) FieldDescriptor {
	t.Helper()
	tbl, ok := set.Get(table)
	require.True(t, ok, "missing table %q", table)
	d, ok := tbl.Get(name)
	require.True(t, ok, "missing field %q in %q", name, table)
	return d
}

func TestMerge_AddsMissingTablesAndFields(t *testing.T) {
	a := tables(t, `{".": {"production": {"type": "Object", "value": "`+"`Production` object"+`"}}}`)
	b := tables(t, `{".": {"consumption": {"type": "Number"}}, "Production": {"wNow": {"type": "Number"}}}`)

	merged, err := Merge(a, b, MarkNone)
	require.NoError(t, err)

	assert.Equal(t, []string{".", "Production"}, merged.Names())
	root, _ := merged.Get(".")
	assert.Equal(t, []string{"production", "consumption"}, root.Names())
	assert.False(t, field(t, merged, ".", "consumption").Optional)
	assert.False(t, field(t, merged, "Production", "wNow").Optional)
}

func TestMerge_DoesNotModifyInputs(t *testing.T) {
	a := tables(t, `{"X": {"a": {"type": "Number"}}}`)
	b := tables(t, `{"X": {"b": {"type": "String"}}}`)
	aBefore, bBefore := a.Clone(), b.Clone()

	_, err := Merge(a, b, MarkFields)
	require.NoError(t, err)

	assert.True(t, a.Equal(aBefore))
	assert.True(t, b.Equal(bBefore))
}

func TestMerge_OptionalitySymmetry(t *testing.T) {
	a := tables(t, `{"X": {"a": {"type": "Number"}, "shared": {"type": "String"}}}`)
	b := tables(t, `{"X": {"b": {"type": "Number"}, "shared": {"type": "String"}}}`)

	for name, pair := range map[string][2]*TableSet{"a then b": {a, b}, "b then a": {b, a}} {
		t.Run(name, func(t *testing.T) {
			merged, err := Merge(pair[0], pair[1], MarkFields)
			require.NoError(t, err)
			assert.True(t, field(t, merged, "X", "a").Optional)
			assert.True(t, field(t, merged, "X", "b").Optional)
			assert.False(t, field(t, merged, "X", "shared").Optional)
		})
	}
}

func TestMerge_NewTablesAreNotOptional(t *testing.T) {
	a := tables(t, `{".": {"x": {"type": "Object"}}}`)
	b := tables(t, `{".": {"x": {"type": "Object"}}, "X": {"a": {"type": "Number"}}}`)

	merged, err := Merge(a, b, MarkFields)
	require.NoError(t, err)
	assert.False(t, field(t, merged, "X", "a").Optional)
}

func TestMerge_NoMarkingWithoutDepth(t *testing.T) {
	a := tables(t, `{"X": {"a": {"type": "Number"}}}`)
	b := tables(t, `{"X": {"b": {"type": "Number"}}}`)

	merged, err := Merge(a, b, MarkNone)
	require.NoError(t, err)
	assert.False(t, field(t, merged, "X", "a").Optional)
	assert.False(t, field(t, merged, "X", "b").Optional)
}

func TestMerge_DescriptionOnlyFieldsAreNeverMarked(t *testing.T) {
	a := tables(t, `{"X": {"a": {"type": "Number"}, "note": "documented elsewhere"}}`)
	b := tables(t, `{"X": {"a": {"type": "Number"}}}`)

	merged, err := Merge(a, b, MarkFields)
	require.NoError(t, err)
	d := field(t, merged, "X", "note")
	assert.True(t, d.IsNote())
	assert.False(t, d.Optional)
}

func TestMerge_SentinelAbsorption(t *testing.T) {
	unknown := `{"x": {"type": "Array(Unknown)", "value": "Array of Unknown"}}`
	numbers := `{"x": {"type": "Array(Number)", "value": "Array of Number"}}`

	tests := []struct {
		name string
		a, b string
	}{
		{"unknown first", unknown, numbers},
		{"unknown second", numbers, unknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			merged, err := Merge(tables(t, `{".": `+tt.a+`}`), tables(t, `{".": `+tt.b+`}`), MarkFields)
			require.NoError(t, err)
			d := field(t, merged, ".", "x")
			assert.Equal(t, "Array(Number)", d.Type.String())
			assert.Equal(t, "Array of Number", d.Value)
			assert.False(t, d.Optional)
		})
	}
}

func TestMerge_TypeOnlySentinel(t *testing.T) {
	merged, err := Merge(
		tables(t, `{".": {"x": {"type": "Array(Unknown)"}}}`),
		tables(t, `{".": {"x": {"type": "Array(Number)"}}}`),
		MarkNone,
	)
	require.NoError(t, err)
	root, _ := merged.Get(".")
	want := NewTable()
	want.Set("x", Typed(ArrayOf(Number)))
	assert.True(t, root.Equal(want))
}

func TestMerge_Conflicts(t *testing.T) {
	tests := []struct {
		name string
		a, b string
		path []string
	}{
		{
			name: "number vs object",
			a:    `{".": {"production": {"type": "Number"}}}`,
			b:    `{".": {"production": {"type": "Object", "value": "` + "`Production` object" + `"}}}`,
			path: []string{".", "production", "type"},
		},
		{
			name: "different table references",
			a:    `{"X": {"y": {"type": "Object", "value": "A"}}}`,
			b:    `{"X": {"y": {"type": "Object", "value": "B"}}}`,
			path: []string{"X", "y", "value"},
		},
		{
			name: "two descriptions",
			a:    `{"X": {"y": {"type": "Number", "description": "one"}}}`,
			b:    `{"X": {"y": {"type": "Number", "description": "two"}}}`,
			path: []string{"X", "y", "description"},
		},
		{
			name: "two notes",
			a:    `{"X": {"y": "one"}}`,
			b:    `{"X": {"y": "two"}}`,
			path: []string{"X", "y"},
		},
		{
			name: "allow_negative",
			a:    `{"X": {"y": {"allow_negative": true}}}`,
			b:    `{"X": {"y": {"allow_negative": false}}}`,
			path: []string{"X", "y", "allow_negative"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Merge(tables(t, tt.a), tables(t, tt.b), MarkFields)
			require.Error(t, err)

			var conflict *ConflictError
			require.ErrorAs(t, err, &conflict)
			assert.Equal(t, tt.path, conflict.Path)
			assert.ErrorIs(t, err, errors.ErrSchemaConflict)
		})
	}
}

func TestMerge_ConflictMessageNamesDottedPath(t *testing.T) {
	_, err := Merge(
		tables(t, `{".": {"a": {"type": "Number"}}}`),
		tables(t, `{".": {"a": {"type": "String"}}}`),
		MarkFields,
	)
	assert.EqualError(t, err, "conflict at ..a.type")
}

func TestMerge_FoldsDescriptionsEitherWay(t *testing.T) {
	inferred := `{"X": {"wNow": {"type": "Number"}}}`
	note := `{"X": {"wNow": "Current production in watts."}}`

	t.Run("note into descriptor", func(t *testing.T) {
		merged, err := Merge(tables(t, inferred), tables(t, note), MarkNone)
		require.NoError(t, err)
		d := field(t, merged, "X", "wNow")
		assert.Equal(t, "Number", d.Type.String())
		assert.Equal(t, "Current production in watts.", d.Description)
		assert.False(t, d.IsNote())
	})

	t.Run("descriptor into note", func(t *testing.T) {
		merged, err := Merge(tables(t, note), tables(t, inferred), MarkNone)
		require.NoError(t, err)
		d := field(t, merged, "X", "wNow")
		assert.Equal(t, "Number", d.Type.String())
		assert.Equal(t, "Current production in watts.", d.Description)
	})
}

func TestMerge_OverridesAddMetadata(t *testing.T) {
	inferred := tables(t, `{".": {"status": {"type": "String"}, "limit": {"type": "Number"}}}`)
	overrides := tables(t, `{".": {
		"status": {"value_name": "Status", "description": "Device status."},
		"limit": {"allow_negative": false, "optional": true}
	}}`)

	merged, err := Merge(inferred, overrides, MarkNone)
	require.NoError(t, err)

	status := field(t, merged, ".", "status")
	assert.Equal(t, "String", status.Type.String())
	assert.Equal(t, "Status", status.ValueName)
	assert.Equal(t, "Device status.", status.Description)

	limit := field(t, merged, ".", "limit")
	require.NotNil(t, limit.AllowNegative)
	assert.False(t, *limit.AllowNegative)
	assert.True(t, limit.Optional)
}

func TestMerge_CommutativeOnDisjointKeys(t *testing.T) {
	a := tables(t, `{".": {"a": {"type": "Number"}}, "A": {"x": {"type": "String"}}}`)
	b := tables(t, `{".": {"b": {"type": "Boolean"}}, "B": {"y": {"type": "Null"}}}`)

	for _, depth := range []int{MarkNone, MarkFields} {
		ab, err := Merge(a, b, depth)
		require.NoError(t, err)
		ba, err := Merge(b, a, depth)
		require.NoError(t, err)
		assert.True(t, ab.Equal(ba), "depth %d", depth)
	}
}

func TestMerge_NilSides(t *testing.T) {
	b := tables(t, `{"X": {"a": {"type": "Number"}}}`)

	merged, err := Merge(nil, b, MarkFields)
	require.NoError(t, err)
	assert.True(t, merged.Equal(b))

	merged, err = Merge(b, nil, MarkFields)
	require.NoError(t, err)
	assert.True(t, merged.Equal(b))
}
