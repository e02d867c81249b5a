package analyzer

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcncl/enphase-api/internal/config"
	"github.com/mcncl/enphase-api/internal/errors"
	"github.com/mcncl/enphase-api/internal/models"
	"github.com/mcncl/enphase-api/internal/parser"
	"github.com/mcncl/enphase-api/internal/schema"
)

func infer(t *testing.T, text string) *schema.TableSet {
	t.Helper()
	doc, err := parser.ParseString(text)
	require.NoError(t, err)
	set, err := NewAnalyzer().Analyze(doc, nil)
	require.NoError(t, err)
	return set
}

func field(t *testing.T, set *schema.TableSet, table, name string) schema.FieldDescriptor {
	t.Helper()
	tbl, ok := set.Get(table)
	require.True(t, ok, "missing table %q in %v", table, set.Names())
	d, ok := tbl.Get(name)
	require.True(t, ok, "missing field %q in %q", name, table)
	return d
}

func TestInfer_FlatObject(t *testing.T) {
	set := infer(t, `{"a": 1, "b": "hi", "c": null}`)

	assert.Equal(t, []string{"."}, set.Names())
	root, _ := set.Get(".")
	assert.Equal(t, []string{"a", "b", "c"}, root.Names())

	for name, want := range map[string]string{"a": "Number", "b": "String", "c": "Null"} {
		d := field(t, set, ".", name)
		assert.Equal(t, want, d.Type.String(), name)
		assert.False(t, d.Optional, name)
		assert.Empty(t, d.Value, name)
	}
}

func TestInfer_NestedObjectNaming(t *testing.T) {
	set := infer(t, `{"production": {"watts": 5}}`)

	assert.Equal(t, []string{".", "Production"}, set.Names())
	production := field(t, set, ".", "production")
	assert.Equal(t, "Object", production.Type.String())
	assert.Equal(t, "`Production` object", production.Value)
	assert.Equal(t, "Number", field(t, set, "Production", "watts").Type.String())
}

func TestInfer_DeepNamingKeepsScope(t *testing.T) {
	set := infer(t, `{"agg_p_mw": 1, "storage": {"acb": {"wNow": 0}}}`)

	assert.Equal(t, []string{".", "Storage", "Storage.Acb"}, set.Names())
	assert.Equal(t, "`Storage.Acb` object", field(t, set, "Storage", "acb").Value)
}

func TestInfer_ArrayOfObjectsWithMissingField(t *testing.T) {
	set := infer(t, `{"items": [{"a": 1, "b": 2}, {"a": 3}]}`)

	items := field(t, set, ".", "items")
	assert.Equal(t, "Array(Object)", items.Type.String())
	assert.Equal(t, "Array of `Items`", items.Value)

	assert.False(t, field(t, set, "Items", "a").Optional)
	assert.True(t, field(t, set, "Items", "b").Optional)
}

func TestInfer_NestedArraysMarkTheirOwnTables(t *testing.T) {
	set := infer(t, `{"meters": [
		{"eid": 1, "lines": [{"p": 1}]},
		{"eid": 2, "lines": [{"p": 2, "q": 3}], "extra": true}
	]}`)

	assert.False(t, field(t, set, "Meters", "eid").Optional)
	assert.False(t, field(t, set, "Meters", "lines").Optional)
	assert.True(t, field(t, set, "Meters", "extra").Optional)
	assert.True(t, field(t, set, "Meters.Lines", "q").Optional)
	assert.False(t, field(t, set, "Meters.Lines", "p").Optional)
}

func TestInfer_ScalarArrays(t *testing.T) {
	set := infer(t, `{"empty": [], "nums": [1, 2], "strs": ["a"], "nested": [[1]], "nulls": [null]}`)

	tests := map[string][2]string{
		"empty":  {"Array(Unknown)", "Array of Unknown"},
		"nums":   {"Array(Number)", "Array of Number"},
		"strs":   {"Array(String)", "Array of String"},
		"nested": {"Array(Unknown)", "Array of Unknown"},
		"nulls":  {"Array(Null)", "Array of Null"},
	}
	for name, want := range tests {
		d := field(t, set, ".", name)
		assert.Equal(t, want[0], d.Type.String(), name)
		assert.Equal(t, want[1], d.Value, name)
	}
}

func TestInfer_RootArrayIsWrapped(t *testing.T) {
	set := infer(t, `[{"serialNumber": "1", "lastReportWatts": 5, "devType": {"id": 1}}, {"serialNumber": "2", "devType": {"id": 2}}]`)

	assert.Equal(t, []string{".", "Devtype"}, set.Names())
	root, _ := set.Get(".")
	assert.Equal(t, []string{"serialNumber", "lastReportWatts", "devType"}, root.Names())
	assert.False(t, field(t, set, ".", "serialNumber").Optional)
	assert.True(t, field(t, set, ".", "lastReportWatts").Optional)
}

func TestInfer_RootScalarArrayIsWrapped(t *testing.T) {
	set := infer(t, `[1, 2]`)
	assert.Equal(t, "Array(Number)", field(t, set, ".", ".").Type.String())
}

func TestInfer_RootScalarIsWrapped(t *testing.T) {
	set := infer(t, `42`)
	assert.Equal(t, "Number", field(t, set, ".", ".").Type.String())
}

func TestInfer_OverrideNamesChildTable(t *testing.T) {
	overrides := schema.NewTableSet()
	require.NoError(t, json.Unmarshal([]byte(`{".": {"production": {"value_name": "Meter"}, "consumption": {"value_name": "Meter"}}}`), overrides))

	doc, err := parser.ParseString(`{"production": {"wNow": 1, "whToday": 2}, "consumption": {"wNow": 3}}`)
	require.NoError(t, err)

	set, err := NewAnalyzer().Analyze(doc, overrides)
	require.NoError(t, err)

	assert.Equal(t, []string{".", "Meter"}, set.Names())
	assert.Equal(t, "`Meter` object", field(t, set, ".", "production").Value)
	assert.False(t, field(t, set, "Meter", "wNow").Optional)
	assert.True(t, field(t, set, "Meter", "whToday").Optional)
}

func TestInfer_OverrideNotesDoNotRename(t *testing.T) {
	overrides := schema.NewTableSet()
	require.NoError(t, json.Unmarshal([]byte(`{".": {"production": "Production figures."}}`), overrides))

	set, err := NewAnalyzer().Infer(mustParse(t, `{"production": {"wNow": 1}}`), ".", overrides)
	require.NoError(t, err)
	assert.Equal(t, []string{".", "Production"}, set.Names())
}

func TestInfer_ConflictBetweenArrayElements(t *testing.T) {
	doc, err := parser.ParseString(`{"items": [{"a": 1}, {"a": {"b": 1}}]}`)
	require.NoError(t, err)

	_, err = NewAnalyzer().Analyze(doc, nil)
	require.Error(t, err)

	var conflict *schema.ConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, []string{"Items", "a", "type"}, conflict.Path)
}

func TestInfer_MixedArray(t *testing.T) {
	doc, err := parser.ParseString(`{"items": [{"a": 1}, 2]}`)
	require.NoError(t, err)

	_, err = NewAnalyzer().Analyze(doc, nil)
	assert.ErrorIs(t, err, errors.ErrMixedArray)
}

func TestInfer_Deterministic(t *testing.T) {
	text := `{"production": [{"type": "inverters", "wNow": 1}, {"type": "eim", "lines": [{"wNow": 2}]}], "storage": [{"type": "acb"}]}`
	first := infer(t, text)
	second := infer(t, text)

	assert.True(t, first.Equal(second))
	a, err := json.Marshal(first)
	require.NoError(t, err)
	b, err := json.Marshal(second)
	require.NoError(t, err)
	assert.Equal(t, string(a), string(b))
}

func TestInfer_TwoExamplesMergedAtFieldDepth(t *testing.T) {
	first := infer(t, `{"x": {"a": 1}}`)
	second := infer(t, `{"x": {}}`)

	merged, err := schema.Merge(first, second, schema.MarkFields)
	require.NoError(t, err)

	a := field(t, merged, "X", "a")
	assert.Equal(t, "Number", a.Type.String())
	assert.True(t, a.Optional)
}

func TestTypeOf_Totality(t *testing.T) {
	tests := []struct {
		name  string
		value models.JSONValue
		want  schema.FieldType
	}{
		{"true", true, schema.Boolean},
		{"false", false, schema.Boolean},
		{"integer", json.Number("1"), schema.Number},
		{"zero", json.Number("0"), schema.Number},
		{"float", json.Number("-2.5e3"), schema.Number},
		{"float64", 1.5, schema.Number},
		{"string", "x", schema.String},
		{"empty string", "", schema.String},
		{"null", nil, schema.Null},
		{"object", models.NewJSONObject(), schema.Unknown},
		{"array", models.JSONArray{}, schema.Unknown},
	}

	allowed := map[string]bool{"Number": true, "Boolean": true, "String": true, "Null": true, "Unknown": true}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := TypeOf(tt.value)
			assert.Equal(t, tt.want, got)
			assert.True(t, allowed[got.String()])
		})
	}
}

func TestTableName(t *testing.T) {
	overrides := schema.NewTable()
	overrides.Set("acb", schema.FieldDescriptor{ValueName: "Battery"})

	a := NewAnalyzer()
	assert.Equal(t, "Production", a.TableName(nil, ".", "production"))
	assert.Equal(t, "Production", a.TableName(nil, "", "PRODUCTION"))
	assert.Equal(t, "Storage.Lines", a.TableName(nil, "Storage", "lines"))
	assert.Equal(t, "Battery", a.TableName(overrides, "Storage", "acb"))
	assert.Equal(t, "Meterreadings", a.TableName(nil, ".", "meterReadings"))

	camel := NewAnalyzerWithConfig(&config.Config{Naming: config.NamingConfig{TableNames: config.NamingCamel}})
	assert.Equal(t, "MeterReadings", camel.TableName(nil, ".", "meterReadings"))
	assert.Equal(t, "Storage.ActivePower", camel.TableName(nil, "Storage", "active_power"))
}

func TestCapitalize(t *testing.T) {
	assert.Equal(t, "", Capitalize(""))
	assert.Equal(t, "Eim", Capitalize("EIM"))
	assert.Equal(t, "Élan", Capitalize("élan"))
	assert.Equal(t, "1st", Capitalize("1ST"))
}

func mustParse(t *testing.T, text string) models.JSONValue {
	t.Helper()
	v, err := parser.Value(text)
	require.NoError(t, err)
	return v
}
