package generator

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcncl/enphase-api/internal/config"
	"github.com/mcncl/enphase-api/internal/metadata"
	"github.com/mcncl/enphase-api/internal/models"
	"github.com/mcncl/enphase-api/internal/schema"
)

func descriptor(t *testing.T, text string) schema.FieldDescriptor {
	t.Helper()
	var d schema.FieldDescriptor
	require.NoError(t, json.Unmarshal([]byte(text), &d))
	return d
}

func typeMap(t *testing.T, text string) metadata.TypeMap {
	t.Helper()
	var tm metadata.TypeMap
	require.NoError(t, json.Unmarshal([]byte(text), &tm))
	return tm
}

func TestTableRow(t *testing.T) {
	types := typeMap(t, `{"Status": [{"value": "normal", "name": "Normal", "description": "OK."}], "Empty": []}`)

	tests := []struct {
		name  string
		field string
		short bool
		want  string
	}{
		{
			name:  "plain number",
			field: `{"type": "Number"}`,
			want:  "|`f`\n|Number\n|Number\n|???\n\n",
		},
		{
			name:  "positive number",
			field: `{"type": "Number", "allow_negative": false, "description": "Watts."}`,
			want:  "|`f`\n|Number\n|Number (> 0)\n|Watts.\n\n",
		},
		{
			name:  "negative allowed",
			field: `{"type": "Number", "allow_negative": true}`,
			want:  "|`f`\n|Number\n|Number\n|???\n\n",
		},
		{
			name:  "long boolean",
			field: `{"type": "Boolean", "optional": true}`,
			want:  "|`f` (Optional)\n|Boolean\n|Boolean (e.g. `true` or `false`)\n|???\n\n",
		},
		{
			name:  "short boolean",
			field: `{"type": "Boolean"}`,
			short: true,
			want:  "|`f`\n|Boolean\n|Boolean (e.g. `0` or `1`)\n|???\n\n",
		},
		{
			name:  "object reference",
			field: `{"type": "Object", "value": "` + "`Production` object" + `", "value_name": "Ignored"}`,
			want:  "|`f`\n|Object\n|`Production` object\n|???\n\n",
		},
		{
			name:  "custom type with example",
			field: `{"type": "String", "value_name": "Status", "description": "Device status."}`,
			want:  "|`f`\n|String\n|`Status` (e.g. `normal`)\n|Device status. In the format `Status`.\n\n",
		},
		{
			name:  "custom type without values",
			field: `{"type": "String", "value_name": "Empty"}`,
			want:  "|`f`\n|String\n|`Empty`\n|???\n\n",
		},
		{
			name:  "custom type on object array is ignored",
			field: `{"type": "Array(Object)", "value_name": "Meter", "description": "Meters."}`,
			want:  "|`f`\n|Array(Object)\n|Array(Object)\n|Meters.\n\n",
		},
		{
			name:  "description only",
			field: `"Only documented, never seen."`,
			want:  "|`f`\n|Unknown\n|Unknown\n|Only documented, never seen.\n\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, TableRow("f", descriptor(t, tt.field), types, tt.short))
		})
	}
}

func TestTableSection_CollectsCustomTypes(t *testing.T) {
	table := schema.NewTable()
	table.Set("a", descriptor(t, `{"type": "Number", "value_name": "Phase"}`))
	table.Set("b", descriptor(t, `{"type": "Object", "value_name": "Meter"}`))
	table.Set("c", descriptor(t, `{"type": "String", "value_name": "Phase"}`))
	table.Set("d", descriptor(t, `{"value_name": "Mode"}`))

	used := &usedTypes{}
	out := NewGenerator().TableSection("Root", table, nil, false, 3, used)

	assert.True(t, strings.HasPrefix(out, "\n=== Root\n\n[cols=\"1,1,1,2\", options=\"header\"]\n|===\n|Name\n|Type\n|Values\n|Description\n\n"))
	assert.True(t, strings.HasSuffix(out, "|===\n"))
	assert.Equal(t, []string{"Phase", "Mode"}, used.names)
}

func TestTypesSection(t *testing.T) {
	types := typeMap(t, `{
		"Phase": [
			{"value": 1, "name": "L1", "description": "First."},
			{"value": 2, "name": "L2", "description": "Second.", "uncertain": true}
		]
	}`)

	want := "\n== Types\n" +
		"\n=== `Phase` Type\n\n" +
		"[cols=\"1,1,2\", options=\"header\"]\n|===\n|Value\n|Name\n|Description\n\n" +
		"|`1`\n|L1\n|First.\n\n" +
		"|`2`?\n|L2\n|Second.\n\n" +
		"|===\n"

	assert.Equal(t, want, TypesSection([]string{"Phase", "Undefined"}, types))
}

func TestMethodsSection(t *testing.T) {
	methods := metadata.NewMethods()
	methods.Set("GET", "Read.")
	methods.Set("POST", "Write.")

	want := "\n=== Methods\n[cols=\"1,2\", options=\"header\"]\n|===\n|Method\n|Description\n\n" +
		"|`GET`\n|Read.\n\n|`POST`\n|Write.\n\n|===\n"
	assert.Equal(t, want, MethodsSection(methods))
}

func TestHeader(t *testing.T) {
	g := NewGenerator()

	out := g.Header("Production - Production", &metadata.Description{Short: "Short.", Long: "Long."}, 1)
	assert.True(t, strings.HasPrefix(out, "= Production - Production\n:toc: preamble\nMatthew1471 <https://github.com/matthew1471[@Matthew1471]>;\n\n// Document Settings:\n"))
	assert.Contains(t, out, ":release-version: 1.0\n:url-org: https://github.com/Matthew1471\n:url-repo: {url-org}/Enphase-API\n")
	assert.Contains(t, out, "\n\nShort.\n\n== Introduction\n\nLong.\n\nEnphase-API is an unofficial project")
	assert.True(t, strings.HasSuffix(out, "link:../../README.adoc[project's homepage].\n"))

	out = g.Header("X", nil, 3)
	assert.Contains(t, out, Placeholder+"\n\n== Introduction\n\nEnphase-API")
	assert.Contains(t, out, "link:../../../../README.adoc")
}

func TestHeader_DocumentSettings(t *testing.T) {
	cfg := config.NewConfig()
	cfg.Document.Author = "Someone"
	cfg.Document.AuthorURL = "https://example.com/someone"
	cfg.Document.Project = "Gateway-Docs"
	cfg.Document.ReleaseVersion = "2.0"

	out := NewGeneratorWithConfig(cfg).Header("X", nil, 1)
	assert.Contains(t, out, "Someone <https://example.com/someone[@Someone]>;\n")
	assert.Contains(t, out, ":release-version: 2.0\n")
	assert.Contains(t, out, "Gateway-Docs is an unofficial project")
}

func TestRequestSection(t *testing.T) {
	g := NewGenerator()

	t.Run("get only", func(t *testing.T) {
		r := &metadata.Request{URI: "production.json"}
		out := g.RequestSection(r, nil, 0, nil, &usedTypes{})
		assert.Equal(t, "\n== Request\n\nA HTTP `GET` to the `/production.json` endpoint provides the following response data.\n\n"+
			"As of recent Gateway software versions this request requires a valid `sessionid` cookie obtained by link:Auth/Check_JWT.adoc[Auth/Check_JWT].\n", out)
	})

	t.Run("no auth", func(t *testing.T) {
		noAuth := false
		r := &metadata.Request{URI: "info.xml", AuthRequired: &noAuth}
		out := g.RequestSection(r, nil, 2, nil, &usedTypes{})
		assert.NotContains(t, out, "sessionid")
	})

	t.Run("methods and body", func(t *testing.T) {
		methods := metadata.NewMethods()
		methods.Set("GET", "Read.")
		methods.Set("PUT", "Update.")
		methods.Set("POST", "Create.")

		query := schema.NewTable()
		query.Set("details", descriptor(t, `{"type": "Boolean"}`))

		body := schema.NewTableSet()
		root := schema.NewTable()
		root.Set("enabled", descriptor(t, `{"type": "Boolean"}`))
		body.Set(".", root)
		child := schema.NewTable()
		child.Set("x", descriptor(t, `{"type": "Number"}`))
		body.Set("Settings", child)

		r := &metadata.Request{URI: "admin/settings", Methods: methods, Query: query}
		out := g.RequestSection(r, body, 2, nil, &usedTypes{})

		assert.Contains(t, out, "The `/admin/settings` endpoint supports the following:\n\n=== Methods\n")
		assert.Contains(t, out, "link:../../Auth/Check_JWT.adoc[Auth/Check_JWT].\n")
		assert.Contains(t, out, "\n=== Querystring\n\n")
		assert.Contains(t, out, "|Boolean (e.g. `0` or `1`)\n")
		assert.Contains(t, out, "\n=== Message Body\n\nWhen making a `PUT` or `POST` request:\n\n==== Root\n\n")
		assert.Contains(t, out, "\n==== `Settings` Object\n\n")
	})
}

func TestExampleSection(t *testing.T) {
	g := NewGenerator()

	object := models.NewJSONObject()
	object.Set("wNow", json.Number("5"))
	object.Set("type", "eim")

	tests := []struct {
		name    string
		example Example
		want    string
	}{
		{
			name: "json response",
			example: Example{
				Example:  metadata.Example{Name: "Default", RequestQuery: "details=1"},
				BaseURI:  "production.json",
				Response: object,
			},
			want: "\n\n=== Default\n\n.GET */production.json?details=1* Response\n[source,json,subs=\"+quotes\"]\n----\n{\"wNow\": 5, \"type\": \"eim\"}\n----",
		},
		{
			name: "nothing returned",
			example: Example{
				Example: metadata.Example{Name: "Empty"},
				BaseURI: "x",
			},
			want: "\n\n=== Empty\n\n.GET */x* Response\n[listing]\n----\nNo data was returned.\n----",
		},
		{
			name: "json request with eid",
			example: Example{
				Example:    metadata.Example{Name: "Put", Method: "PUT", RequestEID: "42"},
				BaseURI:    "devices/{EID}",
				Request:    object,
				HasRequest: true,
				Response:   models.JSONArray{},
			},
			want: "\n\n=== Put\n" +
				"\n.PUT */devices/42* Request\n[source,json,subs=\"+quotes\"]\n----\n{\"wNow\": 5, \"type\": \"eim\"}\n----" +
				"\n.PUT */devices/42* Response\n[source,json,subs=\"+quotes\"]\n----\n[]\n----",
		},
		{
			name: "form request and raw response",
			example: Example{
				Example: metadata.Example{Name: "Login", Method: "POST", RequestForm: metadata.NewText("a=1&b=2")},
				BaseURI: "admin/lib/dba.cgi",
				Raw:     metadata.NewText("OK"),
			},
			want: "\n\n=== Login\n" +
				"\n.POST */admin/lib/dba.cgi* Request\n[source,http]\n----\na=1&b=2\n----" +
				"\n.POST */admin/lib/dba.cgi* Response\n[listing]\n----\nOK\n----",
		},
		{
			name: "empty raw response hides the block",
			example: Example{
				Example: metadata.Example{Name: "Quiet"},
				BaseURI: "x",
				Raw:     metadata.NewText(""),
			},
			want: "\n\n=== Quiet\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := g.ExampleSection(tt.example)
			require.NoError(t, err)
			assert.Equal(t, tt.want, out)
		})
	}
}

func TestExampleSection_Indented(t *testing.T) {
	cfg := config.NewConfig()
	cfg.Formatting.IndentExamples = true

	object := models.NewJSONObject()
	object.Set("a", json.Number("1"))

	out, err := NewGeneratorWithConfig(cfg).ExampleSection(Example{
		Example:  metadata.Example{Name: "X"},
		BaseURI:  "x",
		Response: object,
	})
	require.NoError(t, err)
	assert.Contains(t, out, "----\n{\n    \"a\": 1\n}\n----")
}

func TestRender_NotYetDocumented(t *testing.T) {
	out, err := NewGenerator().Render(Page{
		Key:      "Home / Placeholder",
		Endpoint: &metadata.Endpoint{Documentation: "Home/Placeholder.adoc", Description: &metadata.Description{Short: "Soon."}},
	})
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(out, "= Home - Placeholder\n"))
	assert.True(t, strings.HasSuffix(out, "link:../../../README.adoc[project's homepage].\n"+NotYetDocumented()))
}

func TestQuote(t *testing.T) {
	assert.Equal(t, "Production.adoc", Quote("Production.adoc"))
	assert.Equal(t, "Installer/AGF/Set_Profile.adoc", Quote("Installer/AGF/Set_Profile.adoc"))
	assert.Equal(t, "IQ%20Gateway%20API/a~b-c.adoc", Quote("IQ Gateway API/a~b-c.adoc"))
	assert.Equal(t, "%26%3D%3F%23%C3%A9", Quote("&=?#é"))
}
