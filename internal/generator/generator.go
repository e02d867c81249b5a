package generator

import (
	"fmt"
	"strings"

	"github.com/mcncl/enphase-api/internal/config"
	"github.com/mcncl/enphase-api/internal/errors"
	"github.com/mcncl/enphase-api/internal/formatter"
	"github.com/mcncl/enphase-api/internal/metadata"
	"github.com/mcncl/enphase-api/internal/models"
	"github.com/mcncl/enphase-api/internal/schema"
)

// Placeholder is shown for endpoints without a description.
const Placeholder = "This endpoint and its purpose has not been fully documented yet."

// Generator renders AsciiDoc documents for gateway endpoints
type Generator struct {
	doc       config.DocumentConfig
	formatter *formatter.Formatter
}

// NewGenerator creates a new Generator instance with the default document settings
func NewGenerator() *Generator {
	return NewGeneratorWithConfig(config.NewConfig())
}

// NewGeneratorWithConfig creates a Generator using the document and formatting settings of cfg
func NewGeneratorWithConfig(cfg *config.Config) *Generator {
	var opts []formatter.Option
	if cfg.Formatting.IndentExamples {
		opts = append(opts, formatter.WithIndent(4))
	}
	return &Generator{
		doc:       cfg.Document,
		formatter: formatter.NewFormatter(opts...),
	}
}

// Page is everything needed to render one endpoint document.
type Page struct {
	Key      string
	Endpoint *metadata.Endpoint
	TypeMap  metadata.TypeMap
	// Request and Response are the merged tables; nil when there are none
	Request  *schema.TableSet
	Response *schema.TableSet
	// Examples is nil when the endpoint lists no examples at all
	Examples []Example
}

// Example is an example with the response it produced.
type Example struct {
	metadata.Example
	// BaseURI is the endpoint URI as listed, before EID substitution
	BaseURI    string
	Request    models.JSONValue
	HasRequest bool
	Response   models.JSONValue
	// Raw is the raw text response, when the example asks for one
	Raw metadata.Text
}

// usedTypes collects custom type names in first-use order.
type usedTypes struct {
	names []string
	seen  map[string]bool
}

func (u *usedTypes) add(name string) {
	if u.seen == nil {
		u.seen = make(map[string]bool)
	}
	if !u.seen[name] {
		u.seen[name] = true
		u.names = append(u.names, name)
	}
}

// Render builds the full document of an endpoint.
func (g *Generator) Render(p Page) (string, error) {
	var b strings.Builder
	depth := p.Endpoint.Depth()

	b.WriteString(g.Header(strings.ReplaceAll(p.Key, "/", "-"), p.Endpoint.Description, depth))

	request := p.Endpoint.Request
	if request == nil {
		b.WriteString(NotYetDocumented())
		return b.String(), nil
	}

	used := &usedTypes{}
	b.WriteString(g.RequestSection(request, p.Request, depth-1, p.TypeMap, used))

	if p.Response != nil {
		b.WriteString("\n== Response\n")
		p.Response.Range(func(name string, table *schema.Table) {
			b.WriteString(g.TableSection(tableTitle(name), table, p.TypeMap, false, 3, used))
		})
	}

	if len(p.TypeMap) > 0 && len(used.names) > 0 {
		b.WriteString(TypesSection(used.names, p.TypeMap))
	}

	if p.Examples != nil {
		b.WriteString("\n== Examples")
		for _, example := range p.Examples {
			section, err := g.ExampleSection(example)
			if err != nil {
				return "", errors.NewRenderError(fmt.Sprintf("example %q", example.Name), err)
			}
			b.WriteString(section)
		}
	}

	return b.String(), nil
}

// Header renders the title, document settings, description and introduction.
func (g *Generator) Header(name string, description *metadata.Description, depth int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "= %s\n", name)
	b.WriteString(":toc: preamble\n")
	b.WriteString(g.Settings())

	long := ""
	if description != nil {
		b.WriteString(description.Short + "\n\n")
		long = description.Long
	} else {
		b.WriteString(Placeholder + "\n\n")
	}

	b.WriteString(g.Introduction(long, depth))
	return b.String()
}

// Settings renders the author line and the attributes shared by every document.
func (g *Generator) Settings() string {
	var b strings.Builder

	fmt.Fprintf(&b, "%s <%s[@%s]>;\n\n", g.doc.Author, g.doc.AuthorURL, g.doc.Author)

	b.WriteString("// Document Settings:\n\n")

	b.WriteString("// Set the ID Prefix and ID Separators to be consistent with GitHub so links work irrespective of rendering platform.")
	b.WriteString(" (https://docs.asciidoctor.org/asciidoc/latest/sections/id-prefix-and-separator/)\n")
	b.WriteString(":idprefix:\n")
	b.WriteString(":idseparator: -\n\n")

	b.WriteString("// Any code blocks will be in JSON by default.\n")
	b.WriteString(":source-language: json\n\n")

	b.WriteString("ifndef::env-github[:icons: font]\n\n")

	b.WriteString("// Set the admonitions to have icons (Github Emojis) if rendered on GitHub")
	b.WriteString(" (https://blog.mrhaki.com/2016/06/awesome-asciidoctor-using-admonition.html).\n")
	b.WriteString("ifdef::env-github[]\n")
	b.WriteString(":status:\n")
	b.WriteString(":caution-caption: :fire:\n")
	b.WriteString(":important-caption: :exclamation:\n")
	b.WriteString(":note-caption: :paperclip:\n")
	b.WriteString(":tip-caption: :bulb:\n")
	b.WriteString(":warning-caption: :warning:\n")
	b.WriteString("endif::[]\n\n")

	b.WriteString("// Document Variables:\n")
	fmt.Fprintf(&b, ":release-version: %s\n", g.doc.ReleaseVersion)
	fmt.Fprintf(&b, ":url-org: %s\n", g.doc.OrgURL)
	fmt.Fprintf(&b, ":url-repo: {url-org}/%s\n", g.doc.Repo)
	b.WriteString(":url-contributors: {url-repo}/graphs/contributors\n\n")

	return b.String()
}

// Introduction renders the introduction, linking back to the project
// homepage from a document depth directories below the documentation root.
func (g *Generator) Introduction(description string, depth int) string {
	var b strings.Builder
	b.WriteString("== Introduction\n\n")

	if description != "" {
		b.WriteString(description + "\n\n")
	}

	fmt.Fprintf(&b, "%s is an unofficial project providing an API wrapper and the documentation for Enphase(R)'s products and services.\n\n", g.doc.Project)

	b.WriteString("More details on the project are available from the link:")
	b.WriteString(strings.Repeat("../", depth+1) + "README.adoc[project's homepage].\n")
	return b.String()
}

// RequestSection renders how to call the endpoint. depth is the number of
// directories between the document and the documentation root.
func (g *Generator) RequestSection(r *metadata.Request, tables *schema.TableSet, depth int, typeMap metadata.TypeMap, used *usedTypes) string {
	var b strings.Builder
	b.WriteString("\n== Request\n\n")

	if r.Methods != nil {
		fmt.Fprintf(&b, "The `/%s` endpoint supports the following:\n", r.URI)
		b.WriteString(MethodsSection(r.Methods))
	} else {
		fmt.Fprintf(&b, "A HTTP `GET` to the `/%s` endpoint provides the following response data.\n\n", r.URI)
	}

	if r.NeedsAuth() {
		b.WriteString("As of recent Gateway software versions this request requires a valid ")
		b.WriteString("`sessionid` cookie obtained by link:")
		fmt.Fprintf(&b, "%s%s[%s].\n", strings.Repeat("../", depth), g.doc.AuthPage, strings.TrimSuffix(g.doc.AuthPage, ".adoc"))
	}

	if r.Query != nil {
		b.WriteString(g.TableSection("Querystring", r.Query, typeMap, true, 3, used))
	}

	if tables.Len() > 0 {
		b.WriteString("\n=== Message Body\n")

		if r.Methods != nil {
			var methods []string
			for _, name := range r.Methods.Names() {
				if name != "GET" {
					methods = append(methods, "`"+name+"`")
				}
			}
			fmt.Fprintf(&b, "\nWhen making a %s request:\n", strings.Join(methods, " or "))
		}

		tables.Range(func(name string, table *schema.Table) {
			b.WriteString(g.TableSection(tableTitle(name), table, typeMap, true, 4, used))
		})
	}

	return b.String()
}

// MethodsSection renders the table of supported HTTP methods.
func MethodsSection(methods *metadata.Methods) string {
	var b strings.Builder
	b.WriteString("\n=== Methods\n")
	b.WriteString("[cols=\"1,2\", options=\"header\"]\n")
	b.WriteString("|===\n")
	b.WriteString("|Method\n")
	b.WriteString("|Description\n\n")

	methods.Range(func(name, description string) {
		fmt.Fprintf(&b, "|`%s`\n", name)
		fmt.Fprintf(&b, "|%s\n\n", description)
	})

	b.WriteString("|===\n")
	return b.String()
}

// TablesSection renders every table of set followed by the custom types
// they use. It is the standalone form used outside endpoint documents.
func (g *Generator) TablesSection(set *schema.TableSet, typeMap metadata.TypeMap, shortBooleans bool, level int) string {
	var b strings.Builder
	used := &usedTypes{}
	set.Range(func(name string, table *schema.Table) {
		b.WriteString(g.TableSection(tableTitle(name), table, typeMap, shortBooleans, level, used))
	})
	if len(typeMap) > 0 && len(used.names) > 0 {
		b.WriteString(TypesSection(used.names, typeMap))
	}
	return b.String()
}

// TableSection renders one table at the given heading level and records the
// custom types its rows reference in used.
func (g *Generator) TableSection(title string, table *schema.Table, typeMap metadata.TypeMap, shortBooleans bool, level int, used *usedTypes) string {
	var b strings.Builder
	fmt.Fprintf(&b, "\n%s %s\n\n", strings.Repeat("=", level), title)

	b.WriteString("[cols=\"1,1,1,2\", options=\"header\"]\n")
	b.WriteString("|===\n")
	b.WriteString("|Name\n")
	b.WriteString("|Type\n")
	b.WriteString("|Values\n")
	b.WriteString("|Description\n\n")

	table.Range(func(name string, d schema.FieldDescriptor) {
		b.WriteString(TableRow(name, d, typeMap, shortBooleans))
		if customType(d) != "" && used != nil {
			used.add(d.ValueName)
		}
	})

	b.WriteString("|===\n")
	return b.String()
}

// TableRow renders one field as Name, Type, Values and Description cells.
func TableRow(name string, d schema.FieldDescriptor, typeMap metadata.TypeMap, shortBooleans bool) string {
	var b strings.Builder

	fmt.Fprintf(&b, "|`%s`", name)
	if d.Optional {
		b.WriteString(" (Optional)")
	}
	b.WriteString("\n")

	fieldType := d.TypeOrUnknown()
	fmt.Fprintf(&b, "|%s\n", fieldType)

	b.WriteString("|")
	valueName := customType(d)
	switch {
	case d.Value != "":
		b.WriteString(d.Value)
	case valueName != "":
		fmt.Fprintf(&b, "`%s`", valueName)
		if example, ok := typeMap.Example(valueName); ok {
			fmt.Fprintf(&b, " (e.g. `%s`)", example)
		}
	default:
		b.WriteString(fieldType.String())
		switch {
		case fieldType.Equal(schema.Number) && d.AllowNegative != nil && !*d.AllowNegative:
			b.WriteString(" (> 0)")
		case fieldType.Equal(schema.Boolean) && shortBooleans:
			b.WriteString(" (e.g. `0` or `1`)")
		case fieldType.Equal(schema.Boolean):
			b.WriteString(" (e.g. `true` or `false`)")
		}
	}
	b.WriteString("\n")

	b.WriteString("|")
	if d.Description != "" {
		b.WriteString(d.Description)
		if valueName != "" {
			fmt.Fprintf(&b, " In the format `%s`.", valueName)
		}
	} else {
		// Undocumented fields stay visibly marked.
		b.WriteString("???")
	}
	b.WriteString("\n\n")

	return b.String()
}

// customType returns the custom type a field refers to, or "".
func customType(d schema.FieldDescriptor) string {
	if d.IsNote() || !d.TypeOrUnknown().TakesCustomType() {
		return ""
	}
	return d.ValueName
}

// TypesSection renders one value table per used custom type found in typeMap.
func TypesSection(used []string, typeMap metadata.TypeMap) string {
	var b strings.Builder
	b.WriteString("\n== Types\n")

	for _, name := range used {
		values := typeMap[name]
		if len(values) == 0 {
			continue
		}

		fmt.Fprintf(&b, "\n=== `%s` Type\n\n", name)
		b.WriteString("[cols=\"1,1,2\", options=\"header\"]\n")
		b.WriteString("|===\n")
		b.WriteString("|Value\n")
		b.WriteString("|Name\n")
		b.WriteString("|Description\n\n")

		for _, v := range values {
			fmt.Fprintf(&b, "|`%s`", v.Value)
			if v.Uncertain {
				b.WriteString("?")
			}
			b.WriteString("\n")
			fmt.Fprintf(&b, "|%s\n", v.Name)
			fmt.Fprintf(&b, "|%s\n\n", v.Description)
		}

		b.WriteString("|===\n")
	}

	return b.String()
}

// ExampleSection renders the request and response blocks of one example.
func (g *Generator) ExampleSection(ex Example) (string, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "\n\n=== %s\n", ex.Name)

	type block struct {
		label, style, content string
	}
	var blocks []block

	switch {
	case ex.RequestForm.Set:
		blocks = append(blocks, block{"Request", "[source,http]", ex.RequestForm.Value})
	case ex.HasRequest:
		text, err := g.formatter.Format(ex.Request)
		if err != nil {
			return "", err
		}
		blocks = append(blocks, block{"Request", jsonStyle, text})
	}

	switch {
	case !ex.Raw.Set && ex.Response == nil:
		blocks = append(blocks, block{"Response", "[listing]", "No data was returned."})
	case !ex.Raw.Set:
		text, err := g.formatter.Format(ex.Response)
		if err != nil {
			return "", err
		}
		blocks = append(blocks, block{"Response", jsonStyle, text})
	case ex.Raw.Value != "":
		blocks = append(blocks, block{"Response", "[listing]", ex.Raw.Value})
	}

	for _, bl := range blocks {
		fmt.Fprintf(&b, "\n.%s *%s* %s\n", ex.MethodOrDefault(), ex.Target(ex.BaseURI), bl.label)
		b.WriteString(bl.style)
		fmt.Fprintf(&b, "\n----\n%s\n----", bl.content)
	}

	return b.String(), nil
}

const jsonStyle = `[source,json,subs="+quotes"]`

// NotYetDocumented renders the placeholder for endpoints without a request.
func NotYetDocumented() string {
	return "\n== Request & Response\n\nThis has not yet been documented. Please check back later.\n"
}

func tableTitle(name string) string {
	if name == "" || name == schema.RootTable {
		return "Root"
	}
	return "`" + name + "` Object"
}
