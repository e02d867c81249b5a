package metadata

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	orderedmap "github.com/wk8/go-ordered-map/v2"

	"github.com/mcncl/enphase-api/internal/errors"
	"github.com/mcncl/enphase-api/internal/models"
	"github.com/mcncl/enphase-api/internal/parser"
	"github.com/mcncl/enphase-api/internal/schema"
)

// KeyDelimiter separates the category path segments of an endpoint key.
const KeyDelimiter = " / "

// Catalog is the endpoint metadata file, keyed by endpoint key in file order.
type Catalog struct {
	endpoints *orderedmap.OrderedMap[string, *Endpoint]
}

// NewCatalog returns an empty catalog.
func NewCatalog() *Catalog {
	return &Catalog{endpoints: orderedmap.New[string, *Endpoint]()}
}

func (c *Catalog) init() {
	if c.endpoints == nil {
		c.endpoints = orderedmap.New[string, *Endpoint]()
	}
}

// Set adds or replaces an endpoint.
func (c *Catalog) Set(key string, e *Endpoint) {
	c.init()
	c.endpoints.Set(key, e)
}

// Get returns the endpoint stored under key.
func (c *Catalog) Get(key string) (*Endpoint, bool) {
	if c == nil || c.endpoints == nil {
		return nil, false
	}
	return c.endpoints.Get(key)
}

// Len returns the number of endpoints.
func (c *Catalog) Len() int {
	if c == nil || c.endpoints == nil {
		return 0
	}
	return c.endpoints.Len()
}

// Keys returns the endpoint keys in file order.
func (c *Catalog) Keys() []string {
	keys := make([]string, 0, c.Len())
	c.Range(func(key string, _ *Endpoint) {
		keys = append(keys, key)
	})
	return keys
}

// Range calls fn for every endpoint in file order.
func (c *Catalog) Range(fn func(key string, e *Endpoint)) {
	if c == nil || c.endpoints == nil {
		return
	}
	for pair := c.endpoints.Oldest(); pair != nil; pair = pair.Next() {
		fn(pair.Key, pair.Value)
	}
}

func (c *Catalog) MarshalJSON() ([]byte, error) {
	c.init()
	return c.endpoints.MarshalJSON()
}

func (c *Catalog) UnmarshalJSON(data []byte) error {
	c.endpoints = orderedmap.New[string, *Endpoint]()
	if err := c.endpoints.UnmarshalJSON(data); err != nil {
		return err
	}
	for pair := c.endpoints.Oldest(); pair != nil; pair = pair.Next() {
		if pair.Value == nil {
			pair.Value = &Endpoint{}
		}
	}
	return nil
}

// Endpoint describes one documented gateway endpoint.
type Endpoint struct {
	Documentation string       `json:"documentation,omitempty" jsonschema_description:"Output path of the document, relative to the output directory."`
	Description   *Description `json:"description,omitempty"`
	TypeMap       TypeMap      `json:"type_map,omitempty" jsonschema_description:"Custom types used by this endpoint, merged over the global type map."`
	Request       *Request     `json:"request,omitempty"`
	Response      *Response    `json:"response,omitempty"`
}

// Depth returns how many directories below the documentation root the
// endpoint's document lives, counting the root itself.
func (e *Endpoint) Depth() int {
	return strings.Count(e.Documentation, "/") + 1
}

// ShortDescription returns the short description or "".
func (e *Endpoint) ShortDescription() string {
	if e.Description == nil {
		return ""
	}
	return e.Description.Short
}

// Description is the prose shown at the top of an endpoint document.
type Description struct {
	Short string `json:"short" jsonschema:"required"`
	Long  string `json:"long,omitempty"`
}

// Request describes how an endpoint is called.
type Request struct {
	URI          string           `json:"uri" jsonschema:"required" jsonschema_description:"Path without the leading slash; may contain {EID}."`
	URI2         string           `json:"uri2,omitempty" jsonschema_description:"Alternative path serving the same data."`
	Removed      bool             `json:"removed,omitempty"`
	AuthRequired *bool            `json:"auth_required,omitempty"`
	Methods      *Methods         `json:"methods,omitempty"`
	Query        *schema.Table    `json:"query,omitempty"`
	FieldMap     *schema.TableSet `json:"field_map,omitempty"`
	Examples     []Example        `json:"examples,omitempty"`
}

// NeedsAuth reports whether the request needs a session, which is the
// default unless auth_required is explicitly false.
func (r *Request) NeedsAuth() bool {
	return r.AuthRequired == nil || *r.AuthRequired
}

// Response holds the caller overrides for response tables.
type Response struct {
	FieldMap *schema.TableSet `json:"field_map,omitempty"`
}

// Example is one sample call of an endpoint.
type Example struct {
	Name         string `json:"name,omitempty"`
	Method       string `json:"method,omitempty"`
	RequestEID   EID    `json:"request_eid,omitempty" jsonschema_description:"Substituted for {EID} in the request URI."`
	RequestQuery string `json:"request_query,omitempty"`
	RequestJSON  Text   `json:"request_json,omitzero" jsonschema_description:"JSON request body, as text."`
	RequestForm  Text   `json:"request_form,omitzero" jsonschema_description:"Form request body, sent verbatim."`
	ResponseJSON Text   `json:"response_json,omitzero" jsonschema_description:"Canned JSON response, as text. null means the endpoint returns nothing."`
	ResponseRaw  Text   `json:"response_raw,omitzero" jsonschema_description:"Raw text response. An empty string hides the response block."`
	Disabled     bool   `json:"disabled,omitempty"`
}

// MethodOrDefault returns the HTTP method, GET when none is given.
func (e Example) MethodOrDefault() string {
	if e.Method == "" {
		return "GET"
	}
	return e.Method
}

// URI returns uri with the example's EID substituted.
func (e Example) URI(uri string) string {
	if e.RequestEID == "" {
		return uri
	}
	return strings.ReplaceAll(uri, "{EID}", string(e.RequestEID))
}

// Target returns the request path and query for uri.
func (e Example) Target(uri string) string {
	target := "/" + e.URI(uri)
	if e.RequestQuery != "" {
		target += "?" + e.RequestQuery
	}
	return target
}

// CannedResponse returns the response supplied in the catalog. ok is false
// when the example carries none; a null or empty canned response is
// present but nil.
func (e Example) CannedResponse() (value models.JSONValue, ok bool, err error) {
	if !e.ResponseJSON.Set {
		return nil, false, nil
	}
	if e.ResponseJSON.Value == "" {
		return nil, true, nil
	}
	value, err = parser.Value(e.ResponseJSON.Value)
	if err != nil {
		return nil, true, errors.NewMetadataError(fmt.Sprintf("example %q has an unreadable response_json", e.Name), err)
	}
	return value, true, nil
}

// RequestValue parses request_json. ok is false when the example has none.
func (e Example) RequestValue() (value models.JSONValue, ok bool, err error) {
	if !e.RequestJSON.Set || e.RequestJSON.Null {
		return nil, false, nil
	}
	value, err = parser.Value(e.RequestJSON.Value)
	if err != nil {
		return nil, true, errors.NewMetadataError(fmt.Sprintf("example %q has an unreadable request_json", e.Name), err)
	}
	return value, true, nil
}

// Text is a string whose presence matters. A JSON null is present but Null.
type Text struct {
	Set   bool
	Null  bool
	Value string
}

// NewText returns a present Text.
func NewText(value string) Text {
	return Text{Set: true, Value: value}
}

func (t Text) IsZero() bool {
	return !t.Set
}

func (t Text) MarshalJSON() ([]byte, error) {
	if t.Null {
		return []byte("null"), nil
	}
	return json.Marshal(t.Value)
}

func (t *Text) UnmarshalJSON(data []byte) error {
	*t = Text{Set: true}
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		t.Null = true
		return nil
	}
	return json.Unmarshal(data, &t.Value)
}

// EID is a device identifier written as a JSON number or string.
type EID string

func (e *EID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*e = EID(s)
		return nil
	}
	if bytes.Equal(data, []byte("null")) {
		return nil
	}
	if _, err := strconv.ParseFloat(string(data), 64); err != nil {
		return fmt.Errorf("request_eid must be a number or string, got %s", data)
	}
	*e = EID(data)
	return nil
}

// LoadCatalog reads an endpoint metadata file.
func LoadCatalog(path string) (*Catalog, error) {
	data, err := readFile(path)
	if err != nil {
		return nil, err
	}
	catalog := NewCatalog()
	if err := json.Unmarshal(data, catalog); err != nil {
		return nil, errors.NewMetadataError(fmt.Sprintf("failed to parse %s", path), err)
	}
	return catalog, nil
}

func readFile(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NewMetadataError(path, errors.ErrFileNotFound)
		}
		return nil, errors.NewMetadataError(fmt.Sprintf("failed to read %s", path), err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, errors.NewMetadataError(path, errors.ErrFileEmpty)
	}
	return data, nil
}
