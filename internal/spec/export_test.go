package spec

import (
	"context"
	"encoding/json"
	"reflect"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"
)

func exportYAML(t *testing.T, p *Project) (string, map[string]any) {
	t.Helper()
	out, err := Export(p, FormatYAML)
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	var doc map[string]any
	if err := yaml.Unmarshal(out, &doc); err != nil {
		t.Fatalf("re-parse exported yaml: %v\n%s", err, out)
	}
	return string(out), doc
}

func dig(t *testing.T, v any, keys ...string) any {
	t.Helper()
	cur := v
	for _, k := range keys {
		m, ok := cur.(map[string]any)
		if !ok {
			t.Fatalf("expected mapping at %q, got %T", k, cur)
		}
		cur, ok = m[k]
		if !ok {
			t.Fatalf("missing key %q in %v", k, m)
		}
	}
	return cur
}

func usersProject() *Project {
	p := NewProject()
	p.Name = "Users API"
	p.Version = "2.0"
	p.Endpoints = append(p.Endpoints, Endpoint{
		ID:     "e1",
		Path:   "/users",
		Method: GET,
		Parameters: []Parameter{
			{Name: "limit", In: InQuery, Schema: Fragment{"type": "integer"}},
		},
		Responses: map[string]Response{
			"404": {Description: "Not found"},
			"200": {Description: "OK"},
		},
	})
	return p
}

func TestExport_DocumentHeader(t *testing.T) {
	t.Parallel()
	text, doc := exportYAML(t, NewProject())
	if doc["openapi"] != OpenAPIVersion {
		t.Fatalf("expected openapi %s, got %v", OpenAPIVersion, doc["openapi"])
	}
	if doc["jsonSchemaDialect"] != JSONSchemaDialect {
		t.Fatalf("unexpected dialect %v", doc["jsonSchemaDialect"])
	}
	if !strings.HasPrefix(text, "openapi: ") {
		t.Fatalf("expected openapi first, got:\n%s", text)
	}
	if !strings.Contains(text, "paths: {}") {
		t.Fatalf("expected empty paths rendered inline, got:\n%s", text)
	}
	// Server slots without a URL are dropped, and with them the servers key.
	if _, ok := doc["servers"]; ok {
		t.Fatalf("expected no servers key, got %v", doc["servers"])
	}
	if _, ok := doc["components"]; ok {
		t.Fatalf("expected no components without schemas")
	}
}

func TestExport_OmitsEmptyInfoGroups(t *testing.T) {
	t.Parallel()
	p := NewProject()
	p.Name = "Empty"
	_, doc := exportYAML(t, p)
	info := dig(t, doc, "info").(map[string]any)
	for _, key := range []string{"contact", "license", "description", "termsOfService"} {
		if _, ok := info[key]; ok {
			t.Fatalf("expected no %s key in info, got %v", key, info)
		}
	}

	p.Contact = Contact{Email: "api@example.com"}
	p.License = License{Name: "MIT"}
	_, doc = exportYAML(t, p)
	contact := dig(t, doc, "info", "contact").(map[string]any)
	if len(contact) != 1 || contact["email"] != "api@example.com" {
		t.Fatalf("expected contact with only email, got %v", contact)
	}
	if dig(t, doc, "info", "license", "name") != "MIT" {
		t.Fatalf("expected license name")
	}
}

func TestExport_DropsDisallowedPropertyKeys(t *testing.T) {
	t.Parallel()
	p := NewProject()
	s := NewSchema("User")
	s.Properties["name"] = Fragment{"type": "string", "foo": "bar", "required": true}
	p.Schemas = append(p.Schemas, s)
	_, doc := exportYAML(t, p)
	prop := dig(t, doc, "components", "schemas", "User", "properties", "name").(map[string]any)
	if _, ok := prop["foo"]; ok {
		t.Fatalf("expected foo dropped, got %v", prop)
	}
	if _, ok := prop["required"]; ok {
		t.Fatalf("expected per-property required flag dropped, got %v", prop)
	}
	if prop["type"] != "string" {
		t.Fatalf("expected type string, got %v", prop)
	}
}

func TestExport_EmptyPropertyDefaultsToString(t *testing.T) {
	t.Parallel()
	p := NewProject()
	s := NewSchema("Thing")
	s.Properties["blank"] = Fragment{}
	s.Properties["spaces"] = Fragment{"description": "   ", "example": nil}
	p.Schemas = append(p.Schemas, s)
	_, doc := exportYAML(t, p)
	props := dig(t, doc, "components", "schemas", "Thing", "properties").(map[string]any)
	want := map[string]any{"type": "string"}
	for _, name := range []string{"blank", "spaces"} {
		if !reflect.DeepEqual(props[name], want) {
			t.Fatalf("expected %s exported as %v, got %v", name, want, props[name])
		}
	}
}

func TestExport_RequiredUnion(t *testing.T) {
	t.Parallel()
	p := NewProject()
	s := NewSchema("Pair")
	s.Required = []string{"a"}
	s.Properties["a"] = Fragment{"type": "string", "required": true}
	s.Properties["b"] = Fragment{"type": "string", "required": true}
	p.Schemas = append(p.Schemas, s)
	_, doc := exportYAML(t, p)
	got := dig(t, doc, "components", "schemas", "Pair", "required")
	if !reflect.DeepEqual(got, []any{"a", "b"}) {
		t.Fatalf("expected required [a b], got %v", got)
	}
}

func TestExport_NullsSkippedAndEmptyArraysInline(t *testing.T) {
	t.Parallel()
	p := NewProject()
	s := NewSchema("Shape")
	s.Properties["kind"] = Fragment{
		"type":    "string",
		"enum":    []any{},
		"default": nil,
		"example": map[string]any{"nested": nil, "kept": "x"},
	}
	p.Schemas = append(p.Schemas, s)
	text, doc := exportYAML(t, p)
	if !strings.Contains(text, "enum: []") {
		t.Fatalf("expected inline empty array, got:\n%s", text)
	}
	if strings.Contains(text, "null") {
		t.Fatalf("expected no null values at any depth, got:\n%s", text)
	}
	example := dig(t, doc, "components", "schemas", "Shape", "properties", "kind", "example").(map[string]any)
	if _, ok := example["nested"]; ok {
		t.Fatalf("expected nested null key skipped, got %v", example)
	}
}

func TestExport_UsersScenario(t *testing.T) {
	t.Parallel()
	_, doc := exportYAML(t, usersProject())
	paths := dig(t, doc, "paths").(map[string]any)
	if len(paths) != 1 {
		t.Fatalf("expected exactly one path, got %v", paths)
	}
	item := dig(t, paths, "/users").(map[string]any)
	if len(item) != 1 {
		t.Fatalf("expected exactly one method, got %v", item)
	}
	params := dig(t, item, "get", "parameters").([]any)
	if len(params) != 1 || params[0].(map[string]any)["name"] != "limit" {
		t.Fatalf("expected one parameter named limit, got %v", params)
	}
	responses := dig(t, item, "get", "responses").(map[string]any)
	for _, code := range []string{"200", "404"} {
		if _, ok := responses[code]; !ok {
			t.Fatalf("expected response %s, got %v", code, responses)
		}
	}
}

func TestExport_DefaultResponseAndOrdering(t *testing.T) {
	t.Parallel()
	p := NewProject()
	p.Endpoints = []Endpoint{
		{ID: "a", Path: "/z", Method: POST},
		{ID: "b", Path: "/a", Method: GET, Responses: map[string]Response{
			"default": {Description: "Error"},
			"404":     {Description: "Missing"},
			"201":     {Description: "Created"},
		}},
	}
	text, doc := exportYAML(t, p)
	if dig(t, doc, "paths", "/z", "post", "responses", "200", "description") != "Success" {
		t.Fatalf("expected default 200 Success response")
	}
	if strings.Index(text, "/z:") > strings.Index(text, "/a:") {
		t.Fatalf("expected paths in first-seen order, got:\n%s", text)
	}
	i201, i404, idef := strings.Index(text, `"201"`), strings.Index(text, `"404"`), strings.Index(text, "default:")
	if !(i201 < i404 && i404 < idef) {
		t.Fatalf("expected responses ordered 201, 404, default; got:\n%s", text)
	}
}

func TestExport_DuplicateRouteLastWins(t *testing.T) {
	t.Parallel()
	p := NewProject()
	p.Endpoints = []Endpoint{
		{ID: "a", Path: "/dup", Method: GET, Summary: "first"},
		{ID: "b", Path: "/dup", Method: GET, Summary: "second"},
	}
	_, doc := exportYAML(t, p)
	if got := dig(t, doc, "paths", "/dup", "get", "summary"); got != "second" {
		t.Fatalf("expected later endpoint to win, got %v", got)
	}
}

func TestExport_RequestBodyAndAdditionalProperties(t *testing.T) {
	t.Parallel()
	closed := false
	open := true
	p := NewProject()
	p.Endpoints = []Endpoint{{
		ID: "a", Path: "/items", Method: POST,
		RequestBody: &RequestBody{Required: true, Content: map[string]MediaType{
			"application/json": {Schema: Fragment{"$ref": "#/components/schemas/Item"}},
		}},
	}, {
		ID: "b", Path: "/items", Method: PUT,
		RequestBody: &RequestBody{Content: map[string]MediaType{}},
	}}
	closedSchema := NewSchema("Item")
	closedSchema.AdditionalProperties = &closed
	openSchema := NewSchema("Loose")
	openSchema.AdditionalProperties = &open
	p.Schemas = []Schema{closedSchema, openSchema}

	_, doc := exportYAML(t, p)
	rb := dig(t, doc, "paths", "/items", "post", "requestBody").(map[string]any)
	if rb["required"] != true {
		t.Fatalf("expected required request body, got %v", rb)
	}
	schema := dig(t, rb, "content", "application/json", "schema").(map[string]any)
	if _, hasType := schema["type"]; hasType {
		t.Fatalf("expected $ref schema without injected type, got %v", schema)
	}
	put := dig(t, doc, "paths", "/items", "put").(map[string]any)
	if _, ok := put["requestBody"]; ok {
		t.Fatalf("expected empty request body omitted, got %v", put)
	}
	if dig(t, doc, "components", "schemas", "Item", "additionalProperties") != false {
		t.Fatalf("expected additionalProperties false")
	}
	loose := dig(t, doc, "components", "schemas", "Loose").(map[string]any)
	if _, ok := loose["additionalProperties"]; ok {
		t.Fatalf("expected additionalProperties omitted unless false, got %v", loose)
	}
}

func TestExport_NestedSchemaKeyMerged(t *testing.T) {
	t.Parallel()
	p := NewProject()
	s := NewSchema("Wrapped")
	s.Properties["tags"] = Fragment{
		"description": "labels",
		"schema":      map[string]any{"type": "array", "items": map[string]any{"foo": 1}},
	}
	p.Schemas = append(p.Schemas, s)
	_, doc := exportYAML(t, p)
	tags := dig(t, doc, "components", "schemas", "Wrapped", "properties", "tags").(map[string]any)
	if tags["type"] != "array" || tags["description"] != "labels" {
		t.Fatalf("expected nested schema merged, got %v", tags)
	}
	if !reflect.DeepEqual(tags["items"], map[string]any{"type": "string"}) {
		t.Fatalf("expected sanitized items, got %v", tags["items"])
	}
	if _, ok := tags["schema"]; ok {
		t.Fatalf("expected schema key dropped, got %v", tags)
	}
}

func TestExport_JSONMatchesYAML(t *testing.T) {
	t.Parallel()
	p := usersProject()
	p.Description = `Quotes " and <tags>`
	y, err := Export(p, FormatYAML)
	if err != nil {
		t.Fatalf("export yaml: %v", err)
	}
	j, err := Export(p, FormatJSON)
	if err != nil {
		t.Fatalf("export json: %v", err)
	}
	if !strings.HasPrefix(string(j), "{\n  \"openapi\": \"3.1.1\"") {
		t.Fatalf("expected 2-space indented json starting with openapi, got:\n%s", j)
	}
	if !strings.Contains(string(j), "<tags>") {
		t.Fatalf("expected html characters unescaped, got:\n%s", j)
	}
	var fromYAML, fromJSON map[string]any
	if err := yaml.Unmarshal(y, &fromYAML); err != nil {
		t.Fatalf("parse yaml: %v", err)
	}
	if err := json.Unmarshal(j, &fromJSON); err != nil {
		t.Fatalf("parse json: %v", err)
	}
	if dig(t, fromJSON, "info", "description") != dig(t, fromYAML, "info", "description") {
		t.Fatalf("expected same description in both formats")
	}
	if _, ok := dig(t, fromJSON, "paths", "/users", "get", "responses").(map[string]any)["404"]; !ok {
		t.Fatalf("expected 404 response in json export")
	}
}

func TestParseFormat(t *testing.T) {
	t.Parallel()
	cases := map[string]Format{"": FormatYAML, "yaml": FormatYAML, "YML": FormatYAML, "json": FormatJSON}
	for in, want := range cases {
		got, err := ParseFormat(in)
		if err != nil || got != want {
			t.Fatalf("ParseFormat(%q) = %q, %v; want %q", in, got, err, want)
		}
	}
	if _, err := ParseFormat("xml"); err == nil {
		t.Fatalf("expected error for xml")
	}
}

func TestFileName(t *testing.T) {
	t.Parallel()
	p := NewProject()
	if got := FileName(p, FormatYAML); got != "openapi.yaml" {
		t.Fatalf("expected fallback name, got %q", got)
	}
	p.Name = "Pet Store v1.2"
	if got := FileName(p, FormatJSON); got != "pet-store-v1-2.json" {
		t.Fatalf("unexpected file name %q", got)
	}
}

func TestExport_ValidatesWithKinOpenAPI(t *testing.T) {
	t.Parallel()
	p := usersProject()
	p.Servers[0].URL = "https://sandbox.example.com"
	s := NewSchema("User")
	s.Properties["age"] = Fragment{"type": "integer", "exclusiveMinimum": 0}
	p.Schemas = append(p.Schemas, s)
	out, err := Export(p, FormatYAML)
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if _, err := ValidateDocument(context.Background(), out); err != nil {
		t.Fatalf("expected exported document to validate: %v\n%s", err, out)
	}
}
