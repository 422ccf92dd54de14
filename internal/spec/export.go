package spec

import (
	"sort"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	OpenAPIVersion    = "3.1.1"
	JSONSchemaDialect = "https://json-schema.org/draft/2020-12/schema"
)

// Export builds the OpenAPI document for p and renders it in format.
func Export(p *Project, format Format) ([]byte, error) {
	return Render(BuildDocument(p), format)
}

// BuildDocument converts the project into an ordered OpenAPI 3.1.1 document tree.
// Empty optional groups are omitted rather than emitted as empty values.
func BuildDocument(p *Project) *yaml.Node {
	if p == nil {
		p = &Project{}
	}
	doc := newMapping()
	put(doc, "openapi", strNode(OpenAPIVersion))
	put(doc, "jsonSchemaDialect", strNode(JSONSchemaDialect))
	put(doc, "info", buildInfo(p))
	put(doc, "paths", buildPaths(p.Endpoints))
	put(doc, "servers", buildServers(p.Servers))
	put(doc, "components", buildComponents(p.Schemas))
	return doc
}

func buildInfo(p *Project) *yaml.Node {
	info := newMapping()
	put(info, "title", strNode(p.Name))
	put(info, "description", optionalStr(p.Description))
	put(info, "version", strNode(p.Version))
	if !p.Contact.IsZero() {
		c := newMapping()
		put(c, "name", optionalStr(p.Contact.Name))
		put(c, "email", optionalStr(p.Contact.Email))
		put(c, "url", optionalStr(p.Contact.URL))
		put(info, "contact", c)
	}
	put(info, "termsOfService", optionalStr(p.TermsOfService))
	if !p.License.IsZero() {
		l := newMapping()
		put(l, "name", optionalStr(p.License.Name))
		put(l, "url", optionalStr(p.License.URL))
		put(info, "license", l)
	}
	return info
}

// buildPaths groups endpoints by path, then by lower-cased method. A later
// endpoint with the same path and method replaces the earlier one.
func buildPaths(endpoints []Endpoint) *yaml.Node {
	paths := newMapping()
	for _, ep := range endpoints {
		item := lookup(paths, ep.Path)
		if item == nil {
			item = newMapping()
			put(paths, ep.Path, item)
		}
		put(item, strings.ToLower(string(ep.Method)), buildOperation(ep))
	}
	return flowIfEmpty(paths)
}

func buildOperation(ep Endpoint) *yaml.Node {
	op := newMapping()
	put(op, "summary", optionalStr(ep.Summary))
	put(op, "description", optionalStr(ep.Description))
	if len(ep.Parameters) > 0 {
		params := newSequence()
		for _, prm := range ep.Parameters {
			params.Content = append(params.Content, buildParameter(prm))
		}
		put(op, "parameters", params)
	}
	if ep.RequestBody != nil && len(ep.RequestBody.Content) > 0 {
		rb := newMapping()
		put(rb, "content", buildContent(ep.RequestBody.Content))
		if ep.RequestBody.Required {
			put(rb, "required", boolNode(true))
		}
		put(op, "requestBody", rb)
	}
	put(op, "responses", buildResponses(ep.Responses))
	return op
}

func buildParameter(prm Parameter) *yaml.Node {
	n := newMapping()
	put(n, "name", strNode(prm.Name))
	put(n, "in", strNode(prm.In))
	put(n, "description", optionalStr(prm.Description))
	if prm.Required {
		put(n, "required", boolNode(true))
	}
	if prm.Deprecated {
		put(n, "deprecated", boolNode(true))
	}
	schema, _ := prm.Schema.Sanitize()
	put(n, "schema", fragmentNode(schema))
	if !isEmptyValue(prm.Example) {
		put(n, "example", valueNode(prm.Example))
	}
	return n
}

func buildContent(content map[string]MediaType) *yaml.Node {
	n := newMapping()
	for _, mime := range sortedKeys(content) {
		mt := content[mime]
		m := newMapping()
		if mt.Schema != nil {
			schema, _ := mt.Schema.Sanitize()
			put(m, "schema", fragmentNode(schema))
		}
		if !isEmptyValue(mt.Example) {
			put(m, "example", valueNode(mt.Example))
		}
		put(n, mime, flowIfEmpty(m))
	}
	return n
}

func buildResponses(responses map[string]Response) *yaml.Node {
	n := newMapping()
	if len(responses) == 0 {
		ok := newMapping()
		put(ok, "description", strNode("Success"))
		put(n, "200", ok)
		return n
	}
	for _, code := range statusOrder(responses) {
		r := responses[code]
		m := newMapping()
		put(m, "description", strNode(r.Description))
		if len(r.Headers) > 0 {
			headers := newMapping()
			for _, name := range sortedKeys(r.Headers) {
				h := r.Headers[name]
				hn := newMapping()
				put(hn, "description", optionalStr(h.Description))
				schema, _ := h.Schema.Sanitize()
				put(hn, "schema", fragmentNode(schema))
				put(headers, name, hn)
			}
			put(m, "headers", headers)
		}
		if len(r.Content) > 0 {
			put(m, "content", buildContent(r.Content))
		}
		put(n, code, m)
	}
	return n
}

// statusOrder sorts numeric status codes ascending, then everything else
// (default, 2XX) lexically.
func statusOrder(responses map[string]Response) []string {
	codes := make([]string, 0, len(responses))
	for code := range responses {
		codes = append(codes, code)
	}
	sort.Slice(codes, func(i, j int) bool {
		a, aerr := strconv.Atoi(codes[i])
		b, berr := strconv.Atoi(codes[j])
		switch {
		case aerr == nil && berr == nil:
			return a < b
		case aerr == nil:
			return true
		case berr == nil:
			return false
		default:
			return codes[i] < codes[j]
		}
	})
	return codes
}

func buildServers(servers []Server) *yaml.Node {
	n := newSequence()
	for _, s := range servers {
		if s.URL == "" {
			continue
		}
		m := newMapping()
		put(m, "url", strNode(s.URL))
		put(m, "description", optionalStr(s.Description))
		n.Content = append(n.Content, m)
	}
	if len(n.Content) == 0 {
		return nil
	}
	return n
}

func buildComponents(schemas []Schema) *yaml.Node {
	if len(schemas) == 0 {
		return nil
	}
	all := newMapping()
	for _, s := range schemas {
		put(all, s.Name, buildSchema(s))
	}
	components := newMapping()
	put(components, "schemas", all)
	return components
}

func buildSchema(s Schema) *yaml.Node {
	n := newMapping()
	typ := s.Type
	if typ == "" {
		typ = "object"
	}
	put(n, "type", strNode(typ))
	put(n, "description", optionalStr(s.Description))

	var discovered []string
	if len(s.Properties) > 0 {
		props := newMapping()
		for _, name := range sortedKeys(s.Properties) {
			clean, required := s.Properties[name].Sanitize()
			if required {
				discovered = append(discovered, name)
			}
			put(props, name, fragmentNode(clean))
		}
		put(n, "properties", props)
	}
	if required := RequiredUnion(s.Required, discovered); len(required) > 0 {
		put(n, "required", valueNode(required))
	}
	if typ == "array" && s.Items != nil {
		items, _ := s.Items.Sanitize()
		put(n, "items", fragmentNode(items))
	}
	if s.AdditionalProperties != nil && !*s.AdditionalProperties {
		put(n, "additionalProperties", boolNode(false))
	}
	return n
}

func optionalStr(s string) *yaml.Node {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return strNode(s)
}

// FileName derives the download file name for p in format.
func FileName(p *Project, format Format) string {
	name := ""
	if p != nil {
		name = deriveName(p.Name)
	}
	if name == "" {
		name = "openapi"
	}
	return name + "." + string(format)
}

func deriveName(title string) string {
	t := strings.TrimSpace(title)
	if t == "" {
		return ""
	}
	t = strings.ToLower(t)
	repl := strings.NewReplacer("/", " ", "_", " ", ".", " ", ",", " ", ":", " ", "\\", " ")
	t = repl.Replace(t)
	parts := strings.Fields(t)
	if len(parts) == 0 {
		return ""
	}
	return strings.Join(parts, "-")
}
