package spec

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"gopkg.in/yaml.v3"
)

// Importer names accepted by NewImporter.
const (
	ImporterStructured = "structured"
	ImporterHeuristic  = "heuristic"
)

// Importer turns OpenAPI document text into an editable project.
type Importer interface {
	Name() string
	Import(data []byte) (*ImportResult, error)
}

// ImportResult is the project recovered from a document plus what was kept
// and what was dropped along the way.
type ImportResult struct {
	Project *Project     `json:"project"`
	Report  ImportReport `json:"report"`
}

// ImportReport lists recovered and skipped items by JSON Pointer.
type ImportReport struct {
	Importer  string        `json:"importer"`
	Recovered []string      `json:"recovered"`
	Skipped   []SkippedItem `json:"skipped"`
}

type SkippedItem struct {
	Pointer string `json:"pointer"`
	Reason  string `json:"reason"`
}

func (r *ImportReport) recovered(pointer string) {
	r.Recovered = append(r.Recovered, pointer)
}

func (r *ImportReport) skip(pointer, format string, args ...any) {
	r.Skipped = append(r.Skipped, SkippedItem{Pointer: pointer, Reason: fmt.Sprintf(format, args...)})
}

// Summary renders a one-line description of the report.
func (r ImportReport) Summary() string {
	return fmt.Sprintf("%s importer: %d recovered, %d skipped", r.Importer, len(r.Recovered), len(r.Skipped))
}

// NewImporter returns the importer registered under kind. An empty kind
// selects the structured importer.
func NewImporter(kind string) (Importer, error) {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "", ImporterStructured:
		return StructuredImporter{}, nil
	case ImporterHeuristic:
		return HeuristicImporter{}, nil
	default:
		return nil, &SpecError{Code: InputError, Message: fmt.Sprintf("spec: unknown importer %q (allowed: %s, %s)", kind, ImporterStructured, ImporterHeuristic)}
	}
}

// StructuredImporter parses YAML or JSON into a node tree and maps OpenAPI
// shapes onto the project model. Swagger 2.0 documents are converted to
// OpenAPI 3 first. Anything that cannot be represented is reported as skipped.
type StructuredImporter struct{}

func (StructuredImporter) Name() string { return ImporterStructured }

func (StructuredImporter) Import(data []byte) (*ImportResult, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, &SpecError{Code: ParseError, Message: "import: document is empty"}
	}
	if !utf8.Valid(data) {
		return nil, &SpecError{Code: ParseError, Message: "import: document is not valid UTF-8"}
	}
	root, err := decodeDocument(data)
	if err != nil {
		return nil, &SpecError{Code: ParseError, Message: fmt.Sprintf("import: parse document: %v", err), Cause: err}
	}

	if v := lookup(root, "swagger"); v != nil && strings.HasPrefix(strings.TrimSpace(v.Value), "2.") {
		root, err = convertV2Node(data)
		if err != nil {
			return nil, err
		}
	}

	m := &mapper{root: root, report: ImportReport{Importer: ImporterStructured}}
	p := m.project()
	return &ImportResult{Project: p, Report: m.report}, nil
}

// decodeDocument returns the root mapping of a YAML or JSON document. JSON
// is decoded token by token so key order survives.
func decodeDocument(data []byte) (*yaml.Node, error) {
	var root *yaml.Node
	if trimmed := bytes.TrimSpace(data); len(trimmed) > 0 && trimmed[0] == '{' {
		dec := json.NewDecoder(bytes.NewReader(trimmed))
		dec.UseNumber()
		n, err := jsonNode(dec)
		if err != nil {
			return nil, err
		}
		root = n
	} else {
		var doc yaml.Node
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, err
		}
		// The node tree keeps aliases unexpanded. Decoding once into plain
		// values lets yaml.v3 reject self-referencing anchors and excessive
		// alias expansion before anything walks the tree.
		var plain any
		if err := doc.Decode(&plain); err != nil {
			return nil, err
		}
		if doc.Kind != yaml.DocumentNode || len(doc.Content) == 0 {
			return nil, fmt.Errorf("no document found")
		}
		root = doc.Content[0]
	}
	if root.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("document root is not a mapping")
	}
	return root, nil
}

func jsonNode(dec *json.Decoder) (*yaml.Node, error) {
	tok, err := dec.Token()
	if err != nil {
		if err == io.EOF {
			return nil, fmt.Errorf("unexpected end of JSON input")
		}
		return nil, err
	}
	switch v := tok.(type) {
	case json.Delim:
		switch v {
		case '{':
			m := newMapping()
			for dec.More() {
				kt, err := dec.Token()
				if err != nil {
					return nil, err
				}
				key, _ := kt.(string)
				val, err := jsonNode(dec)
				if err != nil {
					return nil, err
				}
				m.Content = append(m.Content, keyNode(key), val)
			}
			if _, err := dec.Token(); err != nil {
				return nil, err
			}
			return m, nil
		case '[':
			s := newSequence()
			for dec.More() {
				val, err := jsonNode(dec)
				if err != nil {
					return nil, err
				}
				s.Content = append(s.Content, val)
			}
			if _, err := dec.Token(); err != nil {
				return nil, err
			}
			return s, nil
		}
		return nil, fmt.Errorf("unexpected delimiter %q", v)
	case string:
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: v}, nil
	case json.Number:
		tag := "!!float"
		if _, err := v.Int64(); err == nil {
			tag = "!!int"
		}
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: tag, Value: v.String()}, nil
	case bool:
		return boolNode(v), nil
	case nil:
		return nullNode(), nil
	}
	return nil, fmt.Errorf("unexpected JSON token %v", tok)
}

// convertV2Node converts a Swagger 2.0 document and returns the OpenAPI 3 tree.
func convertV2Node(data []byte) (*yaml.Node, error) {
	if fixed, changed, _ := preprocessV2ForCompatibility(data); changed {
		data = fixed
	}
	doc, err := convertV2ToV3(data)
	if err != nil {
		return nil, &SpecError{Code: ConversionError, Message: fmt.Sprintf("convert v2→v3: %v", err), Cause: err}
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, &SpecError{Code: ConversionError, Message: fmt.Sprintf("convert v2→v3: %v", err), Cause: err}
	}
	root, err := decodeDocument(raw)
	if err != nil {
		return nil, &SpecError{Code: ConversionError, Message: fmt.Sprintf("convert v2→v3: %v", err), Cause: err}
	}
	return root, nil
}

const maxRefDepth = 8

type mapper struct {
	root   *yaml.Node
	report ImportReport
}

func (m *mapper) project() *Project {
	p := &Project{
		Servers:   []Server{},
		Endpoints: []Endpoint{},
		Schemas:   []Schema{},
	}
	if info := lookup(m.root, "info"); info != nil {
		p.Name = scalar(info, "title")
		p.Description = scalar(info, "description")
		p.Version = scalar(info, "version")
		p.TermsOfService = scalar(info, "termsOfService")
		if c := lookup(info, "contact"); c != nil {
			p.Contact = Contact{Name: scalar(c, "name"), Email: scalar(c, "email"), URL: scalar(c, "url")}
		}
		if l := lookup(info, "license"); l != nil {
			p.License = License{Name: scalar(l, "name"), URL: scalar(l, "url")}
		}
		m.report.recovered("#/info")
	} else {
		m.report.skip("#/info", "missing info object")
	}

	if servers := lookup(m.root, "servers"); servers != nil && servers.Kind == yaml.SequenceNode {
		for i, s := range servers.Content {
			ptr := fmt.Sprintf("#/servers/%d", i)
			url := scalar(s, "url")
			if url == "" {
				m.report.skip(ptr, "server without url")
				continue
			}
			if lookup(s, "variables") != nil {
				m.report.skip(ptr+"/variables", "server variables are not supported")
			}
			p.Servers = append(p.Servers, Server{URL: url, Description: scalar(s, "description")})
			m.report.recovered(ptr)
		}
	}

	if paths := lookup(m.root, "paths"); paths != nil && paths.Kind == yaml.MappingNode {
		for i := 0; i+1 < len(paths.Content); i += 2 {
			m.pathItem(p, paths.Content[i].Value, paths.Content[i+1])
		}
	}

	if schemas := lookup(lookup(m.root, "components"), "schemas"); schemas != nil && schemas.Kind == yaml.MappingNode {
		for i := 0; i+1 < len(schemas.Content); i += 2 {
			name := schemas.Content[i].Value
			if s, ok := m.schema(name, schemas.Content[i+1]); ok {
				p.Schemas = append(p.Schemas, s)
			}
		}
	}
	return p
}

func (m *mapper) pathItem(p *Project, path string, item *yaml.Node) {
	base := "#/paths/" + escapePointer(path)
	if item == nil || item.Kind != yaml.MappingNode {
		m.report.skip(base, "path item is not an object")
		return
	}
	if lookup(item, "$ref") != nil {
		m.report.skip(base, "path item references are not supported")
		return
	}
	shared := m.parameters(lookup(item, "parameters"), base+"/parameters")

	for i := 0; i+1 < len(item.Content); i += 2 {
		key := item.Content[i].Value
		switch key {
		case "parameters", "summary", "description", "servers":
			continue
		}
		if strings.HasPrefix(key, "x-") {
			continue
		}
		method := HttpMethod(strings.ToUpper(key))
		ptr := base + "/" + escapePointer(key)
		if !method.Valid() {
			m.report.skip(ptr, "unsupported method %s", strings.ToUpper(key))
			continue
		}
		p.Endpoints = append(p.Endpoints, m.operation(path, method, item.Content[i+1], shared, ptr))
		m.report.recovered(ptr)
	}
}

func (m *mapper) operation(path string, method HttpMethod, op *yaml.Node, shared []Parameter, ptr string) Endpoint {
	ep := Endpoint{
		ID:          nonIdentRe.ReplaceAllString(path+"-"+string(method), "-"),
		Path:        path,
		Method:      method,
		Summary:     scalar(op, "summary"),
		Description: scalar(op, "description"),
		Responses:   map[string]Response{},
	}
	ep.Parameters = mergeParameters(shared, m.parameters(lookup(op, "parameters"), ptr+"/parameters"))

	if rb := lookup(op, "requestBody"); rb != nil {
		if resolved, ok := m.resolve(rb, ptr+"/requestBody"); ok {
			ep.RequestBody = &RequestBody{
				Required: boolean(resolved, "required"),
				Content:  m.content(lookup(resolved, "content")),
			}
		}
	}

	if responses := lookup(op, "responses"); responses != nil && responses.Kind == yaml.MappingNode {
		for i := 0; i+1 < len(responses.Content); i += 2 {
			code := responses.Content[i].Value
			rptr := ptr + "/responses/" + escapePointer(code)
			resolved, ok := m.resolve(responses.Content[i+1], rptr)
			if !ok {
				continue
			}
			ep.Responses[code] = m.response(resolved, rptr)
		}
	}
	for _, key := range []string{"callbacks", "security"} {
		if lookup(op, key) != nil {
			m.report.skip(ptr+"/"+key, "%s are not supported", key)
		}
	}
	return ep
}

func (m *mapper) response(n *yaml.Node, ptr string) Response {
	r := Response{Description: scalar(n, "description")}
	if headers := lookup(n, "headers"); headers != nil && headers.Kind == yaml.MappingNode {
		r.Headers = map[string]Header{}
		for i := 0; i+1 < len(headers.Content); i += 2 {
			name := headers.Content[i].Value
			h, ok := m.resolve(headers.Content[i+1], ptr+"/headers/"+escapePointer(name))
			if !ok {
				continue
			}
			r.Headers[name] = Header{Description: scalar(h, "description"), Schema: fragmentOf(lookup(h, "schema"))}
		}
	}
	if content := lookup(n, "content"); content != nil {
		r.Content = m.content(content)
	}
	if lookup(n, "links") != nil {
		m.report.skip(ptr+"/links", "links are not supported")
	}
	return r
}

func (m *mapper) content(n *yaml.Node) map[string]MediaType {
	out := map[string]MediaType{}
	if n == nil || n.Kind != yaml.MappingNode {
		return out
	}
	for i := 0; i+1 < len(n.Content); i += 2 {
		mt := n.Content[i+1]
		media := MediaType{Schema: fragmentOf(lookup(mt, "schema"))}
		if ex := lookup(mt, "example"); ex != nil {
			media.Example = nodeValue(ex)
		}
		out[n.Content[i].Value] = media
	}
	return out
}

func (m *mapper) parameters(n *yaml.Node, ptr string) []Parameter {
	out := []Parameter{}
	if n == nil || n.Kind != yaml.SequenceNode {
		return out
	}
	for i, item := range n.Content {
		iptr := fmt.Sprintf("%s/%d", ptr, i)
		resolved, ok := m.resolve(item, iptr)
		if !ok {
			continue
		}
		in := scalar(resolved, "in")
		switch in {
		case InQuery, InPath, InHeader:
		default:
			m.report.skip(iptr, "parameter location %q is not supported", in)
			continue
		}
		prm := Parameter{
			Name:        scalar(resolved, "name"),
			In:          in,
			Required:    boolean(resolved, "required"),
			Description: scalar(resolved, "description"),
			Deprecated:  boolean(resolved, "deprecated"),
			Schema:      fragmentOf(lookup(resolved, "schema")),
		}
		if ex := lookup(resolved, "example"); ex != nil {
			prm.Example = nodeValue(ex)
		}
		out = append(out, prm)
	}
	return out
}

// mergeParameters overlays operation parameters on path-level ones, keyed
// by location and name. Operation entries win and keep the shared slot.
func mergeParameters(shared, own []Parameter) []Parameter {
	out := make([]Parameter, 0, len(shared)+len(own))
	index := make(map[string]int, len(shared)+len(own))
	for _, prm := range shared {
		index[paramKey(prm.In, prm.Name)] = len(out)
		out = append(out, prm)
	}
	for _, prm := range own {
		if i, ok := index[paramKey(prm.In, prm.Name)]; ok {
			out[i] = prm
			continue
		}
		index[paramKey(prm.In, prm.Name)] = len(out)
		out = append(out, prm)
	}
	return out
}

func paramKey(in, name string) string { return in + ":" + name }

func (m *mapper) schema(name string, n *yaml.Node) (Schema, bool) {
	ptr := "#/components/schemas/" + escapePointer(name)
	if n == nil || n.Kind != yaml.MappingNode {
		m.report.skip(ptr, "schema is not an object")
		return Schema{}, false
	}
	if lookup(n, "$ref") != nil {
		m.report.skip(ptr, "top-level schema aliases are not supported")
		return Schema{}, false
	}
	s := Schema{
		ID:          "schema-" + nonIdentRe.ReplaceAllString(name, "-"),
		Name:        name,
		Type:        m.schemaType(n, ptr),
		Description: scalar(n, "description"),
		Properties:  map[string]Fragment{},
		Required:    []string{},
	}
	if props := lookup(n, "properties"); props != nil && props.Kind == yaml.MappingNode {
		for i := 0; i+1 < len(props.Content); i += 2 {
			s.Properties[props.Content[i].Value] = fragmentOf(props.Content[i+1])
		}
	}
	if req := lookup(n, "required"); req != nil && req.Kind == yaml.SequenceNode {
		for _, r := range req.Content {
			s.Required = append(s.Required, r.Value)
		}
	}
	if items := lookup(n, "items"); items != nil {
		s.Items = fragmentOf(items)
	}
	if ap := lookup(n, "additionalProperties"); ap != nil {
		if ap.Kind == yaml.ScalarNode && ap.ShortTag() == "!!bool" {
			v := ap.Value == "true"
			s.AdditionalProperties = &v
		} else {
			m.report.skip(ptr+"/additionalProperties", "schema-valued additionalProperties is not supported")
		}
	}
	for _, key := range []string{"allOf", "oneOf", "anyOf", "not"} {
		if lookup(n, key) != nil {
			m.report.skip(ptr+"/"+key, "composition keyword %s is not supported", key)
		}
	}
	m.report.recovered(ptr)
	return s, true
}

func (m *mapper) schemaType(n *yaml.Node, ptr string) string {
	t := lookup(n, "type")
	if t == nil {
		return ""
	}
	if t.Kind == yaml.ScalarNode {
		return t.Value
	}
	if t.Kind == yaml.SequenceNode {
		for _, v := range t.Content {
			if v.Value != "null" {
				m.report.skip(ptr+"/type", "type union reduced to %s", v.Value)
				return v.Value
			}
		}
	}
	return ""
}

// resolve follows local $ref chains. Unresolvable or external references
// are reported and yield ok=false.
func (m *mapper) resolve(n *yaml.Node, ptr string) (*yaml.Node, bool) {
	for depth := 0; depth < maxRefDepth; depth++ {
		if n == nil || n.Kind != yaml.MappingNode {
			m.report.skip(ptr, "expected an object")
			return nil, false
		}
		ref := lookup(n, "$ref")
		if ref == nil {
			return n, true
		}
		if !strings.HasPrefix(ref.Value, "#/") {
			m.report.skip(ptr, "external reference %s not followed", ref.Value)
			return nil, false
		}
		target := m.pointer(ref.Value)
		if target == nil {
			m.report.skip(ptr, "unresolved reference %s", ref.Value)
			return nil, false
		}
		n = target
	}
	m.report.skip(ptr, "reference chain too deep")
	return nil, false
}

func (m *mapper) pointer(ref string) *yaml.Node {
	n := m.root
	for _, seg := range strings.Split(strings.TrimPrefix(ref, "#/"), "/") {
		n = lookup(n, unescapePointer(seg))
		if n == nil {
			return nil
		}
	}
	return n
}

func escapePointer(s string) string {
	return strings.NewReplacer("~", "~0", "/", "~1").Replace(s)
}

func unescapePointer(s string) string {
	return strings.NewReplacer("~1", "/", "~0", "~").Replace(s)
}

func operationPointer(path string, method HttpMethod) string {
	return "#/paths/" + escapePointer(path) + "/" + strings.ToLower(string(method))
}

func scalar(n *yaml.Node, key string) string {
	v := lookup(n, key)
	if v == nil || v.Kind != yaml.ScalarNode || v.ShortTag() == "!!null" {
		return ""
	}
	return v.Value
}

func boolean(n *yaml.Node, key string) bool {
	v := lookup(n, key)
	return v != nil && v.Kind == yaml.ScalarNode && v.Value == "true"
}

func fragmentOf(n *yaml.Node) Fragment {
	if n == nil {
		return nil
	}
	if f := asFragment(nodeValue(n)); f != nil {
		return f
	}
	return nil
}

// maxValueDepth bounds how deep nodeValue descends into nested values.
const maxValueDepth = 64

// nodeValue converts a node into plain Go values (maps, slices, scalars).
func nodeValue(n *yaml.Node) any {
	return nodeValueDepth(n, 0)
}

func nodeValueDepth(n *yaml.Node, depth int) any {
	if n == nil || depth > maxValueDepth {
		return nil
	}
	switch n.Kind {
	case yaml.AliasNode:
		return nodeValueDepth(n.Alias, depth+1)
	case yaml.MappingNode:
		out := make(map[string]any, len(n.Content)/2)
		for i := 0; i+1 < len(n.Content); i += 2 {
			out[n.Content[i].Value] = nodeValueDepth(n.Content[i+1], depth+1)
		}
		return out
	case yaml.SequenceNode:
		out := make([]any, 0, len(n.Content))
		for _, item := range n.Content {
			out = append(out, nodeValueDepth(item, depth+1))
		}
		return out
	case yaml.ScalarNode:
		var v any
		if err := n.Decode(&v); err != nil {
			return n.Value
		}
		return v
	}
	return nil
}
