package spec

// Document Model definitions edited by the designer and consumed by the exporter.

type HttpMethod string

const (
	GET    HttpMethod = "GET"
	POST   HttpMethod = "POST"
	PUT    HttpMethod = "PUT"
	DELETE HttpMethod = "DELETE"
	PATCH  HttpMethod = "PATCH"
)

// Methods lists the supported HTTP methods in display order.
var Methods = []HttpMethod{GET, POST, PUT, DELETE, PATCH}

// Valid reports whether m is one of the supported methods.
func (m HttpMethod) Valid() bool {
	for _, v := range Methods {
		if v == m {
			return true
		}
	}
	return false
}

// Parameter locations accepted by the designer.
const (
	InQuery  = "query"
	InPath   = "path"
	InHeader = "header"
)

// SchemaTypes lists the types offered for top-level schemas.
var SchemaTypes = []string{"string", "number", "boolean", "array", "object"}

// ContentTypes lists the MIME types offered for request and response bodies.
var ContentTypes = []string{
	"application/json",
	"application/xml",
	"application/x-www-form-urlencoded",
	"multipart/form-data",
	"text/plain",
	"text/html",
}

type Project struct {
	ID             string     `json:"id,omitempty"`
	Name           string     `json:"name"`
	Description    string     `json:"description"`
	Version        string     `json:"version"`
	Contact        Contact    `json:"contact"`
	License        License    `json:"license"`
	TermsOfService string     `json:"termsOfService"`
	Servers        []Server   `json:"servers"`
	Endpoints      []Endpoint `json:"endpoints"`
	Schemas        []Schema   `json:"schemas"`
}

type Contact struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	URL   string `json:"url"`
}

func (c Contact) IsZero() bool { return c.Name == "" && c.Email == "" && c.URL == "" }

type License struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

func (l License) IsZero() bool { return l.Name == "" && l.URL == "" }

type Server struct {
	URL         string `json:"url"`
	Description string `json:"description"`
}

type Endpoint struct {
	ID          string              `json:"id"`
	Path        string              `json:"path"`
	Method      HttpMethod          `json:"method"`
	Summary     string              `json:"summary"`
	Description string              `json:"description"`
	Parameters  []Parameter         `json:"parameters"`
	RequestBody *RequestBody        `json:"requestBody"`
	Responses   map[string]Response `json:"responses"`
}

type Parameter struct {
	Name        string   `json:"name"`
	In          string   `json:"in"` // query|path|header
	Required    bool     `json:"required"`
	Schema      Fragment `json:"schema,omitempty"`
	Description string   `json:"description,omitempty"`
	Example     any      `json:"example,omitempty"`
	Deprecated  bool     `json:"deprecated,omitempty"`
}

type RequestBody struct {
	Required bool                 `json:"required,omitempty"`
	Content  map[string]MediaType `json:"content"`
}

type MediaType struct {
	Schema  Fragment `json:"schema,omitempty"`
	Example any      `json:"example,omitempty"`
}

type Response struct {
	Description string               `json:"description"`
	Headers     map[string]Header    `json:"headers,omitempty"`
	Content     map[string]MediaType `json:"content,omitempty"`
}

type Header struct {
	Description string   `json:"description,omitempty"`
	Schema      Fragment `json:"schema,omitempty"`
}

// Schema is a reusable named shape exported under components.schemas.
type Schema struct {
	ID                   string              `json:"id"`
	Name                 string              `json:"name"`
	Type                 string              `json:"type"`
	Description          string              `json:"description,omitempty"`
	Properties           map[string]Fragment `json:"properties"`
	Required             []string            `json:"required"`
	Items                Fragment            `json:"items,omitempty"`
	AdditionalProperties *bool               `json:"additionalProperties,omitempty"`
}

// NewProject returns the empty project a designer session starts from.
func NewProject() *Project {
	return &Project{
		Version: "1.0",
		Servers: []Server{
			{Description: "SANDBOX"},
			{Description: "PROD"},
		},
		Endpoints: []Endpoint{},
		Schemas:   []Schema{},
	}
}

// NewEndpoint returns the placeholder endpoint added from the endpoint list.
func NewEndpoint() Endpoint {
	return Endpoint{
		Path:       "/new-endpoint",
		Method:     GET,
		Summary:    "New Endpoint",
		Parameters: []Parameter{},
		Responses: map[string]Response{
			"200": {Description: "Successful response"},
		},
	}
}

// NewSchema returns an empty object schema with the given name.
func NewSchema(name string) Schema {
	return Schema{
		Name:       name,
		Type:       "object",
		Properties: map[string]Fragment{},
		Required:   []string{},
	}
}

// Clone returns a deep copy of p.
func (p *Project) Clone() *Project {
	if p == nil {
		return nil
	}
	out := *p
	out.Servers = append([]Server(nil), p.Servers...)
	out.Endpoints = make([]Endpoint, len(p.Endpoints))
	for i, ep := range p.Endpoints {
		out.Endpoints[i] = ep.Clone()
	}
	out.Schemas = make([]Schema, len(p.Schemas))
	for i, s := range p.Schemas {
		out.Schemas[i] = s.Clone()
	}
	return &out
}

// Clone returns a deep copy of e.
func (e Endpoint) Clone() Endpoint {
	out := e
	if e.Parameters != nil {
		out.Parameters = make([]Parameter, len(e.Parameters))
		for i, p := range e.Parameters {
			p.Schema = p.Schema.Clone()
			p.Example = cloneValue(p.Example)
			out.Parameters[i] = p
		}
	}
	if e.RequestBody != nil {
		rb := *e.RequestBody
		rb.Content = cloneContent(e.RequestBody.Content)
		out.RequestBody = &rb
	}
	if e.Responses != nil {
		out.Responses = make(map[string]Response, len(e.Responses))
		for code, r := range e.Responses {
			out.Responses[code] = r.Clone()
		}
	}
	return out
}

// Clone returns a deep copy of r.
func (r Response) Clone() Response {
	out := r
	if r.Headers != nil {
		out.Headers = make(map[string]Header, len(r.Headers))
		for name, h := range r.Headers {
			h.Schema = h.Schema.Clone()
			out.Headers[name] = h
		}
	}
	out.Content = cloneContent(r.Content)
	return out
}

// Clone returns a deep copy of s.
func (s Schema) Clone() Schema {
	out := s
	if s.Properties != nil {
		out.Properties = make(map[string]Fragment, len(s.Properties))
		for name, f := range s.Properties {
			out.Properties[name] = f.Clone()
		}
	}
	if s.Required != nil {
		out.Required = append([]string{}, s.Required...)
	}
	out.Items = s.Items.Clone()
	if s.AdditionalProperties != nil {
		v := *s.AdditionalProperties
		out.AdditionalProperties = &v
	}
	return out
}

func cloneContent(in map[string]MediaType) map[string]MediaType {
	if in == nil {
		return nil
	}
	out := make(map[string]MediaType, len(in))
	for mime, mt := range in {
		out[mime] = MediaType{Schema: mt.Schema.Clone(), Example: cloneValue(mt.Example)}
	}
	return out
}
