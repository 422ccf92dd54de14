package designer

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/platformcommons/apidesigner/internal/spec"
)

// EndpointPatch is a shallow partial update of an endpoint.
type EndpointPatch struct {
	Path        *string                   `json:"path,omitempty" binding:"omitempty,startswith=/"`
	Method      *spec.HttpMethod          `json:"method,omitempty" binding:"omitempty,oneof=GET POST PUT DELETE PATCH"`
	Summary     *string                   `json:"summary,omitempty"`
	Description *string                   `json:"description,omitempty"`
	Parameters  *[]spec.Parameter         `json:"parameters,omitempty"`
	RequestBody *spec.RequestBody         `json:"requestBody,omitempty"`
	Responses   *map[string]spec.Response `json:"responses,omitempty"`

	// ClearRequestBody removes the request body. It wins over RequestBody.
	ClearRequestBody bool `json:"clearRequestBody,omitempty"`
}

// AddEndpoint stores a copy of e and returns its id. An empty or taken id is
// replaced by a fresh one.
func (d *Designer) AddEndpoint(e spec.Endpoint) string {
	d.mu.Lock()
	defer d.mu.Unlock()
	e = e.Clone()
	if e.Parameters == nil {
		e.Parameters = []spec.Parameter{}
	}
	if e.Responses == nil {
		e.Responses = map[string]spec.Response{}
	}
	return d.endpoints.add(e)
}

// Endpoint returns a copy of the endpoint with id.
func (d *Designer) Endpoint(id string) (spec.Endpoint, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	e, ok := d.endpoints.get(id)
	if !ok {
		return spec.Endpoint{}, false
	}
	return e.Clone(), true
}

// UpdateEndpoint merges patch into the endpoint with id. It reports false
// and changes nothing when id is unknown.
func (d *Designer) UpdateEndpoint(id string, patch EndpointPatch) bool {
	return d.mutateEndpoint(id, func(e *spec.Endpoint) bool {
		if patch.Path != nil {
			e.Path = *patch.Path
		}
		if patch.Method != nil {
			e.Method = *patch.Method
		}
		if patch.Summary != nil {
			e.Summary = *patch.Summary
		}
		if patch.Description != nil {
			e.Description = *patch.Description
		}
		if patch.Parameters != nil {
			e.Parameters = spec.Endpoint{Parameters: *patch.Parameters}.Clone().Parameters
		}
		if patch.RequestBody != nil {
			e.RequestBody = spec.Endpoint{RequestBody: patch.RequestBody}.Clone().RequestBody
		}
		if patch.ClearRequestBody {
			e.RequestBody = nil
		}
		if patch.Responses != nil {
			e.Responses = spec.Endpoint{Responses: *patch.Responses}.Clone().Responses
		}
		return true
	})
}

// RemoveEndpoint deletes the endpoint with id. Unknown ids are ignored.
func (d *Designer) RemoveEndpoint(id string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.endpoints.remove(id)
}

// mutateEndpoint runs fn on the stored endpoint under the lock.
func (d *Designer) mutateEndpoint(id string, fn func(*spec.Endpoint) bool) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	e, ok := d.endpoints.get(id)
	if !ok {
		return false
	}
	return fn(e)
}

// ParameterPatch is a partial update of one parameter.
type ParameterPatch struct {
	Name        *string       `json:"name,omitempty"`
	In          *string       `json:"in,omitempty" binding:"omitempty,oneof=query path header"`
	Required    *bool         `json:"required,omitempty"`
	Description *string       `json:"description,omitempty"`
	Schema      spec.Fragment `json:"schema,omitempty"`
}

// NewParameter returns the parameter the endpoint editor adds.
func NewParameter() spec.Parameter {
	return spec.Parameter{
		Name:   "newParam",
		In:     spec.InQuery,
		Schema: spec.Fragment{"type": "string"},
	}
}

// AddParameter appends NewParameter() to the endpoint and returns its index,
// or -1 when id is unknown.
func (d *Designer) AddParameter(id string) int {
	i := -1
	d.mutateEndpoint(id, func(e *spec.Endpoint) bool {
		e.Parameters = append(e.Parameters, NewParameter())
		i = len(e.Parameters) - 1
		return true
	})
	return i
}

// UpdateParameter merges patch into parameter i of the endpoint.
func (d *Designer) UpdateParameter(id string, i int, patch ParameterPatch) bool {
	return d.mutateEndpoint(id, func(e *spec.Endpoint) bool {
		if i < 0 || i >= len(e.Parameters) {
			return false
		}
		p := &e.Parameters[i]
		if patch.Name != nil {
			p.Name = *patch.Name
		}
		if patch.In != nil {
			p.In = *patch.In
		}
		if patch.Required != nil {
			p.Required = *patch.Required
		}
		if patch.Description != nil {
			p.Description = *patch.Description
		}
		if patch.Schema != nil {
			p.Schema = patch.Schema.Clone()
		}
		return true
	})
}

// RemoveParameter drops parameter i of the endpoint.
func (d *Designer) RemoveParameter(id string, i int) bool {
	return d.mutateEndpoint(id, func(e *spec.Endpoint) bool {
		if i < 0 || i >= len(e.Parameters) {
			return false
		}
		e.Parameters = append(e.Parameters[:i:i], e.Parameters[i+1:]...)
		return true
	})
}

// NewMediaType returns the body entry added for mime: an empty object schema,
// with a "{}" example for JSON.
func NewMediaType(mime string) spec.MediaType {
	mt := spec.MediaType{Schema: spec.Fragment{"type": "object", "properties": map[string]spec.Fragment{}}}
	if mime == "application/json" {
		mt.Example = "{}"
	}
	return mt
}

// AddRequestBodyContent adds an empty body entry for mime, creating the
// request body when needed. An existing entry for mime is kept.
func (d *Designer) AddRequestBodyContent(id, mime string) bool {
	return d.mutateEndpoint(id, func(e *spec.Endpoint) bool {
		rb := ensureRequestBody(e)
		if _, ok := rb.Content[mime]; ok {
			return false
		}
		rb.Content[mime] = NewMediaType(mime)
		return true
	})
}

// SetRequestBodyContent replaces the body entry for mime.
func (d *Designer) SetRequestBodyContent(id, mime string, mt spec.MediaType) bool {
	return d.mutateEndpoint(id, func(e *spec.Endpoint) bool {
		rb := ensureRequestBody(e)
		rb.Content[mime] = spec.MediaType{Schema: mt.Schema.Clone(), Example: mt.Example}
		return true
	})
}

// RemoveRequestBodyContent drops the body entry for mime. The request body
// goes away with its last entry.
func (d *Designer) RemoveRequestBodyContent(id, mime string) bool {
	return d.mutateEndpoint(id, func(e *spec.Endpoint) bool {
		if e.RequestBody == nil {
			return false
		}
		if _, ok := e.RequestBody.Content[mime]; !ok {
			return false
		}
		delete(e.RequestBody.Content, mime)
		if len(e.RequestBody.Content) == 0 {
			e.RequestBody = nil
		}
		return true
	})
}

func ensureRequestBody(e *spec.Endpoint) *spec.RequestBody {
	if e.RequestBody == nil {
		e.RequestBody = &spec.RequestBody{}
	}
	if e.RequestBody.Content == nil {
		e.RequestBody.Content = map[string]spec.MediaType{}
	}
	return e.RequestBody
}

// AddBodyProperty adds a string property named after the next free
// propertyN slot to the body schema for mime and returns the name.
func (d *Designer) AddBodyProperty(id, mime string) (string, bool) {
	var name string
	ok := d.mutateEndpoint(id, func(e *spec.Endpoint) bool {
		if e.RequestBody == nil {
			return false
		}
		mt, ok := e.RequestBody.Content[mime]
		if !ok {
			return false
		}
		props := bodyProperties(&mt)
		name = nextName("property", props)
		props[name] = spec.Fragment{"type": "string", "description": ""}
		e.RequestBody.Content[mime] = mt
		return true
	})
	return name, ok
}

// UpdateBodyProperty replaces property oldName of the body schema for mime
// with f under newName.
func (d *Designer) UpdateBodyProperty(id, mime, oldName, newName string, f spec.Fragment) bool {
	return d.mutateEndpoint(id, func(e *spec.Endpoint) bool {
		if e.RequestBody == nil || newName == "" {
			return false
		}
		mt, ok := e.RequestBody.Content[mime]
		if !ok {
			return false
		}
		props := bodyProperties(&mt)
		if _, ok := props[oldName]; !ok {
			return false
		}
		if _, taken := props[newName]; taken && newName != oldName {
			return false
		}
		delete(props, oldName)
		props[newName] = f.Clone()
		e.RequestBody.Content[mime] = mt
		return true
	})
}

// RemoveBodyProperty drops property name from the body schema for mime.
func (d *Designer) RemoveBodyProperty(id, mime, name string) bool {
	return d.mutateEndpoint(id, func(e *spec.Endpoint) bool {
		if e.RequestBody == nil {
			return false
		}
		mt, ok := e.RequestBody.Content[mime]
		if !ok {
			return false
		}
		props := bodyProperties(&mt)
		if _, ok := props[name]; !ok {
			return false
		}
		delete(props, name)
		e.RequestBody.Content[mime] = mt
		return true
	})
}

// bodyProperties returns the properties map of mt's schema, creating the
// schema and the map when missing. The returned map is stored on mt.
func bodyProperties(mt *spec.MediaType) map[string]spec.Fragment {
	if mt.Schema == nil {
		mt.Schema = spec.Fragment{"type": "object"}
	}
	props := mt.Schema.Properties()
	if props == nil {
		props = map[string]spec.Fragment{}
	}
	mt.Schema["properties"] = props
	return props
}

// NewResponse returns the response the endpoint editor adds for code.
func NewResponse(code string) spec.Response {
	desc := "Response"
	switch code {
	case "200":
		desc = "OK"
	case "201":
		desc = "Created"
	case "400", "401", "403", "404", "500":
		n, _ := strconv.Atoi(code)
		desc = http.StatusText(n)
	}
	return spec.Response{
		Description: desc,
		Headers:     map[string]spec.Header{},
		Content:     map[string]spec.MediaType{},
	}
}

// AddResponse adds NewResponse(code) unless the endpoint already has code.
func (d *Designer) AddResponse(id, code string) bool {
	return d.mutateEndpoint(id, func(e *spec.Endpoint) bool {
		if code == "" {
			return false
		}
		if e.Responses == nil {
			e.Responses = map[string]spec.Response{}
		}
		if _, ok := e.Responses[code]; ok {
			return false
		}
		e.Responses[code] = NewResponse(code)
		return true
	})
}

// SetResponse replaces the response for code.
func (d *Designer) SetResponse(id, code string, r spec.Response) bool {
	return d.mutateEndpoint(id, func(e *spec.Endpoint) bool {
		if code == "" {
			return false
		}
		if e.Responses == nil {
			e.Responses = map[string]spec.Response{}
		}
		e.Responses[code] = r.Clone()
		return true
	})
}

// RemoveResponse drops the response for code.
func (d *Designer) RemoveResponse(id, code string) bool {
	return d.mutateEndpoint(id, func(e *spec.Endpoint) bool {
		if _, ok := e.Responses[code]; !ok {
			return false
		}
		delete(e.Responses, code)
		return true
	})
}

// AddResponseHeader adds a string header named after the next free headerN
// slot to the response for code and returns the name.
func (d *Designer) AddResponseHeader(id, code string) (string, bool) {
	var name string
	ok := d.mutateEndpoint(id, func(e *spec.Endpoint) bool {
		r, ok := e.Responses[code]
		if !ok {
			return false
		}
		if r.Headers == nil {
			r.Headers = map[string]spec.Header{}
		}
		name = nextName("header", r.Headers)
		r.Headers[name] = spec.Header{Schema: spec.Fragment{"type": "string"}}
		e.Responses[code] = r
		return true
	})
	return name, ok
}

// RemoveResponseHeader drops header name from the response for code.
func (d *Designer) RemoveResponseHeader(id, code, name string) bool {
	return d.mutateEndpoint(id, func(e *spec.Endpoint) bool {
		r, ok := e.Responses[code]
		if !ok {
			return false
		}
		if _, ok := r.Headers[name]; !ok {
			return false
		}
		delete(r.Headers, name)
		return true
	})
}

// nextName returns prefix followed by the smallest n > len(m) not in m.
func nextName[V any](prefix string, m map[string]V) string {
	for n := len(m) + 1; ; n++ {
		name := fmt.Sprintf("%s%d", prefix, n)
		if _, taken := m[name]; !taken {
			return name
		}
	}
}
