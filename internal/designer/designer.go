// Package designer holds an editable API design and the operations the
// editor surfaces apply to it. A Designer is safe for concurrent use.
package designer

import (
	"bytes"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/platformcommons/apidesigner/internal/spec"
)

// Designer owns one project. Endpoints and schemas live in registries keyed
// by id; every other field is kept on the header project.
type Designer struct {
	mu        sync.Mutex
	header    spec.Project
	endpoints *registry[spec.Endpoint]
	schemas   *registry[spec.Schema]
	importer  spec.Importer
	logger    *slog.Logger
	last      *Export
	initial   []byte
}

// Option configures a Designer.
type Option func(*Designer)

// WithImporter sets the importer used for preview edits and reloads.
func WithImporter(imp spec.Importer) Option {
	return func(d *Designer) {
		if imp != nil {
			d.importer = imp
		}
	}
}

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(d *Designer) {
		if l != nil {
			d.logger = l
		}
	}
}

// WithProject starts the designer from a copy of p.
func WithProject(p *spec.Project) Option {
	return func(d *Designer) {
		if p != nil {
			d.load(p.Clone())
		}
	}
}

// WithInitialDocument imports text when the designer is created. A document
// that cannot be imported is logged and the designer starts empty.
func WithInitialDocument(text []byte) Option {
	return func(d *Designer) {
		d.initial = text
	}
}

// New returns a designer holding spec.NewProject() unless options say otherwise.
func New(opts ...Option) *Designer {
	d := &Designer{
		endpoints: newRegistry(func(e *spec.Endpoint) *string { return &e.ID }),
		schemas:   newRegistry(func(s *spec.Schema) *string { return &s.ID }),
		importer:  spec.StructuredImporter{},
		logger:    slog.Default(),
	}
	d.load(spec.NewProject())
	for _, opt := range opts {
		opt(d)
	}
	if d.initial != nil {
		if res, err := d.importer.Import(d.initial); err != nil {
			d.logger.Warn("initial document not imported", "importer", d.importer.Name(), "error", err)
		} else {
			d.load(res.Project)
			d.logger.Debug("initial document imported", "importer", d.importer.Name(), "summary", res.Report.Summary())
		}
		d.initial = nil
	}
	return d
}

// load installs p without taking the lock. p must not be shared.
func (d *Designer) load(p *spec.Project) {
	d.header = *p
	d.header.Endpoints = nil
	d.header.Schemas = nil
	d.endpoints.reset(p.Endpoints)
	d.schemas.reset(p.Schemas)
}

// Project returns a deep copy of the current project.
func (d *Designer) Project() *spec.Project {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.snapshot()
}

func (d *Designer) snapshot() *spec.Project {
	p := d.header.Clone()
	p.Endpoints = make([]spec.Endpoint, 0, d.endpoints.count())
	d.endpoints.each(func(e *spec.Endpoint) { p.Endpoints = append(p.Endpoints, e.Clone()) })
	p.Schemas = make([]spec.Schema, 0, d.schemas.count())
	d.schemas.each(func(s *spec.Schema) { p.Schemas = append(p.Schemas, s.Clone()) })
	return p
}

// ProjectPatch is a shallow partial update of a project. Nil fields are left
// as they are.
type ProjectPatch struct {
	Name           *string          `json:"name,omitempty"`
	Description    *string          `json:"description,omitempty"`
	Version        *string          `json:"version,omitempty"`
	Contact        *spec.Contact    `json:"contact,omitempty"`
	License        *spec.License    `json:"license,omitempty"`
	TermsOfService *string          `json:"termsOfService,omitempty"`
	Servers        *[]spec.Server   `json:"servers,omitempty"`
	Endpoints      *[]spec.Endpoint `json:"endpoints,omitempty"`
	Schemas        *[]spec.Schema   `json:"schemas,omitempty"`
}

// UpdateProject merges patch into the project.
func (d *Designer) UpdateProject(patch ProjectPatch) {
	d.mu.Lock()
	defer d.mu.Unlock()
	h := &d.header
	if patch.Name != nil {
		h.Name = *patch.Name
	}
	if patch.Description != nil {
		h.Description = *patch.Description
	}
	if patch.Version != nil {
		h.Version = *patch.Version
	}
	if patch.Contact != nil {
		h.Contact = *patch.Contact
	}
	if patch.License != nil {
		h.License = *patch.License
	}
	if patch.TermsOfService != nil {
		h.TermsOfService = *patch.TermsOfService
	}
	if patch.Servers != nil {
		h.Servers = append([]spec.Server{}, (*patch.Servers)...)
	}
	if patch.Endpoints != nil {
		d.endpoints.replace(cloneEach(*patch.Endpoints, spec.Endpoint.Clone))
	}
	if patch.Schemas != nil {
		d.schemas.replace(cloneEach(*patch.Schemas, spec.Schema.Clone))
	}
}

func cloneEach[T any](in []T, clone func(T) T) []T {
	out := make([]T, len(in))
	for i, v := range in {
		out[i] = clone(v)
	}
	return out
}

// AddServer appends a server and returns its index.
func (d *Designer) AddServer(s spec.Server) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.header.Servers = append(d.header.Servers, s)
	return len(d.header.Servers) - 1
}

// UpdateServer replaces the server at index i.
func (d *Designer) UpdateServer(i int, s spec.Server) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if i < 0 || i >= len(d.header.Servers) {
		return false
	}
	d.header.Servers[i] = s
	return true
}

// RemoveServer drops the server at index i.
func (d *Designer) RemoveServer(i int) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if i < 0 || i >= len(d.header.Servers) {
		return false
	}
	d.header.Servers = append(d.header.Servers[:i:i], d.header.Servers[i+1:]...)
	return true
}

// Route is a (method, path) pair shared by more than one endpoint. Only the
// last endpoint listed in IDs appears in an export.
type Route struct {
	Method spec.HttpMethod `json:"method"`
	Path   string          `json:"path"`
	IDs    []string        `json:"ids"`
}

// DuplicateRoutes lists routes defined by several endpoints, in the order
// their first endpoint appears.
func (d *Designer) DuplicateRoutes() []Route {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.duplicateRoutes()
}

func (d *Designer) duplicateRoutes() []Route {
	index := map[string]int{}
	var routes []Route
	d.endpoints.each(func(e *spec.Endpoint) {
		key := string(e.Method) + " " + e.Path
		i, ok := index[key]
		if !ok {
			index[key] = len(routes)
			routes = append(routes, Route{Method: e.Method, Path: e.Path})
			i = len(routes) - 1
		}
		routes[i].IDs = append(routes[i].IDs, e.ID)
	})
	out := []Route{}
	for _, r := range routes {
		if len(r.IDs) > 1 {
			out = append(out, r)
		}
	}
	return out
}

// Export is the text produced by the most recent ExportCurrentSpec call.
type Export struct {
	Format   spec.Format `json:"format"`
	FileName string      `json:"fileName"`
	Content  []byte      `json:"-"`
	At       time.Time   `json:"at"`
}

// ExportCurrentSpec renders the current project and keeps the result for
// LastExport.
func (d *Designer) ExportCurrentSpec(format spec.Format) (Export, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	p := d.snapshot()
	out, err := spec.Export(p, format)
	if err != nil {
		return Export{}, err
	}
	if dups := d.duplicateRoutes(); len(dups) > 0 {
		names := make([]string, 0, len(dups))
		for _, r := range dups {
			names = append(names, string(r.Method)+" "+r.Path)
		}
		sort.Strings(names)
		d.logger.Warn("duplicate routes exported, last definition wins", "routes", strings.Join(names, ", "))
	}
	exp := Export{Format: format, FileName: spec.FileName(p, format), Content: out, At: time.Now()}
	stored := exp
	stored.Content = bytes.Clone(out)
	d.last = &stored
	d.logger.Debug("project exported", "format", format, "bytes", len(out))
	return exp, nil
}

// LastExport returns the most recent export without rebuilding it.
func (d *Designer) LastExport() (Export, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.last == nil {
		return Export{}, false
	}
	exp := *d.last
	exp.Content = bytes.Clone(d.last.Content)
	return exp, true
}
