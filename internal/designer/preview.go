package designer

import (
	"cmp"
	"fmt"
	"slices"

	"github.com/platformcommons/apidesigner/internal/spec"
)

// Loss names one piece of structured data that replacing the project with an
// edited preview would drop.
type Loss struct {
	Kind   string `json:"kind"`
	Target string `json:"target"`
	Item   string `json:"item,omitempty"`
}

func (l Loss) String() string {
	if l.Item == "" {
		return fmt.Sprintf("%s %s", l.Kind, l.Target)
	}
	return fmt.Sprintf("%s %s of %s", l.Kind, l.Item, l.Target)
}

// Loss kinds.
const (
	LossEndpoint    = "endpoint"
	LossParameter   = "parameter"
	LossRequestBody = "requestBody"
	LossResponse    = "response"
	LossSchema      = "schema"
	LossProperty    = "property"
	LossServer      = "server"
	LossInfo        = "info"
)

// PreviewResult describes an ApplyPreview call.
type PreviewResult struct {
	Applied bool              `json:"applied"`
	Losses  []Loss            `json:"losses"`
	Report  spec.ImportReport `json:"report"`
}

// ApplyPreview imports edited preview text with the designer's importer. When
// the imported project would lose data the current one has and confirm is
// false, nothing changes and the losses are returned for the caller to show.
// Otherwise the project is replaced. An import error leaves the project as it
// was.
func (d *Designer) ApplyPreview(text []byte, confirm bool) (*PreviewResult, error) {
	res, err := d.importer.Import(text)
	if err != nil {
		d.logger.Warn("preview edit not applied", "importer", d.importer.Name(), "error", err)
		return nil, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	out := &PreviewResult{
		Losses: diffLoss(d.snapshot(), res.Project),
		Report: res.Report,
	}
	if len(out.Losses) > 0 && !confirm {
		d.logger.Info("preview edit needs confirmation", "losses", len(out.Losses))
		return out, nil
	}
	d.load(res.Project)
	out.Applied = true
	d.logger.Info("preview edit applied", "importer", d.importer.Name(), "summary", res.Report.Summary(), "losses", len(out.Losses))
	return out, nil
}

// Load replaces the project with text regardless of what it loses.
func (d *Designer) Load(text []byte) (spec.ImportReport, error) {
	res, err := d.ApplyPreview(text, true)
	if err != nil {
		return spec.ImportReport{}, err
	}
	return res.Report, nil
}

func routeKey(e spec.Endpoint) string { return string(e.Method) + " " + e.Path }

// diffLoss lists what cur has that next does not. Endpoints are matched by
// route, schemas by name, servers by URL.
func diffLoss(cur, next *spec.Project) []Loss {
	losses := []Loss{}
	add := func(kind, target, item string) {
		losses = append(losses, Loss{Kind: kind, Target: target, Item: item})
	}

	for _, f := range []struct{ name, was, now string }{
		{"description", cur.Description, next.Description},
		{"termsOfService", cur.TermsOfService, next.TermsOfService},
		{"contact", contactText(cur.Contact), contactText(next.Contact)},
		{"license", cur.License.Name + cur.License.URL, next.License.Name + next.License.URL},
	} {
		if f.was != "" && f.now == "" {
			add(LossInfo, "info", f.name)
		}
	}

	urls := map[string]bool{}
	for _, s := range next.Servers {
		urls[s.URL] = true
	}
	for _, s := range cur.Servers {
		if s.URL != "" && !urls[s.URL] {
			add(LossServer, s.URL, "")
		}
	}

	routes := map[string]spec.Endpoint{}
	for _, e := range next.Endpoints {
		routes[routeKey(e)] = e
	}
	for _, e := range cur.Endpoints {
		target := routeKey(e)
		n, ok := routes[target]
		if !ok {
			add(LossEndpoint, target, "")
			continue
		}
		params := map[string]bool{}
		for _, p := range n.Parameters {
			params[p.In+":"+p.Name] = true
		}
		for _, p := range e.Parameters {
			if !params[p.In+":"+p.Name] {
				add(LossParameter, target, p.In+":"+p.Name)
			}
		}
		if e.RequestBody != nil {
			for mime := range e.RequestBody.Content {
				if n.RequestBody == nil {
					add(LossRequestBody, target, mime)
					continue
				}
				if _, ok := n.RequestBody.Content[mime]; !ok {
					add(LossRequestBody, target, mime)
				}
			}
		}
		for code := range e.Responses {
			if _, ok := n.Responses[code]; !ok {
				add(LossResponse, target, code)
			}
		}
	}

	schemas := map[string]spec.Schema{}
	for _, s := range next.Schemas {
		schemas[s.Name] = s
	}
	for _, s := range cur.Schemas {
		n, ok := schemas[s.Name]
		if !ok {
			add(LossSchema, s.Name, "")
			continue
		}
		for name := range s.Properties {
			if _, ok := n.Properties[name]; !ok {
				add(LossProperty, s.Name, name)
			}
		}
	}
	sortLosses(losses)
	return losses
}

func contactText(c spec.Contact) string { return c.Name + c.Email + c.URL }

func sortLosses(losses []Loss) {
	slices.SortStableFunc(losses, func(a, b Loss) int {
		if c := cmp.Compare(a.Kind, b.Kind); c != 0 {
			return c
		}
		if c := cmp.Compare(a.Target, b.Target); c != 0 {
			return c
		}
		return cmp.Compare(a.Item, b.Item)
	})
}
