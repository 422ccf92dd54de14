package spec

import (
	"strings"

	"gopkg.in/yaml.v3"
)

// preprocessV2ForCompatibility rewrites non-compliant Swagger v2 operations so
// kin-openapi can convert them to v3:
//   - several body parameters are merged into a single body parameter whose
//     schema is an object with one property per original parameter;
//   - body parameters mixed with formData parameters become formData, and the
//     operation consumes multipart/form-data.
//
// The document is edited as a node tree so untouched content keeps its order.
// On error, the original bytes are returned with modified=false.
func preprocessV2ForCompatibility(data []byte) ([]byte, bool, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return data, false, err
	}
	if doc.Kind != yaml.DocumentNode || len(doc.Content) == 0 {
		return data, false, nil
	}
	paths := lookup(doc.Content[0], "paths")
	if paths == nil || paths.Kind != yaml.MappingNode {
		return data, false, nil
	}

	modified := false
	for i := 1; i < len(paths.Content); i += 2 {
		item := paths.Content[i]
		if item.Kind != yaml.MappingNode {
			continue
		}
		for j := 0; j+1 < len(item.Content); j += 2 {
			switch strings.ToLower(item.Content[j].Value) {
			case "get", "post", "put", "delete", "patch", "options", "head":
			default:
				continue
			}
			if fixV2Operation(item.Content[j+1]) {
				modified = true
			}
		}
	}

	if !modified {
		return data, false, nil
	}
	out, err := yaml.Marshal(&doc)
	if err != nil {
		return data, false, err
	}
	return out, true, nil
}

func fixV2Operation(op *yaml.Node) bool {
	params := lookup(op, "parameters")
	if params == nil || params.Kind != yaml.SequenceNode {
		return false
	}
	bodies := 0
	hasFormData := false
	for _, p := range params.Content {
		switch in := scalar(p, "in"); {
		case strings.EqualFold(in, "body"):
			bodies++
		case strings.EqualFold(in, "formData"):
			hasFormData = true
		}
	}

	switch {
	case bodies == 0:
		return false
	case hasFormData:
		for i, p := range params.Content {
			if strings.EqualFold(scalar(p, "in"), "body") {
				params.Content[i] = formDataFromBodyParam(p)
			}
		}
		ensureConsumes(op, "multipart/form-data")
		return true
	case bodies > 1:
		props := newMapping()
		required := newSequence()
		rest := make([]*yaml.Node, 0, len(params.Content))
		for _, p := range params.Content {
			if !strings.EqualFold(scalar(p, "in"), "body") {
				rest = append(rest, p)
				continue
			}
			name := scalar(p, "name")
			if name == "" {
				name = "field"
			}
			schema := schemaFromParam(p)
			if schema == nil {
				schema = newMapping()
				put(schema, "type", plainStr("string"))
			}
			put(props, name, schema)
			if boolean(p, "required") {
				required.Content = append(required.Content, plainStr(name))
			}
		}
		bodySchema := newMapping()
		put(bodySchema, "type", plainStr("object"))
		put(bodySchema, "properties", props)
		if len(required.Content) > 0 {
			put(bodySchema, "required", required)
		}
		merged := newMapping()
		put(merged, "in", plainStr("body"))
		put(merged, "name", plainStr("body"))
		put(merged, "schema", bodySchema)
		params.Content = append([]*yaml.Node{merged}, rest...)
		return true
	}
	return false
}

func ensureConsumes(op *yaml.Node, mime string) {
	consumes := lookup(op, "consumes")
	if consumes == nil || consumes.Kind != yaml.SequenceNode {
		consumes = newSequence()
		put(op, "consumes", consumes)
	}
	for _, c := range consumes.Content {
		if c.Value == mime {
			return
		}
	}
	consumes.Content = append(consumes.Content, plainStr(mime))
}

// schemaFromParam returns the parameter's schema, or one synthesized from its
// type, items and format.
func schemaFromParam(p *yaml.Node) *yaml.Node {
	if sch := lookup(p, "schema"); sch != nil && sch.Kind == yaml.MappingNode {
		return sch
	}
	t := scalar(p, "type")
	if t == "" {
		return nil
	}
	m := newMapping()
	put(m, "type", plainStr(t))
	if it := lookup(p, "items"); it != nil && it.Kind == yaml.MappingNode {
		put(m, "items", it)
	}
	if f := scalar(p, "format"); f != "" {
		put(m, "format", plainStr(f))
	}
	return m
}

func formDataFromBodyParam(p *yaml.Node) *yaml.Node {
	name := scalar(p, "name")
	if name == "" {
		name = "field"
	}
	out := newMapping()
	put(out, "in", plainStr("formData"))
	put(out, "name", plainStr(name))
	if desc := scalar(p, "description"); desc != "" {
		put(out, "description", plainStr(desc))
	}
	if req := lookup(p, "required"); req != nil {
		put(out, "required", boolNode(req.Value == "true"))
	}

	// Derive a formData-compatible type; fall back to string.
	var typ, format string
	var items *yaml.Node
	if sch := lookup(p, "schema"); sch != nil {
		typ = scalar(sch, "type")
		format = scalar(sch, "format")
		items = lookup(sch, "items")
		if typ == "" && lookup(sch, "$ref") != nil {
			// A referenced object cannot be sent as a form field.
			typ = "string"
		}
	}
	if typ == "" {
		typ = scalar(p, "type")
		format = scalar(p, "format")
		items = lookup(p, "items")
	}
	if typ == "" {
		typ = "string"
	}
	put(out, "type", plainStr(typ))
	if items != nil && items.Kind == yaml.MappingNode {
		put(out, "items", items)
	}
	if format != "" {
		put(out, "format", plainStr(format))
	}
	return out
}

func plainStr(s string) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: s}
}
