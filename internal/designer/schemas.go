package designer

import (
	"slices"

	"github.com/platformcommons/apidesigner/internal/spec"
)

// SchemaPatch is a shallow partial update of a schema.
type SchemaPatch struct {
	Name                 *string                   `json:"name,omitempty"`
	Type                 *string                   `json:"type,omitempty" binding:"omitempty,oneof=string number integer boolean array object"`
	Description          *string                   `json:"description,omitempty"`
	Properties           *map[string]spec.Fragment `json:"properties,omitempty"`
	Required             *[]string                 `json:"required,omitempty"`
	Items                spec.Fragment             `json:"items,omitempty"`
	AdditionalProperties *bool                     `json:"additionalProperties,omitempty"`
}

// AddSchema stores a copy of s and returns its id.
func (d *Designer) AddSchema(s spec.Schema) string {
	d.mu.Lock()
	defer d.mu.Unlock()
	s = s.Clone()
	if s.Properties == nil {
		s.Properties = map[string]spec.Fragment{}
	}
	if s.Required == nil {
		s.Required = []string{}
	}
	return d.schemas.add(s)
}

// Schema returns a copy of the schema with id.
func (d *Designer) Schema(id string) (spec.Schema, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	s, ok := d.schemas.get(id)
	if !ok {
		return spec.Schema{}, false
	}
	return s.Clone(), true
}

// UpdateSchema merges patch into the schema with id.
func (d *Designer) UpdateSchema(id string, patch SchemaPatch) bool {
	return d.mutateSchema(id, func(s *spec.Schema) bool {
		if patch.Name != nil {
			s.Name = *patch.Name
		}
		if patch.Type != nil {
			s.Type = *patch.Type
		}
		if patch.Description != nil {
			s.Description = *patch.Description
		}
		if patch.Properties != nil {
			s.Properties = spec.Schema{Properties: *patch.Properties}.Clone().Properties
		}
		if patch.Required != nil {
			s.Required = append([]string{}, (*patch.Required)...)
		}
		if patch.Items != nil {
			s.Items = patch.Items.Clone()
		}
		if patch.AdditionalProperties != nil {
			v := *patch.AdditionalProperties
			s.AdditionalProperties = &v
		}
		return true
	})
}

// RemoveSchema deletes the schema with id. Unknown ids are ignored.
func (d *Designer) RemoveSchema(id string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.schemas.remove(id)
}

func (d *Designer) mutateSchema(id string, fn func(*spec.Schema) bool) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	s, ok := d.schemas.get(id)
	if !ok {
		return false
	}
	return fn(s)
}

// NewProperty returns the property the schema editor adds.
func NewProperty() spec.Fragment {
	return spec.Fragment{
		"type":        "string",
		"description": "",
		"required":    false,
		"format":      "",
		"validation":  map[string]any{},
	}
}

// AddProperty adds NewProperty() under the next free propertyN name and
// returns that name.
func (d *Designer) AddProperty(id string) (string, bool) {
	var name string
	ok := d.mutateSchema(id, func(s *spec.Schema) bool {
		if s.Properties == nil {
			s.Properties = map[string]spec.Fragment{}
		}
		name = nextName("property", s.Properties)
		s.Properties[name] = NewProperty()
		return true
	})
	return name, ok
}

// UpdateProperty stores f as property newName in place of oldName. A rename
// carries the property's entry in required along with it.
func (d *Designer) UpdateProperty(id, oldName, newName string, f spec.Fragment) bool {
	return d.mutateSchema(id, func(s *spec.Schema) bool {
		if newName == "" {
			return false
		}
		if _, ok := s.Properties[oldName]; !ok {
			return false
		}
		if _, taken := s.Properties[newName]; taken && newName != oldName {
			return false
		}
		delete(s.Properties, oldName)
		s.Properties[newName] = f.Clone()
		if newName != oldName {
			for i, r := range s.Required {
				if r == oldName {
					s.Required[i] = newName
				}
			}
			s.Required = spec.RequiredUnion(s.Required, nil)
		}
		return true
	})
}

// RemoveProperty drops property name and its required entry.
func (d *Designer) RemoveProperty(id, name string) bool {
	return d.mutateSchema(id, func(s *spec.Schema) bool {
		if _, ok := s.Properties[name]; !ok {
			return false
		}
		delete(s.Properties, name)
		s.Required = slices.DeleteFunc(s.Required, func(r string) bool { return r == name })
		return true
	})
}

// SetRequired adds name to or drops it from the schema's required list.
func (d *Designer) SetRequired(id, name string, required bool) bool {
	return d.mutateSchema(id, func(s *spec.Schema) bool {
		if _, ok := s.Properties[name]; !ok {
			return false
		}
		has := slices.Contains(s.Required, name)
		switch {
		case required && !has:
			s.Required = append(s.Required, name)
		case !required && has:
			s.Required = slices.DeleteFunc(s.Required, func(r string) bool { return r == name })
		}
		return true
	})
}
