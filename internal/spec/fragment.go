package spec

import (
	"sort"
	"strings"
)

// Fragment is an inline schema descriptor. It is kept as an open map so the
// editor can carry arbitrary keys; the exporter copies only AllowedKeys.
type Fragment map[string]any

// AllowedKeys is the set of schema keywords the exporter emits, in output order.
var AllowedKeys = []string{
	"type", "format", "description", "example", "deprecated",
	"minimum", "maximum", "exclusiveMinimum", "exclusiveMaximum",
	"minLength", "maxLength", "pattern", "enum", "multipleOf",
	"items", "properties", "$ref", "default",
}

// Type returns the fragment's type keyword, or "".
func (f Fragment) Type() string {
	s, _ := f["type"].(string)
	return s
}

// Ref returns the fragment's $ref keyword, or "".
func (f Fragment) Ref() string {
	s, _ := f["$ref"].(string)
	return s
}

// Properties returns nested property fragments keyed by name.
func (f Fragment) Properties() map[string]Fragment {
	return asFragmentMap(f["properties"])
}

// MarkedRequired reports whether the fragment carries required: true on itself.
func (f Fragment) MarkedRequired() bool {
	b, _ := f["required"].(bool)
	return b
}

// Clone returns a deep copy of f.
func (f Fragment) Clone() Fragment {
	if f == nil {
		return nil
	}
	out := make(Fragment, len(f))
	for k, v := range f {
		out[k] = cloneValue(v)
	}
	return out
}

// Sanitize returns the exported form of f: only allowed keys, nested items and
// properties sanitized, empty values dropped. A fragment left without type or
// $ref gets one (object with properties, array with items, string otherwise).
// It also reports whether the fragment was marked required on itself.
func (f Fragment) Sanitize() (Fragment, bool) {
	base := f
	// The editor may nest the shape under a "schema" key next to property metadata.
	if inner := asFragment(f["schema"]); inner != nil {
		base = make(Fragment, len(f)+len(inner))
		for k, v := range f {
			base[k] = v
		}
		for k, v := range inner {
			base[k] = v
		}
	}

	clean := make(Fragment, len(AllowedKeys))
	for _, k := range AllowedKeys {
		v, ok := base[k]
		if !ok || isEmptyValue(v) {
			continue
		}
		switch k {
		case "items":
			if nested := asFragment(v); nested != nil {
				v, _ = nested.Sanitize()
			}
		case "properties":
			if props := asFragmentMap(v); props != nil {
				cleaned := make(map[string]any, len(props))
				for name, p := range props {
					cleaned[name], _ = p.Sanitize()
				}
				v = cleaned
			}
		}
		clean[k] = v
	}

	if _, hasType := clean["type"]; !hasType {
		if _, hasRef := clean["$ref"]; !hasRef {
			switch {
			case clean["properties"] != nil:
				clean["type"] = "object"
			case clean["items"] != nil:
				clean["type"] = "array"
			default:
				clean["type"] = "string"
			}
		}
	}
	return clean, base.MarkedRequired()
}

// RequiredUnion returns declared followed by every discovered name not already
// present, without duplicates.
func RequiredUnion(declared []string, discovered []string) []string {
	seen := make(map[string]struct{}, len(declared)+len(discovered))
	out := make([]string, 0, len(declared)+len(discovered))
	for _, list := range [][]string{declared, discovered} {
		for _, name := range list {
			if _, dup := seen[name]; dup {
				continue
			}
			seen[name] = struct{}{}
			out = append(out, name)
		}
	}
	return out
}

func isEmptyValue(v any) bool {
	switch val := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(val) == ""
	}
	return false
}

func asFragment(v any) Fragment {
	switch m := v.(type) {
	case Fragment:
		return m
	case map[string]any:
		return Fragment(m)
	}
	return nil
}

func asFragmentMap(v any) map[string]Fragment {
	switch m := v.(type) {
	case map[string]Fragment:
		return m
	case map[string]any:
		out := make(map[string]Fragment, len(m))
		for k, item := range m {
			if f := asFragment(item); f != nil {
				out[k] = f
			} else {
				out[k] = Fragment{}
			}
		}
		return out
	}
	return nil
}

func cloneValue(v any) any {
	switch val := v.(type) {
	case Fragment:
		return val.Clone()
	case map[string]any:
		return map[string]any(Fragment(val).Clone())
	case map[string]Fragment:
		out := make(map[string]Fragment, len(val))
		for k, f := range val {
			out[k] = f.Clone()
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = cloneValue(item)
		}
		return out
	case []string:
		return append([]string(nil), val...)
	}
	return v
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
