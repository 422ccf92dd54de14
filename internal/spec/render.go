package spec

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"sort"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Format selects the text encoding of an exported document.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
)

// ParseFormat maps a user supplied format name to a Format.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "yaml", "yml":
		return FormatYAML, nil
	case "json":
		return FormatJSON, nil
	default:
		return "", &SpecError{Code: InputError, Message: fmt.Sprintf("spec: unsupported format %q (allowed: yaml, json)", s)}
	}
}

// ContentType returns the MIME type used when serving a document in f.
func (f Format) ContentType() string {
	if f == FormatJSON {
		return "application/json"
	}
	return "text/yaml"
}

// Render serializes a document tree built by BuildDocument.
func Render(doc *yaml.Node, format Format) ([]byte, error) {
	if doc == nil {
		return nil, fmt.Errorf("render: nil document")
	}
	switch format {
	case FormatJSON:
		var compact bytes.Buffer
		if err := writeJSON(&compact, doc); err != nil {
			return nil, fmt.Errorf("render json: %w", err)
		}
		var out bytes.Buffer
		if err := json.Indent(&out, compact.Bytes(), "", "  "); err != nil {
			return nil, fmt.Errorf("render json: %w", err)
		}
		return out.Bytes(), nil
	case FormatYAML, "":
		var buf bytes.Buffer
		enc := yaml.NewEncoder(&buf)
		enc.SetIndent(2)
		if err := enc.Encode(doc); err != nil {
			return nil, fmt.Errorf("render yaml: %w", err)
		}
		if err := enc.Close(); err != nil {
			return nil, fmt.Errorf("render yaml: %w", err)
		}
		return buf.Bytes(), nil
	default:
		return nil, fmt.Errorf("render: unsupported format %q", format)
	}
}

func writeJSON(buf *bytes.Buffer, n *yaml.Node) error {
	switch n.Kind {
	case yaml.DocumentNode:
		if len(n.Content) == 0 {
			buf.WriteString("null")
			return nil
		}
		return writeJSON(buf, n.Content[0])
	case yaml.MappingNode:
		buf.WriteByte('{')
		for i := 0; i+1 < len(n.Content); i += 2 {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := writeJSONString(buf, n.Content[i].Value); err != nil {
				return err
			}
			buf.WriteByte(':')
			if err := writeJSON(buf, n.Content[i+1]); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
	case yaml.SequenceNode:
		buf.WriteByte('[')
		for i, item := range n.Content {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := writeJSON(buf, item); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	case yaml.ScalarNode:
		switch n.Tag {
		case "!!int", "!!float", "!!bool":
			buf.WriteString(n.Value)
		case "!!null":
			buf.WriteString("null")
		default:
			return writeJSONString(buf, n.Value)
		}
	default:
		return fmt.Errorf("unsupported node kind %d", n.Kind)
	}
	return nil
}

func writeJSONString(buf *bytes.Buffer, s string) error {
	var tmp bytes.Buffer
	enc := json.NewEncoder(&tmp)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(s); err != nil {
		return err
	}
	buf.Write(bytes.TrimRight(tmp.Bytes(), "\n"))
	return nil
}

// Node construction helpers. A nil *yaml.Node means "absent" and is never emitted.

func newMapping() *yaml.Node {
	return &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
}

func newSequence() *yaml.Node {
	return &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq"}
}

func keyNode(k string) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: k}
}

func strNode(s string) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: s, Style: yaml.DoubleQuotedStyle}
}

func boolNode(b bool) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!bool", Value: strconv.FormatBool(b)}
}

func floatNode(f float64) *yaml.Node {
	if f == math.Trunc(f) && math.Abs(f) < 1e15 {
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!int", Value: strconv.FormatInt(int64(f), 10)}
	}
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!float", Value: strconv.FormatFloat(f, 'g', -1, 64)}
}

func nullNode() *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!null", Value: "null"}
}

// put appends key: val to m, replacing the value in place when key already
// exists. A nil val is skipped.
func put(m *yaml.Node, key string, val *yaml.Node) {
	if val == nil {
		return
	}
	for i := 0; i+1 < len(m.Content); i += 2 {
		if m.Content[i].Value == key {
			m.Content[i+1] = val
			return
		}
	}
	m.Content = append(m.Content, keyNode(key), val)
}

// lookup returns the value stored under key in mapping m.
func lookup(m *yaml.Node, key string) *yaml.Node {
	if m == nil || m.Kind != yaml.MappingNode {
		return nil
	}
	for i := 0; i+1 < len(m.Content); i += 2 {
		if m.Content[i].Value == key {
			return m.Content[i+1]
		}
	}
	return nil
}

// flowIfEmpty renders empty collections inline ([] and {}).
func flowIfEmpty(n *yaml.Node) *yaml.Node {
	if n != nil && len(n.Content) == 0 {
		n.Style = yaml.FlowStyle
	}
	return n
}

// valueNode converts an arbitrary model value into a node. nil yields nil.
func valueNode(v any) *yaml.Node {
	switch val := v.(type) {
	case nil:
		return nil
	case *yaml.Node:
		return val
	case string:
		return strNode(val)
	case bool:
		return boolNode(val)
	case int:
		return floatNode(float64(val))
	case int64:
		return floatNode(float64(val))
	case float64:
		return floatNode(val)
	case json.Number:
		f, err := val.Float64()
		if err != nil {
			return strNode(val.String())
		}
		return floatNode(f)
	case Fragment:
		return fragmentNode(val)
	case map[string]Fragment:
		m := newMapping()
		for _, k := range sortedKeys(val) {
			put(m, k, fragmentNode(val[k]))
		}
		return flowIfEmpty(m)
	case map[string]any:
		m := newMapping()
		for _, k := range sortedKeys(val) {
			put(m, k, valueNode(val[k]))
		}
		return flowIfEmpty(m)
	case []any:
		s := newSequence()
		for _, item := range val {
			n := valueNode(item)
			if n == nil {
				n = nullNode()
			}
			s.Content = append(s.Content, n)
		}
		return flowIfEmpty(s)
	case []string:
		s := newSequence()
		for _, item := range val {
			s.Content = append(s.Content, strNode(item))
		}
		return flowIfEmpty(s)
	}
	return reflectNode(reflect.ValueOf(v))
}

func reflectNode(rv reflect.Value) *yaml.Node {
	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface:
		if rv.IsNil() {
			return nil
		}
		return valueNode(rv.Elem().Interface())
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return floatNode(float64(rv.Int()))
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return floatNode(float64(rv.Uint()))
	case reflect.Float32, reflect.Float64:
		return floatNode(rv.Float())
	case reflect.Slice, reflect.Array:
		s := newSequence()
		for i := 0; i < rv.Len(); i++ {
			n := valueNode(rv.Index(i).Interface())
			if n == nil {
				n = nullNode()
			}
			s.Content = append(s.Content, n)
		}
		return flowIfEmpty(s)
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			break
		}
		keys := make([]string, 0, rv.Len())
		for _, k := range rv.MapKeys() {
			keys = append(keys, k.String())
		}
		sort.Strings(keys)
		m := newMapping()
		for _, k := range keys {
			put(m, k, valueNode(rv.MapIndex(reflect.ValueOf(k).Convert(rv.Type().Key())).Interface()))
		}
		return flowIfEmpty(m)
	}
	return strNode(fmt.Sprint(rv.Interface()))
}

// fragmentNode emits schema keywords in AllowedKeys order, then any others sorted.
func fragmentNode(f Fragment) *yaml.Node {
	m := newMapping()
	seen := make(map[string]struct{}, len(AllowedKeys))
	for _, k := range AllowedKeys {
		seen[k] = struct{}{}
		if v, ok := f[k]; ok {
			put(m, k, valueNode(v))
		}
	}
	for _, k := range sortedKeys(f) {
		if _, done := seen[k]; done {
			continue
		}
		put(m, k, valueNode(f[k]))
	}
	return flowIfEmpty(m)
}
