package spec

import (
	"strconv"

	"gopkg.in/yaml.v3"
)

// downgradeV31Keywords rewrites OpenAPI 3.1 constructs the 3.0 validator
// rejects, so exported documents can be checked by kin-openapi:
//   - the root jsonSchemaDialect keyword is removed;
//   - numeric exclusiveMinimum/exclusiveMaximum become minimum/maximum plus
//     the 3.0 boolean flag.
//
// It returns the original bytes with modified=false when nothing changed.
func downgradeV31Keywords(data []byte) ([]byte, bool, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return data, false, err
	}
	if doc.Kind != yaml.DocumentNode || len(doc.Content) == 0 {
		return data, false, nil
	}
	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return data, false, nil
	}
	modified := removeKey(root, "jsonSchemaDialect")
	if rewriteExclusiveBounds(root) {
		modified = true
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

func removeKey(m *yaml.Node, key string) bool {
	for i := 0; i+1 < len(m.Content); i += 2 {
		if m.Content[i].Value == key {
			m.Content = append(m.Content[:i], m.Content[i+2:]...)
			return true
		}
	}
	return false
}

func rewriteExclusiveBounds(n *yaml.Node) bool {
	changed := false
	switch n.Kind {
	case yaml.MappingNode:
		for _, pair := range [][2]string{{"exclusiveMinimum", "minimum"}, {"exclusiveMaximum", "maximum"}} {
			v := lookup(n, pair[0])
			if v == nil || v.Kind != yaml.ScalarNode || !isNumberNode(v) {
				continue
			}
			bound := &yaml.Node{Kind: yaml.ScalarNode, Tag: v.Tag, Value: v.Value}
			put(n, pair[1], bound)
			put(n, pair[0], boolNode(true))
			changed = true
		}
		for i := 1; i < len(n.Content); i += 2 {
			if rewriteExclusiveBounds(n.Content[i]) {
				changed = true
			}
		}
	case yaml.SequenceNode:
		for _, item := range n.Content {
			if rewriteExclusiveBounds(item) {
				changed = true
			}
		}
	}
	return changed
}

func isNumberNode(n *yaml.Node) bool {
	switch n.ShortTag() {
	case "!!int", "!!float":
		return true
	case "!!str":
		return false
	}
	_, err := strconv.ParseFloat(n.Value, 64)
	return err == nil
}
