package config

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// Document is a parsed configuration document. It keeps the yaml.v3 node
// tree instead of decoding into Go maps so that sync points can be walked
// in the order they were declared.
type Document struct {
	// options is the value node of the top-level "options" key, or nil.
	options *yaml.Node

	// syncs is the value node of the top-level "syncs" key, or nil.
	syncs *yaml.Node

	// hasSyncs records whether a "syncs" key exists at all, even with a
	// null value.
	hasSyncs bool
}

// syncEntry is one named sync point inside the "syncs" mapping.
type syncEntry struct {
	name string
	node *yaml.Node
}

// Parse decodes YAML (or plain JSON, which is valid YAML) into a Document.
// An empty input produces a Document without a syncs section; validation
// reports that case.
func Parse(data []byte) (*Document, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}

	doc := &Document{}

	// An empty document unmarshals into a zero node.
	if root.Kind == 0 {
		return doc, nil
	}

	top := resolve(&root)
	if top.Kind == yaml.DocumentNode {
		if len(top.Content) == 0 {
			return doc, nil
		}
		top = resolve(top.Content[0])
	}
	if top.Kind == yaml.ScalarNode && top.Tag == "!!null" {
		return doc, nil
	}
	if top.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("configuration must be a mapping, got %s", kindName(top))
	}

	for _, kv := range mappingEntries(top) {
		switch kv.key {
		case "options":
			doc.options = kv.value
		case "syncs":
			doc.syncs = kv.value
			doc.hasSyncs = true
		}
	}

	return doc, nil
}

// HasSyncs reports whether the document declares a "syncs" key.
func (d *Document) HasSyncs() bool {
	return d.hasSyncs
}

// syncEntries returns the sync points in declaration order. It returns nil
// when the syncs section is missing or is not a mapping.
func (d *Document) syncEntries() []syncEntry {
	if d.syncs == nil || d.syncs.Kind != yaml.MappingNode {
		return nil
	}
	kvs := mappingEntries(d.syncs)
	entries := make([]syncEntry, 0, len(kvs))
	for _, kv := range kvs {
		entries = append(entries, syncEntry{name: kv.key, node: kv.value})
	}
	return entries
}

// keyValue is a single key/value pair of a YAML mapping node.
type keyValue struct {
	key   string
	value *yaml.Node
}

// mappingEntries flattens a mapping node into ordered key/value pairs.
// Aliases are resolved and "<<" merge keys are expanded; keys written
// explicitly take precedence over merged ones, and a later duplicate
// replaces an earlier one in place.
func mappingEntries(node *yaml.Node) []keyValue {
	node = resolve(node)
	if node == nil || node.Kind != yaml.MappingNode {
		return nil
	}

	var (
		explicit []keyValue
		merged   []keyValue
	)
	for i := 0; i+1 < len(node.Content); i += 2 {
		key, value := node.Content[i], resolve(node.Content[i+1])
		if key.Value == "<<" && key.Tag == "!!merge" {
			merged = append(merged, mergeSources(value)...)
			continue
		}
		explicit = upsert(explicit, keyValue{key: key.Value, value: value})
	}

	result := make([]keyValue, 0, len(explicit)+len(merged))
	seen := make(map[string]bool, len(explicit))
	for _, kv := range explicit {
		seen[kv.key] = true
	}
	for _, kv := range merged {
		if seen[kv.key] {
			continue
		}
		seen[kv.key] = true
		result = append(result, kv)
	}
	return append(result, explicit...)
}

// mergeSources expands the value of a "<<" key, which is either a single
// mapping or a sequence of mappings (earlier ones win).
func mergeSources(value *yaml.Node) []keyValue {
	switch value.Kind {
	case yaml.MappingNode:
		return mappingEntries(value)
	case yaml.SequenceNode:
		var out []keyValue
		for _, item := range value.Content {
			for _, kv := range mappingEntries(item) {
				if lookupKey(out, kv.key) == nil {
					out = append(out, kv)
				}
			}
		}
		return out
	default:
		return nil
	}
}

func upsert(list []keyValue, kv keyValue) []keyValue {
	for i := range list {
		if list[i].key == kv.key {
			list[i].value = kv.value
			return list
		}
	}
	return append(list, kv)
}

func lookupKey(list []keyValue, key string) *yaml.Node {
	for _, kv := range list {
		if kv.key == key {
			return kv.value
		}
	}
	return nil
}

// lookup returns the value node of key in a mapping node, or nil.
func lookup(node *yaml.Node, key string) *yaml.Node {
	return lookupKey(mappingEntries(node), key)
}

// resolve follows alias nodes to the node they point at.
func resolve(node *yaml.Node) *yaml.Node {
	for node != nil && node.Kind == yaml.AliasNode {
		node = node.Alias
	}
	return node
}

// isBlank reports whether a value node is null or an empty scalar.
func isBlank(node *yaml.Node) bool {
	node = resolve(node)
	if node == nil {
		return true
	}
	if node.Kind != yaml.ScalarNode {
		return false
	}
	return node.Tag == "!!null" || node.Value == ""
}

func kindName(node *yaml.Node) string {
	switch node.Kind {
	case yaml.SequenceNode:
		return "sequence"
	case yaml.ScalarNode:
		return "scalar"
	case yaml.MappingNode:
		return "mapping"
	default:
		return "unknown node"
	}
}
