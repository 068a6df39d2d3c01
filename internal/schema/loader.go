package schema

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/opensovd/mddc/internal/model"
)

// LoadResult carries the two views of a parsed document: the raw tree
// (the variant resolver's merge substrate) and the typed model. When
// Structural is non-empty, Document is nil and compilation must stop.
type LoadResult struct {
	Document   *model.Document
	Tree       map[string]any
	Structural []*StructuralError
}

// Load reads, structurally validates, and binds a document file.
func Load(path string) (*LoadResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading document: %w", err)
	}
	return Parse(data)
}

// Parse validates and binds document bytes.
func Parse(data []byte) (*LoadResult, error) {
	tree, err := DecodeTree(data)
	if err != nil {
		return nil, fmt.Errorf("parsing document: %w", err)
	}

	if structural := Validate(tree); len(structural) > 0 {
		return &LoadResult{Tree: tree, Structural: structural}, nil
	}

	doc, err := BindDocument(tree)
	if err != nil {
		return nil, err
	}
	return &LoadResult{Document: doc, Tree: tree}, nil
}

// DecodeTree parses YAML into a string-keyed tree. Mapping keys keep
// their literal spelling ("0xF190" stays "0xF190", not 61840) so hex
// catalog keys survive the round trip through variant merging.
func DecodeTree(data []byte) (map[string]any, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, err
	}
	if len(root.Content) == 0 {
		return nil, fmt.Errorf("empty document")
	}
	tree, err := nodeToTree(root.Content[0])
	if err != nil {
		return nil, err
	}
	m, ok := tree.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("document root must be a mapping")
	}
	return m, nil
}

func nodeToTree(node *yaml.Node) (any, error) {
	switch node.Kind {
	case yaml.MappingNode:
		m := make(map[string]any, len(node.Content)/2)
		for i := 0; i+1 < len(node.Content); i += 2 {
			key := node.Content[i].Value
			val, err := nodeToTree(node.Content[i+1])
			if err != nil {
				return nil, err
			}
			if _, dup := m[key]; dup {
				return nil, fmt.Errorf("line %d: duplicate key %q", node.Content[i].Line, key)
			}
			m[key] = val
		}
		return m, nil
	case yaml.SequenceNode:
		seq := make([]any, 0, len(node.Content))
		for _, item := range node.Content {
			v, err := nodeToTree(item)
			if err != nil {
				return nil, err
			}
			seq = append(seq, v)
		}
		return seq, nil
	case yaml.ScalarNode:
		var v any
		if err := node.Decode(&v); err != nil {
			return nil, err
		}
		return v, nil
	case yaml.AliasNode:
		return nodeToTree(node.Alias)
	default:
		return nil, fmt.Errorf("line %d: unsupported node kind", node.Line)
	}
}

// BindDocument converts a (structurally valid) raw tree into the typed
// model. Effective documents produced by the variant resolver re-enter
// the pipeline through this same binding.
func BindDocument(tree map[string]any) (*model.Document, error) {
	encoded, err := yaml.Marshal(tree)
	if err != nil {
		return nil, fmt.Errorf("encoding document tree: %w", err)
	}
	var doc model.Document
	if err := yaml.Unmarshal(encoded, &doc); err != nil {
		return nil, fmt.Errorf("binding document: %w", err)
	}
	if doc.Schema != model.SchemaVersion {
		return nil, fmt.Errorf("unsupported schema %q", doc.Schema)
	}
	return &doc, nil
}
