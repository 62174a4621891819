// Package caseconfig holds the structured description of a solver case. A
// Document is loaded from a YAML template and modified only through key-path
// operations that check the path against the template before mutating it.
package caseconfig

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Override assigns Value at Path.
type Override struct {
	Path  KeyPath
	Value any
}

// Document is a case description backed by a YAML node tree.
type Document struct {
	root *yaml.Node
}

// Parse decodes a YAML template. The top level must be a mapping.
func Parse(data []byte) (*Document, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse template: %w", err)
	}
	if doc.Kind != yaml.DocumentNode || len(doc.Content) == 0 {
		return nil, fmt.Errorf("template is empty")
	}
	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("template root must be a mapping, got %s", kindName(root.Kind))
	}
	return &Document{root: root}, nil
}

// LoadFile reads and parses a YAML template from disk.
func LoadFile(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read template %s: %w", path, err)
	}
	d, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return d, nil
}

// Clone returns a deep copy. Anchors and aliases inside the copy point at
// copied nodes, never back into the original tree.
func (d *Document) Clone() *Document {
	seen := make(map[*yaml.Node]*yaml.Node)
	return &Document{root: cloneNode(d.root, seen)}
}

func cloneNode(n *yaml.Node, seen map[*yaml.Node]*yaml.Node) *yaml.Node {
	if n == nil {
		return nil
	}
	if c, ok := seen[n]; ok {
		return c
	}
	c := *n
	seen[n] = &c
	if len(n.Content) > 0 {
		c.Content = make([]*yaml.Node, len(n.Content))
		for i, child := range n.Content {
			c.Content[i] = cloneNode(child, seen)
		}
	}
	c.Alias = cloneNode(n.Alias, seen)
	return &c
}

// Validate checks that path exists in the document without touching it.
func (d *Document) Validate(path KeyPath) error {
	_, err := d.lookup(path)
	return err
}

// Get decodes the value at path into a generic Go value.
func (d *Document) Get(path KeyPath) (any, error) {
	n, err := d.lookup(path)
	if err != nil {
		return nil, err
	}
	var v any
	if err := n.Decode(&v); err != nil {
		return nil, &ConfigurationError{Path: path, Err: err}
	}
	return v, nil
}

// Set replaces the value at path. The path must already exist: the template
// is the schema, and overrides never introduce new keys.
func (d *Document) Set(path KeyPath, value any) error {
	target, err := d.lookup(path)
	if err != nil {
		return err
	}
	var replacement yaml.Node
	if err := replacement.Encode(value); err != nil {
		return &ConfigurationError{Path: path, Err: fmt.Errorf("cannot encode %T: %w", value, err)}
	}
	replacement.HeadComment = target.HeadComment
	replacement.LineComment = target.LineComment
	replacement.FootComment = target.FootComment
	replacement.Anchor = target.Anchor
	*target = replacement
	return nil
}

// Apply sets every override in order and stops at the first failure.
func (d *Document) Apply(overrides ...Override) error {
	for _, o := range overrides {
		if err := d.Set(o.Path, o.Value); err != nil {
			return err
		}
	}
	return nil
}

// Marshal renders the document as YAML.
func (d *Document) Marshal() ([]byte, error) {
	return yaml.Marshal(d.root)
}

func (d *Document) lookup(path KeyPath) (*yaml.Node, error) {
	if len(path) == 0 {
		return nil, &ConfigurationError{Path: path, Err: fmt.Errorf("key path is empty")}
	}
	cur := d.root
	for i, seg := range path {
		cur = resolve(cur)
		next, err := child(cur, seg)
		if err != nil {
			return nil, &ConfigurationError{Path: path, Err: fmt.Errorf("%s: %w", path[:i+1], err)}
		}
		cur = next
	}
	return resolve(cur), nil
}

func resolve(n *yaml.Node) *yaml.Node {
	for n.Kind == yaml.AliasNode && n.Alias != nil {
		n = n.Alias
	}
	return n
}

func child(n *yaml.Node, seg Segment) (*yaml.Node, error) {
	switch n.Kind {
	case yaml.MappingNode:
		if seg.IsIndex {
			return lookupKey(n, strconv.Itoa(seg.Index))
		}
		return lookupKey(n, seg.Key)
	case yaml.SequenceNode:
		if !seg.IsIndex {
			return nil, fmt.Errorf("sequence needs an index, got key %q: %w", seg.Key, ErrPathNotFound)
		}
		if seg.Index < 0 || seg.Index >= len(n.Content) {
			return nil, fmt.Errorf("index %d out of range (len %d): %w", seg.Index, len(n.Content), ErrPathNotFound)
		}
		return n.Content[seg.Index], nil
	default:
		return nil, fmt.Errorf("%s: %w", kindName(n.Kind), ErrNotContainer)
	}
}

func lookupKey(n *yaml.Node, key string) (*yaml.Node, error) {
	for i := 0; i+1 < len(n.Content); i += 2 {
		if n.Content[i].Value == key {
			return n.Content[i+1], nil
		}
	}
	return nil, fmt.Errorf("key %q: %w", key, ErrPathNotFound)
}

func kindName(k yaml.Kind) string {
	switch k {
	case yaml.DocumentNode:
		return "document"
	case yaml.SequenceNode:
		return "sequence"
	case yaml.MappingNode:
		return "mapping"
	case yaml.ScalarNode:
		return "scalar"
	case yaml.AliasNode:
		return "alias"
	default:
		return "unknown"
	}
}
