package vault

import (
	"fmt"
	"regexp"

	"gopkg.in/yaml.v3"
)

var frontmatterRe = regexp.MustCompile(`(?s)\A---\r?\n(?:(.*?)\r?\n)?---(?:\r?\n(.*))?\z`)

const (
	strTag       = "!!str"
	timestampTag = "!!timestamp"
)

// Decode splits a note into its frontmatter and body. Text without a
// frontmatter block decodes to an empty map and the whole text as body.
// Timestamps are kept as the strings they were written as.
func Decode(text string) (*Note, error) {
	m := frontmatterRe.FindStringSubmatch(text)
	if m == nil {
		return &Note{Frontmatter: Frontmatter{}, Body: text}, nil
	}

	note := &Note{Frontmatter: Frontmatter{}, Body: m[2]}
	if len(m[1]) == 0 {
		return note, nil
	}

	var doc yaml.Node
	if err := yaml.Unmarshal([]byte(m[1]), &doc); err != nil {
		return nil, fmt.Errorf("failed to parse frontmatter: %w", err)
	}
	if len(doc.Content) == 0 {
		return note, nil
	}
	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("failed to parse frontmatter: expected a mapping, got %s", root.ShortTag())
	}

	retagged := keepTimestamps(root, nil)
	defer func() {
		for _, n := range retagged {
			n.Tag = timestampTag
		}
	}()

	src := &layout{nodes: make(map[string]nodePair, len(root.Content)/2)}
	for i := 0; i+1 < len(root.Content); i += 2 {
		keyNode, valueNode := root.Content[i], root.Content[i+1]
		var value interface{}
		if err := valueNode.Decode(&value); err != nil {
			return nil, fmt.Errorf("failed to parse frontmatter key %q: %w", keyNode.Value, err)
		}
		key := keyNode.Value
		if _, dup := src.nodes[key]; !dup {
			src.keys = append(src.keys, key)
		}
		src.nodes[key] = nodePair{key: keyNode, value: valueNode, decoded: cloneValue(value)}
		note.Frontmatter[key] = value
	}
	note.layout = src
	return note, nil
}

// keepTimestamps retags timestamp scalars as strings so they decode to the
// text the user wrote. The caller restores the returned nodes afterwards so
// they are emitted unquoted again.
func keepTimestamps(n *yaml.Node, acc []*yaml.Node) []*yaml.Node {
	if n.Kind == yaml.ScalarNode && n.ShortTag() == timestampTag {
		n.Tag = strTag
		return append(acc, n)
	}
	for _, c := range n.Content {
		acc = keepTimestamps(c, acc)
	}
	return acc
}

// ReadNote reads a note from storage and decodes it.
func ReadNote(store Storage, path string) (*Note, error) {
	text, err := store.Read(path)
	if err != nil {
		return nil, err
	}
	note, err := Decode(text)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	note.Path = path
	return note, nil
}
