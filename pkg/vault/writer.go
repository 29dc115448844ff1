package vault

import (
	"bytes"
	"fmt"
	"reflect"
	"regexp"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Encode renders a note back into text. Keys keep the order they were read
// in and unchanged values are written exactly as they were. New keys follow
// in sorted order.
func Encode(note *Note) (string, error) {
	if len(note.Frontmatter) == 0 {
		return "---\n---\n" + note.Body, nil
	}

	root := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	for _, key := range note.keys() {
		value := note.Frontmatter[key]
		if pair, ok := note.layout.lookup(key); ok && reflect.DeepEqual(pair.decoded, value) {
			root.Content = append(root.Content, pair.key, pair.value)
			continue
		}
		valueNode, err := encodeValue(value)
		if err != nil {
			return "", fmt.Errorf("failed to marshal frontmatter key %q: %w", key, err)
		}
		keyNode := &yaml.Node{Kind: yaml.ScalarNode, Tag: strTag, Value: key}
		if pair, ok := note.layout.lookup(key); ok {
			keyNode = pair.key
		}
		root.Content = append(root.Content, keyNode, valueNode)
	}

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(root); err != nil {
		return "", fmt.Errorf("failed to marshal frontmatter: %w", err)
	}
	if err := enc.Close(); err != nil {
		return "", fmt.Errorf("failed to marshal frontmatter: %w", err)
	}
	return fmt.Sprintf("---\n%s---\n%s", buf.String(), note.Body), nil
}

// encodeValue builds the node for a changed value. Strings that read as
// timestamps are written plain, the way they usually appear in notes.
func encodeValue(v interface{}) (*yaml.Node, error) {
	n := &yaml.Node{}
	if err := n.Encode(v); err != nil {
		return nil, err
	}
	if s, ok := v.(string); ok && n.Kind == yaml.ScalarNode && isTimestamp(s) {
		n.Tag = timestampTag
		n.Style = 0
	}
	return n, nil
}

func isTimestamp(s string) bool {
	if s == "" || strings.ContainsRune(s, '\n') {
		return false
	}
	var doc yaml.Node
	if err := yaml.Unmarshal([]byte(s), &doc); err != nil || len(doc.Content) == 0 {
		return false
	}
	n := doc.Content[0]
	return n.Kind == yaml.ScalarNode && n.Style == 0 && n.ShortTag() == timestampTag && n.Value == s
}

// keys lists the frontmatter keys in write order.
func (n *Note) keys() []string {
	out := make([]string, 0, len(n.Frontmatter))
	seen := make(map[string]bool, len(n.Frontmatter))
	if n.layout != nil {
		for _, k := range n.layout.keys {
			if _, ok := n.Frontmatter[k]; ok {
				out = append(out, k)
				seen[k] = true
			}
		}
	}
	var added []string
	for k := range n.Frontmatter {
		if !seen[k] {
			added = append(added, k)
		}
	}
	sort.Strings(added)
	return append(out, added...)
}

// WriteNote encodes a note and overwrites it in storage.
func WriteNote(store Storage, note *Note) error {
	content, err := Encode(note)
	if err != nil {
		return err
	}
	return store.Write(note.Path, content)
}

var (
	invalidFilenameRe = regexp.MustCompile(`[<>:"/\\|?*\x00-\x1F]`)
	spacesRe          = regexp.MustCompile(`\s+`)
)

// SanitizeFilename replaces characters invalid in filenames with a hyphen
// and collapses whitespace.
func SanitizeFilename(name string) string {
	name = invalidFilenameRe.ReplaceAllString(name, "-")
	return strings.TrimSpace(spacesRe.ReplaceAllString(name, " "))
}
