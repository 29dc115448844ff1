package vault

import (
	"math"

	"gopkg.in/yaml.v3"
)

// Frontmatter is the YAML header of a note, keyed by field name. A missing
// key reads as the zero value and is never an error.
type Frontmatter map[string]interface{}

// Note is a decoded markdown note.
type Note struct {
	Path        string
	Frontmatter Frontmatter
	Body        string // The markdown content after frontmatter

	layout *layout
}

// Derive returns a note at path that shares n's frontmatter layout, so the
// keys it has in common with n are written in the same order and style.
func (n *Note) Derive(path string, fm Frontmatter, body string) *Note {
	return &Note{Path: path, Frontmatter: fm, Body: body, layout: n.layout}
}

// layout remembers how the frontmatter was written: key order and the
// source nodes with the values they decoded to.
type layout struct {
	keys  []string
	nodes map[string]nodePair
}

type nodePair struct {
	key, value *yaml.Node
	decoded    interface{}
}

func (l *layout) lookup(key string) (nodePair, bool) {
	if l == nil {
		return nodePair{}, false
	}
	p, ok := l.nodes[key]
	return p, ok
}

// Bool reports whether key holds exactly the boolean true. Strings such as
// "true" and numbers do not count.
func (fm Frontmatter) Bool(key string) bool {
	v, ok := fm[key].(bool)
	return ok && v
}

// String returns the value of key if it is a string.
func (fm Frontmatter) String(key string) (string, bool) {
	s, ok := fm[key].(string)
	return s, ok
}

// Truthy reports whether key holds a value JavaScript would treat as true:
// a non-empty string, a non-zero number, true, or any collection.
func (fm Frontmatter) Truthy(key string) bool {
	switch v := fm[key].(type) {
	case nil:
		return false
	case bool:
		return v
	case string:
		return v != ""
	case int:
		return v != 0
	case int64:
		return v != 0
	case uint64:
		return v != 0
	case float64:
		return v != 0 && !math.IsNaN(v)
	default:
		return true
	}
}

// Clone returns a deep copy. Nested maps and slices are copied so the clone
// can be changed without touching fm.
func (fm Frontmatter) Clone() Frontmatter {
	if fm == nil {
		return Frontmatter{}
	}
	out := make(Frontmatter, len(fm))
	for k, v := range fm {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v interface{}) interface{} {
	switch t := v.(type) {
	case Frontmatter:
		return t.Clone()
	case map[string]interface{}:
		out := make(map[string]interface{}, len(t))
		for k, inner := range t {
			out[k] = cloneValue(inner)
		}
		return out
	case map[interface{}]interface{}:
		out := make(map[interface{}]interface{}, len(t))
		for k, inner := range t {
			out[k] = cloneValue(inner)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, inner := range t {
			out[i] = cloneValue(inner)
		}
		return out
	case []string:
		return append([]string(nil), t...)
	default:
		return v
	}
}
