// Package tree holds helpers shared by the hierarchical stores: slash separated paths,
// JSON-like trees (map[string]interface{}) and their flattened leaf form.
package tree

import (
	"strings"
)

// Node is a decoded JSON object.
type Node = map[string]interface{}

// Split breaks a slash separated path into its keys, ignoring empty keys.
func Split(p string) []string {
	raw := strings.Split(p, "/")
	keys := raw[:0]
	for _, k := range raw {
		if k != "" {
			keys = append(keys, k)
		}
	}
	return keys
}

// Join joins paths, ignoring empty keys.
func Join(paths ...string) string {
	keys := make([]string, 0, len(paths))
	for _, p := range paths {
		keys = append(keys, Split(p)...)
	}
	return strings.Join(keys, "/")
}

// Overlaps tells whether a change at one path is visible from the other,
// ie. one is an ancestor of (or equal to) the other.
func Overlaps(a, b string) bool {
	ak, bk := Split(a), Split(b)
	n := len(ak)
	if len(bk) < n {
		n = len(bk)
	}
	for i := 0; i < n; i++ {
		if ak[i] != bk[i] {
			return false
		}
	}
	return true
}

// Get returns the value at path p under root.
func Get(root Node, p string) (interface{}, bool) {
	var cur interface{} = root
	for _, k := range Split(p) {
		m, ok := cur.(Node)
		if !ok {
			return nil, false
		}
		if cur, ok = m[k]; !ok {
			return nil, false
		}
	}
	return cur, true
}

// Set writes value at path p under root, creating (or replacing non-object) intermediate nodes.
// A nil value deletes the node; parents left empty are removed too.
// Setting the root path replaces root's content when value is an object.
func Set(root Node, p string, value interface{}) {
	keys := Split(p)
	if len(keys) == 0 {
		for k := range root {
			delete(root, k)
		}
		if m, ok := value.(Node); ok {
			for k, v := range m {
				root[k] = Copy(v)
			}
		}
		return
	}

	parents := make([]Node, 0, len(keys))
	cur := root
	for _, k := range keys[:len(keys)-1] {
		parents = append(parents, cur)
		next, ok := cur[k].(Node)
		if !ok {
			if value == nil {
				return // nothing to delete
			}
			next = make(Node)
			cur[k] = next
		}
		cur = next
	}

	last := keys[len(keys)-1]
	if value == nil {
		delete(cur, last)
		// prune empty parents
		for i := len(parents) - 1; i >= 0 && len(cur) == 0; i-- {
			delete(parents[i], keys[i])
			cur = parents[i]
		}
		return
	}
	cur[last] = Copy(value)
}

// Copy deep copies maps & slices of a decoded JSON value.
func Copy(v interface{}) interface{} {
	switch val := v.(type) {
	case Node:
		cp := make(Node, len(val))
		for k, child := range val {
			cp[k] = Copy(child)
		}
		return cp
	case []interface{}:
		cp := make([]interface{}, len(val))
		for i, child := range val {
			cp[i] = Copy(child)
		}
		return cp
	default:
		return val
	}
}

// Flatten writes every leaf (non-object value) of v into out, keyed by its full path under prefix.
// Empty objects have no leaves, hence are dropped.
func Flatten(prefix string, v interface{}, out map[string]interface{}) {
	m, ok := v.(Node)
	if !ok {
		if v != nil {
			out[Join(prefix)] = v
		}
		return
	}
	for k, child := range m {
		Flatten(Join(prefix, k), child, out)
	}
}

// Unflatten rebuilds the subtree at base from leaves keyed by full path.
// It returns the value at base: an object, a single leaf (when base itself is a leaf) or nil.
func Unflatten(base string, leaves map[string]interface{}) interface{} {
	base = Join(base)
	if v, ok := leaves[base]; ok && base != "" {
		return v
	}
	root := make(Node)
	prefix := base + "/"
	for p, v := range leaves {
		rel := p
		if base != "" {
			if !strings.HasPrefix(p, prefix) {
				continue
			}
			rel = strings.TrimPrefix(p, prefix)
		}
		Set(root, rel, v)
	}
	if len(root) == 0 {
		return nil
	}
	return root
}
