package config

import (
	"slices"
	"strings"
)

// Sections are the top-level keys config.yaml may contain.
var Sections = []string{"gateway", "chat", "summary", "storage", "logging", "hooks"}

// Key addresses one value in the raw config document, e.g. chat.model.
type Key []string

// ParseKey splits a dotted key. The first segment must name a section.
func ParseKey(raw string) (Key, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, &ConfigError{Message: "empty config key"}
	}
	k := Key(strings.Split(raw, "."))
	for _, seg := range k {
		if seg == "" || strings.ContainsAny(seg, " \t\n") {
			return nil, &ConfigError{Message: "malformed config key: " + raw}
		}
	}
	if !slices.Contains(Sections, k[0]) {
		return nil, &ConfigError{Message: "unknown config section: " + k[0]}
	}
	return k, nil
}

func (k Key) String() string { return strings.Join(k, ".") }

// Lookup returns the value at k.
func (k Key) Lookup(doc map[string]any) (any, bool) {
	var cur any = doc
	for _, seg := range k {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		if cur, ok = m[seg]; !ok {
			return nil, false
		}
	}
	return cur, true
}

// Assign stores v at k, replacing any scalar that sits where a section
// map is needed.
func (k Key) Assign(doc map[string]any, v any) {
	m := doc
	for _, seg := range k[:len(k)-1] {
		child, ok := m[seg].(map[string]any)
		if !ok {
			child = map[string]any{}
			m[seg] = child
		}
		m = child
	}
	m[k[len(k)-1]] = v
}

// Remove deletes the value at k and prunes maps it leaves empty. It
// reports whether anything was there.
func (k Key) Remove(doc map[string]any) bool {
	return remove(doc, k)
}

func remove(m map[string]any, k Key) bool {
	if len(k) == 1 {
		if _, ok := m[k[0]]; !ok {
			return false
		}
		delete(m, k[0])
		return true
	}
	child, ok := m[k[0]].(map[string]any)
	if !ok || !remove(child, k[1:]) {
		return false
	}
	if len(child) == 0 {
		delete(m, k[0])
	}
	return true
}
