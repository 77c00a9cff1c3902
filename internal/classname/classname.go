// Package classname provides an immutable set of CSS class names.
package classname

import "strings"

// Set is an ordered, duplicate-free list of class names.
// The zero value is an empty set. Every operation returns a new Set and
// leaves the receiver untouched.
type Set struct {
	names []string
}

// New builds a Set from the given names.
// Each entry is trimmed, blank entries are dropped and duplicates keep
// their first position.
func New(names ...string) Set {
	return Set{names: normalize(nil, names)}
}

// Parse builds a Set from a space separated class attribute.
func Parse(attr string) Set {
	return New(strings.Fields(attr)...)
}

// Add returns a copy of the set with name appended.
// Blank names and names already present leave the copy unchanged.
func (s Set) Add(name string) Set {
	return Set{names: normalize(s.names, []string{name})}
}

// Remove returns a copy of the set without name.
func (s Set) Remove(name string) Set {
	drop := New(name)
	out := make([]string, 0, len(s.names))
	for _, n := range s.names {
		if !drop.Has(n) {
			out = append(out, n)
		}
	}
	return Set{names: out}
}

// Has reports whether name is in the set.
func (s Set) Has(name string) bool {
	name = strings.TrimSpace(name)
	for _, n := range s.names {
		if n == name {
			return true
		}
	}
	return false
}

// Len returns the number of class names.
func (s Set) Len() int {
	return len(s.names)
}

// Names returns a copy of the class names in order.
func (s Set) Names() []string {
	out := make([]string, len(s.names))
	copy(out, s.names)
	return out
}

// String renders the set as a class attribute value.
func (s Set) String() string {
	return strings.Join(s.names, " ")
}

// normalize appends the tokens of names to a copy of base, skipping blanks
// and anything already present. An entry with inner whitespace contributes
// one token per word.
func normalize(base, names []string) []string {
	out := make([]string, len(base), len(base)+len(names))
	copy(out, base)

	seen := make(map[string]bool, len(out)+len(names))
	for _, n := range out {
		seen[n] = true
	}

	for _, name := range names {
		for _, token := range strings.Fields(name) {
			if seen[token] {
				continue
			}
			seen[token] = true
			out = append(out, token)
		}
	}
	return out
}
