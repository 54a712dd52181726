package types

import (
	"encoding/json"
	"maps"
)

// Binding maps graph pattern variables (without the leading '?') to terms,
// e.g. {"a": "<http://example.org/Maths>"}.
type Binding map[string]string

// Clone returns a copy of the binding.
func (b Binding) Clone() Binding {
	return maps.Clone(b)
}

// Matches reports whether every assignment of query is present in b.
func (b Binding) Matches(query Binding) bool {
	for k, v := range query {
		if got, ok := b[k]; !ok || got != v {
			return false
		}
	}
	return true
}

// BindingSet is the payload of ask, post, answer and react calls.
type BindingSet []Binding

// MarshalJSON encodes a nil set as an empty array; the smart connector
// rejects null binding sets.
func (bs BindingSet) MarshalJSON() ([]byte, error) {
	if bs == nil {
		return []byte("[]"), nil
	}
	return json.Marshal([]Binding(bs))
}

// Match returns copies of the bindings in bs that match at least one binding
// of query, in the order of bs. An empty binding in query matches everything.
func (bs BindingSet) Match(query BindingSet) BindingSet {
	matches := BindingSet{}
	for _, s := range bs {
		for _, q := range query {
			if s.Matches(q) {
				matches = append(matches, s.Clone())
				break
			}
		}
	}
	return matches
}
