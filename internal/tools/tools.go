// Package tools holds the function tools an agent can expose to the
// understanding backend during a session.
package tools

import (
	"context"
	"sort"
)

// Tool is a single function the model may call with a free-text query.
//
// Invoke never fails: tools degrade to a spoken sentence so the
// conversation can continue.
type Tool interface {
	Name() string
	Description() string
	Invoke(ctx context.Context, query string) string
}

// Set is the collection of tools registered on an agent. The zero value
// and a nil *Set are both empty.
type Set struct {
	tools map[string]Tool
}

// NewSet builds a Set from tools. Later tools replace earlier ones with the
// same name.
func NewSet(tools ...Tool) *Set {
	s := &Set{tools: make(map[string]Tool, len(tools))}
	for _, t := range tools {
		s.tools[t.Name()] = t
	}
	return s
}

// Lookup returns the tool registered under name.
func (s *Set) Lookup(name string) (Tool, bool) {
	if s == nil {
		return nil, false
	}
	t, ok := s.tools[name]
	return t, ok
}

// Names returns the registered tool names in sorted order.
func (s *Set) Names() []string {
	if s == nil {
		return nil
	}
	names := make([]string, 0, len(s.tools))
	for n := range s.tools {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of registered tools.
func (s *Set) Len() int {
	if s == nil {
		return 0
	}
	return len(s.tools)
}
