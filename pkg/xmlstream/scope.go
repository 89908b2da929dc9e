package xmlstream

import "sort"

// Scope is a stack of namespace declaration frames, one per open element.
type Scope struct {
	frames [][]Namespace
}

// NewScope returns a scope in which only the xml prefix is bound.
func NewScope() *Scope {
	return &Scope{frames: [][]Namespace{{{Prefix: "xml", URI: NamespaceXML}}}}
}

// Push opens a frame holding decls.
func (s *Scope) Push(decls []Namespace) {
	s.frames = append(s.frames, decls)
}

// Pop closes the innermost frame. The root frame is never removed.
func (s *Scope) Pop() {
	if len(s.frames) > 1 {
		s.frames = s.frames[:len(s.frames)-1]
	}
}

// Depth returns the number of open element frames.
func (s *Scope) Depth() int {
	return len(s.frames) - 1
}

// Lookup resolves prefix to its namespace URI.
func (s *Scope) Lookup(prefix string) (string, bool) {
	for i := len(s.frames) - 1; i >= 0; i-- {
		for _, ns := range s.frames[i] {
			if ns.Prefix == prefix {
				return ns.URI, true
			}
		}
	}
	return "", false
}

// PrefixFor returns a prefix currently bound to uri.
func (s *Scope) PrefixFor(uri string) (string, bool) {
	for i := len(s.frames) - 1; i >= 0; i-- {
		for _, ns := range s.frames[i] {
			if ns.URI != uri || ns.Prefix == "" {
				continue
			}
			if bound, _ := s.Lookup(ns.Prefix); bound == uri {
				return ns.Prefix, true
			}
		}
	}
	return "", false
}

// Bindings returns the effective in-scope declarations sorted by prefix,
// excluding the implicit xml binding.
func (s *Scope) Bindings() []Namespace {
	seen := make(map[string]bool)
	var out []Namespace
	for i := len(s.frames) - 1; i >= 1; i-- {
		for _, ns := range s.frames[i] {
			if seen[ns.Prefix] {
				continue
			}
			seen[ns.Prefix] = true
			if ns.URI == "" {
				continue
			}
			out = append(out, ns)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Prefix < out[j].Prefix })
	return out
}
