package policy

import (
	"fmt"
	"strings"

	"github.com/sirosfoundation/go-wssec/pkg/xmlstream"
)

// QNameFromXPath returns the element an XPath expression selects, taken
// from its last location step. Prefixes resolve through namespaces.
// Predicates are ignored and attribute or function steps are rejected.
func QNameFromXPath(expr string, namespaces map[string]string) (xmlstream.Name, error) {
	path := strings.TrimSpace(expr)
	if path == "" {
		return xmlstream.Name{}, fmt.Errorf("%w: empty XPath", ErrInvalidPolicy)
	}
	path = stripPredicates(path)
	step := path
	if i := strings.LastIndex(path, "/"); i >= 0 {
		step = path[i+1:]
	}
	step = strings.TrimPrefix(step, "child::")
	switch {
	case step == "":
		return xmlstream.Name{}, fmt.Errorf("%w: XPath %q ends without an element step", ErrInvalidPolicy, expr)
	case strings.HasPrefix(step, "@"), strings.Contains(step, "::"), strings.Contains(step, "("):
		return xmlstream.Name{}, fmt.Errorf("%w: XPath %q does not select an element", ErrInvalidPolicy, expr)
	}

	prefix, local, found := strings.Cut(step, ":")
	if !found {
		return xmlstream.Name{Space: namespaces[""], Local: step}, nil
	}
	uri, ok := namespaces[prefix]
	if !ok {
		return xmlstream.Name{}, fmt.Errorf("%w: XPath %q uses undeclared prefix %q", ErrInvalidPolicy, expr, prefix)
	}
	if local == "" {
		return xmlstream.Name{}, fmt.Errorf("%w: XPath %q has an empty local name", ErrInvalidPolicy, expr)
	}
	return xmlstream.NewName(uri, prefix, local), nil
}

// stripPredicates removes bracketed predicates, which may nest.
func stripPredicates(path string) string {
	var b strings.Builder
	depth := 0
	for _, r := range path {
		switch {
		case r == '[':
			depth++
		case r == ']' && depth > 0:
			depth--
		case depth == 0:
			b.WriteRune(r)
		}
	}
	return b.String()
}
