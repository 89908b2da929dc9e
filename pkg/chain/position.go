package chain

import (
	"github.com/sirosfoundation/go-wssec/pkg/security"
	"github.com/sirosfoundation/go-wssec/pkg/xmlstream"
)

// Position follows the element path of the events one processor sees.
// Events that were held back or synthesized reach later processors after
// the Document Context has moved on, so such processors keep their own
// path.
type Position struct {
	path []xmlstream.Name
}

// NewPosition returns a Position inside the elements of path, for
// processors that join the chain in the middle of a document.
func NewPosition(path []xmlstream.Name) Position {
	return Position{path: append([]xmlstream.Name(nil), path...)}
}

// Observe must be called for every event before it is inspected; it
// returns a function to call once the event has been handled.
func (p *Position) Observe(ev xmlstream.Event) (done func()) {
	switch {
	case ev.IsStart():
		p.path = append(p.path, ev.Name)
	case ev.IsEnd():
		return func() {
			if len(p.path) > 0 {
				p.path = p.path[:len(p.path)-1]
			}
		}
	}
	return func() {}
}

// Path returns the open elements, outermost first.
func (p *Position) Path() []xmlstream.Name {
	return append([]xmlstream.Name(nil), p.path...)
}

// Depth returns the number of open elements.
func (p *Position) Depth() int { return len(p.path) }

// Current returns the innermost open element.
func (p *Position) Current() (xmlstream.Name, bool) {
	if len(p.path) == 0 {
		return xmlstream.Name{}, false
	}
	return p.path[len(p.path)-1], true
}

// Parent returns the element enclosing the innermost one.
func (p *Position) Parent() (xmlstream.Name, bool) {
	if len(p.path) < 2 {
		return xmlstream.Name{}, false
	}
	return p.path[len(p.path)-2], true
}

// SOAPNamespace returns the envelope namespace, or "" outside a SOAP
// envelope.
func (p *Position) SOAPNamespace() string {
	if len(p.path) == 0 || p.path[0].Local != "Envelope" || !security.IsSOAPNamespace(p.path[0].Space) {
		return ""
	}
	return p.path[0].Space
}

// InSecurityHeader reports whether a wsse:Security element is open.
func (p *Position) InSecurityHeader() bool {
	for _, n := range p.path {
		if n.Equal(security.NameSecurity) {
			return true
		}
	}
	return false
}

// IsPart reports whether the innermost element is the SOAP Body or a
// direct child of soap:Header other than the security header.
func (p *Position) IsPart() bool {
	ns := p.SOAPNamespace()
	if ns == "" {
		return false
	}
	switch len(p.path) {
	case 2:
		return p.path[1].Space == ns && p.path[1].Local == "Body"
	case 3:
		return p.path[1].Space == ns && p.path[1].Local == "Header" && !p.path[2].Equal(security.NameSecurity)
	}
	return false
}
