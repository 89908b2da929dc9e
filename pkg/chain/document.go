package chain

import (
	"github.com/sirosfoundation/go-wssec/pkg/security"
	"github.com/sirosfoundation/go-wssec/pkg/xmlstream"
)

// DocumentContext tracks the structural position of the event being
// dispatched. While an element's start or end event is dispatched, that
// element is the innermost entry of the path.
type DocumentContext struct {
	path             []xmlstream.Name
	scope            *xmlstream.Scope
	inSecurityHeader bool
}

// NewDocumentContext returns a context positioned before the root element.
func NewDocumentContext() *DocumentContext {
	return &DocumentContext{scope: xmlstream.NewScope()}
}

func (d *DocumentContext) enter(ev xmlstream.Event) {
	d.path = append(d.path, ev.Name)
	d.scope.Push(ev.Namespaces)
}

func (d *DocumentContext) leave() {
	if len(d.path) > 0 {
		d.path = d.path[:len(d.path)-1]
		d.scope.Pop()
	}
}

// Depth returns the number of open elements.
func (d *DocumentContext) Depth() int { return len(d.path) }

// Path returns the names of the open elements, outermost first.
func (d *DocumentContext) Path() []xmlstream.Name {
	return append([]xmlstream.Name(nil), d.path...)
}

// Current returns the innermost open element.
func (d *DocumentContext) Current() (xmlstream.Name, bool) {
	if len(d.path) == 0 {
		return xmlstream.Name{}, false
	}
	return d.path[len(d.path)-1], true
}

// Parent returns the element enclosing the innermost one.
func (d *DocumentContext) Parent() (xmlstream.Name, bool) {
	if len(d.path) < 2 {
		return xmlstream.Name{}, false
	}
	return d.path[len(d.path)-2], true
}

// Scope returns the namespace bindings in effect.
func (d *DocumentContext) Scope() *xmlstream.Scope { return d.scope }

// SOAPNamespace returns the envelope namespace, or "" before the envelope
// has started or when the root is not a SOAP envelope.
func (d *DocumentContext) SOAPNamespace() string {
	if len(d.path) == 0 || d.path[0].Local != "Envelope" || !security.IsSOAPNamespace(d.path[0].Space) {
		return ""
	}
	return d.path[0].Space
}

// IsInSOAPHeader reports whether the position is at or below soap:Header.
func (d *DocumentContext) IsInSOAPHeader() bool { return d.isInPart("Header") }

// IsInSOAPBody reports whether the position is at or below soap:Body.
func (d *DocumentContext) IsInSOAPBody() bool { return d.isInPart("Body") }

func (d *DocumentContext) isInPart(local string) bool {
	ns := d.SOAPNamespace()
	return ns != "" && len(d.path) >= 2 && d.path[1].Space == ns && d.path[1].Local == local
}

// InSecurityHeader reports whether the wsse:Security header is open.
func (d *DocumentContext) InSecurityHeader() bool { return d.inSecurityHeader }

// SetInSecurityHeader is called by the processor that opens and closes the
// security header.
func (d *DocumentContext) SetInSecurityHeader(in bool) { d.inSecurityHeader = in }
