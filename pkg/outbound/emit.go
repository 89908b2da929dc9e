package outbound

import (
	"encoding/base64"
	"strconv"
	"time"

	"github.com/beevik/etree"

	"github.com/sirosfoundation/go-wssec/pkg/chain"
	"github.com/sirosfoundation/go-wssec/pkg/security"
	"github.com/sirosfoundation/go-wssec/pkg/xmlstream"
)

// emitElement writes el at p's position in c.
func emitElement(c *chain.Chain, p chain.Processor, el *etree.Element) error {
	return c.SubChain(p).ProcessEvents(xmlstream.FromElement(el))
}

// openedSecurityHeader reports whether ev opens the security header.
func openedSecurityHeader(ev xmlstream.Event, c *chain.Chain) bool {
	return c.Document().InSecurityHeader() && ev.IsStartOf(security.NameSecurity)
}

// addTokenReference appends a wsse:SecurityTokenReference pointing at ref.
func addTokenReference(parent *etree.Element, ref security.Reference) *etree.Element {
	str := xmlstream.AddElement(parent, security.NameSecurityTokenReference)
	r := xmlstream.AddElement(str, security.NameReference)
	r.CreateAttr("URI", ref.URI)
	if ref.ValueType != "" {
		r.CreateAttr("ValueType", ref.ValueType)
	}
	return str
}

func setID(el *etree.Element, id string) {
	xmlstream.SetAttr(el, security.NameWsuID, id)
}

func b64(data []byte) string { return base64.StdEncoding.EncodeToString(data) }

func itoa(n int) string { return strconv.Itoa(n) }

// formatTime renders t as xsd:dateTime in UTC with milliseconds.
func formatTime(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05.000Z")
}
