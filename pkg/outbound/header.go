package outbound

import (
	"github.com/sirosfoundation/go-wssec/pkg/chain"
	"github.com/sirosfoundation/go-wssec/pkg/security"
	"github.com/sirosfoundation/go-wssec/pkg/xmlstream"
)

// SecurityHeaderProcessor opens and closes wsse:Security as the first child
// of soap:Header.
type SecurityHeaderProcessor struct {
	chain.Base
	headerSeen bool
	done       bool
}

// NewSecurityHeaderProcessor returns the header processor.
func NewSecurityHeaderProcessor() *SecurityHeaderProcessor {
	return &SecurityHeaderProcessor{Base: chain.NewBase("SecurityHeaderOutputProcessor", chain.PreProcessing)}
}

// ProcessEvent opens the wsse:Security header inside the SOAP Header,
// creating the Header when the envelope has none.
func (p *SecurityHeaderProcessor) ProcessEvent(ev xmlstream.Event, c *chain.Chain) error {
	doc := c.Document()
	soapNS := doc.SOAPNamespace()
	if p.done || !ev.IsStart() || doc.Depth() != 2 || soapNS == "" || ev.Name.Space != soapNS {
		return c.ProcessEvent(ev)
	}

	switch ev.Name.Local {
	case "Header":
		p.headerSeen = true
		if err := c.ProcessEvent(ev); err != nil {
			return err
		}
		return p.emitSecurityHeader(c, soapNS, ev.Name.Prefix)
	case "Body":
		if !p.headerSeen {
			header := xmlstream.NewName(soapNS, ev.Name.Prefix, "Header")
			if err := c.ProcessEvent(xmlstream.StartElement(header, nil)); err != nil {
				return err
			}
			if err := p.emitSecurityHeader(c, soapNS, ev.Name.Prefix); err != nil {
				return err
			}
			if err := c.ProcessEvent(xmlstream.EndElement(header)); err != nil {
				return err
			}
		}
		p.done = true
		c.RemoveProcessor(p)
	}
	return c.ProcessEvent(ev)
}

func (p *SecurityHeaderProcessor) emitSecurityHeader(c *chain.Chain, soapNS, soapPrefix string) error {
	p.done = true
	c.RemoveProcessor(p)

	doc := c.Document()
	start := xmlstream.StartElement(security.NameSecurity,
		[]xmlstream.Attr{security.MustUnderstand(soapNS, soapPrefix)},
		xmlstream.Namespace{Prefix: security.PrefixWSSE, URI: security.NSSecurityExt})
	doc.SetInSecurityHeader(true)
	if err := c.ProcessEvent(start); err != nil {
		return err
	}
	err := c.ProcessEvent(xmlstream.EndElement(security.NameSecurity))
	doc.SetInSecurityHeader(false)
	return err
}
