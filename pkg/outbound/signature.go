package outbound

import (
	"github.com/sirosfoundation/go-wssec/pkg/chain"
	"github.com/sirosfoundation/go-wssec/pkg/security"
	"github.com/sirosfoundation/go-wssec/pkg/xmlstream"
)

type capture struct {
	id     string
	name   xmlstream.Name
	part   bool
	depth  int
	events []xmlstream.Event
}

type signedReference struct {
	id     string
	name   xmlstream.Name
	part   bool
	digest []byte
}

// SignatureProcessor digests the configured parts as they pass and writes
// ds:Signature at the end of the security header once the document is
// complete.
type SignatureProcessor struct {
	chain.Base
	props   *Properties
	active  []*capture
	refs    []signedReference
	matched []bool
	pos     chain.Position
	tail    tail
}

// NewSignatureProcessor returns the signature processor.
func NewSignatureProcessor(props *Properties) *SignatureProcessor {
	return &SignatureProcessor{
		Base:    chain.NewBase("SignatureOutputProcessor", chain.Processing),
		props:   props,
		matched: make([]bool, len(props.SignatureParts)),
	}
}

// ProcessEvent digests the parts to sign as they stream past.
func (p *SignatureProcessor) ProcessEvent(ev xmlstream.Event, c *chain.Chain) error {
	done := p.pos.Observe(ev)
	defer done()
	if ev.IsStart() {
		if i, ok := p.match(ev); ok {
			p.matched[i] = true
			id := security.IDOf(ev)
			if id == "" {
				prefix := security.IDPrefixElement
				if ev.Name.Local == "Body" && security.IsSOAPNamespace(ev.Name.Space) {
					prefix = security.IDPrefixBody
				}
				id = security.GenerateID(prefix)
				ev = ev.WithAttr(xmlstream.Attr{Name: security.NameWsuID, Value: id})
			}
			p.active = append(p.active, &capture{id: id, name: ev.Name, part: p.pos.IsPart()})
		}
	}
	if err := p.capture(ev); err != nil {
		return err
	}
	return p.tail.pass(ev, c)
}

func (p *SignatureProcessor) match(ev xmlstream.Event) (int, bool) {
	soapNS := p.pos.SOAPNamespace()
	for i, part := range p.props.SignatureParts {
		if part.matches(ev.Name, soapNS) {
			return i, true
		}
	}
	return 0, false
}

func (p *SignatureProcessor) capture(ev xmlstream.Event) error {
	kept := p.active[:0]
	for _, cp := range p.active {
		cp.events = append(cp.events, ev)
		switch {
		case ev.IsStart():
			cp.depth++
		case ev.IsEnd():
			cp.depth--
		}
		if cp.depth > 0 {
			kept = append(kept, cp)
			continue
		}
		canonical, err := security.CanonicalizeEvents(cp.events)
		if err != nil {
			return err
		}
		digest, err := security.Digest(p.props.DigestAlgorithm, canonical)
		if err != nil {
			return err
		}
		p.refs = append(p.refs, signedReference{id: cp.id, name: cp.name, part: cp.part, digest: digest})
	}
	p.active = kept
	return nil
}

// Finish signs the collected references and emits the ds:Signature.
func (p *SignatureProcessor) Finish(c *chain.Chain) error {
	for i, part := range p.props.SignatureParts {
		if !p.matched[i] && part.Name.Local != "*" {
			return security.Configurationf("part %s to sign not found", part.Name)
		}
	}
	if !p.tail.holding {
		return security.Configurationf("no security header to place the signature in")
	}

	sec := c.Security()
	tok, err := sec.TokenForProperty(c.Context(), security.PropUseThisTokenIDForSignature, p.props.Crypto)
	if err != nil {
		return err
	}

	signedInfo := xmlstream.NewElement(security.NameSignedInfo)
	xmlstream.AddElement(signedInfo, security.NameCanonicalizationMethod).CreateAttr("Algorithm", security.AlgExcC14N)
	xmlstream.AddElement(signedInfo, security.NameSignatureMethod).CreateAttr("Algorithm", p.props.SignatureAlgorithm)
	for _, ref := range p.refs {
		r := xmlstream.AddElement(signedInfo, security.NameDSReference)
		r.CreateAttr("URI", "#"+ref.id)
		transforms := xmlstream.AddElement(r, security.NameTransforms)
		xmlstream.AddElement(transforms, security.NameTransform).CreateAttr("Algorithm", security.AlgExcC14N)
		xmlstream.AddElement(r, security.NameDigestMethod).CreateAttr("Algorithm", p.props.DigestAlgorithm)
		xmlstream.AddTextElement(r, security.NameDigestValue, b64(ref.digest))
	}

	canonical, err := security.CanonicalizeEvents(xmlstream.FromElement(signedInfo))
	if err != nil {
		return err
	}
	value, err := security.SignatureValue(p.props.SignatureAlgorithm, tok, canonical)
	if err != nil {
		return err
	}

	sig := xmlstream.NewElement(security.NameSignature)
	sig.CreateAttr("Id", security.GenerateID(security.IDPrefixSignature))
	sig.AddChild(signedInfo)
	xmlstream.AddTextElement(sig, security.NameSignatureValue, b64(value))
	keyInfo := xmlstream.AddElement(sig, security.NameKeyInfo)
	addTokenReference(keyInfo, tok.Reference())

	if err := c.ProcessEvents(xmlstream.FromElement(sig)); err != nil {
		return err
	}
	if err := p.tail.release(c); err != nil {
		return err
	}

	for _, ref := range p.refs {
		var ev security.Event = security.SignedElementEvent{Element: ref.name, TokenID: tok.ID()}
		if ref.part {
			ev = security.SignedPartEvent{Element: ref.name, TokenID: tok.ID()}
		}
		if err := sec.RegisterEvent(ev); err != nil {
			return err
		}
	}
	c.Logger().Debug("signature added", "token_id", tok.ID(), "references", len(p.refs))
	return sec.RegisterEvent(security.SignatureValueEvent{Value: value, TokenID: tok.ID()})
}
