package outbound

import (
	"github.com/sirosfoundation/go-wssec/pkg/chain"
	"github.com/sirosfoundation/go-wssec/pkg/security"
	"github.com/sirosfoundation/go-wssec/pkg/xmlstream"
)

type encryption struct {
	name        xmlstream.Name
	contentOnly bool
	part        bool
	depth       int
	events      []xmlstream.Event
}

type encryptedReference struct {
	id          string
	name        xmlstream.Name
	contentOnly bool
	part        bool
}

// EncryptProcessor replaces the configured parts with xenc:EncryptedData
// and writes the xenc:ReferenceList into the security header.
type EncryptProcessor struct {
	chain.Base
	props   *Properties
	current *encryption
	refs    []encryptedReference
	matched []bool
	pos     chain.Position
	tail    tail
}

// NewEncryptProcessor returns the encryption processor.
func NewEncryptProcessor(props *Properties) *EncryptProcessor {
	return &EncryptProcessor{
		Base:    chain.NewBase("EncryptOutputProcessor", chain.Processing),
		props:   props,
		matched: make([]bool, len(props.EncryptionParts)),
	}
}

// ProcessEvent buffers the parts to encrypt and replaces them with EncryptedData.
func (p *EncryptProcessor) ProcessEvent(ev xmlstream.Event, c *chain.Chain) error {
	done := p.pos.Observe(ev)
	defer done()

	if cur := p.current; cur != nil {
		switch {
		case ev.IsStart():
			cur.depth++
		case ev.IsEnd():
			cur.depth--
		}
		if cur.depth > 0 {
			cur.events = append(cur.events, ev)
			return nil
		}
		if !cur.contentOnly {
			cur.events = append(cur.events, ev)
		}
		p.current = nil
		if err := p.encrypt(cur, c); err != nil {
			return err
		}
		if cur.contentOnly {
			return p.tail.pass(ev, c)
		}
		return nil
	}

	if ev.IsStart() && p.tail.holding && !p.pos.InSecurityHeader() {
		soapNS := p.pos.SOAPNamespace()
		for i, part := range p.props.EncryptionParts {
			if !part.matches(ev.Name, soapNS) {
				continue
			}
			p.matched[i] = true
			p.current = &encryption{
				name:        ev.Name,
				contentOnly: part.contentOnly(ev.Name, soapNS),
				part:        p.pos.IsPart(),
				depth:       1,
			}
			if p.current.contentOnly {
				return p.tail.pass(ev, c)
			}
			p.current.events = append(p.current.events, ev)
			return nil
		}
	}
	return p.tail.pass(ev, c)
}

func (p *EncryptProcessor) encrypt(e *encryption, c *chain.Chain) error {
	tok, err := c.Security().TokenForProperty(c.Context(), security.PropUseThisTokenIDForEncryption, p.props.Crypto)
	if err != nil {
		return err
	}
	key, err := tok.SecretKey(p.props.EncryptionAlgorithm)
	if err != nil {
		return err
	}
	plaintext, err := xmlstream.Serialize(e.events)
	if err != nil {
		return err
	}
	ciphertext, err := security.EncryptContent(p.props.EncryptionAlgorithm, key, []byte(plaintext))
	if err != nil {
		return err
	}

	id := security.GenerateID(security.IDPrefixEncryptedData)
	typ := security.EncTypeElement
	if e.contentOnly {
		typ = security.EncTypeContent
	}
	ed := xmlstream.NewElement(security.NameEncryptedData)
	ed.CreateAttr("Id", id)
	ed.CreateAttr("Type", typ)
	xmlstream.AddElement(ed, security.NameEncryptionMethod).CreateAttr("Algorithm", p.props.EncryptionAlgorithm)
	keyInfo := xmlstream.AddElement(ed, security.NameKeyInfo)
	addTokenReference(keyInfo, tok.Reference())
	cipherData := xmlstream.AddElement(ed, security.NameCipherData)
	xmlstream.AddTextElement(cipherData, security.NameCipherValue, b64(ciphertext))

	p.refs = append(p.refs, encryptedReference{id: id, name: e.name, contentOnly: e.contentOnly, part: e.part})
	for _, ev := range xmlstream.FromElement(ed) {
		if err := p.tail.pass(ev, c); err != nil {
			return err
		}
	}
	return nil
}

// Finish emits the ReferenceList and fails if a configured part never appeared.
func (p *EncryptProcessor) Finish(c *chain.Chain) error {
	for i, part := range p.props.EncryptionParts {
		if !p.matched[i] && part.Name.Local != "*" {
			return security.Configurationf("part %s to encrypt not found", part.Name)
		}
	}
	if !p.tail.holding {
		return security.Configurationf("no security header to place the reference list in")
	}

	list := xmlstream.NewElement(security.NameReferenceList)
	for _, ref := range p.refs {
		xmlstream.AddElement(list, security.NameDataReference).CreateAttr("URI", "#"+ref.id)
	}
	if err := c.ProcessEvents(xmlstream.FromElement(list)); err != nil {
		return err
	}
	if err := p.tail.release(c); err != nil {
		return err
	}

	sec := c.Security()
	tokenID := sec.GetString(security.PropUseThisTokenIDForEncryption)
	for _, ref := range p.refs {
		var ev security.Event
		switch {
		case ref.part:
			ev = security.EncryptedPartEvent{Element: ref.name, TokenID: tokenID}
		case ref.contentOnly:
			ev = security.ContentEncryptedElementEvent{Element: ref.name, TokenID: tokenID}
		default:
			ev = security.EncryptedElementEvent{Element: ref.name, TokenID: tokenID}
		}
		if err := sec.RegisterEvent(ev); err != nil {
			return err
		}
	}
	c.Logger().Debug("encryption added", "token_id", tokenID, "references", len(p.refs))
	return nil
}
