package outbound

import (
	"github.com/sirosfoundation/go-wssec/pkg/chain"
	"github.com/sirosfoundation/go-wssec/pkg/security"
	"github.com/sirosfoundation/go-wssec/pkg/xmlstream"
)

// BinarySecurityTokenProcessor registers the signature user's X.509 key
// pair and writes its certificate as a wsse:BinarySecurityToken.
type BinarySecurityTokenProcessor struct {
	chain.Base
	props *Properties
	id    string
}

// NewBinarySecurityTokenProcessor returns the BinarySecurityToken processor.
func NewBinarySecurityTokenProcessor(props *Properties) *BinarySecurityTokenProcessor {
	return &BinarySecurityTokenProcessor{
		Base:  chain.NewBase("BinarySecurityTokenOutputProcessor", chain.Processing),
		props: props,
	}
}

// ProcessEvent emits the BinarySecurityToken once the security header opens.
func (p *BinarySecurityTokenProcessor) ProcessEvent(ev xmlstream.Event, c *chain.Chain) error {
	sec := c.Security()
	if p.id == "" {
		p.id = security.GenerateID(security.IDPrefixBinaryToken)
		provider := security.NewCachedProvider(p.id, security.X509Resolver{TokenID: p.id, Alias: p.props.SignatureUser})
		if err := sec.RegisterProvider(provider); err != nil {
			return err
		}
		recordTokenProcessor(sec, p.id, p)
		sec.Put(security.PropUseThisTokenIDForSignature, p.id)
	}
	if err := c.ProcessEvent(ev); err != nil {
		return err
	}
	if !openedSecurityHeader(ev, c) {
		return nil
	}
	c.RemoveProcessor(p)

	tok, err := sec.ResolveToken(c.Context(), p.id, p.props.Crypto)
	if err != nil {
		return err
	}
	el := xmlstream.NewElement(security.NameBinarySecurityToken)
	setID(el, p.id)
	el.CreateAttr("ValueType", security.ValueTypeX509v3)
	el.CreateAttr("EncodingType", security.EncodingBase64)
	el.SetText(b64(tok.Certificates()[0].Raw))
	if err := emitElement(c, p, el); err != nil {
		return err
	}
	return sec.RegisterEvent(security.TokenEvent{
		Kind:      security.EventX509Token,
		TokenID:   p.id,
		TokenType: security.TokenTypeX509,
		Principal: tok.Certificates()[0].Subject.String(),
	})
}
