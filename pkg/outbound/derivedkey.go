package outbound

import (
	"github.com/beevik/etree"

	"github.com/sirosfoundation/go-wssec/pkg/chain"
	"github.com/sirosfoundation/go-wssec/pkg/derivedkey"
	"github.com/sirosfoundation/go-wssec/pkg/security"
	"github.com/sirosfoundation/go-wssec/pkg/xmlstream"
)

// Purpose says what a derived key is used for.
type Purpose int

const (
	PurposeSignature Purpose = iota
	PurposeEncryption
)

func (p Purpose) String() string {
	if p == PurposeEncryption {
		return "Encryption"
	}
	return "Signature"
}

// propTokenProcessor prefixes the property naming the processor that
// writes a token, keyed by token id.
const propTokenProcessor = "outbound.token-processor."

func recordTokenProcessor(sec *security.SecurityContext, tokenID string, p chain.Processor) {
	sec.Put(propTokenProcessor+tokenID, p.Info().ID)
}

// DerivedKeyTokenProcessor derives a key from the token selected for key
// derivation and makes it the signing or encryption token.
type DerivedKeyTokenProcessor struct {
	chain.Base
	props   *Properties
	purpose Purpose
}

// NewDerivedKeyTokenProcessor returns a processor deriving a key for
// purpose.
func NewDerivedKeyTokenProcessor(props *Properties, purpose Purpose) *DerivedKeyTokenProcessor {
	return &DerivedKeyTokenProcessor{
		Base:    chain.NewBase("DerivedKeyTokenOutputProcessor-"+purpose.String(), chain.Processing),
		props:   props,
		purpose: purpose,
	}
}

// ProcessEvent emits the DerivedKeyToken once the security header opens.
func (p *DerivedKeyTokenProcessor) ProcessEvent(ev xmlstream.Event, c *chain.Chain) error {
	c.RemoveProcessor(p)
	if err := p.derive(c); err != nil {
		return err
	}
	return c.ProcessEvent(ev)
}

func (p *DerivedKeyTokenProcessor) derive(c *chain.Chain) error {
	ctx := c.Context()
	sec := c.Security()

	wrappingID := sec.GetString(security.PropUseThisTokenIDForDerivedKey)
	if wrappingID == "" {
		return security.Configurationf("no token selected for key derivation")
	}
	provider, ok := sec.Provider(wrappingID)
	if !ok {
		return security.Configurationf("no token provider registered for id %q", wrappingID)
	}
	wrapping, err := provider.SecurityToken(ctx, p.props.Crypto)
	if err != nil {
		return err
	}

	id := security.GenerateID(security.IDPrefixDerivedKey)
	length := p.keyLength()
	params, err := derivedkey.NewParams(length)
	if err != nil {
		return err
	}
	params.Algorithm = p.props.DerivedKeyAlgorithm

	secret, err := derivedkey.WrappingSecret(ctx, wrapping, id, p.props.Callbacks)
	if err != nil {
		return err
	}
	tok, err := derivedkey.New(p.props.DerivedKeyRegistry, id, wrapping.ID(), params, secret)
	if err != nil {
		return err
	}
	if err := sec.RegisterProvider(security.NewStaticProvider(tok)); err != nil {
		return err
	}
	switch p.purpose {
	case PurposeSignature:
		sec.Put(security.PropUseThisTokenIDForSignature, id)
	case PurposeEncryption:
		sec.Put(security.PropUseThisTokenIDForEncryption, id)
	}

	final := &finalDerivedKeyTokenProcessor{
		Base: chain.NewBase("FinalDerivedKeyTokenOutputProcessor-"+p.purpose.String(), chain.Processing),
		el:   derivedKeyTokenElement(tok, wrapping.Reference()),
	}
	if before := sec.GetString(propTokenProcessor + wrapping.ID()); before != "" {
		final.AddBefore(before)
	}
	recordTokenProcessor(sec, id, final)
	c.AddProcessor(final)

	c.Logger().Debug("derived key registered", "token_id", id, "wrapping_token_id", wrapping.ID(), "purpose", p.purpose.String())
	return sec.RegisterEvent(security.TokenEvent{
		Kind:      security.EventDerivedKeyToken,
		TokenID:   id,
		TokenType: security.TokenTypeDerivedKey,
	})
}

func (p *DerivedKeyTokenProcessor) keyLength() int {
	var n int
	if p.purpose == PurposeEncryption {
		n = security.ContentKeySize(p.props.EncryptionAlgorithm)
	} else {
		n = security.KeyLength(p.props.SignatureAlgorithm)
	}
	if n == 0 {
		n = derivedkey.DefaultLength
	}
	return n
}

func derivedKeyTokenElement(tok *derivedkey.Token, wrapping security.Reference) *etree.Element {
	params := tok.Params()
	el := xmlstream.NewElement(security.NameDerivedKeyToken)
	setID(el, tok.ID())
	if params.Algorithm != "" && params.Algorithm != security.AlgPSHA1 {
		el.CreateAttr("Algorithm", params.Algorithm)
	}
	addTokenReference(el, wrapping)
	xmlstream.AddTextElement(el, security.NameOffset, itoa(params.Offset))
	xmlstream.AddTextElement(el, security.NameLength, itoa(params.Length))
	if params.Label != "" && params.Label != derivedkey.DefaultLabel {
		xmlstream.AddTextElement(el, security.NameLabel, params.Label)
	}
	xmlstream.AddTextElement(el, security.NameSCNonce, b64(params.Nonce))
	return el
}

// finalDerivedKeyTokenProcessor writes the wsc:DerivedKeyToken when the
// security header opens.
type finalDerivedKeyTokenProcessor struct {
	chain.Base
	el *etree.Element
}

func (p *finalDerivedKeyTokenProcessor) ProcessEvent(ev xmlstream.Event, c *chain.Chain) error {
	if err := c.ProcessEvent(ev); err != nil {
		return err
	}
	if !openedSecurityHeader(ev, c) {
		return nil
	}
	c.RemoveProcessor(p)
	return emitElement(c, p, p.el)
}
