package outbound

import (
	"fmt"
	"slices"

	"github.com/beevik/etree"

	"github.com/sirosfoundation/go-wssec/pkg/chain"
	"github.com/sirosfoundation/go-wssec/pkg/security"
	"github.com/sirosfoundation/go-wssec/pkg/xmlstream"
)

// UsernameTokenProcessor registers the UsernameToken on the first event
// and writes it when the security header opens.
type UsernameTokenProcessor struct {
	chain.Base
	props *Properties
	el    *etree.Element
}

// NewUsernameTokenProcessor returns the UsernameToken processor.
func NewUsernameTokenProcessor(props *Properties) *UsernameTokenProcessor {
	return &UsernameTokenProcessor{
		Base:  chain.NewBase("UsernameTokenOutputProcessor", chain.Processing),
		props: props,
	}
}

// ProcessEvent emits the UsernameToken once the security header opens.
func (p *UsernameTokenProcessor) ProcessEvent(ev xmlstream.Event, c *chain.Chain) error {
	if p.el == nil {
		if err := p.register(c); err != nil {
			return err
		}
	}
	if err := c.ProcessEvent(ev); err != nil {
		return err
	}
	if !openedSecurityHeader(ev, c) {
		return nil
	}
	c.RemoveProcessor(p)
	return emitElement(c, p, p.el)
}

func (p *UsernameTokenProcessor) register(c *chain.Chain) error {
	user := p.props.User
	if user == "" {
		user = requestPrincipal(c.Security())
	}
	if user == "" {
		return security.Configurationf("no user for UsernameToken")
	}
	password, err := security.LookupPassword(c.Context(), p.props.Callbacks, user, security.UsageUsernameToken)
	if err != nil {
		return fmt.Errorf("password for %q: %w", user, err)
	}

	id := security.GenerateID(security.IDPrefixUsernameToken)
	el := xmlstream.NewElement(security.NameUsernameToken)
	xmlstream.SetAttr(el, security.NameWsuID, id)
	xmlstream.AddTextElement(el, security.NameUsername, user)

	var tok *security.GenericToken
	if p.props.UseDerivedKeyForUsernameToken {
		forMAC := slices.Contains(p.props.Actions, ActionSignature) || slices.Contains(p.props.Actions, ActionUsernameTokenSignature)
		salt, err := security.GenerateUsernameTokenSalt(forMAC)
		if err != nil {
			return err
		}
		key, err := security.DeriveUsernameTokenKey(password, salt, p.props.UsernameTokenIterations)
		if err != nil {
			return err
		}
		xmlstream.AddTextElement(el, security.NameSalt, b64(salt))
		xmlstream.AddTextElement(el, security.NameIteration, itoa(p.props.UsernameTokenIterations))
		tok = security.NewSymmetricToken(id, security.TokenTypeUsername, key)
	} else {
		if err := p.addPassword(el, password); err != nil {
			return err
		}
		tok = security.NewSymmetricToken(id, security.TokenTypeUsername, nil)
	}

	sec := c.Security()
	if err := sec.RegisterProvider(security.NewStaticProvider(tok)); err != nil {
		return err
	}
	recordTokenProcessor(sec, id, p)
	if p.props.UseDerivedKeyForUsernameToken {
		sec.Put(security.PropUseThisTokenIDForDerivedKey, id)
		sec.Put(security.PropUseThisTokenIDForSignature, id)
		sec.Put(security.PropUseThisTokenIDForEncryption, id)
	}
	p.el = el
	if err := sec.RegisterEvent(security.TokenEvent{
		Kind:         security.EventUsernameToken,
		TokenID:      id,
		TokenType:    security.TokenTypeUsername,
		Principal:    user,
		Derived:      p.props.UseDerivedKeyForUsernameToken,
		PasswordType: p.props.PasswordType,
	}); err != nil {
		return err
	}
	c.Logger().Debug("username token registered", "token_id", id, "derived", p.props.UseDerivedKeyForUsernameToken)
	return nil
}

func (p *UsernameTokenProcessor) addPassword(el *etree.Element, password string) error {
	switch p.props.PasswordType {
	case security.PasswordText:
		pw := xmlstream.AddTextElement(el, security.NamePassword, password)
		pw.CreateAttr("Type", security.PasswordText)
	case security.PasswordDigest:
		nonce, err := security.GenerateNonce(16)
		if err != nil {
			return err
		}
		created := formatTime(p.props.Now())
		pw := xmlstream.AddTextElement(el, security.NamePassword, security.PasswordDigestValue(nonce, created, password))
		pw.CreateAttr("Type", security.PasswordDigest)
		n := xmlstream.AddTextElement(el, security.NameNonce, b64(nonce))
		n.CreateAttr("EncodingType", security.EncodingBase64)
		xmlstream.AddTextElement(el, security.NameCreated, created)
	}
	return nil
}

// requestPrincipal returns the UsernameToken principal of the request
// being answered.
func requestPrincipal(sec *security.SecurityContext) string {
	events, _ := security.Value[[]security.Event](sec, security.PropRequestSecurityEvents)
	for _, ev := range events {
		if te, ok := ev.(security.TokenEvent); ok && te.Kind == security.EventUsernameToken && te.Principal != "" {
			return te.Principal
		}
	}
	return ""
}
