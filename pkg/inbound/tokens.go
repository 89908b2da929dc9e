package inbound

import (
	"time"

	"github.com/sirosfoundation/go-wssec/pkg/chain"
	"github.com/sirosfoundation/go-wssec/pkg/derivedkey"
	"github.com/sirosfoundation/go-wssec/pkg/replay"
	"github.com/sirosfoundation/go-wssec/pkg/security"
	"github.com/sirosfoundation/go-wssec/pkg/validator"
	"github.com/sirosfoundation/go-wssec/pkg/xmlstream"
)

var nameGeneration = xmlstream.NewName(security.NSSecureConv, security.PrefixWSC, "Generation")

func handleTimestamp(p *SecurityHeaderProcessor, c *chain.Chain, h headerElement) error {
	if p.seenTimestamp {
		return security.NewValidationError(security.ErrInvalidSecurityHeader, "more than one Timestamp")
	}
	p.seenTimestamp = true

	ts := &security.Timestamp{
		ID:      idOf(h.el),
		Created: childText(h.el, security.NameCreated),
		Expires: childText(h.el, security.NameExpires),
	}
	cred := &security.Credential{TokenType: security.TokenTypeTimestamp, Timestamp: ts}
	if _, err := p.props.Validators.Validate(c.Context(), cred, p.requestContext(c)); err != nil {
		return err
	}

	created, err := validator.ParseDateTime(ts.Created)
	if err != nil {
		return security.WrapValidationError(security.ErrInvalidSecurity, err, "Timestamp Created")
	}
	var expires time.Time
	if ts.Expires != "" {
		if expires, err = validator.ParseDateTime(ts.Expires); err != nil {
			return security.WrapValidationError(security.ErrInvalidSecurity, err, "Timestamp Expires")
		}
	}
	until := expires
	if until.IsZero() {
		until = created.Add(p.props.ReplayTTL)
	}
	key := replay.Key("ts", []byte(ts.ID), []byte(ts.Created), []byte(ts.Expires))
	if err := p.checkReplay(c, key, until); err != nil {
		return err
	}
	return c.Security().RegisterEvent(security.TimestampEvent{ID: ts.ID, Created: created, Expires: expires})
}

func handleUsernameToken(p *SecurityHeaderProcessor, c *chain.Chain, h headerElement) error {
	ut := &security.UsernameToken{
		ID:       idOf(h.el),
		Username: childText(h.el, security.NameUsername),
		Created:  childText(h.el, security.NameCreated),
	}
	if pw := child(h.el, security.NamePassword); pw != nil {
		ut.Password = pw.Text()
		ut.PasswordType = pw.SelectAttrValue("Type", security.PasswordText)
	}
	var err error
	if s := childText(h.el, security.NameNonce); s != "" {
		if ut.Nonce, err = decodeBase64(s); err != nil {
			return security.WrapValidationError(security.ErrInvalidSecurityToken, err, "UsernameToken Nonce")
		}
	}
	if s := childText(h.el, security.NameSalt); s != "" {
		if ut.Salt, err = decodeBase64(s); err != nil {
			return security.WrapValidationError(security.ErrInvalidSecurityToken, err, "UsernameToken Salt")
		}
	}
	if ut.Iteration, err = parseInt(h.el, security.NameIteration, 0); err != nil {
		return security.WrapValidationError(security.ErrInvalidSecurityToken, err, "UsernameToken Iteration")
	}

	cred, err := p.props.Validators.Validate(c.Context(),
		&security.Credential{TokenType: security.TokenTypeUsername, UsernameToken: ut}, p.requestContext(c))
	if err != nil {
		return err
	}

	if len(ut.Nonce) > 0 {
		until := p.props.Now().Add(p.props.ReplayTTL)
		if created, err := validator.ParseDateTime(ut.Created); err == nil {
			until = created.Add(p.props.ReplayTTL)
		}
		if err := p.checkReplay(c, replay.Key("ut", []byte(ut.Username), ut.Nonce), until); err != nil {
			return err
		}
	}

	if err := p.registerToken(c, ut.ID, security.TokenTypeUsername, cred); err != nil {
		return err
	}
	c.Logger().Debug("username token accepted", "token_id", ut.ID, "user", cred.Principal, "derived", ut.IsDerived())
	return c.Security().RegisterEvent(security.TokenEvent{
		Kind:         security.EventUsernameToken,
		TokenID:      ut.ID,
		TokenType:    security.TokenTypeUsername,
		Principal:    cred.Principal,
		Derived:      ut.IsDerived(),
		PasswordType: ut.PasswordType,
	})
}

func handleBinarySecurityToken(p *SecurityHeaderProcessor, c *chain.Chain, h headerElement) error {
	bst := &security.BinarySecurityToken{
		ID:           idOf(h.el),
		ValueType:    h.el.SelectAttrValue("ValueType", ""),
		EncodingType: h.el.SelectAttrValue("EncodingType", security.EncodingBase64),
	}
	if bst.EncodingType != security.EncodingBase64 {
		return security.NewValidationError(security.ErrInvalidSecurityToken, "unsupported encoding %q", bst.EncodingType)
	}
	data, err := decodeBase64(h.el.Text())
	if err != nil {
		return security.WrapValidationError(security.ErrInvalidSecurityToken, err, "BinarySecurityToken %s", bst.ID)
	}
	bst.Data = data

	var (
		typ  security.TokenType
		kind security.EventType
	)
	switch bst.ValueType {
	case security.ValueTypeX509v3:
		typ, kind = security.TokenTypeX509, security.EventX509Token
	case security.ValueTypeKerberosAPREQ:
		typ, kind = security.TokenTypeKerberos, security.EventKerberosToken
	default:
		return security.NewValidationError(security.ErrInvalidSecurityToken, "unsupported BinarySecurityToken value type %q", bst.ValueType)
	}

	cred, err := p.props.Validators.Validate(c.Context(),
		&security.Credential{TokenType: typ, BinaryToken: bst}, p.requestContext(c))
	if err != nil {
		return err
	}
	if err := p.registerToken(c, bst.ID, typ, cred); err != nil {
		return err
	}
	c.Logger().Debug("binary security token accepted", "token_id", bst.ID, "type", string(typ), "principal", cred.Principal)
	return c.Security().RegisterEvent(security.TokenEvent{
		Kind:      kind,
		TokenID:   bst.ID,
		TokenType: typ,
		Principal: cred.Principal,
	})
}

// registerToken makes a validated credential available under id and
// records its principal.
func (p *SecurityHeaderProcessor) registerToken(c *chain.Chain, id string, typ security.TokenType, cred *security.Credential) error {
	sec := c.Security()
	if cred.Principal != "" {
		sec.Put(security.PropAuthenticatedPrincipal, cred.Principal)
	}
	if id == "" {
		return nil
	}
	tok := cred.TransformedToken
	if tok == nil {
		switch typ {
		case security.TokenTypeX509:
			if len(cred.Certificates) == 0 {
				return security.NewValidationError(security.ErrInvalidSecurityToken, "no certificate in %s", id)
			}
			tok = security.NewX509Token(id, cred.Certificates, nil)
		default:
			tok = security.NewSymmetricToken(id, typ, cred.SecretKey)
		}
	}
	return sec.RegisterProvider(security.NewStaticProvider(tok))
}

func handleDerivedKeyToken(p *SecurityHeaderProcessor, c *chain.Chain, h headerElement) error {
	id := idOf(h.el)
	if id == "" {
		return security.NewValidationError(security.ErrInvalidSecurityToken, "DerivedKeyToken without Id")
	}
	wrappingID, err := tokenReference(h.el)
	if err != nil {
		return err
	}
	sec := c.Security()
	if _, ok := sec.Provider(wrappingID); !ok {
		return security.NewValidationError(security.ErrSecurityTokenUnavailable, "DerivedKeyToken %s refers to unknown token %q", id, wrappingID)
	}

	params := derivedkey.Params{
		Algorithm: h.el.SelectAttrValue("Algorithm", security.AlgPSHA1),
		Label:     childText(h.el, security.NameLabel),
	}
	if _, err := p.props.DerivedKeyRegistry.Lookup(params.Algorithm); err != nil {
		return security.WrapValidationError(security.ErrUnsupportedAlgorithm, err, "DerivedKeyToken %s", id)
	}
	nonce := childText(h.el, security.NameSCNonce)
	if nonce == "" {
		return security.NewValidationError(security.ErrInvalidSecurityToken, "DerivedKeyToken %s without Nonce", id)
	}
	if params.Nonce, err = decodeBase64(nonce); err != nil {
		return security.WrapValidationError(security.ErrInvalidSecurityToken, err, "DerivedKeyToken %s Nonce", id)
	}
	if params.Length, err = parseInt(h.el, security.NameLength, derivedkey.DefaultLength); err != nil {
		return security.WrapValidationError(security.ErrInvalidSecurityToken, err, "DerivedKeyToken %s Length", id)
	}
	if params.Length < 1 || params.Length > derivedkey.MaxLength {
		return security.NewValidationError(security.ErrInvalidSecurityToken, "DerivedKeyToken %s Length %d out of range", id, params.Length)
	}
	generation, err := parseInt(h.el, nameGeneration, 0)
	if err != nil {
		return security.WrapValidationError(security.ErrInvalidSecurityToken, err, "DerivedKeyToken %s Generation", id)
	}
	if generation < 0 || generation > derivedkey.MaxOffset/params.Length {
		return security.NewValidationError(security.ErrInvalidSecurityToken, "DerivedKeyToken %s Generation %d out of range", id, generation)
	}
	if params.Offset, err = parseInt(h.el, security.NameOffset, generation*params.Length); err != nil {
		return security.WrapValidationError(security.ErrInvalidSecurityToken, err, "DerivedKeyToken %s Offset", id)
	}
	if params.Offset < 0 || params.Offset > derivedkey.MaxOffset {
		return security.NewValidationError(security.ErrInvalidSecurityToken, "DerivedKeyToken %s Offset %d out of range", id, params.Offset)
	}

	provider := security.NewCachedProvider(id, derivedkey.Resolver{
		TokenID:    id,
		WrappingID: wrappingID,
		Params:     params,
		Context:    sec,
		Callbacks:  p.props.Callbacks,
		Registry:   p.props.DerivedKeyRegistry,
	})
	if err := sec.RegisterProvider(provider); err != nil {
		return err
	}
	c.Logger().Debug("derived key token registered", "token_id", id, "wrapping_token_id", wrappingID)
	return sec.RegisterEvent(security.TokenEvent{
		Kind:      security.EventDerivedKeyToken,
		TokenID:   id,
		TokenType: security.TokenTypeDerivedKey,
	})
}
