package inbound

import (
	"bytes"
	"strconv"

	"github.com/sirosfoundation/go-wssec/pkg/chain"
	"github.com/sirosfoundation/go-wssec/pkg/security"
	"github.com/sirosfoundation/go-wssec/pkg/xmlstream"
)

func handleReferenceList(p *SecurityHeaderProcessor, c *chain.Chain, h headerElement) error {
	ids := make(map[string]bool)
	for _, dr := range children(h.el, security.NameDataReference) {
		id, err := localReference(dr.SelectAttrValue("URI", ""))
		if err != nil {
			return err
		}
		ids[id] = true
	}
	if len(ids) == 0 {
		return security.NewValidationError(security.ErrInvalidSecurity, "empty ReferenceList")
	}
	p.referenceList++
	c.AddProcessor(newDecryptProcessor(p.referenceList, p.props, ids, p.outsidePath()))
	return nil
}

// encryptedTarget is where a captured xenc:EncryptedData sits.
type encryptedTarget struct {
	parent         xmlstream.Name
	parentIsPart   bool
	parentIsHeader bool
}

// DecryptProcessor replaces each xenc:EncryptedData of one ReferenceList
// with the events of its plaintext.
type DecryptProcessor struct {
	chain.Base
	props   *Properties
	pending map[string]bool
	pos     chain.Position

	capturing bool
	events    []xmlstream.Event
	depth     int
	target    encryptedTarget
}

func newDecryptProcessor(n int, props *Properties, ids map[string]bool, path []xmlstream.Name) *DecryptProcessor {
	return &DecryptProcessor{
		Base:    chain.NewBase("DecryptInputProcessor-"+strconv.Itoa(n), chain.PreProcessing),
		props:   props,
		pending: ids,
		pos:     chain.NewPosition(path),
	}
}

// ProcessEvent replaces referenced EncryptedData with its plaintext events.
func (p *DecryptProcessor) ProcessEvent(ev xmlstream.Event, c *chain.Chain) error {
	if !p.capturing && ev.IsStartOf(security.NameEncryptedData) && p.pending[security.IDOf(ev)] {
		delete(p.pending, security.IDOf(ev))
		parent, _ := p.pos.Current()
		soapNS := p.pos.SOAPNamespace()
		p.target = encryptedTarget{
			parent:         parent,
			parentIsPart:   p.pos.IsPart(),
			parentIsHeader: p.pos.Depth() == 2 && soapNS != "" && parent.Space == soapNS && parent.Local == "Header",
		}
		p.capturing = true
	}

	done := p.pos.Observe(ev)
	defer done()
	if !p.capturing {
		return c.ProcessEvent(ev)
	}

	p.events = append(p.events, ev)
	switch {
	case ev.IsStart():
		p.depth++
	case ev.IsEnd():
		p.depth--
	}
	if p.depth > 0 {
		return nil
	}
	events := p.events
	p.events, p.capturing = nil, false
	return p.decrypt(events, c)
}

func (p *DecryptProcessor) decrypt(events []xmlstream.Event, c *chain.Chain) error {
	ed, err := xmlstream.ToElement(events)
	if err != nil {
		return security.WrapValidationError(security.ErrInvalidSecurity, err, "parsing EncryptedData")
	}
	id := idOf(ed)
	alg := algorithmOf(ed, security.NameEncryptionMethod)
	keyInfo := child(ed, security.NameKeyInfo)
	if keyInfo == nil {
		return security.NewValidationError(security.ErrInvalidSecurity, "EncryptedData %s without KeyInfo", id)
	}
	tokenID, err := tokenReference(keyInfo)
	if err != nil {
		return err
	}
	tok, err := resolveToken(c, p.props, tokenID)
	if err != nil {
		return err
	}
	key, err := tok.SecretKey(alg)
	if err != nil {
		return err
	}
	cipherData := child(ed, security.NameCipherData)
	if cipherData == nil {
		return security.NewValidationError(security.ErrInvalidSecurity, "EncryptedData %s without CipherData", id)
	}
	ciphertext, err := decodeBase64(childText(cipherData, security.NameCipherValue))
	if err != nil {
		return security.WrapValidationError(security.ErrInvalidSecurity, err, "CipherValue of %s", id)
	}
	plaintext, err := security.DecryptContent(alg, key, ciphertext)
	if err != nil {
		c.Logger().Warn("decryption failed", "id", id, "token_id", tokenID)
		return err
	}

	r := xmlstream.NewReaderWithScope(bytes.NewReader(plaintext), c.Document().Scope().Bindings())
	decrypted, err := xmlstream.ReadAll(r)
	if err != nil {
		return security.WrapValidationError(security.ErrFailedCheck, err, "parsing plaintext of %s", id)
	}
	if n := len(decrypted); n > 0 && decrypted[n-1].Kind == xmlstream.KindEndDocument {
		decrypted = decrypted[:n-1]
	}

	sev, err := p.event(ed.SelectAttrValue("Type", security.EncTypeElement), decrypted, tokenID)
	if err != nil {
		return err
	}
	if err := c.ProcessEvents(decrypted); err != nil {
		return err
	}
	c.Logger().Debug("encrypted data decrypted", "id", id, "token_id", tokenID)
	return c.Security().RegisterEvent(sev)
}

// event describes what a decrypted EncryptedData protected.
func (p *DecryptProcessor) event(typ string, decrypted []xmlstream.Event, tokenID string) (security.Event, error) {
	switch typ {
	case security.EncTypeContent:
		if p.target.parentIsPart {
			return security.EncryptedPartEvent{Element: p.target.parent, TokenID: tokenID}, nil
		}
		return security.ContentEncryptedElementEvent{Element: p.target.parent, TokenID: tokenID}, nil
	case security.EncTypeElement:
		var roots []xmlstream.Name
		depth := 0
		for _, ev := range decrypted {
			switch {
			case ev.IsStart():
				if depth == 0 {
					roots = append(roots, ev.Name)
				}
				depth++
			case ev.IsEnd():
				depth--
			}
		}
		if len(roots) != 1 {
			return nil, security.NewValidationError(security.ErrFailedCheck, "decrypted element content has %d roots", len(roots))
		}
		if p.target.parentIsHeader {
			return security.EncryptedPartEvent{Element: roots[0], TokenID: tokenID}, nil
		}
		return security.EncryptedElementEvent{Element: roots[0], TokenID: tokenID}, nil
	default:
		return nil, security.NewValidationError(security.ErrUnsupportedAlgorithm, "EncryptedData type %q", typ)
	}
}

// Finish fails if a referenced EncryptedData never appeared.
func (p *DecryptProcessor) Finish(*chain.Chain) error {
	if len(p.pending) == 0 {
		return nil
	}
	return security.NewValidationError(security.ErrInvalidSecurity, "encrypted data not found: %s", missing(p.pending))
}
