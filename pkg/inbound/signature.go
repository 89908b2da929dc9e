package inbound

import (
	"crypto/subtle"
	"strconv"

	"github.com/beevik/etree"

	"github.com/sirosfoundation/go-wssec/pkg/chain"
	"github.com/sirosfoundation/go-wssec/pkg/security"
	"github.com/sirosfoundation/go-wssec/pkg/xmlstream"
)

// reference is one ds:Reference of a verified SignedInfo.
type reference struct {
	id           string
	digestMethod string
	digest       []byte
}

func handleSignature(p *SecurityHeaderProcessor, c *chain.Chain, h headerElement) error {
	signedInfoEvents := findSubtree(h.events, security.NameSignedInfo)
	signedInfo := child(h.el, security.NameSignedInfo)
	if signedInfo == nil || signedInfoEvents == nil {
		return security.NewValidationError(security.ErrInvalidSecurity, "Signature without SignedInfo")
	}
	if alg := algorithmOf(signedInfo, security.NameCanonicalizationMethod); alg != security.AlgExcC14N {
		return security.NewValidationError(security.ErrUnsupportedAlgorithm, "canonicalization method %q", alg)
	}
	method := algorithmOf(signedInfo, security.NameSignatureMethod)
	value, err := decodeBase64(childText(h.el, security.NameSignatureValue))
	if err != nil || len(value) == 0 {
		return security.NewValidationError(security.ErrInvalidSecurity, "missing or malformed SignatureValue")
	}
	keyInfo := child(h.el, security.NameKeyInfo)
	if keyInfo == nil {
		return security.NewValidationError(security.ErrInvalidSecurity, "Signature without KeyInfo")
	}
	tokenID, err := tokenReference(keyInfo)
	if err != nil {
		return err
	}
	tok, err := resolveToken(c, p.props, tokenID)
	if err != nil {
		return err
	}

	canonical, err := security.CanonicalizeEvents(signedInfoEvents)
	if err != nil {
		return security.WrapValidationError(security.ErrInvalidSecurity, err, "canonicalizing SignedInfo")
	}
	if err := security.VerifySignatureValue(method, tok, canonical, value); err != nil {
		return err
	}

	refs, err := parseReferences(signedInfo)
	if err != nil {
		return err
	}
	sec := c.Security()
	var pending []reference
	for _, ref := range refs {
		events, ok := p.ids[ref.id]
		if !ok {
			pending = append(pending, ref)
			continue
		}
		if err := verifyDigest(ref, events); err != nil {
			return err
		}
		if err := sec.RegisterEvent(security.SignedElementEvent{Element: events[0].Name, TokenID: tokenID}); err != nil {
			return err
		}
	}

	p.signatures++
	if len(pending) > 0 {
		c.AddProcessor(newVerifyProcessor(p.signatures, tokenID, pending, p.outsidePath()))
	}
	c.Logger().Debug("signature value verified", "token_id", tokenID, "references", len(refs), "pending", len(pending))
	return sec.RegisterEvent(security.SignatureValueEvent{Value: value, TokenID: tokenID})
}

func algorithmOf(el *etree.Element, name xmlstream.Name) string {
	if ch := child(el, name); ch != nil {
		return ch.SelectAttrValue("Algorithm", "")
	}
	return ""
}

func parseReferences(signedInfo *etree.Element) ([]reference, error) {
	var refs []reference
	for _, r := range children(signedInfo, security.NameDSReference) {
		id, err := localReference(r.SelectAttrValue("URI", ""))
		if err != nil {
			return nil, err
		}
		if transforms := child(r, security.NameTransforms); transforms != nil {
			for _, t := range children(transforms, security.NameTransform) {
				if alg := t.SelectAttrValue("Algorithm", ""); alg != security.AlgExcC14N {
					return nil, security.NewValidationError(security.ErrUnsupportedAlgorithm, "transform %q", alg)
				}
			}
		}
		digest, err := decodeBase64(childText(r, security.NameDigestValue))
		if err != nil || len(digest) == 0 {
			return nil, security.NewValidationError(security.ErrInvalidSecurity, "missing or malformed DigestValue for %q", id)
		}
		refs = append(refs, reference{
			id:           id,
			digestMethod: algorithmOf(r, security.NameDigestMethod),
			digest:       digest,
		})
	}
	if len(refs) == 0 {
		return nil, security.NewValidationError(security.ErrInvalidSecurity, "SignedInfo without references")
	}
	return refs, nil
}

func verifyDigest(ref reference, events []xmlstream.Event) error {
	canonical, err := security.CanonicalizeEvents(events)
	if err != nil {
		return security.WrapValidationError(security.ErrInvalidSecurity, err, "canonicalizing %q", ref.id)
	}
	digest, err := security.Digest(ref.digestMethod, canonical)
	if err != nil {
		return err
	}
	if subtle.ConstantTimeCompare(digest, ref.digest) != 1 {
		return security.NewValidationError(security.ErrFailedCheck, "digest mismatch for %q", ref.id)
	}
	return nil
}

type capture struct {
	ref    reference
	name   xmlstream.Name
	part   bool
	depth  int
	events []xmlstream.Event
}

// VerifyProcessor digests the elements a signature refers to outside the
// security header as they pass.
type VerifyProcessor struct {
	chain.Base
	tokenID  string
	pending  map[string]reference
	verified map[string]bool
	active   []*capture
	pos      chain.Position
}

func newVerifyProcessor(n int, tokenID string, refs []reference, path []xmlstream.Name) *VerifyProcessor {
	p := &VerifyProcessor{
		Base:     chain.NewBase("SignatureReferenceVerifyInputProcessor-"+strconv.Itoa(n), chain.Processing),
		tokenID:  tokenID,
		pending:  make(map[string]reference, len(refs)),
		verified: make(map[string]bool, len(refs)),
		pos:      chain.NewPosition(path),
	}
	for _, ref := range refs {
		p.pending[ref.id] = ref
	}
	return p
}

// ProcessEvent digests referenced elements as they stream past.
func (p *VerifyProcessor) ProcessEvent(ev xmlstream.Event, c *chain.Chain) error {
	done := p.pos.Observe(ev)
	defer done()
	if ev.IsStart() {
		if id := security.IDOf(ev); id != "" {
			if p.verified[id] {
				return security.NewValidationError(security.ErrInvalidSecurity, "duplicate id %q", id)
			}
			if ref, ok := p.pending[id]; ok {
				delete(p.pending, id)
				p.verified[id] = true
				p.active = append(p.active, &capture{ref: ref, name: ev.Name, part: p.pos.IsPart()})
			}
		}
	}
	if err := p.capture(ev, c); err != nil {
		return err
	}
	return c.ProcessEvent(ev)
}

func (p *VerifyProcessor) capture(ev xmlstream.Event, c *chain.Chain) error {
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
		if err := verifyDigest(cp.ref, cp.events); err != nil {
			return err
		}
		var sev security.Event = security.SignedElementEvent{Element: cp.name, TokenID: p.tokenID}
		if cp.part {
			sev = security.SignedPartEvent{Element: cp.name, TokenID: p.tokenID}
		}
		if err := c.Security().RegisterEvent(sev); err != nil {
			return err
		}
	}
	p.active = kept
	return nil
}

// Finish fails if a referenced element never appeared.
func (p *VerifyProcessor) Finish(*chain.Chain) error {
	if len(p.pending) == 0 {
		return nil
	}
	return security.NewValidationError(security.ErrInvalidSecurity, "signed elements not found: %s", missing(p.pending))
}
