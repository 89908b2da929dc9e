package inbound

import (
	"github.com/sirosfoundation/go-wssec/pkg/chain"
	"github.com/sirosfoundation/go-wssec/pkg/security"
	"github.com/sirosfoundation/go-wssec/pkg/xmlstream"
)

// SecurityCoverageProcessor checks at the end of the document that the
// required actions were performed and reports every SOAP part and watched
// element no reference covered.
type SecurityCoverageProcessor struct {
	chain.Base
	props   *Properties
	pos     chain.Position
	parts   []xmlstream.Name
	watched []xmlstream.Name
}

// NewSecurityCoverageProcessor returns the coverage processor.
func NewSecurityCoverageProcessor(props *Properties) *SecurityCoverageProcessor {
	return &SecurityCoverageProcessor{
		Base:  chain.NewBase("SecurityCoverageInputProcessor", chain.PostProcessing),
		props: props,
	}
}

// ProcessEvent records the parts and watched elements that stream past.
func (p *SecurityCoverageProcessor) ProcessEvent(ev xmlstream.Event, c *chain.Chain) error {
	done := p.pos.Observe(ev)
	defer done()
	if ev.IsStart() {
		if p.pos.IsPart() {
			p.parts = appendName(p.parts, ev.Name)
		}
		for _, w := range p.props.WatchedElements {
			if w.Space == ev.Name.Space && (w.Local == "*" || w.Local == ev.Name.Local) {
				p.watched = appendName(p.watched, ev.Name)
			}
		}
	}
	return c.ProcessEvent(ev)
}

func appendName(names []xmlstream.Name, n xmlstream.Name) []xmlstream.Name {
	for _, m := range names {
		if m.Equal(n) {
			return names
		}
	}
	return append(names, n)
}

// Finish reports unprotected parts and checks the required actions.
func (p *SecurityCoverageProcessor) Finish(c *chain.Chain) error {
	sec := c.Security()
	events := sec.Events()
	for _, a := range p.props.Actions {
		if !performed(events, a) {
			return security.NewValidationError(security.ErrInvalidSecurity, "required action %s not performed", a)
		}
	}

	var report []security.Event
	for _, name := range p.parts {
		if !signed(events, name, true) {
			report = append(report, security.SignedPartEvent{Element: name, NotSigned: true})
		}
		if !encrypted(events, name, true) {
			report = append(report, security.EncryptedPartEvent{Element: name, NotEncrypted: true})
		}
	}
	for _, name := range p.watched {
		if !signed(events, name, false) {
			report = append(report, security.SignedElementEvent{Element: name, NotSigned: true})
		}
		if !encrypted(events, name, false) {
			report = append(report,
				security.EncryptedElementEvent{Element: name, NotEncrypted: true},
				security.ContentEncryptedElementEvent{Element: name, NotEncrypted: true})
		}
	}
	for _, ev := range report {
		if err := sec.RegisterEvent(ev); err != nil {
			return err
		}
	}
	if len(report) > 0 {
		c.Logger().Debug("unprotected elements reported", "count", len(report))
	}
	return nil
}

func performed(events []security.Event, a Action) bool {
	for _, ev := range events {
		switch e := ev.(type) {
		case security.TimestampEvent:
			if a == ActionTimestamp {
				return true
			}
		case security.TokenEvent:
			if a == ActionUsernameToken && e.Kind == security.EventUsernameToken {
				return true
			}
		case security.SignatureValueEvent:
			if a == ActionSignature {
				return true
			}
		case security.EncryptedPartEvent:
			if a == ActionEncrypt && !e.NotEncrypted {
				return true
			}
		case security.EncryptedElementEvent:
			if a == ActionEncrypt && !e.NotEncrypted {
				return true
			}
		case security.ContentEncryptedElementEvent:
			if a == ActionEncrypt && !e.NotEncrypted {
				return true
			}
		}
	}
	return false
}

// signed reports whether some event signed name. Parts are only covered
// by part events.
func signed(events []security.Event, name xmlstream.Name, part bool) bool {
	for _, ev := range events {
		switch e := ev.(type) {
		case security.SignedPartEvent:
			if !e.NotSigned && e.Element.Equal(name) {
				return true
			}
		case security.SignedElementEvent:
			if !part && !e.NotSigned && e.Element.Equal(name) {
				return true
			}
		}
	}
	return false
}

func encrypted(events []security.Event, name xmlstream.Name, part bool) bool {
	for _, ev := range events {
		switch e := ev.(type) {
		case security.EncryptedPartEvent:
			if !e.NotEncrypted && e.Element.Equal(name) {
				return true
			}
		case security.EncryptedElementEvent:
			if !part && !e.NotEncrypted && e.Element.Equal(name) {
				return true
			}
		case security.ContentEncryptedElementEvent:
			if !part && !e.NotEncrypted && e.Element.Equal(name) {
				return true
			}
		}
	}
	return false
}
