package inbound

import (
	"fmt"
	"time"

	"github.com/beevik/etree"

	"github.com/sirosfoundation/go-wssec/pkg/chain"
	"github.com/sirosfoundation/go-wssec/pkg/security"
	"github.com/sirosfoundation/go-wssec/pkg/validator"
	"github.com/sirosfoundation/go-wssec/pkg/xmlstream"
)

// headerElement is one child of the security header.
type headerElement struct {
	el     *etree.Element
	events []xmlstream.Event
}

type headerHandler func(p *SecurityHeaderProcessor, c *chain.Chain, h headerElement) error

var headerHandlers = map[string]headerHandler{
	security.NameTimestamp.String():           handleTimestamp,
	security.NameUsernameToken.String():       handleUsernameToken,
	security.NameBinarySecurityToken.String(): handleBinarySecurityToken,
	security.NameDerivedKeyToken.String():     handleDerivedKeyToken,
	security.NameSignature.String():           handleSignature,
	security.NameReferenceList.String():       handleReferenceList,
}

// SecurityHeaderProcessor buffers the wsse:Security header addressed to
// the configured actor and processes its children before passing it on.
type SecurityHeaderProcessor struct {
	chain.Base
	props *Properties
	pos   chain.Position
	buf   []xmlstream.Event
	depth int
	// ids indexes the elements of the header by id.
	ids           map[string][]xmlstream.Event
	seenTimestamp bool
	signatures    int
	referenceList int
}

// NewSecurityHeaderProcessor returns the header processor.
func NewSecurityHeaderProcessor(props *Properties) *SecurityHeaderProcessor {
	return &SecurityHeaderProcessor{
		Base:  chain.NewBase("SecurityHeaderInputProcessor", chain.PreProcessing),
		props: props,
	}
}

// ProcessEvent buffers the wsse:Security header addressed to us and hands
// its children to their handlers.
func (p *SecurityHeaderProcessor) ProcessEvent(ev xmlstream.Event, c *chain.Chain) error {
	done := p.pos.Observe(ev)
	defer done()

	if p.depth > 0 {
		p.buf = append(p.buf, ev)
		switch {
		case ev.IsStart():
			p.depth++
		case ev.IsEnd():
			p.depth--
		}
		if p.depth > 0 {
			return nil
		}
		return p.processHeader(c)
	}

	if ev.IsStart() {
		switch {
		case p.isOwnHeader(ev):
			p.depth = 1
			p.buf = append(p.buf[:0], ev)
			return nil
		case p.isBody(ev):
			c.RemoveProcessor(p)
			if len(p.props.Actions) > 0 {
				return security.NewValidationError(security.ErrInvalidSecurity, "message has no security header")
			}
		}
	}
	return c.ProcessEvent(ev)
}

func (p *SecurityHeaderProcessor) isOwnHeader(ev xmlstream.Event) bool {
	if !ev.IsStartOf(security.NameSecurity) || p.pos.Depth() != 3 {
		return false
	}
	soapNS := p.pos.SOAPNamespace()
	parent, _ := p.pos.Parent()
	if soapNS == "" || parent.Space != soapNS || parent.Local != "Header" {
		return false
	}
	actor, ok := ev.Attr(soapNS, "role")
	if !ok {
		actor, _ = ev.Attr(soapNS, "actor")
	}
	return actor == p.props.Actor
}

func (p *SecurityHeaderProcessor) isBody(ev xmlstream.Event) bool {
	soapNS := p.pos.SOAPNamespace()
	return p.pos.Depth() == 2 && soapNS != "" && ev.Name.Space == soapNS && ev.Name.Local == "Body"
}

func (p *SecurityHeaderProcessor) processHeader(c *chain.Chain) error {
	c.RemoveProcessor(p)
	events := p.buf
	p.buf = nil

	ids, err := indexIDs(events)
	if err != nil {
		return err
	}
	p.ids = ids

	handled := 0
	for i := 1; i < len(events)-1; {
		ev := events[i]
		if !ev.IsStart() {
			i++
			continue
		}
		sub := subtree(events, i)
		i += len(sub)
		handle, ok := headerHandlers[ev.Name.String()]
		if !ok {
			c.Logger().Debug("security header element skipped", "element", ev.Name.String())
			continue
		}
		el, err := xmlstream.ToElement(sub)
		if err != nil {
			return security.WrapValidationError(security.ErrInvalidSecurityHeader, err, "parsing %s", ev.Name.Local)
		}
		if err := handle(p, c, headerElement{el: el, events: sub}); err != nil {
			return err
		}
		handled++
	}
	c.Logger().Debug("security header processed", "elements", handled)
	return c.ProcessEvents(events)
}

// outsidePath is the position just after the security header, for
// processors added while it is processed.
func (p *SecurityHeaderProcessor) outsidePath() []xmlstream.Name {
	path := p.pos.Path()
	return path[:len(path)-1]
}

func (p *SecurityHeaderProcessor) requestContext(c *chain.Chain) *validator.RequestContext {
	return &validator.RequestContext{
		Callbacks: p.props.Callbacks,
		Security:  c.Security(),
		Logger:    c.Logger(),
		Now:       p.props.Now,
	}
}

// checkReplay records key until the given time and fails if it was seen
// before.
func (p *SecurityHeaderProcessor) checkReplay(c *chain.Chain, key string, until time.Time) error {
	if p.props.Replay == nil {
		return nil
	}
	fresh, err := p.props.Replay.Add(c.Context(), key, until)
	if err != nil {
		return fmt.Errorf("replay cache: %w", err)
	}
	if !fresh {
		c.Logger().Warn("replayed message rejected", "key", key)
		return security.NewValidationError(security.ErrInvalidSecurity, "message replayed")
	}
	return nil
}
