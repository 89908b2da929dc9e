package outbound

import (
	"time"

	"github.com/sirosfoundation/go-wssec/pkg/chain"
	"github.com/sirosfoundation/go-wssec/pkg/security"
	"github.com/sirosfoundation/go-wssec/pkg/xmlstream"
)

// TimestampProcessor writes wsu:Timestamp into the security header.
type TimestampProcessor struct {
	chain.Base
	ttl time.Duration
	now func() time.Time
}

// NewTimestampProcessor returns a processor for timestamps valid for ttl.
func NewTimestampProcessor(props *Properties) *TimestampProcessor {
	return &TimestampProcessor{
		Base: chain.NewBase("TimestampOutputProcessor", chain.Processing),
		ttl:  props.TimestampTTL,
		now:  props.Now,
	}
}

// ProcessEvent emits the wsu:Timestamp once the security header opens.
func (p *TimestampProcessor) ProcessEvent(ev xmlstream.Event, c *chain.Chain) error {
	if err := c.ProcessEvent(ev); err != nil {
		return err
	}
	if !openedSecurityHeader(ev, c) {
		return nil
	}
	c.RemoveProcessor(p)

	id := security.GenerateID(security.IDPrefixTimestamp)
	created := p.now()
	el := xmlstream.NewElement(security.NameTimestamp)
	setID(el, id)
	xmlstream.AddTextElement(el, security.NameCreated, formatTime(created))
	xmlstream.AddTextElement(el, security.NameExpires, formatTime(created.Add(p.ttl)))
	c.Logger().Debug("timestamp added", "token_id", id)
	if err := emitElement(c, p, el); err != nil {
		return err
	}
	return c.Security().RegisterEvent(security.TimestampEvent{ID: id, Created: created, Expires: created.Add(p.ttl)})
}
