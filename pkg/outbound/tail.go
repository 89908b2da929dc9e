package outbound

import (
	"github.com/sirosfoundation/go-wssec/pkg/chain"
	"github.com/sirosfoundation/go-wssec/pkg/security"
	"github.com/sirosfoundation/go-wssec/pkg/xmlstream"
)

// tail forwards events until the security header closes and holds
// everything from the closing tag on.
type tail struct {
	opened  bool
	holding bool
	events  []xmlstream.Event
}

func (t *tail) pass(ev xmlstream.Event, c *chain.Chain) error {
	if !t.holding {
		if ev.IsStartOf(security.NameSecurity) && c.Document().InSecurityHeader() {
			t.opened = true
		}
		if t.opened && ev.IsEndOf(security.NameSecurity) {
			t.holding = true
		}
	}
	if t.holding {
		t.events = append(t.events, ev)
		return nil
	}
	return c.ProcessEvent(ev)
}

func (t *tail) release(c *chain.Chain) error {
	events := t.events
	t.events = nil
	return c.ProcessEvents(events)
}
