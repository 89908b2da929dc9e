package security

import (
	"context"
	"sort"
)

// Property keys understood by the pipeline processors.
const (
	// PropUseThisTokenIDForDerivedKey names the token a derived key is
	// computed from.
	PropUseThisTokenIDForDerivedKey = "use-this-token-id-for-derived-key"
	// PropUseThisTokenIDForSignature names the token backing the next signature.
	PropUseThisTokenIDForSignature = "use-this-token-id-for-signature"
	// PropUseThisTokenIDForEncryption names the token backing encryption.
	PropUseThisTokenIDForEncryption = "use-this-token-id-for-encryption"
	// PropRequestSecurityEvents holds the []Event observed on the request
	// an outbound response answers.
	PropRequestSecurityEvents = "request-security-events"
	// PropAuthenticatedPrincipal holds the principal of the last validated
	// credential.
	PropAuthenticatedPrincipal = "authenticated-principal"
)

// SecurityContext is the per-exchange property store and token provider
// registry. It is not safe for concurrent use.
type SecurityContext struct {
	props     map[string]any
	providers map[string]TokenProvider
	listeners []EventListener
	events    []Event
}

// NewSecurityContext returns an empty context.
func NewSecurityContext() *SecurityContext {
	return &SecurityContext{
		props:     make(map[string]any),
		providers: make(map[string]TokenProvider),
	}
}

// Put stores value under key, replacing any previous value.
func (c *SecurityContext) Put(key string, value any) {
	c.props[key] = value
}

// Get returns the value stored under key.
func (c *SecurityContext) Get(key string) (any, bool) {
	v, ok := c.props[key]
	return v, ok
}

// GetString returns the string stored under key, or "".
func (c *SecurityContext) GetString(key string) string {
	s, _ := c.props[key].(string)
	return s
}

// Remove deletes key.
func (c *SecurityContext) Remove(key string) {
	delete(c.props, key)
}

// Value returns the value stored under key if it has type T.
func Value[T any](c *SecurityContext, key string) (T, bool) {
	v, ok := c.props[key].(T)
	return v, ok
}

// RegisterProvider adds p under its id. Token ids are unique per exchange;
// registering an id twice is a configuration error.
func (c *SecurityContext) RegisterProvider(p TokenProvider) error {
	if p == nil || p.ID() == "" {
		return Configurationf("token provider without id")
	}
	if _, exists := c.providers[p.ID()]; exists {
		return Configurationf("duplicate token id %q", p.ID())
	}
	c.providers[p.ID()] = p
	return nil
}

// Provider returns the provider registered under id.
func (c *SecurityContext) Provider(id string) (TokenProvider, bool) {
	p, ok := c.providers[id]
	return p, ok
}

// ProviderIDs returns the registered token ids in sorted order.
func (c *SecurityContext) ProviderIDs() []string {
	ids := make([]string, 0, len(c.providers))
	for id := range c.providers {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// ResolveToken resolves the token registered under id.
func (c *SecurityContext) ResolveToken(ctx context.Context, id string, crypto Crypto) (Token, error) {
	if id == "" {
		return nil, Configurationf("no token id selected")
	}
	p, ok := c.providers[id]
	if !ok {
		return nil, Configurationf("no token provider registered for id %q", id)
	}
	return p.SecurityToken(ctx, crypto)
}

// TokenForProperty resolves the token whose id is stored under key.
func (c *SecurityContext) TokenForProperty(ctx context.Context, key string, crypto Crypto) (Token, error) {
	id := c.GetString(key)
	if id == "" {
		return nil, Configurationf("property %s is not set", key)
	}
	return c.ResolveToken(ctx, id, crypto)
}

// AddListener registers l for every event of this exchange.
func (c *SecurityContext) AddListener(l EventListener) {
	c.listeners = append(c.listeners, l)
}

// RegisterEvent records ev and passes it to the listeners. The first
// listener error is returned and aborts processing.
func (c *SecurityContext) RegisterEvent(ev Event) error {
	c.events = append(c.events, ev)
	for _, l := range c.listeners {
		if err := l.OnSecurityEvent(ev); err != nil {
			return err
		}
	}
	return nil
}

// Events returns the events registered so far in order.
func (c *SecurityContext) Events() []Event {
	return append([]Event(nil), c.events...)
}
