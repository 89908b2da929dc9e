package inbound

import (
	"time"

	"github.com/sirosfoundation/go-wssec/pkg/derivedkey"
	"github.com/sirosfoundation/go-wssec/pkg/replay"
	"github.com/sirosfoundation/go-wssec/pkg/security"
	"github.com/sirosfoundation/go-wssec/pkg/validator"
	"github.com/sirosfoundation/go-wssec/pkg/xmlstream"
)

// Action is a kind of security processing a message must carry. The
// names match the outbound actions.
type Action string

const (
	ActionTimestamp     Action = "Timestamp"
	ActionUsernameToken Action = "UsernameToken"
	ActionSignature     Action = "Signature"
	ActionEncrypt       Action = "Encrypt"
)

// DefaultReplayTTL is how long a UsernameToken nonce is remembered when
// the token carries no usable Created time.
const DefaultReplayTTL = 300 * time.Second

// Properties configure an input chain.
type Properties struct {
	// Actions must all have been performed on the message. A message
	// without a security header fails when Actions is not empty.
	Actions []Action

	// Actor selects the security header addressed to this role. The empty
	// value selects the header without actor or role.
	Actor string

	Validators         *validator.Registry
	Callbacks          security.CallbackHandler
	Crypto             security.Crypto
	DerivedKeyRegistry *derivedkey.Registry

	// Replay remembers timestamps and UsernameToken nonces. Nil disables
	// replay detection.
	Replay    replay.Cache
	ReplayTTL time.Duration

	// WatchedElements are reported as not signed and not encrypted at the
	// end of the document unless some reference covered them. A "*"
	// local name watches every element of the namespace.
	WatchedElements []xmlstream.Name

	// Now is the clock; nil means time.Now.
	Now func() time.Time
}

func (p *Properties) applyDefaults() {
	if p.Validators == nil {
		p.Validators = validator.NewDefaultRegistry()
	}
	if p.DerivedKeyRegistry == nil {
		p.DerivedKeyRegistry = derivedkey.Default
	}
	if p.ReplayTTL == 0 {
		p.ReplayTTL = DefaultReplayTTL
	}
	if p.Now == nil {
		p.Now = time.Now
	}
}

func (p *Properties) validate() error {
	for _, a := range p.Actions {
		switch a {
		case ActionTimestamp, ActionUsernameToken, ActionSignature, ActionEncrypt:
		default:
			return security.Configurationf("unknown inbound action %q", a)
		}
	}
	if p.ReplayTTL < 0 {
		return security.Configurationf("negative replay ttl")
	}
	return nil
}
