package outbound

import (
	"github.com/sirosfoundation/go-wssec/pkg/chain"
)

// Configure validates props and adds the output processors for its actions
// to c, in action order behind the security header processor.
func Configure(c *chain.Chain, props Properties) error {
	p := &props
	p.applyDefaults()
	if err := p.validate(); err != nil {
		return err
	}

	c.AddProcessor(NewSecurityHeaderProcessor())
	signing := false
	addSignature := func() {
		if signing {
			return
		}
		signing = true
		switch {
		case !p.symmetricBase():
			c.AddProcessor(NewBinarySecurityTokenProcessor(p))
		case p.DerivedKeys:
			c.AddProcessor(NewDerivedKeyTokenProcessor(p, PurposeSignature))
		}
		c.AddProcessor(NewSignatureProcessor(p))
	}

	for _, action := range p.Actions {
		switch action {
		case ActionTimestamp:
			c.AddProcessor(NewTimestampProcessor(p))
		case ActionUsernameToken:
			c.AddProcessor(NewUsernameTokenProcessor(p))
		case ActionUsernameTokenSignature:
			c.AddProcessor(NewUsernameTokenProcessor(p))
			addSignature()
		case ActionSignature:
			addSignature()
		case ActionEncrypt:
			if p.DerivedKeys {
				c.AddProcessor(NewDerivedKeyTokenProcessor(p, PurposeEncryption))
			}
			c.AddProcessor(NewEncryptProcessor(p))
		}
	}
	c.Logger().Debug("output chain configured", "processors", c.Processors())
	return nil
}
