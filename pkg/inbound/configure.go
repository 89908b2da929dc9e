package inbound

import "github.com/sirosfoundation/go-wssec/pkg/chain"

// Configure adds the input processors for props to c. Decryption and
// reference verification are added as the security header is read.
func Configure(c *chain.Chain, props Properties) error {
	props.applyDefaults()
	if err := props.validate(); err != nil {
		return err
	}
	p := &props
	c.AddProcessor(NewSecurityHeaderProcessor(p))
	c.AddProcessor(NewSecurityCoverageProcessor(p))
	c.Logger().Debug("input chain configured", "processors", c.Processors(), "actions", len(p.Actions))
	return nil
}
