package wss

import (
	"context"
	"io"

	"github.com/sirosfoundation/go-wssec/pkg/chain"
	"github.com/sirosfoundation/go-wssec/pkg/inbound"
	"github.com/sirosfoundation/go-wssec/pkg/policy"
	"github.com/sirosfoundation/go-wssec/pkg/security"
	"github.com/sirosfoundation/go-wssec/pkg/xmlstream"
)

// Inbound verifies messages with a fixed set of properties and an
// optional policy. It is safe for concurrent use.
type Inbound struct {
	props inbound.Properties
	opts  options
}

// NewInbound checks props and returns the pipeline.
func NewInbound(props inbound.Properties, opts ...Option) (*Inbound, error) {
	in := &Inbound{props: props, opts: newOptions(DirectionInbound, opts)}
	if p := in.opts.policy; p != nil {
		if err := p.Validate(); err != nil {
			return nil, err
		}
		in.props.WatchedElements = watched(props.WatchedElements, p)
	}
	if err := inbound.Configure(chain.New(context.Background(), nil, nil), in.props); err != nil {
		return nil, err
	}
	return in, nil
}

// watched adds the elements of p's element assertions to names so that
// unprotected ones are reported.
func watched(names []xmlstream.Name, p *policy.Policy) []xmlstream.Name {
	out := append([]xmlstream.Name(nil), names...)
	for _, a := range p.Assertions {
		switch a.Kind {
		case policy.KindSignedElements, policy.KindEncryptedElements, policy.KindContentEncryptedElements:
			out = append(out, a.Elements...)
		}
	}
	return out
}

// Process verifies the message read from r and writes the decrypted
// message to w. A validation failure is returned as the error and nothing
// is written. A policy failure leaves the output written and is reported
// by Result.Err.
func (in *Inbound) Process(ctx context.Context, r io.Reader, w io.Writer) (*Result, error) {
	sec := security.NewSecurityContext()
	engine := policy.NewEngine(in.opts.policy, policy.WithLogger(in.opts.logger))
	sec.AddListener(engine)

	err := process(ctx, sec, in.opts.logger, func(c *chain.Chain) error {
		return inbound.Configure(c, in.props)
	}, r, w)
	if err != nil {
		in.opts.record(DirectionInbound, err)
		in.opts.logger.Warn("message rejected", "error", err, "kind", security.ErrorKind(err))
		return nil, err
	}

	res := &Result{
		Principal: sec.GetString(security.PropAuthenticatedPrincipal),
		Events:    sec.Events(),
		Verdict:   engine.Verdict(),
	}
	in.opts.record(DirectionInbound, res.Err())
	if n := len(res.Verdict.Violations); n > 0 {
		if in.opts.recorder != nil {
			in.opts.recorder.PolicyViolations(n)
		}
		in.opts.logger.Warn("message violates policy", "violations", n, "principal", res.Principal)
	} else {
		in.opts.logger.Debug("message verified", "principal", res.Principal, "events", len(res.Events))
	}
	return res, nil
}
