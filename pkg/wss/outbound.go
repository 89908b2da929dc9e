package wss

import (
	"context"
	"io"

	"github.com/sirosfoundation/go-wssec/pkg/chain"
	"github.com/sirosfoundation/go-wssec/pkg/outbound"
	"github.com/sirosfoundation/go-wssec/pkg/security"
)

// Outbound secures messages with a fixed set of properties. It is safe
// for concurrent use; every message gets its own chain.
type Outbound struct {
	props outbound.Properties
	opts  options
}

// NewOutbound checks props and returns the pipeline.
func NewOutbound(props outbound.Properties, opts ...Option) (*Outbound, error) {
	o := &Outbound{props: props, opts: newOptions(DirectionOutbound, opts)}
	if err := outbound.Configure(chain.New(context.Background(), nil, nil), props); err != nil {
		return nil, err
	}
	return o, nil
}

// Process secures the message read from r and writes it to w.
func (o *Outbound) Process(ctx context.Context, r io.Reader, w io.Writer) (*Result, error) {
	return o.process(ctx, security.NewSecurityContext(), r, w)
}

// Respond secures a response to a request whose verification produced
// request.
func (o *Outbound) Respond(ctx context.Context, request *Result, r io.Reader, w io.Writer) (*Result, error) {
	sec := security.NewSecurityContext()
	if request != nil {
		sec.Put(security.PropRequestSecurityEvents, request.Events)
	}
	return o.process(ctx, sec, r, w)
}

func (o *Outbound) process(ctx context.Context, sec *security.SecurityContext, r io.Reader, w io.Writer) (*Result, error) {
	err := process(ctx, sec, o.opts.logger, func(c *chain.Chain) error {
		return outbound.Configure(c, o.props)
	}, r, w)
	o.opts.record(DirectionOutbound, err)
	if err != nil {
		o.opts.logger.Warn("failed to secure message", "error", err, "kind", security.ErrorKind(err))
		return nil, err
	}

	res := &Result{Events: sec.Events()}
	for _, ev := range res.Events {
		if te, ok := ev.(security.TokenEvent); ok && te.Principal != "" {
			res.Principal = te.Principal
			break
		}
	}
	o.opts.logger.Debug("message secured", "events", len(res.Events))
	return res, nil
}
