package wss

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"

	"github.com/sirosfoundation/go-wssec/pkg/chain"
	"github.com/sirosfoundation/go-wssec/pkg/policy"
	"github.com/sirosfoundation/go-wssec/pkg/security"
	"github.com/sirosfoundation/go-wssec/pkg/xmlstream"
)

// Directions reported to a Recorder.
const (
	DirectionOutbound = "outbound"
	DirectionInbound  = "inbound"
)

// Recorder receives the outcome of every processed message.
type Recorder interface {
	// MessageProcessed records a message and its error, nil on success.
	MessageProcessed(direction string, err error)
	// PolicyViolations records the violations of one inbound verdict.
	PolicyViolations(n int)
}

type options struct {
	logger   *slog.Logger
	recorder Recorder
	policy   *policy.Policy
}

// Option configures an Outbound or Inbound.
type Option func(*options)

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithMetrics reports message outcomes to r.
func WithMetrics(r Recorder) Option {
	return func(o *options) { o.recorder = r }
}

// WithPolicy evaluates p over the security events of every inbound
// message. It has no effect on an Outbound.
func WithPolicy(p *policy.Policy) Option {
	return func(o *options) { o.policy = p }
}

func newOptions(direction string, opts []Option) options {
	o := options{logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}
	o.logger = o.logger.With(slog.String("component", "wss"), slog.String("direction", direction))
	return o
}

func (o *options) record(direction string, err error) {
	if o.recorder != nil {
		o.recorder.MessageProcessed(direction, err)
	}
}

// Result describes one processed message.
type Result struct {
	// Principal is the authenticated principal of an inbound message or
	// the user of an outbound one.
	Principal string
	// Events are the security events in the order they were produced.
	Events []security.Event
	// Verdict is the policy outcome of an inbound message. It passes
	// trivially without a policy.
	Verdict policy.Verdict
}

// Err returns the policy violation of an inbound result, if any.
func (r *Result) Err() error {
	return r.Verdict.Err()
}

// configureFunc adds the direction's processors to a chain.
type configureFunc func(c *chain.Chain) error

// process streams r through a chain built by configure and copies the
// output to w once the whole document went through.
func process(ctx context.Context, sec *security.SecurityContext, logger *slog.Logger, configure configureFunc, r io.Reader, w io.Writer) error {
	var buf bytes.Buffer
	xw := xmlstream.NewWriter(&buf)
	c := chain.New(ctx, sec, xw, chain.WithLogger(logger))
	if err := configure(c); err != nil {
		return err
	}

	xr := xmlstream.NewReader(r)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		ev, err := xr.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return err
		}
		if ev.Kind == xmlstream.KindEndDocument {
			if err := c.Finish(); err != nil {
				return err
			}
			if err := xw.Write(ev); err != nil {
				return err
			}
			continue
		}
		if err := c.Push(ev); err != nil {
			return err
		}
	}
	if err := xw.Flush(); err != nil {
		return err
	}
	_, err := io.Copy(w, &buf)
	return err
}
