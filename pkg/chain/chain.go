package chain

import (
	"context"
	"errors"
	"log/slog"
	"slices"

	"github.com/sirosfoundation/go-wssec/pkg/security"
	"github.com/sirosfoundation/go-wssec/pkg/xmlstream"
)

type changeKind int

const (
	changeAdd changeKind = iota
	changeRemove
)

type change struct {
	kind changeKind
	p    Processor
}

// Chain is the processor pipeline of one message. It is not safe for
// concurrent use.
type Chain struct {
	ctx      context.Context
	security *security.SecurityContext
	doc      *DocumentContext
	sink     Sink
	logger   *slog.Logger

	procs    []Processor
	removed  map[Processor]bool
	finished map[Processor]bool
	pending  []change
	cursor   int
	depth    int

	// root is the chain a sub-chain forwards changes to.
	root *Chain
}

// Option configures a Chain.
type Option func(*Chain)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Chain) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithDocumentContext shares an existing document context.
func WithDocumentContext(d *DocumentContext) Option {
	return func(c *Chain) { c.doc = d }
}

// New returns an empty chain writing to sink. ctx bounds the blocking work
// processors do for this message.
func New(ctx context.Context, sec *security.SecurityContext, sink Sink, opts ...Option) *Chain {
	if ctx == nil {
		ctx = context.Background()
	}
	if sec == nil {
		sec = security.NewSecurityContext()
	}
	if sink == nil {
		sink = Discard
	}
	c := &Chain{
		ctx:      ctx,
		security: sec,
		doc:      NewDocumentContext(),
		sink:     sink,
		logger:   slog.Default(),
		removed:  make(map[Processor]bool),
		finished: make(map[Processor]bool),
		cursor:   -1,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With("component", "chain")
	return c
}

// Context returns the message context.
func (c *Chain) Context() context.Context { return c.ctx }

// Security returns the Security Context of the exchange.
func (c *Chain) Security() *security.SecurityContext { return c.security }

// Document returns the Document Context.
func (c *Chain) Document() *DocumentContext { return c.doc }

// Logger returns the chain logger.
func (c *Chain) Logger() *slog.Logger { return c.logger }

// AddProcessor queues p for insertion. Outside dispatch it is inserted at
// once. Processors added through a sub-chain go to the chain it was
// created from.
func (c *Chain) AddProcessor(p Processor) {
	if c.root != nil {
		c.root.AddProcessor(p)
		return
	}
	c.pending = append(c.pending, change{kind: changeAdd, p: p})
	if c.depth == 0 {
		c.apply()
	}
}

// RemoveProcessor removes p. A processor removing itself receives no
// further events; a processor that the current event has not reached yet
// still receives it.
func (c *Chain) RemoveProcessor(p Processor) {
	if idx := slices.Index(c.procs, p); idx >= 0 && idx <= c.cursor {
		c.removed[p] = true
	}
	if c.root != nil {
		c.root.RemoveProcessor(p)
		return
	}
	c.pending = append(c.pending, change{kind: changeRemove, p: p})
	if c.depth == 0 {
		c.apply()
	}
}

// Processors returns the ids of the active processors in order.
func (c *Chain) Processors() []string {
	ids := make([]string, 0, len(c.procs))
	for _, p := range c.procs {
		if !c.removed[p] {
			ids = append(ids, p.Info().ID)
		}
	}
	return ids
}

// Push dispatches an event read from the document to the first processor
// and applies queued changes afterwards.
func (c *Chain) Push(ev xmlstream.Event) error {
	if ev.IsStart() {
		c.doc.enter(ev)
	}
	c.depth++
	err := c.dispatchFrom(0, ev)
	c.depth--
	if ev.IsEnd() {
		c.doc.leave()
	}
	if c.depth == 0 {
		c.apply()
	}
	return err
}

// ProcessEvent forwards ev to the processor after the one being
// dispatched, or to the sink when none is left.
func (c *Chain) ProcessEvent(ev xmlstream.Event) error {
	return c.dispatchFrom(c.cursor+1, ev)
}

// ProcessEvents forwards each of events in order.
func (c *Chain) ProcessEvents(events []xmlstream.Event) error {
	for _, ev := range events {
		if err := c.ProcessEvent(ev); err != nil {
			return err
		}
	}
	return nil
}

func (c *Chain) dispatchFrom(i int, ev xmlstream.Event) error {
	for ; i < len(c.procs); i++ {
		p := c.procs[i]
		if c.removed[p] {
			continue
		}
		return c.run(i, p, func() error { return p.ProcessEvent(ev, c) })
	}
	return c.sink.Write(ev)
}

func (c *Chain) run(i int, p Processor, fn func() error) error {
	saved := c.cursor
	c.cursor = i
	err := fn()
	c.cursor = saved
	if err != nil {
		var pe *ProcessorError
		if errors.As(err, &pe) {
			return err
		}
		return &ProcessorError{ID: p.Info().ID, Err: err}
	}
	return nil
}

// Finish calls Finish on every processor in order. Processors added while
// finishing are finished too.
func (c *Chain) Finish() error {
	for {
		c.apply()
		i, p := c.nextUnfinished()
		if p == nil {
			return nil
		}
		c.finished[p] = true
		c.depth++
		err := c.run(i, p, func() error { return p.Finish(c) })
		c.depth--
		if err != nil {
			return err
		}
	}
}

func (c *Chain) nextUnfinished() (int, Processor) {
	for i, p := range c.procs {
		if !c.removed[p] && !c.finished[p] {
			return i, p
		}
	}
	return -1, nil
}

// SubChain returns a chain that forwards into the processors following p.
// It shares the Security and Document contexts and the sink.
func (c *Chain) SubChain(p Processor) *Chain {
	idx := slices.Index(c.procs, p)
	sub := &Chain{
		ctx:      c.ctx,
		security: c.security,
		doc:      c.doc,
		sink:     c.sink,
		logger:   c.logger,
		removed:  make(map[Processor]bool),
		finished: make(map[Processor]bool),
		cursor:   -1,
		root:     c.rootChain(),
	}
	for _, q := range c.procs[idx+1:] {
		if !c.removed[q] {
			sub.procs = append(sub.procs, q)
		}
	}
	return sub
}

func (c *Chain) rootChain() *Chain {
	if c.root != nil {
		return c.root
	}
	return c
}

func (c *Chain) apply() {
	pending := c.pending
	c.pending = nil
	for _, ch := range pending {
		switch ch.kind {
		case changeAdd:
			c.insert(ch.p)
		case changeRemove:
			if idx := slices.Index(c.procs, ch.p); idx >= 0 {
				c.procs = slices.Delete(c.procs, idx, idx+1)
				c.logger.Debug("processor removed", "processor", ch.p.Info().ID)
			}
			delete(c.removed, ch.p)
		}
	}
}

// insert places p in its phase, ahead of the first processor named in
// Before and behind the last one named in After. References to processors
// not in the chain are ignored.
func (c *Chain) insert(p Processor) {
	info := p.Info()
	lo, hi := 0, len(c.procs)
	for i, q := range c.procs {
		ph := q.Info().Phase
		if ph < info.Phase {
			lo = i + 1
		}
		if ph > info.Phase && i < hi {
			hi = i
			break
		}
	}
	pos := hi
	for i := lo; i < hi; i++ {
		if slices.Contains(info.Before, c.procs[i].Info().ID) {
			pos = i
			break
		}
	}
	for i := hi - 1; i >= lo; i-- {
		if slices.Contains(info.After, c.procs[i].Info().ID) {
			if i+1 > pos {
				pos = i + 1
			}
			break
		}
	}
	c.procs = slices.Insert(c.procs, pos, p)
	c.logger.Debug("processor added", "processor", info.ID, "phase", info.Phase.String())
}
