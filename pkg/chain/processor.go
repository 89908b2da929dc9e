package chain

import (
	"fmt"

	"github.com/sirosfoundation/go-wssec/pkg/xmlstream"
)

// Phase groups processors. Every processor of a phase runs before any
// processor of a later phase.
type Phase int

const (
	PreProcessing Phase = iota
	Processing
	PostProcessing
)

func (p Phase) String() string {
	switch p {
	case PreProcessing:
		return "preprocessing"
	case Processing:
		return "processing"
	case PostProcessing:
		return "postprocessing"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// Info describes where a processor belongs in a chain.
type Info struct {
	// ID identifies the processor for Before and After references.
	ID    string
	Phase Phase
	// Before lists ids of processors this one must run ahead of.
	Before []string
	// After lists ids of processors this one must run behind.
	After []string
}

// Processor observes and transforms the events of one message.
type Processor interface {
	Info() Info
	// ProcessEvent handles ev. Forwarding is explicit through
	// c.ProcessEvent; an event that is not forwarded is suppressed.
	ProcessEvent(ev xmlstream.Event, c *Chain) error
	// Finish is called once after the last event of the document.
	Finish(c *Chain) error
}

// Base gives a processor its Info and a Finish that does nothing.
type Base struct {
	info Info
}

// NewBase returns a Base for id in phase.
func NewBase(id string, phase Phase) Base {
	return Base{info: Info{ID: id, Phase: phase}}
}

// Info returns the processor metadata.
func (b *Base) Info() Info { return b.info }

// AddBefore makes the processor run ahead of the processor with id.
func (b *Base) AddBefore(id string) { b.info.Before = append(b.info.Before, id) }

// AddAfter makes the processor run behind the processor with id.
func (b *Base) AddAfter(id string) { b.info.After = append(b.info.After, id) }

// Finish does nothing.
func (b *Base) Finish(*Chain) error { return nil }

// Sink receives the events that pass every processor.
type Sink interface {
	Write(ev xmlstream.Event) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ev xmlstream.Event) error

// Write calls f(ev).
func (f SinkFunc) Write(ev xmlstream.Event) error { return f(ev) }

// Discard drops every event.
var Discard Sink = SinkFunc(func(xmlstream.Event) error { return nil })

// Collector is a Sink that keeps the events it receives.
type Collector struct {
	Events []xmlstream.Event
}

// Write appends ev to c.Events.
func (c *Collector) Write(ev xmlstream.Event) error {
	c.Events = append(c.Events, ev)
	return nil
}

// ProcessorError reports the processor that aborted a chain.
type ProcessorError struct {
	ID  string
	Err error
}

func (e *ProcessorError) Error() string { return e.ID + ": " + e.Err.Error() }

func (e *ProcessorError) Unwrap() error { return e.Err }
