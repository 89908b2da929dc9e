package policy

import (
	"fmt"

	"github.com/sirosfoundation/go-wssec/pkg/security"
	"github.com/sirosfoundation/go-wssec/pkg/xmlstream"
)

// State is the satisfaction of an assertion.
type State int

const (
	Unknown State = iota
	Asserted
	Violated
)

func (s State) String() string {
	switch s {
	case Asserted:
		return "asserted"
	case Violated:
		return "violated"
	default:
		return "unknown"
	}
}

// AssertionState judges one assertion over the events of one exchange.
type AssertionState struct {
	Assertion Assertion
	state     State
	messages  []string
}

// NewAssertionState returns the Unknown state of a.
func NewAssertionState(a Assertion) *AssertionState {
	return &AssertionState{Assertion: a}
}

// State returns the current satisfaction.
func (s *AssertionState) State() State { return s.state }

// Messages returns the violations recorded so far.
func (s *AssertionState) Messages() []string {
	return append([]string(nil), s.messages...)
}

// AssertEvent offers ev to the state. It returns true when ev satisfied
// the assertion and false when ev was not judged or left the
// assertion violated.
func (s *AssertionState) AssertEvent(ev security.Event) bool {
	name, protected, ok := s.subject(ev)
	if !ok {
		return false
	}
	if !protected {
		s.violate(fmt.Sprintf("%s: element %s must be %s", s.Assertion.Kind, name, s.requirement()))
		return false
	}
	if s.state == Violated {
		return false
	}
	s.state = Asserted
	return true
}

// subject returns the element ev reports on and whether it was protected,
// or ok false if the assertion does not cover ev.
func (s *AssertionState) subject(ev security.Event) (name xmlstream.Name, protected, ok bool) {
	a := s.Assertion
	switch e := ev.(type) {
	case security.SignedPartEvent:
		if a.Kind == KindSignedParts && a.Matches(e.Element) {
			return e.Element, !e.NotSigned, true
		}
	case security.SignedElementEvent:
		if a.Kind == KindSignedElements && a.Matches(e.Element) {
			return e.Element, !e.NotSigned, true
		}
	case security.EncryptedPartEvent:
		if a.Kind == KindEncryptedParts && a.Matches(e.Element) {
			return e.Element, !e.NotEncrypted, true
		}
	case security.EncryptedElementEvent:
		if a.Kind == KindEncryptedElements && a.Matches(e.Element) {
			return e.Element, !e.NotEncrypted, true
		}
	case security.ContentEncryptedElementEvent:
		if a.Kind == KindContentEncryptedElements && a.Matches(e.Element) {
			return e.Element, !e.NotEncrypted, true
		}
	case security.TimestampEvent:
		if a.Kind == KindIncludeTimestamp {
			return security.NameTimestamp, true, true
		}
	case security.TokenEvent:
		if a.Kind == KindToken && e.TokenType == a.TokenType {
			return xmlstream.Name{Local: string(e.TokenType)}, true, true
		}
	}
	return xmlstream.Name{}, false, false
}

func (s *AssertionState) requirement() string {
	switch s.Assertion.Kind {
	case KindSignedParts, KindSignedElements:
		return "signed"
	case KindContentEncryptedElements:
		return "content encrypted"
	default:
		return "encrypted"
	}
}

func (s *AssertionState) violate(msg string) {
	s.state = Violated
	s.messages = append(s.messages, msg)
}

// finish settles a state no event decided.
func (s *AssertionState) finish() {
	if s.state != Unknown {
		return
	}
	switch s.Assertion.Kind {
	case KindIncludeTimestamp:
		s.violate("IncludeTimestamp: message has no Timestamp")
	case KindToken:
		s.violate(fmt.Sprintf("Token: message has no %s", s.Assertion.TokenType))
	default:
		s.state = Asserted
	}
}
