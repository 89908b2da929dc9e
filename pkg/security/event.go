package security

import (
	"time"

	"github.com/sirosfoundation/go-wssec/pkg/xmlstream"
)

// EventType identifies the variant of a security event.
type EventType string

const (
	EventSignedPart              EventType = "SignedPart"
	EventSignedElement           EventType = "SignedElement"
	EventEncryptedPart           EventType = "EncryptedPart"
	EventEncryptedElement        EventType = "EncryptedElement"
	EventContentEncryptedElement EventType = "ContentEncryptedElement"
	EventTimestamp               EventType = "Timestamp"
	EventUsernameToken           EventType = "UsernameToken"
	EventX509Token               EventType = "X509Token"
	EventKerberosToken           EventType = "KerberosToken"
	EventDerivedKeyToken         EventType = "DerivedKeyToken"
	EventSignatureValue          EventType = "SignatureValue"
)

// Event is a security-relevant fact observed while processing a message.
type Event interface {
	Type() EventType
}

// SignedPartEvent reports whether a SOAP part (the Body or a header child)
// was covered by a signature.
type SignedPartEvent struct {
	Element   xmlstream.Name
	NotSigned bool
	TokenID   string
}

func (SignedPartEvent) Type() EventType { return EventSignedPart }

// SignedElementEvent reports whether an element was covered by a signature.
type SignedElementEvent struct {
	Element   xmlstream.Name
	NotSigned bool
	TokenID   string
}

func (SignedElementEvent) Type() EventType { return EventSignedElement }

// EncryptedPartEvent reports whether a SOAP part was encrypted.
type EncryptedPartEvent struct {
	Element      xmlstream.Name
	NotEncrypted bool
	TokenID      string
}

func (EncryptedPartEvent) Type() EventType { return EventEncryptedPart }

// EncryptedElementEvent reports whether an element was encrypted whole.
type EncryptedElementEvent struct {
	Element      xmlstream.Name
	NotEncrypted bool
	TokenID      string
}

func (EncryptedElementEvent) Type() EventType { return EventEncryptedElement }

// ContentEncryptedElementEvent reports whether an element's content was
// encrypted.
type ContentEncryptedElementEvent struct {
	Element      xmlstream.Name
	NotEncrypted bool
	TokenID      string
}

func (ContentEncryptedElementEvent) Type() EventType { return EventContentEncryptedElement }

// TimestampEvent reports a processed wsu:Timestamp.
type TimestampEvent struct {
	ID      string
	Created time.Time
	Expires time.Time
}

func (TimestampEvent) Type() EventType { return EventTimestamp }

// TokenEvent reports a token found in or added to the security header.
type TokenEvent struct {
	Kind      EventType
	TokenID   string
	TokenType TokenType
	Principal string
	// Derived is set for UsernameTokens used for key derivation.
	Derived bool
	// PasswordType is the password type of a UsernameToken.
	PasswordType string
}

func (e TokenEvent) Type() EventType { return e.Kind }

// SignatureValueEvent carries the value of a produced or verified signature.
type SignatureValueEvent struct {
	Value   []byte
	TokenID string
}

func (SignatureValueEvent) Type() EventType { return EventSignatureValue }

// EventListener receives security events as they are produced.
type EventListener interface {
	OnSecurityEvent(ev Event) error
}

// EventListenerFunc adapts a function to EventListener.
type EventListenerFunc func(ev Event) error

func (f EventListenerFunc) OnSecurityEvent(ev Event) error { return f(ev) }

// EventCollector records every event it receives.
type EventCollector struct {
	Events []Event
}

// OnSecurityEvent appends ev to the collected events.
func (c *EventCollector) OnSecurityEvent(ev Event) error {
	c.Events = append(c.Events, ev)
	return nil
}

// OfType returns the collected events of type t.
func (c *EventCollector) OfType(t EventType) []Event {
	var out []Event
	for _, ev := range c.Events {
		if ev.Type() == t {
			out = append(out, ev)
		}
	}
	return out
}
