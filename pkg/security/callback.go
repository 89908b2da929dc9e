package security

import (
	"context"
	"errors"
)

// ErrUnknownIdentifier is returned by callback handlers for identifiers they
// hold no secret for.
var ErrUnknownIdentifier = errors.New("no secret for identifier")

// Usage tells a callback handler why a secret is needed.
type Usage int

const (
	UsageUsernameToken Usage = iota + 1
	UsageSignature
	UsageDecryption
	UsageSecretKey
	UsageKerberos
)

// Callback is a request for a secret not carried by the message.
type Callback struct {
	Identifier string
	Usage      Usage

	// Password or Key is filled in by the handler.
	Password string
	Key      []byte
}

// CallbackHandler supplies passwords and keys. It runs synchronously inside
// processor dispatch.
type CallbackHandler interface {
	Handle(ctx context.Context, cb *Callback) error
}

// CallbackHandlerFunc adapts a function to CallbackHandler.
type CallbackHandlerFunc func(ctx context.Context, cb *Callback) error

func (f CallbackHandlerFunc) Handle(ctx context.Context, cb *Callback) error { return f(ctx, cb) }

// PasswordMap answers password callbacks from a fixed user to password map.
type PasswordMap map[string]string

// Handle sets the password of the callback identifier.
func (m PasswordMap) Handle(_ context.Context, cb *Callback) error {
	pw, ok := m[cb.Identifier]
	if !ok {
		return ErrUnknownIdentifier
	}
	cb.Password = pw
	return nil
}

// LookupPassword asks h for the password of identifier.
func LookupPassword(ctx context.Context, h CallbackHandler, identifier string, usage Usage) (string, error) {
	if h == nil {
		return "", Configurationf("no callback handler for %q", identifier)
	}
	cb := &Callback{Identifier: identifier, Usage: usage}
	if err := h.Handle(ctx, cb); err != nil {
		return "", err
	}
	return cb.Password, nil
}

// LookupKey asks h for the secret key of identifier.
func LookupKey(ctx context.Context, h CallbackHandler, identifier string) ([]byte, error) {
	if h == nil {
		return nil, Configurationf("no callback handler for %q", identifier)
	}
	cb := &Callback{Identifier: identifier, Usage: UsageSecretKey}
	if err := h.Handle(ctx, cb); err != nil {
		return nil, err
	}
	if len(cb.Key) == 0 {
		return nil, NewValidationError(ErrSecurityTokenUnavailable, "no key for %q", identifier)
	}
	return cb.Key, nil
}
