package validator

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/sirosfoundation/go-wssec/pkg/security"
)

// RequestContext carries what validators need from the exchange being
// processed.
type RequestContext struct {
	Callbacks security.CallbackHandler
	Security  *security.SecurityContext
	Logger    *slog.Logger
	// Now is the clock; nil means time.Now.
	Now func() time.Time
}

func (rc *RequestContext) now() time.Time {
	if rc == nil || rc.Now == nil {
		return time.Now()
	}
	return rc.Now()
}

func (rc *RequestContext) logger() *slog.Logger {
	if rc == nil || rc.Logger == nil {
		return slog.Default()
	}
	return rc.Logger
}

func (rc *RequestContext) callbacks() security.CallbackHandler {
	if rc == nil {
		return nil
	}
	return rc.Callbacks
}

// Validator checks a credential and returns it validated.
type Validator interface {
	Validate(ctx context.Context, cred *security.Credential, rc *RequestContext) (*security.Credential, error)
}

// Func adapts a function to Validator.
type Func func(ctx context.Context, cred *security.Credential, rc *RequestContext) (*security.Credential, error)

// Validate calls f.
func (f Func) Validate(ctx context.Context, cred *security.Credential, rc *RequestContext) (*security.Credential, error) {
	return f(ctx, cred, rc)
}

// Registry maps token types to validators. It is safe for concurrent use.
type Registry struct {
	mu         sync.RWMutex
	validators map[security.TokenType]Validator
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{validators: make(map[security.TokenType]Validator)}
}

// NewDefaultRegistry returns a registry with UsernameToken and Timestamp
// validators in their default configuration. X.509 and Kerberos tokens
// need deployment specific trust and are left unregistered.
func NewDefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(security.TokenTypeUsername, &UsernameValidator{})
	r.Register(security.TokenTypeTimestamp, &TimestampValidator{})
	return r
}

// Register sets the validator for typ, replacing any previous one.
func (r *Registry) Register(typ security.TokenType, v Validator) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.validators[typ] = v
}

// Lookup returns the validator for typ.
func (r *Registry) Lookup(typ security.TokenType) (Validator, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.validators[typ]
	return v, ok
}

// Validate runs the validator registered for the credential's token type.
func (r *Registry) Validate(ctx context.Context, cred *security.Credential, rc *RequestContext) (*security.Credential, error) {
	if cred == nil {
		return nil, security.NewValidationError(security.ErrInvalidSecurityToken, "no credential")
	}
	v, ok := r.Lookup(cred.TokenType)
	if !ok {
		return nil, security.NewValidationError(security.ErrInvalidSecurityToken, "no validator for %s", cred.TokenType)
	}
	return v.Validate(ctx, cred, rc)
}
