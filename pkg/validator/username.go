package validator

import (
	"context"
	"crypto/subtle"
	"errors"

	"github.com/sirosfoundation/go-wssec/pkg/security"
)

// UsernameValidator authenticates a UsernameToken against the password the
// callback handler returns for its user.
type UsernameValidator struct {
	// RequiredPasswordType rejects tokens of any other password type when
	// set.
	RequiredPasswordType string
	// AllowNoPassword accepts tokens that carry neither a password nor a
	// salt. The principal is then asserted, not authenticated.
	AllowNoPassword bool
	// MaxIterations caps the wsse11:Iteration count of key derivation
	// tokens. Zero means security.DefaultMaxUsernameTokenIterations.
	MaxIterations int
}

// Validate authenticates the token, or derives its key when it carries a Salt.
func (v *UsernameValidator) Validate(ctx context.Context, cred *security.Credential, rc *RequestContext) (*security.Credential, error) {
	if cred == nil || cred.UsernameToken == nil {
		return nil, security.NewValidationError(security.ErrInvalidSecurityToken, "no UsernameToken in credential")
	}
	ut := cred.UsernameToken
	if ut.Username == "" {
		return nil, security.NewValidationError(security.ErrInvalidSecurityToken, "UsernameToken without Username")
	}

	if ut.IsDerived() {
		return v.derive(ctx, cred, rc)
	}
	if ut.PasswordType == "" && ut.Password == "" {
		if !v.AllowNoPassword {
			return nil, security.NewValidationError(security.ErrAuthenticationFailed, "UsernameToken for %q has no password", ut.Username)
		}
		cred.Principal = ut.Username
		return cred, nil
	}
	if v.RequiredPasswordType != "" && ut.PasswordType != v.RequiredPasswordType {
		return nil, security.NewValidationError(security.ErrAuthenticationFailed, "password type %q not accepted", ut.PasswordType)
	}

	password, err := v.password(ctx, ut.Username, rc)
	if err != nil {
		return nil, err
	}
	presented := ut.Password
	expected := password
	switch ut.PasswordType {
	case security.PasswordDigest:
		if len(ut.Nonce) == 0 || ut.Created == "" {
			return nil, security.NewValidationError(security.ErrInvalidSecurityToken, "password digest without Nonce and Created")
		}
		expected = security.PasswordDigestValue(ut.Nonce, ut.Created, password)
	case security.PasswordText, "":
	default:
		return nil, security.NewValidationError(security.ErrInvalidSecurityToken, "unknown password type %q", ut.PasswordType)
	}
	if subtle.ConstantTimeCompare([]byte(presented), []byte(expected)) != 1 {
		rc.logger().Warn("username token rejected", "user", ut.Username)
		return nil, security.NewValidationError(security.ErrAuthenticationFailed, "password mismatch for %q", ut.Username)
	}
	cred.Principal = ut.Username
	return cred, nil
}

// derive computes the key of a UsernameToken used for key derivation.
func (v *UsernameValidator) derive(ctx context.Context, cred *security.Credential, rc *RequestContext) (*security.Credential, error) {
	ut := cred.UsernameToken
	if ut.Iteration < 1 || ut.Iteration > v.maxIterations() {
		return nil, security.NewValidationError(security.ErrInvalidSecurityToken, "UsernameToken iteration count %d out of range", ut.Iteration)
	}
	password, err := v.password(ctx, ut.Username, rc)
	if err != nil {
		return nil, err
	}
	key, err := security.DeriveUsernameTokenKeyContext(ctx, password, ut.Salt, ut.Iteration)
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return nil, err
	}
	if err != nil {
		return nil, security.WrapValidationError(security.ErrInvalidSecurityToken, err, "UsernameToken key")
	}
	cred.Principal = ut.Username
	cred.SecretKey = key
	return cred, nil
}

func (v *UsernameValidator) maxIterations() int {
	if v.MaxIterations > 0 {
		return v.MaxIterations
	}
	return security.DefaultMaxUsernameTokenIterations
}

func (v *UsernameValidator) password(ctx context.Context, user string, rc *RequestContext) (string, error) {
	password, err := security.LookupPassword(ctx, rc.callbacks(), user, security.UsageUsernameToken)
	switch {
	case errors.Is(err, security.ErrConfiguration):
		return "", err
	case err != nil:
		rc.logger().Warn("no password for username token", "user", user)
		return "", security.WrapValidationError(security.ErrAuthenticationFailed, err, "user %q", user)
	case password == "":
		return "", security.NewValidationError(security.ErrAuthenticationFailed, "no password for %q", user)
	}
	return password, nil
}
