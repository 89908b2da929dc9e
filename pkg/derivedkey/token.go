package derivedkey

import (
	"context"

	"github.com/sirosfoundation/go-wssec/pkg/security"
)

// DefaultLabel is the label used when a DerivedKeyToken carries none.
const DefaultLabel = security.DefaultDerivationLabel + security.DefaultDerivationLabel

// NonceLength is the size of generated DerivedKeyToken nonces.
const NonceLength = 16

// DefaultLength applies when a received DerivedKeyToken has no Length.
const DefaultLength = 32

// Params are the persisted inputs of a derivation.
type Params struct {
	Algorithm string
	Label     string
	Nonce     []byte
	Offset    int
	Length    int
}

// NewParams returns P_SHA-1 parameters for length bytes at offset 0 with a
// fresh random nonce.
func NewParams(length int) (Params, error) {
	nonce, err := security.GenerateNonce(NonceLength)
	if err != nil {
		return Params{}, err
	}
	return Params{
		Algorithm: security.AlgPSHA1,
		Label:     DefaultLabel,
		Nonce:     nonce,
		Length:    length,
	}, nil
}

// Seed returns label followed by nonce.
func (p Params) Seed() []byte {
	label := p.Label
	if label == "" {
		label = DefaultLabel
	}
	seed := make([]byte, 0, len(label)+len(p.Nonce))
	seed = append(seed, label...)
	return append(seed, p.Nonce...)
}

// Token is a derived key together with the inputs it was computed from.
type Token struct {
	*security.GenericToken
	params Params
}

// New derives the key for params from wrappingSecret and returns it as
// token id. wrappingID is kept as a lookup reference only.
func New(reg *Registry, id, wrappingID string, params Params, wrappingSecret []byte) (*Token, error) {
	if reg == nil {
		reg = Default
	}
	key, err := reg.Derive(params.Algorithm, wrappingSecret, params.Seed(), params.Offset, params.Length)
	if err != nil {
		return nil, err
	}
	gt := security.NewSymmetricToken(id, security.TokenTypeDerivedKey, key)
	gt.SetWrappingTokenID(wrappingID)
	params.Nonce = append([]byte(nil), params.Nonce...)
	return &Token{GenericToken: gt, params: params}, nil
}

// Params returns a copy of the derivation inputs.
func (t *Token) Params() Params {
	p := t.params
	p.Nonce = append([]byte(nil), p.Nonce...)
	return p
}

// Regenerate recomputes the key bytes from wrappingSecret.
func (t *Token) Regenerate(reg *Registry, wrappingSecret []byte) ([]byte, error) {
	if reg == nil {
		reg = Default
	}
	p := t.params
	return reg.Derive(p.Algorithm, wrappingSecret, p.Seed(), p.Offset, p.Length)
}

// WrappingSecret returns the secret a key is derived from. A security
// context token's secret is obtained from the callback under the derived
// token's id.
func WrappingSecret(ctx context.Context, wrapping security.Token, derivedID string, h security.CallbackHandler) ([]byte, error) {
	if wrapping.Type() == security.TokenTypeSecurityContext {
		return security.LookupKey(ctx, h, derivedID)
	}
	return wrapping.Secret()
}

// Resolver derives a received DerivedKeyToken when it is first used.
type Resolver struct {
	TokenID    string
	WrappingID string
	Params     Params
	Context    *security.SecurityContext
	Callbacks  security.CallbackHandler
	Registry   *Registry
}

// Resolve derives the key from the secret of the wrapping token.
func (r Resolver) Resolve(ctx context.Context, crypto security.Crypto) (security.Token, error) {
	wrapping, err := r.Context.ResolveToken(ctx, r.WrappingID, crypto)
	if err != nil {
		return nil, security.WrapValidationError(security.ErrSecurityTokenUnavailable, err,
			"wrapping token of %s", r.TokenID)
	}
	secret, err := WrappingSecret(ctx, wrapping, r.TokenID, r.Callbacks)
	if err != nil {
		return nil, err
	}
	return New(r.Registry, r.TokenID, r.WrappingID, r.Params, secret)
}
