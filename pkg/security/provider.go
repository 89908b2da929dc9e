package security

import "context"

// TokenProvider resolves a token lazily. SecurityToken may do expensive or
// external work and returns the same token on every call.
type TokenProvider interface {
	ID() string
	SecurityToken(ctx context.Context, crypto Crypto) (Token, error)
}

// Resolver performs the one-time resolution behind a CachedProvider.
type Resolver interface {
	Resolve(ctx context.Context, crypto Crypto) (Token, error)
}

// CachedProvider resolves through a Resolver once and returns the cached
// outcome afterwards, errors included.
type CachedProvider struct {
	id       string
	resolver Resolver
	resolved bool
	token    Token
	err      error
}

// NewCachedProvider returns a provider for id backed by r.
func NewCachedProvider(id string, r Resolver) *CachedProvider {
	return &CachedProvider{id: id, resolver: r}
}

// NewStaticProvider returns a provider for an already resolved token.
func NewStaticProvider(tok Token) *CachedProvider {
	return &CachedProvider{id: tok.ID(), resolved: true, token: tok}
}

func (p *CachedProvider) ID() string { return p.id }

// SecurityToken resolves the token on first use and returns the cached
// result afterwards.
func (p *CachedProvider) SecurityToken(ctx context.Context, crypto Crypto) (Token, error) {
	if !p.resolved {
		p.token, p.err = p.resolver.Resolve(ctx, crypto)
		p.resolved = true
	}
	return p.token, p.err
}

// X509Resolver resolves a local X.509 key pair from the crypto provider.
type X509Resolver struct {
	TokenID string
	Alias   string
}

// Resolve loads the certificates and signer for the alias from crypto.
func (r X509Resolver) Resolve(ctx context.Context, crypto Crypto) (Token, error) {
	if crypto == nil {
		return nil, Configurationf("no crypto provider for alias %q", r.Alias)
	}
	certs, err := crypto.Certificates(ctx, r.Alias)
	if err != nil {
		return nil, WrapValidationError(ErrSecurityTokenUnavailable, err, "certificates for %q", r.Alias)
	}
	if len(certs) == 0 {
		return nil, NewValidationError(ErrSecurityTokenUnavailable, "no certificate for %q", r.Alias)
	}
	signer, err := crypto.Signer(ctx, r.Alias)
	if err != nil {
		return nil, WrapValidationError(ErrSecurityTokenUnavailable, err, "private key for %q", r.Alias)
	}
	return NewX509Token(r.TokenID, certs, signer), nil
}
