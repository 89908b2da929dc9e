package security

import (
	"context"
	"crypto"
	"crypto/x509"
	"errors"
)

// ErrUnknownAlias is returned by crypto providers for an alias they do not hold.
var ErrUnknownAlias = errors.New("unknown key alias")

// Crypto is the crypto provider capability: certificates and private keys
// looked up by alias.
type Crypto interface {
	// Certificates returns the chain for alias, leaf first.
	Certificates(ctx context.Context, alias string) ([]*x509.Certificate, error)
	// Signer returns the private key for alias.
	Signer(ctx context.Context, alias string) (crypto.Signer, error)
}
