// Package keystore provides the crypto providers that hold the
// certificates and private keys used for X.509 signatures.
//
// Every provider implements security.Crypto and looks keys up by alias:
//
//   - File: PEM files in a directory, {alias}.key and {alias}.crt
//   - Memory: keys added at runtime, for tests and embedding
//   - PKCS#11: keys in a hardware security module, built with -tags pkcs11
package keystore

import (
	"context"
	"crypto"
	"crypto/ecdsa"
	"crypto/rsa"
	"crypto/x509"
	"errors"
	"time"

	"github.com/sirosfoundation/go-wssec/pkg/security"
)

// Common errors
var (
	// ErrKeyNotFound matches security.ErrUnknownAlias.
	ErrKeyNotFound = security.ErrUnknownAlias
	ErrPINRequired = errors.New("PIN required to unlock key")
)

// Provider is a crypto provider with an inventory.
//
// Implementations must be safe for concurrent use.
type Provider interface {
	security.Crypto

	// Keys describes every alias the provider holds.
	Keys(ctx context.Context) ([]KeyInfo, error)

	// Close releases any resources held by the provider.
	Close() error
}

// KeyInfo describes a key and its certificate.
type KeyInfo struct {
	Alias string

	// Algorithm is the key algorithm (e.g., "RSA", "EC")
	Algorithm string

	// KeySize is the key size in bits (e.g., 2048 for RSA, 256 for P-256)
	KeySize int

	NotBefore time.Time
	NotAfter  time.Time

	// CertificateSubject is the subject DN of the certificate
	CertificateSubject string
}

func keyInfo(alias string, cert *x509.Certificate) KeyInfo {
	return KeyInfo{
		Alias:              alias,
		Algorithm:          keyAlgorithmName(cert.PublicKey),
		KeySize:            keySize(cert.PublicKey),
		NotBefore:          cert.NotBefore,
		NotAfter:           cert.NotAfter,
		CertificateSubject: cert.Subject.String(),
	}
}

func keyAlgorithmName(pub crypto.PublicKey) string {
	switch pub.(type) {
	case *ecdsa.PublicKey:
		return "EC"
	case *rsa.PublicKey:
		return "RSA"
	default:
		return "Unknown"
	}
}

func keySize(pub crypto.PublicKey) int {
	switch k := pub.(type) {
	case *ecdsa.PublicKey:
		return k.Curve.Params().BitSize
	case *rsa.PublicKey:
		return k.N.BitLen()
	default:
		return 0
	}
}
