package derivedkey

import (
	"crypto/hmac"
	"crypto/sha1"
	"crypto/sha256"
	"io"
	"math"

	"golang.org/x/crypto/hkdf"

	"github.com/sirosfoundation/go-wssec/pkg/security"
)

// MaxLength bounds the length of a single derived key.
const MaxLength = 1024

// MaxOffset bounds the offset into the derived key stream. It leaves room
// for 64 generations of MaxLength keys.
const MaxOffset = 64 * MaxLength

// Algorithm derives key bytes. Implementations must be deterministic.
type Algorithm interface {
	URI() string
	Derive(secret, seed []byte, offset, length int) ([]byte, error)
}

// PSHA1 is the P_SHA-1 function of RFC 2246 section 5, the derivation
// function of WS-SecureConversation.
type PSHA1 struct {
	uri string
}

// NewPSHA1 returns P_SHA-1 registered under uri.
func NewPSHA1(uri string) PSHA1 { return PSHA1{uri: uri} }

// URI returns the algorithm URI a is registered under.
func (a PSHA1) URI() string { return a.uri }

// Derive returns length bytes of the P_SHA-1 stream starting at offset.
func (a PSHA1) Derive(secret, seed []byte, offset, length int) ([]byte, error) {
	if err := checkParams(secret, offset, length); err != nil {
		return nil, err
	}
	need := offset + length
	out := make([]byte, 0, need+sha1.Size)

	mac := hmac.New(sha1.New, secret)
	mac.Write(seed)
	ai := mac.Sum(nil)
	for len(out) < need {
		mac.Reset()
		mac.Write(ai)
		mac.Write(seed)
		out = mac.Sum(out)

		mac.Reset()
		mac.Write(ai)
		ai = mac.Sum(nil)
	}
	return out[offset:need:need], nil
}

// HKDF derives with HKDF-SHA256 (RFC 5869), using the seed as info and no
// salt.
type HKDF struct{}

// URI returns the HKDF algorithm URI.
func (HKDF) URI() string { return security.AlgHKDF }

// Derive returns length bytes of HKDF output starting at offset.
func (HKDF) Derive(secret, seed []byte, offset, length int) ([]byte, error) {
	if err := checkParams(secret, offset, length); err != nil {
		return nil, err
	}
	// RFC 5869 caps the output at 255 blocks.
	if offset+length > 255*sha256.Size {
		return nil, security.Derivationf("hkdf output of %d bytes exceeds limit", offset+length)
	}
	buf := make([]byte, offset+length)
	if _, err := io.ReadFull(hkdf.New(sha256.New, secret, nil, seed), buf); err != nil {
		return nil, security.Derivationf("hkdf: %v", err)
	}
	return buf[offset:], nil
}

func checkParams(secret []byte, offset, length int) error {
	switch {
	case length <= 0:
		return security.Derivationf("length must be positive, got %d", length)
	case length > MaxLength:
		return security.Derivationf("length %d exceeds %d", length, MaxLength)
	case offset < 0:
		return security.Derivationf("offset must not be negative, got %d", offset)
	case offset > math.MaxInt-length || offset > MaxOffset:
		return security.Derivationf("offset %d exceeds %d", offset, MaxOffset)
	case len(secret) == 0:
		return security.Derivationf("empty secret")
	}
	return nil
}
