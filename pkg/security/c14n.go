package security

import (
	"crypto/sha1"
	"crypto/sha256"

	"github.com/beevik/etree"
	"github.com/leifj/signedxml"

	"github.com/sirosfoundation/go-wssec/pkg/xmlstream"
)

// Canonicalize returns the exclusive canonical form of el, comments
// excluded.
func Canonicalize(el *etree.Element) ([]byte, error) {
	c := signedxml.ExclusiveCanonicalization{WithComments: false}
	out, err := c.ProcessElement(el, "")
	if err != nil {
		return nil, err
	}
	return []byte(out), nil
}

// CanonicalizeEvents canonicalizes a balanced run of events.
func CanonicalizeEvents(events []xmlstream.Event) ([]byte, error) {
	el, err := xmlstream.ToElement(events)
	if err != nil {
		return nil, err
	}
	return Canonicalize(el)
}

// Digest hashes data with the digest method algorithm.
func Digest(algorithm string, data []byte) ([]byte, error) {
	switch algorithm {
	case AlgSHA256:
		sum := sha256.Sum256(data)
		return sum[:], nil
	case AlgSHA1:
		sum := sha1.Sum(data)
		return sum[:], nil
	default:
		return nil, NewValidationError(ErrUnsupportedAlgorithm, "digest method %s", algorithm)
	}
}
