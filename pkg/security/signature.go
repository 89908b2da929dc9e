package security

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/hmac"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha1"
	"crypto/sha256"
	"hash"
)

// IsSymmetricSignature reports whether algorithm is a MAC.
func IsSymmetricSignature(algorithm string) bool {
	return algorithm == AlgHMACSHA1 || algorithm == AlgHMACSHA256
}

// SignatureValue signs canonical SignedInfo bytes with tok.
func SignatureValue(algorithm string, tok Token, data []byte) ([]byte, error) {
	switch algorithm {
	case AlgHMACSHA1, AlgHMACSHA256:
		key, err := tok.SecretKey(algorithm)
		if err != nil {
			return nil, err
		}
		return macOf(algorithm, key, data), nil
	case AlgRSASHA1, AlgRSASHA256:
		signer := tok.Signer()
		if signer == nil {
			return nil, Configurationf("token %s holds no private key", tok.ID())
		}
		h, digest := hashFor(algorithm, data)
		return signer.Sign(rand.Reader, digest, h)
	default:
		return nil, NewValidationError(ErrUnsupportedAlgorithm, "signature method %s", algorithm)
	}
}

// VerifySignatureValue checks sig over data. A mismatch is ErrFailedCheck.
func VerifySignatureValue(algorithm string, tok Token, data, sig []byte) error {
	switch algorithm {
	case AlgHMACSHA1, AlgHMACSHA256:
		key, err := tok.SecretKey(algorithm)
		if err != nil {
			return err
		}
		if !hmac.Equal(macOf(algorithm, key, data), sig) {
			return NewValidationError(ErrFailedCheck, "signature value mismatch")
		}
		return nil
	case AlgRSASHA1, AlgRSASHA256:
		h, digest := hashFor(algorithm, data)
		switch pub := tok.PublicKey().(type) {
		case *rsa.PublicKey:
			if err := rsa.VerifyPKCS1v15(pub, h, digest, sig); err != nil {
				return WrapValidationError(ErrFailedCheck, err, "signature value mismatch")
			}
			return nil
		case *ecdsa.PublicKey:
			if !ecdsa.VerifyASN1(pub, digest, sig) {
				return NewValidationError(ErrFailedCheck, "signature value mismatch")
			}
			return nil
		default:
			return NewValidationError(ErrInvalidSecurityToken, "token %s has no usable public key", tok.ID())
		}
	default:
		return NewValidationError(ErrUnsupportedAlgorithm, "signature method %s", algorithm)
	}
}

func macOf(algorithm string, key, data []byte) []byte {
	var fn func() hash.Hash = sha1.New
	if algorithm == AlgHMACSHA256 {
		fn = sha256.New
	}
	m := hmac.New(fn, key)
	m.Write(data)
	return m.Sum(nil)
}

func hashFor(algorithm string, data []byte) (crypto.Hash, []byte) {
	if algorithm == AlgRSASHA1 {
		sum := sha1.Sum(data)
		return crypto.SHA1, sum[:]
	}
	sum := sha256.Sum256(data)
	return crypto.SHA256, sum[:]
}
