package security

import (
	"github.com/leifj/signedxml/xmlenc"
)

// IsSupportedContentAlgorithm reports whether algorithm can encrypt content.
func IsSupportedContentAlgorithm(algorithm string) bool {
	return algorithm == AlgAES128GCM || algorithm == AlgAES256GCM
}

// ContentKeySize returns the key size of a content encryption algorithm.
func ContentKeySize(algorithm string) int {
	if n := xmlenc.KeySize(algorithm); n > 0 {
		return n
	}
	return KeyLength(algorithm)
}

// EncryptContent encrypts plaintext with AES-GCM. The nonce is prepended to
// the ciphertext.
func EncryptContent(algorithm string, key, plaintext []byte) ([]byte, error) {
	if !IsSupportedContentAlgorithm(algorithm) {
		return nil, NewValidationError(ErrUnsupportedAlgorithm, "encryption method %s", algorithm)
	}
	if len(key) != ContentKeySize(algorithm) {
		return nil, Configurationf("key of %d bytes for %s", len(key), algorithm)
	}
	return xmlenc.AESGCMEncrypt(key, plaintext, nil)
}

// DecryptContent reverses EncryptContent. Authentication failure, which a
// wrong key also produces, is ErrFailedCheck.
func DecryptContent(algorithm string, key, ciphertext []byte) ([]byte, error) {
	if !IsSupportedContentAlgorithm(algorithm) {
		return nil, NewValidationError(ErrUnsupportedAlgorithm, "encryption method %s", algorithm)
	}
	if len(key) != ContentKeySize(algorithm) {
		return nil, NewValidationError(ErrFailedCheck, "key of %d bytes for %s", len(key), algorithm)
	}
	plaintext, err := xmlenc.AESGCMDecrypt(key, ciphertext, nil)
	if err != nil {
		return nil, WrapValidationError(ErrFailedCheck, err, "decryption failed")
	}
	return plaintext, nil
}
