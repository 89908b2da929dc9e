package security

import (
	"context"
	"crypto/rand"
	"crypto/sha1"
	"encoding/base64"
	"fmt"
)

const (
	// UsernameTokenSaltLength is the wsse11:Salt length in bytes.
	UsernameTokenSaltLength = 16
	// DefaultUsernameTokenIterations is the default wsse11:Iteration count.
	DefaultUsernameTokenIterations = 1000
	// DefaultMaxUsernameTokenIterations is the highest wsse11:Iteration
	// count accepted from a peer unless configured otherwise.
	DefaultMaxUsernameTokenIterations = 10 * DefaultUsernameTokenIterations
	// UsernameTokenKeyLength is the length of a UsernameToken-derived key.
	UsernameTokenKeyLength = sha1.Size

	saltUsageMAC        = 0x01
	saltUsageEncryption = 0x02

	// iterationCheckInterval is how many rounds run between context checks.
	iterationCheckInterval = 4096
)

// GenerateNonce returns n random bytes.
func GenerateNonce(n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return nil, fmt.Errorf("generating nonce: %w", err)
	}
	return b, nil
}

// GenerateUsernameTokenSalt returns a salt whose last byte marks the key
// usage: 0x01 for signatures, 0x02 for encryption.
func GenerateUsernameTokenSalt(forMAC bool) ([]byte, error) {
	salt, err := GenerateNonce(UsernameTokenSaltLength)
	if err != nil {
		return nil, err
	}
	if forMAC {
		salt[UsernameTokenSaltLength-1] = saltUsageMAC
	} else {
		salt[UsernameTokenSaltLength-1] = saltUsageEncryption
	}
	return salt, nil
}

// DeriveUsernameTokenKey computes the UsernameToken profile 1.1 key:
// SHA-1 over password||salt, then SHA-1 over the result iterations-1 more
// times.
func DeriveUsernameTokenKey(password string, salt []byte, iterations int) ([]byte, error) {
	return DeriveUsernameTokenKeyContext(context.Background(), password, salt, iterations)
}

// DeriveUsernameTokenKeyContext is DeriveUsernameTokenKey that stops with
// ctx's error once ctx is done.
func DeriveUsernameTokenKeyContext(ctx context.Context, password string, salt []byte, iterations int) ([]byte, error) {
	if iterations < 1 {
		return nil, Derivationf("iteration count must be positive, got %d", iterations)
	}
	if len(salt) == 0 {
		return nil, Derivationf("empty salt")
	}
	input := make([]byte, 0, len(password)+len(salt))
	input = append(input, password...)
	input = append(input, salt...)

	sum := sha1.Sum(input)
	for i := 1; i < iterations; i++ {
		if i%iterationCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		sum = sha1.Sum(sum[:])
	}
	return sum[:], nil
}

// PasswordDigestValue returns Base64(SHA-1(nonce || created || password)).
func PasswordDigestValue(nonce []byte, created, password string) string {
	h := sha1.New()
	h.Write(nonce)
	h.Write([]byte(created))
	h.Write([]byte(password))
	return base64.StdEncoding.EncodeToString(h.Sum(nil))
}
