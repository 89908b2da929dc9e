package security

import "github.com/google/uuid"

// Id prefixes for synthesized elements and tokens.
const (
	IDPrefixDerivedKey    = "DK"
	IDPrefixUsernameToken = "UsernameToken"
	IDPrefixTimestamp     = "TS"
	IDPrefixBinaryToken   = "X509"
	IDPrefixSignature     = "SIG"
	IDPrefixEncryptedData = "ED"
	IDPrefixBody          = "Body"
	IDPrefixElement       = "id"
)

// GenerateID returns prefix-<uuid>.
func GenerateID(prefix string) string {
	return prefix + "-" + uuid.NewString()
}
