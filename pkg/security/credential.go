package security

import "crypto/x509"

// UsernameToken is a parsed wsse:UsernameToken.
type UsernameToken struct {
	ID           string
	Username     string
	Password     string
	PasswordType string
	Nonce        []byte
	Created      string
	Salt         []byte
	Iteration    int
}

// IsDerived reports whether the token is used for key derivation rather
// than authentication by password.
func (u *UsernameToken) IsDerived() bool {
	return len(u.Salt) > 0
}

// Timestamp is a parsed wsu:Timestamp in its lexical form.
type Timestamp struct {
	ID      string
	Created string
	Expires string
}

// BinarySecurityToken is a parsed wsse:BinarySecurityToken.
type BinarySecurityToken struct {
	ID           string
	ValueType    string
	EncodingType string
	Data         []byte
}

// Credential is handed to a token validator and returned validated.
type Credential struct {
	TokenType     TokenType
	UsernameToken *UsernameToken
	Timestamp     *Timestamp
	BinaryToken   *BinarySecurityToken
	Certificates  []*x509.Certificate

	// Principal is the authenticated identity, set by validators.
	Principal string
	// SecretKey is key material established by validation, such as a
	// UsernameToken-derived key or a Kerberos session key.
	SecretKey []byte
	// TransformedToken replaces the presented token, if a validator
	// exchanged it.
	TransformedToken Token
}
