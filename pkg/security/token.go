package security

import (
	"crypto"
	"crypto/x509"
)

// TokenType classifies tokens and selects validators.
type TokenType string

const (
	TokenTypeUsername        TokenType = "UsernameToken"
	TokenTypeX509            TokenType = "X509Token"
	TokenTypeKerberos        TokenType = "KerberosToken"
	TokenTypeDerivedKey      TokenType = "DerivedKeyToken"
	TokenTypeSecurityContext TokenType = "SecurityContextToken"
	TokenTypeTimestamp       TokenType = "Timestamp"
)

// Reference says how a SecurityTokenReference points at a token.
type Reference struct {
	URI       string
	ValueType string
}

// Token is resolved key material plus identity metadata.
type Token interface {
	ID() string
	Type() TokenType
	IsAsymmetric() bool

	// Secret returns the raw symmetric key bytes.
	Secret() ([]byte, error)
	// SecretKey returns the secret shaped for algorithm, cached per URI.
	SecretKey(algorithm string) ([]byte, error)

	// Certificates returns the chain of an asymmetric token, leaf first.
	Certificates() []*x509.Certificate
	// PublicKey returns the verification key of an asymmetric token.
	PublicKey() crypto.PublicKey
	// Signer returns the private key when it is held locally.
	Signer() crypto.Signer

	// WrappingTokenID returns the id of the token this one was derived from.
	// It is a lookup key into the SecurityContext, not an ownership edge.
	WrappingTokenID() string

	// Reference returns how other elements refer to this token.
	Reference() Reference
}

// GenericToken is the Token for transmitted or locally held key material.
type GenericToken struct {
	id         string
	typ        TokenType
	secret     []byte
	certs      []*x509.Certificate
	signer     crypto.Signer
	wrappingID string
	valueType  string
	keys       map[string][]byte
}

// NewSymmetricToken returns a token over secret.
func NewSymmetricToken(id string, typ TokenType, secret []byte) *GenericToken {
	return &GenericToken{
		id:     id,
		typ:    typ,
		secret: append([]byte(nil), secret...),
		keys:   make(map[string][]byte),
	}
}

// NewX509Token returns an asymmetric token over a certificate chain. signer
// may be nil for tokens received from a peer.
func NewX509Token(id string, certs []*x509.Certificate, signer crypto.Signer) *GenericToken {
	return &GenericToken{
		id:        id,
		typ:       TokenTypeX509,
		certs:     certs,
		signer:    signer,
		valueType: ValueTypeX509v3,
		keys:      make(map[string][]byte),
	}
}

// SetWrappingTokenID records the token t was derived from.
func (t *GenericToken) SetWrappingTokenID(id string) { t.wrappingID = id }

// SetValueType sets the ValueType used when referencing t.
func (t *GenericToken) SetValueType(vt string) { t.valueType = vt }

func (t *GenericToken) ID() string { return t.id }
func (t *GenericToken) Type() TokenType { return t.typ }
func (t *GenericToken) IsAsymmetric() bool { return len(t.certs) > 0 || t.signer != nil }
func (t *GenericToken) WrappingTokenID() string { return t.wrappingID }
func (t *GenericToken) Signer() crypto.Signer { return t.signer }

// Certificates returns the certificate chain of the token.
func (t *GenericToken) Certificates() []*x509.Certificate {
	return t.certs
}

// PublicKey returns the key of the first certificate, or of the signer.
func (t *GenericToken) PublicKey() crypto.PublicKey {
	if len(t.certs) > 0 {
		return t.certs[0].PublicKey
	}
	if t.signer != nil {
		return t.signer.Public()
	}
	return nil
}

// Secret returns the symmetric secret of the token.
func (t *GenericToken) Secret() ([]byte, error) {
	if len(t.secret) == 0 {
		return nil, NewValidationError(ErrSecurityTokenUnavailable, "token %s carries no secret key", t.id)
	}
	return t.secret, nil
}

// SecretKey returns the secret sized for algorithm.
func (t *GenericToken) SecretKey(algorithm string) ([]byte, error) {
	if key, ok := t.keys[algorithm]; ok {
		return key, nil
	}
	secret, err := t.Secret()
	if err != nil {
		return nil, err
	}
	key, err := ShapeKey(secret, algorithm)
	if err != nil {
		return nil, err
	}
	t.keys[algorithm] = key
	return key, nil
}

// Reference returns how other elements refer to the token.
func (t *GenericToken) Reference() Reference {
	vt := t.valueType
	if vt == "" {
		vt = DefaultValueType(t.typ)
	}
	return Reference{URI: "#" + t.id, ValueType: vt}
}

// DefaultValueType returns the STR ValueType for a token type.
func DefaultValueType(typ TokenType) string {
	switch typ {
	case TokenTypeUsername:
		return ValueTypeUsernameToken
	case TokenTypeX509:
		return ValueTypeX509v3
	case TokenTypeKerberos:
		return ValueTypeKerberosAPREQ
	case TokenTypeDerivedKey:
		return ValueTypeDerivedKey
	case TokenTypeSecurityContext:
		return ValueTypeSecurityContext
	default:
		return ""
	}
}

// KeyLength returns the key length in bytes algorithm requires, or 0 when
// any length is acceptable.
func KeyLength(algorithm string) int {
	switch algorithm {
	case AlgAES128CBC, AlgAES128GCM:
		return 16
	case AlgAES256CBC, AlgAES256GCM:
		return 32
	case AlgHMACSHA1:
		return 20
	case AlgHMACSHA256:
		return 32
	default:
		return 0
	}
}

// ShapeKey wraps raw key bytes for algorithm. Block cipher keys take the
// leading bytes of a longer secret; MAC keys use it whole.
func ShapeKey(secret []byte, algorithm string) ([]byte, error) {
	switch algorithm {
	case AlgAES128CBC, AlgAES128GCM, AlgAES256CBC, AlgAES256GCM:
		n := KeyLength(algorithm)
		if len(secret) < n {
			return nil, NewValidationError(ErrInvalidSecurityToken, "key of %d bytes too short for %s", len(secret), algorithm)
		}
		return append([]byte(nil), secret[:n]...), nil
	default:
		return append([]byte(nil), secret...), nil
	}
}
