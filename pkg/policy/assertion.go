package policy

import (
	"fmt"
	"strings"

	"github.com/sirosfoundation/go-wssec/pkg/security"
	"github.com/sirosfoundation/go-wssec/pkg/xmlstream"
)

// Kind is the type of an assertion.
type Kind string

const (
	KindSignedParts              Kind = "SignedParts"
	KindSignedElements           Kind = "SignedElements"
	KindEncryptedParts           Kind = "EncryptedParts"
	KindEncryptedElements        Kind = "EncryptedElements"
	KindContentEncryptedElements Kind = "ContentEncryptedElements"
	KindIncludeTimestamp         Kind = "IncludeTimestamp"
	KindToken                    Kind = "Token"
)

// Wildcard as the local name of an element matches every element of its
// namespace.
const Wildcard = "*"

// Assertion is one requirement of a policy.
type Assertion struct {
	Kind Kind
	// Body selects the SOAP Body of either version for part assertions.
	Body bool
	// Elements are the header QNames of part assertions or the element
	// QNames of element assertions.
	Elements []xmlstream.Name
	// TokenType is the token a Token assertion requires.
	TokenType security.TokenType
}

// Policy is a compiled set of assertions.
type Policy struct {
	Name       string
	Assertions []Assertion
}

// String names the assertion in violation messages.
func (a Assertion) String() string {
	if a.Kind == KindToken {
		return fmt.Sprintf("%s(%s)", a.Kind, a.TokenType)
	}
	var names []string
	if a.Body {
		names = append(names, "Body")
	}
	for _, n := range a.Elements {
		names = append(names, n.String())
	}
	if len(names) == 0 {
		return string(a.Kind)
	}
	return fmt.Sprintf("%s(%s)", a.Kind, strings.Join(names, ", "))
}

// Matches reports whether the assertion covers the element name.
func (a Assertion) Matches(name xmlstream.Name) bool {
	if a.Body && name.Local == "Body" && security.IsSOAPNamespace(name.Space) {
		return true
	}
	for _, n := range a.Elements {
		if n.Space == name.Space && (n.Local == Wildcard || n.Local == name.Local) {
			return true
		}
	}
	return false
}

func (a Assertion) validate() error {
	switch a.Kind {
	case KindSignedParts, KindEncryptedParts:
		if !a.Body && len(a.Elements) == 0 {
			return fmt.Errorf("%w: %s selects no parts", ErrInvalidPolicy, a.Kind)
		}
	case KindSignedElements, KindEncryptedElements, KindContentEncryptedElements:
		if len(a.Elements) == 0 {
			return fmt.Errorf("%w: %s selects no elements", ErrInvalidPolicy, a.Kind)
		}
	case KindIncludeTimestamp:
	case KindToken:
		switch a.TokenType {
		case security.TokenTypeUsername, security.TokenTypeX509, security.TokenTypeKerberos, security.TokenTypeDerivedKey:
		default:
			return fmt.Errorf("%w: unsupported token type %q", ErrInvalidPolicy, a.TokenType)
		}
	default:
		return fmt.Errorf("%w: unknown assertion %q", ErrInvalidPolicy, a.Kind)
	}
	return nil
}

// Validate checks every assertion of p.
func (p *Policy) Validate() error {
	for _, a := range p.Assertions {
		if err := a.validate(); err != nil {
			return err
		}
	}
	return nil
}
