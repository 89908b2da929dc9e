package validator

import (
	"context"
	"crypto/x509"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/sirosfoundation/go-trust/pkg/authzen"
	"github.com/sirosfoundation/go-trust/pkg/authzenclient"

	"github.com/sirosfoundation/go-wssec/pkg/security"
)

var (
	// ErrCertificateExpired is returned when a certificate has expired
	ErrCertificateExpired = errors.New("certificate has expired")
	// ErrCertificateNotYetValid is returned when a certificate is not yet valid
	ErrCertificateNotYetValid = errors.New("certificate is not yet valid")
	// ErrCertificateUntrusted is returned when a certificate is not trusted
	ErrCertificateUntrusted = errors.New("certificate is not trusted")
	// ErrCertificateRevoked is returned when a certificate has been revoked
	ErrCertificateRevoked = errors.New("certificate has been revoked")
	// ErrInvalidCertificate is returned for other certificate validation failures
	ErrInvalidCertificate = errors.New("certificate validation failed")
)

// Purposes passed to certificate validators.
const (
	PurposeSigning    = "signing"
	PurposeEncryption = "encryption"
)

// CertificateValidator decides whether a certificate chain is trusted for
// purpose. The chain is leaf first.
type CertificateValidator interface {
	ValidateChain(ctx context.Context, chain []*x509.Certificate, purpose string) error
}

// X509Validator validates X.509 BinarySecurityTokens and certificates
// referenced by signatures.
type X509Validator struct {
	Trust   CertificateValidator
	Purpose string
}

// Validate parses the certificate chain and checks it with Trust.
func (v *X509Validator) Validate(ctx context.Context, cred *security.Credential, rc *RequestContext) (*security.Credential, error) {
	if cred == nil {
		return nil, security.NewValidationError(security.ErrInvalidSecurityToken, "no credential")
	}
	chain := cred.Certificates
	if len(chain) == 0 && cred.BinaryToken != nil {
		cert, err := x509.ParseCertificate(cred.BinaryToken.Data)
		if err != nil {
			return nil, security.WrapValidationError(security.ErrInvalidSecurityToken, err, "X.509 token %s", cred.BinaryToken.ID)
		}
		chain = []*x509.Certificate{cert}
	}
	if len(chain) == 0 {
		return nil, security.NewValidationError(security.ErrInvalidSecurityToken, "no certificate in credential")
	}
	if v.Trust == nil {
		return nil, security.Configurationf("no certificate trust configured")
	}

	purpose := v.Purpose
	if purpose == "" {
		purpose = PurposeSigning
	}
	if err := v.Trust.ValidateChain(ctx, chain, purpose); err != nil {
		rc.logger().Warn("certificate rejected", "subject", chain[0].Subject.String(), "error", err)
		return nil, security.WrapValidationError(security.ErrAuthenticationFailed, err, "certificate %s", chain[0].Subject)
	}
	cred.Certificates = chain
	cred.Principal = chain[0].Subject.String()
	return cred, nil
}

// PKIValidator implements traditional PKI validation against a root pool.
type PKIValidator struct {
	roots *x509.CertPool
	// Now is the clock; nil means time.Now.
	Now func() time.Time
}

// NewPKIValidator creates a validator trusting roots.
func NewPKIValidator(roots *x509.CertPool) *PKIValidator {
	return &PKIValidator{roots: roots}
}

// ValidateChain verifies the leaf against the roots, using the rest of the
// chain as intermediates.
func (v *PKIValidator) ValidateChain(_ context.Context, chain []*x509.Certificate, purpose string) error {
	if len(chain) == 0 {
		return fmt.Errorf("%w: empty chain", ErrInvalidCertificate)
	}
	cert := chain[0]
	now := time.Now()
	if v.Now != nil {
		now = v.Now()
	}
	if now.Before(cert.NotBefore) {
		return ErrCertificateNotYetValid
	}
	if now.After(cert.NotAfter) {
		return ErrCertificateExpired
	}

	opts := x509.VerifyOptions{
		Roots:         v.roots,
		CurrentTime:   now,
		Intermediates: x509.NewCertPool(),
		KeyUsages:     []x509.ExtKeyUsage{x509.ExtKeyUsageAny},
	}
	for _, intermediate := range chain[1:] {
		opts.Intermediates.AddCert(intermediate)
	}
	if purpose == "tls-client" {
		opts.KeyUsages = []x509.ExtKeyUsage{x509.ExtKeyUsageClientAuth}
	}

	if _, err := cert.Verify(opts); err != nil {
		return fmt.Errorf("%w: %v", ErrCertificateUntrusted, err)
	}
	return nil
}

// AuthZENValidator asks an AuthZEN Trust Framework PDP whether the
// certificate's public key is bound to its subject name
// (draft-johansson-authzen-trust-00).
type AuthZENValidator struct {
	client  *authzenclient.Client
	timeout time.Duration
}

// NewAuthZENValidator creates a validator for the PDP at pdpEndpoint, the
// base URL or the full /evaluation URL.
func NewAuthZENValidator(pdpEndpoint string) *AuthZENValidator {
	return NewAuthZENValidatorWithClient(authzenclient.New(pdpEndpoint))
}

// NewAuthZENValidatorWithClient creates a validator using a pre-configured
// client.
func NewAuthZENValidatorWithClient(client *authzenclient.Client) *AuthZENValidator {
	return &AuthZENValidator{client: client, timeout: 30 * time.Second}
}

// WithTimeout bounds each evaluation request.
func (v *AuthZENValidator) WithTimeout(d time.Duration) *AuthZENValidator {
	v.timeout = d
	return v
}

// ValidateChain asks the AuthZEN service whether chain is trusted for purpose.
func (v *AuthZENValidator) ValidateChain(ctx context.Context, chain []*x509.Certificate, purpose string) error {
	if len(chain) == 0 || chain[0] == nil {
		return fmt.Errorf("%w: empty chain", ErrInvalidCertificate)
	}
	cert := chain[0]

	// x5c per RFC 7517 Section 4.7: standard base64 DER, leaf first.
	x5c := make([]interface{}, 0, len(chain))
	for _, c := range chain {
		x5c = append(x5c, base64.StdEncoding.EncodeToString(c.Raw))
	}

	name := subjectName(cert)
	if name == "" {
		return fmt.Errorf("%w: certificate has no identifiable subject name", ErrInvalidCertificate)
	}

	request := &authzen.EvaluationRequest{
		Subject: authzen.Subject{
			Type: "key",
			ID:   name,
		},
		Resource: authzen.Resource{
			Type: "x5c",
			ID:   name,
			Key:  x5c,
		},
	}
	if purpose != "" {
		request.Action = &authzen.Action{Name: purpose}
	}

	ctx, cancel := context.WithTimeout(ctx, v.timeout)
	defer cancel()

	response, err := v.client.Evaluate(ctx, request)
	if err != nil {
		return fmt.Errorf("AuthZEN evaluation failed: %w", err)
	}
	if !response.Decision {
		if response.Context != nil && response.Context.Reason != nil {
			return fmt.Errorf("%w: %v", ErrCertificateUntrusted, response.Context.Reason)
		}
		return ErrCertificateUntrusted
	}
	return nil
}

// subjectName returns the CommonName, falling back to the first DNS name,
// email address or URI.
func subjectName(cert *x509.Certificate) string {
	switch {
	case cert.Subject.CommonName != "":
		return cert.Subject.CommonName
	case len(cert.DNSNames) > 0:
		return cert.DNSNames[0]
	case len(cert.EmailAddresses) > 0:
		return cert.EmailAddresses[0]
	case len(cert.URIs) > 0:
		return cert.URIs[0].String()
	}
	return ""
}
