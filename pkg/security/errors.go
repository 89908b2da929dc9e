package security

import (
	"errors"
	"fmt"

	"github.com/sirosfoundation/go-wssec/pkg/xmlstream"
)

var (
	// ErrConfiguration is returned when a required token id, provider or
	// property is missing or inconsistent.
	ErrConfiguration = errors.New("security configuration error")
	// ErrDerivation is returned for invalid key derivation parameters.
	ErrDerivation = errors.New("key derivation error")
	// ErrValidation matches every ValidationError.
	ErrValidation = errors.New("security validation failed")
	// ErrPolicyViolation matches policy verdict failures.
	ErrPolicyViolation = errors.New("security policy violated")
)

// Validation error kinds.
var (
	ErrAuthenticationFailed     = errors.New("authentication failed")
	ErrTicketValidationFailed   = errors.New("kerberos ticket validation failed")
	ErrMessageExpired           = errors.New("message expired")
	ErrInvalidSecurityHeader    = errors.New("invalid security header")
	ErrFailedCheck              = errors.New("signature or decryption check failed")
	ErrInvalidSecurity          = errors.New("invalid security")
	ErrInvalidSecurityToken     = errors.New("invalid security token")
	ErrSecurityTokenUnavailable = errors.New("security token unavailable")
	ErrUnsupportedAlgorithm     = errors.New("unsupported algorithm")
)

// ValidationError reports a message that failed a security check.
type ValidationError struct {
	// Kind is one of the validation error kind sentinels.
	Kind error
	Msg  string
	Err  error
}

// NewValidationError returns a ValidationError of the given kind.
func NewValidationError(kind error, format string, args ...any) *ValidationError {
	return &ValidationError{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// WrapValidationError returns a ValidationError of the given kind caused by err.
func WrapValidationError(kind error, err error, format string, args ...any) *ValidationError {
	return &ValidationError{Kind: kind, Msg: fmt.Sprintf(format, args...), Err: err}
}

func (e *ValidationError) Error() string {
	msg := e.Kind.Error()
	if e.Msg != "" {
		msg += ": " + e.Msg
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ValidationError) Unwrap() []error {
	errs := []error{ErrValidation, e.Kind}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

// Configurationf returns an ErrConfiguration with detail.
func Configurationf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrConfiguration, fmt.Sprintf(format, args...))
}

// Derivationf returns an ErrDerivation with detail.
func Derivationf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrDerivation, fmt.Sprintf(format, args...))
}

// FaultCode maps err to the WS-Security 1.1 fault code a SOAP fault for it
// would carry. Errors outside the taxonomy map to wsse:InvalidSecurity.
func FaultCode(err error) xmlstream.Name {
	local := "InvalidSecurity"
	switch {
	case errors.Is(err, ErrAuthenticationFailed), errors.Is(err, ErrTicketValidationFailed):
		local = "FailedAuthentication"
	case errors.Is(err, ErrMessageExpired):
		local = "MessageExpired"
	case errors.Is(err, ErrFailedCheck):
		local = "FailedCheck"
	case errors.Is(err, ErrInvalidSecurityToken):
		local = "InvalidSecurityToken"
	case errors.Is(err, ErrSecurityTokenUnavailable):
		local = "SecurityTokenUnavailable"
	case errors.Is(err, ErrUnsupportedAlgorithm):
		local = "UnsupportedAlgorithm"
	}
	return xmlstream.NewName(NSSecurityExt, "wsse", local)
}

// ErrorKind returns a short label for the class of err, suitable for logs
// and metric labels.
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrConfiguration):
		return "configuration"
	case errors.Is(err, ErrDerivation):
		return "derivation"
	case errors.Is(err, ErrPolicyViolation):
		return "policy_violation"
	case errors.Is(err, ErrAuthenticationFailed):
		return "authentication_failed"
	case errors.Is(err, ErrTicketValidationFailed):
		return "ticket_validation_failed"
	case errors.Is(err, ErrMessageExpired):
		return "message_expired"
	case errors.Is(err, ErrInvalidSecurityHeader):
		return "invalid_security_header"
	case errors.Is(err, ErrFailedCheck):
		return "failed_check"
	case errors.Is(err, ErrValidation):
		return "invalid_security"
	default:
		return "error"
	}
}
