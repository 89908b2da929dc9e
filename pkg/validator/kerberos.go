package validator

import (
	"context"

	"github.com/sirosfoundation/go-wssec/pkg/security"
)

// KerberosServiceContext is the outcome of accepting a Kerberos ticket.
type KerberosServiceContext struct {
	Principal  string
	SessionKey []byte
}

// TicketValidator accepts an AP-REQ ticket for service. Ticket acquisition
// and GSS-API processing live behind this capability.
type TicketValidator interface {
	ValidateTicket(ctx context.Context, ticket []byte, service string) (*KerberosServiceContext, error)
}

// TicketValidatorFunc adapts a function to TicketValidator.
type TicketValidatorFunc func(ctx context.Context, ticket []byte, service string) (*KerberosServiceContext, error)

// ValidateTicket calls f.
func (f TicketValidatorFunc) ValidateTicket(ctx context.Context, ticket []byte, service string) (*KerberosServiceContext, error) {
	return f(ctx, ticket, service)
}

// TokenDecoder extracts the session key from a ticket when the ticket
// validator does not expose it.
type TokenDecoder interface {
	SessionKey(ticket []byte) ([]byte, error)
}

// KerberosValidator validates Kerberos BinarySecurityTokens.
type KerberosValidator struct {
	Tickets     TicketValidator
	Decoder     TokenDecoder
	ServiceName string
}

// Validate validates an AP-REQ ticket and takes its session key as the
// credential secret.
func (v *KerberosValidator) Validate(ctx context.Context, cred *security.Credential, rc *RequestContext) (*security.Credential, error) {
	if cred == nil || cred.BinaryToken == nil {
		return nil, security.NewValidationError(security.ErrInvalidSecurityToken, "no BinarySecurityToken in credential")
	}
	if cred.BinaryToken.ValueType != security.ValueTypeKerberosAPREQ {
		return cred, nil
	}
	if v.Tickets == nil {
		return nil, security.Configurationf("no kerberos ticket validator")
	}

	ticket := cred.BinaryToken.Data
	ksc, err := v.Tickets.ValidateTicket(ctx, ticket, v.ServiceName)
	if err != nil {
		return nil, security.WrapValidationError(security.ErrTicketValidationFailed, err, "service %q", v.ServiceName)
	}
	if ksc == nil || ksc.Principal == "" {
		return nil, security.NewValidationError(security.ErrTicketValidationFailed, "no principal for ticket")
	}
	cred.Principal = ksc.Principal

	log := rc.logger()
	if len(ksc.SessionKey) > 0 {
		cred.SecretKey = ksc.SessionKey
	} else if v.Decoder != nil {
		key, err := v.Decoder.SessionKey(ticket)
		if err != nil {
			return nil, security.WrapValidationError(security.ErrTicketValidationFailed, err, "decoding session key")
		}
		cred.SecretKey = key
	}
	if len(cred.SecretKey) == 0 {
		log.Debug("kerberos ticket carries no session key", "principal", ksc.Principal)
	}
	return cred, nil
}
