package security

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidationErrorKinds(t *testing.T) {
	cause := errors.New("bad mac")
	err := fmt.Errorf("processor decrypt: %w", WrapValidationError(ErrFailedCheck, cause, "EncryptedData %s", "ED-1"))

	assert.ErrorIs(t, err, ErrValidation)
	assert.ErrorIs(t, err, ErrFailedCheck)
	assert.ErrorIs(t, err, cause)
	assert.NotErrorIs(t, err, ErrMessageExpired)

	var ve *ValidationError
	assert.True(t, errors.As(err, &ve))
	assert.Equal(t, ErrFailedCheck, ve.Kind)
	assert.Contains(t, err.Error(), "EncryptedData ED-1")
}

func TestFaultCode(t *testing.T) {
	cases := []struct {
		err   error
		local string
	}{
		{NewValidationError(ErrAuthenticationFailed, "x"), "FailedAuthentication"},
		{NewValidationError(ErrTicketValidationFailed, "x"), "FailedAuthentication"},
		{NewValidationError(ErrMessageExpired, "x"), "MessageExpired"},
		{NewValidationError(ErrFailedCheck, "x"), "FailedCheck"},
		{NewValidationError(ErrInvalidSecurityHeader, "x"), "InvalidSecurity"},
		{Configurationf("x"), "InvalidSecurity"},
	}
	for _, tc := range cases {
		code := FaultCode(tc.err)
		assert.Equal(t, NSSecurityExt, code.Space)
		assert.Equal(t, tc.local, code.Local)
	}
}

func TestErrorKind(t *testing.T) {
	assert.Equal(t, "ok", ErrorKind(nil))
	assert.Equal(t, "configuration", ErrorKind(Configurationf("missing")))
	assert.Equal(t, "derivation", ErrorKind(Derivationf("length")))
	assert.Equal(t, "message_expired", ErrorKind(NewValidationError(ErrMessageExpired, "old")))
	assert.Equal(t, "invalid_security", ErrorKind(NewValidationError(ErrInvalidSecurity, "replay")))
	assert.Equal(t, "error", ErrorKind(errors.New("other")))
}
