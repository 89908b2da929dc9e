package validator

import (
	"context"
	"time"

	"github.com/sirosfoundation/go-wssec/pkg/security"
)

// Timestamp validation defaults.
const (
	DefaultTimestampTTL       = 300 * time.Second
	DefaultTimestampFutureTTL = 60 * time.Second
)

// TimestampValidator checks the freshness of wsu:Timestamp. Created is
// required even though the schema makes it optional.
type TimestampValidator struct {
	// TTL bounds the age of Created. Zero means DefaultTimestampTTL.
	TTL time.Duration
	// FutureTTL is the clock skew allowed for a Created in the future.
	// Zero means DefaultTimestampFutureTTL; negative allows none.
	FutureTTL time.Duration
	// LenientExpires skips the Expires check.
	LenientExpires bool
}

// Validate checks Created against the allowed age and future skew, and
// Expires unless LenientExpires is set.
func (v *TimestampValidator) Validate(_ context.Context, cred *security.Credential, rc *RequestContext) (*security.Credential, error) {
	if cred == nil || cred.Timestamp == nil {
		return nil, security.NewValidationError(security.ErrInvalidSecurityHeader, "no Timestamp in credential")
	}
	ts := cred.Timestamp
	if ts.Created == "" {
		return nil, security.NewValidationError(security.ErrInvalidSecurityHeader, "Timestamp without Created")
	}
	created, err := ParseDateTime(ts.Created)
	if err != nil {
		return nil, security.WrapValidationError(security.ErrInvalidSecurity, err, "Timestamp Created")
	}

	now := rc.now()
	if ts.Expires != "" {
		expires, err := ParseDateTime(ts.Expires)
		if err != nil {
			return nil, security.WrapValidationError(security.ErrInvalidSecurity, err, "Timestamp Expires")
		}
		if !v.LenientExpires && expires.Before(now) {
			return nil, security.NewValidationError(security.ErrMessageExpired, "expired at %s", ts.Expires)
		}
	}

	ttl := v.TTL
	if ttl == 0 {
		ttl = DefaultTimestampTTL
	}
	future := v.FutureTTL
	switch {
	case future == 0:
		future = DefaultTimestampFutureTTL
	case future < 0:
		future = 0
	}
	if created.After(now.Add(future)) {
		return nil, security.NewValidationError(security.ErrMessageExpired, "created in the future at %s", ts.Created)
	}
	if created.Before(now.Add(-ttl)) {
		return nil, security.NewValidationError(security.ErrMessageExpired, "created too long ago at %s", ts.Created)
	}
	return cred, nil
}

// ParseDateTime parses an xsd:dateTime. A value without zone is UTC.
func ParseDateTime(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02T15:04:05.999999999", s)
}
