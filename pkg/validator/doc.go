// Copyright (c) 2024 SIROS Foundation
// SPDX-License-Identifier: BSD-2-Clause

/*
Package validator implements the token validators invoked by the inbound
chain for every credential-bearing element of a security header.

A [Validator] turns a parsed [security.Credential] into a validated one or
fails with a [security.ValidationError]:

  - [UsernameValidator] checks a UsernameToken password (text or digest)
    against the callback handler, or derives the UsernameToken key when
    the token carries a salt
  - [KerberosValidator] exchanges an AP-REQ ticket for a principal and a
    session key through a [TicketValidator]
  - [TimestampValidator] enforces Created and Expires freshness windows
  - [X509Validator] checks a certificate chain through a
    [CertificateValidator]: traditional PKI, an AuthZEN trust PDP, and
    optionally OCSP/CRL revocation

Validators are registered in a [Registry] keyed by token type:

	reg := validator.NewRegistry()
	reg.Register(security.TokenTypeUsername, &validator.UsernameValidator{})
	reg.Register(security.TokenTypeTimestamp, &validator.TimestampValidator{TTL: 5 * time.Minute})

A token for which no validator is registered is rejected with
[security.ErrInvalidSecurityToken].
*/
package validator
