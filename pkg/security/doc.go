// Copyright (c) 2024 SIROS Foundation
// SPDX-License-Identifier: BSD-2-Clause

/*
Package security holds the per-message state shared by every stage of the
streaming WS-Security pipeline.

# Security Context

A [SecurityContext] is created for one message exchange and owned by the
processor chain of that exchange. It stores typed properties under string
keys (for example which token id backs the next signature) and the registry
of [TokenProvider] values keyed by token id:

	sc := security.NewSecurityContext()
	if err := sc.RegisterProvider(provider); err != nil {
	    // duplicate token id: ErrConfiguration
	}
	sc.Put(security.PropUseThisTokenIDForSignature, provider.ID())

The context is not safe for concurrent use; distinct exchanges use distinct
contexts.

# Tokens

A [Token] is resolved key material. Symmetric tokens expose their secret
through SecretKey, which wraps the raw bytes for the requested algorithm and
caches the result per algorithm URI. Asymmetric tokens expose a certificate
chain and, for local keys, a signer. A token derived from another one keeps
only the id of the wrapping token and looks it up in the context on demand.

Providers resolve lazily and exactly once. [CachedProvider] gives any
resolver that behavior.

# Events and Credentials

Processors report what they observed as [Event] values (a signed part, an
encrypted element, a timestamp, a token) to the [EventListener] registered
on the context; the policy engine is such a listener. Token validators turn
a parsed [Credential] into a validated one.

# Errors

Errors fall into four programmatically distinguishable classes:

  - [ErrConfiguration]: a required token id or provider is missing
  - [ErrDerivation]: invalid key derivation parameters
  - [ValidationError]: a message failed a check; its Kind is one of
    [ErrAuthenticationFailed], [ErrTicketValidationFailed],
    [ErrMessageExpired], [ErrInvalidSecurityHeader], [ErrFailedCheck],
    [ErrInvalidSecurity], [ErrInvalidSecurityToken],
    [ErrSecurityTokenUnavailable] or [ErrUnsupportedAlgorithm]
  - [ErrPolicyViolation]: one or more policy assertions were violated

Use errors.Is to branch on any of them. [FaultCode] maps an error to the
WS-Security SOAP fault code.
*/
package security
