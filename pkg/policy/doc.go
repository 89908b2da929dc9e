// Copyright (c) 2024 SIROS Foundation
// SPDX-License-Identifier: BSD-2-Clause

// Package policy evaluates the security events of a message exchange
// against the assertions of a security policy.
//
// An Engine holds one AssertionState per assertion. It listens to the
// Security Context of an input chain and offers every event to the states
// whose assertion covers it:
//
//	SignedParts               SignedPart events for the Body and headers
//	SignedElements            SignedElement events
//	EncryptedParts            EncryptedPart events
//	EncryptedElements         EncryptedElement events
//	ContentEncryptedElements  ContentEncryptedElement events
//	IncludeTimestamp          Timestamp events
//	Token                     token events of one token type
//
// A state covers a whole class of elements. It becomes Asserted when a
// matching element arrives protected and Violated as soon as one arrives
// unprotected; Violated is final. When the exchange completes, element
// assertions that saw no matching element are vacuously Asserted, while
// IncludeTimestamp and Token assertions are Violated.
//
// The Verdict passes only if every state is Asserted. Its error lists
// every violation.
//
// Policies are usually loaded from YAML:
//
//	namespaces:
//	  ex: urn:example:orders
//	signedParts:
//	  body: true
//	  headers:
//	    - namespace: urn:example:addressing
//	      name: To
//	encryptedParts:
//	  body: true
//	signedElements:
//	  - /soap:Envelope/soap:Body/ex:Order/ex:Item
//	includeTimestamp: true
//	tokens: [UsernameToken]
package policy
