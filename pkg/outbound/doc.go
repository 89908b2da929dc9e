// Copyright (c) 2024 SIROS Foundation
// SPDX-License-Identifier: BSD-2-Clause

// Package outbound provides the output processors that secure a SOAP
// message as it streams to the serializer.
//
// Configure builds the output chain for a list of actions:
//
//	Timestamp            wsu:Timestamp with Created and Expires
//	UsernameToken        wsse:UsernameToken, with a password or with
//	                     Salt and Iteration for key derivation
//	Signature            ds:Signature over the configured parts
//	Encrypt              xenc:EncryptedData for the configured parts
//
// The security header processor opens wsse:Security as the first child of
// soap:Header, synthesizing the Header when the message has none. Token
// processors react to the opening of the security header by appending
// their elements to it. Processors later in the chain therefore write
// their elements first, which puts a token ahead of the DerivedKeyToken
// that refers to it and ahead of the Signature that uses it.
//
// With DerivedKeys set, signing and encryption use keys derived from the
// UsernameToken key through a wsc:DerivedKeyToken.
//
// Signing must precede encryption. The Signature and Encrypt processors
// hold back the rest of the document from the end of the security header on
// and release it when the document is complete, since the ds:Signature and
// xenc:ReferenceList elements depend on content that follows them.
package outbound
