// Copyright (c) 2024 SIROS Foundation
// SPDX-License-Identifier: BSD-2-Clause

// Package inbound provides the input processors that verify a secured SOAP
// message as it streams from the parser.
//
// The security header processor buffers wsse:Security and handles its
// children in document order. Tokens are validated and registered as they
// are met, so an element may only refer to tokens that precede it:
//
//	wsu:Timestamp              freshness and replay
//	wsse:UsernameToken         password or key derivation, nonce replay
//	wsse:BinarySecurityToken   X.509 certificate or Kerberos ticket
//	wsc:DerivedKeyToken        key derived from an earlier token
//	ds:Signature               SignedInfo verification
//	xenc:ReferenceList         EncryptedData to decrypt
//
// A ReferenceList adds a decrypt processor that replaces each referenced
// xenc:EncryptedData with its plaintext events. A Signature adds a
// processor that digests the referenced elements outside the header once
// they have been decrypted. Both fail at the end of the document when a
// referenced element never appeared.
//
// The coverage processor reports the SOAP parts and watched elements that
// were neither signed nor encrypted, so a policy listener sees every part.
package inbound
