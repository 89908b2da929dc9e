// Copyright (c) 2024 SIROS Foundation
// SPDX-License-Identifier: BSD-2-Clause

/*
Package gowssec implements a streaming WS-Security pipeline for SOAP
messages.

# Overview

go-wssec secures and verifies SOAP 1.1 and 1.2 envelopes without building
a document tree. A message flows as a sequence of XML events through a
chain of processors that add or consume the wsse:Security header. Every
security relevant fact the processors observe is reported as a security
event, and a policy engine judges those events once the message ends.

# Specifications Implemented

  - WS-Security 1.1.1: https://docs.oasis-open.org/wss/v1.1/
  - Username Token Profile 1.1.1, including key derivation from passwords
  - X.509 and Kerberos Token Profiles 1.1.1
  - WS-SecureConversation 1.3: DerivedKeyToken with P_SHA-1
  - WS-SecurityPolicy 1.3: protection and token assertions
  - XML Signature with Exclusive XML Canonicalization
  - XML Encryption 1.1 with AES-GCM

# Package Structure

	github.com/sirosfoundation/go-wssec/pkg/xmlstream  - XML events, reader and writer
	github.com/sirosfoundation/go-wssec/pkg/security   - Security context, tokens, events and errors
	github.com/sirosfoundation/go-wssec/pkg/derivedkey - Derived key algorithms
	github.com/sirosfoundation/go-wssec/pkg/chain      - Processor chain
	github.com/sirosfoundation/go-wssec/pkg/outbound   - Processors that secure messages
	github.com/sirosfoundation/go-wssec/pkg/inbound    - Processors that verify messages
	github.com/sirosfoundation/go-wssec/pkg/validator  - Token validators and certificate trust
	github.com/sirosfoundation/go-wssec/pkg/policy     - Policy assertions and verdicts
	github.com/sirosfoundation/go-wssec/pkg/replay     - Replay detection
	github.com/sirosfoundation/go-wssec/pkg/wss        - Outbound and Inbound entry points

# Quick Start

	out, _ := wss.NewOutbound(outbound.Properties{
	    Actions:                       []outbound.Action{outbound.ActionUsernameToken, outbound.ActionEncrypt},
	    User:                          "bob",
	    UseDerivedKeyForUsernameToken: true,
	    DerivedKeys:                   true,
	    Callbacks:                     security.PasswordMap{"bob": "security"},
	})
	_, err := out.Process(ctx, request, &secured)

	in, _ := wss.NewInbound(inbound.Properties{
	    Callbacks: security.PasswordMap{"bob": "security"},
	}, wss.WithPolicy(p))
	res, err := in.Process(ctx, &secured, &plain)
	if err == nil {
	    err = res.Err()
	}

# License

BSD-2-Clause License
*/
package gowssec
