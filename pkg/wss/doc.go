// Copyright (c) 2024 SIROS Foundation
// SPDX-License-Identifier: BSD-2-Clause

// Package wss provides the entry points of the WS-Security pipeline.
//
// An [Outbound] secures SOAP messages and an [Inbound] verifies them. Both
// read the message as a stream of XML events, run it through a processor
// chain configured from properties and write the result only once the
// whole message was processed, so a failed message never produces partial
// output.
//
// # Securing
//
//	out, err := wss.NewOutbound(outbound.Properties{
//		Actions:                       []outbound.Action{outbound.ActionUsernameToken, outbound.ActionEncrypt},
//		User:                          "bob",
//		UseDerivedKeyForUsernameToken: true,
//		DerivedKeys:                   true,
//		Callbacks:                     security.PasswordMap{"bob": "security"},
//	})
//	res, err := out.Process(ctx, request, &secured)
//
// # Verifying
//
// A message is secure only if both gates pass: every token validator
// accepted its credential, which Process reports as an error, and the
// policy verdict passed, which [Result.Err] reports.
//
//	in, err := wss.NewInbound(props, wss.WithPolicy(p))
//	res, err := in.Process(ctx, secured, &plain)
//	if err == nil {
//		err = res.Err()
//	}
//
// # Correlation
//
// A response answering a verified request is secured with
// [Outbound.Respond], which hands the request's security events to the
// output chain. A response without a configured user then carries a
// UsernameToken for the request's principal.
package wss
