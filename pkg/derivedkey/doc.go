// Copyright (c) 2024 SIROS Foundation
// SPDX-License-Identifier: BSD-2-Clause

// Package derivedkey computes derived key bytes for WS-SecureConversation
// DerivedKeyTokens.
//
// A derivation algorithm is a pure function of a secret, a seed, an offset
// and a length. Algorithms are looked up by URI in a Registry so new
// functions can be added without touching call sites:
//
//	key, err := derivedkey.Derive(security.AlgPSHA1, secret, seed, 0, 16)
//
// The seed of a DerivedKeyToken is its label followed by its nonce. When a
// token carries no Label element the default label, "WS-SecureConversation"
// written twice, applies.
//
// Token holds the derived bytes together with the derivation inputs, so the
// exact key can be regenerated from the wrapping secret. Resolver produces a
// Token lazily for a token received in a message.
package derivedkey
