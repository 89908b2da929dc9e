// Copyright (c) 2024 SIROS Foundation
// SPDX-License-Identifier: BSD-2-Clause

// Package replay detects replayed security tokens.
//
// The inbound pipeline records the identity of every UsernameToken nonce
// and every Timestamp it accepts in a [Cache] for as long as the token
// could still pass freshness checks. Seeing the same identity again within
// that window is a replay:
//
//	cache := replay.NewMemoryCache(time.Minute)
//	defer cache.Close()
//	fresh, err := cache.Add(ctx, replay.Key("ut", user, nonce), expires)
//
// [MemoryCache] serves a single process. Deployments running several
// instances behind a load balancer share a MongoDB-backed cache from
// internal/storage/mongodb.
package replay
