// Package storage provides the persistence backends for state that
// outlives a single message exchange.
//
// # Interface Design
//
// A [Store] is a [replay.Cache] shared between service instances, so a
// token accepted by one instance is recognized as replayed by all of
// them.
//
// # Implementations
//
// The mongodb sub-package provides a production-ready MongoDB
// implementation. The in-process [replay.MemoryCache] covers single
// instance deployments.
//
// # Concurrency
//
// All store implementations must be safe for concurrent use from multiple
// goroutines.
package storage

import (
	"context"

	"github.com/sirosfoundation/go-wssec/pkg/replay"
)

// Store is a shared replay cache backend.
type Store interface {
	replay.Cache

	// Close releases storage resources
	Close(ctx context.Context) error

	// Ping checks database connectivity
	Ping(ctx context.Context) error
}
