package derivedkey

import (
	"sort"
	"sync"

	"github.com/sirosfoundation/go-wssec/pkg/security"
)

// Registry maps algorithm URIs to algorithms. It is safe for concurrent use.
type Registry struct {
	mu    sync.RWMutex
	algos map[string]Algorithm
}

// NewRegistry returns a registry holding algos.
func NewRegistry(algos ...Algorithm) *Registry {
	r := &Registry{algos: make(map[string]Algorithm)}
	for _, a := range algos {
		r.algos[a.URI()] = a
	}
	return r
}

// Default holds P_SHA-1 under both WS-SecureConversation URIs and HKDF.
var Default = NewRegistry(
	NewPSHA1(security.AlgPSHA1),
	NewPSHA1(security.AlgPSHA1SC13),
	HKDF{},
)

// Register adds or replaces the algorithm for its URI.
func (r *Registry) Register(a Algorithm) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.algos[a.URI()] = a
}

// Lookup returns the algorithm for uri. An empty uri selects P_SHA-1.
func (r *Registry) Lookup(uri string) (Algorithm, error) {
	if uri == "" {
		uri = security.AlgPSHA1
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.algos[uri]
	if !ok {
		return nil, security.Derivationf("unknown derivation algorithm %s", uri)
	}
	return a, nil
}

// URIs lists the registered algorithm URIs.
func (r *Registry) URIs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	uris := make([]string, 0, len(r.algos))
	for uri := range r.algos {
		uris = append(uris, uri)
	}
	sort.Strings(uris)
	return uris
}

// Derive runs the algorithm registered for uri.
func (r *Registry) Derive(uri string, secret, seed []byte, offset, length int) ([]byte, error) {
	a, err := r.Lookup(uri)
	if err != nil {
		return nil, err
	}
	return a.Derive(secret, seed, offset, length)
}

// Derive runs uri from the Default registry.
func Derive(uri string, secret, seed []byte, offset, length int) ([]byte, error) {
	return Default.Derive(uri, secret, seed, offset, length)
}
