package keystore

import (
	"context"
	"crypto"
	"crypto/x509"
	"fmt"
	"sort"
	"sync"
)

// MemoryProvider holds keys added at runtime.
type MemoryProvider struct {
	mu      sync.RWMutex
	entries map[string]*fileEntry
}

var _ Provider = (*MemoryProvider)(nil)

// NewMemoryProvider returns an empty provider.
func NewMemoryProvider() *MemoryProvider {
	return &MemoryProvider{entries: make(map[string]*fileEntry)}
}

// Add stores key under alias with its certificate chain, leaf first. An
// existing alias is replaced.
func (p *MemoryProvider) Add(alias string, key crypto.Signer, chain ...*x509.Certificate) error {
	if len(chain) == 0 {
		return fmt.Errorf("alias %q needs a certificate", alias)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.entries[alias] = &fileEntry{key: key, chain: append([]*x509.Certificate(nil), chain...)}
	return nil
}

func (p *MemoryProvider) get(alias string) (*fileEntry, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	e, ok := p.entries[alias]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrKeyNotFound, alias)
	}
	return e, nil
}

// Certificates returns the chain stored for alias.
func (p *MemoryProvider) Certificates(_ context.Context, alias string) ([]*x509.Certificate, error) {
	e, err := p.get(alias)
	if err != nil {
		return nil, err
	}
	return append([]*x509.Certificate(nil), e.chain...), nil
}

// Signer returns the private key stored for alias.
func (p *MemoryProvider) Signer(_ context.Context, alias string) (crypto.Signer, error) {
	e, err := p.get(alias)
	if err != nil {
		return nil, err
	}
	return e.key, nil
}

// Keys lists the stored aliases.
func (p *MemoryProvider) Keys(_ context.Context) ([]KeyInfo, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	keys := make([]KeyInfo, 0, len(p.entries))
	for alias, e := range p.entries {
		keys = append(keys, keyInfo(alias, e.chain[0]))
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].Alias < keys[j].Alias })
	return keys, nil
}

func (p *MemoryProvider) Close() error { return nil }
