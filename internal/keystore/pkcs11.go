//go:build pkcs11

package keystore

import (
	"context"
	"crypto"
	"crypto/x509"
	"fmt"
	"strings"
	"sync"

	"github.com/ThalesGroup/crypto11"
)

// PKCS11Provider implements Provider using a PKCS#11 token (HSM/smart card).
// Keys and certificates share the label derived from the alias.
type PKCS11Provider struct {
	ctx          *crypto11.Context
	labelPattern string
	mu           sync.RWMutex
	signers      map[string]crypto.Signer
	aliases      []string
}

var _ Provider = (*PKCS11Provider)(nil)

// PKCS11Config holds configuration for the PKCS#11 provider
type PKCS11Config struct {
	// ModulePath is the path to the PKCS#11 library (.so/.dylib/.dll)
	ModulePath string

	// SlotID is the slot number to use (optional if TokenLabel is provided)
	SlotID *int

	// TokenLabel is the token label to search for (optional if SlotID is provided)
	TokenLabel string

	// PIN is the user PIN for authentication
	PIN string

	// LabelPattern maps an alias to an object label, with {alias} as
	// placeholder. The default is the alias itself.
	LabelPattern string

	// Aliases are reported by Keys. PKCS#11 offers no label enumeration.
	Aliases []string
}

// NewPKCS11Provider creates a new PKCS#11 provider
func NewPKCS11Provider(cfg *PKCS11Config) (*PKCS11Provider, error) {
	if cfg.PIN == "" {
		return nil, ErrPINRequired
	}
	config := &crypto11.Config{
		Path:       cfg.ModulePath,
		Pin:        cfg.PIN,
		SlotNumber: cfg.SlotID,
		TokenLabel: cfg.TokenLabel,
	}

	ctx, err := crypto11.Configure(config)
	if err != nil {
		return nil, fmt.Errorf("configuring PKCS#11: %w", err)
	}

	pattern := cfg.LabelPattern
	if pattern == "" {
		pattern = "{alias}"
	}
	return &PKCS11Provider{
		ctx:          ctx,
		labelPattern: pattern,
		signers:      make(map[string]crypto.Signer),
		aliases:      cfg.Aliases,
	}, nil
}

// Signer returns the token key labelled for alias.
func (p *PKCS11Provider) Signer(_ context.Context, alias string) (crypto.Signer, error) {
	p.mu.RLock()
	if s, ok := p.signers[alias]; ok {
		p.mu.RUnlock()
		return s, nil
	}
	p.mu.RUnlock()

	key, err := p.ctx.FindKeyPair(nil, []byte(p.label(alias)))
	if err != nil {
		return nil, fmt.Errorf("finding key pair: %w", err)
	}
	if key == nil {
		return nil, fmt.Errorf("%w: %q", ErrKeyNotFound, alias)
	}

	p.mu.Lock()
	p.signers[alias] = key
	p.mu.Unlock()
	return key, nil
}

// Certificates returns the token certificate labelled for alias.
func (p *PKCS11Provider) Certificates(_ context.Context, alias string) ([]*x509.Certificate, error) {
	cert, err := p.ctx.FindCertificate(nil, []byte(p.label(alias)), nil)
	if err != nil {
		return nil, fmt.Errorf("finding certificate: %w", err)
	}
	if cert == nil {
		return nil, fmt.Errorf("%w: %q", ErrKeyNotFound, alias)
	}
	return []*x509.Certificate{cert}, nil
}

// Keys describes the certificates of the configured aliases.
func (p *PKCS11Provider) Keys(ctx context.Context) ([]KeyInfo, error) {
	var keys []KeyInfo
	for _, alias := range p.aliases {
		chain, err := p.Certificates(ctx, alias)
		if err != nil {
			return nil, err
		}
		keys = append(keys, keyInfo(alias, chain[0]))
	}
	return keys, nil
}

// Close releases PKCS#11 resources
func (p *PKCS11Provider) Close() error {
	return p.ctx.Close()
}

func (p *PKCS11Provider) label(alias string) string {
	return strings.ReplaceAll(p.labelPattern, "{alias}", alias)
}
