package keystore

import (
	"context"
	"crypto"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// FileProvider implements Provider using PEM files on disk.
//
// Key files are expected at {dir}/{alias}.key and certificate chains,
// leaf first, at {dir}/{alias}.crt.
type FileProvider struct {
	dir     string
	mu      sync.RWMutex
	entries map[string]*fileEntry
}

type fileEntry struct {
	key   crypto.Signer
	chain []*x509.Certificate
}

var _ Provider = (*FileProvider)(nil)

// NewFileProvider creates a provider reading from dir.
func NewFileProvider(dir string) (*FileProvider, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("checking key directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("key directory is not a directory: %s", dir)
	}
	return &FileProvider{dir: dir, entries: make(map[string]*fileEntry)}, nil
}

// Certificates returns the chain in {dir}/{alias}.crt.
func (p *FileProvider) Certificates(_ context.Context, alias string) ([]*x509.Certificate, error) {
	e, err := p.entry(alias)
	if err != nil {
		return nil, err
	}
	return append([]*x509.Certificate(nil), e.chain...), nil
}

// Signer returns the private key in {dir}/{alias}.key.
func (p *FileProvider) Signer(_ context.Context, alias string) (crypto.Signer, error) {
	e, err := p.entry(alias)
	if err != nil {
		return nil, err
	}
	return e.key, nil
}

// Keys lists the aliases with both a key and a certificate file.
func (p *FileProvider) Keys(_ context.Context) ([]KeyInfo, error) {
	files, err := os.ReadDir(p.dir)
	if err != nil {
		return nil, fmt.Errorf("reading key directory: %w", err)
	}
	var keys []KeyInfo
	for _, f := range files {
		alias, ok := strings.CutSuffix(f.Name(), ".key")
		if f.IsDir() || !ok {
			continue
		}
		chain, err := loadCertificates(filepath.Join(p.dir, alias+".crt"))
		if err != nil {
			continue
		}
		keys = append(keys, keyInfo(alias, chain[0]))
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].Alias < keys[j].Alias })
	return keys, nil
}

// Close drops the cached keys.
func (p *FileProvider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.entries = make(map[string]*fileEntry)
	return nil
}

func (p *FileProvider) entry(alias string) (*fileEntry, error) {
	p.mu.RLock()
	e, ok := p.entries[alias]
	p.mu.RUnlock()
	if ok {
		return e, nil
	}

	e, err := p.load(alias)
	if err != nil {
		return nil, err
	}
	p.mu.Lock()
	p.entries[alias] = e
	p.mu.Unlock()
	return e, nil
}

func (p *FileProvider) load(alias string) (*fileEntry, error) {
	if alias == "" || filepath.Base(alias) != alias {
		return nil, fmt.Errorf("%w: %q", ErrKeyNotFound, alias)
	}
	keyPEM, err := os.ReadFile(filepath.Join(p.dir, alias+".key"))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %q", ErrKeyNotFound, alias)
		}
		return nil, fmt.Errorf("reading key file: %w", err)
	}
	key, err := parsePrivateKey(keyPEM)
	if err != nil {
		return nil, fmt.Errorf("parsing private key: %w", err)
	}
	chain, err := loadCertificates(filepath.Join(p.dir, alias+".crt"))
	if err != nil {
		return nil, fmt.Errorf("loading certificate: %w", err)
	}
	return &fileEntry{key: key, chain: chain}, nil
}

func parsePrivateKey(pemData []byte) (crypto.Signer, error) {
	block, _ := pem.Decode(pemData)
	if block == nil {
		return nil, fmt.Errorf("no PEM block found")
	}

	switch block.Type {
	case "RSA PRIVATE KEY":
		return x509.ParsePKCS1PrivateKey(block.Bytes)
	case "EC PRIVATE KEY":
		return x509.ParseECPrivateKey(block.Bytes)
	case "PRIVATE KEY":
		key, err := x509.ParsePKCS8PrivateKey(block.Bytes)
		if err != nil {
			return nil, err
		}
		signer, ok := key.(crypto.Signer)
		if !ok {
			return nil, fmt.Errorf("key is not a signer")
		}
		return signer, nil
	default:
		return nil, fmt.Errorf("unsupported key type: %s", block.Type)
	}
}

// loadCertificates reads every CERTIFICATE block of a PEM file.
func loadCertificates(path string) ([]*x509.Certificate, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading certificate file: %w", err)
	}
	var chain []*x509.Certificate
	for {
		var block *pem.Block
		block, data = pem.Decode(data)
		if block == nil {
			break
		}
		if block.Type != "CERTIFICATE" {
			continue
		}
		cert, err := x509.ParseCertificate(block.Bytes)
		if err != nil {
			return nil, err
		}
		chain = append(chain, cert)
	}
	if len(chain) == 0 {
		return nil, fmt.Errorf("no certificate in %s", path)
	}
	return chain, nil
}
