package keystore

import (
	"context"
	"crypto"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"math/big"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sirosfoundation/go-wssec/internal/config"
	"github.com/sirosfoundation/go-wssec/pkg/security"
)

func selfSigned(t *testing.T, cn string, key crypto.Signer) *x509.Certificate {
	t.Helper()
	template := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: cn},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(time.Hour),
	}
	der, err := x509.CreateCertificate(rand.Reader, template, template, key.Public(), key)
	require.NoError(t, err)
	cert, err := x509.ParseCertificate(der)
	require.NoError(t, err)
	return cert
}

func writePEM(t *testing.T, path, typ string, der []byte) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, pem.EncodeToMemory(&pem.Block{Type: typ, Bytes: der}), 0o600))
}

func TestFileProvider(t *testing.T) {
	dir := t.TempDir()
	rsaKey, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	rsaCert := selfSigned(t, "signer", rsaKey)
	writePEM(t, filepath.Join(dir, "signer.key"), "RSA PRIVATE KEY", x509.MarshalPKCS1PrivateKey(rsaKey))
	writePEM(t, filepath.Join(dir, "signer.crt"), "CERTIFICATE", rsaCert.Raw)

	ecKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	ecDER, err := x509.MarshalPKCS8PrivateKey(ecKey)
	require.NoError(t, err)
	writePEM(t, filepath.Join(dir, "ec.key"), "PRIVATE KEY", ecDER)
	writePEM(t, filepath.Join(dir, "ec.crt"), "CERTIFICATE", selfSigned(t, "ec", ecKey).Raw)

	// a key without certificate is not listed
	writePEM(t, filepath.Join(dir, "orphan.key"), "RSA PRIVATE KEY", x509.MarshalPKCS1PrivateKey(rsaKey))

	p, err := NewFileProvider(dir)
	require.NoError(t, err)
	defer p.Close()
	ctx := context.Background()

	chain, err := p.Certificates(ctx, "signer")
	require.NoError(t, err)
	require.Len(t, chain, 1)
	assert.Equal(t, "signer", chain[0].Subject.CommonName)

	signer, err := p.Signer(ctx, "signer")
	require.NoError(t, err)
	assert.True(t, rsaKey.PublicKey.Equal(signer.Public()))

	keys, err := p.Keys(ctx)
	require.NoError(t, err)
	require.Len(t, keys, 2)
	assert.Equal(t, "ec", keys[0].Alias)
	assert.Equal(t, "EC", keys[0].Algorithm)
	assert.Equal(t, 256, keys[0].KeySize)
	assert.Equal(t, "signer", keys[1].Alias)
	assert.Equal(t, 2048, keys[1].KeySize)

	_, err = p.Signer(ctx, "missing")
	assert.ErrorIs(t, err, security.ErrUnknownAlias)
	_, err = p.Signer(ctx, "../signer")
	assert.ErrorIs(t, err, security.ErrUnknownAlias)
	_, err = p.Signer(ctx, "orphan")
	assert.Error(t, err)
}

func TestNewFileProviderRequiresDirectory(t *testing.T) {
	_, err := NewFileProvider(filepath.Join(t.TempDir(), "nope"))
	assert.Error(t, err)
}

func TestMemoryProvider(t *testing.T) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	cert := selfSigned(t, "mem", key)

	p := NewMemoryProvider()
	require.Error(t, p.Add("mem", key))
	require.NoError(t, p.Add("mem", key, cert))

	var c security.Crypto = p
	chain, err := c.Certificates(context.Background(), "mem")
	require.NoError(t, err)
	assert.Equal(t, cert.Raw, chain[0].Raw)

	_, err = c.Certificates(context.Background(), "other")
	assert.ErrorIs(t, err, ErrKeyNotFound)

	keys, err := p.Keys(context.Background())
	require.NoError(t, err)
	require.Len(t, keys, 1)
	assert.Equal(t, "CN=mem", keys[0].CertificateSubject)
}

func TestNewProvider(t *testing.T) {
	p, err := NewProvider(&config.KeystoreConfig{Mode: "memory"})
	require.NoError(t, err)
	assert.IsType(t, &MemoryProvider{}, p)

	cfg := &config.KeystoreConfig{Mode: "file"}
	cfg.File.Dir = t.TempDir()
	p, err = NewProvider(cfg)
	require.NoError(t, err)
	assert.IsType(t, &FileProvider{}, p)

	_, err = NewProvider(&config.KeystoreConfig{Mode: "prf"})
	assert.Error(t, err)
}
