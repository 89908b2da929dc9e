package derivedkey

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sirosfoundation/go-wssec/pkg/security"
)

func testSeed() []byte {
	p := Params{Nonce: make([]byte, NonceLength)}
	for i := range p.Nonce {
		p.Nonce[i] = byte(i)
	}
	return p.Seed()
}

func TestPSHA1KnownAnswer(t *testing.T) {
	key, err := Derive(security.AlgPSHA1, []byte("shared-secret"), testSeed(), 0, 32)
	require.NoError(t, err)
	assert.Equal(t, "faad1bf8c52534f02247f0409a31427ad871501a8945d5fddd0f780b2fcb14bf", hex.EncodeToString(key))

	shifted, err := Derive(security.AlgPSHA1, []byte("shared-secret"), testSeed(), 16, 32)
	require.NoError(t, err)
	assert.Equal(t, "d871501a8945d5fddd0f780b2fcb14bfef9bf027f9d04cb3329d29ff42f02512", hex.EncodeToString(shifted))
	assert.Equal(t, key[16:], shifted[:16])
}

func TestHKDFKnownAnswer(t *testing.T) {
	key, err := Derive(security.AlgHKDF, []byte("shared-secret"), testSeed(), 0, 24)
	require.NoError(t, err)
	assert.Equal(t, "6bb639ee0f43841c70d5e7bc232c6bc0998fd7100fcac079", hex.EncodeToString(key))
}

func TestDeriveDeterministicAndSensitive(t *testing.T) {
	for _, uri := range Default.URIs() {
		t.Run(uri, func(t *testing.T) {
			for i := 0; i < 20; i++ {
				secret := make([]byte, 20)
				seed := make([]byte, 58)
				_, err := rand.Read(secret)
				require.NoError(t, err)
				_, err = rand.Read(seed)
				require.NoError(t, err)

				a, err := Derive(uri, secret, seed, 0, 32)
				require.NoError(t, err)
				b, err := Derive(uri, secret, seed, 0, 32)
				require.NoError(t, err)
				assert.Equal(t, a, b)

				pos := i % len(secret)
				secret[pos] ^= 0x01
				c, err := Derive(uri, secret, seed, 0, 32)
				require.NoError(t, err)
				assert.NotEqual(t, a, c)
				secret[pos] ^= 0x01

				seed[i%len(seed)] ^= 0x80
				d, err := Derive(uri, secret, seed, 0, 32)
				require.NoError(t, err)
				assert.NotEqual(t, a, d)
			}
		})
	}
}

func TestDeriveLength(t *testing.T) {
	for _, n := range []int{1, 16, 20, 21, 32, 64, 100} {
		key, err := Derive(security.AlgPSHA1, []byte("s"), []byte("seed"), 3, n)
		require.NoError(t, err)
		assert.Len(t, key, n)
	}
}

func TestDeriveRejectsBadParameters(t *testing.T) {
	tests := []struct {
		name   string
		secret []byte
		offset int
		length int
	}{
		{"zero length", []byte("s"), 0, 0},
		{"negative length", []byte("s"), 0, -4},
		{"negative offset", []byte("s"), -1, 16},
		{"empty secret", nil, 0, 16},
		{"length above limit", []byte("s"), 0, MaxLength + 1},
		{"huge length", []byte("s"), 0, 1 << 40},
		{"offset above limit", []byte("s"), MaxOffset + 1, 16},
		{"overflowing offset", []byte("s"), math.MaxInt, 32},
	}
	for _, uri := range Default.URIs() {
		for _, tt := range tests {
			t.Run(uri+"/"+tt.name, func(t *testing.T) {
				_, err := Derive(uri, tt.secret, []byte("seed"), tt.offset, tt.length)
				assert.ErrorIs(t, err, security.ErrDerivation)
			})
		}
	}

	key, err := Derive(security.AlgPSHA1, []byte("s"), []byte("seed"), MaxOffset, MaxLength)
	require.NoError(t, err)
	assert.Len(t, key, MaxLength)

	_, err = Derive("urn:unknown", []byte("s"), nil, 0, 16)
	assert.ErrorIs(t, err, security.ErrDerivation)
}

func TestRegistryLookup(t *testing.T) {
	r := NewRegistry()
	_, err := r.Lookup("")
	assert.ErrorIs(t, err, security.ErrDerivation)

	r.Register(NewPSHA1(security.AlgPSHA1))
	a, err := r.Lookup("")
	require.NoError(t, err)
	assert.Equal(t, security.AlgPSHA1, a.URI())
	assert.Equal(t, []string{security.AlgPSHA1}, r.URIs())
}

func TestTokenRegenerates(t *testing.T) {
	params, err := NewParams(16)
	require.NoError(t, err)
	assert.Len(t, params.Nonce, NonceLength)

	tok, err := New(nil, "DK-1", "UsernameToken-1", params, []byte("wrapping secret"))
	require.NoError(t, err)
	assert.Equal(t, security.TokenTypeDerivedKey, tok.Type())
	assert.Equal(t, "UsernameToken-1", tok.WrappingTokenID())
	assert.False(t, tok.IsAsymmetric())

	key, err := tok.Secret()
	require.NoError(t, err)
	assert.Len(t, key, 16)

	again, err := tok.Regenerate(nil, []byte("wrapping secret"))
	require.NoError(t, err)
	assert.Equal(t, key, again)

	wrong, err := tok.Regenerate(nil, []byte("wrapping secreT"))
	require.NoError(t, err)
	assert.NotEqual(t, key, wrong)

	aes, err := tok.SecretKey(security.AlgAES128GCM)
	require.NoError(t, err)
	assert.Equal(t, key, aes)
}

func TestResolverDerivesFromWrappingToken(t *testing.T) {
	sctx := security.NewSecurityContext()
	wrapping := security.NewSymmetricToken("UT-1", security.TokenTypeUsername, []byte("0123456789abcdefghij"))
	require.NoError(t, sctx.RegisterProvider(security.NewStaticProvider(wrapping)))

	params := Params{Nonce: []byte("fixed-nonce-0001"), Length: 16}
	p := security.NewCachedProvider("DK-9", Resolver{
		TokenID:    "DK-9",
		WrappingID: "UT-1",
		Params:     params,
		Context:    sctx,
	})
	require.NoError(t, sctx.RegisterProvider(p))

	tok, err := sctx.ResolveToken(context.Background(), "DK-9", nil)
	require.NoError(t, err)
	got, err := tok.Secret()
	require.NoError(t, err)

	want, err := Derive(security.AlgPSHA1, []byte("0123456789abcdefghij"), params.Seed(), 0, 16)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestResolverMissingWrappingToken(t *testing.T) {
	r := Resolver{TokenID: "DK-1", WrappingID: "nope", Context: security.NewSecurityContext(), Params: Params{Length: 16}}
	_, err := r.Resolve(context.Background(), nil)
	assert.ErrorIs(t, err, security.ErrSecurityTokenUnavailable)
	assert.ErrorIs(t, err, security.ErrConfiguration)
}

func TestSecurityContextTokenSecretFromCallback(t *testing.T) {
	sct := security.NewSymmetricToken("SCT-1", security.TokenTypeSecurityContext, nil)
	h := security.CallbackHandlerFunc(func(_ context.Context, cb *security.Callback) error {
		if cb.Usage == security.UsageSecretKey && cb.Identifier == "DK-1" {
			cb.Key = []byte("sct secret")
		}
		return nil
	})
	secret, err := WrappingSecret(context.Background(), sct, "DK-1", h)
	require.NoError(t, err)
	assert.Equal(t, []byte("sct secret"), secret)

	_, err = WrappingSecret(context.Background(), sct, "DK-2", h)
	assert.ErrorIs(t, err, security.ErrSecurityTokenUnavailable)
}
