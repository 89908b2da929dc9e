package security

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingResolver struct {
	calls int
	token Token
}

func (r *countingResolver) Resolve(context.Context, Crypto) (Token, error) {
	r.calls++
	return r.token, nil
}

func TestRegisterProviderDuplicateID(t *testing.T) {
	sc := NewSecurityContext()
	require.NoError(t, sc.RegisterProvider(NewStaticProvider(NewSymmetricToken("T-1", TokenTypeUsername, []byte("k1")))))

	err := sc.RegisterProvider(NewStaticProvider(NewSymmetricToken("T-1", TokenTypeUsername, []byte("k2"))))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrConfiguration)
}

func TestRegisterProvidersIndependent(t *testing.T) {
	sc := NewSecurityContext()
	require.NoError(t, sc.RegisterProvider(NewStaticProvider(NewSymmetricToken("A", TokenTypeUsername, []byte("secret-a")))))
	require.NoError(t, sc.RegisterProvider(NewStaticProvider(NewSymmetricToken("B", TokenTypeKerberos, []byte("secret-b")))))

	a, err := sc.ResolveToken(context.Background(), "A", nil)
	require.NoError(t, err)
	b, err := sc.ResolveToken(context.Background(), "B", nil)
	require.NoError(t, err)

	sa, _ := a.Secret()
	sb, _ := b.Secret()
	assert.Equal(t, []byte("secret-a"), sa)
	assert.Equal(t, []byte("secret-b"), sb)
	assert.Equal(t, []string{"A", "B"}, sc.ProviderIDs())
}

func TestResolveTokenMissing(t *testing.T) {
	sc := NewSecurityContext()
	_, err := sc.ResolveToken(context.Background(), "nope", nil)
	assert.ErrorIs(t, err, ErrConfiguration)

	_, err = sc.TokenForProperty(context.Background(), PropUseThisTokenIDForSignature, nil)
	assert.ErrorIs(t, err, ErrConfiguration)
}

func TestCachedProviderResolvesOnce(t *testing.T) {
	r := &countingResolver{token: NewSymmetricToken("X", TokenTypeUsername, []byte("k"))}
	p := NewCachedProvider("X", r)

	first, err := p.SecurityToken(context.Background(), nil)
	require.NoError(t, err)
	second, err := p.SecurityToken(context.Background(), nil)
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Equal(t, 1, r.calls)
}

func TestPropertiesAndTypedValue(t *testing.T) {
	sc := NewSecurityContext()
	sc.Put(PropUseThisTokenIDForEncryption, "DK-1")
	sc.Put("count", 3)

	assert.Equal(t, "DK-1", sc.GetString(PropUseThisTokenIDForEncryption))
	n, ok := Value[int](sc, "count")
	assert.True(t, ok)
	assert.Equal(t, 3, n)
	_, ok = Value[string](sc, "count")
	assert.False(t, ok)

	sc.Remove("count")
	_, ok = sc.Get("count")
	assert.False(t, ok)
}

func TestRegisterEventNotifiesListeners(t *testing.T) {
	sc := NewSecurityContext()
	collector := &EventCollector{}
	sc.AddListener(collector)

	require.NoError(t, sc.RegisterEvent(TimestampEvent{ID: "TS-1"}))
	assert.Len(t, collector.Events, 1)

	stop := errors.New("stop")
	sc.AddListener(EventListenerFunc(func(Event) error { return stop }))
	assert.ErrorIs(t, sc.RegisterEvent(SignedPartEvent{}), stop)
	assert.Len(t, sc.Events(), 2)
}

func TestSecretKeyShapedPerAlgorithm(t *testing.T) {
	secret := make([]byte, 20)
	for i := range secret {
		secret[i] = byte(i)
	}
	tok := NewSymmetricToken("UT", TokenTypeUsername, secret)

	aes, err := tok.SecretKey(AlgAES128GCM)
	require.NoError(t, err)
	assert.Equal(t, secret[:16], aes)

	mac, err := tok.SecretKey(AlgHMACSHA1)
	require.NoError(t, err)
	assert.Equal(t, secret, mac)

	_, err = tok.SecretKey(AlgAES256GCM)
	assert.ErrorIs(t, err, ErrInvalidSecurityToken)

	again, _ := tok.SecretKey(AlgAES128GCM)
	assert.Equal(t, aes, again)
}

func TestTokenReference(t *testing.T) {
	tok := NewSymmetricToken("UsernameToken-1", TokenTypeUsername, []byte("k"))
	assert.Equal(t, Reference{URI: "#UsernameToken-1", ValueType: ValueTypeUsernameToken}, tok.Reference())

	empty := NewSymmetricToken("E", TokenTypeKerberos, nil)
	_, err := empty.Secret()
	assert.ErrorIs(t, err, ErrSecurityTokenUnavailable)
}
