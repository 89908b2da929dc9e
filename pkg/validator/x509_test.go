package validator

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"io"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sirosfoundation/go-trust/pkg/authzenclient"
	"github.com/sirosfoundation/go-trust/pkg/testserver"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/ocsp"

	"github.com/sirosfoundation/go-wssec/pkg/security"
)

type testCA struct {
	cert *x509.Certificate
	key  *ecdsa.PrivateKey
}

func newTestCA(t *testing.T, name string) *testCA {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	template := &x509.Certificate{
		SerialNumber:          big.NewInt(1),
		Subject:               pkix.Name{CommonName: name},
		NotBefore:             time.Now().Add(-time.Hour),
		NotAfter:              time.Now().Add(24 * time.Hour),
		KeyUsage:              x509.KeyUsageCertSign | x509.KeyUsageCRLSign | x509.KeyUsageDigitalSignature,
		BasicConstraintsValid: true,
		IsCA:                  true,
	}
	der, err := x509.CreateCertificate(rand.Reader, template, template, &key.PublicKey, key)
	require.NoError(t, err)
	cert, err := x509.ParseCertificate(der)
	require.NoError(t, err)
	return &testCA{cert: cert, key: key}
}

func (ca *testCA) issue(t *testing.T, name string, serial int64, modify func(*x509.Certificate)) *x509.Certificate {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	template := &x509.Certificate{
		SerialNumber: big.NewInt(serial),
		Subject:      pkix.Name{CommonName: name},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(24 * time.Hour),
		KeyUsage:     x509.KeyUsageDigitalSignature,
	}
	if modify != nil {
		modify(template)
	}
	der, err := x509.CreateCertificate(rand.Reader, template, ca.cert, &key.PublicKey, ca.key)
	require.NoError(t, err)
	cert, err := x509.ParseCertificate(der)
	require.NoError(t, err)
	return cert
}

func (ca *testCA) pool() *x509.CertPool {
	pool := x509.NewCertPool()
	pool.AddCert(ca.cert)
	return pool
}

func TestPKIValidator(t *testing.T) {
	ca := newTestCA(t, "Test Root")
	leaf := ca.issue(t, "alice", 2, nil)
	v := NewPKIValidator(ca.pool())

	assert.NoError(t, v.ValidateChain(context.Background(), []*x509.Certificate{leaf}, PurposeSigning))

	other := newTestCA(t, "Other Root")
	err := NewPKIValidator(other.pool()).ValidateChain(context.Background(), []*x509.Certificate{leaf}, PurposeSigning)
	assert.ErrorIs(t, err, ErrCertificateUntrusted)

	expired := ca.issue(t, "bob", 3, func(c *x509.Certificate) {
		c.NotBefore = time.Now().Add(-48 * time.Hour)
		c.NotAfter = time.Now().Add(-24 * time.Hour)
	})
	assert.ErrorIs(t, v.ValidateChain(context.Background(), []*x509.Certificate{expired}, ""), ErrCertificateExpired)

	future := ca.issue(t, "carol", 4, func(c *x509.Certificate) {
		c.NotBefore = time.Now().Add(time.Hour)
	})
	assert.ErrorIs(t, v.ValidateChain(context.Background(), []*x509.Certificate{future}, ""), ErrCertificateNotYetValid)

	assert.ErrorIs(t, v.ValidateChain(context.Background(), nil, ""), ErrInvalidCertificate)
}

func TestAuthZENValidator(t *testing.T) {
	ca := newTestCA(t, "Test Root")
	leaf := ca.issue(t, "trusted.example.com", 2, nil)

	accept := testserver.New(testserver.WithAcceptAll())
	defer accept.Close()
	v := NewAuthZENValidatorWithClient(authzenclient.New(accept.URL()))
	assert.NoError(t, v.ValidateChain(context.Background(), []*x509.Certificate{leaf, ca.cert}, PurposeSigning))

	reject := testserver.New(testserver.WithRejectAll())
	defer reject.Close()
	v = NewAuthZENValidatorWithClient(authzenclient.New(reject.URL()))
	assert.ErrorIs(t, v.ValidateChain(context.Background(), []*x509.Certificate{leaf}, PurposeSigning), ErrCertificateUntrusted)

	assert.ErrorIs(t, v.ValidateChain(context.Background(), nil, PurposeSigning), ErrInvalidCertificate)
}

func TestAuthZENValidatorNeedsSubjectName(t *testing.T) {
	srv := testserver.New(testserver.WithAcceptAll())
	defer srv.Close()

	ca := newTestCA(t, "Test Root")
	anonymous := ca.issue(t, "", 2, nil)
	v := NewAuthZENValidatorWithClient(authzenclient.New(srv.URL()))
	assert.ErrorIs(t, v.ValidateChain(context.Background(), []*x509.Certificate{anonymous}, ""), ErrInvalidCertificate)
}

func TestX509Validator(t *testing.T) {
	ca := newTestCA(t, "Test Root")
	leaf := ca.issue(t, "alice", 2, nil)
	v := &X509Validator{Trust: NewPKIValidator(ca.pool())}

	cred, err := v.Validate(context.Background(), &security.Credential{
		TokenType:   security.TokenTypeX509,
		BinaryToken: &security.BinarySecurityToken{ID: "X509-1", ValueType: security.ValueTypeX509v3, Data: leaf.Raw},
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, "CN=alice", cred.Principal)
	require.Len(t, cred.Certificates, 1)

	other := newTestCA(t, "Other Root")
	stranger := other.issue(t, "mallory", 2, nil)
	_, err = v.Validate(context.Background(), &security.Credential{
		TokenType:    security.TokenTypeX509,
		Certificates: []*x509.Certificate{stranger},
	}, nil)
	assert.ErrorIs(t, err, security.ErrAuthenticationFailed)
	assert.ErrorIs(t, err, ErrCertificateUntrusted)

	_, err = v.Validate(context.Background(), &security.Credential{
		TokenType:   security.TokenTypeX509,
		BinaryToken: &security.BinarySecurityToken{ID: "X509-2", Data: []byte("not a certificate")},
	}, nil)
	assert.ErrorIs(t, err, security.ErrInvalidSecurityToken)

	_, err = (&X509Validator{}).Validate(context.Background(), &security.Credential{Certificates: []*x509.Certificate{leaf}}, nil)
	assert.ErrorIs(t, err, security.ErrConfiguration)
}

// ocspResponder answers every request with status for the requested serial.
func ocspResponder(t *testing.T, ca *testCA, status int) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		req, err := ocsp.ParseRequest(body)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		now := time.Now()
		template := ocsp.Response{
			Status:       status,
			SerialNumber: req.SerialNumber,
			ThisUpdate:   now.Add(-time.Minute),
			NextUpdate:   now.Add(time.Hour),
		}
		if status == ocsp.Revoked {
			template.RevokedAt = now.Add(-time.Hour)
			template.RevocationReason = ocsp.KeyCompromise
		}
		resp, err := ocsp.CreateResponse(ca.cert, ca.cert, template, ca.key)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/ocsp-response")
		_, _ = w.Write(resp)
	}))
}

func TestOCSPChecker(t *testing.T) {
	ca := newTestCA(t, "Test Root")

	good := ocspResponder(t, ca, ocsp.Good)
	defer good.Close()
	leaf := ca.issue(t, "alice", 2, func(c *x509.Certificate) { c.OCSPServer = []string{good.URL} })
	checker := NewOCSPChecker(nil)
	assert.NoError(t, checker.CheckRevocation(context.Background(), leaf, ca.cert))

	revoked := ocspResponder(t, ca, ocsp.Revoked)
	defer revoked.Close()
	bad := ca.issue(t, "mallory", 3, func(c *x509.Certificate) { c.OCSPServer = []string{revoked.URL} })
	assert.ErrorIs(t, checker.CheckRevocation(context.Background(), bad, ca.cert), ErrCertificateRevoked)

	// cached result, the responder is gone
	revoked.Close()
	assert.ErrorIs(t, checker.CheckRevocation(context.Background(), bad, ca.cert), ErrCertificateRevoked)
}

func TestOCSPCheckerStrictMode(t *testing.T) {
	ca := newTestCA(t, "Test Root")
	leaf := ca.issue(t, "alice", 2, nil)

	lenient := NewOCSPChecker(&OCSPConfig{Timeout: time.Second, CacheTimeout: time.Minute})
	assert.NoError(t, lenient.CheckRevocation(context.Background(), leaf, ca.cert))

	strict := NewOCSPChecker(&OCSPConfig{Timeout: time.Second, CacheTimeout: time.Minute, StrictMode: true})
	assert.Error(t, strict.CheckRevocation(context.Background(), leaf, ca.cert))
}

func TestCRLFallback(t *testing.T) {
	ca := newTestCA(t, "Test Root")

	var crl []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(crl)
	}))
	defer srv.Close()

	bad := ca.issue(t, "mallory", 7, func(c *x509.Certificate) { c.CRLDistributionPoints = []string{srv.URL + "/root.crl"} })
	leaf := ca.issue(t, "alice", 8, func(c *x509.Certificate) { c.CRLDistributionPoints = []string{srv.URL + "/root.crl"} })

	var err error
	crl, err = x509.CreateRevocationList(rand.Reader, &x509.RevocationList{
		Number:     big.NewInt(1),
		ThisUpdate: time.Now().Add(-time.Minute),
		NextUpdate: time.Now().Add(time.Hour),
		RevokedCertificateEntries: []x509.RevocationListEntry{
			{SerialNumber: big.NewInt(7), RevocationTime: time.Now().Add(-time.Hour)},
		},
	}, ca.cert, ca.key)
	require.NoError(t, err)

	checker := NewOCSPChecker(&OCSPConfig{CRLFallback: true, Timeout: time.Second, CacheTimeout: time.Minute, StrictMode: true})
	assert.ErrorIs(t, checker.CheckRevocation(context.Background(), bad, ca.cert), ErrCertificateRevoked)
	assert.NoError(t, checker.CheckRevocation(context.Background(), leaf, ca.cert))
}

func TestRevocationValidator(t *testing.T) {
	ca := newTestCA(t, "Test Root")
	revoked := ocspResponder(t, ca, ocsp.Revoked)
	defer revoked.Close()
	bad := ca.issue(t, "mallory", 3, func(c *x509.Certificate) { c.OCSPServer = []string{revoked.URL} })

	v := NewRevocationValidator(NewPKIValidator(ca.pool()), NewOCSPChecker(nil))
	// without a known issuer the check is skipped
	assert.NoError(t, v.ValidateChain(context.Background(), []*x509.Certificate{bad}, PurposeSigning))

	v.Issuers = []*x509.Certificate{ca.cert}
	assert.ErrorIs(t, v.ValidateChain(context.Background(), []*x509.Certificate{bad}, PurposeSigning), ErrCertificateRevoked)
	assert.ErrorIs(t, v.ValidateChain(context.Background(), []*x509.Certificate{bad, ca.cert}, PurposeSigning), ErrCertificateRevoked)
}
