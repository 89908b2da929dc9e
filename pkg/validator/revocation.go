package validator

import (
	"bytes"
	"context"
	"crypto"
	"crypto/x509"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"golang.org/x/crypto/ocsp"
)

// RevocationChecker reports whether cert, issued by issuer, is revoked.
// It returns nil for a good certificate and ErrCertificateRevoked for a
// revoked one.
type RevocationChecker interface {
	CheckRevocation(ctx context.Context, cert, issuer *x509.Certificate) error
}

// OCSPConfig configures OCSP checking behavior
type OCSPConfig struct {
	// HTTPClient for OCSP and CRL requests (optional)
	HTTPClient *http.Client
	// Timeout for requests
	Timeout time.Duration
	// CRLFallback enables CRL checking if OCSP fails
	CRLFallback bool
	// CacheTimeout for cached OCSP results and CRLs
	CacheTimeout time.Duration
	// StrictMode fails if revocation status cannot be determined
	StrictMode bool
}

// DefaultOCSPConfig returns default configuration
func DefaultOCSPConfig() *OCSPConfig {
	return &OCSPConfig{
		Timeout:      10 * time.Second,
		CRLFallback:  true,
		CacheTimeout: time.Hour,
	}
}

// OCSPChecker implements RevocationChecker using OCSP with optional CRL
// fallback.
type OCSPChecker struct {
	config     *OCSPConfig
	httpClient *http.Client
	crls       *cache[*x509.RevocationList]
	results    *cache[error]
}

// NewOCSPChecker creates a revocation checker. A nil config means
// DefaultOCSPConfig.
func NewOCSPChecker(config *OCSPConfig) *OCSPChecker {
	if config == nil {
		config = DefaultOCSPConfig()
	}
	client := config.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: config.Timeout}
	}
	return &OCSPChecker{
		config:     config,
		httpClient: client,
		crls:       newCache[*x509.RevocationList](config.CacheTimeout),
		results:    newCache[error](config.CacheTimeout),
	}
}

// CheckRevocation checks certificate revocation status
func (c *OCSPChecker) CheckRevocation(ctx context.Context, cert, issuer *x509.Certificate) error {
	if cert == nil || issuer == nil {
		return fmt.Errorf("%w: certificate and issuer are required", ErrInvalidCertificate)
	}

	ocspErr := c.checkOCSP(ctx, cert, issuer)
	if ocspErr == nil || errors.Is(ocspErr, ErrCertificateRevoked) {
		return ocspErr
	}

	if c.config.CRLFallback {
		crlErr := c.checkCRL(ctx, cert, issuer)
		if crlErr == nil || errors.Is(crlErr, ErrCertificateRevoked) {
			return crlErr
		}
		if c.config.StrictMode {
			return fmt.Errorf("revocation check failed: OCSP: %v, CRL: %v", ocspErr, crlErr)
		}
	}
	if c.config.StrictMode {
		return fmt.Errorf("OCSP check failed: %w", ocspErr)
	}
	return nil
}

func (c *OCSPChecker) checkOCSP(ctx context.Context, cert, issuer *x509.Certificate) error {
	key := cert.SerialNumber.String()
	if cached, ok := c.results.get(key); ok {
		return cached
	}
	if len(cert.OCSPServer) == 0 {
		return fmt.Errorf("no OCSP server URL in certificate")
	}

	request, err := ocsp.CreateRequest(cert, issuer, &ocsp.RequestOptions{Hash: crypto.SHA256})
	if err != nil {
		return fmt.Errorf("failed to create OCSP request: %w", err)
	}
	raw, err := c.doOCSPRequest(ctx, cert.OCSPServer[0], request)
	if err != nil {
		return fmt.Errorf("OCSP request failed: %w", err)
	}
	resp, err := ocsp.ParseResponse(raw, issuer)
	if err != nil {
		return fmt.Errorf("failed to parse OCSP response: %w", err)
	}

	var result error
	switch resp.Status {
	case ocsp.Good:
	case ocsp.Revoked:
		result = ErrCertificateRevoked
	case ocsp.Unknown:
		// Unknown is not cached; a responder may learn about the
		// certificate later.
		return fmt.Errorf("OCSP status unknown")
	default:
		return fmt.Errorf("unexpected OCSP status: %d", resp.Status)
	}
	c.results.set(key, result)
	return result
}

// doOCSPRequest POSTs the request and falls back to GET.
func (c *OCSPChecker) doOCSPRequest(ctx context.Context, ocspURL string, request []byte) ([]byte, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, ocspURL, bytes.NewReader(request))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/ocsp-request")
	httpReq.Header.Set("Accept", "application/ocsp-response")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return c.doOCSPGET(ctx, ocspURL, request)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return c.doOCSPGET(ctx, ocspURL, request)
	}
	return io.ReadAll(resp.Body)
}

func (c *OCSPChecker) doOCSPGET(ctx context.Context, ocspURL string, request []byte) ([]byte, error) {
	reqURL := ocspURL + "/" + url.PathEscape(base64.StdEncoding.EncodeToString(request))
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Accept", "application/ocsp-response")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("OCSP server returned status %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

func (c *OCSPChecker) checkCRL(ctx context.Context, cert, issuer *x509.Certificate) error {
	if len(cert.CRLDistributionPoints) == 0 {
		return fmt.Errorf("no CRL distribution points in certificate")
	}
	var lastErr error
	for _, dp := range cert.CRLDistributionPoints {
		crl, err := c.fetchCRL(ctx, dp, issuer)
		if err != nil {
			lastErr = err
			continue
		}
		for _, revoked := range crl.RevokedCertificateEntries {
			if revoked.SerialNumber.Cmp(cert.SerialNumber) == 0 {
				return ErrCertificateRevoked
			}
		}
		return nil
	}
	return fmt.Errorf("failed to check CRL: %w", lastErr)
}

func (c *OCSPChecker) fetchCRL(ctx context.Context, crlURL string, issuer *x509.Certificate) (*x509.RevocationList, error) {
	if cached, ok := c.crls.get(crlURL); ok {
		return cached, nil
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, crlURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("CRL server returned status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	crl, err := x509.ParseRevocationList(body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse CRL: %w", err)
	}
	if err := crl.CheckSignatureFrom(issuer); err != nil {
		return nil, fmt.Errorf("CRL signature: %w", err)
	}
	c.crls.set(crlURL, crl)
	return crl, nil
}

// cache is a thread-safe map whose entries expire after timeout.
type cache[T any] struct {
	mu      sync.RWMutex
	entries map[string]cacheEntry[T]
	timeout time.Duration
}

type cacheEntry[T any] struct {
	value    T
	storedAt time.Time
}

func newCache[T any](timeout time.Duration) *cache[T] {
	return &cache[T]{entries: make(map[string]cacheEntry[T]), timeout: timeout}
}

func (c *cache[T]) get(key string) (T, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	entry, ok := c.entries[key]
	if !ok || time.Since(entry.storedAt) > c.timeout {
		var zero T
		return zero, false
	}
	return entry.value, true
}

func (c *cache[T]) set(key string, value T) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = cacheEntry[T]{value: value, storedAt: time.Now()}
}

// RevocationValidator adds revocation checking to a CertificateValidator.
type RevocationValidator struct {
	base    CertificateValidator
	checker RevocationChecker
	// Issuers are searched for the issuer of a chain that holds only the
	// leaf.
	Issuers []*x509.Certificate
}

// NewRevocationValidator wraps base with checker.
func NewRevocationValidator(base CertificateValidator, checker RevocationChecker) *RevocationValidator {
	return &RevocationValidator{base: base, checker: checker}
}

// ValidateChain checks chain with the wrapped validator, then the
// revocation status of its leaf.
func (v *RevocationValidator) ValidateChain(ctx context.Context, chain []*x509.Certificate, purpose string) error {
	if len(chain) == 0 {
		return fmt.Errorf("%w: empty chain", ErrInvalidCertificate)
	}
	if err := v.base.ValidateChain(ctx, chain, purpose); err != nil {
		return err
	}
	if v.checker == nil {
		return nil
	}
	issuer := v.issuerOf(chain)
	if issuer == nil {
		return nil
	}
	return v.checker.CheckRevocation(ctx, chain[0], issuer)
}

func (v *RevocationValidator) issuerOf(chain []*x509.Certificate) *x509.Certificate {
	if len(chain) > 1 {
		return chain[1]
	}
	for _, candidate := range v.Issuers {
		if chain[0].CheckSignatureFrom(candidate) == nil {
			return candidate
		}
	}
	return nil
}
