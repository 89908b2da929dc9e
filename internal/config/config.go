// Package config handles configuration loading for the wssec tools.
//
// Configuration is loaded from a YAML file with support for environment
// variable expansion (${VAR} or $VAR syntax). This allows passwords and
// PINs to be injected at runtime.
//
// # Configuration Sections
//
//   - outbound: actions and algorithms used to secure messages
//   - inbound: required actions, timestamp freshness, trust and policy
//   - passwords: static user to password map for the callback handler
//   - keystore: crypto provider mode (file, pkcs11 or memory)
//   - replay: replay cache backend (memory or mongodb)
//   - metrics: Prometheus counters
//
// # Example Configuration
//
//	outbound:
//	  actions: [UsernameToken, Encrypt]
//	  user: bob
//	  usernameToken:
//	    deriveKey: true
//	    iterations: 1000
//	  derivedKeys: true
//
//	inbound:
//	  actions: [UsernameToken, Encrypt]
//	  timestamp:
//	    ttl: 5m
//	  policy: /etc/wssec/policy.yaml
//
//	passwords:
//	  bob: ${BOB_PASSWORD}
//
//	replay:
//	  type: mongodb
//	  mongodb:
//	    uri: ${MONGODB_URI}
//
// See [Load] for loading configuration from a file.
package config

import (
	"context"
	"crypto/x509"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/sirosfoundation/go-wssec/internal/storage/mongodb"
	"github.com/sirosfoundation/go-wssec/pkg/inbound"
	"github.com/sirosfoundation/go-wssec/pkg/outbound"
	"github.com/sirosfoundation/go-wssec/pkg/policy"
	"github.com/sirosfoundation/go-wssec/pkg/replay"
	"github.com/sirosfoundation/go-wssec/pkg/security"
	"github.com/sirosfoundation/go-wssec/pkg/validator"
	"github.com/sirosfoundation/go-wssec/pkg/xmlstream"
)

// Config is the root configuration structure
type Config struct {
	Outbound  OutboundConfig    `yaml:"outbound"`
	Inbound   InboundConfig     `yaml:"inbound"`
	Passwords map[string]string `yaml:"passwords"`
	Keystore  KeystoreConfig    `yaml:"keystore"`
	Replay    ReplayConfig      `yaml:"replay"`
	Metrics   MetricsConfig     `yaml:"metrics"`
}

// OutboundConfig holds the settings for securing messages
type OutboundConfig struct {
	Actions      []string `yaml:"actions"`
	User         string   `yaml:"user"`
	PasswordType string   `yaml:"passwordType"`

	UsernameToken struct {
		DeriveKey  bool `yaml:"deriveKey"`
		Iterations int  `yaml:"iterations"`
	} `yaml:"usernameToken"`

	DerivedKeys         bool   `yaml:"derivedKeys"`
	DerivedKeyAlgorithm string `yaml:"derivedKeyAlgorithm"`

	Signature struct {
		// User is the keystore alias for X.509 signatures
		User      string       `yaml:"user"`
		Algorithm string       `yaml:"algorithm"`
		Digest    string       `yaml:"digest"`
		Parts     []PartConfig `yaml:"parts"`
	} `yaml:"signature"`

	Encryption struct {
		Algorithm string       `yaml:"algorithm"`
		Parts     []PartConfig `yaml:"parts"`
	} `yaml:"encryption"`

	TimestampTTL time.Duration `yaml:"timestampTTL"`
}

// PartConfig selects a signed or encrypted element. A part without
// namespace named Body selects the SOAP Body.
type PartConfig struct {
	Namespace string `yaml:"namespace"`
	Name      string `yaml:"name"`
	// Modifier is Element or Content and only applies to encryption
	Modifier string `yaml:"modifier"`
}

// InboundConfig holds the settings for verifying messages
type InboundConfig struct {
	Actions []string `yaml:"actions"`
	Actor   string   `yaml:"actor"`

	Timestamp struct {
		TTL       time.Duration `yaml:"ttl"`
		FutureTTL time.Duration `yaml:"futureTTL"`
		// Strict enforces Expires in addition to the age of Created
		Strict *bool `yaml:"strict"`
	} `yaml:"timestamp"`

	RequiredPasswordType         string `yaml:"requiredPasswordType"`
	AllowUsernameTokenNoPassword bool   `yaml:"allowUsernameTokenNoPassword"`
	MaxUsernameTokenIterations   int    `yaml:"maxUsernameTokenIterations"`

	// Policy is the path of a policy document (optional)
	Policy string `yaml:"policy"`

	Trust TrustConfig `yaml:"trust"`
}

// TrustConfig holds the trust settings for X.509 tokens. Without roots or
// a PDP, X.509 tokens are rejected.
type TrustConfig struct {
	// Roots is a PEM file of trusted CA certificates
	Roots string `yaml:"roots"`
	// AuthZEN is the PDP endpoint for trust decisions
	AuthZEN string `yaml:"authzen"`
	// Revocation enables OCSP with CRL fallback
	Revocation bool          `yaml:"revocation"`
	Timeout    time.Duration `yaml:"timeout"`
}

// KeystoreConfig holds crypto provider settings
type KeystoreConfig struct {
	// Mode determines where keys are kept
	// - "file": PEM files in a directory
	// - "pkcs11": PKCS#11 token (HSM/smart card)
	// - "memory": no persistent keys
	Mode string `yaml:"mode"`

	File struct {
		Dir string `yaml:"dir"`
	} `yaml:"file"`

	PKCS11 PKCS11Config `yaml:"pkcs11"`
}

// PKCS11Config holds PKCS#11 HSM settings
type PKCS11Config struct {
	// Path to the PKCS#11 library (.so/.dylib/.dll)
	ModulePath string `yaml:"modulePath"`
	// Slot number or token label to use
	SlotID     *int   `yaml:"slotId"`
	TokenLabel string `yaml:"tokenLabel"`
	// PIN for authentication (can be env var reference like ${HSM_PIN})
	PIN string `yaml:"pin"`
	// Object label pattern with {alias} as placeholder
	LabelPattern string   `yaml:"labelPattern"`
	Aliases      []string `yaml:"aliases"`
}

// ReplayConfig holds replay cache settings
type ReplayConfig struct {
	// Type is "memory", "mongodb" or "none"
	Type string        `yaml:"type"`
	TTL  time.Duration `yaml:"ttl"`

	MongoDB struct {
		URI        string `yaml:"uri"`
		Database   string `yaml:"database"`
		Collection string `yaml:"collection"`
	} `yaml:"mongodb"`
}

// MetricsConfig holds Prometheus settings
type MetricsConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Namespace string `yaml:"namespace"`
}

// Load reads configuration from a YAML file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	return Parse(data)
}

// Parse expands environment variables in data and decodes it.
func Parse(data []byte) (*Config, error) {
	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Keystore.Mode == "" {
		c.Keystore.Mode = "memory"
	}
	if c.Keystore.Mode == "file" && c.Keystore.File.Dir == "" {
		c.Keystore.File.Dir = "./keys"
	}
	if c.Replay.Type == "" {
		c.Replay.Type = "memory"
	}
	if c.Replay.TTL == 0 {
		c.Replay.TTL = inbound.DefaultReplayTTL
	}
	if c.Replay.MongoDB.Database == "" {
		c.Replay.MongoDB.Database = "wssec"
	}
	if c.Replay.MongoDB.Collection == "" {
		c.Replay.MongoDB.Collection = "replay_cache"
	}
	if c.Metrics.Namespace == "" {
		c.Metrics.Namespace = "wssec"
	}
	if c.Inbound.Trust.Timeout == 0 {
		c.Inbound.Trust.Timeout = 10 * time.Second
	}
}

func (c *Config) validate() error {
	switch c.Keystore.Mode {
	case "file", "pkcs11", "memory":
	default:
		return fmt.Errorf("keystore.mode must be 'file', 'pkcs11', or 'memory', got '%s'", c.Keystore.Mode)
	}
	if c.Keystore.Mode == "pkcs11" && c.Keystore.PKCS11.ModulePath == "" {
		return fmt.Errorf("keystore.pkcs11.modulePath is required when mode is 'pkcs11'")
	}

	switch c.Replay.Type {
	case "memory", "none":
	case "mongodb":
		if c.Replay.MongoDB.URI == "" {
			return fmt.Errorf("replay.mongodb.uri is required when type is 'mongodb'")
		}
	default:
		return fmt.Errorf("replay.type must be 'memory', 'mongodb', or 'none', got '%s'", c.Replay.Type)
	}
	if c.Replay.TTL < 0 {
		return fmt.Errorf("replay.ttl must not be negative")
	}
	if c.Inbound.MaxUsernameTokenIterations < 0 {
		return fmt.Errorf("inbound.maxUsernameTokenIterations must not be negative")
	}

	for _, p := range append(append([]PartConfig(nil), c.Outbound.Signature.Parts...), c.Outbound.Encryption.Parts...) {
		if p.Name == "" {
			return fmt.Errorf("outbound part without name")
		}
	}
	return nil
}

// OutboundProperties returns the outbound properties. crypto backs X.509
// signatures and may be nil otherwise.
func (c *Config) OutboundProperties(crypto security.Crypto) outbound.Properties {
	o := c.Outbound
	props := outbound.Properties{
		User:                          o.User,
		PasswordType:                  o.PasswordType,
		UseDerivedKeyForUsernameToken: o.UsernameToken.DeriveKey,
		UsernameTokenIterations:       o.UsernameToken.Iterations,
		DerivedKeys:                   o.DerivedKeys,
		DerivedKeyAlgorithm:           o.DerivedKeyAlgorithm,
		SignatureUser:                 o.Signature.User,
		SignatureAlgorithm:            o.Signature.Algorithm,
		DigestAlgorithm:               o.Signature.Digest,
		SignatureParts:                parts(o.Signature.Parts),
		EncryptionAlgorithm:           o.Encryption.Algorithm,
		EncryptionParts:               parts(o.Encryption.Parts),
		TimestampTTL:                  o.TimestampTTL,
		Callbacks:                     c.callbacks(),
		Crypto:                        crypto,
	}
	for _, a := range o.Actions {
		props.Actions = append(props.Actions, outbound.Action(a))
	}
	return props
}

// InboundProperties returns the inbound properties and the policy, which is nil
// when none is configured. cache may be nil to disable replay detection.
func (c *Config) InboundProperties(crypto security.Crypto, cache replay.Cache) (inbound.Properties, *policy.Policy, error) {
	in := c.Inbound
	validators, err := c.validators()
	if err != nil {
		return inbound.Properties{}, nil, err
	}
	props := inbound.Properties{
		Actor:      in.Actor,
		Validators: validators,
		Callbacks:  c.callbacks(),
		Crypto:     crypto,
		Replay:     cache,
		ReplayTTL:  c.Replay.TTL,
	}
	for _, a := range in.Actions {
		props.Actions = append(props.Actions, inbound.Action(a))
	}

	var p *policy.Policy
	if in.Policy != "" {
		if p, err = policy.Load(in.Policy); err != nil {
			return inbound.Properties{}, nil, fmt.Errorf("loading policy: %w", err)
		}
	}
	return props, p, nil
}

func (c *Config) callbacks() security.CallbackHandler {
	if len(c.Passwords) == 0 {
		return nil
	}
	return security.PasswordMap(c.Passwords)
}

func (c *Config) validators() (*validator.Registry, error) {
	in := c.Inbound
	r := validator.NewDefaultRegistry()
	ts := &validator.TimestampValidator{TTL: in.Timestamp.TTL, FutureTTL: in.Timestamp.FutureTTL}
	if in.Timestamp.Strict != nil && !*in.Timestamp.Strict {
		ts.LenientExpires = true
	}
	r.Register(security.TokenTypeTimestamp, ts)
	r.Register(security.TokenTypeUsername, &validator.UsernameValidator{
		RequiredPasswordType: in.RequiredPasswordType,
		AllowNoPassword:      in.AllowUsernameTokenNoPassword,
		MaxIterations:        in.MaxUsernameTokenIterations,
	})

	var trust validator.CertificateValidator
	switch {
	case in.Trust.AuthZEN != "":
		trust = validator.NewAuthZENValidator(in.Trust.AuthZEN).WithTimeout(in.Trust.Timeout)
	case in.Trust.Roots != "":
		data, err := os.ReadFile(in.Trust.Roots)
		if err != nil {
			return nil, fmt.Errorf("reading trust roots: %w", err)
		}
		roots := x509.NewCertPool()
		if !roots.AppendCertsFromPEM(data) {
			return nil, fmt.Errorf("no certificates in %s", in.Trust.Roots)
		}
		trust = validator.NewPKIValidator(roots)
	default:
		return r, nil
	}
	if in.Trust.Revocation {
		checker := validator.NewOCSPChecker(&validator.OCSPConfig{
			Timeout:      in.Trust.Timeout,
			CRLFallback:  true,
			CacheTimeout: time.Hour,
		})
		trust = validator.NewRevocationValidator(trust, checker)
	}
	r.Register(security.TokenTypeX509, &validator.X509Validator{Trust: trust, Purpose: validator.PurposeSigning})
	return r, nil
}

// OpenReplay opens the configured replay cache. The returned close
// function releases it. A nil cache means replay detection is off.
func (c *Config) OpenReplay(ctx context.Context) (replay.Cache, func(context.Context) error, error) {
	switch c.Replay.Type {
	case "mongodb":
		store, err := mongodb.NewStore(ctx, &mongodb.Config{
			URI:        c.Replay.MongoDB.URI,
			Database:   c.Replay.MongoDB.Database,
			Collection: c.Replay.MongoDB.Collection,
		})
		if err != nil {
			return nil, nil, err
		}
		return store, store.Close, nil
	case "none":
		return nil, func(context.Context) error { return nil }, nil
	default:
		cache := replay.NewMemoryCache(time.Minute)
		return cache, func(context.Context) error { cache.Close(); return nil }, nil
	}
}

func parts(cfg []PartConfig) []outbound.Part {
	var out []outbound.Part
	for _, p := range cfg {
		out = append(out, outbound.Part{
			Name:     xmlstream.Name{Space: p.Namespace, Local: p.Name},
			Modifier: p.Modifier,
		})
	}
	return out
}
