package outbound

import (
	"slices"
	"time"

	"github.com/sirosfoundation/go-wssec/pkg/derivedkey"
	"github.com/sirosfoundation/go-wssec/pkg/security"
	"github.com/sirosfoundation/go-wssec/pkg/xmlstream"
)

// Action is one step of outbound processing.
type Action string

const (
	ActionTimestamp     Action = "Timestamp"
	ActionUsernameToken Action = "UsernameToken"
	// ActionUsernameTokenSignature adds a UsernameToken whose derived key
	// signs the message. It implies key derivation for the token.
	ActionUsernameTokenSignature Action = "UsernameTokenSignature"
	ActionSignature              Action = "Signature"
	ActionEncrypt                Action = "Encrypt"
)

// Part modifiers.
const (
	ModifierElement = "Element"
	ModifierContent = "Content"
)

// Part selects the elements a signature or encryption covers.
type Part struct {
	Name xmlstream.Name
	// Modifier is ModifierElement or ModifierContent and only matters for
	// encryption. The empty value means Content for the Body and Element
	// otherwise.
	Modifier string
}

// BodyPart selects the SOAP Body of either version.
var BodyPart = Part{Name: xmlstream.Name{Local: "Body"}}

// DefaultTimestampTTL is the lifetime of generated timestamps.
const DefaultTimestampTTL = 300 * time.Second

// Properties configure an output chain.
type Properties struct {
	Actions []Action

	// User names the UsernameToken user. When empty the principal of the
	// request being answered is used.
	User string
	// PasswordType is security.PasswordText, security.PasswordDigest or
	// empty for a token without password.
	PasswordType string
	// UseDerivedKeyForUsernameToken emits Salt and Iteration instead of the
	// password and makes the derived key the token's secret.
	UseDerivedKeyForUsernameToken bool
	UsernameTokenIterations       int

	// DerivedKeys signs and encrypts with wsc:DerivedKeyTokens.
	DerivedKeys         bool
	DerivedKeyAlgorithm string
	DerivedKeyRegistry  *derivedkey.Registry

	// SignatureUser is the crypto provider alias of the signing key when
	// no UsernameToken key is available.
	SignatureUser      string
	SignatureAlgorithm string
	DigestAlgorithm    string
	SignatureParts     []Part

	EncryptionAlgorithm string
	EncryptionParts     []Part

	TimestampTTL time.Duration

	Callbacks security.CallbackHandler
	Crypto    security.Crypto

	// Now is the clock; nil means time.Now.
	Now func() time.Time
}

func (p *Properties) applyDefaults() {
	if p.UsernameTokenIterations == 0 {
		p.UsernameTokenIterations = security.DefaultUsernameTokenIterations
	}
	if p.DigestAlgorithm == "" {
		p.DigestAlgorithm = security.AlgSHA256
	}
	if p.EncryptionAlgorithm == "" {
		p.EncryptionAlgorithm = security.AlgAES128GCM
	}
	if p.DerivedKeyAlgorithm == "" {
		p.DerivedKeyAlgorithm = security.AlgPSHA1
	}
	if p.DerivedKeyRegistry == nil {
		p.DerivedKeyRegistry = derivedkey.Default
	}
	if len(p.SignatureParts) == 0 {
		p.SignatureParts = []Part{BodyPart}
	}
	if len(p.EncryptionParts) == 0 {
		p.EncryptionParts = []Part{BodyPart}
	}
	if p.TimestampTTL == 0 {
		p.TimestampTTL = DefaultTimestampTTL
	}
	if p.Now == nil {
		p.Now = time.Now
	}
	if slices.Contains(p.Actions, ActionUsernameTokenSignature) {
		p.UseDerivedKeyForUsernameToken = true
	}
	if p.SignatureAlgorithm == "" {
		if p.symmetricBase() {
			p.SignatureAlgorithm = security.AlgHMACSHA1
		} else {
			p.SignatureAlgorithm = security.AlgRSASHA256
		}
	}
}

// symmetricBase reports whether signing and encryption keys come from the
// UsernameToken.
func (p *Properties) symmetricBase() bool {
	return p.hasUsernameToken() && p.UseDerivedKeyForUsernameToken
}

func (p *Properties) hasUsernameToken() bool {
	return slices.Contains(p.Actions, ActionUsernameToken) || slices.Contains(p.Actions, ActionUsernameTokenSignature)
}

func (p *Properties) validate() error {
	if len(p.Actions) == 0 {
		return security.Configurationf("no outbound actions")
	}
	seen := make(map[Action]bool)
	for _, a := range p.Actions {
		switch a {
		case ActionTimestamp, ActionUsernameToken, ActionUsernameTokenSignature, ActionSignature, ActionEncrypt:
		default:
			return security.Configurationf("unknown action %q", a)
		}
		if seen[a] {
			return security.Configurationf("action %s listed twice", a)
		}
		seen[a] = true
	}
	sig := slices.Index(p.Actions, ActionSignature)
	enc := slices.Index(p.Actions, ActionEncrypt)
	if uts := slices.Index(p.Actions, ActionUsernameTokenSignature); uts >= 0 && (sig < 0 || uts < sig) {
		sig = uts
	}
	if sig >= 0 && enc >= 0 && enc < sig {
		return security.Configurationf("Encrypt must follow Signature")
	}
	if ut := slices.Index(p.Actions, ActionUsernameToken); ut >= 0 {
		if (sig >= 0 && sig < ut) || (enc >= 0 && enc < ut) {
			return security.Configurationf("UsernameToken must precede Signature and Encrypt")
		}
	}
	if seen[ActionUsernameToken] && seen[ActionUsernameTokenSignature] {
		return security.Configurationf("UsernameToken and UsernameTokenSignature are exclusive")
	}

	switch p.PasswordType {
	case "", security.PasswordText, security.PasswordDigest:
	default:
		return security.Configurationf("unknown password type %q", p.PasswordType)
	}
	if p.hasUsernameToken() && p.Callbacks == nil {
		return security.Configurationf("UsernameToken requires a callback handler")
	}
	if p.UseDerivedKeyForUsernameToken && p.UsernameTokenIterations < 1 {
		return security.Configurationf("iteration count must be positive")
	}

	if seen[ActionSignature] || seen[ActionUsernameTokenSignature] {
		if !p.symmetricBase() && p.SignatureUser == "" {
			return security.Configurationf("Signature requires a UsernameToken key or a signature user")
		}
		if !p.symmetricBase() && p.Crypto == nil {
			return security.Configurationf("Signature with %q requires a crypto provider", p.SignatureUser)
		}
		if p.symmetricBase() != security.IsSymmetricSignature(p.SignatureAlgorithm) {
			return security.Configurationf("signature method %s does not fit the signing key", p.SignatureAlgorithm)
		}
		if _, err := security.Digest(p.DigestAlgorithm, nil); err != nil {
			return security.Configurationf("digest method %s is not supported", p.DigestAlgorithm)
		}
	}
	if seen[ActionEncrypt] {
		if !p.symmetricBase() {
			return security.Configurationf("Encrypt requires a UsernameToken key")
		}
		if !security.IsSupportedContentAlgorithm(p.EncryptionAlgorithm) {
			return security.Configurationf("encryption method %s is not supported", p.EncryptionAlgorithm)
		}
		for _, part := range p.EncryptionParts {
			switch part.Modifier {
			case "", ModifierElement, ModifierContent:
			default:
				return security.Configurationf("unknown part modifier %q", part.Modifier)
			}
		}
	}
	if p.DerivedKeys {
		if !p.symmetricBase() {
			return security.Configurationf("DerivedKeys requires a UsernameToken key")
		}
		if _, err := p.DerivedKeyRegistry.Lookup(p.DerivedKeyAlgorithm); err != nil {
			return security.Configurationf("derived key algorithm %s is not registered", p.DerivedKeyAlgorithm)
		}
	}
	return nil
}

// matches reports whether name is selected by part. A part without
// namespace matches the Body of either SOAP version; a "*" local name
// matches any element of the part's namespace.
func (part Part) matches(name xmlstream.Name, soapNS string) bool {
	if part.Name.Space == "" {
		return soapNS != "" && name.Space == soapNS && name.Local == part.Name.Local
	}
	if part.Name.Space != name.Space {
		return false
	}
	return part.Name.Local == "*" || part.Name.Local == name.Local
}

func (part Part) contentOnly(name xmlstream.Name, soapNS string) bool {
	switch part.Modifier {
	case ModifierContent:
		return true
	case ModifierElement:
		return false
	default:
		return name.Space == soapNS && name.Local == "Body"
	}
}
