package policy

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/sirosfoundation/go-wssec/pkg/security"
	"github.com/sirosfoundation/go-wssec/pkg/xmlstream"
)

// Document is the YAML form of a policy.
type Document struct {
	Name                     string            `yaml:"name"`
	Namespaces               map[string]string `yaml:"namespaces"`
	SignedParts              *PartsDocument    `yaml:"signedParts"`
	EncryptedParts           *PartsDocument    `yaml:"encryptedParts"`
	SignedElements           []string          `yaml:"signedElements"`
	EncryptedElements        []string          `yaml:"encryptedElements"`
	ContentEncryptedElements []string          `yaml:"contentEncryptedElements"`
	IncludeTimestamp         bool              `yaml:"includeTimestamp"`
	Tokens                   []string          `yaml:"tokens"`
}

// PartsDocument selects SOAP parts.
type PartsDocument struct {
	Body    bool             `yaml:"body"`
	Headers []HeaderDocument `yaml:"headers"`
}

// HeaderDocument selects headers. An empty Name selects every header of
// the namespace.
type HeaderDocument struct {
	Namespace string `yaml:"namespace"`
	Name      string `yaml:"name"`
}

// Load reads and compiles the policy file at path.
func Load(path string) (*Policy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read policy file: %w", err)
	}
	return Parse(data)
}

// Parse compiles a YAML policy.
func Parse(data []byte) (*Policy, error) {
	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPolicy, err)
	}
	return doc.Compile()
}

// Compile turns the document into assertions, in the order signed parts,
// signed elements, encrypted parts, encrypted elements, content encrypted
// elements, timestamp and tokens.
func (d *Document) Compile() (*Policy, error) {
	p := &Policy{Name: d.Name}
	if d.SignedParts != nil {
		p.Assertions = append(p.Assertions, d.SignedParts.assertion(KindSignedParts))
	}
	if err := d.addElements(p, KindSignedElements, d.SignedElements); err != nil {
		return nil, err
	}
	if d.EncryptedParts != nil {
		p.Assertions = append(p.Assertions, d.EncryptedParts.assertion(KindEncryptedParts))
	}
	if err := d.addElements(p, KindEncryptedElements, d.EncryptedElements); err != nil {
		return nil, err
	}
	if err := d.addElements(p, KindContentEncryptedElements, d.ContentEncryptedElements); err != nil {
		return nil, err
	}
	if d.IncludeTimestamp {
		p.Assertions = append(p.Assertions, Assertion{Kind: KindIncludeTimestamp})
	}
	for _, t := range d.Tokens {
		p.Assertions = append(p.Assertions, Assertion{Kind: KindToken, TokenType: security.TokenType(t)})
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

func (d *Document) addElements(p *Policy, kind Kind, xpaths []string) error {
	if len(xpaths) == 0 {
		return nil
	}
	a := Assertion{Kind: kind}
	for _, x := range xpaths {
		name, err := QNameFromXPath(x, d.Namespaces)
		if err != nil {
			return err
		}
		a.Elements = append(a.Elements, name)
	}
	p.Assertions = append(p.Assertions, a)
	return nil
}

func (pd *PartsDocument) assertion(kind Kind) Assertion {
	a := Assertion{Kind: kind, Body: pd.Body}
	for _, h := range pd.Headers {
		local := h.Name
		if local == "" {
			local = Wildcard
		}
		a.Elements = append(a.Elements, xmlstream.Name{Space: h.Namespace, Local: local})
	}
	return a
}
