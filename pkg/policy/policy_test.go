package policy

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sirosfoundation/go-wssec/pkg/security"
	"github.com/sirosfoundation/go-wssec/pkg/xmlstream"
)

var (
	soapBody  = xmlstream.NewName(security.NSSOAP12, "s", "Body")
	nameOrder = xmlstream.NewName("urn:example:orders", "ex", "Order")
	nameTo    = xmlstream.NewName("urn:example:routing", "r", "To")
)

func TestBodyMustBeSigned(t *testing.T) {
	a := Assertion{Kind: KindSignedParts, Body: true}

	t.Run("not signed", func(t *testing.T) {
		s := NewAssertionState(a)
		assert.False(t, s.AssertEvent(security.SignedPartEvent{Element: soapBody, NotSigned: true}))
		assert.Equal(t, Violated, s.State())
		require.Len(t, s.Messages(), 1)
		assert.Contains(t, s.Messages()[0], "Body")
		assert.Contains(t, s.Messages()[0], "must be signed")
	})

	t.Run("signed", func(t *testing.T) {
		s := NewAssertionState(a)
		assert.True(t, s.AssertEvent(security.SignedPartEvent{Element: soapBody}))
		assert.Equal(t, Asserted, s.State())
		assert.Empty(t, s.Messages())
	})
}

func TestViolationIsTerminal(t *testing.T) {
	s := NewAssertionState(Assertion{Kind: KindSignedParts, Body: true})
	s.AssertEvent(security.SignedPartEvent{Element: soapBody, NotSigned: true})
	assert.False(t, s.AssertEvent(security.SignedPartEvent{Element: soapBody}))
	assert.Equal(t, Violated, s.State())
}

func TestLaterUnprotectedElementViolates(t *testing.T) {
	s := NewAssertionState(Assertion{Kind: KindSignedElements, Elements: []xmlstream.Name{nameOrder}})
	assert.True(t, s.AssertEvent(security.SignedElementEvent{Element: nameOrder}))
	assert.False(t, s.AssertEvent(security.SignedElementEvent{Element: nameOrder, NotSigned: true}))
	assert.Equal(t, Violated, s.State())
}

func TestUnrelatedEventsIgnored(t *testing.T) {
	s := NewAssertionState(Assertion{Kind: KindSignedParts, Body: true})
	assert.False(t, s.AssertEvent(security.SignedElementEvent{Element: soapBody, NotSigned: true}))
	assert.False(t, s.AssertEvent(security.EncryptedPartEvent{Element: soapBody, NotEncrypted: true}))
	assert.False(t, s.AssertEvent(security.SignedPartEvent{Element: nameOrder, NotSigned: true}))
	assert.Equal(t, Unknown, s.State())
}

func TestWildcardHeaders(t *testing.T) {
	a := Assertion{Kind: KindEncryptedParts, Elements: []xmlstream.Name{{Space: "urn:example:routing", Local: Wildcard}}}
	assert.True(t, a.Matches(nameTo))
	assert.False(t, a.Matches(nameOrder))
	assert.False(t, a.Matches(soapBody))

	s := NewAssertionState(a)
	s.AssertEvent(security.EncryptedPartEvent{Element: nameTo, NotEncrypted: true})
	assert.Equal(t, Violated, s.State())
	assert.Contains(t, s.Messages()[0], "must be encrypted")
}

func TestBodyMatchesBothSOAPVersions(t *testing.T) {
	a := Assertion{Kind: KindSignedParts, Body: true}
	assert.True(t, a.Matches(xmlstream.Name{Space: security.NSSOAP11, Local: "Body"}))
	assert.True(t, a.Matches(xmlstream.Name{Space: security.NSSOAP12, Local: "Body"}))
	assert.False(t, a.Matches(xmlstream.Name{Space: "urn:other", Local: "Body"}))
}

func TestEngineVerdict(t *testing.T) {
	p := &Policy{Assertions: []Assertion{
		{Kind: KindSignedParts, Body: true},
		{Kind: KindContentEncryptedElements, Elements: []xmlstream.Name{nameOrder}},
		{Kind: KindIncludeTimestamp},
		{Kind: KindToken, TokenType: security.TokenTypeUsername},
	}}

	t.Run("passes", func(t *testing.T) {
		e := NewEngine(p)
		require.NoError(t, e.OnSecurityEvent(security.SignedPartEvent{Element: soapBody}))
		require.NoError(t, e.OnSecurityEvent(security.TimestampEvent{ID: "TS-1"}))
		require.NoError(t, e.OnSecurityEvent(security.TokenEvent{
			Kind:      security.EventUsernameToken,
			TokenType: security.TokenTypeUsername,
		}))
		v := e.Verdict()
		assert.True(t, v.Passed)
		assert.NoError(t, v.Err())
		// Nothing reported on Order, so the element assertion holds vacuously.
		assert.Equal(t, Asserted, v.States[p.Assertions[1].String()])
	})

	t.Run("aggregates violations", func(t *testing.T) {
		e := NewEngine(p)
		require.NoError(t, e.OnSecurityEvent(security.SignedPartEvent{Element: soapBody, NotSigned: true}))
		require.NoError(t, e.OnSecurityEvent(security.ContentEncryptedElementEvent{Element: nameOrder, NotEncrypted: true}))
		v := e.Verdict()
		assert.False(t, v.Passed)
		assert.Len(t, v.Violations, 4)

		err := v.Err()
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrPolicyViolation)
		var verr *ViolationError
		require.ErrorAs(t, err, &verr)
		assert.Contains(t, verr.Error(), "IncludeTimestamp")
		assert.Contains(t, verr.Error(), "UsernameToken")
	})

	t.Run("verdict is stable", func(t *testing.T) {
		e := NewEngine(p)
		first := e.Verdict()
		second := e.Verdict()
		assert.Equal(t, first.Violations, second.Violations)
	})
}

func TestEngineWithoutPolicy(t *testing.T) {
	v := NewEngine(nil).Verdict()
	assert.True(t, v.Passed)
	assert.NoError(t, v.Err())
}

func TestQNameFromXPath(t *testing.T) {
	ns := map[string]string{"ex": "urn:example:orders", "s": security.NSSOAP12}

	tests := []struct {
		name    string
		expr    string
		want    xmlstream.Name
		wantErr bool
	}{
		{name: "absolute", expr: "/s:Envelope/s:Body/ex:Order", want: xmlstream.NewName("urn:example:orders", "ex", "Order")},
		{name: "descendant", expr: "//ex:Item", want: xmlstream.NewName("urn:example:orders", "ex", "Item")},
		{name: "predicate", expr: "//ex:Item[@id='a/b'][1]", want: xmlstream.NewName("urn:example:orders", "ex", "Item")},
		{name: "child axis", expr: "/s:Body/child::ex:Order", want: xmlstream.NewName("urn:example:orders", "ex", "Order")},
		{name: "wildcard", expr: "//ex:*", want: xmlstream.NewName("urn:example:orders", "ex", Wildcard)},
		{name: "unprefixed", expr: "//Order", want: xmlstream.Name{Local: "Order"}},
		{name: "unknown prefix", expr: "//zz:Order", wantErr: true},
		{name: "attribute", expr: "//ex:Order/@id", wantErr: true},
		{name: "function", expr: "//ex:Order/text()", wantErr: true},
		{name: "empty", expr: "  ", wantErr: true},
		{name: "trailing slash", expr: "//ex:Order/", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := QNameFromXPath(tt.expr, ns)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidPolicy)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

const testPolicy = `
name: orders
namespaces:
  ex: urn:example:orders
signedParts:
  body: true
  headers:
    - namespace: urn:example:routing
encryptedParts:
  body: true
signedElements:
  - //ex:Order
includeTimestamp: true
tokens:
  - UsernameToken
`

func TestParse(t *testing.T) {
	p, err := Parse([]byte(testPolicy))
	require.NoError(t, err)
	assert.Equal(t, "orders", p.Name)
	require.Len(t, p.Assertions, 5)

	assert.Equal(t, KindSignedParts, p.Assertions[0].Kind)
	assert.True(t, p.Assertions[0].Body)
	assert.True(t, p.Assertions[0].Matches(nameTo))

	assert.Equal(t, KindSignedElements, p.Assertions[1].Kind)
	assert.True(t, p.Assertions[1].Matches(nameOrder))

	assert.Equal(t, KindEncryptedParts, p.Assertions[2].Kind)
	assert.Equal(t, KindIncludeTimestamp, p.Assertions[3].Kind)
	assert.Equal(t, security.TokenTypeUsername, p.Assertions[4].TokenType)
}

func TestParseRejects(t *testing.T) {
	tests := map[string]string{
		"malformed yaml":  "signedParts: [",
		"empty parts":     "signedParts: {}",
		"unknown prefix":  "signedElements: ['//zz:Order']",
		"unknown token":   "tokens: [Passport]",
		"attribute xpath": "namespaces:\n  ex: urn:x\nsignedElements: ['//ex:A/@b']",
	}
	for name, doc := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(doc))
			assert.ErrorIs(t, err, ErrInvalidPolicy)
		})
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "policy.yaml")
	require.NoError(t, os.WriteFile(path, []byte(testPolicy), 0o600))

	p, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "orders", p.Name)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
