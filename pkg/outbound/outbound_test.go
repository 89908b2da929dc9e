package outbound

import (
	"bytes"
	"context"
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/base64"
	"io"
	"math/big"
	"strings"
	"testing"
	"time"

	"github.com/beevik/etree"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sirosfoundation/go-wssec/pkg/chain"
	"github.com/sirosfoundation/go-wssec/pkg/derivedkey"
	"github.com/sirosfoundation/go-wssec/pkg/security"
	"github.com/sirosfoundation/go-wssec/pkg/xmlstream"
)

const testMessage = `<s:Envelope xmlns:s="http://www.w3.org/2003/05/soap-envelope">` +
	`<s:Body><ex:Order xmlns:ex="urn:example:orders"><ex:Item>42</ex:Item></ex:Order></s:Body></s:Envelope>`

var fixedNow = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

// secure runs doc through an output chain configured with props.
func secure(t *testing.T, props Properties, doc string) (*etree.Document, *security.SecurityContext, error) {
	t.Helper()
	sec := security.NewSecurityContext()
	out, err := secureWith(sec, props, doc)
	if err != nil {
		return nil, sec, err
	}
	parsed := etree.NewDocument()
	require.NoError(t, parsed.ReadFromString(out))
	return parsed, sec, nil
}

func secureWith(sec *security.SecurityContext, props Properties, doc string) (string, error) {
	var buf bytes.Buffer
	w := xmlstream.NewWriter(&buf)
	c := chain.New(context.Background(), sec, w)
	if err := Configure(c, props); err != nil {
		return "", err
	}
	r := xmlstream.NewReader(strings.NewReader(doc))
	for {
		ev, err := r.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", err
		}
		if ev.Kind == xmlstream.KindEndDocument {
			if err := c.Finish(); err != nil {
				return "", err
			}
			if err := w.Write(ev); err != nil {
				return "", err
			}
			continue
		}
		if err := c.Push(ev); err != nil {
			return "", err
		}
	}
	if err := w.Flush(); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func passwords() security.CallbackHandler {
	return security.PasswordMap{"bob": "security", "alice": "wonderland"}
}

func securityHeader(t *testing.T, doc *etree.Document) *etree.Element {
	t.Helper()
	header := doc.FindElement("/s:Envelope/s:Header/wsse:Security")
	require.NotNil(t, header)
	return header
}

func childTags(el *etree.Element) []string {
	var tags []string
	for _, ch := range el.ChildElements() {
		tags = append(tags, ch.FullTag())
	}
	return tags
}

func TestSecurityHeaderSynthesized(t *testing.T) {
	doc, sec, err := secure(t, Properties{
		Actions:      []Action{ActionTimestamp},
		TimestampTTL: time.Minute,
		Now:          func() time.Time { return fixedNow },
	}, testMessage)
	require.NoError(t, err)

	env := doc.Root()
	assert.Equal(t, []string{"s:Header", "s:Body"}, childTags(env))

	header := securityHeader(t, doc)
	assert.Equal(t, "true", header.SelectAttrValue("s:mustUnderstand", ""))
	assert.Equal(t, security.NSSecurityExt, header.NamespaceURI())

	ts := header.FindElement("wsu:Timestamp")
	require.NotNil(t, ts)
	assert.True(t, strings.HasPrefix(ts.SelectAttrValue("wsu:Id", ""), "TS-"))
	assert.Equal(t, "2024-05-01T12:00:00.000Z", ts.FindElement("wsu:Created").Text())
	assert.Equal(t, "2024-05-01T12:01:00.000Z", ts.FindElement("wsu:Expires").Text())

	events := sec.Events()
	require.Len(t, events, 1)
	assert.Equal(t, security.EventTimestamp, events[0].Type())
}

func TestSecurityHeaderFirstInExistingHeader(t *testing.T) {
	msg := `<soap:Envelope xmlns:soap="http://schemas.xmlsoap.org/soap/envelope/">` +
		`<soap:Header><a:To xmlns:a="urn:addr">x</a:To></soap:Header><soap:Body/></soap:Envelope>`
	out, err := secureWith(security.NewSecurityContext(), Properties{Actions: []Action{ActionTimestamp}}, msg)
	require.NoError(t, err)

	doc := etree.NewDocument()
	require.NoError(t, doc.ReadFromString(out))
	header := doc.FindElement("/soap:Envelope/soap:Header")
	require.NotNil(t, header)
	assert.Equal(t, []string{"wsse:Security", "a:To"}, childTags(header))
	assert.Equal(t, "1", header.FindElement("wsse:Security").SelectAttrValue("soap:mustUnderstand", ""))
}

func TestUsernameTokenPasswordDigest(t *testing.T) {
	doc, _, err := secure(t, Properties{
		Actions:      []Action{ActionUsernameToken},
		User:         "bob",
		PasswordType: security.PasswordDigest,
		Callbacks:    passwords(),
	}, testMessage)
	require.NoError(t, err)

	ut := securityHeader(t, doc).FindElement("wsse:UsernameToken")
	require.NotNil(t, ut)
	assert.Equal(t, "bob", ut.FindElement("wsse:Username").Text())

	pw := ut.FindElement("wsse:Password")
	require.NotNil(t, pw)
	assert.Equal(t, security.PasswordDigest, pw.SelectAttrValue("Type", ""))

	nonce, err := base64.StdEncoding.DecodeString(ut.FindElement("wsse:Nonce").Text())
	require.NoError(t, err)
	assert.Len(t, nonce, 16)
	created := ut.FindElement("wsu:Created").Text()
	assert.Equal(t, security.PasswordDigestValue(nonce, created, "security"), pw.Text())
}

func TestUsernameTokenPasswordText(t *testing.T) {
	doc, _, err := secure(t, Properties{
		Actions:      []Action{ActionUsernameToken},
		User:         "alice",
		PasswordType: security.PasswordText,
		Callbacks:    passwords(),
	}, testMessage)
	require.NoError(t, err)

	pw := securityHeader(t, doc).FindElement("wsse:UsernameToken/wsse:Password")
	require.NotNil(t, pw)
	assert.Equal(t, "wonderland", pw.Text())
	assert.Equal(t, security.PasswordText, pw.SelectAttrValue("Type", ""))
}

func TestUsernameTokenUnknownUser(t *testing.T) {
	_, _, err := secure(t, Properties{
		Actions:   []Action{ActionUsernameToken},
		User:      "mallory",
		Callbacks: passwords(),
	}, testMessage)
	assert.ErrorIs(t, err, security.ErrUnknownIdentifier)
}

func TestUsernameTokenUserFromRequest(t *testing.T) {
	sec := security.NewSecurityContext()
	sec.Put(security.PropRequestSecurityEvents, []security.Event{
		security.TimestampEvent{ID: "TS-1"},
		security.TokenEvent{Kind: security.EventUsernameToken, TokenID: "UT-1", Principal: "alice"},
	})
	out, err := secureWith(sec, Properties{
		Actions:      []Action{ActionUsernameToken},
		PasswordType: security.PasswordText,
		Callbacks:    passwords(),
	}, testMessage)
	require.NoError(t, err)
	assert.Contains(t, out, "<wsse:Username>alice</wsse:Username>")
}

func TestPropertiesValidation(t *testing.T) {
	tests := []struct {
		name  string
		props Properties
	}{
		{"no actions", Properties{}},
		{"unknown action", Properties{Actions: []Action{"Sign"}}},
		{"duplicate action", Properties{Actions: []Action{ActionTimestamp, ActionTimestamp}}},
		{"encrypt before signature", Properties{
			Actions:                       []Action{ActionUsernameToken, ActionEncrypt, ActionSignature},
			User:                          "bob",
			UseDerivedKeyForUsernameToken: true,
			Callbacks:                     passwords(),
		}},
		{"encrypt without symmetric key", Properties{Actions: []Action{ActionEncrypt}}},
		{"signature without key", Properties{Actions: []Action{ActionSignature}}},
		{"username token without callbacks", Properties{Actions: []Action{ActionUsernameToken}, User: "bob"}},
		{"signature before username token", Properties{
			Actions:                       []Action{ActionSignature, ActionUsernameToken},
			UseDerivedKeyForUsernameToken: true,
			Callbacks:                     passwords(),
		}},
		{"derived keys from certificate", Properties{
			Actions:       []Action{ActionSignature},
			SignatureUser: "signer",
			Crypto:        &memoryCrypto{},
			DerivedKeys:   true,
		}},
		{"unsupported encryption", Properties{
			Actions:                       []Action{ActionUsernameToken, ActionEncrypt},
			UseDerivedKeyForUsernameToken: true,
			Callbacks:                     passwords(),
			EncryptionAlgorithm:           security.AlgAES128CBC,
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := chain.New(context.Background(), nil, nil)
			err := Configure(c, tt.props)
			assert.ErrorIs(t, err, security.ErrConfiguration)
			assert.Empty(t, c.Processors())
		})
	}
}

func TestDerivedKeyEncryption(t *testing.T) {
	doc, sec, err := secure(t, Properties{
		Actions:                       []Action{ActionUsernameToken, ActionEncrypt},
		User:                          "bob",
		UseDerivedKeyForUsernameToken: true,
		UsernameTokenIterations:       1000,
		DerivedKeys:                   true,
		Callbacks:                     passwords(),
	}, testMessage)
	require.NoError(t, err)

	header := securityHeader(t, doc)
	assert.Equal(t, []string{"wsse:UsernameToken", "wsc:DerivedKeyToken", "xenc:ReferenceList"}, childTags(header))

	// UsernameToken carries Salt and Iteration instead of a password
	ut := header.FindElement("wsse:UsernameToken")
	assert.Nil(t, ut.FindElement("wsse:Password"))
	salt, err := base64.StdEncoding.DecodeString(ut.FindElement("wsse11:Salt").Text())
	require.NoError(t, err)
	assert.Len(t, salt, 16)
	assert.Equal(t, byte(0x02), salt[15])
	assert.Equal(t, "1000", ut.FindElement("wsse11:Iteration").Text())
	utID := ut.SelectAttrValue("wsu:Id", "")

	// DerivedKeyToken refers to the UsernameToken
	dkt := header.FindElement("wsc:DerivedKeyToken")
	ref := dkt.FindElement("wsse:SecurityTokenReference/wsse:Reference")
	require.NotNil(t, ref)
	assert.Equal(t, "#"+utID, ref.SelectAttrValue("URI", ""))
	assert.Equal(t, security.ValueTypeUsernameToken, ref.SelectAttrValue("ValueType", ""))
	assert.Equal(t, "0", dkt.FindElement("wsc:Offset").Text())
	assert.Equal(t, "16", dkt.FindElement("wsc:Length").Text())
	nonce, err := base64.StdEncoding.DecodeString(dkt.FindElement("wsc:Nonce").Text())
	require.NoError(t, err)
	assert.Len(t, nonce, derivedkey.NonceLength)
	dkID := dkt.SelectAttrValue("wsu:Id", "")

	// Body content is replaced by EncryptedData keyed by the derived key
	body := doc.FindElement("/s:Envelope/s:Body")
	require.Len(t, body.ChildElements(), 1)
	ed := body.ChildElements()[0]
	assert.Equal(t, "xenc:EncryptedData", ed.FullTag())
	assert.Equal(t, security.EncTypeContent, ed.SelectAttrValue("Type", ""))
	assert.Equal(t, "#"+dkID, ed.FindElement("ds:KeyInfo/wsse:SecurityTokenReference/wsse:Reference").SelectAttrValue("URI", ""))
	assert.Equal(t, "#"+ed.SelectAttrValue("Id", ""), header.FindElement("xenc:ReferenceList/xenc:DataReference").SelectAttrValue("URI", ""))

	// The receiver's derivation recovers the plaintext
	utKey, err := security.DeriveUsernameTokenKey("security", salt, 1000)
	require.NoError(t, err)
	params := derivedkey.Params{Nonce: nonce, Length: 16}
	dk, err := derivedkey.Derive(security.AlgPSHA1, utKey, params.Seed(), 0, 16)
	require.NoError(t, err)

	ct, err := base64.StdEncoding.DecodeString(ed.FindElement("xenc:CipherData/xenc:CipherValue").Text())
	require.NoError(t, err)
	pt, err := security.DecryptContent(security.AlgAES128GCM, dk, ct)
	require.NoError(t, err)
	assert.Equal(t, `<ex:Order xmlns:ex="urn:example:orders"><ex:Item>42</ex:Item></ex:Order>`, string(pt))

	var encrypted []security.Event
	for _, ev := range sec.Events() {
		if ev.Type() == security.EventEncryptedPart {
			encrypted = append(encrypted, ev)
		}
	}
	require.Len(t, encrypted, 1)
	assert.Equal(t, "Body", encrypted[0].(security.EncryptedPartEvent).Element.Local)
}

func TestUsernameTokenSignature(t *testing.T) {
	sec := security.NewSecurityContext()
	out, err := secureWith(sec, Properties{
		Actions:     []Action{ActionTimestamp, ActionUsernameTokenSignature},
		User:        "bob",
		DerivedKeys: true,
		Callbacks:   passwords(),
		SignatureParts: []Part{
			BodyPart,
			{Name: security.NameTimestamp},
		},
	}, testMessage)
	require.NoError(t, err)

	doc := etree.NewDocument()
	require.NoError(t, doc.ReadFromString(out))
	header := securityHeader(t, doc)
	assert.Equal(t, []string{"wsse:UsernameToken", "wsc:DerivedKeyToken", "wsu:Timestamp", "ds:Signature"}, childTags(header))

	sig := header.FindElement("ds:Signature")
	assert.Equal(t, security.AlgHMACSHA1, sig.FindElement("ds:SignedInfo/ds:SignatureMethod").SelectAttrValue("Algorithm", ""))
	refs := sig.FindElements("ds:SignedInfo/ds:Reference")
	require.Len(t, refs, 2)

	bodyID := doc.FindElement("/s:Envelope/s:Body").SelectAttrValue("wsu:Id", "")
	tsID := header.FindElement("wsu:Timestamp").SelectAttrValue("wsu:Id", "")
	uris := []string{refs[0].SelectAttrValue("URI", ""), refs[1].SelectAttrValue("URI", "")}
	assert.ElementsMatch(t, []string{"#" + bodyID, "#" + tsID}, uris)

	dkID := header.FindElement("wsc:DerivedKeyToken").SelectAttrValue("wsu:Id", "")
	assert.Equal(t, "#"+dkID, sig.FindElement("ds:KeyInfo/wsse:SecurityTokenReference/wsse:Reference").SelectAttrValue("URI", ""))

	// The signature value verifies over the canonical SignedInfo
	tok, err := sec.ResolveToken(context.Background(), dkID, nil)
	require.NoError(t, err)
	signedInfo := subtree(t, out, security.NameSignedInfo)
	canonical, err := security.CanonicalizeEvents(signedInfo)
	require.NoError(t, err)
	value, err := base64.StdEncoding.DecodeString(sig.FindElement("ds:SignatureValue").Text())
	require.NoError(t, err)
	require.NoError(t, security.VerifySignatureValue(security.AlgHMACSHA1, tok, canonical, value))

	// The Body digest matches the Body as written
	canonicalBody, err := security.CanonicalizeEvents(subtree(t, out, xmlstream.NewName(security.NSSOAP12, "s", "Body")))
	require.NoError(t, err)
	digest, err := security.Digest(security.AlgSHA256, canonicalBody)
	require.NoError(t, err)
	for _, ref := range refs {
		if ref.SelectAttrValue("URI", "") == "#"+bodyID {
			assert.Equal(t, base64.StdEncoding.EncodeToString(digest), ref.FindElement("ds:DigestValue").Text())
		}
	}
}

func TestRSASignatureWithBinarySecurityToken(t *testing.T) {
	key, cert := testKeyPair(t)
	doc, sec, err := secure(t, Properties{
		Actions:       []Action{ActionSignature},
		SignatureUser: "signer",
		Crypto:        &memoryCrypto{alias: "signer", key: key, cert: cert},
	}, testMessage)
	require.NoError(t, err)

	header := securityHeader(t, doc)
	assert.Equal(t, []string{"wsse:BinarySecurityToken", "ds:Signature"}, childTags(header))
	bst := header.FindElement("wsse:BinarySecurityToken")
	raw, err := base64.StdEncoding.DecodeString(bst.Text())
	require.NoError(t, err)
	assert.Equal(t, cert.Raw, raw)

	sig := header.FindElement("ds:Signature")
	assert.Equal(t, security.AlgRSASHA256, sig.FindElement("ds:SignedInfo/ds:SignatureMethod").SelectAttrValue("Algorithm", ""))
	assert.Equal(t, "#"+bst.SelectAttrValue("wsu:Id", ""),
		sig.FindElement("ds:KeyInfo/wsse:SecurityTokenReference/wsse:Reference").SelectAttrValue("URI", ""))
	assert.NotEmpty(t, sig.FindElement("ds:SignatureValue").Text())

	var signed int
	for _, ev := range sec.Events() {
		if ev.Type() == security.EventSignedPart {
			signed++
		}
	}
	assert.Equal(t, 1, signed)
}

func TestSignaturePartMissing(t *testing.T) {
	key, cert := testKeyPair(t)
	_, _, err := secure(t, Properties{
		Actions:        []Action{ActionSignature},
		SignatureUser:  "signer",
		Crypto:         &memoryCrypto{alias: "signer", key: key, cert: cert},
		SignatureParts: []Part{{Name: xmlstream.NewName("urn:absent", "x", "Missing")}},
	}, testMessage)
	assert.ErrorIs(t, err, security.ErrConfiguration)
}

func TestSignThenEncrypt(t *testing.T) {
	doc, _, err := secure(t, Properties{
		Actions:                       []Action{ActionUsernameToken, ActionSignature, ActionEncrypt},
		User:                          "bob",
		UseDerivedKeyForUsernameToken: true,
		DerivedKeys:                   true,
		Callbacks:                     passwords(),
	}, testMessage)
	require.NoError(t, err)

	header := securityHeader(t, doc)
	assert.Equal(t, []string{
		"wsse:UsernameToken",
		"wsc:DerivedKeyToken",
		"wsc:DerivedKeyToken",
		"ds:Signature",
		"xenc:ReferenceList",
	}, childTags(header))

	body := doc.FindElement("/s:Envelope/s:Body")
	assert.NotEmpty(t, body.SelectAttrValue("wsu:Id", ""))
	assert.NotNil(t, body.FindElement("xenc:EncryptedData"))
	assert.Nil(t, body.FindElement("ex:Order"))
}

func subtree(t *testing.T, doc string, name xmlstream.Name) []xmlstream.Event {
	t.Helper()
	events, err := xmlstream.ReadAll(xmlstream.NewReader(strings.NewReader(doc)))
	require.NoError(t, err)
	var out []xmlstream.Event
	depth := 0
	for _, ev := range events {
		if depth == 0 && !ev.IsStartOf(name) {
			continue
		}
		out = append(out, ev)
		switch {
		case ev.IsStart():
			depth++
		case ev.IsEnd():
			depth--
			if depth == 0 {
				return out
			}
		}
	}
	t.Fatalf("%s not found", name)
	return nil
}

type memoryCrypto struct {
	alias string
	key   crypto.Signer
	cert  *x509.Certificate
}

func (m *memoryCrypto) Certificates(_ context.Context, alias string) ([]*x509.Certificate, error) {
	if alias != m.alias {
		return nil, security.ErrUnknownAlias
	}
	return []*x509.Certificate{m.cert}, nil
}

func (m *memoryCrypto) Signer(_ context.Context, alias string) (crypto.Signer, error) {
	if alias != m.alias {
		return nil, security.ErrUnknownAlias
	}
	return m.key, nil
}

func testKeyPair(t *testing.T) (*rsa.PrivateKey, *x509.Certificate) {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	template := &x509.Certificate{
		SerialNumber: big.NewInt(7),
		Subject:      pkix.Name{CommonName: "signer"},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(time.Hour),
	}
	der, err := x509.CreateCertificate(rand.Reader, template, template, &key.PublicKey, key)
	require.NoError(t, err)
	cert, err := x509.ParseCertificate(der)
	require.NoError(t, err)
	return key, cert
}
