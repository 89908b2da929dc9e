package security

import "github.com/sirosfoundation/go-wssec/pkg/xmlstream"

// Namespaces
const (
	NSSecurityExt   = "http://docs.oasis-open.org/wss/2004/01/oasis-200401-wss-wssecurity-secext-1.0.xsd"
	NSSecurityUtil  = "http://docs.oasis-open.org/wss/2004/01/oasis-200401-wss-wssecurity-utility-1.0.xsd"
	NSSecurityExt11 = "http://docs.oasis-open.org/wss/oasis-wss-wssecurity-secext-1.1.xsd"
	NSSecureConv    = "http://schemas.xmlsoap.org/ws/2005/02/sc"
	NSSecureConv13  = "http://docs.oasis-open.org/ws-sx/ws-secureconversation/200512"
	NSXMLDSig       = "http://www.w3.org/2000/09/xmldsig#"
	NSXMLEnc        = "http://www.w3.org/2001/04/xmlenc#"
	NSSOAP11        = "http://schemas.xmlsoap.org/soap/envelope/"
	NSSOAP12        = "http://www.w3.org/2003/05/soap-envelope"
)

// Prefixes used when synthesizing elements.
const (
	PrefixWSSE   = "wsse"
	PrefixWSSE11 = "wsse11"
	PrefixWSU    = "wsu"
	PrefixWSC    = "wsc"
	PrefixDS     = "ds"
	PrefixXENC   = "xenc"
)

// Token profile URIs
const (
	PasswordText   = "http://docs.oasis-open.org/wss/2004/01/oasis-200401-wss-username-token-profile-1.0#PasswordText"
	PasswordDigest = "http://docs.oasis-open.org/wss/2004/01/oasis-200401-wss-username-token-profile-1.0#PasswordDigest"
	EncodingBase64 = "http://docs.oasis-open.org/wss/2004/01/oasis-200401-wss-soap-message-security-1.0#Base64Binary"

	ValueTypeX509v3          = "http://docs.oasis-open.org/wss/2004/01/oasis-200401-wss-x509-token-profile-1.0#X509v3"
	ValueTypeKerberosAPREQ   = "http://docs.oasis-open.org/wss/oasis-wss-kerberos-token-profile-1.1#GSS_Kerberosv5_AP_REQ"
	ValueTypeUsernameToken   = "http://docs.oasis-open.org/wss/2004/01/oasis-200401-wss-username-token-profile-1.0#UsernameToken"
	ValueTypeDerivedKey      = "http://schemas.xmlsoap.org/ws/2005/02/sc/dk"
	ValueTypeSecurityContext = "http://schemas.xmlsoap.org/ws/2005/02/sc/sct"
)

// Algorithm URIs
const (
	AlgHMACSHA1   = "http://www.w3.org/2000/09/xmldsig#hmac-sha1"
	AlgHMACSHA256 = "http://www.w3.org/2001/04/xmldsig-more#hmac-sha256"
	AlgRSASHA1    = "http://www.w3.org/2000/09/xmldsig#rsa-sha1"
	AlgRSASHA256  = "http://www.w3.org/2001/04/xmldsig-more#rsa-sha256"

	AlgSHA1   = "http://www.w3.org/2000/09/xmldsig#sha1"
	AlgSHA256 = "http://www.w3.org/2001/04/xmlenc#sha256"

	AlgExcC14N = "http://www.w3.org/2001/10/xml-exc-c14n#"

	AlgAES128CBC = "http://www.w3.org/2001/04/xmlenc#aes128-cbc"
	AlgAES256CBC = "http://www.w3.org/2001/04/xmlenc#aes256-cbc"
	AlgAES128GCM = "http://www.w3.org/2009/xmlenc11#aes128-gcm"
	AlgAES256GCM = "http://www.w3.org/2009/xmlenc11#aes256-gcm"

	AlgPSHA1     = "http://schemas.xmlsoap.org/ws/2005/02/sc/dk/p_sha1"
	AlgPSHA1SC13 = "http://docs.oasis-open.org/ws-sx/ws-secureconversation/200512/dk/p_sha1"
	AlgHKDF      = "http://www.w3.org/2021/04/xmldsig-more#hkdf"

	EncTypeContent = "http://www.w3.org/2001/04/xmlenc#Content"
	EncTypeElement = "http://www.w3.org/2001/04/xmlenc#Element"
)

// DefaultDerivationLabel is the WS-SecureConversation label. Derivation uses
// it twice concatenated when a DerivedKeyToken carries no Label element.
const DefaultDerivationLabel = "WS-SecureConversation"

func wsse(local string) xmlstream.Name { return xmlstream.NewName(NSSecurityExt, PrefixWSSE, local) }
func wsse11(local string) xmlstream.Name { return xmlstream.NewName(NSSecurityExt11, PrefixWSSE11, local) }
func wsu(local string) xmlstream.Name { return xmlstream.NewName(NSSecurityUtil, PrefixWSU, local) }
func wsc(local string) xmlstream.Name { return xmlstream.NewName(NSSecureConv, PrefixWSC, local) }
func ds(local string) xmlstream.Name { return xmlstream.NewName(NSXMLDSig, PrefixDS, local) }
func xenc(local string) xmlstream.Name { return xmlstream.NewName(NSXMLEnc, PrefixXENC, local) }

// Element and attribute names
var (
	NameSecurity               = wsse("Security")
	NameUsernameToken          = wsse("UsernameToken")
	NameUsername               = wsse("Username")
	NamePassword               = wsse("Password")
	NameNonce                  = wsse("Nonce")
	NameBinarySecurityToken    = wsse("BinarySecurityToken")
	NameSecurityTokenReference = wsse("SecurityTokenReference")
	NameReference              = wsse("Reference")
	NameSalt                   = wsse11("Salt")
	NameIteration              = wsse11("Iteration")
	NameTimestamp              = wsu("Timestamp")
	NameCreated                = wsu("Created")
	NameExpires                = wsu("Expires")
	NameWsuID                  = wsu("Id")
	NameDerivedKeyToken        = wsc("DerivedKeyToken")
	NameOffset                 = wsc("Offset")
	NameLength                 = wsc("Length")
	NameSCNonce                = wsc("Nonce")
	NameLabel                  = wsc("Label")
	NameSecurityContextToken   = wsc("SecurityContextToken")
	NameSignature              = ds("Signature")
	NameSignedInfo             = ds("SignedInfo")
	NameCanonicalizationMethod = ds("CanonicalizationMethod")
	NameSignatureMethod        = ds("SignatureMethod")
	NameDSReference            = ds("Reference")
	NameTransforms             = ds("Transforms")
	NameTransform              = ds("Transform")
	NameDigestMethod           = ds("DigestMethod")
	NameDigestValue            = ds("DigestValue")
	NameSignatureValue         = ds("SignatureValue")
	NameKeyInfo                = ds("KeyInfo")
	NameEncryptedData          = xenc("EncryptedData")
	NameEncryptionMethod       = xenc("EncryptionMethod")
	NameCipherData             = xenc("CipherData")
	NameCipherValue            = xenc("CipherValue")
	NameReferenceList          = xenc("ReferenceList")
	NameDataReference          = xenc("DataReference")
)

// SOAPEnvelope returns the Envelope name of the SOAP version ns.
func SOAPEnvelope(ns string) xmlstream.Name { return xmlstream.NewName(ns, "soap", "Envelope") }

// SOAPHeader returns the Header name of the SOAP version ns.
func SOAPHeader(ns string) xmlstream.Name { return xmlstream.NewName(ns, "soap", "Header") }

// SOAPBody returns the Body name of the SOAP version ns.
func SOAPBody(ns string) xmlstream.Name { return xmlstream.NewName(ns, "soap", "Body") }

// MustUnderstand returns the mustUnderstand attribute of the SOAP version
// ns and its true value.
func MustUnderstand(ns, prefix string) xmlstream.Attr {
	value := "1"
	if ns == NSSOAP12 {
		value = "true"
	}
	return xmlstream.Attr{Name: xmlstream.NewName(ns, prefix, "mustUnderstand"), Value: value}
}

// IsSOAPNamespace reports whether ns is a SOAP 1.1 or 1.2 envelope namespace.
func IsSOAPNamespace(ns string) bool {
	return ns == NSSOAP11 || ns == NSSOAP12
}

// IDOf returns the wsu:Id of a start element, falling back to an unqualified
// Id attribute.
func IDOf(ev xmlstream.Event) string {
	if v, ok := ev.Attr(NSSecurityUtil, "Id"); ok {
		return v
	}
	if v, ok := ev.Attr("", "Id"); ok {
		return v
	}
	return ""
}
