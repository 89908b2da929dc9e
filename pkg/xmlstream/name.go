package xmlstream

// Name is a namespace-qualified XML name. Space is the namespace URI, Prefix
// the prefix it was bound to in the serialized form.
type Name struct {
	Space  string
	Local  string
	Prefix string
}

// NewName returns a name in namespace space with the given prefix.
func NewName(space, prefix, local string) Name {
	return Name{Space: space, Local: local, Prefix: prefix}
}

// Equal reports whether n and o denote the same expanded name. Prefixes are
// not compared.
func (n Name) Equal(o Name) bool {
	return n.Space == o.Space && n.Local == o.Local
}

// String returns the expanded name in {namespace}local notation.
func (n Name) String() string {
	if n.Space == "" {
		return n.Local
	}
	return "{" + n.Space + "}" + n.Local
}

// Qualified returns the lexical prefix:local form.
func (n Name) Qualified() string {
	if n.Prefix == "" {
		return n.Local
	}
	return n.Prefix + ":" + n.Local
}

// Attr is a single attribute of a start element.
type Attr struct {
	Name  Name
	Value string
}

// Namespace is a namespace declaration. An empty Prefix declares the default
// namespace.
type Namespace struct {
	Prefix string
	URI    string
}

const (
	// NamespaceXML is bound to the xml prefix in every document.
	NamespaceXML = "http://www.w3.org/XML/1998/namespace"
	// NamespaceXMLNS is the namespace of namespace declaration attributes.
	NamespaceXMLNS = "http://www.w3.org/2000/xmlns/"
)
