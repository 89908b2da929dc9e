package xmlstream

import (
	"strings"
)

// Kind identifies the variant of an Event.
type Kind int

const (
	KindStartElement Kind = iota + 1
	KindEndElement
	KindCharacters
	KindComment
	KindProcInst
	KindEndDocument
)

func (k Kind) String() string {
	switch k {
	case KindStartElement:
		return "StartElement"
	case KindEndElement:
		return "EndElement"
	case KindCharacters:
		return "Characters"
	case KindComment:
		return "Comment"
	case KindProcInst:
		return "ProcInst"
	case KindEndDocument:
		return "EndDocument"
	default:
		return "Unknown"
	}
}

// Event is one XML parse event. Events are values; the slices they carry are
// never modified after construction, the With methods return copies.
type Event struct {
	Kind Kind

	// Name is the element name for start and end elements and the target
	// (in Local) for processing instructions.
	Name Name

	// Attrs holds the attributes of a start element in document order,
	// namespace declarations excluded.
	Attrs []Attr

	// Namespaces holds the declarations made on a start element.
	Namespaces []Namespace

	// Text is the payload of character data, comments and processing
	// instructions.
	Text string
}

// StartElement returns a start element event.
func StartElement(name Name, attrs []Attr, decls ...Namespace) Event {
	ev := Event{Kind: KindStartElement, Name: name}
	if len(attrs) > 0 {
		ev.Attrs = append([]Attr(nil), attrs...)
	}
	if len(decls) > 0 {
		ev.Namespaces = append([]Namespace(nil), decls...)
	}
	return ev
}

// EndElement returns an end element event.
func EndElement(name Name) Event {
	return Event{Kind: KindEndElement, Name: name}
}

// Characters returns a character data event.
func Characters(text string) Event {
	return Event{Kind: KindCharacters, Text: text}
}

// Comment returns a comment event.
func Comment(text string) Event {
	return Event{Kind: KindComment, Text: text}
}

// ProcInst returns a processing instruction event.
func ProcInst(target, inst string) Event {
	return Event{Kind: KindProcInst, Name: Name{Local: target}, Text: inst}
}

// EndDocument returns the terminating event of a document.
func EndDocument() Event {
	return Event{Kind: KindEndDocument}
}

// IsStart reports whether ev is a start element.
func (ev Event) IsStart() bool { return ev.Kind == KindStartElement }

// IsEnd reports whether ev is an end element.
func (ev Event) IsEnd() bool { return ev.Kind == KindEndElement }

// IsStartOf reports whether ev starts an element named name.
func (ev Event) IsStartOf(name Name) bool {
	return ev.Kind == KindStartElement && ev.Name.Equal(name)
}

// IsEndOf reports whether ev ends an element named name.
func (ev Event) IsEndOf(name Name) bool {
	return ev.Kind == KindEndElement && ev.Name.Equal(name)
}

// IsWhitespace reports whether ev is character data made only of XML
// whitespace.
func (ev Event) IsWhitespace() bool {
	return ev.Kind == KindCharacters && strings.Trim(ev.Text, " \t\r\n") == ""
}

// Attr returns the value of the attribute with the given expanded name.
func (ev Event) Attr(space, local string) (string, bool) {
	for _, a := range ev.Attrs {
		if a.Name.Space == space && a.Name.Local == local {
			return a.Value, true
		}
	}
	return "", false
}

// WithAttr returns a copy of ev with a set, replacing any attribute of the
// same expanded name.
func (ev Event) WithAttr(a Attr) Event {
	attrs := make([]Attr, 0, len(ev.Attrs)+1)
	replaced := false
	for _, old := range ev.Attrs {
		if old.Name.Equal(a.Name) {
			attrs = append(attrs, a)
			replaced = true
			continue
		}
		attrs = append(attrs, old)
	}
	if !replaced {
		attrs = append(attrs, a)
	}
	ev.Attrs = attrs
	return ev
}

// WithNamespace returns a copy of ev that also declares ns.
func (ev Event) WithNamespace(ns Namespace) Event {
	decls := make([]Namespace, 0, len(ev.Namespaces)+1)
	for _, d := range ev.Namespaces {
		if d.Prefix != ns.Prefix {
			decls = append(decls, d)
		}
	}
	ev.Namespaces = append(decls, ns)
	return ev
}
