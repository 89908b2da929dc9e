package xmlstream

import (
	"fmt"

	"github.com/beevik/etree"
)

// ToElement builds an etree element from a balanced event run that opens
// with a start element and closes with its matching end element. Each
// element carries the declarations it needs, so the result canonicalizes
// the same wherever the run was cut from.
func ToElement(events []Event) (*etree.Element, error) {
	if len(events) == 0 || !events[0].IsStart() {
		return nil, fmt.Errorf("%w: subtree must open with a start element", ErrMalformed)
	}

	scope := NewScope()
	var root *etree.Element
	var stack []*etree.Element

	for i, ev := range events {
		switch ev.Kind {
		case KindStartElement:
			if root != nil && len(stack) == 0 {
				return nil, fmt.Errorf("%w: content after subtree root", ErrMalformed)
			}
			el := etree.NewElement(ev.Name.Qualified())

			var decls []Namespace
			need := func(prefix, uri string) {
				for _, d := range decls {
					if d.Prefix == prefix {
						return
					}
				}
				cur, found := scope.Lookup(prefix)
				if found && cur == uri {
					return
				}
				if !found && prefix == "" && uri == "" {
					return
				}
				decls = append(decls, Namespace{Prefix: prefix, URI: uri})
			}
			for _, d := range ev.Namespaces {
				need(d.Prefix, d.URI)
			}
			need(ev.Name.Prefix, ev.Name.Space)
			for _, a := range ev.Attrs {
				if a.Name.Space != "" && a.Name.Space != NamespaceXML && a.Name.Prefix != "" {
					need(a.Name.Prefix, a.Name.Space)
				}
			}
			for _, d := range decls {
				if d.Prefix == "" {
					el.CreateAttr("xmlns", d.URI)
				} else {
					el.CreateAttr("xmlns:"+d.Prefix, d.URI)
				}
			}
			for _, a := range ev.Attrs {
				key := a.Name.Local
				switch {
				case a.Name.Space == NamespaceXML:
					key = "xml:" + a.Name.Local
				case a.Name.Prefix != "":
					key = a.Name.Prefix + ":" + a.Name.Local
				}
				el.CreateAttr(key, a.Value)
			}

			scope.Push(decls)
			if len(stack) > 0 {
				stack[len(stack)-1].AddChild(el)
			} else {
				root = el
			}
			stack = append(stack, el)

		case KindEndElement:
			if len(stack) == 0 {
				return nil, fmt.Errorf("%w: unexpected end element at %d", ErrMalformed, i)
			}
			stack = stack[:len(stack)-1]
			scope.Pop()

		case KindCharacters:
			if len(stack) > 0 {
				stack[len(stack)-1].CreateText(ev.Text)
			}

		case KindComment:
			if len(stack) > 0 {
				stack[len(stack)-1].CreateComment(ev.Text)
			}
		}
	}

	if len(stack) != 0 {
		return nil, fmt.Errorf("%w: subtree is not balanced", ErrMalformed)
	}
	return root, nil
}

// FromElement flattens an etree element into events. Prefixes resolve
// through the declarations on the element and its etree ancestors.
func FromElement(el *etree.Element) []Event {
	var events []Event
	appendElement(&events, el)
	return events
}

func appendElement(events *[]Event, el *etree.Element) {
	name := Name{Space: el.NamespaceURI(), Local: el.Tag, Prefix: el.Space}

	var attrs []Attr
	var decls []Namespace
	for i := range el.Attr {
		a := &el.Attr[i]
		switch {
		case a.Space == "" && a.Key == "xmlns":
			decls = append(decls, Namespace{Prefix: "", URI: a.Value})
		case a.Space == "xmlns":
			decls = append(decls, Namespace{Prefix: a.Key, URI: a.Value})
		case a.Space == "xml":
			attrs = append(attrs, Attr{Name: Name{Space: NamespaceXML, Local: a.Key, Prefix: "xml"}, Value: a.Value})
		case a.Space != "":
			attrs = append(attrs, Attr{Name: Name{Space: a.NamespaceURI(), Local: a.Key, Prefix: a.Space}, Value: a.Value})
		default:
			attrs = append(attrs, Attr{Name: Name{Local: a.Key}, Value: a.Value})
		}
	}

	*events = append(*events, StartElement(name, attrs, decls...))
	for _, tok := range el.Child {
		switch t := tok.(type) {
		case *etree.Element:
			appendElement(events, t)
		case *etree.CharData:
			*events = append(*events, Characters(t.Data))
		case *etree.Comment:
			*events = append(*events, Comment(t.Data))
		}
	}
	*events = append(*events, EndElement(name))
}

// NewElement returns an etree element for name that declares its
// namespace.
func NewElement(name Name) *etree.Element {
	el := etree.NewElement(name.Qualified())
	declare(el, name.Prefix, name.Space)
	return el
}

// AddElement appends a child element for name to parent, declaring the
// namespace when the parent does not bind the prefix to it.
func AddElement(parent *etree.Element, name Name) *etree.Element {
	el := parent.CreateElement(name.Qualified())
	if el.NamespaceURI() != name.Space {
		declare(el, name.Prefix, name.Space)
	}
	return el
}

// AddTextElement appends a child element holding text.
func AddTextElement(parent *etree.Element, name Name, text string) *etree.Element {
	el := AddElement(parent, name)
	el.SetText(text)
	return el
}

// SetAttr sets a possibly namespaced attribute on el, declaring its prefix
// on el.
func SetAttr(el *etree.Element, name Name, value string) {
	if name.Space == "" || name.Prefix == "" {
		el.CreateAttr(name.Local, value)
		return
	}
	if name.Space != NamespaceXML {
		declare(el, name.Prefix, name.Space)
	}
	el.CreateAttr(name.Prefix+":"+name.Local, value)
}

func declare(el *etree.Element, prefix, uri string) {
	switch {
	case uri == "":
	case prefix == "":
		el.CreateAttr("xmlns", uri)
	default:
		el.CreateAttr("xmlns:"+prefix, uri)
	}
}
