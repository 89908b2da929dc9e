package xmlstream

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
)

var (
	// ErrDTDNotAllowed is returned when a document carries a DOCTYPE.
	ErrDTDNotAllowed = errors.New("document type declarations are not allowed")
	// ErrUnboundPrefix is returned for a prefix with no namespace declaration.
	ErrUnboundPrefix = errors.New("unbound namespace prefix")
	// ErrMalformed is returned for unbalanced or truncated documents.
	ErrMalformed = errors.New("malformed XML")
)

// Reader produces events from an XML byte stream.
type Reader struct {
	dec   *xml.Decoder
	scope *Scope
	open  []Name
	ended bool
}

// NewReader returns a Reader over r.
func NewReader(r io.Reader) *Reader {
	return NewReaderWithScope(r, nil)
}

// NewReaderWithScope returns a Reader whose outermost scope already holds
// bindings. It parses fragments that were cut out of a larger document, such
// as decrypted content.
func NewReaderWithScope(r io.Reader, bindings []Namespace) *Reader {
	dec := xml.NewDecoder(r)
	dec.Strict = true
	scope := NewScope()
	if len(bindings) > 0 {
		scope.Push(append([]Namespace(nil), bindings...))
	}
	return &Reader{dec: dec, scope: scope}
}

// Next returns the next event. After the end-of-document event it returns
// io.EOF.
func (r *Reader) Next() (Event, error) {
	for {
		if r.ended {
			return Event{}, io.EOF
		}
		tok, err := r.dec.RawToken()
		if err == io.EOF {
			if len(r.open) > 0 {
				return Event{}, fmt.Errorf("%w: unexpected end of document inside <%s>", ErrMalformed, r.open[len(r.open)-1].Qualified())
			}
			r.ended = true
			return EndDocument(), nil
		}
		if err != nil {
			return Event{}, fmt.Errorf("%w: %v", ErrMalformed, err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			return r.start(t)
		case xml.EndElement:
			return r.end(t)
		case xml.CharData:
			return Characters(string(t)), nil
		case xml.Comment:
			return Comment(string(t)), nil
		case xml.ProcInst:
			if t.Target == "xml" {
				continue
			}
			return ProcInst(t.Target, string(t.Inst)), nil
		case xml.Directive:
			return Event{}, ErrDTDNotAllowed
		}
	}
}

func (r *Reader) start(t xml.StartElement) (Event, error) {
	var decls []Namespace
	for _, a := range t.Attr {
		switch {
		case a.Name.Space == "" && a.Name.Local == "xmlns":
			decls = append(decls, Namespace{Prefix: "", URI: a.Value})
		case a.Name.Space == "xmlns":
			decls = append(decls, Namespace{Prefix: a.Name.Local, URI: a.Value})
		}
	}
	r.scope.Push(decls)

	name, err := r.resolve(t.Name.Space, t.Name.Local, true)
	if err != nil {
		return Event{}, err
	}

	var attrs []Attr
	for _, a := range t.Attr {
		if (a.Name.Space == "" && a.Name.Local == "xmlns") || a.Name.Space == "xmlns" {
			continue
		}
		an, err := r.resolve(a.Name.Space, a.Name.Local, false)
		if err != nil {
			return Event{}, err
		}
		attrs = append(attrs, Attr{Name: an, Value: a.Value})
	}

	r.open = append(r.open, name)
	return StartElement(name, attrs, decls...), nil
}

func (r *Reader) end(t xml.EndElement) (Event, error) {
	if len(r.open) == 0 {
		return Event{}, fmt.Errorf("%w: unexpected </%s>", ErrMalformed, t.Name.Local)
	}
	name := r.open[len(r.open)-1]
	if name.Prefix != t.Name.Space || name.Local != t.Name.Local {
		return Event{}, fmt.Errorf("%w: <%s> closed by </%s>", ErrMalformed, name.Qualified(), qualified(t.Name.Space, t.Name.Local))
	}
	r.open = r.open[:len(r.open)-1]
	r.scope.Pop()
	return EndElement(name), nil
}

// resolve binds a raw prefix. Unprefixed attributes have no namespace;
// unprefixed elements take the default namespace.
func (r *Reader) resolve(prefix, local string, element bool) (Name, error) {
	if prefix == "" {
		if !element {
			return Name{Local: local}, nil
		}
		uri, _ := r.scope.Lookup("")
		return Name{Space: uri, Local: local}, nil
	}
	uri, ok := r.scope.Lookup(prefix)
	if !ok || uri == "" {
		return Name{}, fmt.Errorf("%w: %s", ErrUnboundPrefix, prefix)
	}
	return Name{Space: uri, Local: local, Prefix: prefix}, nil
}

func qualified(prefix, local string) string {
	if prefix == "" {
		return local
	}
	return prefix + ":" + local
}

// ReadAll reads every event from r up to and including the end of the
// document.
func ReadAll(r *Reader) ([]Event, error) {
	var events []Event
	for {
		ev, err := r.Next()
		if err == io.EOF {
			return events, nil
		}
		if err != nil {
			return nil, err
		}
		events = append(events, ev)
	}
}
