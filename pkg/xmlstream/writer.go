package xmlstream

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

var (
	textEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;", "\r", "&#xD;")
	attrEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", "\"", "&quot;", "\t", "&#x9;", "\n", "&#xA;", "\r", "&#xD;")
)

// Writer serializes events. It is the terminal sink of a processor chain.
type Writer struct {
	w     *bufio.Writer
	scope *Scope
	open  []Name
	gen   int
	err   error
}

// NewWriter returns a Writer emitting to w. Call Flush once the document is
// complete.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: bufio.NewWriter(w), scope: NewScope()}
}

// Write serializes one event.
func (w *Writer) Write(ev Event) error {
	if w.err != nil {
		return w.err
	}
	switch ev.Kind {
	case KindStartElement:
		w.start(ev)
	case KindEndElement:
		w.end(ev)
	case KindCharacters:
		w.str(textEscaper.Replace(ev.Text))
	case KindComment:
		w.str("<!--" + ev.Text + "-->")
	case KindProcInst:
		w.str("<?" + ev.Name.Local)
		if ev.Text != "" {
			w.str(" " + ev.Text)
		}
		w.str("?>")
	case KindEndDocument:
		if len(w.open) > 0 {
			w.err = fmt.Errorf("%w: document ended inside <%s>", ErrMalformed, w.open[len(w.open)-1].Qualified())
		}
	}
	return w.err
}

// Flush writes any buffered output.
func (w *Writer) Flush() error {
	if w.err != nil {
		return w.err
	}
	return w.w.Flush()
}

func (w *Writer) start(ev Event) {
	var decls []Namespace
	bound := func(prefix, uri string) bool {
		for _, d := range decls {
			if d.Prefix == prefix {
				return d.URI == uri
			}
		}
		cur, ok := w.scope.Lookup(prefix)
		if prefix == "" && !ok {
			return uri == ""
		}
		return ok && cur == uri
	}
	declare := func(prefix, uri string) {
		for i, d := range decls {
			if d.Prefix == prefix {
				decls[i].URI = uri
				return
			}
		}
		decls = append(decls, Namespace{Prefix: prefix, URI: uri})
	}

	for _, d := range ev.Namespaces {
		if !bound(d.Prefix, d.URI) {
			declare(d.Prefix, d.URI)
		}
	}

	name := ev.Name
	if !bound(name.Prefix, name.Space) {
		if name.Prefix == "xml" {
			w.err = fmt.Errorf("%w: xml prefix cannot be rebound", ErrMalformed)
			return
		}
		declare(name.Prefix, name.Space)
	}

	attrs := make([]Attr, len(ev.Attrs))
	copy(attrs, ev.Attrs)
	for i, a := range attrs {
		if a.Name.Space == "" {
			attrs[i].Name.Prefix = ""
			continue
		}
		if a.Name.Space == NamespaceXML {
			attrs[i].Name.Prefix = "xml"
			continue
		}
		if a.Name.Prefix == "" {
			if p, ok := w.scope.PrefixFor(a.Name.Space); ok {
				attrs[i].Name.Prefix = p
				continue
			}
			w.gen++
			attrs[i].Name.Prefix = "ns" + strconv.Itoa(w.gen)
		}
		if !bound(attrs[i].Name.Prefix, a.Name.Space) {
			declare(attrs[i].Name.Prefix, a.Name.Space)
		}
	}

	w.str("<" + name.Qualified())
	for _, d := range decls {
		if d.Prefix == "" {
			w.str(` xmlns="` + attrEscaper.Replace(d.URI) + `"`)
		} else {
			w.str(" xmlns:" + d.Prefix + `="` + attrEscaper.Replace(d.URI) + `"`)
		}
	}
	for _, a := range attrs {
		w.str(" " + a.Name.Qualified() + `="` + attrEscaper.Replace(a.Value) + `"`)
	}
	w.str(">")

	w.scope.Push(decls)
	w.open = append(w.open, name)
}

func (w *Writer) end(ev Event) {
	if len(w.open) == 0 {
		w.err = fmt.Errorf("%w: unexpected </%s>", ErrMalformed, ev.Name.Qualified())
		return
	}
	name := w.open[len(w.open)-1]
	if !name.Equal(ev.Name) {
		w.err = fmt.Errorf("%w: <%s> closed by </%s>", ErrMalformed, name.Qualified(), ev.Name.Qualified())
		return
	}
	w.open = w.open[:len(w.open)-1]
	w.str("</" + name.Qualified() + ">")
	w.scope.Pop()
}

func (w *Writer) str(s string) {
	if w.err != nil {
		return
	}
	_, w.err = w.w.WriteString(s)
}

// Serialize writes events to a string. It is meant for fragments such as
// element content about to be encrypted.
func Serialize(events []Event) (string, error) {
	var sb strings.Builder
	w := NewWriter(&sb)
	for _, ev := range events {
		if err := w.Write(ev); err != nil {
			return "", err
		}
	}
	if err := w.Flush(); err != nil {
		return "", err
	}
	return sb.String(), nil
}
