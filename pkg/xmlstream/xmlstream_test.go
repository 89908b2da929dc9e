package xmlstream

import (
	"bytes"
	"io"
	"strings"
	"testing"

	"github.com/beevik/etree"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleEnvelope = `<?xml version="1.0" encoding="UTF-8"?>
<soap:Envelope xmlns:soap="http://www.w3.org/2003/05/soap-envelope" xmlns:ex="urn:example">
<soap:Body><ex:Order id="7" ex:priority="high">widgets &amp; gears</ex:Order></soap:Body>
</soap:Envelope>`

func readAll(t *testing.T, doc string) []Event {
	t.Helper()
	events, err := ReadAll(NewReader(strings.NewReader(doc)))
	require.NoError(t, err)
	return events
}

func TestReaderResolvesNamespaces(t *testing.T) {
	events := readAll(t, sampleEnvelope)

	var order Event
	for _, ev := range events {
		if ev.IsStart() && ev.Name.Local == "Order" {
			order = ev
		}
	}
	assert.Equal(t, "urn:example", order.Name.Space)
	assert.Equal(t, "ex", order.Name.Prefix)

	v, ok := order.Attr("", "id")
	assert.True(t, ok)
	assert.Equal(t, "7", v)
	v, ok = order.Attr("urn:example", "priority")
	assert.True(t, ok)
	assert.Equal(t, "high", v)

	assert.Equal(t, KindEndDocument, events[len(events)-1].Kind)
}

func TestReaderEOFAfterEndDocument(t *testing.T) {
	r := NewReader(strings.NewReader(`<a/>`))
	kinds := []Kind{}
	for {
		ev, err := r.Next()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		kinds = append(kinds, ev.Kind)
	}
	assert.Equal(t, []Kind{KindStartElement, KindEndElement, KindEndDocument}, kinds)
}

func TestReaderRejectsDoctype(t *testing.T) {
	_, err := ReadAll(NewReader(strings.NewReader(`<!DOCTYPE a [<!ENTITY x "y">]><a>&x;</a>`)))
	assert.ErrorIs(t, err, ErrDTDNotAllowed)
}

func TestReaderRejectsUnboundPrefix(t *testing.T) {
	_, err := ReadAll(NewReader(strings.NewReader(`<p:a/>`)))
	assert.ErrorIs(t, err, ErrUnboundPrefix)
}

func TestReaderTruncated(t *testing.T) {
	_, err := ReadAll(NewReader(strings.NewReader(`<a><b>`)))
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestWriterRoundTrip(t *testing.T) {
	events := readAll(t, sampleEnvelope)

	var buf bytes.Buffer
	w := NewWriter(&buf)
	for _, ev := range events {
		require.NoError(t, w.Write(ev))
	}
	require.NoError(t, w.Flush())

	again := readAll(t, buf.String())
	require.Len(t, again, len(events))
	for i := range events {
		assert.Equal(t, events[i].Kind, again[i].Kind)
		assert.True(t, events[i].Name.Equal(again[i].Name))
		assert.Equal(t, events[i].Text, again[i].Text)
	}
}

func TestWriterDeclaresMissingBindings(t *testing.T) {
	name := NewName("urn:sec", "sec", "Token")
	out, err := Serialize([]Event{
		StartElement(name, []Attr{{Name: NewName("urn:util", "u", "Id"), Value: "T-1"}}),
		Characters("a<b"),
		EndElement(name),
	})
	require.NoError(t, err)
	assert.Equal(t, `<sec:Token xmlns:sec="urn:sec" xmlns:u="urn:util" u:Id="T-1">a&lt;b</sec:Token>`, out)
}

func TestWriterRejectsMismatchedEnd(t *testing.T) {
	w := NewWriter(io.Discard)
	require.NoError(t, w.Write(StartElement(NewName("", "", "a"), nil)))
	assert.ErrorIs(t, w.Write(EndElement(NewName("", "", "b"))), ErrMalformed)
}

func TestToElementCarriesBindings(t *testing.T) {
	events := readAll(t, sampleEnvelope)

	var body []Event
	depth := 0
	for _, ev := range events {
		if ev.IsStart() && ev.Name.Local == "Body" {
			depth = 1
			body = append(body, ev)
			continue
		}
		if depth == 0 {
			continue
		}
		body = append(body, ev)
		if ev.IsStart() {
			depth++
		}
		if ev.IsEnd() {
			depth--
		}
		if depth == 0 {
			break
		}
	}

	el, err := ToElement(body)
	require.NoError(t, err)
	assert.Equal(t, "http://www.w3.org/2003/05/soap-envelope", el.SelectAttrValue("xmlns:soap", ""))

	order := el.FindElement("./*[local-name()='Order']")
	require.NotNil(t, order)
	assert.Equal(t, "urn:example", order.SelectAttrValue("xmlns:ex", ""))
	assert.Equal(t, "widgets & gears", order.Text())
}

func TestFromElement(t *testing.T) {
	el := etree.NewElement("wsc:DerivedKeyToken")
	el.CreateAttr("xmlns:wsc", "urn:sc")
	el.CreateAttr("xmlns:wsu", "urn:wsu")
	el.CreateAttr("wsu:Id", "DK-1")
	el.CreateElement("wsc:Offset").SetText("0")

	events := FromElement(el)
	require.Len(t, events, 5)
	assert.True(t, events[0].IsStartOf(NewName("urn:sc", "", "DerivedKeyToken")))
	v, ok := events[0].Attr("urn:wsu", "Id")
	assert.True(t, ok)
	assert.Equal(t, "DK-1", v)
	assert.True(t, events[1].IsStartOf(NewName("urn:sc", "", "Offset")))
	assert.Equal(t, "0", events[2].Text)
}

func TestEventWithAttrReplaces(t *testing.T) {
	idName := NewName("urn:wsu", "wsu", "Id")
	ev := StartElement(NewName("", "", "a"), []Attr{{Name: idName, Value: "x"}})
	ev2 := ev.WithAttr(Attr{Name: idName, Value: "y"})

	v, _ := ev.Attr("urn:wsu", "Id")
	assert.Equal(t, "x", v, "original event must not change")
	v, _ = ev2.Attr("urn:wsu", "Id")
	assert.Equal(t, "y", v)
	assert.Len(t, ev2.Attrs, 1)
}

func TestScopeBindings(t *testing.T) {
	s := NewScope()
	s.Push([]Namespace{{Prefix: "a", URI: "urn:a"}, {Prefix: "", URI: "urn:d"}})
	s.Push([]Namespace{{Prefix: "a", URI: "urn:a2"}})

	uri, ok := s.Lookup("a")
	assert.True(t, ok)
	assert.Equal(t, "urn:a2", uri)

	p, ok := s.PrefixFor("urn:a")
	assert.False(t, ok, "shadowed binding must not be offered")
	assert.Empty(t, p)

	assert.Equal(t, []Namespace{{Prefix: "", URI: "urn:d"}, {Prefix: "a", URI: "urn:a2"}}, s.Bindings())
	s.Pop()
	s.Pop()
	s.Pop()
	assert.Equal(t, 0, s.Depth())
}
