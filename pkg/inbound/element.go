package inbound

import (
	"encoding/base64"
	"sort"
	"strconv"
	"strings"

	"github.com/beevik/etree"

	"github.com/sirosfoundation/go-wssec/pkg/chain"
	"github.com/sirosfoundation/go-wssec/pkg/security"
	"github.com/sirosfoundation/go-wssec/pkg/xmlstream"
)

func isNamed(el *etree.Element, name xmlstream.Name) bool {
	return el.Tag == name.Local && el.NamespaceURI() == name.Space
}

// child returns the first child of el named name.
func child(el *etree.Element, name xmlstream.Name) *etree.Element {
	for _, ch := range el.ChildElements() {
		if isNamed(ch, name) {
			return ch
		}
	}
	return nil
}

func children(el *etree.Element, name xmlstream.Name) []*etree.Element {
	var out []*etree.Element
	for _, ch := range el.ChildElements() {
		if isNamed(ch, name) {
			out = append(out, ch)
		}
	}
	return out
}

func childText(el *etree.Element, name xmlstream.Name) string {
	if ch := child(el, name); ch != nil {
		return strings.TrimSpace(ch.Text())
	}
	return ""
}

// attr returns the value of the attribute local in namespace space; an
// empty space selects an unqualified attribute.
func attr(el *etree.Element, space, local string) string {
	for _, a := range el.Attr {
		if a.Key == local && a.NamespaceURI() == space {
			return a.Value
		}
	}
	return ""
}

// idOf returns the wsu:Id of el, falling back to an unqualified Id.
func idOf(el *etree.Element) string {
	if id := attr(el, security.NSSecurityUtil, "Id"); id != "" {
		return id
	}
	return attr(el, "", "Id")
}

func decodeBase64(s string) ([]byte, error) {
	return base64.StdEncoding.DecodeString(strings.Join(strings.Fields(s), ""))
}

func parseInt(el *etree.Element, name xmlstream.Name, def int) (int, error) {
	s := childText(el, name)
	if s == "" {
		return def, nil
	}
	return strconv.Atoi(s)
}

// tokenReference returns the token id a wsse:SecurityTokenReference
// inside el points at.
func tokenReference(el *etree.Element) (string, error) {
	str := child(el, security.NameSecurityTokenReference)
	if str == nil {
		return "", security.NewValidationError(security.ErrInvalidSecurity, "%s has no SecurityTokenReference", el.Tag)
	}
	ref := child(str, security.NameReference)
	if ref == nil {
		return "", security.NewValidationError(security.ErrSecurityTokenUnavailable, "unsupported SecurityTokenReference in %s", el.Tag)
	}
	return localReference(ref.SelectAttrValue("URI", ""))
}

// localReference strips the fragment marker from a same-document URI.
func localReference(uri string) (string, error) {
	id, ok := strings.CutPrefix(uri, "#")
	if !ok || id == "" {
		return "", security.NewValidationError(security.ErrInvalidSecurity, "unsupported reference URI %q", uri)
	}
	return id, nil
}

// subtree returns the balanced run of events that starts at events[i].
func subtree(events []xmlstream.Event, i int) []xmlstream.Event {
	depth := 0
	for j := i; j < len(events); j++ {
		switch {
		case events[j].IsStart():
			depth++
		case events[j].IsEnd():
			depth--
		}
		if depth == 0 {
			return events[i : j+1]
		}
	}
	return events[i:]
}

// findSubtree returns the first element named name in events.
func findSubtree(events []xmlstream.Event, name xmlstream.Name) []xmlstream.Event {
	for i, ev := range events {
		if ev.IsStartOf(name) {
			return subtree(events, i)
		}
	}
	return nil
}

// indexIDs maps the id of every element in events to its subtree. Ids must
// be unique.
func indexIDs(events []xmlstream.Event) (map[string][]xmlstream.Event, error) {
	ids := make(map[string][]xmlstream.Event)
	for i, ev := range events {
		if !ev.IsStart() {
			continue
		}
		id := security.IDOf(ev)
		if id == "" {
			continue
		}
		if _, dup := ids[id]; dup {
			return nil, security.NewValidationError(security.ErrInvalidSecurity, "duplicate id %q", id)
		}
		ids[id] = subtree(events, i)
	}
	return ids, nil
}

// resolveToken resolves the token id refers to. A reference to a token
// the message does not carry is reported as unavailable.
func resolveToken(c *chain.Chain, props *Properties, id string) (security.Token, error) {
	sec := c.Security()
	if _, ok := sec.Provider(id); !ok {
		return nil, security.NewValidationError(security.ErrSecurityTokenUnavailable, "no token with id %q", id)
	}
	return sec.ResolveToken(c.Context(), id, props.Crypto)
}

// missing lists the keys of refs in sorted order.
func missing[V any](refs map[string]V) string {
	ids := make([]string, 0, len(refs))
	for id := range refs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return strings.Join(ids, ", ")
}
