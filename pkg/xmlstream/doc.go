// Copyright (c) 2024 SIROS Foundation
// SPDX-License-Identifier: BSD-2-Clause

/*
Package xmlstream provides the forward-only XML event model the security
pipeline runs on.

A document is a sequence of immutable [Event] values in strict document
order: start elements carrying a namespace-qualified [Name], ordered
attributes and the namespace declarations made on that element, end
elements, character data, comments and processing instructions, terminated
by a single end-of-document event.

# Reading and Writing

[Reader] adapts encoding/xml into events, resolving every element and
attribute prefix to its namespace URI while keeping the prefix so that
serialization can reproduce the original lexical form:

	r := xmlstream.NewReader(in)
	for {
		ev, err := r.Next()
		if err == io.EOF {
			break
		}
		...
	}

[Writer] is the serializer sink. It declares any namespace binding an event
needs that is not already in scope, so processors may synthesize elements
without tracking ancestor declarations. Document type declarations are
rejected by the reader.

# Subtrees

[ToElement] and [FromElement] convert between a balanced run of events and
an etree element. Processors use the former to canonicalize or inspect a
buffered subtree and the latter to emit structures they built with etree.
*/
package xmlstream
