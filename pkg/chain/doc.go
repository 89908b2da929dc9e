// Copyright (c) 2024 SIROS Foundation
// SPDX-License-Identifier: BSD-2-Clause

// Package chain implements the processor chain that applies WS-Security
// transformations to an XML event stream in a single forward pass.
//
// A Chain holds an ordered list of Processors grouped in three phases.
// Events are pushed into the chain by a driver and handed to the first
// processor, which may forward them unchanged, transform them, suppress them
// or emit additional events, all by calling Chain.ProcessEvent. Events
// forwarded past the last processor are written to the Sink.
//
// Processors may add and remove processors, including themselves, while an
// event is being dispatched. Changes are queued and applied once the event
// pushed by the driver has been fully dispatched, so removal takes effect
// from the next event on.
//
// A processor that has to synthesize a self-contained structure at its own
// position, such as a DerivedKeyToken element inside the security header,
// obtains a sub-chain with SubChain. The sub-chain shares the Security and
// Document contexts and the sink, and holds its own copy of the processors
// that follow.
//
// Any error returned by a processor aborts the chain. The caller must not
// deliver partial output.
package chain
