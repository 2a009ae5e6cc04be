/*
   Copyright 2025 The DIRPX Authors.

   Licensed under the Apache License, Version 2.0 (the "License");
   you may not use this file except in compliance with the License.
   You may obtain a copy of the License at

       http://www.apache.org/licenses/LICENSE-2.0

   Unless required by applicable law or agreed to in writing, software
   distributed under the License is distributed on an "AS IS" BASIS,
   WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
   See the License for the specific language governing permissions and
   limitations under the License.
*/

// Package sink defines the interfaces the dispatch core consumes but never
// implements: the sink itself, the writer it ultimately resolves to, and
// the fan-out group helper. Concrete sinks (files, network, etc.) and
// layouts live outside this module.
package sink

import (
	"context"

	"dirpx.dev/dlog/apis/condition"
)

// Writer is a pure dispatcher object with respect to its closed-over state;
// it may perform I/O side effects but must never panic or otherwise escape
// to the caller. Write errors are absorbed or reported out-of-band by the
// caller (see runtime/diag).
type Writer interface {
	// Write delivers format/data to the writer's ultimate destination and
	// returns what was actually written, or an error.
	Write(ctx context.Context, format string, data []byte) ([]byte, error)

	// GetWritee identifies the ultimate write target for introspection, or
	// nil if there is none (e.g. a discard writer).
	GetWritee() any
}

// Sink is an installable destination: something a channel can route
// records to. Name must be stable and unique within whatever scope the
// sink is installed into.
type Sink interface {
	Name() string
	Write(ctx context.Context, entry []byte) error
	Flush(ctx context.Context) error
	Close(ctx context.Context) error
}

// Group is a named collection of sinks that fans writes out to every
// member concurrently.
type Group interface {
	Sink
	Add(s Sink) error
	Remove(name string) error
	List() []string
}

// StartSpec describes how to obtain a sink's writer. Exactly one of
// Writer or Start should be set: Writer for a sink whose writer is known
// immediately at install time, Start for a sink backed by a subordinate
// task that will publish writers asynchronously via WriterPublisher.
type StartSpec struct {
	// Writer is used directly when set.
	Writer Writer

	// Start, when set, is invoked once to launch the subordinate that will
	// call the WriterPublisher it receives whenever it has a writer ready
	// (including to publish a replacement later). Start must return
	// promptly; long-running work belongs in a goroutine it spawns.
	Start func(ctx context.Context, publish WriterPublisher) error
}

// WriterPublisher is how a subordinate task reports its current writer
// upward. Calling it with nil clears the writer (reverts to "none").
type WriterPublisher func(w Writer)

// Handle is an immutable descriptor of an installable sink, as accepted by
// the channel registry's InstallSink.
type Handle struct {
	ID        string
	Condition condition.Condition
	Start     StartSpec
}
