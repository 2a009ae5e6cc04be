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

// Package config loads a declarative channel/sink topology: one Apply
// call builds every channel and sink a process wants at startup, the way
// an embedder would otherwise do by hand through runtime/channel.Manager.
//
// Leaf sinks are resolved from a Leaves registry keyed by kind name
// (runtime/registry's generic Registry, per its own doc-comment usage
// example), then optionally wrapped with retry and/or batch policy
// before being adapted into the apis/sink.Writer a channel actually
// installs.
package config

import (
	"context"
	"fmt"
	"time"

	asink "dirpx.dev/dlog/apis/sink"
	spolicy "dirpx.dev/dlog/apis/sink/policy"
	"dirpx.dev/dlog/apis/condition"
	"dirpx.dev/dlog/apis/severity"
	"dirpx.dev/dlog/runtime/channel"
	"dirpx.dev/dlog/runtime/registry"
	rsink "dirpx.dev/dlog/runtime/sink"
	rpolicy "dirpx.dev/dlog/runtime/sink/policy"
)

// Leaves is the builder registry Apply resolves SinkSpec.Kind against.
// The spec value passed to a builder is SinkSpec.BuilderSpec, type-erased
// because the set of leaf sink kinds is owned by the embedding
// application, not by dlog itself.
type Leaves = registry.Registry[asink.Sink, any]

// NewLeaves creates an empty, case-folded Leaves registry.
func NewLeaves() *Leaves {
	return registry.New[asink.Sink, any](registry.WithCaseFoldLower())
}

// ConditionSpec is the declarative form of apis/condition.Condition.
// Exactly one of Severity, Range, or List must be set.
type ConditionSpec struct {
	Severity    *severity.Severity
	Range       *severity.Range
	List        []severity.Severity
	Application string
	Module      string
}

// Build resolves cs into a condition.Condition.
func (cs ConditionSpec) Build() (condition.Condition, error) {
	var c condition.Condition
	switch {
	case cs.Severity != nil:
		c = condition.AtLeast(*cs.Severity)
	case cs.Range != nil:
		c = condition.InRange(cs.Range.Low, cs.Range.High)
	case len(cs.List) > 0:
		c = condition.OneOf(cs.List...)
	default:
		return condition.Condition{}, fmt.Errorf("config: condition must set Severity, Range, or List")
	}
	if cs.Application != "" {
		c = c.WithApplication(cs.Application)
	}
	if cs.Module != "" {
		c = c.WithModule(cs.Module)
	}
	return c, nil
}

// LifetimeSpec is the declarative form of runtime/channel.Lifetime.
type LifetimeSpec struct {
	// Kind is "infinity" (default), "duration", or "process".
	Kind     string
	Duration time.Duration
	Process  channel.ProcessHandle
}

// Build resolves ls into a channel.Lifetime.
func (ls LifetimeSpec) Build() (channel.Lifetime, error) {
	switch ls.Kind {
	case "", "infinity":
		return channel.Infinite(), nil
	case "duration":
		return channel.ForDuration(ls.Duration), nil
	case "process":
		if ls.Process == nil {
			return channel.Lifetime{}, fmt.Errorf("config: process lifetime requires Process")
		}
		return channel.BoundToProcess(ls.Process), nil
	default:
		return channel.Lifetime{}, fmt.Errorf("config: unknown lifetime kind %q", ls.Kind)
	}
}

// BatchSpec is the declarative form of runtime/sink/policy.BatchOptions.
type BatchSpec struct {
	QueueSize    int
	MaxEntries   int
	Interval     time.Duration
	Backpressure spolicy.Backpressure
}

// FanOutLeaf declares one member of a SinkSpec.FanOut group: a leaf sink
// built from Leaves, individually wrappable with retry before it joins
// the group.
type FanOutLeaf struct {
	Kind        string // Leaves registry key
	BuilderSpec any
	Retry       *spolicy.Retry
}

// SinkSpec declares one sink to install into a channel.
//
// Exactly one of Kind or FanOut should be set. Kind resolves a single
// leaf sink from Leaves; FanOut builds several leaves and fans every
// write out to all of them concurrently through runtime/sink.NewGroup,
// joining their errors. Retry/Batch/Condition/Lifetime always apply to
// the resulting sink as a whole, after fan-out has already combined it.
type SinkSpec struct {
	ID          string
	Kind        string // Leaves registry key
	BuilderSpec any    // passed to the leaf builder as-is

	FanOut []FanOutLeaf

	Retry *spolicy.Retry
	Batch *BatchSpec

	Condition ConditionSpec
	Lifetime  LifetimeSpec
	IfExists  string // "error" (default), "ignore", "supersede"
}

// ChannelSpec declares one channel and the sinks installed into it.
type ChannelSpec struct {
	ID    string
	Sinks []SinkSpec
}

// Topology is a full declarative bootstrap: every channel a process wants
// at startup.
type Topology struct {
	Channels []ChannelSpec
}

func parseIfExists(s string) (channel.IfExists, error) {
	switch s {
	case "", "error":
		return channel.IfExistsError, nil
	case "ignore":
		return channel.IfExistsIgnore, nil
	case "supersede":
		return channel.IfExistsSupersede, nil
	default:
		return 0, fmt.Errorf("config: unknown if_exists %q", s)
	}
}

// sinkWriter adapts an apis/sink.Sink (the byte-oriented,
// retry/batch-wrappable abstraction) into the apis/sink.Writer the
// channel dispatch core resolves at select-time.
type sinkWriter struct{ sink asink.Sink }

func (w sinkWriter) Write(ctx context.Context, _ string, data []byte) ([]byte, error) {
	if err := w.sink.Write(ctx, data); err != nil {
		return nil, err
	}
	return data, nil
}

func (w sinkWriter) GetWritee() any { return w.sink.Name() }

// Apply builds every channel and sink in topo against mgr, resolving
// leaf sinks from leaves. It stops at the first error; channels and
// sinks already created are left in place (Apply is not transactional —
// callers that need atomicity should build a fresh Manager and swap it
// in only on success).
func Apply(ctx context.Context, mgr *channel.Manager, leaves *Leaves, topo Topology) error {
	for _, chSpec := range topo.Channels {
		if err := mgr.Create(chSpec.ID); err != nil {
			return fmt.Errorf("config: create channel %q: %w", chSpec.ID, err)
		}
		for _, s := range chSpec.Sinks {
			if err := applySink(ctx, mgr, leaves, chSpec.ID, s); err != nil {
				return fmt.Errorf("config: channel %q sink %q: %w", chSpec.ID, s.ID, err)
			}
		}
	}
	return nil
}

// buildFanOutGroup resolves every leaf in s.FanOut and combines them into
// a single runtime/sink.Group.
func buildFanOutGroup(ctx context.Context, leaves *Leaves, s SinkSpec) (asink.Group, error) {
	members := make([]asink.Sink, 0, len(s.FanOut))
	for i, leaf := range s.FanOut {
		member, err := leaves.Build(ctx, registry.Key{Kind: "sink", Name: leaf.Kind}, leaf.BuilderSpec)
		if err != nil {
			return nil, fmt.Errorf("build fan-out leaf %d (%q): %w (registered sink kinds: %v)",
				i, leaf.Kind, err, leaves.Names("sink"))
		}
		if leaf.Retry != nil {
			member = rpolicy.WithRetry(member, rpolicy.RetryOptions{Policy: *leaf.Retry})
		}
		members = append(members, member)
	}
	return rsink.NewGroup(s.ID, members...), nil
}

// buildLeafSink resolves s into a single asink.Sink from leaves.
func buildLeafSink(ctx context.Context, leaves *Leaves, s SinkSpec) (asink.Sink, error) {
	sink, err := leaves.Build(ctx, registry.Key{Kind: "sink", Name: s.Kind}, s.BuilderSpec)
	if err != nil {
		return nil, fmt.Errorf("build leaf sink %q: %w (registered sink kinds: %v)",
			s.Kind, err, leaves.Names("sink"))
	}
	return sink, nil
}

func applySink(ctx context.Context, mgr *channel.Manager, leaves *Leaves, channelID string, s SinkSpec) error {
	var writer asink.Writer

	if len(s.FanOut) > 0 && s.Retry == nil && s.Batch == nil {
		// No outer wrapping needed: install the group directly as a
		// Writer instead of routing it through the generic sinkWriter
		// adapter meant for single leaves.
		group, err := buildFanOutGroup(ctx, leaves, s)
		if err != nil {
			return err
		}
		writer = rsink.AsWriter(group)
	} else {
		var sink asink.Sink
		var err error
		if len(s.FanOut) > 0 {
			sink, err = buildFanOutGroup(ctx, leaves, s)
		} else {
			sink, err = buildLeafSink(ctx, leaves, s)
		}
		if err != nil {
			return err
		}

		if s.Retry != nil {
			sink = rpolicy.WithRetry(sink, rpolicy.RetryOptions{Policy: *s.Retry})
		}
		if s.Batch != nil {
			sink = rpolicy.WithBatch(sink, rpolicy.BatchOptions{
				QueueSize:    s.Batch.QueueSize,
				Batch:        spolicy.Batch{MaxEntries: s.Batch.MaxEntries, Interval: s.Batch.Interval},
				Backpressure: s.Batch.Backpressure,
			})
		}
		writer = sinkWriter{sink: sink}
	}

	cond, err := s.Condition.Build()
	if err != nil {
		return err
	}
	lt, err := s.Lifetime.Build()
	if err != nil {
		return err
	}
	ifExists, err := parseIfExists(s.IfExists)
	if err != nil {
		return err
	}

	handle := asink.Handle{
		ID:        s.ID,
		Condition: cond,
		Start:     asink.StartSpec{Writer: writer},
	}
	_, err = mgr.InstallSink(channelID, handle, channel.InstallOptions{Lifetime: lt, IfExists: ifExists})
	return err
}
