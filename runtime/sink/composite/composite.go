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

// Package composite implements the Composite Sink Coordinator: a sink
// backed by an ordered set of child writer sources, exposing a single
// selectable "active" writer upward to whichever channel it is installed
// into. Each child's latest-known writer lives behind an atomic pointer
// cell, the same hot-swap shape pjscruggs-slogcp's SwitchableWriter uses
// for a single io.Writer, generalised here to one cell per child plus an
// active-child selector.
package composite

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	asink "dirpx.dev/dlog/apis/sink"
)

// DefaultInitialWriterTimeout is how long Run waits for each child with a
// Start-based writer source to publish its first writer before moving on
// and leaving that child's writer as none (spec §9's open question:
// configurable, default mirrors the source's ~100ms).
const DefaultInitialWriterTimeout = 100 * time.Millisecond

// child holds one subordinate's writer source and latest-known writer.
type child struct {
	spec   asink.StartSpec
	cell   atomic.Pointer[asink.Writer]
	ready  chan struct{}
	once   sync.Once
}

func (c *child) writer() asink.Writer {
	if p := c.cell.Load(); p != nil {
		return *p
	}
	return nil
}

func (c *child) set(w asink.Writer) {
	c.cell.Store(&w)
	c.once.Do(func() { close(c.ready) })
}

// ChildView is a read-only snapshot of one child, as returned by
// GetChildren.
type ChildView struct {
	Index  int // 0-based
	Writer asink.Writer
}

// Coordinator is the Composite Sink Coordinator. Build with New, then
// wire Run into an apis/sink.Handle's Start field to install it as a
// channel sink like any other writer source.
type Coordinator struct {
	id       string
	timeout  time.Duration
	children []*child

	mu      sync.Mutex
	active  int // -1 means unset
	publish asink.WriterPublisher
}

// New creates a coordinator named id over children, in order. children
// must be non-empty. The last child is active by default (spec §4.5).
func New(id string, children ...asink.StartSpec) (*Coordinator, error) {
	if len(children) == 0 {
		return nil, fmt.Errorf("composite %q: at least one child is required", id)
	}
	cs := make([]*child, len(children))
	for i, spec := range children {
		cs[i] = &child{spec: spec, ready: make(chan struct{})}
	}
	return &Coordinator{
		id:       id,
		timeout:  DefaultInitialWriterTimeout,
		children: cs,
		active:   len(cs) - 1,
	}, nil
}

// WithInitialWriterTimeout overrides the bounded wait for children whose
// writer source publishes asynchronously. Must be called before Run.
func (co *Coordinator) WithInitialWriterTimeout(d time.Duration) *Coordinator {
	co.timeout = d
	return co
}

// Run starts every child and publishes the default active writer
// upward. It satisfies apis/sink.StartSpec.Start's signature, so a
// Coordinator installs into a channel via:
//
//	asink.Handle{ID: id, Condition: cond, Start: asink.StartSpec{Start: co.Run}}
func (co *Coordinator) Run(ctx context.Context, publish asink.WriterPublisher) error {
	co.mu.Lock()
	co.publish = publish
	co.mu.Unlock()

	var wg sync.WaitGroup
	for i, c := range co.children {
		i, c := i, c
		if c.spec.Writer != nil {
			c.set(c.spec.Writer)
			continue
		}
		if c.spec.Start == nil {
			continue // no writer source at all: stays none
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = c.spec.Start(ctx, func(w asink.Writer) { co.writerUpdate(i, w) })
		}()
	}

	co.gatherInitial()
	co.publishActive()

	wg.Wait()
	return nil
}

// gatherInitial waits, per async child, up to the configured timeout for
// its first published writer. A timeout leaves that child's writer as
// none and proceeds (spec §4.5, §5).
func (co *Coordinator) gatherInitial() {
	for _, c := range co.children {
		if c.spec.Start == nil {
			continue
		}
		select {
		case <-c.ready:
		case <-time.After(co.timeout):
		}
	}
}

// writerUpdate is the asynchronous writer_update handler (spec §4.5):
// update the child's cached writer, and if it is the active child,
// re-publish upward.
func (co *Coordinator) writerUpdate(i int, w asink.Writer) {
	co.children[i].set(w)

	co.mu.Lock()
	isActive := co.active == i
	co.mu.Unlock()
	if isActive {
		co.publishActive()
	}
}

// GetChildren returns a read-only snapshot of every child's current
// writer.
func (co *Coordinator) GetChildren() []ChildView {
	out := make([]ChildView, len(co.children))
	for i, c := range co.children {
		out[i] = ChildView{Index: i, Writer: c.writer()}
	}
	return out
}

// SetActive selects the n-th child (1-indexed, per spec §4.5) and
// publishes its current writer (possibly none) upward.
func (co *Coordinator) SetActive(n int) error {
	if n < 1 || n > len(co.children) {
		return fmt.Errorf("composite %q: child index %d out of range [1,%d]", co.id, n, len(co.children))
	}
	co.mu.Lock()
	co.active = n - 1
	co.mu.Unlock()
	co.publishActive()
	return nil
}

// UnsetActive deselects every child and publishes none upward.
func (co *Coordinator) UnsetActive() {
	co.mu.Lock()
	co.active = -1
	co.mu.Unlock()
	co.publishActive()
}

func (co *Coordinator) publishActive() {
	co.mu.Lock()
	idx := co.active
	publish := co.publish
	co.mu.Unlock()

	if publish == nil {
		return
	}
	var w asink.Writer
	if idx >= 0 {
		w = co.children[idx].writer()
	}
	publish(w)
}
