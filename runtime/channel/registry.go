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

package channel

import (
	"context"
	"sync"
	"time"

	asink "dirpx.dev/dlog/apis/sink"
	"dirpx.dev/dlog/apis/condition"
	"dirpx.dev/dlog/apis/severity"
)

// IfExists selects how Install reacts to a colliding sink id.
type IfExists int

const (
	// IfExistsError leaves state unchanged and reports AlreadyInstalled.
	IfExistsError IfExists = iota
	// IfExistsIgnore leaves state unchanged and returns the existing sink.
	IfExistsIgnore
	// IfExistsSupersede cancels the previous lifetime and replaces the entry.
	IfExistsSupersede
)

// LifetimeKind selects how a sink's registration is bounded.
type LifetimeKind int

const (
	// LifetimeInfinity never expires on its own.
	LifetimeInfinity LifetimeKind = iota
	// LifetimeDuration expires once Duration elapses.
	LifetimeDuration
	// LifetimeProcess expires when Process reports Done.
	LifetimeProcess
)

// ProcessHandle is an external task whose liveness bounds a sink's
// lifetime. dlog never supervises processes itself; callers adapt
// whatever supervision they already have (an *os.Process wrapper, a
// context, a supervised goroutine's done channel) to this interface.
type ProcessHandle interface {
	Done() <-chan struct{}
}

// Lifetime bounds how long an installed sink stays registered.
type Lifetime struct {
	Kind     LifetimeKind
	Duration time.Duration
	Process  ProcessHandle
}

// Infinite returns a Lifetime that never expires.
func Infinite() Lifetime { return Lifetime{Kind: LifetimeInfinity} }

// ForDuration returns a Lifetime that expires after d.
func ForDuration(d time.Duration) Lifetime { return Lifetime{Kind: LifetimeDuration, Duration: d} }

// BoundToProcess returns a Lifetime that expires when p reports Done.
func BoundToProcess(p ProcessHandle) Lifetime { return Lifetime{Kind: LifetimeProcess, Process: p} }

// InstallOptions configures Install.
type InstallOptions struct {
	Lifetime Lifetime
	IfExists IfExists
}

// registryEntry is the Channel Registry's private bookkeeping for one
// installed sink. Never shared outside the owning Channel.
type registryEntry struct {
	handle  asink.Handle
	cancel  func()
	started bool
}

// Channel is one named, process-wide log bus: a single-writer registry
// actor (mutex-guarded, per spec §4.3/§9) over an Index Table. All
// mutations are serialised by mu; Select never takes mu, reading the
// Index Table's own atomic snapshot instead.
type Channel struct {
	id   string
	idx  *index
	diag diagnostics

	mu           sync.Mutex
	sinks        map[string]*registryEntry
	expiryTokens map[string]any
	draining     bool
}

// diagnostics is the subset of runtime/diag.Diagnostics the registry
// needs, kept local to avoid an import cycle between runtime/channel and
// runtime/diag (diag depends on nothing in channel).
type diagnostics interface {
	ReportWriterFailure(channel, sinkID string, err error)
}

func newChannel(id string, diag diagnostics) *Channel {
	return &Channel{
		id:           id,
		idx:          newIndex(),
		diag:         diag,
		sinks:        make(map[string]*registryEntry),
		expiryTokens: make(map[string]any),
	}
}

// ID returns the channel's symbolic name.
func (c *Channel) ID() string { return c.id }

// Install registers sink under opts, starting its writer source and
// wiring its lifetime. Returns the previous handle on IfExistsIgnore or
// IfExistsSupersede, or nil on a fresh install.
func (c *Channel) Install(ctx context.Context, h asink.Handle, opts InstallOptions) (*asink.Handle, error) {
	if h.ID == "" {
		return nil, newError(InvalidArgument, c.id, h.ID, errInvalidSinkID)
	}
	if h.Start.Writer == nil && h.Start.Start == nil {
		return nil, newError(InvalidArgument, c.id, h.ID, errNoWriterSource)
	}
	if opts.Lifetime.Kind == LifetimeDuration && (opts.Lifetime.Duration < 0 || opts.Lifetime.Duration >= maxLifetimeDuration) {
		return nil, newError(InvalidArgument, c.id, h.ID, errLifetimeRange)
	}
	if opts.Lifetime.Kind == LifetimeProcess && opts.Lifetime.Process == nil {
		return nil, newError(InvalidArgument, c.id, h.ID, errNilProcessHandle)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.draining {
		return nil, newError(ChannelNotRunning, c.id, h.ID, nil)
	}

	if prev, ok := c.sinks[h.ID]; ok {
		switch opts.IfExists {
		case IfExistsIgnore:
			previous := prev.handle
			return &previous, nil
		case IfExistsSupersede:
			// fall through to replace below
		default: // IfExistsError
			previous := prev.handle
			return nil, &Error{Kind: AlreadyInstalled, Channel: c.id, SinkID: h.ID, Previous: &previous}
		}
	}

	entry := &registryEntry{handle: h}
	cancel, err := c.startLifetime(opts.Lifetime, h.ID)
	if err != nil {
		return nil, newError(InvalidArgument, c.id, h.ID, err)
	}
	entry.cancel = cancel

	var previous *asink.Handle
	if prev, ok := c.sinks[h.ID]; ok {
		if prev.cancel != nil {
			prev.cancel()
		}
		p := prev.handle
		previous = &p
		c.idx.register(h.ID, h.Condition, prev.handle.Condition, nil)
	} else {
		c.idx.registerFresh(h.ID, h.Condition, nil)
	}

	c.sinks[h.ID] = entry
	c.startWriterSource(ctx, entry)

	return previous, nil
}

// startWriterSource resolves entry's writer immediately (Writer set) or
// launches its Start function, publishing writers into the index as they
// arrive.
func (c *Channel) startWriterSource(ctx context.Context, entry *registryEntry) {
	id := entry.handle.ID
	if w := entry.handle.Start.Writer; w != nil {
		c.idx.register(id, entry.handle.Condition, entry.handle.Condition, w)
		return
	}
	start := entry.handle.Start.Start
	if start == nil || entry.started {
		return
	}
	entry.started = true
	publish := func(w asink.Writer) {
		c.mu.Lock()
		defer c.mu.Unlock()
		cur, ok := c.sinks[id]
		if !ok || cur != entry {
			return // superseded or uninstalled since
		}
		c.idx.register(id, cur.handle.Condition, cur.handle.Condition, w)
	}
	if ctx == nil {
		ctx = context.Background()
	}
	go func() {
		_ = start(ctx, publish)
	}()
}

// Uninstall cancels sink_id's lifetime and removes it from the index.
func (c *Channel) Uninstall(sinkID string) (*asink.Handle, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.draining {
		return nil, newError(ChannelNotRunning, c.id, sinkID, nil)
	}

	entry, ok := c.sinks[sinkID]
	if !ok {
		return nil, &Error{Kind: NotFound, Channel: c.id, SinkID: sinkID}
	}
	if entry.cancel != nil {
		entry.cancel()
	}
	delete(c.sinks, sinkID)
	c.idx.deregister(sinkID, entry.handle.Condition)

	h := entry.handle
	return &h, nil
}

// Find returns the currently-installed handle for sinkID.
func (c *Channel) Find(sinkID string) (*asink.Handle, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.draining {
		return nil, newError(ChannelNotRunning, c.id, sinkID, nil)
	}
	entry, ok := c.sinks[sinkID]
	if !ok {
		return nil, &Error{Kind: NotFound, Channel: c.id, SinkID: sinkID}
	}
	h := entry.handle
	return &h, nil
}

// ListSinks returns every currently-installed handle, order unspecified.
func (c *Channel) ListSinks() ([]asink.Handle, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.draining {
		return nil, newError(ChannelNotRunning, c.id, "", nil)
	}
	out := make([]asink.Handle, 0, len(c.sinks))
	for _, entry := range c.sinks {
		out = append(out, entry.handle)
	}
	return out, nil
}

// SetCondition replaces sinkID's condition, re-indexing by diff, and
// returns the previous condition.
func (c *Channel) SetCondition(sinkID string, newC condition.Condition) (condition.Condition, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.draining {
		return condition.Condition{}, newError(ChannelNotRunning, c.id, sinkID, nil)
	}
	entry, ok := c.sinks[sinkID]
	if !ok {
		return condition.Condition{}, &Error{Kind: NotFound, Channel: c.id, SinkID: sinkID}
	}
	old := entry.handle.Condition
	c.idx.register(sinkID, newC, old, c.idx.snap.Load().writers[sinkID])
	entry.handle.Condition = newC
	return old, nil
}

// Select is the hot-path read: resolves matching writers for the given
// tags without ever blocking on c.mu.
func (c *Channel) Select(s severity.Severity, app, mod string) []asink.Writer {
	return c.idx.select_(s, app, mod)
}

// drain marks the channel as shutting down: every subsequent
// administrative call fails with ChannelNotRunning, closing the window
// between a Delete decision and sinks actually being released.
func (c *Channel) drain() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.draining = true
}

// releaseAll cancels every remaining sink's lifetime. Called by Manager
// after drain, while tearing the channel down.
func (c *Channel) releaseAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for id, entry := range c.sinks {
		if entry.cancel != nil {
			entry.cancel()
		}
		delete(c.sinks, id)
	}
}

// expire handles a lifetime-watcher expiry event for sinkID, matched by
// token identity against the entry currently installed: stale tokens
// (entry already replaced or uninstalled) are dropped silently.
func (c *Channel) expire(sinkID string, token any) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.sinks[sinkID]
	if !ok || entry.cancel == nil {
		return
	}
	if t, ok := c.expiryTokens[sinkID]; !ok || t != token {
		return
	}
	delete(c.sinks, sinkID)
	delete(c.expiryTokens, sinkID)
	c.idx.deregister(sinkID, entry.handle.Condition)
}
