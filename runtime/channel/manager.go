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
	"sort"
	"sync"

	asink "dirpx.dev/dlog/apis/sink"
	"dirpx.dev/dlog/apis/condition"
	"dirpx.dev/dlog/apis/severity"
)

// noopDiagnostics discards every report; used when a Manager is built
// without a diagnostics sink.
type noopDiagnostics struct{}

func (noopDiagnostics) ReportWriterFailure(string, string, error) {}

// Manager owns every channel in a process: the administrative surface
// spec §6 describes, fronting both the Go API and cmd/dlogctl.
type Manager struct {
	diag diagnostics

	mu       sync.RWMutex
	channels map[string]*Channel
}

// NewManager builds an empty Manager. diag may be nil, in which case
// writer failures are silently discarded.
func NewManager(diag diagnostics) *Manager {
	if diag == nil {
		diag = noopDiagnostics{}
	}
	return &Manager{diag: diag, channels: make(map[string]*Channel)}
}

// Create installs a new, empty channel named id.
func (m *Manager) Create(id string) error {
	if id == "" {
		return newError(InvalidArgument, id, "", errInvalidChannelID)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.channels[id]; ok {
		return &Error{Kind: AlreadyInstalled, Channel: id}
	}
	m.channels[id] = newChannel(id, m.diag)
	return nil
}

// Delete drains and removes channel id, releasing every installed sink's
// lifetime. Administrative calls racing the drain fail with
// ChannelNotRunning (spec §9's mid-shutdown open question).
func (m *Manager) Delete(id string) error {
	m.mu.Lock()
	ch, ok := m.channels[id]
	if !ok {
		m.mu.Unlock()
		return &Error{Kind: NotFound, Channel: id}
	}
	ch.drain()
	delete(m.channels, id)
	m.mu.Unlock()

	ch.releaseAll()
	return nil
}

// List returns every channel id, sorted.
func (m *Manager) List() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.channels))
	for id := range m.channels {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

func (m *Manager) lookup(id string) (*Channel, error) {
	m.mu.RLock()
	ch, ok := m.channels[id]
	m.mu.RUnlock()
	if !ok {
		return nil, newError(ChannelNotRunning, id, "", nil)
	}
	return ch, nil
}

// InstallSink installs h into channel id.
func (m *Manager) InstallSink(id string, h asink.Handle, opts InstallOptions) (*asink.Handle, error) {
	ch, err := m.lookup(id)
	if err != nil {
		return nil, err
	}
	return ch.Install(context.Background(), h, opts)
}

// UninstallSink removes sinkID from channel id.
func (m *Manager) UninstallSink(id, sinkID string) (*asink.Handle, error) {
	ch, err := m.lookup(id)
	if err != nil {
		return nil, err
	}
	return ch.Uninstall(sinkID)
}

// FindSink returns sinkID's current handle within channel id.
func (m *Manager) FindSink(id, sinkID string) (*asink.Handle, error) {
	ch, err := m.lookup(id)
	if err != nil {
		return nil, err
	}
	return ch.Find(sinkID)
}

// ListSinks returns every handle installed in channel id.
func (m *Manager) ListSinks(id string) ([]asink.Handle, error) {
	ch, err := m.lookup(id)
	if err != nil {
		return nil, err
	}
	return ch.ListSinks()
}

// SetCondition replaces sinkID's condition within channel id.
func (m *Manager) SetCondition(id, sinkID string, newC condition.Condition) (condition.Condition, error) {
	ch, err := m.lookup(id)
	if err != nil {
		return condition.Condition{}, err
	}
	return ch.SetCondition(sinkID, newC)
}

// SelectSinks is the Dispatcher's entry point: never raises, even for an
// unknown or deleted channel id (spec §4.2's "selection error semantics").
func (m *Manager) SelectSinks(id string, s severity.Severity, app, mod string) []asink.Writer {
	m.mu.RLock()
	ch, ok := m.channels[id]
	m.mu.RUnlock()
	if !ok {
		return nil
	}
	return ch.Select(s, app, mod)
}
