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

// Package diag is dlog's own self-diagnostic channel: the out-of-band
// path isolated writer failures are reported through, kept separate from
// whatever logging the application embedding dlog does with its own
// sinks.
package diag

import "log/slog"

// Diagnostics receives events the dispatch core cannot surface to its
// caller without violating the hot path's non-blocking contract.
type Diagnostics interface {
	// ReportWriterFailure records that sinkID's writer on channel errored
	// during dispatch. Must not block or panic.
	ReportWriterFailure(channel, sinkID string, err error)
}

// SlogDiagnostics reports through an *slog.Logger, the idiomatic stdlib
// ambient logger dlog builds on rather than replaces.
type SlogDiagnostics struct {
	Logger *slog.Logger
}

// NewSlogDiagnostics wraps logger. A nil logger falls back to
// slog.Default().
func NewSlogDiagnostics(logger *slog.Logger) *SlogDiagnostics {
	if logger == nil {
		logger = slog.Default()
	}
	return &SlogDiagnostics{Logger: logger}
}

// ReportWriterFailure logs the failure at warning level.
func (d *SlogDiagnostics) ReportWriterFailure(channel, sinkID string, err error) {
	d.Logger.Warn("sink writer failed",
		slog.String("channel", channel),
		slog.String("sink", sinkID),
		slog.Any("error", err),
	)
}

var _ Diagnostics = (*SlogDiagnostics)(nil)
