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

// Package policy declares the runtime-agnostic configuration for the
// retry and batch sink wrappers in runtime/sink/policy.
package policy

import "time"

// Retry configures exponential-backoff retries around a sink's Write.
type Retry struct {
	Enable     bool
	MaxRetries int
	Initial    time.Duration
	Max        time.Duration
	Multiplier float64
}

// Backpressure selects what a batching sink does when its queue is full.
type Backpressure int

const (
	// BackpressureDrop rejects the write immediately with ErrQueueFull.
	BackpressureDrop Backpressure = iota
	// BackpressureBlock waits for room, honoring ctx cancellation.
	BackpressureBlock
)

// Batch configures how a batching sink groups writes before flushing.
type Batch struct {
	// MaxEntries triggers an automatic flush once this many entries are
	// queued. Zero disables the entry-count trigger.
	MaxEntries int
	// Interval triggers an automatic flush on this cadence. Zero disables
	// the timer trigger.
	Interval time.Duration
}
