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

package policy

import (
	"context"
	"errors"
	"sync"
	"time"

	asink "dirpx.dev/dlog/apis/sink"
	spolicy "dirpx.dev/dlog/apis/sink/policy"
)

// BatchOptions configures the runtime batching behavior around a sink.
//
// Entries are queued and handed to the underlying sink by a single
// background worker, one at a time; Batch.MaxEntries/Interval only govern
// when Flush is additionally called on the inner sink, not how writes are
// grouped into the queue itself.
type BatchOptions struct {
	// QueueSize bounds the number of entries buffered ahead of the worker.
	QueueSize int

	// Batch is the declarative flush-trigger configuration from apis.
	Batch spolicy.Batch

	// Backpressure selects overflow behavior once the queue is full.
	Backpressure spolicy.Backpressure

	// Name overrides the sink name. If empty, the wrapper reports its name
	// as "batch(<inner>.Name())".
	Name string
}

var (
	// ErrQueueFull indicates BackpressureDrop rejected a write.
	ErrQueueFull = errors.New("sink/policy: queue full")
	// ErrBatchClosed indicates an operation on a closed batchSink.
	ErrBatchClosed = errors.New("sink/policy: batch sink closed")
)

// batchSink wraps an asink.Sink, queuing writes for a background worker and
// triggering Flush on the inner sink by entry count or interval.
type batchSink struct {
	next asink.Sink
	opt  BatchOptions

	queue chan []byte
	stop  chan struct{}
	done  chan struct{}

	mu     sync.Mutex
	closed bool
	once   sync.Once
}

var _ asink.Sink = (*batchSink)(nil)

// WithBatch wraps next with queue-and-flush batching behavior defined by
// opt. The returned sink owns a background worker goroutine; callers must
// eventually call Close to drain the queue and stop the worker.
func WithBatch(next asink.Sink, opt BatchOptions) asink.Sink {
	if opt.QueueSize <= 0 {
		opt.QueueSize = 1
	}
	s := &batchSink{
		next:  next,
		opt:   opt,
		queue: make(chan []byte, opt.QueueSize),
		stop:  make(chan struct{}),
		done:  make(chan struct{}),
	}
	go s.run()
	return s
}

// Name returns the human-friendly name of the sink.
func (s *batchSink) Name() string {
	if s.opt.Name != "" {
		return s.opt.Name
	}
	return "batch(" + s.next.Name() + ")"
}

// Write enqueues entry for the background worker. Behavior on a full queue
// depends on opt.Backpressure: BackpressureDrop returns ErrQueueFull
// immediately; BackpressureBlock waits for room or ctx cancellation.
func (s *batchSink) Write(ctx context.Context, entry []byte) error {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return ErrBatchClosed
	}

	buf := make([]byte, len(entry))
	copy(buf, entry)

	switch s.opt.Backpressure {
	case spolicy.BackpressureBlock:
		select {
		case s.queue <- buf:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	default: // BackpressureDrop
		select {
		case s.queue <- buf:
			return nil
		default:
			return ErrQueueFull
		}
	}
}

// Flush calls Flush on the underlying sink. It does not force the worker
// to drain the queue; queued entries are written on the worker's own
// schedule (best-effort semantics).
func (s *batchSink) Flush(ctx context.Context) error {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return ErrBatchClosed
	}
	return s.next.Flush(ctx)
}

// Close stops the worker after it drains the queue, then closes the
// underlying sink. Idempotent.
func (s *batchSink) Close(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	s.once.Do(func() { close(s.stop) })

	select {
	case <-s.done:
	case <-ctx.Done():
		return ctx.Err()
	}

	return s.next.Close(ctx)
}

// run drains the queue until stop is closed and the queue is empty,
// flushing the inner sink by entry count or interval as configured.
func (s *batchSink) run() {
	defer close(s.done)

	var ticker *time.Ticker
	var tickC <-chan time.Time
	if s.opt.Batch.Interval > 0 {
		ticker = time.NewTicker(s.opt.Batch.Interval)
		defer ticker.Stop()
		tickC = ticker.C
	}

	ctx := context.Background()
	pending := 0

	flush := func() {
		if pending == 0 {
			return
		}
		_ = s.next.Flush(ctx)
		pending = 0
	}

	for {
		select {
		case entry := <-s.queue:
			_ = s.next.Write(ctx, entry)
			pending++
			if s.opt.Batch.MaxEntries > 0 && pending >= s.opt.Batch.MaxEntries {
				flush()
			}
		case <-tickC:
			flush()
		case <-s.stop:
			// Drain whatever is already queued, then flush and exit.
			for {
				select {
				case entry := <-s.queue:
					_ = s.next.Write(ctx, entry)
					pending++
				default:
					flush()
					return
				}
			}
		}
	}
}
