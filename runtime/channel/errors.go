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
	"errors"
	"fmt"

	asink "dirpx.dev/dlog/apis/sink"
)

// Kind classifies a channel administrative error.
type Kind int

const (
	// InvalidArgument: malformed sink handle, condition, id, lifetime, or
	// option value. Raised synchronously, state unchanged.
	InvalidArgument Kind = iota
	// ChannelNotRunning: operation on a non-existent or draining channel.
	ChannelNotRunning
	// AlreadyInstalled: install with IfExists=IfExistsError and id in use.
	AlreadyInstalled
	// NotFound: uninstall/find/set-condition on an unknown sink id.
	NotFound
	// WriterFailure: a writer's Write returned an error during dispatch.
	// Raised per failing writer, isolated from its siblings; never blocks
	// or short-circuits the rest of a Dispatcher.Emit fan-out.
	WriterFailure
)

func (k Kind) String() string {
	switch k {
	case InvalidArgument:
		return "invalid_argument"
	case ChannelNotRunning:
		return "channel_not_running"
	case AlreadyInstalled:
		return "already_installed"
	case NotFound:
		return "not_found"
	case WriterFailure:
		return "writer_failure"
	default:
		return "unknown"
	}
}

// Error is the classified error returned by administrative channel
// operations. Previous, when set, carries the sink a collision or lookup
// found.
type Error struct {
	Kind     Kind
	Channel  string
	SinkID   string
	Previous *asink.Handle
	Err      error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("channel: %s", e.Kind)
	if e.Channel != "" {
		msg += fmt.Sprintf(" channel=%q", e.Channel)
	}
	if e.SinkID != "" {
		msg += fmt.Sprintf(" sink=%q", e.SinkID)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is a *Error with the same Kind, allowing
// errors.Is(err, &Error{Kind: NotFound}) style checks.
func (e *Error) Is(target error) bool {
	var other *Error
	if !errors.As(target, &other) {
		return false
	}
	return e.Kind == other.Kind
}

func newError(kind Kind, channelID, sinkID string, cause error) *Error {
	return &Error{Kind: kind, Channel: channelID, SinkID: sinkID, Err: cause}
}
