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
	"time"
)

// maxLifetimeDuration mirrors the source's 2^32 ms bound on duration
// lifetimes (spec §4.3).
const maxLifetimeDuration = time.Duration(1<<32) * time.Millisecond

var (
	errInvalidSinkID    = errors.New("channel: sink id must be non-empty")
	errNoWriterSource   = errors.New("channel: handle must set Start.Writer or Start.Start")
	errLifetimeRange    = errors.New("channel: duration lifetime out of range")
	errNilProcessHandle = errors.New("channel: process lifetime requires a non-nil ProcessHandle")
	errInvalidChannelID = errors.New("channel: channel id must be non-empty")
)

// token is a unique identity an expiry event is matched against: an
// unmatched token (the entry it named has since been replaced or
// uninstalled) is dropped silently, per spec §4.4. The field gives token a
// non-zero size, so every &token{} has its own address.
type token struct{ _ byte }

// startLifetime wires opts' lifetime kind for sinkID and returns a
// cancel function. Called with c.mu already held (from Install).
//
//   - infinity: cancel is a no-op, no expiry is ever scheduled.
//   - duration: a one-shot timer fires expire(sinkID, tok) after Duration.
//   - process: a goroutine waits on Process.Done() and calls
//     expire(sinkID, tok), or exits immediately if cancelled first.
func (c *Channel) startLifetime(lt Lifetime, sinkID string) (func(), error) {
	switch lt.Kind {
	case LifetimeInfinity:
		delete(c.expiryTokens, sinkID)
		return func() {}, nil

	case LifetimeDuration:
		tok := &token{}
		c.expiryTokens[sinkID] = tok
		timer := time.AfterFunc(lt.Duration, func() { c.expire(sinkID, tok) })
		return func() { timer.Stop() }, nil

	case LifetimeProcess:
		tok := &token{}
		c.expiryTokens[sinkID] = tok
		stop := make(chan struct{})
		go func() {
			select {
			case <-lt.Process.Done():
				c.expire(sinkID, tok)
			case <-stop:
			}
		}()
		var stopped bool
		return func() {
			if !stopped {
				stopped = true
				close(stop)
			}
		}, nil

	default:
		return nil, errors.New("channel: unknown lifetime kind")
	}
}
