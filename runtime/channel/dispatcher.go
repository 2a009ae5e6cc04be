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
	"errors"
	"fmt"

	"dirpx.dev/dlog/apis/severity"
)

// Dispatcher is the hot path: per emission it asks a Manager for the
// matching writers and invokes each one, isolating failures the way
// runtime/sink.Group isolates fan-out failures with errors.Join.
type Dispatcher struct {
	manager *Manager
	diag    diagnostics
}

// NewDispatcher builds a Dispatcher over manager. diag receives isolated
// per-writer failures; nil discards them.
func NewDispatcher(manager *Manager, diag diagnostics) *Dispatcher {
	if diag == nil {
		diag = noopDiagnostics{}
	}
	return &Dispatcher{manager: manager, diag: diag}
}

// Emit resolves every sink whose condition matches (severity,
// application, module) on channelID and writes format/data to it. A
// failing writer is reported to diag and does not prevent the remaining
// writers from running; the returned error, if any, aggregates every
// failure as a classified *Error{Kind: WriterFailure} per writer via
// errors.Join, so callers that want to observe it can still use
// errors.Is/errors.As — it is not required reading on the hot path.
func (d *Dispatcher) Emit(ctx context.Context, channelID string, s severity.Severity, app, mod, format string, data []byte) error {
	writers := d.manager.SelectSinks(channelID, s, app, mod)
	if len(writers) == 0 {
		return nil
	}

	var errs []error
	for _, w := range writers {
		if _, err := w.Write(ctx, format, data); err != nil {
			label := writeeLabel(w)
			d.diag.ReportWriterFailure(channelID, label, err)
			errs = append(errs, newError(WriterFailure, channelID, label, err))
		}
	}
	return errors.Join(errs...)
}

// writeeLabel renders a writer's GetWritee for diagnostics; writers carry
// no sink id of their own (that is registry-side bookkeeping), so the
// ultimate write target is the best available identifier.
func writeeLabel(w interface{ GetWritee() any }) string {
	if w == nil {
		return "<nil>"
	}
	if target := w.GetWritee(); target != nil {
		return fmt.Sprintf("%v", target)
	}
	return "<none>"
}
