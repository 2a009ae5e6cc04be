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

// Command dlogctl is a local administrative front end for
// runtime/channel.Manager: the same operations an embedder reaches
// through the Go API, exposed as a Cobra command tree for interactive
// debugging. It never bypasses Manager's validation.
package main

import (
	"fmt"
	"os"

	"dirpx.dev/dlog/runtime/channel"
	"dirpx.dev/dlog/runtime/diag"
)

func main() {
	mgr := channel.NewManager(diag.NewSlogDiagnostics(nil))
	if err := newRootCommand(mgr).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
