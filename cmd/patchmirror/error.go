/*
 * thcrap patch mirror, (C) 2024 RetroCyber
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package main

import "github.com/RetroCyber/thcrap-patch-mirror/internal/console"

// fatalIf logs err (the trace a *probe.Error carries, unwrapped through
// Error()) as a critical line and terminates the process. It is the
// only call site in the tree allowed to exit on an error; every lower
// layer returns instead. A nil err is a no-op, so call sites can read
// fatalIf(log, doThing(), "doing thing") without an extra branch.
func fatalIf(log console.Logger, err error, msg string) {
	if err == nil {
		return
	}
	log.Fatalf("%s: %v", msg, err)
}
