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

// Package probe implements a small error-tracing idiom (ported from
// minio-mc/pkg/probe): an Error that remembers the call stack of
// Trace() sites between where it was first observed and where it was
// finally handled, so a session-ending log line can show more than
// "file not found".
package probe

import (
	"fmt"
	"runtime"
	"strings"
)

// Error wraps a root cause with a trail of call sites.
type Error struct {
	root  error
	trail []string
}

// NewError creates a new Error from a root cause, already carrying one
// trail entry for the caller.
func NewError(err error) *Error {
	if err == nil {
		return nil
	}
	e := &Error{root: err}
	_, file, line, ok := runtime.Caller(1)
	loc := "unknown"
	if ok {
		loc = fmt.Sprintf("%s:%d", file, line)
	}
	e.trail = append(e.trail, loc)
	return e
}

// Trace appends the caller's location to the trail and returns the
// receiver, so call sites write `return nil, probe.NewError(err).Trace()`
// or, further up the stack, `return err.Trace()`.
func (e *Error) Trace(extra ...string) *Error {
	if e == nil {
		return nil
	}
	_, file, line, ok := runtime.Caller(1)
	loc := "unknown"
	if ok {
		loc = fmt.Sprintf("%s:%d", file, line)
	}
	if len(extra) > 0 {
		loc = loc + " " + strings.Join(extra, " ")
	}
	e.trail = append(e.trail, loc)
	return e
}

// Cause returns the original error this Error was built from.
func (e *Error) Cause() error {
	if e == nil {
		return nil
	}
	return e.root
}

// String renders the root cause and the accumulated trail.
func (e *Error) String() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s\n\ttrace: %s", e.root, strings.Join(e.trail, " -> "))
}

// ToError converts an Error into a stdlib error, suitable for returning
// from a function whose signature predates this package.
func (e *Error) ToError() error {
	if e == nil {
		return nil
	}
	return wrappedError{e}
}

type wrappedError struct{ err *Error }

func (w wrappedError) Error() string { return w.err.String() }

// Unwrap lets errors.Is/errors.As see through the wrapper to the root
// cause.
func (w wrappedError) Unwrap() error { return w.err.root }
