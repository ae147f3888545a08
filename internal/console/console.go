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

// Package console implements the mirror's level-tagged, colorized log
// sink. It is the injected "log object" every component depends on
// instead of calling fmt/log directly, so tests can swap in a recording
// sink.
package console

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
)

// Logger is the level set every sync-engine component depends on.
// Debug/Info/Warning/Error/Critical mirror the standard levels; Success
// terminates a phase, Get/Update/Remove log one line per file transport
// touches.
type Logger interface {
	Debugf(format string, a ...interface{})
	Infof(format string, a ...interface{})
	Warningf(format string, a ...interface{})
	Errorf(format string, a ...interface{})
	Criticalf(format string, a ...interface{})
	Successf(format string, a ...interface{})
	Getf(format string, a ...interface{})
	Updatef(format string, a ...interface{})
	Removef(format string, a ...interface{})

	// Fatalf logs a critical line and terminates the process with exit
	// status 1. Only the CLI layer (cmd/patchmirror) may call it; every
	// lower layer returns an error instead.
	Fatalf(format string, a ...interface{})
}

// theme pairs a level tag with the color used to render it.
type theme struct {
	tag   string
	color *color.Color
}

var themes = map[string]theme{
	"debug":    {"DEBUG", color.New(color.FgCyan)},
	"info":     {"INFO", color.New(color.FgBlue)},
	"warning":  {"WARNING", color.New(color.FgYellow)},
	"error":    {"ERROR", color.New(color.FgRed)},
	"critical": {"CRITICAL", color.New(color.FgMagenta, color.Bold)},
	"success":  {"SUCCESS", color.New(color.FgGreen)},
	"get":      {"GET", color.New(color.FgWhite)},
	"update":   {"UPDATE", color.New(color.FgGreen, color.Bold)},
	"remove":   {"REMOVE", color.New(color.FgRed, color.Bold)},
}

// console is the default Logger, writing to an io.Writer (os.Stdout in
// production, a bytes.Buffer in tests). Color is disabled automatically
// when the writer isn't a terminal, matching minio-mc/pkg/console.
type console struct {
	mu      sync.Mutex
	out     io.Writer
	colorOn bool
}

// New returns a Logger writing to w. Color rendering is enabled only
// when w is an *os.File attached to a terminal.
func New(w io.Writer) Logger {
	colorOn := false
	if f, ok := w.(*os.File); ok {
		colorOn = isatty.IsTerminal(f.Fd())
	}
	return &console{out: w, colorOn: colorOn}
}

func (c *console) log(level, format string, a ...interface{}) {
	th := themes[level]
	msg := fmt.Sprintf(format, a...)
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.colorOn {
		fmt.Fprintf(c.out, "[%s]\t%s\n", th.color.Sprint(th.tag), msg)
		return
	}
	fmt.Fprintf(c.out, "[%s]\t%s\n", th.tag, msg)
}

func (c *console) Debugf(format string, a ...interface{})    { c.log("debug", format, a...) }
func (c *console) Infof(format string, a ...interface{})     { c.log("info", format, a...) }
func (c *console) Warningf(format string, a ...interface{})  { c.log("warning", format, a...) }
func (c *console) Errorf(format string, a ...interface{})    { c.log("error", format, a...) }
func (c *console) Criticalf(format string, a ...interface{}) { c.log("critical", format, a...) }
func (c *console) Successf(format string, a ...interface{})  { c.log("success", format, a...) }
func (c *console) Getf(format string, a ...interface{})      { c.log("get", format, a...) }
func (c *console) Updatef(format string, a ...interface{})   { c.log("update", format, a...) }
func (c *console) Removef(format string, a ...interface{})   { c.log("remove", format, a...) }

func (c *console) Fatalf(format string, a ...interface{}) {
	c.log("critical", format, a...)
	os.Exit(1)
}

// Discard is a Logger that drops every line, used by tests that don't
// care about log output.
var Discard Logger = discard{}

type discard struct{}

func (discard) Debugf(string, ...interface{})    {}
func (discard) Infof(string, ...interface{})     {}
func (discard) Warningf(string, ...interface{})  {}
func (discard) Errorf(string, ...interface{})    {}
func (discard) Criticalf(string, ...interface{}) {}
func (discard) Successf(string, ...interface{})  {}
func (discard) Getf(string, ...interface{})      {}
func (discard) Updatef(string, ...interface{})   {}
func (discard) Removef(string, ...interface{})   {}

// Fatalf still terminates the process: Discard silences log output,
// not control flow.
func (discard) Fatalf(string, ...interface{}) { os.Exit(1) }
