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

package console

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// dailyFile is an io.WriteCloser that rolls to a new file named after
// the current date and deletes files older than retentionDays, mirroring
// the original color_logger.py TimedRotatingFileHandler(when='midnight',
// backupCount=7). No example in the retrieved pack depends on a log
// rotation library (lumberjack never appears in any go.mod), so this
// stays on the standard library — see DESIGN.md.
type dailyFile struct {
	dir            string
	retentionDays  int
	currentDate    string
	f              *os.File
}

// OpenDailyRotating opens (creating if needed) dir/<today>.log and
// prunes files older than retentionDays. Call Write to append; each
// Write re-checks the date and rolls over at midnight.
func OpenDailyRotating(dir string, retentionDays int) (*dailyFile, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	d := &dailyFile{dir: dir, retentionDays: retentionDays}
	if err := d.roll(); err != nil {
		return nil, err
	}
	return d, nil
}

func (d *dailyFile) roll() error {
	date := time.Now().Format("2006-01-02")
	if date == d.currentDate && d.f != nil {
		return nil
	}
	if d.f != nil {
		d.f.Close()
	}
	path := filepath.Join(d.dir, date+".log")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	d.f = f
	d.currentDate = date
	d.prune()
	return nil
}

func (d *dailyFile) prune() {
	cutoff := time.Now().AddDate(0, 0, -d.retentionDays)
	entries, err := os.ReadDir(d.dir)
	if err != nil {
		return
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		info, err := e.Info()
		if err != nil || info.ModTime().After(cutoff) {
			continue
		}
		os.Remove(filepath.Join(d.dir, e.Name()))
	}
}

func (d *dailyFile) Write(p []byte) (int, error) {
	if err := d.roll(); err != nil {
		return 0, err
	}
	return d.f.Write(p)
}

func (d *dailyFile) Close() error {
	if d.f == nil {
		return nil
	}
	return d.f.Close()
}

// Tee fans log lines out to both a colorized console and a plain daily
// file, matching mirror_repo.py's ColorLogger(log_to_file=True).
type Tee struct {
	Console Logger
	File    *dailyFile
}

func (t *Tee) writeFile(level, format string, a ...interface{}) {
	if t.File == nil {
		return
	}
	fmt.Fprintf(t.File, "%s [%s] %s\n", time.Now().Format(time.RFC3339), level, fmt.Sprintf(format, a...))
}

func (t *Tee) Debugf(format string, a ...interface{}) {
	t.Console.Debugf(format, a...)
	t.writeFile("DEBUG", format, a...)
}
func (t *Tee) Infof(format string, a ...interface{}) {
	t.Console.Infof(format, a...)
	t.writeFile("INFO", format, a...)
}
func (t *Tee) Warningf(format string, a ...interface{}) {
	t.Console.Warningf(format, a...)
	t.writeFile("WARNING", format, a...)
}
func (t *Tee) Errorf(format string, a ...interface{}) {
	t.Console.Errorf(format, a...)
	t.writeFile("ERROR", format, a...)
}
func (t *Tee) Criticalf(format string, a ...interface{}) {
	t.Console.Criticalf(format, a...)
	t.writeFile("CRITICAL", format, a...)
}
func (t *Tee) Successf(format string, a ...interface{}) {
	t.Console.Successf(format, a...)
	t.writeFile("SUCCESS", format, a...)
}
func (t *Tee) Getf(format string, a ...interface{}) {
	t.Console.Getf(format, a...)
	t.writeFile("GET", format, a...)
}
func (t *Tee) Updatef(format string, a ...interface{}) {
	t.Console.Updatef(format, a...)
	t.writeFile("UPDATE", format, a...)
}
func (t *Tee) Removef(format string, a ...interface{}) {
	t.Console.Removef(format, a...)
	t.writeFile("REMOVE", format, a...)
}

// Fatalf writes the line to the log file before handing off to Console,
// whose Fatalf terminates the process.
func (t *Tee) Fatalf(format string, a ...interface{}) {
	t.writeFile("CRITICAL", format, a...)
	t.Console.Fatalf(format, a...)
}
